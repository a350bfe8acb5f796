// Command export-statement writes the liquidation statement of one advance
// to an xlsx file without going through the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/cash-advance/internal/config"
	"github.com/garyjia/cash-advance/internal/container"
	"github.com/garyjia/cash-advance/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	advanceID := flag.Int64("advance", 0, "id of the advance to export")
	output := flag.String("out", "", "output file (default <report.output_dir>/advance-<id>-statement.xlsx)")
	flag.Parse()

	if *advanceID <= 0 {
		fmt.Fprintln(os.Stderr, "-advance is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// Exports never notify treasury
	cfg.Notifier.Enabled = false

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     "console",
		Service:    "export-statement",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	target := *output
	if target == "" {
		target = filepath.Join(cfg.Report.OutputDir, fmt.Sprintf("advance-%d-statement.xlsx", *advanceID))
	}

	if err := export(cfg, *advanceID, target, logger); err != nil {
		logger.Error("Export failed", zap.Int64("advance_id", *advanceID), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	fmt.Println(target)
}

func export(cfg *config.Config, advanceID int64, target string, logger *zap.Logger) (err error) {
	ctx := context.Background()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = c.Services().Statement.Export(ctx, advanceID, f); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	if err = os.Rename(tmp, target); err != nil {
		return fmt.Errorf("move output file: %w", err)
	}

	logger.Info("Statement exported", zap.Int64("advance_id", advanceID), zap.String("path", target))
	return nil
}
