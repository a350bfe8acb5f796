package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// DocumentStoreConfig configures the local document store
type DocumentStoreConfig struct {
	BaseURL     string
	MaxFileSize int64
}

// StoredFile describes one file of a consolidated upload
type StoredFile struct {
	OriginalName string `json:"original_name"`
	Path         string `json:"path"`
	URL          string `json:"url"`
	ContentType  string `json:"content_type"`
	Size         int    `json:"size"`
	Pages        int    `json:"pages,omitempty"`
}

// Manifest groups the files of one upload under a single URL
type Manifest struct {
	Module   string       `json:"module"`
	EntityID int64        `json:"entity_id"`
	Files    []StoredFile `json:"files"`
	StoredAt time.Time    `json:"stored_at"`
}

// DocumentStore implements port.DocumentStore on top of a FileStorage.
// A single file is returned by its own URL; several files are grouped by
// a JSON manifest whose URL is returned instead.
type DocumentStore struct {
	files  port.FileStorage
	cfg    DocumentStoreConfig
	logger *zap.Logger
}

// NewDocumentStore creates a document store writing through files
func NewDocumentStore(files port.FileStorage, cfg DocumentStoreConfig, logger *zap.Logger) *DocumentStore {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &DocumentStore{files: files, cfg: cfg, logger: logger}
}

var _ port.DocumentStore = (*DocumentStore)(nil)

// Store validates and saves files under <module>/<entity>/ and returns the URL
// of the stored document
func (d *DocumentStore) Store(ctx context.Context, moduleName string, entityID int64, files []port.DocumentFile) (string, error) {
	if len(files) == 0 {
		return "", ledger.Errorf(ledger.KindMissingDocument, "files", "no files uploaded")
	}

	dir := path.Join(sanitizeModule(moduleName), strconv.FormatInt(entityID, 10))
	stored := make([]StoredFile, 0, len(files))
	for _, f := range files {
		sf, err := d.inspect(f)
		if err != nil {
			d.rollback(ctx, stored)
			return "", err
		}
		sf.Path = path.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(f.Name)))
		sf.URL = d.urlFor(sf.Path)
		if err := d.files.Save(ctx, sf.Path, f.Content); err != nil {
			d.rollback(ctx, stored)
			return "", fmt.Errorf("failed to store %s: %w", f.Name, err)
		}
		stored = append(stored, sf)
	}

	if len(stored) == 1 {
		d.logStored(moduleName, entityID, stored)
		return stored[0].URL, nil
	}

	manifest := Manifest{Module: moduleName, EntityID: entityID, Files: stored, StoredAt: time.Now().UTC()}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		d.rollback(ctx, stored)
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestPath := path.Join(dir, uuid.NewString()+".json")
	if err := d.files.Save(ctx, manifestPath, data); err != nil {
		d.rollback(ctx, stored)
		return "", fmt.Errorf("failed to store manifest: %w", err)
	}

	d.logStored(moduleName, entityID, stored)
	return d.urlFor(manifestPath), nil
}

// inspect checks size and type and counts the pages of PDFs
func (d *DocumentStore) inspect(f port.DocumentFile) (StoredFile, error) {
	sf := StoredFile{OriginalName: f.Name, Size: len(f.Content)}
	if len(f.Content) == 0 {
		return sf, ledger.Errorf(ledger.KindMissingDocument, "files", "%s is empty", f.Name)
	}
	if d.cfg.MaxFileSize > 0 && int64(len(f.Content)) > d.cfg.MaxFileSize {
		return sf, ledger.Errorf(ledger.KindInvalidField, "files", "%s exceeds %d bytes", f.Name, d.cfg.MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return sf, ledger.Errorf(ledger.KindInvalidField, "files", "unsupported file type %q", ext)
	}
	sf.ContentType = contentType

	if ext == ".pdf" {
		pages, err := countPages(f.Content)
		if err != nil {
			return sf, ledger.Errorf(ledger.KindInvalidField, "files", "%s is not a readable PDF", f.Name)
		}
		sf.Pages = pages
	}
	return sf, nil
}

func (d *DocumentStore) rollback(ctx context.Context, stored []StoredFile) {
	for _, sf := range stored {
		if err := d.files.Delete(ctx, sf.Path); err != nil {
			d.logger.Warn("Failed to remove partial upload", zap.String("path", sf.Path), zap.Error(err))
		}
	}
}

func (d *DocumentStore) urlFor(p string) string {
	return d.cfg.BaseURL + "/" + p
}

func (d *DocumentStore) logStored(module string, entityID int64, stored []StoredFile) {
	d.logger.Info("Documents stored",
		zap.String("module", module),
		zap.Int64("entity_id", entityID),
		zap.Int("files", len(stored)))
}

func countPages(content []byte) (int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(content, " \t\r\n"), []byte("%PDF")) {
		return 0, fmt.Errorf("missing PDF header")
	}
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return 0, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	return pages, nil
}

// sanitizeModule keeps each slash-separated segment filesystem safe
func sanitizeModule(name string) string {
	parts := strings.Split(name, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = unsafeSegment.ReplaceAllString(p, "")
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "documents"
	}
	return strings.Join(out, "/")
}
