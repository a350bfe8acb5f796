package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// onePagePDF builds a minimal well-formed PDF with a correct xref table
func onePagePDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func newTestStore(t *testing.T, maxSize int64) (*DocumentStore, *LocalFileStorage) {
	t.Helper()
	files := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	store := NewDocumentStore(files, DocumentStoreConfig{BaseURL: "http://localhost:8080/files/", MaxFileSize: maxSize}, zap.NewNop())
	return store, files
}

func TestDocumentStore_SingleFile(t *testing.T) {
	store, files := newTestStore(t, 0)
	ctx := context.Background()

	url, err := store.Store(ctx, "advance-movements/receipt", 12, []port.DocumentFile{
		{Name: "Receipt.PDF", Content: onePagePDF()},
	})
	require.NoError(t, err)

	prefix := "http://localhost:8080/files/advance-movements/receipt/12/"
	require.True(t, strings.HasPrefix(url, prefix), url)
	assert.True(t, strings.HasSuffix(url, ".pdf"))
	assert.True(t, files.Exists(ctx, strings.TrimPrefix(url, "http://localhost:8080/files/")))
}

func TestDocumentStore_ManifestForSeveralFiles(t *testing.T) {
	store, files := newTestStore(t, 0)
	ctx := context.Background()

	url, err := store.Store(ctx, "advance-movements/operation_receipt", 5, []port.DocumentFile{
		{Name: "transfer.pdf", Content: onePagePDF()},
		{Name: "photo.jpg", Content: []byte{0xff, 0xd8, 0xff, 0xe0}},
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(url, ".json"))

	raw, err := files.Read(ctx, strings.TrimPrefix(url, "http://localhost:8080/files/"))
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))

	assert.Equal(t, int64(5), manifest.EntityID)
	require.Len(t, manifest.Files, 2)
	assert.Equal(t, 1, manifest.Files[0].Pages)
	assert.Equal(t, "application/pdf", manifest.Files[0].ContentType)
	assert.Equal(t, "image/jpeg", manifest.Files[1].ContentType)
	for _, f := range manifest.Files {
		assert.True(t, files.Exists(ctx, f.Path))
	}
}

func TestDocumentStore_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		files   []port.DocumentFile
		wantErr error
	}{
		{name: "no files", files: nil, wantErr: ledger.ErrMissingDocument},
		{name: "empty file", files: []port.DocumentFile{{Name: "a.pdf"}}, wantErr: ledger.ErrMissingDocument},
		{name: "unsupported type", files: []port.DocumentFile{{Name: "a.exe", Content: []byte("MZ")}}, wantErr: ledger.ErrInvalidField},
		{name: "not a pdf", files: []port.DocumentFile{{Name: "a.pdf", Content: []byte("hello")}}, wantErr: ledger.ErrInvalidField},
		{name: "too large", files: []port.DocumentFile{{Name: "a.png", Content: bytes.Repeat([]byte{1}, 65)}}, wantErr: ledger.ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t, 64)
			_, err := store.Store(ctx, "advance-movements/receipt", 1, tt.files)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDocumentStore_RollsBackPartialUpload(t *testing.T) {
	store, files := newTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Store(ctx, "advance-movements/receipt", 9, []port.DocumentFile{
		{Name: "ok.png", Content: []byte{0x89, 'P', 'N', 'G'}},
		{Name: "bad.pdf", Content: []byte("garbage")},
	})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(files.root, "advance-movements", "receipt", "9"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSanitizeModule(t *testing.T) {
	assert.Equal(t, "advance-movements/receipt", sanitizeModule("advance-movements/receipt"))
	assert.Equal(t, "etc/passwd", sanitizeModule("../../etc/passwd"))
	assert.Equal(t, "documents", sanitizeModule("../.."))
}
