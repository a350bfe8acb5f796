package port

import "context"

// FileStorage is the byte store behind the document store.
// Paths are relative to the store root and may not escape it.
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
}
