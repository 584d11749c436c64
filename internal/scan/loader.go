package scan

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"
)

// Loader produces the text of a manifest. It is the scanner's only contact
// with storage.
type Loader interface {
	Load(ctx context.Context, path string) (string, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) (string, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// FileLoader reads manifests from the local filesystem.
type FileLoader struct{}

// Load reads path and rejects content that is not valid UTF-8.
func (FileLoader) Load(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: not valid UTF-8", path)
	}
	return string(data), nil
}

// MapLoader serves manifests from memory. Missing keys fail with
// os.ErrNotExist.
type MapLoader map[string]string

// Load returns the text stored under path.
func (m MapLoader) Load(_ context.Context, path string) (string, error) {
	text, ok := m[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return text, nil
}
