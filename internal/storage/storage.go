package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore is the photo store consumed by bank closure and photo sync.
// Paths are opaque references: they are never reused and never deleted by
// the core, so a write that outlives a failed transaction is harmless.
type BlobStore interface {
	Store(data []byte, suggestedName string) (string, error)
	URLFor(path string) string
}

// LocalStore keeps blobs on the local filesystem under a root directory and
// serves them through the router's static file handler.
type LocalStore struct {
	root      string
	publicURL string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "fotos"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Store writes the blob under fotos/ and returns its relative path. The
// suggested name is sanitized and suffixed so paths are never reused even
// when callers resubmit the same name.
func (s *LocalStore) Store(data []byte, suggestedName string) (string, error) {
	name := sanitize(suggestedName)
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = ".jpg"
	}

	rel := path.Join("fotos", fmt.Sprintf("%s_%s%s", base, uuid.New().String()[:8], ext))
	if err := os.WriteFile(filepath.Join(s.root, filepath.FromSlash(rel)), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return rel, nil
}

// URLFor maps a stored path to its public URL.
func (s *LocalStore) URLFor(p string) string {
	if p == "" {
		return ""
	}
	return s.publicURL + "/" + strings.TrimLeft(p, "/")
}

// Root returns the directory the static handler should serve.
func (s *LocalStore) Root() string {
	return s.root
}

func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "foto"
	}
	return b.String()
}
