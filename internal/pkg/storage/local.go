package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuelReschke/Amparo/internal/pkg/constants"
)

// LocalBucket writes objects below a directory served at constants.UploadsRoute.
type LocalBucket struct {
	Dir string
}

func (b *LocalBucket) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	p := filepath.Join(b.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", p, err)
	}
	return constants.UploadsRoute + "/" + key, nil
}

func (b *LocalBucket) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(b.Dir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *LocalBucket) KeyFromURL(url string) (string, bool) {
	return trimBase(url, constants.UploadsRoute+"/")
}

func trimBase(url, base string) (string, bool) {
	if !strings.HasPrefix(url, base) {
		return "", false
	}
	key := strings.TrimPrefix(url, base)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
