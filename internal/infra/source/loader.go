// Package source resolves load_code paths to text.
package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bryanwahyu/deadcode-cleaner/internal/domain/cleaning"
)

// ObjectPrefix marks a path served from object storage instead of disk.
const ObjectPrefix = "minio://"

// ObjectStore reads objects by key.
type ObjectStore interface {
	Load(ctx context.Context, key string) (string, error)
}

// Loader reads local files, and minio:// keys when Objects is set.
type Loader struct {
	Objects ObjectStore
}

var _ cleaning.SourceLoader = (*Loader)(nil)

func (l *Loader) Load(ctx context.Context, path string) (string, error) {
	if key, ok := strings.CutPrefix(path, ObjectPrefix); ok {
		if l.Objects == nil {
			return "", fmt.Errorf("object storage is not configured, cannot load %s", path)
		}
		return l.Objects.Load(ctx, key)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
