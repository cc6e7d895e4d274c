// Package storage реализует объектное хранилище загружаемых файлов (чеков пополнения).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidPath возвращается для путей, выходящих за пределы корзины.
var ErrInvalidPath = errors.New("invalid object path")

// Bucket хранит объекты в файловой системе afero и выдаёт их публичные URL.
type Bucket struct {
	fs      afero.Fs
	baseURL string
}

// NewBucket создаёт корзину поверх каталога root на диске.
func NewBucket(root, baseURL string) (*Bucket, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return NewBucketFs(afero.NewBasePathFs(afero.NewOsFs(), root), baseURL), nil
}

// NewBucketFs создаёт корзину поверх произвольной файловой системы afero.
func NewBucketFs(fs afero.Fs, baseURL string) *Bucket {
	return &Bucket{
		fs:      fs,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func cleanObjectPath(name string) (string, error) {
	p := path.Clean("/" + name)
	if p == "/" || strings.Contains(name, "..") {
		return "", ErrInvalidPath
	}
	return strings.TrimPrefix(p, "/"), nil
}

// Upload сохраняет объект под указанным путём. Существующий объект не перезаписывается.
func (b *Bucket) Upload(ctx context.Context, name string, r io.Reader) error {
	p, err := cleanObjectPath(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	f, err := b.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = b.fs.Remove(p)
		return fmt.Errorf("write object: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = b.fs.Remove(p)
		return fmt.Errorf("close object: %w", err)
	}

	return nil
}

// PublicURL возвращает публичный адрес объекта.
func (b *Bucket) PublicURL(name string) string {
	p, err := cleanObjectPath(name)
	if err != nil {
		return ""
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return b.baseURL + "/" + strings.Join(segments, "/")
}

// HTTPFs возвращает файловую систему для раздачи объектов по HTTP.
func (b *Bucket) HTTPFs() *afero.HttpFs {
	return afero.NewHttpFs(afero.NewReadOnlyFs(b.fs))
}
