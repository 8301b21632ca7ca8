// Package blob is a domain.BlobStore on the local filesystem, served back under a public base URL.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"hostel_finder/internal/domain"
)

var ErrBadPath = errors.New("blob: invalid object path")

type Local struct {
	root       string
	publicBase string
	maxBytes   int64
}

// NewLocal stores objects under root/<bucket>/<path>; publicBase is where Handler is mounted
// (e.g. "http://localhost:8080/uploads").
func NewLocal(root, publicBase string, maxBytes int64) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir uploads dir: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Local{root: root, publicBase: strings.TrimRight(publicBase, "/"), maxBytes: maxBytes}, nil
}

func (l *Local) file(bucket, p string) (string, error) {
	clean := path.Clean("/" + bucket + "/" + p)
	if p == "" || bucket == "" || strings.Contains(bucket, "/") || clean != "/"+bucket+"/"+p {
		return "", ErrBadPath
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// Upload writes through a temp file so readers never see a partial object.
func (l *Local) Upload(ctx context.Context, bucket, p string, r io.Reader, contentType string) error {
	dst, err := l.file(bucket, p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir bucket dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, l.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if n > l.maxBytes {
		return domain.ErrImageTooLarge
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("blob: %s/%s already exists", bucket, p)
	}
	return os.Rename(tmp.Name(), dst)
}

func (l *Local) PublicURL(bucket, p string) string {
	return l.publicBase + "/" + bucket + "/" + p
}

// Delete removes the object; a missing object is not an error.
func (l *Local) Delete(_ context.Context, bucket, p string) error {
	f, err := l.file(bucket, p)
	if err != nil {
		return err
	}
	if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Handler serves stored objects read-only. Directory listings are refused.
func (l *Local) Handler() http.Handler {
	fsrv := http.FileServer(http.Dir(l.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fsrv.ServeHTTP(w, r)
	})
}
