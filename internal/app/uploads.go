package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hostel_finder/internal/domain"
)

// MaxImageBytes is the default per-file upload limit (5 MiB).
const MaxImageBytes int64 = 5 << 20

var (
	acceptedExt  = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
	acceptedMIME = map[string]bool{"image/jpeg": true, "image/png": true}
)

// sniffLen is how much of a file is read to detect its content type.
const sniffLen = 3072

// ImageUploader validates images and forwards them to blob storage.
type ImageUploader struct {
	blobs    domain.BlobStore
	bucket   string
	maxBytes int64
	newName  func() string
}

func NewImageUploader(b domain.BlobStore, bucket string, maxBytes int64) *ImageUploader {
	if maxBytes <= 0 {
		maxBytes = MaxImageBytes
	}
	return &ImageUploader{blobs: b, bucket: bucket, maxBytes: maxBytes, newName: uuid.NewString}
}

// FilterBatch drops oversize files and files that are not JPEG/PNG by name.
// No I/O happens here; the storage boundary enforces the limit again.
func (u *ImageUploader) FilterBatch(files []domain.ImageFile) []domain.ImageFile {
	out := make([]domain.ImageFile, 0, len(files))
	for _, f := range files {
		if f.Size > u.maxBytes {
			log.Debug().Str("file", f.Name).Int64("size", f.Size).Msg("image skipped: over size limit")
			continue
		}
		if !acceptedExt[strings.ToLower(path.Ext(f.Name))] {
			log.Debug().Str("file", f.Name).Msg("image skipped: unsupported extension")
			continue
		}
		out = append(out, f)
	}
	return out
}

// Upload stores f under a fresh random name and returns its public URL.
func (u *ImageUploader) Upload(ctx context.Context, f domain.ImageFile) (string, error) {
	if f.Size > u.maxBytes {
		return "", domain.UploadError(domain.ErrImageTooLarge)
	}
	if f.Open == nil {
		return "", domain.UploadError(fmt.Errorf("%s: no content", f.Name))
	}
	rc, err := f.Open()
	if err != nil {
		return "", domain.UploadError(err)
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", domain.UploadError(err)
	}
	head = head[:n]
	mt := mimetype.Detect(head)
	if !acceptedMIME[mt.String()] {
		return "", domain.UploadError(fmt.Errorf("%w: %s", domain.ErrUnsupportedImage, mt.String()))
	}

	objectPath := u.objectName(f.Name, mt.Extension())
	body := io.MultiReader(bytes.NewReader(head), rc)
	if err := u.blobs.Upload(ctx, u.bucket, objectPath, body, mt.String()); err != nil {
		return "", domain.UploadError(err)
	}
	url := u.blobs.PublicURL(u.bucket, objectPath)
	log.Info().Str("bucket", u.bucket).Str("path", objectPath).Msg("image uploaded")
	return url, nil
}

// Discard removes an object previously returned by Upload. Unknown URLs are ignored.
func (u *ImageUploader) Discard(ctx context.Context, publicURL string) error {
	prefix := u.blobs.PublicURL(u.bucket, "")
	if !strings.HasPrefix(publicURL, prefix) {
		return nil
	}
	return u.blobs.Delete(ctx, u.bucket, strings.TrimPrefix(publicURL, prefix))
}

func (u *ImageUploader) objectName(original, detectedExt string) string {
	ext := strings.ToLower(path.Ext(original))
	if !acceptedExt[ext] {
		ext = detectedExt
	}
	return u.newName() + ext
}
