package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrTooLarge    = errors.New("object exceeds size limit")
	ErrTypeDenied  = errors.New("content type not allowed")
	ErrEmptyObject = errors.New("object is empty")
)

// AllowedTypes are the content types accepted for upload: images, PDFs,
// office documents and plain text.
var AllowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
	"text/plain",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// Object is a stored blob.
type Object struct {
	Key      string
	URL      string
	Size     int64
	MimeType string
}

// Store keeps uploaded blobs and serves them by URL.
type Store interface {
	Name() string
	Put(ctx context.Context, key string, data []byte, contentType string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// Config selects and configures a Store.
type Config struct {
	CloudinaryURL string
	Folder        string
	LocalDir      string
	BaseURL       string
}

// New returns a Cloudinary store when a URL is configured and a local disk store otherwise.
func New(cfg Config, logger *slog.Logger) (Store, error) {
	if cfg.CloudinaryURL != "" {
		store, err := NewCloudinaryStore(cfg.CloudinaryURL, cfg.Folder, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	logger.Warn("Cloudinary not configured, storing uploads on local disk", "dir", cfg.LocalDir)
	return NewLocalStore(cfg.LocalDir, cfg.BaseURL, logger)
}

// Sniffed is an upload read into memory with its detected type.
type Sniffed struct {
	Data     []byte
	MimeType string
	Ext      string
}

// Sniff reads at most maxSize bytes from r and detects the content type from
// the bytes rather than the client's claim.
func Sniff(r io.Reader, maxSize int64) (*Sniffed, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyObject
	}

	mtype := mimetype.Detect(data)
	if !allowed(mtype) {
		return nil, fmt.Errorf("%w: %s", ErrTypeDenied, mtype.String())
	}

	return &Sniffed{
		Data:     data,
		MimeType: baseType(mtype.String()),
		Ext:      mtype.Extension(),
	}, nil
}

func allowed(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if mimetype.EqualsAny(m.String(), AllowedTypes...) {
			return true
		}
	}
	return false
}

func baseType(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// NewKey builds a collision-free object key under folder.
func NewKey(folder, ext string) string {
	return path.Join(folder, uuid.NewString()+ext)
}
