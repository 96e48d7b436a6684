package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
	logger *slog.Logger
}

func NewCloudinaryStore(cloudinaryURL, folder string, logger *slog.Logger) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init from URL: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: folder, logger: logger}, nil
}

func (s *CloudinaryStore) Name() string { return "cloudinary" }

func (s *CloudinaryStore) Put(ctx context.Context, key string, data []byte, contentType string) (*Object, error) {
	publicID := strings.TrimSuffix(key, path.Ext(key))

	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     path.Base(publicID),
		Folder:       path.Join(s.folder, path.Dir(publicID)),
		ResourceType: resourceType(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("cloudinary upload: empty response")
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}

	url := resp.SecureURL
	if url == "" {
		url = resp.URL
	}
	if url == "" {
		return nil, fmt.Errorf("cloudinary upload: no URL returned")
	}

	s.logger.Info("Uploaded to cloudinary", "public_id", resp.PublicID, "bytes", len(data))
	return &Object{
		Key:      resp.PublicID,
		URL:      url,
		Size:     int64(len(data)),
		MimeType: contentType,
	}, nil
}

// Delete destroys an object by its public id. The resource type is not kept,
// so images are tried before raw files. An object already gone is not an error.
func (s *CloudinaryStore) Delete(ctx context.Context, key string) error {
	for _, rt := range []string{"image", "raw"} {
		result, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: key, ResourceType: rt})
		if err != nil {
			return fmt.Errorf("cloudinary destroy: %w", err)
		}
		switch result.Result {
		case "ok":
			return nil
		case "not found":
			continue
		default:
			return fmt.Errorf("cloudinary destroy %s: %s", key, result.Result)
		}
	}
	s.logger.Warn("Cloudinary object already gone", "public_id", key)
	return nil
}

func resourceType(contentType string) string {
	if strings.HasPrefix(contentType, "image/") {
		return "image"
	}
	return "raw"
}
