// Package assets persists generated image bytes to local disk and exposes
// them under a public base URL. Providers that answer with hosted URLs never
// touch this package; it exists for providers that return inline image data.
package assets

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrSaveFailed wraps filesystem failures while persisting an image.
var ErrSaveFailed = errors.New("assets: image save failed")

// FileStore writes image files under SavePath and builds URLs from
// PublicBaseURL.
type FileStore struct {
	savePath      string
	publicBaseURL string
	logger        *slog.Logger
}

// NewFileStore verifies configuration and creates the store. The save
// directory is created if missing.
func NewFileStore(savePath, publicBaseURL string, logger *slog.Logger) (*FileStore, error) {
	if savePath == "" {
		return nil, errors.New("assets: save path is not configured")
	}
	if publicBaseURL == "" {
		return nil, errors.New("assets: public base URL is not configured")
	}
	if err := os.MkdirAll(savePath, 0755); err != nil {
		return nil, fmt.Errorf("assets: create save path: %w", err)
	}

	return &FileStore{
		savePath:      savePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}, nil
}

// SaveImage writes the image bytes under a fresh UUID name and returns the
// public URL.
func (f *FileStore) SaveImage(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image data", ErrSaveFailed)
	}

	fileName := uuid.NewString() + extensionFor(mimeType)
	filePath := filepath.Join(f.savePath, fileName)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	url := f.publicBaseURL + "/" + fileName
	f.logger.Debug("Image asset saved",
		"path", filePath,
		"url", url,
		"size_bytes", len(data),
	)
	return url, nil
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
