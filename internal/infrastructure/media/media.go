// Package media stores staged uploads in object storage and returns their
// public URLs.
package media

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var ErrEmptyPath = errors.New("media: empty local path")

// Uploader stores the file at localPath under folder.
type Uploader interface {
	Upload(ctx context.Context, localPath, folder string) (string, error)
}

// objectKey returns folder/<uuid><ext>, keeping the original extension.
func objectKey(folder, localPath string) string {
	ext := strings.ToLower(filepath.Ext(localPath))
	return path.Join(strings.Trim(folder, "/"), uuid.NewString()+ext)
}

// contentType sniffs the file so a mislabeled extension cannot pick the
// served type.
func contentType(localPath string) string {
	mt, err := mimetype.DetectFile(localPath)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}
