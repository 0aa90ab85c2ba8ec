package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Stager saves multipart files into a temp dir for the service to upload.
type Stager struct {
	Dir      string
	MaxBytes int64
}

var allowedImageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

var errTooLarge = errors.New("file too large")

// Stage stores the form file named field and returns its local path. A
// missing field yields "" and no error.
func (s Stager) Stage(c *gin.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if s.MaxBytes > 0 && fh.Size > s.MaxBytes {
		return "", fmt.Errorf("%s: %w", field, errTooLarge)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExt[ext] {
		return "", fmt.Errorf("%s: unsupported file type %q", field, ext)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(s.Dir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", err
	}
	return dst, nil
}
