package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader copies files under Dir, which the HTTP server exposes at
// BaseURL. Meant for development and tests.
type LocalUploader struct {
	Dir     string
	BaseURL string
}

func NewLocalUploader(dir, baseURL string) *LocalUploader {
	return &LocalUploader{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (u *LocalUploader) Upload(ctx context.Context, localPath, folder string) (string, error) {
	if localPath == "" {
		return "", ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := objectKey(folder, localPath)
	dst := filepath.Join(u.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return u.BaseURL + "/" + key, nil
}
