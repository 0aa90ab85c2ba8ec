package media

import (
	"context"
	"os"

	"cloud.google.com/go/storage"

	"github.com/oksasatya/vidtube-api/pkg/helpers"
)

type GCSUploader struct {
	client *storage.Client
	bucket string
}

func NewGCSUploader(client *storage.Client, bucket string) *GCSUploader {
	return &GCSUploader{client: client, bucket: bucket}
}

func (u *GCSUploader) Upload(ctx context.Context, localPath, folder string) (string, error) {
	if localPath == "" {
		return "", ErrEmptyPath
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return helpers.UploadObject(ctx, u.client, u.bucket, objectKey(folder, localPath), contentType(localPath), f)
}
