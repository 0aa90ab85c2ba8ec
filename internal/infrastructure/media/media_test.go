package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

// 1x1 transparent PNG
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

func writePNG(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, pngBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestObjectKeyKeepsExtension(t *testing.T) {
	a := objectKey("/avatars/", "/tmp/Me.PNG")
	b := objectKey("avatars", "/tmp/Me.PNG")
	if !strings.HasPrefix(a, "avatars/") || !strings.HasSuffix(a, ".png") {
		t.Fatalf("bad key %q", a)
	}
	if a == b {
		t.Fatal("keys must be unique")
	}
}

func TestContentTypeSniffed(t *testing.T) {
	p := writePNG(t, "photo.txt")
	if ct := contentType(p); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if ct := contentType(filepath.Join(t.TempDir(), "missing")); ct != "application/octet-stream" {
		t.Fatalf("missing file content type = %q", ct)
	}
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u := NewLocalUploader(dir, "http://localhost:8080/static/")
	src := writePNG(t, "avatar.png")

	url, err := u.Upload(context.Background(), src, "avatars")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:8080/static/avatars/") {
		t.Fatalf("url = %q", url)
	}
	key := strings.TrimPrefix(url, "http://localhost:8080/static/")
	got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil || len(got) != len(pngBytes) {
		t.Fatalf("stored file: %v (%d bytes)", err, len(got))
	}

	if _, err := u.Upload(context.Background(), "", "avatars"); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
}

func TestS3UploaderAgainstCompatibleEndpoint(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotType  string
		gotBytes int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotPath, gotType, gotBytes = r.URL.Path, r.Header.Get("Content-Type"), len(body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := NewS3Uploader(context.Background(), S3Config{
		Region: "us-east-1", Bucket: "media", AccessKeyID: "key", SecretAccessKey: "secret", Endpoint: srv.URL,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	url, err := u.Upload(context.Background(), writePNG(t, "cover.png"), "covers")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.HasPrefix(gotPath, "/media/covers/") || gotType != "image/png" || gotBytes == 0 {
		t.Fatalf("unexpected request path=%q type=%q bytes=%d", gotPath, gotType, gotBytes)
	}
	if url != srv.URL+gotPath {
		t.Fatalf("url = %q, want %q", url, srv.URL+gotPath)
	}
}

func TestS3URLForAWS(t *testing.T) {
	u := &S3Uploader{cfg: S3Config{Region: "eu-west-1", Bucket: "media"}}
	if got := u.url("avatars/a.png"); got != "https://media.s3.eu-west-1.amazonaws.com/avatars/a.png" {
		t.Fatalf("url = %q", got)
	}
}

type stubUploader struct {
	calls int
	err   error
}

func (s *stubUploader) Upload(context.Context, string, string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "https://cdn.test/x", nil
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubUploader{err: errors.New("backend down")}
	b := NewBreakerUploader(stub, BreakerSettings{Name: "uploads", ConsecutiveFailures: 2, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		if _, err := b.Upload(context.Background(), "f", "avatars"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if b.State() != "open" {
		t.Fatalf("state = %s", b.State())
	}
	_, err := b.Upload(context.Background(), "f", "avatars")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("backend called %d times while open", stub.calls)
	}
}

func TestBreakerPassesThrough(t *testing.T) {
	b := NewBreakerUploader(&stubUploader{}, BreakerSettings{Name: "uploads"}, nil)
	url, err := b.Upload(context.Background(), "f", "avatars")
	if err != nil || url != "https://cdn.test/x" {
		t.Fatalf("got %q %v", url, err)
	}
}

type blockingUploader struct{}

func (blockingUploader) Upload(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestBreakerCallTimeout(t *testing.T) {
	b := NewBreakerUploader(blockingUploader{}, BreakerSettings{Name: "uploads", CallTimeout: 20 * time.Millisecond}, nil)
	start := time.Now()
	_, err := b.Upload(context.Background(), "f", "avatars")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("upload was not bounded")
	}
}
