package assets

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// testUploader signs against static credentials; presigning is pure local
// computation, so no bucket needs to exist.
func testUploader(t *testing.T) *Uploader {
	t.Helper()
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}
	return &Uploader{
		bucket:    "pix-test",
		prefix:    "chat",
		ttl:       time.Minute,
		presigner: s3.NewPresignClient(s3.NewFromConfig(cfg)),
	}
}

func TestPresignUpload(t *testing.T) {
	u := testUploader(t)

	url, key, err := u.PresignUpload(context.Background(), "alice", "my photo.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("presign upload: %v", err)
	}
	if !strings.HasPrefix(key, "chat/alice/") {
		t.Fatalf("key missing prefix and user: %s", key)
	}
	if !strings.HasSuffix(key, "-my_photo.jpg") {
		t.Fatalf("file name not sanitized into key: %s", key)
	}
	if !strings.Contains(url, "pix-test") || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("unexpected upload url: %s", url)
	}
}

func TestPresignRead(t *testing.T) {
	u := testUploader(t)

	_, key, err := u.PresignUpload(context.Background(), "alice", "pic.png", "image/png")
	if err != nil {
		t.Fatalf("presign upload: %v", err)
	}
	url, err := u.PresignRead(context.Background(), key)
	if err != nil {
		t.Fatalf("presign read: %v", err)
	}
	if !strings.Contains(url, "pix-test") || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("unexpected read url: %s", url)
	}
	if !strings.Contains(url, "pic.png") {
		t.Fatalf("read url does not reference the object key: %s", url)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"a b.png":    "a_b.png",
		"../../e":    ".._.._e",
		"win\\d.jpg": "win_d.jpg",
		"":           "upload",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
