// Package assets issues presigned S3 URLs for chat attachments. Clients
// upload directly to the bucket and send the resulting key with the message.
package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const defaultURLTTL = 5 * time.Minute

// Uploader issues presigned PUT and GET URLs against one bucket.
type Uploader struct {
	bucket    string
	prefix    string
	ttl       time.Duration
	presigner *s3.PresignClient
}

// New builds an Uploader for the given bucket and region. A zero ttl falls
// back to the default.
func New(ctx context.Context, bucket, region, prefix string, ttl time.Duration) (*Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("assets: bucket required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultURLTTL
	}
	return &Uploader{
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		ttl:       ttl,
		presigner: s3.NewPresignClient(s3.NewFromConfig(cfg)),
	}, nil
}

// PresignUpload returns a presigned PUT URL plus the object key the client
// must upload to. The key embeds the uploading user so objects are traceable.
func (u *Uploader) PresignUpload(ctx context.Context, userID, fileName, contentType string) (string, string, error) {
	key := fmt.Sprintf("%s/%s/%s-%s", u.prefix, userID, uuid.NewString(), sanitizeName(fileName))
	if u.prefix == "" {
		key = strings.TrimPrefix(key, "/")
	}
	out, err := u.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(u.ttl))
	if err != nil {
		return "", "", err
	}
	return out.URL, key, nil
}

// PresignRead returns a presigned GET URL for an uploaded object.
func (u *Uploader) PresignRead(ctx context.Context, key string) (string, error) {
	out, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.ttl))
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// sanitizeName strips path separators and spaces from client file names.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		name = "upload"
	}
	return name
}
