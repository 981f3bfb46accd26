package aws

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore wraps the S3 client for one bucket: raw uploads come out of it,
// generated certificates and pre-signed read URLs go back in.
type ObjectStore struct {
	S3      S3API
	Presign S3PresignAPI
	Bucket  string
}

// NewObjectStore returns an ObjectStore bound to a bucket.
func NewObjectStore(s3Client S3API, presign S3PresignAPI, bucket string) *ObjectStore {
	return &ObjectStore{
		S3:      s3Client,
		Presign: presign,
		Bucket:  bucket,
	}
}

// Download fetches the full object body for key.
func (o *ObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := o.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &o.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body %q: %w", key, err)
	}
	return data, nil
}

// Upload writes data to key with the given content type.
func (o *ObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := o.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &o.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// PresignGet mints a time-limited GET URL for key.
func (o *ObjectStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := o.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &o.Bucket,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get %q: %w", key, err)
	}
	return req.URL, nil
}
