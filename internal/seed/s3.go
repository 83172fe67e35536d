package seed

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of the S3 client we use.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader writes objects into one bucket.
type S3Uploader struct {
	api    PutObjectAPI
	bucket string
}

// NewS3Uploader creates an uploader for bucket.
func NewS3Uploader(api PutObjectAPI, bucket string) *S3Uploader {
	return &S3Uploader{api: api, bucket: bucket}
}

// Upload implements Uploader.
func (u *S3Uploader) Upload(ctx context.Context, key string, body []byte) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := u.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", u.bucket, key, err)
	}
	return nil
}

// Destination implements Uploader.
func (u *S3Uploader) Destination(prefix string) string {
	return fmt.Sprintf("s3://%s/%s/", u.bucket, prefix)
}
