// Package storage provides the S3 operations for the upload stage: an
// existence probe and an idempotent upload that waits for object visibility.
package storage

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"time"

	"github.com/amiup/amiup/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// objectWaitTimeout bounds the wait for an uploaded object to become visible.
const objectWaitTimeout = 15 * time.Minute

// api is the subset of the S3 client the upload stage needs.
type api interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client provides S3 storage operations against a single bucket.
type Client struct {
	api    api
	bucket string
}

// NewClient creates an S3 client using the default credential chain.
// An empty region defers to the ambient AWS configuration.
func NewClient(ctx context.Context, bucket, region string) (*Client, error) {
	slog.Info("s3_client_init", "bucket", bucket, "region", region)

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return newClient(s3.NewFromConfig(cfg), bucket), nil
}

func newClient(api api, bucket string) *Client {
	return &Client{api: api, bucket: bucket}
}

// Bucket returns the bucket this client operates on.
func (c *Client) Bucket() string {
	return c.bucket
}

// Exists checks whether an object exists. Only a NotFound response class is
// treated as absence; every other error propagates so that transient or auth
// failures never trigger a spurious upload.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			slog.Info("s3_object_not_found", "key", key)
			return false, nil
		}
		slog.Error("s3_head_object_failed", "key", key, "error", err)
		return false, errors.Wrap(err, "failed to check object existence")
	}

	slog.Info("s3_object_exists", "key", key)
	return true, nil
}

// UploadIfAbsent uploads a local file to the given key unless the object
// already exists. After an upload it blocks until a subsequent existence
// probe confirms visibility, so later stages never race the storage backend.
func (c *Client) UploadIfAbsent(ctx context.Context, key, localPath string) error {
	exists, err := c.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		slog.Info("s3_upload_skipped", "bucket", c.bucket, "key", key)
		return nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		slog.Error("image_file_open_failed", "path", localPath, "error", err)
		return errors.Wrap(err, "failed to open image file")
	}
	defer f.Close()

	slog.Info("s3_upload_start", "bucket", c.bucket, "key", key, "file", localPath)

	if _, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		slog.Error("s3_upload_failed", "key", key, "error", err)
		return errors.Wrap(err, "failed to upload image")
	}

	waiter := s3.NewObjectExistsWaiter(c.api)
	if err := waiter.Wait(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, objectWaitTimeout); err != nil {
		slog.Error("s3_object_wait_failed", "key", key, "error", err)
		return errors.Wrap(err, "failed waiting for object visibility")
	}

	slog.Info("s3_upload_complete", "bucket", c.bucket, "key", key)
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
