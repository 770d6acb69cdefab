package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

// objectClient is the part of the S3 client the store uses.
type objectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store uploads images as private objects under a key prefix.
type S3Store struct {
	client objectClient
	bucket string
	prefix string
	logger *logrus.Logger
}

// NewS3Store builds an S3 client from the default AWS credential chain. A
// configured endpoint (MinIO, LocalStack) switches to path-style addressing.
func NewS3Store(ctx context.Context, config domain.UploadConfig, logger *logrus.Logger) (*S3Store, error) {
	if config.S3Bucket == "" {
		return nil, fmt.Errorf("s3 image store requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.S3Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if config.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(config.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, config.S3Bucket, config.S3Prefix, logger), nil
}

func newS3Store(client objectClient, bucket, prefix string, logger *logrus.Logger) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Save uploads body and returns the object's s3:// URI.
func (s *S3Store) Save(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	// The SDK needs a seekable body to sign the payload.
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", name, err)
	}

	key := s.prefix + name
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", key, s.bucket, err)
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    key,
		"bytes":  len(data),
	}).Debug("Image uploaded")
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Delete removes the object stored under name. S3 reports success for
// missing keys.
func (s *S3Store) Delete(ctx context.Context, name string) error {
	key := s.prefix + name
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from bucket %s: %w", key, s.bucket, err)
	}
	s.logger.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    key,
	}).Debug("Image deleted")
	return nil
}
