package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"resuchain/resume-pipeline/internal/apperror"
	"resuchain/resume-pipeline/internal/config"
)

type s3Storage struct {
	client *s3.Client
	bucket string
	newID  IDGenerator
}

// NewS3Storage builds a gateway over any S3 compatible object store.
// A custom endpoint (R2, MinIO) switches the client to path-style addressing.
func NewS3Storage(ctx context.Context, cfg config.S3Config, newID IDGenerator) (StorageGateway, error) {
	if newID == nil {
		newID = NewUUIDGenerator()
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &s3Storage{
		client: client,
		bucket: cfg.Bucket,
		newID:  newID,
	}, nil
}

// Store implements StorageGateway.
func (s *s3Storage) Store(ctx context.Context, originalName string, data []byte) (string, error) {
	key := BuildLocator(s.newID(), originalName)

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", apperror.StorageFailure("failed to put object", err)
	}

	return key, nil
}

// Read implements StorageGateway.
func (s *s3Storage) Read(ctx context.Context, locator string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		return nil, apperror.StorageFailure("failed to get object", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperror.StorageFailure("failed to read object body", err)
	}
	return data, nil
}

// Delete implements StorageGateway.
func (s *s3Storage) Delete(ctx context.Context, locator string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil
		}
		return apperror.StorageFailure("failed to delete object", err)
	}
	return nil
}
