package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker"

	"github.com/pralapin/school-service/internal/config"
	"github.com/pralapin/school-service/internal/core/ports"
)

// S3 stores objects in a single bucket.
type S3 struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
	cb       *gobreaker.CircuitBreaker
}

var _ ports.ObjectStore = (*S3)(nil)

type S3Options struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Bucket    string
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		// Static credentials (MinIO or explicit keys)
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{
		client:   client,
		bucket:   opts.Bucket,
		region:   opts.Region,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		cb:       config.NewCircuitBreaker("S3-" + opts.Bucket),
	}, nil
}

// URL is the public address of a key.
func (s *S3) URL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to s3: %w", config.Unavailable(err))
	}
	return s.URL(key), nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to delete from s3: %w", config.Unavailable(err))
	}
	return nil
}
