// Package archive keeps a copy of uploaded CVs in object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver stores an uploaded file and returns a URI describing where it went.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Nop discards uploads.
type Nop struct{}

func (Nop) Put(context.Context, string, []byte, string) (string, error) { return "", nil }

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config describes an S3-compatible bucket such as AWS S3, Cloudflare R2 or MinIO.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
	PathStyle bool   `mapstructure:"path-style"`
}

// S3 uploads files to a bucket under an optional key prefix.
type S3 struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3 builds an S3 archiver. Static credentials are used when both keys are set;
// otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (a *S3) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objectKey := key
	if a.prefix != "" {
		objectKey = a.prefix + "/" + key
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", objectKey, err)
	}

	return fmt.Sprintf("s3://%s/%s", a.bucket, objectKey), nil
}
