package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/vozurbana/voz-urbana-api/config"
)

var ErrObjectNotFound = errors.New("upload not found")

var _ ObjectStore = (*S3Store)(nil)

// ObjectStore is the blob capability the report handlers consume: store
// bytes, get a key back; fetch a key, get the bytes and content type back.
type ObjectStore interface {
	Store(ctx context.Context, data []byte, contentType, originalName string) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, string, error)
}

// s3API is the slice of the S3 client the store uses; tests swap in a fake.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Store struct {
	logger *slog.Logger
	client s3API
	bucket string
}

// NewS3Store builds the S3-backed object store from static credentials.
// A non-empty endpoint points the client at an S3-compatible server
// (e.g. minio) with path-style addressing.
func NewS3Store(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		logger: logger,
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Store writes the object under a collision-free key derived from a random
// uuid plus the original filename, and returns the key.
func (s *S3Store) Store(ctx context.Context, data []byte, contentType, originalName string) (string, error) {
	key := uuid.NewString() + "_" + originalName

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put failed: %w", err)
	}

	s.logger.InfoContext(ctx, "Object stored",
		slog.String("key", key), slog.Int("bytes", len(data)))
	return key, nil
}

// Fetch reads the object back together with its content type.
func (s *S3Store) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("s3 get failed: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading s3 object body: %w", err)
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = contentTypeForName(key)
	}
	return data, contentType, nil
}

func contentTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
