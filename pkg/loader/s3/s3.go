package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/txgnn-explorer/backend/pkg/loader"
)

// S3DataFileLoader is a DataFileLoader that reads artifacts from an S3
// bucket. DataFile.Path is used as the object key.
//
// This loader is useful when the precomputed data folder is published to
// S3 (or an S3-compatible store like MinIO) instead of being shipped with
// the server.
type S3DataFileLoader struct {
	bucket string
	client *s3.Client
}

// NewS3DataFileLoaderWithClient creates a loader reusing a configured client.
func NewS3DataFileLoaderWithClient(bucket string, client *s3.Client) *S3DataFileLoader {
	return &S3DataFileLoader{
		bucket: bucket,
		client: client,
	}
}

// NewS3DataFileLoaderParams defines the configuration parameters for
// creating a new S3DataFileLoader.
//
// Endpoint allows overriding the S3 endpoint (useful for MinIO).
// AccessKey and SecretKey provide static credentials.
type NewS3DataFileLoaderParams struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3DataFileLoader creates a new S3DataFileLoader with static credentials.
//
// Example:
//
//	l, err := s3.NewS3DataFileLoader(ctx, s3.NewS3DataFileLoaderParams{
//		Bucket:    "txgnn",
//		Endpoint:  "http://minio:9000",
//		Region:    "us-east-1",
//		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
//		SecretKey: os.Getenv("AWS_SECRET_KEY"),
//	})
//	file := loader.NewDataFile("txgnn_data_v2", "filtered_predictions.csv", l)
//	rc, err := file.Open(ctx)
func NewS3DataFileLoader(ctx context.Context, params NewS3DataFileLoaderParams) (*S3DataFileLoader, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(params.Region),
		config.WithBaseEndpoint(params.Endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &S3DataFileLoader{
		bucket: params.Bucket,
		client: client,
	}, nil
}

func objectKey(file loader.DataFile) string {
	return strings.TrimPrefix(path.Clean(file.Path), "/")
}

// Open streams the object body. The caller closes it.
func (l *S3DataFileLoader) Open(ctx context.Context, file loader.DataFile) (io.ReadCloser, error) {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(objectKey(file)),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", l.bucket, objectKey(file), err)
	}
	return out.Body, nil
}

func (l *S3DataFileLoader) Exists(ctx context.Context, file loader.DataFile) bool {
	_, err := l.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(objectKey(file)),
	})
	return err == nil
}

// Create buffers the content and uploads it on Close.
func (l *S3DataFileLoader) Create(ctx context.Context, file loader.DataFile) (io.WriteCloser, error) {
	return &objectWriter{ctx: ctx, loader: l, key: objectKey(file)}, nil
}

type objectWriter struct {
	bytes.Buffer
	ctx    context.Context
	loader *S3DataFileLoader
	key    string
}

func (w *objectWriter) Close() error {
	contentType := mime.TypeByExtension(path.Ext(w.key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := w.loader.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.loader.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", w.loader.bucket, w.key, err)
	}
	return nil
}
