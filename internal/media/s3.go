// Package media checks uploaded photos against the object store.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

var tracer = otel.Tracer("media")

type Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// ObjectHeader is the subset of the S3 client the verifier uses.
type ObjectHeader interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Verifier struct {
	client ObjectHeader
	bucket string
}

func NewS3Verifier(client ObjectHeader, bucket string) *S3Verifier {
	return &S3Verifier{client: client, bucket: bucket}
}

// NewS3Client builds a client from opts. Static credentials are used when
// both keys are set, otherwise the default chain applies. A custom
// endpoint switches to path-style addressing for MinIO and LocalStack.
func NewS3Client(ctx context.Context, opts Options) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Verify fails with a validation error naming the first key that is not
// in the bucket.
func (v *S3Verifier) Verify(ctx context.Context, keys []string) error {
	ctx, span := tracer.Start(ctx, "media.verify", trace.WithAttributes(
		attribute.String("media.bucket", v.bucket),
		attribute.Int("media.keys", len(keys)),
	))
	defer span.End()

	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			return domain.Validation("photo key cannot be empty")
		}

		_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(v.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			continue
		}

		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return domain.Validation("photo %s has not been uploaded", key)
		}
		span.RecordError(err)
		return fmt.Errorf("head object %s: %w", key, err)
	}
	return nil
}
