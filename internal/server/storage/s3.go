// Package storage issues presigned upload URLs against S3-compatible object
// storage (MinIO in development).
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/parcelsync/internal/server/config"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	now = time.Now
)

// Credential is a presigned PUT plus the URL the object will be served from.
type Credential struct {
	Key              string
	UploadURL        string
	FinalResourceURL string
}

type S3Storage struct {
	presign   *s3.PresignClient
	bucket    string
	publicURL string
	validity  time.Duration
}

// NewS3Storage builds a presign client from static credentials.
func NewS3Storage(ctx context.Context, c *config.Config) (*S3Storage, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(c.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(strings.TrimRight(c.S3BaseEndpoint, "/"))
		o.UsePathStyle = true
	})

	public := c.S3PublicBaseURL
	if public == "" {
		public = strings.TrimRight(c.S3BaseEndpoint, "/") + "/" + c.S3Bucket
	}

	return &S3Storage{
		presign:   s3.NewPresignClient(client),
		bucket:    c.S3Bucket,
		publicURL: strings.TrimRight(public, "/"),
		validity:  c.UploadCredentialValidity,
	}, nil
}

// ObjectKey returns a fresh date-partitioned key for a file extension.
func ObjectKey(extension string) string {
	d := now().UTC()
	key := fmt.Sprintf("parcels/%04d/%02d/%02d/%s", d.Year(), d.Month(), d.Day(), uuid.NewString())
	if ext := strings.TrimPrefix(extension, "."); ext != "" {
		key += "." + strings.ToLower(ext)
	}
	return key
}

// PresignUpload returns a single-use PUT URL for a new object.
func (s *S3Storage) PresignUpload(ctx context.Context, extension, contentType string) (Credential, error) {
	key := ObjectKey(extension)

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(s.presign, ctx, in, s3.WithPresignExpires(s.validity))
	if err != nil {
		return Credential{}, fmt.Errorf("presign put: %w", err)
	}

	return Credential{
		Key:              key,
		UploadURL:        req.URL,
		FinalResourceURL: s.publicURL + "/" + key,
	}, nil
}
