// Package storage hosts rendered media on an S3 compatible object store (AWS S3, MinIO)
// so the Graph API can fetch it by URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

const (
	numUploadRetries     = 3
	defaultRegion        = "us-east-1"
	defaultPresignExpiry = time.Hour
	partSizeMB           = 10
)

// S3Params ...
type S3Params struct {
	// Endpoint is the API endpoint, e.g. http://minio:9000. Empty means AWS S3.
	Endpoint string
	// PublicURL replaces Endpoint in presigned URLs when both are set.
	PublicURL       string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PresignExpiry   time.Duration
}

// S3Host uploads objects and hands out presigned GET URLs.
type S3Host struct {
	client        *s3.Client
	presigner     *s3.PresignClient
	bucket        string
	endpoint      string
	publicURL     string
	presignExpiry time.Duration
	retryWait     time.Duration
	logger        log.Logger
}

// NewS3Host builds the S3 client. It does not touch the network.
func NewS3Host(ctx context.Context, params S3Params, logger log.Logger) (*S3Host, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}
	if params.Endpoint == "" && params.PublicURL != "" {
		// the public URL doubles as API endpoint when no private one is configured
		params.Endpoint = params.PublicURL
	}
	if params.Region == "" {
		params.Region = defaultRegion
	}
	if params.PresignExpiry <= 0 {
		params.PresignExpiry = defaultPresignExpiry
	}

	cfg, err := loadAWSCredentials(ctx, params.Region, params.AccessKeyID, params.SecretAccessKey, logger)
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}

	client := s3.NewFromConfig(*cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Host{
		client:        client,
		presigner:     s3.NewPresignClient(client),
		bucket:        params.Bucket,
		endpoint:      params.Endpoint,
		publicURL:     params.PublicURL,
		presignExpiry: params.PresignExpiry,
		retryWait:     5 * time.Second,
		logger:        logger,
	}, nil
}

func loadAWSCredentials(
	ctx context.Context,
	region string,
	accessKeyID string,
	secretKey string,
	logger log.Logger,
) (*aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretKey != "" {
		logger.Debugf("S3 credentials provided, using them...")
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config, %v", err)
	}

	return &cfg, nil
}

// Bucket ...
func (h *S3Host) Bucket() string {
	return h.bucket
}

// EnsureBucket creates the bucket when it does not exist yet.
func (h *S3Host) EnsureBucket(ctx context.Context) error {
	_, err := h.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(h.bucket),
	})
	if err == nil {
		h.logger.Debugf("Bucket %s already exists", h.bucket)
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("check bucket %s: %w", h.bucket, err)
	}

	h.logger.Infof("Bucket %s not found, creating it", h.bucket)
	if _, err := h.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(h.bucket),
	}); err != nil {
		return fmt.Errorf("create bucket %s: %w", h.bucket, err)
	}

	return nil
}

// Upload puts the file at localPath under objectName with a content type guessed from its extension.
func (h *S3Host) Upload(ctx context.Context, localPath, objectName string) error {
	if objectName == "" {
		objectName = filepath.Base(localPath)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	contentType := ContentType(localPath)
	err = retry.Times(numUploadRetries).Wait(h.retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		file, err := os.Open(localPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", localPath, err), true
		}
		defer file.Close() //nolint:errcheck

		uploader := manager.NewUploader(h.client, func(u *manager.Uploader) {
			u.PartSize = partSizeMB * 1024 * 1024
		})

		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Body:          file,
			Bucket:        aws.String(h.bucket),
			Key:           aws.String(objectName),
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(info.Size()),
		})
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("upload %s: %w", objectName, err), true
			}
			h.logger.Warnf("Upload of %s failed (attempt %d): %s", objectName, attempt+1, err)
			return fmt.Errorf("upload %s: %w", objectName, err), false
		}

		return nil, true
	})
	if err != nil {
		return err
	}

	h.logger.Printf("Uploaded %s to %s/%s (%s, %s)", localPath, h.bucket, objectName, contentType, units.HumanSizeWithPrecision(float64(info.Size()), 3))
	return nil
}

// PublicURL returns a presigned GET URL of the object, pointed at the public host when one is configured.
func (h *S3Host) PublicURL(ctx context.Context, objectName string) (string, error) {
	req, err := h.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(objectName),
	}, s3.WithPresignExpires(h.presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectName, err)
	}

	return rewritePublicURL(req.URL, h.endpoint, h.publicURL), nil
}

// Delete removes the object.
func (h *S3Host) Delete(ctx context.Context, objectName string) error {
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", objectName, err)
	}
	return nil
}

func rewritePublicURL(presigned, endpoint, publicURL string) string {
	if endpoint == "" || publicURL == "" {
		return presigned
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	publicURL = strings.TrimSuffix(publicURL, "/")
	if endpoint == publicURL {
		return presigned
	}
	return strings.Replace(presigned, endpoint, publicURL, 1)
}

// ContentType guesses the MIME type of a media file from its extension.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}

	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}

	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		switch apiError.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
