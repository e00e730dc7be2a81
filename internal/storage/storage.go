// Package storage issues presigned URLs for archive files kept in an
// S3-compatible bucket and enforces the upload type and size rules.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	ErrNotConfigured  = errors.New("object storage is not configured")
	ErrTypeNotAllowed = errors.New("file type not allowed")
	ErrTooLarge       = errors.New("file too large")
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) error {
		_, err := c.DeleteObject(ctx, in)
		return err
	}
)

// Config describes the bucket. An empty Bucket disables object storage.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string // non-empty for MinIO and other S3-compatible services
	AccessKey      string
	SecretKey      string
	UploadExpiry   time.Duration
	DownloadExpiry time.Duration
}

// Client signs requests against one bucket.
type Client struct {
	cfg     Config
	s3      *s3.Client
	presign *s3.PresignClient
}

// Upload is a presigned PUT the browser performs directly against the bucket.
type Upload struct {
	URL       string              `json:"uploadUrl"`
	Method    string              `json:"method"`
	Headers   map[string][]string `json:"headers"`
	Key       string              `json:"key"`
	Bucket    string              `json:"bucket"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// New builds a client. Static credentials are used when AccessKey is set,
// otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.UploadExpiry <= 0 {
		cfg.UploadExpiry = 5 * time.Minute
	}
	if cfg.DownloadExpiry <= 0 {
		cfg.DownloadExpiry = time.Hour
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Client{cfg: cfg, s3: client, presign: s3.NewPresignClient(client)}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string { return c.cfg.Bucket }

// PresignUpload validates the file and returns a presigned PUT for a fresh
// key under folder.
func (c *Client) PresignUpload(ctx context.Context, folder, fileName, contentType string, size int64) (*Upload, error) {
	if err := CheckUpload(contentType, size); err != nil {
		return nil, err
	}
	key := ObjectKey(folder, fileName)

	req, err := presignPutObject(c.presign, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.cfg.Bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(c.cfg.UploadExpiry))
	if err != nil {
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}

	headers := map[string][]string{}
	for k, v := range req.SignedHeader {
		if strings.EqualFold(k, "host") {
			continue
		}
		headers[http.CanonicalHeaderKey(k)] = v
	}
	return &Upload{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   headers,
		Key:       key,
		Bucket:    c.cfg.Bucket,
		ExpiresAt: time.Now().Add(c.cfg.UploadExpiry).UTC(),
	}, nil
}

// PresignDownload returns a time-limited GET URL for key.
func (c *Client) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := presignGetObject(c.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.cfg.DownloadExpiry))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}

// Delete removes the object stored under key.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := deleteObject(c.s3, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

var folderPattern = regexp.MustCompile(`[^a-z0-9/_-]+`)

// ObjectKey returns "<folder>/<uuid>.<ext>". The folder is reduced to safe
// characters and defaults to "archives".
func ObjectKey(folder, fileName string) string {
	folder = strings.Trim(folderPattern.ReplaceAllString(strings.ToLower(folder), ""), "/")
	folder = path.Clean("/" + folder)[1:]
	if folder == "" {
		folder = "archives"
	}
	key := folder + "/" + uuid.NewString()
	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), ".")); ext != "" {
		key += "." + ext
	}
	return key
}
