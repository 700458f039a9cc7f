// Package s3 stores collection rows as JSON objects in an S3-compatible
// bucket (AWS S3 or MinIO). Object keys are "<prefix><collection>/<id>.json".
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"voltschool/internal/remote/core"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

var _ core.Backend = (*Store)(nil)

// Store implements core.Backend using a single bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config holds explicit construction parameters.
type Config struct {
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string // optional; if set enables custom endpoint (e.g. MinIO)
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// ParseURL builds a Config from a remote URL of the form
//
//	s3://bucket/prefix?region=eu-west-1&endpoint=http://minio:9000&path_style=true
//
// and an optional "ACCESS_KEY:SECRET[:SESSION]" key.
func ParseURL(raw, key string) (Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse s3 url: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return Config{}, fmt.Errorf("s3 url must look like s3://bucket/prefix, got %q", raw)
	}
	q := u.Query()
	cfg := Config{
		Bucket:    u.Host,
		Prefix:    strings.TrimPrefix(u.Path, "/"),
		Region:    q.Get("region"),
		Endpoint:  q.Get("endpoint"),
		PathStyle: strings.EqualFold(q.Get("path_style"), "true"),
	}
	if cfg.Prefix != "" && !strings.HasSuffix(cfg.Prefix, "/") {
		cfg.Prefix += "/"
	}
	if key != "" {
		parts := strings.SplitN(key, ":", 3)
		if len(parts) < 2 {
			return Config{}, fmt.Errorf("s3 key must be ACCESS_KEY:SECRET")
		}
		cfg.AccessKeyID, cfg.SecretAccessKey = parts[0], parts[1]
		if len(parts) == 3 {
			cfg.SessionToken = parts[2]
		}
	}
	return cfg, nil
}

// New creates an S3 backend from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverS3 }

func (s *Store) objectKey(collection, id string) string {
	return s.prefix + collection + "/" + id + ".json"
}

// Upsert overwrites the object.
func (s *Store) Upsert(ctx context.Context, collection, id string, data []byte) error {
	if err := core.ValidateCollection(collection); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(collection, id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

// Select reads the object body.
func (s *Store) Select(ctx context.Context, collection, id string) ([]byte, error) {
	if err := core.ValidateCollection(collection); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(collection, id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return data, nil
}

// Delete removes the object. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := core.ValidateCollection(collection); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(collection, id)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

// Close is a no-op; the SDK client has no close semantics.
func (s *Store) Close() error { return nil }

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
