package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"realty/internal/app/policies"
)

const calendarContentType = "text/calendar; charset=utf-8"

type Config struct {
	Endpoint      string
	UseSSL        bool
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

// Publisher writes exported calendars to an S3-compatible bucket that platforms
// can subscribe to.
type Publisher struct {
	bucket        string
	publicBaseURL string
	client        *minio.Client
	logger        *slog.Logger

	bucketOnce sync.Once
	bucketErr  error
}

func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	client, err := minio.New(hostOf(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	base := strings.TrimSpace(cfg.PublicBaseURL)
	if base == "" {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		base = scheme + hostOf(endpoint)
	}
	return &Publisher{bucket: bucket, publicBaseURL: strings.TrimRight(base, "/"), client: client, logger: logger}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, body []byte) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	if err := p.ensureBucket(ctx); err != nil {
		return "", err
	}
	_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  calendarContentType,
		CacheControl: "max-age=300",
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}
	u := ObjectURL(p.publicBaseURL, p.bucket, key)
	if p.logger != nil {
		p.logger.Info("calendar published", "bucket", p.bucket, "key", key, "url", u)
	}
	return u, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	p.bucketOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.bucketErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			p.bucketErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/calendars/*"]}]}`, p.bucket)
		if err := p.client.SetBucketPolicy(ctx, p.bucket, policy); err != nil {
			p.bucketErr = fmt.Errorf("s3: set bucket policy: %w", err)
		}
	})
	return p.bucketErr
}

// ObjectURL is the path-style public URL of key.
func ObjectURL(base, bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), bucket, strings.TrimLeft(key, "/"))
}

func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ policies.CalendarPublisher = (*Publisher)(nil)
