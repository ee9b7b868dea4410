package assets

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/brightsend/mailform/internal/config"
)

// S3Mirror pushes committed assets to an S3 bucket fronted by a CDN, so
// template attachment URLs can point at the CDN instead of this service.
type S3Mirror struct {
	client    *s3.Client
	bucket    string
	cdnDomain string
}

// NewS3Mirror creates the mirror, or returns nil when no bucket is
// configured (mirroring disabled).
func NewS3Mirror(ctx context.Context, cfg appconfig.AssetsConfig) (*S3Mirror, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Mirror{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    cfg.S3Bucket,
		cdnDomain: cfg.CDNDomain,
	}, nil
}

// Upload mirrors one asset. Callers treat failures as best-effort.
func (m *S3Mirror) Upload(ctx context.Context, domain, relPath, contentType string, body io.Reader) error {
	key := domain + "/" + relPath
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

// URL returns the public CDN URL for a mirrored asset, or "" when no CDN
// domain is configured.
func (m *S3Mirror) URL(domain, relPath string) string {
	if m == nil || m.cdnDomain == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/%s/%s", m.cdnDomain, domain, relPath)
}
