package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	config "github.com/maheshrc27/socialpilot/configs"
	"github.com/maheshrc27/socialpilot/internal/models"
)

const defaultPresignExpiry = time.Hour

// ObjectPresigner is the part of the S3 presign client the resolver uses.
type ObjectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// MediaService turns a post's media_urls into fetchable media items.
// Absolute http(s) URLs pass through. Anything else is an object key in the
// R2 bucket, served from the public URL when one is configured and presigned
// otherwise.
type MediaService struct {
	presigner ObjectPresigner
	bucket    string
	publicURL string
	expires   time.Duration
}

func NewMediaService(presigner ObjectPresigner, bucket, publicURL string, expires time.Duration) *MediaService {
	if expires <= 0 {
		expires = defaultPresignExpiry
	}
	return &MediaService{
		presigner: presigner,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		expires:   expires,
	}
}

// NewR2Client builds an S3 client for the Cloudflare R2 account in cfg.
func NewR2Client(ctx context.Context, cfg config.R2) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load R2 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	}), nil
}

func (m *MediaService) Resolve(ctx context.Context, refs []string) ([]models.MediaItem, error) {
	items := make([]models.MediaItem, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		u, err := m.url(ctx, ref)
		if err != nil {
			return nil, err
		}
		items = append(items, models.MediaItem{URL: u, Type: MediaTypeOf(ref)})
	}
	return items, nil
}

func (m *MediaService) url(ctx context.Context, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}

	key := strings.TrimLeft(ref, "/")
	if m.publicURL != "" {
		return m.publicURL + "/" + key, nil
	}
	if m.presigner == nil || m.bucket == "" {
		return "", fmt.Errorf("media %q is not a URL and no object storage is configured", ref)
	}

	req, err := m.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(m.expires))
	if err != nil {
		return "", fmt.Errorf("presign media %q: %w", key, err)
	}
	return req.URL, nil
}

// MediaTypeOf guesses the media type from the file extension. Unknown
// extensions are treated as images.
func MediaTypeOf(ref string) models.MediaType {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext == "" {
		return models.MediaTypeImage
	}
	if kind := filetype.GetType(ext); kind != filetype.Unknown && kind.MIME.Type == "video" {
		return models.MediaTypeVideo
	}
	return models.MediaTypeImage
}
