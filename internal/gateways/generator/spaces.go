package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/nanopets/giftbot/internal/domain/artifact"
)

// Uploader copies upstream media, which is short-lived, into storage we own.
type Uploader interface {
	Upload(ctx context.Context, jobID, mediaURL, thumbnailURL string) (artifact.Media, error)
}

// PassthroughUploader keeps the upstream URLs as they are.
type PassthroughUploader struct{}

func (PassthroughUploader) Upload(_ context.Context, _ string, mediaURL, thumbnailURL string) (artifact.Media, error) {
	return artifact.Media{URL: mediaURL, ThumbnailURL: thumbnailURL}, nil
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type SpacesConfig struct {
	Key      string
	Secret   string
	Region   string
	Bucket   string
	Endpoint string
	// PublicURL is the base for returned links, e.g. a CDN host.
	PublicURL string
	// MaxBytes caps a single downloaded object. Zero means DefaultMaxMediaBytes.
	MaxBytes int64
}

// DefaultMaxMediaBytes bounds how much of an upstream object is buffered.
const DefaultMaxMediaBytes int64 = 64 << 20

// ErrMediaTooLarge is returned when an upstream object exceeds the size cap.
var ErrMediaTooLarge = errors.New("media exceeds size limit")

// SpacesUploader stores media in an S3-compatible bucket.
type SpacesUploader struct {
	client    objectPutter
	http      *http.Client
	bucket    string
	publicURL string
	maxBytes  int64
}

func NewSpacesUploader(ctx context.Context, cfg SpacesConfig, httpClient *http.Client) (*SpacesUploader, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.digitaloceanspaces.com", cfg.Region)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, "")),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load spaces config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.%s.digitaloceanspaces.com", cfg.Bucket, cfg.Region)
	}
	up := newSpacesUploader(client, httpClient, cfg.Bucket, publicURL)
	if cfg.MaxBytes > 0 {
		up.maxBytes = cfg.MaxBytes
	}
	return up, nil
}

func newSpacesUploader(client objectPutter, httpClient *http.Client, bucket, publicURL string) *SpacesUploader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SpacesUploader{
		client:    client,
		http:      httpClient,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  DefaultMaxMediaBytes,
	}
}

func (u *SpacesUploader) Upload(ctx context.Context, jobID, mediaURL, thumbnailURL string) (artifact.Media, error) {
	media, err := u.copy(ctx, mediaURL, fmt.Sprintf("animations/%s.mp4", jobID), "video/mp4")
	if err != nil {
		return artifact.Media{}, err
	}
	thumb, err := u.copy(ctx, thumbnailURL, fmt.Sprintf("thumbnails/%s.jpg", jobID), "image/jpeg")
	if err != nil {
		return artifact.Media{}, err
	}
	return artifact.Media{URL: media, ThumbnailURL: thumb}, nil
}

func (u *SpacesUploader) copy(ctx context.Context, src, key, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", key, resp.StatusCode)
	}

	if resp.ContentLength > u.maxBytes {
		return "", fmt.Errorf("download %s: %w", key, ErrMediaTooLarge)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, u.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	if int64(len(body)) > u.maxBytes {
		return "", fmt.Errorf("download %s: %w", key, ErrMediaTooLarge)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return u.publicURL + "/" + key, nil
}
