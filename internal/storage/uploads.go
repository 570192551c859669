// Package storage issues presigned upload URLs for profile photos and logos
// on an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEImageWebP = "image/webp"
)

// Kind is the folder an upload lands in.
type Kind string

const (
	KindDancerPhoto Kind = "dancers"
	KindClientLogo  Kind = "logos"
)

var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
	ErrInvalidSize     = errors.New("file size must be positive")
	ErrInvalidKind     = errors.New("invalid upload kind")
	ErrNotConfigured   = errors.New("uploads are not configured")
)

var AllowedMIMETypes = map[string]string{
	MIMEImageJPEG: ".jpg",
	MIMEImagePNG:  ".png",
	MIMEImageWebP: ".webp",
}

type PresignRequest struct {
	Kind        Kind   `json:"kind"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type PresignResponse struct {
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Config struct {
	Bucket           string
	Endpoint         string
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	PublicBaseURL    string
	MaxSizeMB        int
	URLExpiryMinutes int
}

type Service struct {
	presign       *s3.PresignClient
	bucket        string
	publicBaseURL string
	maxSizeBytes  int64
	urlExpiry     time.Duration
	timeNow       func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("storage credentials are required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 5
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 10
	}

	client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	base := cfg.PublicBaseURL
	if base == "" {
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return &Service{
		presign:       s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		maxSizeBytes:  int64(cfg.MaxSizeMB) * 1024 * 1024,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
		timeNow:       time.Now,
	}, nil
}

func ValidateContentType(contentType string) error {
	if _, ok := AllowedMIMETypes[contentType]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

func (s *Service) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return ErrInvalidSize
	}
	if sizeBytes > s.maxSizeBytes {
		return ErrFileTooLarge
	}
	return nil
}

// GenerateObjectKey builds {kind}/{userID}/{uuid}{ext}.
func GenerateObjectKey(kind Kind, userID uuid.UUID, contentType string) (string, error) {
	switch kind {
	case KindDancerPhoto, KindClientLogo:
	default:
		return "", ErrInvalidKind
	}
	ext, ok := AllowedMIMETypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	return fmt.Sprintf("%s/%s/%s%s", kind, userID, uuid.New(), ext), nil
}

func (s *Service) Presign(ctx context.Context, userID uuid.UUID, req PresignRequest) (*PresignResponse, error) {
	if err := ValidateContentType(req.ContentType); err != nil {
		return nil, err
	}
	if err := s.ValidateFileSize(req.SizeBytes); err != nil {
		return nil, err
	}
	key, err := GenerateObjectKey(req.Kind, userID, req.ContentType)
	if err != nil {
		return nil, err
	}

	signed, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(req.ContentType),
		ContentLength: aws.Int64(req.SizeBytes),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &PresignResponse{
		UploadURL: signed.URL,
		PublicURL: s.publicBaseURL + "/" + key,
		Key:       key,
		ExpiresAt: s.timeNow().Add(s.urlExpiry),
	}, nil
}
