package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tencentyun/cos-go-sdk-v5"

	apperrors "github.com/retainer-prof/pkg/errors"
)

// COSConfig holds COS-specific configuration.
type COSConfig struct {
	Bucket    string
	Region    string
	SecretID  string
	SecretKey string
	Domain    string // default "myqcloud.com"
	Scheme    string // default "https"

	// Endpoint replaces the bucket URL derived from the fields above.
	Endpoint string
}

// COSStorage implements Storage on Tencent Cloud COS.
type COSStorage struct {
	client    *cos.Client
	bucketURL *url.URL
}

// NewCOSStorage creates a COS client for one bucket.
func NewCOSStorage(cfg *COSConfig) (*COSStorage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "bucket and region are required for COS storage")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "credentials are required for COS storage")
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "myqcloud.com"
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	raw := cfg.Endpoint
	if raw == "" {
		raw = fmt.Sprintf("%s://%s.cos.%s.%s", scheme, cfg.Bucket, cfg.Region, domain)
	}
	bucketURL, err := url.Parse(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to parse bucket URL", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	return &COSStorage{client: client, bucketURL: bucketURL}, nil
}

// Put uploads r under key.
func (s *COSStorage) Put(ctx context.Context, key string, r io.Reader) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.Object.Put(ctx, k, r, nil); err != nil {
		return uploadError(fmt.Sprintf("failed to upload %s to COS", k), err)
	}
	return nil
}

// PutFile uploads a local file under key.
func (s *COSStorage) PutFile(ctx context.Context, key string, localPath string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.Object.PutFromFile(ctx, k, localPath, nil); err != nil {
		return uploadError(fmt.Sprintf("failed to upload %s to COS", k), err)
	}
	return nil
}

// Get downloads key.
func (s *COSStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Object.Get(ctx, k, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "object not found: %s", k)
		}
		return nil, fmt.Errorf("failed to download %s from COS: %w", k, err)
	}
	return resp.Body, nil
}

// Exists issues a HEAD request for key.
func (s *COSStorage) Exists(ctx context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	ok, err := s.client.Object.IsExist(ctx, k)
	if err != nil {
		return false, fmt.Errorf("failed to check %s in COS: %w", k, err)
	}
	return ok, nil
}

// Delete removes key from the bucket.
func (s *COSStorage) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.Object.Delete(ctx, k, nil); err != nil && !cos.IsNotFoundError(err) {
		return fmt.Errorf("failed to delete %s from COS: %w", k, err)
	}
	return nil
}

// URL returns the object URL of key.
func (s *COSStorage) URL(key string) string {
	k, err := cleanKey(key)
	if err != nil {
		return ""
	}
	return s.bucketURL.JoinPath(k).String()
}
