package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseConfig configures the Supabase Storage backend.
type SupabaseConfig struct {
	// URL is the project URL, e.g. https://xyz.supabase.co
	URL string

	// ServiceRoleKey authorises server-side calls. Never expose it to clients.
	ServiceRoleKey string

	// Bucket defaults to DefaultBucket.
	Bucket string
}

// Validate checks that the configuration is usable.
func (c *SupabaseConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("supabase URL is required")
	}
	if c.ServiceRoleKey == "" {
		return fmt.Errorf("supabase service role key is required")
	}
	return nil
}

// SupabaseStore implements ObjectStore on Supabase Storage.
type SupabaseStore struct {
	client  *storage_go.Client
	baseURL string
	bucket  string
}

// NewSupabaseStore creates a Supabase Storage backed object store.
func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}

	baseURL := strings.TrimSuffix(cfg.URL, "/") + "/storage/v1"
	client := storage_go.NewClient(baseURL, cfg.ServiceRoleKey, map[string]string{
		"apikey": cfg.ServiceRoleKey,
	})

	return &SupabaseStore{
		client:  client,
		baseURL: baseURL,
		bucket:  bucket,
	}, nil
}

func (s *SupabaseStore) SignedUploadURL(ctx context.Context, key string) (*SignedUpload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := s.client.CreateSignedUploadUrl(s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create signed upload url: %w", err)
	}

	signed := s.absolute(resp.Url)
	u, err := url.Parse(signed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signed upload url: %w", err)
	}

	return &SignedUpload{
		URL:   signed,
		Token: u.Query().Get("token"),
	}, nil
}

func (s *SupabaseStore) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := s.client.CreateSignedUrl(s.bucket, key, int(ttl.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to create signed download url: %w", err)
	}

	return s.absolute(resp.SignedURL), nil
}

func (s *SupabaseStore) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	upsert := false
	_, err := s.client.UploadFile(s.bucket, key, body, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	log.Debug().Str("key", key).Int64("size", size).Msg("Uploaded object to supabase")
	return nil
}

func (s *SupabaseStore) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.client.DownloadFile(s.bucket, key)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to download object: %w", err)
	}

	return data, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.client.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// absolute resolves the relative paths the storage API returns against the storage base URL.
func (s *SupabaseStore) absolute(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.baseURL + path
}
