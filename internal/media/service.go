// Package media records uploaded media and moves bytes into object storage.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/crc64nvme"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/storage"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/telemetry"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUpstream wraps failures of object storage or of a remote media URL.
	ErrUpstream = errors.New("media upstream failure")
	// ErrInvalidSource is returned for unusable inline media.
	ErrInvalidSource = errors.New("invalid media source")
)

const (
	DefaultMaxBytes = 500 << 20
	DefaultMimeType = "video/mp4"
)

// Config holds the service's collaborators.
type Config struct {
	Assets  store.MediaAssetStore
	Objects storage.ObjectStore
	// HTTPClient fetches remote media. Defaults to a client with a 5 minute timeout.
	HTTPClient *http.Client
	// MaxBytes bounds ingested media. Defaults to DefaultMaxBytes.
	MaxBytes int64
}

// Service implements the browser-driven and server-driven upload flows.
type Service struct {
	assets     store.MediaAssetStore
	objects    storage.ObjectStore
	httpClient *http.Client
	maxBytes   int64
}

// NewService creates a media service.
func NewService(cfg Config) *Service {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	return &Service{
		assets:     cfg.Assets,
		objects:    cfg.Objects,
		httpClient: cfg.HTTPClient,
		maxBytes:   cfg.MaxBytes,
	}
}

// MaxBytes is the largest accepted media size.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// UploadURL is a pending asset and the signed URL the browser uploads it to.
type UploadURL struct {
	MediaAssetID uuid.UUID
	StorageKey   string
	SignedURL    string
	Token        string
}

// CreateUploadURL records a pending media asset and issues a signed upload URL
// for it. If the URL cannot be issued the asset row is removed again.
func (s *Service) CreateUploadURL(ctx context.Context, orgID uuid.UUID, mimeType, filename string) (*UploadURL, error) {
	asset := &models.MediaAsset{
		MediaAssetID: uuid.Must(uuid.NewV7()),
		OrgID:        orgID,
		StorageKey:   storage.UploadKey(orgID, mimeType),
		MimeType:     mimeType,
		CreatedAt:    time.Now(),
	}
	if filename != "" {
		asset.Filename = &filename
	}

	if err := s.assets.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to create media asset: %w", err)
	}

	signed, err := s.objects.SignedUploadURL(ctx, asset.StorageKey)
	if err != nil {
		if delErr := s.assets.Delete(ctx, orgID, asset.MediaAssetID); delErr != nil {
			log.Error().Err(delErr).Str("media_asset_id", asset.MediaAssetID.String()).Msg("Failed to remove pending media asset")
		}
		return nil, fmt.Errorf("%w: signed upload url: %w", ErrUpstream, err)
	}

	telemetry.GetMetrics().MediaAssetsCreated.Add(ctx, 1, telemetry.Outcome("signed-upload"))

	return &UploadURL{
		MediaAssetID: asset.MediaAssetID,
		StorageKey:   asset.StorageKey,
		SignedURL:    signed.URL,
		Token:        signed.Token,
	}, nil
}

// Source is media supplied to the public API, either as a URL or inline base64.
// When both are set the URL wins.
type Source struct {
	URL      string
	Base64   string
	MimeType string
	FileName string
}

// Ingest uploads the source's bytes and then records the media asset.
// No asset exists unless the upload succeeded.
func (s *Service) Ingest(ctx context.Context, orgID uuid.UUID, src Source) (*models.MediaAsset, error) {
	var (
		data []byte
		err  error
	)

	mimeType := src.MimeType
	switch {
	case src.URL != "":
		data, err = s.fetch(ctx, src.URL)
	case src.Base64 != "":
		var embedded string
		data, embedded, err = s.decodeBase64(src.Base64)
		if mimeType == "" {
			mimeType = embedded
		}
	default:
		err = fmt.Errorf("%w: either a video URL or base64 data is required", ErrInvalidSource)
	}
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	sum := crc64nvme.New()
	sum.Write(data)
	checksum := hex.EncodeToString(sum.Sum(nil))
	size := int64(len(data))

	key := storage.APIUploadKey(orgID, mimeType)
	if err := s.objects.Upload(ctx, key, mimeType, bytes.NewReader(data), size); err != nil {
		return nil, fmt.Errorf("%w: upload: %w", ErrUpstream, err)
	}

	asset := &models.MediaAsset{
		MediaAssetID: uuid.Must(uuid.NewV7()),
		OrgID:        orgID,
		StorageKey:   key,
		MimeType:     mimeType,
		SizeBytes:    &size,
		Checksum:     &checksum,
		CreatedAt:    time.Now(),
	}
	if src.FileName != "" {
		asset.Filename = &src.FileName
	}

	if err := s.assets.Create(ctx, asset); err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			log.Warn().Err(delErr).Str("key", key).Msg("Failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("failed to create media asset: %w", err)
	}

	metrics := telemetry.GetMetrics()
	metrics.MediaBytesIngested.Add(ctx, size)
	metrics.MediaAssetsCreated.Add(ctx, 1, telemetry.Outcome("ingest"))

	log.Info().
		Str("media_asset_id", asset.MediaAssetID.String()).
		Str("key", key).
		Int64("size", size).
		Msg("Ingested media")

	return asset, nil
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch video: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch video: %s", ErrUpstream, resp.Status)
	}
	if resp.ContentLength > s.maxBytes {
		return nil, s.tooLarge()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read video: %w", ErrUpstream, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, s.tooLarge()
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: remote video is empty", ErrInvalidSource)
	}

	return data, nil
}

// decodeBase64 accepts plain standard base64 or a data URL and returns the
// bytes and, for data URLs, the embedded mime type.
func (s *Service) decodeBase64(encoded string) ([]byte, string, error) {
	mimeType := ""
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, "", fmt.Errorf("%w: malformed data URL", ErrInvalidSource)
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		encoded = payload
	}

	encoded = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, encoded)

	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > s.maxBytes+2 {
		return nil, "", s.tooLarge()
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid base64: %w", ErrInvalidSource, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, "", s.tooLarge()
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: video data is empty", ErrInvalidSource)
	}

	return data, mimeType, nil
}

func (s *Service) tooLarge() error {
	return fmt.Errorf("%w: video exceeds %d bytes", ErrInvalidSource, s.maxBytes)
}
