package media

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/storage"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func newTestService(maxBytes int64) (*Service, *memory.MediaAssetStore, *storage.MemoryStore) {
	assets := memory.NewMediaAssetStore()
	objects := storage.NewMemoryStore()
	return NewService(Config{Assets: assets, Objects: objects, MaxBytes: maxBytes}), assets, objects
}

func TestService_CreateUploadURL(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.Must(uuid.NewV7())

	t.Run("records pending asset", func(t *testing.T) {
		svc, assets, _ := newTestService(0)

		res, err := svc.CreateUploadURL(ctx, orgID, "video/quicktime", "clip.mov")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(res.StorageKey, "org/"+orgID.String()+"/uploads/"))
		require.True(t, strings.HasSuffix(res.StorageKey, ".mov"))
		require.NotEmpty(t, res.SignedURL)
		require.NotEmpty(t, res.Token)

		asset, err := assets.Get(ctx, orgID, res.MediaAssetID)
		require.NoError(t, err)
		require.Equal(t, res.StorageKey, asset.StorageKey)
		require.Equal(t, "clip.mov", *asset.Filename)
		require.Nil(t, asset.SizeBytes)
	})

	t.Run("unknown mime type uses bin", func(t *testing.T) {
		svc, _, _ := newTestService(0)

		res, err := svc.CreateUploadURL(ctx, orgID, "application/octet-stream", "")
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(res.StorageKey, ".bin"))
	})

	t.Run("storage failure leaves no asset", func(t *testing.T) {
		svc, assets, objects := newTestService(0)
		objects.SignedUploadErr = errors.New("bucket missing")

		_, err := svc.CreateUploadURL(ctx, orgID, "video/mp4", "a.mp4")
		require.ErrorIs(t, err, ErrUpstream)
		require.Zero(t, assets.Len())
	})
}

func TestService_Ingest(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.Must(uuid.NewV7())
	video := []byte("fake mp4 bytes for testing")

	t.Run("base64", func(t *testing.T) {
		svc, assets, objects := newTestService(0)

		asset, err := svc.Ingest(ctx, orgID, Source{
			Base64:   base64.StdEncoding.EncodeToString(video),
			MimeType: "video/webm",
			FileName: "talk.webm",
		})
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(asset.StorageKey, "org/"+orgID.String()+"/api-uploads/"))
		require.True(t, strings.HasSuffix(asset.StorageKey, ".webm"))
		require.Equal(t, int64(len(video)), *asset.SizeBytes)
		require.Len(t, *asset.Checksum, 16)
		require.True(t, objects.Has(asset.StorageKey))

		stored, err := objects.Download(ctx, asset.StorageKey)
		require.NoError(t, err)
		require.Equal(t, video, stored)

		_, err = assets.Get(ctx, orgID, asset.MediaAssetID)
		require.NoError(t, err)
	})

	t.Run("data url supplies mime type", func(t *testing.T) {
		svc, _, _ := newTestService(0)

		asset, err := svc.Ingest(ctx, orgID, Source{
			Base64: "data:video/quicktime;base64," + base64.StdEncoding.EncodeToString(video),
		})
		require.NoError(t, err)
		require.Equal(t, "video/quicktime", asset.MimeType)
		require.True(t, strings.HasSuffix(asset.StorageKey, ".quicktime"))
	})

	t.Run("same bytes give same checksum", func(t *testing.T) {
		svc, _, _ := newTestService(0)
		encoded := base64.StdEncoding.EncodeToString(video)

		a, err := svc.Ingest(ctx, orgID, Source{Base64: encoded})
		require.NoError(t, err)
		b, err := svc.Ingest(ctx, orgID, Source{Base64: encoded})
		require.NoError(t, err)
		require.Equal(t, *a.Checksum, *b.Checksum)
		require.NotEqual(t, a.StorageKey, b.StorageKey)
		require.Equal(t, DefaultMimeType, a.MimeType)
	})

	t.Run("url", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/video.mp4" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write(video)
		}))
		defer srv.Close()

		svc, assets, objects := newTestService(0)

		asset, err := svc.Ingest(ctx, orgID, Source{URL: srv.URL + "/video.mp4", Base64: "ignored"})
		require.NoError(t, err)
		require.True(t, objects.Has(asset.StorageKey))

		_, err = svc.Ingest(ctx, orgID, Source{URL: srv.URL + "/missing.mp4"})
		require.ErrorIs(t, err, ErrUpstream)
		require.Equal(t, 1, assets.Len())
	})

	t.Run("upload failure leaves no asset", func(t *testing.T) {
		svc, assets, objects := newTestService(0)
		objects.UploadErr = errors.New("503 from storage")

		_, err := svc.Ingest(ctx, orgID, Source{Base64: base64.StdEncoding.EncodeToString(video)})
		require.ErrorIs(t, err, ErrUpstream)
		require.Zero(t, assets.Len())
	})

	t.Run("asset failure removes upload", func(t *testing.T) {
		svc, _, objects := newTestService(0)
		svc.assets = failingAssets{}

		_, err := svc.Ingest(ctx, orgID, Source{Base64: base64.StdEncoding.EncodeToString(video)})
		require.Error(t, err)
		require.Zero(t, objects.Len())
	})

	tests := []struct {
		name string
		src  Source
	}{
		{name: "no source", src: Source{}},
		{name: "bad base64", src: Source{Base64: "%%%not-base64"}},
		{name: "malformed data url", src: Source{Base64: "data:video/mp4,AAAA"}},
		{name: "empty payload", src: Source{Base64: "data:video/mp4;base64,"}},
		{name: "too large", src: Source{Base64: base64.StdEncoding.EncodeToString(make([]byte, 64))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, assets, objects := newTestService(32)

			_, err := svc.Ingest(ctx, orgID, tt.src)
			require.ErrorIs(t, err, ErrInvalidSource)
			require.Zero(t, assets.Len())
			require.Zero(t, objects.Len())
		})
	}

	t.Run("remote too large", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(make([]byte, 64))
		}))
		defer srv.Close()

		svc, _, _ := newTestService(32)
		_, err := svc.Ingest(ctx, orgID, Source{URL: srv.URL})
		require.ErrorIs(t, err, ErrInvalidSource)
	})
}

type failingAssets struct{ store.MediaAssetStore }

func (failingAssets) Create(context.Context, *models.MediaAsset) error {
	return errors.New("db down")
}
