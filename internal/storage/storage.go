// Package storage provides object storage for media and result documents.
//
// Keys are always scoped by organization:
//
//	org/{orgId}/uploads/{uuid}.{ext}          browser uploads
//	org/{orgId}/api-uploads/{uuid}.{ext}      public API uploads
//	org/{orgId}/artifacts/{jobId}/result.json worker results
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBucket is the bucket used when none is configured.
const DefaultBucket = "media"

// WorkerDownloadTTL is how long signed download URLs issued to the worker remain valid.
const WorkerDownloadTTL = 120 * time.Second

// ErrObjectNotFound is returned when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// SignedUpload is a time-limited credential for uploading a single object.
type SignedUpload struct {
	URL   string
	Token string
}

// ObjectStore is implemented by every storage backend.
type ObjectStore interface {
	// SignedUploadURL issues a URL a browser can upload a single object to.
	SignedUploadURL(ctx context.Context, key string) (*SignedUpload, error)

	// SignedDownloadURL issues a URL that can read key until ttl elapses.
	SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Upload writes an object.
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error

	// Download reads an object. Returns ErrObjectNotFound if it does not exist.
	Download(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object.
	Delete(ctx context.Context, key string) error
}

var uploadExtensions = map[string]string{
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/x-msvideo": "avi",
	"audio/mpeg":      "mp3",
	"audio/wav":       "wav",
	"audio/x-wav":     "wav",
	"audio/mp4":       "m4a",
}

// ExtensionForMimeType maps a browser-reported mime type to a file extension.
func ExtensionForMimeType(mimeType string) string {
	if ext, ok := uploadExtensions[strings.ToLower(mimeType)]; ok {
		return ext
	}
	return "bin"
}

// UploadKey returns a fresh key for a browser-driven upload.
func UploadKey(orgID uuid.UUID, mimeType string) string {
	return fmt.Sprintf("org/%s/uploads/%s.%s", orgID, uuid.NewString(), ExtensionForMimeType(mimeType))
}

// APIUploadKey returns a fresh key for a server-driven upload.
// The extension is the mime subtype, e.g. "video/webm" gives "webm".
func APIUploadKey(orgID uuid.UUID, mimeType string) string {
	ext := "mp4"
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		ext = sub
	}
	return fmt.Sprintf("org/%s/api-uploads/%s.%s", orgID, uuid.NewString(), ext)
}

// ResultKey returns the key the worker writes a job's result document to.
func ResultKey(orgID, jobID uuid.UUID) string {
	return fmt.Sprintf("org/%s/artifacts/%s/result.json", orgID, jobID)
}

// BelongsToOrg reports whether key is under the organization's prefix.
func BelongsToOrg(key string, orgID uuid.UUID) bool {
	return strings.HasPrefix(key, "org/"+orgID.String()+"/")
}
