package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaAsset describes an uploaded file's storage location and metadata.
// Rows created by the signed upload flow exist before the bytes do.
type MediaAsset struct {
	MediaAssetID uuid.UUID // UUIDv7
	OrgID        uuid.UUID
	StorageKey   string
	MimeType     string
	Filename     *string
	SizeBytes    *int64
	Checksum     *string // CRC64-NVME, hex
	CreatedAt    time.Time
}
