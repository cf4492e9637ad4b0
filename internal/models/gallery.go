package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Gallery struct {
	bun.BaseModel `bun:"table:galleries"`

	ID        string    `bun:"id,pk" json:"id"`
	SessionID string    `bun:"session_id,notnull" json:"sessionId"`
	Title     string    `bun:"title,notnull" json:"title"`
	Status    string    `bun:"status,notnull" json:"status"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type GalleryImage struct {
	bun.BaseModel `bun:"table:gallery_images"`

	ID          string    `bun:"id,pk" json:"id"`
	GalleryID   string    `bun:"gallery_id,notnull" json:"galleryId"`
	ObjectKey   string    `bun:"object_key,unique,notnull" json:"objectKey"`
	Filename    string    `bun:"filename,notnull" json:"filename"`
	Size        int64     `bun:"size,notnull" json:"size"`
	ContentType string    `bun:"content_type,notnull" json:"contentType"`
	UploadedAt  time.Time `bun:"uploaded_at,notnull" json:"uploadedAt"`
	URL         string    `bun:"-" json:"url,omitempty"`
}
