package db

import (
	"context"
	"database/sql"
	"errors"

	"eventpilot/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

func (d *DB) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := d.Bun.NewSelect().Model(&s).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DB) CreateGallery(ctx context.Context, g *models.Gallery) error {
	_, err := d.Bun.NewInsert().Model(g).Exec(ctx)
	return err
}

func (d *DB) GetGallery(ctx context.Context, id string) (*models.Gallery, error) {
	var g models.Gallery
	err := d.Bun.NewSelect().Model(&g).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (d *DB) SetStatus(ctx context.Context, id, status string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Gallery)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ListBySession returns the session's galleries, newest first.
func (d *DB) ListBySession(ctx context.Context, sessionID string) ([]models.Gallery, error) {
	var out []models.Gallery
	err := d.Bun.NewSelect().
		Model(&out).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Scan(ctx)
	return out, err
}

type imageCount struct {
	GalleryID string `bun:"gallery_id"`
	Count     int    `bun:"count"`
}

// ImageCounts maps gallery id to its number of images.
func (d *DB) ImageCounts(ctx context.Context, galleryIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(galleryIDs))
	if len(galleryIDs) == 0 {
		return out, nil
	}
	var rows []imageCount
	err := d.Bun.NewSelect().
		Model((*models.GalleryImage)(nil)).
		Column("gallery_id").
		ColumnExpr("COUNT(*) AS count").
		Where("gallery_id IN (?)", bun.In(galleryIDs)).
		Group("gallery_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.GalleryID] = r.Count
	}
	return out, nil
}

func (d *DB) CountImages(ctx context.Context, galleryID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.GalleryImage)(nil)).
		Where("gallery_id = ?", galleryID).
		Count(ctx)
}

func (d *DB) ImageByFilename(ctx context.Context, galleryID, filename string) (*models.GalleryImage, error) {
	var img models.GalleryImage
	err := d.Bun.NewSelect().
		Model(&img).
		Where("gallery_id = ?", galleryID).
		Where("filename = ?", filename).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (d *DB) CreateImage(ctx context.Context, img *models.GalleryImage) error {
	_, err := d.Bun.NewInsert().Model(img).Exec(ctx)
	return err
}

// Images returns up to limit images uploaded before the cursor image
// (newest first). An empty cursor starts from the newest.
func (d *DB) Images(ctx context.Context, galleryID string, limit int, cursor *models.GalleryImage) ([]models.GalleryImage, error) {
	var out []models.GalleryImage
	q := d.Bun.NewSelect().
		Model(&out).
		Where("gallery_id = ?", galleryID).
		Order("uploaded_at DESC", "id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("uploaded_at < ?", cursor.UploadedAt).
				WhereOr("uploaded_at = ? AND id < ?", cursor.UploadedAt, cursor.ID)
		})
	}
	err := q.Scan(ctx)
	return out, err
}

func (d *DB) GetImage(ctx context.Context, galleryID, id string) (*models.GalleryImage, error) {
	var img models.GalleryImage
	err := d.Bun.NewSelect().
		Model(&img).
		Where("gallery_id = ?", galleryID).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (d *DB) ImageKeys(ctx context.Context, galleryID string) ([]string, error) {
	var keys []string
	err := d.Bun.NewSelect().
		Model((*models.GalleryImage)(nil)).
		Column("object_key").
		Where("gallery_id = ?", galleryID).
		Scan(ctx, &keys)
	return keys, err
}

// DeleteGallery removes the gallery and its image rows together.
func (d *DB) DeleteGallery(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.GalleryImage)(nil)).Where("gallery_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*models.Gallery)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
}
