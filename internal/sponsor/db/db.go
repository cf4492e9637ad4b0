package db

import (
	"context"
	"database/sql"
	"errors"

	"eventpilot/internal/models"
	"eventpilot/internal/search"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

// ListFilter narrows ListSponsors. A nil Active lists active sponsors only.
type ListFilter struct {
	Search string
	Type   string
	Active *bool
	Limit  int
	Offset int
}

func (d *DB) CreateSponsor(ctx context.Context, s *models.Sponsor) error {
	_, err := d.Bun.NewInsert().Model(s).Exec(ctx)
	return err
}

func (d *DB) UpdateSponsor(ctx context.Context, s *models.Sponsor) error {
	_, err := d.Bun.NewUpdate().Model(s).ExcludeColumn("id", "created_at").WherePK().Exec(ctx)
	return err
}

func (d *DB) DeleteSponsor(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().Model((*models.Sponsor)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (d *DB) GetSponsor(ctx context.Context, id string) (*models.Sponsor, error) {
	var s models.Sponsor
	err := d.Bun.NewSelect().Model(&s).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DB) SponsorForUser(ctx context.Context, userID string) (*models.Sponsor, error) {
	var s models.Sponsor
	err := d.Bun.NewSelect().Model(&s).Where("user_id = ?", userID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DB) ListSponsors(ctx context.Context, f ListFilter) ([]models.Sponsor, int, error) {
	var sponsors []models.Sponsor
	q := d.Bun.NewSelect().Model(&sponsors)
	active := true
	if f.Active != nil {
		active = *f.Active
	}
	q = q.Where("is_active = ?", active)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	q = search.Filter(q, f.Search, "name", "email", "phone")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	total, err := q.Order("created_at DESC").ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return sponsors, total, nil
}

func (d *DB) UserExists(ctx context.Context, id string) (bool, error) {
	return d.Bun.NewSelect().Model((*models.User)(nil)).Where("id = ?", id).Exists(ctx)
}

func (d *DB) SessionExists(ctx context.Context, id string) (bool, error) {
	return d.Bun.NewSelect().Model((*models.Session)(nil)).Where("id = ?", id).Exists(ctx)
}

func (d *DB) CreateSponsorship(ctx context.Context, es *models.EventSponsorship) error {
	_, err := d.Bun.NewInsert().Model(es).Exec(ctx)
	return err
}

func (d *DB) UpdateSponsorship(ctx context.Context, es *models.EventSponsorship) error {
	_, err := d.Bun.NewUpdate().Model(es).ExcludeColumn("id", "session_id", "created_at").WherePK().Exec(ctx)
	return err
}

func (d *DB) DeleteSponsorship(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().Model((*models.EventSponsorship)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (d *DB) GetSponsorship(ctx context.Context, id string) (*models.EventSponsorship, error) {
	var es models.EventSponsorship
	err := d.Bun.NewSelect().
		Model(&es).
		Relation("Sponsor").
		Where("event_sponsorship.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &es, nil
}

func (d *DB) SessionSponsorships(ctx context.Context, sessionID string) ([]models.EventSponsorship, error) {
	var out []models.EventSponsorship
	err := d.Bun.NewSelect().
		Model(&out).
		Relation("Sponsor").
		Where("event_sponsorship.session_id = ?", sessionID).
		Order("event_sponsorship.display_order ASC", "event_sponsorship.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SponsorSponsorships lists the slots a sponsor has filled, newest first.
func (d *DB) SponsorSponsorships(ctx context.Context, sponsorID string) ([]models.EventSponsorship, error) {
	var out []models.EventSponsorship
	err := d.Bun.NewSelect().
		Model(&out).
		Where("sponsor_id = ?", sponsorID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) CountSessionSponsorships(ctx context.Context, sessionID string) (int, error) {
	return d.Bun.NewSelect().Model((*models.EventSponsorship)(nil)).Where("session_id = ?", sessionID).Count(ctx)
}

func (d *DB) AllSponsors(ctx context.Context) ([]models.Sponsor, error) {
	var out []models.Sponsor
	if err := d.Bun.NewSelect().Model(&out).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
