package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventpilot/internal/models"
	"eventpilot/internal/search"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

// ListFilter narrows ListSessions. Zero values mean "any".
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

func (d *DB) CreateSession(ctx context.Context, s *models.Session) error {
	_, err := d.Bun.NewInsert().Model(s).Exec(ctx)
	return err
}

func (d *DB) UpdateSession(ctx context.Context, s *models.Session) error {
	_, err := d.Bun.NewUpdate().
		Model(s).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	return err
}

// GetSessionByID returns nil when the session does not exist.
func (d *DB) GetSessionByID(ctx context.Context, id string) (*models.Session, error) {
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

func (d *DB) GetSessionBySlug(ctx context.Context, slug string) (*models.Session, error) {
	var s models.Session
	err := d.Bun.NewSelect().Model(&s).Where("slug = ?", slug).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SessionNumberTaken ignores the session excludeID so updates can keep their number.
func (d *DB) SessionNumberTaken(ctx context.Context, number int, excludeID string) (bool, error) {
	q := d.Bun.NewSelect().Model((*models.Session)(nil)).Where("session_number = ?", number)
	if excludeID != "" {
		q = q.Where("id != ?", excludeID)
	}
	return q.Exists(ctx)
}

func (d *DB) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	q := d.Bun.NewSelect().Model((*models.Session)(nil)).Where("slug = ?", slug)
	if excludeID != "" {
		q = q.Where("id != ?", excludeID)
	}
	return q.Exists(ctx)
}

// NextSessionNumber is one past the highest number in use.
func (d *DB) NextSessionNumber(ctx context.Context) (int, error) {
	var max sql.NullInt64
	err := d.Bun.NewSelect().
		Model((*models.Session)(nil)).
		ColumnExpr("MAX(session_number)").
		Scan(ctx, &max)
	if err != nil {
		return 0, err
	}
	return int(max.Int64) + 1, nil
}

func (d *DB) ListSessions(ctx context.Context, f ListFilter) ([]models.Session, int, error) {
	var sessions []models.Session
	q := d.Bun.NewSelect().Model(&sessions)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = search.Filter(q, f.Search, "title", "description", "location")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	total, err := q.Order("date DESC").ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// UpcomingSessions lists open sessions starting at or after now, soonest first.
func (d *DB) UpcomingSessions(ctx context.Context, now time.Time, limit int) ([]models.Session, error) {
	var sessions []models.Session
	q := d.Bun.NewSelect().
		Model(&sessions).
		Where("status = ?", models.SessionOpen).
		Where("date >= ?", now).
		Order("date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CountApprovedPrimary counts approved registrations that are not companions.
func (d *DB) CountApprovedPrimary(ctx context.Context, sessionID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Registration)(nil)).
		Where("session_id = ?", sessionID).
		Where("is_approved = ?", true).
		Where("invited_by_registration_id IS NULL").
		Count(ctx)
}

func (d *DB) SessionGuests(ctx context.Context, sessionID string) ([]models.SessionGuest, error) {
	var guests []models.SessionGuest
	err := d.Bun.NewSelect().
		Model(&guests).
		Relation("Guest").
		Where("session_guest.session_id = ?", sessionID).
		Order("session_guest.display_order ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return guests, nil
}

func (d *DB) CreateGuest(ctx context.Context, g *models.Guest) error {
	_, err := d.Bun.NewInsert().Model(g).Exec(ctx)
	return err
}

func (d *DB) GetGuestByID(ctx context.Context, id string) (*models.Guest, error) {
	var g models.Guest
	err := d.Bun.NewSelect().Model(&g).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (d *DB) AttachGuest(ctx context.Context, sg *models.SessionGuest) error {
	_, err := d.Bun.NewInsert().Model(sg).Exec(ctx)
	return err
}

func (d *DB) DetachGuest(ctx context.Context, sessionID, guestID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.SessionGuest)(nil)).
		Where("session_id = ?", sessionID).
		Where("guest_id = ?", guestID).
		Exec(ctx)
	return err
}

func (d *DB) CreateInvite(ctx context.Context, inv *models.Invite) error {
	_, err := d.Bun.NewInsert().Model(inv).Exec(ctx)
	return err
}

func (d *DB) ListInvites(ctx context.Context, sessionID string) ([]models.Invite, error) {
	var invites []models.Invite
	err := d.Bun.NewSelect().
		Model(&invites).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return invites, nil
}
