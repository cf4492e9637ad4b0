package analytics

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventpilot/internal/models"

	"github.com/uptrace/bun"
)

// DB handles analytics database operations
type DB struct {
	Bun bun.IDB
}

// NewDB creates a new analytics DB handler
func NewDB(db bun.IDB) *DB {
	return &DB{Bun: db}
}

func (db *DB) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := db.Bun.NewSelect().Model(&s).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RegistrationCounts is the raw registration breakdown for one session.
type RegistrationCounts struct {
	Total      int `bun:"total"`
	Approved   int `bun:"approved"`
	Companions int `bun:"companions"`
	Valet      int `bun:"valet"`
}

// GetRegistrationCounts aggregates a session's registrations in one pass
func (db *DB) GetRegistrationCounts(ctx context.Context, sessionID string) (RegistrationCounts, error) {
	var counts RegistrationCounts
	err := db.Bun.NewRaw(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_approved THEN 1 ELSE 0 END), 0) AS approved,
			COALESCE(SUM(CASE WHEN invited_by_registration_id IS NOT NULL THEN 1 ELSE 0 END), 0) AS companions,
			COALESCE(SUM(CASE WHEN needs_valet THEN 1 ELSE 0 END), 0) AS valet
		FROM registrations
		WHERE session_id = ?`, sessionID).
		Scan(ctx, &counts)
	return counts, err
}

func (db *DB) CountAttended(ctx context.Context, sessionID string) (int, error) {
	return db.Bun.NewSelect().
		Model((*models.Attendance)(nil)).
		Where("session_id = ?", sessionID).
		Where("attended = ?", true).
		Count(ctx)
}

func (db *DB) CountSponsorships(ctx context.Context, sessionID string) (int, error) {
	return db.Bun.NewSelect().
		Model((*models.EventSponsorship)(nil)).
		Where("session_id = ?", sessionID).
		Count(ctx)
}

type statusCount struct {
	Status string `bun:"status"`
	Count  int    `bun:"count"`
}

// GetValetCounts returns the number of valet records per status
func (db *DB) GetValetCounts(ctx context.Context, sessionID string) (map[models.ValetStatus]int, error) {
	var rows []statusCount
	err := db.Bun.NewSelect().
		Model((*models.ValetRecord)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Where("session_id = ?", sessionID).
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make(map[models.ValetStatus]int, len(rows))
	for _, r := range rows {
		out[models.ValetStatus(r.Status)] = r.Count
	}
	return out, nil
}

func (db *DB) CountUsers(ctx context.Context) (int, error) {
	return db.Bun.NewSelect().Model((*models.User)(nil)).Count(ctx)
}

func (db *DB) CountSessions(ctx context.Context) (int, error) {
	return db.Bun.NewSelect().Model((*models.Session)(nil)).Count(ctx)
}

func (db *DB) CountRegistrations(ctx context.Context, approved bool) (int, error) {
	return db.Bun.NewSelect().
		Model((*models.Registration)(nil)).
		Where("is_approved = ?", approved).
		Count(ctx)
}

// GetUpcomingSessions returns open sessions after now, soonest first
func (db *DB) GetUpcomingSessions(ctx context.Context, now time.Time, limit int) ([]models.Session, error) {
	var out []models.Session
	err := db.Bun.NewSelect().
		Model(&out).
		Where("date > ?", now).
		Where("status = ?", models.SessionOpen).
		Order("date ASC").
		Limit(limit).
		Scan(ctx)
	return out, err
}

// GetPastSessions returns sessions dated before now, latest first
func (db *DB) GetPastSessions(ctx context.Context, now time.Time, limit int) ([]models.Session, error) {
	var out []models.Session
	err := db.Bun.NewSelect().
		Model(&out).
		Where("date < ?", now).
		Order("date DESC").
		Limit(limit).
		Scan(ctx)
	return out, err
}

func (db *DB) GetRecentRegistrations(ctx context.Context, limit int) ([]models.Registration, error) {
	var out []models.Registration
	err := db.Bun.NewSelect().
		Model(&out).
		Relation("User").
		Relation("Session").
		Order("registration.registered_at DESC").
		Limit(limit).
		Scan(ctx)
	return out, err
}

type sessionCount struct {
	SessionID string `bun:"session_id"`
	Count     int    `bun:"count"`
}

func (db *DB) countBySession(ctx context.Context, model interface{}, flag string, sessionIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return out, nil
	}
	var rows []sessionCount
	err := db.Bun.NewSelect().
		Model(model).
		Column("session_id").
		ColumnExpr("COUNT(*) AS count").
		Where("session_id IN (?)", bun.In(sessionIDs)).
		Where("? = ?", bun.Ident(flag), true).
		Group("session_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.SessionID] = r.Count
	}
	return out, nil
}

// GetApprovedCounts maps session id to its approved registrations
func (db *DB) GetApprovedCounts(ctx context.Context, sessionIDs []string) (map[string]int, error) {
	return db.countBySession(ctx, (*models.Registration)(nil), "is_approved", sessionIDs)
}

// GetAttendedCounts maps session id to its checked-in attendees
func (db *DB) GetAttendedCounts(ctx context.Context, sessionIDs []string) (map[string]int, error) {
	return db.countBySession(ctx, (*models.Attendance)(nil), "attended", sessionIDs)
}
