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

// GetRegistration loads the registration with its user and session.
func (d *DB) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	var r models.Registration
	err := d.Bun.NewSelect().
		Model(&r).
		Relation("User").
		Relation("Session").
		Where("registration.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

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

// UpsertAttendance keeps one row per registration; a repeated check-in only
// refreshes it.
func (d *DB) UpsertAttendance(ctx context.Context, a *models.Attendance) error {
	_, err := d.Bun.NewInsert().
		Model(a).
		On("CONFLICT (registration_id) DO UPDATE").
		Set("attended = EXCLUDED.attended").
		Set("check_in_time = EXCLUDED.check_in_time").
		Set("qr_verified = EXCLUDED.qr_verified").
		Exec(ctx)
	return err
}

func (d *DB) GetAttendance(ctx context.Context, registrationID string) (*models.Attendance, error) {
	var a models.Attendance
	err := d.Bun.NewSelect().Model(&a).Where("registration_id = ?", registrationID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (d *DB) SessionAttendances(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	var out []models.Attendance
	if err := d.Bun.NewSelect().Model(&out).Where("session_id = ?", sessionID).Scan(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// ApprovedRegistrations lists approved registrations, companions included,
// in registration order.
func (d *DB) ApprovedRegistrations(ctx context.Context, sessionID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := d.Bun.NewSelect().
		Model(&regs).
		Relation("User").
		Where("registration.session_id = ?", sessionID).
		Where("registration.is_approved = ?", true).
		Order("registration.registered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

// UserRegistration finds the approved registration of the user with the
// given email for a session.
func (d *DB) UserRegistration(ctx context.Context, email, sessionID string) (*models.Registration, error) {
	users := d.Bun.NewSelect().
		Model((*models.User)(nil)).
		Column("id").
		Where("email = ?", email)

	var r models.Registration
	err := d.Bun.NewSelect().
		Model(&r).
		Where("user_id IN (?)", users).
		Where("session_id = ?", sessionID).
		Where("is_approved = ?", true).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
