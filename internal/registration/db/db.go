package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventpilot/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

// InTx runs fn against a store bound to one transaction. Inside an existing
// transaction bun falls back to a savepoint.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &DB{Bun: tx})
	})
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

func (d *DB) CountApprovedPrimary(ctx context.Context, sessionID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Registration)(nil)).
		Where("session_id = ?", sessionID).
		Where("is_approved = ?", true).
		Where("invited_by_registration_id IS NULL").
		Count(ctx)
}

// UseInvite marks a valid invite for the session as used. It reports false
// when the token is unknown, already used or expired.
func (d *DB) UseInvite(ctx context.Context, sessionID, token string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Invite)(nil)).
		Set("used = ?", true).
		Where("session_id = ?", sessionID).
		Where("token = ?", token).
		Where("used = ?", false).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Where("expires_at IS NULL").WhereOr("expires_at > ?", now)
		}).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GuestRegistered checks the guest columns of primary registrations.
func (d *DB) GuestRegistered(ctx context.Context, sessionID, email, phone string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Registration)(nil)).
		Where("session_id = ?", sessionID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("guest_email = ?", email).WhereOr("guest_phone = ?", phone)
		}).
		Exists(ctx)
}

func (d *DB) UserRegistered(ctx context.Context, sessionID, userID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Registration)(nil)).
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		Exists(ctx)
}

// FindUserByContact returns the user owning the email or phone, or nil.
func (d *DB) FindUserByContact(ctx context.Context, email, phone string) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().
		Model(&u).
		Where("email = ?", email).
		WhereOr("phone = ?", phone).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return d.Bun.NewSelect().Model((*models.User)(nil)).Where("username = ?", username).Exists(ctx)
}

func (d *DB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := d.Bun.NewInsert().Model(u).Exec(ctx)
	return err
}

func (d *DB) CreateRegistration(ctx context.Context, r *models.Registration) error {
	_, err := d.Bun.NewInsert().Model(r).Exec(ctx)
	return err
}

func (d *DB) CreateValetRecord(ctx context.Context, rec *models.ValetRecord) error {
	_, err := d.Bun.NewInsert().Model(rec).Exec(ctx)
	return err
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

func (d *DB) Companions(ctx context.Context, registrationID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := d.Bun.NewSelect().
		Model(&regs).
		Where("invited_by_registration_id = ?", registrationID).
		Order("registered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func (d *DB) Approve(ctx context.Context, id, notes string) error {
	q := d.Bun.NewUpdate().
		Model((*models.Registration)(nil)).
		Set("is_approved = ?", true).
		Where("id = ?", id)
	if notes != "" {
		q = q.Set("approval_notes = ?", notes)
	}
	_, err := q.Exec(ctx)
	return err
}

// ApproveCompanions approves every pending companion of the registration.
func (d *DB) ApproveCompanions(ctx context.Context, registrationID string) (int, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Registration)(nil)).
		Set("is_approved = ?", true).
		Where("invited_by_registration_id = ?", registrationID).
		Where("is_approved = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// PendingPrimary lists the session's unapproved non-companion registrations.
func (d *DB) PendingPrimary(ctx context.Context, sessionID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := d.Bun.NewSelect().
		Model(&regs).
		Relation("User").
		Where("registration.session_id = ?", sessionID).
		Where("registration.is_approved = ?", false).
		Where("registration.invited_by_registration_id IS NULL").
		Order("registration.registered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

// SessionRegistrations returns every registration of the session, newest first.
func (d *DB) SessionRegistrations(ctx context.Context, sessionID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := d.Bun.NewSelect().
		Model(&regs).
		Relation("User").
		Where("registration.session_id = ?", sessionID).
		Order("registration.registered_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func (d *DB) SessionSponsorships(ctx context.Context, sessionID string) ([]models.EventSponsorship, error) {
	var out []models.EventSponsorship
	err := d.Bun.NewSelect().
		Model(&out).
		Relation("Sponsor").
		Where("event_sponsorship.session_id = ?", sessionID).
		Order("event_sponsorship.display_order ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
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
