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

// lotStatuses are the statuses whose cars take a slot in the lot.
var lotStatuses = []models.ValetStatus{models.ValetParked, models.ValetRequested, models.ValetFetching, models.ValetReady}

var queueStatuses = []models.ValetStatus{models.ValetRequested, models.ValetFetching, models.ValetReady}

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

func (d *DB) getRecord(ctx context.Context, column, value string) (*models.ValetRecord, error) {
	var rec models.ValetRecord
	err := d.Bun.NewSelect().
		Model(&rec).
		Relation("Session").
		Relation("Registration").
		Relation("Registration.User").
		Where("valet_record."+column+" = ?", value).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecord returns the record with its session and registrant, or nil.
func (d *DB) GetRecord(ctx context.Context, id string) (*models.ValetRecord, error) {
	return d.getRecord(ctx, "id", id)
}

func (d *DB) GetRecordByToken(ctx context.Context, token string) (*models.ValetRecord, error) {
	return d.getRecord(ctx, "tracking_token", token)
}

func (d *DB) GetRecordByRegistration(ctx context.Context, registrationID string) (*models.ValetRecord, error) {
	return d.getRecord(ctx, "registration_id", registrationID)
}

func (d *DB) GetRecordByTicket(ctx context.Context, sessionID string, ticket int) (*models.ValetRecord, error) {
	var rec models.ValetRecord
	err := d.Bun.NewSelect().
		Model(&rec).
		Where("session_id = ?", sessionID).
		Where("ticket_number = ?", ticket).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *DB) CreateRecord(ctx context.Context, rec *models.ValetRecord) error {
	_, err := d.Bun.NewInsert().Model(rec).Exec(ctx)
	return err
}

// UpdateRecord writes the listed columns, or every mutable column when none are given.
func (d *DB) UpdateRecord(ctx context.Context, rec *models.ValetRecord, columns ...string) error {
	q := d.Bun.NewUpdate().Model(rec).WherePK()
	if len(columns) > 0 {
		q = q.Column(columns...)
	} else {
		q = q.ExcludeColumn("id", "registration_id", "session_id", "created_at")
	}
	_, err := q.Exec(ctx)
	return err
}

// CountOccupied counts cars currently taking a slot in the session's lot.
func (d *DB) CountOccupied(ctx context.Context, sessionID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.ValetRecord)(nil)).
		Where("session_id = ?", sessionID).
		Where("status IN (?)", bun.In(lotStatuses)).
		Count(ctx)
}

// NextTicketNumber is one more than the highest ticket issued for the session.
func (d *DB) NextTicketNumber(ctx context.Context, sessionID string) (int, error) {
	var max sql.NullInt64
	err := d.Bun.NewSelect().
		Model((*models.ValetRecord)(nil)).
		ColumnExpr("MAX(ticket_number)").
		Where("session_id = ?", sessionID).
		Scan(ctx, &max)
	if err != nil {
		return 0, err
	}
	return int(max.Int64) + 1, nil
}

// Queue lists the session's retrieval queue, VIPs first, then by request
// time. Ties fall back to the id so every car keeps a stable place.
func (d *DB) Queue(ctx context.Context, sessionID string) ([]models.ValetRecord, error) {
	var recs []models.ValetRecord
	err := d.Bun.NewSelect().
		Model(&recs).
		Where("session_id = ?", sessionID).
		Where("status IN (?)", bun.In(queueStatuses)).
		Order("retrieval_priority DESC", "retrieval_requested_at ASC", "id ASC").
		Scan(ctx)
	return recs, err
}

// CountAhead counts requested cars served before rec, in Queue order.
func (d *DB) CountAhead(ctx context.Context, rec *models.ValetRecord) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.ValetRecord)(nil)).
		Where("session_id = ?", rec.SessionID).
		Where("status = ?", models.ValetRequested).
		Where("id != ?", rec.ID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("retrieval_priority > ?", rec.RetrievalPriority)
			if rec.RetrievalRequestedAt != nil {
				at := *rec.RetrievalRequestedAt
				q = q.WhereOr("retrieval_priority = ? AND retrieval_requested_at < ?", rec.RetrievalPriority, at).
					WhereOr("retrieval_priority = ? AND retrieval_requested_at = ? AND id < ?", rec.RetrievalPriority, at, rec.ID)
			}
			return q
		}).
		Count(ctx)
}

// UpdateSessionValet writes the session's valet settings.
func (d *DB) UpdateSessionValet(ctx context.Context, s *models.Session) error {
	_, err := d.Bun.NewUpdate().
		Model(s).
		Column("valet_enabled", "valet_lot_capacity", "valet_retrieval_notice").
		WherePK().
		Exec(ctx)
	return err
}

type StatusCount struct {
	Status models.ValetStatus `bun:"status"`
	Count  int                `bun:"count"`
}

func (d *DB) StatusCounts(ctx context.Context, sessionID string) ([]StatusCount, error) {
	var rows []StatusCount
	err := d.Bun.NewSelect().
		Model((*models.ValetRecord)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Where("session_id = ?", sessionID).
		Group("status").
		Scan(ctx, &rows)
	return rows, err
}

// SessionRecords lists every record of a session by ticket number.
func (d *DB) SessionRecords(ctx context.Context, sessionID string) ([]models.ValetRecord, error) {
	var recs []models.ValetRecord
	err := d.Bun.NewSelect().
		Model(&recs).
		Where("session_id = ?", sessionID).
		Order("ticket_number ASC", "created_at ASC").
		Scan(ctx)
	return recs, err
}

// ValetRegistrations lists approved registrations of the session that asked for valet.
func (d *DB) ValetRegistrations(ctx context.Context, sessionID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := d.Bun.NewSelect().
		Model(&regs).
		Relation("User").
		Where("registration.session_id = ?", sessionID).
		Where("registration.needs_valet = ?", true).
		Where("registration.is_approved = ?", true).
		Order("registration.registered_at ASC").
		Scan(ctx)
	return regs, err
}

func (d *DB) RecordsByRegistration(ctx context.Context, registrationIDs []string) (map[string]models.ValetRecord, error) {
	out := make(map[string]models.ValetRecord, len(registrationIDs))
	if len(registrationIDs) == 0 {
		return out, nil
	}
	var recs []models.ValetRecord
	err := d.Bun.NewSelect().
		Model(&recs).
		Where("registration_id IN (?)", bun.In(registrationIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		out[r.RegistrationID] = r
	}
	return out, nil
}

// Employees

func (d *DB) CreateEmployee(ctx context.Context, e *models.ValetEmployee) error {
	_, err := d.Bun.NewInsert().Model(e).Exec(ctx)
	return err
}

func (d *DB) UpdateEmployee(ctx context.Context, e *models.ValetEmployee) error {
	_, err := d.Bun.NewUpdate().
		Model(e).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) getEmployee(ctx context.Context, column, value string) (*models.ValetEmployee, error) {
	var e models.ValetEmployee
	err := d.Bun.NewSelect().Model(&e).Where(column+" = ?", value).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (d *DB) GetEmployee(ctx context.Context, id string) (*models.ValetEmployee, error) {
	return d.getEmployee(ctx, "id", id)
}

func (d *DB) GetEmployeeByUsername(ctx context.Context, username string) (*models.ValetEmployee, error) {
	return d.getEmployee(ctx, "username", username)
}

func (d *DB) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	q := d.Bun.NewSelect().Model((*models.ValetEmployee)(nil)).Where("username = ?", username)
	if excludeID != "" {
		q = q.Where("id != ?", excludeID)
	}
	return q.Exists(ctx)
}

func (d *DB) ListEmployees(ctx context.Context) ([]models.ValetEmployee, error) {
	var out []models.ValetEmployee
	err := d.Bun.NewSelect().Model(&out).Order("created_at DESC").Scan(ctx)
	return out, err
}

func (d *DB) AssignmentExists(ctx context.Context, employeeID, sessionID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.ValetAssignment)(nil)).
		Where("employee_id = ?", employeeID).
		Where("session_id = ?", sessionID).
		Exists(ctx)
}

func (d *DB) CreateAssignment(ctx context.Context, a *models.ValetAssignment) error {
	_, err := d.Bun.NewInsert().Model(a).Exec(ctx)
	return err
}

// DeleteAssignment reports whether an assignment was removed.
func (d *DB) DeleteAssignment(ctx context.Context, employeeID, sessionID string) (bool, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.ValetAssignment)(nil)).
		Where("employee_id = ?", employeeID).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d *DB) SessionAssignments(ctx context.Context, sessionID string) ([]models.ValetAssignment, error) {
	var out []models.ValetAssignment
	err := d.Bun.NewSelect().
		Model(&out).
		Relation("Employee").
		Where("valet_assignment.session_id = ?", sessionID).
		Order("valet_assignment.created_at DESC").
		Scan(ctx)
	return out, err
}

func (d *DB) EmployeeAssignments(ctx context.Context, employeeID string) ([]models.ValetAssignment, error) {
	var out []models.ValetAssignment
	err := d.Bun.NewSelect().
		Model(&out).
		Relation("Session").
		Where("valet_assignment.employee_id = ?", employeeID).
		Order("session.date DESC").
		Scan(ctx)
	return out, err
}
