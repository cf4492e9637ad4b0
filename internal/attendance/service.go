package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/attendance/db"
	"eventpilot/internal/kafka"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/qr"
	"eventpilot/internal/registration"
	"eventpilot/internal/session"
	"eventpilot/internal/utils"
)

const (
	KindUser      = "user"
	KindGuest     = "guest"
	KindCompanion = "companion"
)

var (
	ErrInvalidQR       = apperr.BadRequest("INVALID_QR", "رمز QR غير صالح")
	ErrNotApproved     = apperr.BadRequest("NOT_APPROVED", "التسجيل غير مؤكد")
	ErrSessionMismatch = apperr.BadRequest("SESSION_MISMATCH", "رمز QR لا يتطابق مع الجلسة الحالية")
	ErrNoApprovedQR    = apperr.NotFound("NO_APPROVED_REGISTRATION", "لم يتم العثور على تسجيل مؤكد لهذه الجلسة")
)

type Service struct {
	DB     *db.DB
	Codec  *qr.Codec
	Events kafka.Publisher
	Topic  string
	Logger *logger.Logger
	Now    func() time.Time
}

func NewService(store *db.DB, codec *qr.Codec, events kafka.Publisher, topic string, log *logger.Logger) *Service {
	return &Service{DB: store, Codec: codec, Events: events, Topic: topic, Logger: log, Now: time.Now}
}

// CheckIn is the scanner's answer for one QR code.
type CheckIn struct {
	RegistrationID string    `json:"registrationId"`
	Kind           string    `json:"type"`
	Name           string    `json:"name"`
	RegistrantName string    `json:"registrantName,omitempty"`
	SessionTitle   string    `json:"sessionTitle"`
	CheckInTime    time.Time `json:"checkInTime"`
	AlreadyChecked bool      `json:"alreadyCheckedIn"`
}

type Event struct {
	RegistrationID string    `json:"registrationId"`
	SessionID      string    `json:"sessionId"`
	Kind           string    `json:"kind"`
	QRVerified     bool      `json:"qrVerified"`
	At             time.Time `json:"at"`
}

// CheckInQR marks the registration behind a scanned code as attended.
// Scanning the same code again refreshes the check-in time.
func (s *Service) CheckInQR(ctx context.Context, raw string) (*CheckIn, error) {
	payload, err := s.Codec.Decode(raw)
	if err != nil {
		if errors.Is(err, qr.ErrInvalidPayload) {
			return nil, ErrInvalidQR
		}
		return nil, err
	}

	reg, err := s.DB.GetRegistration(ctx, payload.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("get registration %s: %w", payload.RegistrationID, err)
	}
	if reg == nil || reg.Session == nil {
		return nil, registration.ErrRegistrationNotFound
	}
	if !reg.IsApproved {
		return nil, ErrNotApproved
	}
	if reg.SessionID != payload.SessionID {
		return nil, ErrSessionMismatch
	}

	previous, err := s.DB.GetAttendance(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("get attendance %s: %w", reg.ID, err)
	}

	now := s.Now()
	if err := s.record(ctx, reg, true, true, now); err != nil {
		return nil, err
	}

	out := &CheckIn{
		RegistrationID: reg.ID,
		Kind:           kindOf(reg),
		Name:           reg.DisplayName(),
		SessionTitle:   reg.Session.Title,
		CheckInTime:    now,
		AlreadyChecked: previous != nil && previous.Attended,
	}
	if reg.IsCompanion() {
		parent, err := s.DB.GetRegistration(ctx, reg.InvitedByRegistrationID)
		if err != nil {
			return nil, fmt.Errorf("get registrant of %s: %w", reg.ID, err)
		}
		if parent != nil {
			out.RegistrantName = parent.DisplayName()
		}
	}

	s.Logger.Info("ATTENDANCE", fmt.Sprintf("Checked in %s (%s) for session %s", reg.ID, out.Kind, reg.SessionID))
	return out, nil
}

// Mark sets attendance by hand, without a QR scan.
func (s *Service) Mark(ctx context.Context, registrationID string, attended bool) (*models.Attendance, error) {
	reg, err := s.DB.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("get registration %s: %w", registrationID, err)
	}
	if reg == nil {
		return nil, registration.ErrRegistrationNotFound
	}

	if err := s.record(ctx, reg, attended, false, s.Now()); err != nil {
		return nil, err
	}
	return s.DB.GetAttendance(ctx, reg.ID)
}

func (s *Service) record(ctx context.Context, reg *models.Registration, attended, verified bool, now time.Time) error {
	a := &models.Attendance{
		ID:             utils.NewID(),
		RegistrationID: reg.ID,
		SessionID:      reg.SessionID,
		UserID:         reg.UserID,
		Attended:       attended,
		QRVerified:     verified,
	}
	if attended {
		a.CheckInTime = &now
	}
	if err := s.DB.UpsertAttendance(ctx, a); err != nil {
		return fmt.Errorf("record attendance %s: %w", reg.ID, err)
	}

	if s.Events != nil && attended {
		ev := Event{RegistrationID: reg.ID, SessionID: reg.SessionID, Kind: kindOf(reg), QRVerified: verified, At: now}
		if err := s.Events.Publish(ctx, s.Topic, reg.SessionID, ev); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Publish attendance for %s: %v", reg.ID, err))
		}
	}
	return nil
}

func kindOf(reg *models.Registration) string {
	switch {
	case reg.IsCompanion():
		return KindCompanion
	case reg.UserID != "":
		return KindUser
	}
	return KindGuest
}

type Entry struct {
	RegistrationID string     `json:"registrationId"`
	UserID         string     `json:"userId,omitempty"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Kind           string     `json:"type"`
	Attended       bool       `json:"attended"`
	CheckInTime    *time.Time `json:"checkInTime,omitempty"`
	QRVerified     bool       `json:"qrVerified"`
	CompanionCount int        `json:"companionCount"`
}

type Stats struct {
	Total           int `json:"total"`
	Attended        int `json:"attended"`
	Pending         int `json:"pending"`
	TotalCompanions int `json:"totalCompanions"`
}

type SessionReport struct {
	SessionID string    `json:"sessionId"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	Entries   []Entry   `json:"attendanceList"`
	Stats     Stats     `json:"stats"`
}

// SessionAttendance lists every approved registration with its attendance.
func (s *Service) SessionAttendance(ctx context.Context, sessionID string) (*SessionReport, error) {
	sess, err := s.DB.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if sess == nil {
		return nil, session.ErrSessionNotFound
	}

	regs, err := s.DB.ApprovedRegistrations(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list registrations for %s: %w", sessionID, err)
	}
	rows, err := s.DB.SessionAttendances(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attendance for %s: %w", sessionID, err)
	}
	byReg := make(map[string]models.Attendance, len(rows))
	for _, a := range rows {
		byReg[a.RegistrationID] = a
	}
	companions := make(map[string]int)
	for _, r := range regs {
		if r.IsCompanion() {
			companions[r.InvitedByRegistrationID]++
		}
	}

	report := &SessionReport{SessionID: sess.ID, Title: sess.Title, Date: sess.Date, Entries: make([]Entry, 0, len(regs))}
	for i := range regs {
		r := &regs[i]
		e := Entry{
			RegistrationID: r.ID,
			UserID:         r.UserID,
			Name:           r.DisplayName(),
			Email:          r.ContactEmail(),
			Phone:          r.ContactPhone(),
			Kind:           kindOf(r),
			CompanionCount: companions[r.ID],
		}
		if a, ok := byReg[r.ID]; ok {
			e.Attended = a.Attended
			e.CheckInTime = a.CheckInTime
			e.QRVerified = a.QRVerified
		}
		report.Entries = append(report.Entries, e)

		if r.IsCompanion() {
			report.Stats.TotalCompanions++
		}
		report.Stats.Total++
		if e.Attended {
			report.Stats.Attended++
		} else {
			report.Stats.Pending++
		}
	}
	return report, nil
}

type MyQR struct {
	RegistrationID string `json:"registrationId"`
	QRCode         string `json:"qrCode"`
}

// MyQR returns the check-in code of the signed-in user, known by email,
// for a session.
func (s *Service) MyQR(ctx context.Context, email, sessionID string) (*MyQR, error) {
	reg, err := s.DB.UserRegistration(ctx, email, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get registration of %s: %w", email, err)
	}
	if reg == nil {
		return nil, ErrNoApprovedQR
	}
	data, err := s.Codec.Encode(qr.NewCheckInPayload(reg.ID, reg.SessionID))
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}
	url, err := qr.DataURL(data, qr.DefaultSize)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return &MyQR{RegistrationID: reg.ID, QRCode: url}, nil
}
