package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/notify"
	"eventpilot/internal/session/db"
	"eventpilot/internal/utils"
	"eventpilot/internal/validation"
)

const (
	DefaultMaxParticipants = 50
	DefaultMaxCompanions   = 5
	DefaultPageSize        = 20
)

var (
	ErrSessionNotFound        = apperr.NotFound("SESSION_NOT_FOUND", "الجلسة غير موجودة")
	ErrDuplicateSessionNumber = apperr.Conflict("DUPLICATE_SESSION_NUMBER", "رقم الجلسة مستخدم مسبقاً")
	ErrDuplicateSlug          = apperr.Conflict("DUPLICATE_SLUG", "الرابط المختصر مستخدم مسبقاً")
	ErrInvalidStatus          = apperr.BadRequest("INVALID_STATUS", "حالة الجلسة غير صحيحة")
	ErrGuestNotFound          = apperr.NotFound("GUEST_NOT_FOUND", "الضيف غير موجود")
)

type DBLayer interface {
	CreateSession(ctx context.Context, s *models.Session) error
	UpdateSession(ctx context.Context, s *models.Session) error
	GetSessionByID(ctx context.Context, id string) (*models.Session, error)
	GetSessionBySlug(ctx context.Context, slug string) (*models.Session, error)
	SessionNumberTaken(ctx context.Context, number int, excludeID string) (bool, error)
	SlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	NextSessionNumber(ctx context.Context) (int, error)
	ListSessions(ctx context.Context, f db.ListFilter) ([]models.Session, int, error)
	UpcomingSessions(ctx context.Context, now time.Time, limit int) ([]models.Session, error)
	CountApprovedPrimary(ctx context.Context, sessionID string) (int, error)
	SessionGuests(ctx context.Context, sessionID string) ([]models.SessionGuest, error)
	CreateGuest(ctx context.Context, g *models.Guest) error
	GetGuestByID(ctx context.Context, id string) (*models.Guest, error)
	AttachGuest(ctx context.Context, sg *models.SessionGuest) error
	DetachGuest(ctx context.Context, sessionID, guestID string) error
	CreateInvite(ctx context.Context, inv *models.Invite) error
	ListInvites(ctx context.Context, sessionID string) ([]models.Invite, error)
}

type Service struct {
	DB       DBLayer
	Notifier *notify.Notifier
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(store DBLayer, notifier *notify.Notifier, log *logger.Logger) *Service {
	return &Service{DB: store, Notifier: notifier, Logger: log, Now: time.Now}
}

// SessionInput is the admin form for creating or editing a session. Nil
// pointers keep the current value on update.
type SessionInput struct {
	SessionNumber        *int       `json:"sessionNumber" validate:"omitempty,min=1"`
	Title                string     `json:"title" validate:"required,max=200"`
	Slug                 *string    `json:"slug"`
	Description          string     `json:"description"`
	Date                 time.Time  `json:"date" validate:"required"`
	Location             string     `json:"location"`
	LocationURL          string     `json:"locationUrl" validate:"omitempty,url"`
	Status               string     `json:"status" validate:"omitempty,oneof=open closed completed cancelled"`
	MaxParticipants      *int       `json:"maxParticipants" validate:"omitempty,min=1"`
	MaxCompanions        *int       `json:"maxCompanions" validate:"omitempty,min=0"`
	RequiresApproval     bool       `json:"requiresApproval"`
	InviteOnly           bool       `json:"inviteOnly"`
	RegistrationDeadline *time.Time `json:"registrationDeadline"`
	ValetEnabled         bool       `json:"valetEnabled"`
	ValetLotCapacity     int        `json:"valetLotCapacity" validate:"min=0"`
	ValetRetrievalNotice int        `json:"valetRetrievalNotice" validate:"min=0"`
}

// Details is the public view of a session.
type Details struct {
	*models.Session
	RegisteredCount int                   `json:"registeredCount"`
	SpotsLeft       int                   `json:"spotsLeft"`
	Guests          []models.SessionGuest `json:"guests"`
}

type Page struct {
	Sessions []models.Session `json:"sessions"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

type Countdown struct {
	SessionID        string    `json:"sessionId"`
	StartsAt         time.Time `json:"startsAt"`
	SecondsRemaining int64     `json:"secondsRemaining"`
	Started          bool      `json:"started"`
	RegistrationOpen bool      `json:"registrationOpen"`
}

func (s *Service) CreateSession(ctx context.Context, in SessionInput) (*models.Session, error) {
	number := 0
	if in.SessionNumber != nil {
		number = *in.SessionNumber
		taken, err := s.DB.SessionNumberTaken(ctx, number, "")
		if err != nil {
			return nil, fmt.Errorf("check session number: %w", err)
		}
		if taken {
			return nil, ErrDuplicateSessionNumber
		}
	} else {
		next, err := s.DB.NextSessionNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("next session number: %w", err)
		}
		number = next
	}

	slug := validation.Slugify(in.Title)
	if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
		slug = validation.Slugify(*in.Slug)
	}
	if err := s.ensureSlugFree(ctx, slug, ""); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.SessionOpen
	}

	sess := &models.Session{
		ID:                   utils.NewID(),
		SessionNumber:        number,
		Title:                strings.TrimSpace(in.Title),
		Slug:                 slug,
		Description:          in.Description,
		Date:                 in.Date,
		Location:             in.Location,
		LocationURL:          in.LocationURL,
		Status:               status,
		MaxParticipants:      intOr(in.MaxParticipants, DefaultMaxParticipants),
		MaxCompanions:        intOr(in.MaxCompanions, DefaultMaxCompanions),
		RequiresApproval:     in.RequiresApproval,
		InviteOnly:           in.InviteOnly,
		RegistrationDeadline: in.RegistrationDeadline,
		ValetEnabled:         in.ValetEnabled,
		ValetLotCapacity:     in.ValetLotCapacity,
		ValetRetrievalNotice: in.ValetRetrievalNotice,
		CreatedAt:            s.Now(),
	}
	if err := s.DB.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.Logger.LogDatabase("INSERT", "sessions", fmt.Sprintf("Created session #%d %s", sess.SessionNumber, sess.ID))
	return sess, nil
}

func (s *Service) UpdateSession(ctx context.Context, id string, in SessionInput) (*models.Session, error) {
	sess, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.SessionNumber != nil && *in.SessionNumber != sess.SessionNumber {
		taken, err := s.DB.SessionNumberTaken(ctx, *in.SessionNumber, id)
		if err != nil {
			return nil, fmt.Errorf("check session number: %w", err)
		}
		if taken {
			return nil, ErrDuplicateSessionNumber
		}
		sess.SessionNumber = *in.SessionNumber
	}
	if in.Slug != nil {
		slug := validation.Slugify(*in.Slug)
		if slug != sess.Slug {
			if slug != "" {
				if err := s.ensureSlugFree(ctx, slug, id); err != nil {
					return nil, err
				}
			}
			sess.Slug = slug
		}
	}
	if in.Status != "" {
		sess.Status = in.Status
	}

	sess.Title = strings.TrimSpace(in.Title)
	sess.Description = in.Description
	sess.Date = in.Date
	sess.Location = in.Location
	sess.LocationURL = in.LocationURL
	sess.MaxParticipants = intOr(in.MaxParticipants, sess.MaxParticipants)
	sess.MaxCompanions = intOr(in.MaxCompanions, sess.MaxCompanions)
	sess.RequiresApproval = in.RequiresApproval
	sess.InviteOnly = in.InviteOnly
	sess.RegistrationDeadline = in.RegistrationDeadline
	sess.ValetEnabled = in.ValetEnabled
	sess.ValetLotCapacity = in.ValetLotCapacity
	sess.ValetRetrievalNotice = in.ValetRetrievalNotice

	if err := s.DB.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("update session %s: %w", id, err)
	}
	return sess, nil
}

// SetStatus moves a session to one of the known statuses.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*models.Session, error) {
	switch status {
	case models.SessionOpen, models.SessionClosed, models.SessionCompleted, models.SessionCancelled:
	default:
		return nil, ErrInvalidStatus
	}
	sess, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Status = status
	if err := s.DB.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("update session %s: %w", id, err)
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*Details, error) {
	sess, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, sess)
}

func (s *Service) GetSessionBySlug(ctx context.Context, slug string) (*Details, error) {
	sess, err := s.DB.GetSessionBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get session by slug %s: %w", slug, err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return s.details(ctx, sess)
}

func (s *Service) details(ctx context.Context, sess *models.Session) (*Details, error) {
	count, err := s.DB.CountApprovedPrimary(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("count registrations for %s: %w", sess.ID, err)
	}
	guests, err := s.DB.SessionGuests(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load guests for %s: %w", sess.ID, err)
	}
	spots := sess.MaxParticipants - count
	if spots < 0 {
		spots = 0
	}
	return &Details{Session: sess, RegisteredCount: count, SpotsLeft: spots, Guests: guests}, nil
}

// ListSessions pages through sessions, newest first. page starts at 1.
func (s *Service) ListSessions(ctx context.Context, status, term string, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = DefaultPageSize
	}
	sessions, total, err := s.DB.ListSessions(ctx, db.ListFilter{
		Status: status,
		Search: term,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	return &Page{Sessions: sessions, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *Service) Upcoming(ctx context.Context, limit int) ([]models.Session, error) {
	sessions, err := s.DB.UpcomingSessions(ctx, s.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("upcoming sessions: %w", err)
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	return sessions, nil
}

func (s *Service) Countdown(ctx context.Context, id string) (*Countdown, error) {
	sess, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	remaining := int64(sess.Date.Sub(now) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return &Countdown{
		SessionID:        sess.ID,
		StartsAt:         sess.Date,
		SecondsRemaining: remaining,
		Started:          !now.Before(sess.Date),
		RegistrationOpen: RegistrationOpen(sess, now),
	}, nil
}

// RegistrationOpen reports whether new registrations are accepted at now.
func RegistrationOpen(sess *models.Session, now time.Time) bool {
	if sess.Status != models.SessionOpen {
		return false
	}
	if sess.RegistrationDeadline != nil && now.After(*sess.RegistrationDeadline) {
		return false
	}
	return now.Before(sess.Date)
}

type GuestInput struct {
	Name     string `json:"name" validate:"required"`
	Title    string `json:"title"`
	JobTitle string `json:"jobTitle"`
	Company  string `json:"company"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

func (s *Service) CreateGuest(ctx context.Context, in GuestInput) (*models.Guest, error) {
	g := &models.Guest{
		ID:        utils.NewID(),
		Name:      strings.TrimSpace(in.Name),
		Title:     in.Title,
		JobTitle:  in.JobTitle,
		Company:   in.Company,
		ImageURL:  in.ImageURL,
		IsActive:  true,
		CreatedAt: s.Now(),
	}
	if err := s.DB.CreateGuest(ctx, g); err != nil {
		return nil, fmt.Errorf("create guest: %w", err)
	}
	return g, nil
}

// AttachGuest shows a guest on the session at the given display position.
func (s *Service) AttachGuest(ctx context.Context, sessionID, guestID string, order int) (*models.SessionGuest, error) {
	if _, err := s.mustGet(ctx, sessionID); err != nil {
		return nil, err
	}
	g, err := s.DB.GetGuestByID(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("get guest %s: %w", guestID, err)
	}
	if g == nil {
		return nil, ErrGuestNotFound
	}
	sg := &models.SessionGuest{ID: utils.NewID(), SessionID: sessionID, GuestID: guestID, DisplayOrder: order, Guest: g}
	if err := s.DB.AttachGuest(ctx, sg); err != nil {
		return nil, fmt.Errorf("attach guest %s to %s: %w", guestID, sessionID, err)
	}
	return sg, nil
}

func (s *Service) DetachGuest(ctx context.Context, sessionID, guestID string) error {
	if err := s.DB.DetachGuest(ctx, sessionID, guestID); err != nil {
		return fmt.Errorf("detach guest %s from %s: %w", guestID, sessionID, err)
	}
	return nil
}

type InviteInput struct {
	Email        string `json:"email" validate:"omitempty,email"`
	ExpiresInHrs int    `json:"expiresInHours" validate:"min=0"`
}

// CreateInvite issues an invite token for an invite-only session and, when
// an email is given, sends the invitation. Email failures are only logged.
func (s *Service) CreateInvite(ctx context.Context, sessionID string, in InviteInput) (*models.Invite, error) {
	sess, err := s.mustGet(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	inv := &models.Invite{
		ID:        utils.NewID(),
		SessionID: sessionID,
		Token:     utils.NewToken(),
		Email:     validation.NormalizeEmail(in.Email),
		CreatedAt: s.Now(),
	}
	if in.ExpiresInHrs > 0 {
		expires := s.Now().Add(time.Duration(in.ExpiresInHrs) * time.Hour)
		inv.ExpiresAt = &expires
	}
	if err := s.DB.CreateInvite(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	if inv.Email != "" && s.Notifier != nil {
		if err := s.Notifier.Invitation(ctx, inv.Email, notify.SessionInfoFrom(sess), inv.Token); err != nil {
			s.Logger.Warn("SESSION", fmt.Sprintf("Invite %s created but email failed: %v", inv.ID, err))
		}
	}
	return inv, nil
}

func (s *Service) ListInvites(ctx context.Context, sessionID string) ([]models.Invite, error) {
	invites, err := s.DB.ListInvites(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	if invites == nil {
		invites = []models.Invite{}
	}
	return invites, nil
}

func (s *Service) mustGet(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.DB.GetSessionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) ensureSlugFree(ctx context.Context, slug, excludeID string) error {
	if slug == "" {
		return nil
	}
	taken, err := s.DB.SlugTaken(ctx, slug, excludeID)
	if err != nil {
		return fmt.Errorf("check slug: %w", err)
	}
	if taken {
		return ErrDuplicateSlug
	}
	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
