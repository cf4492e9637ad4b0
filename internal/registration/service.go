package registration

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/config"
	"eventpilot/internal/kafka"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/notify"
	"eventpilot/internal/pdf"
	"eventpilot/internal/qr"
	"eventpilot/internal/registration/db"
	"eventpilot/internal/search"
	"eventpilot/internal/session"
	"eventpilot/internal/utils"
	"eventpilot/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	qrImageSize = 300

	companionFallbackName  = "المرافق"
	registrantFallbackName = "المسجل"
)

var (
	ErrRegistrationClosed   = apperr.BadRequest("REGISTRATION_CLOSED", "التسجيل مغلق لهذه الجلسة")
	ErrSessionFull          = apperr.BadRequest("SESSION_FULL", "الجلسة مكتملة العدد")
	ErrDeadlinePassed       = apperr.BadRequest("DEADLINE_PASSED", "انتهى موعد التسجيل")
	ErrInviteRequired       = apperr.New(http.StatusForbidden, "INVITE_REQUIRED", "هذه الجلسة بدعوة فقط")
	ErrInvalidInvite        = apperr.BadRequest("INVALID_INVITE", "رابط الدعوة غير صالح أو منتهي الصلاحية")
	ErrTooManyCompanions    = apperr.BadRequest("TOO_MANY_COMPANIONS", "عدد المرافقين يتجاوز الحد المسموح")
	ErrInvalidPhone         = apperr.BadRequest("INVALID_PHONE", "رقم الهاتف غير صالح")
	ErrWeakPassword         = apperr.BadRequest("WEAK_PASSWORD", "كلمة المرور لا تستوفي الشروط")
	ErrAlreadyRegistered    = apperr.Conflict("ALREADY_REGISTERED", "أنت مسجل مسبقاً في هذه الجلسة")
	ErrRegistrationNotFound = apperr.NotFound("REGISTRATION_NOT_FOUND", "التسجيل غير موجود")
	ErrAlreadyApproved      = apperr.BadRequest("ALREADY_APPROVED", "التسجيل موافق عليه مسبقاً")
	ErrNotApproved          = apperr.BadRequest("NOT_APPROVED", "التسجيل غير مؤكد بعد")
)

type Service struct {
	DB       *db.DB
	Codec    *qr.Codec
	Cards    *pdf.RegistrationCardGenerator
	Notifier *notify.Notifier
	Events   kafka.Publisher
	Topics   config.TopicConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(store *db.DB, codec *qr.Codec, cards *pdf.RegistrationCardGenerator, notifier *notify.Notifier,
	events kafka.Publisher, topics config.TopicConfig, log *logger.Logger) *Service {
	return &Service{
		DB:       store,
		Codec:    codec,
		Cards:    cards,
		Notifier: notifier,
		Events:   events,
		Topics:   topics,
		Logger:   log,
		Now:      time.Now,
	}
}

type CompanionInput struct {
	Name    string `json:"name" validate:"required,max=100"`
	Company string `json:"company"`
	Title   string `json:"title"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// GuestRequest is the public registration form. CreateAccount with a
// password also opens a user account for the registrant.
type GuestRequest struct {
	SessionID        string           `json:"sessionId" validate:"required"`
	Name             string           `json:"name" validate:"required,max=100"`
	Email            string           `json:"email" validate:"required,email"`
	Phone            string           `json:"phone" validate:"required"`
	CompanyName      string           `json:"companyName"`
	Position         string           `json:"position"`
	InviteToken      string           `json:"inviteToken"`
	WantsToSponsor   bool             `json:"wantsToSponsor"`
	SponsorshipTypes []string         `json:"sponsorshipTypes" validate:"dive,sponsorshiptype"`
	SponsorType      string           `json:"sponsorType" validate:"omitempty,oneof=person company"`
	NeedsValet       bool             `json:"needsValet"`
	CreateAccount    bool             `json:"createAccount"`
	Password         string           `json:"password"`
	Companions       []CompanionInput `json:"companions" validate:"dive"`
}

type GuestResult struct {
	ID             string `json:"id"`
	IsApproved     bool   `json:"isApproved"`
	HasAccount     bool   `json:"hasAccount"`
	CompanionCount int    `json:"companionCount"`
}

// Event is the payload of registration.created and registration.approved.
type Event struct {
	RegistrationID string    `json:"registrationId"`
	SessionID      string    `json:"sessionId"`
	UserID         string    `json:"userId,omitempty"`
	IsApproved     bool      `json:"isApproved"`
	CompanionCount int       `json:"companionCount"`
	At             time.Time `json:"at"`
}

// GuestRegister validates and stores a registration with its companions.
// The invite is consumed in the same transaction, so a later failure leaves
// it usable. Emails and the created event go out after commit.
func (s *Service) GuestRegister(ctx context.Context, req GuestRequest) (*GuestResult, error) {
	now := s.Now()
	email := validation.NormalizeEmail(req.Email)

	var (
		sess       *models.Session
		reg        *models.Registration
		companions []models.Registration
		hasAccount bool
	)
	err := s.DB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		var err error
		sess, err = s.checkOpen(ctx, tx, req.SessionID, now)
		if err != nil {
			return err
		}

		if sess.InviteOnly {
			if strings.TrimSpace(req.InviteToken) == "" {
				return ErrInviteRequired
			}
			ok, err := tx.UseInvite(ctx, sess.ID, req.InviteToken, now)
			if err != nil {
				return fmt.Errorf("use invite: %w", err)
			}
			if !ok {
				return ErrInvalidInvite
			}
		}

		if len(req.Companions) > sess.MaxCompanions {
			return fmt.Errorf("%w: max %d", ErrTooManyCompanions, sess.MaxCompanions)
		}
		if !validation.ValidSaudiPhone(req.Phone) {
			return ErrInvalidPhone
		}
		phone := validation.FormatPhone(req.Phone)

		taken, err := tx.GuestRegistered(ctx, sess.ID, email, phone)
		if err != nil {
			return fmt.Errorf("check guest registration: %w", err)
		}
		if taken {
			return ErrAlreadyRegistered
		}

		user, err := tx.FindUserByContact(ctx, email, phone)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user != nil {
			registered, err := tx.UserRegistered(ctx, sess.ID, user.ID)
			if err != nil {
				return fmt.Errorf("check user registration: %w", err)
			}
			if registered {
				return ErrAlreadyRegistered
			}
		} else if req.CreateAccount && req.Password != "" {
			if user, err = s.createAccount(ctx, tx, req, email, phone, now); err != nil {
				return err
			}
		}

		reg = &models.Registration{
			ID:               utils.NewID(),
			SessionID:        sess.ID,
			IsApproved:       !sess.RequiresApproval,
			WantsToSponsor:   req.WantsToSponsor,
			SponsorshipTypes: req.SponsorshipTypes,
			SponsorType:      req.SponsorType,
			NeedsValet:       req.NeedsValet,
			RegisteredAt:     now,
		}
		if user != nil {
			hasAccount = true
			reg.UserID = user.ID
			reg.User = user
		} else {
			reg.GuestName = strings.TrimSpace(req.Name)
			reg.GuestEmail = email
			reg.GuestPhone = phone
			reg.GuestCompanyName = req.CompanyName
			reg.GuestPosition = req.Position
		}
		if err := tx.CreateRegistration(ctx, reg); err != nil {
			return fmt.Errorf("create registration: %w", err)
		}

		for _, c := range req.Companions {
			companion := models.Registration{
				ID:                      utils.NewID(),
				SessionID:               sess.ID,
				InvitedByRegistrationID: reg.ID,
				IsApproved:              reg.IsApproved,
				GuestName:               strings.TrimSpace(c.Name),
				GuestCompanyName:        c.Company,
				GuestPosition:           c.Title,
				RegisteredAt:            now,
			}
			if c.Phone != "" {
				companion.GuestPhone = validation.FormatPhone(c.Phone)
			}
			if c.Email != "" {
				companion.GuestEmail = validation.NormalizeEmail(c.Email)
			}
			if err := tx.CreateRegistration(ctx, &companion); err != nil {
				return fmt.Errorf("create companion: %w", err)
			}
			companions = append(companions, companion)
		}

		if req.NeedsValet && sess.ValetEnabled {
			rec := &models.ValetRecord{
				ID:             utils.NewID(),
				RegistrationID: reg.ID,
				SessionID:      sess.ID,
				GuestName:      reg.DisplayName(),
				GuestPhone:     reg.ContactPhone(),
				Status:         models.ValetExpected,
				CreatedAt:      now,
			}
			if err := tx.CreateValetRecord(ctx, rec); err != nil {
				return fmt.Errorf("create valet record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogDatabase("INSERT", "registrations", fmt.Sprintf("Registered %s for session %s with %d companions", reg.ID, sess.ID, len(companions)))

	info := notify.SessionInfoFrom(sess)
	s.notifyRegistrant(ctx, reg, info)
	for i := range companions {
		s.notifyCompanion(ctx, &companions[i], reg.DisplayName(), info)
	}
	s.publish(ctx, s.Topics.RegistrationCreated, reg, len(companions))

	return &GuestResult{
		ID:             reg.ID,
		IsApproved:     reg.IsApproved,
		HasAccount:     hasAccount,
		CompanionCount: len(companions),
	}, nil
}

func (s *Service) checkOpen(ctx context.Context, tx *db.DB, sessionID string, now time.Time) (*models.Session, error) {
	sess, err := tx.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if sess == nil {
		return nil, session.ErrSessionNotFound
	}
	if sess.Status != models.SessionOpen {
		return nil, ErrRegistrationClosed
	}
	count, err := tx.CountApprovedPrimary(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	if count >= sess.MaxParticipants {
		return nil, ErrSessionFull
	}
	if sess.RegistrationDeadline != nil && now.After(*sess.RegistrationDeadline) {
		return nil, ErrDeadlinePassed
	}
	return sess, nil
}

func (s *Service) createAccount(ctx context.Context, tx *db.DB, req GuestRequest, email, phone string, now time.Time) (*models.User, error) {
	if problems := validation.ValidatePassword(req.Password); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(problems, ", "))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	username, err := validation.UniqueUsername(ctx, req.Name, tx.UsernameTaken)
	if err != nil {
		return nil, fmt.Errorf("pick username: %w", err)
	}
	user := &models.User{
		ID:           utils.NewID(),
		Name:         strings.TrimSpace(req.Name),
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		CompanyName:  req.CompanyName,
		Position:     req.Position,
		IsActive:     true,
		CreatedAt:    now,
	}
	if err := tx.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.Logger.LogDatabase("INSERT", "users", fmt.Sprintf("Created account %s during registration", user.ID))
	return user, nil
}

// Approve confirms a pending registration and its companions.
func (s *Service) Approve(ctx context.Context, id, notes string) error {
	reg, err := s.mustGet(ctx, id)
	if err != nil {
		return err
	}
	if reg.IsApproved {
		return ErrAlreadyApproved
	}

	companions, err := s.approve(ctx, reg, notes)
	if err != nil {
		return err
	}

	info := notify.SessionInfoFrom(reg.Session)
	s.notifyRegistrant(ctx, reg, info)
	for i := range companions {
		s.notifyCompanion(ctx, &companions[i], reg.DisplayName(), info)
	}
	s.publish(ctx, s.Topics.RegistrationApproved, reg, len(companions))
	return nil
}

func (s *Service) approve(ctx context.Context, reg *models.Registration, notes string) ([]models.Registration, error) {
	var companions []models.Registration
	err := s.DB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if err := tx.Approve(ctx, reg.ID, notes); err != nil {
			return fmt.Errorf("approve %s: %w", reg.ID, err)
		}
		if _, err := tx.ApproveCompanions(ctx, reg.ID); err != nil {
			return fmt.Errorf("approve companions of %s: %w", reg.ID, err)
		}
		var err error
		companions, err = tx.Companions(ctx, reg.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	reg.IsApproved = true
	if notes != "" {
		reg.ApprovalNotes = notes
	}
	return companions, nil
}

// ApproveAll approves every pending primary registration of a session and
// returns how many were approved. Companions follow their registrant.
func (s *Service) ApproveAll(ctx context.Context, sessionID string) (int, error) {
	sess, err := s.DB.GetSessionByID(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if sess == nil {
		return 0, session.ErrSessionNotFound
	}
	pending, err := s.DB.PendingPrimary(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("list pending registrations: %w", err)
	}

	info := notify.SessionInfoFrom(sess)
	for i := range pending {
		reg := &pending[i]
		reg.Session = sess
		companions, err := s.approve(ctx, reg, "")
		if err != nil {
			return i, err
		}
		s.notifyRegistrant(ctx, reg, info)
		for j := range companions {
			s.notifyCompanion(ctx, &companions[j], reg.DisplayName(), info)
		}
		s.publish(ctx, s.Topics.RegistrationApproved, reg, len(companions))
	}

	s.Logger.LogDatabase("UPDATE", "registrations", fmt.Sprintf("Approved %d registrations for session %s", len(pending), sessionID))
	return len(pending), nil
}

// ListOptions filters ListBySession. IncludeUnapproved defaults to true and
// IncludeInvited (companions) to false.
type ListOptions struct {
	Search            string
	IncludeUnapproved *bool
	IncludeInvited    *bool
}

type Item struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	CompanyName    string    `json:"companyName,omitempty"`
	Position       string    `json:"position,omitempty"`
	IsApproved     bool      `json:"isApproved"`
	IsGuest        bool      `json:"isGuest"`
	IsInvited      bool      `json:"isInvited"`
	InvitedByName  string    `json:"invitedByName,omitempty"`
	CompanionCount int       `json:"companionCount"`
	NeedsValet     bool      `json:"needsValet"`
	RegisteredAt   time.Time `json:"registeredAt"`
}

// ListBySession returns the session's registrations, newest first. Search
// is Arabic-aware and runs over name, email, phone and company.
func (s *Service) ListBySession(ctx context.Context, sessionID string, opts ListOptions) ([]Item, error) {
	regs, err := s.DB.SessionRegistrations(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list registrations for %s: %w", sessionID, err)
	}

	byID := make(map[string]*models.Registration, len(regs))
	companionCount := make(map[string]int)
	for i := range regs {
		byID[regs[i].ID] = &regs[i]
		if regs[i].IsCompanion() {
			companionCount[regs[i].InvitedByRegistrationID]++
		}
	}

	includeUnapproved := opts.IncludeUnapproved == nil || *opts.IncludeUnapproved
	includeInvited := opts.IncludeInvited != nil && *opts.IncludeInvited

	items := []Item{}
	for i := range regs {
		reg := &regs[i]
		if !includeUnapproved && !reg.IsApproved {
			continue
		}
		if !includeInvited && reg.IsCompanion() {
			continue
		}
		item := toItem(reg, byID, companionCount)
		if !search.MatchAny(opts.Search, item.Name, item.Email, item.Phone, item.CompanyName) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func toItem(reg *models.Registration, byID map[string]*models.Registration, companionCount map[string]int) Item {
	item := Item{
		ID:             reg.ID,
		Name:           reg.DisplayName(),
		Email:          reg.ContactEmail(),
		Phone:          reg.ContactPhone(),
		CompanyName:    reg.GuestCompanyName,
		Position:       reg.GuestPosition,
		IsApproved:     reg.IsApproved,
		IsGuest:        reg.UserID == "",
		IsInvited:      reg.IsCompanion(),
		CompanionCount: companionCount[reg.ID],
		NeedsValet:     reg.NeedsValet,
		RegisteredAt:   reg.RegisteredAt,
	}
	if reg.User != nil {
		item.CompanyName = reg.User.CompanyName
		item.Position = reg.User.Position
	}
	if parent, ok := byID[reg.InvitedByRegistrationID]; ok {
		item.InvitedByName = parent.DisplayName()
	}
	return item
}

type ConfirmationSession struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Location string    `json:"location,omitempty"`
}

type CompanionView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsApproved bool   `json:"isApproved"`
}

// Confirmation is what the registrant sees after registering.
type Confirmation struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Email         string              `json:"email,omitempty"`
	IsApproved    bool                `json:"isApproved"`
	RegisteredAt  time.Time           `json:"registeredAt"`
	Session       ConfirmationSession `json:"session"`
	Companions    []CompanionView     `json:"companions"`
	HasAccount    bool                `json:"hasAccount"`
	IsInvited     bool                `json:"isInvited"`
	InvitedByName string              `json:"invitedByName,omitempty"`
	QRCode        string              `json:"qrCode,omitempty"`
}

func (s *Service) Confirmation(ctx context.Context, id string) (*Confirmation, error) {
	reg, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	companions, err := s.DB.Companions(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("load companions of %s: %w", reg.ID, err)
	}

	out := &Confirmation{
		ID:           reg.ID,
		Name:         reg.DisplayName(),
		Email:        reg.ContactEmail(),
		IsApproved:   reg.IsApproved,
		RegisteredAt: reg.RegisteredAt,
		Session: ConfirmationSession{
			ID:       reg.Session.ID,
			Title:    reg.Session.Title,
			Date:     reg.Session.Date,
			Location: reg.Session.Location,
		},
		Companions: make([]CompanionView, 0, len(companions)),
		HasAccount: reg.UserID != "",
		IsInvited:  reg.IsCompanion(),
	}
	for _, c := range companions {
		out.Companions = append(out.Companions, CompanionView{ID: c.ID, Name: c.GuestName, IsApproved: c.IsApproved})
	}
	if reg.IsCompanion() {
		parent, err := s.DB.GetRegistration(ctx, reg.InvitedByRegistrationID)
		if err != nil {
			return nil, fmt.Errorf("load registrant of %s: %w", reg.ID, err)
		}
		if parent != nil {
			out.InvitedByName = parent.DisplayName()
		}
	}
	if reg.IsApproved {
		data, err := s.qrData(reg)
		if err != nil {
			return nil, err
		}
		if out.QRCode, err = qr.DataURL(data, qrImageSize); err != nil {
			return nil, fmt.Errorf("render qr: %w", err)
		}
	}
	return out, nil
}

func (s *Service) mustGet(ctx context.Context, id string) (*models.Registration, error) {
	reg, err := s.DB.GetRegistration(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get registration %s: %w", id, err)
	}
	if reg == nil || reg.Session == nil {
		return nil, ErrRegistrationNotFound
	}
	return reg, nil
}

func (s *Service) qrData(reg *models.Registration) (string, error) {
	data, err := s.Codec.Encode(qr.NewCheckInPayload(reg.ID, reg.SessionID))
	if err != nil {
		return "", fmt.Errorf("encode qr payload: %w", err)
	}
	return data, nil
}

func (s *Service) qrPNG(reg *models.Registration) ([]byte, error) {
	data, err := s.qrData(reg)
	if err != nil {
		return nil, err
	}
	png, err := qr.PNG(data, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}

func (s *Service) notifyRegistrant(ctx context.Context, reg *models.Registration, info notify.SessionInfo) {
	to := reg.ContactEmail()
	if to == "" {
		return
	}
	if !reg.IsApproved {
		_ = s.Notifier.RegistrationPending(ctx, to, reg.DisplayName(), info)
		return
	}
	png, err := s.qrPNG(reg)
	if err != nil {
		s.Logger.Error("REGISTRATION", fmt.Sprintf("QR for %s: %v", reg.ID, err))
		return
	}
	_ = s.Notifier.RegistrationConfirmed(ctx, to, reg.DisplayName(), info, png)
}

func (s *Service) notifyCompanion(ctx context.Context, c *models.Registration, registrantName string, info notify.SessionInfo) {
	if c.GuestEmail == "" {
		return
	}
	name := c.GuestName
	if name == "" {
		name = companionFallbackName
	}
	if registrantName == "" {
		registrantName = registrantFallbackName
	}
	var png []byte
	if c.IsApproved {
		var err error
		if png, err = s.qrPNG(c); err != nil {
			s.Logger.Error("REGISTRATION", fmt.Sprintf("QR for companion %s: %v", c.ID, err))
			return
		}
	}
	_ = s.Notifier.Companion(ctx, c.GuestEmail, name, registrantName, info, c.IsApproved, png)
}

func (s *Service) publish(ctx context.Context, topic string, reg *models.Registration, companions int) {
	if s.Events == nil {
		return
	}
	ev := Event{
		RegistrationID: reg.ID,
		SessionID:      reg.SessionID,
		UserID:         reg.UserID,
		IsApproved:     reg.IsApproved,
		CompanionCount: companions,
		At:             s.Now(),
	}
	if err := s.Events.Publish(ctx, topic, reg.SessionID, ev); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Publish %s for %s: %v", topic, reg.ID, err))
	}
}
