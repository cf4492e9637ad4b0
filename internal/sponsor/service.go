package sponsor

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/session"
	"eventpilot/internal/sponsor/db"
	"eventpilot/internal/utils"
	"eventpilot/internal/validation"
)

const DefaultPageSize = 50

var (
	ErrSponsorNotFound     = apperr.NotFound("SPONSOR_NOT_FOUND", "الراعي غير موجود")
	ErrUserNotFound        = apperr.NotFound("USER_NOT_FOUND", "المستخدم غير موجود")
	ErrSponsorshipNotFound = apperr.NotFound("SPONSORSHIP_NOT_FOUND", "سجل الرعاية غير موجود")
	ErrInvalidType         = apperr.BadRequest("INVALID_SPONSORSHIP_TYPE", "نوع الرعاية غير صحيح")
	ErrSponsorRequired     = apperr.BadRequest("SPONSOR_REQUIRED", "يجب اختيار راعٍ أو تحديد الرعاية الذاتية")
	ErrNotLinkedToUser     = apperr.BadRequest("SPONSOR_NOT_LINKED", "هذا الراعي غير مرتبط بأي مستخدم")
)

type DBLayer interface {
	CreateSponsor(ctx context.Context, s *models.Sponsor) error
	UpdateSponsor(ctx context.Context, s *models.Sponsor) error
	DeleteSponsor(ctx context.Context, id string) error
	GetSponsor(ctx context.Context, id string) (*models.Sponsor, error)
	ListSponsors(ctx context.Context, f db.ListFilter) ([]models.Sponsor, int, error)
	AllSponsors(ctx context.Context) ([]models.Sponsor, error)
	UserExists(ctx context.Context, id string) (bool, error)
	SessionExists(ctx context.Context, id string) (bool, error)
	CreateSponsorship(ctx context.Context, es *models.EventSponsorship) error
	UpdateSponsorship(ctx context.Context, es *models.EventSponsorship) error
	DeleteSponsorship(ctx context.Context, id string) error
	GetSponsorship(ctx context.Context, id string) (*models.EventSponsorship, error)
	SessionSponsorships(ctx context.Context, sessionID string) ([]models.EventSponsorship, error)
	SponsorSponsorships(ctx context.Context, sponsorID string) ([]models.EventSponsorship, error)
	CountSessionSponsorships(ctx context.Context, sessionID string) (int, error)
}

type Service struct {
	DB     DBLayer
	Logger *logger.Logger
	Now    func() time.Time
}

func NewService(store DBLayer, log *logger.Logger) *Service {
	return &Service{DB: store, Logger: log, Now: time.Now}
}

type SponsorInput struct {
	Name             string   `json:"name" validate:"required,max=200"`
	Email            string   `json:"email" validate:"omitempty,email"`
	Phone            string   `json:"phone"`
	Type             string   `json:"type" validate:"omitempty,oneof=person company"`
	LogoURL          string   `json:"logoUrl" validate:"omitempty,url"`
	SponsorshipTypes []string `json:"sponsorshipTypes" validate:"dive,sponsorshiptype"`
	UserID           string   `json:"userId"`
}

type Page struct {
	Sponsors []models.Sponsor `json:"sponsors"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// Details is a sponsor with every slot it has filled.
type Details struct {
	*models.Sponsor
	Sponsorships []models.EventSponsorship `json:"sponsorships"`
}

func (s *Service) Create(ctx context.Context, in SponsorInput) (*models.Sponsor, error) {
	if in.UserID != "" {
		if err := s.ensureUser(ctx, in.UserID); err != nil {
			return nil, err
		}
	}
	sp := &models.Sponsor{
		ID:               utils.NewID(),
		UserID:           in.UserID,
		Name:             strings.TrimSpace(in.Name),
		Type:             models.SponsorTypePerson,
		LogoURL:          in.LogoURL,
		SponsorshipTypes: in.SponsorshipTypes,
		IsActive:         true,
		CreatedAt:        s.Now(),
	}
	applyContact(sp, in)
	if in.Type != "" {
		sp.Type = in.Type
	}
	if err := s.DB.CreateSponsor(ctx, sp); err != nil {
		return nil, fmt.Errorf("create sponsor: %w", err)
	}
	s.Logger.LogDatabase("INSERT", "sponsors", fmt.Sprintf("Created sponsor %s (%s)", sp.ID, sp.Type))
	return sp, nil
}

func applyContact(sp *models.Sponsor, in SponsorInput) {
	sp.Email = ""
	if in.Email != "" {
		sp.Email = validation.NormalizeEmail(in.Email)
	}
	sp.Phone = ""
	if in.Phone != "" {
		sp.Phone = validation.FormatPhone(in.Phone)
	}
}

func (s *Service) Update(ctx context.Context, id string, in SponsorInput) (*models.Sponsor, error) {
	sp, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.UserID != "" && in.UserID != sp.UserID {
		if err := s.ensureUser(ctx, in.UserID); err != nil {
			return nil, err
		}
		sp.UserID = in.UserID
	}
	sp.Name = strings.TrimSpace(in.Name)
	if in.Type != "" {
		sp.Type = in.Type
	}
	sp.LogoURL = in.LogoURL
	sp.SponsorshipTypes = in.SponsorshipTypes
	applyContact(sp, in)

	if err := s.DB.UpdateSponsor(ctx, sp); err != nil {
		return nil, fmt.Errorf("update sponsor %s: %w", id, err)
	}
	return sp, nil
}

// Delete deactivates the sponsor; its past sponsorships stay visible.
func (s *Service) Delete(ctx context.Context, id string) error {
	sp, err := s.mustGet(ctx, id)
	if err != nil {
		return err
	}
	sp.IsActive = false
	if err := s.DB.UpdateSponsor(ctx, sp); err != nil {
		return fmt.Errorf("deactivate sponsor %s: %w", id, err)
	}
	return nil
}

// HardDelete removes the sponsor row. Its sponsorships lose the sponsor link.
func (s *Service) HardDelete(ctx context.Context, id string) error {
	if _, err := s.mustGet(ctx, id); err != nil {
		return err
	}
	if err := s.DB.DeleteSponsor(ctx, id); err != nil {
		return fmt.Errorf("delete sponsor %s: %w", id, err)
	}
	s.Logger.LogDatabase("DELETE", "sponsors", "Deleted sponsor "+id)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Details, error) {
	sp, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	slots, err := s.DB.SponsorSponsorships(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list sponsorships of %s: %w", id, err)
	}
	if slots == nil {
		slots = []models.EventSponsorship{}
	}
	return &Details{Sponsor: sp, Sponsorships: slots}, nil
}

func (s *Service) List(ctx context.Context, f db.ListFilter, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = DefaultPageSize
	}
	f.Limit = pageSize
	f.Offset = (page - 1) * pageSize
	sponsors, total, err := s.DB.ListSponsors(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list sponsors: %w", err)
	}
	if sponsors == nil {
		sponsors = []models.Sponsor{}
	}
	return &Page{Sponsors: sponsors, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *Service) LinkToUser(ctx context.Context, sponsorID, userID string) (*models.Sponsor, error) {
	sp, err := s.mustGet(ctx, sponsorID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	sp.UserID = userID
	if err := s.DB.UpdateSponsor(ctx, sp); err != nil {
		return nil, fmt.Errorf("link sponsor %s to user %s: %w", sponsorID, userID, err)
	}
	return sp, nil
}

func (s *Service) UnlinkFromUser(ctx context.Context, sponsorID string) (*models.Sponsor, error) {
	sp, err := s.mustGet(ctx, sponsorID)
	if err != nil {
		return nil, err
	}
	if sp.UserID == "" {
		return nil, ErrNotLinkedToUser
	}
	sp.UserID = ""
	if err := s.DB.UpdateSponsor(ctx, sp); err != nil {
		return nil, fmt.Errorf("unlink sponsor %s: %w", sponsorID, err)
	}
	return sp, nil
}

type SponsorshipInput struct {
	SponsorID       string `json:"sponsorId"`
	SponsorshipType string `json:"sponsorshipType" validate:"required"`
	IsSelfSponsored bool   `json:"isSelfSponsored"`
	Notes           string `json:"notes"`
	DisplayOrder    *int   `json:"displayOrder"`
}

// LinkToSession fills a slot of the session. New slots go last unless a
// display order is given.
func (s *Service) LinkToSession(ctx context.Context, sessionID string, in SponsorshipInput) (*models.EventSponsorship, error) {
	exists, err := s.DB.SessionExists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("check session %s: %w", sessionID, err)
	}
	if !exists {
		return nil, session.ErrSessionNotFound
	}
	es := &models.EventSponsorship{
		ID:        utils.NewID(),
		SessionID: sessionID,
		CreatedAt: s.Now(),
	}
	if err := s.applySponsorship(ctx, es, in); err != nil {
		return nil, err
	}
	if in.DisplayOrder != nil {
		es.DisplayOrder = *in.DisplayOrder
	} else {
		n, err := s.DB.CountSessionSponsorships(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("count sponsorships: %w", err)
		}
		es.DisplayOrder = n
	}
	if err := s.DB.CreateSponsorship(ctx, es); err != nil {
		return nil, fmt.Errorf("create sponsorship: %w", err)
	}
	return es, nil
}

func (s *Service) UpdateSponsorship(ctx context.Context, id string, in SponsorshipInput) (*models.EventSponsorship, error) {
	es, err := s.DB.GetSponsorship(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get sponsorship %s: %w", id, err)
	}
	if es == nil {
		return nil, ErrSponsorshipNotFound
	}
	if err := s.applySponsorship(ctx, es, in); err != nil {
		return nil, err
	}
	if in.DisplayOrder != nil {
		es.DisplayOrder = *in.DisplayOrder
	}
	if err := s.DB.UpdateSponsorship(ctx, es); err != nil {
		return nil, fmt.Errorf("update sponsorship %s: %w", id, err)
	}
	return es, nil
}

func (s *Service) applySponsorship(ctx context.Context, es *models.EventSponsorship, in SponsorshipInput) error {
	if !models.IsSponsorshipType(in.SponsorshipType) {
		return ErrInvalidType
	}
	if in.SponsorID == "" && !in.IsSelfSponsored {
		return ErrSponsorRequired
	}
	es.Sponsor = nil
	if in.SponsorID != "" {
		sp, err := s.DB.GetSponsor(ctx, in.SponsorID)
		if err != nil {
			return fmt.Errorf("get sponsor %s: %w", in.SponsorID, err)
		}
		if sp == nil {
			return ErrSponsorNotFound
		}
		es.Sponsor = sp
	}
	es.SponsorID = in.SponsorID
	es.SponsorshipType = in.SponsorshipType
	es.IsSelfSponsored = in.IsSelfSponsored
	es.Notes = in.Notes
	return nil
}

func (s *Service) UnlinkFromSession(ctx context.Context, id string) error {
	es, err := s.DB.GetSponsorship(ctx, id)
	if err != nil {
		return fmt.Errorf("get sponsorship %s: %w", id, err)
	}
	if es == nil {
		return ErrSponsorshipNotFound
	}
	if err := s.DB.DeleteSponsorship(ctx, id); err != nil {
		return fmt.Errorf("delete sponsorship %s: %w", id, err)
	}
	return nil
}

// SessionSponsorship is a slot with its Arabic label for display.
type SessionSponsorship struct {
	models.EventSponsorship
	TypeLabel string `json:"typeLabel"`
}

func (s *Service) SessionSponsorships(ctx context.Context, sessionID string) ([]SessionSponsorship, error) {
	slots, err := s.DB.SessionSponsorships(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list sponsorships for %s: %w", sessionID, err)
	}
	out := make([]SessionSponsorship, 0, len(slots))
	for _, es := range slots {
		out = append(out, SessionSponsorship{EventSponsorship: es, TypeLabel: models.SponsorshipLabels[es.SponsorshipType]})
	}
	return out, nil
}

// ExportCSV writes all sponsors, inactive ones included.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, error) {
	sponsors, err := s.DB.AllSponsors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sponsors: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("\uFEFF")
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"الاسم", "النوع", "البريد الإلكتروني", "الجوال", "أنواع الرعاية", "الحالة", "تاريخ الإضافة"}); err != nil {
		return nil, err
	}
	for _, sp := range sponsors {
		kind := "فرد"
		if sp.Type == models.SponsorTypeCompany {
			kind = "شركة"
		}
		labels := make([]string, 0, len(sp.SponsorshipTypes))
		for _, t := range sp.SponsorshipTypes {
			if l, ok := models.SponsorshipLabels[t]; ok {
				labels = append(labels, l)
			}
		}
		status := "نشط"
		if !sp.IsActive {
			status = "غير نشط"
		}
		row := []string{sp.Name, kind, sp.Email, sp.Phone, strings.Join(labels, "، "), status, utils.FormatArabicDate(sp.CreatedAt)}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) mustGet(ctx context.Context, id string) (*models.Sponsor, error) {
	sp, err := s.DB.GetSponsor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get sponsor %s: %w", id, err)
	}
	if sp == nil {
		return nil, ErrSponsorNotFound
	}
	return sp, nil
}

func (s *Service) ensureUser(ctx context.Context, id string) error {
	ok, err := s.DB.UserExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check user %s: %w", id, err)
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}
