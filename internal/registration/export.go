package registration

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"eventpilot/internal/models"
	"eventpilot/internal/pdf"
	"eventpilot/internal/session"
	"eventpilot/internal/utils"
)

// utf8BOM makes spreadsheet apps open the Arabic columns as UTF-8.
const utf8BOM = "\uFEFF"

var csvHeader = []string{"الاسم", "البريد الإلكتروني", "الجوال", "الشركة", "المنصب", "الحالة", "مرافق لـ", "تاريخ التسجيل"}

// Card is a rendered check-in card with its download names.
type Card struct {
	Content   []byte
	ASCIIName string
	UTF8Name  string
}

// QRPDF renders the check-in card of an approved registration.
func (s *Service) QRPDF(ctx context.Context, id string) (*Card, error) {
	reg, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if !reg.IsApproved {
		return nil, ErrNotApproved
	}

	sponsorships, err := s.DB.SessionSponsorships(ctx, reg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load sponsorships: %w", err)
	}
	guests, err := s.DB.SessionGuests(ctx, reg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load guests: %w", err)
	}

	info := pdf.CardInfo{
		SessionTitle: reg.Session.Title,
		SessionDate:  utils.FormatArabicDateTime(reg.Session.Date),
		AttendeeName: reg.DisplayName(),
		Location:     reg.Session.Location,
		LocationURL:  reg.Session.LocationURL,
	}
	for _, sp := range sponsorships {
		if sp.Sponsor == nil {
			continue
		}
		info.Sponsors = append(info.Sponsors, pdf.SponsorLine{
			Name: sp.Sponsor.Name,
			Type: models.SponsorshipLabels[sp.SponsorshipType],
		})
	}
	for _, g := range guests {
		if g.Guest == nil {
			continue
		}
		info.Guests = append(info.Guests, pdf.GuestLine{Name: g.Guest.Name, JobTitle: g.Guest.JobTitle, Company: g.Guest.Company})
	}

	png, err := s.qrPNG(reg)
	if err != nil {
		return nil, err
	}
	content, err := s.Cards.Generate(info, png)
	if err != nil {
		return nil, fmt.Errorf("generate card for %s: %w", reg.ID, err)
	}

	return &Card{
		Content:   content,
		ASCIIName: fmt.Sprintf("qr-%s.pdf", reg.ID),
		UTF8Name:  cardFileName(info.AttendeeName, info.SessionTitle),
	}, nil
}

func cardFileName(attendee, sessionTitle string) string {
	name := "qr-" + fileSafe(sessionTitle)
	if a := fileSafe(attendee); a != "" {
		name = a + "-" + fileSafe(sessionTitle)
	}
	return strings.Trim(name, "-") + ".pdf"
}

func fileSafe(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		case ' ', '\t', '\n':
			return '-'
		}
		return r
	}, strings.TrimSpace(s))
	return s
}

// ExportCSV writes every registration of the session, companions included.
func (s *Service) ExportCSV(ctx context.Context, sessionID string) ([]byte, error) {
	sess, err := s.DB.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if sess == nil {
		return nil, session.ErrSessionNotFound
	}
	include := true
	items, err := s.ListBySession(ctx, sessionID, ListOptions{IncludeInvited: &include})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, it := range items {
		status := "بانتظار الموافقة"
		if it.IsApproved {
			status = "مؤكد"
		}
		row := []string{
			it.Name,
			it.Email,
			it.Phone,
			it.CompanyName,
			it.Position,
			status,
			it.InvitedByName,
			utils.FormatArabicDateTime(it.RegisteredAt),
		}
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
