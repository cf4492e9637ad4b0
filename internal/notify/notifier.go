// Package notify renders the Arabic notification emails and hands them to a
// Mailer. Callers treat every send as best effort.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/utils"
)

const qrContentID = "qrcode"

// SessionInfo is the part of a session every email shows.
type SessionInfo struct {
	ID            string
	Slug          string
	Title         string
	SessionNumber int
	Date          time.Time
	Location      string
}

// ValetInfo describes a parked car for the valet emails.
type ValetInfo struct {
	GuestName     string
	SessionTitle  string
	Vehicle       string
	ParkingSlot   string
	TicketNumber  int
	TrackingToken string
}

type Notifier struct {
	Mailer  Mailer
	Logger  *logger.Logger
	BaseURL string
}

func NewNotifier(mailer Mailer, log *logger.Logger, baseURL string) *Notifier {
	return &Notifier{Mailer: mailer, Logger: log, BaseURL: strings.TrimRight(baseURL, "/")}
}

// TrackingURL is the public page a valet guest follows their car on.
func (n *Notifier) TrackingURL(token string) string {
	return fmt.Sprintf("%s/valet/track/%s", n.BaseURL, token)
}

// InvitationURL is the registration link carried by an invite.
func (n *Notifier) InvitationURL(s SessionInfo, token string) string {
	ref := s.Slug
	if ref == "" {
		ref = s.ID
	}
	return fmt.Sprintf("%s/event/%s/register?token=%s", n.BaseURL, ref, token)
}

func sessionData(name string, s SessionInfo) templateData {
	return templateData{
		Name:          name,
		SessionTitle:  s.Title,
		SessionNumber: s.SessionNumber,
		Date:          utils.FormatArabicDateTime(s.Date),
		Location:      s.Location,
	}
}

func qrAttachment(png []byte) []Attachment {
	return []Attachment{{Filename: "qrcode.png", ContentType: "image/png", ContentID: qrContentID, Content: png}}
}

func (n *Notifier) send(ctx context.Context, to, subject string, t templateName, data templateData, text string, attachments []Attachment) error {
	html, err := render(t, data)
	if err != nil {
		n.Logger.Error("EMAIL", fmt.Sprintf("Failed to render %s email to %s: %v", t, to, err))
		return fmt.Errorf("render %s email: %w", t, err)
	}
	err = n.Mailer.Send(ctx, Message{
		To:          []string{to},
		Subject:     subject,
		HTML:        html,
		Text:        text,
		Attachments: attachments,
	})
	if err != nil {
		n.Logger.Error("EMAIL", fmt.Sprintf("Failed to send %s email to %s: %v", t, to, err))
		return err
	}
	return nil
}

func sessionText(greeting, lead string, s SessionInfo) string {
	location := s.Location
	if location == "" {
		location = "سيتم الإعلان عنه لاحقاً"
	}
	return strings.Join([]string{
		greeting,
		lead,
		s.Title,
		fmt.Sprintf("التجمع رقم %d", s.SessionNumber),
		"التاريخ: " + utils.FormatArabicDateTime(s.Date),
		"المكان: " + location,
	}, "\n")
}

// RegistrationConfirmed sends the approval email, with the check-in QR
// inline when qrPNG is set.
func (n *Notifier) RegistrationConfirmed(ctx context.Context, to, name string, s SessionInfo, qrPNG []byte) error {
	data := sessionData(name, s)
	var attachments []Attachment
	if len(qrPNG) > 0 {
		data.ShowQR = true
		data.QRContentID = qrContentID
		attachments = qrAttachment(qrPNG)
	}
	text := sessionText("مرحباً "+name+"،", "تم تأكيد تسجيلك في:", s) + "\nنتطلع لرؤيتك معنا!"
	return n.send(ctx, to, "تأكيد التسجيل - "+s.Title, tmplConfirmed, data, text, attachments)
}

func (n *Notifier) RegistrationPending(ctx context.Context, to, name string, s SessionInfo) error {
	text := sessionText("مرحباً "+name+"،", "شكراً لتسجيلك في:", s) + "\nتسجيلك قيد المراجعة وسيتم إخطارك بالموافقة قريباً."
	return n.send(ctx, to, "استلام التسجيل - "+s.Title, tmplPending, sessionData(name, s), text, nil)
}

func (n *Notifier) Companion(ctx context.Context, to, companionName, registrantName string, s SessionInfo, approved bool, qrPNG []byte) error {
	data := sessionData(companionName, s)
	data.RegistrantName = registrantName
	data.Approved = approved
	var attachments []Attachment
	if approved && len(qrPNG) > 0 {
		data.ShowQR = true
		data.QRContentID = qrContentID
		attachments = qrAttachment(qrPNG)
	}
	text := sessionText("مرحباً "+companionName+"،", "تم تسجيلك كمرافق للأستاذ/ة "+registrantName+" في:", s)
	return n.send(ctx, to, "تم تسجيلك كمرافق - "+s.Title, tmplCompanion, data, text, attachments)
}

func (n *Notifier) Invitation(ctx context.Context, to string, s SessionInfo, token string) error {
	link := n.InvitationURL(s, token)
	data := sessionData("", s)
	data.ButtonText = "التسجيل الآن"
	data.ButtonURL = link
	text := sessionText("مرحباً،", "نود دعوتك لحضور جلسة \""+s.Title+"\" في ثلوثية الأعمال.", s) + "\nالتسجيل الآن: " + link
	return n.send(ctx, to, "دعوة خاصة - "+s.Title, tmplInvitation, data, text, nil)
}

func (n *Notifier) ValetParked(ctx context.Context, to string, v ValetInfo) error {
	link := n.TrackingURL(v.TrackingToken)
	data := templateData{
		Name:         v.GuestName,
		SessionTitle: v.SessionTitle,
		TicketNumber: v.TicketNumber,
		Vehicle:      v.Vehicle,
		ParkingSlot:  v.ParkingSlot,
		ButtonText:   "تتبع سيارتك",
		ButtonURL:    link,
	}
	text := fmt.Sprintf("مرحباً %s،\nتم ركن سيارتك في %s.\nرقم التذكرة: %d\nتتبع سيارتك: %s", v.GuestName, v.SessionTitle, v.TicketNumber, link)
	return n.send(ctx, to, "تم ركن سيارتك - "+v.SessionTitle, tmplValetParked, data, text, nil)
}

func (n *Notifier) ValetReady(ctx context.Context, to string, v ValetInfo) error {
	data := templateData{Name: v.GuestName, SessionTitle: v.SessionTitle, Vehicle: v.Vehicle}
	text := fmt.Sprintf("مرحباً %s،\nسيارتك جاهزة عند نقطة الاستلام في %s.", v.GuestName, v.SessionTitle)
	return n.send(ctx, to, "سيارتك جاهزة - "+v.SessionTitle, tmplValetReady, data, text, nil)
}

// ValetBroadcast sends an admin's message to a valet guest.
func (n *Notifier) ValetBroadcast(ctx context.Context, to, name, sessionTitle, message string) error {
	if name == "" {
		name = "ضيفنا"
	}
	data := templateData{Name: name, SessionTitle: sessionTitle, Message: message}
	text := fmt.Sprintf("مرحباً %s،\nرسالة من فريق الفاليه في %s:\n%s", name, sessionTitle, message)
	return n.send(ctx, to, "رسالة من خدمة الفاليه - "+sessionTitle, tmplValetBroadcast, data, text, nil)
}

// SessionInfoFrom copies the fields the emails need.
func SessionInfoFrom(s *models.Session) SessionInfo {
	return SessionInfo{
		ID:            s.ID,
		Slug:          s.Slug,
		Title:         s.Title,
		SessionNumber: s.SessionNumber,
		Date:          s.Date,
		Location:      s.Location,
	}
}
