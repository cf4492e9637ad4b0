package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"eventpilot/internal/config"
	"eventpilot/internal/logger"
)

// Attachment is a file sent with a message. A non-empty ContentID makes it
// an inline part the HTML can reference as cid:<ContentID>.
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Content     []byte
}

type Message struct {
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer returns an SMTP mailer, or a logging mailer when email is off.
func NewMailer(cfg config.EmailConfig, log *logger.Logger) Mailer {
	if !cfg.Enabled || cfg.SMTPHost == "" {
		log.Warn("EMAIL", "Email disabled - messages will be logged and dropped")
		return &DisabledMailer{Logger: log}
	}
	return &SMTPMailer{cfg: cfg, logger: log, send: smtp.SendMail}
}

// DisabledMailer drops every message.
type DisabledMailer struct {
	Logger *logger.Logger
}

func (m *DisabledMailer) Send(_ context.Context, msg Message) error {
	m.Logger.Info("EMAIL", fmt.Sprintf("Email not sent to %s (disabled): %s", strings.Join(msg.To, ", "), msg.Subject))
	return nil
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPMailer struct {
	cfg    config.EmailConfig
	logger *logger.Logger
	send   sendFunc
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from, err := mail.ParseAddress(m.cfg.From)
	if err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.cfg.From, err)
	}

	body, err := buildMIME(m.cfg.From, msg, time.Now())
	if err != nil {
		return fmt.Errorf("build email: %w", err)
	}

	var auth smtp.Auth
	if m.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	addr := net.JoinHostPort(m.cfg.SMTPHost, m.cfg.SMTPPort)
	m.logger.Info("EMAIL", fmt.Sprintf("Sending email to %s: %s", strings.Join(msg.To, ", "), msg.Subject))
	if err := m.send(addr, auth, from.Address, msg.To, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", strings.Join(msg.To, ", "), err)
	}
	return nil
}

// buildMIME lays the message out as multipart/mixed holding a
// multipart/related part (text+html alternative plus inline images) followed
// by regular attachments. Nested parts are built inside out.
func buildMIME(from string, msg Message, now time.Time) ([]byte, error) {
	var inline, attached []Attachment
	for _, a := range msg.Attachments {
		if a.ContentID != "" {
			inline = append(inline, a)
		} else {
			attached = append(attached, a)
		}
	}

	var altBuf bytes.Buffer
	alt := multipart.NewWriter(&altBuf)
	text := msg.Text
	if text == "" {
		text = msg.Subject
	}
	if err := writeBase64Part(alt, "text/plain; charset=utf-8", nil, []byte(text)); err != nil {
		return nil, err
	}
	if msg.HTML != "" {
		if err := writeBase64Part(alt, "text/html; charset=utf-8", nil, []byte(msg.HTML)); err != nil {
			return nil, err
		}
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}

	var relatedBuf bytes.Buffer
	related := multipart.NewWriter(&relatedBuf)
	altPart, err := related.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()},
	})
	if err != nil {
		return nil, err
	}
	if _, err := altPart.Write(altBuf.Bytes()); err != nil {
		return nil, err
	}
	for _, a := range inline {
		extra := textproto.MIMEHeader{
			"Content-Id":          {"<" + a.ContentID + ">"},
			"Content-Disposition": {fmt.Sprintf("inline; filename=%q", a.Filename)},
		}
		if err := writeBase64Part(related, contentType(a), extra, a.Content); err != nil {
			return nil, err
		}
	}
	if err := related.Close(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	root := multipart.NewWriter(&buf)
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", from)
	header("To", strings.Join(msg.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "multipart/mixed; boundary="+root.Boundary())
	buf.WriteString("\r\n")

	relatedPart, err := root.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"multipart/related; boundary=" + related.Boundary()},
	})
	if err != nil {
		return nil, err
	}
	if _, err := relatedPart.Write(relatedBuf.Bytes()); err != nil {
		return nil, err
	}
	for _, a := range attached {
		extra := textproto.MIMEHeader{
			"Content-Disposition": {fmt.Sprintf("attachment; filename=%q", a.Filename)},
		}
		if err := writeBase64Part(root, contentType(a), extra, a.Content); err != nil {
			return nil, err
		}
	}
	if err := root.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func contentType(a Attachment) string {
	if a.ContentType != "" {
		return a.ContentType
	}
	return "application/octet-stream"
}

func writeBase64Part(w *multipart.Writer, ctype string, extra textproto.MIMEHeader, content []byte) error {
	h := textproto.MIMEHeader{
		"Content-Type":              {ctype},
		"Content-Transfer-Encoding": {"base64"},
	}
	for k, v := range extra {
		h[k] = v
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 76 {
		if _, err := part.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = part.Write([]byte(encoded + "\r\n"))
	return err
}
