package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

const layoutHTML = `<!DOCTYPE html>
<html lang="ar" dir="rtl">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>ثلوثية الأعمال</title>
</head>
<body style="margin: 0; padding: 0; background-color: #F3F4F6; font-family: Tahoma, Arial, sans-serif; direction: rtl;">
  <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="100%">
    <tr>
      <td align="center" style="padding: 32px 16px;">
        <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="600" style="max-width: 600px; background-color: #ffffff; border-radius: 12px;">
          <tr>
            <td align="center" style="padding: 24px; background-color: #8B5CF6; border-radius: 12px 12px 0 0; color: #ffffff; font-size: 22px; font-weight: bold;">
              ثلوثية الأعمال
            </td>
          </tr>
          <tr>
            <td style="padding: 32px 24px; color: #1F2937; font-size: 15px; line-height: 1.7; text-align: right;">
              {{template "content" .}}
            </td>
          </tr>
          {{if and .ButtonText .ButtonURL}}
          <tr>
            <td align="center" style="padding: 0 24px 24px 24px;">
              <a href="{{.ButtonURL}}" target="_blank" style="display: inline-block; padding: 14px 32px; background-color: #8B5CF6; border-radius: 8px; font-size: 16px; font-weight: bold; color: #ffffff; text-decoration: none;">{{.ButtonText}}</a>
            </td>
          </tr>
          {{end}}
          {{if .ShowQR}}
          <tr>
            <td align="center" style="padding: 0 24px 24px 24px;">
              <p style="margin: 0 0 12px 0; font-weight: bold;">رمز الحضور الخاص بك:</p>
              <img src="cid:{{.QRContentID}}" alt="QR Code" style="max-width: 180px; height: auto; display: block; margin: 0 auto;">
              <p style="margin: 12px 0 0 0; font-size: 13px; color: #6B7280;">أظهر هذا الرمز عند الحضور</p>
            </td>
          </tr>
          {{end}}
          <tr>
            <td align="center" style="padding: 16px; font-size: 12px; color: #9CA3AF;">هذه رسالة آلية، يرجى عدم الرد عليها.</td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`

const sessionDetailsHTML = `{{define "details"}}
<p style="margin: 0 0 8px 0;"><strong style="font-size: 18px;">{{.SessionTitle}}</strong></p>
<p style="margin: 0 0 16px 0; color: #6B7280;">التجمع رقم {{.SessionNumber}}</p>
<table role="presentation" border="0" cellpadding="0" cellspacing="0" style="margin: 16px 0; background-color: #F9FAFB; border-radius: 8px; width: 100%;">
  <tr>
    <td style="padding: 16px;">
      <p style="margin: 0 0 8px 0;"><strong>التاريخ:</strong> {{.Date}}</p>
      <p style="margin: 0;"><strong>المكان:</strong> {{if .Location}}{{.Location}}{{else}}سيتم الإعلان عنه لاحقاً{{end}}</p>
    </td>
  </tr>
</table>
{{end}}`

const pendingNoticeHTML = `<p style="margin: 16px 0 0 0; padding: 12px 16px; background-color: #FEF3C7; border-radius: 8px; color: #92400E;">تسجيلك قيد المراجعة وسيتم إخطارك بالموافقة قريباً.</p>`

const confirmedHTML = `<p style="margin: 0 0 16px 0;">مرحباً <strong>{{.Name}}</strong>،</p>
<p style="margin: 0 0 16px 0;">تم تأكيد تسجيلك في:</p>
{{template "details" .}}
<p style="margin: 16px 0 0 0;">نتطلع لرؤيتك معنا!</p>`

const pendingHTML = `<p style="margin: 0 0 16px 0;">مرحباً <strong>{{.Name}}</strong>،</p>
<p style="margin: 0 0 16px 0;">شكراً لتسجيلك في:</p>
{{template "details" .}}
` + pendingNoticeHTML

const companionHTML = `<p style="margin: 0 0 16px 0;">مرحباً <strong>{{.Name}}</strong>،</p>
<p style="margin: 0 0 16px 0;">تم تسجيلك كمرافق للأستاذ/ة <strong>{{.RegistrantName}}</strong> في:</p>
{{template "details" .}}
{{if .Approved}}<p style="margin: 16px 0 0 0;">نتطلع لرؤيتك معنا!</p>{{else}}` + pendingNoticeHTML + `{{end}}`

const invitationHTML = `<p style="margin: 0 0 16px 0;">مرحباً،</p>
<p style="margin: 0 0 16px 0;">نود دعوتك لحضور جلسة <strong>"{{.SessionTitle}}"</strong> في ثلوثية الأعمال.</p>
{{template "details" .}}
<p style="margin: 0 0 16px 0; padding: 12px 16px; background-color: #EDE9FE; border-radius: 8px; color: #5B21B6;">هذه دعوة خاصة. استخدم الزر أدناه للتسجيل.</p>`

const valetParkedHTML = `<p style="margin: 0 0 16px 0;">مرحباً <strong>{{.Name}}</strong>،</p>
<p style="margin: 0 0 16px 0;">تم استلام سيارتك وركنها بأمان في <strong>{{.SessionTitle}}</strong>.</p>
<table role="presentation" border="0" cellpadding="0" cellspacing="0" style="margin: 16px 0; background-color: #F9FAFB; border-radius: 8px; width: 100%;">
  <tr>
    <td style="padding: 16px;">
      {{if .TicketNumber}}<p style="margin: 0 0 8px 0;"><strong>رقم التذكرة:</strong> {{.TicketNumber}}</p>{{end}}
      {{if .Vehicle}}<p style="margin: 0 0 8px 0;"><strong>السيارة:</strong> {{.Vehicle}}</p>{{end}}
      <p style="margin: 0;"><strong>الموقف:</strong> {{if .ParkingSlot}}{{.ParkingSlot}}{{else}}غير محدد{{end}}</p>
    </td>
  </tr>
</table>
<p style="margin: 16px 0 0 0;">عند رغبتك في المغادرة اطلب سيارتك من الرابط أدناه وسنجهزها لك.</p>`

const valetReadyHTML = `<p style="margin: 0 0 16px 0;">مرحباً <strong>{{.Name}}</strong>،</p>
<p style="margin: 0 0 16px 0;">سيارتك جاهزة عند نقطة الاستلام في <strong>{{.SessionTitle}}</strong>.</p>
{{if .Vehicle}}<p style="margin: 0 0 16px 0;"><strong>السيارة:</strong> {{.Vehicle}}</p>{{end}}
<p style="margin: 16px 0 0 0;">شكراً لحضورك!</p>`

const valetBroadcastHTML = `<p style="margin: 0 0 16px 0;">مرحباً <strong>{{.Name}}</strong>،</p>
<p style="margin: 0 0 16px 0;">رسالة من فريق الفاليه في <strong>{{.SessionTitle}}</strong>:</p>
<p style="margin: 0; padding: 12px 16px; background-color: #EDE9FE; border-radius: 8px; color: #5B21B6; white-space: pre-line;">{{.Message}}</p>`

type templateData struct {
	Name           string
	RegistrantName string
	SessionTitle   string
	SessionNumber  int
	Date           string
	Location       string
	Approved       bool
	ShowQR         bool
	QRContentID    string
	ButtonText     string
	ButtonURL      string
	TicketNumber   int
	Vehicle        string
	ParkingSlot    string
	Message        string
}

var baseTemplate = template.Must(template.Must(template.New("layout").Parse(layoutHTML)).Parse(sessionDetailsHTML))

func mustContent(body string) *template.Template {
	return template.Must(template.Must(baseTemplate.Clone()).Parse(`{{define "content"}}` + body + `{{end}}`))
}

type templateName string

const (
	tmplConfirmed      templateName = "registration_confirmed"
	tmplPending        templateName = "registration_pending"
	tmplCompanion      templateName = "companion"
	tmplInvitation     templateName = "invitation"
	tmplValetParked    templateName = "valet_parked"
	tmplValetReady     templateName = "valet_ready"
	tmplValetBroadcast templateName = "valet_broadcast"
)

var templates = map[templateName]*template.Template{
	tmplConfirmed:      mustContent(confirmedHTML),
	tmplPending:        mustContent(pendingHTML),
	tmplCompanion:      mustContent(companionHTML),
	tmplInvitation:     mustContent(invitationHTML),
	tmplValetParked:    mustContent(valetParkedHTML),
	tmplValetReady:     mustContent(valetReadyHTML),
	tmplValetBroadcast: mustContent(valetBroadcastHTML),
}

func render(name templateName, data templateData) (string, error) {
	t, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
