package registration_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"eventpilot/internal/config"
	"eventpilot/internal/database/sqlitetest"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/notify"
	"eventpilot/internal/qr"
	"eventpilot/internal/registration"
	"eventpilot/internal/registration/db"
	"eventpilot/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type captureMailer struct {
	sent []notify.Message
}

func (m *captureMailer) Send(_ context.Context, msg notify.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) to(addr string) []notify.Message {
	var out []notify.Message
	for _, msg := range m.sent {
		for _, to := range msg.To {
			if to == addr {
				out = append(out, msg)
			}
		}
	}
	return out
}

type published struct {
	topic, key string
	payload    interface{}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *capturePublisher) Publish(_ context.Context, topic, key string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, key: key, payload: payload})
	return nil
}

var fixedNow = time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *registration.Service
	bun    *bun.DB
	mailer *captureMailer
	events *capturePublisher
	codec  *qr.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewWithWriter(io.Discard, "debug")
	bunDB := sqlitetest.Open(t)
	mailer := &captureMailer{}
	events := &capturePublisher{}
	codec, err := qr.NewCodec("")
	require.NoError(t, err)

	var topics config.TopicConfig
	topics.RegistrationCreated = "registration.created"
	topics.RegistrationApproved = "registration.approved"

	svc := registration.NewService(&db.DB{Bun: bunDB}, codec, nil,
		notify.NewNotifier(mailer, log, "https://eventpilot.sa"), events, topics, log)
	svc.Now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, bun: bunDB, mailer: mailer, events: events, codec: codec}
}

func (f *fixture) session(t *testing.T, mutate func(*models.Session)) *models.Session {
	t.Helper()
	s := &models.Session{
		ID:              "s-" + t.Name(),
		SessionNumber:   1,
		Title:           "ثلوثية الأعمال",
		Date:            fixedNow.Add(7 * 24 * time.Hour),
		Location:        "الرياض",
		Status:          models.SessionOpen,
		MaxParticipants: 10,
		MaxCompanions:   2,
		CreatedAt:       fixedNow,
	}
	if mutate != nil {
		mutate(s)
	}
	_, err := f.bun.NewInsert().Model(s).Exec(context.Background())
	require.NoError(t, err)
	return s
}

func guest(sessionID string) registration.GuestRequest {
	return registration.GuestRequest{
		SessionID: sessionID,
		Name:      "أحمد محمد",
		Email:     "Ahmed@Example.com",
		Phone:     "0501234567",
	}
}

func TestGuestRegisterApprovedWithCompanions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, nil)

	req := guest(sess.ID)
	req.Companions = []registration.CompanionInput{
		{Name: "سارة", Email: "Sara@Example.com", Phone: "0551112222"},
		{Name: "خالد"},
	}
	res, err := f.svc.GuestRegister(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.IsApproved)
	assert.False(t, res.HasAccount)
	assert.Equal(t, 2, res.CompanionCount)

	var reg models.Registration
	require.NoError(t, f.bun.NewSelect().Model(&reg).Where("id = ?", res.ID).Scan(ctx))
	assert.Equal(t, "ahmed@example.com", reg.GuestEmail)
	assert.Equal(t, "+966501234567", reg.GuestPhone)

	companions, err := f.svc.DB.Companions(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, companions, 2)
	assert.True(t, companions[0].IsApproved)

	confirmed := f.mailer.to("ahmed@example.com")
	require.Len(t, confirmed, 1)
	assert.Contains(t, confirmed[0].Subject, "تأكيد التسجيل")
	require.Len(t, confirmed[0].Attachments, 1)

	companionMail := f.mailer.to("sara@example.com")
	require.Len(t, companionMail, 1)
	assert.Contains(t, companionMail[0].Subject, "مرافق")

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "registration.created", f.events.events[0].topic)
	assert.Equal(t, sess.ID, f.events.events[0].key)
}

func TestGuestRegisterPendingWhenApprovalRequired(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t, func(s *models.Session) { s.RequiresApproval = true })

	res, err := f.svc.GuestRegister(context.Background(), guest(sess.ID))
	require.NoError(t, err)
	assert.False(t, res.IsApproved)

	msgs := f.mailer.to("ahmed@example.com")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Subject, "استلام التسجيل")
	assert.Empty(t, msgs[0].Attachments)
}

func TestGuestRegisterRejections(t *testing.T) {
	deadline := fixedNow.Add(-time.Hour)
	tests := []struct {
		name    string
		mutate  func(*models.Session)
		request func(registration.GuestRequest) registration.GuestRequest
		want    error
	}{
		{
			name:   "closed session",
			mutate: func(s *models.Session) { s.Status = models.SessionClosed },
			want:   registration.ErrRegistrationClosed,
		},
		{
			name:   "deadline passed",
			mutate: func(s *models.Session) { s.RegistrationDeadline = &deadline },
			want:   registration.ErrDeadlinePassed,
		},
		{
			name:   "invite only without token",
			mutate: func(s *models.Session) { s.InviteOnly = true },
			want:   registration.ErrInviteRequired,
		},
		{
			name:   "invite only with unknown token",
			mutate: func(s *models.Session) { s.InviteOnly = true },
			request: func(r registration.GuestRequest) registration.GuestRequest {
				r.InviteToken = "nope"
				return r
			},
			want: registration.ErrInvalidInvite,
		},
		{
			name: "too many companions",
			request: func(r registration.GuestRequest) registration.GuestRequest {
				r.Companions = []registration.CompanionInput{{Name: "a"}, {Name: "b"}, {Name: "c"}}
				return r
			},
			want: registration.ErrTooManyCompanions,
		},
		{
			name: "invalid phone",
			request: func(r registration.GuestRequest) registration.GuestRequest {
				r.Phone = "12345"
				return r
			},
			want: registration.ErrInvalidPhone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sess := f.session(t, tt.mutate)
			req := guest(sess.ID)
			if tt.request != nil {
				req = tt.request(req)
			}
			_, err := f.svc.GuestRegister(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGuestRegisterUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GuestRegister(context.Background(), guest("missing"))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestGuestRegisterFullSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, func(s *models.Session) { s.MaxParticipants = 1 })

	_, err := f.svc.GuestRegister(ctx, guest(sess.ID))
	require.NoError(t, err)

	other := guest(sess.ID)
	other.Email = "other@example.com"
	other.Phone = "0559999999"
	_, err = f.svc.GuestRegister(ctx, other)
	assert.ErrorIs(t, err, registration.ErrSessionFull)
}

func TestGuestRegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, nil)

	_, err := f.svc.GuestRegister(ctx, guest(sess.ID))
	require.NoError(t, err)

	samePhone := guest(sess.ID)
	samePhone.Email = "different@example.com"
	samePhone.Phone = "+966 50 123 4567"
	_, err = f.svc.GuestRegister(ctx, samePhone)
	assert.ErrorIs(t, err, registration.ErrAlreadyRegistered)
}

func TestGuestRegisterLinksExistingUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, nil)

	user := &models.User{
		ID: "u1", Name: "Existing", Username: "existing", Email: "ahmed@example.com",
		Role: models.RoleUser, IsActive: true, CreatedAt: fixedNow,
	}
	_, err := f.bun.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	res, err := f.svc.GuestRegister(ctx, guest(sess.ID))
	require.NoError(t, err)
	assert.True(t, res.HasAccount)

	var reg models.Registration
	require.NoError(t, f.bun.NewSelect().Model(&reg).Where("id = ?", res.ID).Scan(ctx))
	assert.Equal(t, "u1", reg.UserID)
	assert.Empty(t, reg.GuestEmail)

	_, err = f.svc.GuestRegister(ctx, guest(sess.ID))
	assert.ErrorIs(t, err, registration.ErrAlreadyRegistered)
}

func TestGuestRegisterCreatesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, nil)

	req := guest(sess.ID)
	req.CreateAccount = true
	req.Password = "Secret123"
	res, err := f.svc.GuestRegister(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.HasAccount)

	var user models.User
	require.NoError(t, f.bun.NewSelect().Model(&user).Where("email = ?", "ahmed@example.com").Scan(ctx))
	assert.NotEmpty(t, user.Username)
	assert.NotEqual(t, "Secret123", user.PasswordHash)
}

func TestInviteIsConsumedOnlyOnSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, func(s *models.Session) { s.InviteOnly = true })

	inv := &models.Invite{ID: "inv1", SessionID: sess.ID, Token: "tok", CreatedAt: fixedNow}
	_, err := f.bun.NewInsert().Model(inv).Exec(ctx)
	require.NoError(t, err)

	bad := guest(sess.ID)
	bad.InviteToken = "tok"
	bad.Phone = "bad"
	_, err = f.svc.GuestRegister(ctx, bad)
	require.ErrorIs(t, err, registration.ErrInvalidPhone)

	var stored models.Invite
	require.NoError(t, f.bun.NewSelect().Model(&stored).Where("id = ?", "inv1").Scan(ctx))
	assert.False(t, stored.Used, "failed registration must not burn the invite")

	good := guest(sess.ID)
	good.InviteToken = "tok"
	_, err = f.svc.GuestRegister(ctx, good)
	require.NoError(t, err)

	again := guest(sess.ID)
	again.Email = "x@example.com"
	again.Phone = "0557777777"
	again.InviteToken = "tok"
	_, err = f.svc.GuestRegister(ctx, again)
	assert.ErrorIs(t, err, registration.ErrInvalidInvite)
}

func TestGuestRegisterCreatesExpectedValetRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, func(s *models.Session) { s.ValetEnabled = true; s.ValetLotCapacity = 5 })

	req := guest(sess.ID)
	req.NeedsValet = true
	res, err := f.svc.GuestRegister(ctx, req)
	require.NoError(t, err)

	var rec models.ValetRecord
	require.NoError(t, f.bun.NewSelect().Model(&rec).Where("registration_id = ?", res.ID).Scan(ctx))
	assert.Equal(t, models.ValetExpected, rec.Status)
	assert.Equal(t, "أحمد محمد", rec.GuestName)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, func(s *models.Session) { s.RequiresApproval = true })

	req := guest(sess.ID)
	req.Companions = []registration.CompanionInput{{Name: "سارة", Email: "sara@example.com"}}
	res, err := f.svc.GuestRegister(ctx, req)
	require.NoError(t, err)
	f.mailer.sent = nil

	require.NoError(t, f.svc.Approve(ctx, res.ID, "VIP"))

	reg, err := f.svc.DB.GetRegistration(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, reg.IsApproved)
	assert.Equal(t, "VIP", reg.ApprovalNotes)

	companions, err := f.svc.DB.Companions(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, companions[0].IsApproved)

	assert.Len(t, f.mailer.to("ahmed@example.com"), 1)
	assert.Len(t, f.mailer.to("sara@example.com"), 1)
	assert.Equal(t, "registration.approved", f.events.events[len(f.events.events)-1].topic)

	assert.ErrorIs(t, f.svc.Approve(ctx, res.ID, ""), registration.ErrAlreadyApproved)
	assert.ErrorIs(t, f.svc.Approve(ctx, "missing", ""), registration.ErrRegistrationNotFound)
}

func TestApproveAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, func(s *models.Session) { s.RequiresApproval = true })

	first := guest(sess.ID)
	first.Companions = []registration.CompanionInput{{Name: "مرافق"}}
	_, err := f.svc.GuestRegister(ctx, first)
	require.NoError(t, err)

	second := guest(sess.ID)
	second.Email = "second@example.com"
	second.Phone = "0551234567"
	_, err = f.svc.GuestRegister(ctx, second)
	require.NoError(t, err)

	n, err := f.svc.ApproveAll(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := f.bun.NewSelect().Model((*models.Registration)(nil)).Where("is_approved = ?", false).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	n, err = f.svc.ApproveAll(ctx, sess.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListBySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, nil)

	req := guest(sess.ID)
	req.Companions = []registration.CompanionInput{{Name: "سارة"}}
	_, err := f.svc.GuestRegister(ctx, req)
	require.NoError(t, err)

	items, err := f.svc.ListBySession(ctx, sess.ID, registration.ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].CompanionCount)
	assert.True(t, items[0].IsGuest)

	include := true
	items, err = f.svc.ListBySession(ctx, sess.ID, registration.ListOptions{IncludeInvited: &include})
	require.NoError(t, err)
	require.Len(t, items, 2)

	// hamza and alef variants match
	items, err = f.svc.ListBySession(ctx, sess.ID, registration.ListOptions{Search: "احمد"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, err = f.svc.ListBySession(ctx, sess.ID, registration.ListOptions{Search: "zzz"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, nil)

	req := guest(sess.ID)
	req.Companions = []registration.CompanionInput{{Name: "سارة"}}
	res, err := f.svc.GuestRegister(ctx, req)
	require.NoError(t, err)

	conf, err := f.svc.Confirmation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "أحمد محمد", conf.Name)
	assert.Equal(t, sess.Title, conf.Session.Title)
	assert.True(t, strings.HasPrefix(conf.QRCode, "data:image/png;base64,"))
	require.Len(t, conf.Companions, 1)

	companion := conf.Companions[0]
	cc, err := f.svc.Confirmation(ctx, companion.ID)
	require.NoError(t, err)
	assert.True(t, cc.IsInvited)
	assert.Equal(t, "أحمد محمد", cc.InvitedByName)

	_, err = f.svc.Confirmation(ctx, "missing")
	assert.ErrorIs(t, err, registration.ErrRegistrationNotFound)
}

func TestConfirmationHidesQRUntilApproved(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t, func(s *models.Session) { s.RequiresApproval = true })
	res, err := f.svc.GuestRegister(context.Background(), guest(sess.ID))
	require.NoError(t, err)

	conf, err := f.svc.Confirmation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Empty(t, conf.QRCode)
}

func TestQRPDFRequiresApprovedRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, func(s *models.Session) { s.RequiresApproval = true })
	res, err := f.svc.GuestRegister(ctx, guest(sess.ID))
	require.NoError(t, err)

	_, err = f.svc.QRPDF(ctx, "missing")
	assert.ErrorIs(t, err, registration.ErrRegistrationNotFound)

	_, err = f.svc.QRPDF(ctx, res.ID)
	assert.ErrorIs(t, err, registration.ErrNotApproved)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, nil)

	req := guest(sess.ID)
	req.CompanyName = `شركة "النخبة", المحدودة`
	req.Companions = []registration.CompanionInput{{Name: "سارة"}}
	_, err := f.svc.GuestRegister(ctx, req)
	require.NoError(t, err)

	data, err := f.svc.ExportCSV(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("\uFEFF")))

	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\uFEFF")))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "الاسم", rows[0][0])

	var primary, companion []string
	for _, row := range rows[1:] {
		if row[0] == "سارة" {
			companion = row
		} else {
			primary = row
		}
	}
	assert.Equal(t, `شركة "النخبة", المحدودة`, primary[3])
	assert.Equal(t, "أحمد محمد", companion[6])

	_, err = f.svc.ExportCSV(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
