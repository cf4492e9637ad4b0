package attendance_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"eventpilot/internal/attendance"
	"eventpilot/internal/attendance/db"
	"eventpilot/internal/database/sqlitetest"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/qr"
	"eventpilot/internal/registration"
	"eventpilot/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, _ interface{}) error {
	p.topics = append(p.topics, topic)
	return nil
}

var fixedNow = time.Date(2026, time.October, 20, 17, 0, 0, 0, time.UTC)

func setup(t *testing.T, secret string) (*attendance.Service, *bun.DB, *recordingPublisher) {
	t.Helper()
	bunDB := sqlitetest.Open(t)
	ctx := context.Background()

	codec, err := qr.NewCodec(secret)
	require.NoError(t, err)
	events := &recordingPublisher{}
	svc := attendance.NewService(&db.DB{Bun: bunDB}, codec, events, "attendance", logger.NewWithWriter(io.Discard, "debug"))
	svc.Now = func() time.Time { return fixedNow }

	rows := []interface{}{
		&models.Session{ID: "s1", SessionNumber: 1, Title: "الجلسة الأولى", Date: fixedNow, Status: models.SessionOpen, MaxParticipants: 10, CreatedAt: fixedNow},
		&models.Session{ID: "s2", SessionNumber: 2, Title: "الجلسة الثانية", Date: fixedNow, Status: models.SessionOpen, MaxParticipants: 10, CreatedAt: fixedNow},
		&models.User{ID: "u1", Name: "نورة", Username: "noura", Email: "noura@example.com", Role: models.RoleUser, IsActive: true, CreatedAt: fixedNow},
		&models.Registration{ID: "r-user", SessionID: "s1", UserID: "u1", IsApproved: true, RegisteredAt: fixedNow},
		&models.Registration{ID: "r-guest", SessionID: "s1", GuestName: "فهد", GuestEmail: "fahd@example.com", IsApproved: true, RegisteredAt: fixedNow.Add(time.Minute)},
		&models.Registration{ID: "r-comp", SessionID: "s1", InvitedByRegistrationID: "r-guest", GuestName: "ريم", IsApproved: true, RegisteredAt: fixedNow.Add(2 * time.Minute)},
		&models.Registration{ID: "r-pending", SessionID: "s1", GuestName: "سعد", IsApproved: false, RegisteredAt: fixedNow.Add(3 * time.Minute)},
	}
	for _, row := range rows {
		_, err := bunDB.NewInsert().Model(row).Exec(ctx)
		require.NoError(t, err)
	}
	return svc, bunDB, events
}

func encode(t *testing.T, svc *attendance.Service, regID, sessionID string) string {
	t.Helper()
	data, err := svc.Codec.Encode(qr.NewCheckInPayload(regID, sessionID))
	require.NoError(t, err)
	return data
}

func TestCheckInKinds(t *testing.T) {
	svc, _, events := setup(t, "")
	ctx := context.Background()

	tests := []struct {
		regID, kind, name, registrant string
	}{
		{"r-user", attendance.KindUser, "نورة", ""},
		{"r-guest", attendance.KindGuest, "فهد", ""},
		{"r-comp", attendance.KindCompanion, "ريم", "فهد"},
	}
	for _, tt := range tests {
		res, err := svc.CheckInQR(ctx, encode(t, svc, tt.regID, "s1"))
		require.NoError(t, err, tt.regID)
		assert.Equal(t, tt.kind, res.Kind)
		assert.Equal(t, tt.name, res.Name)
		assert.Equal(t, tt.registrant, res.RegistrantName)
		assert.Equal(t, "الجلسة الأولى", res.SessionTitle)
		assert.False(t, res.AlreadyChecked)
	}
	assert.Len(t, events.topics, 3)
}

func TestCheckInIsIdempotent(t *testing.T) {
	svc, bunDB, _ := setup(t, "secret")
	ctx := context.Background()
	code := encode(t, svc, "r-guest", "s1")
	assert.False(t, strings.HasPrefix(code, "{"), "sealed codes are opaque")
	_, err := svc.CheckInQR(ctx, `{"type":"attendance","registrationId":"r-guest","sessionId":"s1"}`)
	assert.ErrorIs(t, err, attendance.ErrInvalidQR, "unsealed codes are refused once a secret is set")

	_, err = svc.CheckInQR(ctx, code)
	require.NoError(t, err)
	again, err := svc.CheckInQR(ctx, code)
	require.NoError(t, err)
	assert.True(t, again.AlreadyChecked)

	count, err := bunDB.NewSelect().Model((*models.Attendance)(nil)).Where("registration_id = ?", "r-guest").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCheckInRejections(t *testing.T) {
	svc, _, _ := setup(t, "")
	ctx := context.Background()

	_, err := svc.CheckInQR(ctx, "garbage")
	assert.ErrorIs(t, err, attendance.ErrInvalidQR)

	_, err = svc.CheckInQR(ctx, `{"type":"other","registrationId":"r-user","sessionId":"s1"}`)
	assert.ErrorIs(t, err, attendance.ErrInvalidQR)

	_, err = svc.CheckInQR(ctx, encode(t, svc, "missing", "s1"))
	assert.ErrorIs(t, err, registration.ErrRegistrationNotFound)

	_, err = svc.CheckInQR(ctx, encode(t, svc, "r-pending", "s1"))
	assert.ErrorIs(t, err, attendance.ErrNotApproved)

	_, err = svc.CheckInQR(ctx, encode(t, svc, "r-user", "s2"))
	assert.ErrorIs(t, err, attendance.ErrSessionMismatch)
}

func TestMarkAndSessionAttendance(t *testing.T) {
	svc, _, _ := setup(t, "")
	ctx := context.Background()

	a, err := svc.Mark(ctx, "r-user", true)
	require.NoError(t, err)
	assert.True(t, a.Attended)
	assert.False(t, a.QRVerified)
	require.NotNil(t, a.CheckInTime)

	_, err = svc.CheckInQR(ctx, encode(t, svc, "r-comp", "s1"))
	require.NoError(t, err)

	report, err := svc.SessionAttendance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, attendance.Stats{Total: 3, Attended: 2, Pending: 1, TotalCompanions: 1}, report.Stats)

	byID := map[string]attendance.Entry{}
	for _, e := range report.Entries {
		byID[e.RegistrationID] = e
	}
	assert.Equal(t, 1, byID["r-guest"].CompanionCount)
	assert.True(t, byID["r-comp"].QRVerified)

	a, err = svc.Mark(ctx, "r-user", false)
	require.NoError(t, err)
	assert.False(t, a.Attended)

	_, err = svc.Mark(ctx, "missing", true)
	assert.ErrorIs(t, err, registration.ErrRegistrationNotFound)

	_, err = svc.SessionAttendance(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestMyQR(t *testing.T) {
	svc, _, _ := setup(t, "")
	ctx := context.Background()

	res, err := svc.MyQR(ctx, "noura@example.com", "s1")
	require.NoError(t, err)
	assert.Equal(t, "r-user", res.RegistrationID)
	assert.True(t, strings.HasPrefix(res.QRCode, "data:image/png;base64,"))

	_, err = svc.MyQR(ctx, "noura@example.com", "s2")
	assert.ErrorIs(t, err, attendance.ErrNoApprovedQR)
}
