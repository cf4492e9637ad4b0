package valet_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/config"
	"eventpilot/internal/database/sqlitetest"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/notify"
	"eventpilot/internal/qr"
	"eventpilot/internal/registration"
	"eventpilot/internal/session"
	"eventpilot/internal/sse"
	"eventpilot/internal/valet"
	"eventpilot/internal/valet/db"
	valetredis "eventpilot/internal/valet/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (m *captureMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.Subject)
	}
	return out
}

type capturePublisher struct {
	mu     sync.Mutex
	events []valet.StatusEvent
}

func (p *capturePublisher) Publish(_ context.Context, _, _ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := payload.(valet.StatusEvent); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

var fixedNow = time.Date(2026, time.October, 20, 18, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *valet.Service
	bun    *bun.DB
	mailer *captureMailer
	events *capturePublisher
	hub    *sse.Hub
	redis  *redis.Client
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewWithWriter(io.Discard, "debug")
	bunDB := sqlitetest.Open(t)
	client := newRedis(t)
	codec, err := qr.NewCodec("")
	require.NoError(t, err)

	f := &fixture{bun: bunDB, mailer: &captureMailer{}, events: &capturePublisher{}, hub: sse.NewHub(10), redis: client}
	f.svc = valet.NewService(&db.DB{Bun: bunDB}, valetredis.NewParkLock(client, time.Second), codec,
		notify.NewNotifier(f.mailer, log, "https://eventpilot.sa"), f.events, "valet.status_changed", f.hub,
		config.ValetConfig{DefaultRetrievalNotice: 5}, log)

	// every call moves the clock forward so request times are strictly ordered
	var mu sync.Mutex
	clock := fixedNow
	f.svc.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	f.insert(t,
		&models.Session{ID: "s1", SessionNumber: 1, Title: "ثلوثية الأعمال", Date: fixedNow, Status: models.SessionOpen,
			MaxParticipants: 50, ValetEnabled: true, ValetLotCapacity: 3, ValetRetrievalNotice: 4, CreatedAt: fixedNow},
		&models.Session{ID: "s2", SessionNumber: 2, Title: "بدون فاليه", Date: fixedNow, Status: models.SessionOpen,
			MaxParticipants: 50, CreatedAt: fixedNow},
	)
	return f
}

func (f *fixture) insert(t *testing.T, rows ...interface{}) {
	t.Helper()
	for _, row := range rows {
		_, err := f.bun.NewInsert().Model(row).Exec(context.Background())
		require.NoError(t, err)
	}
}

func (f *fixture) guest(t *testing.T, id, sessionID, name, phone string) *models.Registration {
	t.Helper()
	reg := &models.Registration{
		ID:           id,
		SessionID:    sessionID,
		GuestName:    name,
		GuestEmail:   id + "@example.com",
		GuestPhone:   phone,
		IsApproved:   true,
		NeedsValet:   true,
		RegisteredAt: fixedNow,
	}
	f.insert(t, reg)
	return reg
}

func (f *fixture) park(t *testing.T, regID string) *models.ValetRecord {
	t.Helper()
	rec, err := f.svc.Park(context.Background(), valet.ParkInput{RegistrationID: regID, VehicleMake: "Toyota", VehicleModel: "Camry", VehicleColor: "أبيض"}, "emp-1")
	require.NoError(t, err)
	return rec
}

func TestPark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.guest(t, "r1", "s1", "فهد", "+966501111111")
	f.guest(t, "r2", "s1", "سارة", "+966502222222")
	f.guest(t, "r3", "s1", "خالد", "")
	f.guest(t, "r4", "s1", "نورة", "")
	f.guest(t, "r-off", "s2", "ريم", "")
	f.insert(t, &models.ValetRecord{ID: "v1", RegistrationID: "r1", SessionID: "s1", GuestName: "فهد", Status: models.ValetExpected, CreatedAt: fixedNow})

	first := f.park(t, "r1")
	assert.Equal(t, "v1", first.ID, "the expected record is reused")
	assert.Equal(t, 1, first.TicketNumber)
	assert.Equal(t, models.ValetParked, first.Status)
	assert.NotEmpty(t, first.TrackingToken)
	require.NotNil(t, first.ParkedAt)
	assert.Equal(t, "emp-1", first.ParkedByEmployeeID)
	assert.Equal(t, "أبيض Toyota Camry", first.VehicleDescription())

	second := f.park(t, "r2")
	assert.Equal(t, 2, second.TicketNumber)
	assert.NotEqual(t, first.TrackingToken, second.TrackingToken)
	assert.Equal(t, "+966502222222", second.GuestPhone)

	_, err := f.svc.Park(ctx, valet.ParkInput{RegistrationID: "r1"}, "emp-1")
	assert.ErrorIs(t, err, valet.ErrAlreadyParked)

	f.park(t, "r3")
	_, err = f.svc.Park(ctx, valet.ParkInput{RegistrationID: "r4"}, "emp-1")
	assert.ErrorIs(t, err, valet.ErrCapacityFull)

	_, err = f.svc.Park(ctx, valet.ParkInput{RegistrationID: "r-off"}, "emp-1")
	assert.ErrorIs(t, err, valet.ErrValetDisabled)

	_, err = f.svc.Park(ctx, valet.ParkInput{RegistrationID: "missing"}, "emp-1")
	assert.ErrorIs(t, err, registration.ErrRegistrationNotFound)

	require.Len(t, f.mailer.sent, 3)
	assert.Contains(t, f.mailer.sent[0].Text, "https://eventpilot.sa/valet/track/"+first.TrackingToken)
	assert.Equal(t, []string{"r1@example.com"}, f.mailer.sent[0].To)
	require.Len(t, f.events.events, 3)
	assert.Equal(t, models.ValetParked, f.events.events[0].To)
}

func TestParkIsSerializedPerSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.bun.NewUpdate().Model((*models.Session)(nil)).Set("valet_lot_capacity = ?", 20).Where("id = ?", "s1").Exec(context.Background())
	require.NoError(t, err)

	const n = 8
	for i := 0; i < n; i++ {
		f.guest(t, fmt.Sprintf("r%d", i), "s1", fmt.Sprintf("Guest %d", i), "")
	}

	var wg sync.WaitGroup
	tickets := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := f.svc.Park(context.Background(), valet.ParkInput{RegistrationID: fmt.Sprintf("r%d", i)}, "emp")
			errs[i] = err
			if err == nil {
				tickets[i] = rec.TicketNumber
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Ints(tickets)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, tickets)
}

func TestRetrievalQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		f.guest(t, id, "s1", id, "")
	}
	a, b, vip := f.park(t, "r1"), f.park(t, "r2"), f.park(t, "r3")

	_, err := f.svc.SetVIP(ctx, vip.ID, true, "admin-1")
	require.NoError(t, err)

	res, err := f.svc.RequestRetrieval(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, res.QueuePosition)
	assert.Equal(t, 1, *res.QueuePosition)

	_, err = f.svc.RequestRetrievalByToken(ctx, b.TrackingToken)
	require.NoError(t, err)
	res, err = f.svc.RequestRetrievalByRegistration(ctx, "r3")
	require.NoError(t, err)
	assert.Equal(t, 1, *res.QueuePosition, "VIP jumps the queue")

	queue, err := f.svc.Queue(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, []string{vip.ID, a.ID, b.ID}, []string{queue[0].ID, queue[1].ID, queue[2].ID})
	assert.Equal(t, models.PriorityVIP, queue[0].RetrievalPriority)

	again, err := f.svc.RequestRetrieval(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ValetRequested, again.Status)
	assert.Equal(t, 2, *again.QueuePosition, "asking twice keeps the place")

	track, err := f.svc.Track(ctx, b.TrackingToken)
	require.NoError(t, err)
	assert.Equal(t, 3, *track.QueuePosition)
	assert.Equal(t, 12, *track.EstimatedWaitMinutes, "3 cars at the session's 4 minute notice")
	assert.Equal(t, "ثلوثية الأعمال", track.Session.Title)

	_, err = f.svc.Track(ctx, "nope")
	assert.ErrorIs(t, err, valet.ErrInvalidToken)
}

func TestTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.guest(t, "r1", "s1", "فهد", "")
	f.guest(t, "r2", "s1", "سارة", "")
	f.insert(t, &models.ValetRecord{ID: "v-expected", RegistrationID: "r2", SessionID: "s1", GuestName: "سارة", Status: models.ValetExpected, CreatedAt: fixedNow})
	rec := f.park(t, "r1")

	_, err := f.svc.MarkFetching(ctx, rec.ID)
	assert.ErrorIs(t, err, valet.ErrInvalidTransition)
	_, err = f.svc.MarkRetrieved(ctx, rec.ID)
	assert.ErrorIs(t, err, valet.ErrInvalidTransition)
	_, err = f.svc.RequestRetrieval(ctx, "v-expected")
	assert.ErrorIs(t, err, valet.ErrNotParked)
	_, err = f.svc.MarkReady(ctx, "missing")
	assert.ErrorIs(t, err, valet.ErrRecordNotFound)

	_, err = f.svc.RequestRetrieval(ctx, rec.ID)
	require.NoError(t, err)
	fetching, err := f.svc.MarkFetching(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, fetching.FetchingStartedAt)

	ready, err := f.svc.MarkReady(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, ready.VehicleReadyAt)

	track, err := f.svc.Track(ctx, rec.TrackingToken)
	require.NoError(t, err)
	assert.Nil(t, track.QueuePosition, "only requested cars have a position")
	assert.Nil(t, track.EstimatedWaitMinutes)

	done, err := f.svc.MarkRetrieved(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ValetRetrieved, done.Status)

	_, err = f.svc.RequestRetrieval(ctx, rec.ID)
	assert.ErrorIs(t, err, valet.ErrAlreadyRetrieved)

	subjects := f.mailer.subjects()
	require.Len(t, subjects, 2)
	assert.True(t, strings.HasPrefix(subjects[1], "سيارتك جاهزة"))

	var path []models.ValetStatus
	for _, ev := range f.events.events {
		path = append(path, ev.To)
	}
	assert.Equal(t, []models.ValetStatus{models.ValetParked, models.ValetRequested, models.ValetFetching, models.ValetReady, models.ValetRetrieved}, path)
}

func TestStatusChangesReachStream(t *testing.T) {
	f := newFixture(t)
	f.guest(t, "r1", "s1", "فهد", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := f.hub.Subscribe(ctx, valet.StreamTopic("s1"))

	rec := f.park(t, "r1")
	select {
	case ev := <-events:
		assert.Equal(t, valet.EventStatusChanged, ev.Type)
		data, ok := ev.Data.(valet.StatusEvent)
		require.True(t, ok)
		assert.Equal(t, rec.ID, data.RecordID)
		assert.Equal(t, models.ValetParked, data.To)
	case <-time.After(time.Second):
		t.Fatal("no stream event after parking")
	}
}

func TestOverrideVehicleAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.guest(t, "r1", "s1", "فهد", "")
	f.guest(t, "r2", "s1", "سارة", "")
	f.insert(t, &models.ValetRecord{ID: "v2", RegistrationID: "r2", SessionID: "s1", GuestName: "سارة", Status: models.ValetExpected, CreatedAt: fixedNow})
	rec := f.park(t, "r1")

	_, err := f.svc.OverrideStatus(ctx, rec.ID, "lost", "", "admin-1")
	assert.ErrorIs(t, err, valet.ErrInvalidStatus)

	over, err := f.svc.OverrideStatus(ctx, rec.ID, models.ValetReady, "guest waiting at gate", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ValetReady, over.Status)
	require.NotNil(t, over.VehicleReadyAt)
	assert.Equal(t, valet.ActionStatusOverride, over.LastAdminActionType)
	assert.Equal(t, "admin-1", over.LastAdminActionBy)
	assert.Equal(t, "guest waiting at gate", over.LastAdminActionNote)

	readyAt := *over.VehicleReadyAt
	over, err = f.svc.OverrideStatus(ctx, rec.ID, models.ValetReady, "", "admin-2")
	require.NoError(t, err)
	assert.True(t, readyAt.Equal(*over.VehicleReadyAt), "existing timestamps are kept")

	plate := " ABC 123 "
	updated, err := f.svc.UpdateVehicle(ctx, rec.ID, valet.VehicleInput{VehiclePlate: &plate}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC 123", updated.VehiclePlate)
	assert.Equal(t, "Toyota", updated.VehicleMake, "absent fields are untouched")
	assert.Equal(t, valet.ActionDetailsUpdate, updated.LastAdminActionType)

	vip, err := f.svc.SetVIPByRegistration(ctx, "r2", true, "admin-1")
	require.NoError(t, err)
	assert.True(t, vip.IsVIP)
	assert.Equal(t, models.PriorityVIP, vip.RetrievalPriority)

	st, err := f.svc.Stats(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, valet.Stats{Expected: 1, Ready: 1, Capacity: 3, CurrentlyParked: 1, InQueue: 1}, *st)

	_, err = f.svc.Stats(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestSearchGuests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.guest(t, "r1", "s1", "عبدالله الأحمد", "+966501234567")
	f.guest(t, "r2", "s1", "Sara Ali", "+966559876543")
	f.park(t, "r1")

	byTicket, err := f.svc.SearchGuests(ctx, "s1", "1")
	require.NoError(t, err)
	require.Len(t, byTicket, 1)
	assert.Equal(t, "r1", byTicket[0].RegistrationID)
	assert.Equal(t, models.ValetParked, byTicket[0].ValetStatus)

	byName, err := f.svc.SearchGuests(ctx, "s1", "الاحمد")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, 1, byName[0].TicketNumber)

	byPhone, err := f.svc.SearchGuests(ctx, "s1", "0559876")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, "r2", byPhone[0].RegistrationID)
	assert.Empty(t, byPhone[0].ValetStatus)

	none, err := f.svc.SearchGuests(ctx, "s1", "  ")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGuestByQR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.guest(t, "r1", "s1", "فهد", "")
	f.park(t, "r1")

	code, err := f.svc.Codec.Encode(qr.NewCheckInPayload("r1", "s1"))
	require.NoError(t, err)
	m, err := f.svc.GuestByQR(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "فهد", m.Name)
	assert.Equal(t, 1, m.TicketNumber)

	_, err = f.svc.GuestByQR(ctx, "not a code")
	assert.ErrorIs(t, err, valet.ErrInvalidQR)
}

func TestVIPChangeReachesStream(t *testing.T) {
	f := newFixture(t)
	f.guest(t, "r1", "s1", "فهد", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := f.hub.Subscribe(ctx, valet.StreamTopic("s1"))

	rec := f.park(t, "r1")
	<-events

	_, err := f.svc.SetVIP(ctx, rec.ID, true, "admin-1")
	require.NoError(t, err)
	select {
	case ev := <-events:
		data, ok := ev.Data.(valet.StatusEvent)
		require.True(t, ok)
		assert.Equal(t, rec.ID, data.RecordID)
		assert.True(t, data.IsVIP)
		assert.Equal(t, models.ValetParked, data.To)
	case <-time.After(time.Second):
		t.Fatal("no stream event after the VIP change")
	}
	require.Len(t, f.events.events, 2)
	assert.True(t, f.events.events[1].IsVIP)
}

func TestQueueTiesBreakOnID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.guest(t, "r1", "s1", "فهد", "")
	f.guest(t, "r2", "s1", "سارة", "")
	at := fixedNow.Add(time.Minute)
	f.insert(t,
		&models.ValetRecord{ID: "v-b", RegistrationID: "r2", SessionID: "s1", GuestName: "سارة", Status: models.ValetRequested,
			TicketNumber: 2, RetrievalRequestedAt: &at, CreatedAt: fixedNow},
		&models.ValetRecord{ID: "v-a", RegistrationID: "r1", SessionID: "s1", GuestName: "فهد", Status: models.ValetRequested,
			TicketNumber: 1, RetrievalRequestedAt: &at, CreatedAt: fixedNow},
	)

	queue, err := f.svc.Queue(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "v-a", queue[0].ID)
	assert.Equal(t, "v-b", queue[1].ID)

	for i := range queue {
		pos, err := f.svc.QueuePosition(ctx, &queue[i])
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.Equal(t, i+1, *pos, queue[i].ID)
	}
}

func TestSessionConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.svc.SessionConfig(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, valet.SessionConfig{ValetEnabled: true, ValetLotCapacity: 3, ValetRetrievalNotice: 4}, *cfg)

	cfg, err = f.svc.UpdateSessionConfig(ctx, "s2", valet.SessionConfig{ValetEnabled: true, ValetLotCapacity: 20})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ValetRetrievalNotice, "the default notice fills a missing value")

	stored, err := f.svc.SessionConfig(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, valet.SessionConfig{ValetEnabled: true, ValetLotCapacity: 20, ValetRetrievalNotice: 5}, *stored)

	_, err = f.svc.UpdateSessionConfig(ctx, "s2", valet.SessionConfig{ValetLotCapacity: -1})
	assert.ErrorIs(t, err, apperr.ErrBadInput)
	_, err = f.svc.SessionConfig(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = f.svc.UpdateSessionConfig(ctx, "missing", valet.SessionConfig{ValetRetrievalNotice: 3})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.guest(t, "r1", "s1", "فهد", "")
	f.guest(t, "r2", "s1", "سارة", "")
	f.insert(t,
		&models.Registration{ID: "r-no-email", SessionID: "s1", GuestName: "خالد", IsApproved: true, NeedsValet: true, RegisteredAt: fixedNow},
		&models.Registration{ID: "r-pending", SessionID: "s1", GuestName: "ريم", GuestEmail: "reem@example.com", NeedsValet: true, RegisteredAt: fixedNow},
		&models.Registration{ID: "r-walk", SessionID: "s1", GuestName: "سعد", GuestEmail: "saad@example.com", IsApproved: true, RegisteredAt: fixedNow},
	)

	res, err := f.svc.Broadcast(ctx, "s1", "  البوابة الشمالية مغلقة  ")
	require.NoError(t, err)
	assert.Equal(t, valet.BroadcastResult{Recipients: 2, Sent: 2}, *res)

	var to []string
	for _, msg := range f.mailer.sent {
		to = append(to, msg.To...)
		assert.Contains(t, msg.Text, "البوابة الشمالية مغلقة")
	}
	sort.Strings(to)
	assert.Equal(t, []string{"r1@example.com", "r2@example.com"}, to)

	_, err = f.svc.Broadcast(ctx, "s1", "   ")
	assert.ErrorIs(t, err, valet.ErrEmptyMessage)
	_, err = f.svc.Broadcast(ctx, "missing", "hello")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestMyValetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.guest(t, "r-guest", "s1", "فهد", "")
	f.insert(t,
		&models.User{ID: "u1", Name: "نورة", Username: "noura", Email: "noura@example.com", Role: models.RoleUser, IsActive: true, CreatedAt: fixedNow},
		&models.Registration{ID: "r-user", SessionID: "s1", UserID: "u1", IsApproved: true, NeedsValet: true, RegisteredAt: fixedNow},
	)

	mine, err := f.svc.MyValetStatus(ctx, "noura@example.com", "r-user")
	require.NoError(t, err)
	assert.True(t, mine.NeedsValet)
	assert.True(t, mine.ValetEnabled)
	assert.Equal(t, "ثلوثية الأعمال", mine.SessionTitle)
	assert.Nil(t, mine.ValetRecord, "no car handed over yet")

	rec := f.park(t, "r-user")
	_, err = f.svc.RequestRetrieval(ctx, rec.ID)
	require.NoError(t, err)

	mine, err = f.svc.MyValetStatus(ctx, "noura@example.com", "r-user")
	require.NoError(t, err)
	require.NotNil(t, mine.ValetRecord)
	assert.Equal(t, models.ValetRequested, mine.ValetRecord.Status)
	require.NotNil(t, mine.QueuePosition)
	assert.Equal(t, 1, *mine.QueuePosition)

	_, err = f.svc.MyValetStatus(ctx, "someone@example.com", "r-user")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.MyValetStatus(ctx, "r-guest@example.com", "r-guest")
	assert.ErrorIs(t, err, apperr.ErrForbidden, "guest registrations have no account to own them")
	_, err = f.svc.MyValetStatus(ctx, "noura@example.com", "missing")
	assert.ErrorIs(t, err, registration.ErrRegistrationNotFound)
}
