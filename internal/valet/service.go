package valet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/config"
	"eventpilot/internal/kafka"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/notify"
	"eventpilot/internal/qr"
	"eventpilot/internal/registration"
	"eventpilot/internal/search"
	"eventpilot/internal/session"
	"eventpilot/internal/sse"
	"eventpilot/internal/utils"
	"eventpilot/internal/valet/db"
	"eventpilot/internal/validation"

	"github.com/google/uuid"
)

const (
	defaultRetrievalNotice = 5
	searchLimit            = 15

	lockAttempts = 50
	lockBackoff  = 100 * time.Millisecond

	// EventStatusChanged is the SSE event type of queue updates.
	EventStatusChanged = "status_changed"

	ActionStatusOverride = "status_override"
	ActionVIPToggle      = "vip_toggle"
	ActionDetailsUpdate  = "details_update"
)

var (
	ErrRecordNotFound    = apperr.NotFound("VALET_RECORD_NOT_FOUND", "سجل الفاليه غير موجود")
	ErrInvalidToken      = apperr.NotFound("INVALID_TOKEN", "رابط التتبع غير صالح")
	ErrValetDisabled     = apperr.BadRequest("VALET_NOT_ENABLED", "خدمة الفاليه غير مفعلة لهذه الجلسة")
	ErrCapacityFull      = apperr.BadRequest("CAPACITY_FULL", "المواقف ممتلئة")
	ErrAlreadyParked     = apperr.BadRequest("ALREADY_PARKED", "تم ركن السيارة مسبقاً")
	ErrNotParked         = apperr.BadRequest("NOT_PARKED", "السيارة لم يتم ركنها بعد")
	ErrAlreadyRetrieved  = apperr.BadRequest("ALREADY_RETRIEVED", "تم استلام السيارة مسبقاً")
	ErrInvalidTransition = apperr.BadRequest("INVALID_TRANSITION", "لا يمكن تغيير حالة السيارة من وضعها الحالي")
	ErrInvalidStatus     = apperr.BadRequest("INVALID_STATUS", "حالة غير صالحة")
	ErrParkBusy          = apperr.Conflict("PARK_BUSY", "يتم ركن سيارة أخرى حالياً، يرجى المحاولة مرة أخرى")
	ErrInvalidQR         = apperr.BadRequest("INVALID_QR", "رمز QR غير صالح")
	ErrEmptyMessage      = apperr.BadRequest("EMPTY_MESSAGE", "نص الرسالة مطلوب")
)

// ParkLocker serializes parking within one session.
type ParkLocker interface {
	Lock(ctx context.Context, sessionID, owner string) (bool, error)
	Unlock(ctx context.Context, sessionID, owner string) error
}

type Service struct {
	DB       *db.DB
	Locker   ParkLocker
	Codec    *qr.Codec
	Notifier *notify.Notifier
	Events   kafka.Publisher
	Topic    string
	Hub      *sse.Hub
	Config   config.ValetConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(store *db.DB, locker ParkLocker, codec *qr.Codec, notifier *notify.Notifier, events kafka.Publisher,
	topic string, hub *sse.Hub, cfg config.ValetConfig, log *logger.Logger) *Service {
	return &Service{
		DB:       store,
		Locker:   locker,
		Codec:    codec,
		Notifier: notifier,
		Events:   events,
		Topic:    topic,
		Hub:      hub,
		Config:   cfg,
		Logger:   log,
		Now:      time.Now,
	}
}

// StreamTopic is the hub topic carrying a session's queue updates.
func StreamTopic(sessionID string) string {
	return "valet:" + sessionID
}

// StatusEvent is published on every status change.
type StatusEvent struct {
	RecordID      string             `json:"recordId"`
	SessionID     string             `json:"sessionId"`
	TicketNumber  int                `json:"ticketNumber,omitempty"`
	GuestName     string             `json:"guestName"`
	From          models.ValetStatus `json:"from"`
	To            models.ValetStatus `json:"to"`
	IsVIP         bool               `json:"isVip"`
	QueuePosition *int               `json:"queuePosition,omitempty"`
	At            time.Time          `json:"at"`
}

type ParkInput struct {
	RegistrationID string `json:"registrationId" validate:"required"`
	VehicleMake    string `json:"vehicleMake"`
	VehicleModel   string `json:"vehicleModel"`
	VehicleColor   string `json:"vehicleColor"`
	VehiclePlate   string `json:"vehiclePlate"`
	ParkingSlot    string `json:"parkingSlot"`
}

func (s *Service) getRecord(ctx context.Context, id string) (*models.ValetRecord, error) {
	rec, err := s.DB.GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get valet record %s: %w", id, err)
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

// lock takes the session's park lock, retrying while another employee holds it.
func (s *Service) lock(ctx context.Context, sessionID string) (func(), error) {
	owner := uuid.NewString()
	for i := 0; i < lockAttempts; i++ {
		ok, err := s.Locker.Lock(ctx, sessionID, owner)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				if err := s.Locker.Unlock(context.Background(), sessionID, owner); err != nil {
					s.Logger.Error("VALET", fmt.Sprintf("Release park lock for %s: %v", sessionID, err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return nil, ErrParkBusy
}

// Park records a car handed to the valet and issues its ticket and tracking
// link. A registration without an expected record gets one on the spot.
func (s *Service) Park(ctx context.Context, in ParkInput, employeeID string) (*models.ValetRecord, error) {
	reg, err := s.DB.GetRegistration(ctx, in.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("get registration %s: %w", in.RegistrationID, err)
	}
	if reg == nil || reg.Session == nil {
		return nil, registration.ErrRegistrationNotFound
	}
	if !reg.Session.ValetEnabled {
		return nil, ErrValetDisabled
	}

	unlock, err := s.lock(ctx, reg.SessionID)
	if err != nil {
		return nil, err
	}
	rec, err := s.park(ctx, reg, in, employeeID)
	unlock()
	if err != nil {
		return nil, err
	}

	s.Logger.LogValet("PARK", rec.ID, fmt.Sprintf("ticket %d in session %s", rec.TicketNumber, rec.SessionID))
	s.changed(ctx, rec, models.ValetExpected)

	if to := reg.ContactEmail(); to != "" {
		_ = s.Notifier.ValetParked(ctx, to, notify.ValetInfo{
			GuestName:     rec.GuestName,
			SessionTitle:  reg.Session.Title,
			Vehicle:       rec.VehicleDescription(),
			ParkingSlot:   rec.ParkingSlot,
			TicketNumber:  rec.TicketNumber,
			TrackingToken: rec.TrackingToken,
		})
	}
	return rec, nil
}

func (s *Service) park(ctx context.Context, reg *models.Registration, in ParkInput, employeeID string) (*models.ValetRecord, error) {
	occupied, err := s.DB.CountOccupied(ctx, reg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("count parked cars in %s: %w", reg.SessionID, err)
	}
	if occupied >= reg.Session.ValetLotCapacity {
		return nil, ErrCapacityFull
	}

	rec, err := s.DB.GetRecordByRegistration(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("get valet record of %s: %w", reg.ID, err)
	}
	if rec != nil && rec.Status != models.ValetExpected {
		return nil, ErrAlreadyParked
	}

	now := s.Now()
	isNew := rec == nil
	if isNew {
		rec = &models.ValetRecord{
			ID:             utils.NewID(),
			RegistrationID: reg.ID,
			SessionID:      reg.SessionID,
			GuestName:      reg.DisplayName(),
			GuestPhone:     reg.ContactPhone(),
			CreatedAt:      now,
		}
	}
	if rec.TicketNumber == 0 {
		if rec.TicketNumber, err = s.DB.NextTicketNumber(ctx, reg.SessionID); err != nil {
			return nil, fmt.Errorf("next ticket for %s: %w", reg.SessionID, err)
		}
	}
	if rec.TrackingToken == "" {
		rec.TrackingToken = uuid.NewString()
	}
	rec.VehicleMake = strings.TrimSpace(in.VehicleMake)
	rec.VehicleModel = strings.TrimSpace(in.VehicleModel)
	rec.VehicleColor = strings.TrimSpace(in.VehicleColor)
	rec.VehiclePlate = strings.TrimSpace(in.VehiclePlate)
	rec.ParkingSlot = strings.TrimSpace(in.ParkingSlot)
	rec.Status = models.ValetParked
	rec.ParkedAt = &now
	rec.ParkedByEmployeeID = employeeID

	if isNew {
		err = s.DB.CreateRecord(ctx, rec)
	} else {
		err = s.DB.UpdateRecord(ctx, rec)
	}
	if err != nil {
		return nil, fmt.Errorf("save valet record %s: %w", rec.ID, err)
	}
	rec.Session = reg.Session
	return rec, nil
}

// RetrievalResult answers a retrieval request.
type RetrievalResult struct {
	Status        models.ValetStatus `json:"status"`
	TicketNumber  int                `json:"ticketNumber,omitempty"`
	QueuePosition *int               `json:"queuePosition,omitempty"`
	Message       string             `json:"message"`
}

func (s *Service) RequestRetrieval(ctx context.Context, recordID string) (*RetrievalResult, error) {
	rec, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return s.requestRetrieval(ctx, rec)
}

// RequestRetrievalByRegistration is used by staff who find the guest rather than the record.
func (s *Service) RequestRetrievalByRegistration(ctx context.Context, registrationID string) (*RetrievalResult, error) {
	rec, err := s.DB.GetRecordByRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("get valet record of %s: %w", registrationID, err)
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	return s.requestRetrieval(ctx, rec)
}

func (s *Service) RequestRetrievalByToken(ctx context.Context, token string) (*RetrievalResult, error) {
	rec, err := s.DB.GetRecordByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get valet record by token: %w", err)
	}
	if rec == nil {
		return nil, ErrInvalidToken
	}
	return s.requestRetrieval(ctx, rec)
}

// requestRetrieval queues the car. Asking again while it is queued is a no-op.
func (s *Service) requestRetrieval(ctx context.Context, rec *models.ValetRecord) (*RetrievalResult, error) {
	switch {
	case rec.Status == models.ValetExpected:
		return nil, ErrNotParked
	case rec.Status == models.ValetRetrieved:
		return nil, ErrAlreadyRetrieved
	case rec.Status.InQueue():
		pos, err := s.QueuePosition(ctx, rec)
		if err != nil {
			return nil, err
		}
		return &RetrievalResult{Status: rec.Status, TicketNumber: rec.TicketNumber, QueuePosition: pos, Message: "السيارة في طابور الاسترجاع"}, nil
	}

	from := rec.Status
	now := s.Now()
	rec.Status = models.ValetRequested
	rec.RetrievalRequestedAt = &now
	rec.RetrievalPriority = priority(rec.IsVIP)
	if err := s.DB.UpdateRecord(ctx, rec, "status", "retrieval_requested_at", "retrieval_priority"); err != nil {
		return nil, fmt.Errorf("request retrieval %s: %w", rec.ID, err)
	}
	s.Logger.LogValet("REQUEST", rec.ID, fmt.Sprintf("retrieval requested in session %s", rec.SessionID))
	s.changed(ctx, rec, from)

	pos, err := s.QueuePosition(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &RetrievalResult{Status: rec.Status, TicketNumber: rec.TicketNumber, QueuePosition: pos, Message: "تم طلب استرجاع السيارة"}, nil
}

func priority(vip bool) int {
	if vip {
		return models.PriorityVIP
	}
	return models.PriorityNormal
}

// MarkFetching records that an employee went to get the car.
func (s *Service) MarkFetching(ctx context.Context, recordID string) (*models.ValetRecord, error) {
	return s.advance(ctx, recordID, models.ValetFetching, func(rec *models.ValetRecord, now time.Time) string {
		rec.FetchingStartedAt = &now
		return "fetching_started_at"
	}, models.ValetRequested)
}

// MarkReady puts the car at the pick-up point and tells the guest.
func (s *Service) MarkReady(ctx context.Context, recordID string) (*models.ValetRecord, error) {
	rec, err := s.advance(ctx, recordID, models.ValetReady, func(rec *models.ValetRecord, now time.Time) string {
		rec.VehicleReadyAt = &now
		return "vehicle_ready_at"
	}, models.ValetRequested, models.ValetFetching)
	if err != nil {
		return nil, err
	}

	if rec.Registration != nil {
		if to := rec.Registration.ContactEmail(); to != "" {
			info := notify.ValetInfo{GuestName: rec.GuestName, Vehicle: rec.VehicleDescription()}
			if rec.Session != nil {
				info.SessionTitle = rec.Session.Title
			}
			_ = s.Notifier.ValetReady(ctx, to, info)
		}
	}
	return rec, nil
}

func (s *Service) MarkRetrieved(ctx context.Context, recordID string) (*models.ValetRecord, error) {
	return s.advance(ctx, recordID, models.ValetRetrieved, func(rec *models.ValetRecord, now time.Time) string {
		rec.RetrievedAt = &now
		return "retrieved_at"
	}, models.ValetReady)
}

func (s *Service) advance(ctx context.Context, recordID string, to models.ValetStatus,
	stamp func(*models.ValetRecord, time.Time) string, from ...models.ValetStatus) (*models.ValetRecord, error) {
	rec, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, f := range from {
		if rec.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, to)
	}

	prev := rec.Status
	rec.Status = to
	column := stamp(rec, s.Now())
	if err := s.DB.UpdateRecord(ctx, rec, "status", column); err != nil {
		return nil, fmt.Errorf("update valet record %s: %w", rec.ID, err)
	}
	s.Logger.LogValet(strings.ToUpper(string(to)), rec.ID, fmt.Sprintf("%s -> %s", prev, to))
	s.changed(ctx, rec, prev)
	return rec, nil
}

// changed publishes a status change to Kafka and the session's live stream.
func (s *Service) changed(ctx context.Context, rec *models.ValetRecord, from models.ValetStatus) {
	ev := StatusEvent{
		RecordID:     rec.ID,
		SessionID:    rec.SessionID,
		TicketNumber: rec.TicketNumber,
		GuestName:    rec.GuestName,
		From:         from,
		To:           rec.Status,
		IsVIP:        rec.IsVIP,
		At:           s.Now(),
	}
	if rec.Status == models.ValetRequested {
		if pos, err := s.QueuePosition(ctx, rec); err == nil {
			ev.QueuePosition = pos
		}
	}

	if s.Hub != nil {
		s.Hub.Emit(StreamTopic(rec.SessionID), sse.Event{Type: EventStatusChanged, Data: ev})
	}
	if s.Events != nil {
		if err := s.Events.Publish(ctx, s.Topic, rec.SessionID, ev); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Publish valet change for %s: %v", rec.ID, err))
		}
	}
}

// QueuePosition is 1-based for requested cars and nil for every other status.
func (s *Service) QueuePosition(ctx context.Context, rec *models.ValetRecord) (*int, error) {
	if rec.Status != models.ValetRequested {
		return nil, nil
	}
	ahead, err := s.DB.CountAhead(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("queue position of %s: %w", rec.ID, err)
	}
	pos := ahead + 1
	return &pos, nil
}

func (s *Service) retrievalNotice(sess *models.Session) int {
	if sess != nil && sess.ValetRetrievalNotice > 0 {
		return sess.ValetRetrievalNotice
	}
	if s.Config.DefaultRetrievalNotice > 0 {
		return s.Config.DefaultRetrievalNotice
	}
	return defaultRetrievalNotice
}

// Queue lists the cars being retrieved for a session.
func (s *Service) Queue(ctx context.Context, sessionID string) ([]models.ValetRecord, error) {
	recs, err := s.DB.Queue(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("valet queue for %s: %w", sessionID, err)
	}
	return recs, nil
}

type TrackSession struct {
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// Tracking is what the guest sees on the public tracking page.
type Tracking struct {
	Status               models.ValetStatus `json:"status"`
	GuestName            string             `json:"guestName"`
	TicketNumber         int                `json:"ticketNumber,omitempty"`
	VehicleMake          string             `json:"vehicleMake,omitempty"`
	VehicleModel         string             `json:"vehicleModel,omitempty"`
	VehicleColor         string             `json:"vehicleColor,omitempty"`
	VehiclePlate         string             `json:"vehiclePlate,omitempty"`
	ParkingSlot          string             `json:"parkingSlot,omitempty"`
	IsVIP                bool               `json:"isVip"`
	ParkedAt             *time.Time         `json:"parkedAt,omitempty"`
	RetrievalRequestedAt *time.Time         `json:"retrievalRequestedAt,omitempty"`
	VehicleReadyAt       *time.Time         `json:"vehicleReadyAt,omitempty"`
	RetrievedAt          *time.Time         `json:"retrievedAt,omitempty"`
	QueuePosition        *int               `json:"queuePosition"`
	EstimatedWaitMinutes *int               `json:"estimatedWaitMinutes"`
	Session              TrackSession       `json:"session"`
}

func (s *Service) Track(ctx context.Context, token string) (*Tracking, error) {
	rec, err := s.DB.GetRecordByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get valet record by token: %w", err)
	}
	if rec == nil {
		return nil, ErrInvalidToken
	}

	pos, err := s.QueuePosition(ctx, rec)
	if err != nil {
		return nil, err
	}
	t := &Tracking{
		Status:               rec.Status,
		GuestName:            rec.GuestName,
		TicketNumber:         rec.TicketNumber,
		VehicleMake:          rec.VehicleMake,
		VehicleModel:         rec.VehicleModel,
		VehicleColor:         rec.VehicleColor,
		VehiclePlate:         rec.VehiclePlate,
		ParkingSlot:          rec.ParkingSlot,
		IsVIP:                rec.IsVIP,
		ParkedAt:             rec.ParkedAt,
		RetrievalRequestedAt: rec.RetrievalRequestedAt,
		VehicleReadyAt:       rec.VehicleReadyAt,
		RetrievedAt:          rec.RetrievedAt,
		QueuePosition:        pos,
	}
	if rec.Session != nil {
		t.Session = TrackSession{Title: rec.Session.Title, Date: rec.Session.Date}
	}
	if pos != nil {
		wait := *pos * s.retrievalNotice(rec.Session)
		t.EstimatedWaitMinutes = &wait
	}
	return t, nil
}

// Stats counts a session's records per status.
type Stats struct {
	Expected        int `json:"expected"`
	Parked          int `json:"parked"`
	Requested       int `json:"requested"`
	Fetching        int `json:"fetching"`
	Ready           int `json:"ready"`
	Retrieved       int `json:"retrieved"`
	Capacity        int `json:"capacity"`
	CurrentlyParked int `json:"currentlyParked"`
	InQueue         int `json:"inQueue"`
}

func (s *Service) Stats(ctx context.Context, sessionID string) (*Stats, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.StatusCounts(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count valet records for %s: %w", sessionID, err)
	}

	st := &Stats{Capacity: sess.ValetLotCapacity}
	for _, row := range rows {
		switch row.Status {
		case models.ValetExpected:
			st.Expected = row.Count
		case models.ValetParked:
			st.Parked = row.Count
		case models.ValetRequested:
			st.Requested = row.Count
		case models.ValetFetching:
			st.Fetching = row.Count
		case models.ValetReady:
			st.Ready = row.Count
		case models.ValetRetrieved:
			st.Retrieved = row.Count
		}
	}
	st.InQueue = st.Requested + st.Fetching + st.Ready
	st.CurrentlyParked = st.Parked + st.InQueue
	return st, nil
}

// OverrideStatus lets an admin force any status. Timestamps already set are kept.
func (s *Service) OverrideStatus(ctx context.Context, recordID string, status models.ValetStatus, reason, adminID string) (*models.ValetRecord, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	rec, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	setIfEmpty := func(t **time.Time) {
		if *t == nil {
			*t = &now
		}
	}
	switch status {
	case models.ValetParked:
		setIfEmpty(&rec.ParkedAt)
	case models.ValetRequested:
		setIfEmpty(&rec.RetrievalRequestedAt)
	case models.ValetFetching:
		setIfEmpty(&rec.FetchingStartedAt)
	case models.ValetReady:
		setIfEmpty(&rec.VehicleReadyAt)
	case models.ValetRetrieved:
		setIfEmpty(&rec.RetrievedAt)
	}

	prev := rec.Status
	rec.Status = status
	s.adminAction(rec, adminID, ActionStatusOverride, reason, now)
	if err := s.DB.UpdateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("override valet record %s: %w", rec.ID, err)
	}
	s.Logger.LogValet("OVERRIDE", rec.ID, fmt.Sprintf("%s -> %s by %s", prev, status, adminID))
	if prev != status {
		s.changed(ctx, rec, prev)
	}
	return rec, nil
}

func (s *Service) adminAction(rec *models.ValetRecord, adminID, action, note string, now time.Time) {
	rec.LastAdminActionAt = &now
	rec.LastAdminActionBy = adminID
	rec.LastAdminActionType = action
	rec.LastAdminActionNote = note
}

// SetVIP toggles VIP handling, which moves the car ahead in the queue.
func (s *Service) SetVIP(ctx context.Context, recordID string, vip bool, adminID string) (*models.ValetRecord, error) {
	rec, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return s.setVIP(ctx, rec, vip, adminID)
}

// SetVIPByRegistration marks a guest as VIP before their car arrives.
func (s *Service) SetVIPByRegistration(ctx context.Context, registrationID string, vip bool, adminID string) (*models.ValetRecord, error) {
	rec, err := s.DB.GetRecordByRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("get valet record of %s: %w", registrationID, err)
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	return s.setVIP(ctx, rec, vip, adminID)
}

func (s *Service) setVIP(ctx context.Context, rec *models.ValetRecord, vip bool, adminID string) (*models.ValetRecord, error) {
	rec.IsVIP = vip
	rec.RetrievalPriority = priority(vip)
	s.adminAction(rec, adminID, ActionVIPToggle, "", s.Now())
	if err := s.DB.UpdateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("set vip on %s: %w", rec.ID, err)
	}
	s.Logger.LogValet("VIP", rec.ID, fmt.Sprintf("vip=%t by %s", vip, adminID))
	// the priority reorders the queue even though the status stays
	s.changed(ctx, rec, rec.Status)
	return rec, nil
}

type VehicleInput struct {
	VehicleMake  *string `json:"vehicleMake"`
	VehicleModel *string `json:"vehicleModel"`
	VehicleColor *string `json:"vehicleColor"`
	VehiclePlate *string `json:"vehiclePlate"`
	ParkingSlot  *string `json:"parkingSlot"`
}

// UpdateVehicle changes only the fields present in in.
func (s *Service) UpdateVehicle(ctx context.Context, recordID string, in VehicleInput, adminID string) (*models.ValetRecord, error) {
	rec, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	for dst, src := range map[*string]*string{
		&rec.VehicleMake:  in.VehicleMake,
		&rec.VehicleModel: in.VehicleModel,
		&rec.VehicleColor: in.VehicleColor,
		&rec.VehiclePlate: in.VehiclePlate,
		&rec.ParkingSlot:  in.ParkingSlot,
	} {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	s.adminAction(rec, adminID, ActionDetailsUpdate, "", s.Now())
	if err := s.DB.UpdateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("update vehicle of %s: %w", rec.ID, err)
	}
	return rec, nil
}

// SessionRecords lists every valet record of a session for the admin board.
func (s *Service) SessionRecords(ctx context.Context, sessionID string) ([]models.ValetRecord, error) {
	recs, err := s.DB.SessionRecords(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list valet records for %s: %w", sessionID, err)
	}
	return recs, nil
}

// GuestMatch is one row of the valet guest lookup.
type GuestMatch struct {
	RegistrationID string             `json:"registrationId"`
	Name           string             `json:"name"`
	Phone          string             `json:"phone,omitempty"`
	Email          string             `json:"email,omitempty"`
	ValetStatus    models.ValetStatus `json:"valetStatus,omitempty"`
	IsVIP          bool               `json:"isVip"`
	TicketNumber   int                `json:"ticketNumber,omitempty"`
	VehicleMake    string             `json:"vehicleMake,omitempty"`
	VehicleModel   string             `json:"vehicleModel,omitempty"`
	VehicleColor   string             `json:"vehicleColor,omitempty"`
	VehiclePlate   string             `json:"vehiclePlate,omitempty"`
	ParkingSlot    string             `json:"parkingSlot,omitempty"`
}

func guestMatch(reg *models.Registration, rec *models.ValetRecord) GuestMatch {
	m := GuestMatch{
		RegistrationID: reg.ID,
		Name:           reg.DisplayName(),
		Phone:          reg.ContactPhone(),
		Email:          reg.ContactEmail(),
	}
	if rec != nil {
		m.ValetStatus = rec.Status
		m.IsVIP = rec.IsVIP
		m.TicketNumber = rec.TicketNumber
		m.VehicleMake = rec.VehicleMake
		m.VehicleModel = rec.VehicleModel
		m.VehicleColor = rec.VehicleColor
		m.VehiclePlate = rec.VehiclePlate
		m.ParkingSlot = rec.ParkingSlot
	}
	return m
}

// SearchGuests finds valet guests of a session by ticket number, or by name,
// phone or email.
func (s *Service) SearchGuests(ctx context.Context, sessionID, query string) ([]GuestMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []GuestMatch{}, nil
	}

	if n, err := strconv.Atoi(query); err == nil && n > 0 {
		rec, err := s.DB.GetRecordByTicket(ctx, sessionID, n)
		if err != nil {
			return nil, fmt.Errorf("find ticket %d: %w", n, err)
		}
		if rec != nil {
			reg, err := s.DB.GetRegistration(ctx, rec.RegistrationID)
			if err != nil {
				return nil, fmt.Errorf("get registration %s: %w", rec.RegistrationID, err)
			}
			if reg != nil {
				return []GuestMatch{guestMatch(reg, rec)}, nil
			}
		}
	}

	regs, err := s.DB.ValetRegistrations(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list valet guests for %s: %w", sessionID, err)
	}
	phone := ""
	if digits := strings.TrimLeft(query, "+"); digits != "" {
		if _, err := strconv.Atoi(digits); err == nil {
			phone = digits
		}
	}

	var hits []*models.Registration
	for i := range regs {
		r := &regs[i]
		if search.MatchAny(query, r.DisplayName(), r.ContactEmail()) || (phone != "" && phoneMatches(r.ContactPhone(), phone)) {
			hits = append(hits, r)
			if len(hits) == searchLimit {
				break
			}
		}
	}

	ids := make([]string, len(hits))
	for i, r := range hits {
		ids[i] = r.ID
	}
	recs, err := s.DB.RecordsByRegistration(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load valet records: %w", err)
	}
	out := make([]GuestMatch, 0, len(hits))
	for _, r := range hits {
		var rec *models.ValetRecord
		if v, ok := recs[r.ID]; ok {
			rec = &v
		}
		out = append(out, guestMatch(r, rec))
	}
	return out, nil
}

// phoneMatches compares the national part of the numbers so 05x, 5x and +9665x agree.
func phoneMatches(stored, query string) bool {
	national := func(p string) string {
		p = strings.TrimLeft(p, "+")
		p = strings.TrimPrefix(p, "966")
		return strings.TrimPrefix(p, "0")
	}
	q := national(query)
	return q != "" && strings.Contains(national(stored), q)
}

// GuestByQR resolves a scanned check-in code to the guest's valet row.
func (s *Service) GuestByQR(ctx context.Context, raw string) (*GuestMatch, error) {
	payload, err := s.Codec.Decode(raw)
	if err != nil {
		if errors.Is(err, qr.ErrInvalidPayload) {
			return nil, ErrInvalidQR
		}
		return nil, err
	}
	reg, err := s.DB.GetRegistration(ctx, payload.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("get registration %s: %w", payload.RegistrationID, err)
	}
	if reg == nil {
		return nil, registration.ErrRegistrationNotFound
	}
	rec, err := s.DB.GetRecordByRegistration(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("get valet record of %s: %w", reg.ID, err)
	}
	m := guestMatch(reg, rec)
	return &m, nil
}

// SessionConfig holds a session's valet settings.
type SessionConfig struct {
	ValetEnabled         bool `json:"valetEnabled"`
	ValetLotCapacity     int  `json:"valetLotCapacity" validate:"min=0"`
	ValetRetrievalNotice int  `json:"valetRetrievalNotice" validate:"omitempty,min=1"`
}

func (s *Service) getSession(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := s.DB.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if sess == nil {
		return nil, session.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) SessionConfig(ctx context.Context, sessionID string) (*SessionConfig, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionConfig{
		ValetEnabled:         sess.ValetEnabled,
		ValetLotCapacity:     sess.ValetLotCapacity,
		ValetRetrievalNotice: sess.ValetRetrievalNotice,
	}, nil
}

// UpdateSessionConfig replaces the valet settings. A missing retrieval
// notice falls back to the configured default.
func (s *Service) UpdateSessionConfig(ctx context.Context, sessionID string, in SessionConfig) (*SessionConfig, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrBadInput, err)
	}
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if in.ValetRetrievalNotice == 0 {
		in.ValetRetrievalNotice = s.retrievalNotice(nil)
	}
	sess.ValetEnabled = in.ValetEnabled
	sess.ValetLotCapacity = in.ValetLotCapacity
	sess.ValetRetrievalNotice = in.ValetRetrievalNotice
	if err := s.DB.UpdateSessionValet(ctx, sess); err != nil {
		return nil, fmt.Errorf("update valet config of %s: %w", sessionID, err)
	}
	s.Logger.Info("VALET", fmt.Sprintf("Session %s valet enabled=%t capacity=%d notice=%d",
		sessionID, in.ValetEnabled, in.ValetLotCapacity, in.ValetRetrievalNotice))
	return &in, nil
}

type BroadcastResult struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
}

// Broadcast emails message to every approved valet guest of the session.
// Failed sends are logged by the notifier and only lower the sent count.
func (s *Service) Broadcast(ctx context.Context, sessionID, message string) (*BroadcastResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	regs, err := s.DB.ValetRegistrations(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list valet guests for %s: %w", sessionID, err)
	}

	res := &BroadcastResult{}
	for i := range regs {
		to := regs[i].ContactEmail()
		if to == "" {
			continue
		}
		res.Recipients++
		if err := s.Notifier.ValetBroadcast(ctx, to, regs[i].DisplayName(), sess.Title, message); err == nil {
			res.Sent++
		}
	}
	s.Logger.LogValet("BROADCAST", sessionID, fmt.Sprintf("sent %d of %d", res.Sent, res.Recipients))
	return res, nil
}

// MyValet is the valet view of a signed-in user's own registration.
type MyValet struct {
	NeedsValet    bool                `json:"needsValet"`
	ValetEnabled  bool                `json:"valetEnabled"`
	SessionTitle  string              `json:"sessionTitle"`
	ValetRecord   *models.ValetRecord `json:"valetRecord"`
	QueuePosition *int                `json:"queuePosition,omitempty"`
}

// MyValetStatus answers only for the registration's own user, known by email.
func (s *Service) MyValetStatus(ctx context.Context, email, registrationID string) (*MyValet, error) {
	reg, err := s.DB.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("get registration %s: %w", registrationID, err)
	}
	if reg == nil || reg.Session == nil {
		return nil, registration.ErrRegistrationNotFound
	}
	if reg.UserID == "" || reg.User == nil || !strings.EqualFold(reg.User.Email, email) {
		return nil, apperr.ErrForbidden
	}

	rec, err := s.DB.GetRecordByRegistration(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("get valet record of %s: %w", reg.ID, err)
	}
	out := &MyValet{
		NeedsValet:   reg.NeedsValet,
		ValetEnabled: reg.Session.ValetEnabled,
		SessionTitle: reg.Session.Title,
		ValetRecord:  rec,
	}
	if rec != nil {
		if out.QueuePosition, err = s.QueuePosition(ctx, rec); err != nil {
			return nil, err
		}
	}
	return out, nil
}
