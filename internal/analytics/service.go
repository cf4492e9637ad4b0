package analytics

import (
	"context"
	"math"
	"time"

	"eventpilot/internal/models"
	"eventpilot/internal/session"

	"golang.org/x/sync/errgroup"
)

const (
	upcomingLimit    = 5
	recentLimit      = 10
	attendanceWindow = 5
)

// Service handles analytics operations
type Service struct {
	DB  *DB
	Now func() time.Time
}

// NewService creates a new analytics service
func NewService(db *DB) *Service {
	return &Service{DB: db, Now: time.Now}
}

// SessionSummary is the admin overview of a single session
type SessionSummary struct {
	SessionID          string                     `json:"sessionId"`
	Title              string                     `json:"title"`
	MaxParticipants    int                        `json:"maxParticipants"`
	TotalRegistrations int                        `json:"totalRegistrations"`
	Approved           int                        `json:"approved"`
	Pending            int                        `json:"pending"`
	Companions         int                        `json:"companions"`
	Attended           int                        `json:"attended"`
	AttendanceRate     int                        `json:"attendanceRate"`
	Sponsorships       int                        `json:"sponsorships"`
	ValetRequested     int                        `json:"valetRequested"`
	Valet              map[models.ValetStatus]int `json:"valet"`
}

// DashboardStats holds the headline counters
type DashboardStats struct {
	TotalUsers         int `json:"totalUsers"`
	TotalSessions      int `json:"totalSessions"`
	TotalRegistrations int `json:"totalRegistrations"`
	PendingApprovals   int `json:"pendingApprovals"`
}

type UpcomingSession struct {
	models.Session
	RegistrationCount int `json:"registrationCount"`
	AvailableSpots    int `json:"availableSpots"`
}

type RecentRegistration struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	SessionTitle string    `json:"sessionTitle"`
	RegisteredAt time.Time `json:"registeredAt"`
	IsApproved   bool      `json:"isApproved"`
	IsGuest      bool      `json:"isGuest"`
}

type SessionAttendance struct {
	SessionID      string    `json:"sessionId"`
	Title          string    `json:"title"`
	Date           time.Time `json:"date"`
	Registrations  int       `json:"registrations"`
	Attendees      int       `json:"attendees"`
	AttendanceRate int       `json:"attendanceRate"`
}

// Dashboard is the admin landing page payload
type Dashboard struct {
	Stats               DashboardStats       `json:"stats"`
	UpcomingSessions    []UpcomingSession    `json:"upcomingSessions"`
	RecentRegistrations []RecentRegistration `json:"recentRegistrations"`
	AttendanceStats     []SessionAttendance  `json:"attendanceStats"`
}

// rate is attended/expected as a rounded percentage
func rate(attended, expected int) int {
	if expected <= 0 {
		return 0
	}
	return int(math.Round(float64(attended) / float64(expected) * 100))
}

// SessionSummary retrieves the registration, attendance, sponsorship and
// valet breakdown for a session
func (s *Service) SessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	sess, err := s.DB.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, session.ErrSessionNotFound
	}

	counts, err := s.DB.GetRegistrationCounts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	attended, err := s.DB.CountAttended(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sponsorships, err := s.DB.CountSponsorships(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	valet, err := s.DB.GetValetCounts(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &SessionSummary{
		SessionID:          sess.ID,
		Title:              sess.Title,
		MaxParticipants:    sess.MaxParticipants,
		TotalRegistrations: counts.Total,
		Approved:           counts.Approved,
		Pending:            counts.Total - counts.Approved,
		Companions:         counts.Companions,
		Attended:           attended,
		AttendanceRate:     rate(attended, counts.Approved),
		Sponsorships:       sponsorships,
		ValetRequested:     counts.Valet,
		Valet:              valet,
	}, nil
}

// Dashboard collects the counters and short lists shown on the admin home
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.Now()
	var (
		stats    DashboardStats
		upcoming []models.Session
		past     []models.Session
		recent   []models.Registration
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.DB.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalSessions, err = s.DB.CountSessions(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalRegistrations, err = s.DB.CountRegistrations(gctx, true)
		return err
	})
	g.Go(func() (err error) {
		stats.PendingApprovals, err = s.DB.CountRegistrations(gctx, false)
		return err
	})
	g.Go(func() (err error) {
		upcoming, err = s.DB.GetUpcomingSessions(gctx, now, upcomingLimit)
		return err
	})
	g.Go(func() (err error) {
		past, err = s.DB.GetPastSessions(gctx, now, attendanceWindow)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.DB.GetRecentRegistrations(gctx, recentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(upcoming)+len(past))
	for _, sess := range upcoming {
		ids = append(ids, sess.ID)
	}
	for _, sess := range past {
		ids = append(ids, sess.ID)
	}
	approved, err := s.DB.GetApprovedCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	attended, err := s.DB.GetAttendedCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &Dashboard{
		Stats:               stats,
		UpcomingSessions:    make([]UpcomingSession, 0, len(upcoming)),
		RecentRegistrations: make([]RecentRegistration, 0, len(recent)),
		AttendanceStats:     make([]SessionAttendance, 0, len(past)),
	}
	for _, sess := range upcoming {
		out.UpcomingSessions = append(out.UpcomingSessions, UpcomingSession{
			Session:           sess,
			RegistrationCount: approved[sess.ID],
			AvailableSpots:    sess.MaxParticipants - approved[sess.ID],
		})
	}
	for i := range recent {
		r := &recent[i]
		item := RecentRegistration{
			ID:           r.ID,
			Name:         r.DisplayName(),
			Email:        r.ContactEmail(),
			RegisteredAt: r.RegisteredAt,
			IsApproved:   r.IsApproved,
			IsGuest:      r.UserID == "",
		}
		if r.Session != nil {
			item.SessionTitle = r.Session.Title
		}
		out.RecentRegistrations = append(out.RecentRegistrations, item)
	}
	for _, sess := range past {
		out.AttendanceStats = append(out.AttendanceStats, SessionAttendance{
			SessionID:      sess.ID,
			Title:          sess.Title,
			Date:           sess.Date,
			Registrations:  approved[sess.ID],
			Attendees:      attended[sess.ID],
			AttendanceRate: rate(attended[sess.ID], approved[sess.ID]),
		})
	}
	return out, nil
}
