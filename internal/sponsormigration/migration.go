// Package sponsormigration moves the legacy hosting data (users who offered
// to host, guest hosting answers and catering rows) onto sponsors and event
// sponsorships. It is safe to run more than once.
package sponsormigration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/utils"

	"github.com/uptrace/bun"
)

var errDryRun = errors.New("dry run")

type Migrator struct {
	DB     bun.IDB
	Logger *logger.Logger
	Now    func() time.Time
}

func NewMigrator(db bun.IDB, log *logger.Logger) *Migrator {
	return &Migrator{DB: db, Logger: log, Now: time.Now}
}

// Report counts what one run changed plus the state of the tables after it.
type Report struct {
	DryRun               bool    `json:"dryRun"`
	SponsorsFromUsers    int     `json:"sponsorsFromUsers"`
	RegistrationsUpdated int     `json:"registrationsUpdated"`
	SponsorshipsCreated  int     `json:"sponsorshipsCreated"`
	SponsorshipsSkipped  int     `json:"sponsorshipsSkipped"`
	Failures             int     `json:"failures"`
	Summary              Summary `json:"summary"`
}

type Summary struct {
	TotalSponsors           int `json:"totalSponsors"`
	LinkedSponsors          int `json:"linkedSponsors"`
	StandaloneSponsors      int `json:"standaloneSponsors"`
	TotalSponsorships       int `json:"totalSponsorships"`
	SponsoredSponsorships   int `json:"sponsoredSponsorships"`
	SelfSponsorships        int `json:"selfSponsorships"`
	LegacyCaterings         int `json:"legacyCaterings"`
	HostingUsers            int `json:"hostingUsers"`
	SponsoringRegistrations int `json:"sponsoringRegistrations"`
}

// Run executes the three steps in order. A dry run does the same work inside
// a transaction that is rolled back, so the report shows what would change.
func (m *Migrator) Run(ctx context.Context, dryRun bool) (*Report, error) {
	if !dryRun {
		return m.run(ctx, m.DB)
	}

	var report *Report
	err := m.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if report, err = m.run(ctx, tx); err != nil {
			return err
		}
		return errDryRun
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}
	report.DryRun = true
	m.Logger.Info("MIGRATE", "Dry run finished, all changes rolled back")
	return report, nil
}

func (m *Migrator) run(ctx context.Context, db bun.IDB) (*Report, error) {
	report := &Report{}

	if err := m.usersToSponsors(ctx, db, report); err != nil {
		return nil, err
	}
	if err := m.registrationsToSponsorship(ctx, db, report); err != nil {
		return nil, err
	}
	if err := m.cateringsToSponsorships(ctx, db, report); err != nil {
		return nil, err
	}

	summary, err := summarize(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	report.Summary = *summary

	m.Logger.Info("MIGRATE", fmt.Sprintf("Sponsors from users: %d, registrations updated: %d, sponsorships created: %d (skipped %d), failures: %d",
		report.SponsorsFromUsers, report.RegistrationsUpdated, report.SponsorshipsCreated, report.SponsorshipsSkipped, report.Failures))
	return report, nil
}

// step runs fn in its own transaction, or savepoint inside a dry run, so a
// failing record is rolled back alone.
func (m *Migrator) step(ctx context.Context, db bun.IDB, what string, report *Report, fn func(ctx context.Context, tx bun.Tx) error) bool {
	if err := db.RunInTx(ctx, nil, fn); err != nil {
		report.Failures++
		m.Logger.Error("MIGRATE", fmt.Sprintf("Failed to migrate %s: %v", what, err))
		return false
	}
	return true
}

func sponsorshipTypes(hosting []string) []string {
	out := []string{}
	for _, t := range hosting {
		if models.IsSponsorshipType(t) {
			out = append(out, t)
		}
	}
	return out
}

func (m *Migrator) sponsorForUser(u *models.User) *models.Sponsor {
	name := u.CompanyName
	if name == "" {
		name = u.Name
	}
	return &models.Sponsor{
		ID:               utils.NewID(),
		UserID:           u.ID,
		Name:             name,
		Email:            u.Email,
		Phone:            u.Phone,
		Type:             models.SponsorTypePerson,
		SponsorshipTypes: sponsorshipTypes(u.HostingTypes),
		IsActive:         true,
		CreatedAt:        m.Now(),
	}
}

func (m *Migrator) usersToSponsors(ctx context.Context, db bun.IDB, report *Report) error {
	var users []models.User
	err := db.NewSelect().
		Model(&users).
		Where("?TableAlias.wants_to_host = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM sponsors AS sp WHERE sp.user_id = ?TableAlias.id)").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("list hosting users: %w", err)
	}
	m.Logger.Info("MIGRATE", fmt.Sprintf("Found %d hosting users without a sponsor", len(users)))

	for i := range users {
		u := &users[i]
		ok := m.step(ctx, db, "user "+u.ID, report, func(ctx context.Context, tx bun.Tx) error {
			_, err := tx.NewInsert().Model(m.sponsorForUser(u)).Exec(ctx)
			return err
		})
		if ok {
			report.SponsorsFromUsers++
		}
	}
	return nil
}

func (m *Migrator) registrationsToSponsorship(ctx context.Context, db bun.IDB, report *Report) error {
	var regs []models.Registration
	err := db.NewSelect().
		Model(&regs).
		Where("guest_wants_to_host = ?", true).
		Where("wants_to_sponsor = ?", false).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("list hosting registrations: %w", err)
	}
	m.Logger.Info("MIGRATE", fmt.Sprintf("Found %d registrations with guest hosting answers", len(regs)))

	for i := range regs {
		reg := &regs[i]
		ok := m.step(ctx, db, "registration "+reg.ID, report, func(ctx context.Context, tx bun.Tx) error {
			reg.WantsToSponsor = true
			reg.SponsorshipTypes = sponsorshipTypes(reg.GuestHostingTypes)
			reg.SponsorType = models.SponsorTypePerson
			_, err := tx.NewUpdate().
				Model(reg).
				Column("wants_to_sponsor", "sponsorship_types", "sponsor_type").
				WherePK().
				Exec(ctx)
			return err
		})
		if ok {
			report.RegistrationsUpdated++
		}
	}
	return nil
}

func (m *Migrator) cateringsToSponsorships(ctx context.Context, db bun.IDB, report *Report) error {
	var caterings []models.EventCatering
	if err := db.NewSelect().Model(&caterings).Order("created_at ASC").Scan(ctx); err != nil {
		return fmt.Errorf("list caterings: %w", err)
	}
	m.Logger.Info("MIGRATE", fmt.Sprintf("Found %d catering rows", len(caterings)))

	for i := range caterings {
		c := &caterings[i]
		var created bool
		ok := m.step(ctx, db, "catering "+c.ID, report, func(ctx context.Context, tx bun.Tx) error {
			var err error
			created, err = m.migrateCatering(ctx, tx, c)
			return err
		})
		switch {
		case !ok:
		case created:
			report.SponsorshipsCreated++
		default:
			report.SponsorshipsSkipped++
		}
	}
	return nil
}

// migrateCatering reports false when a matching sponsorship already exists.
func (m *Migrator) migrateCatering(ctx context.Context, tx bun.Tx, c *models.EventCatering) (bool, error) {
	var host *models.User
	var hostSponsor *models.Sponsor
	if c.HostID != "" {
		host = new(models.User)
		err := tx.NewSelect().Model(host).Where("id = ?", c.HostID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			host = nil
		} else if err != nil {
			return false, fmt.Errorf("load host %s: %w", c.HostID, err)
		}
	}
	if host != nil {
		hostSponsor = new(models.Sponsor)
		err := tx.NewSelect().Model(hostSponsor).Where("user_id = ?", host.ID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			hostSponsor = nil
		} else if err != nil {
			return false, fmt.Errorf("load sponsor of %s: %w", host.ID, err)
		}
	}

	exists, err := tx.NewSelect().
		Model((*models.EventSponsorship)(nil)).
		Where("session_id = ?", c.SessionID).
		Where("sponsorship_type = ?", c.HostingType).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if hostSponsor != nil {
				q = q.Where("sponsor_id = ?", hostSponsor.ID)
			} else {
				q = q.Where("sponsor_id IS NULL")
			}
			return q.WhereOr("is_self_sponsored = ?", c.IsSelfCatering)
		}).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check existing sponsorship: %w", err)
	}
	if exists {
		return false, nil
	}

	var sponsorID string
	if host != nil && !c.IsSelfCatering {
		if hostSponsor == nil {
			hostSponsor = m.sponsorForUser(host)
			if _, err := tx.NewInsert().Model(hostSponsor).Exec(ctx); err != nil {
				return false, fmt.Errorf("create sponsor for host %s: %w", host.ID, err)
			}
			m.Logger.Info("MIGRATE", "Created sponsor for host "+host.ID)
		}
		sponsorID = hostSponsor.ID
	}

	es := &models.EventSponsorship{
		ID:              utils.NewID(),
		SessionID:       c.SessionID,
		SponsorID:       sponsorID,
		SponsorshipType: c.HostingType,
		IsSelfSponsored: c.IsSelfCatering,
		Notes:           c.Notes,
		CreatedAt:       m.Now(),
	}
	if _, err := tx.NewInsert().Model(es).Exec(ctx); err != nil {
		return false, fmt.Errorf("create sponsorship: %w", err)
	}
	return true, nil
}

func summarize(ctx context.Context, db bun.IDB) (*Summary, error) {
	var s Summary
	counts := []struct {
		dst *int
		q   *bun.SelectQuery
	}{
		{&s.TotalSponsors, db.NewSelect().Model((*models.Sponsor)(nil))},
		{&s.LinkedSponsors, db.NewSelect().Model((*models.Sponsor)(nil)).Where("user_id IS NOT NULL")},
		{&s.TotalSponsorships, db.NewSelect().Model((*models.EventSponsorship)(nil))},
		{&s.SelfSponsorships, db.NewSelect().Model((*models.EventSponsorship)(nil)).Where("is_self_sponsored = ?", true)},
		{&s.LegacyCaterings, db.NewSelect().Model((*models.EventCatering)(nil))},
		{&s.HostingUsers, db.NewSelect().Model((*models.User)(nil)).Where("wants_to_host = ?", true)},
		{&s.SponsoringRegistrations, db.NewSelect().Model((*models.Registration)(nil)).Where("wants_to_sponsor = ?", true)},
	}
	for _, c := range counts {
		n, err := c.q.Count(ctx)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	s.StandaloneSponsors = s.TotalSponsors - s.LinkedSponsors
	s.SponsoredSponsorships = s.TotalSponsorships - s.SelfSponsorships
	return &s, nil
}
