// Package seed creates the first admin account and the demo data used on
// fresh installations.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/models"
	"eventpilot/internal/utils"
	"eventpilot/internal/validation"

	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

type AdminInput struct {
	Name     string `validate:"required,max=100"`
	Username string `validate:"required,min=3,max=50"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Super    bool
}

// AdminResult tells whether the account was created or an existing user
// was promoted.
type AdminResult struct {
	User    *models.User
	Created bool
}

func findUser(ctx context.Context, db bun.IDB, email string) (*models.User, error) {
	var u models.User
	err := db.NewSelect().Model(&u).Where("email = ?", email).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureAdmin creates the admin account, or promotes the user holding the
// email. An existing password is left untouched.
func EnsureAdmin(ctx context.Context, db bun.IDB, in AdminInput, now time.Time) (*AdminResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrBadInput, err)
	}

	role := models.RoleAdmin
	if in.Super {
		role = models.RoleSuperAdmin
	}

	existing, err := findUser(ctx, db, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Role != models.RoleSuperAdmin {
			existing.Role = role
		}
		existing.IsActive = true
		if _, err := db.NewUpdate().Model(existing).Column("role", "is_active").WherePK().Exec(ctx); err != nil {
			return nil, err
		}
		return &AdminResult{User: existing}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           utils.NewID(),
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
	}
	if _, err := db.NewInsert().Model(u).Exec(ctx); err != nil {
		return nil, err
	}
	return &AdminResult{User: u, Created: true}, nil
}

// NextTuesday returns the coming Tuesday at 18:00 in now's location, a
// week ahead when now is already a Tuesday.
func NextTuesday(now time.Time) time.Time {
	days := (int(time.Tuesday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	d := now.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 18, 0, 0, 0, now.Location())
}

// Sample inserts a demo session and user unless session number 1 exists.
// It reports whether anything was written.
func Sample(ctx context.Context, db bun.IDB, now time.Time) (bool, error) {
	exists, err := db.NewSelect().Model((*models.Session)(nil)).Where("session_number = ?", 1).Exists(ctx)
	if err != nil || exists {
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("user12345"), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		session := &models.Session{
			ID:              utils.NewID(),
			SessionNumber:   1,
			Title:           "ثلوثية الأعمال الأولى",
			Description:     "أول لقاء لمجتمع رواد الأعمال. انضم إلينا لتبادل الخبرات وبناء شبكة علاقات مهنية.",
			Date:            NextTuesday(now),
			Location:        "الرياض",
			Status:          models.SessionOpen,
			MaxParticipants: 50,
			MaxCompanions:   2,
			CreatedAt:       now,
		}
		if _, err := tx.NewInsert().Model(session).Exec(ctx); err != nil {
			return err
		}
		user := &models.User{
			ID:           utils.NewID(),
			Name:         "أحمد محمد",
			Username:     "ahmed",
			Email:        "user@example.com",
			Phone:        "+966501234567",
			PasswordHash: string(hash),
			Role:         models.RoleUser,
			CompanyName:  "شركة التقنية المتقدمة",
			Position:     "مدير تطوير الأعمال",
			IsActive:     true,
			CreatedAt:    now,
		}
		_, err := tx.NewInsert().Model(user).On("CONFLICT DO NOTHING").Exec(ctx)
		return err
	})
	return err == nil, err
}
