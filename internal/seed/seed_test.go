package seed_test

import (
	"context"
	"testing"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/database/sqlitetest"
	"eventpilot/internal/models"
	"eventpilot/internal/seed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var now = time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC) // a Saturday

func TestEnsureAdmin(t *testing.T) {
	db := sqlitetest.Open(t)
	ctx := context.Background()

	res, err := seed.EnsureAdmin(ctx, db, seed.AdminInput{
		Name: " مدير النظام ", Username: "Admin", Email: " Admin@EventPilot.sa ", Password: "s3cret-pass",
	}, now)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "admin@eventpilot.sa", res.User.Email)
	assert.Equal(t, "admin", res.User.Username)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.User.PasswordHash), []byte("s3cret-pass")))

	again, err := seed.EnsureAdmin(ctx, db, seed.AdminInput{
		Name: "x", Username: "admin", Email: "admin@eventpilot.sa", Password: "another-pass", Super: true,
	}, now)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.User.ID, again.User.ID)
	assert.Equal(t, models.RoleSuperAdmin, again.User.Role)

	var stored models.User
	require.NoError(t, db.NewSelect().Model(&stored).Where("id = ?", res.User.ID).Scan(ctx))
	assert.Equal(t, models.RoleSuperAdmin, stored.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass")), "password kept")

	_, err = seed.EnsureAdmin(ctx, db, seed.AdminInput{Name: "x", Username: "x", Email: "bad", Password: "short"}, now)
	assert.ErrorIs(t, err, apperr.ErrBadInput)
}

func TestNextTuesday(t *testing.T) {
	assert.Equal(t, time.Date(2026, time.October, 20, 18, 0, 0, 0, time.UTC), seed.NextTuesday(now))
	tuesday := time.Date(2026, time.October, 20, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.October, 27, 18, 0, 0, 0, time.UTC), seed.NextTuesday(tuesday))
}

func TestSampleIsIdempotent(t *testing.T) {
	db := sqlitetest.Open(t)
	ctx := context.Background()

	wrote, err := seed.Sample(ctx, db, now)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = seed.Sample(ctx, db, now)
	require.NoError(t, err)
	assert.False(t, wrote)

	sessions, err := db.NewSelect().Model((*models.Session)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sessions)
	users, err := db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, users)
}
