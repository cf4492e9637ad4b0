// Package sqlitetest opens an in-memory SQLite database with the full
// EventPilot schema for storage and service tests.
package sqlitetest

import (
	"context"
	"database/sql"
	"testing"

	"eventpilot/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// AllModels lists every table the service owns.
var AllModels = []interface{}{
	(*models.User)(nil),
	(*models.Session)(nil),
	(*models.Invite)(nil),
	(*models.Guest)(nil),
	(*models.SessionGuest)(nil),
	(*models.Registration)(nil),
	(*models.Attendance)(nil),
	(*models.Sponsor)(nil),
	(*models.EventSponsorship)(nil),
	(*models.EventCatering)(nil),
	(*models.ValetEmployee)(nil),
	(*models.ValetAssignment)(nil),
	(*models.ValetRecord)(nil),
	(*models.Gallery)(nil),
	(*models.GalleryImage)(nil),
}

// Open returns a fresh database that is closed when the test ends.
func Open(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// every pooled connection would otherwise get its own empty database
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := bunDB.ResetModel(context.Background(), AllModels...); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}
