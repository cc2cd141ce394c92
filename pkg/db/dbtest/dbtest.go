// Package dbtest opens throwaway SQLite databases carrying the service schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
)

// DraftIndexDDL mirrors the partial unique index from the migrations.
const DraftIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS ux_applications_one_draft
	ON applications (user_id, school_id) WHERE status = 'draft'`

// Open returns an isolated in-memory database with every table migrated.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// A single connection keeps the shared-cache database free of table locks.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, conn.AutoMigrate(
		&models.User{},
		&models.Application{},
		&models.AuthIdentity{},
		&models.OutboxEvent{},
	))
	require.NoError(t, conn.Exec(DraftIndexDDL).Error)

	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
