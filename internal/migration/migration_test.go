package migration

import (
	"context"
	"fmt"
	"io/fs"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["000001_points_ledger.up.sql"])
	assert.True(t, names["000001_points_ledger.down.sql"])
	assert.True(t, names["000002_point_rules.up.sql"])
	assert.True(t, names["000002_point_rules.down.sql"])
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Run(db, "sqlite"))

	for _, table := range []string{"users", "point_transactions", "point_rules"} {
		assert.True(t, db.WithContext(context.Background()).Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("point_transactions", "ux_point_transactions_reference"))
}
