package database

import (
	"context"
	"testing"

	"hushfeed/internal/config"
	"hushfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool_SQLitePinsSingleConnection(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{DBDriver: "sqlite", DBMaxOpenConns: 10}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePool_Defaults(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, configurePool(db, &config.Config{DBDriver: "postgres"}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 25, sqlDB.Stats().MaxOpenConnections)
}

func TestDialector(t *testing.T) {
	d, err := Dialector(&config.Config{DBDriver: "postgres", DBHost: "db", DBPort: "5432"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = Dialector(&config.Config{DBDriver: "sqlite", DBSQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = Dialector(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "x.db?mode=ro", sqliteDSN("x.db?mode=ro"))
	assert.Equal(t, "x.db?_busy_timeout=5000&_journal_mode=WAL", sqliteDSN("x.db"))
}

func TestConnect_SQLiteMigrates(t *testing.T) {
	cfg := &config.Config{Env: "test", DBDriver: "sqlite", DBSQLitePath: ":memory:"}
	db, err := Connect(cfg)
	require.NoError(t, err)

	require.NoError(t, Ping(context.Background(), db))
	for _, m := range Models() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	// The composite key forbids a second vote row for the same pair.
	require.NoError(t, db.Create(&models.Vote{UserID: 1, ItemKind: models.ItemPost, ItemID: 1, Direction: models.VoteUp}).Error)
	err = db.Create(&models.Vote{UserID: 1, ItemKind: models.ItemPost, ItemID: 1, Direction: models.VoteDown}).Error
	assert.Error(t, err)
}
