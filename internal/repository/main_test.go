package repository

import (
	"testing"

	"hushfeed/internal/database"
	"hushfeed/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupSQLite returns a migrated in-memory database on a single connection.
func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// setupMockDB returns a postgres-dialect gorm handle over sqlmock.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func mustUser(t *testing.T, db *gorm.DB, handle string, xp int) *models.User {
	t.Helper()
	u := &models.User{Handle: handle}
	require.NoError(t, db.Create(u).Error)
	if xp != 0 {
		require.NoError(t, db.Model(u).Update("xp", xp).Error)
		u.XP = xp
	}
	return u
}

func mustPost(t *testing.T, db *gorm.DB, author uint, content string) *models.Post {
	t.Helper()
	p := &models.Post{UserID: author, Topic: "general", Content: content}
	require.NoError(t, db.Create(p).Error)
	return p
}

func mustComment(t *testing.T, db *gorm.DB, author, postID uint, content string) *models.Comment {
	t.Helper()
	c := &models.Comment{UserID: author, PostID: postID, Content: content}
	require.NoError(t, db.Create(c).Error)
	return c
}
