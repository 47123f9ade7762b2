package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"hushfeed/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerStore_VoteLifecycle(t *testing.T) {
	db := setupSQLite(t)
	store := NewLedgerStore(db)
	ctx := context.Background()

	author := mustUser(t, db, "author", 0)
	voter := mustUser(t, db, "voter", 0)
	post := mustPost(t, db, author.ID, "hello")
	ref := post.Ref()

	err := store.Atomically(ctx, func(ctx context.Context, s Scope) error {
		item, err := s.GetItem(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, author.ID, item.AuthorID)

		vote, err := s.GetVote(ctx, voter.ID, ref)
		require.NoError(t, err)
		assert.Nil(t, vote)

		require.NoError(t, s.PutVote(ctx, &models.Vote{UserID: voter.ID, ItemKind: ref.Kind, ItemID: ref.ID, Direction: models.VoteUp}))
		item.Upvotes = 1
		return s.SetItemCounters(ctx, item)
	})
	require.NoError(t, err)

	// Switching rewrites the same row.
	err = store.Atomically(ctx, func(ctx context.Context, s Scope) error {
		vote, err := s.GetVote(ctx, voter.ID, ref)
		require.NoError(t, err)
		require.NotNil(t, vote)
		assert.Equal(t, models.VoteUp, vote.Direction)
		vote.Direction = models.VoteDown
		return s.PutVote(ctx, vote)
	})
	require.NoError(t, err)

	var votes []models.Vote
	require.NoError(t, db.Find(&votes).Error)
	require.Len(t, votes, 1)
	assert.Equal(t, models.VoteDown, votes[0].Direction)

	err = store.Atomically(ctx, func(ctx context.Context, s Scope) error {
		return s.DeleteVote(ctx, voter.ID, ref)
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Vote{}).Count(&count).Error)
	assert.Zero(t, count)

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, 1, stored.Upvotes)
}

func TestLedgerStore_RollsBackOnError(t *testing.T) {
	db := setupSQLite(t)
	store := NewLedgerStore(db)
	ctx := context.Background()

	author := mustUser(t, db, "author", 7)

	err := store.Atomically(ctx, func(ctx context.Context, s Scope) error {
		require.NoError(t, s.InsertPost(ctx, &models.Post{UserID: author.ID, Content: "draft"}))
		require.NoError(t, s.SetUserXP(ctx, author.ID, 17))
		require.NoError(t, s.AppendXPEvent(ctx, &models.XPEvent{UserID: author.ID, Delta: 10, BalanceAfter: 17, Reason: models.XPReasonPostCreated}))
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeInternal))

	var posts, events int64
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.XPEvent{}).Count(&events).Error)
	assert.Zero(t, posts)
	assert.Zero(t, events)

	var user models.User
	require.NoError(t, db.First(&user, author.ID).Error)
	assert.Equal(t, 7, user.XP)
}

func TestLedgerStore_NotFound(t *testing.T) {
	db := setupSQLite(t)
	store := NewLedgerStore(db)
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func(ctx context.Context, s Scope) error
		code string
	}{
		{"missing post", func(ctx context.Context, s Scope) error {
			_, err := s.GetItem(ctx, models.ItemRef{Kind: models.ItemPost, ID: 99})
			return err
		}, models.CodeNotFound},
		{"missing comment", func(ctx context.Context, s Scope) error {
			_, err := s.GetItem(ctx, models.ItemRef{Kind: models.ItemComment, ID: 99})
			return err
		}, models.CodeNotFound},
		{"missing user", func(ctx context.Context, s Scope) error {
			_, err := s.GetUser(ctx, 99)
			return err
		}, models.CodeNotFound},
		{"counters on missing item", func(ctx context.Context, s Scope) error {
			return s.SetItemCounters(ctx, &models.Item{Ref: models.ItemRef{Kind: models.ItemPost, ID: 99}})
		}, models.CodeNotFound},
		{"xp on missing user", func(ctx context.Context, s Scope) error {
			return s.SetUserXP(ctx, 99, 10)
		}, models.CodeNotFound},
		{"unknown kind", func(ctx context.Context, s Scope) error {
			_, err := s.GetItem(ctx, models.ItemRef{Kind: "poll", ID: 1})
			return err
		}, models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Atomically(ctx, tt.fn)
			assert.True(t, models.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLedgerStore_PostgresLocksRows(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewLedgerStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts"`) + `.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "upvotes", "downvotes", "comment_count"}).
			AddRow(1, 10, 3, 1, 2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`) + `.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "handle", "xp"}).AddRow(10, "author", 40))
	mock.ExpectCommit()

	err := store.Atomically(context.Background(), func(ctx context.Context, s Scope) error {
		item, err := s.GetItem(ctx, models.ItemRef{Kind: models.ItemPost, ID: 1})
		if err != nil {
			return err
		}
		assert.Equal(t, 3, item.Upvotes)
		assert.Equal(t, 2, item.CommentCount)
		user, err := s.GetUser(ctx, item.AuthorID)
		if err != nil {
			return err
		}
		assert.Equal(t, 40, user.XP)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_PostgresErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"serialization failure", "40001", models.CodeConflict},
		{"deadlock", "40P01", models.CodeConflict},
		{"insufficient privilege", "42501", models.CodePermissionDenied},
		{"check violation", "23514", models.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			store := NewLedgerStore(db)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "xp"=`)).
				WillReturnError(&pgconn.PgError{Code: tt.code, Message: tt.name})
			mock.ExpectRollback()

			err := store.Atomically(context.Background(), func(ctx context.Context, s Scope) error {
				return s.SetUserXP(ctx, 1, 12)
			})
			assert.True(t, models.HasCode(err, tt.want), "got %v", err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLedgerStore_PostgresUpsertsVote(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewLedgerStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "votes"`) + `.*ON CONFLICT.*DO UPDATE SET.*` +
		regexp.QuoteMeta(`"direction"="excluded"."direction"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Atomically(context.Background(), func(ctx context.Context, s Scope) error {
		return s.PutVote(ctx, &models.Vote{UserID: 2, ItemKind: models.ItemPost, ItemID: 1, Direction: models.VoteUp})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
