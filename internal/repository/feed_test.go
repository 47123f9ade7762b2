package repository

import (
	"context"
	"testing"

	"hushfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedRepository_ListPosts(t *testing.T) {
	db := setupSQLite(t)
	repo := NewFeedRepository(db)
	ctx := context.Background()

	author := mustUser(t, db, "author", 0)
	older := mustPost(t, db, author.ID, "older")
	newer := mustPost(t, db, author.ID, "newer")
	require.NoError(t, db.Model(older).Update("upvotes", 5).Error)

	posts, err := repo.ListPosts(ctx, models.SortNew, 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, newer.ID, posts[0].ID)

	posts, err = repo.ListPosts(ctx, models.SortTop, 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, older.ID, posts[0].ID)

	posts, err = repo.ListPosts(ctx, models.SortNew, 1, 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, older.ID, posts[0].ID)
}

func TestFeedRepository_GetItem(t *testing.T) {
	db := setupSQLite(t)
	repo := NewFeedRepository(db)
	ctx := context.Background()

	author := mustUser(t, db, "author", 0)
	post := mustPost(t, db, author.ID, "p")
	comment := mustComment(t, db, author.ID, post.ID, "c")

	item, err := repo.GetItem(ctx, post.Ref())
	require.NoError(t, err)
	assert.Equal(t, author.ID, item.AuthorID)

	item, err = repo.GetItem(ctx, comment.Ref())
	require.NoError(t, err)
	assert.Equal(t, models.ItemComment, item.Ref.Kind)

	_, err = repo.GetItem(ctx, models.ItemRef{Kind: models.ItemComment, ID: 404})
	assert.True(t, models.IsNotFound(err))

	_, err = repo.GetPost(ctx, 404)
	assert.True(t, models.IsNotFound(err))
}

func TestFeedRepository_CommentsAndVoteStates(t *testing.T) {
	db := setupSQLite(t)
	repo := NewFeedRepository(db)
	ctx := context.Background()

	author := mustUser(t, db, "author", 0)
	viewer := mustUser(t, db, "viewer", 0)
	post := mustPost(t, db, author.ID, "p")
	first := mustComment(t, db, author.ID, post.ID, "first")
	second := mustComment(t, db, viewer.ID, post.ID, "second")

	comments, err := repo.ListComments(ctx, post.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, first.ID, comments[0].ID)

	require.NoError(t, db.Create(&models.Vote{UserID: viewer.ID, ItemKind: models.ItemComment, ItemID: first.ID, Direction: models.VoteDown}).Error)
	require.NoError(t, db.Create(&models.Vote{UserID: viewer.ID, ItemKind: models.ItemPost, ItemID: first.ID, Direction: models.VoteUp}).Error)

	states, err := repo.VoteStates(ctx, viewer.ID, models.ItemComment, []uint{first.ID, second.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uint]models.VoteState{first.ID: models.VoteDown}, states)

	states, err = repo.VoteStates(ctx, 0, models.ItemComment, []uint{first.ID})
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestUserRepository(t *testing.T) {
	db := setupSQLite(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{Handle: "quiet-fox", XP: 999}
	require.NoError(t, repo.Create(ctx, u))
	assert.Zero(t, u.XP, "accounts start at zero xp")

	err := repo.Create(ctx, &models.User{Handle: "quiet-fox"})
	assert.True(t, models.IsConflict(err), "duplicate handle: %v", err)

	mustUser(t, db, "rich", 300)
	mustUser(t, db, "mid", 40)

	top, err := repo.TopByXP(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "rich", top[0].Handle)
	assert.Equal(t, "mid", top[1].Handle)

	_, err = repo.GetByID(ctx, 404)
	assert.True(t, models.IsNotFound(err))

	require.NoError(t, db.Create(&models.XPEvent{UserID: u.ID, Delta: 10, BalanceAfter: 10, Reason: models.XPReasonPostCreated}).Error)
	require.NoError(t, db.Create(&models.XPEvent{UserID: u.ID, Delta: 2, BalanceAfter: 12, Reason: models.XPReasonVote}).Error)

	events, err := repo.ListXPEvents(ctx, u.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 12, events[0].BalanceAfter, "newest first")
}
