package repository

import (
	"context"
	"errors"
	"fmt"

	"hushfeed/internal/models"

	"gorm.io/gorm"
)

// FeedRepository defines the read operations behind the feed. Counters are
// read as stored; only the ledger writes them.
type FeedRepository interface {
	ListPosts(ctx context.Context, sort string, limit, offset int) ([]models.Post, error)
	GetPost(ctx context.Context, id uint) (*models.Post, error)
	ListComments(ctx context.Context, postID uint, limit, offset int) ([]models.Comment, error)
	GetItem(ctx context.Context, ref models.ItemRef) (*models.Item, error)
	VoteStates(ctx context.Context, userID uint, kind models.ItemKind, ids []uint) (map[uint]models.VoteState, error)
}

type feedRepository struct {
	db *gorm.DB
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(db *gorm.DB) FeedRepository {
	return &feedRepository{db: db}
}

func (r *feedRepository) ListPosts(ctx context.Context, sort string, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	q := r.db.WithContext(ctx)
	switch sort {
	case models.SortTop:
		q = q.Order("(upvotes - downvotes) DESC").Order("created_at DESC")
	default:
		q = q.Order("created_at DESC")
	}
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *feedRepository) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Take(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("post", id)
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

func (r *feedRepository) ListComments(ctx context.Context, postID uint, limit, offset int) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

func (r *feedRepository) GetItem(ctx context.Context, ref models.ItemRef) (*models.Item, error) {
	switch ref.Kind {
	case models.ItemPost:
		post, err := r.GetPost(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return models.ItemFromPost(post), nil
	case models.ItemComment:
		var comment models.Comment
		if err := r.db.WithContext(ctx).Take(&comment, ref.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("comment", ref.ID)
			}
			return nil, fmt.Errorf("get comment: %w", err)
		}
		return models.ItemFromComment(&comment), nil
	}
	return nil, models.NewValidationError(fmt.Sprintf("Unknown item kind %q", ref.Kind))
}

// VoteStates returns userID's vote on each of ids. Items without a vote are
// absent from the map.
func (r *feedRepository) VoteStates(ctx context.Context, userID uint, kind models.ItemKind, ids []uint) (map[uint]models.VoteState, error) {
	states := make(map[uint]models.VoteState, len(ids))
	if userID == 0 || len(ids) == 0 {
		return states, nil
	}

	var votes []models.Vote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND item_kind = ? AND item_id IN ?", userID, kind, ids).
		Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("vote states: %w", err)
	}
	for _, v := range votes {
		states[v.ItemID] = v.Direction
	}
	return states, nil
}
