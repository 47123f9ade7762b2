// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"

	"hushfeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope is one atomic unit of reads and writes over items, votes and users.
// Reads of items and users lock the row until the scope ends, so every
// write in the scope is based on values no other scope can change
// concurrently. Locks are taken item first, then user.
type Scope interface {
	// GetItem locks and returns the item, or a NotFound AppError.
	GetItem(ctx context.Context, ref models.ItemRef) (*models.Item, error)
	// GetVote returns the user's vote on ref, or nil when there is none.
	GetVote(ctx context.Context, userID uint, ref models.ItemRef) (*models.Vote, error)
	// GetUser locks and returns the user, or a NotFound AppError.
	GetUser(ctx context.Context, userID uint) (*models.User, error)

	SetItemCounters(ctx context.Context, item *models.Item) error
	PutVote(ctx context.Context, vote *models.Vote) error
	DeleteVote(ctx context.Context, userID uint, ref models.ItemRef) error
	SetUserXP(ctx context.Context, userID uint, xp int) error
	InsertPost(ctx context.Context, post *models.Post) error
	InsertComment(ctx context.Context, comment *models.Comment) error
	AppendXPEvent(ctx context.Context, event *models.XPEvent) error
}

// LedgerStore runs functions inside atomic scopes. If fn returns an error
// nothing it wrote is kept. Errors come back classified as AppErrors so
// callers can tell conflicts from permanent failures.
type LedgerStore interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, s Scope) error) error
}

// gormStore implements LedgerStore on a gorm transaction per scope.
type gormStore struct {
	db *gorm.DB
}

// NewLedgerStore creates a LedgerStore backed by db.
func NewLedgerStore(db *gorm.DB) LedgerStore {
	return &gormStore{db: db}
}

func (s *gormStore) Atomically(ctx context.Context, fn func(ctx context.Context, s Scope) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormScope{tx: tx})
	})
	return classify(err)
}

type gormScope struct {
	tx *gorm.DB
}

func (s *gormScope) locked() *gorm.DB {
	// The sqlite dialect drops FOR UPDATE; its single writer serialises scopes.
	return s.tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (s *gormScope) GetItem(_ context.Context, ref models.ItemRef) (*models.Item, error) {
	switch ref.Kind {
	case models.ItemPost:
		var post models.Post
		if err := s.locked().Take(&post, ref.ID).Error; err != nil {
			return nil, notFoundOr(err, "post", ref.ID)
		}
		return models.ItemFromPost(&post), nil
	case models.ItemComment:
		var comment models.Comment
		if err := s.locked().Take(&comment, ref.ID).Error; err != nil {
			return nil, notFoundOr(err, "comment", ref.ID)
		}
		return models.ItemFromComment(&comment), nil
	}
	return nil, models.NewValidationError(fmt.Sprintf("Unknown item kind %q", ref.Kind))
}

func (s *gormScope) GetVote(_ context.Context, userID uint, ref models.ItemRef) (*models.Vote, error) {
	var vote models.Vote
	err := s.tx.
		Where("user_id = ? AND item_kind = ? AND item_id = ?", userID, ref.Kind, ref.ID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vote: %w", err)
	}
	return &vote, nil
}

func (s *gormScope) GetUser(_ context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.locked().Take(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "user", userID)
	}
	return &user, nil
}

func (s *gormScope) SetItemCounters(_ context.Context, item *models.Item) error {
	var res *gorm.DB
	switch item.Ref.Kind {
	case models.ItemPost:
		res = s.tx.Model(&models.Post{}).Where("id = ?", item.Ref.ID).Updates(map[string]interface{}{
			"upvotes":       item.Upvotes,
			"downvotes":     item.Downvotes,
			"comment_count": item.CommentCount,
		})
	case models.ItemComment:
		res = s.tx.Model(&models.Comment{}).Where("id = ?", item.Ref.ID).Updates(map[string]interface{}{
			"upvotes":   item.Upvotes,
			"downvotes": item.Downvotes,
		})
	default:
		return models.NewValidationError(fmt.Sprintf("Unknown item kind %q", item.Ref.Kind))
	}
	if res.Error != nil {
		return fmt.Errorf("set counters on %s: %w", item.Ref, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(string(item.Ref.Kind), item.Ref.ID)
	}
	return nil
}

func (s *gormScope) PutVote(_ context.Context, vote *models.Vote) error {
	err := s.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_kind"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
	}).Create(vote).Error
	if err != nil {
		return fmt.Errorf("put vote: %w", err)
	}
	return nil
}

func (s *gormScope) DeleteVote(_ context.Context, userID uint, ref models.ItemRef) error {
	err := s.tx.
		Where("user_id = ? AND item_kind = ? AND item_id = ?", userID, ref.Kind, ref.ID).
		Delete(&models.Vote{}).Error
	if err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	return nil
}

func (s *gormScope) SetUserXP(_ context.Context, userID uint, xp int) error {
	res := s.tx.Model(&models.User{}).Where("id = ?", userID).Update("xp", xp)
	if res.Error != nil {
		return fmt.Errorf("set xp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("user", userID)
	}
	return nil
}

func (s *gormScope) InsertPost(_ context.Context, post *models.Post) error {
	if err := s.tx.Create(post).Error; err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *gormScope) InsertComment(_ context.Context, comment *models.Comment) error {
	if err := s.tx.Create(comment).Error; err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *gormScope) AppendXPEvent(_ context.Context, event *models.XPEvent) error {
	if err := s.tx.Create(event).Error; err != nil {
		return fmt.Errorf("append xp event: %w", err)
	}
	return nil
}

func notFoundOr(err error, resource string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return fmt.Errorf("get %s %d: %w", resource, id, err)
}
