package repository

import (
	"context"
	"database/sql"
	"fmt"

	"hushfeed/internal/models"

	"gorm.io/gorm"
)

// AuditRepository compares stored counters with the rows they summarise.
// It only reads.
type AuditRepository interface {
	Drift(ctx context.Context) ([]models.CounterDrift, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

type counterRow struct {
	ID               uint
	Upvotes          int
	LiveUpvotes      int
	Downvotes        int
	LiveDownvotes    int
	CommentCount     int
	LiveCommentCount int
}

const postCountersSQL = `
SELECT p.id, p.upvotes, p.downvotes, p.comment_count,
  (SELECT COUNT(*) FROM votes v WHERE v.item_kind = 'post' AND v.item_id = p.id AND v.direction = 'up') AS live_upvotes,
  (SELECT COUNT(*) FROM votes v WHERE v.item_kind = 'post' AND v.item_id = p.id AND v.direction = 'down') AS live_downvotes,
  (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS live_comment_count
FROM posts p
ORDER BY p.id`

const commentCountersSQL = `
SELECT c.id, c.upvotes, c.downvotes,
  (SELECT COUNT(*) FROM votes v WHERE v.item_kind = 'comment' AND v.item_id = c.id AND v.direction = 'up') AS live_upvotes,
  (SELECT COUNT(*) FROM votes v WHERE v.item_kind = 'comment' AND v.item_id = c.id AND v.direction = 'down') AS live_downvotes
FROM comments c
ORDER BY c.id`

// auditTxOptions makes both audit queries read one snapshot on postgres.
// sqlite transactions already read a single snapshot and ignore them.
var auditTxOptions = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// Drift returns every item whose counters disagree with its live votes or
// comments.
func (r *auditRepository) Drift(ctx context.Context) ([]models.CounterDrift, error) {
	var drift []models.CounterDrift
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var posts []counterRow
		if err := tx.Raw(postCountersSQL).Scan(&posts).Error; err != nil {
			return fmt.Errorf("audit posts: %w", err)
		}
		drift = appendDrift(drift, models.ItemPost, posts)

		var comments []counterRow
		if err := tx.Raw(commentCountersSQL).Scan(&comments).Error; err != nil {
			return fmt.Errorf("audit comments: %w", err)
		}
		drift = appendDrift(drift, models.ItemComment, comments)
		return nil
	}, auditTxOptions)
	if err != nil {
		return nil, err
	}
	return drift, nil
}

func appendDrift(drift []models.CounterDrift, kind models.ItemKind, rows []counterRow) []models.CounterDrift {
	for _, row := range rows {
		if kind == models.ItemComment {
			row.LiveCommentCount = row.CommentCount
		}
		if row.Upvotes == row.LiveUpvotes &&
			row.Downvotes == row.LiveDownvotes &&
			row.CommentCount == row.LiveCommentCount {
			continue
		}
		drift = append(drift, models.CounterDrift{
			Ref:              models.ItemRef{Kind: kind, ID: row.ID},
			Upvotes:          row.Upvotes,
			LiveUpvotes:      row.LiveUpvotes,
			Downvotes:        row.Downvotes,
			LiveDownvotes:    row.LiveDownvotes,
			CommentCount:     row.CommentCount,
			LiveCommentCount: row.LiveCommentCount,
		})
	}
	return drift
}
