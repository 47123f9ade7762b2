package ledger

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"hushfeed/internal/models"
	"hushfeed/internal/observability"
	"hushfeed/internal/repository"
	"hushfeed/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Content limits.
const (
	MaxPostLength    = 2000
	MaxCommentLength = 1000
	MaxTopicLength   = validation.MaxTopicLength
)

// PostInput is the caller-supplied part of a new post.
type PostInput struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

// PostResult is a committed post and its author's new balance.
type PostResult struct {
	Post        models.Post  `json:"post"`
	AuthorXP    int          `json:"author_xp"`
	AuthorBadge models.Badge `json:"author_badge"`
}

// CommentResult is a committed comment, the parent's new comment count and
// the author's new balance.
type CommentResult struct {
	Comment          models.Comment `json:"comment"`
	PostCommentCount int            `json:"post_comment_count"`
	AuthorXP         int            `json:"author_xp"`
	AuthorBadge      models.Badge   `json:"author_badge"`
}

func cleanText(raw string, max int, field string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", models.NewValidationError(field + " is required")
	}
	if utf8.RuneCountInString(text) > max {
		return "", models.NewValidationError(field + " is too long")
	}
	return text, nil
}

// CreatePost inserts a post and grants the author PostXP in one scope.
func (l *Ledger) CreatePost(ctx context.Context, authorID uint, in PostInput) (*PostResult, error) {
	if authorID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to post")
	}
	content, err := cleanText(in.Content, MaxPostLength, "Content")
	if err != nil {
		return nil, err
	}
	topic, err := validation.NormalizeTopic(in.Topic)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.NewSpan(ctx, "ledger."+OpCreatePost)
	defer span.End()
	defer l.metrics.TrackOperation(OpCreatePost)()

	start := time.Now()
	var result *PostResult
	attempts, err := l.atomically(ctx, OpCreatePost, func(ctx context.Context, s repository.Scope) error {
		author, err := s.GetUser(ctx, authorID)
		if err != nil {
			return err
		}

		post := &models.Post{UserID: authorID, Topic: topic, Content: content}
		if err := s.InsertPost(ctx, post); err != nil {
			return err
		}
		if err := l.grant(ctx, s, author, l.policy.PostXP, models.XPReasonPostCreated, post.Ref()); err != nil {
			return err
		}

		result = &PostResult{Post: *post, AuthorXP: author.XP, AuthorBadge: models.BadgeFor(author.XP)}
		return nil
	})
	if err != nil {
		return nil, l.fail(ctx, span, OpCreatePost, attempts, err)
	}

	span.AddAttributes(attribute.Int("post.id", int(result.Post.ID)))
	l.metrics.RecordXP(models.XPReasonPostCreated, l.policy.PostXP)
	l.log.LogCommit(ctx, OpCreatePost, attempts, time.Since(start), map[string]interface{}{
		"item": result.Post.Ref().String(),
	})
	return result, nil
}

// CreateComment inserts a comment on postID, bumps the post's comment count
// and grants the author CommentXP in one scope.
func (l *Ledger) CreateComment(ctx context.Context, authorID, postID uint, content string) (*CommentResult, error) {
	if authorID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to comment")
	}
	if postID == 0 {
		return nil, models.NewValidationError("Post id is required")
	}
	text, err := cleanText(content, MaxCommentLength, "Content")
	if err != nil {
		return nil, err
	}

	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.NewSpan(ctx, "ledger."+OpCreateComment)
	defer span.End()
	span.AddAttributes(attribute.Int("post.id", int(postID)))
	defer l.metrics.TrackOperation(OpCreateComment)()

	ref := models.ItemRef{Kind: models.ItemPost, ID: postID}
	start := time.Now()
	var (
		result *CommentResult
		parent models.Item
	)
	attempts, err := l.atomically(ctx, OpCreateComment, func(ctx context.Context, s repository.Scope) error {
		post, err := s.GetItem(ctx, ref)
		if err != nil {
			return err
		}
		author, err := s.GetUser(ctx, authorID)
		if err != nil {
			return err
		}

		comment := &models.Comment{PostID: postID, UserID: authorID, Content: text}
		if err := s.InsertComment(ctx, comment); err != nil {
			return err
		}
		post.CommentCount++
		if err := s.SetItemCounters(ctx, post); err != nil {
			return err
		}
		if err := l.grant(ctx, s, author, l.policy.CommentXP, models.XPReasonCommentCreated, comment.Ref()); err != nil {
			return err
		}

		parent = *post
		result = &CommentResult{
			Comment:          *comment,
			PostCommentCount: post.CommentCount,
			AuthorXP:         author.XP,
			AuthorBadge:      models.BadgeFor(author.XP),
		}
		return nil
	})
	if err != nil {
		return nil, l.fail(ctx, span, OpCreateComment, attempts, err)
	}

	l.metrics.RecordXP(models.XPReasonCommentCreated, l.policy.CommentXP)
	l.log.LogCommit(ctx, OpCreateComment, attempts, time.Since(start), map[string]interface{}{
		"item":   result.Comment.Ref().String(),
		"parent": ref.String(),
	})

	count := result.PostCommentCount
	l.publish(ctx, models.CounterEvent{
		Item:         ref,
		Upvotes:      parent.Upvotes,
		Downvotes:    parent.Downvotes,
		CommentCount: &count,
	})
	return result, nil
}

// grant adds delta to author's balance and logs it against ref.
func (l *Ledger) grant(ctx context.Context, s repository.Scope, author *models.User, delta int, reason string, ref models.ItemRef) error {
	if delta == 0 {
		return nil
	}
	author.XP += delta
	if err := s.SetUserXP(ctx, author.ID, author.XP); err != nil {
		return err
	}
	return s.AppendXPEvent(ctx, &models.XPEvent{
		UserID:       author.ID,
		Delta:        delta,
		BalanceAfter: author.XP,
		Reason:       reason,
		ItemKind:     ref.Kind,
		ItemID:       ref.ID,
		ActorID:      author.ID,
	})
}
