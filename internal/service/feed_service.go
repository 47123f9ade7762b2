// Package service holds the read side: feed, threads, profiles and the
// leaderboard. Every write goes through the ledger instead.
package service

import (
	"context"
	"fmt"

	"hushfeed/internal/anon"
	"hushfeed/internal/models"
	"hushfeed/internal/repository"
)

// Paging bounds for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type FeedService struct {
	feed  repository.FeedRepository
	namer *anon.Namer
}

type ListPostsInput struct {
	Sort     string
	Limit    int
	Offset   int
	ViewerID uint
}

// ItemState is one viewer's stance on an item together with its counters.
type ItemState struct {
	Item         models.ItemRef   `json:"item"`
	State        models.VoteState `json:"state"`
	Upvotes      int              `json:"upvotes"`
	Downvotes    int              `json:"downvotes"`
	CommentCount *int             `json:"comment_count,omitempty"`
}

func NewFeedService(feed repository.FeedRepository, namer *anon.Namer) *FeedService {
	return &FeedService{feed: feed, namer: namer}
}

// Page clamps a requested limit and offset.
func Page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *FeedService) ListPosts(ctx context.Context, in ListPostsInput) ([]models.PostView, error) {
	switch in.Sort {
	case "":
		in.Sort = models.SortNew
	case models.SortNew, models.SortTop:
	default:
		return nil, models.NewValidationError(fmt.Sprintf("Unknown sort %q, use new or top", in.Sort))
	}
	limit, offset := Page(in.Limit, in.Offset)

	posts, err := s.feed.ListPosts(ctx, in.Sort, limit, offset)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	states, err := s.feed.VoteStates(ctx, in.ViewerID, models.ItemPost, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.PostView, len(posts))
	for i := range posts {
		views[i] = s.postView(&posts[i], in.ViewerID, states)
	}
	return views, nil
}

func (s *FeedService) GetPost(ctx context.Context, id, viewerID uint) (*models.PostView, error) {
	post, err := s.feed.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	states, err := s.feed.VoteStates(ctx, viewerID, models.ItemPost, []uint{id})
	if err != nil {
		return nil, err
	}
	view := s.postView(post, viewerID, states)
	return &view, nil
}

// ListComments returns a thread's comments oldest first. Aliases match the
// ones used on the post, so the author of the post is recognisable.
func (s *FeedService) ListComments(ctx context.Context, postID, viewerID uint, limit, offset int) ([]models.CommentView, error) {
	if _, err := s.feed.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	limit, offset = Page(limit, offset)

	comments, err := s.feed.ListComments(ctx, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(comments))
	for i := range comments {
		ids[i] = comments[i].ID
	}
	states, err := s.feed.VoteStates(ctx, viewerID, models.ItemComment, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.CommentView, len(comments))
	for i := range comments {
		c := &comments[i]
		views[i] = models.CommentView{
			ID:         c.ID,
			PostID:     c.PostID,
			Content:    c.Content,
			Alias:      s.namer.Alias(c.PostID, c.UserID),
			Upvotes:    c.Upvotes,
			Downvotes:  c.Downvotes,
			ViewerVote: stateOf(states, c.ID),
			Mine:       viewerID != 0 && viewerID == c.UserID,
			CreatedAt:  c.CreatedAt,
		}
	}
	return views, nil
}

// VoteState reads viewerID's current vote on ref and the item's counters.
func (s *FeedService) VoteState(ctx context.Context, ref models.ItemRef, viewerID uint) (*ItemState, error) {
	item, err := s.feed.GetItem(ctx, ref)
	if err != nil {
		return nil, err
	}
	states, err := s.feed.VoteStates(ctx, viewerID, ref.Kind, []uint{ref.ID})
	if err != nil {
		return nil, err
	}
	out := &ItemState{
		Item:      ref,
		State:     stateOf(states, ref.ID),
		Upvotes:   item.Upvotes,
		Downvotes: item.Downvotes,
	}
	if ref.Kind == models.ItemPost {
		count := item.CommentCount
		out.CommentCount = &count
	}
	return out, nil
}

func (s *FeedService) postView(p *models.Post, viewerID uint, states map[uint]models.VoteState) models.PostView {
	return models.PostView{
		ID:           p.ID,
		Topic:        p.Topic,
		Content:      p.Content,
		Alias:        s.namer.Alias(p.ID, p.UserID),
		Upvotes:      p.Upvotes,
		Downvotes:    p.Downvotes,
		CommentCount: p.CommentCount,
		ViewerVote:   stateOf(states, p.ID),
		Mine:         viewerID != 0 && viewerID == p.UserID,
		CreatedAt:    p.CreatedAt,
	}
}

func stateOf(states map[uint]models.VoteState, id uint) models.VoteState {
	if st, ok := states[id]; ok {
		return st
	}
	return models.VoteNone
}
