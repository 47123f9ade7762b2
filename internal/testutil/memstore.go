// Package testutil holds test doubles shared across packages.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"hushfeed/internal/models"
	"hushfeed/internal/repository"
)

type voteKey struct {
	userID uint
	ref    models.ItemRef
}

// MemStore is an in-memory repository.LedgerStore. Scopes run one at a time
// against a private copy of the data that replaces the shared state only
// when the scope function returns nil.
type MemStore struct {
	mu sync.Mutex

	users    map[uint]models.User
	posts    map[uint]models.Post
	comments map[uint]models.Comment
	votes    map[voteKey]models.Vote
	events   []models.XPEvent
	nextID   uint

	conflicts  int
	commitErr  error
	scopeCount int
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:    map[uint]models.User{},
		posts:    map[uint]models.Post{},
		comments: map[uint]models.Comment{},
		votes:    map[voteKey]models.Vote{},
		nextID:   1,
	}
}

// FailNextCommits makes the next n scopes lose their commit with a Conflict,
// as if another writer had won the race.
func (m *MemStore) FailNextCommits(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts = n
}

// FailCommitsWith makes every commit fail with err until reset with nil.
func (m *MemStore) FailCommitsWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErr = err
}

// Scopes reports how many scopes have been opened.
func (m *MemStore) Scopes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scopeCount
}

// Atomically implements repository.LedgerStore.
func (m *MemStore) Atomically(ctx context.Context, fn func(ctx context.Context, s repository.Scope) error) error {
	if err := ctx.Err(); err != nil {
		return models.NewInternalError(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopeCount++

	scope := m.snapshot()
	if err := fn(ctx, scope); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}

	if m.conflicts > 0 {
		m.conflicts--
		return models.NewConflictError("Concurrent update, try again", nil)
	}
	if m.commitErr != nil {
		return m.commitErr
	}

	m.users, m.posts, m.comments, m.votes = scope.users, scope.posts, scope.comments, scope.votes
	m.events = scope.events
	m.nextID = scope.nextID
	return nil
}

func (m *MemStore) snapshot() *memScope {
	s := &memScope{
		users:    make(map[uint]models.User, len(m.users)),
		posts:    make(map[uint]models.Post, len(m.posts)),
		comments: make(map[uint]models.Comment, len(m.comments)),
		votes:    make(map[voteKey]models.Vote, len(m.votes)),
		events:   append([]models.XPEvent(nil), m.events...),
		nextID:   m.nextID,
	}
	for k, v := range m.users {
		s.users[k] = v
	}
	for k, v := range m.posts {
		s.posts[k] = v
	}
	for k, v := range m.comments {
		s.comments[k] = v
	}
	for k, v := range m.votes {
		s.votes[k] = v
	}
	return s
}

// AddUser inserts a user directly, bypassing the ledger.
func (m *MemStore) AddUser(handle string, xp int) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := models.User{ID: m.nextID, Handle: handle, XP: xp, CreatedAt: time.Now()}
	m.nextID++
	m.users[u.ID] = u
	return u
}

// AddPost inserts a post directly, bypassing the ledger.
func (m *MemStore) AddPost(authorID uint, content string) models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := models.Post{ID: m.nextID, UserID: authorID, Content: content, CreatedAt: time.Now()}
	m.nextID++
	m.posts[p.ID] = p
	return p
}

// User returns the committed user.
func (m *MemStore) User(id uint) (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok
}

// Post returns the committed post.
func (m *MemStore) Post(id uint) (models.Post, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	return p, ok
}

// Comment returns the committed comment.
func (m *MemStore) Comment(id uint) (models.Comment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	return c, ok
}

// Votes returns the committed votes on ref.
func (m *MemStore) Votes(ref models.ItemRef) []models.Vote {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Vote
	for k, v := range m.votes {
		if k.ref == ref {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Events returns the committed XP events of userID, oldest first.
func (m *MemStore) Events(userID uint) []models.XPEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.XPEvent
	for _, e := range m.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// CommentCount returns the number of committed comments on postID.
func (m *MemStore) CommentCount(postID uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.comments {
		if c.PostID == postID {
			n++
		}
	}
	return n
}

type memScope struct {
	users    map[uint]models.User
	posts    map[uint]models.Post
	comments map[uint]models.Comment
	votes    map[voteKey]models.Vote
	events   []models.XPEvent
	nextID   uint
}

func (s *memScope) GetItem(_ context.Context, ref models.ItemRef) (*models.Item, error) {
	switch ref.Kind {
	case models.ItemPost:
		p, ok := s.posts[ref.ID]
		if !ok {
			return nil, models.NewNotFoundError("post", ref.ID)
		}
		return models.ItemFromPost(&p), nil
	case models.ItemComment:
		c, ok := s.comments[ref.ID]
		if !ok {
			return nil, models.NewNotFoundError("comment", ref.ID)
		}
		return models.ItemFromComment(&c), nil
	}
	return nil, models.NewValidationError("unknown item kind")
}

func (s *memScope) GetVote(_ context.Context, userID uint, ref models.ItemRef) (*models.Vote, error) {
	v, ok := s.votes[voteKey{userID, ref}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *memScope) GetUser(_ context.Context, userID uint) (*models.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, models.NewNotFoundError("user", userID)
	}
	return &u, nil
}

func (s *memScope) SetItemCounters(_ context.Context, item *models.Item) error {
	switch item.Ref.Kind {
	case models.ItemPost:
		p, ok := s.posts[item.Ref.ID]
		if !ok {
			return models.NewNotFoundError("post", item.Ref.ID)
		}
		p.Upvotes, p.Downvotes, p.CommentCount = item.Upvotes, item.Downvotes, item.CommentCount
		s.posts[p.ID] = p
	case models.ItemComment:
		c, ok := s.comments[item.Ref.ID]
		if !ok {
			return models.NewNotFoundError("comment", item.Ref.ID)
		}
		c.Upvotes, c.Downvotes = item.Upvotes, item.Downvotes
		s.comments[c.ID] = c
	default:
		return models.NewValidationError("unknown item kind")
	}
	return nil
}

func (s *memScope) PutVote(_ context.Context, vote *models.Vote) error {
	key := voteKey{vote.UserID, vote.Ref()}
	now := time.Now()
	if prev, ok := s.votes[key]; ok {
		vote.CreatedAt = prev.CreatedAt
	} else {
		vote.CreatedAt = now
	}
	vote.UpdatedAt = now
	s.votes[key] = *vote
	return nil
}

func (s *memScope) DeleteVote(_ context.Context, userID uint, ref models.ItemRef) error {
	delete(s.votes, voteKey{userID, ref})
	return nil
}

func (s *memScope) SetUserXP(_ context.Context, userID uint, xp int) error {
	u, ok := s.users[userID]
	if !ok {
		return models.NewNotFoundError("user", userID)
	}
	u.XP = xp
	s.users[userID] = u
	return nil
}

func (s *memScope) InsertPost(_ context.Context, post *models.Post) error {
	post.ID = s.nextID
	s.nextID++
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	s.posts[post.ID] = *post
	return nil
}

func (s *memScope) InsertComment(_ context.Context, comment *models.Comment) error {
	comment.ID = s.nextID
	s.nextID++
	comment.CreatedAt = time.Now()
	comment.UpdatedAt = comment.CreatedAt
	s.comments[comment.ID] = *comment
	return nil
}

func (s *memScope) AppendXPEvent(_ context.Context, event *models.XPEvent) error {
	event.ID = uint(len(s.events) + 1)
	event.CreatedAt = time.Now()
	s.events = append(s.events, *event)
	return nil
}
