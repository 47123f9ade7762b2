package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hushfeed/internal/config"
	"hushfeed/internal/models"
	"hushfeed/internal/repository"
	"hushfeed/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

type harness struct {
	t   *testing.T
	app *fiber.App
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                   "0",
		Env:                    "test",
		JWTSecret:              testSecret,
		AnonSecret:             "anon",
		FeatureFlags:           "leaderboard=on,realtime_counters=on,canary=50%",
		LedgerMaxAttempts:      3,
		LedgerBackoffInitialMS: 1,
		LedgerBackoffMaxMS:     2,
		XPUpvote:               2,
		XPDownvote:             0,
		XPPost:                 10,
		XPComment:              5,
		VoteRateLimitPerMinute: 120,
	}
}

func newHarness(t *testing.T) (*harness, repository.UserRepository) {
	t.Helper()
	return newHarnessWith(t, testConfig())
}

func newHarnessWith(t *testing.T, cfg *config.Config) (*harness, repository.UserRepository) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	return &harness{t: t, app: srv.NewApp()}, repository.NewUserRepository(db)
}

func token(t *testing.T, userID uint) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": fmt.Sprintf("%d", userID),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(method, path string, userID uint, body any) (int, []byte) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+token(h.t, userID))
	}
	resp, err := h.app.Test(req, 5000)
	require.NoError(h.t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func mkUsers(t *testing.T, users repository.UserRepository, handles ...string) []uint {
	t.Helper()
	ids := make([]uint, len(handles))
	for i, h := range handles {
		u := &models.User{Handle: h}
		require.NoError(t, users.Create(context.Background(), u))
		ids[i] = u.ID
	}
	return ids
}

func TestHealthAndMetrics(t *testing.T) {
	h, users := newHarness(t)
	ids := mkUsers(t, users, "a")

	status, body := h.do(http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, status)
	health := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "unavailable", health["checks"].(map[string]any)["redis"])

	status, _ = h.do(http.MethodPost, "/api/posts", ids[0], map[string]string{"content": "P"})
	require.Equal(t, http.StatusCreated, status)

	status, body = h.do(http.MethodGet, "/metrics", 0, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "hushfeed_ledger_latency_seconds")
	assert.Contains(t, string(body), `hushfeed_xp_delta_total{reason="post_created",sign="positive"}`)
}

func TestScenarioOverHTTP(t *testing.T) {
	h, users := newHarness(t)
	ids := mkUsers(t, users, "a", "b", "c")
	a, b, c := ids[0], ids[1], ids[2]

	status, body := h.do(http.MethodPost, "/api/posts", a, map[string]string{"content": "P", "topic": "night"})
	require.Equal(t, http.StatusCreated, status, string(body))
	created := decode[struct {
		Post     models.Post `json:"post"`
		AuthorXP int         `json:"author_xp"`
	}](t, body)
	assert.Equal(t, 10, created.AuthorXP)
	votePath := fmt.Sprintf("/api/items/post/%d/vote", created.Post.ID)

	status, body = h.do(http.MethodPost, votePath, b, map[string]string{"direction": "up"})
	require.Equal(t, http.StatusOK, status, string(body))
	res := decode[models.VoteResult](t, body)
	assert.Equal(t, models.VoteUp, res.State)
	assert.Equal(t, 1, res.Upvotes)
	assert.Equal(t, 12, res.AuthorXP)

	status, body = h.do(http.MethodPost, votePath, b, map[string]string{"direction": "up"})
	require.Equal(t, http.StatusOK, status)
	res = decode[models.VoteResult](t, body)
	assert.Equal(t, models.VoteNone, res.State)
	assert.Equal(t, 0, res.Upvotes)
	assert.Equal(t, 10, res.AuthorXP)

	status, body = h.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", created.Post.ID), c, map[string]string{"content": "C"})
	require.Equal(t, http.StatusCreated, status, string(body))
	comment := decode[struct {
		PostCommentCount int `json:"post_comment_count"`
		AuthorXP         int `json:"author_xp"`
	}](t, body)
	assert.Equal(t, 1, comment.PostCommentCount)
	assert.Equal(t, 5, comment.AuthorXP)

	status, body = h.do(http.MethodGet, "/api/users/me", c, nil)
	require.Equal(t, http.StatusOK, status)
	profile := decode[models.Profile](t, body)
	assert.Equal(t, 5, profile.XP)
	assert.Equal(t, "c", profile.Handle)

	status, body = h.do(http.MethodGet, "/api/users/me/xp-events", a, nil)
	require.Equal(t, http.StatusOK, status)
	events := decode[[]models.XPEvent](t, body)
	require.Len(t, events, 3)
	assert.Equal(t, -2, events[0].Delta)

	status, body = h.do(http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", created.Post.ID), a, nil)
	require.Equal(t, http.StatusOK, status)
	comments := decode[[]models.CommentView](t, body)
	require.Len(t, comments, 1)
	assert.False(t, comments[0].Mine)
	assert.NotEmpty(t, comments[0].Alias)

	status, body = h.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", created.Post.ID), a, nil)
	require.Equal(t, http.StatusOK, status)
	post := decode[models.PostView](t, body)
	assert.True(t, post.Mine)
	assert.Equal(t, 1, post.CommentCount)
	assert.NotContains(t, string(body), `"user_id"`)
}

func TestSetVoteIsIdempotent(t *testing.T) {
	h, users := newHarness(t)
	ids := mkUsers(t, users, "a", "b")

	_, body := h.do(http.MethodPost, "/api/posts", ids[0], map[string]string{"content": "P"})
	created := decode[struct {
		Post models.Post `json:"post"`
	}](t, body)
	votePath := fmt.Sprintf("/api/items/post/%d/vote", created.Post.ID)

	for i := 0; i < 2; i++ {
		status, body := h.do(http.MethodPut, votePath, ids[1], map[string]string{"state": "down"})
		require.Equal(t, http.StatusOK, status, string(body))
		res := decode[models.VoteResult](t, body)
		assert.Equal(t, models.VoteDown, res.State)
		assert.Equal(t, 1, res.Downvotes)
	}

	status, body := h.do(http.MethodGet, votePath, ids[1], nil)
	require.Equal(t, http.StatusOK, status)
	state := decode[map[string]any](t, body)
	assert.Equal(t, "down", state["state"])
	assert.EqualValues(t, 1, state["downvotes"])

	status, body = h.do(http.MethodGet, "/api/posts?sort=top", ids[1], nil)
	require.Equal(t, http.StatusOK, status)
	feed := decode[[]models.PostView](t, body)
	require.Len(t, feed, 1)
	assert.Equal(t, models.VoteDown, feed[0].ViewerVote)
}

func TestVoteErrors(t *testing.T) {
	h, users := newHarness(t)
	ids := mkUsers(t, users, "a")

	tests := []struct {
		name   string
		method string
		path   string
		user   uint
		body   any
		status int
		code   string
	}{
		{"no token", http.MethodPost, "/api/items/post/1/vote", 0, map[string]string{"direction": "up"}, http.StatusUnauthorized, models.CodeUnauthenticated},
		{"bad kind", http.MethodPost, "/api/items/poll/1/vote", ids[0], map[string]string{"direction": "up"}, http.StatusBadRequest, models.CodeValidation},
		{"bad id", http.MethodPost, "/api/items/post/abc/vote", ids[0], map[string]string{"direction": "up"}, http.StatusBadRequest, models.CodeValidation},
		{"bad direction", http.MethodPost, "/api/items/post/1/vote", ids[0], map[string]string{"direction": "sideways"}, http.StatusBadRequest, models.CodeValidation},
		{"none is not a direction", http.MethodPost, "/api/items/post/1/vote", ids[0], map[string]string{"direction": "none"}, http.StatusBadRequest, models.CodeValidation},
		{"missing item", http.MethodPost, "/api/items/comment/42/vote", ids[0], map[string]string{"direction": "up"}, http.StatusNotFound, models.CodeNotFound},
		{"bad state", http.MethodPut, "/api/items/post/1/vote", ids[0], map[string]string{"state": "maybe"}, http.StatusBadRequest, models.CodeValidation},
		{"empty post", http.MethodPost, "/api/posts", ids[0], map[string]string{"content": "   "}, http.StatusBadRequest, models.CodeValidation},
		{"comment on missing post", http.MethodPost, "/api/posts/77/comments", ids[0], map[string]string{"content": "hi"}, http.StatusNotFound, models.CodeNotFound},
		{"unknown sort", http.MethodGet, "/api/posts?sort=hot", 0, nil, http.StatusBadRequest, models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := h.do(tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, status, string(body))
			assert.Equal(t, tt.code, decode[models.ErrorResponse](t, body).Code)
		})
	}
}

func TestLeaderboardAndFlags(t *testing.T) {
	h, users := newHarness(t)
	ids := mkUsers(t, users, "a", "b")
	h.do(http.MethodPost, "/api/posts", ids[1], map[string]string{"content": "P"})

	status, body := h.do(http.MethodGet, "/api/leaderboard?limit=1", 0, nil)
	require.Equal(t, http.StatusOK, status)
	board := decode[[]models.LeaderboardEntry](t, body)
	require.Len(t, board, 1)
	assert.Equal(t, "b", board[0].Handle)
	assert.Equal(t, 10, board[0].XP)

	status, body = h.do(http.MethodGet, "/api/flags", 0, nil)
	require.Equal(t, http.StatusOK, status)
	flags := decode[struct {
		Flags map[string]bool `json:"flags"`
	}](t, body)
	assert.True(t, flags.Flags["leaderboard"])
	assert.False(t, flags.Flags["canary"], "partial rollouts are off for anonymous callers")
}
