package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hushfeed/internal/cache"
	"hushfeed/internal/models"
	"hushfeed/internal/repository"
	"hushfeed/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCounterStream(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	events := make(chan models.CounterEvent, 2)
	ref := models.ItemRef{Kind: models.ItemPost, ID: 4}
	events <- models.CounterEvent{Item: ref, Upvotes: 1}
	events <- models.CounterEvent{Item: ref, Upvotes: 2}
	close(events)

	require.NoError(t, writeCounterStream(w, events, time.Hour))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "event: counters\n"))
	assert.Contains(t, out, `"upvotes":1`)
	assert.Contains(t, out, `"upvotes":2`)
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}

func TestWriteCounterStream_Heartbeat(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	events := make(chan models.CounterEvent)
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(events)
	}()

	require.NoError(t, writeCounterStream(w, events, 5*time.Millisecond))
	assert.Contains(t, buf.String(), ": ping\n\n")
}

func TestStreamCounters_Unavailable(t *testing.T) {
	h, users := newHarness(t)
	ids := mkUsers(t, users, "a")
	status, body := h.do(http.MethodPost, "/api/posts", ids[0], map[string]string{"content": "P"})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, _ = h.do(http.MethodGet, "/api/items/post/1/stream", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status, "no redis, no feed")

	cfg := testConfig()
	cfg.FeatureFlags = "realtime_counters=off"
	off, _ := newHarnessWith(t, cfg)
	status, _ = off.do(http.MethodGet, "/api/items/post/1/stream", 0, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.do(http.MethodGet, "/api/items/thread/1/stream", 0, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStreamCounters_DeliversCommittedChanges(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	t.Cleanup(func() { cache.SetClient(nil) })

	srv, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.StartCounterFeed(ctx))

	h := &harness{t: t, app: srv.NewApp()}
	ids := mkUsers(t, repository.NewUserRepository(db), "author", "voter")

	status, body := h.do(http.MethodPost, "/api/posts", ids[0], map[string]string{"content": "P"})
	require.Equal(t, http.StatusCreated, status, string(body))
	created := decode[struct {
		Post models.Post `json:"post"`
	}](t, body)
	ref := created.Post.Ref()

	type streamed struct {
		body []byte
		err  error
	}
	done := make(chan streamed, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/items/post/%d/stream", ref.ID), nil)
		resp, err := h.app.Test(req, 5000)
		if err != nil {
			done <- streamed{err: err}
			return
		}
		defer func() { _ = resp.Body.Close() }()
		b, err := io.ReadAll(resp.Body)
		done <- streamed{body: b, err: err}
	}()

	require.Eventually(t, func() bool { return srv.counterHub.Listeners(ref) == 1 }, 2*time.Second, 10*time.Millisecond)

	watch, unwatch := srv.counterHub.Subscribe(ref)
	defer unwatch()

	status, body = h.do(http.MethodPost, fmt.Sprintf("/api/items/post/%d/vote", ref.ID), ids[1], map[string]string{"direction": "up"})
	require.Equal(t, http.StatusOK, status, string(body))

	deadline := time.After(2 * time.Second)
	for seen := false; !seen; {
		select {
		case e := <-watch:
			seen = e.Upvotes == 1
		case <-deadline:
			t.Fatal("vote never reached the counter hub")
		}
	}
	srv.counterHub.Close()

	got := <-done
	require.NoError(t, got.err)
	out := string(got.body)
	assert.Contains(t, out, `"upvotes":0`, "current counters come first")
	assert.Contains(t, out, `"upvotes":1`)
	assert.Less(t, strings.Index(out, `"upvotes":0`), strings.Index(out, `"upvotes":1`))
}
