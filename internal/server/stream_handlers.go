package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"hushfeed/internal/featureflags"
	"hushfeed/internal/middleware"
	"hushfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// streamHeartbeat keeps idle counter streams open through proxies.
var streamHeartbeat = 25 * time.Second

// StreamCounters streams an item's counters as server-sent events: the
// current values first, then every committed change.
func (s *Server) StreamCounters(c *fiber.Ctx) error {
	ref, err := parseItemRef(c)
	if err != nil {
		return nil
	}
	if !s.featureFlags.Enabled(featureflags.RealtimeCounters, 0) {
		return models.RespondWithAppError(c, &models.AppError{Code: models.CodeNotFound, Message: "Realtime counters are disabled"})
	}
	if s.redis == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Realtime counters are unavailable")
	}

	state, err := s.feedService.VoteState(c.UserContext(), ref, 0)
	if err != nil {
		return respondError(c, err)
	}
	initial := models.CounterEvent{
		Item:         ref,
		Upvotes:      state.Upvotes,
		Downvotes:    state.Downvotes,
		CommentCount: state.CommentCount,
		At:           time.Now().UTC(),
	}

	events, unsubscribe := s.counterHub.Subscribe(ref)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		if err := writeCounterEvent(w, initial); err != nil {
			return
		}
		if err := writeCounterStream(w, events, streamHeartbeat); err != nil {
			middleware.Logger.Debug("Counter stream closed", "item", ref.String(), "error", err)
		}
	})
	return nil
}

// writeCounterStream copies events to w until the channel closes or a write
// fails, sending a comment line whenever heartbeat passes without one.
func writeCounterStream(w *bufio.Writer, events <-chan models.CounterEvent, heartbeat time.Duration) error {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeCounterEvent(w, event); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}

func writeCounterEvent(w *bufio.Writer, event models.CounterEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: counters\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
