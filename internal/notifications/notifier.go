// Package notifications announces committed counter changes over redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"hushfeed/internal/featureflags"
	"hushfeed/internal/middleware"
	"hushfeed/internal/models"

	"github.com/redis/go-redis/v9"
)

const itemPattern = "items:*"

// ItemChannel is the channel counter events for ref are published on.
func ItemChannel(ref models.ItemRef) string {
	return fmt.Sprintf("items:%s:%d", ref.Kind, ref.ID)
}

// Notifier publishes counter events into redis channels. A nil client or a
// disabled realtime_counters flag makes it a no-op.
type Notifier struct {
	rdb   *redis.Client
	flags *featureflags.Manager
}

// NewNotifier creates a Notifier. flags may be nil, which publishes always.
func NewNotifier(rdb *redis.Client, flags *featureflags.Manager) *Notifier {
	return &Notifier{rdb: rdb, flags: flags}
}

func (n *Notifier) enabled() bool {
	if n.rdb == nil {
		return false
	}
	return n.flags == nil || n.flags.Enabled(featureflags.RealtimeCounters, 0)
}

// PublishCounters sends event to the item's channel.
func (n *Notifier) PublishCounters(ctx context.Context, event models.CounterEvent) error {
	if !n.enabled() {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal counter event: %w", err)
	}
	return n.rdb.Publish(ctx, ItemChannel(event.Item), payload).Err()
}

// StartCounterSubscriber subscribes to every item channel and calls onEvent
// for each decodable message until ctx is done. It returns once the
// subscription is confirmed.
func (n *Notifier) StartCounterSubscriber(ctx context.Context, onEvent func(models.CounterEvent)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, itemPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", itemPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event models.CounterEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					middleware.Logger.Warn("Dropping malformed counter event", "channel", msg.Channel, "error", err)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("Counter subscriber panic", "panic", r, "stack", string(debug.Stack()))
						}
					}()
					onEvent(event)
				}()
			}
		}
	}()

	return nil
}
