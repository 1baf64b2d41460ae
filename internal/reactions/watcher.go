package reactions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zhulik/pips"
	"github.com/zhulik/pips/apply"

	"murmur/internal/core"
	"murmur/internal/database"
	"murmur/internal/metrics"
	"murmur/internal/surreal"
)

const reactionTable = "reacted"

// Watcher follows reaction changes with a live query and hands them to the publisher.
type Watcher struct {
	Logger    *slog.Logger
	Database  *database.Facade
	Publisher core.ReactionPublisher

	Now        func() time.Time
	RetryDelay time.Duration
}

func (w *Watcher) Init(_ context.Context) error {
	w.Logger = w.Logger.With("component", "reactions.Watcher")
	if w.Now == nil {
		w.Now = time.Now
	}
	if w.RetryDelay == 0 {
		w.RetryDelay = time.Second
	}
	return nil
}

// Run watches until ctx is done, restarting the live query when the connection drops. Login problems
// end it.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		err := w.Watch(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
			w.Logger.Warn("Live query ended, restarting")
		case core.IsLoginRequired(err):
			return err
		default:
			w.Logger.Error("Error watching reactions, retrying", "error", err, "delay", w.RetryDelay)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.RetryDelay):
		}
	}
}

// Watch runs one live query until ctx is done or the connection drops.
func (w *Watcher) Watch(ctx context.Context) error {
	conn, err := w.Database.AuthenticatedConnection(ctx)
	if err != nil {
		return err
	}

	liveID, notifications, err := conn.Live(ctx, reactionTable)
	if err != nil {
		return surreal.Classify(err)
	}
	w.Logger.Info("Watching reactions", "live_id", liveID)

	defer func() {
		// The run context is already cancelled at shutdown.
		killCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := conn.Kill(killCtx, liveID); err != nil {
			w.Logger.Warn("Failed to kill live query", "live_id", liveID, "error", err)
		}
	}()

	return w.Pipeline().
		Run(ctx, w.feed(ctx, notifications)).
		Wait(ctx)
}

// Pipeline decodes notifications, logs and counts them and publishes the resulting events.
func (w *Watcher) Pipeline() *pips.Pipeline[surreal.Notification, any] {
	return pips.New[surreal.Notification, any]().
		Then(apply.Each(func(_ context.Context, n surreal.Notification) error {
			metrics.LiveNotification(reactionTable, n.Action)
			return nil
		})).
		Then(apply.Map(func(_ context.Context, n surreal.Notification) (core.ReactionEvent, error) {
			return decodeEvent(n, w.Now())
		})).
		Then(apply.Each(func(_ context.Context, event core.ReactionEvent) error {
			metrics.ReactionEvent(event.Kind, event.Action)
			w.Logger.Info("Reaction event",
				"action", event.Action, "kind", event.Kind, "user", event.In.String(), "item", event.Out.String())
			return nil
		})).
		Then(apply.Map(func(ctx context.Context, event core.ReactionEvent) (any, error) {
			return nil, w.Publisher.Publish(ctx, event)
		}))
}

func (w *Watcher) feed(ctx context.Context, notifications <-chan surreal.Notification) <-chan pips.D[surreal.Notification] {
	out := make(chan pips.D[surreal.Notification])

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-notifications:
				if !ok {
					return
				}
				select {
				case out <- pips.NewD(n):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func decodeEvent(n surreal.Notification, received time.Time) (core.ReactionEvent, error) {
	var edge struct {
		ID   core.RecordID     `json:"id"`
		In   core.RecordID     `json:"in"`
		Out  core.RecordID     `json:"out"`
		Kind core.ReactionKind `json:"kind"`
	}
	if err := json.Unmarshal(n.Result, &edge); err != nil {
		return core.ReactionEvent{}, fmt.Errorf("%w: %w", surreal.ErrUnexpectedReply, err)
	}

	return core.ReactionEvent{
		Action:   strings.ToLower(n.Action),
		ID:       edge.ID,
		Kind:     edge.Kind,
		In:       edge.In,
		Out:      edge.Out,
		Received: received,
	}, nil
}
