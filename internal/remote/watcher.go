package remote

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/event"
)

const (
	DefaultInactivityTimeout = 60 * time.Second

	seenEventsSize        = 1024
	messagesBufferSize    = 64
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 8 * time.Second
)

// ErrInactive is returned when the stream stayed silent for the inactivity timeout.
var ErrInactive = errors.New("remote: live stream inactive")

// Sink receives the normalized remote events.
type Sink interface {
	Push(event.Event) bool
}

// IgnoredFunc reports content ids whose events are dropped.
type IgnoredFunc func(content.ID) bool

// Watcher turns the server push stream into remote events for one workspace.
type Watcher struct {
	listener    Listener
	sink        Sink
	workspaceID int64
	ignored     IgnoredFunc
	clock       clockwork.Clock
	inactivity  time.Duration
	restart     *atomic.Bool
	seen        *lru.Cache[int64, struct{}]
}

type WatcherOption func(*Watcher)

func WithClock(clock clockwork.Clock) WatcherOption {
	return func(w *Watcher) { w.clock = clock }
}

func WithInactivityTimeout(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.inactivity = d
		}
	}
}

func WithIgnored(fn IgnoredFunc) WatcherOption {
	return func(w *Watcher) { w.ignored = fn }
}

// WithRestartFlag sets the flag raised when the stream goes silent.
func WithRestartFlag(flag *atomic.Bool) WatcherOption {
	return func(w *Watcher) { w.restart = flag }
}

func NewWatcher(listener Listener, sink Sink, workspaceID int64, opts ...WatcherOption) *Watcher {
	seen, _ := lru.New[int64, struct{}](seenEventsSize)
	w := &Watcher{
		listener:    listener,
		sink:        sink,
		workspaceID: workspaceID,
		ignored:     func(content.ID) bool { return false },
		clock:       clockwork.NewRealClock(),
		inactivity:  DefaultInactivityTimeout,
		restart:     &atomic.Bool{},
		seen:        seen,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run listens until ctx is done. A broken stream is reopened with backoff,
// a silent one raises the restart flag and ends Run with ErrInactive.
func (w *Watcher) Run(ctx context.Context) error {
	delay := reconnectInitialDelay
	for attempt := 1; ; attempt++ {
		received, err := w.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrInactive) || errors.Is(err, ErrUnauthorized) {
			return err
		}
		if received {
			attempt, delay = 1, reconnectInitialDelay
		}

		slog.Warn("remote stream closed, reconnecting", "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-w.clock.After(delay):
		}

		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
		jitter := time.Duration(rand.Float64() * float64(delay/4))
		delay = delay - (delay / 8) + jitter
	}
}

func (w *Watcher) listen(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages := make(chan LiveMessage, messagesBufferSize)
	errc := make(chan error, 1)
	go func() {
		err := w.listener.Listen(ctx, messages)
		if err == nil {
			err = errors.New("remote: live stream ended")
		}
		errc <- err
	}()

	timer := w.clock.NewTimer(w.inactivity)
	defer timer.Stop()

	received := false
	for {
		select {
		case <-ctx.Done():
			return received, ctx.Err()
		case err := <-errc:
			return received, err
		case <-timer.Chan():
			slog.Warn("remote stream inactive, restart requested", "timeout", w.inactivity)
			w.restart.Store(true)
			return received, ErrInactive
		case msg := <-messages:
			received = true
			timer.Reset(w.inactivity)
			w.handle(msg)
		}
	}
}

func (w *Watcher) handle(msg LiveMessage) {
	if msg.KeepAlive() {
		return
	}
	if ok, _ := w.seen.ContainsOrAdd(msg.EventID, struct{}{}); ok {
		slog.Debug("remote event already seen", "event_id", msg.EventID)
		return
	}

	typ, ok := msg.RemoteType()
	if !ok {
		return
	}
	id := msg.ContentID()
	if id == 0 {
		return
	}
	if w.ignored(id) || w.ignored(msg.ParentID()) {
		slog.Debug("remote event ignored", "event_id", msg.EventID, "content_id", id)
		return
	}
	// content moved to another workspace is gone from this one; untracked ids are dropped downstream
	if ws := msg.WorkspaceID(); ws != 0 && ws != w.workspaceID {
		typ = event.RemoteDeleted
	}

	ev := event.Remote{Type: typ, ContentID: id}
	slog.Debug("remote event", "event_id", msg.EventID, "event", ev)
	w.sink.Push(ev)
}
