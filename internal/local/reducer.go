package local

import (
	"context"
	"log/slog"
	"time"

	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/queue"
)

// DefaultSettle is how long the reducer lets a burst accumulate before folding it.
const DefaultSettle = 100 * time.Millisecond

// Sink receives reduced disk events.
type Sink interface {
	Push(event.Event) bool
}

type outcome int

const (
	independent outcome = iota // next is unrelated, kept for later
	absorbed                   // next folded into the current event
	cancelled                  // both vanish
	closing                    // next folded in and nothing after it may be merged
)

// Reducer folds bursts of raw disk events into one net event per tracked path.
type Reducer struct {
	raw     *queue.Queue[event.Local]
	pending []event.Local
	settle  time.Duration
}

func NewReducer(raw *queue.Queue[event.Local], settle time.Duration) *Reducer {
	return &Reducer{raw: raw, settle: settle}
}

// Run forwards reduced events to sink until ctx is done or the raw queue is closed.
func (r *Reducer) Run(ctx context.Context, sink Sink) error {
	for {
		ev, ok := r.Next(ctx)
		if !ok {
			return nil
		}
		slog.Debug("local event", "event", ev)
		sink.Push(ev)
	}
}

// Next blocks until a net event is available. It returns false once ctx is
// done or the raw queue is closed and drained.
func (r *Reducer) Next(ctx context.Context) (event.Disk, bool) {
	for {
		r.pending = append(r.pending, r.raw.Drain()...)
		if ev, ok := r.fold(); ok {
			return ev, true
		}

		first, ok := r.raw.Pop(ctx)
		if !ok {
			return event.Disk{}, false
		}
		r.pending = append(r.pending, first)

		if r.settle > 0 {
			select {
			case <-ctx.Done():
				return event.Disk{}, false
			case <-time.After(r.settle):
			}
		}
	}
}

// Len is the number of raw events waiting to be folded.
func (r *Reducer) Len() int {
	return len(r.pending) + r.raw.Len()
}

func (r *Reducer) fold() (event.Disk, bool) {
	for len(r.pending) > 0 {
		current := event.Track(r.pending[0])
		rest := r.pending[1:]
		var kept []event.Local
		dropped := false

	scan:
		for i, next := range rest {
			if current.Event.Type == event.LocalDeleted {
				kept = append(kept, rest[i:]...)
				break
			}
			merged, result := combine(current.Event, next)
			switch result {
			case independent:
				kept = append(kept, next)
			case absorbed:
				current.Event = merged
			case cancelled:
				dropped = true
				kept = append(kept, rest[i+1:]...)
				break scan
			case closing:
				current.Event = merged
				kept = append(kept, rest[i+1:]...)
				break scan
			}
		}

		r.pending = kept
		if !dropped {
			return current, true
		}
	}
	return event.Disk{}, false
}

// combine applies the fold table to the current net event and the next raw one.
func combine(current, next event.Local) (event.Local, outcome) {
	at := current.Path

	switch current.Type {
	case event.LocalCreated:
		switch {
		case next.Type == event.LocalDeleted && next.Path == at:
			return event.Local{}, cancelled
		case next.Type == event.LocalModified && next.Path == at:
			return current, absorbed
		case next.Type == event.LocalRenamed && next.Before == at:
			return event.Created(next.Path), absorbed
		}

	case event.LocalModified:
		switch {
		case next.Type == event.LocalDeleted && next.Path == at:
			return event.Deleted(at), closing
		case next.Type == event.LocalModified && next.Path == at:
			return current, absorbed
		case next.Type == event.LocalRenamed && next.Before == at:
			return event.Modified(next.Path), absorbed
		}

	case event.LocalRenamed:
		switch {
		case next.Type == event.LocalRenamed && next.Before == at:
			return event.Renamed(current.Before, next.Path), absorbed
		case next.Type == event.LocalModified && next.Path == at:
			// tracked at the old path, so the move still happens before the upload
			return event.Modified(at), absorbed
		case next.Type == event.LocalDeleted && next.Path == at:
			return event.Deleted(at), closing
		}
	}

	return next, independent
}
