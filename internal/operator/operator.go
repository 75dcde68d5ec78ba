package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/ignore"
	"github.com/openmined/trsync/internal/queue"
	"github.com/openmined/trsync/internal/remote"
	"github.com/openmined/trsync/internal/state"
)

const (
	// MaxAttempts bounds how many times an executor runs when the remote times out.
	MaxAttempts       = 5
	defaultRetryDelay = 500 * time.Millisecond
)

// Operator applies events one at a time. It is the only writer of State.
type Operator struct {
	env        *Env
	retryDelay time.Duration
}

type Option func(*Operator)

// WithRetryDelay sets the pause between two attempts of a timed out executor.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Operator) { o.retryDelay = d }
}

func New(root string, st state.State, client remote.Client, ignoreList *ignore.List, opts ...Option) *Operator {
	o := &Operator{
		env: &Env{
			root:   root,
			state:  st,
			client: client,
			ignore: ignoreList,
			echoes: &echoes{},
		},
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Expect registers an event to swallow once when it shows up.
func (o *Operator) Expect(ev event.Event) {
	o.env.echoes.push(normalize(ev))
}

// Expected is the number of echoes still awaited.
func (o *Operator) Expected() int {
	return o.env.echoes.len()
}

// Run operates every event popped from events until ctx is done, the queue is
// closed, or an event fails.
func (o *Operator) Run(ctx context.Context, events *queue.Queue[event.Event]) error {
	slog.Info("operator start")
	defer slog.Info("operator stopped")
	for {
		ev, ok := events.Pop(ctx)
		if !ok {
			return nil
		}
		if err := o.Operate(ctx, ev); err != nil {
			return err
		}
	}
}

// Operate drives one event to completion.
func (o *Operator) Operate(ctx context.Context, ev event.Event) error {
	ev = normalize(ev)
	if o.env.echoes.consume(ev) {
		slog.Debug("operator echo", "event", ev)
		return nil
	}

	if r, ok := ev.(event.Remote); ok && r.Type != event.RemoteDeleted {
		var attachment bool
		err := o.retry(ctx, "attachment", func() (err error) {
			attachment, err = o.isAttachment(ctx, r.ContentID)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s: %w", ev, err)
		}
		if attachment {
			slog.Debug("operator skip attachment", "event", ev)
			return nil
		}
	}

	qualified, err := o.qualify(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", ev, err)
	}
	if qualified == nil {
		slog.Debug("operator skip", "event", ev)
		return nil
	}
	if qualified != ev {
		slog.Debug("operator qualify", "event", ev, "as", qualified)
	}

	executors, err := o.executors(qualified)
	if err != nil {
		return fmt.Errorf("%s: %w", qualified, err)
	}
	for _, ex := range executors {
		slog.Debug("operator", "event", qualified, "executor", ex.Name())
		var mods []state.Modification
		err := o.retry(ctx, ex.Name(), func() (err error) {
			mods, err = ex.Execute(ctx, o.env)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s: %s: %w", qualified, ex.Name(), err)
		}
		for _, m := range mods {
			if err := o.env.state.Apply(m); err != nil {
				return fmt.Errorf("%s: apply %s: %w", qualified, m, err)
			}
		}
	}
	return nil
}

func normalize(ev event.Event) event.Event {
	if l, ok := ev.(event.Local); ok {
		return event.Track(l)
	}
	return ev
}

func (o *Operator) retry(ctx context.Context, name string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !remote.IsTimeout(err) {
			return err
		}
		slog.Warn("operator retry", "executor", name, "attempt", attempt, "error", err)
		if attempt == MaxAttempts || o.retryDelay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.retryDelay):
		}
	}
	return fmt.Errorf("%w (%d attempts): %w", ErrMaximumRetryCount, MaxAttempts, err)
}

// isAttachment reports a remote content living under something else than a folder.
func (o *Operator) isAttachment(ctx context.Context, id content.ID) (bool, error) {
	rc, err := o.env.client.Get(ctx, id)
	if errors.Is(err, remote.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rc.ParentID == 0 {
		return false, nil
	}

	parent, err := o.env.state.Get(rc.ParentID)
	if err != nil {
		return false, err
	}
	if parent != nil {
		return parent.Kind != content.KindFolder, nil
	}
	prc, err := o.env.client.Get(ctx, rc.ParentID)
	if errors.Is(err, remote.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return prc.ContentType != content.KindFolder.String(), nil
}

// qualify rewrites an event into what it means against State. It returns nil
// for an event with nothing left to do.
func (o *Operator) qualify(ev event.Event) (event.Event, error) {
	st := o.env.state

	switch ev := ev.(type) {
	case event.Remote:
		known, err := st.Known(ev.ContentID)
		if err != nil {
			return nil, err
		}
		switch {
		case ev.Type == event.RemoteDeleted && !known:
			return nil, nil
		case ev.Type == event.RemoteCreated && known:
			return event.Remote{Type: event.RemoteUpdated, ContentID: ev.ContentID}, nil
		case (ev.Type == event.RemoteUpdated || ev.Type == event.RemoteRenamed) && !known:
			// moves from another workspace show up as updates
			return event.Remote{Type: event.RemoteCreated, ContentID: ev.ContentID}, nil
		}
		return ev, nil

	case event.Disk:
		tracked, err := o.tracks(ev.Tracking)
		if err != nil {
			return nil, err
		}
		target := ev.Event.Path
		switch ev.Event.Type {
		case event.LocalCreated:
			targetTracked, err := o.tracks(target)
			if err != nil {
				return nil, err
			}
			if targetTracked {
				return event.Track(event.Modified(target)), nil
			}
		case event.LocalModified:
			if tracked {
				break
			}
			targetTracked, err := o.tracks(target)
			if err != nil {
				return nil, err
			}
			if targetTracked {
				return event.Track(event.Modified(target)), nil
			}
			return event.Track(event.Created(target)), nil
		case event.LocalDeleted:
			if !tracked {
				return nil, nil
			}
		case event.LocalRenamed:
			if !tracked {
				return event.Track(event.Created(target)), nil
			}
		}
		return ev, nil
	}
	return nil, programmatic("unsupported event %T", ev)
}

func (o *Operator) tracks(rel string) (bool, error) {
	_, err := o.env.state.ContentIDForPath(rel)
	if errors.Is(err, state.ErrUnknownPath) {
		return false, nil
	}
	return err == nil, err
}

// executors picks what a qualified event needs, in order.
func (o *Operator) executors(ev event.Event) ([]Executor, error) {
	switch ev := ev.(type) {
	case event.Remote:
		switch ev.Type {
		case event.RemoteCreated:
			return []Executor{DiskPresent{ID: ev.ContentID}}, nil
		case event.RemoteDeleted:
			return []Executor{DiskAbsent{ID: ev.ContentID}}, nil
		case event.RemoteUpdated:
			return []Executor{DiskUpdated{ID: ev.ContentID, Download: true}}, nil
		case event.RemoteRenamed:
			return []Executor{DiskUpdated{ID: ev.ContentID, Download: false}}, nil
		}

	case event.Disk:
		if ev.Event.Type == event.LocalCreated {
			return []Executor{RemoteCreated{Path: ev.Event.Path}}, nil
		}
		id, err := o.env.state.ContentIDForPath(ev.Tracking)
		if err != nil {
			return nil, err
		}
		switch ev.Event.Type {
		case event.LocalDeleted:
			return []Executor{RemoteAbsent{ID: id}}, nil
		case event.LocalRenamed:
			return []Executor{RemoteNamed{ID: id, Path: ev.Event.Path}}, nil
		case event.LocalModified:
			if ev.Tracking != ev.Event.Path {
				return []Executor{
					RemoteNamed{ID: id, Path: ev.Event.Path},
					RemoteModified{ID: id, Path: ev.Event.Path},
				}, nil
			}
			return []Executor{RemoteModified{ID: id, Path: ev.Event.Path}}, nil
		}
	}
	return nil, programmatic("no executor for %s", ev)
}
