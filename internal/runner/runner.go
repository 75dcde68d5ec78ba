package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/openmined/trsync/internal/config"
	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/ignore"
	"github.com/openmined/trsync/internal/local"
	"github.com/openmined/trsync/internal/operator"
	"github.com/openmined/trsync/internal/queue"
	"github.com/openmined/trsync/internal/remote"
	"github.com/openmined/trsync/internal/startup"
	"github.com/openmined/trsync/internal/state"
	"github.com/openmined/trsync/internal/tracimsdk"
	"github.com/openmined/trsync/internal/utils"
	"github.com/openmined/trsync/internal/workspace"
	"golang.org/x/sync/errgroup"
)

const (
	backoffInitial = 1 * time.Second
	backoffMax     = 30 * time.Second
)

// Remote is what a session needs from the content service.
type Remote interface {
	remote.Client
	Listener(transport string) (remote.Listener, error)
	WorkspaceID() int64
}

// Dialer builds the remote client of a session.
type Dialer func(cfg *config.Config) (Remote, error)

// DialTracim connects to the Tracim HTTP API described by cfg.
func DialTracim(cfg *config.Config) (Remote, error) {
	return tracimsdk.New(cfg.SDKConfig())
}

// Runner supervises reconciliation sessions of one workspace.
type Runner struct {
	cfg       *config.Config
	workspace *workspace.Workspace
	dial      Dialer
	politic   startup.Politic
	clock     clockwork.Clock
	settle    time.Duration
	opts      []operator.Option
	restart   atomic.Bool
}

type Option func(*Runner)

func WithDialer(d Dialer) Option {
	return func(r *Runner) { r.dial = d }
}

// WithPolitic sets who accepts the startup changes, all of them by default.
func WithPolitic(p startup.Politic) Option {
	return func(r *Runner) { r.politic = p }
}

func WithClock(clock clockwork.Clock) Option {
	return func(r *Runner) { r.clock = clock }
}

// WithSettle sets how long local bursts are left to accumulate.
func WithSettle(d time.Duration) Option {
	return func(r *Runner) { r.settle = d }
}

func WithOperatorOptions(opts ...operator.Option) Option {
	return func(r *Runner) { r.opts = append(r.opts, opts...) }
}

func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ws, err := workspace.NewWorkspace(cfg.Folder)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	r := &Runner{
		cfg:       cfg,
		workspace: ws,
		dial:      DialTracim,
		politic:   startup.AcceptAll{},
		clock:     clockwork.NewRealClock(),
		settle:    local.DefaultSettle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Runner) Workspace() *workspace.Workspace {
	return r.workspace
}

// Run locks the workspace and runs sessions until ctx is done. A session
// ended by the restart flag or a missing parent starts over at once; one
// ended by a connection error starts over after a backoff. With once, Run
// returns after the startup changes are applied.
func (r *Runner) Run(ctx context.Context, once bool) error {
	if err := r.workspace.Setup(); err != nil {
		return err
	}
	defer r.workspace.Unlock()

	slog.Info("trsync start",
		"folder", r.workspace.Root,
		"address", r.cfg.Address,
		"workspace", r.cfg.WorkspaceID,
		"username", r.cfg.Username,
		"password", utils.MaskSecret(r.cfg.Password),
		"transport", r.cfg.EventTransport,
		"once", once,
	)

	delay := backoffInitial
	for {
		err := r.session(ctx, once)
		restart := r.restart.Swap(false)
		switch {
		case ctx.Err() != nil:
			slog.Info("trsync stopped")
			return nil
		case restart:
			slog.Info("session restart requested")
			delay = backoffInitial
			continue
		case err == nil:
			return nil
		case errors.Is(err, operator.ErrMissingParent):
			slog.Warn("session restart", "error", err)
			delay = backoffInitial
			continue
		case remote.IsConnection(err):
			wait := jitter(delay)
			slog.Warn("session failed, retrying", "error", err, "in", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-r.clock.After(wait):
			}
			delay = min(delay*2, backoffMax)
		default:
			return err
		}
	}
}

func jitter(d time.Duration) time.Duration {
	return d - d/8 + time.Duration(rand.Float64()*float64(d/4))
}

// Plan returns what a session would apply at startup, touching nothing.
func (r *Runner) Plan(ctx context.Context) ([]event.Change, error) {
	if err := r.workspace.Lock(); err != nil {
		return nil, err
	}
	defer r.workspace.Unlock()

	st, list, client, err := r.open()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return r.newSync(st, list, client).Plan(ctx)
}

func (r *Runner) open() (*state.SqliteState, *ignore.List, Remote, error) {
	list, err := ignore.Load(r.workspace.Root, r.cfg.Ignore)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := r.dial(r.cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create remote client: %w", err)
	}
	st := state.NewSqliteState(r.workspace.StatePath)
	if err := st.Open(); err != nil {
		return nil, nil, nil, err
	}
	return st, list, client, nil
}

func (r *Runner) newSync(st state.State, list *ignore.List, client remote.Client) *startup.Sync {
	return startup.NewSync(
		startup.NewLocalScanner(r.workspace.Root, st, list),
		startup.NewRemoteScanner(client, st, list),
		r.politic,
	)
}

// session runs one reconciliation: watchers are started first so nothing
// happening during the startup sync is lost, then the startup changes are
// applied, then live events are operated until ctx is done or something fails.
func (r *Runner) session(ctx context.Context, once bool) error {
	id := uuid.NewString()
	tStart := time.Now()
	slog.Info("session start", "session", id)
	defer func() { slog.Info("session end", "session", id, "tsSession", time.Since(tStart)) }()

	st, list, client, err := r.open()
	if err != nil {
		return err
	}
	defer st.Close()

	op := operator.New(r.workspace.Root, st, client, list, r.opts...)
	raw := queue.New[event.Local]()
	events := queue.New[event.Event]()
	defer raw.Close()
	defer events.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(ctx)
	// ends the remote watcher of a session failing before its live phase
	stop := func() error {
		cancel()
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, remote.ErrInactive) {
			return err
		}
		return nil
	}

	if !once {
		watcher := local.NewWatcher(r.workspace.Root, list, raw)
		if err := watcher.Start(gctx); err != nil {
			return fmt.Errorf("failed to start local watcher: %w", err)
		}
		defer watcher.Stop()

		listener, err := client.Listener(r.cfg.EventTransport)
		if err != nil {
			return err
		}
		rw := remote.NewWatcher(listener, events, client.WorkspaceID(),
			remote.WithClock(r.clock),
			remote.WithInactivityTimeout(r.cfg.InactivityTimeout),
			remote.WithIgnored(list.IgnoredID),
			remote.WithRestartFlag(&r.restart),
		)
		group.Go(func() error { return rw.Run(gctx) })
	}

	changes, err := r.newSync(st, list, client).Plan(gctx)
	if err != nil {
		return errors.Join(err, stop())
	}
	if once {
		changes = append(changes, event.Exit())
	}
	exit, err := startup.Apply(gctx, op, changes)
	if err != nil {
		return errors.Join(err, stop())
	}
	slog.Info("startup sync done", "session", id, "changes", len(changes), "echoes", op.Expected())
	if exit {
		return nil
	}

	reducer := local.NewReducer(raw, r.settle)
	group.Go(func() error { return reducer.Run(gctx, events) })
	group.Go(func() error { return op.Run(gctx, events) })
	err = group.Wait()
	if errors.Is(err, remote.ErrInactive) {
		return nil
	}
	return err
}
