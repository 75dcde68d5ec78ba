package startup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/operator"
)

// ErrNoProgress is returned when a whole pass over the deferred changes
// resolved none of them.
var ErrNoProgress = errors.New("startup: no progress")

// Operator drives one event to completion.
type Operator interface {
	Operate(ctx context.Context, ev event.Event) error
}

// Apply hands every change to op in order. Changes failing on a missing
// parent are deferred and retried after the others, pass after pass, until
// none is left or a pass leaves as many as it started with. It reports
// whether an Exit change was reached.
func Apply(ctx context.Context, op Operator, changes []event.Change) (bool, error) {
	exit := false
	pending := make([]event.Change, 0, len(changes))
	for _, c := range changes {
		if c.IsExit() {
			exit = true
			continue
		}
		pending = append(pending, c)
	}

	for pass := 1; len(pending) > 0; pass++ {
		var deferred []event.Change
		for _, c := range pending {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			ev, ok := c.Event()
			if !ok {
				continue
			}
			err := op.Operate(ctx, ev)
			switch {
			case err == nil:
			case errors.Is(err, operator.ErrMissingParent):
				slog.Debug("startup change deferred", "change", c, "pass", pass)
				deferred = append(deferred, c)
			default:
				return false, fmt.Errorf("apply %s: %w", c, err)
			}
		}

		if len(deferred) == len(pending) {
			return false, noProgress(deferred)
		}
		pending = deferred
	}
	return exit, nil
}

func noProgress(changes []event.Change) error {
	lines := make([]string, len(changes))
	for i, c := range changes {
		lines[i] = c.String()
	}
	return fmt.Errorf("%w: %d unresolved changes: %s", ErrNoProgress, len(changes), strings.Join(lines, "; "))
}
