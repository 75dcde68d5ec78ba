package startup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/trsync/internal/event"
)

// Sync catches up with what changed on both sides while nothing was watching.
type Sync struct {
	local    *LocalScanner
	remote   *RemoteScanner
	politic  Politic
	strategy Strategy
}

func NewSync(local *LocalScanner, remote *RemoteScanner, politic Politic) *Sync {
	if politic == nil {
		politic = AcceptAll{}
	}
	return &Sync{local: local, remote: remote, politic: politic, strategy: LocalIsTruth{}}
}

// Plan scans both sides, submits the findings to the politic and returns the
// resolved changes. Nothing is touched on either side.
func (s *Sync) Plan(ctx context.Context) ([]event.Change, error) {
	tStart := time.Now()

	remoteChanges, err := s.remote.Changes(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan remote: %w", err)
	}
	tRemote := time.Since(tStart)

	tLocal := time.Now()
	localChanges, err := s.local.Changes()
	if err != nil {
		return nil, fmt.Errorf("scan local: %w", err)
	}
	tLocalScan := time.Since(tLocal)

	accepted, err := s.politic.Accept(ctx, localChanges, remoteChanges)
	if err != nil {
		return nil, err
	}
	if !accepted {
		return nil, ErrRejected
	}

	resolved := Resolve(s.strategy, localChanges, remoteChanges)
	slog.Info("startup plan",
		"local", len(localChanges),
		"remote", len(remoteChanges),
		"resolved", len(resolved),
		"strategy", s.strategy.Name(),
		"tsRemoteScan", tRemote,
		"tsLocalScan", tLocalScan,
		"tsTotal", time.Since(tStart),
	)
	return resolved, nil
}
