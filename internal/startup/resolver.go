package startup

import (
	"log/slog"

	"github.com/openmined/trsync/internal/event"
)

// Strategy settles a local and a remote change found on the same path.
type Strategy interface {
	Name() string
	Resolve(local, remote event.Change) []event.Change
}

// LocalIsTruth lets what happened on disk win over what happened remotely.
type LocalIsTruth struct{}

func (LocalIsTruth) Name() string { return "local-is-truth" }

func (LocalIsTruth) Resolve(local, remote event.Change) []event.Change {
	switch local.Type {
	case event.ChangeNew:
		if remote.Type == event.ChangeDisappear {
			return []event.Change{local}
		}
		// both sides created or touched it, disk bytes replace remote ones
		return []event.Change{event.LocalUpdated(local.Path)}

	case event.ChangeUpdated:
		if remote.Type == event.ChangeDisappear {
			return []event.Change{event.LocalNew(local.Path)}
		}
		return []event.Change{local}

	case event.ChangeDisappear:
		if remote.Type == event.ChangeDisappear {
			// gone on both sides: nothing to do on disk nor remotely, only
			// State still has to forget it
			return []event.Change{remote}
		}
		return []event.Change{local}

	case event.ChangeRenamed:
		if remote.Type == event.ChangeDisappear {
			return []event.Change{event.LocalNew(local.Path)}
		}
		return []event.Change{local}
	}
	return []event.Change{local}
}

// Resolve merges local and remote changes. Changes are matched on their key
// path; a matched pair is replaced by what the strategy decides, in place of
// the local change. Unmatched remote changes follow the local ones and an
// Exit, if any, always comes last.
func Resolve(strategy Strategy, local, remote []event.Change) []event.Change {
	exit := false
	pending := make(map[string]int, len(remote))
	var remotes []event.Change
	for _, c := range remote {
		if c.IsExit() {
			exit = true
			continue
		}
		if _, dup := pending[c.Key()]; dup {
			slog.Warn("conflict resolver duplicate remote change", "path", c.Key(), "change", c)
		} else {
			pending[c.Key()] = len(remotes)
		}
		remotes = append(remotes, c)
	}

	used := make([]bool, len(remotes))
	var out []event.Change
	for _, c := range local {
		if c.IsExit() {
			exit = true
			continue
		}
		i, ok := pending[c.Key()]
		if !ok || used[i] {
			out = append(out, c)
			continue
		}
		used[i] = true
		solution := strategy.Resolve(c, remotes[i])
		slog.Warn("conflict", "path", c.Key(), "local", c, "remote", remotes[i], "strategy", strategy.Name(), "solution", solution)
		out = append(out, solution...)
	}

	for i, c := range remotes {
		if !used[i] {
			out = append(out, c)
		}
	}
	if exit {
		out = append(out, event.Exit())
	}
	return out
}
