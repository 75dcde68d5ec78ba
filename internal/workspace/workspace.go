package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/trsync/internal/ignore"
	"github.com/openmined/trsync/internal/utils"
)

const (
	metadataDir = ".trsync"
	logsDir     = "logs"
	lockFile    = "trsync.lock"
	stateFile   = "state.db"
	logFile     = "trsync.log"
)

var (
	ErrWorkspaceLocked = errors.New("workspace locked by another process")
)

// Workspace is the synchronized folder and the metadata trsync keeps in it.
// The metadata folder name is hidden, so it is never watched nor scanned.
type Workspace struct {
	Root        string
	MetadataDir string
	LogsDir     string
	StatePath   string
	IgnorePath  string

	flock *flock.Flock
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}
	return layout(root), nil
}

func layout(root string) *Workspace {
	meta := filepath.Join(root, metadataDir)
	return &Workspace{
		Root:        root,
		MetadataDir: meta,
		LogsDir:     filepath.Join(meta, logsDir),
		StatePath:   filepath.Join(meta, stateFile),
		IgnorePath:  filepath.Join(root, ignore.FileName),
		flock:       flock.New(filepath.Join(meta, lockFile)),
	}
}

// LogFile is where the CLI writes its rotated log.
func (w *Workspace) LogFile() string {
	return filepath.Join(w.LogsDir, logFile)
}

func (w *Workspace) Lock() error {
	// other trsync instances must not touch the same folder
	if err := utils.EnsureDir(w.MetadataDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.MetadataDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	// if this process hasn't locked the workspace, then don't delete the lock file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}

	return os.Remove(w.flock.Path())
}

// Setup creates the folder layout and locks the workspace. Root is resolved
// through symlinks so watcher notifications match it.
func (w *Workspace) Setup() error {
	if err := utils.EnsureDir(w.Root); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.Root, err)
	}
	resolved, err := filepath.EvalSymlinks(w.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", w.Root, err)
	}
	if resolved != w.Root {
		*w = *layout(resolved)
	}

	if err := w.Lock(); err != nil {
		return err
	}

	slog.Info("workspace", "root", w.Root)

	if err := utils.EnsureDir(w.LogsDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.LogsDir, err)
	}
	return nil
}

// RelPath returns the slash separated path of absPath inside the workspace.
func (w *Workspace) RelPath(absPath string) (string, error) {
	return utils.RelPath(w.Root, absPath)
}

// AbsPath returns the absolute path of a workspace relative path.
func (w *Workspace) AbsPath(relPath string) string {
	return utils.AbsPath(w.Root, relPath)
}
