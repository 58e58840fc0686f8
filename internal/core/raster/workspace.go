package raster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// WorkspacePrefix names every per-document temp directory
const WorkspacePrefix = "marksheet-"

var (
	removeAttempts = 5
	removeBackoff  = 200 * time.Millisecond

	removeAll = os.RemoveAll
	sleep     = time.Sleep
)

// Workspace is a temporary directory owned by one document call
type Workspace struct {
	Dir string
}

// NewWorkspace creates a fresh workspace under root, or the system temp dir when root is empty
func NewWorkspace(root string) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("create temp root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, WorkspacePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Close removes the workspace. Removal is retried with a growing delay since
// a page file can still be held open briefly by an engine process.
func (w *Workspace) Close() error {
	var err error
	for attempt := 1; attempt <= removeAttempts; attempt++ {
		if err = removeAll(w.Dir); err == nil {
			return nil
		}
		log.Warn().Err(err).Str("dir", w.Dir).Int("attempt", attempt).Msg("workspace cleanup failed")
		if attempt < removeAttempts {
			sleep(removeBackoff * time.Duration(attempt))
		}
	}
	return fmt.Errorf("remove workspace %s: %w", w.Dir, err)
}

// Sweep deletes workspaces under root whose modification time is older than
// maxAge, returning how many were removed. These are left behind only when
// a process dies mid-document.
func Sweep(root string, maxAge time.Duration) (int, error) {
	if root == "" {
		root = os.TempDir()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), WorkspacePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
