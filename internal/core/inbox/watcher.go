// Package inbox processes documents dropped into an upload directory.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/history"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/processor"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/raster"
)

// typeSeparator splits an optional document type prefix from the file name,
// as in "10th__ravi.pdf".
const typeSeparator = "__"

// StaleWorkspaceAge is how old an orphaned workspace must be before the sweep removes it
const StaleWorkspaceAge = time.Hour

type Processor interface {
	Process(ctx context.Context, docType marksheet.DocumentType, path string) (*marksheet.Result, error)
}

type Exporter interface {
	WriteResult(src string, res *marksheet.Result) (string, error)
}

type History interface {
	Start(ctx context.Context, filename string, docType marksheet.DocumentType) (*history.Record, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, res *marksheet.Result, outputPath string, took time.Duration) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error, took time.Duration) error
	ExistsProcessed(ctx context.Context, filename string) (bool, error)
}

type Config struct {
	Dir         string
	DefaultType marksheet.DocumentType
	Concurrency int
	TempRoot    string
}

// Watcher scans Dir for new documents. Input files are never modified.
type Watcher struct {
	proc     Processor
	exporter Exporter
	history  History
	cfg      Config

	mu       sync.Mutex
	inFlight map[string]bool
	// failed remembers the modification time of documents that failed, so an
	// unchanged file is not retried on every scan
	failed map[string]time.Time
}

func NewWatcher(proc Processor, exporter Exporter, hist History, cfg Config) *Watcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.DefaultType == "" {
		cfg.DefaultType = marksheet.TypeSemester
	}
	return &Watcher{
		proc:     proc,
		exporter: exporter,
		history:  hist,
		cfg:      cfg,
		inFlight: make(map[string]bool),
		failed:   make(map[string]time.Time),
	}
}

// ScanResult summarizes one scan
type ScanResult struct {
	Processed int
	Failed    int
	Skipped   int
}

type candidate struct {
	path    string
	name    string
	docType marksheet.DocumentType
	modTime time.Time
}

// Scan processes every new supported document in the directory, at most
// Concurrency at a time. Per-document failures are recorded in history and
// do not fail the scan. Documents whose history lookup fails are left for
// the next scan and reported in the returned error after the others ran.
func (w *Watcher) Scan(ctx context.Context) (ScanResult, error) {
	var res ScanResult

	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return res, fmt.Errorf("read inbox: %w", err)
	}

	var (
		todo      []candidate
		admitErrs []error
	)
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !processor.Supported(e.Name()) {
			continue
		}
		c, ok, err := w.admit(ctx, e)
		if err != nil {
			// left for the next scan
			admitErrs = append(admitErrs, fmt.Errorf("check %s: %w", e.Name(), err))
			continue
		}
		if !ok {
			res.Skipped++
			continue
		}
		todo = append(todo, c)
	}
	sort.Slice(todo, func(i, j int) bool { return todo[i].name < todo[j].name })

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, c := range todo {
		g.Go(func() error {
			defer w.release(c.name)
			ok := w.handle(gctx, c)
			mu.Lock()
			if ok {
				res.Processed++
			} else {
				res.Failed++
			}
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, errors.Join(admitErrs...)
}

// admit decides whether a directory entry should be processed in this scan
// and claims it when so.
func (w *Watcher) admit(ctx context.Context, e os.DirEntry) (candidate, bool, error) {
	info, err := e.Info()
	if err != nil {
		return candidate{}, false, nil
	}
	c := candidate{
		path:    filepath.Join(w.cfg.Dir, e.Name()),
		name:    e.Name(),
		docType: w.documentType(e.Name()),
		modTime: info.ModTime(),
	}

	w.mu.Lock()
	if w.inFlight[c.name] {
		w.mu.Unlock()
		return c, false, nil
	}
	if t, ok := w.failed[c.name]; ok && t.Equal(c.modTime) {
		w.mu.Unlock()
		return c, false, nil
	}
	w.mu.Unlock()

	done, err := w.history.ExistsProcessed(ctx, c.name)
	if err != nil {
		return c, false, err
	}
	if done {
		return c, false, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight[c.name] {
		return c, false, nil
	}
	w.inFlight[c.name] = true
	return c, true, nil
}

func (w *Watcher) release(name string) {
	w.mu.Lock()
	delete(w.inFlight, name)
	w.mu.Unlock()
}

// handle runs one document and records the outcome
func (w *Watcher) handle(ctx context.Context, c candidate) bool {
	logger := log.With().Str("file", c.name).Str("type", string(c.docType)).Logger()
	started := time.Now()

	rec, err := w.history.Start(ctx, c.name, c.docType)
	if err != nil {
		logger.Error().Err(err).Msg("failed to record start")
		return false
	}

	fail := func(cause error) bool {
		w.mu.Lock()
		w.failed[c.name] = c.modTime
		w.mu.Unlock()
		if err := w.history.MarkFailed(context.WithoutCancel(ctx), rec.ID, cause, time.Since(started)); err != nil {
			logger.Error().Err(err).Msg("failed to record failure")
		}
		logger.Warn().Err(cause).Str("kind", marksheet.KindOf(cause).String()).Msg("document failed")
		return false
	}

	result, err := w.proc.Process(ctx, c.docType, c.path)
	if err != nil {
		return fail(err)
	}
	out, err := w.exporter.WriteResult(c.path, result)
	if err != nil {
		return fail(fmt.Errorf("export: %w", err))
	}
	if err := w.history.MarkProcessed(context.WithoutCancel(ctx), rec.ID, result, out, time.Since(started)); err != nil {
		logger.Error().Err(err).Msg("failed to record result")
		return false
	}

	w.mu.Lock()
	delete(w.failed, c.name)
	w.mu.Unlock()
	logger.Info().Int("rows", len(result.Rows)).Str("output", out).Msg("document processed")
	return true
}

// documentType reads the "<type>__" prefix, falling back to the default type
func (w *Watcher) documentType(name string) marksheet.DocumentType {
	prefix, _, found := strings.Cut(name, typeSeparator)
	if !found {
		return w.cfg.DefaultType
	}
	t, err := marksheet.ParseDocumentType(prefix)
	if err != nil {
		return w.cfg.DefaultType
	}
	return t
}

// Sweep removes workspaces orphaned by crashed runs
func (w *Watcher) Sweep() {
	n, err := raster.Sweep(w.cfg.TempRoot, StaleWorkspaceAge)
	if err != nil {
		log.Warn().Err(err).Msg("workspace sweep incomplete")
	}
	if n > 0 {
		log.Info().Int("removed", n).Msg("stale workspaces removed")
	}
}

// Schedule registers the scan and sweep jobs on s. Scans run under ctx.
func (w *Watcher) Schedule(ctx context.Context, s *Scheduler, scanSpec, sweepSpec string) error {
	if err := s.Add("inbox-scan", scanSpec, func() {
		res, err := w.Scan(ctx)
		if err != nil {
			log.Error().Err(err).Msg("inbox scan failed")
			return
		}
		if res.Processed+res.Failed > 0 {
			log.Info().Int("processed", res.Processed).Int("failed", res.Failed).Int("skipped", res.Skipped).Msg("inbox scan finished")
		}
	}); err != nil {
		return err
	}
	return s.Add("workspace-sweep", sweepSpec, w.Sweep)
}

// Run sweeps stale workspaces, starts the schedule and an initial scan, and
// blocks until ctx is done. It then stops the scheduler and waits up to grace
// for the running scans, the initial one included.
func (w *Watcher) Run(ctx context.Context, s *Scheduler, scanSpec, sweepSpec string, grace time.Duration) error {
	if err := w.Schedule(ctx, s, scanSpec, sweepSpec); err != nil {
		return err
	}
	w.Sweep()
	s.Start()

	initial := make(chan struct{})
	go func() {
		defer close(initial)
		if _, err := w.Scan(ctx); err != nil {
			log.Error().Err(err).Msg("initial inbox scan failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("inbox shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	s.Stop(stopCtx)
	select {
	case <-initial:
		return nil
	case <-stopCtx.Done():
		return errors.New("inbox scan still running after the shutdown grace period")
	}
}
