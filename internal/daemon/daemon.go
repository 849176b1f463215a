package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"playarr/internal/api"
	"playarr/internal/config"
	"playarr/internal/logging"
	"playarr/internal/matcher"
	"playarr/internal/progress"
	"playarr/internal/scanner"
	"playarr/internal/services/servarr"
	"playarr/internal/store"
)

// LibrarySource exposes the root folders of an origin system so the daemon
// can register them as scan roots at startup. Sonarr and Radarr clients
// both satisfy it.
type LibrarySource interface {
	Name() string
	Mappings() []config.PathMapping
	RootFolders(ctx context.Context) ([]servarr.RootFolder, error)
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	scanner *scanner.Scanner
	matcher *matcher.Matcher
	tracker *progress.Tracker
	svc     *api.Service
	sources []LibrarySource

	lockPath string
	lock     *flock.Flock

	cron *cron.Cron
	api  *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	APIAddress   string
	Libraries    int
	Operations   []progress.Snapshot
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, tracker *progress.Tracker, sc *scanner.Scanner, m *matcher.Matcher, logger *slog.Logger, sources ...LibrarySource) (*Daemon, error) {
	if cfg == nil || st == nil || tracker == nil || sc == nil || m == nil {
		return nil, errors.New("daemon requires config, store, tracker, scanner, and matcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		scanner:  sc,
		matcher:  m,
		tracker:  tracker,
		svc:      api.NewService(st, sc, m, tracker),
		sources:  sources,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Service returns the operations facade backing the HTTP API.
func (d *Daemon) Service() *api.Service {
	return d.svc
}

// Start acquires the instance lock, reconciles interrupted scans, syncs
// library roots, and launches the scheduler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another playarr daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if reconciled, err := d.store.ReconcileInterrupted(d.ctx); err != nil {
		d.releaseStart()
		return fmt.Errorf("reconcile interrupted scans: %w", err)
	} else if reconciled > 0 {
		d.logger.Warn("failed scans left running by previous shutdown", logging.Int64("count", reconciled))
	}

	d.syncLibraries(d.ctx)

	if err := d.startScheduler(); err != nil {
		d.releaseStart()
		return err
	}

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.stopScheduler()
		d.releaseStart()
		return err
	}
	d.api = server
	if err := d.api.start(d.ctx); err != nil {
		d.stopScheduler()
		d.releaseStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("playarr daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseStart() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	_ = d.lock.Unlock()
}

// Stop halts background processing, waits for in-flight operations to
// settle, and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.stopScheduler()
	d.api.stop()
	d.scanner.Stop()
	d.matcher.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("playarr daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Operations:   d.tracker.List(),
	}
	if d.api != nil {
		status.APIAddress = d.api.address()
	}
	if paths, err := d.store.ListLibraryPaths(ctx); err == nil {
		status.Libraries = len(paths)
	}
	return status
}

// syncLibraries registers the origin systems' root folders as scan roots.
// Failures are logged and skipped so an unreachable Sonarr does not block
// daemon startup.
func (d *Daemon) syncLibraries(ctx context.Context) {
	for _, source := range d.sources {
		folders, err := source.RootFolders(ctx)
		if err != nil {
			d.logger.Warn("library sync failed",
				logging.String("source", source.Name()),
				logging.Error(err))
			continue
		}
		for _, folder := range folders {
			if !folder.Accessible {
				d.logger.Warn("skipping inaccessible root folder",
					logging.String("source", source.Name()),
					logging.String("path", folder.Path))
				continue
			}
			local := matcher.ApplyMappings(folder.Path, source.Mappings())
			name := filepath.Base(strings.TrimRight(local, "/"))
			if _, err := d.store.AddLibraryPath(ctx, local, name, source.Name()); err != nil {
				d.logger.Warn("failed to register root folder",
					logging.String("source", source.Name()),
					logging.String("path", local),
					logging.Error(err))
				continue
			}
			d.logger.Info("library root registered",
				logging.String("source", source.Name()),
				logging.String("path", local))
		}
	}
}

func (d *Daemon) startScheduler() error {
	schedule := strings.TrimSpace(d.cfg.Scan.Schedule)
	if schedule == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, d.scanAllLibraries); err != nil {
		return fmt.Errorf("scan schedule %q: %w", schedule, err)
	}
	c.Start()
	d.cron = c
	d.logger.Info("scan scheduler started", logging.String("schedule", schedule))
	return nil
}

func (d *Daemon) stopScheduler() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
	d.cron = nil
}

// scanAllLibraries kicks off a scan for every registered library. Libraries
// with a scan already in flight are skipped.
func (d *Daemon) scanAllLibraries() {
	ctx := d.ctx
	if ctx == nil {
		return
	}
	paths, err := d.store.ListLibraryPaths(ctx)
	if err != nil {
		d.logger.Error("scheduled scan: list libraries", logging.Error(err))
		return
	}
	for _, lp := range paths {
		if _, err := d.scanner.StartScan(ctx, lp.ID); err != nil {
			if errors.Is(err, store.ErrScanConflict) {
				d.logger.Debug("scheduled scan skipped, already running",
					logging.Int64(logging.FieldLibrary, lp.ID))
				continue
			}
			d.logger.Error("scheduled scan failed to start",
				logging.Int64(logging.FieldLibrary, lp.ID),
				logging.Error(err))
		}
	}
}
