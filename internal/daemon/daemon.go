// Package daemon runs tudu in the foreground: it owns the sync
// coordinator and turns commits made by other tudu processes into state
// reloads and debounced pushes.
//
// The daemon:
//  1. Loads the state and starts the coordinator (initial pull, poll loop)
//  2. Watches the database file and its write-ahead log for changes
//  3. Confirms each burst of file events with PRAGMA data_version
//  4. Reloads the state and calls NotifyChanged for external commits
//
// Pulls performed by the coordinator also change data_version. Call
// ResetBaseline after each pull so they are not mistaken for external
// edits and pushed straight back.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/tudu-app/tudu/internal/store/db"
)

// Syncer is the coordinator surface the daemon drives.
type Syncer interface {
	Start(ctx context.Context)
	Stop()
	NotifyChanged()
}

// Reloader refreshes in-memory state from the store.
type Reloader interface {
	Load(ctx context.Context) error
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long file events must be quiet before the
	// data version is checked. This batches a transaction's writes together.
	DebounceInterval time.Duration

	// CheckInterval is how often the data version is checked without any
	// file event, covering filesystems that drop notifications.
	CheckInterval time.Duration

	// Logger for daemon activity (nil = discard)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 100 * time.Millisecond,
		CheckInterval:    5 * time.Second,
	}
}

// Daemon watches the store for external commits on behalf of a Syncer.
type Daemon struct {
	db       *db.DB
	state    Reloader
	syncer   Syncer
	config   *Config
	logger   *log.Logger
	watcher  *FileWatcher
	probe    *db.VersionProbe
	probeMu  sync.Mutex
	baseline int64

	lastEvent   time.Time
	lastEventMu sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped sync.Once
}

// New creates a Daemon for database. Use Start to begin watching.
func New(database *db.DB, state Reloader, syncer Syncer, config *Config) (*Daemon, error) {
	if database == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if state == nil || syncer == nil {
		return nil, fmt.Errorf("state and syncer are required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = defaults.DebounceInterval
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = defaults.CheckInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard, "[daemon] ", log.LstdFlags)
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		db:      database,
		state:   state,
		syncer:  syncer,
		config:  config,
		logger:  logger,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start runs the daemon until ctx is cancelled or Stop is called.
//
// Example:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := d.Start(ctx); err != nil {
//	    return err
//	}
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Println("Starting daemon")

	probe, err := d.db.NewVersionProbe(ctx)
	if err != nil {
		return fmt.Errorf("failed to open version probe: %w", err)
	}
	d.probeMu.Lock()
	d.probe = probe
	d.probeMu.Unlock()

	if err := d.ResetBaseline(); err != nil {
		d.closeProbe()
		return err
	}

	if err := d.state.Load(ctx); err != nil {
		d.closeProbe()
		return fmt.Errorf("failed to load state: %w", err)
	}

	if err := d.watcher.Start(d.db.Path()); err != nil {
		d.closeProbe()
		return err
	}
	d.logger.Printf("Watching: %s", d.db.Path())

	d.syncer.Start(d.ctx)

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChanges()

	select {
	case <-ctx.Done():
		d.logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon and its coordinator.
func (d *Daemon) Stop() error {
	d.stopped.Do(func() {
		d.logger.Println("Stopping daemon")

		d.cancel()
		d.syncer.Stop()

		if err := d.watcher.Stop(); err != nil {
			d.logger.Printf("Error closing watcher: %v", err)
		}

		d.wg.Wait()
		d.closeProbe()

		d.logger.Println("Daemon stopped")
	})
	return nil
}

// ResetBaseline records the current data version as already seen.
func (d *Daemon) ResetBaseline() error {
	d.probeMu.Lock()
	defer d.probeMu.Unlock()

	if d.probe == nil {
		return nil
	}
	v, err := d.probe.DataVersion(d.ctx)
	if err != nil {
		return fmt.Errorf("failed to read data version: %w", err)
	}
	d.baseline = v
	return nil
}

// Check compares the data version with the baseline. When another
// connection has committed it reloads the state, notifies the syncer
// and reports true.
func (d *Daemon) Check(ctx context.Context) (bool, error) {
	d.probeMu.Lock()
	if d.probe == nil {
		d.probeMu.Unlock()
		return false, nil
	}
	v, err := d.probe.DataVersion(ctx)
	if err != nil {
		d.probeMu.Unlock()
		return false, fmt.Errorf("failed to read data version: %w", err)
	}
	changed := v != d.baseline
	d.baseline = v
	d.probeMu.Unlock()

	if !changed {
		return false, nil
	}

	d.logger.Println("External change detected")
	if err := d.state.Load(ctx); err != nil {
		return true, fmt.Errorf("failed to reload state: %w", err)
	}
	d.syncer.NotifyChanged()
	return true, nil
}

func (d *Daemon) closeProbe() {
	d.probeMu.Lock()
	defer d.probeMu.Unlock()
	if d.probe != nil {
		_ = d.probe.Close()
		d.probe = nil
	}
}

// watchFileEvents records the time of the latest database file event.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	events := d.watcher.Events()
	errs := d.watcher.Errors()
	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			d.logger.Printf("File event: %s %s", event.Op, filepath.Base(event.Path))
			d.lastEventMu.Lock()
			d.lastEvent = time.Now()
			d.lastEventMu.Unlock()

		case err, ok := <-errs:
			if !ok {
				return
			}
			d.logger.Printf("Watcher error: %v", err)
		}
	}
}

// processChanges checks the data version once file events settle and
// periodically regardless of events.
func (d *Daemon) processChanges() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()
	lastCheck := time.Now()

	for {
		select {
		case <-d.ctx.Done():
			return

		case now := <-ticker.C:
			d.lastEventMu.Lock()
			settled := !d.lastEvent.IsZero() && now.Sub(d.lastEvent) >= d.config.DebounceInterval
			if settled {
				d.lastEvent = time.Time{}
			}
			d.lastEventMu.Unlock()

			if !settled && now.Sub(lastCheck) < d.config.CheckInterval {
				continue
			}
			lastCheck = now

			if _, err := d.Check(d.ctx); err != nil && d.ctx.Err() == nil {
				d.logger.Printf("Error checking for changes: %v", err)
			}
		}
	}
}
