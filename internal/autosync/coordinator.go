// Package autosync keeps the local store and the remote gist loosely
// consistent with a periodic pull and a debounced push.
//
// State machine:
//
//	Idle --NotifyChanged--> ChangePending --debounce--> Pushing --ok--> Idle
//	                                                         \--fail--> Error
//	Idle --tick (no local change)--> pull --fail--> Error
//	Error --Dismiss--> Idle
//
// A tick that finds an unpushed local change clears the flag and skips the
// pull, so a stale remote snapshot never overwrites a change that is about
// to be pushed. Push and pull never overlap. Error is sticky: nothing is
// pulled or pushed until Dismiss.
//
// Sync is active only when a gist id, a well-formed token and the
// auto-sync opt-in are all configured. Settings are read on every check.
package autosync

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tudu-app/tudu/internal/clock"
	"github.com/tudu-app/tudu/internal/gist"
)

// Phase is the coordinator state.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseChangePending Phase = "change_pending"
	PhasePushing       Phase = "pushing"
	PhaseError         Phase = "error"
)

// Banner texts shown to the user.
const (
	BannerActive  = "Sync is active"
	BannerPending = "Sync is active, but there are unsaved changes"
	BannerError   = "Error on sync, please check your connection, Gist ID or GitHub token"
)

// Settings exposes the sync preconditions.
type Settings interface {
	GistID() string
	Token() string
	AutoSync() bool
}

// Target performs the actual transfers, implemented by state.State.
type Target interface {
	PushSnapshotToGist(ctx context.Context) (bool, error)
	PullFromGist(ctx context.Context) (bool, error)
}

// Config holds Coordinator configuration.
type Config struct {
	// DebounceDelay is the quiet period before a push (default 5s).
	DebounceDelay time.Duration

	// PollInterval is the period of the pull loop (default 10s).
	PollInterval time.Duration

	// Clock drives both timers (nil = clock.Real)
	Clock clock.Clock

	// OnPulled is called after every successful pull.
	OnPulled func()

	// Logger for sync messages (nil = discard)
	Logger *log.Logger
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 5 * time.Second,
		PollInterval:  10 * time.Second,
	}
}

// Health is a snapshot of the coordinator for display.
type Health struct {
	Phase      Phase     `json:"phase"`
	HasChanged bool      `json:"has_changed"`
	Active     bool      `json:"active"`
	LastError  string    `json:"last_error,omitempty"`
	LastPush   time.Time `json:"last_push,omitempty"`
	LastPull   time.Time `json:"last_pull,omitempty"`
	Banner     string    `json:"banner,omitempty"`
}

// Coordinator runs the sync state machine.
type Coordinator struct {
	settings Settings
	target   Target
	config   Config
	clock    clock.Clock
	logger   *log.Logger

	// opMu serializes push and pull.
	opMu sync.Mutex

	mu         sync.Mutex
	ctx        context.Context
	running    bool
	phase      Phase
	hasChanged bool
	pushes     int
	lastErr    error
	lastPush   time.Time
	lastPull   time.Time
	debounce   clock.Timer
	debounceID uint64 // bumped whenever debounce is replaced or cancelled
	loop       clock.Timer
	onPulled   func()

	observers map[int]func(Health)
	nextObs   int
}

// New creates a Coordinator. Zero durations in config take the defaults.
func New(settings Settings, target Target, config Config) *Coordinator {
	defaults := DefaultConfig()
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = defaults.DebounceDelay
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "[sync] ", log.LstdFlags)
	}
	return &Coordinator{
		settings:  settings,
		target:    target,
		config:    config,
		clock:     config.Clock,
		logger:    config.Logger,
		ctx:       context.Background(),
		phase:     PhaseIdle,
		onPulled:  config.OnPulled,
		observers: make(map[int]func(Health)),
	}
}

// SetOnPulled replaces the callback run after every successful pull.
func (c *Coordinator) SetOnPulled(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPulled = fn
}

// Active reports whether all sync preconditions hold right now.
func (c *Coordinator) Active() bool {
	if !c.settings.AutoSync() {
		return false
	}
	if _, ok := gist.ParseID(c.settings.GistID()); !ok {
		return false
	}
	return gist.ValidToken(c.settings.Token())
}

// Start runs an initial pull when sync is active and arms the poll loop.
// ctx is used for transfers; cancelling it does not stop the loop.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.ctx = ctx
	c.mu.Unlock()

	c.logger.Printf("Sync coordinator started (debounce=%s, poll=%s, active=%v)",
		c.config.DebounceDelay, c.config.PollInterval, c.Active())

	if c.Active() {
		c.pull()
	}

	c.mu.Lock()
	if c.running {
		c.loop = c.clock.AfterFunc(c.config.PollInterval, c.tick)
	}
	c.mu.Unlock()
}

// Stop cancels future scheduling. A transfer already running completes.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	if c.loop != nil {
		c.loop.Stop()
		c.loop = nil
	}
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.debounceID++
}

// NotifyChanged records a local mutation and (re)arms the debounce timer.
// Bursts of calls produce one push, DebounceDelay after the last call.
func (c *Coordinator) NotifyChanged() {
	c.mu.Lock()
	c.armDebounceLocked()
	c.hasChanged = true
	if c.phase == PhaseIdle {
		c.phase = PhaseChangePending
	}
	c.mu.Unlock()
	c.publish()
}

// Dismiss clears a sticky error. If a local change is still unpushed the
// debounce is re-armed.
func (c *Coordinator) Dismiss() {
	c.mu.Lock()
	if c.phase != PhaseError {
		c.mu.Unlock()
		return
	}
	c.lastErr = nil
	c.phase = PhaseIdle
	if c.hasChanged {
		c.armDebounceLocked()
		c.phase = PhaseChangePending
	}
	c.mu.Unlock()
	c.logger.Printf("Sync error dismissed")
	c.publish()
}

func (c *Coordinator) armDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounceID++
	id := c.debounceID
	c.debounce = c.clock.AfterFunc(c.config.DebounceDelay, func() { c.flush(id) })
}

// flush is the debounce callback for timer id. A timer that fired while
// being replaced or cancelled does nothing.
func (c *Coordinator) flush(id uint64) {
	c.mu.Lock()
	if id != c.debounceID {
		c.mu.Unlock()
		return
	}
	c.debounce = nil
	if c.phase == PhaseError {
		// Keep hasChanged so Dismiss re-arms the push.
		c.mu.Unlock()
		return
	}
	if !c.Active() {
		if c.phase == PhaseChangePending {
			c.phase = PhaseIdle
		}
		c.mu.Unlock()
		c.publish()
		return
	}
	c.phase = PhasePushing
	c.pushes++
	ctx := c.ctx
	c.mu.Unlock()
	c.publish()

	c.opMu.Lock()
	_, err := c.target.PushSnapshotToGist(ctx)
	c.opMu.Unlock()

	c.mu.Lock()
	c.pushes--
	switch {
	case err != nil:
		c.phase = PhaseError
		c.lastErr = err
		c.logger.Printf("Push failed: %v", err)
	case c.phase == PhaseError:
	default:
		c.lastPush = c.clock.Now()
		if c.pushes > 0 {
			c.phase = PhasePushing
		} else if c.debounce != nil {
			c.phase = PhaseChangePending
		} else {
			c.phase = PhaseIdle
		}
		c.logger.Printf("Pushed local snapshot")
	}
	c.mu.Unlock()
	c.publish()
}

// tick is the poll loop callback. The next tick is armed only after this
// one finishes.
func (c *Coordinator) tick() {
	c.mu.Lock()
	c.loop = nil
	if !c.running {
		c.mu.Unlock()
		return
	}
	pull := false
	switch {
	case c.phase == PhaseError:
	case c.hasChanged:
		c.hasChanged = false
	case c.phase == PhaseChangePending || c.phase == PhasePushing:
	default:
		pull = true
	}
	c.mu.Unlock()

	if pull && c.Active() {
		c.pull()
	} else {
		c.publish()
	}

	c.mu.Lock()
	if c.running && c.loop == nil {
		c.loop = c.clock.AfterFunc(c.config.PollInterval, c.tick)
	}
	c.mu.Unlock()
}

func (c *Coordinator) pull() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	c.opMu.Lock()
	_, err := c.target.PullFromGist(ctx)
	c.opMu.Unlock()

	c.mu.Lock()
	if err != nil {
		c.phase = PhaseError
		c.lastErr = err
		c.logger.Printf("Pull failed: %v", err)
	} else {
		c.lastPull = c.clock.Now()
	}
	onPulled := c.onPulled
	c.mu.Unlock()

	if err == nil && onPulled != nil {
		onPulled()
	}
	c.publish()
}

// Health returns the current coordinator status.
func (c *Coordinator) Health() Health {
	active := c.Active()
	c.mu.Lock()
	defer c.mu.Unlock()

	h := Health{
		Phase:      c.phase,
		HasChanged: c.hasChanged,
		Active:     active,
		LastPush:   c.lastPush,
		LastPull:   c.lastPull,
	}
	if c.lastErr != nil {
		h.LastError = c.lastErr.Error()
	}
	switch {
	case c.phase == PhaseError:
		h.Banner = BannerError
	case active && c.hasChanged:
		h.Banner = BannerPending
	case active:
		h.Banner = BannerActive
	}
	return h
}

// OnHealth registers fn to receive Health after every transition. The
// returned func cancels the registration.
func (c *Coordinator) OnHealth(fn func(Health)) (cancel func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) publish() {
	h := c.Health()
	c.mu.Lock()
	obs := make([]func(Health), 0, len(c.observers))
	for _, fn := range c.observers {
		obs = append(obs, fn)
	}
	c.mu.Unlock()
	for _, fn := range obs {
		fn(h)
	}
}
