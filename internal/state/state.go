// Package state holds the in-memory application state that front ends
// observe and mutate through named actions.
//
// Every action persists through the Store first and only then updates
// memory, so a storage failure leaves memory matching durable state.
// Storage-touching actions raise the loading flag for their duration,
// clear the last error on entry and record a readable message on failure.
//
// Example:
//
//	st := state.New(state.Config{Store: repo, Remote: gistClient, Settings: cfg})
//	if err := st.Load(ctx); err != nil {
//	    return err
//	}
//	list, _ := st.CreateList(ctx, "Home")
//	task, _ := st.CreateTask(ctx, "Buy milk")
//	_ = st.ToggleTask(ctx, task.ID)
package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/tudu-app/tudu/internal/clock"
	"github.com/tudu-app/tudu/internal/store/schema"
)

var (
	// ErrValidation is returned when a title or text is blank after trimming.
	ErrValidation = errors.New("validation failed")

	// ErrNoListSelected is returned when a task is created with no current list.
	ErrNoListSelected = errors.New("no list selected")

	// ErrUnknownList is returned when selecting a list that is not loaded.
	ErrUnknownList = errors.New("unknown list")
)

// Store is the persistence port, implemented by store.Repository.
type Store interface {
	Lists(ctx context.Context) ([]schema.TodoList, error)
	TasksByList(ctx context.Context, listID string) ([]schema.Task, error)
	AddList(ctx context.Context, l *schema.TodoList) error
	PutList(ctx context.Context, l *schema.TodoList) error
	DeleteList(ctx context.Context, id string) (int64, error)
	AddTask(ctx context.Context, t *schema.Task) error
	PutTask(ctx context.Context, t *schema.Task) error
	DeleteTask(ctx context.Context, id string) error
	Snapshot(ctx context.Context) (*schema.Snapshot, error)
	Replace(ctx context.Context, snap *schema.Snapshot) error
}

// Remote is the gist port, implemented by gist.Client.
type Remote interface {
	ReadFile(ctx context.Context, id, token string) (string, error)
	WriteFile(ctx context.Context, id, token, content string) error
	FetchURL(ctx context.Context, url string) ([]byte, error)
}

// Settings exposes the sync configuration. Values are read on every use
// so edits take effect without rebuilding the state.
type Settings interface {
	GistID() string
	Token() string
	AutoSync() bool
}

// Exporter receives exported payloads, e.g. by writing them to a file.
type Exporter interface {
	Save(name string, data []byte) error
}

// Mode is the task view mode.
type Mode string

const (
	ModeList Mode = "list"
	ModeText Mode = "text"
)

// Status is a copy of the observable state.
type Status struct {
	CurrentList string
	Lists       []schema.TodoList
	Tasks       []schema.Task // current list only, newest first
	Loading     bool
	Error       string
	Mode        Mode
	Filter      string
}

// Config holds State dependencies.
type Config struct {
	Store    Store
	Remote   Remote
	Settings Settings
	Exporter Exporter

	// CurrentList is the initially selected list, e.g. from configuration.
	CurrentList string

	// Clock for timestamps (nil = clock.Real)
	Clock clock.Clock

	// NewID generates record ids (nil = random UUIDs)
	NewID func() string

	// Logger for state messages (nil = discard)
	Logger *log.Logger
}

// State is the application state container.
type State struct {
	store    Store
	remote   Remote
	settings Settings
	exporter Exporter
	clock    clock.Clock
	newID    func() string
	logger   *log.Logger

	mu      sync.Mutex
	status  Status
	pending int

	notify  func()
	subs    map[int]func(Status)
	nextSub int
}

// New creates a State. Call Load before use.
func New(config Config) *State {
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "[state] ", log.LstdFlags)
	}
	return &State{
		store:    config.Store,
		remote:   config.Remote,
		settings: config.Settings,
		exporter: config.Exporter,
		clock:    config.Clock,
		newID:    config.NewID,
		logger:   config.Logger,
		status:   Status{CurrentList: config.CurrentList, Mode: ModeList},
		subs:     make(map[int]func(Status)),
	}
}

// SetChangeNotifier registers fn to be called after every successful
// mutation. Imports do not trigger it.
func (s *State) SetChangeNotifier(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// Subscribe registers fn to receive a copy of the state after every
// change. The returned func cancels the subscription.
func (s *State) Subscribe(fn func(Status)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Status returns a copy of the current state.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// CurrentList returns the selected list id, or "".
func (s *State) CurrentList() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.CurrentList
}

func (s *State) copyLocked() Status {
	st := s.status
	st.Lists = append([]schema.TodoList(nil), s.status.Lists...)
	st.Tasks = append([]schema.Task(nil), s.status.Tasks...)
	return st
}

// update applies fn to the state under the lock, then publishes.
func (s *State) update(fn func(*Status)) {
	s.mu.Lock()
	fn(&s.status)
	st := s.copyLocked()
	subs := make([]func(Status), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(st)
	}
}

// begin marks the start of a storage action.
func (s *State) begin() {
	s.update(func(st *Status) {
		s.pending++
		st.Loading = true
		st.Error = ""
	})
}

// finish ends a storage action successfully, applying fn to the state.
func (s *State) finish(fn func(*Status)) {
	s.update(func(st *Status) {
		if fn != nil {
			fn(st)
		}
		s.pending--
		st.Loading = s.pending > 0
	})
}

// fail ends a storage action with an error and records its message.
func (s *State) fail(op string, err error) error {
	err = fmt.Errorf("failed to %s: %w", op, err)
	s.update(func(st *Status) {
		s.pending--
		st.Loading = s.pending > 0
		st.Error = err.Error()
	})
	s.logger.Printf("%v", err)
	return err
}

// reject records a validation error without touching storage.
func (s *State) reject(err error) error {
	s.update(func(st *Status) { st.Error = err.Error() })
	return err
}

// changed tells the change notifier a mutation was persisted.
func (s *State) changed() {
	s.mu.Lock()
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *State) now() int64 {
	return s.clock.Now().UnixMilli()
}
