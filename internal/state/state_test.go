package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tudu-app/tudu/internal/clock"
	"github.com/tudu-app/tudu/internal/gist"
	"github.com/tudu-app/tudu/internal/snapshot"
	"github.com/tudu-app/tudu/internal/store"
	"github.com/tudu-app/tudu/internal/store/db"
	"github.com/tudu-app/tudu/internal/store/schema"
)

const testGistID = "0123456789abcdef0123456789abcdef"

var validToken = "ghp_" + strings.Repeat("k", 36)

// failingStore wraps a real repository and fails selected operations.
type failingStore struct {
	*store.Repository
	fail map[string]error
}

func (f *failingStore) AddList(ctx context.Context, l *schema.TodoList) error {
	if err := f.fail["AddList"]; err != nil {
		return err
	}
	return f.Repository.AddList(ctx, l)
}

func (f *failingStore) TasksByList(ctx context.Context, listID string) ([]schema.Task, error) {
	if err := f.fail["TasksByList"]; err != nil {
		return nil, err
	}
	return f.Repository.TasksByList(ctx, listID)
}

func (f *failingStore) PutTask(ctx context.Context, t *schema.Task) error {
	if err := f.fail["PutTask"]; err != nil {
		return err
	}
	return f.Repository.PutTask(ctx, t)
}

func (f *failingStore) Replace(ctx context.Context, snap *schema.Snapshot) error {
	if err := f.fail["Replace"]; err != nil {
		return err
	}
	return f.Repository.Replace(ctx, snap)
}

// fakeRemote serves one gist file and records writes.
type fakeRemote struct {
	mu      sync.Mutex
	content string
	readErr error
	urls    map[string][]byte
	writes  []string
}

func (r *fakeRemote) ReadFile(_ context.Context, id, _ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return "", r.readErr
	}
	return r.content, nil
}

func (r *fakeRemote) WriteFile(_ context.Context, id, token, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, content)
	return nil
}

func (r *fakeRemote) FetchURL(_ context.Context, url string) ([]byte, error) {
	data, ok := r.urls[url]
	if !ok {
		return nil, fmt.Errorf("%w: 404", gist.ErrNetwork)
	}
	return data, nil
}

type fakeSettings struct {
	gistID, token string
	autoSync      bool
}

func (s fakeSettings) GistID() string { return s.gistID }
func (s fakeSettings) Token() string  { return s.token }
func (s fakeSettings) AutoSync() bool { return s.autoSync }

type memExporter struct {
	name string
	data []byte
}

func (e *memExporter) Save(name string, data []byte) error {
	e.name, e.data = name, data
	return nil
}

type fixture struct {
	state    *State
	store    *failingStore
	remote   *fakeRemote
	clock    *clock.Fake
	exporter *memExporter
	notified int
}

func newFixture(t *testing.T, settings Settings) *fixture {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := store.DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.Logger = log.New(io.Discard, "", 0)

	f := &fixture{
		store:    &failingStore{Repository: store.New(database, cfg), fail: map[string]error{}},
		remote:   &fakeRemote{urls: map[string][]byte{}},
		clock:    clock.NewFake(time.UnixMilli(1_700_000_000_000)),
		exporter: &memExporter{},
	}
	seq := 0
	f.state = New(Config{
		Store:    f.store,
		Remote:   f.remote,
		Settings: settings,
		Exporter: f.exporter,
		Clock:    f.clock,
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	f.state.SetChangeNotifier(func() { f.notified++ })
	require.NoError(t, f.state.Load(context.Background()))
	return f
}

// TestCreateAndToggleTask covers creating a list, adding a task and
// toggling it.
func TestCreateAndToggleTask(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	list, err := f.state.CreateList(ctx, "  Home ")
	require.NoError(t, err)
	assert.Equal(t, "Home", list.Title)
	assert.Equal(t, list.ID, f.state.CurrentList())

	task, err := f.state.CreateTask(ctx, "Buy milk")
	require.NoError(t, err)
	assert.False(t, task.Completed)
	assert.Equal(t, list.ID, task.TodoListID)

	st := f.state.Status()
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "Buy milk", st.Tasks[0].Text)

	// Same wall-clock millisecond: updatedAt must still move forward.
	require.NoError(t, f.state.ToggleTask(ctx, task.ID))
	toggled, ok := f.state.Task(task.ID)
	require.True(t, ok)
	assert.True(t, toggled.Completed)
	assert.Greater(t, toggled.UpdatedAt, task.UpdatedAt)

	stored, err := f.store.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed)

	assert.Equal(t, 3, f.notified)
}

func TestCreateTask_PrependsAndKeepsPositions(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	_, err := f.state.CreateList(ctx, "Home")
	require.NoError(t, err)
	a, _ := f.state.CreateTask(ctx, "a")
	f.clock.Advance(time.Millisecond)
	b, _ := f.state.CreateTask(ctx, "b")
	f.clock.Advance(time.Millisecond)
	c, _ := f.state.CreateTask(ctx, "c")

	ids := func() []string {
		var out []string
		for _, tk := range f.state.Status().Tasks {
			out = append(out, tk.ID)
		}
		return out
	}
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, ids())

	require.NoError(t, f.state.RenameTask(ctx, b.ID, "bee"))
	require.NoError(t, f.state.ToggleTask(ctx, a.ID))
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, ids())

	renamed, _ := f.state.Task(b.ID)
	assert.Equal(t, "bee", renamed.Text)

	require.NoError(t, f.state.RemoveTask(ctx, c.ID))
	assert.Equal(t, []string{b.ID, a.ID}, ids())
}

func TestValidation_NoStorageCall(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	_, err := f.state.CreateList(ctx, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.state.CreateTask(ctx, "orphan")
	assert.ErrorIs(t, err, ErrNoListSelected)

	list, err := f.state.CreateList(ctx, "Home")
	require.NoError(t, err)

	_, err = f.state.CreateTask(ctx, "\t\n")
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, f.state.RenameList(ctx, list.ID, ""), ErrValidation)

	lists, err := f.store.Lists(ctx)
	require.NoError(t, err)
	assert.Len(t, lists, 1)
	assert.NotEmpty(t, f.state.Status().Error)
}

func TestUnknownIDsAreNoops(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	assert.NoError(t, f.state.RenameList(ctx, "missing", "x"))
	assert.NoError(t, f.state.ToggleTask(ctx, "missing"))
	assert.NoError(t, f.state.RenameTask(ctx, "missing", "x"))
	assert.False(t, f.state.Status().Loading)
	assert.Zero(t, f.notified)
}

// TestStorageFailure checks that a failed write leaves memory untouched
// and surfaces the error.
func TestStorageFailure(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	_, err := f.state.CreateList(ctx, "Home")
	require.NoError(t, err)
	task, err := f.state.CreateTask(ctx, "Plan")
	require.NoError(t, err)

	boom := errors.New("disk full")
	f.store.fail["PutTask"] = boom

	err = f.state.ToggleTask(ctx, task.ID)
	assert.ErrorIs(t, err, boom)

	st := f.state.Status()
	assert.False(t, st.Loading)
	assert.Contains(t, st.Error, "failed to toggle task")
	assert.False(t, st.Tasks[0].Completed)

	// The next action clears the error on entry.
	delete(f.store.fail, "PutTask")
	require.NoError(t, f.state.ToggleTask(ctx, task.ID))
	assert.Empty(t, f.state.Status().Error)
}

// TestRemoveList_FallsBack deletes the current list owning three tasks.
func TestRemoveList_FallsBack(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	work, err := f.state.CreateList(ctx, "Work")
	require.NoError(t, err)
	_, err = f.state.CreateTask(ctx, "w")
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	home, err := f.state.CreateList(ctx, "Home")
	require.NoError(t, err)
	for _, text := range []string{"a", "b", "c"} {
		_, err := f.state.CreateTask(ctx, text)
		require.NoError(t, err)
	}

	require.NoError(t, f.state.RemoveList(ctx, home.ID))

	st := f.state.Status()
	assert.Equal(t, work.ID, st.CurrentList)
	require.Len(t, st.Lists, 1)
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "w", st.Tasks[0].Text)

	left, err := f.store.TasksByList(ctx, home.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	require.NoError(t, f.state.RemoveList(ctx, work.ID))
	st = f.state.Status()
	assert.Empty(t, st.CurrentList)
	assert.Empty(t, st.Lists)
	assert.Empty(t, st.Tasks)
}

func TestRemoveList_OtherListKeepsSelection(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	other, _ := f.state.CreateList(ctx, "Other")
	current, _ := f.state.CreateList(ctx, "Current")
	_, _ = f.state.CreateTask(ctx, "keep me")

	require.NoError(t, f.state.RemoveList(ctx, other.ID))
	st := f.state.Status()
	assert.Equal(t, current.ID, st.CurrentList)
	assert.Len(t, st.Tasks, 1)
}

// TestRemoveList_NotifiesWhenReloadFails checks that a durable delete is
// still reported to the change notifier when loading the next list fails.
func TestRemoveList_NotifiesWhenReloadFails(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	work, _ := f.state.CreateList(ctx, "Work")
	home, _ := f.state.CreateList(ctx, "Home")
	before := f.notified

	f.store.fail["TasksByList"] = errors.New("disk on fire")
	err := f.state.RemoveList(ctx, home.ID)
	require.Error(t, err)

	assert.Equal(t, before+1, f.notified)
	st := f.state.Status()
	assert.Equal(t, work.ID, st.CurrentList)
	assert.Len(t, st.Lists, 1)
	assert.Contains(t, st.Error, "disk on fire")
}

func TestSelectList_RejectsUnknownList(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	home, err := f.state.CreateList(ctx, "Home")
	require.NoError(t, err)

	err = f.state.SelectList(ctx, "no-such-list")
	assert.ErrorIs(t, err, ErrUnknownList)
	assert.Equal(t, home.ID, f.state.CurrentList())

	task, err := f.state.CreateTask(ctx, "Buy milk")
	require.NoError(t, err)
	assert.Equal(t, home.ID, task.TodoListID)
}

// TestCreateTask_ListDeletedElsewhere removes the current list behind the
// state's back, as another process would, and checks that no orphan task
// reaches the gist.
func TestCreateTask_ListDeletedElsewhere(t *testing.T) {
	f := newFixture(t, fakeSettings{gistID: testGistID, token: validToken, autoSync: true})
	ctx := context.Background()

	home, err := f.state.CreateList(ctx, "Home")
	require.NoError(t, err)
	_, err = f.store.Repository.DeleteList(ctx, home.ID)
	require.NoError(t, err)

	_, err = f.state.CreateTask(ctx, "Buy milk")
	assert.ErrorIs(t, err, store.ErrUnknownList)

	ok, err := f.state.PushSnapshotToGist(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, f.remote.writes)

	f.remote.content = f.remote.writes[len(f.remote.writes)-1]
	ok, err = f.state.PullFromGist(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReloadTasks_SeesOtherWriters(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	home, err := f.state.CreateList(ctx, "Home")
	require.NoError(t, err)
	require.NoError(t, f.store.Repository.AddTask(ctx, &schema.Task{
		ID: "elsewhere", Text: "from another terminal", CreatedAt: 5, UpdatedAt: 5, TodoListID: home.ID,
	}))
	assert.Empty(t, f.state.Status().Tasks)

	require.NoError(t, f.state.ReloadTasks(ctx))
	tasks := f.state.Status().Tasks
	require.Len(t, tasks, 1)
	assert.Equal(t, "elsewhere", tasks[0].ID)
}

func TestLoad_SelectsFirstList(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	first, _ := f.state.CreateList(ctx, "First")
	f.clock.Advance(time.Second)
	_, _ = f.state.CreateList(ctx, "Second")

	reloaded := New(Config{Store: f.store, Clock: f.clock, CurrentList: "vanished"})
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, first.ID, reloaded.CurrentList())
	assert.Len(t, reloaded.Status().Lists, 2)
}

func scenarioPayload() string {
	return `{"todoLists":[{"id":"L1","title":"Work","createdAt":1,"updatedAt":1}],` +
		`"tasks":[{"id":"T1","todoListId":"L1","text":"Plan","completed":false,"createdAt":2,"updatedAt":2}]}`
}

// TestImport_ReplacesStore imports a one-list snapshot over existing data.
func TestImport_ReplacesStore(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	_, _ = f.state.CreateList(ctx, "Old")
	_, _ = f.state.CreateTask(ctx, "old task")
	f.notified = 0

	require.NoError(t, f.state.ImportPayload(ctx, []byte(scenarioPayload()), FormatJSON))

	st := f.state.Status()
	require.Len(t, st.Lists, 1)
	assert.Equal(t, "Work", st.Lists[0].Title)
	assert.Equal(t, "L1", st.CurrentList)
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "Plan", st.Tasks[0].Text)

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.TodoLists, 1)
	assert.Len(t, snap.Tasks, 1)
	assert.Zero(t, f.notified, "imports must not notify")
}

// TestImport_MalformedLeavesStore checks a bad payload changes nothing.
func TestImport_MalformedLeavesStore(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	list, _ := f.state.CreateList(ctx, "Keep")

	err := f.state.ImportPayload(ctx, []byte("{not json"), FormatJSON)
	assert.ErrorIs(t, err, snapshot.ErrMalformedPayload)

	lists, err := f.store.Lists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, list.ID, lists[0].ID)
	assert.NotEmpty(t, f.state.Status().Error)
}

func TestImportSnapshot_Sources(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	f.remote.urls["https://example.com/tasks.json"] = []byte(scenarioPayload())
	require.NoError(t, f.state.ImportSnapshot(ctx, "https://example.com/tasks.json"))
	assert.Equal(t, "L1", f.state.CurrentList())

	f.remote.content = `{"todoLists":[{"id":"G1","title":"Gist","createdAt":1,"updatedAt":1}],"tasks":[]}`
	require.NoError(t, f.state.ImportSnapshot(ctx, "https://gist.github.com/octocat/"+testGistID))
	assert.Equal(t, "G1", f.state.CurrentList())

	path := filepath.Join(t.TempDir(), "tasks.yaml")
	yamlPayload := "todoLists:\n  - id: Y1\n    title: Yaml\n    createdAt: 1\n    updatedAt: 1\ntasks: []\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlPayload), 0o600))
	require.NoError(t, f.state.ImportSnapshot(ctx, path))
	assert.Equal(t, "Y1", f.state.CurrentList())

	err := f.state.ImportSnapshot(ctx, "https://example.com/missing.json")
	assert.ErrorIs(t, err, gist.ErrNetwork)
}

func TestImportFromGist_Failure(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	f.remote.readErr = fmt.Errorf("gist: %w", gist.ErrFileMissing)

	err := f.state.ImportFromGist(context.Background(), testGistID)
	assert.ErrorIs(t, err, gist.ErrFileMissing)
	assert.Contains(t, f.state.Status().Error, "import from gist")
}

func TestExportSnapshot(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	_, _ = f.state.CreateList(ctx, "Home")
	_, _ = f.state.CreateTask(ctx, "Buy milk")

	data, err := f.state.ExportSnapshot(ctx, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "tasks.json", f.exporter.name)
	assert.Equal(t, data, f.exporter.data)

	snap, err := snapshot.Decode(data)
	require.NoError(t, err)
	assert.Len(t, snap.Tasks, 1)

	_, err = f.state.ExportSnapshot(ctx, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "tasks.yaml", f.exporter.name)
}

func TestPushSnapshotToGist_Gating(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		settings fakeSettings
		pushed   bool
	}{
		{"no gist", fakeSettings{token: validToken}, false},
		{"bad token", fakeSettings{gistID: testGistID, token: "ghp_short"}, false},
		{"configured", fakeSettings{gistID: testGistID, token: validToken}, true},
		{"gist url", fakeSettings{gistID: "https://gist.github.com/me/" + testGistID, token: validToken}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.settings)
			pushed, err := f.state.PushSnapshotToGist(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.pushed, pushed)
			assert.Equal(t, tt.pushed, len(f.remote.writes) == 1)
		})
	}
}

func TestVisibleTasks(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	_, _ = f.state.CreateList(ctx, "Home")
	milk, _ := f.state.CreateTask(ctx, "Buy milk")
	f.clock.Advance(time.Millisecond)
	_, _ = f.state.CreateTask(ctx, "Walk dog")
	f.clock.Advance(time.Millisecond)
	_, _ = f.state.CreateTask(ctx, "buy bread")
	require.NoError(t, f.state.ToggleTask(ctx, milk.ID))

	texts := func() []string {
		var out []string
		for _, tk := range f.state.VisibleTasks() {
			out = append(out, tk.Text)
		}
		return out
	}
	assert.Equal(t, []string{"buy bread", "Walk dog", "Buy milk"}, texts())

	f.state.SetFilter("BUY")
	assert.Equal(t, []string{"buy bread", "Buy milk"}, texts())
}

func TestSetViewMode(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	require.NoError(t, f.state.SetViewMode(ModeText))
	assert.Equal(t, ModeText, f.state.Status().Mode)
	assert.ErrorIs(t, f.state.SetViewMode("grid"), ErrValidation)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	ctx := context.Background()

	var seen []Status
	cancel := f.state.Subscribe(func(st Status) { seen = append(seen, st) })

	_, err := f.state.CreateList(ctx, "Home")
	require.NoError(t, err)

	require.NotEmpty(t, seen)
	assert.True(t, seen[0].Loading)
	last := seen[len(seen)-1]
	assert.False(t, last.Loading)
	assert.Len(t, last.Lists, 1)

	cancel()
	n := len(seen)
	f.state.SetFilter("x")
	assert.Len(t, seen, n)
}

func TestCreateList_StorageFailure(t *testing.T) {
	f := newFixture(t, fakeSettings{})
	f.store.fail["AddList"] = errors.New("read-only")

	_, err := f.state.CreateList(context.Background(), "Home")
	require.Error(t, err)
	st := f.state.Status()
	assert.Empty(t, st.Lists)
	assert.Empty(t, st.CurrentList)
	assert.Zero(t, f.notified)
}
