package store

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/tudu-app/tudu/internal/store/db"
	"github.com/tudu-app/tudu/internal/store/schema"
)

// setupRepo creates a repository over a temporary store.
func setupRepo(t *testing.T) *Repository {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.Logger = log.New(io.Discard, "", 0)
	return New(database, cfg)
}

func list(id string, created int64) *schema.TodoList {
	return &schema.TodoList{ID: id, Title: "List " + id, CreatedAt: created, UpdatedAt: created}
}

func task(id, listID string, created int64) *schema.Task {
	return &schema.Task{ID: id, Text: "Task " + id, CreatedAt: created, UpdatedAt: created, TodoListID: listID}
}

// TestDeleteList_Cascades checks that deleting a list removes the list and
// every task it owns while leaving other lists alone.
func TestDeleteList_Cascades(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for _, l := range []*schema.TodoList{list("home", 1), list("work", 2)} {
		if err := repo.AddList(ctx, l); err != nil {
			t.Fatalf("AddList() failed: %v", err)
		}
	}
	for i, id := range []string{"t1", "t2", "t3"} {
		if err := repo.AddTask(ctx, task(id, "home", int64(10+i))); err != nil {
			t.Fatalf("AddTask() failed: %v", err)
		}
	}
	if err := repo.AddTask(ctx, task("w1", "work", 20)); err != nil {
		t.Fatalf("AddTask() failed: %v", err)
	}

	removed, err := repo.DeleteList(ctx, "home")
	if err != nil {
		t.Fatalf("DeleteList() failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("DeleteList() removed %d tasks, want 3", removed)
	}

	if _, err := repo.List(ctx, "home"); !errors.Is(err, ErrNotFound) {
		t.Errorf("List(home) error = %v, want ErrNotFound", err)
	}
	tasks, err := repo.TasksByList(ctx, "home")
	if err != nil {
		t.Fatalf("TasksByList() failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("TasksByList(home) = %d tasks, want 0", len(tasks))
	}

	remaining, err := repo.AllTasks(ctx)
	if err != nil {
		t.Fatalf("AllTasks() failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "w1" {
		t.Errorf("AllTasks() = %+v, want only w1", remaining)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.DeleteTask(ctx, "missing"); err != nil {
		t.Errorf("DeleteTask(missing) error = %v, want nil", err)
	}
	if n, err := repo.DeleteList(ctx, "missing"); err != nil || n != 0 {
		t.Errorf("DeleteList(missing) = %d, %v, want 0, nil", n, err)
	}
}

func TestTask_NotFound(t *testing.T) {
	repo := setupRepo(t)
	if _, err := repo.Task(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Task(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPutTask_Upserts(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.AddList(ctx, list("home", 1)); err != nil {
		t.Fatalf("AddList() failed: %v", err)
	}
	tk := task("t1", "home", 5)
	if err := repo.PutTask(ctx, tk); err != nil {
		t.Fatalf("PutTask() failed: %v", err)
	}
	tk.Completed = true
	tk.UpdatedAt = 6
	if err := repo.PutTask(ctx, tk); err != nil {
		t.Fatalf("PutTask() failed: %v", err)
	}

	got, err := repo.Task(ctx, "t1")
	if err != nil {
		t.Fatalf("Task() failed: %v", err)
	}
	if !got.Completed || got.UpdatedAt != 6 {
		t.Errorf("Task() = %+v, want completed with updatedAt 6", got)
	}
}

// TestTaskWrites_RequireList checks that no write path stores a task whose
// list is missing, including an edit that races a list delete.
func TestTaskWrites_RequireList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.AddTask(ctx, task("t1", "no-such-list", 5)); !errors.Is(err, ErrUnknownList) {
		t.Errorf("AddTask() error = %v, want ErrUnknownList", err)
	}

	if err := repo.AddList(ctx, list("home", 1)); err != nil {
		t.Fatalf("AddList() failed: %v", err)
	}
	tk := task("t2", "home", 5)
	if err := repo.AddTask(ctx, tk); err != nil {
		t.Fatalf("AddTask() failed: %v", err)
	}
	if _, err := repo.DeleteList(ctx, "home"); err != nil {
		t.Fatalf("DeleteList() failed: %v", err)
	}

	tk.Completed = true
	if err := repo.PutTask(ctx, tk); !errors.Is(err, ErrUnknownList) {
		t.Errorf("PutTask() after list delete error = %v, want ErrUnknownList", err)
	}

	snap, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if len(snap.Tasks) != 0 {
		t.Errorf("Snapshot() tasks = %+v, want none", snap.Tasks)
	}
	if err := snap.Validate(); err != nil {
		t.Errorf("Snapshot().Validate() = %v", err)
	}
}

func TestTasksByStatus(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_ = repo.AddList(ctx, list("home", 1))
	_ = repo.AddList(ctx, list("work", 2))
	done := task("t1", "home", 3)
	done.Completed = true
	for _, tk := range []*schema.Task{done, task("t2", "home", 4), task("t3", "home", 5), task("w1", "work", 6)} {
		if err := repo.AddTask(ctx, tk); err != nil {
			t.Fatalf("AddTask() failed: %v", err)
		}
	}

	pending, err := repo.TasksByStatus(ctx, "home", false)
	if err != nil {
		t.Fatalf("TasksByStatus() failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "t3" || pending[1].ID != "t2" {
		t.Errorf("TasksByStatus(home, false) = %+v, want [t3 t2]", pending)
	}
}

func TestReplace_OverwritesStore(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.AddList(ctx, list("old", 1)); err != nil {
		t.Fatalf("AddList() failed: %v", err)
	}
	if err := repo.AddTask(ctx, task("old-task", "old", 2)); err != nil {
		t.Fatalf("AddTask() failed: %v", err)
	}

	snap := &schema.Snapshot{
		TodoLists: []schema.TodoList{*list("L1", 100)},
		Tasks:     []schema.Task{*task("T1", "L1", 200)},
	}
	if err := repo.Replace(ctx, snap); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}

	got, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if len(got.TodoLists) != 1 || got.TodoLists[0].ID != "L1" {
		t.Errorf("lists = %+v, want only L1", got.TodoLists)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "T1" {
		t.Errorf("tasks = %+v, want only T1", got.Tasks)
	}
}

// TestReplace_RollsBack checks that a failing record leaves the previous
// contents in place.
func TestReplace_RollsBack(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.AddList(ctx, list("keep", 1)); err != nil {
		t.Fatalf("AddList() failed: %v", err)
	}

	snap := &schema.Snapshot{
		TodoLists: []schema.TodoList{*list("L1", 100), *list("L1", 100)},
	}
	if err := repo.Replace(ctx, snap); err == nil {
		t.Fatal("Replace() with duplicate ids succeeded, want error")
	}

	lists, err := repo.Lists(ctx)
	if err != nil {
		t.Fatalf("Lists() failed: %v", err)
	}
	if len(lists) != 1 || lists[0].ID != "keep" {
		t.Errorf("Lists() = %+v, want the original list", lists)
	}
}

func TestSnapshot_EmptyStore(t *testing.T) {
	repo := setupRepo(t)
	snap, err := repo.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if snap.TodoLists == nil || snap.Tasks == nil {
		t.Error("Snapshot() of an empty store returned nil slices")
	}
}

func TestStats(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_ = repo.AddList(ctx, list("home", 1))
	done := task("t1", "home", 2)
	done.Completed = true
	_ = repo.AddTask(ctx, done)
	_ = repo.AddTask(ctx, task("t2", "home", 3))

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if stats.Lists != 1 || stats.Tasks != 2 || stats.Completed != 1 {
		t.Errorf("Stats() = %+v, want 1 list, 2 tasks, 1 completed", stats)
	}
	if stats.SchemaVersion != db.SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", stats.SchemaVersion, db.SchemaVersion)
	}
}

// TestRead_RetriesInvalidState checks that reads retry a transient
// failure and then succeed.
func TestRead_RetriesInvalidState(t *testing.T) {
	repo := setupRepo(t)
	orig := repo.view

	calls := 0
	repo.view = func(ctx context.Context, fn func(*db.Tx) error) error {
		calls++
		if calls < 3 {
			return db.ErrInvalidState
		}
		return orig(ctx, fn)
	}

	if _, err := repo.Lists(context.Background()); err != nil {
		t.Fatalf("Lists() failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("view called %d times, want 3", calls)
	}
}

func TestRead_GivesUpAfterMaxRetries(t *testing.T) {
	repo := setupRepo(t)

	calls := 0
	repo.view = func(context.Context, func(*db.Tx) error) error {
		calls++
		return db.ErrInvalidState
	}

	_, err := repo.TasksByList(context.Background(), "home")
	if !errors.Is(err, db.ErrInvalidState) {
		t.Fatalf("TasksByList() error = %v, want ErrInvalidState", err)
	}
	if calls != 4 {
		t.Errorf("view called %d times, want 4 (1 attempt + 3 retries)", calls)
	}
}

func TestRead_OtherErrorsNotRetried(t *testing.T) {
	repo := setupRepo(t)
	boom := errors.New("disk on fire")

	calls := 0
	repo.view = func(context.Context, func(*db.Tx) error) error {
		calls++
		return boom
	}

	_, err := repo.Lists(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Lists() error = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("view called %d times, want 1", calls)
	}
}

func TestWrites_NotRetried(t *testing.T) {
	repo := setupRepo(t)

	calls := 0
	repo.update = func(context.Context, func(*db.Tx) error) error {
		calls++
		return db.ErrInvalidState
	}

	err := repo.AddList(context.Background(), list("home", 1))
	if !errors.Is(err, db.ErrInvalidState) {
		t.Fatalf("AddList() error = %v, want ErrInvalidState", err)
	}
	if calls != 1 {
		t.Errorf("update called %d times, want 1", calls)
	}
}
