package store_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/tudu-app/tudu/internal/store"
	"github.com/tudu-app/tudu/internal/store/db"
	"github.com/tudu-app/tudu/internal/store/schema"
)

// This example creates a list with one task and reads it back.
func ExampleRepository() {
	dir, err := os.MkdirTemp("", "tudu-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	database, err := db.Open(filepath.Join(dir, "tudu.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	cfg := store.DefaultConfig()
	cfg.Logger = log.New(io.Discard, "", 0)
	repo := store.New(database, cfg)
	ctx := context.Background()

	list := &schema.TodoList{ID: "groceries", Title: "Groceries", CreatedAt: 1, UpdatedAt: 1}
	if err := repo.AddList(ctx, list); err != nil {
		log.Fatal(err)
	}
	task := &schema.Task{ID: "milk", Text: "Buy milk", CreatedAt: 2, UpdatedAt: 2, TodoListID: "groceries"}
	if err := repo.AddTask(ctx, task); err != nil {
		log.Fatal(err)
	}

	tasks, err := repo.TasksByList(ctx, "groceries")
	if err != nil {
		log.Fatal(err)
	}
	for _, t := range tasks {
		fmt.Println(t.Text, t.Completed)
	}
	// Output: Buy milk false
}

// This example removes a list together with its tasks.
func ExampleRepository_DeleteList() {
	dir, err := os.MkdirTemp("", "tudu-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	database, err := db.Open(filepath.Join(dir, "tudu.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	repo := store.New(database, store.Config{Logger: log.New(io.Discard, "", 0)})
	ctx := context.Background()

	_ = repo.AddList(ctx, &schema.TodoList{ID: "work", Title: "Work", CreatedAt: 1, UpdatedAt: 1})
	_ = repo.AddTask(ctx, &schema.Task{ID: "a", Text: "Report", CreatedAt: 2, UpdatedAt: 2, TodoListID: "work"})
	_ = repo.AddTask(ctx, &schema.Task{ID: "b", Text: "Review", CreatedAt: 3, UpdatedAt: 3, TodoListID: "work"})

	removed, err := repo.DeleteList(ctx, "work")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("removed", removed)
	// Output: removed 2
}
