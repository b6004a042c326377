package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tudu-app/tudu/internal/autosync"
	"github.com/tudu-app/tudu/internal/config"
	"github.com/tudu-app/tudu/internal/gist"
	"github.com/tudu-app/tudu/internal/logging"
	"github.com/tudu-app/tudu/internal/state"
	"github.com/tudu-app/tudu/internal/store"
	"github.com/tudu-app/tudu/internal/store/db"
	"github.com/tudu-app/tudu/internal/store/schema"
	"github.com/tudu-app/tudu/internal/ui"
)

// app is the composition root shared by every command.
type app struct {
	cfg      *config.Config
	logs     *logging.Factory
	db       *db.DB
	repo     *store.Repository
	remote   *gist.Client
	state    *state.State
	sync     *autosync.Coordinator
	exporter *fileExporter

	startList string
	dirty     bool
}

// openApp wires configuration, storage and state, exiting on failure.
func openApp(ctx context.Context) *app {
	a, err := newApp(ctx, false)
	if err != nil {
		fatalf("%v", err)
	}
	return a
}

// newApp builds the app. With useLogFile, logs go to the configured
// log_file, or to stderr when none is set.
func newApp(ctx context.Context, useLogFile bool) (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	vals := cfg.Values()

	opts := logging.Options{Verbose: verbose || useLogFile}
	if useLogFile {
		opts.File = vals.LogFile
	}
	logs := logging.New(opts)

	path := vals.Database
	if dbPath != "" {
		path = dbPath
	}
	database, err := db.OpenContext(ctx, path)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	repoConfig := store.DefaultConfig()
	repoConfig.Logger = logs.Logger("store")
	repo := store.New(database, repoConfig)

	remote := gist.New(gist.Config{
		BaseURL: vals.APIURL,
		Logger:  logs.Logger("gist"),
	})

	a := &app{
		cfg:       cfg,
		logs:      logs,
		db:        database,
		repo:      repo,
		remote:    remote,
		exporter:  &fileExporter{},
		startList: vals.CurrentList,
	}
	a.state = state.New(state.Config{
		Store:       repo,
		Remote:      remote,
		Settings:    cfg,
		Exporter:    a.exporter,
		CurrentList: vals.CurrentList,
		Logger:      logs.Logger("state"),
	})
	a.sync = autosync.New(cfg, a.state, autosync.Config{
		DebounceDelay: vals.DebounceDelay,
		PollInterval:  vals.PollInterval,
		Logger:        logs.Logger("sync"),
	})
	a.state.SetChangeNotifier(func() { a.dirty = true })

	if err := a.state.Load(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

// close persists the current list, pushes pending changes when auto sync
// is configured and releases the database.
func (a *app) close(ctx context.Context) {
	if current := a.state.CurrentList(); current != a.startList {
		if err := a.cfg.Set(config.KeyCurrentList, current); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save current list: %v\n", err)
		}
	}

	if a.dirty && a.sync.Active() {
		if ok, err := a.state.PushSnapshotToGist(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", ui.RenderWarn("⚠"), autosync.BannerError, err)
		} else if ok && verbose {
			fmt.Printf("%s Pushed to gist\n", ui.RenderAccent("🔄"))
		}
	}

	if err := a.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	_ = a.logs.Close()
}

// requireList exits when no list is selected.
func (a *app) requireList() schema.TodoList {
	st := a.state.Status()
	for _, l := range st.Lists {
		if l.ID == st.CurrentList {
			return l
		}
	}
	fatalf("no list selected (create one with 'tudu list create <title>')")
	return schema.TodoList{}
}

// resolveList finds a list by id, id prefix or case-insensitive title.
func (a *app) resolveList(ref string) (schema.TodoList, error) {
	lists := a.state.Status().Lists
	var matches []schema.TodoList
	for _, l := range lists {
		if l.ID == ref {
			return l, nil
		}
		if strings.HasPrefix(l.ID, ref) || strings.EqualFold(l.Title, ref) {
			matches = append(matches, l)
		}
	}
	switch len(matches) {
	case 0:
		return schema.TodoList{}, fmt.Errorf("no list matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return schema.TodoList{}, fmt.Errorf("%q matches %d lists", ref, len(matches))
	}
}

// resolveTask finds a task of the current list by 1-based position in
// the visible order, id or id prefix.
func (a *app) resolveTask(ref string) (schema.Task, error) {
	visible := a.state.VisibleTasks()
	if n, err := strconv.Atoi(ref); err == nil && len(ref) < 8 {
		if n < 1 || n > len(visible) {
			return schema.Task{}, fmt.Errorf("no task at position %d", n)
		}
		return visible[n-1], nil
	}

	var matches []schema.Task
	for _, t := range a.state.Status().Tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return schema.Task{}, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return schema.Task{}, fmt.Errorf("%q matches %d tasks", ref, len(matches))
	}
}

// fileExporter writes exported payloads to Path, to Dir/name, or to
// stdout when Path is "-".
type fileExporter struct {
	Dir  string
	Path string

	written string
}

func (e *fileExporter) Save(name string, data []byte) error {
	if e.Path == "-" {
		_, err := os.Stdout.Write(data)
		e.written = "-"
		return err
	}
	path := e.Path
	if path == "" {
		path = filepath.Join(e.Dir, name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	e.written = path
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
