package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tudu-app/tudu/internal/gist"
	"github.com/tudu-app/tudu/internal/snapshot"
	"github.com/tudu-app/tudu/internal/store/schema"
)

// Format selects the snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor infers the format from a file name; anything that is not
// .yaml or .yml is JSON.
func FormatFor(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// ExportName is the file name used for an export in format.
func ExportName(format Format) string {
	if format == FormatYAML {
		return "tasks.yaml"
	}
	return snapshot.FileName
}

// ExportSnapshot encodes the whole store and hands it to the Exporter,
// if one is configured. The encoded payload is returned either way.
func (s *State) ExportSnapshot(ctx context.Context, format Format) ([]byte, error) {
	s.begin()
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, s.fail("export tasks", err)
	}
	data, err := encode(snap, format)
	if err != nil {
		return nil, s.fail("export tasks", err)
	}
	if s.exporter != nil {
		if err := s.exporter.Save(ExportName(format), data); err != nil {
			return nil, s.fail("export tasks", err)
		}
	}
	s.finish(nil)
	return data, nil
}

// ImportSnapshot imports from source: a gist URL goes through the gist
// API, any other http(s) URL is downloaded, and anything else is read as
// a local file path. The store is replaced, not merged.
func (s *State) ImportSnapshot(ctx context.Context, source string) error {
	source = strings.TrimSpace(source)
	if id, ok := gist.IDFromURL(source); ok {
		return s.ImportFromGist(ctx, id)
	}

	s.begin()
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = s.remote.FetchURL(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return s.fail("import tasks", err)
	}
	return s.importData(ctx, data, FormatFor(source))
}

// ImportPayload imports an already loaded payload.
func (s *State) ImportPayload(ctx context.Context, data []byte, format Format) error {
	s.begin()
	return s.importData(ctx, data, format)
}

// ImportFromGist replaces the store with the snapshot held in gist id.
// Failures are reported, not retried.
func (s *State) ImportFromGist(ctx context.Context, id string) error {
	s.begin()
	content, err := s.remote.ReadFile(ctx, id, s.token())
	if err != nil {
		return s.fail("import from gist", err)
	}
	return s.importData(ctx, []byte(content), FormatJSON)
}

// PushSnapshotToGist writes the whole store to the configured gist. It
// does nothing and reports false unless a gist id and a credential in an
// accepted format are configured.
func (s *State) PushSnapshotToGist(ctx context.Context) (bool, error) {
	id, ok := gist.ParseID(s.gistID())
	token := s.token()
	if !ok || !gist.ValidToken(token) {
		return false, nil
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to push to gist: %w", err)
	}
	data, err := snapshot.Encode(snap)
	if err != nil {
		return false, fmt.Errorf("failed to push to gist: %w", err)
	}
	if err := s.remote.WriteFile(ctx, id, token, string(data)); err != nil {
		return false, fmt.Errorf("failed to push to gist: %w", err)
	}
	s.logger.Printf("Pushed %d list(s) and %d task(s) to gist %s", len(snap.TodoLists), len(snap.Tasks), id)
	return true, nil
}

// PullFromGist imports the configured gist. It reports false without a
// request when no gist id is configured.
func (s *State) PullFromGist(ctx context.Context) (bool, error) {
	id, ok := gist.ParseID(s.gistID())
	if !ok {
		return false, nil
	}
	if err := s.ImportFromGist(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// importData decodes data and replaces the store. Caller has called begin.
func (s *State) importData(ctx context.Context, data []byte, format Format) error {
	snap, err := decode(data, format)
	if err != nil {
		return s.fail("import tasks", err)
	}
	if err := s.store.Replace(ctx, snap); err != nil {
		return s.fail("import tasks", err)
	}

	lists, err := s.store.Lists(ctx)
	if err != nil {
		return s.fail("fetch todo lists", err)
	}
	current := pickCurrent(s.CurrentList(), lists)
	var tasks []schema.Task
	if current != "" {
		if tasks, err = s.store.TasksByList(ctx, current); err != nil {
			return s.fail("fetch tasks", err)
		}
	}

	s.finish(func(st *Status) {
		st.Lists = lists
		st.CurrentList = current
		st.Tasks = tasks
	})
	s.logger.Printf("Imported %d list(s) and %d task(s)", len(snap.TodoLists), len(snap.Tasks))
	return nil
}

func encode(snap *schema.Snapshot, format Format) ([]byte, error) {
	if format == FormatYAML {
		return snapshot.EncodeYAML(snap)
	}
	return snapshot.Encode(snap)
}

func decode(data []byte, format Format) (*schema.Snapshot, error) {
	if format == FormatYAML {
		return snapshot.DecodeYAML(data)
	}
	return snapshot.Decode(data)
}

func (s *State) gistID() string {
	if s.settings == nil {
		return ""
	}
	return s.settings.GistID()
}

func (s *State) token() string {
	if s.settings == nil {
		return ""
	}
	return s.settings.Token()
}
