// Package snapshot encodes and decodes the full store contents as a single
// text payload, the unit of export, import and remote sync.
//
// The JSON form is the interchange format:
//
//	{
//	  "todoLists": [{"id": "...", "title": "...", "createdAt": 0, "updatedAt": 0}],
//	  "tasks": [{"id": "...", "text": "...", "completed": false, ...}]
//	}
//
// Decoding is strict: every record field is required and typed, ids are
// unique and every task's list must be present in the same payload.
// Anything else fails with ErrMalformedPayload before the caller touches
// the store.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tudu-app/tudu/internal/store/schema"
)

// FileName is the name used for exports and for the file inside the gist.
const FileName = "tasks.json"

// ErrMalformedPayload is returned when a payload cannot be decoded into a
// valid snapshot.
var ErrMalformedPayload = errors.New("malformed payload")

// wire types mirror schema records with pointer fields so a missing field
// can be told apart from a zero value.
type wireSnapshot struct {
	TodoLists *[]wireList `json:"todoLists" yaml:"todoLists"`
	Tasks     *[]wireTask `json:"tasks" yaml:"tasks"`
}

type wireList struct {
	ID        *string `json:"id" yaml:"id"`
	Title     *string `json:"title" yaml:"title"`
	CreatedAt *int64  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt *int64  `json:"updatedAt" yaml:"updatedAt"`
}

type wireTask struct {
	ID         *string `json:"id" yaml:"id"`
	Text       *string `json:"text" yaml:"text"`
	Completed  *bool   `json:"completed" yaml:"completed"`
	CreatedAt  *int64  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  *int64  `json:"updatedAt" yaml:"updatedAt"`
	TodoListID *string `json:"todoListId" yaml:"todoListId"`
}

// Encode renders snap as indented JSON (two spaces).
func Encode(snap *schema.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(normalize(snap), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a JSON payload produced by Encode (or a compatible
// client). Record order is preserved.
func Decode(data []byte) (*schema.Snapshot, error) {
	var w wireSnapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after snapshot", ErrMalformedPayload)
	}
	return w.snapshot()
}

// EncodeYAML renders snap as YAML with the same field names as Encode.
func EncodeYAML(snap *schema.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(normalize(snap)); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeYAML is Decode for YAML payloads.
func DecodeYAML(data []byte) (*schema.Snapshot, error) {
	var w wireSnapshot
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return w.snapshot()
}

// normalize makes empty collections encode as [] rather than null.
func normalize(snap *schema.Snapshot) *schema.Snapshot {
	out := &schema.Snapshot{TodoLists: snap.TodoLists, Tasks: snap.Tasks}
	if out.TodoLists == nil {
		out.TodoLists = []schema.TodoList{}
	}
	if out.Tasks == nil {
		out.Tasks = []schema.Task{}
	}
	return out
}

func (w *wireSnapshot) snapshot() (*schema.Snapshot, error) {
	if w.TodoLists == nil {
		return nil, fmt.Errorf("%w: missing field todoLists", ErrMalformedPayload)
	}
	if w.Tasks == nil {
		return nil, fmt.Errorf("%w: missing field tasks", ErrMalformedPayload)
	}

	snap := &schema.Snapshot{
		TodoLists: make([]schema.TodoList, 0, len(*w.TodoLists)),
		Tasks:     make([]schema.Task, 0, len(*w.Tasks)),
	}
	for i, l := range *w.TodoLists {
		if l.ID == nil || l.Title == nil || l.CreatedAt == nil || l.UpdatedAt == nil {
			return nil, fmt.Errorf("%w: todoLists[%d]: missing required field", ErrMalformedPayload, i)
		}
		snap.TodoLists = append(snap.TodoLists, schema.TodoList{
			ID:        *l.ID,
			Title:     *l.Title,
			CreatedAt: *l.CreatedAt,
			UpdatedAt: *l.UpdatedAt,
		})
	}
	for i, t := range *w.Tasks {
		if t.ID == nil || t.Text == nil || t.Completed == nil ||
			t.CreatedAt == nil || t.UpdatedAt == nil || t.TodoListID == nil {
			return nil, fmt.Errorf("%w: tasks[%d]: missing required field", ErrMalformedPayload, i)
		}
		snap.Tasks = append(snap.Tasks, schema.Task{
			ID:         *t.ID,
			Text:       *t.Text,
			Completed:  *t.Completed,
			CreatedAt:  *t.CreatedAt,
			UpdatedAt:  *t.UpdatedAt,
			TodoListID: *t.TodoListID,
		})
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return snap, nil
}
