package dashboard

import (
	"encoding/json"
	"io"
	"log"
	"time"

	"github.com/tudu-app/tudu/internal/autosync"
	"github.com/tudu-app/tudu/internal/state"
	"github.com/tudu-app/tudu/internal/store/schema"
)

// ListData describes one list in a state message.
type ListData struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// TaskData describes one task in a state message.
type TaskData struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	UpdatedAt int64  `json:"updated_at"`
}

// StateData is the payload of a state message.
type StateData struct {
	CurrentList string     `json:"current_list"`
	Lists       []ListData `json:"lists"`
	Tasks       []TaskData `json:"tasks"`
	Loading     bool       `json:"loading"`
	Error       string     `json:"error,omitempty"`
}

// StatsData contains task counts for the current list.
type StatsData struct {
	Lists     int `json:"lists"`
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// Handler formats state and sync events as dashboard messages.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard, "[dashboard] ", log.LstdFlags)
	}
	return &Handler{server: server, logger: logger}
}

// OnState broadcasts the state and the derived stats. It has the
// signature of a state.State subscriber.
func (h *Handler) OnState(st state.Status) {
	data := StateData{
		CurrentList: st.CurrentList,
		Lists:       make([]ListData, 0, len(st.Lists)),
		Tasks:       make([]TaskData, 0, len(st.Tasks)),
		Loading:     st.Loading,
		Error:       st.Error,
	}
	for _, l := range st.Lists {
		data.Lists = append(data.Lists, ListData{ID: l.ID, Title: l.Title})
	}
	for _, t := range st.Tasks {
		data.Tasks = append(data.Tasks, TaskData{
			ID:        t.ID,
			Text:      t.Text,
			Completed: t.Completed,
			UpdatedAt: t.UpdatedAt,
		})
	}

	h.send(MessageTypeState, data)
	h.send(MessageTypeStats, Stats(len(st.Lists), st.Tasks))
}

// OnHealth broadcasts the sync coordinator health. It has the signature
// of an autosync.Coordinator observer.
func (h *Handler) OnHealth(health autosync.Health) {
	if health.Phase == autosync.PhaseError {
		h.logger.Printf("Sync error: %s", health.LastError)
	}
	h.send(MessageTypeSync, health)
}

// Stats counts tasks by completion.
func Stats(lists int, tasks []schema.Task) StatsData {
	stats := StatsData{Lists: lists, Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			stats.Completed++
		}
	}
	stats.Pending = stats.Total - stats.Completed
	return stats
}

func (h *Handler) send(t MessageType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", t, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	})
}
