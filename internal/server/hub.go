package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kmrl/dochub/internal/core"
)

const defaultWriteWait = 10 * time.Second

// Hub fans progress events out to websocket subscribers of each job.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	// writeWait bounds each write; a subscriber that stops reading is dropped once it passes.
	writeWait time.Duration

	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]*sync.Mutex
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:    logger,
		writeWait: defaultWriteWait,
		subs:      make(map[string]map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish implements core.Publisher.
func (h *Hub) Publish(ev core.Event) {
	type target struct {
		conn *websocket.Conn
		mu   *sync.Mutex
	}
	h.mu.RLock()
	targets := make([]target, 0, len(h.subs[ev.ID]))
	for c, mu := range h.subs[ev.ID] {
		targets = append(targets, target{c, mu})
	}
	h.mu.RUnlock()

	for _, t := range targets {
		if err := h.write(t.conn, t.mu, ev); err != nil {
			h.logger.Debug("server.ws.write_failed", "job_id", ev.ID, "error", err)
			h.remove(ev.ID, t.conn)
		}
	}
}

func (h *Hub) write(c *websocket.Conn, mu *sync.Mutex, v any) error {
	mu.Lock()
	defer mu.Unlock()
	if err := c.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
		return err
	}
	return c.WriteJSON(v)
}

// Subscribers reports how many connections watch jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}

func (h *Hub) add(jobID string, c *websocket.Conn) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*websocket.Conn]*sync.Mutex)
	}
	mu := &sync.Mutex{}
	h.subs[jobID][c] = mu
	return mu
}

func (h *Hub) remove(jobID string, c *websocket.Conn) {
	h.mu.Lock()
	if conns := h.subs[jobID]; conns != nil {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.subs, jobID)
		}
	}
	h.mu.Unlock()
	_ = c.Close()
}

// taskEvents upgrades to a websocket, sends the job's current state and then streams
// progress events until the client disconnects.
func (s *Server) taskEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server.ws.upgrade_failed", "job_id", jobID, "error", err)
		return
	}
	mu := s.hub.add(jobID, conn)

	current := core.Event{ID: job.ID, Status: job.Status}
	if job.Status.Terminal() {
		current.Progress = 100
		current.Stage = string(job.Status)
	}
	if err := s.hub.write(conn, mu, current); err != nil {
		s.hub.remove(jobID, conn)
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.remove(jobID, conn)
}
