package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/orientation_tracker/internal/orientation"
	"github.com/relabs-tech/orientation_tracker/internal/tracker"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsClientQueue  = 16
)

// ChangeEvent is pushed to websocket clients on every orientation change.
type ChangeEvent struct {
	Type        string                  `json:"type"` // "output" or "preview"
	Orientation orientation.Orientation `json:"orientation"`
	Rotation    int                     `json:"rotation"`
}

type snapshotMessage struct {
	Type  string        `json:"type"` // "snapshot"
	State tracker.State `json:"state"`
}

// Hub fans orientation changes out to websocket clients. Sends never block:
// a client whose queue is full misses the event.
type Hub struct {
	mu      sync.Mutex
	clients map[string]chan []byte
}

var _ tracker.Observer = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{clients: make(map[string]chan []byte)}
}

func (h *Hub) OnOutputOrientationChanged(o orientation.Orientation) {
	h.broadcast(ChangeEvent{Type: "output", Orientation: o, Rotation: int(o.Rotation())})
}

func (h *Hub) OnPreviewOrientationChanged(o orientation.Orientation) {
	h.broadcast(ChangeEvent{Type: "preview", Orientation: o, Rotation: int(o.Rotation())})
}

func (h *Hub) broadcast(ev ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("web: json marshal error: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- payload:
		default:
			log.Printf("web: client %s is slow, dropping %s event", id, ev.Type)
		}
	}
}

func (h *Hub) join() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, wsClientQueue)
	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *Hub) leave(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// WebServer exposes the tracker over HTTP:
//
//	GET      /api/orientation  current state
//	PUT/POST /api/mode         {"mode":"..."} switches the output mode
//	GET      /ws               snapshot, then a stream of ChangeEvents
//	/                          static files
type WebServer struct {
	tracker  *tracker.Tracker
	hub      *Hub
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

func NewWebServer(tr *tracker.Tracker, hub *Hub, staticDir string) *WebServer {
	s := &WebServer{
		tracker: tr,
		hub:     hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local development
			},
		},
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/orientation", s.handleOrientation)
	s.mux.HandleFunc("/api/mode", s.handleMode)
	s.mux.HandleFunc("/ws", s.handleWS)
	if staticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return s
}

func (s *WebServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *WebServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("web: shutdown error: %v", err)
		}
	}()

	log.Printf("web server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebServer) handleOrientation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.tracker.Snapshot())
}

func (s *WebServer) handleMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, modeCommand{Mode: s.tracker.Mode().String()})
		return
	case http.MethodPut, http.MethodPost:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cmd modeCommand
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&cmd); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	mode, err := orientation.ParseOutputMode(cmd.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.tracker.SetTargetMode(mode); err != nil {
		// The mode is applied even when a source failed to subscribe.
		log.Printf("web: set mode %s: %v", mode, err)
	}
	writeJSON(w, s.tracker.Snapshot())
}

func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, events := s.hub.join()
	defer s.hub.leave(id)
	log.Printf("web: client %s connected", id)

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(snapshotMessage{Type: "snapshot", State: s.tracker.Snapshot()}); err != nil {
		log.Printf("web: client %s write error: %v", id, err)
		return
	}

	// Reader: clients may send {"mode":"..."}; a read error means the
	// client went away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var cmd modeCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				var syntaxErr *json.SyntaxError
				if errors.As(err, &syntaxErr) {
					continue
				}
				return
			}
			mode, err := orientation.ParseOutputMode(cmd.Mode)
			if err != nil {
				log.Printf("web: client %s: %v", id, err)
				continue
			}
			if err := s.tracker.SetTargetMode(mode); err != nil {
				log.Printf("web: set mode %s: %v", mode, err)
			}
		}
	}()

	for {
		select {
		case <-closed:
			log.Printf("web: client %s disconnected", id)
			return
		case msg := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("web: client %s write error: %v", id, err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}
