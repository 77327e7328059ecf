// Package observer streams colony frames to read-only viewers over
// WebSocket. The simulation publishes; clients never send commands.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/forage/telemetry"
)

// Update is the payload of /state and of every /ws message.
type Update struct {
	Type   string             `json:"type"`
	Tick   int32              `json:"tick"`
	Frames []*telemetry.Frame `json:"frames"`
}

type client struct {
	id  uint64
	out chan []byte // holds at most the latest update
}

// Server fans published frames out to connected viewers.
type Server struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.RWMutex
	latest  []byte
	clients map[uint64]*client
}

// NewServer creates a server with no published state.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[uint64]*client),
	}
}

// Publish makes frames the latest state. It never blocks: a client that has
// not consumed the previous update gets it replaced by this one.
func (s *Server) Publish(tick int32, frames []*telemetry.Frame) error {
	b, err := json.Marshal(Update{Type: "frames", Tick: tick, Frames: frames})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	s.mu.Lock()
	s.latest = b
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		offer(c.out, b)
	}
	return nil
}

func offer(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

// Clients returns the number of connected viewers.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Handler serves GET /state and GET /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.StateHandler())
	mux.HandleFunc("/ws", s.WSHandler())
	return mux
}

// StateHandler returns the latest update as JSON, or 204 before the first
// Publish.
func (s *Server) StateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.mu.RLock()
		b := s.latest
		s.mu.RUnlock()
		if b == nil {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write(b)
	}
}

// WSHandler upgrades the connection and streams updates until the client
// goes away.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := &client{id: s.nextID.Add(1), out: make(chan []byte, 1)}
		s.mu.Lock()
		s.clients[c.id] = c
		if s.latest != nil {
			c.out <- s.latest
		}
		s.mu.Unlock()
		s.logger.Debug("observer connected", "client", c.id, "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			delete(s.clients, c.id)
			s.mu.Unlock()
			s.logger.Debug("observer disconnected", "client", c.id)
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Reader: viewers only send close frames; any read error ends the session.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
					time.Now().Add(time.Second))
				return
			case b := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}

// ListenAndServe serves the observer endpoints on addr until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx2)
	}()

	s.logger.Info("observer listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("observer: %w", err)
	}
	return nil
}
