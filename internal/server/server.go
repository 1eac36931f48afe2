// Package server exposes a controller over WebSocket. Each client receives
// every UiState snapshot as JSON and may send commands back.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chaz8081/focusband/internal/ble"
	"github.com/chaz8081/focusband/internal/broadcast"
	"github.com/chaz8081/focusband/internal/monitor"
)

// Controller is the subset of monitor.Controller the server drives.
type Controller interface {
	Device() ble.Peripheral
	State() monitor.UiState
	Subscribe() *broadcast.Subscription[monitor.UiState]
	RequestConnectionToggle()
	StartMonitoring()
	StopMonitoring()
	Disconnect()
}

var _ Controller = (*monitor.Controller)(nil)

// Request is a command sent by a client.
type Request struct {
	Command string `json:"command"` // "toggle" | "start" | "stop" | "disconnect"
}

// ErrorResponse is sent back for a command the server cannot run.
type ErrorResponse struct {
	Error string `json:"error"`
}

const writeTimeout = 5 * time.Second

// Server serves the snapshot stream at /ws, the current snapshot at /state,
// and the band description at /device.
type Server struct {
	ctrl     Controller
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a Server for ctrl.
func New(ctrl Controller) *Server {
	s := &Server{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/state", s.handleState)
	s.mux.HandleFunc("/device", s.handleDevice)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:     s.mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("[SERVER] listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.ctrl.State()); err != nil {
		slog.Warn("[SERVER] write state failed", "error", err)
	}
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.ctrl.Device().Info()); err != nil {
		slog.Warn("[SERVER] write device failed", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[SERVER] upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	log := slog.With("session", session, "remote", r.RemoteAddr)
	log.Info("[SERVER] client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// gorilla/websocket allows one concurrent writer.
	var writeMu sync.Mutex
	send := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(v)
	}

	sub := s.ctrl.Subscribe()
	defer sub.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		defer conn.Close() // unblocks ReadJSON
		for {
			st, err := sub.Next(ctx)
			if err != nil {
				return
			}
			if err := send(st); err != nil {
				log.Debug("[SERVER] write snapshot failed", "error", err)
				return
			}
		}
	}()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			break
		}
		if err := s.dispatch(req.Command); err != nil {
			log.Debug("[SERVER] rejected command", "command", req.Command)
			if err := send(ErrorResponse{Error: err.Error()}); err != nil {
				break
			}
		}
	}

	cancel()
	wg.Wait()
	log.Info("[SERVER] client disconnected")
}

// dispatch runs one command. Commands themselves never fail; only an
// unknown command name is reported.
func (s *Server) dispatch(command string) error {
	switch command {
	case "toggle":
		s.ctrl.RequestConnectionToggle()
	case "start":
		s.ctrl.StartMonitoring()
	case "stop":
		s.ctrl.StopMonitoring()
	case "disconnect":
		s.ctrl.Disconnect()
	default:
		return fmt.Errorf("unknown command: %q", command)
	}
	return nil
}
