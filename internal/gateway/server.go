// Package gateway exposes the game server over WebSocket: an HTTP listener
// that upgrades /ws connections and a per-connection handler that routes
// protocol messages to game rooms.
package gateway

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/chess-live-server/internal/dispatch"
	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/internal/presets"
	"github.com/park285/chess-live-server/internal/registry"
	"github.com/park285/chess-live-server/internal/room"
)

// Server is the HTTP front of the game server.
type Server struct {
	reg      *registry.Registry
	disp     *dispatch.Dispatcher
	rec      registry.Recorder
	catalog  *presets.Catalog
	defaults room.Settings

	httpServer *http.Server
}

// NewServer wires the listener. rec may be nil when archiving is disabled.
func NewServer(addr string, reg *registry.Registry, disp *dispatch.Dispatcher, rec registry.Recorder, catalog *presets.Catalog, defaults room.Settings) *Server {
	s := &Server{
		reg:      reg,
		disp:     disp,
		rec:      rec,
		catalog:  catalog,
		defaults: defaults,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
		// No global read/write timeouts: WebSocket connections are
		// long-lived and writes carry their own deadlines.
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	obslog.L().Info("server_listen", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight handlers up
// to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server closing")

	h := NewHandler(conn, s.reg, s.disp, s.rec, s.catalog, s.defaults)
	h.Serve(r.Context())
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
