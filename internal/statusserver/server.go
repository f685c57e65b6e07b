// Package statusserver exposes an optional HTTP surface: health, Prometheus
// metrics, and a websocket stream of matches, in the same vein as the
// upstream certstream server's client broadcast.
package statusserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ct-watchtower/watchtower/internal/coordinator"
	"github.com/ct-watchtower/watchtower/internal/metrics"
	"github.com/ct-watchtower/watchtower/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server serves /healthz, /metrics, /stats and /ws.
type Server struct {
	hub   *Hub
	coord *coordinator.Coordinator
	log   *logrus.Logger
	srv   *http.Server
}

// New builds the chi router. coord may be nil if stats aren't available yet.
func New(addr string, hub *Hub, coord *coordinator.Coordinator, log *logrus.Logger) *Server {
	s := &Server{hub: hub, coord: coord, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/stats", s.handleStats)
	r.Get("/ws", s.handleWebsocket)

	s.srv = &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.coord == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := s.coord.Stats()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"processed":` + itoa(snap.Processed) + `,"matches":` + itoa(snap.Matches) + `,"dropped":` + itoa(snap.Dropped) + `}`))
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}

	neg := n < 0
	if neg {
		n = -n
	}

	var buf [20]byte
	i := len(buf)

	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}

	if neg {
		i--
		buf[i] = '-'
	}

	return string(buf[i:])
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.log != nil {
			s.log.WithError(err).Warn("websocket upgrade failed")
		}

		return
	}
	defer conn.Close()

	c := &client{send: make(chan model.MatchRecord, 32)}
	s.hub.register <- c

	defer func() { s.hub.unregister <- c }()

	for rec := range c.send {
		if err := conn.WriteJSON(rec); err != nil {
			return
		}
	}
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
