// Package gateway exposes the conversation pipeline to browsers over a
// websocket endpoint. Each connection gets its own turn controller wired to a
// microphone source fed by binary frames and a speech sink that delivers
// synthesized clips back over the socket.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cadenza-ai/cadenza/internal/capture"
	"github.com/cadenza-ai/cadenza/internal/health"
	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/internal/turn"
	"github.com/cadenza-ai/cadenza/pkg/audio"
)

// ControllerFactory builds a per-session turn controller over the given
// microphone source and speech sink. Called once per accepted connection.
type ControllerFactory func(mic capture.Source, sink audio.Sink) *turn.Controller

// Server accepts websocket sessions and serves the operational HTTP surface
// (health probes and Prometheus metrics).
type Server struct {
	factory ControllerFactory
	metrics *observe.Metrics
	health  *health.Handler
	log     *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithMetrics routes session and HTTP metrics to m.
func WithMetrics(m *observe.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithHealth installs a readiness handler. When absent, a checker-less
// handler (always ready) is used.
func WithHealth(h *health.Handler) ServerOption {
	return func(s *Server) { s.health = h }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// NewServer constructs a Server creating one controller per connection via
// factory.
func NewServer(factory ControllerFactory, opts ...ServerOption) *Server {
	s := &Server{
		factory: factory,
		log:     slog.Default(),
		clients: make(map[string]*Client),
	}
	for _, o := range opts {
		o(s)
	}
	if s.health == nil {
		s.health = health.New()
	}
	return s
}

// Handler returns the HTTP handler serving /ws, /healthz, /readyz, and
// /metrics, wrapped in the tracing/metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.health.Healthz)
	mux.HandleFunc("/readyz", s.health.Readyz)
	mux.Handle("/metrics", promhttp.Handler())

	if s.metrics == nil {
		return mux
	}
	return observe.Middleware(s.metrics)(mux)
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// handleWS upgrades the connection and runs the session until disconnect.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}

	client := newClient(conn, s.log)
	client.ctrl = s.factory(client.mic, client.sink)

	s.register(client)
	defer s.unregister(client)

	client.log.Info("session started")
	client.run(r.Context())
	client.log.Info("session ended", "messages", client.ctrl.Conversation().Len())

	conn.Close(websocket.StatusNormalClosure, "session ended")
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(context.Background(), 1)
	}
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}
