package apihttp

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
	"github.com/XITRIX/iTorrent-v2/internal/services/background"
	"github.com/XITRIX/iTorrent-v2/internal/services/monitoring"
	"github.com/XITRIX/iTorrent-v2/internal/services/preferences"
	"github.com/XITRIX/iTorrent-v2/internal/services/scopes"
	"github.com/XITRIX/iTorrent-v2/internal/services/torrent"
)

type Server struct {
	registry   *torrent.Service
	scopes     *scopes.Manager
	prefs      *preferences.Manager
	monitor    *monitoring.Service
	controller *background.Controller
	logger     *slog.Logger
	handler    http.Handler
	wsHub      *wsHub
}

type ServerOption func(*Server)

func WithScopes(m *scopes.Manager) ServerOption {
	return func(s *Server) { s.scopes = m }
}

func WithPreferences(m *preferences.Manager) ServerOption {
	return func(s *Server) { s.prefs = m }
}

func WithMonitoring(m *monitoring.Service) ServerOption {
	return func(s *Server) { s.monitor = m }
}

func WithBackground(c *background.Controller) ServerOption {
	return func(s *Server) { s.controller = c }
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(registry *torrent.Service, opts ...ServerOption) *Server {
	s := &Server{registry: registry}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	// Push registry events straight to connected clients; the registry
	// already throttles per handle.
	registry.SubscribeUpdates(func(pair torrent.UpdatePair) {
		s.wsHub.Broadcast("update", pair.Current)
	})
	registry.SubscribeRemovals(func(hashes domain.TorrentHashes) {
		s.wsHub.Broadcast("removed", hashes)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/torrents", s.handleTorrents)
	mux.HandleFunc("/torrents/", s.handleTorrentByHash)
	mux.HandleFunc("/scopes", s.handleScopes)
	mux.HandleFunc("/scopes/", s.handleScopeByID)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/background", s.handleBackground)
	mux.HandleFunc("/background/start", s.handleBackgroundStart)
	mux.HandleFunc("/background/stop", s.handleBackgroundStop)
	mux.HandleFunc("/badge", s.handleBadge)
	mux.HandleFunc("/deeplink", s.handleDeepLink)
	mux.HandleFunc("/internal/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "session-core",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/internal/health" && !strings.HasPrefix(p, "/ws")
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(corsMiddleware(traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Close disconnects all WebSocket clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
