package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/internal/optimizer"
	"github.com/quantdesk/trading-engine/internal/portfolio"
	"github.com/quantdesk/trading-engine/pkg/types"
)

// Server exposes the read-only reporting API. It never mutates engine
// state; results are pushed into it by the running session.
type Server struct {
	mu     sync.RWMutex
	logger *zap.Logger
	cfg    types.ServerConfig
	hub    *Hub

	httpServer *http.Server
	upgrader   websocket.Upgrader

	books       []*portfolio.Book
	metrics     *types.PerformanceMetrics
	leaderboard []optimizer.Trial
	startedAt   time.Time
}

// NewServer creates the reporting server.
func NewServer(logger *zap.Logger, cfg types.ServerConfig, hub *Hub) *Server {
	s := &Server{
		logger:    logger,
		cfg:       cfg,
		hub:       hub,
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	apiV1 := router.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	apiV1.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	apiV1.HandleFunc("/performance", s.handlePerformance).Methods(http.MethodGet)
	apiV1.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebSocket)
	if cfg.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler())
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("reporting server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("reporting server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SetBooks attaches the live books whose positions the API reports.
func (s *Server) SetBooks(books []*portfolio.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = books
}

// SetPerformance publishes the latest analyzer output.
func (s *Server) SetPerformance(m types.PerformanceMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = &m
}

// SetLeaderboard publishes the latest optimizer ranking.
func (s *Server) SetLeaderboard(trials []optimizer.Trial) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaderboard = trials
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(s.startedAt).String(),
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.PositionSnapshot, 0)
	for _, book := range s.books {
		out = append(out, book.Positions()...)
	}
	s.writeJSON(w, out)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.metrics == nil {
		http.Error(w, "no performance metrics yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, s.metrics)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.leaderboard) == 0 {
		http.Error(w, "no optimizer results yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, s.leaderboard)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := s.hub.attach(conn)
	go s.hub.writePump(c)
	go s.hub.readPump(c)
}

func (s *Server) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encoding response failed", zap.Error(err))
	}
}
