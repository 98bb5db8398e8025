package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"domainwatch/internal/metrics"
	"domainwatch/internal/models"
)

const defaultHistoryLimit = 200

// StatusSource exposes the poller state served by the API.
type StatusSource interface {
	Known() []string
	KnownCount() int
	Latest() (models.PollRecord, bool)
	Records(n int) []models.PollRecord
	RecordsSince(cutoff time.Time) []models.PollRecord
	Interval() time.Duration
}

// DetectionSource exposes journaled detection batches.
type DetectionSource interface {
	History(n int) []models.Detection
}

// Options wires a Server.
type Options struct {
	Addr       string
	Status     StatusSource
	Detections DetectionSource
	Hub        *Hub
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
}

// Server wraps HTTP serving of the status API.
type Server struct {
	httpServer   *http.Server
	status       StatusSource
	detections   DetectionSource
	hub          *Hub
	gatherer     prometheus.Gatherer
	logger       *zap.Logger
	historyLimit int
	startedAt    time.Time
}

// StatusResponse is returned by /api/status.
type StatusResponse struct {
	KnownDomains    int                `json:"known_domains"`
	IntervalSeconds int                `json:"interval_seconds"`
	StartedAt       time.Time          `json:"started_at"`
	Latest          *models.PollRecord `json:"latest,omitempty"`
	FeedClients     int                `json:"feed_clients"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// New creates a configured HTTP server for the poller.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		status:       opts.Status,
		detections:   opts.Detections,
		hub:          opts.Hub,
		gatherer:     opts.Gatherer,
		logger:       opts.Logger.Named("server"),
		historyLimit: defaultHistoryLimit,
		startedAt:    time.Now().UTC(),
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	s.logger.Info("listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/domains", s.handleDomains)
		r.Get("/polls", s.handlePolls)
		r.Get("/uptime", s.handleUptime)
		r.Get("/detections", s.handleDetections)
	})

	if s.hub != nil {
		r.Handle("/ws", s.hub)
	}
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		KnownDomains:    s.status.KnownCount(),
		IntervalSeconds: int(s.status.Interval() / time.Second),
		StartedAt:       s.startedAt,
		GeneratedAt:     time.Now().UTC(),
	}
	if latest, ok := s.status.Latest(); ok {
		resp.Latest = &latest
	}
	if s.hub != nil {
		resp.FeedClients = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDomains(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Known())
}

func (s *Server) handlePolls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pollWindow(r))
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.Summarize(s.pollWindow(r)))
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	if s.detections == nil {
		writeJSON(w, http.StatusOK, []models.Detection{})
		return
	}
	history := s.detections.History(parseLimit(r, s.historyLimit))
	if history == nil {
		history = []models.Detection{}
	}
	writeJSON(w, http.StatusOK, history)
}

// pollWindow honours ?since=<RFC3339> and ?limit=<n>.
func (s *Server) pollWindow(r *http.Request) []models.PollRecord {
	limit := parseLimit(r, s.historyLimit)
	records := s.status.Records(limit)
	if raw := r.URL.Query().Get("since"); raw != "" {
		if cutoff, err := time.Parse(time.RFC3339, raw); err == nil {
			records = s.status.RecordsSince(cutoff)
			if len(records) > limit {
				records = records[len(records)-limit:]
			}
		}
	}
	if records == nil {
		records = []models.PollRecord{}
	}
	return records
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
