package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
)

// maxLineBytes bounds a POST /decode body. Real report lines are well under 1KB.
const maxLineBytes = 8 << 10

// ObservationStore returns the most recent stored observation for a station.
type ObservationStore interface {
	Latest(ctx context.Context, station string) (metar.Observation, error)
}

// Server exposes health, readiness, metrics and report decoding endpoints.
type Server struct {
	httpServer *http.Server
	fetcher    metar.ReportFetcher
	store      ObservationStore
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// POST /decode routes. GET /metar/{station} is registered when fetcher is
// non-nil and GET /observations/{station} when store is non-nil.
func NewServer(addr string, ready sharedobs.ReadinessChecker, fetcher metar.ReportFetcher, store ObservationStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		fetcher: fetcher,
		store:   store,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /decode", s.handleDecode)
	if fetcher != nil {
		mux.HandleFunc("GET /metar/{station}", s.handleFetch)
	}
	if store != nil {
		mux.HandleFunc("GET /observations/{station}", s.handleLatest)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxLineBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
		return
	}
	s.decodeAndRespond(w, string(body))
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	station, err := metar.NormalizeStation(r.PathValue("station"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	line, err := s.fetcher.FetchReport(r.Context(), station)
	switch {
	case errors.Is(err, metar.ErrStationNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	case err != nil:
		s.logger.Warn("fetch report failed", "station", station, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	s.decodeAndRespond(w, line)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	station, err := metar.NormalizeStation(r.PathValue("station"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	obs, err := s.store.Latest(r.Context(), station)
	switch {
	case errors.Is(err, metar.ErrStationNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case err != nil:
		s.logger.Error("load observation failed", "station", station, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	default:
		writeJSON(w, http.StatusOK, obs)
	}
}

// decodeAndRespond writes the enriched observation, 400 for a line that does
// not match the grammar, or 422 naming the field that failed to decode.
func (s *Server) decodeAndRespond(w http.ResponseWriter, line string) {
	report, err := metar.Parse(line)
	if err != nil {
		var fe *metar.FieldError
		if errors.As(err, &fe) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: fe.Field, Raw: fe.Raw})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, metar.Enrich(report))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
