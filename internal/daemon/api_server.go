package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"pipewatch/internal/api"
	"pipewatch/internal/config"
	"pipewatch/internal/journal"
	"pipewatch/internal/logging"
	"pipewatch/internal/pipeline"
)

const defaultLogLimit = 200

type apiServer struct {
	bind    string
	token   string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.handler = srv.routes()
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/components", s.handleComponents)
	mux.HandleFunc("/api/pipelines", s.handlePipelines)
	mux.HandleFunc("/api/pipelines/", s.handlePipeline)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/history", s.handleHistory)
	return s.withRequestID(s.requireToken(mux))
}

// withRequestID tags each request for log correlation.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_serve_failed"),
				logging.String(logging.FieldErrorHint, "restart the daemon"),
				logging.String(logging.FieldImpact, "status API unavailable"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

// addr returns the bound listener address, or "" when not listening.
func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server, listener := s.server, s.listener
	s.server, s.listener = nil, nil
	s.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.APIStatus())
}

func (s *apiServer) handleComponents(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.StatusService().ComponentStatus())
}

func (s *apiServer) handlePipelines(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.StatusService().ActivePipelines())
}

// handlePipeline serves /api/pipelines/{id} and /api/pipelines/{id}/report.
func (s *apiServer) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/pipelines/")
	id, suffix, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "pipeline not found")
		return
	}

	svc := s.daemon.StatusService()
	switch suffix {
	case "":
		run, err := svc.PipelineStatus(id)
		if err != nil {
			s.writeLookupError(w, id, err)
			return
		}
		s.writeJSON(w, http.StatusOK, run)
	case "report":
		report, err := svc.PipelineReport(id)
		if err != nil {
			s.writeLookupError(w, id, err)
			return
		}
		s.writeJSON(w, http.StatusOK, report)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}
	query := r.URL.Query()
	filter := api.LogFilter{
		Component:  strings.TrimSpace(query.Get("component")),
		PipelineID: strings.TrimSpace(query.Get("pipeline")),
		Limit:      parseLimit(query.Get("limit")),
	}
	if since, err := strconv.ParseUint(query.Get("since"), 10, 64); err == nil {
		filter.Since = since
	}
	s.writeJSON(w, http.StatusOK, s.daemon.StatusService().Logs(filter))
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}
	query := r.URL.Query()
	records, source, err := s.daemon.History(r.Context(), journal.HistoryFilter{
		Component:  strings.TrimSpace(query.Get("component")),
		PipelineID: strings.TrimSpace(query.Get("pipeline")),
		Limit:      parseLimit(query.Get("limit")),
	})
	if err != nil {
		logging.WithContext(r.Context(), s.logger).Warn("history query failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_history_failed"),
			logging.String(logging.FieldErrorHint, "check the archive and journal files"),
			logging.String(logging.FieldImpact, "history request returned an error"),
		)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Source: source, Records: api.FromRecords(records)})
}

func parseLimit(value string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || limit <= 0 {
		return defaultLogLimit
	}
	return limit
}

func (s *apiServer) requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func (s *apiServer) writeLookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, pipeline.ErrUnknownRun) {
		s.writeJSON(w, http.StatusNotFound, api.NewNotFound(id))
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_encode_failed"),
			logging.String(logging.FieldErrorHint, "check payload for unsupported values"),
			logging.String(logging.FieldImpact, "client received a truncated response"),
		)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
