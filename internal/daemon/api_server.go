package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reelcast/internal/config"
	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// UnitView is the JSON shape of a scheduled unit.
type UnitView struct {
	ID            int64              `json:"id"`
	ItemID        int64              `json:"item_id"`
	Platform      string             `json:"platform"`
	ScheduledTime time.Time          `json:"scheduled_time"`
	Status        store.UnitStatus   `json:"status"`
	Title         string             `json:"title,omitempty"`
	Metadata      store.UnitMetadata `json:"metadata"`
	ExternalID    string             `json:"external_id,omitempty"`
	PublishedURL  string             `json:"published_url,omitempty"`
	PublishedAt   *time.Time         `json:"published_at,omitempty"`
	ErrorKind     string             `json:"error_kind,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	RequeuedFrom  int64              `json:"requeued_from,omitempty"`
}

// NewUnitView converts a stored unit for display.
func NewUnitView(u *store.ScheduledUnit) UnitView {
	return UnitView{
		ID:            u.ID,
		ItemID:        u.ItemID,
		Platform:      u.Platform,
		ScheduledTime: u.ScheduledTime,
		Status:        u.Status,
		Title:         u.Metadata.Title,
		Metadata:      u.Metadata,
		ExternalID:    u.ExternalID,
		PublishedURL:  u.PublishedURL,
		PublishedAt:   u.PublishedAt,
		ErrorKind:     u.ErrorKind,
		ErrorMessage:  u.ErrorMessage,
		RequeuedFrom:  u.RequeuedFrom,
	}
}

// UnitListResponse is returned by GET /api/units.
type UnitListResponse struct {
	Units []UnitView `json:"units"`
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.API.Token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, s.handleStatus))
	mux.HandleFunc("/api/units", authMiddleware(token, s.handleUnits))
	mux.HandleFunc("/api/units/", authMiddleware(token, s.handleUnitAction))
	mux.HandleFunc("/api/notifications/test", authMiddleware(token, s.handleTestNotification))
	if s.daemon != nil && s.daemon.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.daemon.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleUnits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []store.UnitStatus
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				statuses = append(statuses, store.UnitStatus(trimmed))
			}
		}
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	units, err := s.daemon.ListUnits(r.Context(), statuses, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := UnitListResponse{Units: make([]UnitView, 0, len(units))}
	for _, u := range units {
		resp.Units = append(resp.Units, NewUnitView(u))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleUnitAction serves POST /api/units/{id}/requeue.
func (s *apiServer) handleUnitAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/units/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "requeue" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid unit id")
		return
	}
	unit, err := s.daemon.RequeueUnit(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if services.KindOf(err) == services.KindValidation {
			status = http.StatusConflict
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, NewUnitView(unit))
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sent, message, err := s.daemon.TestNotification(r.Context())
	resp := map[string]any{"sent": sent, "message": message}
	if err != nil {
		resp["error"] = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
