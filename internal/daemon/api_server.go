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
	"time"

	"log/slog"

	"playarr/internal/api"
	"playarr/internal/config"
	"playarr/internal/logging"
	"playarr/internal/matcher"
	"playarr/internal/scanner"
	"playarr/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	svc    *api.Service

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
		svc:    d.svc,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/libraries", srv.handleLibraries)
	mux.HandleFunc("/api/libraries/", srv.handleLibraryItem)
	mux.HandleFunc("/api/scans", srv.handleScans)
	mux.HandleFunc("/api/scans/", srv.handleScanItem)
	mux.HandleFunc("/api/records", srv.handleRecords)
	mux.HandleFunc("/api/records/", srv.handleRecordItem)
	mux.HandleFunc("/api/match", srv.handleMatch)
	mux.HandleFunc("/api/operations/", srv.handleOperation)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
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
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
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

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	operations := make([]api.OperationProgress, 0, len(status.Operations))
	for _, snap := range status.Operations {
		operations = append(operations, api.FromSnapshot(snap))
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		APIAddress:   status.APIAddress,
		Libraries:    status.Libraries,
		Operations:   operations,
	})
}

func (s *apiServer) handleLibraries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		libraries, err := s.svc.Libraries(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.LibraryListResponse{Libraries: libraries})
	case http.MethodPost:
		var req api.AddLibraryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Path) == "" {
			s.writeError(w, http.StatusBadRequest, "path is required")
			return
		}
		library, err := s.svc.AddLibrary(r.Context(), req.Path, req.Name)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, library)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleLibraryItem(w http.ResponseWriter, r *http.Request) {
	id, action, ok := parseItemPath(r.URL.Path, "/api/libraries/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "library not found")
		return
	}
	switch {
	case action == "" && r.Method == http.MethodDelete:
		if err := s.svc.RemoveLibrary(r.Context(), id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	case action == "scan" && r.Method == http.MethodPost:
		scan, err := s.svc.StartScan(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, scan)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleScans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	scans, err := s.svc.Scans(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ScanListResponse{Scans: scans})
}

func (s *apiServer) handleScanItem(w http.ResponseWriter, r *http.Request) {
	id, action, ok := parseItemPath(r.URL.Path, "/api/scans/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		scan, err := s.svc.GetScan(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, scan)
	case action == "progress" && r.Method == http.MethodGet:
		view, err := s.svc.GetScanProgress(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, view)
	case action == "cancel" && r.Method == http.MethodPost:
		if err := s.svc.CancelScan(r.Context(), id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]bool{"cancelling": true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	var filter store.RecordFilter
	if value := strings.TrimSpace(query.Get("library")); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid library id")
			return
		}
		filter.LibraryPathID = id
	}
	filter.BrokenOnly = queryFlag(query.Get("broken"))
	filter.UnmatchedOnly = queryFlag(query.Get("unmatched"))

	records, err := s.svc.Records(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordListResponse{Records: records})
}

func (s *apiServer) handleRecordItem(w http.ResponseWriter, r *http.Request) {
	id, action, ok := parseItemPath(r.URL.Path, "/api/records/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "record not found")
		return
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		record, err := s.svc.GetRecord(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, record)
	case action == "rescan" && r.Method == http.MethodPost:
		record, err := s.svc.RescanFile(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, record)
	case action == "recalculate" && r.Method == http.MethodPost:
		record, err := s.svc.RecalculateRating(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, record)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	operationID, err := s.svc.StartMatch(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"operationId": operationID})
}

func (s *apiServer) handleOperation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	operationID := strings.TrimPrefix(r.URL.Path, "/api/operations/")
	if operationID == "" || strings.Contains(operationID, "/") {
		s.writeError(w, http.StatusNotFound, "operation not found")
		return
	}
	view, err := s.svc.GetOperationProgress(r.Context(), operationID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// parseItemPath splits "/api/<kind>/{id}" or "/api/<kind>/{id}/{action}".
func parseItemPath(path, prefix string) (int64, string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" {
		return 0, "", false
	}
	idStr, action, _ := strings.Cut(rest, "/")
	if strings.Contains(action, "/") {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, action, true
}

func queryFlag(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, api.ErrOperationUnknown):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrScanConflict), errors.Is(err, matcher.ErrMatchRunning):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scanner.ErrScanNotActive):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
