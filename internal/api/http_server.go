package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"todone/internal/config"
	"todone/internal/database"
	"todone/internal/domain"
	"todone/internal/export"
	"todone/internal/metrics"
	"todone/internal/models"
	"todone/internal/service"
	"todone/internal/state"
	"todone/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the local REST API: task and project CRUD, queue
// inspection, and sync control. Writes go through the services, so they are
// local-first and queued like any other mutation.
type HTTPServer struct {
	cfg      config.APIConfig
	db       *database.DB
	tasks    *service.TaskService
	projects *service.ProjectService
	labels   *service.LabelService
	collab   *service.CollabService
	engine   domain.SyncEngine
	state    *state.Store
	exporter *export.ExcelExporter
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	db *database.DB,
	tasks *service.TaskService,
	projects *service.ProjectService,
	labels *service.LabelService,
	collab *service.CollabService,
	engine domain.SyncEngine,
	stateStore *state.Store,
	exporter *export.ExcelExporter,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:      cfg,
		db:       db,
		tasks:    tasks,
		projects: projects,
		labels:   labels,
		collab:   collab,
		engine:   engine,
		state:    stateStore,
		exporter: exporter,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/tasks", srv.handleTasks)
	mux.HandleFunc("/api/v1/tasks/", srv.handleTaskByID)
	mux.HandleFunc("/api/v1/projects", srv.handleProjects)
	mux.HandleFunc("/api/v1/projects/", srv.handleProjectByID)
	mux.HandleFunc("/api/v1/labels", srv.handleLabels)
	mux.HandleFunc("/api/v1/filters", srv.handleFilters)
	mux.HandleFunc("/api/v1/sync/status", srv.handleSyncStatus)
	mux.HandleFunc("/api/v1/sync/now", srv.handleSyncNow)
	mux.HandleFunc("/api/v1/sync/failed", srv.handleSyncFailed)
	mux.HandleFunc("/api/v1/export", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("tasks")
	switch r.Method {
	case http.MethodGet:
		var (
			tasks []models.Task
			err   error
		)
		if projectID := strings.TrimSpace(r.URL.Query().Get("project_id")); projectID != "" {
			tasks, err = s.tasks.GetTasksByProject(r.Context(), projectID)
		} else {
			tasks, err = s.tasks.GetTasks(r.Context())
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		sort.Slice(tasks, func(i, j int) bool {
			if tasks[i].SortOrder == tasks[j].SortOrder {
				return tasks[i].ID < tasks[j].ID
			}
			return tasks[i].SortOrder < tasks[j].SortOrder
		})
		writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})

	case http.MethodPost:
		var task models.Task
		if err := decodeBody(r, &task); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.tasks.CreateTask(r.Context(), &task); err != nil {
			if errors.Is(err, service.ErrEmptyTitle) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, task)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("tasks")
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks/")
	taskID, action, _ := strings.Cut(rest, "/")
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task id is required")
		return
	}

	// POST /api/v1/tasks/{id}/complete
	if action == "complete" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := s.tasks.CompleteTask(r.Context(), taskID); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
		return
	}

	// POST /api/v1/tasks/{id}/comments and GET
	if action == "comments" {
		s.handleTaskComments(w, r, taskID)
		return
	}

	if action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := s.tasks.GetTask(r.Context(), taskID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if task == nil {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSON(w, http.StatusOK, task)

	case http.MethodPatch, http.MethodPut:
		var task models.Task
		if err := decodeBody(r, &task); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		task.ID = taskID
		if err := s.tasks.UpdateTask(r.Context(), &task); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, task)

	case http.MethodDelete:
		if err := s.tasks.DeleteTask(r.Context(), taskID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleTaskComments(w http.ResponseWriter, r *http.Request, taskID string) {
	switch r.Method {
	case http.MethodGet:
		comments, err := s.collab.GetComments(r.Context(), taskID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"comments": comments})

	case http.MethodPost:
		var comment models.Comment
		if err := decodeBody(r, &comment); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		comment.TaskID = taskID
		if err := s.collab.AddComment(r.Context(), &comment); err != nil {
			if errors.Is(err, service.ErrRateLimited) {
				writeError(w, http.StatusTooManyRequests, err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, comment)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("projects")
	switch r.Method {
	case http.MethodGet:
		projects, err := s.projects.GetProjects(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects})

	case http.MethodPost:
		var project models.Project
		if err := decodeBody(r, &project); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.projects.CreateProject(r.Context(), &project); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, project)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleProjectByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("projects")
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/projects/")
	projectID, action, _ := strings.Cut(rest, "/")
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project id is required")
		return
	}

	switch action {
	case "share":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var body struct {
			UserID string `json:"user_id"`
		}
		if err := decodeBody(r, &body); err != nil || body.UserID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if err := s.collab.ShareProject(r.Context(), projectID, body.UserID); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "shared"})
		return

	case "presence":
		s.handlePresence(w, r, projectID)
		return

	case "sections":
		s.handleSections(w, r, projectID)
		return
	}

	if action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		project, err := s.projects.GetProject(r.Context(), projectID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if project == nil {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeJSON(w, http.StatusOK, project)

	case http.MethodPatch, http.MethodPut:
		var project models.Project
		if err := decodeBody(r, &project); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		project.ID = projectID
		if err := s.projects.UpdateProject(r.Context(), &project); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, project)

	case http.MethodDelete:
		if err := s.projects.DeleteProject(r.Context(), projectID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handlePresence(w http.ResponseWriter, r *http.Request, projectID string) {
	switch r.Method {
	case http.MethodGet:
		presences, err := s.collab.ActiveCollaborators(r.Context(), projectID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"collaborators": presences})

	case http.MethodPost:
		var body struct {
			UserID string `json:"user_id"`
		}
		if err := decodeBody(r, &body); err != nil || body.UserID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if err := s.collab.Touch(r.Context(), projectID, body.UserID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case http.MethodDelete:
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if userID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if err := s.collab.Leave(r.Context(), projectID, userID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleSections(w http.ResponseWriter, r *http.Request, projectID string) {
	switch r.Method {
	case http.MethodGet:
		sections, err := s.projects.GetSectionsByProject(r.Context(), projectID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sections": sections})

	case http.MethodPost:
		var section models.Section
		if err := decodeBody(r, &section); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		section.ProjectID = projectID
		if err := s.projects.CreateSection(r.Context(), &section); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, section)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleLabels(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("labels")
	switch r.Method {
	case http.MethodGet:
		labels, err := s.labels.GetLabels(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"labels": labels})

	case http.MethodPost:
		var label models.Label
		if err := decodeBody(r, &label); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.labels.CreateLabel(r.Context(), &label); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, label)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleFilters(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("filters")
	switch r.Method {
	case http.MethodGet:
		filters, err := s.labels.GetFilters(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"filters": filters})

	case http.MethodPost:
		var filter models.Filter
		if err := decodeBody(r, &filter); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.labels.CreateFilter(r.Context(), &filter); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, filter)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSyncStatus returns the observable sync state plus the live queue
// depth.
func (s *HTTPServer) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_status")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := s.state.Snapshot()
	writeJSON(w, http.StatusOK, status)
}

// handleSyncNow triggers an immediate drain pass. Returns 409 when one is
// already running.
func (s *HTTPServer) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_now")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.engine.ProcessSyncQueue(r.Context()); err != nil {
		if errors.Is(err, worker.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

// handleSyncFailed lists queue items that exhausted their retries.
func (s *HTTPServer) handleSyncFailed(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_failed")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	items, err := s.db.GetFailedQueueItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failed": items})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	filePath, err := s.exporter.ExportTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": filePath})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func decodeBody(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
