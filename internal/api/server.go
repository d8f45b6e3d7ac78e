// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/muzaffar401/IDE/internal/events"
	"github.com/muzaffar401/IDE/internal/logging"
	"github.com/muzaffar401/IDE/internal/metrics"
	"github.com/muzaffar401/IDE/internal/session"
	"github.com/muzaffar401/IDE/internal/shell"
	"github.com/muzaffar401/IDE/internal/vfs"
)

// Server is the HTTP server.
type Server struct {
	store          *vfs.Store
	sessions       *session.Registry
	shell          *shell.Interpreter
	broadcaster    *events.Broadcaster
	maxContentSize int64
}

// NewServer creates a new server.
func NewServer(
	store *vfs.Store,
	sessions *session.Registry,
	interpreter *shell.Interpreter,
	broadcaster *events.Broadcaster,
	maxContentSize int64,
) *Server {
	return &Server{
		store:          store,
		sessions:       sessions,
		shell:          interpreter,
		broadcaster:    broadcaster,
		maxContentSize: maxContentSize,
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleEvents)

	// File endpoints
	mux.HandleFunc("GET /files", s.handleList)
	mux.HandleFunc("GET /files/search/{query}", s.handleSearch)
	mux.HandleFunc("GET /files/{path...}", s.handleGet)
	mux.HandleFunc("POST /files", s.handleCreate)
	mux.HandleFunc("PATCH /files/{path...}", s.handleUpdate)
	mux.HandleFunc("DELETE /files/{path...}", s.handleDelete)
	mux.HandleFunc("PUT /files/rename", s.handleRename)

	// Terminal endpoints
	mux.HandleFunc("POST /terminal/session", s.handleCreateSession)
	mux.HandleFunc("POST /terminal/session/{sessionID}/execute", s.handleExecute)

	return metrics.Middleware(logging.Middleware(mux))
}

// ─── Responses ──────────────────────────────────────────────────────────────

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"message": message})
}

// sendStoreError maps store sentinels onto the HTTP error taxonomy.
func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vfs.ErrNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vfs.ErrConflict), errors.Is(err, vfs.ErrInvalidInput):
		s.sendError(w, http.StatusBadRequest, err.Error())
	default:
		logging.Error("store operation failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) publishEvent(eventType, path, oldPath string, isDir bool) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(events.Event{
		Type:        eventType,
		Path:        path,
		OldPath:     oldPath,
		IsDirectory: isDir,
	})
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": s.store.BackendName(),
	})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// ─── Files ──────────────────────────────────────────────────────────────────

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	if recs == nil {
		recs = []*vfs.FileRecord{}
	}
	s.sendJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	path := "/" + r.PathValue("path")
	rec, err := s.store.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, vfs.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "file not found: "+path)
			return
		}
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var spec vfs.CreateSpec
	r.Body = http.MaxBytesReader(w, r.Body, s.maxContentSize+4096)
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if spec.Path == "" {
		s.sendError(w, http.StatusBadRequest, "path is required")
		return
	}
	if spec.Content != nil && int64(len(*spec.Content)) > s.maxContentSize {
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("content too large: max %d bytes", s.maxContentSize))
		return
	}

	rec, err := s.store.Create(r.Context(), spec)
	if err != nil {
		// A missing parent is a bad request, not an absent resource.
		if errors.Is(err, vfs.ErrNotFound) {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.sendStoreError(w, err)
		return
	}

	logging.Info("file created",
		zap.String("path", rec.Path),
		zap.Bool("is_directory", rec.IsDirectory))
	s.publishEvent(events.EventCreate, rec.Path, "", rec.IsDirectory)

	s.sendJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	path := "/" + r.PathValue("path")

	var upd vfs.Update
	r.Body = http.MaxBytesReader(w, r.Body, s.maxContentSize+4096)
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if upd.Content != nil && int64(len(*upd.Content)) > s.maxContentSize {
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("content too large: max %d bytes", s.maxContentSize))
		return
	}

	rec, err := s.store.Update(r.Context(), path, upd)
	if err != nil {
		if errors.Is(err, vfs.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "file not found: "+path)
			return
		}
		s.sendStoreError(w, err)
		return
	}

	s.publishEvent(events.EventModify, rec.Path, "", rec.IsDirectory)
	s.sendJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	path := "/" + r.PathValue("path")

	rec, err := s.store.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, vfs.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "file not found: "+path)
			return
		}
		s.sendStoreError(w, err)
		return
	}

	removed, err := s.store.Delete(r.Context(), path)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	if !removed {
		s.sendError(w, http.StatusNotFound, "file not found: "+path)
		return
	}

	logging.Info("file deleted", zap.String("path", path))
	s.publishEvent(events.EventDelete, path, "", rec.IsDirectory)

	s.sendJSON(w, http.StatusOK, map[string]string{"message": "file deleted successfully"})
}

type renameRequest struct {
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		s.sendError(w, http.StatusBadRequest, "oldPath and newPath are required")
		return
	}

	rec, err := s.store.Rename(r.Context(), req.OldPath, req.NewPath)
	if err != nil {
		if errors.Is(err, vfs.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, err.Error())
			return
		}
		s.sendStoreError(w, err)
		return
	}

	logging.Info("file renamed",
		zap.String("old_path", req.OldPath),
		zap.String("new_path", rec.Path))
	s.publishEvent(events.EventRename, rec.Path, req.OldPath, rec.IsDirectory)

	s.sendJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("query")
	recs, err := s.store.Search(r.Context(), query)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	if recs == nil {
		recs = []*vfs.FileRecord{}
	}
	s.sendJSON(w, http.StatusOK, recs)
}

// ─── Terminal ───────────────────────────────────────────────────────────────

type executeRequest struct {
	Command string `json:"command"`
}

type executeResponse struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	Cwd      string `json:"cwd"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Create()
	logging.Info("terminal session created", zap.String("session_id", id))
	s.sendJSON(w, http.StatusCreated, map[string]string{"id": id, "cwd": "/"})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res := s.shell.Execute(r.Context(), sessionID, req.Command)
	s.sendJSON(w, http.StatusOK, executeResponse{
		Command:  req.Command,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Cwd:      res.Cwd,
	})
}
