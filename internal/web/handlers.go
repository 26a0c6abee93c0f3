package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/inovacc/repoload/internal/core"
	"github.com/inovacc/repoload/internal/model"
	"github.com/inovacc/repoload/internal/store"
)

const maxBodyBytes = 1 << 20

// APIResponse is the error envelope
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SubmitRequest is the body of repo and org submissions.
type SubmitRequest struct {
	URL       string `json:"url"`
	GroupName string `json:"group_name"`
}

// CreateGroupRequest is the body of a group creation.
type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleHealth returns health check status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		s.jsonError(w, "database unavailable", http.StatusServiceUnavailable)

		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAddRepo(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actorID(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.ctrl.AddFrontendRepo(r.Context(), req.URL, actorID, req.GroupName)
	if err != nil {
		s.submitError(w, "add repo", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleAddOrg(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actorID(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.ctrl.AddFrontendOrg(r.Context(), req.URL, actorID, req.GroupName)
	if err != nil {
		s.submitError(w, "add org", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actorID(w, r)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if !s.decode(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.jsonError(w, "group name is required", http.StatusBadRequest)
		return
	}

	group, err := s.store.CreateUserGroup(r.Context(), actorID, req.Name, req.Description)
	if errors.Is(err, store.ErrConflict) {
		s.jsonError(w, "group already exists", http.StatusConflict)
		return
	}

	if err != nil {
		s.internalError(w, "create group", err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, group)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actorID(w, r)
	if !ok {
		return
	}

	groups, err := s.store.ListUserGroups(r.Context(), actorID)
	if err != nil {
		s.internalError(w, "list groups", err)
		return
	}

	if groups == nil {
		groups = []model.UserGroup{}
	}

	s.jsonResponse(w, http.StatusOK, groups)
}

func (s *Server) handleListGroupRepos(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actorID(w, r)
	if !ok {
		return
	}

	groupID, err := s.ctrl.ConvertGroupNameToID(r.Context(), actorID, chi.URLParam(r, "name"))
	if errors.Is(err, core.ErrGroupNotFound) {
		s.jsonError(w, core.StatusInvalidGroup, http.StatusNotFound)
		return
	}

	if err != nil {
		s.internalError(w, "lookup group", err)
		return
	}

	repos, err := s.store.ListReposByGroup(r.Context(), groupID)
	if err != nil {
		s.internalError(w, "list repos", err)
		return
	}

	if repos == nil {
		repos = []model.Repository{}
	}

	s.jsonResponse(w, http.StatusOK, repos)
}

// actorID parses the {actorID} path parameter.
func (s *Server) actorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "actorID"), 10, 64)
	if err != nil || id <= 0 {
		s.jsonError(w, "invalid actor id", http.StatusBadRequest)
		return 0, false
	}

	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, "malformed request body", http.StatusBadRequest)
		return false
	}

	return true
}

// submitError answers 502 when the hosting API could not be consulted and
// 500 otherwise.
func (s *Server) submitError(w http.ResponseWriter, op string, err error) {
	switch core.KindOf(err) {
	case core.KindTransient, core.KindRemote:
		s.logger.Warn("hosting API unavailable",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		s.jsonError(w, "hosting API unavailable, try again later", http.StatusBadGateway)
	default:
		s.internalError(w, op, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	s.jsonError(w, "internal error", http.StatusInternalServerError)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("json encode error", slog.String("error", err.Error()))
	}
}

// jsonError writes a JSON error response
func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, status, APIResponse{
		Success: false,
		Error:   message,
	})
}
