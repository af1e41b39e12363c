package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/myselfgus/vibe/internal/engine"
	"github.com/myselfgus/vibe/internal/models"
)

type startSessionRequest struct {
	SessionID    string   `json:"sessionId,omitempty"`
	Query        string   `json:"query"`
	TemplateName string   `json:"template,omitempty"`
	Images       []string `json:"images,omitempty"`
}

type startSessionResponse struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json")
		return
	}
	if req.SessionID == "" && strings.TrimSpace(req.Query) == "" {
		writeBadRequest(w, "query is required")
		return
	}

	id, err := s.sessions.Start(r.Context(), engine.StartRequest{
		SessionID:    req.SessionID,
		Query:        req.Query,
		TemplateName: req.TemplateName,
		Images:       req.Images,
	})
	if err != nil {
		s.log.Error("start session", "error", err)
		writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startSessionResponse{SessionID: id})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.sessions.List()
	if err != nil {
		s.log.Error("list sessions", "error", err)
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	view, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, engine.ErrSessionNotFound) {
			writeNotFound(w, "session not found")
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.sessions.Cancel(sessionID); err != nil {
		if errors.Is(err, engine.ErrSessionNotFound) {
			writeNotFound(w, "session not found")
			return
		}
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.sessions.Delete(sessionID); err != nil {
		s.log.Error("delete session", "session", sessionID, "error", err)
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	result, err := s.sessions.Export(sessionID)
	if err != nil {
		if errors.Is(err, engine.ErrSessionNotFound) {
			writeNotFound(w, "session not found")
			return
		}
		s.log.Error("export session", "session", sessionID, "error", err)
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configured": s.credentials.ListConfigured()})
}

type storeCredentialRequest struct {
	APIKey string `json:"apiKey"`
}

func (s *Server) handleCredentialByProvider(w http.ResponseWriter, r *http.Request) {
	provider := strings.TrimPrefix(r.URL.Path, "/credentials/")
	if provider == "" || strings.Contains(provider, "/") {
		writeNotFound(w, "not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req storeCredentialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid json")
			return
		}
		if err := s.credentials.StoreAPIKey(provider, req.APIKey); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.credentials.DeleteAPIKey(provider); err != nil {
			writeInternalError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

// writeGenerationError maps structured generation errors to HTTP statuses;
// everything else is a 500.
func writeGenerationError(w http.ResponseWriter, err error) {
	var genErr *models.GenerationError
	if !errors.As(err, &genErr) {
		writeInternalError(w, err)
		return
	}
	status := http.StatusInternalServerError
	switch genErr.Code {
	case engine.CodeSessionDone:
		status = http.StatusConflict
	case engine.CodeSessionNotFound:
		status = http.StatusNotFound
	case engine.CodePlanningFailed:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, genErr)
}
