package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/myselfgus/vibe/internal/engine"
	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/services"
	"github.com/myselfgus/vibe/internal/stream"
)

// Server is the daemon's HTTP surface: the session lifecycle REST API plus
// the per-session SSE event feed.
type Server struct {
	log         *slog.Logger
	sessions    services.GenerationSessionService
	templates   services.TemplateService
	modelConfig services.ModelConfigService
	credentials *services.CredentialService
	hub         *stream.Hub
	heartbeat   time.Duration

	addr   string
	server *http.Server
}

func New(log *slog.Logger, addr string, sessions services.GenerationSessionService, templates services.TemplateService, modelConfig services.ModelConfigService, credentials *services.CredentialService, hub *stream.Hub, heartbeat time.Duration) *Server {
	return &Server{
		log:         log,
		sessions:    sessions,
		templates:   templates,
		modelConfig: modelConfig,
		credentials: credentials,
		hub:         hub,
		heartbeat:   heartbeat,
		addr:        addr,
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions/", s.handleSessionByID)
	mux.HandleFunc("/templates", s.handleTemplates)
	mux.HandleFunc("/models", s.handleModels)
	mux.HandleFunc("/credentials", s.handleCredentials)
	mux.HandleFunc("/credentials/", s.handleCredentialByProvider)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.routes(),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: SSE connections stay open for the life of a
		// generation run.
	}

	s.log.Info("daemon listening", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// handleSessions routes POST /sessions and GET /sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.startSession(w, r)
	case http.MethodGet:
		s.listSessions(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

// handleSessionByID routes /sessions/{id} and /sessions/{id}/{action}.
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" {
		writeBadRequest(w, "session id required")
		return
	}

	sessionID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getSession(w, r, sessionID)
	case action == "" && r.Method == http.MethodDelete:
		s.deleteSession(w, r, sessionID)
	case action == "events" && r.Method == http.MethodGet:
		s.streamSession(w, r, sessionID)
	case action == "cancel" && r.Method == http.MethodPost:
		s.cancelSession(w, r, sessionID)
	case action == "export" && r.Method == http.MethodPost:
		s.exportSession(w, r, sessionID)
	default:
		writeNotFound(w, "not found")
	}
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	templates, err := s.templates.ListTemplates(r.Context())
	if err != nil {
		s.log.Error("list templates", "error", err)
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	groups, err := s.modelConfig.ListModelGroups()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) streamSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	// Existence check up front so unknown sessions get a 404 instead of a
	// half-open stream. ServeSSE re-fetches after subscribing.
	if _, err := s.sessions.Get(sessionID); err != nil {
		if err == engine.ErrSessionNotFound {
			writeNotFound(w, "session not found")
			return
		}
		writeInternalError(w, err)
		return
	}
	s.hub.ServeSSE(w, r, sessionID, func() (models.SessionView, error) {
		view, err := s.sessions.Get(sessionID)
		if err != nil {
			return models.SessionView{}, err
		}
		return *view, nil
	}, s.heartbeat)
}
