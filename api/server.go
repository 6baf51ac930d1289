// Package api provides the HTTP front door for the conversational agent.
//
// The surface is deliberately small: GET /agent hands one question to the
// dialog router and GET /health reports liveness. Everything conversational
// (sessions, prompts, task dispatch) lives behind the Agent interface.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kosquant/krxagent/internal/config"
	"github.com/kosquant/krxagent/internal/dialog"
	"github.com/kosquant/krxagent/pkg/utils"
)

// Agent answers one conversational turn. *dialog.Router implements it.
type Agent interface {
	Route(ctx context.Context, question, convID, bearer string) string
}

// sessionHeader carries a caller-chosen session id when the session_id
// query parameter is absent.
const sessionHeader = "X-NCP-CLOVASTUDIO-REQUEST-ID"

// User-facing edge messages.
const (
	emptyQuestionMsg = "질문이 비어 있습니다."
	missingBearerMsg = "API 키가 없습니다. Authorization 헤더에 Bearer 토큰을 담아 주세요."
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	agent   Agent
	version string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, agent Agent, version string) *Server {
	srv := &Server{
		cfg:     cfg,
		agent:   agent,
		version: version,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", sessionHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/agent", s.handleAgent)

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// AgentResponse is the body of GET /agent. Follow-up prompts and final
// answers share the same shape; the session id lets the caller continue
// the conversation.
type AgentResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	TimeKST string `json:"time_kst"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.version,
		TimeKST: utils.FormatDateTimeKST(utils.NowKST()),
	})
}

// handleAgent answers one conversational turn.
//
// Session id precedence: session_id query parameter, then the
// X-NCP-CLOVASTUDIO-REQUEST-ID header, then a freshly minted UUID. The
// bearer token is required and is passed through to the LLM calls made on
// behalf of this request.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" {
		writeJSON(w, http.StatusBadRequest, AgentResponse{Answer: emptyQuestionMsg})
		return
	}

	bearer := bearerToken(r)
	if bearer == "" {
		writeJSON(w, http.StatusUnauthorized, AgentResponse{Answer: missingBearerMsg})
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.Header.Get(sessionHeader))
	}
	if sessionID == "" {
		sessionID = dialog.NewSessionID()
	}

	answer := s.agent.Route(r.Context(), question, sessionID, bearer)

	writeJSON(w, http.StatusOK, AgentResponse{
		Answer:    answer,
		SessionID: sessionID,
	})
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to write JSON response: %v", err)
	}
}
