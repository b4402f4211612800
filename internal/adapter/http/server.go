package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/noteflow/noteflow/internal/service/jwt"
	"github.com/noteflow/noteflow/internal/service/logger"
	"github.com/noteflow/noteflow/internal/service/ratelimit"
	"github.com/noteflow/noteflow/internal/usecase"
)

// Server is the HTTP ingress. The middleware chain runs correlation, request
// logging, panic recovery and the admission controller before any handler;
// note, chat and audit routes additionally require a bearer token.
type Server struct {
	server *http.Server
	logger logger.Logger
}

// ServerConfig carries server tunables.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer wires routes, middleware, and handlers.
func NewServer(
	config ServerConfig,
	noteUseCase *usecase.NoteUseCase,
	chatUseCase *usecase.ChatUseCase,
	auditUseCase *usecase.AuditUseCase,
	authUseCase *usecase.AuthUseCase,
	tokens *jwt.Service,
	limiter ratelimit.Service,
	log logger.Logger,
) *Server {
	router := mux.NewRouter()

	router.Use(correlationMiddleware)
	router.Use(loggingMiddleware(log))
	router.Use(recoveryMiddleware(log))
	router.Use(rateLimitMiddleware(limiter))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	NewAuthHandler(authUseCase).RegisterRoutes(router)

	authed := router.NewRoute().Subrouter()
	authed.Use(authMiddleware(tokens))
	NewChatHandler(chatUseCase).RegisterRoutes(authed)
	NewNoteHandler(noteUseCase).RegisterRoutes(authed)
	NewAuditHandler(auditUseCase).RegisterRoutes(authed)

	return &Server{
		server: &http.Server{
			Addr:         ":" + config.Port,
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		logger: log,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "HTTP server starting", map[string]interface{}{
		"addr": s.server.Addr,
	})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "HTTP server shutting down", nil)
	return s.server.Shutdown(ctx)
}
