package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/loop-index/forge/internal/app"
	"github.com/loop-index/forge/internal/config"
	"github.com/loop-index/forge/internal/conversation"
	"github.com/loop-index/forge/internal/domain"
	"github.com/loop-index/forge/internal/provider"
	"github.com/loop-index/forge/internal/suggest"
	"github.com/loop-index/forge/internal/template"
	"github.com/loop-index/forge/internal/tokens"
	"github.com/loop-index/forge/internal/tools"
	"github.com/rs/zerolog"
)

const Version = "0.1.0"

// StatusResponse is the /status payload.
type StatusResponse struct {
	Healthy        bool   `json:"healthy"`
	Model          string `json:"model"`
	Version        string `json:"version"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Server is the daemon: it owns the service wiring and serves the
// orchestrator over WebSocket.
type Server struct {
	port      int
	model     string
	provider  *provider.Ollama
	handler   *Handler
	logger    zerolog.Logger
	logCloser io.Closer
	upgrader  websocket.Upgrader
	quit      chan os.Signal
}

// NewServer creates a daemon server. An empty workflowPath selects the
// built-in default workflow.
func NewServer(port int, ollamaURL, model, workflowPath string) (*Server, error) {
	logCfg := config.DefaultLogConfig()
	logger, logCloser, err := config.SetupLogger(logCfg)
	if err != nil {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger.Warn().Err(err).Msg("failed to set up file logging, using stdout only")
		logCloser = nil
	}

	settings, err := config.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load settings, using defaults")
		settings = config.DefaultSettings()
	}
	logger.Info().
		Bool("shell_enabled", settings.Tools.Shell.Enabled).
		Strs("shell_allowlist", settings.Tools.Shell.Allowlist).
		Msg("loaded settings")

	var workflow domain.Workflow
	if workflowPath != "" {
		workflow, err = config.LoadWorkflow(workflowPath)
	} else {
		workflow, err = config.DefaultWorkflow(model)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	logger.Info().Int("agents", len(workflow.Agents)).Msg("loaded workflow")

	registry := tools.NewRegistry()
	if settings.Tools.Shell.Enabled {
		registry.Register(tools.NewShellTool(settings))
		logger.Info().Msg("registered shell tool")
	}
	if settings.Tools.Write.Enabled {
		registry.Register(tools.NewWriteTool(settings))
		logger.Info().Msg("registered write tool")
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	suggestions, err := suggest.NewStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion store: %w", err)
	}

	ollama := provider.NewOllama(ollamaURL, logger)

	services := app.New(
		ollama,
		tools.NewService(registry, logger),
		conversation.NewService(logger),
		template.NewService(),
		suggestions,
	)

	var counter domain.TokenCounter
	counter, err = tokens.NewCounter(model)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build token counter, using estimate")
		counter = tokens.Estimate{}
	}

	handler := NewHandler(services, workflow, domain.NewSystemContext(), counter, logger)

	return &Server{
		port:      port,
		model:     model,
		provider:  ollama,
		handler:   handler,
		logger:    logger,
		logCloser: logCloser,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local daemon only
			},
		},
	}, nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/shutdown", s.handleShutdown)
	mux.HandleFunc("/ws/chat", s.handleWSChat)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan bool)
	s.quit = make(chan os.Signal, 1)
	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-s.quit
		s.logger.Info().Msg("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	s.logger.Info().
		Int("port", s.port).
		Str("model", s.model).
		Msg("starting daemon server")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	s.logger.Info().Msg("server stopped")

	if s.logCloser != nil {
		_ = s.logCloser.Close()
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	healthy, _ := s.provider.Health(r.Context())

	resp := StatusResponse{
		Healthy:        healthy,
		Model:          s.model,
		Version:        Version,
		ConversationID: string(s.handler.ConversationID()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("shutting down"))

	go func() {
		s.quit <- syscall.SIGTERM
	}()
}

func (s *Server) handleWSChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	s.logger.Info().Str("remote", r.RemoteAddr).Msg("new chat connection")
	s.handler.HandleChat(conn)
}
