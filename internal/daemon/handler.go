package daemon

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/loop-index/forge/internal/domain"
	"github.com/loop-index/forge/internal/orch"
	"github.com/rs/zerolog"
)

// Handler manages WebSocket chat connections. Each connection shares the
// daemon's single conversation, created lazily on the first message.
type Handler struct {
	app           domain.App
	workflow      domain.Workflow
	systemContext domain.SystemContext
	counter       domain.TokenCounter
	logger        zerolog.Logger

	conversationID domain.ConversationID
}

// NewHandler creates a handler.
func NewHandler(app domain.App, workflow domain.Workflow, systemContext domain.SystemContext, counter domain.TokenCounter, logger zerolog.Logger) *Handler {
	return &Handler{
		app:           app,
		workflow:      workflow,
		systemContext: systemContext,
		counter:       counter,
		logger:        logger,
	}
}

// ConversationID returns the active conversation id, if one exists yet.
func (h *Handler) ConversationID() domain.ConversationID {
	return h.conversationID
}

// HandleChat processes a chat WebSocket connection.
func (h *Handler) HandleChat(conn *websocket.Conn) {
	defer conn.Close()

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) ||
				errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF") {
				h.logger.Debug().Msg("client disconnected")
			} else {
				h.logger.Error().Err(err).Msg("failed to read message")
			}
			return
		}

		h.logger.Info().Str("message", req.Message).Msg("received chat request")

		if err := h.processChat(conn, req.Message); err != nil {
			h.logger.Error().Err(err).Msg("failed to process chat")
			h.sendError(conn, err.Error())
		}
	}
}

func (h *Handler) processChat(conn *websocket.Conn, message string) error {
	ctx := context.Background()

	if h.conversationID == "" {
		id, err := h.app.ConversationService().Create(ctx, h.workflow)
		if err != nil {
			return err
		}
		h.conversationID = id
	}

	request := domain.ChatRequest{ConversationID: h.conversationID, Content: message}
	messages := make(chan domain.AgentMessage, 100)

	orchestrator := orch.New(h.app, request, h.systemContext, orch.NewChannelSink(messages), h.counter, h.logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- orchestrator.Execute(ctx)
		close(messages)
	}()

	for msg := range messages {
		if err := conn.WriteJSON(FrameFromMessage(msg)); err != nil {
			return err
		}
	}

	if err := <-errChan; err != nil {
		return err
	}

	// Record the request so later turns can surface it as a suggestion.
	if err := h.app.SuggestionService().Insert(ctx, domain.Suggestion{Suggestion: message}); err != nil {
		h.logger.Warn().Err(err).Msg("failed to store suggestion")
	}

	return conn.WriteJSON(Frame{Type: "done"})
}

func (h *Handler) sendError(conn *websocket.Conn, errMsg string) {
	if err := conn.WriteJSON(Frame{Type: "error", Error: errMsg}); err != nil {
		h.logger.Error().Err(err).Msg("failed to send error response")
	}
}
