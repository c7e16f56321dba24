// Package conversation provides the in-memory conversation service. It is
// the single shared-mutable resource of the orchestrator: every mutation is
// a short-lived atomic operation under one lock, and reads return defensive
// snapshots.
package conversation

import (
	"context"
	"sync"

	"github.com/loop-index/forge/internal/domain"
	"github.com/rs/zerolog"
)

// Service implements domain.ConversationService backed by process memory.
type Service struct {
	mu            sync.Mutex
	conversations map[domain.ConversationID]*domain.Conversation
	logger        zerolog.Logger
}

// NewService creates an empty conversation store.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		conversations: make(map[domain.ConversationID]*domain.Conversation),
		logger:        logger,
	}
}

// Get returns a snapshot of the conversation, or nil if the id is unknown.
func (s *Service) Get(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	snapshot := stored.Clone()
	return &snapshot, nil
}

// Create mints a conversation bound to the workflow and returns its id.
func (s *Service) Create(ctx context.Context, workflow domain.Workflow) (domain.ConversationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := domain.NewConversation(workflow)
	s.conversations[conv.ID] = &conv
	s.logger.Debug().Str("conversation_id", string(conv.ID)).Msg("created conversation")
	return conv.ID, nil
}

// IncTurn increments the agent's turn counter.
func (s *Service) IncTurn(ctx context.Context, id domain.ConversationID, agent domain.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return &domain.ConversationNotFoundError{ID: id}
	}
	conv.TurnCount[agent]++
	return nil
}

// SetContext atomically replaces the agent's stored context.
func (s *Service) SetContext(ctx context.Context, id domain.ConversationID, agent domain.AgentID, chat domain.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return &domain.ConversationNotFoundError{ID: id}
	}
	conv.Contexts[agent] = chat.Clone()
	return nil
}

// InsertEvent appends an event to the conversation's log.
func (s *Service) InsertEvent(ctx context.Context, id domain.ConversationID, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return &domain.ConversationNotFoundError{ID: id}
	}
	conv.Events = append(conv.Events, event)
	s.logger.Debug().
		Str("conversation_id", string(id)).
		Str("event_name", event.Name).
		Msg("inserted event")
	return nil
}
