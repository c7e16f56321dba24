// Package orch implements the orchestrator: the scheduler that consumes a
// user request, fans dispatch events out to subscribed agents, drives their
// turn loops against the provider, executes tool calls or re-dispatches
// events, and emits progress messages to an optional sink.
package orch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/loop-index/forge/internal/domain"
	"github.com/rs/zerolog"
)

// Orchestrator coordinates one conversation's agents for one user request.
// It takes no locks on conversation state; all of that funnels through the
// conversation service. Its own mutex only guards the sink-failure flag.
type Orchestrator struct {
	app           domain.App
	request       domain.ChatRequest
	systemContext domain.SystemContext
	sink          domain.MessageSink
	counter       domain.TokenCounter
	logger        zerolog.Logger

	mu       sync.Mutex
	sinkDown bool
}

// chatCompletionResult is one drained provider stream: the joined text and
// the assembled tool calls.
type chatCompletionResult struct {
	content   string
	toolCalls []domain.ToolCallFull
}

// New creates an orchestrator for a single chat request. The sink may be
// nil; the counter feeds summarization transforms.
func New(app domain.App, request domain.ChatRequest, systemContext domain.SystemContext, sink domain.MessageSink, counter domain.TokenCounter, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		app:           app,
		request:       request,
		systemContext: systemContext,
		sink:          sink,
		counter:       counter,
		logger:        logger,
	}
}

// Execute synthesizes the dispatch event for the request and fans it out.
// The first user turn of a conversation dispatches a task-init event, every
// later one a task-update.
func (o *Orchestrator) Execute(ctx context.Context) error {
	event, err := o.initDispatchEvent(ctx)
	if err != nil {
		return err
	}
	return o.dispatch(ctx, event)
}

func (o *Orchestrator) initDispatchEvent(ctx context.Context) (domain.Event, error) {
	conv, err := o.getConversation(ctx)
	if err != nil {
		return domain.Event{}, err
	}
	if conv.RFindEventByType(domain.EventUserTaskInit) != nil {
		return domain.TaskUpdateEvent(o.request.Content), nil
	}
	return domain.TaskInitEvent(o.request.Content), nil
}

// dispatch inserts the event and invokes every subscribed agent in
// parallel. The aggregate succeeds iff all agents succeed; otherwise the
// first error observed wins and the remaining failures are logged. Sibling
// agents are never cancelled by each other's failures.
func (o *Orchestrator) dispatch(ctx context.Context, event domain.Event) error {
	o.logger.Debug().
		Str("conversation_id", string(o.request.ConversationID)).
		Str("event_name", event.Name).
		Str("event_value", event.ValueString()).
		Msg("dispatching event")

	if err := o.insertEvent(ctx, event); err != nil {
		return err
	}

	conv, err := o.getConversation(ctx)
	if err != nil {
		return err
	}

	agents := conv.Workflow.Entries(event.Name)
	if len(agents) == 0 {
		o.logger.Debug().Str("event_name", event.Name).Msg("no subscribers for event")
		return nil
	}

	errCh := make(chan error, len(agents))
	for _, agent := range agents {
		go func(id domain.AgentID) {
			errCh <- o.initAgent(ctx, id, event)
		}(agent.ID)
	}

	var firstErr error
	for range agents {
		if err := <-errCh; err != nil {
			if firstErr == nil {
				firstErr = err
			} else {
				o.logger.Warn().Err(err).Str("event_name", event.Name).Msg("additional agent failure in fan-out")
			}
		}
	}
	return firstErr
}

// initAgent runs one agent's full turn for the event: context selection,
// prompt rendering, and the inner provider/tool loop. The turn counter is
// incremented only after the loop completes; a fatal error or cancellation
// leaves the partially built context unpersisted.
func (o *Orchestrator) initAgent(ctx context.Context, agentID domain.AgentID, event domain.Event) error {
	o.logger.Debug().
		Str("conversation_id", string(o.request.ConversationID)).
		Str("agent", string(agentID)).
		Str("event_name", event.Name).
		Msg("initializing agent")

	conv, err := o.getConversation(ctx)
	if err != nil {
		return err
	}
	agent, err := conv.Workflow.Get(agentID)
	if err != nil {
		return err
	}

	var chat domain.Context
	if agent.Ephemeral {
		chat, err = o.initAgentContext(ctx, agent)
	} else if stored, ok := conv.Context(agent.ID); ok {
		chat = stored.Clone()
	} else {
		chat, err = o.initAgentContext(ctx, agent)
	}
	if err != nil {
		return err
	}

	userContext := domain.NewUserContext(event)
	if agent.Suggestions {
		suggestions, err := o.initSuggestions(ctx)
		if err != nil {
			return err
		}
		o.logger.Debug().Strs("suggestions", suggestions).Msg("suggestions received")
		userContext = userContext.WithSuggestions(suggestions)
	}

	content, err := o.app.TemplateService().Render(agent.UserPrompt, userContext)
	if err != nil {
		return fmt.Errorf("failed to render user prompt for %s: %w", agent.ID, err)
	}
	chat = chat.AddMessage(domain.UserMessage(content))

	toolNames := o.toolNames(agent)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chat, err = o.executeTransforms(ctx, agent.Transforms, chat)
		if err != nil {
			return err
		}

		stream, err := o.app.ProviderService().Chat(ctx, agent.Model, chat.Clone())
		if err != nil {
			return &domain.ProviderError{Err: err}
		}

		result, err := o.collectMessages(ctx, agent.ID, stream, toolNames)
		if err != nil {
			return err
		}

		var toolResults []domain.ToolResult
		for _, call := range result.toolCalls {
			if err := o.send(ctx, agent.ID, domain.ToolCallStartResponse(call)); err != nil {
				return err
			}
			toolResult, err := o.executeTool(ctx, agent.ID, call)
			if err != nil {
				return err
			}
			if toolResult != nil {
				toolResults = append(toolResults, *toolResult)
				if err := o.send(ctx, agent.ID, domain.ToolCallEndResponse(*toolResult)); err != nil {
					return err
				}
			}
		}

		chat = chat.
			AddMessage(domain.AssistantMessage(result.content, result.toolCalls)).
			AddToolResults(toolResults)

		if err := o.setContext(ctx, agent.ID, chat); err != nil {
			return err
		}

		if len(toolResults) == 0 {
			break
		}
	}

	return o.completeTurn(ctx, agent.ID)
}

// initAgentContext builds a fresh context: the rendered system prompt plus
// the agent's tool schemas when the model supports structured tool use.
func (o *Orchestrator) initAgentContext(ctx context.Context, agent domain.Agent) (domain.Context, error) {
	toolDefs := o.initToolDefinitions(agent)

	var usage strings.Builder
	for _, def := range toolDefs {
		usage.WriteString(def.UsagePrompt())
	}

	params, err := o.app.ProviderService().Parameters(ctx, agent.Model)
	if err != nil {
		return domain.Context{}, &domain.ProviderError{Err: err}
	}

	systemContext := o.systemContext.
		WithToolSupported(params.ToolSupported).
		WithToolInformation(usage.String())

	systemMessage, err := o.app.TemplateService().Render(agent.SystemPrompt, systemContext)
	if err != nil {
		return domain.Context{}, fmt.Errorf("failed to render system prompt for %s: %w", agent.ID, err)
	}

	chat := domain.Context{}.SetFirstSystemMessage(systemMessage)
	if params.ToolSupported {
		chat = chat.ExtendTools(toolDefs)
	}
	return chat, nil
}

// initToolDefinitions returns the registry's definitions plus the reserved
// dispatch tool, filtered down to the agent's allow-list.
func (o *Orchestrator) initToolDefinitions(agent domain.Agent) []domain.ToolDefinition {
	defs := o.app.ToolService().List()
	defs = append(defs, domain.DispatchToolDefinition())

	var allowed []domain.ToolDefinition
	for _, def := range defs {
		if agent.AllowsTool(def.Name) {
			allowed = append(allowed, def)
		}
	}
	return allowed
}

func (o *Orchestrator) toolNames(agent domain.Agent) []string {
	defs := o.initToolDefinitions(agent)
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	return names
}

// collectMessages drains one provider stream, forwarding text and usage
// chunks to the sink as they arrive, then assembles the complete tool-call
// set.
func (o *Orchestrator) collectMessages(ctx context.Context, agentID domain.AgentID, stream <-chan domain.CompletionChunk, toolNames []string) (chatCompletionResult, error) {
	var messages []domain.ChatCompletionMessage
	var content strings.Builder

	for chunk := range stream {
		if chunk.Err != nil {
			if errors.Is(chunk.Err, context.Canceled) || errors.Is(chunk.Err, context.DeadlineExceeded) {
				return chatCompletionResult{}, chunk.Err
			}
			return chatCompletionResult{}, &domain.ProviderError{Err: chunk.Err}
		}

		messages = append(messages, chunk.Message)
		if chunk.Message.Content != "" {
			content.WriteString(chunk.Message.Content)
			if err := o.send(ctx, agentID, domain.TextResponse(chunk.Message.Content)); err != nil {
				return chatCompletionResult{}, err
			}
		}
		if chunk.Message.Usage != nil {
			if err := o.send(ctx, agentID, domain.UsageResponse(*chunk.Message.Usage)); err != nil {
				return chatCompletionResult{}, err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return chatCompletionResult{}, err
	}

	toolCalls, err := domain.AssembleToolCalls(messages, content.String(), toolNames)
	if err != nil {
		return chatCompletionResult{}, err
	}
	return chatCompletionResult{content: content.String(), toolCalls: toolCalls}, nil
}

// executeTool runs one tool call. Calls to the reserved dispatch tool
// re-enter dispatch and produce no result; everything else goes to the tool
// service, which encodes failures in the result itself.
func (o *Orchestrator) executeTool(ctx context.Context, agentID domain.AgentID, call domain.ToolCallFull) (*domain.ToolResult, error) {
	if event, ok := domain.ParseEvent(call); ok {
		if err := o.send(ctx, agentID, domain.CustomResponse(event)); err != nil {
			return nil, err
		}
		if err := o.dispatch(ctx, event); err != nil {
			return nil, err
		}
		return nil, nil
	}

	result := o.app.ToolService().Call(ctx, call)
	return &result, nil
}

func (o *Orchestrator) initSuggestions(ctx context.Context) ([]string, error) {
	found, err := o.app.SuggestionService().Search(ctx, o.request.Content)
	if err != nil {
		return nil, fmt.Errorf("suggestion search failed: %w", err)
	}
	suggestions := make([]string, 0, len(found))
	for _, suggestion := range found {
		suggestions = append(suggestions, suggestion.Suggestion)
	}
	return suggestions, nil
}

// send delivers a progress message to the sink, blocking on back-pressure.
// A failed sink is demoted to a warning and disabled for the rest of the
// request; cancellation during a send stays fatal.
func (o *Orchestrator) send(ctx context.Context, agentID domain.AgentID, response domain.ChatResponse) error {
	if o.sink == nil {
		return nil
	}

	o.mu.Lock()
	down := o.sinkDown
	o.mu.Unlock()
	if down {
		return nil
	}

	err := o.sink.Send(ctx, domain.AgentMessage{AgentID: agentID, Message: response})
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	o.logger.Warn().Err(err).Msg("message sink failed, continuing without sink output")
	o.mu.Lock()
	o.sinkDown = true
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) getConversation(ctx context.Context) (*domain.Conversation, error) {
	conv, err := o.app.ConversationService().Get(ctx, o.request.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, &domain.ConversationNotFoundError{ID: o.request.ConversationID}
	}
	return conv, nil
}

func (o *Orchestrator) getLastEvent(ctx context.Context, name string) (*domain.Event, error) {
	conv, err := o.getConversation(ctx)
	if err != nil {
		return nil, err
	}
	return conv.RFindEvent(name), nil
}

func (o *Orchestrator) insertEvent(ctx context.Context, event domain.Event) error {
	return o.app.ConversationService().InsertEvent(ctx, o.request.ConversationID, event)
}

func (o *Orchestrator) setContext(ctx context.Context, agentID domain.AgentID, chat domain.Context) error {
	return o.app.ConversationService().SetContext(ctx, o.request.ConversationID, agentID, chat)
}

func (o *Orchestrator) completeTurn(ctx context.Context, agentID domain.AgentID) error {
	return o.app.ConversationService().IncTurn(ctx, o.request.ConversationID, agentID)
}
