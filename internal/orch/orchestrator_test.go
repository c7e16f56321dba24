package orch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/loop-index/forge/internal/app"
	"github.com/loop-index/forge/internal/conversation"
	"github.com/loop-index/forge/internal/domain"
	"github.com/loop-index/forge/internal/template"
	"github.com/rs/zerolog"
)

// scriptedProvider replays canned completion streams per model and records
// every context it was called with.
type scriptedProvider struct {
	mu      sync.Mutex
	streams map[string][][]domain.CompletionChunk
	calls   map[string][]domain.Context
	params  domain.Parameters
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		streams: make(map[string][][]domain.CompletionChunk),
		calls:   make(map[string][]domain.Context),
		params:  domain.Parameters{ToolSupported: true},
	}
}

func (p *scriptedProvider) push(model string, chunks ...domain.CompletionChunk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams[model] = append(p.streams[model], chunks)
}

func (p *scriptedProvider) callCount(model string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls[model])
}

func (p *scriptedProvider) recordedCall(model string, i int) domain.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[model][i]
}

func (p *scriptedProvider) Chat(ctx context.Context, model string, chat domain.Context) (<-chan domain.CompletionChunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[model] = append(p.calls[model], chat.Clone())

	queue := p.streams[model]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no scripted response for model %s", model)
	}
	chunks := queue[0]
	p.streams[model] = queue[1:]

	ch := make(chan domain.CompletionChunk, len(chunks))
	for _, chunk := range chunks {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Models(ctx context.Context) ([]domain.Model, error) {
	return nil, nil
}

func (p *scriptedProvider) Parameters(ctx context.Context, model string) (domain.Parameters, error) {
	return p.params, nil
}

// mockToolService returns canned outputs per tool name.
type mockToolService struct {
	mu      sync.Mutex
	defs    []domain.ToolDefinition
	outputs map[string]string
	errs    map[string]string
	calls   []domain.ToolCallFull
}

func newMockToolService(names ...string) *mockToolService {
	s := &mockToolService{
		outputs: make(map[string]string),
		errs:    make(map[string]string),
	}
	for _, name := range names {
		s.defs = append(s.defs, domain.ToolDefinition{
			Name:        name,
			Description: "test tool " + name,
			Parameters:  map[string]any{"type": "object"},
		})
	}
	return s
}

func (s *mockToolService) Call(ctx context.Context, call domain.ToolCallFull) domain.ToolResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, call)
	result := domain.ToolResultFromCall(call)
	if msg, ok := s.errs[call.Name]; ok {
		return result.WithError(msg)
	}
	return result.WithContent(s.outputs[call.Name])
}

func (s *mockToolService) List() []domain.ToolDefinition {
	return s.defs
}

func (s *mockToolService) UsagePrompt() string {
	var sb strings.Builder
	for _, def := range s.defs {
		sb.WriteString(def.UsagePrompt())
	}
	return sb.String()
}

func (s *mockToolService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// mockSuggestionService records searches and returns canned suggestions.
type mockSuggestionService struct {
	mu          sync.Mutex
	suggestions []domain.Suggestion
	queries     []string
}

func (s *mockSuggestionService) Search(ctx context.Context, query string) ([]domain.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.suggestions, nil
}

func (s *mockSuggestionService) Insert(ctx context.Context, suggestion domain.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = append(s.suggestions, suggestion)
	return nil
}

// sliceSink collects progress messages in arrival order.
type sliceSink struct {
	mu       sync.Mutex
	messages []domain.AgentMessage
}

func (s *sliceSink) Send(ctx context.Context, msg domain.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *sliceSink) byAgent(id domain.AgentID) []domain.ChatResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	var responses []domain.ChatResponse
	for _, msg := range s.messages {
		if msg.AgentID == id {
			responses = append(responses, msg.Message)
		}
	}
	return responses
}

// failSink always fails; the orchestrator must demote this to a warning.
type failSink struct{}

func (failSink) Send(ctx context.Context, msg domain.AgentMessage) error {
	return errors.New("sink closed")
}

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }

type fixture struct {
	provider      *scriptedProvider
	tools         *mockToolService
	conversations *conversation.Service
	suggestions   *mockSuggestionService
	services      *app.App
	sink          *sliceSink
	convID        domain.ConversationID
}

func newFixture(t *testing.T, workflow domain.Workflow, toolNames ...string) *fixture {
	t.Helper()

	logger := zerolog.Nop()
	f := &fixture{
		provider:      newScriptedProvider(),
		tools:         newMockToolService(toolNames...),
		conversations: conversation.NewService(logger),
		suggestions:   &mockSuggestionService{},
		sink:          &sliceSink{},
	}
	f.services = app.New(f.provider, f.tools, f.conversations, template.NewService(), f.suggestions)

	id, err := f.conversations.Create(context.Background(), workflow)
	if err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}
	f.convID = id
	return f
}

func (f *fixture) orchestrator(content string) *Orchestrator {
	request := domain.ChatRequest{ConversationID: f.convID, Content: content}
	systemContext := domain.SystemContext{OS: "Linux", Username: "tester"}
	return New(f.services, request, systemContext, f.sink, charCounter{}, zerolog.Nop())
}

func (f *fixture) conversationState(t *testing.T) *domain.Conversation {
	t.Helper()
	conv, err := f.conversations.Get(context.Background(), f.convID)
	if err != nil || conv == nil {
		t.Fatalf("failed to load conversation: %v", err)
	}
	return conv
}

func echoWorkflow() domain.Workflow {
	return domain.Workflow{Agents: []domain.Agent{{
		ID:           "a",
		Model:        "model-a",
		Subscribe:    []string{domain.EventNameTaskInit, domain.EventNameTaskUpdate},
		SystemPrompt: "You are a coding agent on {{os}}.",
		UserPrompt:   "{{event.value}}",
	}}}
}

func textChunk(text string) domain.CompletionChunk {
	return domain.CompletionChunk{Message: domain.ChatCompletionMessage{Content: text}}
}

func toolChunk(call domain.ToolCallFull) domain.CompletionChunk {
	return domain.CompletionChunk{Message: domain.ChatCompletionMessage{
		ToolCalls: []domain.ToolCallPart{{Full: &call}},
	}}
}

func TestOrchestrator_SimpleEcho(t *testing.T) {
	f := newFixture(t, echoWorkflow())
	f.provider.push("model-a", textChunk("hello"))

	if err := f.orchestrator("hello").Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	responses := f.sink.byAgent("a")
	if len(responses) != 1 || responses[0].Type != domain.ResponseText || responses[0].Text != "hello" {
		t.Errorf("expected a single Text(hello) message, got %+v", responses)
	}

	conv := f.conversationState(t)
	if conv.TurnCount["a"] != 1 {
		t.Errorf("expected turn count 1, got %d", conv.TurnCount["a"])
	}
	if len(conv.Events) != 1 || conv.Events[0].Name != domain.EventNameTaskInit {
		t.Errorf("expected a single task-init event, got %+v", conv.Events)
	}

	chat, ok := conv.Context("a")
	if !ok {
		t.Fatal("expected persisted context")
	}
	roles := messageRoles(chat)
	if len(roles) != 3 || roles[0] != domain.RoleSystem || roles[1] != domain.RoleUser || roles[2] != domain.RoleAssistant {
		t.Fatalf("unexpected context shape: %v", roles)
	}
	if chat.Messages[1].Content != "hello" {
		t.Errorf("expected rendered user prompt, got %q", chat.Messages[1].Content)
	}
	if chat.Messages[2].Content != "hello" || len(chat.Messages[2].ToolCalls) != 0 {
		t.Errorf("unexpected assistant message: %+v", chat.Messages[2])
	}
	if !strings.Contains(chat.Messages[0].Content, "Linux") {
		t.Errorf("expected system context rendered into system prompt, got %q", chat.Messages[0].Content)
	}
}

func TestOrchestrator_SecondTurnDispatchesUpdate(t *testing.T) {
	f := newFixture(t, echoWorkflow())
	f.provider.push("model-a", textChunk("first"))
	f.provider.push("model-a", textChunk("second"))

	if err := f.orchestrator("one").Execute(context.Background()); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if err := f.orchestrator("two").Execute(context.Background()); err != nil {
		t.Fatalf("second turn failed: %v", err)
	}

	conv := f.conversationState(t)
	if len(conv.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(conv.Events))
	}
	if conv.Events[0].Name != domain.EventNameTaskInit || conv.Events[1].Name != domain.EventNameTaskUpdate {
		t.Errorf("expected init then update, got %s, %s", conv.Events[0].Name, conv.Events[1].Name)
	}
	if conv.TurnCount["a"] != 2 {
		t.Errorf("expected turn count 2, got %d", conv.TurnCount["a"])
	}

	chat, _ := conv.Context("a")
	if len(chat.Messages) != 5 {
		t.Errorf("expected persistent context to accumulate 5 messages, got %d", len(chat.Messages))
	}
}

func TestOrchestrator_ToolCallThenAnswer(t *testing.T) {
	workflow := echoWorkflow()
	workflow.Agents[0].Tools = []string{"clock.now"}
	f := newFixture(t, workflow, "clock.now")
	f.tools.outputs["clock.now"] = "12:00"

	f.provider.push("model-a", toolChunk(domain.ToolCallFull{
		CallID:    "call-1",
		Name:      "clock.now",
		Arguments: map[string]any{},
	}))
	f.provider.push("model-a", textChunk("It is 12:00"))

	if err := f.orchestrator("what time is it?").Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.provider.callCount("model-a"); got != 2 {
		t.Errorf("expected exactly 2 provider calls, got %d", got)
	}

	responses := f.sink.byAgent("a")
	if len(responses) != 3 {
		t.Fatalf("expected 3 sink messages, got %+v", responses)
	}
	if responses[0].Type != domain.ResponseToolCallStart || responses[0].ToolCall.Name != "clock.now" {
		t.Errorf("expected ToolCallStart first, got %+v", responses[0])
	}
	if responses[1].Type != domain.ResponseToolCallEnd || responses[1].ToolResult.Content != "12:00" {
		t.Errorf("expected ToolCallEnd second, got %+v", responses[1])
	}
	if responses[2].Type != domain.ResponseText || responses[2].Text != "It is 12:00" {
		t.Errorf("expected Text third, got %+v", responses[2])
	}

	conv := f.conversationState(t)
	chat, _ := conv.Context("a")
	roles := messageRoles(chat)
	want := []domain.Role{domain.RoleSystem, domain.RoleUser, domain.RoleAssistant, domain.RoleTool, domain.RoleAssistant}
	if len(roles) != len(want) {
		t.Fatalf("unexpected context shape: %v", roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("position %d: expected %v, got %v", i, want[i], roles[i])
		}
	}
	if len(chat.Messages[2].ToolCalls) != 1 || chat.Messages[2].ToolCalls[0].CallID != "call-1" {
		t.Errorf("expected assistant message carrying the tool call, got %+v", chat.Messages[2])
	}
	if chat.Messages[3].ToolResult == nil || chat.Messages[3].ToolResult.CallID != "call-1" {
		t.Errorf("expected tool result referencing the call id, got %+v", chat.Messages[3])
	}
}

func TestOrchestrator_XMLEmbeddedToolCall(t *testing.T) {
	workflow := echoWorkflow()
	workflow.Agents[0].Tools = []string{"clock_now"}
	f := newFixture(t, workflow, "clock_now")
	f.tools.outputs["clock_now"] = "12:00"

	f.provider.push("model-a", textChunk("<clock_now></clock_now>"))
	f.provider.push("model-a", textChunk("It is 12:00"))

	if err := f.orchestrator("time?").Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.tools.callCount() != 1 {
		t.Fatalf("expected the embedded call to execute once, got %d", f.tools.callCount())
	}
	if f.provider.callCount("model-a") != 2 {
		t.Errorf("expected 2 provider calls, got %d", f.provider.callCount("model-a"))
	}

	conv := f.conversationState(t)
	chat, _ := conv.Context("a")
	if chat.Messages[2].Role != domain.RoleAssistant || len(chat.Messages[2].ToolCalls) != 1 {
		t.Errorf("expected assistant message with the parsed tool call, got %+v", chat.Messages[2])
	}
}

func TestOrchestrator_EventDispatch(t *testing.T) {
	workflow := domain.Workflow{Agents: []domain.Agent{
		{
			ID:           "a",
			Model:        "model-a",
			Tools:        []string{domain.DispatchToolName},
			Subscribe:    []string{domain.EventNameTaskInit},
			SystemPrompt: "main agent",
			UserPrompt:   "{{event.value}}",
		},
		{
			ID:           "r",
			Model:        "model-r",
			Subscribe:    []string{"review"},
			SystemPrompt: "reviewer",
			UserPrompt:   "{{event.value}}",
		},
	}}
	f := newFixture(t, workflow)

	f.provider.push("model-a", toolChunk(domain.ToolCallFull{
		CallID:    "call-1",
		Name:      domain.DispatchToolName,
		Arguments: map[string]any{"name": "review", "value": "see code"},
	}))
	f.provider.push("model-r", textChunk("reviewed"))

	if err := f.orchestrator("please review").Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.provider.callCount("model-a"); got != 1 {
		t.Errorf("expected dispatching agent to stop after 1 provider call, got %d", got)
	}
	if got := f.provider.callCount("model-r"); got != 1 {
		t.Errorf("expected reviewer to run once, got %d", got)
	}

	conv := f.conversationState(t)
	if conv.TurnCount["a"] != 1 || conv.TurnCount["r"] != 1 {
		t.Errorf("expected both turn counters at 1, got %v", conv.TurnCount)
	}
	if conv.RFindEvent("review") == nil {
		t.Error("expected review event in the log")
	}

	chatA, _ := conv.Context("a")
	for _, msg := range chatA.Messages {
		if msg.Role == domain.RoleTool {
			t.Error("expected no tool result in the dispatching agent's context")
		}
	}

	var sawCustom bool
	for _, response := range f.sink.byAgent("a") {
		if response.Type == domain.ResponseCustom && response.Event.Name == "review" {
			sawCustom = true
		}
	}
	if !sawCustom {
		t.Error("expected a Custom(event) sink message for the dispatch")
	}

	chatR, _ := conv.Context("r")
	if chatR.Messages[len(chatR.Messages)-1].Content != "reviewed" {
		t.Errorf("expected reviewer answer persisted, got %+v", chatR.Messages)
	}
}

func TestOrchestrator_UsageOnlyStream(t *testing.T) {
	f := newFixture(t, echoWorkflow())
	f.provider.push("model-a", domain.CompletionChunk{Message: domain.ChatCompletionMessage{
		Usage: &domain.Usage{PromptTokens: 10, CompletionTokens: 0, TotalTokens: 10},
	}})

	if err := f.orchestrator("hi").Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.provider.callCount("model-a"); got != 1 {
		t.Errorf("expected the inner loop to terminate after 1 call, got %d", got)
	}

	responses := f.sink.byAgent("a")
	if len(responses) != 1 || responses[0].Type != domain.ResponseUsage {
		t.Errorf("expected a single Usage message, got %+v", responses)
	}

	conv := f.conversationState(t)
	chat, _ := conv.Context("a")
	last := chat.Messages[len(chat.Messages)-1]
	if last.Role != domain.RoleAssistant || last.Content != "" {
		t.Errorf("expected empty-content assistant message, got %+v", last)
	}
}

func TestOrchestrator_EphemeralIndependentContexts(t *testing.T) {
	workflow := echoWorkflow()
	workflow.Agents[0].Ephemeral = true
	f := newFixture(t, workflow)
	f.provider.push("model-a", textChunk("one"))
	f.provider.push("model-a", textChunk("two"))

	if err := f.orchestrator("first").Execute(context.Background()); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if err := f.orchestrator("second").Execute(context.Background()); err != nil {
		t.Fatalf("second turn failed: %v", err)
	}

	conv := f.conversationState(t)
	if conv.TurnCount["a"] != 2 {
		t.Errorf("expected turn count 2, got %d", conv.TurnCount["a"])
	}

	// The stored context reflects only the latest invocation, rebuilt from
	// the rendered system prompt.
	chat, _ := conv.Context("a")
	if len(chat.Messages) != 3 {
		t.Fatalf("expected 3 messages in the ephemeral context, got %d", len(chat.Messages))
	}
	if chat.Messages[1].Content != "second" {
		t.Errorf("expected only the latest user message, got %q", chat.Messages[1].Content)
	}
}

func TestOrchestrator_DuplicateCallIDFailsTurn(t *testing.T) {
	workflow := echoWorkflow()
	workflow.Agents[0].Tools = []string{"clock.now"}
	f := newFixture(t, workflow, "clock.now")

	f.provider.push("model-a", domain.CompletionChunk{Message: domain.ChatCompletionMessage{
		ToolCalls: []domain.ToolCallPart{
			{Full: &domain.ToolCallFull{CallID: "call-1", Name: "clock.now", Arguments: map[string]any{}}},
			{Full: &domain.ToolCallFull{CallID: "call-1", Name: "clock.now", Arguments: map[string]any{}}},
		},
	}})

	err := f.orchestrator("time?").Execute(context.Background())
	var parseErr *domain.ToolCallParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ToolCallParseError, got %v", err)
	}

	conv := f.conversationState(t)
	if conv.TurnCount["a"] != 0 {
		t.Errorf("expected no turn increment on fatal failure, got %d", conv.TurnCount["a"])
	}
	if _, ok := conv.Context("a"); ok {
		t.Error("expected no persisted context on fatal failure")
	}
}

func TestOrchestrator_ToolExecutionErrorNotFatal(t *testing.T) {
	workflow := echoWorkflow()
	workflow.Agents[0].Tools = []string{"clock.now"}
	f := newFixture(t, workflow, "clock.now")
	f.tools.errs["clock.now"] = "clock is broken"

	f.provider.push("model-a", toolChunk(domain.ToolCallFull{
		CallID:    "call-1",
		Name:      "clock.now",
		Arguments: map[string]any{},
	}))
	f.provider.push("model-a", textChunk("cannot tell the time"))

	if err := f.orchestrator("time?").Execute(context.Background()); err != nil {
		t.Fatalf("tool failure must not fail the turn: %v", err)
	}

	conv := f.conversationState(t)
	if conv.TurnCount["a"] != 1 {
		t.Errorf("expected turn to complete, got count %d", conv.TurnCount["a"])
	}
	chat, _ := conv.Context("a")
	var sawError bool
	for _, msg := range chat.Messages {
		if msg.ToolResult != nil && msg.ToolResult.IsError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected an error-flagged tool result in the context")
	}
}

func TestOrchestrator_FanOutSiblingsContinue(t *testing.T) {
	workflow := domain.Workflow{Agents: []domain.Agent{
		{ID: "broken", Model: "model-broken", Subscribe: []string{domain.EventNameTaskInit}, SystemPrompt: "x", UserPrompt: "{{event.value}}"},
		{ID: "healthy", Model: "model-healthy", Subscribe: []string{domain.EventNameTaskInit}, SystemPrompt: "x", UserPrompt: "{{event.value}}"},
	}}
	f := newFixture(t, workflow)
	// No script for model-broken: its provider call fails.
	f.provider.push("model-healthy", textChunk("done"))

	err := f.orchestrator("go").Execute(context.Background())
	if err == nil {
		t.Fatal("expected aggregate failure when one agent fails")
	}

	conv := f.conversationState(t)
	if conv.TurnCount["healthy"] != 1 {
		t.Errorf("expected healthy sibling to complete, got count %d", conv.TurnCount["healthy"])
	}
	if conv.TurnCount["broken"] != 0 {
		t.Errorf("expected broken agent not to complete, got count %d", conv.TurnCount["broken"])
	}
	// The triggering event stays in the log.
	if len(conv.Events) != 1 {
		t.Errorf("expected the dispatch event in the log, got %d events", len(conv.Events))
	}
}

func TestOrchestrator_ConversationNotFound(t *testing.T) {
	f := newFixture(t, echoWorkflow())

	request := domain.ChatRequest{ConversationID: "missing", Content: "hi"}
	orchestrator := New(f.services, request, domain.SystemContext{}, nil, charCounter{}, zerolog.Nop())

	err := orchestrator.Execute(context.Background())
	var notFound *domain.ConversationNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ConversationNotFoundError, got %v", err)
	}
}

func TestOrchestrator_SinkFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, echoWorkflow())
	f.provider.push("model-a", textChunk("hello"))

	request := domain.ChatRequest{ConversationID: f.convID, Content: "hi"}
	orchestrator := New(f.services, request, domain.SystemContext{}, failSink{}, charCounter{}, zerolog.Nop())

	if err := orchestrator.Execute(context.Background()); err != nil {
		t.Fatalf("sink failure must be demoted to a warning: %v", err)
	}

	conv := f.conversationState(t)
	if conv.TurnCount["a"] != 1 {
		t.Errorf("expected turn to complete, got count %d", conv.TurnCount["a"])
	}
}

func TestOrchestrator_Suggestions(t *testing.T) {
	workflow := echoWorkflow()
	workflow.Agents[0].Suggestions = true
	workflow.Agents[0].UserPrompt = "{{event.value}}\n<suggestions>\n{{suggestions}}\n</suggestions>"
	f := newFixture(t, workflow)
	f.suggestions.suggestions = []domain.Suggestion{{Suggestion: "try the build first"}}
	f.provider.push("model-a", textChunk("ok"))

	if err := f.orchestrator("fix the bug").Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chat := f.provider.recordedCall("model-a", 0)
	var userMsg string
	for _, msg := range chat.Messages {
		if msg.Role == domain.RoleUser {
			userMsg = msg.Content
		}
	}
	if !strings.Contains(userMsg, "try the build first") {
		t.Errorf("expected suggestions rendered into the user prompt, got %q", userMsg)
	}
	if len(f.suggestions.queries) != 1 || f.suggestions.queries[0] != "fix the bug" {
		t.Errorf("expected the request content as search query, got %v", f.suggestions.queries)
	}
}

// cancellingProvider streams two text chunks, then cancels the request and
// fails the stream the way a dropped connection would.
type cancellingProvider struct {
	cancel context.CancelFunc
}

func (p *cancellingProvider) Chat(ctx context.Context, model string, chat domain.Context) (<-chan domain.CompletionChunk, error) {
	ch := make(chan domain.CompletionChunk, 3)
	ch <- textChunk("Hel")
	ch <- textChunk("lo")
	p.cancel()
	ch <- domain.CompletionChunk{Err: context.Canceled}
	close(ch)
	return ch, nil
}

func (p *cancellingProvider) Models(ctx context.Context) ([]domain.Model, error) {
	return nil, nil
}

func (p *cancellingProvider) Parameters(ctx context.Context, model string) (domain.Parameters, error) {
	return domain.Parameters{ToolSupported: true}, nil
}

func TestOrchestrator_CancellationMidStream(t *testing.T) {
	logger := zerolog.Nop()
	conversations := conversation.NewService(logger)
	id, err := conversations.Create(context.Background(), echoWorkflow())
	if err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &sliceSink{}
	services := app.New(&cancellingProvider{cancel: cancel}, newMockToolService(), conversations, template.NewService(), &mockSuggestionService{})
	request := domain.ChatRequest{ConversationID: id, Content: "hi"}
	orchestrator := New(services, request, domain.SystemContext{}, sink, charCounter{}, logger)

	err = orchestrator.Execute(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected Cancelled, got %v", err)
	}

	conv, _ := conversations.Get(context.Background(), id)
	if conv.TurnCount["a"] != 0 {
		t.Errorf("expected no turn increment after cancellation, got %d", conv.TurnCount["a"])
	}
	if _, ok := conv.Context("a"); ok {
		t.Error("expected no persisted context after cancellation")
	}
	// The event that triggered the dispatch stays in the log.
	if len(conv.Events) != 1 {
		t.Errorf("expected the dispatch event in the log, got %d", len(conv.Events))
	}

	responses := sink.byAgent("a")
	if len(responses) != 2 {
		t.Errorf("expected the two streamed chunks before cancellation, got %+v", responses)
	}
}

func messageRoles(chat domain.Context) []domain.Role {
	roles := make([]domain.Role, 0, len(chat.Messages))
	for _, msg := range chat.Messages {
		roles = append(roles, msg.Role)
	}
	return roles
}
