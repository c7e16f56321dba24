// Package provider implements the streaming chat provider against an
// Ollama-compatible API.
package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/loop-index/forge/internal/domain"
	"github.com/rs/zerolog"
)

// Ollama implements domain.ProviderService.
type Ollama struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	mu         sync.RWMutex
	paramCache map[string]domain.Parameters
}

// NewOllama creates a client for the given base URL.
func NewOllama(baseURL string, logger zerolog.Logger) *Ollama {
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger,
		paramCache: make(map[string]domain.Parameters),
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []toolSchema  `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type toolSchema struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireToolCall struct {
	ID       string       `json:"id,omitempty"`
	Index    *int         `json:"index,omitempty"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	Error           string      `json:"error,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
}

// Chat sends the transcript and streams completion chunks. The returned
// channel closes when the stream terminates; a chunk with Err set is the
// final element of a failed stream.
func (c *Ollama) Chat(ctx context.Context, model string, chat domain.Context) (<-chan domain.CompletionChunk, error) {
	req := chatRequest{
		Model:    model,
		Messages: toWireMessages(chat),
		Tools:    toWireTools(chat.Tools),
		Stream:   true,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	chunks := make(chan domain.CompletionChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		// emit delivers a chunk unless the request is done; delivery must
		// never outlive the caller.
		emit := func(chunk domain.CompletionChunk) bool {
			select {
			case chunks <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				emit(domain.CompletionChunk{Err: ctx.Err()})
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var streamed chatResponse
			if err := json.Unmarshal(line, &streamed); err != nil {
				emit(domain.CompletionChunk{Err: fmt.Errorf("failed to unmarshal response: %w", err)})
				return
			}
			if streamed.Error != "" {
				emit(domain.CompletionChunk{Err: fmt.Errorf("provider error: %s", streamed.Error)})
				return
			}

			msg := domain.ChatCompletionMessage{
				Content:   streamed.Message.Content,
				ToolCalls: toDomainParts(streamed.Message.ToolCalls),
			}
			if streamed.Done {
				msg.Usage = &domain.Usage{
					PromptTokens:     streamed.PromptEvalCount,
					CompletionTokens: streamed.EvalCount,
					TotalTokens:      streamed.PromptEvalCount + streamed.EvalCount,
				}
			}
			if msg.Content != "" || len(msg.ToolCalls) > 0 || msg.Usage != nil {
				if !emit(domain.CompletionChunk{Message: msg}) {
					return
				}
			}
			if streamed.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			emit(domain.CompletionChunk{Err: fmt.Errorf("error reading response: %w", err)})
		}
	}()

	return chunks, nil
}

// Models lists the models available on the server.
func (c *Ollama) Models(ctx context.Context) ([]domain.Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode models: %w", err)
	}

	models := make([]domain.Model, 0, len(decoded.Models))
	for _, m := range decoded.Models {
		models = append(models, domain.Model{ID: m.Model, Name: m.Name})
	}
	return models, nil
}

// Parameters reports per-model capabilities. Results are cached per model.
func (c *Ollama) Parameters(ctx context.Context, model string) (domain.Parameters, error) {
	c.mu.RLock()
	cached, ok := c.paramCache[model]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	body, err := json.Marshal(map[string]string{"model": model})
	if err != nil {
		return domain.Parameters{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/show", bytes.NewReader(body))
	if err != nil {
		return domain.Parameters{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Parameters{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.Parameters{}, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Capabilities []string `json:"capabilities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Parameters{}, fmt.Errorf("failed to decode model info: %w", err)
	}

	// Older servers report no capability list; assume tool support there.
	params := domain.Parameters{ToolSupported: len(decoded.Capabilities) == 0}
	for _, capability := range decoded.Capabilities {
		if capability == "tools" {
			params.ToolSupported = true
			break
		}
	}

	c.mu.Lock()
	c.paramCache[model] = params
	c.mu.Unlock()
	return params, nil
}

// Health checks if the server is reachable.
func (c *Ollama) Health(ctx context.Context) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func toWireMessages(chat domain.Context) []chatMessage {
	messages := make([]chatMessage, 0, len(chat.Messages))
	for _, msg := range chat.Messages {
		wire := chatMessage{Role: string(msg.Role), Content: msg.Content}
		for _, call := range msg.ToolCalls {
			args, err := json.Marshal(call.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			wire.ToolCalls = append(wire.ToolCalls, wireToolCall{
				ID:       call.CallID,
				Function: wireFunction{Name: call.Name, Arguments: args},
			})
		}
		messages = append(messages, wire)
	}
	return messages
}

func toWireTools(defs []domain.ToolDefinition) []toolSchema {
	schemas := make([]toolSchema, 0, len(defs))
	for _, def := range defs {
		schemas = append(schemas, toolSchema{
			Type: "function",
			Function: toolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return schemas
}

// toDomainParts maps streamed tool-call entries. Entries whose arguments
// form a complete JSON object are full calls; anything else is a partial
// fragment keyed by its stream index.
func toDomainParts(calls []wireToolCall) []domain.ToolCallPart {
	parts := make([]domain.ToolCallPart, 0, len(calls))
	for i, call := range calls {
		var args map[string]any
		if call.Function.Name != "" && len(call.Function.Arguments) > 0 &&
			json.Unmarshal(call.Function.Arguments, &args) == nil {
			parts = append(parts, domain.ToolCallPart{
				Full: &domain.ToolCallFull{
					CallID:    call.ID,
					Name:      call.Function.Name,
					Arguments: args,
				},
			})
			continue
		}

		index := i
		if call.Index != nil {
			index = *call.Index
		}
		fragment := string(call.Function.Arguments)
		if unquoted, err := strconvUnquote(fragment); err == nil {
			fragment = unquoted
		}
		parts = append(parts, domain.ToolCallPart{
			Partial: &domain.ToolCallPartial{
				Index:             index,
				CallID:            call.ID,
				Name:              call.Function.Name,
				ArgumentsFragment: fragment,
			},
		})
	}
	return parts
}

func strconvUnquote(s string) (string, error) {
	var out string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return "", err
	}
	return out, nil
}
