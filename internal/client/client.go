// Package client talks to the forged daemon: streaming chat over
// WebSocket, status and shutdown over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/gorilla/websocket"
	"github.com/loop-index/forge/internal/daemon"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// Verbosity levels
type Verbosity int

const (
	VerbosityNormal Verbosity = iota // Show text + minimal tool info
	VerbosityQuiet                   // Only show assistant text
	VerbosityVerbose                 // Show everything including tool details
)

// Client handles communication with the daemon.
type Client struct {
	baseURL string
	wsURL   string
}

// NewClient creates a new client for a daemon on the given port.
func NewClient(port int) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://localhost:%d", port),
		wsURL:   fmt.Sprintf("ws://localhost:%d", port),
	}
}

// ChatOptions configures chat behavior.
type ChatOptions struct {
	Verbosity Verbosity
	Render    bool // render the final answer as markdown
}

// IsRunning reports whether a daemon answers on the health endpoint.
func (c *Client) IsRunning(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*daemon.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	var status daemon.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Terminate asks the daemon to shut down.
func (c *Client) Terminate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/shutdown", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return nil
}

// Chat sends one message and streams the reply to out until the daemon
// reports the turn is done.
func (c *Client) Chat(ctx context.Context, message string, opts ChatOptions, out io.Writer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL+"/ws/chat", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(daemon.ChatRequest{Message: message}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	spin := newSpinner(out)
	spin.Start()
	firstText := true

	var answer strings.Builder
	for {
		var frame daemon.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			spin.Stop()
			return fmt.Errorf("failed to read response: %w", err)
		}

		switch frame.Type {
		case "text":
			if firstText {
				spin.Stop()
				firstText = false
			}
			answer.WriteString(frame.Text)
			if !opts.Render {
				fmt.Fprint(out, frame.Text)
			}

		case "tool_call_start":
			if opts.Verbosity != VerbosityQuiet && frame.ToolCall != nil {
				spin.Pause()
				fmt.Fprintf(out, "%s⚙ %s(%s)%s\n", colorYellow, frame.ToolCall.Name, summarizeArgs(frame.ToolCall.Arguments), colorReset)
				spin.Resume()
			}

		case "tool_call_end":
			if opts.Verbosity == VerbosityVerbose && frame.ToolResult != nil {
				spin.Pause()
				fmt.Fprintf(out, "%s%s%s\n", colorGray, frame.ToolResult.String(), colorReset)
				spin.Resume()
			}

		case "event":
			if opts.Verbosity != VerbosityQuiet && frame.Event != nil {
				spin.Pause()
				fmt.Fprintf(out, "%s→ event %s%s\n", colorGray, frame.Event.Name, colorReset)
				spin.Resume()
			}

		case "usage":
			// Usage frames are informational only.

		case "error":
			spin.Stop()
			return fmt.Errorf("daemon error: %s", frame.Error)

		case "done":
			spin.Stop()
			if opts.Render {
				return renderMarkdown(out, answer.String())
			}
			fmt.Fprintln(out)
			return nil
		}
	}
}

func renderMarkdown(out io.Writer, text string) error {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Fprintln(out, text)
		return nil
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		fmt.Fprintln(out, text)
		return nil
	}
	fmt.Fprint(out, rendered)
	return nil
}

func summarizeArgs(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	s := string(data)
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}

// spinner displays an animated spinner while waiting.
type spinner struct {
	frames   []string
	interval time.Duration
	output   io.Writer
	stop     chan struct{}
	mu       sync.Mutex
	running  bool
	paused   bool
}

func newSpinner(output io.Writer) *spinner {
	return &spinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 80 * time.Millisecond,
		output:   output,
	}
}

func (s *spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})

	go func() {
		frame := 0
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.paused {
					fmt.Fprintf(s.output, "\r%s ", s.frames[frame%len(s.frames)])
					frame++
				}
				s.mu.Unlock()
			}
		}
	}()
}

func (s *spinner) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.paused = true
		fmt.Fprint(s.output, "\r  \r")
	}
}

func (s *spinner) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

func (s *spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	fmt.Fprint(s.output, "\r  \r")
}
