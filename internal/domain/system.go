package domain

import (
	"os"
	"runtime"
)

// SystemContext is the environment metadata injected into system-prompt
// templates. It is cloned and mutated per agent initialization.
type SystemContext struct {
	OS               string `json:"os"`
	Shell            string `json:"shell"`
	Username         string `json:"username"`
	HomeDirectory    string `json:"home_directory"`
	WorkingDirectory string `json:"working_directory"`
	ToolSupported    *bool  `json:"tool_supported,omitempty"`
	ToolInformation  string `json:"tool_information,omitempty"`
}

// NewSystemContext populates a system context from the environment.
func NewSystemContext() SystemContext {
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return SystemContext{
		OS:               osName(),
		Shell:            os.Getenv("SHELL"),
		Username:         username,
		HomeDirectory:    home,
		WorkingDirectory: cwd,
	}
}

// Clone returns an independent copy.
func (s SystemContext) Clone() SystemContext {
	clone := s
	if s.ToolSupported != nil {
		supported := *s.ToolSupported
		clone.ToolSupported = &supported
	}
	return clone
}

// WithToolSupported returns a copy with the capability flag set.
func (s SystemContext) WithToolSupported(supported bool) SystemContext {
	clone := s.Clone()
	clone.ToolSupported = &supported
	return clone
}

// WithToolInformation returns a copy carrying the concatenated per-tool
// usage prompts.
func (s SystemContext) WithToolInformation(info string) SystemContext {
	clone := s.Clone()
	clone.ToolInformation = info
	return clone
}

func osName() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS"
	case "linux":
		return "Linux"
	case "windows":
		return "Windows"
	default:
		return runtime.GOOS
	}
}

// UserContext is the value a user-prompt template renders against.
type UserContext struct {
	Event       Event    `json:"event"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// NewUserContext builds a user context for a dispatch event.
func NewUserContext(event Event) UserContext {
	return UserContext{Event: event}
}

// WithSuggestions returns a copy enriched with suggestion search results.
func (u UserContext) WithSuggestions(suggestions []string) UserContext {
	u.Suggestions = suggestions
	return u
}
