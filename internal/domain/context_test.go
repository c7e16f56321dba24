package domain

import (
	"strings"
	"testing"
)

func TestContext_SetFirstSystemMessage(t *testing.T) {
	chat := Context{}.AddMessage(UserMessage("hi"))
	chat = chat.SetFirstSystemMessage("be helpful")

	if chat.Messages[0].Role != RoleSystem {
		t.Fatalf("expected system message at position 0, got %v", chat.Messages[0].Role)
	}
	if chat.Messages[1].Role != RoleUser {
		t.Errorf("expected user message preserved at position 1")
	}

	// Replacing keeps the message count stable.
	chat = chat.SetFirstSystemMessage("be terse")
	if len(chat.Messages) != 2 {
		t.Fatalf("expected 2 messages after replacement, got %d", len(chat.Messages))
	}
	if chat.Messages[0].Content != "be terse" {
		t.Errorf("expected replaced system message, got %q", chat.Messages[0].Content)
	}
}

func TestContext_AddToolResults(t *testing.T) {
	result := NewToolResult("shell").WithContent("ok")
	chat := Context{}.AddToolResults([]ToolResult{result})

	if len(chat.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(chat.Messages))
	}
	msg := chat.Messages[0]
	if msg.Role != RoleTool {
		t.Errorf("expected tool role, got %v", msg.Role)
	}
	if msg.ToolResult == nil || msg.ToolResult.Name != "shell" {
		t.Errorf("expected attached tool result, got %v", msg.ToolResult)
	}
	if !strings.Contains(msg.Content, "<tool_result>") {
		t.Errorf("expected XML rendering in content, got %q", msg.Content)
	}
}

func TestContext_Clone(t *testing.T) {
	chat := Context{}.
		SetFirstSystemMessage("sys").
		AddMessage(UserMessage("hi")).
		ExtendTools([]ToolDefinition{{Name: "shell"}})

	clone := chat.Clone()
	clone.Messages[0].Content = "mutated"
	clone.Tools[0].Name = "mutated"

	if chat.Messages[0].Content != "sys" {
		t.Error("clone mutation leaked into original messages")
	}
	if chat.Tools[0].Name != "shell" {
		t.Error("clone mutation leaked into original tools")
	}
}

func TestContext_ToText(t *testing.T) {
	chat := Context{}.
		SetFirstSystemMessage("sys").
		AddMessage(UserMessage("hello")).
		AddMessage(AssistantMessage("hi", []ToolCallFull{{Name: "shell"}}))

	text := chat.ToText()
	for _, want := range []string{"system: sys", "user: hello", "assistant: hi", "[tool_call shell]"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in text projection:\n%s", want, text)
		}
	}
}
