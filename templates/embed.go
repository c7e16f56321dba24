package templates

import "embed"

//go:embed system.md user.md summarizer.md
var FS embed.FS

// System returns the default coder system prompt template.
func System() (string, error) {
	data, err := FS.ReadFile("system.md")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// User returns the default user prompt template.
func User() (string, error) {
	data, err := FS.ReadFile("user.md")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Summarizer returns the summarizer agent's system prompt template.
func Summarizer() (string, error) {
	data, err := FS.ReadFile("summarizer.md")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
