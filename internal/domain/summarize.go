package domain

// Summarizer drives iterative history compression for the assistant
// transform. While the context's text form exceeds the token limit it
// yields spans of old messages to be replaced by summaries.
type Summarizer struct {
	context    *Context
	tokenLimit int
	counter    TokenCounter

	lastStart int
	replaced  bool
}

// NewSummarizer builds a summarizer over a context.
func NewSummarizer(chat *Context, tokenLimit int, counter TokenCounter) *Summarizer {
	return &Summarizer{
		context:    chat,
		tokenLimit: tokenLimit,
		counter:    counter,
		lastStart:  -1,
	}
}

// Summarize returns the next compressible span, or nil when the context is
// within budget or no further span can be selected. A span is the oldest
// contiguous range of non-system messages whose removal leaves the user's
// most recent turn intact.
func (s *Summarizer) Summarize() *Span {
	if s.counter.Count(s.context.ToText()) <= s.tokenLimit {
		return nil
	}

	start := 0
	if len(s.context.Messages) > 0 && s.context.Messages[0].Role == RoleSystem {
		start = 1
	}

	lastUser := -1
	for i := len(s.context.Messages) - 1; i >= 0; i-- {
		if s.context.Messages[i].Role == RoleUser {
			lastUser = i
			break
		}
	}
	if lastUser < 0 || lastUser <= start {
		return nil
	}

	// A span of exactly one message at the previous replacement position is
	// the summary we just produced; selecting it again would never converge.
	if s.replaced && s.lastStart == start && lastUser-start == 1 {
		return nil
	}

	s.lastStart = start
	s.replaced = true
	return &Span{context: s.context, start: start, end: lastUser}
}

// Span is a candidate range for compression.
type Span struct {
	context *Context
	start   int
	end     int
}

// Text renders the span's messages for the summarizing agent.
func (sp *Span) Text() string {
	section := Context{Messages: sp.context.Messages[sp.start:sp.end]}
	return section.ToText()
}

// Set replaces the span with a single assistant message carrying the
// summary.
func (sp *Span) Set(summary string) {
	messages := make([]ContextMessage, 0, len(sp.context.Messages)-(sp.end-sp.start)+1)
	messages = append(messages, sp.context.Messages[:sp.start]...)
	messages = append(messages, AssistantMessage(summary, nil))
	messages = append(messages, sp.context.Messages[sp.end:]...)
	sp.context.Messages = messages
}
