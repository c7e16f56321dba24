package orch

import (
	"context"

	"github.com/loop-index/forge/internal/domain"
)

// ChannelSink adapts a channel to the message sink interface. Sends block
// until the consumer is ready, so consumer back-pressure propagates into
// the orchestrator.
type ChannelSink struct {
	ch chan<- domain.AgentMessage
}

// NewChannelSink wraps a channel.
func NewChannelSink(ch chan<- domain.AgentMessage) *ChannelSink {
	return &ChannelSink{ch: ch}
}

// Send delivers one message, or fails when the context is done first.
func (s *ChannelSink) Send(ctx context.Context, msg domain.AgentMessage) error {
	select {
	case s.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
