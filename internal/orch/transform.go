package orch

import (
	"context"

	"github.com/loop-index/forge/internal/domain"
)

// executeTransforms applies an agent's transform pipeline in declared
// order. Each transform receives the context produced by its predecessor;
// transforms may recursively run other agents' turns.
func (o *Orchestrator) executeTransforms(ctx context.Context, transforms []domain.Transform, chat domain.Context) (domain.Context, error) {
	for _, transform := range transforms {
		var err error
		switch transform.Kind {
		case domain.TransformAssistant:
			err = o.assistantTransform(ctx, transform, &chat)
		case domain.TransformUser:
			err = o.userTransform(ctx, transform, &chat)
		case domain.TransformPassThrough:
			err = o.passThroughTransform(ctx, transform, chat)
		}
		if err != nil {
			if ctx.Err() != nil {
				return chat, ctx.Err()
			}
			return chat, &domain.TransformError{Kind: transform.Kind, Err: err}
		}
	}
	return chat, nil
}

// assistantTransform compresses oversized histories: while the context
// exceeds the token limit, the oldest compressible span is summarized by
// the transform's agent and replaced with a single assistant message.
func (o *Orchestrator) assistantTransform(ctx context.Context, transform domain.Transform, chat *domain.Context) error {
	summarizer := domain.NewSummarizer(chat, transform.TokenLimit, o.counter)
	for {
		span := summarizer.Summarize()
		if span == nil {
			return nil
		}

		input := domain.NewEvent(transform.Input, span.Text())
		if err := o.initAgent(ctx, transform.AgentID, input); err != nil {
			return err
		}

		output, err := o.getLastEvent(ctx, transform.Output)
		if err != nil {
			return err
		}
		if output == nil {
			o.logger.Warn().
				Str("agent", string(transform.AgentID)).
				Str("output", transform.Output).
				Msg("summarizing agent produced no output event")
			return nil
		}
		span.Set(output.ValueString())
	}
}

// userTransform pre-processes the latest user message: its content is
// dispatched to the transform's agent as a task-init event and the agent's
// output is appended to the message, wrapped in output-key delimiters.
func (o *Orchestrator) userTransform(ctx context.Context, transform domain.Transform, chat *domain.Context) error {
	if len(chat.Messages) == 0 {
		return nil
	}
	last := len(chat.Messages) - 1
	if chat.Messages[last].Role != domain.RoleUser {
		return nil
	}

	task := domain.TaskInitEvent(chat.Messages[last].Content)
	if err := o.initAgent(ctx, transform.AgentID, task); err != nil {
		return err
	}

	output, err := o.getLastEvent(ctx, transform.Output)
	if err != nil {
		return err
	}
	if output == nil {
		return nil
	}

	messages := append([]domain.ContextMessage{}, chat.Messages...)
	messages[last].Content += "\n<" + transform.Output + ">\n" +
		output.ValueString() + "\n</" + transform.Output + ">"
	chat.Messages = messages

	o.logger.Debug().Str("content", messages[last].Content).Msg("transformed user input")
	return nil
}

// passThroughTransform sends the context's text form to the transform's
// agent without modifying the caller's context.
func (o *Orchestrator) passThroughTransform(ctx context.Context, transform domain.Transform, chat domain.Context) error {
	input := domain.NewEvent(transform.Input, chat.ToText())
	return o.initAgent(ctx, transform.AgentID, input)
}
