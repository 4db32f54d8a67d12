package promptgraph

import (
	"errors"
	"strings"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph/llm"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/observability"
	"go.opentelemetry.io/otel/attribute"
)

// llmExecutor streams a completion for the joined input text and broadcasts
// it to the node's output sinks.
type llmExecutor struct {
	defaults LLMDefaults
}

func (e llmExecutor) Execute(ctx Context, id string) error {
	g := ctx.Graph()
	n, err := mustKind(g, id, KindLLM)
	if err != nil {
		return err
	}
	if err := g.ApplyStatus(id, StatusRunning, ""); err != nil {
		return err
	}

	prompt := JoinInputs(g.InputsOf(id))
	if strings.TrimSpace(prompt) == "" {
		emptyErr := &EmptyInputError{NodeID: id}
		if err := g.ApplyStatus(id, StatusError, emptyErr.Error()); err != nil {
			return err
		}
		return emptyErr
	}

	client := ctx.LLM()
	if client == nil {
		return e.fail(ctx, id, ErrNoModelClient)
	}

	b := ctx.Broadcaster()
	if err := b.Reset(id); err != nil {
		return err
	}

	stream, err := client.Stream(ctx, e.request(n.LLM(), prompt))
	if err != nil {
		if ctx.Err() != nil {
			return e.cancelled(ctx, id)
		}
		return e.fail(ctx, id, err)
	}
	if ctx.Err() != nil {
		return e.cancelled(ctx, id)
	}
	if err := b.Begin(id); err != nil {
		return err
	}
	observability.AddSpanEvent(ctx, "stream.begin", attribute.Int("sinks", len(b.Sinks(id))))

	var text strings.Builder
	for {
		select {
		case <-ctx.Done():
			return e.cancelled(ctx, id)

		case chunk, ok := <-stream:
			// Both cases may be ready; never write after cancellation.
			if ctx.Err() != nil {
				return e.cancelled(ctx, id)
			}
			if !ok {
				return e.fail(ctx, id, errors.New("stream closed before completion"))
			}
			if chunk.Error != nil {
				return e.fail(ctx, id, chunk.Error)
			}
			if chunk.Content != "" {
				text.WriteString(chunk.Content)
				if err := b.Content(id, text.String()); err != nil {
					return err
				}
			}
			if chunk.Done {
				final := chunk.Text
				if final == "" {
					final = text.String()
				}
				observability.AddSpanEvent(ctx, "stream.complete", attribute.Int("content_len", len(final)))
				return b.Complete(id, final, tokenCount(chunk.Usage))
			}
		}
	}
}

func (e llmExecutor) request(d *LLMData, prompt string) llm.CompletionRequest {
	model := d.Model
	if model == "" {
		model = e.defaults.Model
	}
	return llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: d.SystemPrompt,
		Model:        model,
		MaxTokens:    d.MaxTokens,
		Temperature:  d.Temperature,
	}
}

// fail records the same message on the node and its sinks.
func (llmExecutor) fail(ctx Context, id string, cause error) error {
	msg := cause.Error()
	var lerr *llm.Error
	if errors.As(cause, &lerr) {
		msg = lerr.Err.Error()
	}
	if err := ctx.Broadcaster().Fail(id, msg); err != nil {
		return err
	}
	return &ModelServiceError{NodeID: id, Message: msg, Err: cause}
}

func (llmExecutor) cancelled(ctx Context, id string) error {
	return &CancellationError{NodeID: id, Tick: ctx.Tick(), Cause: ctx.Err()}
}

// tokenCount returns the output token count, or nil if the service
// reported none.
func tokenCount(u *llm.TokenUsage) *int {
	if u == nil || u.OutputTokens < 0 {
		return nil
	}
	n := u.OutputTokens
	return &n
}
