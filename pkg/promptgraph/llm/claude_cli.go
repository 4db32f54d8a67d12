package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI implements Client using the Claude CLI binary.
type ClaudeCLI struct {
	path    string
	model   string
	workdir string
	timeout time.Duration
}

// ClaudeOption configures ClaudeCLI.
type ClaudeOption func(*ClaudeCLI)

// NewClaudeCLI creates a new Claude CLI client.
// Assumes "claude" is available in PATH unless overridden with WithClaudePath.
func NewClaudeCLI(opts ...ClaudeOption) *ClaudeCLI {
	c := &ClaudeCLI{
		path:    "claude",
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithClaudePath sets the path to the claude binary.
func WithClaudePath(path string) ClaudeOption {
	return func(c *ClaudeCLI) {
		if path != "" {
			c.path = path
		}
	}
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) ClaudeOption {
	return func(c *ClaudeCLI) { c.model = model }
}

// WithWorkdir sets the working directory for claude commands.
func WithWorkdir(dir string) ClaudeOption {
	return func(c *ClaudeCLI) { c.workdir = dir }
}

// WithTimeout bounds a single streaming call. Zero disables the bound.
func WithTimeout(d time.Duration) ClaudeOption {
	return func(c *ClaudeCLI) { c.timeout = d }
}

// Stream implements Client.
func (c *ClaudeCLI) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, NewError("stream", ErrEmptyPrompt, false)
	}

	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	cmd := exec.CommandContext(ctx, c.path, c.buildArgs(req)...)
	if c.workdir != "" {
		cmd.Dir = c.workdir
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, NewError("stream", fmt.Errorf("create stdout pipe: %w", err), false)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, NewError("start", fmt.Errorf("start command: %w", err), false)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer cancel()

		finished := readStream(ctx, stdout, ch)
		waitErr := cmd.Wait()
		if finished {
			return
		}
		if ctx.Err() != nil {
			trySend(ch, StreamChunk{Error: NewError("stream", ctx.Err(), false)})
			return
		}
		if waitErr != nil {
			msg := strings.TrimSpace(stderr.String())
			trySend(ch, StreamChunk{Error: NewError("stream", fmt.Errorf("%w: %s", waitErr, msg), isRetryableError(msg))})
			return
		}
		trySend(ch, StreamChunk{Done: true})
	}()

	return ch, nil
}

// buildArgs constructs CLI arguments from a request.
func (c *ClaudeCLI) buildArgs(req CompletionRequest) []string {
	args := []string{"--print", "--output-format", "stream-json", "--verbose", "--include-partial-messages"}

	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}

	// Model priority: request > client default
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	// The CLI has no output limit or temperature flags; MaxTokens and
	// Temperature only apply to clients that call the API directly.

	return append(args, "-p", strings.TrimSpace(req.Prompt))
}

// readStream forwards stream-json events from r to ch. It returns true when
// a terminal chunk (Done or Error) was delivered.
//
// Partial message deltas (stream_event, or bare content_block_delta) are
// forwarded as they arrive. Without them each assistant message is forwarded
// whole. The result event ends the stream and carries the final text.
func readStream(ctx context.Context, r io.Reader, ch chan<- StreamChunk) bool {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	send := func(chunk StreamChunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var (
		partial   bool
		assembled strings.Builder
	)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			// Not JSON, treat as raw text
			if !send(StreamChunk{Content: string(line) + "\n"}) {
				return false
			}
			continue
		}

		switch event.Type {
		case "stream_event", "content_block_delta":
			if text := event.deltaText(); text != "" {
				partial = true
				if !send(StreamChunk{Content: text}) {
					return false
				}
			}
		case "assistant":
			text := event.messageText()
			if text == "" {
				continue
			}
			assembled.WriteString(text)
			if !partial && !send(StreamChunk{Content: text}) {
				return false
			}
		case "message_stop", "result":
			if event.IsError {
				send(StreamChunk{Error: NewError("stream", fmt.Errorf("%s", event.Result), isRetryableError(event.Result))})
				return true
			}
			final := event.Result
			if final == "" {
				final = assembled.String()
			}
			usage := &TokenUsage{
				InputTokens:  event.Usage.InputTokens,
				OutputTokens: event.Usage.OutputTokens,
				TotalTokens:  event.Usage.InputTokens + event.Usage.OutputTokens,
			}
			send(StreamChunk{Done: true, Text: final, Usage: usage})
			return true
		case "error":
			msg := "unknown error"
			if event.Error != nil {
				msg = event.Error.Message
			}
			send(StreamChunk{Error: NewError("stream", fmt.Errorf("%s", msg), isRetryableError(msg))})
			return true
		}
	}

	if err := scanner.Err(); err != nil {
		send(StreamChunk{Error: NewError("read", fmt.Errorf("read output: %w", err), false)})
		return true
	}
	return false
}

// trySend delivers a final chunk if the consumer is still listening.
func trySend(ch chan<- StreamChunk, chunk StreamChunk) {
	select {
	case ch <- chunk:
	case <-time.After(time.Second):
	}
}

// isRetryableError checks if an error message indicates a transient error.
func isRetryableError(errMsg string) bool {
	errLower := strings.ToLower(errMsg)
	return strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "overloaded") ||
		strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "529")
}

// streamEvent represents one line of claude stream-json output.
type streamEvent struct {
	Type    string         `json:"type"`
	Delta   *streamDelta   `json:"delta,omitempty"`
	Event   *streamEvent   `json:"event,omitempty"`
	Message *streamMessage `json:"message,omitempty"`
	Result  string         `json:"result,omitempty"`
	IsError bool           `json:"is_error,omitempty"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

type streamDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type streamMessage struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// deltaText returns the text of a content_block_delta, bare or wrapped in a
// stream_event.
func (e *streamEvent) deltaText() string {
	if e.Type == "stream_event" {
		if e.Event == nil {
			return ""
		}
		e = e.Event
	}
	if e.Type != "content_block_delta" || e.Delta == nil {
		return ""
	}
	return e.Delta.Text
}

// messageText joins the text blocks of an assistant message.
func (e *streamEvent) messageText() string {
	if e.Message == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range e.Message.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}
