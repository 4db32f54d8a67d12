package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		client   *ClaudeCLI
		req      CompletionRequest
		contains []string
		excludes []string
	}{
		{
			name:     "basic request",
			client:   NewClaudeCLI(),
			req:      CompletionRequest{Prompt: "Hello"},
			contains: []string{"--print", "stream-json", "--include-partial-messages", "-p", "Hello"},
			excludes: []string{"--model", "--system-prompt"},
		},
		{
			name:     "with system prompt",
			client:   NewClaudeCLI(),
			req:      CompletionRequest{Prompt: "Hi", SystemPrompt: "Be helpful"},
			contains: []string{"--system-prompt", "Be helpful"},
		},
		{
			name:     "with model from client",
			client:   NewClaudeCLI(WithModel("claude-3-opus")),
			req:      CompletionRequest{Prompt: "Test"},
			contains: []string{"--model", "claude-3-opus"},
		},
		{
			name:     "request model overrides client",
			client:   NewClaudeCLI(WithModel("default-model")),
			req:      CompletionRequest{Prompt: "Test", Model: "request-model"},
			contains: []string{"--model", "request-model"},
			excludes: []string{"default-model"},
		},
		{
			name:     "max tokens is not a CLI flag",
			client:   NewClaudeCLI(),
			req:      CompletionRequest{Prompt: "Test", MaxTokens: 150},
			excludes: []string{"--max-tokens", "150"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.client.buildArgs(tt.req)
			for _, want := range tt.contains {
				assert.Contains(t, args, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, args, unwanted)
			}
		})
	}
}

func collect(t *testing.T, input string) ([]StreamChunk, bool) {
	t.Helper()
	ch := make(chan StreamChunk, 32)
	finished := readStream(context.Background(), strings.NewReader(input), ch)
	close(ch)
	var chunks []StreamChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	return chunks, finished
}

func TestReadStream_Deltas(t *testing.T) {
	input := `{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}
{"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}

{"type":"message_stop","usage":{"input_tokens":3,"output_tokens":2}}
`
	chunks, finished := collect(t, input)
	require.True(t, finished)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Hel", chunks[0].Content)
	assert.Equal(t, "lo", chunks[1].Content)
	assert.True(t, chunks[2].Done)
	assert.Equal(t, 2, chunks[2].Usage.OutputTokens)
	assert.Equal(t, 5, chunks[2].Usage.TotalTokens)
}

func TestReadStream_AssistantAndResult(t *testing.T) {
	input := `{"type":"system","subtype":"init","session_id":"s1"}
{"type":"assistant","message":{"content":[{"type":"text","text":"Hello there"}]}}
{"type":"result","subtype":"success","result":"Hello there","usage":{"input_tokens":3,"output_tokens":2}}
`
	chunks, finished := collect(t, input)
	require.True(t, finished)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Hello there", chunks[0].Content)
	assert.True(t, chunks[1].Done)
	assert.Equal(t, "Hello there", chunks[1].Text)
	assert.Equal(t, 2, chunks[1].Usage.OutputTokens)
}

func TestReadStream_PartialMessages(t *testing.T) {
	input := `{"type":"stream_event","event":{"type":"message_start"}}
{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}}
{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}}
{"type":"stream_event","event":{"type":"message_stop"}}
{"type":"assistant","message":{"content":[{"type":"text","text":"Hello"}]}}
{"type":"result","result":"Hello","usage":{"input_tokens":1,"output_tokens":1}}
`
	chunks, finished := collect(t, input)
	require.True(t, finished)
	require.Len(t, chunks, 3, "the assistant message repeats the deltas and is not forwarded")
	assert.Equal(t, "Hel", chunks[0].Content)
	assert.Equal(t, "lo", chunks[1].Content)
	assert.True(t, chunks[2].Done)
	assert.Equal(t, "Hello", chunks[2].Text)
}

func TestReadStream_ResultWithoutTextUsesAssistant(t *testing.T) {
	input := `{"type":"assistant","message":{"content":[{"type":"text","text":"one "},{"type":"tool_use","id":"t"}]}}
{"type":"assistant","message":{"content":[{"type":"text","text":"two"}]}}
{"type":"result","usage":{"output_tokens":2}}
`
	chunks, _ := collect(t, input)
	require.Len(t, chunks, 3)
	assert.Equal(t, "one two", chunks[2].Text)
}

func TestReadStream_ResultError(t *testing.T) {
	input := `{"type":"result","is_error":true,"result":"rate limit exceeded"}` + "\n"
	chunks, finished := collect(t, input)
	require.True(t, finished)
	require.Len(t, chunks, 1)
	require.Error(t, chunks[0].Error)
	assert.True(t, IsRetryable(chunks[0].Error))
}

func TestReadStream_RawText(t *testing.T) {
	chunks, finished := collect(t, "plain output\n")
	assert.False(t, finished)
	require.Len(t, chunks, 1)
	assert.Equal(t, "plain output\n", chunks[0].Content)
}

func TestReadStream_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan StreamChunk) // unbuffered, nobody reading
	done := make(chan bool)
	go func() {
		done <- readStream(ctx, strings.NewReader(`{"type":"content_block_delta","delta":{"text":"x"}}`+"\n"), ch)
	}()

	select {
	case finished := <-done:
		assert.False(t, finished)
	case <-time.After(time.Second):
		t.Fatal("readStream blocked after cancellation")
	}
}

func TestClaudeCLI_EmptyPrompt(t *testing.T) {
	_, err := NewClaudeCLI().Stream(context.Background(), CompletionRequest{Prompt: "  "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestClaudeCLI_MissingBinary(t *testing.T) {
	c := NewClaudeCLI(WithClaudePath("/nonexistent/claude-binary"))
	_, err := c.Stream(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "start", lerr.Op)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Rate limit exceeded", true},
		{"request timeout", true},
		{"server overloaded", true},
		{"HTTP 503", true},
		{"invalid api key", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.msg))
		})
	}
}
