package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// MockClient is a scripted Client for tests and offline runs.
//
// Each Stream call emits the configured deltas in order, then either a Done
// chunk (with usage, if set) or an error chunk. Calls are recorded.
type MockClient struct {
	mu sync.Mutex

	deltas     []string
	final      string
	usage      *TokenUsage
	streamErr  error
	startErr   error
	errAfter   int
	chunkDelay time.Duration
	echo       bool
	started    chan CompletionRequest

	// Calls holds every request received, in order.
	Calls []CompletionRequest
}

// Compile-time interface check.
var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock that streams the given deltas and completes.
func NewMockClient(deltas ...string) *MockClient {
	return &MockClient{deltas: deltas, errAfter: -1}
}

// NewEchoClient creates a mock that streams the prompt back word by word.
func NewEchoClient() *MockClient {
	return &MockClient{echo: true, errAfter: -1}
}

// WithUsage sets the usage reported on the Done chunk.
func (m *MockClient) WithUsage(outputTokens int) *MockClient {
	m.usage = &TokenUsage{OutputTokens: outputTokens, TotalTokens: outputTokens}
	return m
}

// WithFinalText sets the complete response reported on the Done chunk.
func (m *MockClient) WithFinalText(text string) *MockClient {
	m.final = text
	return m
}

// WithStreamError makes the stream fail with message after n deltas.
func (m *MockClient) WithStreamError(message string, afterDeltas int) *MockClient {
	m.streamErr = errors.New(message)
	m.errAfter = afterDeltas
	return m
}

// WithStartError makes Stream itself fail.
func (m *MockClient) WithStartError(err error) *MockClient {
	m.startErr = err
	return m
}

// WithChunkDelay pauses before each chunk, for cancellation tests.
func (m *MockClient) WithChunkDelay(d time.Duration) *MockClient {
	m.chunkDelay = d
	return m
}

// Started returns a channel that receives each request once its stream
// has been accepted. It is created on first use.
func (m *MockClient) Started() <-chan CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started == nil {
		m.started = make(chan CompletionRequest, 16)
	}
	return m.started
}

// CallCount returns the number of Stream calls.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	req := m.Calls[len(m.Calls)-1]
	return &req
}

// Stream implements Client.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	started := m.started
	m.mu.Unlock()

	if m.startErr != nil {
		return nil, m.startErr
	}

	deltas := m.deltas
	if m.echo {
		deltas = echoDeltas(req.Prompt)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)

		send := func(chunk StreamChunk) bool {
			if m.chunkDelay > 0 {
				select {
				case <-time.After(m.chunkDelay):
				case <-ctx.Done():
					return false
				}
			}
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for i, d := range deltas {
			if m.streamErr != nil && i == m.errAfter {
				send(StreamChunk{Error: NewError("stream", m.streamErr, false)})
				return
			}
			if !send(StreamChunk{Content: d}) {
				return
			}
		}
		if m.streamErr != nil {
			send(StreamChunk{Error: NewError("stream", m.streamErr, false)})
			return
		}

		usage := m.usage
		if m.echo {
			usage = &TokenUsage{OutputTokens: len(deltas), TotalTokens: len(deltas)}
		}
		send(StreamChunk{Done: true, Text: m.final, Usage: usage})
	}()

	if started != nil {
		select {
		case started <- req:
		default:
		}
	}
	return ch, nil
}

func echoDeltas(prompt string) []string {
	words := strings.Fields(prompt)
	out := make([]string, len(words))
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		out[i] = w
	}
	return out
}
