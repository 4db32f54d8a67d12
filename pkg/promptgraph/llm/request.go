package llm

// CompletionRequest configures one streaming completion.
type CompletionRequest struct {
	// Prompt is the user prompt, already assembled from upstream node text.
	Prompt string `json:"prompt"`

	// SystemPrompt is optional.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model configuration
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// StreamChunk is one event of a streaming response. Exactly one of the
// following holds:
//   - Error != nil: the stream failed and no further chunks follow
//   - Done: the stream finished; Usage is set if the service reported it, and
//     Text holds the complete response when the service sent one
//   - otherwise Content carries the next text delta
type StreamChunk struct {
	Content string      `json:"content,omitempty"`
	Text    string      `json:"text,omitempty"`
	Usage   *TokenUsage `json:"usage,omitempty"`
	Done    bool        `json:"done"`
	Error   error       `json:"-"`
}
