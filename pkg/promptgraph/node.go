package promptgraph

import (
	"fmt"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph/history"
)

// Kind identifies what a node does.
type Kind string

// Node kinds.
const (
	KindStart      Kind = "start"
	KindTextPrompt Kind = "textPrompt"
	KindLLM        Kind = "llmInvocation"
	KindOutput     Kind = "output"
)

// Status is the execution status of a node.
type Status string

// Node statuses.
const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Terminal reports whether the status is Success or Error.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Payload is the kind-specific data of a node.
// The set of implementations is closed: *StartData, *TextPromptData,
// *LLMData and *OutputData.
type Payload interface {
	Kind() Kind
	clone() Payload
	validate() error
}

// StartData is the payload of a start trigger.
type StartData struct {
	WorkflowName string
}

// TextPromptData is the payload of an authored text input.
type TextPromptData struct {
	Text    string
	History history.Log
}

// LLMData is the payload of a language model invocation.
type LLMData struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// OutputData is the payload of an output sink.
type OutputData struct {
	Content         string
	IsStreaming     bool
	StreamedContent string
	// TokenCount is nil until the model service reports one.
	TokenCount *int
}

// Kind implements Payload.
func (*StartData) Kind() Kind { return KindStart }

// Kind implements Payload.
func (*TextPromptData) Kind() Kind { return KindTextPrompt }

// Kind implements Payload.
func (*LLMData) Kind() Kind { return KindLLM }

// Kind implements Payload.
func (*OutputData) Kind() Kind { return KindOutput }

func (d *StartData) clone() Payload {
	c := *d
	return &c
}

func (d *TextPromptData) clone() Payload {
	return &TextPromptData{Text: d.Text, History: d.History.Clone()}
}

func (d *LLMData) clone() Payload {
	c := *d
	return &c
}

func (d *OutputData) clone() Payload {
	c := *d
	if d.TokenCount != nil {
		n := *d.TokenCount
		c.TokenCount = &n
	}
	return &c
}

func (*StartData) validate() error      { return nil }
func (*TextPromptData) validate() error { return nil }

func (d *LLMData) validate() error {
	if d.Temperature < 0 || d.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v outside [0, 2]", ErrInvalidPayload, d.Temperature)
	}
	if d.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidPayload, d.MaxTokens)
	}
	return nil
}

func (d *OutputData) validate() error {
	if d.TokenCount != nil && *d.TokenCount < 0 {
		return fmt.Errorf("%w: negative token count %d", ErrInvalidPayload, *d.TokenCount)
	}
	return nil
}

// Node is a unit of work in a workflow graph.
//
// Values returned by Graph accessors are deep copies; mutating them has no
// effect on the graph. Use Graph.ApplyUpdate to change a node.
type Node struct {
	ID     string
	Status Status
	// Error holds the failure message while Status is StatusError.
	Error string
	Data  Payload
}

// Kind returns the node's kind, derived from its payload.
func (n Node) Kind() Kind {
	if n.Data == nil {
		return ""
	}
	return n.Data.Kind()
}

// Start returns the start payload, or nil if the node is another kind.
func (n Node) Start() *StartData {
	d, _ := n.Data.(*StartData)
	return d
}

// TextPrompt returns the text prompt payload, or nil if the node is another kind.
func (n Node) TextPrompt() *TextPromptData {
	d, _ := n.Data.(*TextPromptData)
	return d
}

// LLM returns the LLM payload, or nil if the node is another kind.
func (n Node) LLM() *LLMData {
	d, _ := n.Data.(*LLMData)
	return d
}

// Output returns the output payload, or nil if the node is another kind.
func (n Node) Output() *OutputData {
	d, _ := n.Data.(*OutputData)
	return d
}

// Text returns the text this node contributes to downstream nodes:
// a prompt's authored text or an output's final content.
// Other kinds contribute nothing.
func (n Node) Text() string {
	switch d := n.Data.(type) {
	case *TextPromptData:
		return d.Text
	case *OutputData:
		return d.Content
	}
	return ""
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	c := n
	if n.Data != nil {
		c.Data = n.Data.clone()
	}
	return c
}

// NewStart creates a start node.
func NewStart(id, workflowName string) Node {
	return Node{ID: id, Status: StatusIdle, Data: &StartData{WorkflowName: workflowName}}
}

// NewTextPrompt creates a text prompt node.
func NewTextPrompt(id, text string) Node {
	return Node{ID: id, Status: StatusIdle, Data: &TextPromptData{Text: text}}
}

// NewLLM creates an LLM invocation node.
func NewLLM(id string, data LLMData) Node {
	return Node{ID: id, Status: StatusIdle, Data: &data}
}

// NewOutput creates an empty output node.
func NewOutput(id string) Node {
	return Node{ID: id, Status: StatusIdle, Data: &OutputData{}}
}

// Edge is a directed connection from Source to Target.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}
