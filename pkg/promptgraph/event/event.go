// Package event carries workflow lifecycle notifications to in-process
// subscribers.
//
// The engine publishes run.started and run.finished around each run and a
// node.updated event for every committed node change. Subscribers receive
// events on their own goroutine in publish order.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types published by the engine.
const (
	TypeRunStarted  = "run.started"
	TypeRunFinished = "run.finished"
	TypeNodeUpdated = "node.updated"
)

// Event is one notification.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	RunID     string    `json:"run_id"`
	NodeID    string    `json:"node_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// New creates an event with a fresh ID and the current time.
func New(eventType, runID string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "promptgraph",
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ForNode returns a copy of e scoped to nodeID.
func (e Event) ForNode(nodeID string) Event {
	e.NodeID = nodeID
	return e
}

// RunStarted is the payload of run.started.
type RunStarted struct {
	Workflow  string `json:"workflow,omitempty"`
	NodeCount int    `json:"node_count"`
}

// RunFinished is the payload of run.finished.
type RunFinished struct {
	Status   string `json:"status"`
	Ticks    int    `json:"ticks"`
	Executed int    `json:"executed"`
	Errored  int    `json:"errored"`
	Error    string `json:"error,omitempty"`
}

// NodeUpdated is the payload of node.updated.
type NodeUpdated struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}
