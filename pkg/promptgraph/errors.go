package promptgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph building.
var (
	// ErrEmptyNodeID indicates a node was added without an ID.
	ErrEmptyNodeID = errors.New("node ID cannot be empty")

	// ErrDuplicateNode indicates a node ID is already in use.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrNilPayload indicates a node was added without kind-specific data.
	ErrNilPayload = errors.New("node payload cannot be nil")

	// ErrInvalidPayload indicates kind-specific data failed validation.
	ErrInvalidPayload = errors.New("invalid node payload")

	// ErrNodeNotFound indicates a reference to a node that does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrSelfLoop indicates an edge whose source and target are the same node.
	ErrSelfLoop = errors.New("edge cannot connect a node to itself")

	// ErrDuplicateEdge indicates an edge ID is already in use.
	ErrDuplicateEdge = errors.New("duplicate edge ID")

	// ErrNotTextPrompt indicates a history operation on a node without text.
	ErrNotTextPrompt = errors.New("node is not a text prompt")
)

// Sentinel errors for execution.
var (
	// ErrAlreadyRunning indicates Run was called while a run is in progress.
	ErrAlreadyRunning = errors.New("workflow is already running")

	// ErrNoStartNode is matched by *NoStartNodeError.
	ErrNoStartNode = errors.New("workflow has no start node")

	// ErrCyclicOrDisconnected is matched by *CyclicGraphError.
	ErrCyclicOrDisconnected = errors.New("workflow graph is cyclic or disconnected")

	// ErrEmptyInput is matched by *EmptyInputError.
	ErrEmptyInput = errors.New("no input text")

	// ErrNoExecutor indicates no executor is registered for a node kind.
	ErrNoExecutor = errors.New("no executor registered for node kind")

	// ErrNoModelClient indicates an LLM node ran without a model client.
	ErrNoModelClient = errors.New("model client not configured")
)

// NoStartNodeError is returned before any node executes when the graph has
// no start node.
type NoStartNodeError struct {
	// NodeCount is the number of nodes in the rejected graph.
	NodeCount int
}

// Error implements the error interface.
func (e *NoStartNodeError) Error() string {
	return fmt.Sprintf("workflow has no start node (%d nodes)", e.NodeCount)
}

// Unwrap returns ErrNoStartNode for errors.Is support.
func (e *NoStartNodeError) Unwrap() error {
	return ErrNoStartNode
}

// CyclicGraphError is returned when the ready set is empty while nodes that
// are not blocked by an upstream failure remain unexecuted.
// Results of nodes that already ran are kept on the graph.
type CyclicGraphError struct {
	// Pending are the unexecuted nodes that could never become ready.
	Pending []string
	// Tick is the scheduler tick at which the deadlock was detected.
	Tick int
}

// Error implements the error interface.
func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("workflow graph is cyclic or disconnected at tick %d: pending nodes [%s]",
		e.Tick, strings.Join(e.Pending, ", "))
}

// Unwrap returns ErrCyclicOrDisconnected for errors.Is support.
func (e *CyclicGraphError) Unwrap() error {
	return ErrCyclicOrDisconnected
}

// EmptyInputError is recorded on an LLM node whose joined input text is blank.
type EmptyInputError struct {
	NodeID string
}

// Error implements the error interface.
func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("node %s: no input text; connect a text prompt or output node", e.NodeID)
}

// Unwrap returns ErrEmptyInput for errors.Is support.
func (e *EmptyInputError) Unwrap() error {
	return ErrEmptyInput
}

// ModelServiceError wraps a failure reported by the model service.
// The same message is recorded on the LLM node and its output sinks.
type ModelServiceError struct {
	NodeID  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ModelServiceError) Error() string {
	return fmt.Sprintf("node %s: model service: %s", e.NodeID, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ModelServiceError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g., "execute").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError is produced when the run's cancellation signal fires.
// A node returning it is not marked as failed; it simply stops updating.
type CancellationError struct {
	// NodeID is the node that was executing, empty for the coordinator.
	NodeID string
	// Tick is the scheduler tick in progress.
	Tick int
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("cancelled during node %s: %v", e.NodeID, e.Cause)
	}
	return fmt.Sprintf("run cancelled at tick %d: %v", e.Tick, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// isCancellation reports whether err came from the run's cancellation signal.
func isCancellation(err error) bool {
	var ce *CancellationError
	return errors.As(err, &ce)
}

// CheckpointError is returned when a tick checkpoint fails and checkpoint
// failures are fatal.
type CheckpointError struct {
	Tick int
	// Op is the step that failed: "marshal" or "save".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint at tick %d: %s: %v", e.Tick, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}
