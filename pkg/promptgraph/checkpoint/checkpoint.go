package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current checkpoint format version.
const Version = 1

// Checkpoint is the persisted state of a run after one tick.
type Checkpoint struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	Tick      int       `json:"tick"`
	Timestamp time.Time `json:"timestamp"`

	// Graph is the serialized workflow document at the end of the tick.
	Graph json.RawMessage `json:"graph"`

	// Executed lists the node IDs scheduled so far, in graph order.
	Executed []string `json:"executed"`
}

// New creates a checkpoint. graph must already be JSON.
func New(runID string, tick int, graph []byte, executed []string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		RunID:     runID,
		Tick:      tick,
		Timestamp: time.Now().UTC(),
		Graph:     graph,
		Executed:  executed,
	}
}

// Marshal serializes the checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal decodes a checkpoint and rejects unknown format versions.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Version != Version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", c.Version)
	}
	return &c, nil
}
