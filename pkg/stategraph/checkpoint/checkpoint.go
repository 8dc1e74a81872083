package checkpoint

import (
	"encoding/json"
	"time"
)

// Format is the current checkpoint serialization format.
// Increment when making breaking changes to the checkpoint structure.
const Format = 1

// Checkpoint is an immutable, versioned snapshot of execution state,
// addressable by version number and creation time. It contains everything
// needed to resume execution after interruption.
type Checkpoint struct {
	// Metadata
	Format    int       `json:"format"`
	RunID     string    `json:"run_id"`
	Version   int       `json:"version"`
	Step      int       `json:"step"`
	CreatedAt time.Time `json:"created_at"`

	// Node is the last node whose update was merged before this snapshot.
	Node string `json:"node"`

	// Execution state
	State        json.RawMessage `json:"state"`
	NextFrontier []string        `json:"next_frontier,omitempty"`
}

// New creates a checkpoint. State must already be JSON-serialized.
func New(runID, node string, version, step int, state []byte, nextFrontier []string) *Checkpoint {
	return &Checkpoint{
		Format:       Format,
		RunID:        runID,
		Version:      version,
		Step:         step,
		CreatedAt:    time.Now().UTC(),
		Node:         node,
		State:        state,
		NextFrontier: nextFrontier,
	}
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
