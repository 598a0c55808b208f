package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/place-import/internal/queue"
)

// SnapshotKey is the fixed key the queue state is stored under.
const SnapshotKey = "import_queue_state"

// snapshotVersion is bumped when the stored layout changes incompatibly.
const snapshotVersion = 1

type envelope struct {
	Version int         `json:"version"`
	State   queue.State `json:"state"`
}

// Snapshot saves and loads the queue state as JSON.
type Snapshot struct {
	kv KV
}

// NewSnapshot creates a Snapshot over kv.
func NewSnapshot(kv KV) *Snapshot {
	return &Snapshot{kv: kv}
}

// Save writes s under SnapshotKey.
func (sn *Snapshot) Save(ctx context.Context, s queue.State) error {
	data, err := json.Marshal(envelope{Version: snapshotVersion, State: s})
	if err != nil {
		return eris.Wrap(err, "snapshot: marshal")
	}
	return sn.kv.Put(ctx, SnapshotKey, data)
}

// Load returns the saved state, or nil when nothing has been saved.
func (sn *Snapshot) Load(ctx context.Context) (*queue.State, error) {
	data, ok, err := sn.kv.Get(ctx, SnapshotKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, eris.Wrap(err, "snapshot: unmarshal")
	}
	if env.Version != snapshotVersion {
		return nil, eris.Errorf("snapshot: unsupported version %d", env.Version)
	}
	env.State.Stats = queue.ComputeStats(env.State.Items)
	return &env.State, nil
}

// Clear removes the saved state.
func (sn *Snapshot) Clear(ctx context.Context) error {
	return sn.kv.Delete(ctx, SnapshotKey)
}
