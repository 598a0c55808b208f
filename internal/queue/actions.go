package queue

import "github.com/sells-group/place-import/internal/model"

// Action is a state transition request consumed by Reduce.
type Action interface {
	actionName() string
}

// LoadBatch discards the current state and seeds pending items from rows
// under a new session. Machine assigns SessionID when it is empty.
type LoadBatch struct {
	Rows      []model.SourceRow
	SessionID string
}

// ItemPatch sets the non-nil fields on an item. A Status change is checked
// against the transition table.
type ItemPatch struct {
	Status           *model.ItemStatus
	PlaceID          *string
	ResolvedName     *string
	ResolvedAddress  *string
	Detail           *model.PlaceDetail
	Enrichment       *model.Enrichment
	Error            *string
	IncrementAttempt bool
}

// UpdateItem applies a patch to one item.
type UpdateItem struct {
	Index   int
	Patch   ItemPatch
	Session string
}

// Approve records operator selections on a ready item.
type Approve struct {
	Index      int
	Selections model.OperatorSelections
	Session    string
}

// Skip drops a non-final item.
type Skip struct {
	Index int
}

// MarkFailed moves an item to failed with a message.
type MarkFailed struct {
	Index   int
	Message string
	Session string
}

// MarkDuplicate records that the item already exists in the catalog.
type MarkDuplicate struct {
	Index      int
	ExistingID string
	Session    string
}

// Complete records the catalog record written for an approved item.
type Complete struct {
	Index     int
	RecordID  string
	PhotoURLs []string
	Session   string
}

// Retry re-queues a failed item and moves the cursor back to it. With a
// PlaceID the item re-enters searching with that identifier; without one it
// returns to pending.
type Retry struct {
	Index   int
	PlaceID string
}

// MarkReview flags a failed item for later review.
type MarkReview struct {
	Index int
	Note  string
}

// AdvanceCursor moves the cursor to the next pending or ready item, or
// stops processing when none remain.
type AdvanceCursor struct {
	Session string
}

// SetProcessing toggles automatic advancement.
type SetProcessing struct {
	On bool
}

// Reset empties the session.
type Reset struct{}

// The Session field on item actions names the session the caller read the
// item from. A non-empty Session that no longer matches the state is
// rejected with ErrStaleSession, so work started before a reload or reset
// cannot land on the new batch.
type sessionScoped interface {
	expectedSession() string
}

func (a UpdateItem) expectedSession() string    { return a.Session }
func (a Approve) expectedSession() string       { return a.Session }
func (a MarkFailed) expectedSession() string    { return a.Session }
func (a MarkDuplicate) expectedSession() string { return a.Session }
func (a Complete) expectedSession() string      { return a.Session }
func (a AdvanceCursor) expectedSession() string { return a.Session }

func (LoadBatch) actionName() string     { return "load_batch" }
func (UpdateItem) actionName() string    { return "update_item" }
func (Approve) actionName() string       { return "approve" }
func (Skip) actionName() string          { return "skip" }
func (MarkFailed) actionName() string    { return "mark_failed" }
func (MarkDuplicate) actionName() string { return "mark_duplicate" }
func (Complete) actionName() string      { return "complete" }
func (Retry) actionName() string         { return "retry" }
func (MarkReview) actionName() string    { return "mark_review" }
func (AdvanceCursor) actionName() string { return "advance_cursor" }
func (SetProcessing) actionName() string { return "set_processing" }
func (Reset) actionName() string         { return "reset" }

// Name returns a stable identifier for a, used in logs and metrics.
func Name(a Action) string {
	return a.actionName()
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
