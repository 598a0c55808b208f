// Package queue owns the ordered import items, their statuses and the
// cursor. State changes go through Reduce, a pure function over actions;
// Machine wraps it with locking and snapshot persistence.
package queue

import (
	"time"

	"github.com/sells-group/place-import/internal/model"
)

// State is the whole import session.
type State struct {
	SessionID    string            `json:"session_id,omitempty"`
	Items        []model.QueueItem `json:"items"`
	Cursor       int               `json:"cursor"`
	IsProcessing bool              `json:"is_processing"`
	Stats        Stats             `json:"stats"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Stats are per-status counts derived from Items. Pending groups every
// non-final status that is neither failed nor duplicate.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Ready      int `json:"ready"`
	Completed  int `json:"completed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
}

// Accounted is the sum of the disjoint buckets. It always equals Total.
func (s Stats) Accounted() int {
	return s.Pending + s.Completed + s.Skipped + s.Failed + s.Duplicates
}

// ComputeStats derives Stats from items.
func ComputeStats(items []model.QueueItem) Stats {
	st := Stats{Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case model.ItemStatusCompleted:
			st.Completed++
		case model.ItemStatusSkipped:
			st.Skipped++
		case model.ItemStatusFailed:
			st.Failed++
		case model.ItemStatusDuplicate:
			st.Duplicates++
		default:
			st.Pending++
			if it.Status == model.ItemStatusReady {
				st.Ready++
			}
		}
	}
	return st
}

// Current returns the item at the cursor.
func (s State) Current() (model.QueueItem, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Items) {
		return model.QueueItem{}, false
	}
	return s.Items[s.Cursor], true
}

// Clone returns a copy whose item slice can be modified independently.
func (s State) Clone() State {
	out := s
	out.Items = make([]model.QueueItem, len(s.Items))
	copy(out.Items, s.Items)
	return out
}
