package queue

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/place-import/internal/model"
)

var (
	// ErrInvalidTransition is returned when an action would move an item
	// along an edge the state machine does not allow.
	ErrInvalidTransition = eris.New("queue: invalid transition")

	// ErrIndexOutOfRange is returned for an action naming a missing item.
	ErrIndexOutOfRange = eris.New("queue: index out of range")

	// ErrUnknownAction is returned for an action type Reduce does not handle.
	ErrUnknownAction = eris.New("queue: unknown action")

	// ErrStaleSession is returned for an action addressed to a session that
	// has since been reloaded or reset.
	ErrStaleSession = eris.New("queue: stale session")
)

// Reduce applies a to s and returns the resulting state. s is not modified.
// Stats are recomputed on every successful transition. On error the
// original state is returned unchanged.
func Reduce(s State, a Action, now time.Time) (State, error) {
	if sc, ok := a.(sessionScoped); ok {
		if want := sc.expectedSession(); want != "" && want != s.SessionID {
			return s, eris.Wrapf(ErrStaleSession, "%s for session %s, current %q", Name(a), want, s.SessionID)
		}
	}

	next := s.Clone()

	var err error
	switch act := a.(type) {
	case LoadBatch:
		next = loadBatch(act.SessionID, act.Rows, now)
	case UpdateItem:
		err = next.updateItem(act.Index, act.Patch, now)
	case Approve:
		err = next.mutate(act.Index, now, func(it *model.QueueItem) error {
			if err := transition(it, model.ItemStatusApproved); err != nil {
				return err
			}
			sel := act.Selections
			it.Selections = &sel
			return nil
		})
	case Skip:
		err = next.mutate(act.Index, now, func(it *model.QueueItem) error {
			return transition(it, model.ItemStatusSkipped)
		})
	case MarkFailed:
		err = next.mutate(act.Index, now, func(it *model.QueueItem) error {
			if it.Status != model.ItemStatusFailed {
				if err := transition(it, model.ItemStatusFailed); err != nil {
					return err
				}
			}
			it.Error = act.Message
			return nil
		})
	case MarkDuplicate:
		err = next.mutate(act.Index, now, func(it *model.QueueItem) error {
			if err := transition(it, model.ItemStatusDuplicate); err != nil {
				return err
			}
			it.DuplicateOfID = act.ExistingID
			return nil
		})
	case Complete:
		err = next.mutate(act.Index, now, func(it *model.QueueItem) error {
			if err := transition(it, model.ItemStatusCompleted); err != nil {
				return err
			}
			it.RecordID = act.RecordID
			it.PhotoURLs = act.PhotoURLs
			it.Error = ""
			return nil
		})
	case Retry:
		err = next.retry(act, now)
	case MarkReview:
		err = next.mutate(act.Index, now, func(it *model.QueueItem) error {
			if it.Status != model.ItemStatusFailed {
				return eris.Wrapf(ErrInvalidTransition, "review requires failed, item is %s", it.Status)
			}
			it.NeedsReview = true
			it.ReviewNote = act.Note
			return nil
		})
	case AdvanceCursor:
		next.advanceCursor()
	case SetProcessing:
		next.IsProcessing = act.On
	case Reset:
		next = State{}
	default:
		err = eris.Wrapf(ErrUnknownAction, "%T", a)
	}
	if err != nil {
		return s, err
	}

	next.Stats = ComputeStats(next.Items)
	next.UpdatedAt = now
	return next, nil
}

func loadBatch(session string, rows []model.SourceRow, now time.Time) State {
	items := make([]model.QueueItem, len(rows))
	for i, row := range rows {
		items[i] = model.QueueItem{
			Source:    row,
			PlaceID:   row.PlaceID,
			Status:    model.ItemStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return State{SessionID: session, Items: items}
}

// mutate runs fn on a copy of the item at i and stores it on success.
func (s *State) mutate(i int, now time.Time, fn func(it *model.QueueItem) error) error {
	if i < 0 || i >= len(s.Items) {
		return eris.Wrapf(ErrIndexOutOfRange, "index %d of %d", i, len(s.Items))
	}
	it := s.Items[i]
	if err := fn(&it); err != nil {
		return eris.Wrapf(err, "item %d", i)
	}
	it.UpdatedAt = now
	s.Items[i] = it
	return nil
}

func (s *State) updateItem(i int, p ItemPatch, now time.Time) error {
	return s.mutate(i, now, func(it *model.QueueItem) error {
		if p.Status != nil && *p.Status != it.Status {
			if err := transition(it, *p.Status); err != nil {
				return err
			}
		}
		if p.PlaceID != nil {
			it.PlaceID = *p.PlaceID
		}
		if p.ResolvedName != nil {
			it.ResolvedName = *p.ResolvedName
		}
		if p.ResolvedAddress != nil {
			it.ResolvedAddress = *p.ResolvedAddress
		}
		if p.Detail != nil {
			it.Detail = p.Detail
		}
		if p.Enrichment != nil {
			it.Enrichment = p.Enrichment
		}
		if p.Error != nil {
			it.Error = *p.Error
		}
		if p.IncrementAttempt {
			it.AttemptCount++
		}
		if it.Status == model.ItemStatusReady && (it.Detail == nil || it.Enrichment == nil) {
			return eris.Wrap(ErrInvalidTransition, "ready requires detail and enrichment")
		}
		return nil
	})
}

func (s *State) retry(r Retry, now time.Time) error {
	err := s.mutate(r.Index, now, func(it *model.QueueItem) error {
		to := model.ItemStatusPending
		if r.PlaceID != "" {
			to = model.ItemStatusSearching
		}
		if err := transition(it, to); err != nil {
			return err
		}
		if r.PlaceID != "" {
			it.PlaceID = r.PlaceID
			it.ResolvedName = ""
			it.ResolvedAddress = ""
			it.Detail = nil
			it.Enrichment = nil
		}
		it.Error = ""
		it.NeedsReview = false
		it.ReviewNote = ""
		return nil
	})
	if err != nil {
		return err
	}
	s.Cursor = r.Index
	s.IsProcessing = true
	return nil
}

// advanceCursor never fails. Reaching the end stops processing and leaves
// the cursor where it is.
func (s *State) advanceCursor() {
	for i := s.Cursor + 1; i < len(s.Items); i++ {
		switch s.Items[i].Status {
		case model.ItemStatusPending, model.ItemStatusReady:
			s.Cursor = i
			return
		}
	}
	s.IsProcessing = false
}

func transition(it *model.QueueItem, to model.ItemStatus) error {
	if !CanTransition(it.Status, to) {
		return eris.Wrapf(ErrInvalidTransition, "%s -> %s", it.Status, to)
	}
	it.Status = to
	return nil
}
