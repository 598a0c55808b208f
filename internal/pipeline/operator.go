package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/place-import/internal/queue"
)

// SkipItem skips the item at index and moves the cursor on when the item
// was holding it.
func SkipItem(ctx context.Context, m *queue.Machine, index int) error {
	s, err := m.Dispatch(ctx, queue.Skip{Index: index})
	if err != nil {
		return eris.Wrap(err, "pipeline: skip")
	}
	if s.Cursor == index {
		if _, err := m.Dispatch(ctx, queue.AdvanceCursor{Session: s.SessionID}); err != nil {
			return eris.Wrap(err, "pipeline: advance after skip")
		}
	}
	return nil
}
