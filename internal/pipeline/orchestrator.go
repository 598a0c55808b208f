// Package pipeline drives queue items through duplicate detection,
// resolution, detail fetch and enrichment, and completes approved items
// into the catalog.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/places"
	"github.com/sells-group/place-import/internal/queue"
)

// Resolver finds catalog-external candidates for a free-text name.
type Resolver interface {
	Search(ctx context.Context, name string, hint *places.LocationHint) ([]model.PlaceCandidate, error)
}

// DetailFetcher retrieves structured detail for a resolved place.
type DetailFetcher interface {
	Fetch(ctx context.Context, placeID string) (*model.PlaceDetail, error)
}

// Enricher generates narrative fields. It never fails.
type Enricher interface {
	Enrich(ctx context.Context, d *model.PlaceDetail, category model.Category) *model.Enrichment
}

// DuplicateChecker returns the existing catalog record ID for a place, or "".
type DuplicateChecker interface {
	Check(ctx context.Context, placeID string) string
}

// Categorizer derives a coarse category from detail type tags.
type Categorizer interface {
	Derive(d *model.PlaceDetail) model.Category
}

// StageObserver is told how long each stage took.
type StageObserver interface {
	ObserveStage(stage string, d time.Duration, err error)
}

// Stage names reported to a StageObserver.
const (
	StageDuplicate = "duplicate"
	StageResolve   = "resolve"
	StageDetail    = "detail"
	StageEnrich    = "enrich"
)

// Failure messages recorded on items the orchestrator cannot finish.
const (
	MsgNotFound        = "not found"
	MsgManualSelection = "manual selection required"
)

// Orchestrator processes the item at the queue cursor, one at a time.
type Orchestrator struct {
	machine        *queue.Machine
	resolver       Resolver
	details        DetailFetcher
	enricher       Enricher
	duplicates     DuplicateChecker
	categories     Categorizer
	duplicateDelay time.Duration
	observer       StageObserver
	sleep          func(ctx context.Context, d time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDuplicateDelay sets how long a duplicate stays at the cursor before
// the cursor moves on.
func WithDuplicateDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.duplicateDelay = d }
}

// WithStageObserver attaches a stage timing observer.
func WithStageObserver(obs StageObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// New creates an Orchestrator.
func New(
	m *queue.Machine,
	resolver Resolver,
	details DetailFetcher,
	enricher Enricher,
	duplicates DuplicateChecker,
	categories Categorizer,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		machine:        m,
		resolver:       resolver,
		details:        details,
		enricher:       enricher,
		duplicates:     duplicates,
		categories:     categories,
		duplicateDelay: time.Second,
		sleep:          sleepCtx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run steps until processing stops, the cursor reaches an item awaiting the
// operator, or ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: run")
		}
		progressed, err := o.Step(ctx)
		if err != nil {
			return err
		}
		if !progressed {
			return nil
		}
	}
}

// Loop runs the orchestrator whenever wake fires until ctx is done. Step
// errors are logged and do not stop the loop.
func (o *Orchestrator) Loop(ctx context.Context, wake <-chan struct{}) error {
	for {
		if err := o.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.L().Error("pipeline: run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		}
	}
}

// Step acts on the cursor item once. It reports whether the queue moved,
// which is false when processing is off or the cursor item awaits the
// operator.
func (o *Orchestrator) Step(ctx context.Context) (bool, error) {
	s := o.machine.State()
	if !s.IsProcessing {
		return false, nil
	}
	it, ok := s.Current()
	if !ok {
		_, err := o.machine.Dispatch(ctx, queue.SetProcessing{On: false})
		return false, err
	}

	switch it.Status {
	case model.ItemStatusPending, model.ItemStatusSearching, model.ItemStatusEnhancing:
		err := o.process(ctx, s.SessionID, s.Cursor, it)
		if errors.Is(err, queue.ErrStaleSession) {
			// The batch was reloaded or reset while a call was in flight;
			// the result belongs to the old session and is dropped.
			zap.L().Info("pipeline: session changed mid-item, result discarded",
				zap.String("session", s.SessionID),
				zap.Int("index", s.Cursor),
			)
			return true, nil
		}
		return true, err
	case model.ItemStatusReady, model.ItemStatusApproved:
		return false, nil
	default:
		// Failed and final items never hold the cursor.
		before := s.Cursor
		next, err := o.machine.Dispatch(ctx, queue.AdvanceCursor{Session: s.SessionID})
		if errors.Is(err, queue.ErrStaleSession) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return next.Cursor != before && next.IsProcessing, nil
	}
}

// Candidates lists resolver candidates for an item, for manual selection.
func (o *Orchestrator) Candidates(ctx context.Context, index int) ([]model.PlaceCandidate, error) {
	s := o.machine.State()
	if index < 0 || index >= len(s.Items) {
		return nil, eris.Wrapf(queue.ErrIndexOutOfRange, "index %d of %d", index, len(s.Items))
	}
	it := s.Items[index]
	return o.resolver.Search(ctx, it.Source.Title, hintFor(it.Source))
}

func (o *Orchestrator) process(ctx context.Context, sess string, idx int, it model.QueueItem) error {
	log := zap.L().With(
		zap.Int("index", idx),
		zap.String("title", it.Source.Title),
		zap.String("status", string(it.Status)),
	)
	log.Info("pipeline: processing item")

	it, err := o.update(ctx, sess, idx, queue.ItemPatch{IncrementAttempt: true})
	if err != nil {
		return err
	}

	if it.PlaceID != "" && it.Detail == nil {
		if done, err := o.checkDuplicate(ctx, sess, idx, it.PlaceID); done || err != nil {
			return err
		}
	}

	if it.Status == model.ItemStatusPending {
		if it, err = o.update(ctx, sess, idx, queue.ItemPatch{Status: queue.Ptr(model.ItemStatusSearching)}); err != nil {
			return err
		}
	}

	if it.PlaceID == "" {
		if o.paused() {
			return nil
		}
		pick, msg, err := o.resolve(ctx, it)
		if err != nil {
			return err
		}
		if pick == nil {
			log.Info("pipeline: resolution needs operator", zap.String("reason", msg))
			return o.fail(ctx, sess, idx, msg)
		}
		it, err = o.update(ctx, sess, idx, queue.ItemPatch{
			PlaceID:         queue.Ptr(pick.PlaceID),
			ResolvedName:    queue.Ptr(pick.Name),
			ResolvedAddress: queue.Ptr(pick.Address),
		})
		if err != nil {
			return err
		}
		if o.paused() {
			return nil
		}
		if done, err := o.checkDuplicate(ctx, sess, idx, it.PlaceID); done || err != nil {
			return err
		}
	}

	if it.Detail == nil {
		if o.paused() {
			return nil
		}
		start := time.Now()
		detail, fetchErr := o.details.Fetch(ctx, it.PlaceID)
		o.observe(StageDetail, start, fetchErr)
		if fetchErr != nil && ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "pipeline: detail")
		}
		if fetchErr != nil {
			log.Warn("pipeline: detail fetch failed", zap.String("place_id", it.PlaceID), zap.Error(fetchErr))
			return o.fail(ctx, sess, idx, "detail fetch failed: "+fetchErr.Error())
		}
		it, err = o.update(ctx, sess, idx, queue.ItemPatch{
			Status:          queue.Ptr(model.ItemStatusEnhancing),
			Detail:          detail,
			ResolvedName:    queue.Ptr(detail.Name),
			ResolvedAddress: queue.Ptr(detail.Address),
		})
		if err != nil {
			return err
		}
	} else if it.Status == model.ItemStatusSearching {
		if it, err = o.update(ctx, sess, idx, queue.ItemPatch{Status: queue.Ptr(model.ItemStatusEnhancing)}); err != nil {
			return err
		}
	}

	patch := queue.ItemPatch{Status: queue.Ptr(model.ItemStatusReady)}
	if it.Enrichment == nil {
		if o.paused() {
			return nil
		}
		category := o.categories.Derive(it.Detail)
		start := time.Now()
		patch.Enrichment = o.enricher.Enrich(ctx, it.Detail, category)
		o.observe(StageEnrich, start, nil)
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "pipeline: enrich")
		}
	}
	if _, err := o.update(ctx, sess, idx, patch); err != nil {
		return err
	}

	log.Info("pipeline: item ready", zap.String("place_id", it.PlaceID))
	return nil
}

// resolve returns the auto-selected candidate, or nil with the reason the
// operator must choose. A search error is reported as a reason, not an
// error, so the item fails instead of the run.
func (o *Orchestrator) resolve(ctx context.Context, it model.QueueItem) (*model.PlaceCandidate, string, error) {
	start := time.Now()
	candidates, err := o.resolver.Search(ctx, it.Source.Title, hintFor(it.Source))
	o.observe(StageResolve, start, err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", eris.Wrap(ctx.Err(), "pipeline: resolve")
		}
		return nil, "search failed: " + err.Error(), nil
	}
	if len(candidates) == 0 {
		return nil, MsgNotFound, nil
	}
	if pick := places.AutoSelect(candidates); pick != nil {
		return pick, "", nil
	}
	return nil, MsgManualSelection, nil
}

// checkDuplicate marks the item duplicate and moves on when placeID is
// already in the catalog. It reports whether the item was handled.
func (o *Orchestrator) checkDuplicate(ctx context.Context, sess string, idx int, placeID string) (bool, error) {
	start := time.Now()
	existing := o.duplicates.Check(ctx, placeID)
	o.observe(StageDuplicate, start, nil)
	if existing == "" {
		return false, nil
	}

	zap.L().Info("pipeline: duplicate found",
		zap.Int("index", idx),
		zap.String("place_id", placeID),
		zap.String("existing_id", existing),
	)
	if _, err := o.machine.Dispatch(ctx, queue.MarkDuplicate{Index: idx, ExistingID: existing, Session: sess}); err != nil {
		return true, eris.Wrap(err, "pipeline: mark duplicate")
	}
	if err := o.sleep(ctx, o.duplicateDelay); err != nil {
		return true, eris.Wrap(err, "pipeline: duplicate delay")
	}
	_, err := o.machine.Dispatch(ctx, queue.AdvanceCursor{Session: sess})
	return true, eris.Wrap(err, "pipeline: advance after duplicate")
}

func (o *Orchestrator) fail(ctx context.Context, sess string, idx int, msg string) error {
	if _, err := o.machine.Dispatch(ctx, queue.MarkFailed{Index: idx, Message: msg, Session: sess}); err != nil {
		return eris.Wrap(err, "pipeline: mark failed")
	}
	_, err := o.machine.Dispatch(ctx, queue.AdvanceCursor{Session: sess})
	return eris.Wrap(err, "pipeline: advance after failure")
}

func (o *Orchestrator) update(ctx context.Context, sess string, idx int, p queue.ItemPatch) (model.QueueItem, error) {
	s, err := o.machine.Dispatch(ctx, queue.UpdateItem{Index: idx, Patch: p, Session: sess})
	if err != nil {
		return model.QueueItem{}, eris.Wrap(err, "pipeline: update item")
	}
	return s.Items[idx], nil
}

// paused reports whether the operator turned processing off. Checked before
// each external call; a call already in flight is never aborted.
func (o *Orchestrator) paused() bool {
	return !o.machine.State().IsProcessing
}

func (o *Orchestrator) observe(stage string, start time.Time, err error) {
	if o.observer != nil {
		o.observer.ObserveStage(stage, time.Since(start), err)
	}
}

func hintFor(row model.SourceRow) *places.LocationHint {
	if !row.HasCoordinates() && row.Address == "" {
		return nil
	}
	h := &places.LocationHint{Address: row.Address}
	if row.HasCoordinates() {
		h.Latitude, h.Longitude = *row.Latitude, *row.Longitude
	}
	return h
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
