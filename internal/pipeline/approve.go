package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/photos"
	"github.com/sells-group/place-import/internal/queue"
)

// ErrIncompleteSelections is returned when approval lacks a category or city
// and neither can be taken from the item.
var ErrIncompleteSelections = eris.New("pipeline: category and city are required")

// CatalogWriter inserts destination records.
type CatalogWriter interface {
	Insert(ctx context.Context, rec *model.CatalogRecord) (string, error)
}

// PhotoMigrator copies place photos to durable storage.
type PhotoMigrator interface {
	Migrate(ctx context.Context, placeID string, refs []model.PhotoRef, dryRun bool, progress photos.ProgressFunc) ([]string, error)
}

// ApproveConfig controls side effects of approval.
type ApproveConfig struct {
	// DryRun builds the record and validates photos without touching the
	// queue or the catalog.
	DryRun bool
	// PhotosDryRun validates photos without uploading them; the record is
	// still inserted, with no photo URLs.
	PhotosDryRun bool
}

// Approver turns ready items into catalog records.
type Approver struct {
	machine *queue.Machine
	photos  PhotoMigrator
	catalog CatalogWriter
	cfg     ApproveConfig
	now     func() time.Time
}

// NewApprover creates an Approver.
func NewApprover(m *queue.Machine, ph PhotoMigrator, catalog CatalogWriter, cfg ApproveConfig) *Approver {
	return &Approver{
		machine: m,
		photos:  ph,
		catalog: catalog,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Approve records the operator's selections for the item at index, migrates
// its photos, inserts the catalog record and completes the item. An item
// already approved by an interrupted earlier call is finished with its
// stored selections. dryRun forces a dry run for this call.
func (a *Approver) Approve(ctx context.Context, index int, sel model.OperatorSelections, dryRun bool, progress photos.ProgressFunc) (*model.CatalogRecord, error) {
	s := a.machine.State()
	if index < 0 || index >= len(s.Items) {
		return nil, eris.Wrapf(queue.ErrIndexOutOfRange, "index %d of %d", index, len(s.Items))
	}
	it := s.Items[index]
	dryRun = dryRun || a.cfg.DryRun

	switch it.Status {
	case model.ItemStatusReady:
		sel = completeSelections(it, sel)
		if sel.Category == "" || sel.City == "" {
			return nil, ErrIncompleteSelections
		}
	case model.ItemStatusApproved:
		if it.Selections != nil {
			sel = *it.Selections
		}
	default:
		return nil, eris.Wrapf(queue.ErrInvalidTransition, "pipeline: approve item %d in status %s", index, it.Status)
	}

	log := zap.L().With(
		zap.Int("index", index),
		zap.String("place_id", it.PlaceID),
		zap.Bool("dry_run", dryRun),
	)

	if !dryRun && it.Status == model.ItemStatusReady {
		next, err := a.machine.Dispatch(ctx, queue.Approve{Index: index, Selections: sel, Session: s.SessionID})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: approve")
		}
		it = next.Items[index]
	}

	urls, err := a.photos.Migrate(ctx, it.PlaceID, it.Detail.Photos, dryRun || a.cfg.PhotosDryRun, progress)
	if err != nil {
		// Leaves the item approved so the call can be repeated.
		return nil, eris.Wrap(err, "pipeline: migrate photos")
	}

	rec := BuildRecord(it, sel, urls, a.now())
	if dryRun {
		log.Info("pipeline: dry run approval", zap.Int("photos", len(urls)))
		return rec, nil
	}

	if cur := a.machine.State().SessionID; cur != s.SessionID {
		return nil, eris.Wrapf(queue.ErrStaleSession, "pipeline: approve item %d", index)
	}

	id, err := a.catalog.Insert(ctx, rec)
	if err != nil {
		log.Error("pipeline: catalog insert failed", zap.Error(err))
		if _, mErr := a.machine.Dispatch(ctx, queue.MarkFailed{Index: index, Message: "catalog insert failed: " + err.Error(), Session: s.SessionID}); mErr != nil {
			log.Error("pipeline: mark failed", zap.Error(mErr))
		}
		return nil, eris.Wrap(err, "pipeline: insert record")
	}
	rec.ID = id

	next, err := a.machine.Dispatch(ctx, queue.Complete{Index: index, RecordID: id, PhotoURLs: urls, Session: s.SessionID})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: complete")
	}
	if next.Cursor == index {
		if _, err := a.machine.Dispatch(ctx, queue.AdvanceCursor{Session: s.SessionID}); err != nil {
			return nil, eris.Wrap(err, "pipeline: advance after approval")
		}
	}

	log.Info("pipeline: item completed", zap.String("record_id", id), zap.Int("photos", len(urls)))
	return rec, nil
}

// completeSelections fills blank selections from the item's detail and
// enrichment.
func completeSelections(it model.QueueItem, sel model.OperatorSelections) model.OperatorSelections {
	sel.Category = strings.TrimSpace(sel.Category)
	sel.City = strings.TrimSpace(sel.City)
	if sel.Category == "" && it.Enrichment != nil && it.Enrichment.Category != model.CategoryOther {
		sel.Category = string(it.Enrichment.Category)
	}
	if it.Detail != nil {
		if sel.City == "" {
			sel.City = it.Detail.City
		}
		if sel.Neighborhood == "" {
			sel.Neighborhood = it.Detail.Neighborhood
		}
	}
	return sel
}

// BuildRecord assembles the destination record for an approved item. An
// edited description replaces the generated one.
func BuildRecord(it model.QueueItem, sel model.OperatorSelections, photoURLs []string, now time.Time) *model.CatalogRecord {
	rec := &model.CatalogRecord{
		PlaceID:       it.PlaceID,
		Name:          it.DisplayName(),
		Address:       it.ResolvedAddress,
		City:          sel.City,
		Neighborhood:  sel.Neighborhood,
		Category:      sel.Category,
		SubCategories: sel.SubCategories,
		Description:   strings.TrimSpace(sel.Description),
		PhotoURLs:     photoURLs,
		CreatedAt:     now,
	}
	if d := it.Detail; d != nil {
		rec.Latitude, rec.Longitude = d.Latitude, d.Longitude
		rec.Website = d.Website
		rec.Phone = d.Phone
		rec.Hours = d.Hours
		if rec.Address == "" {
			rec.Address = d.Address
		}
	}
	if e := it.Enrichment; e != nil {
		if rec.Description == "" {
			rec.Description = e.Description
		}
		rec.Handle = e.Handle
	}
	return rec
}
