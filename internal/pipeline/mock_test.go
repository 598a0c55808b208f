package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/photos"
	"github.com/sells-group/place-import/internal/places"
	"github.com/sells-group/place-import/internal/queue"
)

// --- Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Search(ctx context.Context, name string, hint *places.LocationHint) ([]model.PlaceCandidate, error) {
	args := m.Called(ctx, name, hint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PlaceCandidate), args.Error(1)
}

// --- Detail Fetcher Mock ---

type mockDetails struct {
	mock.Mock
}

func (m *mockDetails) Fetch(ctx context.Context, placeID string) (*model.PlaceDetail, error) {
	args := m.Called(ctx, placeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlaceDetail), args.Error(1)
}

// --- Enricher Mock ---

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Enrich(ctx context.Context, d *model.PlaceDetail, category model.Category) *model.Enrichment {
	args := m.Called(ctx, d, category)
	return args.Get(0).(*model.Enrichment)
}

// --- Duplicate Checker Mock ---

type mockDuplicates struct {
	mock.Mock
}

func (m *mockDuplicates) Check(ctx context.Context, placeID string) string {
	args := m.Called(ctx, placeID)
	return args.String(0)
}

// --- Catalog Mocks ---

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) Insert(ctx context.Context, rec *model.CatalogRecord) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

type mockFinder struct {
	mock.Mock
}

func (m *mockFinder) FindByPlaceID(ctx context.Context, placeID string) (string, bool, error) {
	args := m.Called(ctx, placeID)
	return args.String(0), args.Bool(1), args.Error(2)
}

// --- Photo Migrator Mock ---

type mockPhotos struct {
	mock.Mock
}

func (m *mockPhotos) Migrate(ctx context.Context, placeID string, refs []model.PhotoRef, dryRun bool, progress photos.ProgressFunc) ([]string, error) {
	args := m.Called(ctx, placeID, refs, dryRun, progress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Stage Observer ---

type stageRecorder struct {
	mu     sync.Mutex
	stages []string
}

func (r *stageRecorder) ObserveStage(stage string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

// --- Helpers ---

type deps struct {
	resolver   *mockResolver
	details    *mockDetails
	enricher   *mockEnricher
	duplicates *mockDuplicates
}

func newDeps(t *testing.T) *deps {
	d := &deps{
		resolver:   &mockResolver{},
		details:    &mockDetails{},
		enricher:   &mockEnricher{},
		duplicates: &mockDuplicates{},
	}
	t.Cleanup(func() {
		d.resolver.AssertExpectations(t)
		d.details.AssertExpectations(t)
		d.enricher.AssertExpectations(t)
		d.duplicates.AssertExpectations(t)
	})
	return d
}

func (d *deps) orchestrator(m *queue.Machine, opts ...Option) *Orchestrator {
	opts = append([]Option{WithDuplicateDelay(0)}, opts...)
	return New(m, d.resolver, d.details, d.enricher, d.duplicates, places.DefaultCategoryRules(), opts...)
}

// loadedMachine returns an in-memory machine seeded with rows and
// processing turned on.
func loadedMachine(t *testing.T, rows ...model.SourceRow) *queue.Machine {
	t.Helper()
	m := queue.NewMachine(nil, nil)
	_, err := m.Dispatch(context.Background(), queue.LoadBatch{Rows: rows})
	require.NoError(t, err)
	_, err = m.Dispatch(context.Background(), queue.SetProcessing{On: true})
	require.NoError(t, err)
	return m
}

// statusTrail records every status each item passes through.
func statusTrail(m *queue.Machine) func() map[int][]model.ItemStatus {
	var mu sync.Mutex
	trail := map[int][]model.ItemStatus{}
	m.OnChange(func(_ queue.Action, s queue.State) {
		mu.Lock()
		defer mu.Unlock()
		for i, it := range s.Items {
			seen := trail[i]
			if len(seen) == 0 || seen[len(seen)-1] != it.Status {
				trail[i] = append(seen, it.Status)
			}
		}
	})
	return func() map[int][]model.ItemStatus {
		mu.Lock()
		defer mu.Unlock()
		return trail
	}
}

func bakeryDetail(id string) *model.PlaceDetail {
	return &model.PlaceDetail{
		PlaceID:     id,
		Name:        "Tartine Bakery",
		Address:     "600 Guerrero St, San Francisco, CA",
		Latitude:    37.7614,
		Longitude:   -122.4241,
		Types:       []string{"bakery", "food", "point_of_interest"},
		PrimaryType: "bakery",
		City:        "San Francisco",
		Photos:      []model.PhotoRef{{Name: "places/" + id + "/photos/a"}, {Name: "places/" + id + "/photos/b"}},
		FetchedAt:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func aiEnrichment(category model.Category) *model.Enrichment {
	return &model.Enrichment{
		Description: "A Mission institution for bread.",
		Handle:      "tartine",
		Category:    category,
		Source:      model.EnrichmentSourceAI,
		GeneratedAt: time.Date(2026, 5, 1, 12, 1, 0, 0, time.UTC),
	}
}

func has(statuses []model.ItemStatus, want model.ItemStatus) bool {
	for _, s := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
