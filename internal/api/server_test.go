package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/photos"
	"github.com/sells-group/place-import/internal/pipeline"
	"github.com/sells-group/place-import/internal/queue"
)

type mockCandidater struct {
	mock.Mock
}

func (m *mockCandidater) Candidates(ctx context.Context, index int) ([]model.PlaceCandidate, error) {
	args := m.Called(ctx, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PlaceCandidate), args.Error(1)
}

type mockApprover struct {
	mock.Mock
}

func (m *mockApprover) Approve(ctx context.Context, index int, sel model.OperatorSelections, dryRun bool, progress photos.ProgressFunc) (*model.CatalogRecord, error) {
	args := m.Called(ctx, index, sel, dryRun, progress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CatalogRecord), args.Error(1)
}

type fixture struct {
	machine    *queue.Machine
	candidates *mockCandidater
	approver   *mockApprover
	wakes      atomic.Int32
	handler    http.Handler
}

func newFixture(t *testing.T, items ...model.QueueItem) *fixture {
	f := &fixture{
		machine:    queue.NewMachine(nil, &queue.State{Items: items}),
		candidates: &mockCandidater{},
		approver:   &mockApprover{},
	}
	t.Cleanup(func() {
		f.candidates.AssertExpectations(t)
		f.approver.AssertExpectations(t)
	})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	srv := NewServer(f.machine, f.candidates, f.approver,
		WithMetrics(metrics),
		WithWake(func() { f.wakes.Add(1) }),
	)
	f.handler = srv.Router()
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) queue.State {
	t.Helper()
	var s queue.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
	return s
}

func failedItem(title string) model.QueueItem {
	return model.QueueItem{Source: model.SourceRow{Title: title}, Status: model.ItemStatusFailed, Error: pipeline.MsgNotFound}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)

	rr = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "# metrics\n", rr.Body.String())
}

func TestLoadBatchAndState(t *testing.T) {
	f := newFixture(t)

	csv := "Title,URL\nAnn's Vintage,https://maps.example/?query_place_id=ChIJann\nNo Link,\n"
	rr := f.do(http.MethodPost, "/api/v1/batch", csv)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp loadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Loaded)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 3, resp.Errors[0].Line)

	rr = f.do(http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, rr.Code)
	s := decodeState(t, rr)
	require.Len(t, s.Items, 1)
	assert.Equal(t, "ChIJann", s.Items[0].PlaceID)
	assert.Equal(t, 1, s.Stats.Pending)
}

func TestLoadBatch_BadCSV(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodPost, "/api/v1/batch", "foo,bar\n1,2\n")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoadBatch_Dialect(t *testing.T) {
	f := newFixture(t)

	csv := "# saved list\nTitle\tURL\nAnn's Vintage\thttps://maps.example/?query_place_id=ChIJann\n"
	rr := f.do(http.MethodPost, "/api/v1/batch?delimiter=tab&comment=%23", csv)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	items := f.machine.State().Items
	require.Len(t, items, 1)
	assert.Equal(t, "ChIJann", items[0].PlaceID)

	rr = f.do(http.MethodPost, "/api/v1/batch?delimiter=ab", csv)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPauseResumeWakes(t *testing.T) {
	f := newFixture(t, model.QueueItem{Status: model.ItemStatusPending})

	rr := f.do(http.MethodPost, "/api/v1/processing/resume", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeState(t, rr).IsProcessing)

	rr = f.do(http.MethodPost, "/api/v1/processing/pause", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decodeState(t, rr).IsProcessing)
	assert.Equal(t, int32(2), f.wakes.Load())
}

func TestItemEndpoints(t *testing.T) {
	f := newFixture(t, failedItem("a"), model.QueueItem{Status: model.ItemStatusPending})

	rr := f.do(http.MethodGet, "/api/v1/items/0", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"failed"`)

	rr = f.do(http.MethodGet, "/api/v1/items/9", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodGet, "/api/v1/items/x", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReviewAndRetry(t *testing.T) {
	f := newFixture(t, failedItem("a"), model.QueueItem{Status: model.ItemStatusPending})

	rr := f.do(http.MethodPost, "/api/v1/items/0/review", `{"note":"closed permanently?"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	s := decodeState(t, rr)
	assert.True(t, s.Items[0].NeedsReview)
	assert.Equal(t, "closed permanently?", s.Items[0].ReviewNote)

	rr = f.do(http.MethodPost, "/api/v1/items/0/retry", `{"place_id":"ChIJmanual"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	s = decodeState(t, rr)
	assert.Equal(t, model.ItemStatusSearching, s.Items[0].Status)
	assert.Equal(t, "ChIJmanual", s.Items[0].PlaceID)
	assert.Equal(t, 0, s.Cursor)
	assert.True(t, s.IsProcessing)

	// Retrying a non-failed item conflicts.
	rr = f.do(http.MethodPost, "/api/v1/items/1/retry", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(http.MethodPost, "/api/v1/items/1/review", `{bad json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSkip(t *testing.T) {
	f := newFixture(t, model.QueueItem{Status: model.ItemStatusPending}, model.QueueItem{Status: model.ItemStatusPending})

	rr := f.do(http.MethodPost, "/api/v1/items/0/skip", "")
	require.Equal(t, http.StatusOK, rr.Code)
	s := decodeState(t, rr)
	assert.Equal(t, model.ItemStatusSkipped, s.Items[0].Status)
	assert.Equal(t, 1, s.Cursor)

	rr = f.do(http.MethodPost, "/api/v1/items/0/skip", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCandidates(t *testing.T) {
	f := newFixture(t, failedItem("Tartine"))

	f.candidates.On("Candidates", mock.Anything, 0).Return([]model.PlaceCandidate{
		{PlaceID: "p1", Name: "Tartine Bakery", Confidence: model.ConfidenceMedium},
	}, nil).Once()
	rr := f.do(http.MethodGet, "/api/v1/items/0/candidates", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got []model.PlaceCandidate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].PlaceID)

	f.candidates.On("Candidates", mock.Anything, 0).Return(nil, errors.New("places: search: 503")).Once()
	rr = f.do(http.MethodGet, "/api/v1/items/0/candidates", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestApprove(t *testing.T) {
	f := newFixture(t, model.QueueItem{Status: model.ItemStatusReady})

	f.approver.On("Approve", mock.Anything, 0, mock.MatchedBy(func(sel model.OperatorSelections) bool {
		return sel.Category == "Food" && sel.City == "Oakland"
	}), true, mock.Anything).Return(&model.CatalogRecord{Name: "Tartine", Category: "Food"}, nil).Once()

	rr := f.do(http.MethodPost, "/api/v1/items/0/approve", `{"category":"Food","city":"Oakland","dry_run":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rec model.CatalogRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "Tartine", rec.Name)
	assert.Equal(t, int32(1), f.wakes.Load())

	f.approver.On("Approve", mock.Anything, 0, mock.Anything, false, mock.Anything).
		Return(nil, pipeline.ErrIncompleteSelections).Once()
	rr = f.do(http.MethodPost, "/api/v1/items/0/approve", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	f.approver.On("Approve", mock.Anything, 0, mock.Anything, false, mock.Anything).
		Return(nil, queue.ErrStaleSession).Once()
	rr = f.do(http.MethodPost, "/api/v1/items/0/approve", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestReport(t *testing.T) {
	f := newFixture(t, failedItem("a"))

	rr := f.do(http.MethodGet, "/api/v1/report", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Index,Name,Status"))
	assert.Contains(t, rr.Body.String(), "0,a,failed,not found")

	rr = f.do(http.MethodGet, "/api/v1/report?format=xlsx", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))

	rr = f.do(http.MethodGet, "/api/v1/report?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReset(t *testing.T) {
	f := newFixture(t, failedItem("a"))

	rr := f.do(http.MethodPost, "/api/v1/reset", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, f.machine.State().Items)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/state", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
