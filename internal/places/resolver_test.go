package places

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/resilience"
	"github.com/sells-group/place-import/pkg/google"
	"github.com/sells-group/place-import/pkg/google/mocks"
)

func testGate() *resilience.Gate {
	return resilience.NewGate(resilience.GateConfig{
		Name:       "test",
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
	})
}

func place(id, name, addr string) google.Place {
	return google.Place{ID: id, DisplayName: google.LocalizedText{Text: name}, FormattedAddress: addr}
}

func TestScore(t *testing.T) {
	tests := []struct {
		query, candidate string
		want             model.Confidence
	}{
		{"Ann's Vintage", "Ann's Vintage", model.ConfidenceHigh},
		{"ann's vintage", "ANNS VINTAGE", model.ConfidenceHigh},
		{"Ann's", "Boxcut Gym", model.ConfidenceLow},
		{"Blue Bottle", "Blue Bottle Coffee", model.ConfidenceHigh},
		{"Blue Bottle Coffee Mint Plaza", "Blue Bottle", model.ConfidenceHigh},
		{"Café Flore", "Cafe Flore", model.ConfidenceHigh},
		{"Blue Bottle Cafe", "Blue Bottle Coffee Kiyosumi Shirakawa", model.ConfidenceHigh},
		{"Tartine Bakery", "Tartine Cafe", model.ConfidenceMedium},
		{"Tartine Bakery", "Tartine Manor", model.ConfidenceMedium},
		{"", "Anything", model.ConfidenceLow},
		{"!!!", "Anything", model.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.candidate, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.query, tt.candidate))
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, Score("Tartine Bakery", "Tartine Manufactory"), Score("Tartine Bakery", "Tartine Manufactory"))
	}
}

func TestOverlapRatio(t *testing.T) {
	assert.InDelta(t, 1.0, overlapRatio("abc", "cba"), 0.0001)
	assert.InDelta(t, 1.0, overlapRatio("ab", "abzz"), 0.0001)
	assert.InDelta(t, 0.5, overlapRatio("abzz", "ab"), 0.0001)
	assert.InDelta(t, 0.5, overlapRatio("aabb", "ab"), 0.0001)
	assert.InDelta(t, 0.0, overlapRatio("", "abc"), 0.0001)
	assert.InDelta(t, 0.0, overlapRatio("", ""), 0.0001)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cafedeflore", normalize("Café de Flore"))
	assert.Equal(t, "anns", normalize("Ann's"))
	assert.Equal(t, "", normalize("  -- "))
}

func TestSearch_SortsAndCaps(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.TextQuery == "Blue Bottle"
	})).Return(&google.TextSearchResponse{Places: []google.Place{
		place("p1", "Completely Different", "1 A St"),
		place("p2", "Blue Bottle Coffee", "66 Mint St"),
		place("", "No ID", ""),
		place("p3", "Blue Bottle Coffee Hayes", "315 Linden St"),
	}}, nil)

	r := NewResolver(client, testGate(), WithMaxCandidates(2))
	got, err := r.Search(context.Background(), "Blue Bottle", nil)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].PlaceID)
	assert.Equal(t, "p3", got[1].PlaceID)
	assert.Equal(t, model.ConfidenceHigh, got[0].Confidence)
}

func TestSearch_LocationBias(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.TextQuery == "Tartine 600 Guerrero St" &&
			r.LocationBias != nil &&
			r.LocationBias.Circle.Center.Latitude == 37.76 &&
			r.LocationBias.Circle.Radius == 250
	})).Return(&google.TextSearchResponse{}, nil)

	r := NewResolver(client, testGate(), WithBiasRadius(250))
	got, err := r.Search(context.Background(), "Tartine", &LocationHint{
		Latitude: 37.76, Longitude: -122.42, Address: "600 Guerrero St",
	})

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_RetriesRateLimit(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).
		Return(nil, resilience.NewRateLimitError(errors.New("429"))).Once()
	client.On("TextSearch", mock.Anything, mock.Anything).
		Return(&google.TextSearchResponse{Places: []google.Place{place("p1", "Tartine", "")}}, nil).Once()

	r := NewResolver(client, testGate())
	got, err := r.Search(context.Background(), "Tartine", nil)

	require.NoError(t, err)
	require.Len(t, got, 1)
	client.AssertNumberOfCalls(t, "TextSearch", 2)
}

func TestSearch_HardFailureNotRetried(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).Return(nil, errors.New("403 forbidden")).Once()

	r := NewResolver(client, testGate())
	_, err := r.Search(context.Background(), "Tartine", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "places: search")
	client.AssertNumberOfCalls(t, "TextSearch", 1)
}

func TestSearch_EmptyName(t *testing.T) {
	r := NewResolver(mocks.NewMockClient(t), testGate())
	_, err := r.Search(context.Background(), "  ", nil)
	assert.Error(t, err)
}

func TestAutoSelect(t *testing.T) {
	assert.Nil(t, AutoSelect(nil))

	medium := []model.PlaceCandidate{
		{PlaceID: "a", Confidence: model.ConfidenceMedium},
		{PlaceID: "b", Confidence: model.ConfidenceMedium},
	}
	assert.Nil(t, AutoSelect(medium))

	high := []model.PlaceCandidate{
		{PlaceID: "a", Confidence: model.ConfidenceHigh},
		{PlaceID: "b", Confidence: model.ConfidenceLow},
	}
	got := AutoSelect(high)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.PlaceID)
}
