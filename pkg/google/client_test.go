package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/place-import/internal/resilience"
)

func TestTextSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.formattedAddress")

		var body TextSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Blue Bottle 66 Mint St", body.TextQuery)
		require.NotNil(t, body.LocationBias)
		assert.InDelta(t, 37.78, body.LocationBias.Circle.Center.Latitude, 0.0001)
		assert.InDelta(t, 500.0, body.LocationBias.Circle.Radius, 0.0001)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TextSearchResponse{
			Places: []Place{
				{
					ID:               "ChIJ123",
					DisplayName:      LocalizedText{Text: "Blue Bottle Coffee"},
					FormattedAddress: "66 Mint St, San Francisco, CA",
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{
		TextQuery: "Blue Bottle 66 Mint St",
		LocationBias: &LocationBias{Circle: Circle{
			Center: LatLng{Latitude: 37.78, Longitude: -122.40},
			Radius: 500,
		}},
	})

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "ChIJ123", resp.Places[0].ID)
	assert.Equal(t, "Blue Bottle Coffee", resp.Places[0].DisplayName.Text)
}

func TestTextSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "Nowhere"})

	require.NoError(t, err)
	assert.Empty(t, resp.Places)
}

func TestTextSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "invalid API key"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "q"})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "403")
	assert.False(t, resilience.IsRateLimited(err))
	assert.False(t, resilience.IsTransient(err))
}

func TestTextSearch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "q"})

	require.Error(t, err)
	assert.True(t, resilience.IsRateLimited(err))
}

func TestTextSearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.TextSearch(ctx, TextSearchRequest{TextQuery: "q"})
	assert.Error(t, err)
}

func TestGetPlace_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/places/ChIJ123", r.URL.Path)
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "editorialSummary")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "ChIJ123",
			"displayName": {"text": "Blue Bottle Coffee"},
			"formattedAddress": "66 Mint St, San Francisco, CA",
			"location": {"latitude": 37.7825, "longitude": -122.4075},
			"types": ["cafe", "food"],
			"primaryType": "cafe",
			"rating": 4.4,
			"userRatingCount": 2100,
			"photos": [{"name": "places/ChIJ123/photos/p1", "widthPx": 4000, "heightPx": 3000}],
			"editorialSummary": {"text": "Hip coffee chain."},
			"addressComponents": [
				{"longText": "SoMa", "shortText": "SoMa", "types": ["neighborhood", "political"]},
				{"longText": "San Francisco", "shortText": "SF", "types": ["locality", "political"]}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	place, err := client.GetPlace(context.Background(), "ChIJ123")

	require.NoError(t, err)
	assert.Equal(t, "Blue Bottle Coffee", place.DisplayName.Text)
	require.NotNil(t, place.Location)
	assert.InDelta(t, 37.7825, place.Location.Latitude, 0.0001)
	assert.Equal(t, "cafe", place.PrimaryType)
	require.Len(t, place.Photos, 1)
	assert.Equal(t, "places/ChIJ123/photos/p1", place.Photos[0].Name)
	assert.Equal(t, "San Francisco", place.Component("locality"))
	assert.Equal(t, "SoMa", place.Component("neighborhood", "sublocality"))
	assert.Empty(t, place.Component("postal_code"))
}

func TestGetPlace_EmptyID(t *testing.T) {
	client := NewClient("test-key", WithBaseURL("http://unused.invalid"))
	_, err := client.GetPlace(context.Background(), "  ")
	assert.Error(t, err)
}

func TestGetPlace_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.GetPlace(context.Background(), "ChIJ123")

	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.False(t, resilience.IsRateLimited(err))
}

func TestPhotoMedia_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/ChIJ123/photos/p1/media", r.URL.Path)
		assert.Equal(t, "800", r.URL.Query().Get("maxWidthPx"))
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	media, err := client.PhotoMedia(context.Background(), "places/ChIJ123/photos/p1", 800)

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", media.ContentType)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, media.Data)
}

func TestPhotoMedia_DefaultWidth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1600", r.URL.Query().Get("maxWidthPx"))
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.PhotoMedia(context.Background(), "places/a/photos/b", 0)
	require.NoError(t, err)
}

func TestWithHTTPClient(t *testing.T) {
	hc := &http.Client{Timeout: 3 * time.Second}
	c := NewClient("k", WithHTTPClient(hc)).(*httpClient)
	assert.Same(t, hc, c.http)
	assert.Equal(t, defaultBaseURL, c.baseURL)
}
