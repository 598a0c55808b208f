package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/place-import/internal/resilience"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

const (
	searchFieldMask = "places.id,places.displayName,places.formattedAddress,places.location"
	detailFieldMask = "id,displayName,formattedAddress,location,types,primaryType,websiteUri," +
		"nationalPhoneNumber,regularOpeningHours.weekdayDescriptions,rating,userRatingCount," +
		"photos,reviews,editorialSummary,addressComponents"
)

// maxPhotoBytes bounds a single photo download.
const maxPhotoBytes = 20 << 20

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
	GetPlace(ctx context.Context, placeID string) (*Place, error)
	PhotoMedia(ctx context.Context, photoName string, maxWidthPx int) (*Media, error)
}

// TextSearchRequest is the body of a Places Text Search call.
type TextSearchRequest struct {
	TextQuery      string        `json:"textQuery"`
	LocationBias   *LocationBias `json:"locationBias,omitempty"`
	PageSize       int           `json:"pageSize,omitempty"`
	RegionCode     string        `json:"regionCode,omitempty"`
}

// LocationBias prefers results near a point.
type LocationBias struct {
	Circle Circle `json:"circle"`
}

// Circle is a center point and radius in meters.
type Circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the API. Search responses populate
// only the search field mask.
type Place struct {
	ID                  string             `json:"id"`
	DisplayName         LocalizedText      `json:"displayName"`
	FormattedAddress    string             `json:"formattedAddress"`
	Location            *LatLng            `json:"location,omitempty"`
	Types               []string           `json:"types,omitempty"`
	PrimaryType         string             `json:"primaryType,omitempty"`
	WebsiteURI          string             `json:"websiteUri,omitempty"`
	NationalPhoneNumber string             `json:"nationalPhoneNumber,omitempty"`
	RegularOpeningHours *OpeningHours      `json:"regularOpeningHours,omitempty"`
	Rating              float64            `json:"rating,omitempty"`
	UserRatingCount     int                `json:"userRatingCount,omitempty"`
	Photos              []Photo            `json:"photos,omitempty"`
	Reviews             []Review           `json:"reviews,omitempty"`
	EditorialSummary    *LocalizedText     `json:"editorialSummary,omitempty"`
	AddressComponents   []AddressComponent `json:"addressComponents,omitempty"`
}

// LocalizedText holds a localized string.
type LocalizedText struct {
	Text string `json:"text"`
}

// OpeningHours holds the human-readable weekly schedule.
type OpeningHours struct {
	WeekdayDescriptions []string `json:"weekdayDescriptions"`
}

// Photo references a place photo resource.
type Photo struct {
	Name     string `json:"name"`
	WidthPx  int    `json:"widthPx"`
	HeightPx int    `json:"heightPx"`
}

// Review is a single user review.
type Review struct {
	Rating float64       `json:"rating"`
	Text   LocalizedText `json:"text"`
}

// AddressComponent is one structured part of the formatted address.
type AddressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText"`
	Types     []string `json:"types"`
}

// Component returns the long text of the first address component carrying
// any of the given types.
func (p *Place) Component(types ...string) string {
	for _, c := range p.AddressComponents {
		for _, have := range c.Types {
			for _, want := range types {
				if have == want {
					return c.LongText
				}
			}
		}
	}
	return ""
}

// Media is a downloaded photo.
type Media struct {
	Data        []byte
	ContentType string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, in TextSearchRequest) (*TextSearchResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-FieldMask", searchFieldMask)

	var result TextSearchResponse
	if err := c.doJSON(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) GetPlace(ctx context.Context, placeID string) (*Place, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, eris.New("google: empty place id")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/places/"+url.PathEscape(placeID), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}
	req.Header.Set("X-Goog-FieldMask", detailFieldMask)

	var place Place
	if err := c.doJSON(req, &place); err != nil {
		return nil, err
	}
	return &place, nil
}

func (c *httpClient) PhotoMedia(ctx context.Context, photoName string, maxWidthPx int) (*Media, error) {
	if maxWidthPx <= 0 {
		maxWidthPx = 1600
	}
	q := url.Values{}
	q.Set("maxWidthPx", strconv.Itoa(maxWidthPx))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+photoName+"/media?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, eris.Wrap(err, "google: read photo")
	}
	return &Media{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (c *httpClient) doJSON(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "google: read response")
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "google: unmarshal response")
	}
	return nil
}

// send performs the request and returns the response only for 200 OK.
// Non-200 statuses are classified so callers can tell rate limiting apart.
func (c *httpClient) send(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close() //nolint:errcheck
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	statusErr := eris.Errorf("google: unexpected status %d: %s", resp.StatusCode, string(snippet))
	return nil, resilience.ClassifyHTTPStatus(statusErr, resp.StatusCode)
}
