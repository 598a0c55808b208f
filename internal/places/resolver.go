// Package places resolves free-text names to Google Places entities,
// fetches their detail and derives a coarse category.
package places

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/resilience"
	"github.com/sells-group/place-import/pkg/google"
)

// DefaultMaxCandidates caps a search result list.
const DefaultMaxCandidates = 5

// LocationHint biases a search toward a point.
type LocationHint struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// Resolver turns free text into ranked place candidates.
type Resolver struct {
	client        google.Client
	gate          *resilience.Gate
	maxCandidates int
	biasRadiusM   float64
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithMaxCandidates overrides the candidate cap.
func WithMaxCandidates(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxCandidates = n
		}
	}
}

// WithBiasRadius sets the location bias radius in meters.
func WithBiasRadius(m float64) ResolverOption {
	return func(r *Resolver) {
		if m > 0 {
			r.biasRadiusM = m
		}
	}
}

// NewResolver creates a Resolver. Searches go through gate.
func NewResolver(client google.Client, gate *resilience.Gate, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:        client,
		gate:          gate,
		maxCandidates: DefaultMaxCandidates,
		biasRadiusM:   500,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Search returns candidates for name sorted by confidence, best first.
func (r *Resolver) Search(ctx context.Context, name string, hint *LocationHint) ([]model.PlaceCandidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, eris.New("places: empty search name")
	}

	req := google.TextSearchRequest{
		TextQuery: name,
		PageSize:  r.maxCandidates,
	}
	if hint != nil {
		if hint.Address != "" {
			req.TextQuery = name + " " + hint.Address
		}
		if hint.Latitude != 0 || hint.Longitude != 0 {
			req.LocationBias = &google.LocationBias{Circle: google.Circle{
				Center: google.LatLng{Latitude: hint.Latitude, Longitude: hint.Longitude},
				Radius: r.biasRadiusM,
			}}
		}
	}

	resp, err := resilience.Call(ctx, r.gate, func(ctx context.Context) (*google.TextSearchResponse, error) {
		return r.client.TextSearch(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "places: search %q", name)
	}

	candidates := make([]model.PlaceCandidate, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.ID == "" {
			continue
		}
		candidates = append(candidates, model.PlaceCandidate{
			PlaceID:    p.ID,
			Name:       p.DisplayName.Text,
			Address:    p.FormattedAddress,
			Confidence: Score(name, p.DisplayName.Text),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence.Rank() > candidates[j].Confidence.Rank()
	})
	if len(candidates) > r.maxCandidates {
		candidates = candidates[:r.maxCandidates]
	}

	zap.L().Debug("places: search complete",
		zap.String("query", name),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// Score buckets how well a candidate name matches the query.
func Score(query, candidate string) model.Confidence {
	q, c := normalize(query), normalize(candidate)
	if q == "" || c == "" {
		return model.ConfidenceLow
	}
	if q == c || strings.Contains(c, q) || strings.Contains(q, c) {
		return model.ConfidenceHigh
	}

	ratio := overlapRatio(q, c)
	switch {
	case ratio > 0.7:
		return model.ConfidenceHigh
	case ratio > 0.5:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// AutoSelect returns the first candidate when it is high confidence, and
// nil otherwise so that an operator has to choose.
func AutoSelect(candidates []model.PlaceCandidate) *model.PlaceCandidate {
	if len(candidates) == 0 || candidates[0].Confidence != model.ConfidenceHigh {
		return nil
	}
	c := candidates[0]
	return &c
}
