package places

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/resilience"
	"github.com/sells-group/place-import/pkg/google"
)

const maxReviewExcerpts = 5

// DetailFetcher retrieves structured detail for a resolved place.
type DetailFetcher struct {
	client  google.Client
	breaker *resilience.CircuitBreaker
	now     func() time.Time
}

// NewDetailFetcher creates a DetailFetcher. Calls run through breaker when
// it is non-nil.
func NewDetailFetcher(client google.Client, breaker *resilience.CircuitBreaker) *DetailFetcher {
	return &DetailFetcher{
		client:  client,
		breaker: breaker,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewDetailBreaker returns the breaker used in front of the detail endpoint.
// Only transient failures count toward tripping it. onChange may be nil.
func NewDetailBreaker(onChange func(service string, from, to resilience.CircuitState)) *resilience.CircuitBreaker {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.Name = "google_places_detail"
	cfg.ShouldTrip = resilience.IsTransient
	cfg.OnStateChange = onChange
	return resilience.NewCircuitBreaker(cfg)
}

// Fetch returns the detail for placeID.
func (f *DetailFetcher) Fetch(ctx context.Context, placeID string) (*model.PlaceDetail, error) {
	get := func(ctx context.Context) (*google.Place, error) {
		return f.client.GetPlace(ctx, placeID)
	}

	var (
		place *google.Place
		err   error
	)
	if f.breaker != nil {
		place, err = resilience.ExecuteVal(ctx, f.breaker, get)
	} else {
		place, err = get(ctx)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "places: get detail %s", placeID)
	}
	return toDetail(placeID, place, f.now()), nil
}

func toDetail(placeID string, p *google.Place, fetchedAt time.Time) *model.PlaceDetail {
	d := &model.PlaceDetail{
		PlaceID:     placeID,
		Name:        p.DisplayName.Text,
		Address:     p.FormattedAddress,
		Types:       p.Types,
		PrimaryType: p.PrimaryType,
		Website:     p.WebsiteURI,
		Phone:       p.NationalPhoneNumber,
		Rating:      p.Rating,
		RatingCount: p.UserRatingCount,
		City:        p.Component("locality", "postal_town"),
		Neighborhood: p.Component(
			"neighborhood", "sublocality_level_1", "sublocality",
		),
		FetchedAt: fetchedAt,
	}
	if p.ID != "" {
		d.PlaceID = p.ID
	}
	if p.Location != nil {
		d.Latitude = p.Location.Latitude
		d.Longitude = p.Location.Longitude
	}
	if p.RegularOpeningHours != nil {
		d.Hours = p.RegularOpeningHours.WeekdayDescriptions
	}
	if p.EditorialSummary != nil {
		d.EditorialSummary = p.EditorialSummary.Text
	}
	for _, ph := range p.Photos {
		d.Photos = append(d.Photos, model.PhotoRef{Name: ph.Name, WidthPx: ph.WidthPx, HeightPx: ph.HeightPx})
	}
	for _, r := range p.Reviews {
		if r.Text.Text == "" {
			continue
		}
		d.Reviews = append(d.Reviews, r.Text.Text)
		if len(d.Reviews) == maxReviewExcerpts {
			break
		}
	}
	return d
}
