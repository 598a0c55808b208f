package model

import "time"

// Confidence is a coarse match-quality bucket from name similarity scoring.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidences so that higher is better.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// PlaceCandidate is an ephemeral search result. It is never persisted.
type PlaceCandidate struct {
	PlaceID    string     `json:"place_id"`
	Name       string     `json:"name"`
	Address    string     `json:"address"`
	Confidence Confidence `json:"confidence"`
}

// PhotoRef references an externally hosted photo of a place.
type PhotoRef struct {
	Name     string `json:"name"`
	WidthPx  int    `json:"width_px,omitempty"`
	HeightPx int    `json:"height_px,omitempty"`
}

// PlaceDetail is the authoritative structured detail for a resolved place.
type PlaceDetail struct {
	PlaceID          string     `json:"place_id"`
	Name             string     `json:"name"`
	Address          string     `json:"address"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	Types            []string   `json:"types,omitempty"`
	PrimaryType      string     `json:"primary_type,omitempty"`
	Website          string     `json:"website,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Hours            []string   `json:"hours,omitempty"`
	Rating           float64    `json:"rating,omitempty"`
	RatingCount      int        `json:"rating_count,omitempty"`
	Photos           []PhotoRef `json:"photos,omitempty"`
	Reviews          []string   `json:"reviews,omitempty"`
	EditorialSummary string     `json:"editorial_summary,omitempty"`
	City             string     `json:"city,omitempty"`
	Neighborhood     string     `json:"neighborhood,omitempty"`
	FetchedAt        time.Time  `json:"fetched_at"`
}

// Category is a coarse place category derived from external type tags.
type Category string

const (
	CategoryFashion   Category = "Fashion"
	CategoryFood      Category = "Food"
	CategoryCoffee    Category = "Coffee"
	CategoryHomeGoods Category = "Home Goods"
	CategoryMuseum    Category = "Museum"
	CategoryOther     Category = "Other"
)

// EnrichmentSource records where a narrative came from.
type EnrichmentSource string

const (
	EnrichmentSourceAI       EnrichmentSource = "ai"
	EnrichmentSourceFallback EnrichmentSource = "fallback"
)

// Enrichment holds the generated narrative fields layered onto a detail.
type Enrichment struct {
	Description string           `json:"description"`
	Handle      string           `json:"handle,omitempty"`
	Category    Category         `json:"category"`
	Source      EnrichmentSource `json:"source"`
	GeneratedAt time.Time        `json:"generated_at"`
}
