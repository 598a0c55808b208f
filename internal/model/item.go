package model

import "time"

// ItemStatus represents the lifecycle state of an import queue item.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusSearching ItemStatus = "searching"
	ItemStatusEnhancing ItemStatus = "enhancing"
	ItemStatusReady     ItemStatus = "ready"
	ItemStatusApproved  ItemStatus = "approved"
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusDuplicate ItemStatus = "duplicate"
	ItemStatusFailed    ItemStatus = "failed"
	ItemStatusSkipped   ItemStatus = "skipped"
)

// Terminal reports whether no automatic transition leaves this status.
// Failed is not terminal: the operator may retry it.
func (s ItemStatus) Terminal() bool {
	switch s {
	case ItemStatusCompleted, ItemStatusDuplicate, ItemStatusSkipped:
		return true
	default:
		return false
	}
}

// InFlight reports whether the pipeline is mid-way through the item.
func (s ItemStatus) InFlight() bool {
	return s == ItemStatusSearching || s == ItemStatusEnhancing
}

// SourceRow is one row of the imported export. It is copied into the queue
// item at load time and never modified afterwards.
type SourceRow struct {
	Line      int      `json:"line,omitempty"`
	Title     string   `json:"title"`
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	URL       string   `json:"url,omitempty"`
	PlaceID   string   `json:"place_id,omitempty"`
	Note      string   `json:"note,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (r SourceRow) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// OperatorSelections are the fields chosen by the operator at approval time.
type OperatorSelections struct {
	Category      string   `json:"category"`
	SubCategories []string `json:"sub_categories,omitempty"`
	City          string   `json:"city"`
	Neighborhood  string   `json:"neighborhood,omitempty"`
	Description   string   `json:"description,omitempty"` // edited narrative; empty keeps the generated one
}

// QueueItem is one unit of import work.
//
// Status determines which optional fields are populated: ready and later
// imply Detail and Enrichment; approved and completed imply Selections;
// completed implies RecordID; duplicate implies DuplicateOfID.
type QueueItem struct {
	Source          SourceRow           `json:"source"`
	PlaceID         string              `json:"place_id,omitempty"`
	ResolvedName    string              `json:"resolved_name,omitempty"`
	ResolvedAddress string              `json:"resolved_address,omitempty"`
	Detail          *PlaceDetail        `json:"detail,omitempty"`
	Enrichment      *Enrichment         `json:"enrichment,omitempty"`
	Selections      *OperatorSelections `json:"selections,omitempty"`
	Status          ItemStatus          `json:"status"`
	Error           string              `json:"error,omitempty"`
	DuplicateOfID   string              `json:"duplicate_of_id,omitempty"`
	RecordID        string              `json:"record_id,omitempty"`
	PhotoURLs       []string            `json:"photo_urls,omitempty"`
	NeedsReview     bool                `json:"needs_review,omitempty"`
	ReviewNote      string              `json:"review_note,omitempty"`
	AttemptCount    int                 `json:"attempt_count"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// DisplayName prefers the resolved name over the source title.
func (it QueueItem) DisplayName() string {
	if it.ResolvedName != "" {
		return it.ResolvedName
	}
	return it.Source.Title
}
