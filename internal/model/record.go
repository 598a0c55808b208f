package model

import "time"

// CatalogRecord is a fully populated destination record ready for a single
// catalog insert.
type CatalogRecord struct {
	ID            string    `json:"id"`
	PlaceID       string    `json:"place_id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	City          string    `json:"city"`
	Neighborhood  string    `json:"neighborhood,omitempty"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Category      string    `json:"category"`
	SubCategories []string  `json:"sub_categories,omitempty"`
	Description   string    `json:"description"`
	Handle        string    `json:"handle,omitempty"`
	PhotoURLs     []string  `json:"photo_urls,omitempty"`
	Website       string    `json:"website,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Hours         []string  `json:"hours,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReportRow is one line of the end-of-run report.
type ReportRow struct {
	Index    int        `json:"index"`
	Name     string     `json:"name"`
	Status   ItemStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
	PlaceID  string     `json:"place_id,omitempty"`
	RecordID string     `json:"record_id,omitempty"`
}
