package storage

import "time"

// Row is the flattened representation of one trending record, persisted once
// per collection run. Rows are keyed by (CollectionKey, Rank).
type Row struct {
	CollectionKey string
	Rank          int

	// Identity
	RecordID  string
	ProductID string

	// Descriptive
	Name       string
	Price      float64
	ShopID     string
	ShopName   string
	ShopDomain string
	ImageURL   string

	// Metrics
	Views        int64
	Likes        int64
	Comments     int64
	GMV          float64
	UnitsSold    int64
	VideoCount   int64
	CreatorCount int64

	// Derived scores, clamped to [0, 100]
	TrendingScore int
	ViralScore    int

	// Serialized JSON blobs; "[]" / "{}" when absent, never "null"
	Categories    string
	Insights      string
	Transcription string

	TimePosted  *time.Time
	LastUpdated time.Time

	IsAd     bool
	HasError bool
}

// KeyStats summarizes one stored snapshot.
type KeyStats struct {
	CollectionKey string  `json:"collection_key"`
	RowCount      int     `json:"row_count"`
	TotalGMV      float64 `json:"total_gmv"`
	LastUpdated   string  `json:"last_updated"`
}
