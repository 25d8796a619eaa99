package models

import (
	"time"
)

// SourceID identifies one retail catalog queried independently
type SourceID string

const (
	SourceAmazon   SourceID = "amazon"
	SourceFlipkart SourceID = "flipkart"
)

// Tier is the qualitative label attached to a recommendation score
type Tier string

const (
	TierExcellent Tier = "Excellent Deal! Buy Now"
	TierGood      Tier = "Good Deal"
	TierFair      Tier = "Fair Price"
	TierWait      Tier = "Consider Waiting"
)

// PlaceholderImage is used when a listing has no resolvable image
const PlaceholderImage = "/placeholder.svg"

// RawRecord is a listing as scraped from one source's search-results page.
// It only lives for the duration of one query.
type RawRecord struct {
	Title            string
	Price            float64
	OriginalPrice    *float64
	DiscountPercent  *int
	Rating           float64
	ReviewCount      int
	ProductURL       string
	ImageURL         string
	Source           SourceID
	DeliveryEstimate string
	InStock          bool
}

// Product is the canonical, scored record returned to callers
type Product struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Image               string   `json:"image"`
	Source              SourceID `json:"source"`
	Price               float64  `json:"price"`
	OriginalPrice       *float64 `json:"originalPrice,omitempty"`
	Rating              float64  `json:"rating"`
	ReviewCount         int      `json:"reviewCount"`
	Discount            *int     `json:"discount,omitempty"`
	DeliveryEstimate    string   `json:"deliveryEstimate"`
	InStock             bool     `json:"inStock"`
	URL                 string   `json:"url"`
	RecommendationScore *float64 `json:"recommendationScore,omitempty"`
	RecommendationTier  Tier     `json:"recommendationTier,omitempty"`
}

// Scored returns true once the recommendation engine has run on the product
func (p *Product) Scored() bool {
	return p.RecommendationScore != nil
}

// Score returns the recommendation score, or 0 if the product is not scored yet
func (p *Product) Score() float64 {
	if p.RecommendationScore == nil {
		return 0
	}
	return *p.RecommendationScore
}

// SourceReport describes how one source fared for a single query
type SourceReport struct {
	Source   SourceID      `json:"source"`
	Count    int           `json:"count"`
	Error    string        `json:"error,omitempty"`
	BotWall  bool          `json:"bot_wall"`
	Duration time.Duration `json:"duration"`
}

// Failed returns true if the source contributed nothing because of an error
func (r *SourceReport) Failed() bool {
	return r.Error != ""
}

// SearchLogEntry is one row of the search audit log
type SearchLogEntry struct {
	ID              int            `json:"id" db:"id"`
	Query           string         `json:"query" db:"query"`
	NormalizedQuery string         `json:"normalized_query" db:"normalized_query"`
	ResultCount     int            `json:"result_count" db:"result_count"`
	DurationMS      int64          `json:"duration_ms" db:"duration_ms"`
	CacheHit        bool           `json:"cache_hit" db:"cache_hit"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	Sources         []SourceReport `json:"sources,omitempty"`
}

// SearchRequest is the inbound search body
type SearchRequest struct {
	Query string `json:"query"`
}

// SourceInfo describes a configured source
type SourceInfo struct {
	ID      SourceID `json:"id"`
	BaseURL string   `json:"base_url"`
}
