package models

import "time"

// SourceShape identifies which upstream record layout a raw record follows.
type SourceShape string

const (
	// ShapeLegacy is the older flat listing document.
	ShapeLegacy SourceShape = "legacy"
	// ShapeStandard is the property document with nested address and coordinates.
	ShapeStandard SourceShape = "standard"
)

// RawRecord is an upstream JSON-like record before normalization.
// Unknown fields are tolerated and ignored.
type RawRecord map[string]any

// Address holds the display parts of a listing's location.
type Address struct {
	City  string `json:"city"`
	State string `json:"state"`
	Full  string `json:"full"`
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Listing is the canonical, fully populated record the search pipeline works on.
type Listing struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Description       string       `json:"description,omitempty"`
	Address           Address      `json:"address"`
	RentAmount        float64      `json:"rentAmount"`
	Bedrooms          int          `json:"bedrooms"`
	Bathrooms         float64      `json:"bathrooms"`
	PropertyType      string       `json:"propertyType"`
	Amenities         []string     `json:"amenities"`
	Rating            float64      `json:"rating"`
	IsNetworkVerified bool         `json:"isNetworkVerified"`
	Coordinates       *Coordinates `json:"coordinates,omitempty"`
	Geohash           string       `json:"geohash,omitempty"`
	Availability      string       `json:"availability"`
	ImageURL          string       `json:"imageUrl"`
	CreatedAt         *time.Time   `json:"createdAt,omitempty"`
	Source            SourceShape  `json:"source"`
}

// SearchSummary holds aggregate figures over a set of listings.
type SearchSummary struct {
	TotalListings    int            `json:"totalListings"`
	VerifiedListings int            `json:"verifiedListings"`
	AverageRent      float64        `json:"averageRent"`
	MinRent          float64        `json:"minRent"`
	MaxRent          float64        `json:"maxRent"`
	MostExpensive    *Listing       `json:"mostExpensive,omitempty"`
	TopRated         []Listing      `json:"topRated"`
	ListingsByCity   map[string]int `json:"listingsByCity"`
	ListingsByType   map[string]int `json:"listingsByType"`
	ListingsByBeds   map[string]int `json:"listingsByBeds"`
}
