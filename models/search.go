package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"
)

// DefaultMaxRent is the upper rent bound of a permissive filter.
const DefaultMaxRent = 1_000_000_000

// Filter size limits. schemas/housing_filters.json enforces the same values
// on stored filters.
const (
	MaxKeywordLength      = 200
	MaxBedroomTags        = 16
	MaxBedroomTagLength   = 16
	MaxPropertyTypes      = 32
	MaxPropertyTypeLength = 64
)

// ErrInvalidFilterState reports a filter that cannot match anything or
// exceeds the filter size limits.
var ErrInvalidFilterState = errors.New("invalid filter state")

// RentRange is an inclusive monthly rent interval.
type RentRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FilterState is the caller-supplied criteria narrowing a listing set.
// BedroomTags and PropertyTypes have set semantics.
type FilterState struct {
	Keyword       string    `json:"keyword"`
	RentRange     RentRange `json:"rentRange"`
	BedroomTags   []string  `json:"bedroomTags"`
	PropertyTypes []string  `json:"propertyTypes"`
	VerifiedOnly  bool      `json:"verifiedOnly"`
}

// DefaultFilterState returns a filter that matches every listing.
func DefaultFilterState() FilterState {
	return FilterState{RentRange: RentRange{Min: 0, Max: DefaultMaxRent}}
}

// Validate reports ErrInvalidFilterState when the rent bounds are unusable
// or a field exceeds its size limit. A filter that passes is always storable.
func (f FilterState) Validate() error {
	r := f.RentRange
	switch {
	case !isBound(r.Min) || !isBound(r.Max):
		return fmt.Errorf("%w: rent bounds must be finite and non-negative", ErrInvalidFilterState)
	case r.Min > r.Max:
		return fmt.Errorf("%w: rent min %v exceeds max %v", ErrInvalidFilterState, r.Min, r.Max)
	case utf8.RuneCountInString(f.Keyword) > MaxKeywordLength:
		return fmt.Errorf("%w: keyword longer than %d characters", ErrInvalidFilterState, MaxKeywordLength)
	}
	if err := checkSet("bedroomTags", f.BedroomTags, MaxBedroomTags, MaxBedroomTagLength); err != nil {
		return err
	}
	return checkSet("propertyTypes", f.PropertyTypes, MaxPropertyTypes, MaxPropertyTypeLength)
}

func isBound(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

func checkSet(name string, values []string, maxItems, maxLen int) error {
	if len(values) > maxItems {
		return fmt.Errorf("%w: more than %d %s", ErrInvalidFilterState, maxItems, name)
	}
	for _, v := range values {
		if utf8.RuneCountInString(v) > maxLen {
			return fmt.Errorf("%w: %s entry longer than %d characters", ErrInvalidFilterState, name, maxLen)
		}
	}
	return nil
}

// Fingerprint returns a canonical key for the filter. Two filters that differ
// only in set ordering or duplicate members share a fingerprint.
func (f FilterState) Fingerprint() string {
	canonical := FilterState{
		Keyword:       strings.TrimSpace(f.Keyword),
		RentRange:     f.RentRange,
		BedroomTags:   canonicalSet(f.BedroomTags),
		PropertyTypes: canonicalSet(f.PropertyTypes),
		VerifiedOnly:  f.VerifiedOnly,
	}
	b, err := json.Marshal(canonical)
	if err != nil {
		// NaN bounds are not representable in JSON.
		return "invalid"
	}
	return string(b)
}

func canonicalSet(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SortKey selects the ordering of a result set.
type SortKey string

const (
	SortDefault    SortKey = "default"
	SortPriceAsc   SortKey = "priceAsc"
	SortPriceDesc  SortKey = "priceDesc"
	SortRatingDesc SortKey = "ratingDesc"
	SortNewest     SortKey = "newest"
)

// ParseSortKey maps a string to a SortKey. Unknown values yield SortDefault and false.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.TrimSpace(s)); k {
	case SortDefault, SortPriceAsc, SortPriceDesc, SortRatingDesc, SortNewest:
		return k, true
	case "":
		return SortDefault, true
	}
	return SortDefault, false
}

// ViewWindow controls how much of a sorted result is exposed.
// Expanded is false (collapsed) at the start of every search session.
type ViewWindow struct {
	PageSize int  `json:"pageSize"`
	Expanded bool `json:"expanded"`
}

// ShowAll moves the window to the expanded state.
func (w ViewWindow) ShowAll() ViewWindow {
	w.Expanded = true
	return w
}

// Reset moves the window back to the collapsed state.
func (w ViewWindow) Reset() ViewWindow {
	w.Expanded = false
	return w
}

// Page is the visible slice of a sorted result plus pagination metadata.
type Page struct {
	Visible    []Listing `json:"visible"`
	TotalCount int       `json:"totalCount"`
	HasMore    bool      `json:"hasMore"`
}

// Result is the output of a full search. Dropped counts records that were
// discarded during normalization.
type Result struct {
	Page
	Dropped int `json:"dropped"`
}

// Query narrows what a listing source returns. Sources may ignore fields
// they cannot push down; the engine filters again after normalization.
type Query struct {
	Location string `json:"location"`
	Limit    int    `json:"limit"`
}

// LastSearch is the remembered free-text location and filter of a client.
// Either part may be absent on a first visit; an absent location is empty.
type LastSearch struct {
	Location string       `json:"searchLocation"`
	Filter   *FilterState `json:"housingFilters,omitempty"`
}
