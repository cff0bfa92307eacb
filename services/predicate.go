package services

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"listing-search/models"
)

// Bedroom tag tokens with special meaning.
const (
	TagStudio     = "Studio"
	TagFourOrMore = "4+"
)

// Predicate reports whether a listing passes a filter.
type Predicate func(models.Listing) bool

func matchNone(models.Listing) bool { return false }

// BuildPredicate translates a FilterState into a Predicate. Filter categories
// combine with AND; bedroom tags combine with OR among themselves. An invalid
// filter (see FilterState.Validate) yields a predicate that matches nothing.
func BuildPredicate(f models.FilterState) Predicate {
	if f.Validate() != nil {
		return matchNone
	}

	checks := []Predicate{
		keywordPredicate(f.Keyword),
		rentPredicate(f.RentRange),
		bedroomPredicate(f.BedroomTags),
		typePredicate(f.PropertyTypes),
		verifiedPredicate(f.VerifiedOnly),
	}
	return func(l models.Listing) bool {
		for _, check := range checks {
			if !check(l) {
				return false
			}
		}
		return true
	}
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func keywordPredicate(keyword string) Predicate {
	needle := fold(strings.TrimSpace(keyword))
	if needle == "" {
		return func(models.Listing) bool { return true }
	}
	return func(l models.Listing) bool {
		for _, field := range []string{l.Title, l.Address.City, l.Address.State, l.Description} {
			if strings.Contains(fold(field), needle) {
				return true
			}
		}
		return false
	}
}

func rentPredicate(r models.RentRange) Predicate {
	return func(l models.Listing) bool {
		return l.RentAmount >= r.Min && l.RentAmount <= r.Max
	}
}

// bedroomMatcher matches a single bedroom tag.
type bedroomMatcher func(bedrooms int) bool

func parseBedroomTag(tag string) (bedroomMatcher, bool) {
	tag = strings.TrimSpace(tag)
	if strings.EqualFold(tag, TagStudio) {
		return func(b int) bool { return b == 0 }, true
	}
	if base, ok := strings.CutSuffix(tag, "+"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(base))
		if err != nil {
			return nil, false
		}
		return func(b int) bool { return b >= n }, true
	}
	n, err := strconv.Atoi(tag)
	if err != nil {
		return nil, false
	}
	return func(b int) bool { return b == n }, true
}

func bedroomPredicate(tags []string) Predicate {
	if len(tags) == 0 {
		return func(models.Listing) bool { return true }
	}
	matchers := make([]bedroomMatcher, 0, len(tags))
	for _, tag := range tags {
		// Unrecognised tags match nothing but do not veto the other tags.
		if m, ok := parseBedroomTag(tag); ok {
			matchers = append(matchers, m)
		}
	}
	return func(l models.Listing) bool {
		for _, m := range matchers {
			if m(l.Bedrooms) {
				return true
			}
		}
		return false
	}
}

func typePredicate(types []string) Predicate {
	if len(types) == 0 {
		return func(models.Listing) bool { return true }
	}
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[fold(strings.TrimSpace(t))] = struct{}{}
	}
	return func(l models.Listing) bool {
		_, ok := allowed[fold(l.PropertyType)]
		return ok
	}
}

func verifiedPredicate(verifiedOnly bool) Predicate {
	return func(l models.Listing) bool {
		return !verifiedOnly || l.IsNetworkVerified
	}
}
