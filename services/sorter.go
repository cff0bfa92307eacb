package services

import (
	"cmp"
	"slices"

	"listing-search/models"
)

// Comparator returns the ordering function for key. Every comparator except
// SortDefault breaks ties on id ascending, so equal keys still sort the same
// way on every call. SortDefault reports all listings equal; combined with a
// stable sort it keeps the input order. Unknown keys behave as SortDefault.
func Comparator(key models.SortKey) func(a, b models.Listing) int {
	switch key {
	case models.SortPriceAsc:
		return func(a, b models.Listing) int {
			return cmp.Or(cmp.Compare(a.RentAmount, b.RentAmount), cmp.Compare(a.ID, b.ID))
		}
	case models.SortPriceDesc:
		return func(a, b models.Listing) int {
			return cmp.Or(cmp.Compare(b.RentAmount, a.RentAmount), cmp.Compare(a.ID, b.ID))
		}
	case models.SortRatingDesc:
		return func(a, b models.Listing) int {
			return cmp.Or(cmp.Compare(b.Rating, a.Rating), cmp.Compare(a.ID, b.ID))
		}
	case models.SortNewest:
		return compareNewest
	}
	return func(models.Listing, models.Listing) int { return 0 }
}

// compareNewest puts timestamped listings first, newest to oldest. Listings
// without a timestamp compare equal to each other.
func compareNewest(a, b models.Listing) int {
	switch {
	case a.CreatedAt == nil && b.CreatedAt == nil:
		return 0
	case a.CreatedAt == nil:
		return 1
	case b.CreatedAt == nil:
		return -1
	}
	return cmp.Or(b.CreatedAt.Compare(*a.CreatedAt), cmp.Compare(a.ID, b.ID))
}

// SortListings returns a stably sorted copy of listings.
func SortListings(listings []models.Listing, key models.SortKey) []models.Listing {
	out := slices.Clone(listings)
	slices.SortStableFunc(out, Comparator(key))
	return out
}
