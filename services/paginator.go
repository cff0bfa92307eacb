package services

import "listing-search/models"

// Paginate exposes the window of sorted that the caller should render.
// TotalCount is always len(sorted) so "N results" stays correct while collapsed.
func Paginate(sorted []models.Listing, window models.ViewWindow) models.Page {
	total := len(sorted)
	if window.Expanded {
		return models.Page{Visible: visibleCopy(sorted, total), TotalCount: total}
	}

	size := max(window.PageSize, 0)
	end := min(size, total)
	return models.Page{
		Visible:    visibleCopy(sorted, end),
		TotalCount: total,
		HasMore:    total > size,
	}
}

// visibleCopy copies the first n listings into a fresh, non-nil slice.
func visibleCopy(sorted []models.Listing, n int) []models.Listing {
	return append(make([]models.Listing, 0, n), sorted[:n]...)
}
