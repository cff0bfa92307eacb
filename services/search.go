package services

import (
	"errors"

	"listing-search/models"
	"listing-search/utils"
)

// Engine composes normalization, filtering, sorting and pagination.
// It holds configuration only; every call works on fresh copies of its input.
type Engine struct {
	normalizer *Normalizer
	logger     *utils.Logger
}

// NewEngine creates an Engine around the given Normalizer.
func NewEngine(normalizer *Normalizer, logger *utils.Logger) *Engine {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if normalizer == nil {
		normalizer = NewNormalizer(NormalizerConfig{}, logger)
	}
	return &Engine{normalizer: normalizer, logger: logger}
}

// NormalizeAll canonicalizes raw records, dropping malformed ones and later
// duplicates of an id. It returns the listings and the number dropped.
func (e *Engine) NormalizeAll(raw []models.RawRecord, shape models.SourceShape) ([]models.Listing, int) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]models.Listing, 0, len(raw))
	dropped := 0

	for i, r := range raw {
		l, err := e.normalizer.Normalize(r, shape, i)
		if err != nil {
			if errors.Is(err, ErrMalformedRecord) {
				e.logger.Debug("[search] Dropping record %d: %v", i, err)
			}
			dropped++
			continue
		}
		if _, dup := seen[l.ID]; dup {
			e.logger.Debug("[search] Duplicate id skipped: %s", l.ID)
			dropped++
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out, dropped
}

// Search runs the full pipeline over raw upstream records.
func (e *Engine) Search(raw []models.RawRecord, shape models.SourceShape, filter models.FilterState,
	sortKey models.SortKey, window models.ViewWindow) models.Result {

	listings, dropped := e.NormalizeAll(raw, shape)
	res := e.SearchListings(listings, filter, sortKey, window)
	res.Dropped += dropped

	e.logger.Debug("[search] %d raw -> %d matched (dropped %d, visible %d)",
		len(raw), res.TotalCount, res.Dropped, len(res.Visible))
	return res
}

// SearchListings runs filter, sort and paginate over already canonical
// listings. Listings violating the id or rent invariant are dropped.
func (e *Engine) SearchListings(listings []models.Listing, filter models.FilterState,
	sortKey models.SortKey, window models.ViewWindow) models.Result {

	pred := BuildPredicate(filter)
	matched := make([]models.Listing, 0, len(listings))
	dropped := 0
	for _, l := range listings {
		if l.ID == "" || !(l.RentAmount >= 0) {
			dropped++
			continue
		}
		if pred(l) {
			matched = append(matched, l)
		}
	}

	sorted := SortListings(matched, sortKey)
	return models.Result{Page: Paginate(sorted, window), Dropped: dropped}
}
