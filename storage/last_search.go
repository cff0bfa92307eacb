package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"listing-search/models"
	"listing-search/schemas"
)

// Keys under which the last search is stored.
const (
	KeySearchLocation = "searchLocation"
	KeyHousingFilters = "housingFilters"
)

// ErrInvalidStoredFilter marks a housingFilters value that no longer decodes
// into a usable FilterState.
var ErrInvalidStoredFilter = errors.New("invalid stored housingFilters")

// LastSearchRepository stores a client's last location and filter in a
// KeyValueStore, optionally under a per-client namespace.
type LastSearchRepository struct {
	store     KeyValueStore
	namespace string
}

func NewLastSearchRepository(store KeyValueStore, namespace string) *LastSearchRepository {
	return &LastSearchRepository{store: store, namespace: namespace}
}

// WithNamespace returns a repository over the same store scoped to namespace.
func (r *LastSearchRepository) WithNamespace(namespace string) *LastSearchRepository {
	return &LastSearchRepository{store: r.store, namespace: namespace}
}

func (r *LastSearchRepository) key(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + ":" + name
}

// Save writes the location and, when present, the JSON-encoded filter.
// A filter that fails Validate is refused before anything is written, so
// every saved search loads back whole.
func (r *LastSearchRepository) Save(ctx context.Context, ls models.LastSearch) error {
	if ls.Filter != nil {
		if err := ls.Filter.Validate(); err != nil {
			return fmt.Errorf("last search: %w", err)
		}
	}
	if err := r.store.Set(ctx, r.key(KeySearchLocation), ls.Location); err != nil {
		return fmt.Errorf("last search: save location: %w", err)
	}
	if ls.Filter == nil {
		return nil
	}

	body, err := json.Marshal(ls.Filter)
	if err != nil {
		return fmt.Errorf("last search: encode filter: %w", err)
	}
	if err := r.store.Set(ctx, r.key(KeyHousingFilters), string(body)); err != nil {
		return fmt.Errorf("last search: save filter: %w", err)
	}
	return nil
}

// Load reads the last search. found is false when neither key exists, which
// is the normal state on a first visit. A stored filter that fails schema
// validation is left out of the result and reported as ErrInvalidStoredFilter
// alongside whatever else was found.
func (r *LastSearchRepository) Load(ctx context.Context) (models.LastSearch, bool, error) {
	var ls models.LastSearch

	location, hasLocation, err := r.store.Get(ctx, r.key(KeySearchLocation))
	if err != nil {
		return ls, false, fmt.Errorf("last search: load location: %w", err)
	}
	ls.Location = location

	raw, hasFilter, err := r.store.Get(ctx, r.key(KeyHousingFilters))
	if err != nil {
		return ls, hasLocation, fmt.Errorf("last search: load filter: %w", err)
	}
	if !hasFilter {
		return ls, hasLocation, nil
	}

	filter, err := decodeFilter([]byte(raw))
	if err != nil {
		return ls, hasLocation, fmt.Errorf("%w: %v", ErrInvalidStoredFilter, err)
	}
	ls.Filter = &filter
	return ls, true, nil
}

func decodeFilter(body []byte) (models.FilterState, error) {
	var f models.FilterState
	if err := schemas.ValidateHousingFilters(body); err != nil {
		return f, err
	}
	if err := json.Unmarshal(body, &f); err != nil {
		return f, err
	}
	return f, f.Validate()
}
