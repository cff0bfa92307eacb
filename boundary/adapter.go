// Package boundary is the only place that talks to listing sources and the
// last-search store. Failures never cross it as panics or bare errors: a
// fetch yields a FetchResult, and persistence is best-effort.
package boundary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listing-search/models"
	"listing-search/storage"
	"listing-search/utils"
)

// DefaultPersistTimeout bounds a single last-search write.
const DefaultPersistTimeout = 500 * time.Millisecond

// ListingSource is an upstream collection of raw listing records.
type ListingSource interface {
	Name() string
	Shape() models.SourceShape
	FetchListings(ctx context.Context, q models.Query) ([]models.RawRecord, error)
}

// FetchFailed reports that a source could not be read.
type FetchFailed struct {
	Source string
	Err    error
}

func (e *FetchFailed) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

func (e *FetchFailed) Unwrap() error { return e.Err }

// FetchResult is either a batch of records or a failure. An empty batch is a
// success.
type FetchResult struct {
	Source  string
	Shape   models.SourceShape
	Records []models.RawRecord
	Failure *FetchFailed
}

// Err returns the failure as an error, or nil on success.
func (r FetchResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Adapter wraps a ListingSource and a last-search repository.
type Adapter struct {
	source         ListingSource
	repo           *storage.LastSearchRepository
	logger         *utils.Logger
	persistTimeout time.Duration
}

// NewAdapter creates an Adapter. A nil repo disables last-search persistence.
func NewAdapter(source ListingSource, repo *storage.LastSearchRepository, logger *utils.Logger) *Adapter {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Adapter{source: source, repo: repo, logger: logger, persistTimeout: DefaultPersistTimeout}
}

// ForClient returns an Adapter sharing the source whose last search is kept
// under the given client namespace.
func (a *Adapter) ForClient(namespace string) *Adapter {
	cp := *a
	if a.repo != nil {
		cp.repo = a.repo.WithNamespace(namespace)
	}
	return &cp
}

// SetPersistTimeout overrides DefaultPersistTimeout.
func (a *Adapter) SetPersistTimeout(d time.Duration) {
	a.persistTimeout = d
}

// Shape reports the record layout of the wrapped source.
func (a *Adapter) Shape() models.SourceShape {
	return a.source.Shape()
}

// FetchListings reads the source. Errors and panics in the source become a
// FetchFailed result.
func (a *Adapter) FetchListings(ctx context.Context, q models.Query) (res FetchResult) {
	res = FetchResult{Source: a.source.Name(), Shape: a.source.Shape()}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("[boundary] Source %s panicked: %v", res.Source, r)
			res.Records = nil
			res.Failure = &FetchFailed{Source: res.Source, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	start := time.Now()
	records, err := a.source.FetchListings(ctx, q)
	if err != nil {
		a.logger.Warn("[boundary] Fetch from %s failed after %v: %v", res.Source, time.Since(start).Round(time.Millisecond), err)
		res.Failure = &FetchFailed{Source: res.Source, Err: err}
		return res
	}
	if records == nil {
		records = []models.RawRecord{}
	}

	res.Records = records
	a.logger.Debug("[boundary] Fetched %d records from %s in %v", len(records), res.Source, time.Since(start).Round(time.Millisecond))
	return res
}

// PersistLastSearch remembers the location and filter. It gives up after the
// persist timeout and only logs failures.
func (a *Adapter) PersistLastSearch(ctx context.Context, location string, filter models.FilterState) {
	if a.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.persistTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- a.repo.Save(ctx, models.LastSearch{Location: location, Filter: &filter})
	}()

	select {
	case err := <-done:
		if err != nil {
			a.logger.Warn("[boundary] Could not persist last search: %v", err)
		}
	case <-ctx.Done():
		a.logger.Warn("[boundary] Persisting last search timed out after %v", a.persistTimeout)
	}
}

// LoadLastSearch returns the remembered search. found is false on a first
// visit or when the store cannot be read.
func (a *Adapter) LoadLastSearch(ctx context.Context) (models.LastSearch, bool) {
	if a.repo == nil {
		return models.LastSearch{}, false
	}

	ls, found, err := a.repo.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrInvalidStoredFilter):
		a.logger.Warn("[boundary] Ignoring stored filter: %v", err)
	case err != nil:
		a.logger.Warn("[boundary] Could not load last search: %v", err)
		return models.LastSearch{}, false
	}
	return ls, found
}
