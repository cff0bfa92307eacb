package services

import (
	"reflect"
	"testing"

	"listing-search/models"
	"listing-search/utils"
)

func newTestEngine() *Engine {
	return NewEngine(newTestNormalizer(), utils.NewNopLogger())
}

func rawBatch() []models.RawRecord {
	return []models.RawRecord{
		{"id": "p1", "propertyName": "Sunny Loft", "rent_amount": 1000.0, "bedrooms": 0.0, "address": map[string]any{"city": "Austin", "state": "TX"}},
		{"id": "p2", "propertyName": "Garden Flat", "rent": "$1,500", "bedrooms": 2.0, "address": map[string]any{"city": "Denver", "state": "CO"}},
		{"id": "p3", "propertyName": "Lake House", "rent_amount": 2000.0, "bedrooms": 4.0, "isNetworkVerified": true},
		{"propertyName": "No id"},
		{"id": "p4", "propertyName": "City Condo", "rent_amount": 2500.0, "bedrooms": 1.0},
		{"id": "p2", "propertyName": "Duplicate", "rent_amount": 1.0},
		{"id": "p5", "propertyName": "Penthouse", "rent_amount": 3000.0, "bedrooms": 3.0},
	}
}

func TestSearchEmptyInput(t *testing.T) {
	res := newTestEngine().Search(nil, models.ShapeStandard, models.DefaultFilterState(), models.SortDefault, models.ViewWindow{PageSize: 6})
	if res.Visible == nil || len(res.Visible) != 0 {
		t.Errorf("Visible: got %#v, want empty slice", res.Visible)
	}
	if res.TotalCount != 0 || res.HasMore || res.Dropped != 0 {
		t.Errorf("empty result: %+v", res)
	}
}

func TestSearchPipeline(t *testing.T) {
	f := models.DefaultFilterState()
	f.RentRange = models.RentRange{Min: 1200, Max: 2600}

	res := newTestEngine().Search(rawBatch(), models.ShapeStandard, f, models.SortDefault, models.ViewWindow{PageSize: 2})

	if res.Dropped != 2 {
		t.Errorf("Dropped: got %d, want 2", res.Dropped)
	}
	if res.TotalCount != 3 {
		t.Errorf("TotalCount: got %d, want 3", res.TotalCount)
	}
	if got := ids(res.Visible); !reflect.DeepEqual(got, []string{"p2", "p3"}) {
		t.Errorf("Visible: got %v", got)
	}
	if !res.HasMore {
		t.Error("HasMore should be true")
	}
}

func TestSearchSortedAndExpanded(t *testing.T) {
	res := newTestEngine().Search(rawBatch(), models.ShapeStandard, models.DefaultFilterState(), models.SortPriceDesc, models.ViewWindow{PageSize: 2}.ShowAll())
	want := []string{"p5", "p4", "p3", "p2", "p1"}
	if got := ids(res.Visible); !reflect.DeepEqual(got, want) {
		t.Errorf("Visible: got %v, want %v", got, want)
	}
	if res.HasMore {
		t.Error("expanded result should not have more")
	}
}

func TestSearchIdempotent(t *testing.T) {
	e := newTestEngine()
	f := models.DefaultFilterState()
	f.BedroomTags = []string{"Studio", "4+"}
	w := models.ViewWindow{PageSize: 3}

	first := e.Search(rawBatch(), models.ShapeStandard, f, models.SortRatingDesc, w)
	second := e.Search(rawBatch(), models.ShapeStandard, f, models.SortRatingDesc, w)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestSearchListingsDropsInvariantViolations(t *testing.T) {
	listings := []models.Listing{
		{ID: "ok", RentAmount: 100},
		{ID: "", RentAmount: 100},
		{ID: "neg", RentAmount: -1},
	}
	res := newTestEngine().SearchListings(listings, models.DefaultFilterState(), models.SortDefault, models.ViewWindow{PageSize: 10})
	if res.Dropped != 2 || res.TotalCount != 1 {
		t.Errorf("got dropped=%d total=%d, want 2/1", res.Dropped, res.TotalCount)
	}
}

func TestSearchInvalidFilterIsEmpty(t *testing.T) {
	f := models.DefaultFilterState()
	f.RentRange = models.RentRange{Min: 5000, Max: 10}
	res := newTestEngine().Search(rawBatch(), models.ShapeStandard, f, models.SortDefault, models.ViewWindow{PageSize: 6})
	if res.TotalCount != 0 || len(res.Visible) != 0 {
		t.Errorf("invalid filter should yield no results, got %+v", res.Page)
	}
}
