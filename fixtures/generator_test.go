package fixtures

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"listing-search/models"
	"listing-search/services"
	"listing-search/utils"
)

func TestRecordsDeterministic(t *testing.T) {
	a := Generator{Seed: 42}.Records(50)
	b := Generator{Seed: 42}.Records(50)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different records")
	}

	c := Generator{Seed: 43}.Records(50)
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical records")
	}
}

func TestRecordsNormalize(t *testing.T) {
	records := Generator{Seed: 7}.Records(60)
	if len(records) != 60 {
		t.Fatalf("got %d records, want 60", len(records))
	}

	engine := services.NewEngine(nil, utils.NewNopLogger())
	listings, dropped := engine.NormalizeAll(records, models.ShapeLegacy)
	if dropped != 2 {
		t.Errorf("dropped: got %d, want 2 (records 29 and 58 have no id)", dropped)
	}
	for _, l := range listings {
		if l.ID == "" || l.RentAmount < 0 || l.Rating < 0 || l.Rating > 5 {
			t.Errorf("invalid listing: %+v", l)
		}
	}
}

func TestSourceLocationFilter(t *testing.T) {
	src := NewSource(42, 80)

	all, err := src.FetchListings(context.Background(), models.Query{})
	if err != nil || len(all) != 80 {
		t.Fatalf("all: %d records, err %v", len(all), err)
	}

	tx, _ := src.FetchListings(context.Background(), models.Query{Location: "tx"})
	for _, rec := range tx {
		if rec["state"] != "TX" && !strings.Contains(strings.ToLower(rec["address"].(string)), "tx") {
			t.Errorf("record outside TX: %v", rec)
		}
	}

	limited, _ := src.FetchListings(context.Background(), models.Query{Limit: 5})
	if len(limited) != 5 {
		t.Errorf("limit: got %d, want 5", len(limited))
	}
}

func TestSourceReturnsCopies(t *testing.T) {
	src := NewSource(1, 3)
	first, _ := src.FetchListings(context.Background(), models.Query{})
	first[0]["title"] = "mutated"

	second, _ := src.FetchListings(context.Background(), models.Query{})
	if second[0]["title"] == "mutated" {
		t.Error("source records were mutated through a returned copy")
	}
}

func TestSourceHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSource(1, 3).FetchListings(ctx, models.Query{}); err == nil {
		t.Error("expected context error")
	}
}
