package scraper

import (
	"context"
	"errors"
	"testing"

	"listing-search/models"
	"listing-search/services"
	"listing-search/utils"
)

func TestListingIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://rent.example/rooms/12345?adults=2", "12345"},
		{"https://rent.example/listings/abc-9/photos", "abc-9"},
		{"https://rent.example/property/77", "77"},
		{"https://rent.example/homes/loft-downtown/", "loft-downtown"},
		{"https://rent.example/", ""},
		{"", ""},
		{"::not a url", ""},
	}
	for _, tt := range tests {
		if got := ListingIDFromURL(tt.url); got != tt.want {
			t.Errorf("ListingIDFromURL(%q) = %q; want %q", tt.url, got, tt.want)
		}
	}
}

func TestSearchURL(t *testing.T) {
	tests := []struct {
		template, location, want string
	}{
		{"https://rent.example/s/{location}/homes", "New York", "https://rent.example/s/New%20York/homes"},
		{"https://rent.example/search?sort=new", "Austin", "https://rent.example/search?location=Austin&sort=new"},
		{"https://rent.example/search", "", "https://rent.example/search"},
	}
	for _, tt := range tests {
		got, err := SearchURL(tt.template, tt.location)
		if err != nil {
			t.Fatalf("SearchURL(%q): %v", tt.template, err)
		}
		if got != tt.want {
			t.Errorf("SearchURL(%q, %q) = %q; want %q", tt.template, tt.location, got, tt.want)
		}
	}

	if _, err := SearchURL(" ", "x"); !errors.Is(err, ErrNoStartURL) {
		t.Errorf("expected ErrNoStartURL, got %v", err)
	}
}

func TestCardRecord(t *testing.T) {
	rec, ok := cardRecord(card{
		Title:    "Sunny Loft",
		Price:    "$1,850",
		Location: "Austin, TX",
		Rating:   "4.87",
		Beds:     "2 beds",
		Image:    "https://img.example/1.jpg",
		URL:      "https://rent.example/rooms/42",
	})
	if !ok {
		t.Fatal("card should map to a record")
	}
	if rec["id"] != "42" || rec["city"] != "Austin" || rec["state"] != "TX" {
		t.Errorf("record: %v", rec)
	}

	if _, ok := cardRecord(card{Title: "No link"}); ok {
		t.Error("card without URL should be skipped")
	}
}

func TestCardRecordNormalizes(t *testing.T) {
	rec, _ := cardRecord(card{Title: "N/A", Price: "N/A", Location: "Boise", Rating: "4.9", Beds: "Studio", URL: "https://rent.example/rooms/7"})

	n := services.NewNormalizer(services.NormalizerConfig{}, utils.NewNopLogger())
	l, err := n.Normalize(rec, models.ShapeLegacy, 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if l.Title != services.DefaultTitle {
		t.Errorf("Title: got %q", l.Title)
	}
	if l.RentAmount != services.DefaultRent {
		t.Errorf("RentAmount: got %v", l.RentAmount)
	}
	if l.Bedrooms != 0 || l.Rating != 4.9 || l.Address.City != "Boise" {
		t.Errorf("listing: %+v", l)
	}
}

func TestFetchWithoutStartURL(t *testing.T) {
	src := New(Config{}, nil)
	if _, err := src.FetchListings(context.Background(), models.Query{}); !errors.Is(err, ErrNoStartURL) {
		t.Errorf("expected ErrNoStartURL, got %v", err)
	}
	if src.Shape() != models.ShapeLegacy {
		t.Errorf("Shape: got %q", src.Shape())
	}
}

func TestFollowNextStopsOnRevisit(t *testing.T) {
	visited := utils.NewKeySet()
	visited.Add("https://rent.example/search?page=1")

	tests := []struct {
		next string
		want bool
	}{
		{"https://rent.example/search?page=2", true},
		{"https://rent.example/search?page=1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := followNext(visited, tt.next); got != tt.want {
			t.Errorf("followNext(%q) = %v; want %v", tt.next, got, tt.want)
		}
	}
}
