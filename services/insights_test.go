package services

import (
	"bytes"
	"strings"
	"testing"

	"listing-search/models"
	"listing-search/utils"
)

func sampleListings() []models.Listing {
	return []models.Listing{
		{ID: "a", Title: "Villa A", RentAmount: 2000, Address: models.Address{City: "Austin"}, Rating: 4.9, Bedrooms: 3, PropertyType: "House", IsNetworkVerified: true},
		{ID: "b", Title: "Studio B", RentAmount: 900, Address: models.Address{City: "Austin"}, Rating: 4.5, Bedrooms: 0, PropertyType: "Apartment"},
		{ID: "c", Title: "Loft C", RentAmount: 1500, Address: models.Address{City: "Denver"}, Rating: 4.8, Bedrooms: 1, PropertyType: "Apartment"},
		{ID: "d", Title: "Cabin D", RentAmount: 3200, Address: models.Address{City: "Boise"}, Rating: 3.1, Bedrooms: 5, PropertyType: "Cabin", IsNetworkVerified: true},
		{ID: "e", Title: "Flat E", RentAmount: 1100, Address: models.Address{City: "Denver"}, Rating: 4.7, Bedrooms: 2, PropertyType: "Condo"},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.TotalListings != 5 {
		t.Errorf("TotalListings: got %d, want 5", r.TotalListings)
	}
	if r.VerifiedListings != 2 {
		t.Errorf("VerifiedListings: got %d, want 2", r.VerifiedListings)
	}
}

func TestInsightRents(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.AverageRent != 1740 {
		t.Errorf("AverageRent: got %.2f, want 1740", r.AverageRent)
	}
	if r.MinRent != 900 {
		t.Errorf("MinRent: got %.2f, want 900", r.MinRent)
	}
	if r.MaxRent != 3200 {
		t.Errorf("MaxRent: got %.2f, want 3200", r.MaxRent)
	}
}

func TestInsightMostExpensive(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.MostExpensive == nil {
		t.Fatal("MostExpensive should not be nil")
	}
	if r.MostExpensive.Title != "Cabin D" {
		t.Errorf("MostExpensive: got %q, want %q", r.MostExpensive.Title, "Cabin D")
	}
}

func TestInsightTopRated(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if len(r.TopRated) != 5 {
		t.Fatalf("TopRated len: got %d, want 5", len(r.TopRated))
	}
	if r.TopRated[0].Rating != 4.9 {
		t.Errorf("TopRated[0].Rating: got %.2f, want 4.9", r.TopRated[0].Rating)
	}
	if r.TopRated[4].ID != "d" {
		t.Errorf("TopRated[4]: got %s, want d", r.TopRated[4].ID)
	}
}

func TestInsightFacets(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.ListingsByCity["Austin"] != 2 || r.ListingsByCity["Denver"] != 2 {
		t.Errorf("city counts: got %v", r.ListingsByCity)
	}
	if r.ListingsByType["Apartment"] != 2 {
		t.Errorf("Apartment count: got %d, want 2", r.ListingsByType["Apartment"])
	}
	if r.ListingsByBeds["Studio"] != 1 || r.ListingsByBeds["4+"] != 1 || r.ListingsByBeds["2"] != 1 {
		t.Errorf("bedroom buckets: got %v", r.ListingsByBeds)
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(nil)
	if r.TotalListings != 0 {
		t.Errorf("expected 0 total listings for empty input")
	}
	if r.TopRated == nil {
		t.Errorf("TopRated should be empty, not nil")
	}
}

func TestInsightPrint(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	var buf bytes.Buffer
	svc.Print(&buf, svc.Generate(sampleListings()))

	out := buf.String()
	for _, want := range []string{"RENTAL LISTINGS SUMMARY", "Cabin D", "Austin", "$1740.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q", want)
		}
	}
}
