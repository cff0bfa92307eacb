package services

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mmcloughlin/geohash"

	"listing-search/models"
	"listing-search/utils"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(NormalizerConfig{}, utils.NewNopLogger())
}

func TestNormalizeDefaults(t *testing.T) {
	n := newTestNormalizer()

	l, err := n.Normalize(models.RawRecord{"id": "p1"}, models.ShapeStandard, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.RentAmount != DefaultRent {
		t.Errorf("RentAmount: got %v, want %v", l.RentAmount, DefaultRent)
	}
	if l.Bedrooms != DefaultBedrooms || l.Bathrooms != DefaultBathrooms {
		t.Errorf("rooms: got %d/%v", l.Bedrooms, l.Bathrooms)
	}
	if l.Rating != 4.5 {
		t.Errorf("Rating: got %v, want 4.5", l.Rating)
	}
	if l.ImageURL != DefaultImageURL {
		t.Errorf("ImageURL: got %q", l.ImageURL)
	}
	if l.PropertyType != DefaultPropertyType || l.Availability != DefaultAvailability || l.Title != DefaultTitle {
		t.Errorf("text defaults not applied: %+v", l)
	}
	if l.Coordinates != nil {
		t.Errorf("Coordinates should be absent without synthesis, got %+v", l.Coordinates)
	}
	if l.Amenities == nil {
		t.Error("Amenities should be empty, not nil")
	}
}

func TestNormalizeRentFallbackChain(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name  string
		shape models.SourceShape
		raw   models.RawRecord
		want  float64
	}{
		{"rent_amount wins", models.ShapeStandard, models.RawRecord{"id": "1", "rent_amount": 2100.0, "rent": 999.0}, 2100},
		{"rent fallback", models.ShapeStandard, models.RawRecord{"id": "1", "rent": 1850.0}, 1850},
		{"price fallback", models.ShapeStandard, models.RawRecord{"id": "1", "price": 2100.0}, 2100},
		{"neither present", models.ShapeStandard, models.RawRecord{"id": "1"}, 1500},
		{"formatted string", models.ShapeStandard, models.RawRecord{"id": "1", "rent": "$2,450/mo"}, 2450},
		{"json number", models.ShapeStandard, models.RawRecord{"id": "1", "rent_amount": json.Number("1999.5")}, 1999.5},
		{"garbage string", models.ShapeStandard, models.RawRecord{"id": "1", "rent_amount": "call us"}, 1500},
		{"negative", models.ShapeStandard, models.RawRecord{"id": "1", "rent_amount": -50.0}, 1500},
		{"negative string", models.ShapeStandard, models.RawRecord{"id": "1", "rent_amount": "-1200"}, 1500},
		{"range keeps lower bound", models.ShapeStandard, models.RawRecord{"id": "1", "rent": "$1,200-1,500/mo"}, 1200},
		{"nan", models.ShapeStandard, models.RawRecord{"id": "1", "rent_amount": math.NaN()}, 1500},
		{"legacy rent_amount wins", models.ShapeLegacy, models.RawRecord{"id": "1", "rent_amount": 2100.0, "rent": 999.0, "price": "$5/mo"}, 2100},
		{"legacy rent fallback", models.ShapeLegacy, models.RawRecord{"id": "1", "rent": 1850.0, "price": "$5/mo"}, 1850},
		{"legacy price fallback", models.ShapeLegacy, models.RawRecord{"id": "1", "price": "$2,100/mo"}, 2100},
		{"legacy negative string", models.ShapeLegacy, models.RawRecord{"id": "1", "price": "-1200"}, 1500},
		{"legacy neither present", models.ShapeLegacy, models.RawRecord{"id": "1"}, 1500},
	}

	for _, tt := range tests {
		l, err := n.Normalize(tt.raw, tt.shape, 0)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if l.RentAmount != tt.want {
			t.Errorf("%s: RentAmount = %v; want %v", tt.name, l.RentAmount, tt.want)
		}
	}
}

func TestNormalizeBedrooms(t *testing.T) {
	tests := []struct {
		raw  any
		want int
	}{
		{2.0, 2},
		{"3 Beds", 3},
		{"Studio", 0},
		{"studio apartment", 0},
		{0.0, 0},
		{"n/a", DefaultBedrooms},
		{nil, DefaultBedrooms},
		{"-2 Beds", DefaultBedrooms},
		{-3.0, DefaultBedrooms},
		{1e20, DefaultBedrooms},
		{"1000000000000000000000 Beds", DefaultBedrooms},
		{1000.0, 1000},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		l, err := n.Normalize(models.RawRecord{"id": "x", "beds": tt.raw}, models.ShapeLegacy, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if l.Bedrooms != tt.want {
			t.Errorf("beds %v: got %d; want %d", tt.raw, l.Bedrooms, tt.want)
		}
	}
}

func TestDefaultRating(t *testing.T) {
	tests := []struct {
		index int
		want  float64
	}{
		{0, 4.2},
		{1, 4.3},
		{8, 5.0},
		{9, 5.0},
		{10, 4.2},
		{13, 4.5},
	}
	for _, tt := range tests {
		if got := DefaultRating(tt.index); got != tt.want {
			t.Errorf("DefaultRating(%d) = %v; want %v", tt.index, got, tt.want)
		}
	}
}

func TestNormalizeRatingParsing(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		raw  any
		want float64
	}{
		{4.85, 4.85},
		{"3.5 (120 reviews)", 3.5},
		{"New", DefaultRating(0)},
		{7.0, DefaultRating(0)},
	}
	for _, tt := range tests {
		l, _ := n.Normalize(models.RawRecord{"id": "r", "rating": tt.raw}, models.ShapeStandard, 0)
		if l.Rating != tt.want {
			t.Errorf("rating %v: got %v; want %v", tt.raw, l.Rating, tt.want)
		}
	}
}

func TestNormalizeMissingID(t *testing.T) {
	n := newTestNormalizer()

	if _, err := n.Normalize(models.RawRecord{"title": "No id"}, models.ShapeLegacy, 0); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord, got %v", err)
	}
	if _, err := n.Normalize(nil, models.ShapeLegacy, 0); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord for nil record, got %v", err)
	}
}

func TestNormalizeStandardShape(t *testing.T) {
	n := newTestNormalizer()
	raw := models.RawRecord{
		"id":           "prop-9",
		"propertyName": "  Sunny   Loft ",
		"address": map[string]any{
			"street": "12 Main St", "city": "Portland", "state": "OR", "zip": "97201",
		},
		"rent_amount":       2300.0,
		"bedrooms":          2.0,
		"bathrooms":         1.5,
		"propertyType":      "condo",
		"amenities":         []any{"Parking", "WiFi", "Parking", " "},
		"isNetworkVerified": true,
		"coordinates":       map[string]any{"lat": 45.52, "lng": -122.68},
		"images":            []any{"https://img.example/1.jpg", "https://img.example/2.jpg"},
		"createdAt":         map[string]any{"seconds": 1700000000.0, "nanoseconds": 0.0},
		"unknownField":      "ignored",
	}

	l, err := n.Normalize(raw, models.ShapeStandard, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Title != "Sunny Loft" {
		t.Errorf("Title: got %q", l.Title)
	}
	if l.Address.City != "Portland" || l.Address.State != "OR" {
		t.Errorf("Address: got %+v", l.Address)
	}
	if l.Address.Full != "12 Main St, Portland, OR, 97201" {
		t.Errorf("Address.Full: got %q", l.Address.Full)
	}
	if l.Bathrooms != 1.5 || l.Bedrooms != 2 {
		t.Errorf("rooms: got %d/%v", l.Bedrooms, l.Bathrooms)
	}
	if l.PropertyType != "Condo" {
		t.Errorf("PropertyType: got %q", l.PropertyType)
	}
	if len(l.Amenities) != 2 || l.Amenities[0] != "Parking" || l.Amenities[1] != "WiFi" {
		t.Errorf("Amenities: got %v", l.Amenities)
	}
	if !l.IsNetworkVerified {
		t.Error("IsNetworkVerified should be true")
	}
	if l.Coordinates == nil || l.Coordinates.Lat != 45.52 {
		t.Errorf("Coordinates: got %+v", l.Coordinates)
	}
	if l.Geohash == "" {
		t.Error("Geohash should be set when coordinates exist")
	}
	if l.ImageURL != "https://img.example/1.jpg" {
		t.Errorf("ImageURL: got %q", l.ImageURL)
	}
	if l.CreatedAt == nil || !l.CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("CreatedAt: got %v", l.CreatedAt)
	}
	if l.Source != models.ShapeStandard {
		t.Errorf("Source: got %q", l.Source)
	}
}

func TestNormalizeLegacyShape(t *testing.T) {
	n := newTestNormalizer()
	raw := models.RawRecord{
		"id":        17.0,
		"name":      "Garden Flat",
		"price":     "$1,200",
		"beds":      "1 Bed",
		"city":      "Austin",
		"state":     "TX",
		"verified":  "yes",
		"amenities": "Pool, Gym",
		"lat":       30.27,
		"lng":       -97.74,
		"createdAt": "2024-03-01",
	}

	l, err := n.Normalize(raw, models.ShapeLegacy, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.ID != "17" {
		t.Errorf("ID: got %q", l.ID)
	}
	if l.RentAmount != 1200 {
		t.Errorf("RentAmount: got %v", l.RentAmount)
	}
	if l.Address.Full != "Austin, TX" {
		t.Errorf("Address.Full: got %q", l.Address.Full)
	}
	if !l.IsNetworkVerified {
		t.Error("IsNetworkVerified should be true")
	}
	if len(l.Amenities) != 2 {
		t.Errorf("Amenities: got %v", l.Amenities)
	}
	if l.Coordinates == nil || l.Coordinates.Lng != -97.74 {
		t.Errorf("Coordinates: got %+v", l.Coordinates)
	}
	if l.CreatedAt == nil || l.CreatedAt.Year() != 2024 {
		t.Errorf("CreatedAt: got %v", l.CreatedAt)
	}
}

func TestNormalizeSynthesizedCoordinatesAreStable(t *testing.T) {
	ref := models.Coordinates{Lat: 40.7128, Lng: -74.0060}
	n := NewNormalizer(NormalizerConfig{SynthesizeCoordinates: true, Reference: ref}, utils.NewNopLogger())

	a1, _ := n.Normalize(models.RawRecord{"id": "alpha"}, models.ShapeLegacy, 0)
	a2, _ := n.Normalize(models.RawRecord{"id": "alpha"}, models.ShapeLegacy, 5)
	b, _ := n.Normalize(models.RawRecord{"id": "beta"}, models.ShapeLegacy, 0)

	if a1.Coordinates == nil || a2.Coordinates == nil || b.Coordinates == nil {
		t.Fatal("coordinates should be synthesized")
	}
	if *a1.Coordinates != *a2.Coordinates {
		t.Errorf("same id produced different points: %+v vs %+v", a1.Coordinates, a2.Coordinates)
	}
	if *a1.Coordinates == *b.Coordinates {
		t.Error("different ids should produce different points")
	}

	cell := geohash.BoundingBox(geohash.EncodeWithPrecision(ref.Lat, ref.Lng, 5))
	if !cell.Contains(a1.Coordinates.Lat, a1.Coordinates.Lng) {
		t.Errorf("synthesized point %+v outside reference cell %+v", a1.Coordinates, cell)
	}
}

func TestNormalizeKeepsRealCoordinatesWhenSynthesizing(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{SynthesizeCoordinates: true}, utils.NewNopLogger())
	l, _ := n.Normalize(models.RawRecord{"id": "x", "lat": 10.0, "lng": 20.0}, models.ShapeLegacy, 0)
	if l.Coordinates == nil || l.Coordinates.Lat != 10 || l.Coordinates.Lng != 20 {
		t.Errorf("real coordinates should win, got %+v", l.Coordinates)
	}
}
