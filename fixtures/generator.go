// Package fixtures generates deterministic legacy-shape listing records for
// demos, seeding and tests.
package fixtures

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"strings"
	"time"

	"listing-search/models"
)

type place struct {
	city, state string
	lat, lng    float64
}

var (
	places = []place{
		{"New York", "NY", 40.7128, -74.0060},
		{"Brooklyn", "NY", 40.6782, -73.9442},
		{"Austin", "TX", 30.2672, -97.7431},
		{"Denver", "CO", 39.7392, -104.9903},
		{"Portland", "OR", 45.5152, -122.6784},
		{"Chicago", "IL", 41.8781, -87.6298},
		{"Boise", "ID", 43.6150, -116.2023},
	}
	adjectives    = []string{"Sunny", "Cozy", "Modern", "Spacious", "Quiet", "Renovated", "Bright", "Charming"}
	kinds         = []string{"apartment", "condo", "house", "townhouse", "loft"}
	amenityPool   = []string{"Parking", "Gym", "Pool", "Laundry", "WiFi", "Balcony", "Dishwasher", "Pet Friendly"}
	streets       = []string{"Main St", "Oak Ave", "Maple Dr", "Pine St", "Elm St", "Cedar Ln"}
	availableFrom = []string{"Available Now", "2025-01-01", "2025-02-15", "Immediately"}
)

// Generator produces the same records for the same seed.
type Generator struct {
	Seed uint64
}

// Records returns n legacy-shape records. Every 29th record has no id so
// callers see the malformed-record path.
func (g Generator) Records(n int) []models.RawRecord {
	rng := rand.New(rand.NewPCG(g.Seed, g.Seed^0x9e3779b97f4a7c15))
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	out := make([]models.RawRecord, 0, max(n, 0))
	for i := 0; i < n; i++ {
		p := places[rng.IntN(len(places))]
		kind := kinds[rng.IntN(len(kinds))]
		beds := rng.IntN(6)

		rec := models.RawRecord{
			"id":        fmt.Sprintf("fx-%04d", i+1),
			"title":     fmt.Sprintf("%s %s in %s", adjectives[rng.IntN(len(adjectives))], kind, p.city),
			"address":   fmt.Sprintf("%d %s, %s, %s", 10+rng.IntN(990), streets[rng.IntN(len(streets))], p.city, p.state),
			"city":      p.city,
			"state":     p.state,
			"type":      kind,
			"baths":     float64(1 + rng.IntN(3)),
			"verified":  rng.IntN(3) == 0,
			"available": availableFrom[rng.IntN(len(availableFrom))],
			"createdAt": base.Add(time.Duration(rng.IntN(365*24)) * time.Hour).Format(time.RFC3339),
			"amenities": strings.Join(pickAmenities(rng), ", "),
		}

		// Vary the upstream encodings the normalizer has to cope with.
		rent := 800 + rng.IntN(40)*75
		switch rng.IntN(5) {
		case 0:
			if rent >= 1000 {
				rec["price"] = fmt.Sprintf("$%d,%03d/mo", rent/1000, rent%1000)
			} else {
				rec["price"] = fmt.Sprintf("$%d/mo", rent)
			}
		case 1:
			// no rent at all
		default:
			rec["rent"] = float64(rent)
		}
		switch {
		case beds == 0:
			rec["beds"] = "Studio"
		case rng.IntN(2) == 0:
			rec["beds"] = fmt.Sprintf("%d Beds", beds)
		default:
			rec["beds"] = float64(beds)
		}
		if rng.IntN(4) != 0 {
			rec["rating"] = float64(30+rng.IntN(21)) / 10
		}
		if rng.IntN(2) == 0 {
			rec["lat"] = p.lat + (rng.Float64()-0.5)*0.05
			rec["lng"] = p.lng + (rng.Float64()-0.5)*0.05
		}
		if (i+1)%29 == 0 {
			delete(rec, "id")
		}
		out = append(out, rec)
	}
	return out
}

func pickAmenities(rng *rand.Rand) []string {
	var out []string
	for _, a := range amenityPool {
		if rng.IntN(3) == 0 {
			out = append(out, a)
		}
	}
	return out
}

// Source serves a fixed batch of generated records as a listing source.
type Source struct {
	records []models.RawRecord
}

// NewSource generates count records with the given seed.
func NewSource(seed uint64, count int) *Source {
	return &Source{records: Generator{Seed: seed}.Records(count)}
}

func (s *Source) Name() string { return "fixture" }

func (s *Source) Shape() models.SourceShape { return models.ShapeLegacy }

// FetchListings returns the records whose city or state contains q.Location.
// Returned records are copies; callers may modify them.
func (s *Source) FetchListings(ctx context.Context, q models.Query) ([]models.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(q.Location))

	out := []models.RawRecord{}
	for _, rec := range s.records {
		if needle != "" && !matchesLocation(rec, needle) {
			continue
		}
		out = append(out, maps.Clone(rec))
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func matchesLocation(rec models.RawRecord, needle string) bool {
	for _, key := range []string{"city", "state", "address"} {
		if s, ok := rec[key].(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}
