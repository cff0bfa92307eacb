package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mmcloughlin/geohash"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"listing-search/models"
	"listing-search/utils"
)

// Documented defaults applied when an upstream field is absent or unusable.
const (
	DefaultRent         = 1500
	DefaultBedrooms     = 1
	DefaultBathrooms    = 1
	DefaultPropertyType = "Apartment"
	DefaultAvailability = "Available Now"
	DefaultTitle        = "Rental Property"
	DefaultImageURL     = "https://placehold.co/600x400?text=No+Image"

	// maxBedrooms bounds believable bedroom counts; larger values fall back
	// to DefaultBedrooms.
	maxBedrooms = 1000

	listingGeohashPrecision = 9
)

// ErrMalformedRecord marks a record that cannot become a Listing.
var ErrMalformedRecord = errors.New("malformed record")

var (
	// numberRegexp captures the first numeric value in formatted text ("$1,500/mo", "2 Beds"),
	// keeping a directly attached minus sign
	numberRegexp = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	// ratingRegexp captures a numeric rating in the 0.0–5.0 range
	ratingRegexp = regexp.MustCompile(`\b([0-5](?:\.\d{1,2})?)\b`)
	// studioRegexp recognises bedroom text that means zero bedrooms
	studioRegexp = regexp.MustCompile(`(?i)\bstudio\b`)
)

// DefaultRating is the rating assigned to the listing at position index when
// the upstream record has none: 4.2 + (index % 10) * 0.1, capped at 5.0.
func DefaultRating(index int) float64 {
	if index < 0 {
		index = -index
	}
	r := math.Round((4.2+float64(index%10)*0.1)*10) / 10
	return math.Min(r, 5.0)
}

// NormalizerConfig controls coordinate synthesis.
type NormalizerConfig struct {
	// SynthesizeCoordinates places listings without coordinates at a stable
	// point derived from their id, inside the geohash cell around Reference.
	SynthesizeCoordinates bool
	Reference             models.Coordinates
	// CellPrecision is the geohash length of the synthesis cell; 5 is roughly 5km.
	CellPrecision uint
}

// fieldChain lists the upstream keys tried, in order, for each canonical field.
type fieldChain struct {
	id, title, description       []string
	rent, bedrooms, bathrooms    []string
	propertyType, amenities      []string
	rating, verified             []string
	availability, image, created []string
}

var chains = map[models.SourceShape]fieldChain{
	models.ShapeLegacy: {
		id:           []string{"id", "listingId", "_id"},
		title:        []string{"title", "name"},
		description:  []string{"description", "summary"},
		rent:         []string{"rent_amount", "rent", "price", "monthlyRent"},
		bedrooms:     []string{"beds", "bedrooms"},
		bathrooms:    []string{"baths", "bathrooms"},
		propertyType: []string{"type", "propertyType"},
		amenities:    []string{"amenities", "features"},
		rating:       []string{"rating", "stars"},
		verified:     []string{"verified", "isNetworkVerified", "networkVerified"},
		availability: []string{"available", "availability"},
		image:        []string{"image", "imageUrl", "photo"},
		created:      []string{"createdAt", "postedAt"},
	},
	models.ShapeStandard: {
		id:           []string{"id", "propertyId", "_id"},
		title:        []string{"propertyName", "title", "name"},
		description:  []string{"description"},
		rent:         []string{"rent_amount", "rent", "price", "monthlyRent"},
		bedrooms:     []string{"bedrooms", "beds"},
		bathrooms:    []string{"bathrooms", "baths"},
		propertyType: []string{"propertyType", "type"},
		amenities:    []string{"amenities"},
		rating:       []string{"rating", "averageRating"},
		verified:     []string{"isNetworkVerified", "networkVerified", "verified"},
		availability: []string{"availability", "availableDate"},
		image:        []string{"images", "imageUrl", "image"},
		created:      []string{"createdAt", "created_at"},
	},
}

// Normalizer maps heterogeneous upstream records onto models.Listing.
type Normalizer struct {
	cfg    NormalizerConfig
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given config and logger.
func NewNormalizer(cfg NormalizerConfig, logger *utils.Logger) *Normalizer {
	if cfg.CellPrecision == 0 {
		cfg.CellPrecision = 5
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize converts one raw record into a fully populated Listing. index is
// the record's position in its batch and only feeds the default rating.
// The only failure is ErrMalformedRecord, for a nil record or one without an id.
func (n *Normalizer) Normalize(raw models.RawRecord, shape models.SourceShape, index int) (models.Listing, error) {
	if raw == nil {
		return models.Listing{}, fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}
	chain, ok := chains[shape]
	if !ok {
		chain = chains[models.ShapeStandard]
		shape = models.ShapeStandard
	}

	id := toText(first(raw, chain.id...))
	if id == "" {
		return models.Listing{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}

	l := models.Listing{
		ID:                id,
		Title:             textOr(normaliseText(toText(first(raw, chain.title...))), DefaultTitle),
		Description:       normaliseText(toText(first(raw, chain.description...))),
		Address:           parseAddress(raw, shape),
		RentAmount:        parseAmount(first(raw, chain.rent...), DefaultRent),
		Bedrooms:          parseBedrooms(first(raw, chain.bedrooms...)),
		Bathrooms:         parseAmount(first(raw, chain.bathrooms...), DefaultBathrooms),
		PropertyType:      normaliseType(toText(first(raw, chain.propertyType...))),
		Amenities:         parseAmenities(first(raw, chain.amenities...)),
		Rating:            parseRating(first(raw, chain.rating...), index),
		IsNetworkVerified: parseBool(first(raw, chain.verified...)),
		Availability:      textOr(normaliseText(toText(first(raw, chain.availability...))), DefaultAvailability),
		ImageURL:          textOr(parseImage(first(raw, chain.image...)), DefaultImageURL),
		CreatedAt:         parseTime(first(raw, chain.created...)),
		Source:            shape,
	}

	if c, ok := parseCoordinates(raw, shape); ok {
		l.Coordinates = &c
	} else if n.cfg.SynthesizeCoordinates {
		c := n.synthesize(id)
		l.Coordinates = &c
		n.logger.Debug("[normalizer] Synthesized coordinates for %s: %.5f,%.5f", id, c.Lat, c.Lng)
	}
	if l.Coordinates != nil {
		l.Geohash = geohash.EncodeWithPrecision(l.Coordinates.Lat, l.Coordinates.Lng, listingGeohashPrecision)
	}

	return l, nil
}

// synthesize derives a stable point for id inside the reference geohash cell.
func (n *Normalizer) synthesize(id string) models.Coordinates {
	cell := geohash.BoundingBox(geohash.EncodeWithPrecision(n.cfg.Reference.Lat, n.cfg.Reference.Lng, n.cfg.CellPrecision))

	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	sum := h.Sum64()
	fracLat := float64(sum>>32) / float64(math.MaxUint32)
	fracLng := float64(sum&math.MaxUint32) / float64(math.MaxUint32)

	return models.Coordinates{
		Lat: cell.MinLat + fracLat*(cell.MaxLat-cell.MinLat),
		Lng: cell.MinLng + fracLng*(cell.MaxLng-cell.MinLng),
	}
}

// first returns the value of the first key present with a non-nil value.
func first(raw models.RawRecord, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	}
	return ""
}

func textOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// toNumber coerces numbers, numeric strings and formatted text. The boolean
// is false when no finite value could be extracted.
func toNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		match := numberRegexp.FindString(strings.ReplaceAll(t, ",", ""))
		if match == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseAmount(v any, fallback float64) float64 {
	f, ok := toNumber(v)
	if !ok || f < 0 {
		return fallback
	}
	return f
}

// parseBedrooms reads numeric bedroom counts and text such as "2 Beds" or "Studio".
func parseBedrooms(v any) int {
	if s, ok := v.(string); ok && studioRegexp.MatchString(s) {
		return 0
	}
	f, ok := toNumber(v)
	if !ok || f < 0 || f > maxBedrooms {
		return DefaultBedrooms
	}
	return int(math.Floor(f))
}

func parseRating(v any, index int) float64 {
	if s, ok := v.(string); ok {
		match := ratingRegexp.FindStringSubmatch(s)
		if len(match) < 2 {
			return DefaultRating(index)
		}
		v = match[1]
	}
	f, ok := toNumber(v)
	if !ok || f < 0 || f > 5 {
		return DefaultRating(index)
	}
	return f
}

func parseBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		}
	case float64:
		return t == 1
	case int:
		return t == 1
	}
	return false
}

// parseAmenities accepts a list, a comma-separated string, or a map of
// amenity name to enabled flag. The result is sorted and de-duplicated.
func parseAmenities(v any) []string {
	var names []string
	switch t := v.(type) {
	case []string:
		names = append(names, t...)
	case []any:
		for _, item := range t {
			names = append(names, toText(item))
		}
	case string:
		names = strings.Split(t, ",")
	case map[string]any:
		for name, enabled := range t {
			if parseBool(enabled) {
				names = append(names, name)
			}
		}
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if name = normaliseText(name); name != "" {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func parseImage(v any) string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := toText(item); s != "" {
				return s
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return toText(v)
}

// parseTime reads RFC3339 strings, plain dates, epoch milliseconds, and
// document-store timestamp objects ({"seconds": ...}).
func parseTime(v any) *time.Time {
	var ts time.Time
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", s)
			if err != nil {
				return nil
			}
		}
		ts = parsed
	case map[string]any:
		secs, ok := toNumber(first(models.RawRecord(t), "seconds", "_seconds"))
		if !ok {
			return nil
		}
		ts = time.Unix(int64(secs), 0)
	default:
		ms, ok := toNumber(v)
		if !ok || ms <= 0 {
			return nil
		}
		ts = time.UnixMilli(int64(ms))
	}
	ts = ts.UTC()
	return &ts
}

func parseAddress(raw models.RawRecord, shape models.SourceShape) models.Address {
	var a models.Address
	if nested, ok := raw["address"].(map[string]any); ok && shape == models.ShapeStandard {
		rec := models.RawRecord(nested)
		a.City = normaliseText(toText(first(rec, "city")))
		a.State = normaliseText(toText(first(rec, "state")))
		a.Full = normaliseText(toText(first(rec, "full", "formatted")))
		if a.Full == "" {
			a.Full = joinNonEmpty(toText(first(rec, "street", "line1")), a.City, joinNonEmpty(a.State, toText(first(rec, "zip", "postalCode"))))
		}
	} else {
		a.Full = normaliseText(toText(first(raw, "address", "location")))
	}
	if a.City == "" {
		a.City = normaliseText(toText(first(raw, "city")))
	}
	if a.State == "" {
		a.State = normaliseText(toText(first(raw, "state")))
	}
	if a.Full == "" {
		a.Full = joinNonEmpty(a.City, a.State)
	}
	return a
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func parseCoordinates(raw models.RawRecord, shape models.SourceShape) (models.Coordinates, bool) {
	src := raw
	if shape == models.ShapeStandard {
		for _, key := range []string{"coordinates", "location"} {
			if nested, ok := raw[key].(map[string]any); ok {
				src = nested
				break
			}
		}
	}
	lat, okLat := toNumber(first(src, "lat", "latitude"))
	lng, okLng := toNumber(first(src, "lng", "lon", "longitude"))
	if !okLat || !okLng || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return models.Coordinates{}, false
	}
	// 0,0 is the usual placeholder for "unknown" in upstream documents.
	if lat == 0 && lng == 0 {
		return models.Coordinates{}, false
	}
	return models.Coordinates{Lat: lat, Lng: lng}, true
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func normaliseType(s string) string {
	s = normaliseText(s)
	if s == "" {
		return DefaultPropertyType
	}
	return cases.Title(language.English).String(s)
}
