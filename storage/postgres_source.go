package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"listing-search/models"
	"listing-search/utils"
)

// PostgresSource reads property documents from PostgreSQL and accepts
// canonical listings for seeding.
type PostgresSource struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresSource opens a connection to PostgreSQL, waits for it to accept
// connections, runs schema migrations, and returns a ready-to-use source.
func NewPostgresSource(ctx context.Context, dsn string, retry utils.RetryConfig) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.DoContext(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := &PostgresSource{db: db, logger: retry.Logger}
	if ps.logger == nil {
		ps.logger = utils.NewNopLogger()
	}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresSource) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS properties (
			id                  TEXT PRIMARY KEY,
			property_name       TEXT          NOT NULL DEFAULT '',
			description         TEXT          NOT NULL DEFAULT '',
			street              TEXT          NOT NULL DEFAULT '',
			city                TEXT          NOT NULL DEFAULT '',
			state               TEXT          NOT NULL DEFAULT '',
			rent_amount         NUMERIC(12,2),
			bedrooms            INTEGER,
			bathrooms           NUMERIC(4,1),
			property_type       TEXT          NOT NULL DEFAULT '',
			amenities           TEXT[]        NOT NULL DEFAULT '{}',
			rating              NUMERIC(3,2),
			is_network_verified BOOLEAN       NOT NULL DEFAULT FALSE,
			lat                 DOUBLE PRECISION,
			lng                 DOUBLE PRECISION,
			image_url           TEXT          NOT NULL DEFAULT '',
			availability        TEXT          NOT NULL DEFAULT '',
			created_at          TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_properties_city  ON properties(city);
		CREATE INDEX IF NOT EXISTS idx_properties_rent  ON properties(rent_amount);
		CREATE INDEX IF NOT EXISTS idx_properties_state ON properties(state);
	`)
	return err
}

func (ps *PostgresSource) Name() string { return "postgres" }

func (ps *PostgresSource) Shape() models.SourceShape { return models.ShapeStandard }

// FetchListings returns property documents whose city, state or street
// contains q.Location. NULL columns are left out of the record so the
// normalizer applies its defaults.
func (ps *PostgresSource) FetchListings(ctx context.Context, q models.Query) ([]models.RawRecord, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, property_name, description, street, city, state, rent_amount, bedrooms,
		       bathrooms, property_type, amenities, rating, is_network_verified, lat, lng,
		       image_url, availability, created_at
		FROM properties
		WHERE $1 = '' OR city ILIKE '%' || $1 || '%' OR state ILIKE '%' || $1 || '%' OR street ILIKE '%' || $1 || '%'
		ORDER BY id
		LIMIT NULLIF($2::int, 0)
	`, strings.TrimSpace(q.Location), max(q.Limit, 0))
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch listings: %w", err)
	}
	defer rows.Close()

	records := []models.RawRecord{}
	for rows.Next() {
		var (
			id, name, desc, street, city, state  string
			propertyType, imageURL, availability string
			rent, baths, rating, lat, lng        sql.NullFloat64
			beds                                 sql.NullInt64
			amenities                            pq.StringArray
			verified                             bool
			created                              sql.NullTime
		)
		if err := rows.Scan(&id, &name, &desc, &street, &city, &state, &rent, &beds,
			&baths, &propertyType, &amenities, &rating, &verified, &lat, &lng,
			&imageURL, &availability, &created); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}

		rec := models.RawRecord{
			"id":                id,
			"propertyName":      name,
			"description":       desc,
			"address":           map[string]any{"street": street, "city": city, "state": state},
			"propertyType":      propertyType,
			"amenities":         []string(amenities),
			"isNetworkVerified": verified,
			"imageUrl":          imageURL,
			"availability":      availability,
		}
		setNullFloat(rec, "rent_amount", rent)
		setNullFloat(rec, "bathrooms", baths)
		setNullFloat(rec, "rating", rating)
		if beds.Valid {
			rec["bedrooms"] = float64(beds.Int64)
		}
		if lat.Valid && lng.Valid {
			rec["coordinates"] = map[string]any{"lat": lat.Float64, "lng": lng.Float64}
		}
		if created.Valid {
			rec["createdAt"] = created.Time.UTC().Format(time.RFC3339)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rows: %w", err)
	}

	ps.logger.Debug("[postgres] Fetched %d properties (location=%q)", len(records), q.Location)
	return records, nil
}

func setNullFloat(rec models.RawRecord, key string, v sql.NullFloat64) {
	if v.Valid {
		rec[key] = v.Float64
	}
}

// Clear deletes all existing properties from the table.
func (ps *PostgresSource) Clear(ctx context.Context) error {
	if _, err := ps.db.ExecContext(ctx, "DELETE FROM properties"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// Write batch-upserts listings by id.
func (ps *PostgresSource) Write(ctx context.Context, listings []models.Listing) error {
	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := min(i+batchSize, len(listings))
		if err := ps.insertBatch(ctx, listings[i:end]); err != nil {
			return err
		}
	}
	return nil
}

const propertyColumns = 18

func (ps *PostgresSource) insertBatch(ctx context.Context, batch []models.Listing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*propertyColumns)

	for idx, l := range batch {
		placeholders := make([]string, propertyColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*propertyColumns+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		var lat, lng sql.NullFloat64
		if l.Coordinates != nil {
			lat = sql.NullFloat64{Float64: l.Coordinates.Lat, Valid: true}
			lng = sql.NullFloat64{Float64: l.Coordinates.Lng, Valid: true}
		}
		var created sql.NullTime
		if l.CreatedAt != nil {
			created = sql.NullTime{Time: *l.CreatedAt, Valid: true}
		}
		valueArgs = append(valueArgs,
			l.ID, l.Title, l.Description, streetOf(l.Address), l.Address.City, l.Address.State,
			l.RentAmount, l.Bedrooms, l.Bathrooms, l.PropertyType, pq.StringArray(append([]string{}, l.Amenities...)),
			l.Rating, l.IsNetworkVerified, lat, lng, l.ImageURL, l.Availability, created)
	}

	query := fmt.Sprintf(`
		INSERT INTO properties (id, property_name, description, street, city, state, rent_amount,
			bedrooms, bathrooms, property_type, amenities, rating, is_network_verified, lat, lng,
			image_url, availability, created_at)
		VALUES %s
		ON CONFLICT (id) DO UPDATE SET
			property_name = EXCLUDED.property_name,
			description = EXCLUDED.description,
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			rent_amount = EXCLUDED.rent_amount,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			property_type = EXCLUDED.property_type,
			amenities = EXCLUDED.amenities,
			rating = EXCLUDED.rating,
			is_network_verified = EXCLUDED.is_network_verified,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			image_url = EXCLUDED.image_url,
			availability = EXCLUDED.availability,
			created_at = EXCLUDED.created_at
	`, strings.Join(valueStrings, ","))

	if _, err := ps.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

// streetOf recovers the street part of a full address built as "street, city, state".
func streetOf(a models.Address) string {
	street, _, found := strings.Cut(a.Full, ",")
	if !found || strings.TrimSpace(street) == a.City {
		return ""
	}
	return strings.TrimSpace(street)
}

func (ps *PostgresSource) Close() error {
	return ps.db.Close()
}
