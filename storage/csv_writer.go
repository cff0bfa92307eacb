package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"listing-search/models"
)

var csvHeader = []string{
	"id", "title", "city", "state", "address", "rent_amount", "bedrooms", "bathrooms",
	"property_type", "amenities", "rating", "network_verified", "lat", "lng", "availability", "created_at",
}

// CSVWriter writes canonical listings as CSV rows.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	closer io.Closer
	writer *csv.Writer
}

// NewCSVWriter writes the header row to w and returns a writer for the rows.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := &CSVWriter{writer: csv.NewWriter(w)}
	if err := cw.writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	cw.writer.Flush()
	return cw, cw.writer.Error()
}

// NewCSVFileWriter creates (or truncates) the CSV file at the given path.
// Intermediate directories are created automatically.
func NewCSVFileWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	cw, err := NewCSVWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	cw.closer = f
	return cw, nil
}

// Write implements ListingWriter.
func (c *CSVWriter) Write(ctx context.Context, listings []models.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.WriteListings(listings)
}

// WriteListings appends one row per listing.
func (c *CSVWriter) WriteListings(listings []models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		if err := c.writer.Write(listingRow(l)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

func listingRow(l models.Listing) []string {
	var lat, lng, created string
	if l.Coordinates != nil {
		lat = strconv.FormatFloat(l.Coordinates.Lat, 'f', 6, 64)
		lng = strconv.FormatFloat(l.Coordinates.Lng, 'f', 6, 64)
	}
	if l.CreatedAt != nil {
		created = l.CreatedAt.Format(time.RFC3339)
	}
	return []string{
		l.ID,
		l.Title,
		l.Address.City,
		l.Address.State,
		l.Address.Full,
		strconv.FormatFloat(l.RentAmount, 'f', 2, 64),
		strconv.Itoa(l.Bedrooms),
		strconv.FormatFloat(l.Bathrooms, 'f', -1, 64),
		l.PropertyType,
		strings.Join(l.Amenities, ";"),
		strconv.FormatFloat(l.Rating, 'f', 1, 64),
		strconv.FormatBool(l.IsNetworkVerified),
		lat,
		lng,
		l.Availability,
		created,
	}
}

// Close flushes and closes the underlying file, if the writer owns one.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	if c.closer == nil {
		return c.writer.Error()
	}
	return c.closer.Close()
}
