package storage

import (
	"context"

	"listing-search/models"
)

// KeyValueStore is a string key/value store. A missing key is reported with
// ok == false and a nil error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// ListingWriter is the interface any backend that accepts canonical listings must satisfy.
type ListingWriter interface {
	Write(ctx context.Context, listings []models.Listing) error
	Close() error
}
