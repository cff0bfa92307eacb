package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"listing-search/models"
	"listing-search/utils"
)

const maxPayloadBytes = 4 << 20

// ErrPayloadTooLarge is returned when a remote collection exceeds maxPayloadBytes.
var ErrPayloadTooLarge = errors.New("payload too large")

// HTTPSource reads a remote listing collection over HTTP. The endpoint may
// answer with a JSON array of records or an object wrapping one under
// "documents", "listings" or "properties".
type HTTPSource struct {
	endpoint string
	apiKey   string
	shape    models.SourceShape
	http     *retryablehttp.Client
	logger   *utils.Logger
}

// NewHTTPSource creates a source for endpoint. maxRetries bounds transport
// retries on connection errors and 5xx responses.
func NewHTTPSource(endpoint, apiKey string, shape models.SourceShape, maxRetries int, logger *utils.Logger) *HTTPSource {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = max(maxRetries, 0)
	rc.HTTPClient.Timeout = 6 * time.Second
	rc.Logger = nil

	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &HTTPSource{endpoint: endpoint, apiKey: apiKey, shape: shape, http: rc, logger: logger}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Shape() models.SourceShape { return s.shape }

func (s *HTTPSource) FetchListings(ctx context.Context, q models.Query) ([]models.RawRecord, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("http source: parse endpoint: %w", err)
	}
	params := u.Query()
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	u.RawQuery = params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("http source: build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http source: status %d from %s", resp.StatusCode, u.Host)
	}

	body, err := readAllLimit(resp.Body, maxPayloadBytes)
	if err != nil {
		return nil, fmt.Errorf("http source: read body: %w", err)
	}
	records, err := decodeCollection(body)
	if err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}

	s.logger.Debug("[http] Fetched %d records from %s", len(records), u.Host)
	return records, nil
}

func readAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, ErrPayloadTooLarge
	}
	return b, nil
}

// decodeCollection accepts a bare array or a wrapper object. Numbers are kept
// as json.Number so large ids survive unchanged.
func decodeCollection(body []byte) ([]models.RawRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []models.RawRecord{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if body[0] == '[' {
		var records []models.RawRecord
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		return nonNil(records), nil
	}

	var wrapper map[string]json.RawMessage
	if err := dec.Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	for _, key := range []string{"documents", "listings", "properties"} {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		innerDec := json.NewDecoder(bytes.NewReader(inner))
		innerDec.UseNumber()
		var records []models.RawRecord
		if err := innerDec.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return nonNil(records), nil
	}
	return nil, errors.New("response has no documents, listings or properties array")
}

func nonNil(records []models.RawRecord) []models.RawRecord {
	if records == nil {
		return []models.RawRecord{}
	}
	return records
}
