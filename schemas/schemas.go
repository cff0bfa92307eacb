// Package schemas holds the JSON schemas of documents the service persists.
package schemas

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const housingFiltersURL = "housing_filters.json"

//go:embed housing_filters.json
var housingFiltersJSON []byte

var housingFilters = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(housingFiltersURL, bytes.NewReader(housingFiltersJSON)); err != nil {
		return nil, fmt.Errorf("schemas: add %s: %w", housingFiltersURL, err)
	}
	return compiler.Compile(housingFiltersURL)
})

// ValidateHousingFilters checks a stored housingFilters document before it is
// decoded into a FilterState.
func ValidateHousingFilters(body []byte) error {
	schema, err := housingFilters()
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("schemas: housingFilters is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schemas: housingFilters validation failed: %w", err)
	}
	return nil
}
