package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultFallback is the universal country record whose keys fill in
// anything a country schema leaves out.
const DefaultFallback = "ZZ"

// Provider supplies per-country address schemas and country metadata.
// Implementations: StorageStore (local disk or R2), PostgresStore, CachedProvider.
//
// Codes passed to a Provider must already be normalized with NormalizeCode.
type Provider interface {
	// LoadSchema returns the raw schema for a country.
	// Returns ErrNotFound when no record exists for the code.
	LoadSchema(ctx context.Context, code string) (RawSchema, error)

	// LoadFallbackSchema returns the universal default record.
	// Returns ErrNotFound when the dataset has no fallback record.
	LoadFallbackSchema(ctx context.Context) (RawSchema, error)

	// LoadCountryMeta returns every fetched country with its display name, ordered by code.
	LoadCountryMeta(ctx context.Context) ([]Country, error)

	// LoadCountryCodeList returns the static list of known country codes.
	LoadCountryCodeList(ctx context.Context) ([]string, error)
}

// Sink receives the output of a dataset refresh. Writes overwrite earlier
// records so a refresh can be re-run safely.
type Sink interface {
	// PutSchema stores one raw country record and returns where it was written.
	PutSchema(ctx context.Context, code string, data []byte) (string, error)

	// PutMeta stores the aggregate country list.
	PutMeta(ctx context.Context, countries []Country) error
}

// Store is a dataset backend that can be both read and refreshed.
type Store interface {
	Provider
	Sink
}

// Country is one entry of the aggregate metadata list.
type Country struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// RawSchema is a decoded per-country record, e.g.
//
//	{"fmt": "%N%n%O%n%A%n%C, %S %Z", "require": "ACSZ", "zip": "(\\d{5})(?:[ \\-](\\d{4}))?",
//	 "zip_name_type": "zip", "state_name_type": "state", "name": "UNITED STATES"}
//
// Non-string JSON values are kept in their JSON text form.
type RawSchema map[string]string

// UnmarshalJSON decodes an object whose values may be of any JSON type.
func (s *RawSchema) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(RawSchema, len(raw))
	for key, value := range raw {
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}
		var str string
		if err := json.Unmarshal(value, &str); err == nil {
			out[key] = str
			continue
		}
		out[key] = string(bytes.TrimSpace(value))
	}

	*s = out
	return nil
}

// ParseSchema decodes a raw JSON record.
func ParseSchema(data []byte) (RawSchema, error) {
	var s RawSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if s == nil {
		s = RawSchema{}
	}
	return s, nil
}

var codePattern = regexp.MustCompile(`^[A-Z]{2,3}$`)

// NormalizeCode trims and uppercases a country code. Every lookup goes
// through it once at the boundary between callers and providers.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether a normalized code is safe to use as a key.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// TitleCase turns dataset names such as "BOSNIA AND HERZEGOVINA" into
// "Bosnia And Herzegovina".
func TitleCase(name string) string {
	return cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(name)))
}
