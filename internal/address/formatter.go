package address

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/dukerupert/addrfmt/internal/dataset"
)

// Formatter renders and validates addresses for one selected country at a
// time. A Formatter is not safe for concurrent use; create one per session
// or request over a shared Provider.
type Formatter struct {
	provider dataset.Provider
	schema   *Schema
}

// NewFormatter creates a Formatter with no country selected.
func NewFormatter(provider dataset.Provider) *Formatter {
	return &Formatter{provider: provider}
}

// SelectCountry loads the country's schema merged over the fallback record
// and makes it active. Country keys replace fallback keys one by one.
// On error the previously selected country stays active.
func (f *Formatter) SelectCountry(ctx context.Context, code string) error {
	code = dataset.NormalizeCode(code)
	if !dataset.ValidCode(code) {
		return fmt.Errorf("%w: %q", ErrUnknownLocale, code)
	}

	fallback, err := f.load(ctx, func(ctx context.Context) (dataset.RawSchema, error) {
		return f.provider.LoadFallbackSchema(ctx)
	})
	if err != nil {
		return err
	}

	country, err := f.load(ctx, func(ctx context.Context) (dataset.RawSchema, error) {
		return f.provider.LoadSchema(ctx, code)
	})
	if err != nil {
		return err
	}

	merged := make(dataset.RawSchema, len(fallback)+len(country))
	maps.Copy(merged, fallback)
	maps.Copy(merged, country)
	if len(merged) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownLocale, code)
	}

	schema, err := NewSchema(code, merged)
	if err != nil {
		return err
	}

	f.schema = schema
	return nil
}

// load treats a missing record as empty.
func (f *Formatter) load(ctx context.Context, fn func(context.Context) (dataset.RawSchema, error)) (dataset.RawSchema, error) {
	raw, err := fn(ctx)
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return raw, nil
}

// Country returns the selected country code, or "" before SelectCountry.
func (f *Formatter) Country() string {
	if f.schema == nil {
		return ""
	}
	return f.schema.Code
}

// Schema returns the active schema, or nil before SelectCountry.
func (f *Formatter) Schema() *Schema {
	return f.schema
}

// Format renders rec as a single string, lines joined by delimiter and the
// result trimmed.
func (f *Formatter) Format(rec Record, delimiter string) (string, error) {
	if f.schema == nil {
		return "", ErrNoTemplate
	}
	return f.schema.Format(rec, delimiter)
}

// Lines renders rec as a sequence of lines.
func (f *Formatter) Lines(rec Record) ([]string, error) {
	if f.schema == nil {
		return nil, ErrNoTemplate
	}
	return f.schema.Lines(rec)
}

// AddressFields lists the template's fields in order with required flags.
func (f *Formatter) AddressFields() ([]FieldInfo, error) {
	if f.schema == nil {
		return nil, ErrNoTemplate
	}
	return f.schema.Fields()
}

// PostalField returns the binding holding the postal code for the selected country.
func (f *Formatter) PostalField() (Binding, error) {
	if f.schema == nil {
		return Binding{}, ErrNoSchema
	}
	return f.schema.PostalField(), nil
}

// PostalFieldName returns the country's name for the postal code field,
// e.g. "zip", "postal" or "pin".
func (f *Formatter) PostalFieldName() (string, error) {
	b, err := f.PostalField()
	if err != nil {
		return "", err
	}
	return b.Name, nil
}

// ValidatePostalCode reports whether rec's postal code fully matches the
// selected country's pattern, case-insensitively.
func (f *Formatter) ValidatePostalCode(rec Record) (bool, error) {
	if f.schema == nil {
		return false, ErrNoSchema
	}
	return f.schema.ValidPostalCode(rec), nil
}

// CountryList returns every fetched country with its display name.
func (f *Formatter) CountryList(ctx context.Context) ([]dataset.Country, error) {
	countries, err := f.provider.LoadCountryMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load country list: %w", err)
	}
	return countries, nil
}

// CountryCodes returns every known country code.
func (f *Formatter) CountryCodes(ctx context.Context) ([]string, error) {
	codes, err := f.provider.LoadCountryCodeList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load country codes: %w", err)
	}
	return codes, nil
}

// CountryName returns the title-cased name carried by a country's own
// record. An empty code means the selected country.
func (f *Formatter) CountryName(ctx context.Context, code string) (string, error) {
	if code == "" {
		code = f.Country()
	}
	code = dataset.NormalizeCode(code)
	if !dataset.ValidCode(code) {
		return "", fmt.Errorf("%w: %q", ErrUnknownLocale, code)
	}

	raw, err := f.provider.LoadSchema(ctx, code)
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownLocale, code)
		}
		return "", fmt.Errorf("failed to load schema: %w", err)
	}

	name := raw["name"]
	if name == "" {
		return "", fmt.Errorf("%w: %s has no name", ErrUnknownLocale, code)
	}
	return dataset.TitleCase(name), nil
}
