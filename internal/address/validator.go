package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/addrfmt/internal/dataset"
)

// SchemaValidator checks addresses against the country schemas of a Provider.
type SchemaValidator struct {
	provider dataset.Provider
}

// NewSchemaValidator creates a validator over provider.
func NewSchemaValidator(provider dataset.Provider) *SchemaValidator {
	return &SchemaValidator{provider: provider}
}

// Validate reports every required field left empty and a postal code that
// does not match the country pattern. An unknown country is reported as a
// validation error on the country field, not as a Go error.
func (v *SchemaValidator) Validate(ctx context.Context, addr Address) (*ValidationResult, error) {
	f := NewFormatter(v.provider)
	if err := f.SelectCountry(ctx, addr.Country); err != nil {
		if errors.Is(err, ErrUnknownLocale) {
			return &ValidationResult{
				Errors: []ValidationError{{Field: "country", Message: "unknown country"}},
			}, nil
		}
		return nil, err
	}

	schema := f.Schema()
	rec := addr.Record()
	result := &ValidationResult{
		PostalField: schema.PostalField().Name,
		Errors:      []ValidationError{},
	}

	fields, err := schema.Fields()
	if err != nil && !errors.Is(err, ErrNoTemplate) {
		return nil, err
	}

	seen := make(map[Field]bool, len(fields))
	normalized := addr
	normalized.Country = schema.Code
	for _, fi := range fields {
		if seen[fi.Canonical] {
			continue
		}
		seen[fi.Canonical] = true

		binding, _ := schema.Aliases.ByField(fi.Canonical)
		value := strings.TrimSpace(rec.value(binding))
		if fi.Required && value == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fi.Field,
				Message: fmt.Sprintf("%s is required", fi.Field),
			})
		}
		if value != "" && schema.IsUpper(binding) {
			normalized.upper(fi.Canonical)
		}
	}

	postal := schema.PostalField()
	switch {
	case !schema.HasPostalPattern():
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s is not checked for %s", postal.Name, schema.Code))
	case strings.TrimSpace(rec.value(postal)) == "":
	case !schema.ValidPostalCode(rec):
		result.Errors = append(result.Errors, ValidationError{
			Field:   postal.Name,
			Message: fmt.Sprintf("invalid %s format", postal.Name),
		})
	}

	result.IsValid = len(result.Errors) == 0
	result.NormalizedAddress = &normalized
	return result, nil
}
