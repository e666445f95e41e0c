package address

import (
	"context"
	"strings"
)

// Validator defines the interface for address validation.
type Validator interface {
	// Validate checks an address against its country's rules.
	// Even if IsValid is false, NormalizedAddress may contain corrections.
	Validate(ctx context.Context, addr Address) (*ValidationResult, error)
}

// Address is a typed postal address.
type Address struct {
	FullName          string   `json:"full_name,omitempty" yaml:"full_name,omitempty"`
	Company           string   `json:"company,omitempty" yaml:"company,omitempty"`
	AddressLines      []string `json:"address_lines,omitempty" yaml:"address_lines,omitempty"`
	City              string   `json:"city,omitempty" yaml:"city,omitempty"`
	DependentLocality string   `json:"dependent_locality,omitempty" yaml:"dependent_locality,omitempty"`
	State             string   `json:"state,omitempty" yaml:"state,omitempty"`
	PostalCode        string   `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	SortingCode       string   `json:"sorting_code,omitempty" yaml:"sorting_code,omitempty"`
	Country           string   `json:"country" yaml:"country"`
}

// Record maps the address onto canonical fields. Street lines are joined
// with line breaks so each one renders on its own line.
func (a Address) Record() Record {
	lines := make([]string, 0, len(a.AddressLines))
	for _, line := range a.AddressLines {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return Record{
		string(FieldName):         a.FullName,
		string(FieldOrganisation): a.Company,
		string(FieldStreet):       strings.Join(lines, lineBreak),
		string(FieldSort):         a.SortingCode,
		string(FieldState):        a.State,
		string(FieldSublocality):  a.DependentLocality,
		string(FieldLocality):     a.City,
		string(FieldZip):          a.PostalCode,
	}
}

// upper uppercases a canonical field in place. Street lines are uppercased
// one by one.
func (a *Address) upper(field Field) {
	switch field {
	case FieldName:
		a.FullName = upperTrim(a.FullName)
	case FieldOrganisation:
		a.Company = upperTrim(a.Company)
	case FieldStreet:
		lines := make([]string, len(a.AddressLines))
		for i, line := range a.AddressLines {
			lines[i] = upperTrim(line)
		}
		a.AddressLines = lines
	case FieldSort:
		a.SortingCode = upperTrim(a.SortingCode)
	case FieldState:
		a.State = upperTrim(a.State)
	case FieldSublocality:
		a.DependentLocality = upperTrim(a.DependentLocality)
	case FieldLocality:
		a.City = upperTrim(a.City)
	case FieldZip:
		a.PostalCode = upperTrim(a.PostalCode)
	}
}

func upperTrim(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidationResult contains the outcome of address validation.
type ValidationResult struct {
	IsValid           bool              `json:"valid" yaml:"valid"`
	PostalField       string            `json:"postal_field,omitempty" yaml:"postal_field,omitempty"`
	NormalizedAddress *Address          `json:"normalized,omitempty" yaml:"normalized,omitempty"`
	Errors            []ValidationError `json:"errors" yaml:"errors"`
	Warnings          []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ValidationError represents a specific validation error.
type ValidationError struct {
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}
