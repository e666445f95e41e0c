package address

import (
	"slices"
	"sort"
	"strings"

	"github.com/dukerupert/addrfmt/internal/dataset"
)

// Field is a canonical address component.
type Field string

const (
	FieldName         Field = "name"
	FieldOrganisation Field = "organisation"
	FieldStreet       Field = "street"
	FieldSort         Field = "sort"
	FieldState        Field = "state"
	FieldSublocality  Field = "sublocality"
	FieldLocality     Field = "locality"
	FieldZip          Field = "zip"
)

// canonical is the letter each canonical field uses in templates, in
// template alphabet order.
var canonical = []Binding{
	{Letter: 'N', Field: FieldName, Name: string(FieldName)},
	{Letter: 'O', Field: FieldOrganisation, Name: string(FieldOrganisation)},
	{Letter: 'A', Field: FieldStreet, Name: string(FieldStreet)},
	{Letter: 'X', Field: FieldSort, Name: string(FieldSort)},
	{Letter: 'S', Field: FieldState, Name: string(FieldState)},
	{Letter: 'D', Field: FieldSublocality, Name: string(FieldSublocality)},
	{Letter: 'C', Field: FieldLocality, Name: string(FieldLocality)},
	{Letter: 'Z', Field: FieldZip, Name: string(FieldZip)},
}

// CanonicalFields returns the eight canonical fields in template alphabet order.
func CanonicalFields() []Field {
	fields := make([]Field, len(canonical))
	for i, b := range canonical {
		fields[i] = b.Field
	}
	return fields
}

// Binding ties a template letter to the canonical field it fills and to the
// name the country uses for that field ("province" for state, "postal" for zip).
type Binding struct {
	Letter byte
	Field  Field
	Name   string
}

// Alias is a country rename of a field, declared in a schema as
// "<field>_name_type": "<name>".
type Alias struct {
	Field string
	Name  string
}

const aliasSuffix = "_name_type"

// AliasesFromSchema extracts the alias declarations of a raw schema,
// ordered by key so the result does not depend on map iteration.
func AliasesFromSchema(raw dataset.RawSchema) []Alias {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		if len(key) > len(aliasSuffix) && strings.HasSuffix(key, aliasSuffix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	aliases := make([]Alias, 0, len(keys))
	for _, key := range keys {
		aliases = append(aliases, Alias{
			Field: strings.TrimSuffix(key, aliasSuffix),
			Name:  raw[key],
		})
	}
	return aliases
}

// AliasMap is the resolved letter to field table of one schema. It is
// immutable once built.
type AliasMap struct {
	bindings []Binding
}

// BuildAliasMap folds aliases over the canonical table. For each alias the
// binding currently known by the alias's field (as a country name first,
// then as a canonical field) is removed and re-appended under the new name,
// keeping its letter and canonical field. Aliases naming no known field, or
// renaming a field to itself, are ignored.
func BuildAliasMap(aliases []Alias) AliasMap {
	bindings := slices.Clone(canonical)

	for _, alias := range aliases {
		if alias.Name == "" || alias.Name == alias.Field {
			continue
		}

		i := slices.IndexFunc(bindings, func(b Binding) bool { return b.Name == alias.Field })
		if i < 0 {
			i = slices.IndexFunc(bindings, func(b Binding) bool { return string(b.Field) == alias.Field })
		}
		if i < 0 {
			continue
		}

		b := bindings[i]
		b.Name = alias.Name
		bindings = slices.Delete(bindings, i, i+1)
		bindings = append(bindings, b)
	}

	return AliasMap{bindings: bindings}
}

// Lookup returns the binding for a template letter.
func (m AliasMap) Lookup(letter byte) (Binding, bool) {
	for _, b := range m.bindings {
		if b.Letter == letter {
			return b, true
		}
	}
	return Binding{}, false
}

// ByField returns the binding that fills a canonical field.
func (m AliasMap) ByField(field Field) (Binding, bool) {
	for _, b := range m.bindings {
		if b.Field == field {
			return b, true
		}
	}
	return Binding{}, false
}

// Bindings returns a copy of the bindings in resolution order.
func (m AliasMap) Bindings() []Binding {
	return slices.Clone(m.bindings)
}

// Len returns the number of bound letters.
func (m AliasMap) Len() int {
	return len(m.bindings)
}
