package address

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dukerupert/addrfmt/internal/dataset"
)

// lineBreak is the template marker separating output lines.
const lineBreak = "%n"

var lineBreakRun = regexp.MustCompile(`(?:%n)+`)

// Record maps field names to values. Keys may be canonical field ids
// ("state", "zip") or the country's own names ("province", "postal").
type Record map[string]string

func (r Record) value(b Binding) string {
	if v, ok := r[b.Name]; ok {
		return v
	}
	return r[string(b.Field)]
}

// Schema is the merged address ruleset of one country.
type Schema struct {
	Code     string
	Name     string
	Template string
	Require  string
	Upper    string
	Pattern  string
	Aliases  AliasMap

	postal *regexp.Regexp
}

// NewSchema builds a schema from a merged raw record.
func NewSchema(code string, raw dataset.RawSchema) (*Schema, error) {
	s := &Schema{
		Code:     code,
		Name:     raw["name"],
		Template: raw["fmt"],
		Require:  raw["require"],
		Upper:    raw["upper"],
		Pattern:  raw["zip"],
		Aliases:  BuildAliasMap(AliasesFromSchema(raw)),
	}

	if s.Pattern != "" {
		re, err := regexp.Compile("(?i)" + s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPattern, code, err)
		}
		s.postal = re
	}

	return s, nil
}

// FieldInfo describes one field slot of a template.
type FieldInfo struct {
	Field     string `json:"field" yaml:"field"`
	Canonical Field  `json:"canonical" yaml:"canonical"`
	Required  bool   `json:"required" yaml:"required"`
}

// render substitutes every placeholder of the template in a single pass and
// normalizes line breaks. Substituted values are never rescanned for
// placeholders.
func (s *Schema) render(rec Record) (string, error) {
	if s.Template == "" {
		return "", ErrNoTemplate
	}

	var b strings.Builder
	tpl := s.Template
	for i := 0; i < len(tpl); i++ {
		c := tpl[i]
		if c != '%' || i+1 == len(tpl) {
			b.WriteByte(c)
			continue
		}

		next := tpl[i+1]
		switch {
		case next == 'n':
			b.WriteString(lineBreak)
		case isPlaceholder(next):
			binding, ok := s.Aliases.Lookup(next)
			if !ok {
				return "", fmt.Errorf("%w: %%%c in %s", ErrUnresolvedPlaceholder, next, s.Code)
			}
			b.WriteString(rec.value(binding))
		default:
			b.WriteByte(c)
			b.WriteByte(next)
		}
		i++
	}

	out := collapseLineBreaks(b.String())
	return strings.TrimPrefix(out, lineBreak), nil
}

// collapseLineBreaks reduces every run of line-break markers to one.
func collapseLineBreaks(s string) string {
	return lineBreakRun.ReplaceAllString(s, lineBreak)
}

// Format renders rec joined by delimiter and trimmed.
func (s *Schema) Format(rec Record, delimiter string) (string, error) {
	out, err := s.render(rec)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ReplaceAll(out, lineBreak, delimiter)), nil
}

// Lines renders rec as one string per output line.
func (s *Schema) Lines(rec Record) ([]string, error) {
	out, err := s.render(rec)
	if err != nil {
		return nil, err
	}
	return strings.Split(out, lineBreak), nil
}

// Fields lists the fields referenced by the template in template order,
// duplicates included.
func (s *Schema) Fields() ([]FieldInfo, error) {
	if s.Template == "" {
		return nil, ErrNoTemplate
	}

	parts := strings.Split(s.Template, "%")
	fields := make([]FieldInfo, 0, len(parts))
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		binding, ok := s.Aliases.Lookup(part[0])
		if !ok {
			continue
		}
		fields = append(fields, FieldInfo{
			Field:     binding.Name,
			Canonical: binding.Field,
			Required:  strings.IndexByte(s.Require, binding.Letter) >= 0,
		})
	}
	return fields, nil
}

// PostalField returns the binding that holds the postal code.
func (s *Schema) PostalField() Binding {
	b, _ := s.Aliases.ByField(FieldZip)
	return b
}

// HasPostalPattern reports whether postal codes can be checked.
func (s *Schema) HasPostalPattern() bool {
	return s.postal != nil
}

// ValidPostalCode reports whether the record's postal value fully matches
// the country pattern. A schema without a pattern accepts nothing.
func (s *Schema) ValidPostalCode(rec Record) bool {
	if s.postal == nil {
		return false
	}
	value := rec.value(s.PostalField())
	if value == "" {
		return false
	}
	return s.postal.FindString(value) == value
}

// IsUpper reports whether the country writes a field in capitals.
func (s *Schema) IsUpper(b Binding) bool {
	return strings.IndexByte(s.Upper, b.Letter) >= 0
}

func isPlaceholder(c byte) bool {
	return c >= 'A' && c <= 'Z'
}
