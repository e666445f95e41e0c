package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/addrfmt/internal/dataset"
)

func TestParseSchema(t *testing.T) {
	schema, err := dataset.ParseSchema([]byte(`{
		"fmt": "%N%n%A",
		"require": "A",
		"sub_keys_count": 3,
		"sub_isoids": null,
		"sub_keys": ["A", "B"],
		"upper": true
	}`))
	require.NoError(t, err)

	assert.Equal(t, "%N%n%A", schema["fmt"])
	assert.Equal(t, "A", schema["require"])
	assert.Equal(t, "3", schema["sub_keys_count"])
	assert.Equal(t, `["A", "B"]`, schema["sub_keys"])
	assert.Equal(t, "true", schema["upper"])
	_, ok := schema["sub_isoids"]
	assert.False(t, ok, "null values are dropped")
}

func TestParseSchema_Invalid(t *testing.T) {
	_, err := dataset.ParseSchema([]byte(`["US"]`))
	assert.Error(t, err)

	schema, err := dataset.ParseSchema([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, schema)
}

func TestNormalizeAndValidCode(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{in: "us", want: "US", valid: true},
		{in: "  ca ", want: "CA", valid: true},
		{in: "zzz", want: "ZZZ", valid: true},
		{in: "u", want: "U", valid: false},
		{in: "USAA", want: "USAA", valid: false},
		{in: "../US", want: "../US", valid: false},
		{in: "", want: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := dataset.NormalizeCode(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, dataset.ValidCode(got))
		})
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "United States", dataset.TitleCase("UNITED STATES"))
	assert.Equal(t, "Bosnia And Herzegovina", dataset.TitleCase("BOSNIA AND HERZEGOVINA"))
	assert.Equal(t, "Réunion", dataset.TitleCase("RÉUNION"))
}

func TestCountryCodesAndNames(t *testing.T) {
	codes := dataset.CountryCodes()
	assert.IsIncreasing(t, codes)
	assert.Contains(t, codes, "US")
	assert.NotContains(t, codes, "ZZ")

	name, ok := dataset.CuratedName("GB")
	require.True(t, ok)
	assert.Equal(t, "United Kingdom", name)

	assert.Equal(t, "United States", dataset.DisplayName("US", "UNITED STATES OF AMERICA"))
	assert.Equal(t, "Outlying Oceania", dataset.DisplayName("QO", "OUTLYING OCEANIA"))
	assert.Equal(t, "", dataset.DisplayName("QO", ""))
}
