package address_test

import (
	"github.com/dukerupert/addrfmt/internal/dataset"
)

var (
	zzSchema = dataset.RawSchema{
		"id":                    "data/ZZ",
		"fmt":                   "%N%n%O%n%A%n%C",
		"require":               "AC",
		"upper":                 "C",
		"zip_name_type":         "postal",
		"state_name_type":       "province",
		"sublocality_name_type": "suburb",
		"locality_name_type":    "city",
	}

	usSchema = dataset.RawSchema{
		"id":              "data/US",
		"key":             "US",
		"name":            "UNITED STATES",
		"fmt":             "%N%n%O%n%A%n%C, %S %Z",
		"require":         "ACSZ",
		"upper":           "CS",
		"zip_name_type":   "zip",
		"state_name_type": "state",
		"zip":             `(\d{5})(?:[ \-](\d{4}))?`,
	}

	caSchema = dataset.RawSchema{
		"id":      "data/CA",
		"key":     "CA",
		"name":    "CANADA",
		"fmt":     "%N%n%O%n%A%n%C %S %Z",
		"require": "ACSZ",
		"upper":   "ACNOSZ",
		"zip":     `[ABCEGHJKLMNPRSTVXY]\d[ABCEGHJ-NPRSTV-Z] ?\d[ABCEGHJ-NPRSTV-Z]\d`,
	}

	// A country without a template or postal pattern of its own.
	aqSchema = dataset.RawSchema{
		"id":   "data/AQ",
		"key":  "AQ",
		"name": "ANTARCTICA",
	}
)

func newTestStore() *dataset.MemoryStore {
	store := dataset.NewMemoryStore("")
	store.Set("ZZ", zzSchema)
	store.Set("US", usSchema)
	store.Set("CA", caSchema)
	store.Set("AQ", aqSchema)
	return store
}
