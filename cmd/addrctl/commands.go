package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dukerupert/addrfmt/internal/address"
	"github.com/dukerupert/addrfmt/internal/dataset"
	"github.com/dukerupert/addrfmt/internal/events"
)

type commands struct {
	provider dataset.Provider
	out      *printer
}

type fetchSummary struct {
	Countries int    `json:"countries" yaml:"countries"`
	Files     int    `json:"files" yaml:"files"`
	Duration  string `json:"duration" yaml:"duration"`
}

func refreshEvent(source string, result *dataset.FetchResult) events.RefreshEvent {
	return events.RefreshEvent{
		Source:    source,
		Countries: len(result.Countries),
		FetchedAt: time.Now().UTC(),
	}
}

func (c *commands) countries(ctx context.Context) error {
	countries, err := address.NewFormatter(c.provider).CountryList(ctx)
	if err != nil {
		return err
	}
	if countries == nil {
		countries = []dataset.Country{}
	}
	return c.out.print(countries, func(w io.Writer) error {
		for _, country := range countries {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", country.Code, country.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *commands) codes(ctx context.Context) error {
	codes, err := address.NewFormatter(c.provider).CountryCodes(ctx)
	if err != nil {
		return err
	}
	return c.out.print(codes, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, strings.Join(codes, "\n"))
		return err
	})
}

func (c *commands) name(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: name takes exactly one country code", errUsage)
	}
	name, err := address.NewFormatter(c.provider).CountryName(ctx, args[0])
	if err != nil {
		return err
	}
	return c.out.print(map[string]string{"code": dataset.NormalizeCode(args[0]), "name": name}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, name)
		return err
	})
}

func (c *commands) fields(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: fields takes exactly one country code", errUsage)
	}
	f, err := c.selectCountry(ctx, args[0])
	if err != nil {
		return err
	}
	fields, err := f.AddressFields()
	if err != nil {
		return err
	}
	return c.out.print(fields, func(w io.Writer) error {
		for _, fi := range fields {
			mark := ""
			if fi.Required {
				mark = " (required)"
			}
			if _, err := fmt.Fprintf(w, "%s\t%s%s\n", fi.Field, fi.Canonical, mark); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *commands) format(ctx context.Context, args []string) error {
	fs := newFlagSet("format")
	delimiter := fs.String("d", "", "join lines with this delimiter instead of printing one per line")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("%w: format needs a country code", errUsage)
	}

	rec, err := parseRecord(fs.Args()[1:])
	if err != nil {
		return err
	}
	f, err := c.selectCountry(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	if *delimiter != "" {
		formatted, err := f.Format(rec, *delimiter)
		if err != nil {
			return err
		}
		return c.out.print(map[string]string{"formatted": formatted}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, formatted)
			return err
		})
	}

	lines, err := f.Lines(rec)
	if err != nil {
		return err
	}
	return c.out.print(map[string][]string{"lines": lines}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
		return err
	})
}

func (c *commands) validate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: validate needs a country code", errUsage)
	}
	addr, err := parseAddress(args[1:])
	if err != nil {
		return err
	}
	addr.Country = args[0]

	result, err := address.NewSchemaValidator(c.provider).Validate(ctx, addr)
	if err != nil {
		return err
	}
	return c.out.print(result, func(w io.Writer) error {
		status := "valid"
		if !result.IsValid {
			status = "invalid"
		}
		if _, err := fmt.Fprintln(w, status); err != nil {
			return err
		}
		for _, e := range result.Errors {
			if _, err := fmt.Fprintf(w, "  error: %s: %s\n", e.Field, e.Message); err != nil {
				return err
			}
		}
		for _, warning := range result.Warnings {
			if _, err := fmt.Fprintf(w, "  warning: %s\n", warning); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *commands) selectCountry(ctx context.Context, code string) (*address.Formatter, error) {
	f := address.NewFormatter(c.provider)
	if err := f.SelectCountry(ctx, code); err != nil {
		return nil, err
	}
	return f, nil
}

// parseRecord reads key=value pairs. Keys may be country-specific field
// names or canonical ids.
func parseRecord(pairs []string) (address.Record, error) {
	rec := make(address.Record, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", errUsage, pair)
		}
		if _, dup := rec[key]; dup {
			return nil, fmt.Errorf("%w: %s given twice", errUsage, key)
		}
		rec[key] = value
	}
	return rec, nil
}

// parseAddress reads key=value pairs onto a typed address. street may be
// repeated, one per line.
func parseAddress(pairs []string) (address.Address, error) {
	var addr address.Address
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return addr, fmt.Errorf("%w: expected key=value, got %q", errUsage, pair)
		}
		switch key {
		case "name", "full_name":
			addr.FullName = value
		case "organisation", "company":
			addr.Company = value
		case "street", "address_line":
			addr.AddressLines = append(addr.AddressLines, value)
		case "locality", "city":
			addr.City = value
		case "sublocality", "dependent_locality":
			addr.DependentLocality = value
		case "state":
			addr.State = value
		case "zip", "postal_code":
			addr.PostalCode = value
		case "sort", "sorting_code":
			addr.SortingCode = value
		default:
			return addr, fmt.Errorf("%w: unknown address field %q", errUsage, key)
		}
	}
	return addr, nil
}
