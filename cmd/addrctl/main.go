// Command addrctl fetches the address dataset and formats, validates and
// inspects addresses from a shell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukerupert/addrfmt/internal"
	"github.com/dukerupert/addrfmt/internal/bootstrap"
	"github.com/dukerupert/addrfmt/internal/dataset"
)

const usage = `Usage: addrctl [-o text|json|yaml] <command> [arguments]

Commands:
  fetch                          download the dataset into the configured store
  countries                      list fetched countries with display names
  codes                          list known country codes
  name <code>                    print a country's name
  fields <code>                  list a country's address fields
  format [-d sep] <code> k=v...  format an address (one line per field line without -d)
  validate <code> k=v...         validate an address

Configuration is read from the environment and .env (DATASET_*, STORAGE_*, NATS_*).
`

// errUsage marks errors caused by bad arguments.
var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintln(os.Stderr, "addrctl:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("addrctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	output := global.String("o", "text", "output format: text, json or yaml")
	if err := global.Parse(args); err != nil {
		return err
	}

	p, err := newPrinter(stdout, *output)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	rest := global.Args()
	if len(rest) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	// Logs go to stderr so command output stays machine-readable.
	logger := internal.NewLogger(stderr, cfg.Env, cfg.LogLevel)

	ds, err := bootstrap.OpenDataset(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer ds.Close()

	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "fetch" {
		return runFetch(ctx, cfg, ds, p, logger, cmdArgs)
	}
	return dispatch(ctx, ds.Provider, p, cmd, cmdArgs)
}

// dispatch runs the read-only commands against provider.
func dispatch(ctx context.Context, provider dataset.Provider, p *printer, cmd string, args []string) error {
	c := &commands{provider: provider, out: p}

	switch cmd {
	case "countries":
		return c.countries(ctx)
	case "codes":
		return c.codes(ctx)
	case "name":
		return c.name(ctx, args)
	case "fields":
		return c.fields(ctx, args)
	case "format":
		return c.format(ctx, args)
	case "validate":
		return c.validate(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func runFetch(ctx context.Context, cfg *internal.Config, ds *bootstrap.Dataset, p *printer, logger *slog.Logger, args []string) error {
	fs := newFlagSet("fetch")
	url := fs.String("url", cfg.Dataset.URL, "remote dataset endpoint")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	dc := cfg.Dataset
	dc.URL = *url
	fetcher, err := ds.NewFetcher(dc, nil, logger)
	if err != nil {
		return err
	}

	result, err := fetcher.Fetch(ctx, func(pr dataset.Progress) {
		logger.Info("fetched", slog.Int("current", pr.Current), slog.Int("total", pr.Total), slog.String("file", pr.File))
	})
	if err != nil {
		return err
	}

	_, publisher, err := bootstrap.ConnectEvents(cfg.NATS, logger)
	if err != nil {
		logger.Warn("refresh event not published", slog.String("error", err.Error()))
	} else {
		if err := publisher.PublishRefresh(ctx, refreshEvent(ds.Source, result)); err != nil {
			logger.Warn("refresh event not published", slog.String("error", err.Error()))
		}
		publisher.Close()
	}

	return p.print(fetchSummary{Countries: len(result.Countries), Files: result.Files, Duration: result.Duration.String()},
		func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "fetched %d countries (%d files) in %s\n", len(result.Countries), result.Files, result.Duration)
			return err
		})
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}
