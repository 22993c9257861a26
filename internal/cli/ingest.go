package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bioindex/kbsync/internal/fetch"
	"github.com/bioindex/kbsync/internal/kb"
	"github.com/bioindex/kbsync/internal/kb/sources"
	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/store"
	"github.com/bioindex/kbsync/internal/worker"
)

var (
	ingestMode    string
	ingestSources []string
	concurrency   int
	ingestTimeout time.Duration
	principalDSN  string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Upload or update knowledge base sources in the principal store",
	Long: `Ingest runs every configured source adapter (or a selected subset)
against the principal store.

Modes:
  upload   First load of a source. Registers it and inserts the full
           normalized content.
  update   Incremental refresh of an already uploaded source. Fetches
           the full current content and inserts only statements whose
           (content, evidence) key is not yet stored.

Sources run in parallel; one failing source never stops the others.
The command exits nonzero if any source failed.

Example:
  kbsync ingest --mode upload
  kbsync ingest --mode update --source signor --source cbn
  kbsync ingest --mode update --concurrency 2 --timeout 1h`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestMode, "mode", "update", "ingest mode (upload or update)")
	ingestCmd.Flags().StringArrayVar(&ingestSources, "source", nil, "source short name to ingest (repeatable; default: all)")
	ingestCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent sources (default: from config)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 2*time.Hour, "total timeout for the batch")
	ingestCmd.Flags().StringVar(&principalDSN, "database", "", "principal database DSN (overrides config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	mode, err := worker.ParseMode(ingestMode)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if principalDSN != "" {
		cfg.Databases.PrincipalDSN = principalDSN
	}
	if concurrency > 0 {
		cfg.Concurrency.IngestWorkers = concurrency
	}
	if verbose {
		cfg.LogMode = "dev"
	}

	log, err := logging.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	fetcher := fetch.New(cfg.HTTP, cfg.Cache)
	registry, err := sources.BuildRegistry(cfg, fetcher, log)
	if err != nil {
		return err
	}

	selected, err := selectSources(registry, ingestSources)
	if err != nil {
		return err
	}

	st, err := store.OpenPostgres(cfg.Databases.PrincipalDSN)
	if err != nil {
		return fmt.Errorf("open principal store: %w", err)
	}

	results := worker.RunBatch(ctx, selected, mode, st, cfg.Concurrency.IngestWorkers, log)

	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", res.Source, res.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %s (%s)\n", res.Source, res.Mode)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(results))
	}
	return nil
}

// selectSources resolves the --source filters against the registry,
// preserving registration order. An empty filter means all sources.
func selectSources(registry *kb.Registry, names []string) ([]kb.Source, error) {
	if len(names) == 0 {
		return registry.All(), nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := registry.Get(name); !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		wanted[name] = true
	}
	var selected []kb.Source
	for _, src := range registry.All() {
		if wanted[src.ShortName()] {
			selected = append(selected, src)
		}
	}
	return selected, nil
}
