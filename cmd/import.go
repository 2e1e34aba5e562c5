package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/ingest"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

var (
	importPath   string
	importSource string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a file or feed URL",
	Long:  "Parses a CSV, XLSX, JSON, or zipped lead list (local path, HTTP(S), or FTP URL) and loads it into the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		path, cleanup, err := resolveImportPath(ctx, importPath)
		if err != nil {
			return err
		}
		defer cleanup()

		leads, skipped, err := ingest.ReadLeadsFile(ctx, path, importSource)
		if err != nil {
			return eris.Wrap(err, "read lead file")
		}

		leads, dupes := dedupeLeadsByEmail(leads)

		// Postgres upserts on email so re-importing a broker file refreshes
		// existing leads instead of failing; SQLite has no bulk upsert path.
		var loaded int
		if pg, ok := st.(*store.PostgresStore); ok {
			loaded, err = pg.UpsertLeads(ctx, leads)
		} else {
			loaded, err = st.BulkCreateLeads(ctx, leads)
		}
		if err != nil {
			return eris.Wrap(err, "load leads")
		}

		zap.L().Info("import complete",
			zap.String("path", importPath),
			zap.String("source", importSource),
			zap.Int("loaded", loaded),
			zap.Int("duplicates", dupes),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

// dedupeLeadsByEmail drops rows repeating an earlier row's email, keeping the
// first occurrence. Broker files repeat contacts, and an upsert batch cannot
// touch the same email twice. Leads without an email all pass through.
func dedupeLeadsByEmail(leads []model.Lead) ([]model.Lead, int) {
	seen := make(map[string]bool, len(leads))
	kept := leads[:0]
	dupes := 0
	for _, l := range leads {
		email := strings.ToLower(strings.TrimSpace(l.Email))
		if email != "" && seen[email] {
			dupes++
			continue
		}
		seen[email] = true
		kept = append(kept, l)
	}
	return kept, dupes
}

// resolveImportPath downloads remote feeds to a temp file and returns a local
// path plus a cleanup func. Local paths pass through untouched.
func resolveImportPath(ctx context.Context, raw string) (string, func(), error) {
	noop := func() {}

	fetcher := fetcherForURL(raw)
	if fetcher == nil {
		return raw, noop, nil
	}

	tmp, cleanup, err := tempFeedFile(raw)
	if err != nil {
		return "", noop, err
	}
	if _, err := fetcher.DownloadToFile(ctx, raw, tmp); err != nil {
		cleanup()
		return "", noop, err
	}
	return tmp, cleanup, nil
}

// fetcherForURL picks a Fetcher by URL scheme, or nil for local paths.
func fetcherForURL(raw string) ingest.Fetcher {
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return ingest.NewHTTPFetcher(ingest.HTTPOptions{
			UserAgent:     cfg.Ingest.UserAgent,
			Timeout:       time.Duration(cfg.Ingest.TimeoutSecs) * time.Second,
			MaxRetries:    cfg.Ingest.MaxRetries,
			RatePerSecond: cfg.Ingest.RatePerSecond,
		})
	case strings.HasPrefix(raw, "ftp://"):
		return ingest.NewFTPFetcher(ingest.FTPOptions{
			Timeout: time.Duration(cfg.Ingest.FTPTimeoutSecs) * time.Second,
		})
	default:
		return nil
	}
}

// tempFeedFile allocates a temp path preserving the feed's extension so the
// parser can dispatch on it.
func tempFeedFile(rawURL string) (string, func(), error) {
	ext := filepath.Ext(rawURL)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	dir, err := os.MkdirTemp("", "leadflow-import-*")
	if err != nil {
		return "", nil, eris.Wrap(err, "create temp dir")
	}
	return filepath.Join(dir, "feed"+ext), func() { _ = os.RemoveAll(dir) }, nil
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "lead list path or URL (required)")
	importCmd.Flags().StringVar(&importSource, "source", "import", "source label for leads without one")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
