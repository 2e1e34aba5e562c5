// Package ingest downloads and parses lead lists from HTTP, FTP, CSV, XLSX,
// JSON, and ZIP sources.
package ingest

import (
	"context"
	"io"
)

// Fetcher downloads remote lead lists. Implementations exist for HTTP(S) and
// FTP feed hosts; the import command picks one by URL scheme.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
