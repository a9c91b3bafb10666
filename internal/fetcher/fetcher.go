package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads raw source files: Census API responses, TIGER/Line
// archives, and agency workbooks. Implementations handle transport-level
// retry and rate limiting so callers see only final outcomes.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// owns the returned reader.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL into path and returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
