package census

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terrashift/climate-cli/internal/resilience"
)

// Downloader runs the concurrent table-by-year download plan and writes one
// CSV extract per (table, year).
type Downloader struct {
	client  *Client
	dataDir string
	workers int
}

// NewDownloader creates a Downloader writing under dataDir with at most
// workers concurrent API requests.
func NewDownloader(client *Client, dataDir string, workers int) *Downloader {
	if workers < 1 {
		workers = 1
	}
	return &Downloader{client: client, dataDir: dataDir, workers: workers}
}

// ExtractPath is the single source of truth for where a (table, year)
// extract lives. Writers and readers of the data directory must agree on
// it, so nothing else in the module builds these paths by hand.
func ExtractPath(dataDir, table string, year int) string {
	return filepath.Join(dataDir, fmt.Sprintf("census_%s_data_%d.csv", table, year))
}

// DownloadAll fetches every vintage of every table. Extracts that already
// exist on disk are skipped so interrupted runs resume cheaply. A failed
// vintage is logged and skipped; only context cancellation aborts the run.
func (d *Downloader) DownloadAll(ctx context.Context, tables []Table) error {
	log := zap.L().With(zap.String("component", "census"))

	if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
		return eris.Wrapf(err, "census: create %s", d.dataDir)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, tbl := range tables {
		for year := tbl.FirstYear; year <= tbl.LastYear; year++ {
			tbl, year := tbl, year
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return eris.Wrap(err, "census: cancelled")
				}
				path := ExtractPath(d.dataDir, tbl.Name, year)
				if _, err := os.Stat(path); err == nil {
					log.Debug("extract exists, skipping",
						zap.String("table", tbl.Name), zap.Int("year", year))
					return nil
				}
				if err := d.downloadYear(ctx, tbl, year, path); err != nil {
					log.Warn("table vintage failed",
						zap.String("table", tbl.Name),
						zap.Int("year", year),
						zap.Error(err))
				}
				return nil
			})
		}
	}

	return g.Wait()
}

// downloadYear fetches one vintage and writes its CSV extract. Transient
// API failures are retried with backoff before the vintage is given up on.
func (d *Downloader) downloadYear(ctx context.Context, tbl Table, year int, path string) error {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.LogRetries("census", fmt.Sprintf("%s/%d", tbl.Name, year))
	rows, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]Row, error) {
		return d.client.FetchCounties(ctx, tbl, year)
	})
	if err != nil {
		return err
	}
	return writeExtract(path, tbl, year, rows)
}

// writeExtract writes rows as a cleaned CSV: identity columns, the vintage
// year, then the dataset's value columns in sorted order.
func writeExtract(path string, tbl Table, year int, rows []Row) error {
	columns, ok := tbl.ColumnsFor(year)
	if !ok {
		return eris.Errorf("census: %s has no variables for %d", tbl.Name, year)
	}
	names := make([]string, 0, len(columns))
	for _, column := range columns {
		names = append(names, column)
	}
	sort.Strings(names)

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "census: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append([]string{"COUNTY_FIPS", "STATE_FIPS", "NAME", "YEAR"}, names...)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "census: write header")
	}

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FIPS < sorted[j].FIPS })

	for _, row := range sorted {
		rec := []string{row.FIPS, row.StateFIPS, row.Name, strconv.Itoa(year)}
		for _, name := range names {
			rec = append(rec, row.Values[name])
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "census: write row %s", row.FIPS)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "census: flush extract")
}
