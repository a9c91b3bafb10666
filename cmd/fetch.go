package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/census"
	"github.com/terrashift/climate-cli/internal/fetcher"
	"github.com/terrashift/climate-cli/internal/geo"
)

var (
	fetchSkipCensus   bool
	fetchSkipGeometry bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download ACS tables and county boundaries",
	Long:  "Downloads the ACS 5-year indicator tables per year and the TIGER/Line county boundary shapefile, and assembles the raw county registry CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
			return eris.Wrap(err, "create data dir")
		}

		if !fetchSkipCensus {
			httpf := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
				Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
				RateLimiters: fetcher.ConfiguredRateLimiters(cfg.Fetch.RatePerSec),
			})
			client := census.NewClient(httpf, cfg.Census.BaseURL, cfg.Census.APIKey)
			dl := census.NewDownloader(client, cfg.Paths.DataDir, cfg.Fetch.MaxConcurrent)
			if err := dl.DownloadAll(ctx, census.Tables()); err != nil {
				return eris.Wrap(err, "download census tables")
			}
		}

		if !fetchSkipGeometry {
			if err := buildRawRegistry(cmd); err != nil {
				return err
			}
		}

		return nil
	},
}

// buildRawRegistry downloads the county boundary shapefile and joins it with
// the downloaded population extracts into data/counties.csv.
func buildRawRegistry(cmd *cobra.Command) error {
	ctx := cmd.Context()

	ftpf := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
	})
	shpPath, err := geo.DownloadCounties(ctx, ftpf, cfg.Fetch.TigerFTPHost, cfg.Fetch.TigerFTPPath, cfg.Fetch.TempDir)
	if err != nil {
		return err
	}

	shapes, err := geo.ParseCountyShapefile(shpPath)
	if err != nil {
		return err
	}

	popBase, err := loadPopulation(ctx, cfg.Paths.DataDir, cfg.Census.BaseYear)
	if err != nil {
		return err
	}
	popCur, err := loadPopulation(ctx, cfg.Paths.DataDir, cfg.Census.CurrentYear)
	if err != nil {
		return err
	}

	out := filepath.Join(cfg.Paths.DataDir, "counties.csv")
	if err := geo.WriteRawCounties(out, shapes, popBase, popCur, cfg.Census.CurrentYear); err != nil {
		return err
	}

	zap.L().Info("fetch complete", zap.String("registry", out), zap.Int("counties", len(shapes)))
	return nil
}

// loadPopulation reads the POPULATION column of a downloaded census extract
// into a FIPS-keyed lookup.
func loadPopulation(ctx context.Context, dataDir string, year int) (map[string]int64, error) {
	path := census.ExtractPath(dataDir, "population", year)
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open population extract %s", path)
	}
	defer f.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true})

	fipsIdx, popIdx := -1, -1
	out := make(map[string]int64)
	header := true
	for rec := range rowCh {
		if header {
			header = false
			for i, name := range rec {
				switch name {
				case "COUNTY_FIPS":
					fipsIdx = i
				case "POPULATION":
					popIdx = i
				}
			}
			if fipsIdx < 0 || popIdx < 0 {
				return nil, eris.Errorf("population extract %s lacks COUNTY_FIPS/POPULATION columns", path)
			}
			continue
		}
		if len(rec) <= fipsIdx || len(rec) <= popIdx || rec[popIdx] == "" {
			continue
		}
		v, err := strconv.ParseInt(rec[popIdx], 10, 64)
		if err != nil {
			continue // non-numeric cell, skip rather than abort the join
		}
		out[rec[fipsIdx]] = v
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "read population extract %s", path)
	}
	return out, nil
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchSkipCensus, "skip-census", false, "skip ACS table downloads")
	fetchCmd.Flags().BoolVar(&fetchSkipGeometry, "skip-geometry", false, "skip county boundary download and registry assembly")
	rootCmd.AddCommand(fetchCmd)
}
