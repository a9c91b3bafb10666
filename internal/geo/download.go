package geo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/fetcher"
	"github.com/terrashift/climate-cli/internal/resilience"
)

// Lister downloads files from and lists directories on the Census FTP
// server. *fetcher.FTPFetcher satisfies it.
type Lister interface {
	DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error)
	List(ctx context.Context, ftpURL string) ([]string, error)
}

// DownloadCounties fetches the national TIGER/Line county ZIP from the
// Census FTP host, extracts it, and returns the path to the .shp file.
// A previously downloaded ZIP with content is reused.
func DownloadCounties(ctx context.Context, ftpc Lister, host, dir string, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "geo.download"),
		zap.String("host", host),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "geo: create dest dir")
	}

	dirURL := fmt.Sprintf("ftp://%s/%s", host, strings.Trim(dir, "/"))
	entries, err := ftpc.List(ctx, dirURL)
	if err != nil {
		return "", eris.Wrap(err, "geo: list county directory")
	}
	zipName := ""
	for _, name := range entries {
		if strings.HasPrefix(name, "tl_") && strings.HasSuffix(name, "_us_county.zip") {
			zipName = name
			break
		}
	}
	if zipName == "" {
		return "", eris.Errorf("geo: no county ZIP under %s", dirURL)
	}

	zipPath := filepath.Join(destDir, zipName)
	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading county shapefile", zap.String("file", zipName))
		// FTP failures surface as opaque string errors, so retry all of them.
		cfg := resilience.DefaultRetryConfig()
		cfg.ShouldRetry = func(error) bool { return true }
		cfg.OnRetry = resilience.LogRetries("tiger", zipName)
		err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
			_, err := ftpc.DownloadToFile(ctx, dirURL+"/"+zipName, zipPath)
			return err
		})
		if err != nil {
			return "", eris.Wrap(err, "geo: download county shapefile")
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "geo: create extract dir")
	}
	if _, err := fetcher.ExtractZIP(zipPath, extractDir); err != nil {
		return "", eris.Wrap(err, "geo: extract ZIP")
	}

	return findFileByExt(extractDir, ".shp")
}

// findFileByExt returns the first file under dir with the given extension.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrapf(err, "geo: read dir %s", dir)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("geo: no %s file under %s", ext, dir)
}
