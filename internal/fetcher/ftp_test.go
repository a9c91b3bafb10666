package fetcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFTPURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "tiger county archive",
			url:      "ftp://ftp2.census.gov/geo/tiger/TIGER2023/COUNTY/tl_2023_us_county.zip",
			wantHost: "ftp2.census.gov:21",
			wantPath: "/geo/tiger/TIGER2023/COUNTY/tl_2023_us_county.zip",
		},
		{
			name:     "explicit port preserved",
			url:      "ftp://ftp2.census.gov:2121/geo/tiger/file.zip",
			wantHost: "ftp2.census.gov:2121",
			wantPath: "/geo/tiger/file.zip",
		},
		{
			name:    "http scheme rejected",
			url:     "https://www2.census.gov/file.zip",
			wantErr: true,
		},
		{
			name:    "empty path",
			url:     "ftp://ftp2.census.gov",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := parseFTPURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestNewFTPFetcher_DefaultTimeout(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	assert.Equal(t, 30*time.Second, f.opts.Timeout)

	f = NewFTPFetcher(FTPOptions{Timeout: time.Minute})
	assert.Equal(t, time.Minute, f.opts.Timeout)
}
