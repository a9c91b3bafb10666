package census

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/fetcher"
	"github.com/terrashift/climate-cli/internal/model"
)

// excludedStates are the state FIPS codes outside the contiguous study
// universe: Alaska, Hawaii, Puerto Rico, and the Virgin Islands.
var excludedStates = map[string]bool{
	"02": true,
	"15": true,
	"72": true,
	"78": true,
}

// Row is one county observation from an ACS table, with values keyed by
// the cleaned column names of the dataset's VariableSet.
type Row struct {
	FIPS      string
	StateFIPS string
	Name      string
	Values    map[string]string
}

// Client talks to the Census Bureau data API.
type Client struct {
	fetcher fetcher.Fetcher
	baseURL string
	apiKey  string
}

// NewClient creates a census API client on top of a fetcher.
func NewClient(f fetcher.Fetcher, baseURL, apiKey string) *Client {
	return &Client{fetcher: f, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

// queryURL builds the county-universe query for one table vintage.
func (c *Client) queryURL(tbl Table, year int, codes []string) string {
	q := url.Values{}
	q.Set("get", "NAME,"+strings.Join(codes, ","))
	q.Set("for", "county:*")
	q.Set("in", "state:*")
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	return fmt.Sprintf("%s/%d/%s?%s", c.baseURL, year, tbl.Path, q.Encode())
}

// FetchCounties downloads one table vintage at county granularity across
// all states and filters out the excluded-state universe. Column values are
// keyed by cleaned column names.
func (c *Client) FetchCounties(ctx context.Context, tbl Table, year int) ([]Row, error) {
	columns, ok := tbl.ColumnsFor(year)
	if !ok {
		return nil, eris.Errorf("census: %s has no variables for %d", tbl.Name, year)
	}

	codes := make([]string, 0, len(columns))
	for code := range columns {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rawURL := c.queryURL(tbl, year, codes)
	body, err := c.fetcher.Download(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "census: fetch %s %d", tbl.Name, year)
	}
	defer body.Close() //nolint:errcheck

	recCh, errCh := fetcher.DecodeJSONArray[[]string](ctx, body)

	var header map[string]int
	var rows []Row
	for rec := range recCh {
		if header == nil {
			header = make(map[string]int, len(rec))
			for i, name := range rec {
				header[name] = i
			}
			continue
		}
		row, ok, err := c.parseRow(rec, header, columns)
		if err != nil {
			return nil, eris.Wrapf(err, "census: %s %d", tbl.Name, year)
		}
		if ok {
			rows = append(rows, row)
		}
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "census: decode %s %d", tbl.Name, year)
		}
	}

	zap.L().Debug("census table fetched",
		zap.String("table", tbl.Name),
		zap.Int("year", year),
		zap.Int("counties", len(rows)))
	return rows, nil
}

// parseRow converts a raw API record into a Row, returning ok=false for
// counties in excluded states. The API appends geography columns named
// "state" and "county" after the requested variables.
func (c *Client) parseRow(rec []string, header map[string]int, columns map[string]string) (Row, bool, error) {
	cell := func(name string) (string, error) {
		i, ok := header[name]
		if !ok || i >= len(rec) {
			return "", eris.Errorf("missing column %q", name)
		}
		return rec[i], nil
	}

	state, err := cell("state")
	if err != nil {
		return Row{}, false, err
	}
	state = model.PadFIPS(state, 2)
	if excludedStates[state] {
		return Row{}, false, nil
	}

	county, err := cell("county")
	if err != nil {
		return Row{}, false, err
	}
	name, err := cell("NAME")
	if err != nil {
		return Row{}, false, err
	}

	row := Row{
		FIPS:      model.CountyFIPS(state, county),
		StateFIPS: state,
		Name:      name,
		Values:    make(map[string]string, len(columns)),
	}
	for code, column := range columns {
		v, err := cell(code)
		if err != nil {
			return Row{}, false, err
		}
		row.Values[column] = v
	}
	return row, true, nil
}
