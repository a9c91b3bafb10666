// Package geo acquires TIGER/Line county boundary shapefiles and converts
// them into the geometry column of the county registry.
package geo

import (
	"sort"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CountyShape is one county boundary record read from a TIGER/Line
// shapefile, with its polygon already encoded as WKT.
type CountyShape struct {
	GEOID     string // 5-digit county FIPS
	StateFIPS string
	Name      string
	ALand     string // land area in m², kept verbatim from the source
	AWater    string
	WKT       string
}

// countyFields are the DBF attributes read from the COUNTY product.
var countyFields = []string{"GEOID", "STATEFP", "NAME", "ALAND", "AWATER"}

// ParseCountyShapefile reads a TIGER/Line county shapefile and returns one
// record per county, sorted by GEOID. Records with missing or malformed
// geometry are skipped with a warning rather than failing the parse.
func ParseCountyShapefile(shpPath string) ([]CountyShape, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map. DBF field names are NUL padded.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(name)] = i
	}
	for _, name := range countyFields {
		if _, ok := fieldIdx[name]; !ok {
			return nil, eris.Errorf("geo: shapefile %s missing attribute %s", shpPath, name)
		}
	}

	log := zap.L().With(zap.String("component", "geo.shapefile"))

	attr := func(idx int) string {
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var shapes []CountyShape
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		cs := CountyShape{
			GEOID:     attr(fieldIdx["GEOID"]),
			StateFIPS: attr(fieldIdx["STATEFP"]),
			Name:      attr(fieldIdx["NAME"]),
			ALand:     attr(fieldIdx["ALAND"]),
			AWater:    attr(fieldIdx["AWATER"]),
		}
		if cs.GEOID == "" {
			skipped++
			continue
		}

		wktStr, err := EncodeWKT(shape)
		if err != nil || wktStr == "" {
			log.Warn("county boundary not encodable, keeping record without geometry",
				zap.String("geoid", cs.GEOID), zap.Error(err))
		}
		cs.WKT = wktStr
		shapes = append(shapes, cs)
	}

	if skipped > 0 {
		log.Warn("skipped shapefile records without GEOID", zap.Int("skipped", skipped))
	}

	sort.Slice(shapes, func(i, j int) bool { return shapes[i].GEOID < shapes[j].GEOID })
	return shapes, nil
}
