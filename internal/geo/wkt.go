package geo

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
)

// EncodeWKT converts a go-shp geometry to a WKT string in EPSG:4326, the
// form carried in the county registry CSV. Returns "", nil for unsupported
// or nil shapes.
func EncodeWKT(shape shp.Shape) (string, error) {
	g, err := toGeom(shape)
	if err != nil || g == nil {
		return "", err
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		return "", eris.Wrap(err, "geo: encode WKT")
	}
	return s, nil
}

func toGeom(shape shp.Shape) (geom.T, error) {
	if shape == nil {
		return nil, nil
	}

	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326), nil

	case *shp.PolyLine:
		return polyLineToMultiLineString(s), nil

	case *shp.Polygon:
		return polygonToMultiPolygon(s), nil

	default:
		return nil, nil
	}
}

// polyLineToMultiLineString converts a shapefile PolyLine to a geom.MultiLineString.
func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(4326)

	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		var end int32
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		} else {
			end = int32(len(pl.Points))
		}

		coords := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			coords = append(coords, geom.Coord{pl.Points[j].X, pl.Points[j].Y})
		}

		ls := geom.NewLineStringFlat(geom.XY, flatCoords(coords))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("geo: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// County boundaries are multi-part (islands, exclaves), so every polygon is
// promoted to a MultiPolygon for a uniform registry column type.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		coords := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			coords = append(coords, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}

		ring := geom.NewLinearRingFlat(geom.XY, flatCoords(coords))
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}

		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// flatCoords converts a slice of Coord to flat coordinate pairs for go-geom.
func flatCoords(coords []geom.Coord) []float64 {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return flat
}
