package geometry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
)

// LoadGeoJSON reads an AOI geometry from a GeoJSON file. Accepts a bare
// geometry, a feature, or a feature collection (first feature wins) and
// returns the normalized geometry JSON passed to the compute service.
func LoadGeoJSON(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read GeoJSON file: %w", err)
	}
	return Normalize(data)
}

// Normalize validates raw GeoJSON and reduces it to a bare geometry
func Normalize(data []byte) (json.RawMessage, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		if len(fc.Features) == 0 {
			return nil, fmt.Errorf("feature collection has no features")
		}
		return marshalGeometry(geojson.NewGeometry(fc.Features[0].Geometry))
	}

	if f, err := geojson.UnmarshalFeature(data); err == nil {
		return marshalGeometry(geojson.NewGeometry(f.Geometry))
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}
	return marshalGeometry(g)
}

func marshalGeometry(g *geojson.Geometry) (json.RawMessage, error) {
	out, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geometry: %w", err)
	}
	return out, nil
}
