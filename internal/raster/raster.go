// Package raster reads and writes the uncompressed little-endian GeoTIFFs
// the compute service produces, just enough to reassemble per-band exports
// into one multi-band raster. Pixel payloads are copied verbatim; only the
// container is rebuilt.
package raster

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBandMismatch is returned when input bands do not share a common grid
var ErrBandMismatch = errors.New("band rasters do not share a common grid")

// Band pairs a band name with its payload. For Merge the payload is a full
// single-band GeoTIFF; for Encode it is the raw planar pixel data.
type Band struct {
	Name string
	Data []byte
}

// Grid describes the georeferenced pixel grid shared by all bands of a raster
type Grid struct {
	Width         int
	Height        int
	BitsPerSample uint16
	SampleFormat  uint16

	// GeoTIFF georeferencing, copied opaque from the reference band
	PixelScale []float64
	Tiepoint   []float64
	GeoKeys    []uint16
	GeoDoubles []float64
	GeoASCII   string
}

func (g Grid) bytesPerSample() int { return int(g.BitsPerSample) / 8 }

func (g Grid) bandSize() int { return g.Width * g.Height * g.bytesPerSample() }

// Same reports whether two grids are pixel-for-pixel compatible
func (g Grid) Same(o Grid) bool {
	return g.Width == o.Width &&
		g.Height == o.Height &&
		g.BitsPerSample == o.BitsPerSample &&
		g.SampleFormat == o.SampleFormat &&
		floatsEqual(g.PixelScale, o.PixelScale) &&
		floatsEqual(g.Tiepoint, o.Tiepoint)
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Merge combines several single-band GeoTIFFs into one multi-band GeoTIFF,
// preserving band order and copying georeferencing from the first input.
// All inputs must share an identical grid or ErrBandMismatch is returned.
func Merge(bands []Band) ([]byte, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("no bands to merge")
	}

	var grid Grid
	planes := make([]Band, 0, len(bands))
	for i, b := range bands {
		g, decoded, err := Decode(b.Data)
		if err != nil {
			return nil, fmt.Errorf("band %q: %w", b.Name, err)
		}
		if len(decoded) != 1 {
			return nil, fmt.Errorf("band %q: expected single-band input, got %d bands: %w", b.Name, len(decoded), ErrBandMismatch)
		}
		if i == 0 {
			grid = g
		} else if !grid.Same(g) {
			return nil, fmt.Errorf("band %q: %w", b.Name, ErrBandMismatch)
		}
		planes = append(planes, Band{Name: b.Name, Data: decoded[0].Data})
	}

	return Encode(grid, planes)
}

// bandNamesDescription joins band names for the ImageDescription tag
func bandNamesDescription(bands []Band) string {
	names := make([]string, len(bands))
	for i, b := range bands {
		names[i] = b.Name
	}
	return strings.Join(names, ",")
}
