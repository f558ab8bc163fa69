package raster

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// TIFF tag and field-type constants, limited to what the compute service emits
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagPlanarConfig     = 284
	tagTileWidth        = 322
	tagSampleFormat     = 339
	tagModelPixelScale  = 33550
	tagModelTiepoint    = 33922
	tagGeoKeyDirectory  = 34735
	tagGeoDoubleParams  = 34736
	tagGeoASCIIParams   = 34737
)

const (
	typeByte   = 1
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

func typeSize(typ uint16) int {
	switch typ {
	case typeByte, typeASCII:
		return 1
	case typeShort:
		return 2
	case typeLong:
		return 4
	case typeDouble:
		return 8
	default:
		return 0
	}
}

type ifdField struct {
	typ   uint16
	count uint32
	raw   []byte // resolved value bytes, count*typeSize long
}

func (f ifdField) uints() []uint64 {
	size := typeSize(f.typ)
	out := make([]uint64, f.count)
	for i := range out {
		chunk := f.raw[i*size : (i+1)*size]
		switch f.typ {
		case typeByte:
			out[i] = uint64(chunk[0])
		case typeShort:
			out[i] = uint64(binary.LittleEndian.Uint16(chunk))
		case typeLong:
			out[i] = uint64(binary.LittleEndian.Uint32(chunk))
		}
	}
	return out
}

func (f ifdField) doubles() []float64 {
	out := make([]float64, f.count)
	for i := range out {
		bits := binary.LittleEndian.Uint64(f.raw[i*8 : (i+1)*8])
		out[i] = math.Float64frombits(bits)
	}
	return out
}

func (f ifdField) ascii() string {
	return strings.TrimRight(string(f.raw), "\x00")
}

func (f ifdField) firstUint() uint64 {
	vals := f.uints()
	if len(vals) == 0 {
		return 0
	}
	return vals[0]
}

// Decode parses a chunky, uncompressed, little-endian (Geo)TIFF into its grid
// description and per-band planar pixel payloads. Band names are recovered
// from the ImageDescription tag when present.
func Decode(data []byte) (Grid, []Band, error) {
	var grid Grid

	if len(data) < 8 {
		return grid, nil, fmt.Errorf("truncated TIFF header")
	}
	if data[0] != 'I' || data[1] != 'I' {
		return grid, nil, fmt.Errorf("unsupported TIFF byte order %q", string(data[:2]))
	}
	if binary.LittleEndian.Uint16(data[2:4]) != 42 {
		return grid, nil, fmt.Errorf("bad TIFF magic")
	}

	fields, err := parseIFD(data, binary.LittleEndian.Uint32(data[4:8]))
	if err != nil {
		return grid, nil, err
	}

	if _, tiled := fields[tagTileWidth]; tiled {
		return grid, nil, fmt.Errorf("tiled TIFF not supported")
	}
	if f, ok := fields[tagCompression]; ok && f.firstUint() != 1 {
		return grid, nil, fmt.Errorf("unsupported TIFF compression %d", f.firstUint())
	}
	if f, ok := fields[tagPlanarConfig]; ok && f.firstUint() != 1 {
		return grid, nil, fmt.Errorf("unsupported planar configuration %d", f.firstUint())
	}

	widthField, ok := fields[tagImageWidth]
	if !ok {
		return grid, nil, fmt.Errorf("missing image width")
	}
	heightField, ok := fields[tagImageLength]
	if !ok {
		return grid, nil, fmt.Errorf("missing image height")
	}
	grid.Width = int(widthField.firstUint())
	grid.Height = int(heightField.firstUint())

	samples := 1
	if f, ok := fields[tagSamplesPerPixel]; ok {
		samples = int(f.firstUint())
	}
	if samples < 1 {
		return grid, nil, fmt.Errorf("invalid samples per pixel %d", samples)
	}

	grid.BitsPerSample = 8
	if f, ok := fields[tagBitsPerSample]; ok {
		bits := f.uints()
		for _, b := range bits[1:] {
			if b != bits[0] {
				return grid, nil, fmt.Errorf("mixed bits per sample not supported")
			}
		}
		grid.BitsPerSample = uint16(bits[0])
	}
	if grid.BitsPerSample%8 != 0 || grid.BitsPerSample == 0 {
		return grid, nil, fmt.Errorf("unsupported bits per sample %d", grid.BitsPerSample)
	}

	grid.SampleFormat = 1
	if f, ok := fields[tagSampleFormat]; ok {
		grid.SampleFormat = uint16(f.firstUint())
	}

	if f, ok := fields[tagModelPixelScale]; ok {
		grid.PixelScale = f.doubles()
	}
	if f, ok := fields[tagModelTiepoint]; ok {
		grid.Tiepoint = f.doubles()
	}
	if f, ok := fields[tagGeoKeyDirectory]; ok {
		for _, v := range f.uints() {
			grid.GeoKeys = append(grid.GeoKeys, uint16(v))
		}
	}
	if f, ok := fields[tagGeoDoubleParams]; ok {
		grid.GeoDoubles = f.doubles()
	}
	if f, ok := fields[tagGeoASCIIParams]; ok {
		grid.GeoASCII = f.ascii()
	}

	pixels, err := readStrips(data, fields)
	if err != nil {
		return grid, nil, err
	}

	want := grid.bandSize() * samples
	if len(pixels) != want {
		return grid, nil, fmt.Errorf("pixel payload is %d bytes, want %d", len(pixels), want)
	}

	names := make([]string, samples)
	if f, ok := fields[tagImageDescription]; ok {
		parts := strings.Split(f.ascii(), ",")
		for i := 0; i < samples && i < len(parts); i++ {
			names[i] = parts[i]
		}
	}

	bands := deinterleave(grid, samples, pixels)
	out := make([]Band, samples)
	for i := range out {
		out[i] = Band{Name: names[i], Data: bands[i]}
	}
	return grid, out, nil
}

func parseIFD(data []byte, offset uint32) (map[uint16]ifdField, error) {
	if int(offset)+2 > len(data) {
		return nil, fmt.Errorf("IFD offset out of range")
	}
	count := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
	fields := make(map[uint16]ifdField, count)

	entryBase := int(offset) + 2
	if entryBase+count*12 > len(data) {
		return nil, fmt.Errorf("truncated IFD")
	}

	for i := 0; i < count; i++ {
		entry := data[entryBase+i*12 : entryBase+(i+1)*12]
		tag := binary.LittleEndian.Uint16(entry[0:2])
		typ := binary.LittleEndian.Uint16(entry[2:4])
		n := binary.LittleEndian.Uint32(entry[4:8])

		size := typeSize(typ)
		if size == 0 {
			continue // unknown field type, skip
		}
		total := size * int(n)

		var raw []byte
		if total <= 4 {
			raw = entry[8 : 8+total]
		} else {
			valOffset := binary.LittleEndian.Uint32(entry[8:12])
			if int(valOffset)+total > len(data) {
				return nil, fmt.Errorf("field %d value out of range", tag)
			}
			raw = data[valOffset : int(valOffset)+total]
		}
		fields[tag] = ifdField{typ: typ, count: n, raw: raw}
	}

	return fields, nil
}

func readStrips(data []byte, fields map[uint16]ifdField) ([]byte, error) {
	offsetsField, ok := fields[tagStripOffsets]
	if !ok {
		return nil, fmt.Errorf("missing strip offsets")
	}
	countsField, ok := fields[tagStripByteCounts]
	if !ok {
		return nil, fmt.Errorf("missing strip byte counts")
	}

	offsets := offsetsField.uints()
	counts := countsField.uints()
	if len(offsets) != len(counts) {
		return nil, fmt.Errorf("strip offsets and byte counts disagree")
	}

	var pixels []byte
	for i := range offsets {
		start, n := int(offsets[i]), int(counts[i])
		if start+n > len(data) {
			return nil, fmt.Errorf("strip %d out of range", i)
		}
		pixels = append(pixels, data[start:start+n]...)
	}
	return pixels, nil
}

// deinterleave splits chunky pixel data into per-band planar payloads
func deinterleave(g Grid, samples int, pixels []byte) [][]byte {
	bps := g.bytesPerSample()
	if samples == 1 {
		return [][]byte{pixels}
	}

	out := make([][]byte, samples)
	for s := range out {
		out[s] = make([]byte, g.bandSize())
	}
	pixelCount := g.Width * g.Height
	for i := 0; i < pixelCount; i++ {
		for s := 0; s < samples; s++ {
			copy(out[s][i*bps:(i+1)*bps], pixels[(i*samples+s)*bps:(i*samples+s+1)*bps])
		}
	}
	return out
}
