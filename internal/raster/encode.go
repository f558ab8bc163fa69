package raster

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte // encoded value bytes; placed inline when <= 4 bytes
}

func entryShorts(tag uint16, vals []uint16) ifdEntry {
	raw := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(raw[i*2:], v)
	}
	return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(vals)), value: raw}
}

func entryLong(tag uint16, v uint32) ifdEntry {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, v)
	return ifdEntry{tag: tag, typ: typeLong, count: 1, value: raw}
}

func entryDoubles(tag uint16, vals []float64) ifdEntry {
	raw := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	return ifdEntry{tag: tag, typ: typeDouble, count: uint32(len(vals)), value: raw}
}

func entryASCII(tag uint16, s string) ifdEntry {
	raw := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(raw)), value: raw}
}

// Encode writes a chunky, uncompressed, little-endian multi-band GeoTIFF from
// planar band payloads sharing the given grid. Band order is preserved:
// output band i holds bands[i]. Band names are recorded in ImageDescription.
func Encode(g Grid, bands []Band) ([]byte, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("no bands to encode")
	}
	if g.Width <= 0 || g.Height <= 0 {
		return nil, fmt.Errorf("invalid grid %dx%d", g.Width, g.Height)
	}
	if g.BitsPerSample%8 != 0 || g.BitsPerSample == 0 {
		return nil, fmt.Errorf("unsupported bits per sample %d", g.BitsPerSample)
	}
	for _, b := range bands {
		if len(b.Data) != g.bandSize() {
			return nil, fmt.Errorf("band %q payload is %d bytes, want %d: %w", b.Name, len(b.Data), g.bandSize(), ErrBandMismatch)
		}
	}

	samples := len(bands)
	pixels := interleave(g, bands)

	bits := make([]uint16, samples)
	formats := make([]uint16, samples)
	for i := range bits {
		bits[i] = g.BitsPerSample
		formats[i] = g.SampleFormat
	}

	entries := []ifdEntry{
		entryLong(tagImageWidth, uint32(g.Width)),
		entryLong(tagImageLength, uint32(g.Height)),
		entryShorts(tagBitsPerSample, bits),
		entryShorts(tagCompression, []uint16{1}),
		entryShorts(tagPhotometric, []uint16{1}),
		entryASCII(tagImageDescription, bandNamesDescription(bands)),
		entryLong(tagStripOffsets, 0), // patched once the layout is known
		entryShorts(tagSamplesPerPixel, []uint16{uint16(samples)}),
		entryLong(tagRowsPerStrip, uint32(g.Height)),
		entryLong(tagStripByteCounts, uint32(len(pixels))),
		entryShorts(tagPlanarConfig, []uint16{1}),
		entryShorts(tagSampleFormat, formats),
	}
	if len(g.PixelScale) > 0 {
		entries = append(entries, entryDoubles(tagModelPixelScale, g.PixelScale))
	}
	if len(g.Tiepoint) > 0 {
		entries = append(entries, entryDoubles(tagModelTiepoint, g.Tiepoint))
	}
	if len(g.GeoKeys) > 0 {
		entries = append(entries, entryShorts(tagGeoKeyDirectory, g.GeoKeys))
	}
	if len(g.GeoDoubles) > 0 {
		entries = append(entries, entryDoubles(tagGeoDoubleParams, g.GeoDoubles))
	}
	if g.GeoASCII != "" {
		entries = append(entries, entryASCII(tagGeoASCIIParams, g.GeoASCII))
	}

	// TIFF requires IFD entries sorted by tag
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	// Layout: header | IFD | external values | pixel data
	ifdOffset := uint32(8)
	ifdSize := 2 + len(entries)*12 + 4
	externalOffset := ifdOffset + uint32(ifdSize)

	externalSize := 0
	for _, e := range entries {
		if len(e.value) > 4 {
			externalSize += pad2(len(e.value))
		}
	}
	dataOffset := externalOffset + uint32(externalSize)

	// Patch the strip offset now that the pixel data position is known
	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			binary.LittleEndian.PutUint32(entries[i].value, dataOffset)
		}
	}

	out := make([]byte, 0, int(dataOffset)+len(pixels))
	out = append(out, 'I', 'I')
	out = appendUint16(out, 42)
	out = appendUint32(out, ifdOffset)

	out = appendUint16(out, uint16(len(entries)))
	external := make([]byte, 0, externalSize)
	nextExternal := externalOffset
	for _, e := range entries {
		out = appendUint16(out, e.tag)
		out = appendUint16(out, e.typ)
		out = appendUint32(out, e.count)
		if len(e.value) <= 4 {
			inline := make([]byte, 4)
			copy(inline, e.value)
			out = append(out, inline...)
		} else {
			out = appendUint32(out, nextExternal)
			padded := make([]byte, pad2(len(e.value)))
			copy(padded, e.value)
			external = append(external, padded...)
			nextExternal += uint32(len(padded))
		}
	}
	out = appendUint32(out, 0) // no next IFD
	out = append(out, external...)
	out = append(out, pixels...)

	return out, nil
}

// interleave packs planar band payloads into chunky pixel data
func interleave(g Grid, bands []Band) []byte {
	bps := g.bytesPerSample()
	samples := len(bands)
	if samples == 1 {
		return bands[0].Data
	}

	pixelCount := g.Width * g.Height
	out := make([]byte, pixelCount*samples*bps)
	for i := 0; i < pixelCount; i++ {
		for s := 0; s < samples; s++ {
			copy(out[(i*samples+s)*bps:(i*samples+s+1)*bps], bands[s].Data[i*bps:(i+1)*bps])
		}
	}
	return out
}

func pad2(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}

func appendUint16(b []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(b, v)
}

func appendUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}
