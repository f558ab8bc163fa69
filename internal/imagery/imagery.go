package imagery

import "encoding/json"

// Node is one operation in a declarative expression graph. Graphs are built
// locally and shipped to the remote compute service for evaluation; no pixel
// data is ever touched client-side.
type Node struct {
	Op     string         `json:"op"`
	Args   map[string]any `json:"args,omitempty"`
	Inputs []*Node        `json:"inputs,omitempty"`
}

// Image is a declarative description of a single- or multi-band image.
// Images are immutable: every operation returns a new Image and existing
// nodes are never modified.
//
// The bands slice is best-effort bookkeeping of the band names the described
// image will carry. It is nil when the name set cannot be derived locally
// (e.g. after an expression); HasBand answers true in that case because
// absence cannot be proven.
type Image struct {
	root  *Node
	bands []string
}

// Placeholder returns the formal input of a per-acquisition mapping function.
func Placeholder() Image {
	return Image{root: &Node{Op: "input"}}
}

// Constant describes an image where every pixel holds the given value.
func Constant(v float64) Image {
	return Image{root: &Node{Op: "constant", Args: map[string]any{"value": v}}}
}

// PixelArea describes an image whose pixel values are the pixel area in m².
func PixelArea() Image {
	return Image{root: &Node{Op: "pixelArea"}, bands: []string{"area"}}
}

// Graph returns the root node of the expression graph.
func (i Image) Graph() *Node { return i.root }

// MarshalJSON serializes the expression graph.
func (i Image) MarshalJSON() ([]byte, error) { return json.Marshal(i.root) }

// Bands returns the locally known band names, or nil when unknown.
func (i Image) Bands() []string {
	if i.bands == nil {
		return nil
	}
	out := make([]string, len(i.bands))
	copy(out, i.bands)
	return out
}

// HasBand reports whether the image can carry the named band. When the band
// set is not locally known the answer is true.
func (i Image) HasBand(name string) bool {
	if i.bands == nil {
		return true
	}
	for _, b := range i.bands {
		if b == name {
			return true
		}
	}
	return false
}

// Select keeps only the named bands, in the given order.
func (i Image) Select(bands ...string) Image {
	return Image{
		root:  &Node{Op: "select", Args: map[string]any{"bands": bands}, Inputs: []*Node{i.root}},
		bands: append([]string(nil), bands...),
	}
}

// WithoutBands drops the named bands, keeping everything else.
func (i Image) WithoutBands(names ...string) Image {
	var kept []string
	if i.bands != nil {
		kept = []string{}
		for _, b := range i.bands {
			drop := false
			for _, n := range names {
				if b == n {
					drop = true
					break
				}
			}
			if !drop {
				kept = append(kept, b)
			}
		}
	}
	return Image{
		root:  &Node{Op: "selectExcept", Args: map[string]any{"bands": names}, Inputs: []*Node{i.root}},
		bands: kept,
	}
}

// Rename renames all bands, in order.
func (i Image) Rename(names ...string) Image {
	return Image{
		root:  &Node{Op: "rename", Args: map[string]any{"names": names}, Inputs: []*Node{i.root}},
		bands: append([]string(nil), names...),
	}
}

// AddBands appends the bands of the given images after this image's bands.
func (i Image) AddBands(others ...Image) Image {
	inputs := []*Node{i.root}
	bands := append([]string(nil), i.bands...)
	known := i.bands != nil
	for _, o := range others {
		inputs = append(inputs, o.root)
		if o.bands == nil {
			known = false
		}
		bands = append(bands, o.bands...)
	}
	if !known {
		bands = nil
	}
	return Image{root: &Node{Op: "addBands", Inputs: inputs}, bands: bands}
}

// NormalizedDifference computes (a-b)/(a+b) over the two named bands,
// producing a single band named "nd".
func (i Image) NormalizedDifference(a, b string) Image {
	return Image{
		root:  &Node{Op: "normalizedDifference", Args: map[string]any{"bands": []string{a, b}}, Inputs: []*Node{i.root}},
		bands: []string{"nd"},
	}
}

func (i Image) binary(op string, o Image) Image {
	return Image{root: &Node{Op: op, Inputs: []*Node{i.root, o.root}}, bands: i.Bands()}
}

// Add describes per-pixel addition.
func (i Image) Add(o Image) Image { return i.binary("add", o) }

// Subtract describes per-pixel subtraction.
func (i Image) Subtract(o Image) Image { return i.binary("subtract", o) }

// Multiply describes per-pixel multiplication.
func (i Image) Multiply(o Image) Image { return i.binary("multiply", o) }

// Divide describes per-pixel division.
func (i Image) Divide(o Image) Image { return i.binary("divide", o) }

// Eq describes a per-pixel equality test against a constant.
func (i Image) Eq(v float64) Image {
	return Image{
		root:  &Node{Op: "eq", Args: map[string]any{"value": v}, Inputs: []*Node{i.root}},
		bands: i.Bands(),
	}
}

// Or describes a per-pixel logical or.
func (i Image) Or(o Image) Image { return i.binary("or", o) }

// Not describes a per-pixel logical negation.
func (i Image) Not() Image {
	return Image{root: &Node{Op: "not", Inputs: []*Node{i.root}}, bands: i.Bands()}
}

// UpdateMask masks out pixels where mask is zero, leaving data gaps.
func (i Image) UpdateMask(mask Image) Image {
	return Image{root: &Node{Op: "updateMask", Inputs: []*Node{i.root, mask.root}}, bands: i.Bands()}
}

// Where replaces this image's pixels with value's wherever test is non-zero.
func (i Image) Where(test, value Image) Image {
	return Image{root: &Node{Op: "where", Inputs: []*Node{i.root, test.root, value.root}}, bands: i.Bands()}
}

// Expression evaluates a band-math expression per pixel. Bands of this image
// are addressed as b('name') inside the expression.
func (i Image) Expression(expr string) Image {
	return Image{root: &Node{Op: "expression", Args: map[string]any{"expression": expr}, Inputs: []*Node{i.root}}}
}

// VisParams controls colorized rendering of a single-band image.
type VisParams struct {
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Palette []string `json:"palette"`
}

// Visualize maps pixel values in [Min, Max] onto the palette, producing a
// 3-band 8-bit visual.
func (i Image) Visualize(v VisParams) Image {
	return Image{
		root: &Node{
			Op:     "visualize",
			Args:   map[string]any{"min": v.Min, "max": v.Max, "palette": v.Palette},
			Inputs: []*Node{i.root},
		},
	}
}
