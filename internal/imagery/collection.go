package imagery

import "encoding/json"

// Collection is a declarative description of an image collection. Like Image
// it is immutable; filters return narrowed copies sharing existing nodes.
type Collection struct {
	root  *Node
	bands []string
}

// NewCollection describes a named remote collection.
func NewCollection(id string) Collection {
	return Collection{root: &Node{Op: "collection", Args: map[string]any{"id": id}}}
}

// Graph returns the root node of the expression graph.
func (c Collection) Graph() *Node { return c.root }

// MarshalJSON serializes the expression graph.
func (c Collection) MarshalJSON() ([]byte, error) { return json.Marshal(c.root) }

func (c Collection) filter(op string, args map[string]any) Collection {
	return Collection{
		root:  &Node{Op: op, Args: args, Inputs: []*Node{c.root}},
		bands: c.bands,
	}
}

// FilterBounds keeps acquisitions intersecting the GeoJSON geometry.
func (c Collection) FilterBounds(geometry json.RawMessage) Collection {
	return c.filter("filterBounds", map[string]any{"geometry": geometry})
}

// FilterDate keeps acquisitions in [start, end), dates in YYYY-MM-DD.
func (c Collection) FilterDate(start, end string) Collection {
	return c.filter("filterDate", map[string]any{"start": start, "end": end})
}

// FilterLT keeps acquisitions whose property is strictly below value.
func (c Collection) FilterLT(property string, value float64) Collection {
	return c.filter("filterLT", map[string]any{"property": property, "value": value})
}

// FilterEq keeps acquisitions whose property equals value.
func (c Collection) FilterEq(property string, value any) Collection {
	return c.filter("filterEq", map[string]any{"property": property, "value": value})
}

// Select keeps only the named bands of every acquisition.
func (c Collection) Select(bands ...string) Collection {
	out := c.filter("select", map[string]any{"bands": bands})
	out.bands = append([]string(nil), bands...)
	return out
}

// Map applies fn to every acquisition. fn is evaluated once against a
// placeholder input; the resulting subgraph is embedded as the mapping
// function and applied remotely.
func (c Collection) Map(fn func(Image) Image) Collection {
	mapped := fn(Image{root: &Node{Op: "input"}, bands: c.bands})
	return Collection{
		root:  &Node{Op: "map", Inputs: []*Node{c.root, mapped.root}},
		bands: mapped.bands,
	}
}

// Mosaic merges all acquisitions into one image, later acquisitions on top.
func (c Collection) Mosaic() Image {
	return Image{root: &Node{Op: "mosaic", Inputs: []*Node{c.root}}, bands: c.bands}
}

// QualityMosaic composites per pixel by arg-max of the named quality band.
func (c Collection) QualityMosaic(band string) Image {
	return Image{
		root:  &Node{Op: "qualityMosaic", Args: map[string]any{"band": band}, Inputs: []*Node{c.root}},
		bands: c.bands,
	}
}
