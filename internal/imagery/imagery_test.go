package imagery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageBands(t *testing.T) {
	t.Run("select narrows and orders the band set", func(t *testing.T) {
		img := Placeholder().Select("B4", "B3", "B2")
		assert.Equal(t, []string{"B4", "B3", "B2"}, img.Bands())
		assert.True(t, img.HasBand("B3"))
		assert.False(t, img.HasBand("B8"))
	})

	t.Run("unknown band set answers HasBand true", func(t *testing.T) {
		img := Placeholder()
		assert.Nil(t, img.Bands())
		assert.True(t, img.HasBand("anything"))
	})

	t.Run("rename replaces names in order", func(t *testing.T) {
		img := Placeholder().Select("B8", "B4").Rename("nir", "red")
		assert.Equal(t, []string{"nir", "red"}, img.Bands())
	})

	t.Run("addBands appends, unknown input poisons the set", func(t *testing.T) {
		a := Placeholder().Select("nbr")
		b := Placeholder().Select("ndvi")
		assert.Equal(t, []string{"nbr", "ndvi"}, a.AddBands(b).Bands())

		unknown := Placeholder().Expression("b('x') * 2")
		assert.Nil(t, a.AddBands(unknown).Bands())
	})

	t.Run("withoutBands drops only the named bands", func(t *testing.T) {
		img := Placeholder().Select("B4", "quality", "B8").WithoutBands("quality")
		assert.Equal(t, []string{"B4", "B8"}, img.Bands())
	})

	t.Run("normalizedDifference yields the nd band", func(t *testing.T) {
		nd := Placeholder().NormalizedDifference("B8", "B4")
		assert.Equal(t, []string{"nd"}, nd.Bands())
	})

	t.Run("expression loses local band knowledge", func(t *testing.T) {
		img := Placeholder().Select("rbr").Expression("b('rbr') < 0.1 ? 0 : 1")
		assert.Nil(t, img.Bands())
		assert.True(t, img.HasBand("severity"))
	})
}

func TestImageImmutability(t *testing.T) {
	base := Placeholder().Select("B4", "B3")
	derived := base.Rename("red", "green")

	// the original image is untouched by derivation
	assert.Equal(t, []string{"B4", "B3"}, base.Bands())
	assert.Equal(t, "select", base.Graph().Op)
	assert.Equal(t, "rename", derived.Graph().Op)
	assert.Same(t, base.Graph(), derived.Graph().Inputs[0])
}

func TestImageGraphSerialization(t *testing.T) {
	img := Constant(100).Subtract(Constant(5))

	data, err := json.Marshal(img)
	require.NoError(t, err)

	var node Node
	require.NoError(t, json.Unmarshal(data, &node))
	assert.Equal(t, "subtract", node.Op)
	require.Len(t, node.Inputs, 2)
	assert.Equal(t, "constant", node.Inputs[0].Op)
	assert.Equal(t, float64(100), node.Inputs[0].Args["value"])
}

func TestCollectionFilters(t *testing.T) {
	c := NewCollection("COPERNICUS/S2_SR_HARMONIZED").
		FilterDate("2024-01-01", "2024-01-31").
		FilterLT("CLOUDY_PIXEL_PERCENTAGE", 40)

	root := c.Graph()
	assert.Equal(t, "filterLT", root.Op)
	assert.Equal(t, "filterDate", root.Inputs[0].Op)
	assert.Equal(t, "collection", root.Inputs[0].Inputs[0].Op)
	assert.Equal(t, "COPERNICUS/S2_SR_HARMONIZED", root.Inputs[0].Inputs[0].Args["id"])
}

func TestCollectionMap(t *testing.T) {
	t.Run("mapping function becomes an embedded subgraph", func(t *testing.T) {
		c := NewCollection("test").Select("B4", "B8")
		mapped := c.Map(func(img Image) Image {
			return img.Multiply(Constant(0.0001))
		})

		root := mapped.Graph()
		require.Equal(t, "map", root.Op)
		require.Len(t, root.Inputs, 2)

		fn := root.Inputs[1]
		assert.Equal(t, "multiply", fn.Op)
		assert.Equal(t, "input", fn.Inputs[0].Op)
	})

	t.Run("mapped band set follows the function output", func(t *testing.T) {
		c := NewCollection("test").Select("B8", "B4")
		mapped := c.Map(func(img Image) Image {
			return img.NormalizedDifference("B8", "B4").Rename("ndvi")
		})
		assert.Equal(t, []string{"ndvi"}, mapped.Mosaic().Bands())
	})
}

func TestCollectionComposites(t *testing.T) {
	c := NewCollection("test").Select("B4", "quality")

	mosaic := c.Mosaic()
	assert.Equal(t, "mosaic", mosaic.Graph().Op)
	assert.Equal(t, []string{"B4", "quality"}, mosaic.Bands())

	qm := c.QualityMosaic("quality")
	assert.Equal(t, "qualityMosaic", qm.Graph().Op)
	assert.Equal(t, "quality", qm.Graph().Args["band"])
}

func TestVisualize(t *testing.T) {
	v := Placeholder().Select("severity").Visualize(VisParams{
		Min:     0,
		Max:     4,
		Palette: []string{"00FF00", "FFFF00", "FFA500", "FF0000", "8B4513"},
	})

	root := v.Graph()
	assert.Equal(t, "visualize", root.Op)
	assert.Equal(t, float64(4), root.Args["max"])
	assert.Len(t, root.Args["palette"], 5)
}
