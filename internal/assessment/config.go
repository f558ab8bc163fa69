package assessment

import "github.com/firewatch/burn-severity-pipeline/pkg/assess"

// Config holds assessment pipeline configuration
type Config struct {
	// CollectionID names the remote satellite collection.
	// Defaults to the harmonized Sentinel-2 surface reflectance collection.
	CollectionID string

	// Bands are selected from every acquisition at collection load.
	// Defaults cover the reflectance bands plus the cloud/scene masks the
	// mosaic strategies consume.
	Bands []string

	// CloudCeiling is the global scene cloud-percentage ceiling applied when
	// the candidate collection is built. Defaults to 100 (no filtering).
	CloudCeiling float64

	// MarginDays widens the fire period into before/after windows.
	// Defaults to 30.
	MarginDays int

	// Strategy is the default mosaic strategy for runs that don't name one.
	// Defaults to cloud_masked_light_mosaic.
	Strategy string

	// Palette colors the severity visual, class 0 through 4.
	Palette []string

	// QuicklookMaxPx bounds the severity quicklook's longest edge.
	// Defaults to 512.
	QuicklookMaxPx int

	// ContinueOnError keeps exporting remaining deliverables after one
	// fails. Off by default: the first failure aborts the run.
	ContinueOnError bool
}

// WithDefaults fills in default values for unset fields
func (c *Config) WithDefaults() {
	if c.CollectionID == "" {
		c.CollectionID = "COPERNICUS/S2_SR_HARMONIZED"
	}
	if len(c.Bands) == 0 {
		c.Bands = []string{"B2", "B3", "B4", "B8", "B12", "QA60", "SCL", "MSK_CLDPRB"}
	}
	if c.CloudCeiling == 0 {
		c.CloudCeiling = 100
	}
	if c.MarginDays == 0 {
		c.MarginDays = 30
	}
	if c.Strategy == "" {
		c.Strategy = assess.StrategyCloudMaskedLightMosaic
	}
	if len(c.Palette) == 0 {
		// Unburned green through Very High brown
		c.Palette = []string{"00FF00", "FFFF00", "FFA500", "FF0000", "8B4513"}
	}
	if c.QuicklookMaxPx == 0 {
		c.QuicklookMaxPx = 512
	}
}
