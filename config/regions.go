package config

// Region represents a tracked county and its map placement
type Region struct {
	County    string    `json:"county"`
	State     string    `json:"state"`
	Center    []float64 `json:"center"`
	ZoomLevel int       `json:"zoom_level"`
}

// SupportedRegions is the list of counties tracked by the application
var SupportedRegions = []Region{
	{
		County:    "Ventura County",
		State:     "CA",
		Center:    []float64{34.3705, -119.1391},
		ZoomLevel: 10,
	},
	{
		County:    "Riverside County",
		State:     "CA",
		Center:    []float64{33.9533, -117.3962},
		ZoomLevel: 10,
	},
	// Add more counties here as needed
}

// GetCountyNames returns a list of supported county names
func GetCountyNames() []string {
	names := make([]string, len(SupportedRegions))
	for i, region := range SupportedRegions {
		names[i] = region.County
	}
	return names
}

// GetRegionByCounty returns a region configuration by county name
func GetRegionByCounty(county string) *Region {
	for _, region := range SupportedRegions {
		if region.County == county {
			return &region
		}
	}
	return nil
}
