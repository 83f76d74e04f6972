package model

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

const (
	GeometryPolygon      = "Polygon"
	GeometryMultiPolygon = "MultiPolygon"
)

// AOI is the area of interest of an analysis, a GeoJSON polygon or multipolygon.
type AOI struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseAOI decodes a GeoJSON geometry, or the geometry of a Feature.
func ParseAOI(data []byte) (AOI, error) {
	var probe struct {
		Type     string `json:"type"`
		Geometry *AOI   `json:"geometry"`
		Features []struct {
			Geometry AOI `json:"geometry"`
		} `json:"features"`
	}
	if err := sonic.Unmarshal(data, &probe); err != nil {
		return AOI{}, fmt.Errorf("%w: aoi is not valid json: %w", ErrInvalidRequest, err)
	}

	var aoi AOI
	switch probe.Type {
	case "Feature":
		if probe.Geometry == nil {
			return AOI{}, fmt.Errorf("%w: aoi feature has no geometry", ErrInvalidRequest)
		}
		aoi = *probe.Geometry
	case "FeatureCollection":
		if len(probe.Features) != 1 {
			return AOI{}, fmt.Errorf("%w: aoi feature collection must hold exactly one feature, got %d",
				ErrInvalidRequest, len(probe.Features))
		}
		aoi = probe.Features[0].Geometry
	default:
		if err := sonic.Unmarshal(data, &aoi); err != nil {
			return AOI{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return aoi, aoi.Validate()
}

// Validate checks the geometry type and that coordinates are present.
func (a AOI) Validate() error {
	if a.Type != GeometryPolygon && a.Type != GeometryMultiPolygon {
		return fmt.Errorf("%w: aoi must be a Polygon or MultiPolygon, got %q", ErrInvalidRequest, a.Type)
	}
	if len(a.Coordinates) == 0 || string(a.Coordinates) == "null" {
		return fmt.Errorf("%w: aoi has no coordinates", ErrInvalidRequest)
	}
	return nil
}

// IsZero reports whether no area was set.
func (a AOI) IsZero() bool {
	return a.Type == "" && len(a.Coordinates) == 0
}

// Equal compares two areas by type and coordinate bytes.
func (a AOI) Equal(o AOI) bool {
	return a.Type == o.Type && string(a.Coordinates) == string(o.Coordinates)
}
