package timeline

import (
	"time"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
)

// DefaultMinBlockSize is the narrowest block, in pixels, drawn without
// merging into its neighbour.
const DefaultMinBlockSize = 4.0

// Block is one drawn period of a dataset's domain. Start and End are the
// first and last instants covered; a merged block spans several periods.
type Block struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LumpInput is the input of LumpBlocks.
type LumpInput struct {
	// Domain must be sorted ascending. It is not sorted here.
	Domain      []time.Time
	XScaled     func(time.Time) float64
	TimeDensity model.TimeDensity
	// MinBlockSize defaults to DefaultMinBlockSize when zero.
	MinBlockSize float64
}

// LumpResult holds the blocks to draw and whether any were merged.
type LumpResult struct {
	Blocks    []Block `json:"blocks"`
	WasLumped bool    `json:"wasLumped"`
}
