package timeline

import (
	"time"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

// BlockBoundaries returns the period of density containing t, computed in
// t's location.
func BlockBoundaries(t time.Time, density model.TimeDensity) Block {
	switch density {
	case model.DensityMonth:
		return Block{Start: util.StartOfMonth(t), End: util.EndOfMonth(t)}
	case model.DensityYear:
		return Block{Start: util.StartOfYear(t), End: util.EndOfYear(t)}
	default:
		return Block{Start: util.StartOfDay(t), End: util.EndOfDay(t)}
	}
}

// LumpBlocks turns each domain instant into its period block and merges a
// block into the one before it when the pixel gap between them is below
// half the minimum block size. Merges chain within a single pass.
func LumpBlocks(in LumpInput) LumpResult {
	blocks := make([]Block, 0, len(in.Domain))
	for _, t := range in.Domain {
		b := BlockBoundaries(t, in.TimeDensity)
		// Instants sharing a period yield one block, which is not a merge.
		if n := len(blocks); n > 0 && blocks[n-1] == b {
			continue
		}
		blocks = append(blocks, b)
	}
	return LumpRanges(blocks, in.XScaled, in.MinBlockSize)
}

// LumpRanges runs the merge pass of LumpBlocks over existing blocks.
// Running it on LumpBlocks output merges nothing.
func LumpRanges(blocks []Block, xScaled func(time.Time) float64, minBlockSize float64) LumpResult {
	if minBlockSize <= 0 {
		minBlockSize = DefaultMinBlockSize
	}
	if len(blocks) == 0 {
		return LumpResult{Blocks: []Block{}}
	}

	result := LumpResult{Blocks: make([]Block, 0, len(blocks))}
	current := blocks[0]
	for _, next := range blocks[1:] {
		if xScaled(next.Start)-xScaled(current.End) < minBlockSize/2 {
			if next.End.After(current.End) {
				current.End = next.End
			}
			result.WasLumped = true
			continue
		}
		result.Blocks = append(result.Blocks, current)
		current = next
	}
	result.Blocks = append(result.Blocks, current)
	return result
}

// DatasetBlocks returns the blocks drawn for a dataset. A periodic dataset
// is one continuous block from its first to its last period.
func DatasetBlocks(data model.DatasetData, xScaled func(time.Time) float64, minBlockSize float64) LumpResult {
	if data.IsPeriodic {
		first, ok := data.First()
		if !ok {
			return LumpResult{Blocks: []Block{}}
		}
		last, _ := data.Last()
		return LumpResult{Blocks: []Block{{
			Start: BlockBoundaries(first, data.TimeDensity).Start,
			End:   BlockBoundaries(last, data.TimeDensity).End,
		}}}
	}
	return LumpBlocks(LumpInput{
		Domain:       data.Domain,
		XScaled:      xScaled,
		TimeDensity:  data.TimeDensity,
		MinBlockSize: minBlockSize,
	})
}
