package timeline

import (
	"time"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
)

// CountInRange returns how many observations of data fall inside the
// inclusive range [start, end]. Enumerated domains count their instants; a
// periodic dataset counts one observation per density period its extent
// shares with the range.
func CountInRange(data model.DatasetData, start, end time.Time) int {
	if end.Before(start) || len(data.Domain) == 0 {
		return 0
	}
	if !data.IsPeriodic {
		n := 0
		for _, t := range data.Domain {
			if !t.Before(start) && !t.After(end) {
				n++
			}
		}
		return n
	}

	first, _ := data.First()
	last, _ := data.Last()
	clamped, ok := ClampRange(model.DateRange{Start: start, End: end}, []time.Time{first, last})
	if !ok {
		return 0
	}

	n := 0
	last = BlockBoundaries(clamped.End, data.TimeDensity).Start
	for p := BlockBoundaries(clamped.Start, data.TimeDensity).Start; !p.After(last); p = nextPeriod(p, data.TimeDensity) {
		n++
	}
	return n
}

func nextPeriod(t time.Time, density model.TimeDensity) time.Time {
	switch density {
	case model.DensityMonth:
		return t.AddDate(0, 1, 0)
	case model.DensityYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// ClampRange limits r to the extent of a sorted domain. It reports false
// when the two do not overlap.
func ClampRange(r model.DateRange, domain []time.Time) (model.DateRange, bool) {
	if len(domain) == 0 {
		return model.DateRange{}, false
	}
	lo, hi := domain[0], domain[len(domain)-1]
	if r.End.Before(lo) || r.Start.After(hi) {
		return model.DateRange{}, false
	}

	out := r
	if out.Start.Before(lo) {
		out.Start = lo
	}
	if out.End.After(hi) {
		out.End = hi
	}
	return out, true
}
