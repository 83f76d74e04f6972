package timeline

import (
	"time"
)

// LinearScale maps a time domain onto a pixel range.
type LinearScale struct {
	d0, d1 time.Time
	r0, r1 float64
}

func NewLinearScale(d0, d1 time.Time, r0, r1 float64) LinearScale {
	return LinearScale{d0: d0, d1: d1, r0: r0, r1: r1}
}

// Scale returns the pixel position of t. A zero-length domain maps every
// instant to the start of the range.
func (s LinearScale) Scale(t time.Time) float64 {
	span := s.d1.Sub(s.d0)
	if span == 0 {
		return s.r0
	}
	return s.r0 + float64(t.Sub(s.d0))/float64(span)*(s.r1-s.r0)
}

// Invert returns the instant at pixel x.
func (s LinearScale) Invert(x float64) time.Time {
	if s.r1 == s.r0 {
		return s.d0
	}
	frac := (x - s.r0) / (s.r1 - s.r0)
	return s.d0.Add(time.Duration(frac * float64(s.d1.Sub(s.d0))))
}

// Domain returns the mapped time bounds.
func (s LinearScale) Domain() (time.Time, time.Time) {
	return s.d0, s.d1
}
