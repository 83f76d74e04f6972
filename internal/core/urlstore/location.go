package urlstore

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// Location is the query-string half of the current URL.
type Location interface {
	// Param returns the raw value of name and whether it is present.
	Param(name string) (string, bool)
	// SetParam writes name. An empty value removes the parameter.
	SetParam(name, value string)
	// Encode renders the query string without the leading '?'.
	Encode() string
}

// MemoryLocation is a Location held in memory.
type MemoryLocation struct {
	mu     sync.RWMutex
	values url.Values
}

func NewMemoryLocation() *MemoryLocation {
	return &MemoryLocation{values: url.Values{}}
}

// ParseLocation builds a MemoryLocation from a query string. A leading '?'
// and a full URL are both accepted.
func ParseLocation(raw string) (*MemoryLocation, error) {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	return &MemoryLocation{values: values}, nil
}

func (l *MemoryLocation) Param(name string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	vs, ok := l.values[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (l *MemoryLocation) SetParam(name, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if value == "" {
		l.values.Del(name)
		return
	}
	l.values.Set(name, value)
}

func (l *MemoryLocation) Encode() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.values.Encode()
}

// DebouncedLocation forwards reads and writes to an inner Location at once
// and reports the resulting query string to a sink, coalescing bursts of
// writes into one notification.
type DebouncedLocation struct {
	inner    Location
	debounce func(func())
	sink     func(query string)
}

// NewDebouncedLocation notifies sink once writes to inner have been quiet
// for wait.
func NewDebouncedLocation(inner Location, wait time.Duration, sink func(query string)) *DebouncedLocation {
	return &DebouncedLocation{
		inner:    inner,
		debounce: debounce.New(wait),
		sink:     sink,
	}
}

func (l *DebouncedLocation) Param(name string) (string, bool) {
	return l.inner.Param(name)
}

func (l *DebouncedLocation) SetParam(name, value string) {
	l.inner.SetParam(name, value)
	if l.sink != nil {
		l.debounce(func() { l.sink(l.inner.Encode()) })
	}
}

func (l *DebouncedLocation) Encode() string {
	return l.inner.Encode()
}
