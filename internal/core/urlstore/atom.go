// Package urlstore binds values to URL query parameters. An atom keeps a
// storage value and reconciles it with the value hydrated from its parameter
// on every read, so the URL stays the source of truth without discarding
// state the URL cannot express.
package urlstore

import (
	"fmt"
	"sync"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
)

// Options describes how a value of type T is stored under one parameter.
// U is the type the parameter hydrates into.
type Options[T, U any] struct {
	// Initial is the storage value before any write.
	Initial T
	// Param is the query parameter name.
	Param string
	// Hydrate parses the raw parameter. It must tolerate a missing parameter
	// (ok is false) and return a value equal to Initial for it.
	Hydrate func(raw string, ok bool) U
	// Dehydrate renders a value for the URL.
	Dehydrate func(v T) string
	// Reconcile merges the hydrated URL value with the current storage.
	Reconcile func(url U, storage T) T
	// Equal decides whether a read may return the stored value itself.
	Equal func(a, b T) bool
}

func (o Options[T, U]) validate() error {
	switch {
	case o.Param == "":
		return fmt.Errorf("%w: url atom requires a parameter name", model.ErrConfiguration)
	case o.Hydrate == nil || o.Dehydrate == nil:
		return fmt.Errorf("%w: url atom %q requires hydrate and dehydrate", model.ErrConfiguration, o.Param)
	case o.Reconcile == nil:
		return fmt.Errorf("%w: url atom %q requires reconcile", model.ErrConfiguration, o.Param)
	case o.Equal == nil:
		return fmt.Errorf("%w: url atom %q requires equal", model.ErrConfiguration, o.Param)
	}
	return nil
}

// ReconciledAtom is a value of type T bound to a parameter hydrating into U.
type ReconciledAtom[T, U any] struct {
	mu      sync.Mutex
	loc     Location
	opts    Options[T, U]
	storage T
}

// NewReconciledAtom binds opts.Param of loc. Reconcile is required.
func NewReconciledAtom[T, U any](loc Location, opts Options[T, U]) (*ReconciledAtom[T, U], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &ReconciledAtom[T, U]{loc: loc, opts: opts, storage: opts.Initial}, nil
}

// Atom is a ReconciledAtom whose parameter hydrates into the stored type.
type Atom[T any] struct {
	*ReconciledAtom[T, T]
}

// NewAtom binds opts.Param of loc. Without Reconcile the URL value wins.
func NewAtom[T any](loc Location, opts Options[T, T]) (*Atom[T], error) {
	if opts.Reconcile == nil {
		opts.Reconcile = func(url T, _ T) T { return url }
	}
	a, err := NewReconciledAtom(loc, opts)
	if err != nil {
		return nil, err
	}
	return &Atom[T]{a}, nil
}

// Param returns the parameter name the atom is bound to.
func (a *ReconciledAtom[T, U]) Param() string {
	return a.opts.Param
}

// Get returns the current value. When the reconciled value equals storage
// the stored value itself is returned. Reads never change storage.
func (a *ReconciledAtom[T, U]) Get() T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current()
}

func (a *ReconciledAtom[T, U]) current() T {
	raw, ok := a.loc.Param(a.opts.Param)
	reconciled := a.opts.Reconcile(a.opts.Hydrate(raw, ok), a.storage)
	if a.opts.Equal(a.storage, reconciled) {
		return a.storage
	}
	return reconciled
}

// Set writes v to the URL, then to storage.
func (a *ReconciledAtom[T, U]) Set(v T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.write(v)
}

// Update applies fn to the current value and writes the result.
func (a *ReconciledAtom[T, U]) Update(fn func(T) T) T {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := fn(a.current())
	a.write(next)
	return next
}

func (a *ReconciledAtom[T, U]) write(v T) {
	a.loc.SetParam(a.opts.Param, a.opts.Dehydrate(v))
	a.storage = v
}

// Storage returns the raw stored value without reconciling.
func (a *ReconciledAtom[T, U]) Storage() T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.storage
}
