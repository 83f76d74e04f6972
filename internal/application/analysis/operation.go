package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
)

// Operation is one running analysis: a set of layers analysed for one date
// range and area. Each layer has its own state stream.
type Operation struct {
	id       string
	request  Request
	ctx      context.Context
	cancel   context.CancelFunc
	emitters map[string]*emitter
	done     chan struct{}

	offMu sync.Mutex
	offs  []func()
}

func (op *Operation) ID() string {
	return op.id
}

func (op *Operation) Request() Request {
	return op.request
}

// On subscribes fn to the states of layerID. The last known state is
// replayed at once.
func (op *Operation) On(layerID string, fn Listener) (off func(), err error) {
	e, ok := op.emitters[layerID]
	if !ok {
		return nil, fmt.Errorf("%w: layer %q is not part of operation %s", model.ErrInvalidRequest, layerID, op.id)
	}
	return op.track(e.subscribe(fn)), nil
}

// OnAny subscribes fn to the states of every layer.
func (op *Operation) OnAny(fn func(layerID string, state model.AnalysisState)) (off func()) {
	offs := make([]func(), 0, len(op.emitters))
	for _, layer := range op.request.Layers {
		id := layer.ID
		offs = append(offs, op.emitters[id].subscribe(func(s model.AnalysisState) { fn(id, s) }))
	}
	return op.track(func() {
		for _, off := range offs {
			off()
		}
	})
}

func (op *Operation) track(off func()) func() {
	op.offMu.Lock()
	op.offs = append(op.offs, off)
	op.offMu.Unlock()
	return off
}

// State returns the last state of layerID.
func (op *Operation) State(layerID string) (model.AnalysisState, bool) {
	e, ok := op.emitters[layerID]
	if !ok {
		return model.AnalysisState{}, false
	}
	return e.snapshot(), true
}

// States returns the last state of every layer.
func (op *Operation) States() map[string]model.AnalysisState {
	out := make(map[string]model.AnalysisState, len(op.emitters))
	for id, e := range op.emitters {
		out[id] = e.snapshot()
	}
	return out
}

// Cancel aborts in-flight requests of the operation and silences every
// layer. Shared cache flights keep running for other operations.
func (op *Operation) Cancel() {
	for _, e := range op.emitters {
		e.close()
	}
	op.cancel()
}

// Done is closed once every layer has finished or given up.
func (op *Operation) Done() <-chan struct{} {
	return op.done
}

// Wait blocks until the operation is done or ctx ends.
func (op *Operation) Wait(ctx context.Context) error {
	select {
	case <-op.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
	}
}

// Close cancels the operation and removes every subscription.
func (op *Operation) Close() {
	op.Cancel()

	op.offMu.Lock()
	offs := op.offs
	op.offs = nil
	op.offMu.Unlock()

	for _, off := range offs {
		off()
	}
	for _, e := range op.emitters {
		e.clear()
	}
}

// Subscribers returns the number of live subscriptions across all layers.
func (op *Operation) Subscribers() int {
	n := 0
	for _, e := range op.emitters {
		n += e.subscribers()
	}
	return n
}
