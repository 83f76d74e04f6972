package analysis

import (
	"sync"
	"sync/atomic"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
)

// Listener receives the state of one layer after every transition.
type Listener func(state model.AnalysisState)

// emitter is the per-layer pub-sub of an operation. It keeps the last state
// and replays it to each new subscriber. Transitions are serialized and
// computed from the latest snapshot, so a subscriber never observes
// progress going backwards.
type emitter struct {
	// deliverMu orders a transition together with its delivery.
	deliverMu sync.Mutex

	mu      sync.Mutex
	state   model.AnalysisState
	version uint64
	subs    map[uint64]*subscriber
	nextID  uint64

	closed atomic.Bool
}

type subscriber struct {
	mu     sync.Mutex
	fn     Listener
	last   uint64
	active atomic.Bool
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[uint64]*subscriber)}
}

// transition applies fn to the current state. fn returns false to leave the
// state unchanged. Nothing happens once the emitter is closed.
func (e *emitter) transition(fn func(prev model.AnalysisState) (model.AnalysisState, bool)) bool {
	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()

	if e.closed.Load() {
		return false
	}

	e.mu.Lock()
	next, ok := fn(e.state)
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.state = next
	e.version++
	version := e.version
	subs := make([]*subscriber, 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	for _, s := range subs {
		e.deliver(s, version, next)
	}
	return true
}

// subscribe registers fn and replays the current state to it.
func (e *emitter) subscribe(fn Listener) (off func()) {
	s := &subscriber{fn: fn}
	s.active.Store(true)

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = s
	state, version := e.state, e.version
	e.mu.Unlock()

	if version > 0 {
		e.deliver(s, version, state)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Store(false)
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

// deliver hands state to s unless s already saw the same or a later version.
func (e *emitter) deliver(s *subscriber, version uint64, state model.AnalysisState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.closed.Load() || !s.active.Load() || version <= s.last {
		return
	}
	s.last = version
	s.fn(state)
}

func (e *emitter) snapshot() model.AnalysisState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// close stops every further delivery, including replays.
func (e *emitter) close() {
	e.closed.Store(true)
}

// clear drops every subscriber.
func (e *emitter) clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, s := range e.subs {
		s.active.Store(false)
		delete(e.subs, id)
	}
}

func (e *emitter) subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
