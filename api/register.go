package api

import (
	"sync"

	"github.com/ulala-x/playhouse/errors"
)

// IHandlerRegister is the registration surface controllers call from Init/
// InitBackend (spec 4.9: "Controllers declare message handlers by calling
// an IHandlerRegister.Add(msgId, fn) during an initialization hook").
type IHandlerRegister interface {
	Add(msgId string, fn HandlerFunc) error
	AddFilter(f Filter)
}

type registration struct {
	fn      HandlerFunc
	filters []Filter
}

// Register is the concrete IHandlerRegister: a msgId -> handler table that
// rejects duplicates at startup (spec 4.9: "The registry rejects
// duplicates (fails startup with DuplicateHandler)").
type Register struct {
	mu          sync.RWMutex
	handlers    map[string]*registration
	nodeFilters []Filter
}

// NewRegister builds an empty handler registry.
func NewRegister() *Register {
	return &Register{handlers: make(map[string]*registration)}
}

// Add registers fn for msgId, or returns DuplicateHandler if msgId is
// already registered.
func (r *Register) Add(msgId string, fn HandlerFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[msgId]; exists {
		return errors.DuplicateHandler(msgId)
	}
	r.handlers[msgId] = &registration{fn: fn}
	return nil
}

// AddFilter appends a node-level filter, applied to every handler. There is
// no way to declare controller-level filters.
func (r *Register) AddFilter(f Filter) {
	r.mu.Lock()
	r.nodeFilters = append(r.nodeFilters, f)
	r.mu.Unlock()
}

// Lookup returns the handler for msgId wrapped in the node-level filters,
// the first-added filter outermost. The chain is rebuilt on every call;
// no per-registration filters are applied.
func (r *Register) Lookup(msgId string) (HandlerFunc, bool) {
	r.mu.RLock()
	reg, ok := r.handlers[msgId]
	nodeFilters := r.nodeFilters
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return chain(reg.fn, nodeFilters), true
}

func chain(fn HandlerFunc, filters []Filter) HandlerFunc {
	for i := len(filters) - 1; i >= 0; i-- {
		fn = filters[i](fn)
	}
	return fn
}
