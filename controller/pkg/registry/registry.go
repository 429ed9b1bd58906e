package registry

import (
	"sync"

	"github.com/pkg/errors"
	"go.aporeto.io/netinterceptor/controller/pkg/endpoint"
)

// KeyKind selects the index used by a lookup.
type KeyKind int

const (
	// ByID looks up the engine assigned id
	ByID KeyKind = iota
	// ByHandle looks up the native handle of the stack object
	ByHandle
	// ByContext looks up the opaque context of a connection
	ByContext
)

var (
	// ErrExhausted is returned when no id can be allocated
	ErrExhausted = errors.New("endpoint registry exhausted")
	// ErrHandleInUse is returned when a handle is registered twice
	ErrHandleInUse = errors.New("handle already registered")
)

// Registry owns every live endpoint and indexes it by id, native handle and
// opaque context. All index mutation happens under the registry lock, which
// is always taken before any endpoint lock.
type Registry struct {
	nextID    uint64
	capacity  int
	byID      map[uint64]endpoint.Endpoint
	byHandle  map[uint64]endpoint.Endpoint
	byContext map[uint64]*endpoint.Connection

	sync.RWMutex
}

// New returns a registry holding at most capacity endpoints.
func New(capacity int) *Registry {

	return &Registry{
		capacity:  capacity,
		byID:      map[uint64]endpoint.Endpoint{},
		byHandle:  map[uint64]endpoint.Endpoint{},
		byContext: map[uint64]*endpoint.Connection{},
	}
}

// allocateID returns an id that is not in use. Caller holds the lock.
func (r *Registry) allocateID() (uint64, error) {

	if len(r.byID) >= r.capacity {
		return 0, ErrExhausted
	}

	for {
		r.nextID++
		if r.nextID == 0 {
			continue
		}
		if _, ok := r.byID[r.nextID]; !ok {
			return r.nextID, nil
		}
	}
}

// CreateConnection registers a new connection endpoint. A zero context is not
// indexed.
func (r *Registry) CreateConnection(handle, context uint64) (*endpoint.Connection, error) {

	r.Lock()
	defer r.Unlock()

	if _, ok := r.byHandle[handle]; ok {
		return nil, ErrHandleInUse
	}

	id, err := r.allocateID()
	if err != nil {
		return nil, err
	}

	c := endpoint.NewConnection(id, handle, context)

	r.byID[id] = c
	r.byHandle[handle] = c
	if context != 0 {
		r.byContext[context] = c
	}

	return c, nil
}

// CreateAddress registers a new address endpoint.
func (r *Registry) CreateAddress(handle uint64, processID uint32) (*endpoint.Address, error) {

	r.Lock()
	defer r.Unlock()

	if _, ok := r.byHandle[handle]; ok {
		return nil, ErrHandleInUse
	}

	id, err := r.allocateID()
	if err != nil {
		return nil, err
	}

	a := endpoint.NewAddress(id, handle, processID)

	r.byID[id] = a
	r.byHandle[handle] = a

	return a, nil
}

// Lookup returns the endpoint registered under key. It never blocks on
// endpoint locks.
func (r *Registry) Lookup(kind KeyKind, key uint64) (endpoint.Endpoint, bool) {

	r.RLock()
	defer r.RUnlock()

	return r.lookup(kind, key)
}

func (r *Registry) lookup(kind KeyKind, key uint64) (endpoint.Endpoint, bool) {

	switch kind {
	case ByID:
		e, ok := r.byID[key]
		return e, ok
	case ByHandle:
		e, ok := r.byHandle[key]
		return e, ok
	case ByContext:
		c, ok := r.byContext[key]
		if !ok {
			return nil, false
		}
		return c, true
	}

	return nil, false
}

// Connection returns the connection endpoint registered under key.
func (r *Registry) Connection(kind KeyKind, key uint64) (*endpoint.Connection, bool) {

	e, ok := r.Lookup(kind, key)
	if !ok {
		return nil, false
	}

	c, ok := e.(*endpoint.Connection)
	return c, ok
}

// Address returns the address endpoint registered under key.
func (r *Registry) Address(kind KeyKind, key uint64) (*endpoint.Address, bool) {

	e, ok := r.Lookup(kind, key)
	if !ok {
		return nil, false
	}

	a, ok := e.(*endpoint.Address)
	return a, ok
}

// Destroy removes the endpoint from every index and hands it to the caller.
// Destroying an id that is not registered returns false.
func (r *Registry) Destroy(id uint64) (endpoint.Endpoint, bool) {

	r.Lock()
	defer r.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}

	delete(r.byID, id)
	if cur, ok := r.byHandle[e.Handle()]; ok && cur == e {
		delete(r.byHandle, e.Handle())
	}
	if c, ok := e.(*endpoint.Connection); ok && c.Context() != 0 {
		if cur, ok := r.byContext[c.Context()]; ok && cur == c {
			delete(r.byContext, c.Context())
		}
	}

	return e, true
}

// Range calls fn for every endpoint while holding the registry read lock. fn
// may take endpoint locks but must not call back into the registry.
func (r *Registry) Range(fn func(e endpoint.Endpoint) bool) {

	r.RLock()
	defer r.RUnlock()

	for _, e := range r.byID {
		if !fn(e) {
			return
		}
	}
}

// Connections returns a snapshot of the live connection endpoints.
func (r *Registry) Connections() []*endpoint.Connection {

	r.RLock()
	defer r.RUnlock()

	list := make([]*endpoint.Connection, 0, len(r.byID))
	for _, e := range r.byID {
		if c, ok := e.(*endpoint.Connection); ok {
			list = append(list, c)
		}
	}

	return list
}

// Addresses returns a snapshot of the live address endpoints.
func (r *Registry) Addresses() []*endpoint.Address {

	r.RLock()
	defer r.RUnlock()

	list := make([]*endpoint.Address, 0, len(r.byID))
	for _, e := range r.byID {
		if a, ok := e.(*endpoint.Address); ok {
			list = append(list, a)
		}
	}

	return list
}

// Len returns the number of live endpoints.
func (r *Registry) Len() int {

	r.RLock()
	defer r.RUnlock()

	return len(r.byID)
}
