package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Policy decides which client serves requests that name no federation.
type Policy string

const (
	// PolicySole serves the only registered client and refuses to guess
	// when several are registered.
	PolicySole Policy = "sole"

	// PolicyFirst serves the earliest registered client.
	PolicyFirst Policy = "first"

	// PolicyPrimary serves the client marked primary.
	PolicyPrimary Policy = "primary"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicySole, PolicyFirst, PolicyPrimary:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// Selector names the client a request wants. The zero Selector asks for
// the default client.
type Selector struct {
	ID     federation.ID
	Prefix federation.Prefix
}

// ByID selects exactly the client with id.
func ByID(id federation.ID) Selector { return Selector{ID: id} }

// ByPrefix selects the single client whose id starts with p.
func ByPrefix(p federation.Prefix) Selector { return Selector{Prefix: p} }

// Default selects the client chosen by the registry policy.
func Default() Selector { return Selector{} }

// snapshot is never mutated after publication.
type snapshot struct {
	clients map[federation.ID]federation.Client
	order   []federation.ID
	primary federation.ID
}

// Registry maps federation ids to live clients.
//
// All public methods are thread-safe. Resolve is lock-free.
type Registry struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex
	policy  Policy
	logger  Logger
}

// New creates an empty registry using policy for default resolution.
func New(policy Policy) *Registry {
	r := &Registry{policy: policy, logger: noopLogger{}}
	r.current.Store(&snapshot{clients: map[federation.ID]federation.Client{}})
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Policy returns the default resolution policy.
func (r *Registry) Policy() Policy {
	return r.policy
}

// Insert binds a client to its federation id. An id is bound at most once.
func (r *Registry) Insert(client federation.Client) error {
	id := client.ID()

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load()
	if _, exists := old.clients[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}

	next := &snapshot{
		clients: make(map[federation.ID]federation.Client, len(old.clients)+1),
		order:   make([]federation.ID, 0, len(old.order)+1),
		primary: old.primary,
	}
	for k, v := range old.clients {
		next.clients[k] = v
	}
	next.order = append(next.order, old.order...)
	next.clients[id] = client
	next.order = append(next.order, id)

	r.current.Store(next)
	r.logger.Info("federation client registered", "federation_id", id, "clients", len(next.order))
	return nil
}

// SetPrimary marks a registered federation as the primary default.
func (r *Registry) SetPrimary(id federation.ID) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load()
	if _, ok := old.clients[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := *old
	next.primary = id
	r.current.Store(&next)
	return nil
}

// Primary returns the primary federation id, if any.
func (r *Registry) Primary() (federation.ID, bool) {
	p := r.current.Load().primary
	return p, p != ""
}

// Resolve returns the client named by sel.
func (r *Registry) Resolve(sel Selector) (federation.Client, error) {
	switch {
	case sel.ID != "":
		return r.Get(sel.ID)
	case sel.Prefix != "":
		return r.GetByPrefix(sel.Prefix)
	default:
		return r.Default()
	}
}

// Get returns the client bound to id.
func (r *Registry) Get(id federation.ID) (federation.Client, error) {
	if c, ok := r.current.Load().clients[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
}

// GetByPrefix returns the only client whose id starts with p.
func (r *Registry) GetByPrefix(p federation.Prefix) (federation.Client, error) {
	snap := r.current.Load()

	var match federation.Client
	for _, id := range snap.order {
		if !id.HasPrefix(p) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousPrefix, p)
		}
		match = snap.clients[id]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: prefix %s", ErrNotFound, p)
	}
	return match, nil
}

// Default returns the client chosen by the registry policy.
func (r *Registry) Default() (federation.Client, error) {
	snap := r.current.Load()
	if len(snap.order) == 0 {
		return nil, fmt.Errorf("%w: no federations joined", ErrNotFound)
	}

	switch r.policy {
	case PolicyFirst:
		return snap.clients[snap.order[0]], nil
	case PolicyPrimary:
		if snap.primary == "" {
			return nil, fmt.Errorf("%w: no primary federation set", ErrNoDefault)
		}
		return snap.clients[snap.primary], nil
	default:
		if len(snap.order) > 1 {
			return nil, fmt.Errorf("%w: %d federations joined, specify federationId", ErrNoDefault, len(snap.order))
		}
		return snap.clients[snap.order[0]], nil
	}
}

// IDs returns registered federation ids in join order.
func (r *Registry) IDs() []federation.ID {
	snap := r.current.Load()
	ids := make([]federation.ID, len(snap.order))
	copy(ids, snap.order)
	return ids
}

// Clients returns registered clients in join order.
func (r *Registry) Clients() []federation.Client {
	snap := r.current.Load()
	clients := make([]federation.Client, 0, len(snap.order))
	for _, id := range snap.order {
		clients = append(clients, snap.clients[id])
	}
	return clients
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	return len(r.current.Load().order)
}
