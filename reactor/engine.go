package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/avgx/pion/vocabulary"
)

type graphNode struct {
	id      string
	typ     NodeType
	reactor Reactor
	running atomic.Bool
	outputs []string // downstream ids, in declared-connection order

	inflight  sync.WaitGroup
	eventsIn  atomic.Uint64
	eventsOut atomic.Uint64
}

// Engine is pion's ReactorEngine (spec §4.8). Structural mutation
// (add/remove reactor, add connection) is serialized by the same
// mutex that protects the node table; delivery acquires only a read
// lock over a snapshot of each node's output list before releasing it
// and calling downstream Process functions, so a long-running
// reactor never blocks the graph's other traversals. A node's running
// flag is its own atomic.Bool rather than being covered by that lock,
// since Start/Stop can toggle it concurrently with an in-flight
// Deliver walking the snapshot.
type Engine struct {
	mu    sync.RWMutex
	nodes map[string]*graphNode
	vocab vocabulary.Vocabulary
}

// New constructs an empty Engine.
func New(vocab vocabulary.Vocabulary) *Engine {
	return &Engine{nodes: make(map[string]*graphNode), vocab: vocab}
}

// AddReactor registers r under id with the given node type (spec
// §4.8 add_reactor). A duplicate id is rejected.
func (e *Engine) AddReactor(id string, typ NodeType, r Reactor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.nodes[id]; exists {
		return fmt.Errorf("reactor %q already registered", id)
	}
	e.nodes[id] = &graphNode{id: id, typ: typ, reactor: r}
	if e.vocab != nil {
		r.UpdateVocabulary(e.vocab)
	}
	return nil
}

// RemoveReactor unlinks id from the graph immediately, then blocks
// until any delivery already in progress against it finishes (spec
// §4.8: "Removal blocks until the reactor's in-flight events drain").
func (e *Engine) RemoveReactor(id string) error {
	e.mu.Lock()
	node, ok := e.nodes[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("reactor %q not found", id)
	}
	delete(e.nodes, id)
	for _, n := range e.nodes {
		n.outputs = removeString(n.outputs, id)
	}
	e.mu.Unlock()

	node.inflight.Wait()
	return nil
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// reachable reports whether to is reachable from from by following
// outputs, used to reject connections that would create a cycle.
// Caller must hold e.mu.
func (e *Engine) reachable(from, to string) bool {
	seen := make(map[string]bool)
	var visit func(string) bool
	visit = func(id string) bool {
		if id == to {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		node, ok := e.nodes[id]
		if !ok {
			return false
		}
		for _, next := range node.outputs {
			if visit(next) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

// AddConnection declares u -> v: every event emitted by u is
// delivered to v.Process. Rejected if it would create a cycle (spec
// §4.8 add_connection).
func (e *Engine) AddConnection(u, v string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	un, ok := e.nodes[u]
	if !ok {
		return fmt.Errorf("reactor %q not found", u)
	}
	if _, ok := e.nodes[v]; !ok {
		return fmt.Errorf("reactor %q not found", v)
	}
	if u == v || e.reachable(v, u) {
		return fmt.Errorf("connection %s -> %s would create a cycle", u, v)
	}
	un.outputs = append(un.outputs, v)
	return nil
}

// Start marks id as running; a started reactor receives delivered
// events again.
func (e *Engine) Start(id string) error { return e.setRunning(id, true) }

// Stop marks id as stopped; events delivered to it are dropped but
// UpdateVocabulary calls still reach it.
func (e *Engine) Stop(id string) error { return e.setRunning(id, false) }

func (e *Engine) setRunning(id string, running bool) error {
	e.mu.RLock()
	node, ok := e.nodes[id]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("reactor %q not found", id)
	}
	node.running.Store(running)
	return nil
}

// StartAll/StopAll toggle every registered reactor at once, for the
// daemon's top-level graph lifecycle.
func (e *Engine) StartAll() { e.setAllRunning(true) }
func (e *Engine) StopAll()  { e.setAllRunning(false) }

func (e *Engine) setAllRunning(running bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, n := range e.nodes {
		n.running.Store(running)
	}
}

// UpdateVocabulary forwards v to every registered reactor, running or
// not (spec §4.8's lifecycle-call exception to "stopped drops events").
func (e *Engine) UpdateVocabulary(v vocabulary.Vocabulary) {
	e.mu.Lock()
	e.vocab = v
	nodes := make([]*graphNode, 0, len(e.nodes))
	for _, n := range e.nodes {
		nodes = append(nodes, n)
	}
	e.mu.Unlock()

	for _, n := range nodes {
		n.reactor.UpdateVocabulary(v)
	}
}

// Deliver emits ev from source, synchronously calling Process on each
// of source's declared downstream reactors in connection order (spec
// §5's ordering guarantee: "Events emitted by u are delivered to each
// v in declared-connection order, synchronously on the thread that
// invoked u.deliver(event)").
func (e *Engine) Deliver(source string, ev *Event) {
	e.mu.RLock()
	node, ok := e.nodes[source]
	if !ok {
		e.mu.RUnlock()
		return
	}
	outs := append([]string(nil), node.outputs...)
	e.mu.RUnlock()
	node.eventsOut.Add(1)

	for _, id := range outs {
		e.mu.RLock()
		target, ok := e.nodes[id]
		e.mu.RUnlock()
		if !ok {
			continue
		}
		e.deliverTo(target, ev)
	}
}

func (e *Engine) deliverTo(node *graphNode, ev *Event) {
	node.inflight.Add(1)
	defer node.inflight.Done()

	if !node.running.Load() {
		return
	}
	node.eventsIn.Add(1)
	ev.Retain()
	defer ev.Release()
	node.reactor.Process(ev)
}

// Stats reports the {id, type, running, events_in, events_out} tuple
// for every registered reactor, backing the supplemented
// ReactorEngine.Stats() query endpoint.
type Stats struct {
	ID        string
	Type      NodeType
	Running   bool
	EventsIn  uint64
	EventsOut uint64
}

func (e *Engine) Stats() []Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Stats, 0, len(e.nodes))
	for _, n := range e.nodes {
		out = append(out, Stats{
			ID:        n.id,
			Type:      n.typ,
			Running:   n.running.Load(),
			EventsIn:  n.eventsIn.Load(),
			EventsOut: n.eventsOut.Load(),
		})
	}
	return out
}
