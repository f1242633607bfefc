package nodes

import (
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
)

// Node is a remote gate timer reachable over HTTP, identified by address.
type Node struct {
	Address    string
	Name       string
	LastSeenAt time.Time
}

// nodeJSON keeps the field names the UI reads.
type nodeJSON struct {
	Address  string `json:"ipaddr"`
	Name     string `json:"name"`
	LastSeen int64  `json:"last_seen"`
}

func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeJSON{
		Address:  n.Address,
		Name:     n.Name,
		LastSeen: n.LastSeenAt.UnixMilli(),
	})
}

// Registry tracks known nodes in first-contact order. The order is meaningful:
// in RACE mode a node's position is its slot index.
// Not safe for concurrent use; the game coordinator serializes access.
type Registry struct {
	clock clockwork.Clock
	nodes []*Node
	index map[string]int
}

// NewRegistry creates an empty registry stamping liveness with clock.
func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock: clock,
		index: make(map[string]int),
	}
}

// Upsert returns the node at address, creating it if needed, and refreshes
// its name and last-seen time. The bool reports whether the node is new.
func (r *Registry) Upsert(address, name string) (*Node, bool) {
	now := r.clock.Now()
	if i, ok := r.index[address]; ok {
		n := r.nodes[i]
		n.Name = name
		n.LastSeenAt = now
		return n, false
	}

	n := &Node{Address: address, Name: name, LastSeenAt: now}
	r.index[address] = len(r.nodes)
	r.nodes = append(r.nodes, n)
	return n, true
}

// Touch refreshes the last-seen time of a known node.
func (r *Registry) Touch(address string) bool {
	i, ok := r.index[address]
	if !ok {
		return false
	}
	r.nodes[i].LastSeenAt = r.clock.Now()
	return true
}

// Find returns the node at address or nil.
func (r *Registry) Find(address string) *Node {
	if i, ok := r.index[address]; ok {
		return r.nodes[i]
	}
	return nil
}

// Index returns the registry position of address, or -1.
func (r *Registry) Index(address string) int {
	if i, ok := r.index[address]; ok {
		return i
	}
	return -1
}

// All returns the nodes in registry order.
func (r *Registry) All() []*Node {
	out := make([]*Node, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Len returns the number of known nodes.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// Online reports whether n was heard from within window.
func (r *Registry) Online(n *Node, window time.Duration) bool {
	return r.clock.Since(n.LastSeenAt) <= window
}
