package core

import (
	"github.com/ethereum/go-ethereum/common"
)

// DelegationGraph holds the directed delegator -> delegate edges. At most one
// edge per delegator; a new delegation overwrites the prior one. Cycles are
// not prevented at insertion time, they are detected on resolution, so a
// stale edge can never brick the graph for unrelated identities.
type DelegationGraph struct {
	edges map[common.Address]*Delegation
}

func NewDelegationGraph() *DelegationGraph {
	return &DelegationGraph{
		edges: make(map[common.Address]*Delegation),
	}
}

// Set records delegator -> delegate, replacing any prior edge.
func (g *DelegationGraph) Set(delegator, delegate common.Address, now uint64) (*Delegation, error) {
	if delegator == delegate {
		return nil, ErrSelfDelegation
	}

	d := &Delegation{
		Delegator: delegator,
		Delegate:  delegate,
		Since:     now,
		Active:    true,
	}
	g.edges[delegator] = d

	return d, nil
}

// Revoke marks the delegator's edge inactive. The record is kept for
// provenance queries.
func (g *DelegationGraph) Revoke(delegator common.Address) error {
	d, ok := g.edges[delegator]
	if !ok || !d.Active {
		return ErrNoDelegation
	}

	d.Active = false
	return nil
}

// Get returns the delegation record for a delegator, revoked ones included.
func (g *DelegationGraph) Get(delegator common.Address) (*Delegation, bool) {
	d, ok := g.edges[delegator]
	return d, ok
}

// HasActive reports whether the delegator currently delegates its power.
func (g *DelegationGraph) HasActive(delegator common.Address) bool {
	d, ok := g.edges[delegator]
	return ok && d.Active
}

// Resolve follows active edges from the delegator to the ultimate delegate,
// the first identity with no active outgoing edge. A visited set bounds the
// walk: revisiting any identity means the graph contains a cycle.
func (g *DelegationGraph) Resolve(delegator common.Address) (common.Address, error) {
	visited := map[common.Address]struct{}{delegator: {}}

	current := delegator
	for {
		d, ok := g.edges[current]
		if !ok || !d.Active {
			return current, nil
		}

		next := d.Delegate
		if _, seen := visited[next]; seen {
			return common.Address{}, ErrCircularDelegation
		}
		visited[next] = struct{}{}
		current = next
	}
}

// Len returns the number of delegation records, revoked ones included.
func (g *DelegationGraph) Len() int {
	return len(g.edges)
}

// Delegators returns every delegator with a record, for snapshot indexing.
func (g *DelegationGraph) Delegators() []common.Address {
	out := make([]common.Address, 0, len(g.edges))
	for addr := range g.edges {
		out = append(out, addr)
	}
	return out
}

// restore reinstates a delegation loaded from the snapshot store.
func (g *DelegationGraph) restore(d *Delegation) {
	g.edges[d.Delegator] = d
}
