package bvg

import (
	"fmt"
	"strings"

	"github.com/unicorn-sh/unicorn/pkg/errs"
)

// Arena owns every Node ever created during compilation of one program. All
// other components hold NodeID values only; the arena is the single owner
// and nothing is freed before the final artifact is emitted.
type Arena struct {
	nodes        []*Node // index 0 unused (Invalid sentinel)
	structHash   map[string]NodeID
	nextInputNid uint64
	states       []NodeID
	nexts        map[NodeID]NodeID
	bads         []NodeID
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{
		nodes:      make([]*Node, 1), // reserve index 0
		structHash: make(map[string]NodeID),
		nexts:      make(map[NodeID]NodeID),
	}
}

// Node returns the node for id. Panics on an out-of-range id, which would
// indicate a programmer error elsewhere (ids never escape the arena that
// minted them).
func (a *Arena) Node(id NodeID) *Node {
	return a.nodes[id]
}

// Len returns the number of live nodes, excluding the reserved zero slot.
func (a *Arena) Len() int { return len(a.nodes) - 1 }

// States returns the state node ids in creation order.
func (a *Arena) States() []NodeID { return a.states }

// Bads returns the bad-predicate node ids in creation order.
func (a *Arena) Bads() []NodeID { return a.bads }

// Next returns the expression bound to state s, or Invalid if bind_next has
// not been called for it yet.
func (a *Arena) Next(s NodeID) NodeID { return a.nexts[s] }

func (a *Arena) intern(key string, build func(id NodeID) *Node) NodeID {
	if id, ok := a.structHash[key]; ok {
		return id
	}
	id := NodeID(len(a.nodes))
	n := build(id)
	n.ID = id
	a.nodes = append(a.nodes, n)
	a.structHash[key] = id
	return id
}

func argsKey(args ...NodeID) string {
	var b strings.Builder
	for _, a := range args {
		fmt.Fprintf(&b, "%d,", a)
	}
	return b.String()
}

// MkConst returns (interning) a width-w constant node with unsigned value v.
func (a *Arena) MkConst(w uint32, v uint64) NodeID {
	v = Mask(v, w)
	key := fmt.Sprintf("const|%d|%d", w, v)
	return a.intern(key, func(id NodeID) *Node {
		return &Node{Kind: KindConst, Width: w, Value: v}
	})
}

// MkInput creates a fresh width-w externally-chosen input node with a new
// stable nid. Inputs are never structurally shared (two calls always yield
// two distinct nodes, even with the same width) because each represents an
// independently chosen value.
func (a *Arena) MkInput(w uint32) NodeID {
	nid := a.nextInputNid
	a.nextInputNid++
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, &Node{ID: id, Kind: KindInput, Width: w, Nid: nid})
	return id
}

// MkState creates a fresh width-w state variable with optional initializer
// init (Invalid if the state has no declared initial value).
func (a *Arena) MkState(w uint32, init NodeID, label string) NodeID {
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, &Node{ID: id, Kind: KindState, Width: w, Init: init, Label: label})
	a.states = append(a.states, id)
	return id
}

// MkArrayState creates a fresh array-valued state variable (addrWidth-bit
// index, dataWidth-bit cells), used for the machine's single byte-addressed
// memory. It is still a KindState node so BindNext and the Next map treat
// it exactly like a scalar state; Read/Write only ever consult Width and
// AddrWidth, which this sets the same way MkArrayConst does.
func (a *Arena) MkArrayState(addrWidth, dataWidth uint32, init NodeID, label string) NodeID {
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, &Node{ID: id, Kind: KindState, Width: dataWidth, AddrWidth: addrWidth, Init: init, Label: label})
	a.states = append(a.states, id)
	return id
}

// BindNext binds state s to its next-step expression expr. Exactly one
// binding is expected per state; calling it twice for the same state
// overwrites the previous binding. The Model Builder binds each state once,
// after folding the per-PC contributions into a single ite-chain (see
// pkg/model).
func (a *Arena) BindNext(s, expr NodeID) error {
	sn := a.Node(s)
	if sn.Kind != KindState {
		return &errs.WidthError{Op: "bind_next", Got: nil, Expected: 0}
	}
	en := a.Node(expr)
	if en.Width != sn.Width {
		return &errs.WidthError{Op: "bind_next", Got: []int{int(en.Width)}, Expected: int(sn.Width)}
	}
	a.nexts[s] = expr
	return nil
}

// MkBad declares a named bad predicate over a 1-bit condition.
func (a *Arena) MkBad(cond NodeID, label string) (NodeID, error) {
	cn := a.Node(cond)
	if cn.Width != 1 {
		return Invalid, &errs.WidthError{Op: "mk_bad", Got: []int{int(cn.Width)}, Expected: 1}
	}
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, &Node{ID: id, Kind: KindBad, Width: 1, Args: []NodeID{cond}, Label: label})
	a.bads = append(a.bads, id)
	return id, nil
}
