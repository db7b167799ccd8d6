// Package quarc synthesizes a reversible, gate-model quantum circuit from a
// bit-blasted boolean graph, per spec.md §4.8. Every irreversible boolean
// gate (AND, OR via De Morgan, XOR) is compiled to Toffoli/CNOT gates over
// one fresh ancilla qubit per gate output, plus a designated input qubit
// per INPUT node and a single measurement line for the objective.
package quarc

import (
	"sort"

	"github.com/unicorn-sh/unicorn/pkg/bvg"
)

// GateKind names a reversible primitive.
type GateKind int

const (
	GateX GateKind = iota
	GateCNOT
	GateToffoli
)

// Gate is one reversible operation: X/CNOT/Toffoli over Qubits, last entry
// is always the target.
type Gate struct {
	Kind   GateKind
	Qubits []int // controls..., target
}

// Circuit is a synthesized reversible network: NumQubits wires, Gates
// applied in order, InputQubits naming which wires correspond to which
// bit-blasted Input node (by nid, for stable labeling), and Measure naming
// the single output wire corresponding to the objective bit.
type Circuit struct {
	NumQubits   int
	Gates       []Gate
	InputQubits map[uint64]int // Input node's Nid -> wire index
	Measure     int
}

// Synth builds a circuit computing objective (a 1-bit node in a bit-blasted
// arena — only Const/Input/Not/And/Xor/Ite nodes are expected) into a
// single measurement qubit, allocating one ancilla per non-leaf gate (two
// for Ite) so
// every operation is reversible (nothing is ever overwritten in place).
func Synth(a *bvg.Arena, objective bvg.NodeID) *Circuit {
	c := &Circuit{InputQubits: make(map[uint64]int)}
	wire := make(map[bvg.NodeID]int)

	alloc := func() int {
		q := c.NumQubits
		c.NumQubits++
		return q
	}

	constWire := func(v uint64) int {
		q := alloc()
		if v&1 == 1 {
			c.Gates = append(c.Gates, Gate{Kind: GateX, Qubits: []int{q}})
		}
		return q
	}

	var order []bvg.NodeID
	visited := make(map[bvg.NodeID]bool)
	var visit func(bvg.NodeID)
	visit = func(id bvg.NodeID) {
		if id == bvg.Invalid || visited[id] {
			return
		}
		visited[id] = true
		n := a.Node(id)
		for _, arg := range n.Args {
			visit(arg)
		}
		order = append(order, id)
	}
	visit(objective)

	for _, id := range order {
		n := a.Node(id)
		switch n.Kind {
		case bvg.KindConst:
			wire[id] = constWire(n.Value)
		case bvg.KindInput:
			q := alloc()
			wire[id] = q
			c.InputQubits[n.Nid] = q
		case bvg.KindState:
			// opaque boundary value, same treatment as an externally
			// chosen input for the purposes of circuit synthesis
			wire[id] = alloc()
		case bvg.KindNot:
			in := wire[n.Args[0]]
			q := alloc()
			c.Gates = append(c.Gates, Gate{Kind: GateCNOT, Qubits: []int{in, q}})
			c.Gates = append(c.Gates, Gate{Kind: GateX, Qubits: []int{q}})
			wire[id] = q
		case bvg.KindAnd:
			x, y := wire[n.Args[0]], wire[n.Args[1]]
			q := alloc()
			c.Gates = append(c.Gates, Gate{Kind: GateToffoli, Qubits: []int{x, y, q}})
			wire[id] = q
		case bvg.KindXor:
			x, y := wire[n.Args[0]], wire[n.Args[1]]
			q := alloc()
			c.Gates = append(c.Gates, Gate{Kind: GateCNOT, Qubits: []int{x, q}})
			c.Gates = append(c.Gates, Gate{Kind: GateCNOT, Qubits: []int{y, q}})
			wire[id] = q
		case bvg.KindIte:
			cond, t, e := wire[n.Args[0]], wire[n.Args[1]], wire[n.Args[2]]
			// out = (cond AND t) XOR (NOT(cond) AND e); build with two
			// Toffolis gated on cond and its complement.
			notCond := alloc()
			c.Gates = append(c.Gates, Gate{Kind: GateCNOT, Qubits: []int{cond, notCond}})
			c.Gates = append(c.Gates, Gate{Kind: GateX, Qubits: []int{notCond}})
			out := alloc()
			c.Gates = append(c.Gates, Gate{Kind: GateToffoli, Qubits: []int{cond, t, out}})
			c.Gates = append(c.Gates, Gate{Kind: GateToffoli, Qubits: []int{notCond, e, out}})
			wire[id] = out
		default:
			wire[id] = alloc()
		}
	}

	c.Measure = wire[objective]
	return c
}

// InputOrder returns the InputQubits map's nids in ascending order.
func (c *Circuit) InputOrder() []uint64 {
	nids := make([]uint64, 0, len(c.InputQubits))
	for nid := range c.InputQubits {
		nids = append(nids, nid)
	}
	sort.Slice(nids, func(i, j int) bool { return nids[i] < nids[j] })
	return nids
}
