package qubo

import (
	"sort"

	"github.com/unicorn-sh/unicorn/pkg/bvg"
)

// Model is a fully synthesized QUBO instance: every gate in the bit-blasted
// graph is assigned a qubit and a penalty-term family; objective is forced
// to 1 via an extra linear bias so minimum energy corresponds to a
// satisfying, objective-true assignment. Inputs and BadStates record, per
// spec.md §6's Input-mapping and Bad-state-mapping file sections, which
// qubits correspond to which original (pre-bit-blast) nid.
type Model struct {
	NumQubits int
	Offset    float64          // additive energy constant; always 0 (Synth collects no gadget constants here)
	Terms     []Term
	Labels    map[Qubit]string   // best-effort names for reporting, not required for correctness
	Inputs    map[uint64][]Qubit // Input node's nid -> its qubits, LSB-first
	BadStates map[uint64]Qubit   // unrolled (step,bad) BadCond nid -> its qubit

	nodes map[Qubit]bvg.NodeID // qubit -> its bit-blasted node; lets EvaluateVectors simulate forward
}

// Synth walks every node reachable from objective, inputBits' bits, and
// badConds' nodes in the bit-blasted arena (which must contain only
// Const/Input/Not/And/Xor/Ite/State nodes — the output of pkg/bitblast,
// with Ite present wherever pkg/bitblast builds a mux, each of which this
// synthesizer expands into NOT, AND and OR gadgets over fresh internal
// qubits) and produces the QUBO penalizing any assignment
// that does not satisfy the whole gate netlist with objective==1. inputBits
// is typically bitblast.Blaster.InputBits(); badConds maps each unrolled
// BadCond's nid to its own bit-blasted 1-bit node (bb.Bits(cond.Node)[0]).
// Both may be nil for callers that only need the gate netlist itself.
func Synth(a *bvg.Arena, objective bvg.NodeID, inputBits map[uint64][]bvg.NodeID, badConds map[uint64]bvg.NodeID) *Model {
	qubits := make(map[bvg.NodeID]Qubit)
	labels := make(map[Qubit]string)
	var terms []Term
	next := Qubit(0)

	alloc := func(id bvg.NodeID) Qubit {
		if q, ok := qubits[id]; ok {
			return q
		}
		q := next
		next++
		qubits[id] = q
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
	// Visit every declared input bit and bad condition first so each gets a
	// qubit even if pruning left it unreachable from objective's own fanin.
	for _, bits := range inputBits {
		for _, id := range bits {
			visit(id)
		}
	}
	for _, id := range badConds {
		visit(id)
	}
	visit(objective)

	for _, id := range order {
		n := a.Node(id)
		out := alloc(id)
		switch n.Kind {
		case bvg.KindConst:
			terms = append(terms, constPenalty(out, n.Value)...)
		case bvg.KindInput, bvg.KindState:
			// free variable: no penalty term, the solver picks its value
		case bvg.KindNot:
			terms = append(terms, notPenalty(alloc(n.Args[0]), out)...)
		case bvg.KindAnd:
			terms = append(terms, andPenalty(alloc(n.Args[0]), alloc(n.Args[1]), out)...)
		case bvg.KindXor:
			terms = append(terms, xorPenalty(alloc(n.Args[0]), alloc(n.Args[1]), out)...)
		case bvg.KindIte:
			// Ite(cond,t,e) = (cond AND t) OR (NOT(cond) AND e); expand via
			// two AND gadgets, one NOT gadget, and an OR gadget, each
			// against a fresh internal qubit.
			cond, t, e := alloc(n.Args[0]), alloc(n.Args[1]), alloc(n.Args[2])
			notCond := next
			next++
			terms = append(terms, notPenalty(cond, notCond)...)
			condT := next
			next++
			terms = append(terms, andPenalty(cond, t, condT)...)
			notCondE := next
			next++
			terms = append(terms, andPenalty(notCond, e, notCondE)...)
			terms = append(terms, orPenalty(condT, notCondE, out)...)
		default:
			// Unexpected in a bit-blasted graph; treat as a free variable
			// rather than failing the whole synthesis.
		}
		labels[out] = n.Kind.String()
	}

	// Pin the objective qubit to 1: the whole point of the QUBO is "does a
	// bad state exist", so minimum-energy solutions are only meaningful
	// when objective==1 is also enforced.
	objQubit := qubits[objective]
	terms = append(terms, constPenalty(objQubit, 1)...)

	nodes := make(map[Qubit]bvg.NodeID, len(qubits))
	for id, q := range qubits {
		nodes[q] = id
	}

	inputs := make(map[uint64][]Qubit, len(inputBits))
	for nid, bits := range inputBits {
		qs := make([]Qubit, len(bits))
		for i, id := range bits {
			qs[i] = qubits[id]
		}
		inputs[nid] = qs
	}

	badStates := make(map[uint64]Qubit, len(badConds))
	for nid, id := range badConds {
		badStates[nid] = qubits[id]
	}

	return &Model{
		NumQubits: int(next),
		Offset:    0,
		Terms:     terms,
		Labels:    labels,
		Inputs:    inputs,
		BadStates: badStates,
		nodes:     nodes,
	}
}

// Energy evaluates the QUBO's energy for a given assignment (indexed by
// Qubit), used by tests and by EvaluateVectors to check candidate models.
func (m *Model) Energy(assign []int) float64 {
	var e float64
	for _, t := range m.Terms {
		if t.B == -1 {
			e += t.Coeff * float64(assign[t.A])
		} else {
			e += t.Coeff * float64(assign[t.A]) * float64(assign[t.B])
		}
	}
	return e
}

// SortedQubits returns every qubit index referenced by Terms, ascending.
func (m *Model) SortedQubits() []Qubit {
	seen := make(map[Qubit]bool)
	for _, t := range m.Terms {
		seen[t.A] = true
		if t.B != -1 {
			seen[t.B] = true
		}
	}
	out := make([]Qubit, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedInputNids returns Inputs' keys ascending — the order --inputs CSV
// decimals are assigned to "successive read-introduced inputs" in, since
// nids are minted in increasing, deterministic order as the program is
// built and unrolled.
func (m *Model) SortedInputNids() []uint64 {
	nids := make([]uint64, 0, len(m.Inputs))
	for nid := range m.Inputs {
		nids = append(nids, nid)
	}
	sort.Slice(nids, func(i, j int) bool { return nids[i] < nids[j] })
	return nids
}

// SortedBadNids returns BadStates' keys ascending, the order WriteFile
// emits the Bad-state mapping section in.
func (m *Model) SortedBadNids() []uint64 {
	nids := make([]uint64, 0, len(m.BadStates))
	for nid := range m.BadStates {
		nids = append(nids, nid)
	}
	sort.Slice(nids, func(i, j int) bool { return nids[i] < nids[j] })
	return nids
}
