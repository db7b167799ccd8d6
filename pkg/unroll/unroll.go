// Package unroll flattens a model.Machine's State/Next cycle into an
// explicit sequence of per-step node sets s_0..s_N, materializing N copies
// of every state's update expression and cloning one fresh Input per
// consumed symbolic input per step. This is spec.md §4.4's Unroller.
package unroll

import (
	"fmt"

	"github.com/unicorn-sh/unicorn/pkg/bvg"
	"github.com/unicorn-sh/unicorn/pkg/model"
)

// Step holds, for one unrolled time step, the node id standing in for each
// state's value at that step.
type Step struct {
	Index   int
	Values  map[bvg.NodeID]bvg.NodeID // original state id -> this step's node
	BadHere []bvg.NodeID              // per-bad-predicate condition at this step
}

// BadCond names one individual (step, bad-predicate) instance: Nid is a
// stable, deterministically-assigned identifier (step-major, bad-index-minor
// order) distinct from every Input's nid, used downstream as the QUBO file
// format's "bad-nid" (spec.md §6) and as the unit genuine bad-state counting
// is done over — one declared Bad predicate instantiated at k steps produces
// k independent BadConds, since each may be violated by a different step.
type BadCond struct {
	Nid  uint64
	Node bvg.NodeID
}

// Unrolled is the flattened model: depth+1 steps (s_0 .. s_depth), the final
// disjunction of every bad condition across every step (the objective every
// downstream backend (SMT, QUBO, QUARC) is built to satisfy or refute), and
// the same conditions individually in BadConds for components that need to
// reason about which particular (step, bad) instance fired.
type Unrolled struct {
	Arena     *bvg.Arena
	Steps     []Step
	Objective bvg.NodeID // OR over all Bad_i across all steps
	BadConds  []BadCond
}

// Depth unrolls m for depth steps (producing depth+1 value-sets: the
// initial state plus depth transitions).
func Depth(m *model.Machine, depth int) (*Unrolled, error) {
	a := m.Arena
	u := &Unrolled{Arena: a}

	states := a.States()

	step0 := Step{Index: 0, Values: make(map[bvg.NodeID]bvg.NodeID, len(states))}
	for _, s := range states {
		init := a.Node(s).Init
		if init == bvg.Invalid {
			step0.Values[s] = s // no declared initializer: treat the symbol itself as step 0's value
			continue
		}
		step0.Values[s] = init
	}
	u.Steps = append(u.Steps, step0)

	step0.BadHere = evalBadsAt(a, m, step0.Values)
	u.Steps[0] = step0
	var allBad []bvg.NodeID
	allBad = append(allBad, step0.BadHere...)

	prev := step0
	for i := 1; i <= depth; i++ {
		cur := Step{Index: i, Values: make(map[bvg.NodeID]bvg.NodeID, len(states))}
		for _, s := range states {
			nextExpr := a.Next(s)
			if nextExpr == bvg.Invalid {
				cur.Values[s] = prev.Values[s]
				continue
			}
			cloned, err := cloneAt(a, nextExpr, prev.Values, i)
			if err != nil {
				return nil, err
			}
			cur.Values[s] = cloned
		}
		cur.BadHere = evalBadsAt(a, m, cur.Values)
		allBad = append(allBad, cur.BadHere...)
		u.Steps = append(u.Steps, cur)
		prev = cur
	}

	obj, err := orAll(a, allBad)
	if err != nil {
		return nil, err
	}
	u.Objective = obj

	var nid uint64
	for _, step := range u.Steps {
		for _, cond := range step.BadHere {
			u.BadConds = append(u.BadConds, BadCond{Nid: nid, Node: cond})
			nid++
		}
	}
	return u, nil
}

// evalBadsAt substitutes this step's state values into every declared bad
// predicate's condition and returns the resulting per-step conditions.
func evalBadsAt(a *bvg.Arena, m *model.Machine, values map[bvg.NodeID]bvg.NodeID) []bvg.NodeID {
	var out []bvg.NodeID
	for _, bad := range m.Bads {
		cond := a.Node(bad).Args[0]
		cloned, err := cloneAt(a, cond, values, -1)
		if err != nil {
			continue
		}
		out = append(out, cloned)
	}
	return out
}

// cloneAt rebuilds the DAG rooted at id, substituting any State node with
// its value at the given step (from values) and minting a fresh Input node
// (a distinct nid) for every Input encountered, once per unrolled step —
// each step's externally-chosen values are independent choices. step<0 is
// used for bad-condition evaluation, which never touches Input nodes
// freshly (they are already resolved by the state substitution below it).
func cloneAt(a *bvg.Arena, id bvg.NodeID, values map[bvg.NodeID]bvg.NodeID, step int) (bvg.NodeID, error) {
	memo := make(map[bvg.NodeID]bvg.NodeID)
	var rec func(bvg.NodeID) (bvg.NodeID, error)
	rec = func(id bvg.NodeID) (bvg.NodeID, error) {
		if v, ok := memo[id]; ok {
			return v, nil
		}
		n := a.Node(id)
		if n.Kind == bvg.KindState {
			if v, ok := values[id]; ok {
				memo[id] = v
				return v, nil
			}
		}
		var result bvg.NodeID
		var err error
		switch n.Kind {
		case bvg.KindConst:
			result = id
		case bvg.KindInput:
			if step < 0 {
				result = id
			} else {
				result = a.MkInput(n.Width)
			}
		case bvg.KindArrayConst:
			result = id
		case bvg.KindNot:
			x, e := rec(n.Args[0])
			if e != nil {
				return bvg.Invalid, e
			}
			result, err = a.MkNot(x)
		case bvg.KindNeg:
			x, e := rec(n.Args[0])
			if e != nil {
				return bvg.Invalid, e
			}
			result, err = a.MkNeg(x)
		case bvg.KindExt:
			x, e := rec(n.Args[0])
			if e != nil {
				return bvg.Invalid, e
			}
			result, err = a.MkExt(x, n.Width, n.ExtKind)
		case bvg.KindSlice:
			x, e := rec(n.Args[0])
			if e != nil {
				return bvg.Invalid, e
			}
			result, err = a.MkSlice(x, n.Hi, n.Lo)
		case bvg.KindAnd, bvg.KindOr, bvg.KindXor, bvg.KindSll, bvg.KindSrl, bvg.KindSra,
			bvg.KindAdd, bvg.KindSub, bvg.KindMul, bvg.KindUdiv, bvg.KindUrem,
			bvg.KindSdiv, bvg.KindSrem, bvg.KindEq, bvg.KindUlt, bvg.KindUlte,
			bvg.KindSlt, bvg.KindSlte:
			x, e := rec(n.Args[0])
			if e != nil {
				return bvg.Invalid, e
			}
			y, e := rec(n.Args[1])
			if e != nil {
				return bvg.Invalid, e
			}
			result, err = binByKind(a, n.Kind, x, y)
		case bvg.KindIte:
			c, e := rec(n.Args[0])
			if e != nil {
				return bvg.Invalid, e
			}
			t, e := rec(n.Args[1])
			if e != nil {
				return bvg.Invalid, e
			}
			el, e := rec(n.Args[2])
			if e != nil {
				return bvg.Invalid, e
			}
			result, err = a.MkIte(c, t, el)
		case bvg.KindRead:
			arr, e := rec(n.Args[0])
			if e != nil {
				return bvg.Invalid, e
			}
			idx, e := rec(n.Args[1])
			if e != nil {
				return bvg.Invalid, e
			}
			result, err = a.MkRead(arr, idx)
		case bvg.KindWrite:
			arr, e := rec(n.Args[0])
			if e != nil {
				return bvg.Invalid, e
			}
			idx, e := rec(n.Args[1])
			if e != nil {
				return bvg.Invalid, e
			}
			val, e := rec(n.Args[2])
			if e != nil {
				return bvg.Invalid, e
			}
			result, err = a.MkWrite(arr, idx, val)
		case bvg.KindState:
			// reached only when this state has no substitution at this
			// step (e.g. a register that was never in `values`, which
			// should not happen); fall back to identity.
			result = id
		default:
			result = id
		}
		if err != nil {
			return bvg.Invalid, err
		}
		memo[id] = result
		return result, nil
	}
	return rec(id)
}

func binByKind(a *bvg.Arena, k bvg.Kind, x, y bvg.NodeID) (bvg.NodeID, error) {
	switch k {
	case bvg.KindAnd:
		return a.MkAnd(x, y)
	case bvg.KindOr:
		return a.MkOr(x, y)
	case bvg.KindXor:
		return a.MkXor(x, y)
	case bvg.KindSll:
		return a.MkSll(x, y)
	case bvg.KindSrl:
		return a.MkSrl(x, y)
	case bvg.KindSra:
		return a.MkSra(x, y)
	case bvg.KindAdd:
		return a.MkAdd(x, y)
	case bvg.KindSub:
		return a.MkSub(x, y)
	case bvg.KindMul:
		return a.MkMul(x, y)
	case bvg.KindUdiv:
		return a.MkUdiv(x, y)
	case bvg.KindUrem:
		return a.MkUrem(x, y)
	case bvg.KindSdiv:
		return a.MkSdiv(x, y)
	case bvg.KindSrem:
		return a.MkSrem(x, y)
	case bvg.KindEq:
		return a.MkEq(x, y)
	case bvg.KindUlt:
		return a.MkUlt(x, y)
	case bvg.KindUlte:
		return a.MkUlte(x, y)
	case bvg.KindSlt:
		return a.MkSlt(x, y)
	case bvg.KindSlte:
		return a.MkSlte(x, y)
	}
	return bvg.Invalid, fmt.Errorf("unroll: unhandled binary kind %s", k)
}

func orAll(a *bvg.Arena, conds []bvg.NodeID) (bvg.NodeID, error) {
	if len(conds) == 0 {
		return a.MkConst(1, 0), nil
	}
	acc := conds[0]
	for _, c := range conds[1:] {
		next, err := a.MkOr(acc, c)
		if err != nil {
			return bvg.Invalid, err
		}
		acc = next
	}
	return acc, nil
}
