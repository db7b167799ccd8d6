// Package prune implements the Constant-Folding/SMT Pruner: a bottom-up,
// deterministic traversal of the unrolled graph that replaces any node
// provably constant — by structural constant-folding alone, or (if a
// non-null smt.Backend and time budget remain) by an external solver query
// — with a Const node, and propagates that substitution forward through
// every node that depends on it, shrinking what the Bit-Blaster and
// QUBO/QUARC synthesizers must lower. Traversal order is fixed (ascending
// NodeID, the order nodes were created in — every argument necessarily has
// a smaller id than the node referencing it) so results are
// byte-identical run to run for a fixed budget, per spec.md §5.
package prune

import (
	"context"
	"sort"
	"time"

	"github.com/unicorn-sh/unicorn/pkg/bvg"
	"github.com/unicorn-sh/unicorn/pkg/smt"
)

// Options configures one pruning pass.
type Options struct {
	Backend smt.Backend   // smt.NullBackend{} disables solver queries entirely
	Budget  time.Duration // wall-clock budget T; zero means "no solver queries"
}

// Stats reports what one pruning pass accomplished, for CLI reporting.
type Stats struct {
	Visited        int
	FoldedStruct   int // already-constant via structural folding (no query needed)
	FoldedBySolver int
	Remaining      int
	BudgetExceeded bool
}

// Run walks every live node in a in creation order, asks the backend
// whether each non-constant node is in fact constant under the current
// path, and rebuilds the graph bottom-up with every provable constant
// substituted in (which the Mk* constructors' own constant-folding then
// propagates upward for free). It returns the rewritten root ids, in the
// same order as given.
func Run(ctx context.Context, a *bvg.Arena, roots []bvg.NodeID, opts Options) ([]bvg.NodeID, Stats, error) {
	backend := opts.Backend
	if backend == nil || opts.Budget <= 0 {
		backend = smt.NullBackend{}
	}
	var deadline time.Time
	if opts.Budget > 0 {
		deadline = time.Now().Add(opts.Budget)
	}

	var stats Stats
	rebuilt := make(map[bvg.NodeID]bvg.NodeID)
	arg := func(id bvg.NodeID) bvg.NodeID {
		if r, ok := rebuilt[id]; ok {
			return r
		}
		return id
	}

	ids := liveIDs(a)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		stats.Visited++
		n := a.Node(id)

		if n.Kind == bvg.KindConst {
			stats.FoldedStruct++
			continue
		}
		if n.Kind == bvg.KindState || n.Kind == bvg.KindInput || n.Kind == bvg.KindArrayConst {
			continue // never folded; nothing to rebuild, no args to substitute
		}

		rid, err := rebuildWithArgs(a, n, arg)
		if err != nil {
			return nil, stats, err
		}
		if rid != id {
			rebuilt[id] = rid
		}
		if a.Node(rid).Kind == bvg.KindConst {
			stats.FoldedStruct++
			continue
		}
		if n.Kind == bvg.KindBad {
			continue // bad predicates are never queried for constancy themselves
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			stats.BudgetExceeded = true
			continue
		}
		v, ok, err := backend.IsConst(ctx, a, rid)
		if err != nil {
			continue // solver errors are non-fatal (spec.md §7): leave the node symbolic
		}
		if ok {
			rebuilt[id] = a.MkConst(a.Node(rid).Width, v)
			stats.FoldedBySolver++
		}
	}
	stats.Remaining = stats.Visited - stats.FoldedStruct - stats.FoldedBySolver

	out := make([]bvg.NodeID, len(roots))
	for i, r := range roots {
		out[i] = arg(r)
	}
	return out, stats, nil
}

// rebuildWithArgs reconstructs n using its (possibly already-substituted)
// arguments via the arena's normal Mk* constructors, so any newly-constant
// argument is folded automatically by the same logic MkAdd et al. already
// apply when building fresh nodes.
func rebuildWithArgs(a *bvg.Arena, n *bvg.Node, arg func(bvg.NodeID) bvg.NodeID) (bvg.NodeID, error) {
	switch n.Kind {
	case bvg.KindNot:
		return a.MkNot(arg(n.Args[0]))
	case bvg.KindNeg:
		return a.MkNeg(arg(n.Args[0]))
	case bvg.KindExt:
		return a.MkExt(arg(n.Args[0]), n.Width, n.ExtKind)
	case bvg.KindSlice:
		return a.MkSlice(arg(n.Args[0]), n.Hi, n.Lo)
	case bvg.KindAnd:
		return a.MkAnd(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindOr:
		return a.MkOr(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindXor:
		return a.MkXor(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindSll:
		return a.MkSll(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindSrl:
		return a.MkSrl(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindSra:
		return a.MkSra(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindAdd:
		return a.MkAdd(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindSub:
		return a.MkSub(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindMul:
		return a.MkMul(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindUdiv:
		return a.MkUdiv(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindUrem:
		return a.MkUrem(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindSdiv:
		return a.MkSdiv(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindSrem:
		return a.MkSrem(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindEq:
		return a.MkEq(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindUlt:
		return a.MkUlt(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindUlte:
		return a.MkUlte(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindSlt:
		return a.MkSlt(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindSlte:
		return a.MkSlte(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindIte:
		return a.MkIte(arg(n.Args[0]), arg(n.Args[1]), arg(n.Args[2]))
	case bvg.KindRead:
		return a.MkRead(arg(n.Args[0]), arg(n.Args[1]))
	case bvg.KindWrite:
		return a.MkWrite(arg(n.Args[0]), arg(n.Args[1]), arg(n.Args[2]))
	case bvg.KindBad:
		return a.MkBad(arg(n.Args[0]), n.Label)
	default:
		return n.ID, nil
	}
}

// liveIDs returns every node id the arena has ever minted (1..Len()).
func liveIDs(a *bvg.Arena) []bvg.NodeID {
	count := a.Len()
	ids := make([]bvg.NodeID, count)
	for i := 0; i < count; i++ {
		ids[i] = bvg.NodeID(i + 1)
	}
	return ids
}
