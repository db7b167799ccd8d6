package bvg

import "fmt"

// Env supplies concrete values for Input and State nodes during evaluation.
// Evaluation is only meaningful on a flat (unrolled) graph, or on a single
// step of a cyclic one, since Eval does not itself resolve State/Next
// cycles — the Unroller is responsible for that.
type Env struct {
	Inputs map[NodeID]uint64
	States map[NodeID]uint64
	// Arrays holds concrete byte contents for array-valued nodes, keyed by
	// node id; reads against array ids not present here fall back to the
	// ArrayConst fill value.
	Arrays map[NodeID]map[uint64]uint64
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{
		Inputs: map[NodeID]uint64{},
		States: map[NodeID]uint64{},
		Arrays: map[NodeID]map[uint64]uint64{},
	}
}

// Eval computes the concrete scalar value of a word-level node under env.
// Array-valued nodes must be evaluated with EvalArray instead.
func (a *Arena) Eval(id NodeID, env *Env) (uint64, error) {
	n := a.Node(id)
	switch n.Kind {
	case KindConst:
		return n.Value, nil
	case KindInput:
		if v, ok := env.Inputs[id]; ok {
			return v, nil
		}
		return 0, nil
	case KindState:
		if v, ok := env.States[id]; ok {
			return v, nil
		}
		if n.Init != Invalid {
			return a.Eval(n.Init, env)
		}
		return 0, nil
	case KindNot:
		v, err := a.Eval(n.Args[0], env)
		return ^v & mask1(n.Width), err
	case KindNeg:
		v, err := a.Eval(n.Args[0], env)
		return Mask(-v, n.Width), err
	case KindExt:
		v, err := a.Eval(n.Args[0], env)
		if err != nil {
			return 0, err
		}
		src := a.Node(n.Args[0]).Width
		if n.ExtKind == ExtSign {
			return Mask(SignExtend64(v, src), n.Width), nil
		}
		return v, nil
	case KindSlice:
		v, err := a.Eval(n.Args[0], env)
		if err != nil {
			return 0, err
		}
		return (v >> n.Lo) & mask1(n.Width), nil
	case KindAnd, KindOr, KindXor, KindSll, KindSrl, KindSra,
		KindAdd, KindSub, KindMul, KindUdiv, KindUrem, KindSdiv, KindSrem,
		KindEq, KindUlt, KindUlte, KindSlt, KindSlte:
		x, err := a.Eval(n.Args[0], env)
		if err != nil {
			return 0, err
		}
		y, err := a.Eval(n.Args[1], env)
		if err != nil {
			return 0, err
		}
		opWidth := a.Node(n.Args[0]).Width
		v, _ := binConstFold(n.Kind, opWidth, x, y)
		return v, nil
	case KindIte:
		c, err := a.Eval(n.Args[0], env)
		if err != nil {
			return 0, err
		}
		if c == 1 {
			return a.Eval(n.Args[1], env)
		}
		return a.Eval(n.Args[2], env)
	case KindRead:
		idx, err := a.Eval(n.Args[1], env)
		if err != nil {
			return 0, err
		}
		cells, err := a.EvalArray(n.Args[0], env)
		if err != nil {
			return 0, err
		}
		if v, ok := cells[idx]; ok {
			return v, nil
		}
		base := n.Args[0]
		for a.Node(base).Kind == KindWrite {
			base = a.Node(base).Args[0]
		}
		return a.Node(base).Value, nil
	case KindBad:
		return a.Eval(n.Args[0], env)
	default:
		return 0, fmt.Errorf("bvg: cannot Eval node kind %s", n.Kind)
	}
}

func mask1(w uint32) uint64 { return Mask(^uint64(0), w) }

// EvalArray resolves the chain of Write nodes over an ArrayConst into a
// sparse concrete map of address -> value, most recent write last applied.
func (a *Arena) EvalArray(id NodeID, env *Env) (map[uint64]uint64, error) {
	if cells, ok := env.Arrays[id]; ok {
		return cells, nil
	}
	n := a.Node(id)
	switch n.Kind {
	case KindArrayConst:
		return map[uint64]uint64{}, nil
	case KindWrite:
		base, err := a.EvalArray(n.Args[0], env)
		if err != nil {
			return nil, err
		}
		idx, err := a.Eval(n.Args[1], env)
		if err != nil {
			return nil, err
		}
		val, err := a.Eval(n.Args[2], env)
		if err != nil {
			return nil, err
		}
		out := make(map[uint64]uint64, len(base)+1)
		for k, v := range base {
			out[k] = v
		}
		out[idx] = val
		env.Arrays[id] = out
		return out, nil
	default:
		return nil, fmt.Errorf("bvg: node %d is not array-valued (%s)", id, n.Kind)
	}
}
