package bitblast

import (
	"testing"

	"github.com/unicorn-sh/unicorn/pkg/bvg"
)

// bindWord sets env's concrete value for each bit of bits (LSB first) from
// value, so the destination arena evaluates the blasted graph as if its
// fresh Input bits were the word-level operand's concrete bits.
func bindWord(env *bvg.Env, bits []bvg.NodeID, value uint64) {
	for i, id := range bits {
		env.Inputs[id] = (value >> uint(i)) & 1
	}
}

// wordFromBits reassembles a concrete word from LSB-first boolean bit nodes
// by evaluating each one under env and packing the results.
func wordFromBits(t *testing.T, dst *bvg.Arena, env *bvg.Env, bits []bvg.NodeID) uint64 {
	t.Helper()
	var out uint64
	for i, id := range bits {
		v, err := dst.Eval(id, env)
		if err != nil {
			t.Fatalf("Eval bit %d: %v", i, err)
		}
		out |= (v & 1) << uint(i)
	}
	return out
}

// checkPreserved blasts op(x, y) for every (xv, yv) pair and confirms the
// bit-blasted boolean graph evaluates to the same concrete word as directly
// evaluating the word-level node in the source arena — spec.md's universal
// "semantic preservation under bit-blasting" invariant.
func checkPreserved(t *testing.T, width uint32, mk func(a *bvg.Arena) (bvg.NodeID, bvg.NodeID, bvg.NodeID), pairs [][2]uint64) {
	t.Helper()
	for _, p := range pairs {
		xv, yv := p[0], p[1]
		src := bvg.NewArena()
		x, y, expr := mk(src)

		srcEnv := bvg.NewEnv()
		srcEnv.Inputs[x] = xv
		srcEnv.Inputs[y] = yv
		want, err := src.Eval(expr, srcEnv)
		if err != nil {
			t.Fatalf("src Eval(%d,%d): %v", xv, yv, err)
		}

		bb := New(src)
		xBits, err := bb.Bits(x)
		if err != nil {
			t.Fatalf("Bits(x): %v", err)
		}
		yBits, err := bb.Bits(y)
		if err != nil {
			t.Fatalf("Bits(y): %v", err)
		}
		outBits, err := bb.Bits(expr)
		if err != nil {
			t.Fatalf("Bits(expr) for (%d,%d): %v", xv, yv, err)
		}

		dstEnv := bvg.NewEnv()
		bindWord(dstEnv, xBits, xv)
		bindWord(dstEnv, yBits, yv)
		got := wordFromBits(t, bb.Dst, dstEnv, outBits)

		mask := uint64(1)<<width - 1
		if got&mask != want&mask {
			t.Fatalf("x=%d y=%d: blasted=%d want=%d", xv, yv, got&mask, want&mask)
		}
	}
}

func pairsWidth(w uint32) [][2]uint64 {
	max := uint64(1) << w
	var out [][2]uint64
	for x := uint64(0); x < max; x++ {
		for y := uint64(0); y < max; y++ {
			out = append(out, [2]uint64{x, y})
		}
	}
	return out
}

func TestBitblastAddPreservesSemantics(t *testing.T) {
	const w = 4
	checkPreserved(t, w, func(a *bvg.Arena) (bvg.NodeID, bvg.NodeID, bvg.NodeID) {
		x := a.MkInput(w)
		y := a.MkInput(w)
		sum, err := a.MkAdd(x, y)
		if err != nil {
			t.Fatalf("MkAdd: %v", err)
		}
		return x, y, sum
	}, pairsWidth(w))
}

func TestBitblastSubPreservesSemantics(t *testing.T) {
	const w = 4
	checkPreserved(t, w, func(a *bvg.Arena) (bvg.NodeID, bvg.NodeID, bvg.NodeID) {
		x := a.MkInput(w)
		y := a.MkInput(w)
		diff, err := a.MkSub(x, y)
		if err != nil {
			t.Fatalf("MkSub: %v", err)
		}
		return x, y, diff
	}, pairsWidth(w))
}

func TestBitblastMulPreservesSemantics(t *testing.T) {
	const w = 3
	checkPreserved(t, w, func(a *bvg.Arena) (bvg.NodeID, bvg.NodeID, bvg.NodeID) {
		x := a.MkInput(w)
		y := a.MkInput(w)
		prod, err := a.MkMul(x, y)
		if err != nil {
			t.Fatalf("MkMul: %v", err)
		}
		return x, y, prod
	}, pairsWidth(w))
}

func TestBitblastUdivUremPreserveSemantics(t *testing.T) {
	const w = 3
	checkPreserved(t, w, func(a *bvg.Arena) (bvg.NodeID, bvg.NodeID, bvg.NodeID) {
		x := a.MkInput(w)
		y := a.MkInput(w)
		q, err := a.MkUdiv(x, y)
		if err != nil {
			t.Fatalf("MkUdiv: %v", err)
		}
		return x, y, q
	}, pairsWidth(w))
	checkPreserved(t, w, func(a *bvg.Arena) (bvg.NodeID, bvg.NodeID, bvg.NodeID) {
		x := a.MkInput(w)
		y := a.MkInput(w)
		r, err := a.MkUrem(x, y)
		if err != nil {
			t.Fatalf("MkUrem: %v", err)
		}
		return x, y, r
	}, pairsWidth(w))
}

func TestBitblastSdivSremPreserveSemantics(t *testing.T) {
	const w = 3
	checkPreserved(t, w, func(a *bvg.Arena) (bvg.NodeID, bvg.NodeID, bvg.NodeID) {
		x := a.MkInput(w)
		y := a.MkInput(w)
		q, err := a.MkSdiv(x, y)
		if err != nil {
			t.Fatalf("MkSdiv: %v", err)
		}
		return x, y, q
	}, pairsWidth(w))
	checkPreserved(t, w, func(a *bvg.Arena) (bvg.NodeID, bvg.NodeID, bvg.NodeID) {
		x := a.MkInput(w)
		y := a.MkInput(w)
		r, err := a.MkSrem(x, y)
		if err != nil {
			t.Fatalf("MkSrem: %v", err)
		}
		return x, y, r
	}, pairsWidth(w))
}

// TestBitblastComparisonsAreSingleBit confirms Eq/Ult/Slt blast down to
// exactly one boolean output bit apiece and preserve their truth value.
func TestBitblastComparisonsAreSingleBit(t *testing.T) {
	const w = 4
	for _, mk := range []func(a *bvg.Arena, x, y bvg.NodeID) (bvg.NodeID, error){
		func(a *bvg.Arena, x, y bvg.NodeID) (bvg.NodeID, error) { return a.MkEq(x, y) },
		func(a *bvg.Arena, x, y bvg.NodeID) (bvg.NodeID, error) { return a.MkUlt(x, y) },
		func(a *bvg.Arena, x, y bvg.NodeID) (bvg.NodeID, error) { return a.MkSlt(x, y) },
	} {
		for _, p := range pairsWidth(w) {
			src := bvg.NewArena()
			x := src.MkInput(w)
			y := src.MkInput(w)
			expr, err := mk(src, x, y)
			if err != nil {
				t.Fatalf("mk: %v", err)
			}
			srcEnv := bvg.NewEnv()
			srcEnv.Inputs[x] = p[0]
			srcEnv.Inputs[y] = p[1]
			want, err := src.Eval(expr, srcEnv)
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}

			bb := New(src)
			xBits, _ := bb.Bits(x)
			yBits, _ := bb.Bits(y)
			outBits, err := bb.Bits(expr)
			if err != nil {
				t.Fatalf("Bits: %v", err)
			}
			if len(outBits) != 1 {
				t.Fatalf("comparison should blast to exactly one bit, got %d", len(outBits))
			}
			dstEnv := bvg.NewEnv()
			bindWord(dstEnv, xBits, p[0])
			bindWord(dstEnv, yBits, p[1])
			got := wordFromBits(t, bb.Dst, dstEnv, outBits)
			if got != want {
				t.Fatalf("x=%d y=%d: blasted=%d want=%d", p[0], p[1], got, want)
			}
		}
	}
}

// TestBitblastSharesCachedSubexpressions confirms a node referenced twice is
// only lowered once: blasting the same operand id a second time must return
// the identical slice of Dst node ids, not a fresh re-blast.
func TestBitblastSharesCachedSubexpressions(t *testing.T) {
	src := bvg.NewArena()
	x := src.MkInput(4)
	bb := New(src)
	first, err := bb.Bits(x)
	if err != nil {
		t.Fatalf("Bits: %v", err)
	}
	second, err := bb.Bits(x)
	if err != nil {
		t.Fatalf("Bits: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("length mismatch between cached calls")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("bit %d differs between cached calls: %d != %d", i, first[i], second[i])
		}
	}
}

func TestBitblastArrayNodeRejected(t *testing.T) {
	src := bvg.NewArena()
	mem := src.MkArrayConst(64, 8, 0)
	bb := New(src)
	if _, err := bb.Bits(mem); err == nil {
		t.Fatal("array-valued nodes have no direct bit representation and should be rejected")
	}
}

// TestInputBitsKeyedByStableNid confirms InputBits reports one entry per
// Input actually blasted, keyed by the source arena's stable Nid rather than
// NodeID or blast order — spec.md §6's Input-mapping section and
// qubo.EvaluateVectors's decimal-to-bit decomposition both depend on this.
func TestInputBitsKeyedByStableNid(t *testing.T) {
	src := bvg.NewArena()
	x := src.MkInput(4)
	y := src.MkInput(8)
	bb := New(src)
	xBits, err := bb.Bits(x)
	if err != nil {
		t.Fatalf("Bits(x): %v", err)
	}
	yBits, err := bb.Bits(y)
	if err != nil {
		t.Fatalf("Bits(y): %v", err)
	}

	got := bb.InputBits()
	if len(got) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(got))
	}
	xNid, yNid := src.Node(x).Nid, src.Node(y).Nid
	if len(got[xNid]) != 4 {
		t.Fatalf("nid %d: expected 4 bits, got %d", xNid, len(got[xNid]))
	}
	if len(got[yNid]) != 8 {
		t.Fatalf("nid %d: expected 8 bits, got %d", yNid, len(got[yNid]))
	}
	for i, id := range xBits {
		if got[xNid][i] != id {
			t.Fatalf("nid %d bit %d: InputBits=%d want %d", xNid, i, got[xNid][i], id)
		}
	}
	for i, id := range yBits {
		if got[yNid][i] != id {
			t.Fatalf("nid %d bit %d: InputBits=%d want %d", yNid, i, got[yNid][i], id)
		}
	}
}

// TestInputBitsOmitsUnblastedInputs confirms an Input node minted in the
// source arena but never passed to Bits (e.g. an unrolled branch whose
// guarding step never actually gets taken) is absent from InputBits, not
// reported with a nil or empty bit slice.
func TestInputBitsOmitsUnblastedInputs(t *testing.T) {
	src := bvg.NewArena()
	used := src.MkInput(1)
	_ = src.MkInput(1) // minted but never blasted
	bb := New(src)
	if _, err := bb.Bits(used); err != nil {
		t.Fatalf("Bits: %v", err)
	}
	got := bb.InputBits()
	if len(got) != 1 {
		t.Fatalf("expected 1 blasted input, got %d", len(got))
	}
	if _, ok := got[src.Node(used).Nid]; !ok {
		t.Fatal("expected the blasted input's nid to be present")
	}
}
