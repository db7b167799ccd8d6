// Package bitblast lowers a word-level BVG graph into a boolean graph built
// from the gates AND, XOR, NOT and the leaves CONST/INPUT, plus 1-bit ITE
// nodes wherever a mux is needed (word-level Ite, shifts, division, signed
// comparison); ITE is not further reduced to AND/XOR/NOT here. The boolean
// graph is represented in the same bvg.Arena type as the word-level graph
// (every bit-blasted node has Width==1 and Kind in {Const, Input, Not, And,
// Xor, Ite}); this keeps one
// downstream serializer/QUBO/QUARC vocabulary for both representations,
// the same way the teacher reuses one Instruction type across decode and
// search rather than inventing a second IR.
package bitblast

import (
	"github.com/unicorn-sh/unicorn/pkg/bvg"
)

// Blaster lowers nodes from a source arena into 1-bit primitives in a
// fresh destination arena, caching one result (LSB-first bit slice) per
// source node so shared subexpressions are blasted exactly once.
type Blaster struct {
	Src   *bvg.Arena
	Dst   *bvg.Arena
	cache map[bvg.NodeID][]bvg.NodeID
}

// New returns a Blaster targeting a fresh destination arena.
func New(src *bvg.Arena) *Blaster {
	return &Blaster{Src: src, Dst: bvg.NewArena(), cache: make(map[bvg.NodeID][]bvg.NodeID)}
}

// Bits lowers id and returns its bit-blasted representation, LSB first,
// one Dst node id per bit of id's declared width.
func (b *Blaster) Bits(id bvg.NodeID) ([]bvg.NodeID, error) {
	if bits, ok := b.cache[id]; ok {
		return bits, nil
	}
	n := b.Src.Node(id)
	var out []bvg.NodeID
	var err error
	switch n.Kind {
	case bvg.KindConst:
		out = b.constBits(n.Value, n.Width)
	case bvg.KindInput:
		out = b.freshInputs(n.Width)
	case bvg.KindState:
		out = b.freshInputs(n.Width) // a step's state value is an opaque boundary to the bit-blaster
	case bvg.KindNot:
		out, err = b.notBits(n.Args[0])
	case bvg.KindNeg:
		out, err = b.negBits(n.Args[0])
	case bvg.KindExt:
		out, err = b.extBits(n.Args[0], n.Width, n.ExtKind)
	case bvg.KindSlice:
		out, err = b.sliceBits(n.Args[0], n.Hi, n.Lo)
	case bvg.KindAnd:
		out, err = b.zipBits(n.Args[0], n.Args[1], b.Dst.MkAnd)
	case bvg.KindOr:
		out, err = b.orBits(n.Args[0], n.Args[1])
	case bvg.KindXor:
		out, err = b.zipBits(n.Args[0], n.Args[1], b.Dst.MkXor)
	case bvg.KindAdd:
		out, err = b.addBits(n.Args[0], n.Args[1], b.constBit(0))
	case bvg.KindSub:
		out, err = b.subBits(n.Args[0], n.Args[1])
	case bvg.KindMul:
		out, err = b.mulBits(n.Args[0], n.Args[1])
	case bvg.KindSll:
		out, err = b.shiftBits(n.Args[0], n.Args[1], true, false)
	case bvg.KindSrl:
		out, err = b.shiftBits(n.Args[0], n.Args[1], false, false)
	case bvg.KindSra:
		out, err = b.shiftBits(n.Args[0], n.Args[1], false, true)
	case bvg.KindUdiv, bvg.KindUrem:
		out, err = b.udivmodBits(n.Args[0], n.Args[1], n.Kind == bvg.KindUrem)
	case bvg.KindSdiv, bvg.KindSrem:
		out, err = b.sdivmodBits(n.Args[0], n.Args[1], n.Kind == bvg.KindSrem)
	case bvg.KindEq:
		out, err = b.eqBits(n.Args[0], n.Args[1])
	case bvg.KindUlt:
		out, err = b.ultBits(n.Args[0], n.Args[1])
	case bvg.KindUlte:
		lt, e := b.ultBitsSwap(n.Args[1], n.Args[0])
		if e != nil {
			return nil, e
		}
		v, e := b.Dst.MkNot(lt[0])
		out, err = []bvg.NodeID{v}, e
	case bvg.KindSlt:
		out, err = b.sltBits(n.Args[0], n.Args[1])
	case bvg.KindSlte:
		gt, e := b.sltBits(n.Args[1], n.Args[0])
		if e != nil {
			return nil, e
		}
		v, e := b.Dst.MkNot(gt[0])
		out, err = []bvg.NodeID{v}, e
	case bvg.KindIte:
		out, err = b.iteBits(n.Args[0], n.Args[1], n.Args[2])
	case bvg.KindRead, bvg.KindWrite, bvg.KindArrayConst:
		// Array nodes are not lowered: Bits rejects every Read, Write and
		// ArrayConst node, so a Read must already have been folded away
		// (e.g. by bvg's read-over-write rule) before blasting.
		return nil, errUnsupportedArrayBits(n.Kind)
	default:
		return nil, errUnsupportedArrayBits(n.Kind)
	}
	if err != nil {
		return nil, err
	}
	b.cache[id] = out
	return out, nil
}

// InputBits returns, for every source Input node blasted so far, its
// stable nid (bvg.Node.Nid, assigned when the Input was minted) mapped to
// its bit-blasted representation in Dst, LSB first. This is the nid
// plumbing the QUBO Input-mapping section (spec.md §6) and the --inputs
// decimal-to-bit decomposition need, read directly off the cache Bits
// already maintains rather than tracked separately.
func (b *Blaster) InputBits() map[uint64][]bvg.NodeID {
	out := make(map[uint64][]bvg.NodeID)
	for srcID, bits := range b.cache {
		if n := b.Src.Node(srcID); n.Kind == bvg.KindInput {
			out[n.Nid] = bits
		}
	}
	return out
}

func (b *Blaster) constBit(v uint64) bvg.NodeID { return b.Dst.MkConst(1, v&1) }

func (b *Blaster) constBits(v uint64, w uint32) []bvg.NodeID {
	out := make([]bvg.NodeID, w)
	for i := uint32(0); i < w; i++ {
		out[i] = b.Dst.MkConst(1, (v>>i)&1)
	}
	return out
}

func (b *Blaster) freshInputs(w uint32) []bvg.NodeID {
	out := make([]bvg.NodeID, w)
	for i := range out {
		out[i] = b.Dst.MkInput(1)
	}
	return out
}

func (b *Blaster) notBits(x bvg.NodeID) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	out := make([]bvg.NodeID, len(xb))
	for i, xi := range xb {
		v, err := b.Dst.MkNot(xi)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// negBits computes two's-complement negation as NOT(x) + 1.
func (b *Blaster) negBits(x bvg.NodeID) ([]bvg.NodeID, error) {
	notX, err := b.notBits(x)
	if err != nil {
		return nil, err
	}
	return rippleAdd(b.Dst, notX, b.constBits(1, uint32(len(notX))), b.constBit(0))
}

func (b *Blaster) extBits(x bvg.NodeID, w uint32, kind bvg.ExtKind) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	out := make([]bvg.NodeID, w)
	copy(out, xb)
	fill := b.constBit(0)
	if kind == bvg.ExtSign && len(xb) > 0 {
		fill = xb[len(xb)-1]
	}
	for i := len(xb); i < int(w); i++ {
		out[i] = fill
	}
	return out, nil
}

func (b *Blaster) sliceBits(x bvg.NodeID, hi, lo uint32) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	return append([]bvg.NodeID(nil), xb[lo:hi+1]...), nil
}

func (b *Blaster) zipBits(x, y bvg.NodeID, op func(bvg.NodeID, bvg.NodeID) (bvg.NodeID, error)) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	yb, err := b.Bits(y)
	if err != nil {
		return nil, err
	}
	out := make([]bvg.NodeID, len(xb))
	for i := range xb {
		v, err := op(xb[i], yb[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// orBits builds OR from AND/XOR/NOT: a|b = (a^b)^(a&b) ... using the
// standard a OR b = NOT(NOT(a) AND NOT(b)) De Morgan form instead, since
// that is one AND and three NOTs per bit rather than needing a dedicated gate.
func (b *Blaster) orBits(x, y bvg.NodeID) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	yb, err := b.Bits(y)
	if err != nil {
		return nil, err
	}
	out := make([]bvg.NodeID, len(xb))
	for i := range xb {
		nx, err := b.Dst.MkNot(xb[i])
		if err != nil {
			return nil, err
		}
		ny, err := b.Dst.MkNot(yb[i])
		if err != nil {
			return nil, err
		}
		nand, err := b.Dst.MkAnd(nx, ny)
		if err != nil {
			return nil, err
		}
		v, err := b.Dst.MkNot(nand)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (b *Blaster) addBits(x, y, cin bvg.NodeID) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	yb, err := b.Bits(y)
	if err != nil {
		return nil, err
	}
	sum, _, err := rippleAddCarry(b.Dst, xb, yb, cin)
	return sum, err
}

// rippleAdd is addBits for two already-available bit slices (used by
// negBits, which has no source node ids for its operands).
func rippleAdd(dst *bvg.Arena, xb, yb []bvg.NodeID, cin bvg.NodeID) ([]bvg.NodeID, error) {
	sum, _, err := rippleAddCarry(dst, xb, yb, cin)
	return sum, err
}

// rippleAddCarry is a textbook ripple-carry adder: full-adder per bit,
// carry chained LSB to MSB, returning the sum bits and the final carry-out.
func rippleAddCarry(dst *bvg.Arena, xb, yb []bvg.NodeID, cin bvg.NodeID) ([]bvg.NodeID, bvg.NodeID, error) {
	n := len(xb)
	sum := make([]bvg.NodeID, n)
	carry := cin
	for i := 0; i < n; i++ {
		xa, ya := xb[i], yb[i]
		axb, err := dst.MkXor(xa, ya)
		if err != nil {
			return nil, bvg.Invalid, err
		}
		s, err := dst.MkXor(axb, carry)
		if err != nil {
			return nil, bvg.Invalid, err
		}
		sum[i] = s
		t1, err := dst.MkAnd(axb, carry)
		if err != nil {
			return nil, bvg.Invalid, err
		}
		t2, err := dst.MkAnd(xa, ya)
		if err != nil {
			return nil, bvg.Invalid, err
		}
		nt1, err := dst.MkNot(t1)
		if err != nil {
			return nil, bvg.Invalid, err
		}
		nt2, err := dst.MkNot(t2)
		if err != nil {
			return nil, bvg.Invalid, err
		}
		nand, err := dst.MkAnd(nt1, nt2)
		if err != nil {
			return nil, bvg.Invalid, err
		}
		carry, err = dst.MkNot(nand)
		if err != nil {
			return nil, bvg.Invalid, err
		}
	}
	return sum, carry, nil
}

func (b *Blaster) subBits(x, y bvg.NodeID) ([]bvg.NodeID, error) {
	yb, err := b.Bits(y)
	if err != nil {
		return nil, err
	}
	negY, err := negBitsSlice(b.Dst, yb)
	if err != nil {
		return nil, err
	}
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	sum, _, err := rippleAddCarry(b.Dst, xb, negY, b.constBit(0))
	return sum, err
}

func negBitsSlice(dst *bvg.Arena, xb []bvg.NodeID) ([]bvg.NodeID, error) {
	notX := make([]bvg.NodeID, len(xb))
	for i, xi := range xb {
		v, err := dst.MkNot(xi)
		if err != nil {
			return nil, err
		}
		notX[i] = v
	}
	one := make([]bvg.NodeID, len(xb))
	one[0] = dst.MkConst(1, 1)
	for i := 1; i < len(one); i++ {
		one[i] = dst.MkConst(1, 0)
	}
	return rippleAdd(dst, notX, one, dst.MkConst(1, 0))
}

// mulBits implements shift-and-add multiplication: for each set bit i of
// y, add x<<i into the accumulator, truncated to the operand width (BVG
// multiplication wraps, matching two's-complement hardware multiply).
func (b *Blaster) mulBits(x, y bvg.NodeID) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	yb, err := b.Bits(y)
	if err != nil {
		return nil, err
	}
	w := len(xb)
	acc := make([]bvg.NodeID, w)
	for i := range acc {
		acc[i] = b.constBit(0)
	}
	for i := 0; i < w; i++ {
		shifted := shiftLeftConst(b.Dst, xb, i, b.constBit(0))
		term := make([]bvg.NodeID, w)
		for j := 0; j < w; j++ {
			v, err := b.Dst.MkAnd(shifted[j], yb[i])
			if err != nil {
				return nil, err
			}
			term[j] = v
		}
		acc, _, err = rippleAddCarry(b.Dst, acc, term, b.constBit(0))
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func shiftLeftConst(dst *bvg.Arena, xb []bvg.NodeID, amount int, fill bvg.NodeID) []bvg.NodeID {
	w := len(xb)
	out := make([]bvg.NodeID, w)
	for i := 0; i < w; i++ {
		src := i - amount
		if src < 0 {
			out[i] = fill
		} else {
			out[i] = xb[src]
		}
	}
	return out
}

// shiftBits builds a muxed barrel shifter: log2(w) stages, each
// conditionally shifting by 2^k bits based on bit k of the shift amount,
// same structure as a hardware barrel shifter. left selects direction;
// arithmetic selects fill bit for right shifts.
func (b *Blaster) shiftBits(x, amt bvg.NodeID, left, arithmetic bool) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	ab, err := b.Bits(amt)
	if err != nil {
		return nil, err
	}
	w := len(xb)
	cur := xb
	for k := 0; (1 << k) < w; k++ {
		fill := b.constBit(0)
		if arithmetic && !left {
			fill = cur[w-1]
		}
		var shifted []bvg.NodeID
		if left {
			shifted = shiftLeftConst(b.Dst, cur, 1<<k, fill)
		} else {
			shifted = shiftRightConst(cur, 1<<k, fill)
		}
		next := make([]bvg.NodeID, w)
		for i := 0; i < w; i++ {
			v, err := b.Dst.MkIte(ab[k], shifted[i], cur[i])
			if err != nil {
				return nil, err
			}
			next[i] = v
		}
		cur = next
	}
	return cur, nil
}

func shiftRightConst(xb []bvg.NodeID, amount int, fill bvg.NodeID) []bvg.NodeID {
	w := len(xb)
	out := make([]bvg.NodeID, w)
	for i := 0; i < w; i++ {
		src := i + amount
		if src >= w {
			out[i] = fill
		} else {
			out[i] = xb[src]
		}
	}
	return out
}

// udivmodBits implements restoring unsigned division bit by bit, MSB to
// LSB, matching RISC-V's all-ones/dividend zero-divisor convention by
// selecting the pre-division operands when the divisor is zero.
func (b *Blaster) udivmodBits(x, y bvg.NodeID, wantRem bool) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	yb, err := b.Bits(y)
	if err != nil {
		return nil, err
	}
	w := len(xb)
	quot := make([]bvg.NodeID, w)
	rem := make([]bvg.NodeID, w)
	for i := range rem {
		rem[i] = b.constBit(0)
	}
	for i := w - 1; i >= 0; i-- {
		rem = shiftLeftConst(b.Dst, rem, 1, xb[i])
		diff, borrow, err := subWithBorrow(b.Dst, rem, yb)
		if err != nil {
			return nil, err
		}
		notBorrow, err := b.Dst.MkNot(borrow)
		if err != nil {
			return nil, err
		}
		quot[i] = notBorrow
		for j := 0; j < w; j++ {
			v, err := b.Dst.MkIte(notBorrow, diff[j], rem[j])
			if err != nil {
				return nil, err
			}
			rem[j] = v
		}
	}
	yIsZero, err := isAllZero(b.Dst, yb)
	if err != nil {
		return nil, err
	}
	result := quot
	fallback := allOnes(b.Dst, w)
	if wantRem {
		result = rem
		fallback = xb
	}
	out := make([]bvg.NodeID, w)
	for i := 0; i < w; i++ {
		v, err := b.Dst.MkIte(yIsZero, fallback[i], result[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// sdivmodBits implements signed division in terms of unsigned division by
// absolute values, restoring the correct sign and handling the INT_MIN/-1
// overflow case (result stays INT_MIN / 0), matching bvg's binConstFold
// semantics bit for bit.
func (b *Blaster) sdivmodBits(x, y bvg.NodeID, wantRem bool) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	yb, err := b.Bits(y)
	if err != nil {
		return nil, err
	}
	w := len(xb)
	xNeg := xb[w-1]
	yNeg := yb[w-1]
	absX, err := condNeg(b.Dst, xb, xNeg)
	if err != nil {
		return nil, err
	}
	absY, err := condNeg(b.Dst, yb, yNeg)
	if err != nil {
		return nil, err
	}
	uq, err := b.udivmodBits2(absX, absY, false)
	if err != nil {
		return nil, err
	}
	ur, err := b.udivmodBits2(absX, absY, true)
	if err != nil {
		return nil, err
	}
	quotSign, err := b.Dst.MkXor(xNeg, yNeg)
	if err != nil {
		return nil, err
	}
	signedQ, err := condNeg(b.Dst, uq, quotSign)
	if err != nil {
		return nil, err
	}
	yIsZero, err := isAllZero(b.Dst, yb)
	if err != nil {
		return nil, err
	}
	signedQ, err = muxBits(b.Dst, yIsZero, allOnes(b.Dst, w), signedQ)
	if err != nil {
		return nil, err
	}
	signedR, err := condNeg(b.Dst, ur, xNeg)
	if err != nil {
		return nil, err
	}
	isMin := isIntMin(b.Dst, xb)
	yNegOne, err := isAllOnes(b.Dst, yb)
	if err != nil {
		return nil, err
	}
	overflow, err := b.Dst.MkAnd(isMin, yNegOne)
	if err != nil {
		return nil, err
	}
	if wantRem {
		zero := make([]bvg.NodeID, w)
		for i := range zero {
			zero[i] = b.constBit(0)
		}
		return muxBits(b.Dst, overflow, zero, signedR)
	}
	return muxBits(b.Dst, overflow, xb, signedQ)
}

// udivmodBits2 is udivmodBits operating on already-blasted bit slices
// (used internally by signed division, which derives its operands from
// other bit-level computations rather than source node ids).
func (b *Blaster) udivmodBits2(xb, yb []bvg.NodeID, wantRem bool) ([]bvg.NodeID, error) {
	w := len(xb)
	rem := make([]bvg.NodeID, w)
	for i := range rem {
		rem[i] = b.constBit(0)
	}
	quot := make([]bvg.NodeID, w)
	for i := w - 1; i >= 0; i-- {
		rem = shiftLeftConst(b.Dst, rem, 1, xb[i])
		diff, borrow, err := subWithBorrow(b.Dst, rem, yb)
		if err != nil {
			return nil, err
		}
		notBorrow, err := b.Dst.MkNot(borrow)
		if err != nil {
			return nil, err
		}
		quot[i] = notBorrow
		for j := 0; j < w; j++ {
			v, err := b.Dst.MkIte(notBorrow, diff[j], rem[j])
			if err != nil {
				return nil, err
			}
			rem[j] = v
		}
	}
	if wantRem {
		return rem, nil
	}
	return quot, nil
}

func condNeg(dst *bvg.Arena, xb []bvg.NodeID, cond bvg.NodeID) ([]bvg.NodeID, error) {
	negX, err := negBitsSlice(dst, xb)
	if err != nil {
		return nil, err
	}
	return muxBits(dst, cond, negX, xb)
}

func muxBits(dst *bvg.Arena, cond bvg.NodeID, t, e []bvg.NodeID) ([]bvg.NodeID, error) {
	out := make([]bvg.NodeID, len(t))
	for i := range t {
		v, err := dst.MkIte(cond, t[i], e[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// subWithBorrow computes x-y and the borrow-out (1 if x<y unsigned), via
// subtraction-by-addition-of-the-negation plus an inverted final carry.
func subWithBorrow(dst *bvg.Arena, xb, yb []bvg.NodeID) ([]bvg.NodeID, bvg.NodeID, error) {
	notY := make([]bvg.NodeID, len(yb))
	for i, bit := range yb {
		v, err := dst.MkNot(bit)
		if err != nil {
			return nil, bvg.Invalid, err
		}
		notY[i] = v
	}
	sum, carry, err := rippleAddCarry(dst, xb, notY, dst.MkConst(1, 1))
	if err != nil {
		return nil, bvg.Invalid, err
	}
	borrow, err := dst.MkNot(carry)
	return sum, borrow, err
}

func isAllZero(dst *bvg.Arena, xb []bvg.NodeID) (bvg.NodeID, error) {
	acc := xb[0]
	var err error
	for _, b := range xb[1:] {
		nAcc, e := dst.MkNot(acc)
		if e != nil {
			return bvg.Invalid, e
		}
		nb, e := dst.MkNot(b)
		if e != nil {
			return bvg.Invalid, e
		}
		nand, e := dst.MkAnd(nAcc, nb)
		if e != nil {
			return bvg.Invalid, e
		}
		acc, err = dst.MkNot(nand)
		if err != nil {
			return bvg.Invalid, err
		}
	}
	return dst.MkNot(acc)
}

func isAllOnes(dst *bvg.Arena, xb []bvg.NodeID) (bvg.NodeID, error) {
	acc := xb[0]
	var err error
	for _, b := range xb[1:] {
		acc, err = dst.MkAnd(acc, b)
		if err != nil {
			return bvg.Invalid, err
		}
	}
	return acc, nil
}

func allOnes(dst *bvg.Arena, w int) []bvg.NodeID {
	out := make([]bvg.NodeID, w)
	for i := range out {
		out[i] = dst.MkConst(1, 1)
	}
	return out
}

func isIntMin(dst *bvg.Arena, xb []bvg.NodeID) bvg.NodeID {
	// INT_MIN has its sign bit set and every other bit clear.
	low := make([]bvg.NodeID, len(xb)-1)
	copy(low, xb[:len(xb)-1])
	zeroLow, err := isAllZero(dst, low)
	if err != nil {
		return dst.MkConst(1, 0)
	}
	signSet := xb[len(xb)-1]
	v, err := dst.MkAnd(signSet, zeroLow)
	if err != nil {
		return dst.MkConst(1, 0)
	}
	return v
}

func (b *Blaster) eqBits(x, y bvg.NodeID) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	yb, err := b.Bits(y)
	if err != nil {
		return nil, err
	}
	var neq bvg.NodeID
	for i := range xb {
		d, err := b.Dst.MkXor(xb[i], yb[i])
		if err != nil {
			return nil, err
		}
		if neq == bvg.Invalid {
			neq = d
			continue
		}
		nNeq, err := b.Dst.MkNot(neq)
		if err != nil {
			return nil, err
		}
		nd, err := b.Dst.MkNot(d)
		if err != nil {
			return nil, err
		}
		nand, err := b.Dst.MkAnd(nNeq, nd)
		if err != nil {
			return nil, err
		}
		neq, err = b.Dst.MkNot(nand)
		if err != nil {
			return nil, err
		}
	}
	eq, err := b.Dst.MkNot(neq)
	if err != nil {
		return nil, err
	}
	return []bvg.NodeID{eq}, nil
}

func (b *Blaster) ultBits(x, y bvg.NodeID) ([]bvg.NodeID, error) {
	return b.ultBitsSwap(x, y)
}

func (b *Blaster) ultBitsSwap(x, y bvg.NodeID) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	yb, err := b.Bits(y)
	if err != nil {
		return nil, err
	}
	_, borrow, err := subWithBorrow(b.Dst, xb, yb)
	if err != nil {
		return nil, err
	}
	return []bvg.NodeID{borrow}, nil
}

func (b *Blaster) sltBits(x, y bvg.NodeID) ([]bvg.NodeID, error) {
	xb, err := b.Bits(x)
	if err != nil {
		return nil, err
	}
	yb, err := b.Bits(y)
	if err != nil {
		return nil, err
	}
	w := len(xb)
	// x < y (signed) iff (x[msb] != y[msb]) ? x[msb] : (x-y) borrows
	diffSign, err := b.Dst.MkXor(xb[w-1], yb[w-1])
	if err != nil {
		return nil, err
	}
	_, borrow, err := subWithBorrow(b.Dst, xb, yb)
	if err != nil {
		return nil, err
	}
	v, err := b.Dst.MkIte(diffSign, xb[w-1], borrow)
	if err != nil {
		return nil, err
	}
	return []bvg.NodeID{v}, nil
}

func (b *Blaster) iteBits(cond, t, e bvg.NodeID) ([]bvg.NodeID, error) {
	cb, err := b.Bits(cond)
	if err != nil {
		return nil, err
	}
	tb, err := b.Bits(t)
	if err != nil {
		return nil, err
	}
	eb, err := b.Bits(e)
	if err != nil {
		return nil, err
	}
	return muxBits(b.Dst, cb[0], tb, eb)
}

type unsupportedArrayBitsError struct{ kind bvg.Kind }

func (e unsupportedArrayBitsError) Error() string {
	return "bitblast: " + e.kind.String() + " has no direct bit representation; resolve array accesses before blasting"
}

func errUnsupportedArrayBits(k bvg.Kind) error { return unsupportedArrayBitsError{kind: k} }
