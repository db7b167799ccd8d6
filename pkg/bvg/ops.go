package bvg

import (
	"fmt"

	"github.com/unicorn-sh/unicorn/pkg/errs"
)

// MkNot returns bitwise NOT of x.
func (a *Arena) MkNot(x NodeID) (NodeID, error) {
	xn := a.Node(x)
	if xn.Kind == KindNot {
		return xn.Args[0], nil // not(not(y)) = y
	}
	if xn.Kind == KindConst {
		return a.MkConst(xn.Width, ^xn.Value), nil
	}
	key := fmt.Sprintf("not|%d|%d", xn.Width, x)
	return a.intern(key, func(id NodeID) *Node {
		return &Node{Kind: KindNot, Width: xn.Width, Args: []NodeID{x}}
	}), nil
}

// MkNeg returns two's-complement negation of x.
func (a *Arena) MkNeg(x NodeID) (NodeID, error) {
	xn := a.Node(x)
	if xn.Kind == KindConst {
		return a.MkConst(xn.Width, Mask(-xn.Value, xn.Width)), nil
	}
	key := fmt.Sprintf("neg|%d|%d", xn.Width, x)
	return a.intern(key, func(id NodeID) *Node {
		return &Node{Kind: KindNeg, Width: xn.Width, Args: []NodeID{x}}
	}), nil
}

// MkExt zero- or sign-extends x to width w (w must be >= x's width).
func (a *Arena) MkExt(x NodeID, w uint32, kind ExtKind) (NodeID, error) {
	xn := a.Node(x)
	if w < xn.Width {
		return Invalid, &errs.WidthError{Op: "ext", Got: []int{int(xn.Width)}, Expected: int(w)}
	}
	if w == xn.Width {
		return x, nil
	}
	if xn.Kind == KindConst {
		if kind == ExtSign {
			return a.MkConst(w, SignExtend64(xn.Value, xn.Width)), nil
		}
		return a.MkConst(w, xn.Value), nil
	}
	key := fmt.Sprintf("ext|%d|%d|%d", w, kind, x)
	return a.intern(key, func(id NodeID) *Node {
		return &Node{Kind: KindExt, Width: w, Args: []NodeID{x}, ExtKind: kind}
	}), nil
}

// MkSlice extracts bits [hi:lo] (inclusive) of x.
func (a *Arena) MkSlice(x NodeID, hi, lo uint32) (NodeID, error) {
	xn := a.Node(x)
	if hi < lo || hi >= xn.Width {
		return Invalid, &errs.WidthError{Op: "slice", Got: []int{int(hi), int(lo)}, Expected: int(xn.Width)}
	}
	w := hi - lo + 1
	if lo == 0 && w == xn.Width {
		return x, nil
	}
	if xn.Kind == KindConst {
		return a.MkConst(w, (xn.Value>>lo)&((uint64(1)<<w)-1)), nil
	}
	// slice(slice(y,hi2,lo2), hi, lo) = slice(y, lo2+hi, lo2+lo)
	if xn.Kind == KindSlice {
		return a.MkSlice(xn.Args[0], xn.Lo+hi, xn.Lo+lo)
	}
	key := fmt.Sprintf("slice|%d|%d|%d", hi, lo, x)
	return a.intern(key, func(id NodeID) *Node {
		return &Node{Kind: KindSlice, Width: w, Args: []NodeID{x}, Hi: hi, Lo: lo}
	}), nil
}

func (a *Arena) checkBinWidths(op string, x, y NodeID) (uint32, error) {
	xn, yn := a.Node(x), a.Node(y)
	if xn.Width != yn.Width {
		return 0, &errs.WidthError{Op: op, Got: []int{int(xn.Width), int(yn.Width)}, Expected: int(xn.Width)}
	}
	return xn.Width, nil
}

func binConstFold(kind Kind, w uint32, xv, yv uint64) (uint64, bool) {
	switch kind {
	case KindAnd:
		return xv & yv, true
	case KindOr:
		return xv | yv, true
	case KindXor:
		return xv ^ yv, true
	case KindAdd:
		return Mask(xv+yv, w), true
	case KindSub:
		return Mask(xv-yv, w), true
	case KindMul:
		return Mask(xv*yv, w), true
	case KindUdiv:
		if yv == 0 {
			return Mask(^uint64(0), w), true
		}
		return xv / yv, true
	case KindUrem:
		if yv == 0 {
			return xv, true
		}
		return xv % yv, true
	case KindSdiv:
		sx, sy := signed(xv, w), signed(yv, w)
		if sy == 0 {
			return Mask(^uint64(0), w), true
		}
		minVal := int64(-1) << (w - 1)
		if sx == minVal && sy == -1 {
			return Mask(uint64(minVal), w), true
		}
		return Mask(uint64(sx/sy), w), true
	case KindSrem:
		sx, sy := signed(xv, w), signed(yv, w)
		if sy == 0 {
			return xv, true
		}
		minVal := int64(-1) << (w - 1)
		if sx == minVal && sy == -1 {
			return 0, true
		}
		return Mask(uint64(sx%sy), w), true
	case KindSll:
		sh := yv % uint64(w)
		return Mask(xv<<sh, w), true
	case KindSrl:
		sh := yv % uint64(w)
		return Mask(xv>>sh, w), true
	case KindSra:
		sh := yv % uint64(w)
		sx := SignExtend64(xv, w)
		return Mask(uint64(int64(sx)>>sh), w), true
	case KindEq:
		if xv == yv {
			return 1, true
		}
		return 0, true
	case KindUlt:
		if xv < yv {
			return 1, true
		}
		return 0, true
	case KindUlte:
		if xv <= yv {
			return 1, true
		}
		return 0, true
	case KindSlt:
		if signed(xv, w) < signed(yv, w) {
			return 1, true
		}
		return 0, true
	case KindSlte:
		if signed(xv, w) <= signed(yv, w) {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func signed(v uint64, w uint32) int64 {
	return int64(SignExtend64(v, w))
}

// resultWidth returns the declared width of a binary op's result given its
// operand width.
func resultWidth(kind Kind, operandWidth uint32) uint32 {
	switch kind {
	case KindEq, KindUlt, KindUlte, KindSlt, KindSlte:
		return 1
	default:
		return operandWidth
	}
}

// mkBin is the shared constructor for all binary word-level operators.
func (a *Arena) mkBin(kind Kind, x, y NodeID) (NodeID, error) {
	w, err := a.checkBinWidths(kind.String(), x, y)
	if err != nil {
		return Invalid, err
	}
	rw := resultWidth(kind, w)
	xn, yn := a.Node(x), a.Node(y)

	if xn.Kind == KindConst && yn.Kind == KindConst {
		if v, ok := binConstFold(kind, w, xn.Value, yn.Value); ok {
			return a.MkConst(rw, v), nil
		}
	}

	// identity laws for x op x (And, Or, Xor, Sub, Eq, ...)
	switch kind {
	case KindAnd:
		if x == y {
			return x, nil
		}
	case KindOr:
		if x == y {
			return x, nil
		}
	case KindXor:
		if x == y {
			return a.MkConst(w, 0), nil
		}
	case KindSub:
		if x == y {
			return a.MkConst(w, 0), nil
		}
	case KindEq:
		if x == y {
			return a.MkConst(1, 1), nil
		}
	}

	key := fmt.Sprintf("%s|%d|%d|%d", kind, w, x, y)
	return a.intern(key, func(id NodeID) *Node {
		return &Node{Kind: kind, Width: rw, Args: []NodeID{x, y}}
	}), nil
}

func (a *Arena) MkAnd(x, y NodeID) (NodeID, error)  { return a.mkBin(KindAnd, x, y) }
func (a *Arena) MkOr(x, y NodeID) (NodeID, error)   { return a.mkBin(KindOr, x, y) }
func (a *Arena) MkXor(x, y NodeID) (NodeID, error)  { return a.mkBin(KindXor, x, y) }
func (a *Arena) MkSll(x, y NodeID) (NodeID, error)  { return a.mkBin(KindSll, x, y) }
func (a *Arena) MkSrl(x, y NodeID) (NodeID, error)  { return a.mkBin(KindSrl, x, y) }
func (a *Arena) MkSra(x, y NodeID) (NodeID, error)  { return a.mkBin(KindSra, x, y) }
func (a *Arena) MkAdd(x, y NodeID) (NodeID, error)  { return a.mkBin(KindAdd, x, y) }
func (a *Arena) MkSub(x, y NodeID) (NodeID, error)  { return a.mkBin(KindSub, x, y) }
func (a *Arena) MkMul(x, y NodeID) (NodeID, error)  { return a.mkBin(KindMul, x, y) }
func (a *Arena) MkUdiv(x, y NodeID) (NodeID, error) { return a.mkBin(KindUdiv, x, y) }
func (a *Arena) MkUrem(x, y NodeID) (NodeID, error) { return a.mkBin(KindUrem, x, y) }
func (a *Arena) MkSdiv(x, y NodeID) (NodeID, error) { return a.mkBin(KindSdiv, x, y) }
func (a *Arena) MkSrem(x, y NodeID) (NodeID, error) { return a.mkBin(KindSrem, x, y) }
func (a *Arena) MkEq(x, y NodeID) (NodeID, error)   { return a.mkBin(KindEq, x, y) }
func (a *Arena) MkUlt(x, y NodeID) (NodeID, error)  { return a.mkBin(KindUlt, x, y) }
func (a *Arena) MkUlte(x, y NodeID) (NodeID, error) { return a.mkBin(KindUlte, x, y) }
func (a *Arena) MkSlt(x, y NodeID) (NodeID, error)  { return a.mkBin(KindSlt, x, y) }
func (a *Arena) MkSlte(x, y NodeID) (NodeID, error) { return a.mkBin(KindSlte, x, y) }

// MkIte returns an if-then-else node; cond must be 1 bit wide and t, e must
// share a width.
func (a *Arena) MkIte(cond, t, e NodeID) (NodeID, error) {
	cn := a.Node(cond)
	if cn.Width != 1 {
		return Invalid, &errs.WidthError{Op: "ite", Got: []int{int(cn.Width)}, Expected: 1}
	}
	tn, en := a.Node(t), a.Node(e)
	if tn.Width != en.Width {
		return Invalid, &errs.WidthError{Op: "ite", Got: []int{int(tn.Width), int(en.Width)}, Expected: int(tn.Width)}
	}
	if t == e {
		return t, nil
	}
	if cn.Kind == KindConst {
		if cn.Value == 1 {
			return t, nil
		}
		return e, nil
	}
	key := fmt.Sprintf("ite|%d|%d|%d|%d", tn.Width, cond, t, e)
	return a.intern(key, func(id NodeID) *Node {
		return &Node{Kind: KindIte, Width: tn.Width, Args: []NodeID{cond, t, e}}
	}), nil
}

// MkArrayConst creates a constant array of the given address/data widths,
// every cell initialized to fill.
func (a *Arena) MkArrayConst(addrWidth, dataWidth uint32, fill uint64) NodeID {
	key := fmt.Sprintf("arrconst|%d|%d|%d", addrWidth, dataWidth, Mask(fill, dataWidth))
	return a.intern(key, func(id NodeID) *Node {
		return &Node{Kind: KindArrayConst, Width: dataWidth, AddrWidth: addrWidth, Value: Mask(fill, dataWidth)}
	})
}

// MkRead reads one dataWidth-wide cell from arr at idx.
func (a *Arena) MkRead(arr, idx NodeID) (NodeID, error) {
	an := a.Node(arr)
	in := a.Node(idx)
	if in.Width != an.AddrWidth {
		return Invalid, &errs.WidthError{Op: "read", Got: []int{int(in.Width)}, Expected: int(an.AddrWidth)}
	}
	// read-over-write: if arr is a Write to the same (structurally equal)
	// index, short-circuit to the written value.
	if an.Kind == KindWrite && an.Args[1] == idx {
		return an.Args[2], nil
	}
	key := fmt.Sprintf("read|%d|%d", arr, idx)
	return a.intern(key, func(id NodeID) *Node {
		return &Node{Kind: KindRead, Width: an.Width, AddrWidth: an.AddrWidth, Args: []NodeID{arr, idx}}
	}), nil
}

// MkWrite writes val (dataWidth-wide) into arr at idx, returning the
// updated array.
func (a *Arena) MkWrite(arr, idx, val NodeID) (NodeID, error) {
	an := a.Node(arr)
	in := a.Node(idx)
	vn := a.Node(val)
	if in.Width != an.AddrWidth {
		return Invalid, &errs.WidthError{Op: "write", Got: []int{int(in.Width)}, Expected: int(an.AddrWidth)}
	}
	if vn.Width != an.Width {
		return Invalid, &errs.WidthError{Op: "write", Got: []int{int(vn.Width)}, Expected: int(an.Width)}
	}
	key := fmt.Sprintf("write|%d|%d|%d", arr, idx, val)
	return a.intern(key, func(id NodeID) *Node {
		return &Node{Kind: KindWrite, Width: an.Width, AddrWidth: an.AddrWidth, Args: []NodeID{arr, idx, val}}
	}), nil
}
