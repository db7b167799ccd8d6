package bvg

import "testing"

func TestStructuralHashing(t *testing.T) {
	a := NewArena()
	c1 := a.MkConst(8, 5)
	c2 := a.MkConst(8, 7)

	s1, err := a.MkAdd(c1, c2)
	if err != nil {
		t.Fatalf("MkAdd: %v", err)
	}
	s2, err := a.MkAdd(c1, c2)
	if err != nil {
		t.Fatalf("MkAdd: %v", err)
	}
	if s1 != s2 {
		t.Fatalf("two identical constructions produced different node ids: %d != %d", s1, s2)
	}

	// Constant folding collapses 5+7 to a Const(8, 12) node directly.
	n := a.Node(s1)
	if n.Kind != KindConst || n.Value != 12 {
		t.Fatalf("expected const-folded 12, got kind=%s value=%d", n.Kind, n.Value)
	}
}

func TestWidthMismatchFails(t *testing.T) {
	a := NewArena()
	x := a.MkConst(8, 1)
	y := a.MkConst(16, 1)
	if _, err := a.MkAdd(x, y); err == nil {
		t.Fatal("expected width mismatch error, got nil")
	}
}

func TestIdentityLaws(t *testing.T) {
	a := NewArena()
	x := a.MkInput(8)

	andXX, _ := a.MkAnd(x, x)
	if andXX != x {
		t.Fatalf("x & x should fold to x")
	}

	xorXX, _ := a.MkXor(x, x)
	if a.Node(xorXX).Kind != KindConst || a.Node(xorXX).Value != 0 {
		t.Fatalf("x ^ x should fold to const 0")
	}

	one := a.MkConst(1, 1)
	tBranch := a.MkConst(8, 42)
	eBranch := a.MkConst(8, 99)
	ite, err := a.MkIte(one, tBranch, eBranch)
	if err != nil {
		t.Fatalf("MkIte: %v", err)
	}
	if ite != tBranch {
		t.Fatalf("ite(1,t,e) should fold to t")
	}
}

func TestDivByZeroSemantics(t *testing.T) {
	a := NewArena()
	dividend := a.MkConst(8, 5)
	zero := a.MkConst(8, 0)

	q, err := a.MkUdiv(dividend, zero)
	if err != nil {
		t.Fatalf("MkUdiv: %v", err)
	}
	if a.Node(q).Value != 0xFF {
		t.Fatalf("udiv by zero should be all-ones, got %#x", a.Node(q).Value)
	}

	r, err := a.MkUrem(dividend, zero)
	if err != nil {
		t.Fatalf("MkUrem: %v", err)
	}
	if a.Node(r).Value != 5 {
		t.Fatalf("urem by zero should be the dividend, got %#x", a.Node(r).Value)
	}
}

func TestSignedDivOverflow(t *testing.T) {
	a := NewArena()
	minVal := a.MkConst(8, 0x80) // INT8_MIN
	negOne := a.MkConst(8, 0xFF)

	q, _ := a.MkSdiv(minVal, negOne)
	if a.Node(q).Value != 0x80 {
		t.Fatalf("INT_MIN/-1 should be INT_MIN, got %#x", a.Node(q).Value)
	}
	r, _ := a.MkSrem(minVal, negOne)
	if a.Node(r).Value != 0 {
		t.Fatalf("INT_MIN%%-1 should be 0, got %#x", a.Node(r).Value)
	}
}

func TestReadOverWrite(t *testing.T) {
	a := NewArena()
	arr := a.MkArrayConst(64, 8, 0)
	idx := a.MkConst(64, 10)
	val := a.MkConst(8, 0xAB)

	w, err := a.MkWrite(arr, idx, val)
	if err != nil {
		t.Fatalf("MkWrite: %v", err)
	}
	r, err := a.MkRead(w, idx)
	if err != nil {
		t.Fatalf("MkRead: %v", err)
	}
	if r != val {
		t.Fatalf("read-over-write on the same index should short-circuit to the written value")
	}
}

func TestEvalUnrolledExpression(t *testing.T) {
	a := NewArena()
	in := a.MkInput(8)
	c := a.MkConst(8, 42)
	eq, err := a.MkEq(in, c)
	if err != nil {
		t.Fatalf("MkEq: %v", err)
	}

	env := NewEnv()
	env.Inputs[in] = 42
	v, err := a.Eval(eq, env)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected 1 (equal), got %d", v)
	}

	env.Inputs[in] = 41
	v, err = a.Eval(eq, env)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected 0 (not equal), got %d", v)
	}
}
