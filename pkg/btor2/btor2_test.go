package btor2

import (
	"bufio"
	"strings"
	"testing"

	"github.com/unicorn-sh/unicorn/pkg/bvg"
)

func linesContaining(t *testing.T, out string, substr string) int {
	t.Helper()
	n := 0
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		if strings.Contains(sc.Text(), substr) {
			n++
		}
	}
	return n
}

func TestWriteSimpleExpression(t *testing.T) {
	a := bvg.NewArena()
	x := a.MkInput(8)
	y := a.MkConst(8, 3)
	sum, err := a.MkAdd(x, y)
	if err != nil {
		t.Fatalf("MkAdd: %v", err)
	}

	var buf strings.Builder
	if err := Write(&buf, a, []bvg.NodeID{sum}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()

	if linesContaining(t, out, " input ") != 1 {
		t.Fatalf("expected exactly one input line:\n%s", out)
	}
	if linesContaining(t, out, " const ") != 1 {
		t.Fatalf("expected exactly one const line:\n%s", out)
	}
	if linesContaining(t, out, " add ") != 1 {
		t.Fatalf("expected exactly one add line:\n%s", out)
	}
	if linesContaining(t, out, " sort bitvec 8") == 0 {
		t.Fatalf("expected an 8-bit sort declaration:\n%s", out)
	}
}

func TestWriteSharesSortLinesAcrossSameWidthNodes(t *testing.T) {
	a := bvg.NewArena()
	x := a.MkInput(16)
	y := a.MkInput(16)
	sum, err := a.MkAdd(x, y)
	if err != nil {
		t.Fatalf("MkAdd: %v", err)
	}

	var buf strings.Builder
	if err := Write(&buf, a, []bvg.NodeID{sum}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if n := linesContaining(t, out, "sort bitvec 16"); n != 1 {
		t.Fatalf("all three 16-bit nodes should share one sort line, got %d", n)
	}
}

func TestWriteStateWithInitAndNext(t *testing.T) {
	a := bvg.NewArena()
	init := a.MkConst(32, 0)
	st := a.MkState(32, init, "counter")
	one, err := a.MkAdd(st, a.MkConst(32, 1))
	if err != nil {
		t.Fatalf("MkAdd: %v", err)
	}
	if err := a.BindNext(st, one); err != nil {
		t.Fatalf("BindNext: %v", err)
	}

	var buf strings.Builder
	if err := Write(&buf, a, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if linesContaining(t, out, " state ") != 1 {
		t.Fatalf("expected one state line:\n%s", out)
	}
	if linesContaining(t, out, " init ") != 1 {
		t.Fatalf("expected one init line:\n%s", out)
	}
	if linesContaining(t, out, " next ") != 1 {
		t.Fatalf("expected one next line:\n%s", out)
	}
}

func TestWriteEmitsBadPredicates(t *testing.T) {
	a := bvg.NewArena()
	cond := a.MkConst(1, 0)
	bad, err := a.MkBad(cond, "div-by-zero")
	if err != nil {
		t.Fatalf("MkBad: %v", err)
	}
	_ = bad

	var buf strings.Builder
	if err := Write(&buf, a, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if linesContaining(t, out, " bad ") != 1 {
		t.Fatalf("expected one bad line:\n%s", out)
	}
}

func TestWriteDedupesSharedSubexpressions(t *testing.T) {
	a := bvg.NewArena()
	x := a.MkInput(8)
	shared, err := a.MkAdd(x, a.MkConst(8, 1))
	if err != nil {
		t.Fatalf("MkAdd: %v", err)
	}
	lhs, err := a.MkAdd(shared, shared)
	if err != nil {
		t.Fatalf("MkAdd: %v", err)
	}

	var buf strings.Builder
	if err := Write(&buf, a, []bvg.NodeID{lhs}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	// "shared" must be emitted exactly once even though it is referenced
	// twice by the outer add.
	if n := linesContaining(t, out, " add "); n != 2 {
		t.Fatalf("expected exactly 2 add lines (shared once, outer once), got %d:\n%s", n, out)
	}
}
