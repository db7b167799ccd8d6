package prune

import (
	"context"
	"testing"

	"github.com/unicorn-sh/unicorn/pkg/bvg"
	"github.com/unicorn-sh/unicorn/pkg/smt"
)

func TestRunFoldsProvableConstants(t *testing.T) {
	a := bvg.NewArena()
	x := a.MkInput(8)
	selfEq, err := a.MkEq(x, x) // always true, regardless of x
	if err != nil {
		t.Fatalf("MkEq: %v", err)
	}
	nonConst, err := a.MkAdd(x, x) // depends on x, never folds
	if err != nil {
		t.Fatalf("MkAdd: %v", err)
	}

	roots, stats, err := Run(context.Background(), a, []bvg.NodeID{selfEq, nonConst}, Options{Backend: smt.NullBackend{}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Node(roots[0]).Kind != bvg.KindConst || a.Node(roots[0]).Value != 1 {
		t.Fatalf("x==x should be folded to Const(1,1), got %+v", a.Node(roots[0]))
	}
	if a.Node(roots[1]).Kind == bvg.KindConst {
		t.Fatalf("x+x is not provably constant and must stay symbolic, got %+v", a.Node(roots[1]))
	}
	if stats.Visited == 0 {
		t.Fatal("expected Run to visit at least the live nodes it was given")
	}
}

// TestDeterminismAtT0 realizes spec.md's seed scenario 6: running
// compilation twice with T=0 (NullBackend, no solver queries) must produce
// byte-identical output — here, identical rebuilt root ids and stats.
func TestDeterminismAtT0(t *testing.T) {
	build := func() (*bvg.Arena, bvg.NodeID) {
		a := bvg.NewArena()
		x := a.MkInput(16)
		y := a.MkInput(16)
		sum, _ := a.MkAdd(x, y)
		cmp, _ := a.MkUlt(sum, a.MkConst(16, 100))
		return a, cmp
	}

	a1, root1 := build()
	roots1, stats1, err := Run(context.Background(), a1, []bvg.NodeID{root1}, Options{Backend: smt.NullBackend{}})
	if err != nil {
		t.Fatalf("Run (first): %v", err)
	}

	a2, root2 := build()
	roots2, stats2, err := Run(context.Background(), a2, []bvg.NodeID{root2}, Options{Backend: smt.NullBackend{}})
	if err != nil {
		t.Fatalf("Run (second): %v", err)
	}

	if roots1[0] != roots2[0] {
		t.Fatalf("identical inputs should produce identical root ids: %d != %d", roots1[0], roots2[0])
	}
	if stats1 != stats2 {
		t.Fatalf("identical inputs should produce identical stats: %+v != %+v", stats1, stats2)
	}
}

func TestRunWithNilBackendDefaultsToNull(t *testing.T) {
	a := bvg.NewArena()
	x := a.MkInput(8)
	if _, _, err := Run(context.Background(), a, []bvg.NodeID{x}, Options{}); err != nil {
		t.Fatalf("Run with a zero-value Options (nil Backend) should fall back to NullBackend: %v", err)
	}
}
