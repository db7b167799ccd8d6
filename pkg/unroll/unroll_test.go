package unroll

import (
	"encoding/binary"
	"testing"

	"github.com/unicorn-sh/unicorn/pkg/model"
	"github.com/unicorn-sh/unicorn/pkg/rvelf"
)

func le32(w uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, w)
	return b
}

func addiWord(rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | 0<<12 | rd<<7 | 0b0010011
}

func jalWord(rd uint32, imm int32) uint32 {
	u := uint32(imm)
	bit20 := (u >> 20) & 1
	bits10_1 := (u >> 1) & 0x3FF
	bit11 := (u >> 11) & 1
	bits19_12 := (u >> 12) & 0xFF
	return bit20<<31 | bits10_1<<21 | bit11<<20 | bits19_12<<12 | rd<<7 | 0b1101111
}

// loopImage increments x10 forever: addi x10,x10,1; jal x0,-4 (back to the
// addi). This is spec.md's seed scenario 5 "increments a register in a
// loop" program.
func loopImage() *rvelf.Image {
	var code []byte
	code = append(code, le32(addiWord(10, 10, 1))...)
	code = append(code, le32(jalWord(0, -4))...)
	return rvelf.FromRaw(code, 0x1000, nil, 0, 0x1000)
}

func buildAndUnroll(t *testing.T, depth int) int {
	t.Helper()
	img := loopImage()
	m, err := model.Build(img, model.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	u, err := Depth(m, depth)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if len(u.Steps) != depth+1 {
		t.Fatalf("expected %d steps, got %d", depth+1, len(u.Steps))
	}
	return int(u.Arena.Len())
}

// TestUnrollGrowsLinearly realizes spec.md's seed scenario 5: unrolling a
// simple loop to depth N should cost roughly N times one step's worth of
// nodes, not grow exponentially with N.
func TestUnrollGrowsLinearly(t *testing.T) {
	n5 := buildAndUnroll(t, 5)
	n10 := buildAndUnroll(t, 10)
	n20 := buildAndUnroll(t, 20)

	growth1 := n10 - n5
	growth2 := n20 - n10
	if growth1 <= 0 || growth2 <= 0 {
		t.Fatalf("expected the arena to keep growing with depth: n5=%d n10=%d n20=%d", n5, n10, n20)
	}
	// Doubling the remaining depth (5->10 is +5 steps, 10->20 is +10 steps)
	// should roughly double the node growth, not square it.
	ratio := float64(growth2) / float64(growth1)
	if ratio > 4.0 {
		t.Fatalf("unrolling looks superlinear in depth: growth(5->10)=%d growth(10->20)=%d ratio=%.2f", growth1, growth2, ratio)
	}
}

func TestDepthZeroIsJustInitialState(t *testing.T) {
	img := loopImage()
	m, err := model.Build(img, model.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	u, err := Depth(m, 0)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if len(u.Steps) != 1 {
		t.Fatalf("depth 0 should produce exactly the initial step, got %d steps", len(u.Steps))
	}
}

func divWord(rd, rs1, rs2 uint32) uint32 {
	return 0b0000001<<25 | rs2<<20 | rs1<<15 | 0b100<<12 | rd<<7 | 0b0110011
}

// divZeroLoopImage divides x10 by the architectural zero register into x11
// every iteration: div x11,x10,x0; addi x10,x10,1; jal x0,-8. With
// FlagDivZeroBad, this is an unconditional bad state at every step.
func divZeroLoopImage() *rvelf.Image {
	var code []byte
	code = append(code, le32(divWord(11, 10, 0))...)
	code = append(code, le32(addiWord(10, 10, 1))...)
	code = append(code, le32(jalWord(0, -8))...)
	return rvelf.FromRaw(code, 0x1000, nil, 0, 0x1000)
}

// TestBadConditionsAreNumberedStepMajor confirms BadConds assigns nids in
// step-major, bad-index-minor order: one instance per declared Bad predicate
// per unrolled step (including step 0), numbered 0..N-1 with no gaps or
// repeats — the unit qubo.Model.BadStates and genuine per-(step,bad)
// counting (spec.md §9 Open Question (a)) depend on.
func TestBadConditionsAreNumberedStepMajor(t *testing.T) {
	img := divZeroLoopImage()
	m, err := model.Build(img, model.Options{FlagDivZeroBad: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Bads) == 0 {
		t.Fatal("expected at least one declared bad predicate")
	}

	const depth = 4
	u, err := Depth(m, depth)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}

	wantPerStep := len(m.Bads)
	wantTotal := wantPerStep * (depth + 1)
	if len(u.BadConds) != wantTotal {
		t.Fatalf("expected %d bad conditions (%d bads * %d steps), got %d",
			wantTotal, wantPerStep, depth+1, len(u.BadConds))
	}

	for i, c := range u.BadConds {
		if c.Nid != uint64(i) {
			t.Fatalf("BadConds[%d].Nid = %d, want sequential %d", i, c.Nid, i)
		}
	}

	for stepIdx, step := range u.Steps {
		if len(step.BadHere) != wantPerStep {
			t.Fatalf("step %d: expected %d bad predicates, got %d", stepIdx, wantPerStep, len(step.BadHere))
		}
		for j, node := range step.BadHere {
			want := u.BadConds[stepIdx*wantPerStep+j].Node
			if node != want {
				t.Fatalf("step %d bad %d: Steps[].BadHere disagrees with BadConds ordering", stepIdx, j)
			}
		}
	}
}
