package rv64

import "github.com/unicorn-sh/unicorn/pkg/bvg"

// RegFile is the symbolic value of each of the 32 general-purpose
// registers. Register 0 is the constant zero: Step reads index 0 like any
// other register, so callers keep Regs[0] == the arena's MkConst(64, 0)
// node, and Step never writes to index 0.
type RegFile [32]bvg.NodeID

// PCTarget is one possible successor of a single static instruction: if
// Cond evaluates true, the machine moves to Addr (if Symbolic == bvg.Invalid)
// or to whichever static address equals Symbolic (set only by JALR, whose
// target is register-dependent and so cannot be named statically).
type PCTarget struct {
	Cond     bvg.NodeID
	Addr     uint64
	Symbolic bvg.NodeID
}

// BadCond is one bad-predicate contribution raised by a single instruction,
// e.g. "this divide's divisor is zero" guarded by "this instruction is the
// one executing this step".
type BadCond struct {
	Cond  bvg.NodeID
	Label string
}

// Config mirrors the subset of model.Options the instruction semantics
// layer needs: whether division/remainder by zero should be flagged as a
// bad state (spec.md §4.3, §9 open question (c) companion knob).
type Config struct {
	FlagDivZeroBad bool
}

// Allocator mints the fresh identifiers Step needs that are not simple BVG
// node constructions: one small fresh file descriptor per `openat` call
// (the Input per byte consumed by `read` comes from the arena's MkInput
// directly). Kept as an interface
// (rather than a concrete counter) so the Model Builder can guarantee a
// single, deterministic allocation order across the whole program.
type Allocator interface {
	NextFD() uint64
}

// Result is the post-step symbolic state contributed by executing one
// instruction, conditional on its PC flag being set. The Model Builder
// combines the Results of every static instruction with an ITE mux keyed
// by which pc_a flag is set (see pkg/model).
type Result struct {
	Regs    RegFile
	Mem     bvg.NodeID
	Brk     bvg.NodeID
	Targets []PCTarget
	Halt    bool
	Bad     []BadCond
}
