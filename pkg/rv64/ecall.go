package rv64

import (
	"github.com/unicorn-sh/unicorn/pkg/bvg"
	"github.com/unicorn-sh/unicorn/pkg/errs"
)

// RISC-V Linux riscv64 syscall numbers (a7), per spec.md's named subset.
const (
	sysExit  = 93
	sysBrk   = 214
	sysOpen  = 56
	sysRead  = 63
	sysWrite = 64

	// sysAssert is not a real Linux riscv64 syscall number; it is this
	// model's hook for spec.md §4.3's "user-declared assertion ecalls" —
	// a program fails the assertion by calling ecall with a7=sysAssert and
	// a0 holding the (symbolic) condition that must be nonzero to pass.
	sysAssert = 2000
)

// Calling-convention register indices (a0..a7 = x10..x17).
const (
	regA0 = 10
	regA1 = 11
	regA2 = 12
	regA7 = 17
)

// RegA0 exports regA0 for the Model Builder: among the general-purpose
// registers, ecall only ever writes a0 (brk/open/read/write's return value),
// leaving every other register exactly as it read it. The builder needs this
// to know which register to keep from a dispatch-resolving register snapshot
// that otherwise never feeds the real per-cycle state.
const RegA0 = regA0

// ecall dispatches a pre-decoded OpEcall instruction to its symbolic
// semantics, keyed on the a7 register's syscall number. Only the syscalls
// spec.md names, plus the modeled sysAssert hook, are supported; anything
// else is a fatal UnsupportedInstruction, same as an unrecognized opcode.
func ecall(a *bvg.Arena, alloc Allocator, instr Instruction, res Result, cfg Config) (Result, error) {
	a7 := a.Node(res.Regs[regA7])
	if a7.Kind != bvg.KindConst {
		return Result{}, errs.At(instr.PC, &errs.UnsupportedInstruction{
			PC: instr.PC, Word: instr.Word, Msg: "ecall number (a7) must be a concrete constant",
		})
	}

	switch a7.Value {
	case sysExit:
		res.Halt = true
		res.Targets = nil
		return res, nil

	case sysBrk:
		a0 := res.Regs[regA0]
		zero := a.MkConst(64, 0)
		isQuery, err := a.MkEq(a0, zero)
		if err != nil {
			return Result{}, errs.At(instr.PC, err)
		}
		newBrk, err := a.MkIte(isQuery, res.Brk, a0)
		if err != nil {
			return Result{}, errs.At(instr.PC, err)
		}
		res.Brk = newBrk
		res.Regs[regA0] = newBrk
		return res, nil

	case sysOpen:
		res.Regs[regA0] = a.MkConst(64, alloc.NextFD())
		return res, nil

	case sysRead:
		cnt := a.Node(res.Regs[regA2])
		if cnt.Kind != bvg.KindConst {
			return Result{}, errs.At(instr.PC, &errs.UnsupportedInstruction{
				PC: instr.PC, Word: instr.Word,
				Msg: "read syscall count (a2) must be a concrete constant: one Input node is minted per consumed byte",
			})
		}
		n := int(cnt.Value)
		buf := res.Regs[regA1]
		mem := res.Mem
		for i := 0; i < n; i++ {
			addr, err := a.MkAdd(buf, a.MkConst(64, uint64(i)))
			if err != nil {
				return Result{}, errs.At(instr.PC, err)
			}
			b := a.MkInput(8)
			mem, err = a.MkWrite(mem, addr, b)
			if err != nil {
				return Result{}, errs.At(instr.PC, err)
			}
		}
		res.Mem = mem
		res.Regs[regA0] = a.MkConst(64, uint64(n))
		return res, nil

	case sysWrite:
		// write never contributes a bad condition and has no symbolic
		// effect on machine state beyond reporting success.
		res.Regs[regA0] = res.Regs[regA2]
		return res, nil

	case sysAssert:
		cond := res.Regs[regA0]
		zero := a.MkConst(64, 0)
		failed, err := a.MkEq(cond, zero)
		if err != nil {
			return Result{}, errs.At(instr.PC, err)
		}
		res.Bad = append(res.Bad, BadCond{Cond: failed, Label: "assertion-failed"})
		return res, nil

	default:
		return Result{}, errs.At(instr.PC, &errs.UnsupportedInstruction{
			PC: instr.PC, Word: instr.Word, Msg: "unsupported syscall number",
		})
	}
}
