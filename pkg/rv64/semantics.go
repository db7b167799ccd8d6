package rv64

import (
	"github.com/unicorn-sh/unicorn/pkg/bvg"
	"github.com/unicorn-sh/unicorn/pkg/errs"
)

// Step computes the symbolic post-state contributed by executing instr,
// given the pre-step register file, memory array, and program-break state,
// all conditional on instr's own pc_a flag being set (the caller — the
// Model Builder — is responsible for guarding this contribution with that
// flag before OR-combining it with every other static instruction's
// contribution). Semantics follow spec.md §4.2 exactly; only the opcodes
// and syscalls it names are modeled.
func Step(a *bvg.Arena, alloc Allocator, instr Instruction, regs RegFile, mem, brk bvg.NodeID, cfg Config) (Result, error) {
	res := Result{Regs: regs, Mem: mem, Brk: brk}
	fallthroughTarget := []PCTarget{{Cond: one(a), Addr: instr.PC + 4}}
	res.Targets = fallthroughTarget

	rs1 := regs[instr.Rs1]
	rs2 := regs[instr.Rs2]
	imm64 := a.MkConst(64, uint64(instr.Imm))

	setRd := func(v bvg.NodeID) {
		if instr.Rd != 0 {
			res.Regs[instr.Rd] = v
		}
	}

	var err error
	switch instr.Op {
	case OpAdd:
		v, e := a.MkAdd(rs1, rs2)
		err = e
		setRd(v)
	case OpSub:
		v, e := a.MkSub(rs1, rs2)
		err = e
		setRd(v)
	case OpAnd:
		v, e := a.MkAnd(rs1, rs2)
		err = e
		setRd(v)
	case OpOr:
		v, e := a.MkOr(rs1, rs2)
		err = e
		setRd(v)
	case OpXor:
		v, e := a.MkXor(rs1, rs2)
		err = e
		setRd(v)
	case OpSll:
		v, e := a.MkSll(rs1, rs2)
		err = e
		setRd(v)
	case OpSrl:
		v, e := a.MkSrl(rs1, rs2)
		err = e
		setRd(v)
	case OpSra:
		v, e := a.MkSra(rs1, rs2)
		err = e
		setRd(v)
	case OpSlt:
		v, e := a.MkSlt(rs1, rs2)
		if e == nil {
			v, e = a.MkExt(v, 64, bvg.ExtZero)
		}
		err = e
		setRd(v)
	case OpSltu:
		v, e := a.MkUlt(rs1, rs2)
		if e == nil {
			v, e = a.MkExt(v, 64, bvg.ExtZero)
		}
		err = e
		setRd(v)

	case OpAddi:
		v, e := a.MkAdd(rs1, imm64)
		err = e
		setRd(v)
	case OpAndi:
		v, e := a.MkAnd(rs1, imm64)
		err = e
		setRd(v)
	case OpOri:
		v, e := a.MkOr(rs1, imm64)
		err = e
		setRd(v)
	case OpXori:
		v, e := a.MkXor(rs1, imm64)
		err = e
		setRd(v)
	case OpSlli:
		v, e := a.MkSll(rs1, imm64)
		err = e
		setRd(v)
	case OpSrli:
		v, e := a.MkSrl(rs1, imm64)
		err = e
		setRd(v)
	case OpSrai:
		v, e := a.MkSra(rs1, imm64)
		err = e
		setRd(v)
	case OpSlti:
		v, e := a.MkSlt(rs1, imm64)
		if e == nil {
			v, e = a.MkExt(v, 64, bvg.ExtZero)
		}
		err = e
		setRd(v)
	case OpSltiu:
		v, e := a.MkUlt(rs1, imm64)
		if e == nil {
			v, e = a.MkExt(v, 64, bvg.ExtZero)
		}
		err = e
		setRd(v)

	case OpAddw, OpSubw, OpSllw, OpSrlw, OpSraw, OpAddiw, OpSlliw, OpSrliw, OpSraiw:
		var rhs bvg.NodeID
		switch instr.Op {
		case OpAddiw, OpSlliw, OpSrliw, OpSraiw:
			rhs = a.MkConst(64, uint64(instr.Imm))
		default:
			rhs = rs2
		}
		v, e := wordOp(a, instr.Op, rs1, rhs)
		err = e
		setRd(v)

	case OpMul:
		v, e := a.MkMul(rs1, rs2)
		err = e
		setRd(v)
	case OpDiv, OpDivu, OpRem, OpRemu:
		v, bad, e := divOp(a, instr.Op, rs1, rs2, 64)
		if e == nil && cfg.FlagDivZeroBad && bad != bvg.Invalid {
			res.Bad = append(res.Bad, BadCond{Cond: bad, Label: "div-by-zero"})
		}
		err = e
		setRd(v)
	case OpMulw, OpDivw, OpDivuw, OpRemw, OpRemuw:
		v, bad, e := wordDivOp(a, instr.Op, rs1, rs2)
		if e == nil && cfg.FlagDivZeroBad && bad != bvg.Invalid {
			res.Bad = append(res.Bad, BadCond{Cond: bad, Label: "div-by-zero-w"})
		}
		err = e
		setRd(v)
	case OpMulh, OpMulhsu, OpMulhu:
		err = &errs.UnsupportedInstruction{PC: instr.PC, Word: instr.Word, Msg: "mulh/mulhsu/mulhu are outside the modeled rv64im subset"}

	case OpLb, OpLh, OpLw, OpLd, OpLbu, OpLhu, OpLwu:
		addr, e := a.MkAdd(rs1, imm64)
		if e != nil {
			err = e
			break
		}
		v, e := loadOp(a, mem, addr, instr.Op)
		err = e
		setRd(v)

	case OpSb, OpSh, OpSw, OpSd:
		addr, e := a.MkAdd(rs1, imm64)
		if e != nil {
			err = e
			break
		}
		nmem, e := storeOp(a, mem, addr, rs2, instr.Op)
		err = e
		res.Mem = nmem

	case OpBeq, OpBne, OpBlt, OpBltu, OpBge, OpBgeu:
		cond, e := branchCond(a, instr.Op, rs1, rs2)
		if e != nil {
			err = e
			break
		}
		notCond, e := a.MkNot(cond)
		if e != nil {
			err = e
			break
		}
		res.Targets = []PCTarget{
			{Cond: cond, Addr: instr.PC + uint64(instr.Imm)},
			{Cond: notCond, Addr: instr.PC + 4},
		}

	case OpJal:
		setRd(a.MkConst(64, instr.PC+4))
		res.Targets = []PCTarget{{Cond: one(a), Addr: instr.PC + uint64(instr.Imm)}}

	case OpJalr:
		target, e := a.MkAdd(rs1, imm64)
		if e != nil {
			err = e
			break
		}
		mask := a.MkConst(64, ^uint64(1))
		target, e = a.MkAnd(target, mask)
		if e != nil {
			err = e
			break
		}
		setRd(a.MkConst(64, instr.PC+4))
		res.Targets = []PCTarget{{Cond: one(a), Symbolic: target}}

	case OpLui:
		setRd(a.MkConst(64, uint64(instr.Imm)))
	case OpAuipc:
		v, e := a.MkAdd(a.MkConst(64, instr.PC), imm64)
		err = e
		setRd(v)

	case OpEcall:
		return ecall(a, alloc, instr, res, cfg)

	default:
		err = &errs.UnsupportedInstruction{PC: instr.PC, Word: instr.Word, Msg: "unrecognized op"}
	}

	if err != nil {
		return Result{}, errs.At(instr.PC, err)
	}
	return res, nil
}

func one(a *bvg.Arena) bvg.NodeID { return a.MkConst(1, 1) }

// wordOp computes a *.W arithmetic/shift op: 32-bit operation on the low 32
// bits of both operands, then sign-extends the 32-bit result to 64 bits.
func wordOp(a *bvg.Arena, op Op, x, y bvg.NodeID) (bvg.NodeID, error) {
	x32, err := a.MkSlice(x, 31, 0)
	if err != nil {
		return bvg.Invalid, err
	}
	y32, err := a.MkSlice(y, 31, 0)
	if err != nil {
		return bvg.Invalid, err
	}
	var r32 bvg.NodeID
	switch op {
	case OpAddw, OpAddiw:
		r32, err = a.MkAdd(x32, y32)
	case OpSubw:
		r32, err = a.MkSub(x32, y32)
	case OpSllw, OpSlliw:
		r32, err = a.MkSll(x32, y32)
	case OpSrlw, OpSrliw:
		r32, err = a.MkSrl(x32, y32)
	case OpSraw, OpSraiw:
		r32, err = a.MkSra(x32, y32)
	}
	if err != nil {
		return bvg.Invalid, err
	}
	return a.MkExt(r32, 64, bvg.ExtSign)
}

// divOp computes div/divu/rem/remu at the given width, returning the
// result and the "divisor is zero" condition (the caller decides whether
// to flag it).
func divOp(a *bvg.Arena, op Op, x, y bvg.NodeID, _ uint32) (bvg.NodeID, bvg.NodeID, error) {
	zero := a.MkConst(a.Node(y).Width, 0)
	isZero, err := a.MkEq(y, zero)
	if err != nil {
		return bvg.Invalid, bvg.Invalid, err
	}
	var v bvg.NodeID
	switch op {
	case OpDiv:
		v, err = a.MkSdiv(x, y)
	case OpDivu:
		v, err = a.MkUdiv(x, y)
	case OpRem:
		v, err = a.MkSrem(x, y)
	case OpRemu:
		v, err = a.MkUrem(x, y)
	}
	return v, isZero, err
}

func wordDivOp(a *bvg.Arena, op Op, x, y bvg.NodeID) (bvg.NodeID, bvg.NodeID, error) {
	x32, err := a.MkSlice(x, 31, 0)
	if err != nil {
		return bvg.Invalid, bvg.Invalid, err
	}
	y32, err := a.MkSlice(y, 31, 0)
	if err != nil {
		return bvg.Invalid, bvg.Invalid, err
	}
	if op == OpMulw {
		r32, err := a.MkMul(x32, y32)
		if err != nil {
			return bvg.Invalid, bvg.Invalid, err
		}
		v, err := a.MkExt(r32, 64, bvg.ExtSign)
		return v, bvg.Invalid, err
	}
	var innerOp Op
	switch op {
	case OpDivw:
		innerOp = OpDiv
	case OpDivuw:
		innerOp = OpDivu
	case OpRemw:
		innerOp = OpRem
	case OpRemuw:
		innerOp = OpRemu
	}
	r32, isZero, err := divOp(a, innerOp, x32, y32, 32)
	if err != nil {
		return bvg.Invalid, bvg.Invalid, err
	}
	v, err := a.MkExt(r32, 64, bvg.ExtSign)
	return v, isZero, err
}

func loadOp(a *bvg.Arena, mem, addr bvg.NodeID, op Op) (bvg.NodeID, error) {
	var n int
	var signed bool
	switch op {
	case OpLb:
		n, signed = 1, true
	case OpLbu:
		n, signed = 1, false
	case OpLh:
		n, signed = 2, true
	case OpLhu:
		n, signed = 2, false
	case OpLw:
		n, signed = 4, true
	case OpLwu:
		n, signed = 4, false
	case OpLd:
		n, signed = 8, true // sign-extension is a no-op at width 64
	}
	v, err := composeLoad(a, mem, addr, n)
	if err != nil {
		return bvg.Invalid, err
	}
	if uint32(n*8) == 64 {
		return v, nil
	}
	if signed {
		return a.MkExt(v, 64, bvg.ExtSign)
	}
	return a.MkExt(v, 64, bvg.ExtZero)
}

// composeLoad reads n consecutive bytes starting at addr and composes them
// little-endian into an (n*8)-bit value.
func composeLoad(a *bvg.Arena, mem, addr bvg.NodeID, n int) (bvg.NodeID, error) {
	w := uint32(n * 8)
	var acc bvg.NodeID
	for i := 0; i < n; i++ {
		ai, err := a.MkAdd(addr, a.MkConst(64, uint64(i)))
		if err != nil {
			return bvg.Invalid, err
		}
		b, err := a.MkRead(mem, ai)
		if err != nil {
			return bvg.Invalid, err
		}
		wide, err := a.MkExt(b, w, bvg.ExtZero)
		if err != nil {
			return bvg.Invalid, err
		}
		if i > 0 {
			wide, err = a.MkSll(wide, a.MkConst(w, uint64(8*i)))
			if err != nil {
				return bvg.Invalid, err
			}
		}
		if acc == bvg.Invalid {
			acc = wide
		} else {
			acc, err = a.MkOr(acc, wide)
			if err != nil {
				return bvg.Invalid, err
			}
		}
	}
	return acc, nil
}

func storeOp(a *bvg.Arena, mem, addr, val bvg.NodeID, op Op) (bvg.NodeID, error) {
	var n int
	switch op {
	case OpSb:
		n = 1
	case OpSh:
		n = 2
	case OpSw:
		n = 4
	case OpSd:
		n = 8
	}
	return composeStore(a, mem, addr, val, n)
}

// composeStore decomposes val's low n*8 bits into n little-endian bytes and
// writes them to consecutive addresses starting at addr.
func composeStore(a *bvg.Arena, mem, addr, val bvg.NodeID, n int) (bvg.NodeID, error) {
	cur := mem
	for i := 0; i < n; i++ {
		b, err := a.MkSlice(val, uint32(8*i+7), uint32(8*i))
		if err != nil {
			return bvg.Invalid, err
		}
		ai, err := a.MkAdd(addr, a.MkConst(64, uint64(i)))
		if err != nil {
			return bvg.Invalid, err
		}
		cur, err = a.MkWrite(cur, ai, b)
		if err != nil {
			return bvg.Invalid, err
		}
	}
	return cur, nil
}

func branchCond(a *bvg.Arena, op Op, x, y bvg.NodeID) (bvg.NodeID, error) {
	switch op {
	case OpBeq:
		return a.MkEq(x, y)
	case OpBne:
		eq, err := a.MkEq(x, y)
		if err != nil {
			return bvg.Invalid, err
		}
		return a.MkNot(eq)
	case OpBlt:
		return a.MkSlt(x, y)
	case OpBge:
		lt, err := a.MkSlt(x, y)
		if err != nil {
			return bvg.Invalid, err
		}
		return a.MkNot(lt)
	case OpBltu:
		return a.MkUlt(x, y)
	case OpBgeu:
		lt, err := a.MkUlt(x, y)
		if err != nil {
			return bvg.Invalid, err
		}
		return a.MkNot(lt)
	}
	return bvg.Invalid, &errs.UnsupportedInstruction{Msg: "not a branch op"}
}
