// Package rv64 decodes rv64im instruction words and defines their symbolic
// semantics as BVG updates. Decoding is grounded on the opcode/funct3/funct7
// bitfield extraction in LMMilewski-riscv-emu/decode.go, generalized from
// RV32I to rv64im and trimmed to the opcodes spec.md names (no compressed,
// floating point, CSR, or privileged instructions).
package rv64

import (
	"fmt"

	"github.com/unicorn-sh/unicorn/pkg/errs"
)

// Op identifies a decoded rv64im instruction (or INVALID, which is not a
// real RISC-V opcode but a useful sentinel semantics entry).
type Op int

const (
	OpInvalid Op = iota

	// rv64i arithmetic/logical (register-register)
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpSll
	OpSrl
	OpSra
	OpSlt
	OpSltu

	// rv64i arithmetic/logical (register-immediate)
	OpAddi
	OpAndi
	OpOri
	OpXori
	OpSlli
	OpSrli
	OpSrai
	OpSlti
	OpSltiu

	// rv64i word ops (32-bit then sign-extend)
	OpAddw
	OpSubw
	OpSllw
	OpSrlw
	OpSraw
	OpAddiw
	OpSlliw
	OpSrliw
	OpSraiw

	// rv64m
	OpMul
	OpMulh
	OpMulhsu
	OpMulhu
	OpDiv
	OpDivu
	OpRem
	OpRemu
	OpMulw
	OpDivw
	OpDivuw
	OpRemw
	OpRemuw

	// loads/stores
	OpLb
	OpLh
	OpLw
	OpLd
	OpLbu
	OpLhu
	OpLwu
	OpSb
	OpSh
	OpSw
	OpSd

	// control
	OpBeq
	OpBne
	OpBlt
	OpBltu
	OpBge
	OpBgeu
	OpJal
	OpJalr

	// upper immediate / pc-relative / syscall
	OpLui
	OpAuipc
	OpEcall
)

// Instruction is a decoded rv64 instruction at a known address.
type Instruction struct {
	PC       uint64
	Word     uint32
	Op       Op
	Rd       uint32
	Rs1      uint32
	Rs2      uint32
	Imm      int64 // sign-extended immediate, as the architecture defines it
}

func bits(word uint32, hi, lo uint) uint32 {
	return (word >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func signExtend32(v uint32, signBitPos uint) int64 {
	shift := 31 - signBitPos
	return int64(int32(v<<shift)) >> shift
}

// Decode decodes the 4-byte little-endian instruction word at pc. Only
// 32-bit (non-compressed) encodings are modeled, per spec.md's explicit
// non-goal of preserving compressed encodings.
func Decode(pc uint64, word uint32) (Instruction, error) {
	in := Instruction{PC: pc, Word: word}
	opcode := bits(word, 6, 0)
	funct3 := bits(word, 14, 12)
	funct7 := bits(word, 31, 25)
	in.Rd = bits(word, 11, 7)
	in.Rs1 = bits(word, 19, 15)
	in.Rs2 = bits(word, 24, 20)

	switch opcode {
	case 0b0110111: // LUI
		in.Op = OpLui
		in.Imm = int64(int32(word & 0xFFFFF000))
		return in, nil
	case 0b0010111: // AUIPC
		in.Op = OpAuipc
		in.Imm = int64(int32(word & 0xFFFFF000))
		return in, nil
	case 0b1101111: // JAL
		in.Op = OpJal
		imm := bits(word, 31, 31)<<20 | bits(word, 19, 12)<<12 | bits(word, 20, 20)<<11 | bits(word, 30, 21)<<1
		in.Imm = signExtend32(imm, 20)
		return in, nil
	case 0b1100111: // JALR
		if funct3 != 0 {
			return in, unsupported(pc, word, "jalr funct3")
		}
		in.Op = OpJalr
		in.Imm = signExtend32(bits(word, 31, 20), 11)
		return in, nil
	case 0b1100011: // branches
		imm := bits(word, 31, 31)<<12 | bits(word, 7, 7)<<11 | bits(word, 30, 25)<<5 | bits(word, 11, 8)<<1
		in.Imm = signExtend32(imm, 12)
		switch funct3 {
		case 0b000:
			in.Op = OpBeq
		case 0b001:
			in.Op = OpBne
		case 0b100:
			in.Op = OpBlt
		case 0b101:
			in.Op = OpBge
		case 0b110:
			in.Op = OpBltu
		case 0b111:
			in.Op = OpBgeu
		default:
			return in, unsupported(pc, word, "branch funct3")
		}
		return in, nil
	case 0b0000011: // loads
		in.Imm = signExtend32(bits(word, 31, 20), 11)
		switch funct3 {
		case 0b000:
			in.Op = OpLb
		case 0b001:
			in.Op = OpLh
		case 0b010:
			in.Op = OpLw
		case 0b011:
			in.Op = OpLd
		case 0b100:
			in.Op = OpLbu
		case 0b101:
			in.Op = OpLhu
		case 0b110:
			in.Op = OpLwu
		default:
			return in, unsupported(pc, word, "load funct3")
		}
		return in, nil
	case 0b0100011: // stores
		imm := bits(word, 31, 25)<<5 | bits(word, 11, 7)
		in.Imm = signExtend32(imm, 11)
		switch funct3 {
		case 0b000:
			in.Op = OpSb
		case 0b001:
			in.Op = OpSh
		case 0b010:
			in.Op = OpSw
		case 0b011:
			in.Op = OpSd
		default:
			return in, unsupported(pc, word, "store funct3")
		}
		return in, nil
	case 0b0010011: // register-immediate, 64-bit
		in.Imm = signExtend32(bits(word, 31, 20), 11)
		switch funct3 {
		case 0b000:
			in.Op = OpAddi
		case 0b010:
			in.Op = OpSlti
		case 0b011:
			in.Op = OpSltiu
		case 0b100:
			in.Op = OpXori
		case 0b110:
			in.Op = OpOri
		case 0b111:
			in.Op = OpAndi
		case 0b001:
			in.Op = OpSlli
			in.Imm = int64(bits(word, 25, 20)) // shamt is 6 bits for rv64
		case 0b101:
			in.Imm = int64(bits(word, 25, 20))
			if bits(word, 31, 26) == 0b010000 {
				in.Op = OpSrai
			} else {
				in.Op = OpSrli
			}
		default:
			return in, unsupported(pc, word, "op-imm funct3")
		}
		return in, nil
	case 0b0011011: // register-immediate, 32-bit (*w)
		in.Imm = signExtend32(bits(word, 31, 20), 11)
		switch funct3 {
		case 0b000:
			in.Op = OpAddiw
		case 0b001:
			in.Op = OpSlliw
			in.Imm = int64(bits(word, 24, 20))
		case 0b101:
			in.Imm = int64(bits(word, 24, 20))
			if funct7 == 0b0100000 {
				in.Op = OpSraiw
			} else {
				in.Op = OpSrliw
			}
		default:
			return in, unsupported(pc, word, "op-imm-32 funct3")
		}
		return in, nil
	case 0b0110011: // register-register, 64-bit (rv64i + rv64m)
		if funct7 == 0b0000001 {
			switch funct3 {
			case 0b000:
				in.Op = OpMul
			case 0b001:
				in.Op = OpMulh
			case 0b010:
				in.Op = OpMulhsu
			case 0b011:
				in.Op = OpMulhu
			case 0b100:
				in.Op = OpDiv
			case 0b101:
				in.Op = OpDivu
			case 0b110:
				in.Op = OpRem
			case 0b111:
				in.Op = OpRemu
			default:
				return in, unsupported(pc, word, "rv64m funct3")
			}
			return in, nil
		}
		switch funct3 {
		case 0b000:
			if funct7 == 0b0100000 {
				in.Op = OpSub
			} else {
				in.Op = OpAdd
			}
		case 0b001:
			in.Op = OpSll
		case 0b010:
			in.Op = OpSlt
		case 0b011:
			in.Op = OpSltu
		case 0b100:
			in.Op = OpXor
		case 0b101:
			if funct7 == 0b0100000 {
				in.Op = OpSra
			} else {
				in.Op = OpSrl
			}
		case 0b110:
			in.Op = OpOr
		case 0b111:
			in.Op = OpAnd
		default:
			return in, unsupported(pc, word, "op funct3")
		}
		return in, nil
	case 0b0111011: // register-register, 32-bit (*w, including rv64m *w)
		if funct7 == 0b0000001 {
			switch funct3 {
			case 0b000:
				in.Op = OpMulw
			case 0b100:
				in.Op = OpDivw
			case 0b101:
				in.Op = OpDivuw
			case 0b110:
				in.Op = OpRemw
			case 0b111:
				in.Op = OpRemuw
			default:
				return in, unsupported(pc, word, "rv64m-w funct3")
			}
			return in, nil
		}
		switch funct3 {
		case 0b000:
			if funct7 == 0b0100000 {
				in.Op = OpSubw
			} else {
				in.Op = OpAddw
			}
		case 0b001:
			in.Op = OpSllw
		case 0b101:
			if funct7 == 0b0100000 {
				in.Op = OpSraw
			} else {
				in.Op = OpSrlw
			}
		default:
			return in, unsupported(pc, word, "op-32 funct3")
		}
		return in, nil
	case 0b1110011: // ECALL (EBREAK and CSR forms are out of scope)
		if word == 0x00000073 {
			in.Op = OpEcall
			return in, nil
		}
		return in, unsupported(pc, word, "system instruction other than ecall")
	default:
		return in, unsupported(pc, word, fmt.Sprintf("opcode %#09b", opcode))
	}
}

func unsupported(pc uint64, word uint32, msg string) error {
	return &errs.UnsupportedInstruction{PC: pc, Word: word, Msg: msg}
}
