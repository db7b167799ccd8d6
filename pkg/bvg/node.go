// Package bvg implements the Bitvector Graph: the immutable, structurally
// hashed DAG of word-level symbolic expressions that the rest of the
// compiler operates over. Nodes are created through the arena's mk_*
// methods only; once built a node is never mutated, which is what makes
// structural hashing sound.
package bvg

import "fmt"

// NodeID is an index into an Arena's node slice. The zero value is never a
// valid node id (index 0 is reserved), so NodeID zero-values can double as
// "no node" in optional fields such as State.Init.
type NodeID uint32

// Invalid is the sentinel "no node" id.
const Invalid NodeID = 0

// ExtKind distinguishes zero- from sign-extension.
type ExtKind uint8

const (
	ExtZero ExtKind = iota
	ExtSign
)

// Kind tags the variant a Node represents.
type Kind uint8

const (
	KindConst Kind = iota
	KindInput
	KindState
	KindNext // binds a State to its per-step update expression
	KindNot
	KindNeg
	KindExt
	KindSlice
	KindAnd
	KindOr
	KindXor
	KindSll
	KindSrl
	KindSra
	KindAdd
	KindSub
	KindMul
	KindUdiv
	KindUrem
	KindSdiv
	KindSrem
	KindEq
	KindUlt
	KindUlte
	KindSlt
	KindSlte
	KindIte
	KindArrayConst
	KindRead
	KindWrite
	KindBad
)

func (k Kind) String() string {
	switch k {
	case KindConst:
		return "const"
	case KindInput:
		return "input"
	case KindState:
		return "state"
	case KindNext:
		return "next"
	case KindNot:
		return "not"
	case KindNeg:
		return "neg"
	case KindExt:
		return "ext"
	case KindSlice:
		return "slice"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindXor:
		return "xor"
	case KindSll:
		return "sll"
	case KindSrl:
		return "srl"
	case KindSra:
		return "sra"
	case KindAdd:
		return "add"
	case KindSub:
		return "sub"
	case KindMul:
		return "mul"
	case KindUdiv:
		return "udiv"
	case KindUrem:
		return "urem"
	case KindSdiv:
		return "sdiv"
	case KindSrem:
		return "srem"
	case KindEq:
		return "eq"
	case KindUlt:
		return "ult"
	case KindUlte:
		return "ulte"
	case KindSlt:
		return "slt"
	case KindSlte:
		return "slte"
	case KindIte:
		return "ite"
	case KindArrayConst:
		return "array_const"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindBad:
		return "bad"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Node is one immutable DAG element. Field meaning depends on Kind:
//
//   - Const:       Width, Value
//   - Input:       Width, Nid (stable serialization id)
//   - State:       Width, Init (Invalid if no initializer), Label (name)
//   - Next:        Args[0]=state, Args[1]=expr; Width unused (0)
//   - Not/Neg:     Width, Args[0]
//   - Ext:         Width (result width), Args[0], ExtKind
//   - Slice:       Width (=Hi-Lo+1), Args[0], Hi, Lo
//   - And/Or/Xor/Sll/Srl/Sra/Add/Sub/Mul/Udiv/Urem/Sdiv/Srem:
//                  Width, Args[0], Args[1]
//   - Eq/Ult/Ulte/Slt/Slte: Width=1, Args[0], Args[1]
//   - Ite:         Width, Args[0]=cond(1-bit), Args[1]=then, Args[2]=else
//   - ArrayConst:  AddrWidth, Width(=data width), Value (fill value)
//   - Read:        Width(=data width), Args[0]=array, Args[1]=index
//   - Write:       AddrWidth, Width(=data width), Args[0]=array, Args[1]=index, Args[2]=value
//   - Bad:         Width=1, Args[0]=cond, Label=name
type Node struct {
	ID         NodeID
	Kind       Kind
	Width      uint32
	AddrWidth  uint32
	Args       []NodeID
	Value      uint64
	Nid        uint64
	ExtKind    ExtKind
	Hi, Lo     uint32
	Label      string
	Init       NodeID
	SerialNid  uint64 // not set by any package here (pkg/btor2 keeps its own nid map); stays 0
}

// Mask returns v truncated to w bits (w in [1,64]).
func Mask(v uint64, w uint32) uint64 {
	if w >= 64 {
		return v
	}
	return v & ((uint64(1) << w) - 1)
}

// SignExtend64 sign-extends the low w bits of v to a full 64-bit value.
func SignExtend64(v uint64, w uint32) uint64 {
	if w >= 64 {
		return v
	}
	signBit := uint64(1) << (w - 1)
	v = Mask(v, w)
	if v&signBit != 0 {
		return v | ^((uint64(1) << w) - 1)
	}
	return v
}
