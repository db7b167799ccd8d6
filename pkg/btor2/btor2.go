// Package btor2 serializes a bvg.Arena into the BTOR2-equivalent textual
// format spec.md §6 names: one node per line, sequential nids, a
// conventional keyword per node kind. This is the compiler's primary
// solver-facing artifact for the `beator` subcommand.
package btor2

import (
	"fmt"
	"io"
	"sort"

	"github.com/unicorn-sh/unicorn/pkg/bvg"
)

// Write serializes every node reachable from roots (and every declared
// state/bad predicate in a, whether or not it is reachable from roots, since
// BTOR2 models name the whole machine, not just one query) to w.
func Write(w io.Writer, a *bvg.Arena, roots []bvg.NodeID) error {
	s := &serializer{a: a, w: w, nid: make(map[bvg.NodeID]uint64)}

	var order []bvg.NodeID
	visited := make(map[bvg.NodeID]bool)
	var visit func(bvg.NodeID)
	visit = func(id bvg.NodeID) {
		if id == bvg.Invalid || visited[id] {
			return
		}
		visited[id] = true
		n := a.Node(id)
		for _, arg := range n.Args {
			visit(arg)
		}
		if n.Kind == bvg.KindState && n.Init != bvg.Invalid {
			visit(n.Init)
		}
		order = append(order, id)
	}

	states := append([]bvg.NodeID(nil), a.States()...)
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	for _, st := range states {
		visit(st)
		if next := a.Next(st); next != bvg.Invalid {
			visit(next)
		}
	}
	for _, bad := range a.Bads() {
		visit(bad)
	}
	for _, r := range roots {
		visit(r)
	}

	for _, id := range order {
		if err := s.emit(id); err != nil {
			return err
		}
	}
	for _, st := range states {
		next := a.Next(st)
		if next == bvg.Invalid {
			continue
		}
		if _, err := fmt.Fprintf(w, "%d next %d %d %d\n", s.next(), s.sortID(st), s.nid[st], s.nid[next]); err != nil {
			return err
		}
	}
	return nil
}

type serializer struct {
	a       *bvg.Arena
	w       io.Writer
	nid     map[bvg.NodeID]uint64
	counter uint64
	sorts   map[uint32]uint64 // bit width -> sort nid
}

func (s *serializer) next() uint64 {
	s.counter++
	return s.counter
}

// sortID returns (creating if needed) the BTOR2 sort line id for a node's
// bit width.
func (s *serializer) sortID(id bvg.NodeID) uint64 {
	if s.sorts == nil {
		s.sorts = make(map[uint32]uint64)
	}
	w := s.a.Node(id).Width
	if sid, ok := s.sorts[w]; ok {
		return sid
	}
	sid := s.next()
	fmt.Fprintf(s.w, "%d sort bitvec %d\n", sid, w)
	s.sorts[w] = sid
	return sid
}

func (s *serializer) emit(id bvg.NodeID) error {
	n := s.a.Node(id)
	sortID := s.sortID(id)
	nid := s.next()
	s.nid[id] = nid

	var err error
	switch n.Kind {
	case bvg.KindConst:
		_, err = fmt.Fprintf(s.w, "%d const %d %d\n", nid, sortID, n.Value)
	case bvg.KindInput:
		_, err = fmt.Fprintf(s.w, "%d input %d\n", nid, sortID)
	case bvg.KindState:
		_, err = fmt.Fprintf(s.w, "%d state %d %s\n", nid, sortID, n.Label)
		if err == nil && n.Init != bvg.Invalid {
			initID := s.next()
			_, err = fmt.Fprintf(s.w, "%d init %d %d %d\n", initID, sortID, nid, s.nid[n.Init])
		}
	case bvg.KindNot:
		_, err = fmt.Fprintf(s.w, "%d not %d %d\n", nid, sortID, s.nid[n.Args[0]])
	case bvg.KindNeg:
		_, err = fmt.Fprintf(s.w, "%d neg %d %d\n", nid, sortID, s.nid[n.Args[0]])
	case bvg.KindExt:
		kw := "uext"
		if n.ExtKind == bvg.ExtSign {
			kw = "sext"
		}
		srcWidth := s.a.Node(n.Args[0]).Width
		_, err = fmt.Fprintf(s.w, "%d %s %d %d %d\n", nid, kw, sortID, s.nid[n.Args[0]], n.Width-srcWidth)
	case bvg.KindSlice:
		_, err = fmt.Fprintf(s.w, "%d slice %d %d %d %d\n", nid, sortID, s.nid[n.Args[0]], n.Hi, n.Lo)
	case bvg.KindAnd, bvg.KindOr, bvg.KindXor, bvg.KindSll, bvg.KindSrl, bvg.KindSra,
		bvg.KindAdd, bvg.KindSub, bvg.KindMul, bvg.KindUdiv, bvg.KindUrem,
		bvg.KindSdiv, bvg.KindSrem, bvg.KindEq, bvg.KindUlt, bvg.KindUlte,
		bvg.KindSlt, bvg.KindSlte:
		_, err = fmt.Fprintf(s.w, "%d %s %d %d %d\n", nid, btorOp(n.Kind), sortID, s.nid[n.Args[0]], s.nid[n.Args[1]])
	case bvg.KindIte:
		_, err = fmt.Fprintf(s.w, "%d ite %d %d %d %d\n", nid, sortID, s.nid[n.Args[0]], s.nid[n.Args[1]], s.nid[n.Args[2]])
	case bvg.KindArrayConst:
		_, err = fmt.Fprintf(s.w, "%d sort array %d %d\n", nid, n.AddrWidth, n.Width)
	case bvg.KindRead:
		_, err = fmt.Fprintf(s.w, "%d read %d %d %d\n", nid, sortID, s.nid[n.Args[0]], s.nid[n.Args[1]])
	case bvg.KindWrite:
		_, err = fmt.Fprintf(s.w, "%d write %d %d %d %d\n", nid, sortID, s.nid[n.Args[0]], s.nid[n.Args[1]], s.nid[n.Args[2]])
	case bvg.KindBad:
		_, err = fmt.Fprintf(s.w, "%d bad %d\n", nid, s.nid[n.Args[0]])
	default:
		_, err = fmt.Fprintf(s.w, "%d ; unrepresented kind %s\n", nid, n.Kind)
	}
	return err
}

func btorOp(k bvg.Kind) string {
	switch k {
	case bvg.KindAnd:
		return "and"
	case bvg.KindOr:
		return "or"
	case bvg.KindXor:
		return "xor"
	case bvg.KindSll:
		return "sll"
	case bvg.KindSrl:
		return "srl"
	case bvg.KindSra:
		return "sra"
	case bvg.KindAdd:
		return "add"
	case bvg.KindSub:
		return "sub"
	case bvg.KindMul:
		return "mul"
	case bvg.KindUdiv:
		return "udiv"
	case bvg.KindUrem:
		return "urem"
	case bvg.KindSdiv:
		return "sdiv"
	case bvg.KindSrem:
		return "srem"
	case bvg.KindEq:
		return "eq"
	case bvg.KindUlt:
		return "ult"
	case bvg.KindUlte:
		return "ulte"
	case bvg.KindSlt:
		return "slt"
	case bvg.KindSlte:
		return "slte"
	}
	return "?"
}
