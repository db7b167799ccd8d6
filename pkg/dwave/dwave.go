// Package dwave is a thin subprocess client for a D-Wave-compatible
// annealer front-end, invoked by the `dwave` CLI subcommand. Actual
// annealer behavior is out of scope (spec.md's Non-goals exclude modeling
// real annealer hardware); this package only shapes and ships the request,
// grounded on the same exec.Cmd/stdin-stdout pattern as pkg/smt.ProcessBackend.
package dwave

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/unicorn-sh/unicorn/pkg/errs"
	"github.com/unicorn-sh/unicorn/pkg/qubo"
)

// RunOptions configures one annealer invocation.
type RunOptions struct {
	Binary        string // e.g. "dwave" (the real CLI, if present on PATH)
	NumRuns       int
	ChainStrength float64
}

// Response is the parsed result of one annealer run: the best sample found
// and its reported energy.
type Response struct {
	Energy float64
	Sample []int
}

// Run serializes m to the QUBO file format and pipes it to the configured
// annealer binary's stdin, parsing back a single "energy <f> sample
// <bit> <bit> ..." line (space-separated sample bits). Any failure to launch or parse is a SolverError, matching
// spec.md §7's policy that external-tool failures are reported, not
// silently swallowed.
func Run(ctx context.Context, m *qubo.Model, opts RunOptions) (*Response, error) {
	var buf bytes.Buffer
	if err := qubo.WriteFile(&buf, m); err != nil {
		return nil, err
	}

	args := []string{"--num-runs", fmt.Sprint(opts.NumRuns), "--chain-strength", fmt.Sprint(opts.ChainStrength)}
	cmd := exec.CommandContext(ctx, opts.Binary, args...)
	cmd.Stdin = &buf
	out, err := cmd.Output()
	if err != nil {
		return nil, &errs.SolverError{Query: "dwave anneal", Err: err}
	}

	fields := strings.Fields(string(out))
	if len(fields) < 4 || fields[0] != "energy" || fields[2] != "sample" {
		return nil, &errs.SolverError{Query: "dwave anneal", Err: fmt.Errorf("unrecognized annealer output %q", out)}
	}
	energy, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, &errs.SolverError{Query: "dwave anneal", Err: err}
	}
	sample := make([]int, 0, len(fields)-3)
	for _, f := range fields[3:] {
		bit, err := strconv.Atoi(f)
		if err != nil {
			return nil, &errs.SolverError{Query: "dwave anneal", Err: err}
		}
		sample = append(sample, bit)
	}
	return &Response{Energy: energy, Sample: sample}, nil
}
