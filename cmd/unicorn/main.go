package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unicorn-sh/unicorn/pkg/bitblast"
	"github.com/unicorn-sh/unicorn/pkg/btor2"
	"github.com/unicorn-sh/unicorn/pkg/bvg"
	"github.com/unicorn-sh/unicorn/pkg/dwave"
	"github.com/unicorn-sh/unicorn/pkg/errs"
	"github.com/unicorn-sh/unicorn/pkg/model"
	"github.com/unicorn-sh/unicorn/pkg/prune"
	"github.com/unicorn-sh/unicorn/pkg/qubo"
	"github.com/unicorn-sh/unicorn/pkg/rvelf"
	"github.com/unicorn-sh/unicorn/pkg/smt"
	"github.com/unicorn-sh/unicorn/pkg/unroll"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "unicorn",
		Short: "Unicorn — compiles rv64im ELF programs into bit-precise models for classical and quantum solvers",
	}

	// beator: emit a BTOR2-equivalent word-level (or bit-blasted) model.
	var unrollDepth int
	var solverName string
	var bitBlastFlag bool
	var outPath string
	var pruneBudget time.Duration
	var flagDivZeroBad bool
	var flagBrkBad bool

	beatorCmd := &cobra.Command{
		Use:   "beator [elf-file]",
		Short: "Compile an rv64im ELF program into a BTOR2-equivalent model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := rvelf.Load(args[0])
			if err != nil {
				return err
			}

			m, err := model.Build(img, model.Options{FlagDivZeroBad: flagDivZeroBad, FlagBrkBad: flagBrkBad})
			if err != nil {
				return err
			}

			u, err := unroll.Depth(m, unrollDepth)
			if err != nil {
				return err
			}

			backend, err := resolveBackend(cmd.Context(), solverName)
			if err != nil {
				return err
			}
			defer backend.Close()

			roots, _, err := prune.Run(cmd.Context(), u.Arena, []bvg.NodeID{u.Objective}, prune.Options{Backend: backend, Budget: pruneBudget})
			if err != nil {
				return err
			}
			objective := roots[0]

			arena := u.Arena
			if bitBlastFlag {
				bb := bitblast.New(arena)
				bits, err := bb.Bits(objective)
				if err != nil {
					return err
				}
				arena = bb.Dst
				objective = bits[0]
			}

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return &errs.IoError{Path: outPath, Err: err}
				}
				defer f.Close()
				out = f
			}
			return btor2.Write(out, arena, []bvg.NodeID{objective})
		},
	}
	beatorCmd.Flags().IntVar(&unrollDepth, "unroll", 1, "Unrolling depth N")
	beatorCmd.Flags().StringVar(&solverName, "solver", "", "SMT solver for pruning: z3, boolector, or empty for constant-folding only")
	beatorCmd.Flags().BoolVar(&bitBlastFlag, "bitblast", false, "Lower to a boolean (bit-blasted) model before emitting")
	beatorCmd.Flags().StringVar(&outPath, "out", "", "Output file (default stdout)")
	beatorCmd.Flags().DurationVar(&pruneBudget, "prune-budget", 0, "Wall-clock budget for SMT-backed pruning (0 disables solver queries)")
	beatorCmd.Flags().BoolVar(&flagDivZeroBad, "flag-div-zero", false, "Treat division/remainder by zero as a bad state")
	beatorCmd.Flags().BoolVar(&flagBrkBad, "flag-brk", false, "Treat brk() below the initial break as a bad state")

	// qubot: emit a QUBO file, or evaluate candidate input vectors against one.
	var inputsFlag string
	var numRunsFlag int
	var chainStrengthFlag float64

	qubotCmd := &cobra.Command{
		Use:   "qubot [elf-file]",
		Short: "Compile an rv64im ELF program into a QUBO instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := rvelf.Load(args[0])
			if err != nil {
				return err
			}
			m, err := model.Build(img, model.Options{FlagDivZeroBad: flagDivZeroBad, FlagBrkBad: flagBrkBad})
			if err != nil {
				return err
			}
			u, err := unroll.Depth(m, unrollDepth)
			if err != nil {
				return err
			}
			backend, err := resolveBackend(cmd.Context(), solverName)
			if err != nil {
				return err
			}
			defer backend.Close()
			roots, _, err := prune.Run(cmd.Context(), u.Arena, []bvg.NodeID{u.Objective}, prune.Options{Backend: backend, Budget: pruneBudget})
			if err != nil {
				return err
			}

			bb := bitblast.New(u.Arena)
			bits, err := bb.Bits(roots[0])
			if err != nil {
				return err
			}
			badConds, err := blastBadConds(bb, u.BadConds)
			if err != nil {
				return err
			}
			qm := qubo.Synth(bb.Dst, bits[0], bb.InputBits(), badConds)

			if inputsFlag != "" {
				vectors, err := parseVectors(inputsFlag)
				if err != nil {
					return err
				}
				return qubo.EvaluateVectors(os.Stdout, bb.Dst, qm, vectors, 0)
			}

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return &errs.IoError{Path: outPath, Err: err}
				}
				defer f.Close()
				out = f
			}
			return qubo.WriteFile(out, qm)
		},
	}
	qubotCmd.Flags().IntVar(&unrollDepth, "unroll", 1, "Unrolling depth N")
	qubotCmd.Flags().StringVar(&solverName, "solver", "", "SMT solver for pruning before QUBO synthesis")
	qubotCmd.Flags().StringVar(&outPath, "out", "", "Output file (default stdout)")
	qubotCmd.Flags().DurationVar(&pruneBudget, "prune-budget", 0, "Wall-clock budget for SMT-backed pruning")
	qubotCmd.Flags().StringVar(&inputsFlag, "inputs", "", "Semicolon-separated CSV input vectors to evaluate instead of writing a QUBO file")
	qubotCmd.Flags().BoolVar(&flagDivZeroBad, "flag-div-zero", false, "Treat division/remainder by zero as a bad state")
	qubotCmd.Flags().BoolVar(&flagBrkBad, "flag-brk", false, "Treat brk() below the initial break as a bad state")

	// dwave: compile an ELF program straight through to a QUBO instance and
	// submit it to a D-Wave-compatible annealer front-end in one step.
	var dwaveBinary string
	dwaveCmd := &cobra.Command{
		Use:   "dwave [elf-file]",
		Short: "Compile an rv64im ELF program and submit it to a D-Wave-compatible annealer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := rvelf.Load(args[0])
			if err != nil {
				return err
			}
			m, err := model.Build(img, model.Options{FlagDivZeroBad: flagDivZeroBad, FlagBrkBad: flagBrkBad})
			if err != nil {
				return err
			}
			u, err := unroll.Depth(m, unrollDepth)
			if err != nil {
				return err
			}
			backend, err := resolveBackend(cmd.Context(), solverName)
			if err != nil {
				return err
			}
			defer backend.Close()
			roots, _, err := prune.Run(cmd.Context(), u.Arena, []bvg.NodeID{u.Objective}, prune.Options{Backend: backend, Budget: pruneBudget})
			if err != nil {
				return err
			}

			bb := bitblast.New(u.Arena)
			bits, err := bb.Bits(roots[0])
			if err != nil {
				return err
			}
			badConds, err := blastBadConds(bb, u.BadConds)
			if err != nil {
				return err
			}
			qm := qubo.Synth(bb.Dst, bits[0], bb.InputBits(), badConds)

			resp, err := dwave.Run(cmd.Context(), qm, dwave.RunOptions{
				Binary:        dwaveBinary,
				NumRuns:       numRunsFlag,
				ChainStrength: chainStrengthFlag,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "energy %g sample %v\n", resp.Energy, resp.Sample)
			return nil
		},
	}
	dwaveCmd.Flags().StringVar(&dwaveBinary, "binary", "dwave", "Annealer CLI binary to invoke")
	dwaveCmd.Flags().IntVar(&numRunsFlag, "num-runs", 100, "Number of annealer runs")
	dwaveCmd.Flags().Float64Var(&chainStrengthFlag, "chain-strength", 1.0, "Chain strength for embedding")
	dwaveCmd.Flags().IntVar(&unrollDepth, "unroll", 1, "Unrolling depth N")
	dwaveCmd.Flags().StringVar(&solverName, "solver", "", "SMT solver for pruning before QUBO synthesis")
	dwaveCmd.Flags().BoolVar(&flagDivZeroBad, "flag-div-zero", false, "Treat division/remainder by zero as a bad state")
	dwaveCmd.Flags().BoolVar(&flagBrkBad, "flag-brk", false, "Treat brk() below the initial break as a bad state")

	rootCmd.AddCommand(beatorCmd, qubotCmd, dwaveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveBackend(ctx context.Context, name string) (smt.Backend, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return smt.NullBackend{}, nil
	case "z3":
		return smt.NewProcessBackend(ctx, "z3", "-in")
	case "boolector":
		return smt.NewProcessBackend(ctx, "boolector")
	default:
		return nil, &errs.ConfigError{Msg: fmt.Sprintf("unknown --solver %q: use z3, boolector, or leave empty", name)}
	}
}

// parseVectors decodes "d0,d1,...;d0,d1,..." into qubo.Vector slices, one
// per semicolon-separated group. Each decimal is one successive
// read-introduced input (spec.md §6), not one qubit — qubo.EvaluateVectors
// is responsible for decomposing each decimal into its input's bits and for
// repeating the last value when a vector names fewer inputs than the model
// declares.
func parseVectors(s string) ([]qubo.Vector, error) {
	groups := strings.Split(s, ";")
	out := make([]qubo.Vector, len(groups))
	for i, g := range groups {
		fields := strings.Split(g, ",")
		vec := make(qubo.Vector, len(fields))
		for j, f := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, &errs.ConfigError{Msg: fmt.Sprintf("invalid --inputs vector %q: %v", g, err)}
			}
			vec[j] = v
		}
		out[i] = vec
	}
	return out, nil
}

// blastBadConds bit-blasts each unrolled (step, bad-predicate) condition
// individually and returns the nid -> single-bit-node map qubo.Synth needs
// to populate Model.BadStates, reusing bb so every blasted bit lands in the
// same Dst arena (and gate-sharing cache) as the objective itself.
func blastBadConds(bb *bitblast.Blaster, conds []unroll.BadCond) (map[uint64]bvg.NodeID, error) {
	out := make(map[uint64]bvg.NodeID, len(conds))
	for _, c := range conds {
		bits, err := bb.Bits(c.Node)
		if err != nil {
			return nil, err
		}
		out[c.Nid] = bits[0]
	}
	return out, nil
}
