package qubo

import (
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/unicorn-sh/unicorn/pkg/bvg"
)

// Vector is one candidate test vector: one raw decimal value per
// successive read-introduced input (spec.md §6), not one value per qubit —
// decomposeInput below expands each entry into its constituent qubit bits.
type Vector []int

// decomposeInput builds an Env that assigns val's bits, LSB first, to the
// qubits nid maps to in m.Inputs, matching the same LSB-first convention
// pkg/bitblast uses everywhere else.
func decomposeInput(env *bvg.Env, m *Model, nid uint64, val uint64) {
	for i, q := range m.Inputs[nid] {
		node, ok := m.nodes[q]
		if !ok {
			continue
		}
		env.Inputs[node] = (val >> uint(i)) & 1
	}
}

// EvaluateVectors scores each vector against m concurrently, grounded on
// the teacher's WorkerPool: a buffered task channel, a fixed worker count,
// and atomic-free aggregation since each task owns its own output line.
// Each vector's decimals are decomposed into their inputs' qubit bits, then
// the whole bit-blasted gate netlist (a, the arena Synth built Model from)
// is evaluated forward from that assignment — not solved via Model.Energy
// with a partial, zero-padded vector, which would only coincidentally
// match reality for toy all-inputs-are-gate-outputs circuits. offset is the
// resulting QUBO energy (0 unless some gadget is left unsatisfied by a
// missing input); bad states count is the number of distinct unrolled
// (step, bad-predicate) pairs (Model.BadStates) that evaluate true under
// the vector, matching spec.md §6's reporting contract and DESIGN.md's
// resolution of Open Question (a).
func EvaluateVectors(w io.Writer, a *bvg.Arena, m *Model, vectors []Vector, numWorkers int) error {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	nids := m.SortedInputNids()
	lines := make([]string, len(vectors))

	type task struct {
		idx int
		vec Vector
	}
	ch := make(chan task, len(vectors))
	for i, v := range vectors {
		ch <- task{idx: i, vec: v}
	}
	close(ch)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range ch {
				env := bvg.NewEnv()
				for i, nid := range nids {
					val := lastOrAt(t.vec, i)
					decomposeInput(env, m, nid, val)
				}

				assign := make([]int, m.NumQubits)
				for q := 0; q < m.NumQubits; q++ {
					node, ok := m.nodes[Qubit(q)]
					if !ok {
						continue
					}
					v, _ := a.Eval(node, env)
					assign[q] = int(v)
				}
				energy := m.Energy(assign)

				badCount := 0
				for _, nid := range m.SortedBadNids() {
					node := m.nodes[m.BadStates[nid]]
					v, _ := a.Eval(node, env)
					if v == 1 {
						badCount++
					}
				}

				lines[t.idx] = fmt.Sprintf("offset:%g, bad states count:%d", energy, badCount)
			}
		}()
	}
	wg.Wait()

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// lastOrAt returns vec[i], or vec's last element if i is beyond its length
// (spec.md §6: "last value repeats if fewer than required"), or 0 for an
// empty vector.
func lastOrAt(vec Vector, i int) uint64 {
	if len(vec) == 0 {
		return 0
	}
	if i < len(vec) {
		return uint64(vec[i])
	}
	return uint64(vec[len(vec)-1])
}
