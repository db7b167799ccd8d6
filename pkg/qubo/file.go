package qubo

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteFile serializes m to the QUBO file format spec.md §6 describes: five
// blank-line-separated sections — (1) qubit count and offset, (2) the Input
// mapping (nid -> qubit ids LSB-first -> resolved values), (3) the Bad-state
// mapping (nid -> qubit -> resolved value), (4) linear coefficients, (5)
// quadratic coefficients. WriteFile has no concrete assignment to resolve
// against, so every resolved-value column is "-"; EvaluateVectors is what
// resolves a concrete vector.
func WriteFile(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%d %g\n", m.NumQubits, m.Offset)
	bw.WriteString("\n")

	for _, nid := range m.SortedInputNids() {
		qubits := m.Inputs[nid]
		ids := make([]string, len(qubits))
		vals := make([]string, len(qubits))
		for i, q := range qubits {
			ids[i] = fmt.Sprint(q)
			vals[i] = "-"
		}
		fmt.Fprintf(bw, "%d %s %s\n", nid, strings.Join(ids, ","), strings.Join(vals, ","))
	}
	bw.WriteString("\n")

	for _, nid := range m.SortedBadNids() {
		fmt.Fprintf(bw, "%d %d -\n", nid, m.BadStates[nid])
	}
	bw.WriteString("\n")

	linear := make(map[Qubit]float64)
	var quad []Term
	for _, t := range m.Terms {
		if t.B == -1 {
			linear[t.A] += t.Coeff
		} else {
			quad = append(quad, t)
		}
	}
	for _, q := range m.SortedQubits() {
		if v, ok := linear[q]; ok && v != 0 {
			fmt.Fprintf(bw, "%d %g\n", q, v)
		}
	}
	bw.WriteString("\n")

	for _, t := range quad {
		fmt.Fprintf(bw, "%d %d %g\n", t.A, t.B, t.Coeff)
	}

	return bw.Flush()
}
