// Package tupleset implements the tuple-set abstract domain: for each
// predicate, a bounded relation over a subset of its argument columns.
// Bottom-up runs derive the tuples a predicate can take; top-down runs
// reinterpret the same representation as query tuples, the values a
// predicate must take to matter to an output.
package tupleset

import (
	"fmt"
	"io"

	"hornflow/internal/dataflow"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
)

// Fact is one predicate's bounded relation: Cols names which argument
// positions are tracked (sorted increasing), Rows holds one slice of
// values per tuple, each aligned positionally with Cols. Full marks the
// exhausted-pruning terminal state: once every column has been dropped,
// the relation holds unconditionally and further constraining it is
// pointless, so Full is the domain's top element.
type Fact struct {
	Cols []int
	Rows [][]term.Term
	Full bool
}

// NewFact returns the bottom element: no rows known yet, every column
// notionally trackable.
func NewFact(arity int) *Fact {
	cols := make([]int, arity)
	for i := range cols {
		cols[i] = i
	}
	return &Fact{Cols: cols}
}

// NewFull returns the top element directly (the unit query TopDownDomain
// seeds an output with when no bottom-up engine is paired; for arity 0,
// "no columns, one empty row" and "full" coincide).
func NewFull() *Fact { return &Fact{Full: true, Rows: [][]term.Term{{}}} }

func (f *Fact) colIndex(col int) int {
	for i, c := range f.Cols {
		if c == col {
			return i
		}
	}
	return -1
}

// HasTuples reports whether this fact currently enumerates at least one
// row: a predicate we've derived something concrete about, as opposed to
// one we've never touched.
func (f *Fact) HasTuples() bool { return len(f.Rows) > 0 }

// IsFull reports whether every column has been pruned away, the terminal
// "matches anything" state.
func (f *Fact) IsFull() bool { return f.Full }

// IsColumnFull reports whether col's distinct value count has reached the
// finite cardinality of its sort. A sort with Cardinality 0
// (unbounded/unknown) is never full.
func (f *Fact) IsColumnFull(col int, sort term.Sort) bool {
	if sort.Cardinality <= 0 {
		return false
	}
	return f.CountUniqueValues(col) >= sort.Cardinality
}

// CountUniqueValues returns the number of distinct values appearing in the
// given tracked column across all rows.
func (f *Fact) CountUniqueValues(col int) int {
	ci := f.colIndex(col)
	if ci < 0 {
		return 0
	}
	seen := make(map[term.Term]bool)
	for _, row := range f.Rows {
		seen[row[ci]] = true
	}
	return len(seen)
}

// deleteColumn drops col from the tracked set, projecting every row down
// to the remaining columns. Callers must call removeDuplicates afterward.
func (f *Fact) deleteColumn(col int) {
	ci := f.colIndex(col)
	if ci < 0 {
		return
	}
	newCols := make([]int, 0, len(f.Cols)-1)
	newCols = append(newCols, f.Cols[:ci]...)
	newCols = append(newCols, f.Cols[ci+1:]...)
	f.Cols = newCols
	for i, row := range f.Rows {
		nr := make([]term.Term, 0, len(row)-1)
		nr = append(nr, row[:ci]...)
		nr = append(nr, row[ci+1:]...)
		f.Rows[i] = nr
	}
}

func rowKey(row []term.Term) string {
	s := ""
	for _, v := range row {
		s += v.String() + "\x00"
	}
	return s
}

func (f *Fact) removeDuplicates() {
	seen := make(map[string]bool, len(f.Rows))
	out := f.Rows[:0]
	for _, row := range f.Rows {
		k := rowKey(row)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	f.Rows = out
}

// insertFact appends row (already aligned with f.Cols) if not already
// present.
func (f *Fact) insertFact(row []term.Term) {
	k := rowKey(row)
	for _, r := range f.Rows {
		if rowKey(r) == k {
			return
		}
	}
	f.Rows = append(f.Rows, row)
}

// prune repeatedly drops the column with the most distinct values (the
// noisiest one contributes least to shrinking the relation) until the row
// count is at or below cutoff. If every column is exhausted before the
// cutoff is satisfied, the relation collapses to the single remaining
// (empty) row and Full is set: the correct top element, not an error.
func (f *Fact) prune(cutoff int) {
	for len(f.Rows) > cutoff && len(f.Cols) > 0 {
		worst := f.Cols[0]
		worstCount := f.CountUniqueValues(worst)
		for _, c := range f.Cols[1:] {
			if n := f.CountUniqueValues(c); n > worstCount {
				worst, worstCount = c, n
			}
		}
		f.deleteColumn(worst)
		f.removeDuplicates()
	}
	if len(f.Cols) == 0 && len(f.Rows) > 0 {
		f.Full = true
		f.Rows = f.Rows[:1]
	}
}

// Join is the union of two tuple sets. Column universes are reconciled by
// intersecting tracked columns (rows are projected down first): tracking
// fewer columns than either operand is always sound, just less precise, so
// this keeps Join monotone even when bottom-up rounds have pruned the two
// operands' column sets differently.
func (f *Fact) Join(ctx *Ctx, other dataflow.Fact[Ctx]) bool {
	o := other.(*Fact)
	if f.Full {
		return false
	}
	if o.Full {
		*f = Fact{Full: true, Rows: [][]term.Term{{}}}
		return true
	}
	before := f.snapshot()
	common := intersectCols(f.Cols, o.Cols)
	f.projectOnto(common)
	oProj := o.clone()
	oProj.projectOnto(common)
	for _, row := range oProj.Rows {
		f.insertFact(append([]term.Term(nil), row...))
	}
	f.removeDuplicates()
	if ctx != nil && ctx.Cutoff > 0 {
		f.prune(ctx.Cutoff)
	}
	return !before.equal(f)
}

// Intersect narrows f to rows consistent with both f and other, via a
// sort-merge join over the two (sorted, increasing) column-index lists
// rather than assuming they line up positionally.
func (f *Fact) Intersect(ctx *Ctx, other dataflow.Fact[Ctx]) bool {
	o := other.(*Fact)
	before := f.snapshot()
	if o.Full {
		return false
	}
	if f.Full {
		*f = *o.clone()
		return !before.equal(f)
	}
	common := intersectCols(f.Cols, o.Cols)
	f.projectOnto(common)
	oProj := o.clone()
	oProj.projectOnto(common)
	oKeys := make(map[string]bool, len(oProj.Rows))
	for _, row := range oProj.Rows {
		oKeys[rowKey(row)] = true
	}
	out := f.Rows[:0]
	for _, row := range f.Rows {
		if oKeys[rowKey(row)] {
			out = append(out, row)
		}
	}
	f.Rows = out
	return !before.equal(f)
}

func intersectCols(a, b []int) []int {
	ai, bi := 0, 0
	var out []int
	for ai < len(a) && bi < len(b) {
		switch {
		case a[ai] == b[bi]:
			out = append(out, a[ai])
			ai++
			bi++
		case a[ai] < b[bi]:
			ai++
		default:
			bi++
		}
	}
	return out
}

// projectOnto restricts f to the given (subset, sorted increasing) columns.
func (f *Fact) projectOnto(cols []int) {
	if len(cols) == len(f.Cols) {
		same := true
		for i, c := range cols {
			if f.Cols[i] != c {
				same = false
				break
			}
		}
		if same {
			return
		}
	}
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = f.colIndex(c)
	}
	for i, row := range f.Rows {
		nr := make([]term.Term, len(cols))
		for j, ci := range idx {
			nr[j] = row[ci]
		}
		f.Rows[i] = nr
	}
	f.Cols = append([]int(nil), cols...)
	f.removeDuplicates()
}

func (f *Fact) clone() *Fact {
	c := &Fact{Cols: append([]int(nil), f.Cols...), Full: f.Full}
	c.Rows = make([][]term.Term, len(f.Rows))
	for i, r := range f.Rows {
		c.Rows[i] = append([]term.Term(nil), r...)
	}
	return c
}

type snapshot struct {
	full bool
	keys map[string]bool
}

func (f *Fact) snapshot() snapshot {
	keys := make(map[string]bool, len(f.Rows))
	for _, r := range f.Rows {
		keys[rowKey(r)] = true
	}
	return snapshot{full: f.Full, keys: keys}
}

func (s snapshot) equal(f *Fact) bool {
	if s.full != f.Full || len(s.keys) != len(f.Rows) {
		return false
	}
	for _, r := range f.Rows {
		if !s.keys[rowKey(r)] {
			return false
		}
	}
	return true
}

// Dump writes one line per row, "*" for untracked columns and the value
// for tracked ones; a zero-width row prints blank. A full relation dumps
// as a single line of asterisks.
func (f *Fact) Dump(w io.Writer, sym *symbol.Sym) {
	fmt.Fprintf(w, "%s ->\n", sym)
	if f.Full {
		for i := 0; i < sym.Arity; i++ {
			io.WriteString(w, " *")
		}
		io.WriteString(w, "\n")
		return
	}
	tracked := make(map[int]int, len(f.Cols))
	for i, c := range f.Cols {
		tracked[c] = i
	}
	for _, row := range f.Rows {
		for i := 0; i < sym.Arity; i++ {
			if ci, ok := tracked[i]; ok {
				fmt.Fprintf(w, " %s", row[ci].String())
			} else {
				io.WriteString(w, " *")
			}
		}
		io.WriteString(w, "\n")
	}
}
