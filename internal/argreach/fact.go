// Package argreach implements the argument-reachability abstract domain:
// for each predicate, which of its argument positions can influence (or be
// influenced by, depending on direction) an output. The live bitmap is
// backed by github.com/willf/bitset.
package argreach

import (
	"fmt"
	"io"

	"github.com/willf/bitset"

	"hornflow/internal/dataflow"
	"hornflow/internal/symbol"
)

// Fact is one predicate's reachable-argument-position set.
type Fact struct {
	reachable *bitset.BitSet
	arity     uint
}

// NewFact returns the bottom element for a predicate of the given arity:
// no argument position is reachable.
func NewFact(arity int) *Fact {
	return &Fact{reachable: bitset.New(uint(arity)), arity: uint(arity)}
}

// IsReachable reports whether argument position i is marked live.
func (f *Fact) IsReachable(i int) bool { return f.reachable.Test(uint(i)) }

// SetReachable marks argument position i live, returning true if that
// changed anything.
func (f *Fact) SetReachable(i int) bool {
	if f.reachable.Test(uint(i)) {
		return false
	}
	f.reachable.Set(uint(i))
	return true
}

// AnyReachable reports whether at least one position is live.
func (f *Fact) AnyReachable() bool { return f.reachable.Any() }

// AllReachable reports whether every position among the first n is live.
func (f *Fact) AllReachable(n int) bool {
	for i := 0; i < n; i++ {
		if !f.reachable.Test(uint(i)) {
			return false
		}
	}
	return true
}

// CountReachable returns the number of live positions.
func (f *Fact) CountReachable() uint { return f.reachable.Count() }

// Join is the union of the two bitsets in place; reachability only ever
// grows during a forward pass.
func (f *Fact) Join(_ *Ctx, other dataflow.Fact[Ctx]) bool {
	o := other.(*Fact)
	before := f.reachable.Clone()
	f.reachable.InPlaceUnion(o.reachable)
	return !before.Equal(f.reachable)
}

// Intersect is the pointwise AND of the two bitsets in place, used by the
// cone-of-influence filter to combine a bottom-up and a top-down run: a
// position only survives if both directions consider it live.
func (f *Fact) Intersect(_ *Ctx, other dataflow.Fact[Ctx]) bool {
	o := other.(*Fact)
	before := f.reachable.Clone()
	f.reachable.InPlaceIntersection(o.reachable)
	return !before.Equal(f.reachable)
}

// Dump writes the predicate's live set as one bracketed line, "+" for a
// reachable position and "-" for a dead one: "p -> [+-+]".
func (f *Fact) Dump(w io.Writer, sym *symbol.Sym) {
	fmt.Fprintf(w, "%s -> [", sym)
	for i := uint(0); i < f.arity; i++ {
		if f.reachable.Test(i) {
			io.WriteString(w, "+")
		} else {
			io.WriteString(w, "-")
		}
	}
	fmt.Fprintln(w, "]")
}
