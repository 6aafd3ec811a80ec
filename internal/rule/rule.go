// Package rule provides the rule and rule-set container that the dataflow
// engine and transforms operate over: a head atom and an ordered tail
// split into three contiguous regions (positive uninterpreted, negative
// uninterpreted, interpreted).
package rule

import (
	"hornflow/internal/symbol"
	"hornflow/internal/term"
)

// Atom is a predicate applied to argument terms. len(Args) always equals
// Pred.Arity.
type Atom struct {
	Pred *symbol.Sym
	Args []term.Term
}

// Rule is one Horn clause: Head is implied by the conjunction of PosTail,
// the negation of each atom in NegTail, and every formula in Interp.
// PosTail and NegTail together form the uninterpreted tail.
type Rule struct {
	Head    Atom
	PosTail []Atom
	NegTail []Atom
	Interp  []term.Term
}

// UninterpretedTailSize is the combined size of the positive and negative
// uninterpreted tail regions.
func (r *Rule) UninterpretedTailSize() int { return len(r.PosTail) + len(r.NegTail) }

// TailAtom returns the i-th uninterpreted-tail atom (0 <= i <
// UninterpretedTailSize()), positive atoms first.
func (r *Rule) TailAtom(i int) (Atom, bool) {
	if i < len(r.PosTail) {
		return r.PosTail[i], false
	}
	i -= len(r.PosTail)
	if i < len(r.NegTail) {
		return r.NegTail[i], true
	}
	return Atom{}, false
}

// Clone returns a shallow copy of r whose tail slices can be mutated
// independently of the original.
func (r *Rule) Clone() *Rule {
	return &Rule{
		Head:    Atom{Pred: r.Head.Pred, Args: append([]term.Term(nil), r.Head.Args...)},
		PosTail: append([]Atom(nil), r.PosTail...),
		NegTail: append([]Atom(nil), r.NegTail...),
		Interp:  append([]term.Term(nil), r.Interp...),
	}
}
