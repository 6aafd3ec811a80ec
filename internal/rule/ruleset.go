package rule

import "hornflow/internal/symbol"

// RuleSet is an ordered collection of rules grouped by head predicate, plus
// the set of predicates the caller designated as outputs, the predicates a
// top-down pass seeds from. A RuleSet is built incrementally via
// Add/AddOutput and then Close()d; passes that read it (dataflow engine,
// transforms) only accept a sealed RuleSet. An unsealed RuleSet handed to a
// pass is a caller bug, not a recoverable error.
type RuleSet struct {
	rules    []*Rule
	byHead   map[*symbol.Sym][]*Rule
	outputs  map[*symbol.Sym]bool
	allPreds map[*symbol.Sym]bool
	sealed   bool
}

// NewRuleSet returns an empty, open RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{
		byHead:   make(map[*symbol.Sym][]*Rule),
		outputs:  make(map[*symbol.Sym]bool),
		allPreds: make(map[*symbol.Sym]bool),
	}
}

// Add appends r to the rule set. Panics if the set is already sealed.
func (rs *RuleSet) Add(r *Rule) {
	if rs.sealed {
		panic("rule: Add called on a sealed RuleSet")
	}
	rs.rules = append(rs.rules, r)
	rs.byHead[r.Head.Pred] = append(rs.byHead[r.Head.Pred], r)
	rs.allPreds[r.Head.Pred] = true
	for _, a := range r.PosTail {
		rs.allPreds[a.Pred] = true
	}
	for _, a := range r.NegTail {
		rs.allPreds[a.Pred] = true
	}
}

// AddOutput marks sym as an output predicate: a top-down pass seeds its
// worklist from these. Panics if the set is already sealed.
func (rs *RuleSet) AddOutput(sym *symbol.Sym) {
	if rs.sealed {
		panic("rule: AddOutput called on a sealed RuleSet")
	}
	rs.outputs[sym] = true
	rs.allPreds[sym] = true
}

// Close seals the rule set against further mutation. Every read-side method
// below requires this.
func (rs *RuleSet) Close() { rs.sealed = true }

// Sealed reports whether Close has been called.
func (rs *RuleSet) Sealed() bool { return rs.sealed }

// Rules returns every rule in insertion order.
func (rs *RuleSet) Rules() []*Rule { return rs.rules }

// RulesFor returns the rules whose head predicate is sym, in insertion
// order, or nil if sym defines none.
func (rs *RuleSet) RulesFor(sym *symbol.Sym) []*Rule { return rs.byHead[sym] }

// IsOutput reports whether sym was registered via AddOutput.
func (rs *RuleSet) IsOutput(sym *symbol.Sym) bool { return rs.outputs[sym] }

// Outputs returns every output predicate, order unspecified.
func (rs *RuleSet) Outputs() []*symbol.Sym {
	out := make([]*symbol.Sym, 0, len(rs.outputs))
	for s := range rs.outputs {
		out = append(out, s)
	}
	return out
}

// Predicates returns every predicate symbol mentioned anywhere in the rule
// set (head or tail) or registered as an output, order unspecified. This is
// the vocabulary a dataflow engine initializes a fact for.
func (rs *RuleSet) Predicates() []*symbol.Sym {
	out := make([]*symbol.Sym, 0, len(rs.allPreds))
	for s := range rs.allPreds {
		out = append(out, s)
	}
	return out
}

// Clone builds a new, open RuleSet from scratch by copying every rule
// (deeply, via Rule.Clone) and every output marker. Transforms use this as
// their starting point: they never mutate the RuleSet they were handed.
func (rs *RuleSet) Clone() *RuleSet {
	out := NewRuleSet()
	for _, r := range rs.rules {
		out.Add(r.Clone())
	}
	for s := range rs.outputs {
		out.AddOutput(s)
	}
	return out
}
