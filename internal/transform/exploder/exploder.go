// Package exploder implements the rule exploder: it specializes every
// rule by case-splitting on predicate columns a tuple-set analysis has
// shown range over only finitely many values, cloning the rule once per
// consistent instantiation.
package exploder

import (
	"fmt"

	"hornflow/internal/dataflow"
	"hornflow/internal/rule"
	"hornflow/internal/simplify"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
	"hornflow/internal/tupleset"
)

// Config holds the rule-exploder settings: Threshold is forwarded as the
// tuple-set cutoff, and Threshold>1 additionally enables common-tail
// factoring.
type Config struct {
	Threshold int
}

// clone is one specialization of a predicate: the fresh symbol plus which
// original argument positions it keeps (the predicate's untracked/free
// columns, in increasing order; the same set for every row).
type clone struct {
	sym  *symbol.Sym
	free []int
}

// Explode runs the pass over rs, returning the specialized rule set and
// the clone mapping table: each original predicate that was cloned maps
// to its ordered list of fresh symbols, indexed by the row of that
// predicate's tuple set the clone was built for. Predicates
// that pass through unchanged (an empty tracked-column set) are absent
// from the map.
func Explode(rs *rule.RuleSet, syms *symbol.Manager, cfg Config) (*rule.RuleSet, map[*symbol.Sym][]*symbol.Sym) {
	cutoff := cfg.Threshold
	if cutoff <= 0 {
		cutoff = 1
	}

	up := dataflow.New(&tupleset.Ctx{Cutoff: cutoff}, rs, tupleset.NewEngineFact, tupleset.BottomUpDomain{}, nil)
	up.RunBottomUp()

	down := dataflow.New(&tupleset.Ctx{Cutoff: cutoff, BottomUp: up}, rs, tupleset.NewEngineFact, nil, tupleset.TopDownDomain{})
	down.RunTopDown()
	up.Intersect(down)

	facts := make(map[*symbol.Sym]*tupleset.Fact, len(rs.Predicates()))
	for _, sym := range rs.Predicates() {
		if f, ok := up.Fact(sym).(*tupleset.Fact); ok {
			facts[sym] = f
		}
	}

	e := &explosion{
		syms:        syms,
		facts:       facts,
		clones:      make(map[*symbol.Sym][]*clone),
		negAuxCache: make(map[*symbol.Sym]*symbol.Sym),
		out:         rule.NewRuleSet(),
		factorize:   cutoff > 1,
	}
	e.buildClones(rs)

	for _, r := range rs.Rules() {
		e.translateRule(r)
	}
	for _, o := range rs.Outputs() {
		e.registerOutput(o)
	}
	e.out.Close()

	return e.out, e.publicMap()
}

type explosion struct {
	syms  *symbol.Manager
	facts map[*symbol.Sym]*tupleset.Fact

	clones      map[*symbol.Sym][]*clone
	negAuxCache map[*symbol.Sym]*symbol.Sym

	out       *rule.RuleSet
	factorize bool
}

func (e *explosion) publicMap() map[*symbol.Sym][]*symbol.Sym {
	out := make(map[*symbol.Sym][]*symbol.Sym, len(e.clones))
	for sym, cl := range e.clones {
		syms := make([]*symbol.Sym, len(cl))
		for i, c := range cl {
			syms[i] = c.sym
		}
		out[sym] = syms
	}
	return out
}

// buildClones mints one fresh symbol per row of every predicate whose
// tuple set still tracks at least one column; the clone's arity drops the
// tracked positions. A predicate whose fact has zero rows gets an empty
// clone list: every rule that would need one of its instantiations has no
// consistent assignment and simply produces no specialized clause.
func (e *explosion) buildClones(rs *rule.RuleSet) {
	for _, sym := range rs.Predicates() {
		f := e.facts[sym]
		if f == nil || len(f.Cols) == 0 {
			continue
		}
		free := freeColumns(sym.Arity, f.Cols)
		sorts := make([]term.Sort, len(free))
		for i, pos := range free {
			sorts[i] = sym.Sorts[pos]
		}
		clones := make([]*clone, len(f.Rows))
		for i := range f.Rows {
			fresh := e.syms.MkFresh(sym, fmt.Sprintf("case%d", i), sorts)
			clones[i] = &clone{sym: fresh, free: free}
		}
		e.clones[sym] = clones
	}
}

func (e *explosion) registerOutput(sym *symbol.Sym) {
	if cl, ok := e.clones[sym]; ok {
		for _, c := range cl {
			e.out.AddOutput(c.sym)
		}
		return
	}
	e.out.AddOutput(sym)
}

// slot is one dimension of the case-split: a head or positive-tail atom
// whose predicate was cloned, together with the tuple-set fact and clone
// list driving the iteration over its rows.
type slot struct {
	isHead  bool
	tailIdx int
	fact    *tupleset.Fact
	clones  []*clone
}

func (s slot) atom(r *rule.Rule) rule.Atom {
	if s.isHead {
		return r.Head
	}
	return r.PosTail[s.tailIdx]
}

// translateRule specializes r into zero or more clauses, one per
// consistent combined row assignment over the head's and positive tail's
// cloned predicates.
func (e *explosion) translateRule(r *rule.Rule) {
	var slots []slot
	if cl, ok := e.clones[r.Head.Pred]; ok {
		slots = append(slots, slot{isHead: true, fact: e.facts[r.Head.Pred], clones: cl})
	}
	for i, at := range r.PosTail {
		if cl, ok := e.clones[at.Pred]; ok {
			slots = append(slots, slot{tailIdx: i, fact: e.facts[at.Pred], clones: cl})
		}
	}
	for _, s := range slots {
		if len(s.clones) == 0 {
			// A cloned predicate with zero known rows: no combination is
			// ever consistent, so this rule contributes nothing.
			return
		}
	}

	common, commonCall, negFactored, interpFactored := e.prepareCommonFactoring(r, slots)
	if common != nil {
		e.out.Add(common)
	}

	if len(slots) == 0 {
		e.emit(r, nil, nil, commonCall, negFactored, interpFactored)
		return
	}

	iters := make([]int, len(slots))
	for {
		e.emit(r, slots, iters, commonCall, negFactored, interpFactored)
		pos := 0
		for pos < len(iters) {
			iters[pos]++
			if iters[pos] < len(slots[pos].clones) {
				break
			}
			iters[pos] = 0
			pos++
		}
		if pos == len(iters) {
			break
		}
	}
}

// emit tries one combination of rows (iters, aligned with slots) and, if
// it is consistent, adds the resulting specialized rule to the output set.
// negFactored/interpFactored mark which negated atoms/interpreted
// formulas prepareCommonFactoring already pulled into commonCall and so
// must be skipped here to avoid duplicating them.
func (e *explosion) emit(r *rule.Rule, slots []slot, iters []int, commonCall *rule.Atom, negFactored, interpFactored []bool) {
	bindings := make(map[int]term.Term)
	for i, s := range slots {
		atom := s.atom(r)
		row := s.fact.Rows[iters[i]]
		for ci, col := range s.fact.Cols {
			val := row[ci]
			switch a := atom.Args[col].(type) {
			case *term.Var:
				if existing, bound := bindings[a.Index]; bound {
					if !term.Equal(existing, val) {
						return
					}
				} else {
					bindings[a.Index] = val
				}
			case *term.Const:
				if !term.Equal(a, val) {
					return
				}
			}
		}
	}

	out := &rule.Rule{Head: e.translateHead(r, slots, iters, bindings)}

	for i, at := range r.PosTail {
		if s, ok := findTailSlot(slots, i); ok {
			cIdx := sliceIndex(slots, s)
			row := slots[cIdx].clones[iters[cIdx]]
			out.PosTail = append(out.PosTail, rule.Atom{Pred: row.sym, Args: substPositions(at.Args, row.free, bindings)})
			continue
		}
		out.PosTail = append(out.PosTail, rule.Atom{Pred: at.Pred, Args: substAll(at.Args, bindings)})
	}
	if commonCall != nil {
		out.PosTail = append(out.PosTail, *commonCall)
	}

	for i, at := range r.NegTail {
		if len(negFactored) > i && negFactored[i] {
			continue
		}
		newAtom, keep, infeasible := e.translateNeg(at, bindings)
		if infeasible {
			return
		}
		if !keep {
			continue
		}
		out.NegTail = append(out.NegTail, newAtom)
	}

	infeasible := false
	for i, t := range r.Interp {
		if len(interpFactored) > i && interpFactored[i] {
			continue
		}
		st := simplify.Simplify(substTerm(t, bindings))
		if b, ok := simplify.AsBool(st); ok {
			if !b {
				infeasible = true
				break
			}
			continue
		}
		out.Interp = append(out.Interp, st)
	}
	if infeasible {
		return
	}

	e.out.Add(out)
}

func (e *explosion) translateHead(r *rule.Rule, slots []slot, iters []int, bindings map[int]term.Term) rule.Atom {
	for i, s := range slots {
		if s.isHead {
			c := s.clones[iters[i]]
			return rule.Atom{Pred: c.sym, Args: substPositions(r.Head.Args, c.free, bindings)}
		}
	}
	return rule.Atom{Pred: r.Head.Pred, Args: substAll(r.Head.Args, bindings)}
}

func findTailSlot(slots []slot, tailIdx int) (slot, bool) {
	for _, s := range slots {
		if !s.isHead && s.tailIdx == tailIdx {
			return s, true
		}
	}
	return slot{}, false
}

func sliceIndex(slots []slot, s slot) int {
	for i := range slots {
		if !s.isHead && slots[i].tailIdx == s.tailIdx && !slots[i].isHead {
			return i
		}
		if s.isHead && slots[i].isHead {
			return i
		}
	}
	return -1
}

// freeColumns returns the positions in [0, arity) not present in cols
// (which is sorted increasing), in increasing order.
func freeColumns(arity int, cols []int) []int {
	tracked := make(map[int]bool, len(cols))
	for _, c := range cols {
		tracked[c] = true
	}
	var free []int
	for i := 0; i < arity; i++ {
		if !tracked[i] {
			free = append(free, i)
		}
	}
	return free
}

func substTerm(t term.Term, bindings map[int]term.Term) term.Term {
	switch a := t.(type) {
	case *term.Var:
		if v, ok := bindings[a.Index]; ok {
			return v
		}
		return a
	case *term.App:
		args := make([]term.Term, len(a.Args))
		changed := false
		for i, arg := range a.Args {
			args[i] = substTerm(arg, bindings)
			if args[i] != arg {
				changed = true
			}
		}
		if !changed {
			return a
		}
		return &term.App{Func: a.Func, Args: args}
	default:
		return t
	}
}

func substAll(ts []term.Term, bindings map[int]term.Term) []term.Term {
	out := make([]term.Term, len(ts))
	for i, t := range ts {
		out[i] = substTerm(t, bindings)
	}
	return out
}

// substPositions projects args down to positions (sorted increasing),
// substituting bound variables through.
func substPositions(args []term.Term, positions []int, bindings map[int]term.Term) []term.Term {
	out := make([]term.Term, len(positions))
	for i, pos := range positions {
		out[i] = substTerm(args[pos], bindings)
	}
	return out
}

func rowEqual(a, b []term.Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !term.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
