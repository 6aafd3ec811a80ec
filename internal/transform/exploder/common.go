package exploder

import (
	"sort"

	"hornflow/internal/rule"
	"hornflow/internal/term"
)

// prepareCommonFactoring implements common-tail factoring: when
// factorize is enabled (the exploder's threshold exceeds 1) and r has at
// least one cloned head or positive-tail slot, any
// negative-tail atom or interpreted formula whose variables never touch a
// cloned slot's tracked columns is identical across every combination. It
// is pulled out into one shared auxiliary rule instead of being repeated
// once per combination, and the returned negFactored/interpFactored
// slices tell emit which original-rule positions to skip. A negated atom
// over a cloned predicate is never factored: after the explosion the
// original predicate has no defining rules left, so the negation must go
// through translateNeg's per-combination rewrite instead.
func (e *explosion) prepareCommonFactoring(r *rule.Rule, slots []slot) (*rule.Rule, *rule.Atom, []bool, []bool) {
	negFactored := make([]bool, len(r.NegTail))
	interpFactored := make([]bool, len(r.Interp))
	if !e.factorize || len(slots) == 0 {
		return nil, nil, negFactored, interpFactored
	}

	bound := boundVars(r, slots)

	var factoredNeg []rule.Atom
	for i, at := range r.NegTail {
		if _, cloned := e.clones[at.Pred]; cloned {
			continue
		}
		if atomUsesAny(at, bound) {
			continue
		}
		negFactored[i] = true
		factoredNeg = append(factoredNeg, at)
	}
	var factoredInterp []term.Term
	for i, t := range r.Interp {
		if termUsesAny(t, bound) {
			continue
		}
		interpFactored[i] = true
		factoredInterp = append(factoredInterp, t)
	}
	if len(factoredNeg) == 0 && len(factoredInterp) == 0 {
		return nil, nil, negFactored, interpFactored
	}

	used := make(map[int]bool)
	for _, at := range factoredNeg {
		collectVars(at.Args, used)
	}
	for _, t := range factoredInterp {
		collectVars([]term.Term{t}, used)
	}
	var varList []int
	for v := range used {
		varList = append(varList, v)
	}
	sort.Ints(varList)

	sorts := make([]term.Sort, len(varList))
	for i, v := range varList {
		sorts[i] = varSort(r, v)
	}
	args := make([]term.Term, len(varList))
	for i, v := range varList {
		args[i] = &term.Var{Index: v, Sort: sorts[i]}
	}

	aux := e.syms.MkFresh(r.Head.Pred, "common", sorts)
	common := &rule.Rule{
		Head:    rule.Atom{Pred: aux, Args: args},
		NegTail: factoredNeg,
		Interp:  factoredInterp,
	}
	call := rule.Atom{Pred: aux, Args: args}
	return common, &call, negFactored, interpFactored
}

// boundVars returns the variable indices any cloned slot's atom
// references at one of that slot's currently tracked columns: the
// variables whose binding depends on which specialization row is chosen.
func boundVars(r *rule.Rule, slots []slot) map[int]bool {
	bound := make(map[int]bool)
	for _, s := range slots {
		atom := s.atom(r)
		for _, col := range s.fact.Cols {
			if v, ok := atom.Args[col].(*term.Var); ok {
				bound[v.Index] = true
			}
		}
	}
	return bound
}

func atomUsesAny(at rule.Atom, vars map[int]bool) bool {
	for _, a := range at.Args {
		if v, ok := a.(*term.Var); ok && vars[v.Index] {
			return true
		}
	}
	return false
}

func termUsesAny(t term.Term, vars map[int]bool) bool {
	switch x := t.(type) {
	case *term.Var:
		return vars[x.Index]
	case *term.App:
		for _, a := range x.Args {
			if termUsesAny(a, vars) {
				return true
			}
		}
	}
	return false
}

func collectVars(ts []term.Term, out map[int]bool) {
	for _, t := range ts {
		switch x := t.(type) {
		case *term.Var:
			out[x.Index] = true
		case *term.App:
			collectVars(x.Args, out)
		}
	}
}

// varSort finds the sort variable idx was declared with by locating an
// occurrence of it in r's head or tail atoms.
func varSort(r *rule.Rule, idx int) term.Sort {
	scan := func(at rule.Atom) (term.Sort, bool) {
		for i, a := range at.Args {
			if v, ok := a.(*term.Var); ok && v.Index == idx {
				return at.Pred.Sorts[i], true
			}
		}
		return term.Sort{}, false
	}
	if s, ok := scan(r.Head); ok {
		return s
	}
	for _, at := range r.PosTail {
		if s, ok := scan(at); ok {
			return s
		}
	}
	for _, at := range r.NegTail {
		if s, ok := scan(at); ok {
			return s
		}
	}
	return term.Sort{}
}
