package exploder

import (
	"hornflow/internal/rule"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
)

// translateNeg rewrites one negative-tail atom under the current
// specialization's bindings.
// If every column at.Pred's tuple set still tracks is pinned down by
// bindings or literal constants, membership can be decided outright: a
// matching tuple makes this combination infeasible, and its absence makes
// the literal vacuously true, so it is simply dropped. When the columns
// aren't fully determined, an uncloned predicate passes through unchanged
// (substituting bound variables); a cloned one is rewritten against a
// synthesized auxiliary predicate that recomposes the clones' union, since
// the clones individually no longer add up to the original relation the
// negation needs to see.
func (e *explosion) translateNeg(at rule.Atom, bindings map[int]term.Term) (atom rule.Atom, keep bool, infeasible bool) {
	tf := e.facts[at.Pred]
	if tf == nil || len(tf.Cols) == 0 {
		return rule.Atom{Pred: at.Pred, Args: substAll(at.Args, bindings)}, true, false
	}

	row := make([]term.Term, len(tf.Cols))
	determined := true
	for ci, col := range tf.Cols {
		switch a := at.Args[col].(type) {
		case *term.Const:
			row[ci] = a
		case *term.Var:
			if v, ok := bindings[a.Index]; ok {
				row[ci] = v
			} else {
				determined = false
			}
		default:
			determined = false
		}
		if !determined {
			break
		}
	}
	if determined {
		if tf.Full {
			return rule.Atom{}, false, true
		}
		for _, r := range tf.Rows {
			if rowEqual(r, row) {
				return rule.Atom{}, false, true
			}
		}
		return rule.Atom{}, false, false
	}

	clones, cloned := e.clones[at.Pred]
	if !cloned {
		return rule.Atom{Pred: at.Pred, Args: substAll(at.Args, bindings)}, true, false
	}
	aux := e.negAuxFor(at.Pred, clones)
	return rule.Atom{Pred: aux, Args: substAll(at.Args, bindings)}, true, false
}

// negAuxFor returns the predicate recomposing pred's clones back to pred's
// original arity, minting it (and its defining rules, one disjunct per
// clone) on first use. Cached per pred: the union is the same relation no
// matter which columns happened to be undetermined at the call site.
func (e *explosion) negAuxFor(pred *symbol.Sym, clones []*clone) *symbol.Sym {
	if aux, ok := e.negAuxCache[pred]; ok {
		return aux
	}
	aux := e.syms.MkFresh(pred, "neg", pred.Sorts)
	e.negAuxCache[pred] = aux

	facts := e.facts[pred]
	for i, c := range clones {
		row := facts.Rows[i]
		args := make([]term.Term, pred.Arity)
		for ci, col := range facts.Cols {
			args[col] = row[ci]
		}
		callArgs := make([]term.Term, len(c.free))
		for j, pos := range c.free {
			v := &term.Var{Index: negAuxVarBase + j, Sort: pred.Sorts[pos]}
			args[pos] = v
			callArgs[j] = v
		}
		e.out.Add(&rule.Rule{
			Head:    rule.Atom{Pred: aux, Args: args},
			PosTail: []rule.Atom{{Pred: c.sym, Args: callArgs}},
		})
	}
	return aux
}

// negAuxVarBase starts a private variable-index range for the synthesized
// q_neg defining rules: each is self-contained (head plus one tail atom),
// so there is no risk of colliding with variable indices from the rule
// being exploded.
const negAuxVarBase = 1 << 20
