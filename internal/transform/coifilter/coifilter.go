// Package coifilter implements the cone-of-influence argument filter: it
// drops argument positions no query output ever depends on, mints a
// smaller "sliced" predicate for every predicate that loses at least one
// column, and rewrites every rule to the smaller vocabulary.
package coifilter

import (
	"hornflow/internal/argreach"
	"hornflow/internal/dataflow"
	"hornflow/internal/model"
	"hornflow/internal/rule"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
)

// replacement records one predicate's slice: Kept is the sorted list of
// original argument positions retained, in their new order.
type replacement struct {
	sym  *symbol.Sym
	kept []int
}

// Filter runs the cone-of-influence pass over rs. It mints fresh symbols
// through syms and returns the rewritten rule set plus a model.Converter
// that lifts a solution found over the sliced vocabulary back to rs's
// original predicates.
func Filter(rs *rule.RuleSet, syms *symbol.Manager) (*rule.RuleSet, model.Converter) {
	up := dataflow.New(&argreach.Ctx{}, rs, argreach.NewEngineFact, argreach.BottomUpDomain{}, nil)
	up.RunBottomUp()

	down := dataflow.New(&argreach.Ctx{BottomUp: up}, rs, argreach.NewEngineFact, nil, argreach.TopDownDomain{})
	down.RunTopDown()

	up.Intersect(down)

	repls := make(map[*symbol.Sym]*replacement)
	for _, sym := range rs.Predicates() {
		if sym.Arity == 0 || rs.IsOutput(sym) {
			continue
		}
		f, _ := up.Fact(sym).(*argreach.Fact)
		if f == nil {
			continue
		}
		var kept []int
		for i := 0; i < sym.Arity; i++ {
			if f.IsReachable(i) {
				kept = append(kept, i)
			}
		}
		if len(kept) == sym.Arity {
			continue
		}
		sorts := make([]term.Sort, len(kept))
		for i, pos := range kept {
			sorts[i] = sym.Sorts[pos]
		}
		fresh := syms.MkFresh(sym, "slice", sorts)
		repls[sym] = &replacement{sym: fresh, kept: kept}
	}

	out := rule.NewRuleSet()
	for _, r := range rs.Rules() {
		out.Add(rewriteRule(r, repls))
	}
	for _, o := range rs.Outputs() {
		out.AddOutput(o)
	}
	out.Close()

	return out, &converter{repls: repls}
}

func sliceAtom(a rule.Atom, repls map[*symbol.Sym]*replacement) (rule.Atom, bool) {
	rep, ok := repls[a.Pred]
	if !ok {
		return a, false
	}
	args := make([]term.Term, len(rep.kept))
	for i, pos := range rep.kept {
		args[i] = a.Args[pos]
	}
	return rule.Atom{Pred: rep.sym, Args: args}, true
}

// rewriteRule slices r's head and uninterpreted tail through repls. An
// unchanged rule (no atom touched by a replacement) is returned as-is,
// preserving its identity. A changed rule has its interpreted tail passed
// through fixUnboundVars: the free-variable closure of the new head and
// tail is computed, and any interpreted conjunct whose variables aren't
// all in that closure lost its only binding site and is dropped rather
// than left dangling.
func rewriteRule(r *rule.Rule, repls map[*symbol.Sym]*replacement) *rule.Rule {
	newHead, headChanged := sliceAtom(r.Head, repls)
	changed := headChanged

	newPos := make([]rule.Atom, len(r.PosTail))
	for i, a := range r.PosTail {
		var c bool
		newPos[i], c = sliceAtom(a, repls)
		changed = changed || c
	}
	newNeg := make([]rule.Atom, len(r.NegTail))
	for i, a := range r.NegTail {
		var c bool
		newNeg[i], c = sliceAtom(a, repls)
		changed = changed || c
	}

	if !changed {
		return r
	}

	closure := make(map[int]bool)
	collectAtomVars(newHead, closure)
	for _, a := range newPos {
		collectAtomVars(a, closure)
	}
	for _, a := range newNeg {
		collectAtomVars(a, closure)
	}

	return &rule.Rule{
		Head:    newHead,
		PosTail: newPos,
		NegTail: newNeg,
		Interp:  fixUnboundVars(r.Interp, closure),
	}
}

// collectAtomVars records every variable index occurring in a's arguments.
func collectAtomVars(a rule.Atom, into map[int]bool) {
	for _, arg := range a.Args {
		collectVars(arg, into)
	}
}

func collectVars(t term.Term, into map[int]bool) {
	switch n := t.(type) {
	case *term.Var:
		into[n.Index] = true
	case *term.App:
		for _, a := range n.Args {
			collectVars(a, into)
		}
	}
}

// fixUnboundVars drops every interpreted-tail conjunct that references a
// variable outside closure: that variable's only binding occurrence was an
// argument position the slice removed, so the conjunct can no longer be
// evaluated against the rewritten head/tail and is vacuous to keep. The
// interpreted tail is already a flat conjunct list (no explicit "and"
// term ever gets built), so no flattening step is needed first.
func fixUnboundVars(interp []term.Term, closure map[int]bool) []term.Term {
	var out []term.Term
	for _, t := range interp {
		vars := make(map[int]bool)
		collectVars(t, vars)
		bound := true
		for v := range vars {
			if !closure[v] {
				bound = false
				break
			}
		}
		if bound {
			out = append(out, t)
		}
	}
	return out
}

// converter lifts a Model expressed over sliced predicates back onto the
// original vocabulary: dropped positions are filled with a fresh "don't
// care" variable in every translated entry, since the caller's solver
// never constrained them, and argument variables in the else-default are
// renumbered back to their original positions.
type converter struct {
	repls map[*symbol.Sym]*replacement
}

func (c *converter) Convert(m *model.Model) *model.Model {
	out := model.NewModel()
	for sym, val := range m.Consts {
		out.Consts[c.originalSym(sym)] = val
	}
	for sym, fi := range m.Funcs {
		orig, rep := c.lookupOriginal(sym)
		if rep == nil {
			out.Funcs[orig] = fi
			continue
		}
		out.Funcs[orig] = c.liftFuncInterp(orig, rep, fi)
	}
	return out
}

func (c *converter) originalSym(sym *symbol.Sym) *symbol.Sym {
	orig, _ := c.lookupOriginal(sym)
	return orig
}

func (c *converter) lookupOriginal(sym *symbol.Sym) (*symbol.Sym, *replacement) {
	for orig, rep := range c.repls {
		if rep.sym == sym {
			return orig, rep
		}
	}
	return sym, nil
}

func (c *converter) liftFuncInterp(orig *symbol.Sym, rep *replacement, fi *model.FuncInterp) *model.FuncInterp {
	keptSet := make(map[int]int, len(rep.kept))
	for i, pos := range rep.kept {
		keptSet[pos] = i
	}
	// An else clause referencing the sliced signature's j-th argument
	// variable must reference position kept[j] of the original signature.
	elseSubst := make(map[int]term.Term, len(rep.kept))
	for j, pos := range rep.kept {
		elseSubst[j] = &term.Var{Index: pos, Sort: orig.Sorts[pos]}
	}
	out := &model.FuncInterp{Else: substVars(fi.Else, elseSubst)}
	freeVarIdx := 1000000 // disjoint from source variable indices: dropped positions never constrain a solution
	for _, e := range fi.Entries {
		args := make([]term.Term, orig.Arity)
		for pos := 0; pos < orig.Arity; pos++ {
			if j, ok := keptSet[pos]; ok {
				args[pos] = e.Args[j]
			} else {
				args[pos] = &term.Var{Index: freeVarIdx, Sort: orig.Sorts[pos]}
				freeVarIdx++
			}
		}
		out.Entries = append(out.Entries, model.Entry{Args: args, Value: e.Value})
	}
	return out
}

// substVars rewrites every variable in t through subst, leaving unmapped
// variables and all other nodes untouched.
func substVars(t term.Term, subst map[int]term.Term) term.Term {
	switch n := t.(type) {
	case nil:
		return nil
	case *term.Var:
		if repl, ok := subst[n.Index]; ok {
			return repl
		}
		return n
	case *term.App:
		args := make([]term.Term, len(n.Args))
		changed := false
		for i, a := range n.Args {
			args[i] = substVars(a, subst)
			changed = changed || args[i] != a
		}
		if !changed {
			return n
		}
		return &term.App{Func: n.Func, Args: args}
	default:
		return t
	}
}
