package argreach

import (
	"hornflow/internal/dataflow"
	"hornflow/internal/rule"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
)

// Ctx is the per-run context an ArgReachability engine carries. BottomUp,
// when set, points a top-down run back at the bottom-up engine it
// complements, so seeding can consult the forward pass's already-derived
// liveness; it is nil while running the bottom-up pass itself.
type Ctx struct {
	BottomUp *dataflow.Engine[Ctx]
}

// NewEngineFact is the dataflow.NewFactFunc this domain plugs into
// dataflow.New: it mints the bottom element (no position reachable) for
// sym's arity.
func NewEngineFact(_ *Ctx, sym *symbol.Sym) dataflow.Fact[Ctx] {
	return NewFact(sym.Arity)
}

func maxVarIndex(r *rule.Rule) int {
	max := -1
	var scan func(t term.Term)
	scan = func(t term.Term) {
		switch n := t.(type) {
		case *term.Var:
			if n.Index > max {
				max = n.Index
			}
		case *term.App:
			for _, a := range n.Args {
				scan(a)
			}
		}
	}
	for _, a := range r.Head.Args {
		scan(a)
	}
	for i := 0; i < r.UninterpretedTailSize(); i++ {
		at, _ := r.TailAtom(i)
		for _, a := range at.Args {
			scan(a)
		}
	}
	for _, it := range r.Interp {
		scan(it)
	}
	return max
}

// BottomUpDomain derives, for each rule head position, whether its value
// can vary as a function of the rule's body; that is, whether it is bound
// to a variable that is itself live in some tail atom's already-known-live
// position, or computed by an interpreted subterm.
type BottomUpDomain struct{}

// InitUp seeds a rule's head fact: a non-variable position is always
// live. A variable position is live only if its index is a free variable
// of the interpreted tail, or it repeats at another head position
// (repetition is an implicit equality).
func (BottomUpDomain) InitUp(_ *Ctx, r *rule.Rule) dataflow.Fact[Ctx] {
	reachable := make(map[int]bool)
	for _, it := range r.Interp {
		collectVars(it, reachable)
	}
	seen := make(map[int]bool)
	for _, arg := range r.Head.Args {
		v, ok := arg.(*term.Var)
		if !ok {
			continue
		}
		if seen[v.Index] {
			reachable[v.Index] = true
		} else {
			seen[v.Index] = true
		}
	}

	f := NewFact(len(r.Head.Args))
	for i, arg := range r.Head.Args {
		v, ok := arg.(*term.Var)
		if !ok {
			f.SetReachable(i)
			continue
		}
		if reachable[v.Index] {
			f.SetReachable(i)
		}
	}
	return f
}

// collectVars walks t and records every variable index it finds into into.
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

// PropagateUp derives the delta fact for r's head from the current facts
// of r's positive tail atoms: a head position bound to variable v is live
// if v occurs at a live position of some positive tail atom, or v occurs
// in any interpreted tail term.
func (BottomUpDomain) PropagateUp(_ *Ctx, r *rule.Rule, reader dataflow.Reader[Ctx]) dataflow.Fact[Ctx] {
	f := NewFact(len(r.Head.Args))
	for i, arg := range r.Head.Args {
		v, ok := arg.(*term.Var)
		if !ok {
			f.SetReachable(i)
			continue
		}
		if tailVarLive(r, v.Index, reader) || varInTerms(v.Index, r.Interp) {
			f.SetReachable(i)
		}
	}
	return f
}

func tailVarLive(r *rule.Rule, idx int, reader dataflow.Reader[Ctx]) bool {
	for _, at := range r.PosTail {
		tf, _ := reader.Fact(at.Pred).(*Fact)
		if tf == nil {
			continue
		}
		for k, targ := range at.Args {
			if tv, ok := targ.(*term.Var); ok && tv.Index == idx && tf.IsReachable(k) {
				return true
			}
		}
	}
	return false
}

func varInTerms(idx int, terms []term.Term) bool {
	var contains func(t term.Term) bool
	contains = func(t term.Term) bool {
		switch n := t.(type) {
		case *term.Var:
			return n.Index == idx
		case *term.App:
			for _, a := range n.Args {
				if contains(a) {
					return true
				}
			}
		}
		return false
	}
	for _, t := range terms {
		if contains(t) {
			return true
		}
	}
	return false
}

// TopDownDomain derives, for each tail atom position, whether its value
// could be needed to compute a live head position.
type TopDownDomain struct{}

// InitDown seeds every output predicate with every position live (a query
// predicate is the very definition of "everything about it matters"), then
// processes every rule once: a tail position is reachable if its argument
// is a non-variable, or if it is a variable that either occurs in the
// interpreted tail or repeats across the uninterpreted tail at an
// occurrence the paired bottom-up engine already marks reachable.
func (TopDownDomain) InitDown(ctx *Ctx, rs *rule.RuleSet, setter dataflow.Setter[Ctx]) {
	for _, sym := range rs.Outputs() {
		f := NewFact(sym.Arity)
		for i := 0; i < sym.Arity; i++ {
			f.SetReachable(i)
		}
		setter.Set(sym, f)
	}

	for _, r := range rs.Rules() {
		reachable := make(map[int]bool)
		for _, it := range r.Interp {
			collectVars(it, reachable)
		}

		seen := make(map[int]bool)
		for i := 0; i < r.UninterpretedTailSize(); i++ {
			at, _ := r.TailAtom(i)
			for j, arg := range at.Args {
				v, ok := arg.(*term.Var)
				if !ok || !prevReachable(ctx, at.Pred, j) {
					continue
				}
				if seen[v.Index] {
					reachable[v.Index] = true
				} else {
					seen[v.Index] = true
				}
			}
		}

		for i := 0; i < r.UninterpretedTailSize(); i++ {
			at, _ := r.TailAtom(i)
			var delta *Fact
			for j, arg := range at.Args {
				if v, ok := arg.(*term.Var); ok {
					if !reachable[v.Index] {
						continue
					}
				}
				if delta == nil {
					delta = NewFact(at.Pred.Arity)
				}
				delta.SetReachable(j)
			}
			if delta != nil {
				setter.Set(at.Pred, delta)
			}
		}
	}
}

// prevReachable reports whether the bottom-up engine paired with ctx (if
// any) marks position pos of sym reachable; a nil context, a nil paired
// engine, or a never-touched predicate all fall back to the null fact's
// empty bitset, i.e. not reachable.
func prevReachable(ctx *Ctx, sym *symbol.Sym, pos int) bool {
	if ctx == nil || ctx.BottomUp == nil {
		return false
	}
	f, ok := ctx.BottomUp.Fact(sym).(*Fact)
	if !ok || f == nil {
		return false
	}
	return f.IsReachable(pos)
}

// PropagateDown pushes r's head fact backward across r's body: a positive
// tail atom's position bound to variable v is live if v occurs at a live
// head position, or v is taint-linked (through a shared interpreted
// subterm) to a variable that does.
func (TopDownDomain) PropagateDown(_ *Ctx, r *rule.Rule, head dataflow.Fact[Ctx], setter dataflow.Setter[Ctx]) {
	hf, ok := head.(*Fact)
	if !ok {
		return
	}
	maxVar := maxVarIndex(r)
	if maxVar < 0 {
		return
	}
	tracer := newTaintTracer(r, maxVar)
	for i, harg := range r.Head.Args {
		if hv, ok := harg.(*term.Var); ok && hf.IsReachable(i) {
			tracer.setReachable(hv.Index)
		}
	}
	for _, at := range r.PosTail {
		var delta *Fact
		for k, targ := range at.Args {
			if v, ok := targ.(*term.Var); ok {
				if !tracer.isReachable(v.Index) {
					continue
				}
			}
			if delta == nil {
				delta = NewFact(at.Pred.Arity)
			}
			delta.SetReachable(k)
		}
		if delta != nil {
			setter.Set(at.Pred, delta)
		}
	}
}
