package tupleset

import (
	"sort"

	"hornflow/internal/dataflow"
	"hornflow/internal/rule"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
)

// Ctx is the per-run context a tuple-set engine carries. Cutoff bounds
// the row count: prune runs after every Join once the count exceeds it.
// BottomUp, when set, lets a top-down engine seed its outputs from a
// prior bottom-up run's derived tuples instead of starting from nothing.
type Ctx struct {
	Cutoff   int
	BottomUp *dataflow.Engine[Ctx]
}

// NewEngineFact is the dataflow.NewFactFunc this domain plugs into
// dataflow.New.
func NewEngineFact(_ *Ctx, sym *symbol.Sym) dataflow.Fact[Ctx] {
	return NewFact(sym.Arity)
}

// BottomUpDomain derives, per predicate, the bounded set of argument
// tuples reachable from the base facts.
type BottomUpDomain struct{}

// InitUp seeds base-fact deduction for rules with no positive
// uninterpreted tail: the head tracks the positions bound to a literal
// constant, plus any variable position for which the interpreted tail
// carries an equality binding it to a ground value. A head column with
// neither is dropped (not determinable). Rules with a positive tail are
// left to PropagateUp.
func (BottomUpDomain) InitUp(_ *Ctx, r *rule.Rule) dataflow.Fact[Ctx] {
	if len(r.PosTail) > 0 {
		return nil
	}
	var cols []int
	var vals []term.Term
	for i, arg := range r.Head.Args {
		switch a := arg.(type) {
		case *term.Const:
			cols = append(cols, i)
			vals = append(vals, a)
		case *term.Var:
			if v, ok := constBinding(a.Index, r.Interp); ok {
				cols = append(cols, i)
				vals = append(vals, v)
			}
		}
	}
	return &Fact{Cols: cols, Rows: [][]term.Term{vals}}
}

// constBinding searches interp for an equality "v = const" or
// "const = v" binding the variable at idx to a ground value.
func constBinding(idx int, interp []term.Term) (term.Term, bool) {
	for _, t := range interp {
		lhs, rhs, ok := term.AsEquality(t)
		if !ok {
			continue
		}
		if v, isVar := lhs.(*term.Var); isVar && v.Index == idx {
			if term.IsConst(rhs) {
				return rhs, true
			}
		}
		if v, isVar := rhs.(*term.Var); isVar && v.Index == idx {
			if term.IsConst(lhs) {
				return lhs, true
			}
		}
	}
	return nil, false
}

// PropagateUp is a k-way join over the current tuples of every
// positive-tail atom, binding shared variables
// consistently, dropping combinations a bound negative-tail atom rules
// out, and projecting the result onto whichever head columns the join
// actually determined.
func (BottomUpDomain) PropagateUp(ctx *Ctx, r *rule.Rule, reader dataflow.Reader[Ctx]) dataflow.Fact[Ctx] {
	tailFacts := make([]*Fact, len(r.PosTail))
	for i, at := range r.PosTail {
		tf, _ := reader.Fact(at.Pred).(*Fact)
		if tf == nil {
			return nil
		}
		if !tf.Full && len(tf.Rows) == 0 {
			return nil
		}
		tailFacts[i] = tf
	}

	trackedVar := func(idx int) bool {
		for i, at := range r.PosTail {
			tf := tailFacts[i]
			if tf.Full {
				continue
			}
			for _, col := range tf.Cols {
				if v, ok := at.Args[col].(*term.Var); ok && v.Index == idx {
					return true
				}
			}
		}
		return false
	}

	var headCols []int
	for i, arg := range r.Head.Args {
		switch a := arg.(type) {
		case *term.Const:
			headCols = append(headCols, i)
		case *term.Var:
			if trackedVar(a.Index) {
				headCols = append(headCols, i)
			}
		}
	}
	sort.Ints(headCols)

	bindings := make(map[int]term.Term)
	var results [][]term.Term

	var recurse func(i int)
	recurse = func(i int) {
		if i == len(r.PosTail) {
			// Step 2: positive interpreted-tail equalities are additional
			// unification constraints on top of the tail join, applied to a
			// scratch copy so they never leak into sibling combinations.
			rowBindings := bindings
			if len(r.Interp) > 0 {
				extended := make(map[int]term.Term, len(bindings))
				for k, v := range bindings {
					extended[k] = v
				}
				if !applyEqualities(r.Interp, extended) {
					return
				}
				rowBindings = extended
			}
			if !negSatisfied(r.NegTail, rowBindings, reader) {
				return
			}
			row := make([]term.Term, len(headCols))
			for j, col := range headCols {
				switch a := r.Head.Args[col].(type) {
				case *term.Const:
					row[j] = a
				case *term.Var:
					v, ok := rowBindings[a.Index]
					if !ok {
						return
					}
					row[j] = v
				}
			}
			results = append(results, row)
			return
		}
		at := r.PosTail[i]
		tf := tailFacts[i]
		if tf.Full || len(tf.Cols) == 0 {
			recurse(i + 1)
			return
		}
		for _, trow := range tf.Rows {
			var touched []int
			conflict := false
			for ci, col := range tf.Cols {
				arg := at.Args[col]
				val := trow[ci]
				switch a := arg.(type) {
				case *term.Var:
					if existing, bound := bindings[a.Index]; bound {
						if !term.Equal(existing, val) {
							conflict = true
						}
					} else {
						bindings[a.Index] = val
						touched = append(touched, a.Index)
					}
				case *term.Const:
					if !term.Equal(a, val) {
						conflict = true
					}
				}
				if conflict {
					break
				}
			}
			if !conflict {
				recurse(i + 1)
			}
			for _, idx := range touched {
				delete(bindings, idx)
			}
		}
	}
	recurse(0)

	if len(results) == 0 {
		return nil
	}
	f := &Fact{Cols: headCols, Rows: results}
	f.removeDuplicates()
	if ctx != nil && ctx.Cutoff > 0 {
		f.prune(ctx.Cutoff)
	}
	return f
}

// applyEqualities folds positive interpreted-tail equalities into bindings
// until no more progress is made, unifying variable-variable and
// variable-value pairs. Reports false on a genuine conflict (the
// combination these bindings came from is infeasible).
func applyEqualities(interp []term.Term, bindings map[int]term.Term) bool {
	for changed := true; changed; {
		changed = false
		for _, t := range interp {
			lhs, rhs, ok := term.AsEquality(t)
			if !ok {
				continue
			}
			lv, lIsVar := lhs.(*term.Var)
			rv, rIsVar := rhs.(*term.Var)
			switch {
			case lIsVar && rIsVar:
				lb, lok := bindings[lv.Index]
				rb, rok := bindings[rv.Index]
				switch {
				case lok && rok:
					if !term.Equal(lb, rb) {
						return false
					}
				case lok && !rok:
					bindings[rv.Index] = lb
					changed = true
				case rok && !lok:
					bindings[lv.Index] = rb
					changed = true
				}
			case lIsVar && term.IsConst(rhs):
				if b, ok := bindings[lv.Index]; ok {
					if !term.Equal(b, rhs) {
						return false
					}
				} else {
					bindings[lv.Index] = rhs
					changed = true
				}
			case rIsVar && term.IsConst(lhs):
				if b, ok := bindings[rv.Index]; ok {
					if !term.Equal(b, lhs) {
						return false
					}
				} else {
					bindings[rv.Index] = lhs
					changed = true
				}
			default:
				if !term.Equal(lhs, rhs) {
					return false
				}
			}
		}
	}
	return true
}

// negSatisfied reports whether the current variable bindings are still
// consistent with every negative-tail atom, i.e. none of them is fully
// determined and known to match. An atom whose tracked columns aren't
// fully determined by the current bindings can't be ruled in or out, so it
// is conservatively treated as satisfied.
func negSatisfied(negTail []rule.Atom, bindings map[int]term.Term, reader dataflow.Reader[Ctx]) bool {
	for _, at := range negTail {
		tf, _ := reader.Fact(at.Pred).(*Fact)
		if tf == nil {
			continue
		}
		if tf.Full {
			return false
		}
		if len(tf.Cols) == 0 {
			if len(tf.Rows) > 0 {
				return false
			}
			continue
		}
		row := make([]term.Term, len(tf.Cols))
		determined := true
		for ci, col := range tf.Cols {
			switch a := at.Args[col].(type) {
			case *term.Const:
				row[ci] = a
			case *term.Var:
				v, ok := bindings[a.Index]
				if !ok {
					determined = false
				} else {
					row[ci] = v
				}
			default:
				determined = false
			}
			if !determined {
				break
			}
		}
		if !determined {
			continue
		}
		key := rowKey(row)
		for _, r := range tf.Rows {
			if rowKey(r) == key {
				return false
			}
		}
	}
	return true
}

// TopDownDomain distributes a head predicate's query tuples backward
// onto the tail atoms of every rule that derives it.
type TopDownDomain struct{}

// InitDown seeds every output predicate from the corresponding bottom-up
// engine's derived tuples when one is available (ctx.BottomUp), falling
// back to the fully unconstrained (Full) fact otherwise.
func (TopDownDomain) InitDown(ctx *Ctx, rs *rule.RuleSet, setter dataflow.Setter[Ctx]) {
	for _, sym := range rs.Outputs() {
		if ctx != nil && ctx.BottomUp != nil {
			if bf, ok := ctx.BottomUp.Fact(sym).(*Fact); ok {
				setter.Set(sym, bf.clone())
				continue
			}
		}
		setter.Set(sym, NewFull())
	}
}

// PropagateDown pushes r's head query tuples backward onto every
// uninterpreted tail atom. Per head row, the head's stored values are
// unified against the head arguments (conflicting rows are skipped) and
// interpreted-tail equalities are folded into the same binding buffer;
// each tail atom then receives one query tuple over the columns those
// bindings determine. A tail column no surviving binding set determines
// is left out of the delta, which demotes it out of the tail's fact when
// the delta is joined in. A Full (or zero-column) head fact is the unit
// query: a single unconstrained binding set.
func (TopDownDomain) PropagateDown(_ *Ctx, r *rule.Rule, head dataflow.Fact[Ctx], setter dataflow.Setter[Ctx]) {
	hf, ok := head.(*Fact)
	if !ok {
		return
	}
	headRows := hf.Rows
	if hf.Full || len(hf.Cols) == 0 {
		if len(hf.Rows) == 0 {
			return
		}
		headRows = [][]term.Term{{}}
	}

	var rowBindings []map[int]term.Term
	for _, hrow := range headRows {
		b := make(map[int]term.Term)
		conflict := false
		if !hf.Full {
			for ci, col := range hf.Cols {
				switch a := r.Head.Args[col].(type) {
				case *term.Var:
					if ex, bound := b[a.Index]; bound {
						conflict = !term.Equal(ex, hrow[ci])
					} else {
						b[a.Index] = hrow[ci]
					}
				case *term.Const:
					conflict = !term.Equal(a, hrow[ci])
				default:
					conflict = true
				}
				if conflict {
					break
				}
			}
		}
		if conflict {
			continue
		}
		if len(r.Interp) > 0 && !applyEqualities(r.Interp, b) {
			continue
		}
		rowBindings = append(rowBindings, b)
	}
	if len(rowBindings) == 0 {
		return
	}

	// A variable only determines a tail column if every surviving binding
	// set gives it a value; otherwise the column is dropped on join.
	determined := func(idx int) bool {
		for _, b := range rowBindings {
			if _, ok := b[idx]; !ok {
				return false
			}
		}
		return true
	}

	tailAtoms := make([]rule.Atom, 0, len(r.PosTail)+len(r.NegTail))
	tailAtoms = append(tailAtoms, r.PosTail...)
	tailAtoms = append(tailAtoms, r.NegTail...)
	for _, at := range tailAtoms {
		var cols []int
		for k, arg := range at.Args {
			switch a := arg.(type) {
			case *term.Const:
				cols = append(cols, k)
			case *term.Var:
				if determined(a.Index) {
					cols = append(cols, k)
				}
			}
		}
		sort.Ints(cols)
		delta := &Fact{Cols: cols}
		for _, b := range rowBindings {
			row := make([]term.Term, len(cols))
			for ci, k := range cols {
				switch a := at.Args[k].(type) {
				case *term.Const:
					row[ci] = a
				case *term.Var:
					row[ci] = b[a.Index]
				}
			}
			delta.Rows = append(delta.Rows, row)
		}
		delta.removeDuplicates()
		setter.Set(at.Pred, delta)
	}
}
