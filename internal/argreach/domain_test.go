package argreach_test

import (
	"testing"

	"hornflow/internal/argreach"
	"hornflow/internal/dataflow"
	"hornflow/internal/rule"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
)

// TestBottomUpBareVariableStaysUnreachable checks that a bare base fact
// p(X), with no interpreted tail and no repeated head variable, leaves its
// sole variable position unreachable, while a constant base fact q(1) has
// position 0 live.
func TestBottomUpBareVariableStaysUnreachable(t *testing.T) {
	syms := symbol.NewManager()
	fac := term.NewFactory()
	sortA := term.Sort{Name: "a"}

	p := syms.Intern("p", []term.Sort{sortA})
	q := syms.Intern("q", []term.Sort{sortA})

	x := fac.Var(0, sortA)
	one := fac.Const(term.IntValue(1), sortA)

	rs := rule.NewRuleSet()
	rs.Add(&rule.Rule{Head: rule.Atom{Pred: p, Args: []term.Term{x}}})
	rs.Add(&rule.Rule{Head: rule.Atom{Pred: q, Args: []term.Term{one}}})
	rs.Close()

	ctx := &argreach.Ctx{}
	e := dataflow.New(ctx, rs, argreach.NewEngineFact, argreach.BottomUpDomain{}, nil)
	e.RunBottomUp()

	pf := e.Fact(p).(*argreach.Fact)
	if pf.IsReachable(0) {
		t.Fatalf("p: bare base fact's sole variable position should stay unreachable with no interpreted tail and no repeated head variable")
	}
	qf := e.Fact(q).(*argreach.Fact)
	if !qf.IsReachable(0) {
		t.Fatalf("q: position 0 (constant) should always be live")
	}
}

// stubReader is a fixed lookup table satisfying dataflow.Reader[argreach.Ctx]
// for tests that drive PropagateUp directly, bypassing the engine's own
// worklist scheduling.
type stubReader map[*symbol.Sym]dataflow.Fact[argreach.Ctx]

func (s stubReader) Fact(sym *symbol.Sym) dataflow.Fact[argreach.Ctx] { return s[sym] }

// TestPropagateUpAlwaysMarksConstantHeadPositions checks `A(x, 3) :-
// B(x).`: position 1 (the constant 3) must be reachable regardless of B,
// and position 0 (the shared variable x) is reachable iff B's own
// matching position already is.
func TestPropagateUpAlwaysMarksConstantHeadPositions(t *testing.T) {
	syms := symbol.NewManager()
	fac := term.NewFactory()
	sortA := term.Sort{Name: "a"}

	a := syms.Intern("a", []term.Sort{sortA, sortA})
	b := syms.Intern("b", []term.Sort{sortA})

	x := fac.Var(0, sortA)
	three := fac.Const(term.IntValue(3), sortA)

	r := &rule.Rule{
		Head:    rule.Atom{Pred: a, Args: []term.Term{x, three}},
		PosTail: []rule.Atom{{Pred: b, Args: []term.Term{x}}},
	}

	deadB := argreach.NewFact(1)
	reader := stubReader{b: deadB}
	delta := argreach.BottomUpDomain{}.PropagateUp(&argreach.Ctx{}, r, reader).(*argreach.Fact)
	if delta.IsReachable(0) {
		t.Fatalf("a: position 0 should stay unreachable while b's position is dead")
	}
	if !delta.IsReachable(1) {
		t.Fatalf("a: position 1 (constant 3) should always be reachable")
	}

	liveB := argreach.NewFact(1)
	liveB.SetReachable(0)
	delta = argreach.BottomUpDomain{}.PropagateUp(&argreach.Ctx{}, r, stubReader{b: liveB}).(*argreach.Fact)
	if !delta.IsReachable(0) {
		t.Fatalf("a: position 0 should become reachable once b's matching position is live")
	}
}

// TestTopDownSeedsOutputsFully checks that an output predicate starts with
// every position marked live, and that liveness propagates backward to a
// positive-tail atom sharing the head's variable.
func TestTopDownSeedsOutputsFully(t *testing.T) {
	syms := symbol.NewManager()
	fac := term.NewFactory()
	sortA := term.Sort{Name: "a"}

	p := syms.Intern("p", []term.Sort{sortA})
	r := syms.Intern("r", []term.Sort{sortA})
	x := fac.Var(0, sortA)

	rs := rule.NewRuleSet()
	rs.Add(&rule.Rule{
		Head:    rule.Atom{Pred: r, Args: []term.Term{x}},
		PosTail: []rule.Atom{{Pred: p, Args: []term.Term{x}}},
	})
	rs.AddOutput(r)
	rs.Close()

	ctx := &argreach.Ctx{}
	e := dataflow.New(ctx, rs, argreach.NewEngineFact, nil, argreach.TopDownDomain{})
	e.RunTopDown()

	rf := e.Fact(r).(*argreach.Fact)
	if !rf.IsReachable(0) {
		t.Fatalf("r: output predicate should start fully live")
	}
	pf := e.Fact(p).(*argreach.Fact)
	if !pf.IsReachable(0) {
		t.Fatalf("p: should inherit liveness pushed down from r through shared variable")
	}
}
