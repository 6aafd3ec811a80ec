package exploder_test

import (
	"testing"

	"hornflow/internal/rule"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
	"hornflow/internal/transform/exploder"
)

// TestExplodeCasesSplitsOnTupleSet builds p(0). p(1). q(X):-p(X). with q as
// the sole output, and checks that both predicates - each ranging over
// exactly two known values - get cloned into one specialization per row,
// and that every specialized q-clause calls the p-clone carrying the
// matching value.
func TestExplodeCasesSplitsOnTupleSet(t *testing.T) {
	syms := symbol.NewManager()
	fac := term.NewFactory()
	sortN := term.Sort{Name: "n"}

	p := syms.Intern("p", []term.Sort{sortN})
	q := syms.Intern("q", []term.Sort{sortN})

	x := fac.Var(0, sortN)
	zero := fac.Const(term.IntValue(0), sortN)
	one := fac.Const(term.IntValue(1), sortN)

	rs := rule.NewRuleSet()
	rs.Add(&rule.Rule{Head: rule.Atom{Pred: p, Args: []term.Term{zero}}})
	rs.Add(&rule.Rule{Head: rule.Atom{Pred: p, Args: []term.Term{one}}})
	rs.Add(&rule.Rule{
		Head:    rule.Atom{Pred: q, Args: []term.Term{x}},
		PosTail: []rule.Atom{{Pred: p, Args: []term.Term{x}}},
	})
	rs.AddOutput(q)
	rs.Close()

	out, clones := exploder.Explode(rs, syms, exploder.Config{Threshold: 5})

	pClones, ok := clones[p]
	if !ok || len(pClones) != 2 {
		t.Fatalf("expected p to be cloned into 2 cases, got %v", pClones)
	}
	qClones, ok := clones[q]
	if !ok || len(qClones) != 2 {
		t.Fatalf("expected q to be cloned into 2 cases, got %v", qClones)
	}

	qCloneSet := make(map[*symbol.Sym]bool, len(qClones))
	for _, c := range qClones {
		qCloneSet[c] = true
	}
	pCloneSet := make(map[*symbol.Sym]bool, len(pClones))
	for _, c := range pClones {
		pCloneSet[c] = true
	}

	qRuleCount := 0
	for _, r := range out.Rules() {
		if qCloneSet[r.Head.Pred] {
			qRuleCount++
			if len(r.PosTail) != 1 || !pCloneSet[r.PosTail[0].Pred] {
				t.Fatalf("expected q-clone rule to call a p-clone, got tail %+v", r.PosTail)
			}
		}
	}
	if qRuleCount != 2 {
		t.Fatalf("expected exactly 2 specialized q rules (one per matching row), got %d", qRuleCount)
	}

	// Every q clone should have been registered as an output, since q was.
	outputs := make(map[*symbol.Sym]bool)
	for _, o := range out.Outputs() {
		outputs[o] = true
	}
	for _, c := range qClones {
		if !outputs[c] {
			t.Fatalf("expected q's clone %v to be registered as an output", c)
		}
	}
}

// TestExplodeIdempotent checks that a second pass over an already-exploded
// rule set specializes nothing further: every clone's tuple set has no
// tracked columns left, so no new clones (and no new rules) appear.
func TestExplodeIdempotent(t *testing.T) {
	syms := symbol.NewManager()
	fac := term.NewFactory()
	sortN := term.Sort{Name: "n"}

	p := syms.Intern("p", []term.Sort{sortN})
	q := syms.Intern("q", []term.Sort{sortN})

	x := fac.Var(0, sortN)
	zero := fac.Const(term.IntValue(0), sortN)
	one := fac.Const(term.IntValue(1), sortN)

	rs := rule.NewRuleSet()
	rs.Add(&rule.Rule{Head: rule.Atom{Pred: p, Args: []term.Term{zero}}})
	rs.Add(&rule.Rule{Head: rule.Atom{Pred: p, Args: []term.Term{one}}})
	rs.Add(&rule.Rule{
		Head:    rule.Atom{Pred: q, Args: []term.Term{x}},
		PosTail: []rule.Atom{{Pred: p, Args: []term.Term{x}}},
	})
	rs.AddOutput(q)
	rs.Close()

	first, _ := exploder.Explode(rs, syms, exploder.Config{Threshold: 5})
	second, clones := exploder.Explode(first, syms, exploder.Config{Threshold: 5})

	if len(clones) != 0 {
		t.Fatalf("expected no further specialization on a second pass, got clones for %d predicates", len(clones))
	}
	if len(second.Rules()) != len(first.Rules()) {
		t.Fatalf("expected the second pass to preserve the rule count: first=%d second=%d",
			len(first.Rules()), len(second.Rules()))
	}
}

// TestExploderNegationVacuousDrop checks the negative-literal handling:
// once a negated atom's tracked columns are fully pinned down by
// a specialization's bindings, a known non-match drops the literal
// outright rather than emitting a useless negated call.
func TestExploderNegationVacuousDrop(t *testing.T) {
	syms := symbol.NewManager()
	fac := term.NewFactory()
	sortN := term.Sort{Name: "n"}

	p := syms.Intern("p", []term.Sort{sortN})
	bad := syms.Intern("bad", []term.Sort{sortN})
	q := syms.Intern("q", []term.Sort{sortN})

	x := fac.Var(0, sortN)
	zero := fac.Const(term.IntValue(0), sortN)
	one := fac.Const(term.IntValue(1), sortN)

	rs := rule.NewRuleSet()
	rs.Add(&rule.Rule{Head: rule.Atom{Pred: p, Args: []term.Term{zero}}})
	rs.Add(&rule.Rule{Head: rule.Atom{Pred: p, Args: []term.Term{one}}})
	rs.Add(&rule.Rule{Head: rule.Atom{Pred: bad, Args: []term.Term{one}}})
	rs.Add(&rule.Rule{
		Head:    rule.Atom{Pred: q, Args: []term.Term{x}},
		PosTail: []rule.Atom{{Pred: p, Args: []term.Term{x}}},
		NegTail: []rule.Atom{{Pred: bad, Args: []term.Term{x}}},
	})
	rs.AddOutput(q)
	rs.Close()

	out, clones := exploder.Explode(rs, syms, exploder.Config{Threshold: 5})

	qClones, ok := clones[q]
	if !ok || len(qClones) != 1 {
		t.Fatalf("expected q to track only the one value (0) that survives the negation, got %v", qClones)
	}

	qCloneSet := make(map[*symbol.Sym]bool, len(qClones))
	for _, c := range qClones {
		qCloneSet[c] = true
	}

	found := false
	for _, r := range out.Rules() {
		if !qCloneSet[r.Head.Pred] {
			continue
		}
		found = true
		if len(r.NegTail) != 0 {
			t.Fatalf("expected the negated literal to be vacuously dropped once fully determined, got %+v", r.NegTail)
		}
		if len(r.PosTail) != 1 {
			t.Fatalf("expected the positive p call to remain, got %+v", r.PosTail)
		}
	}
	if !found {
		t.Fatalf("expected a specialized rule for q's surviving clone")
	}
}
