package mangleio

import (
	"testing"

	"github.com/google/mangle/ast"

	"hornflow/internal/symbol"
	"hornflow/internal/term"
)

// newLowerer builds a lowerer the way Parse does, without going through
// parse.Unit/analysis.AnalyzeOneUnit: these tests exercise the lowering
// logic (ast.Clause -> rule.Rule) directly, which is this package's own
// code, rather than re-testing google/mangle's already-tested parser.
func newLowerer() *lowerer {
	return &lowerer{syms: symbol.NewManager(), terms: term.NewFactory(), decls: map[ast.PredicateSym]*ast.Decl{}}
}

func TestLowerFactSplitsConstantArgs(t *testing.T) {
	l := newLowerer()
	a := ast.Atom{
		Predicate: ast.PredicateSym{Symbol: "p", Arity: 2},
		Args: []ast.BaseTerm{
			ast.Constant{Type: ast.NumberType, NumValue: 3},
			ast.Constant{Type: ast.StringType, Symbol: "x"},
		},
	}
	r := l.lowerFact(a)
	if r.Head.Pred.Name != "p" || r.Head.Pred.Arity != 2 {
		t.Fatalf("head predicate: got %v", r.Head.Pred)
	}
	c0, ok := r.Head.Args[0].(*term.Const)
	if !ok || c0.Value != term.IntValue(3) {
		t.Fatalf("arg 0: got %v", r.Head.Args[0])
	}
	c1, ok := r.Head.Args[1].(*term.Const)
	if !ok || c1.Value != term.StringValue("x") {
		t.Fatalf("arg 1: got %v", r.Head.Args[1])
	}
}

// TestLowerClauseSplitsTailRegions checks the positive/negative/interpreted
// tail partition: a(X) :- b(X), !c(X), X < 10.
func TestLowerClauseSplitsTailRegions(t *testing.T) {
	l := newLowerer()
	x := ast.Variable{Symbol: "X"}
	cl := ast.Clause{
		Head: ast.Atom{Predicate: ast.PredicateSym{Symbol: "a", Arity: 1}, Args: []ast.BaseTerm{x}},
		Premises: []ast.Term{
			ast.Atom{Predicate: ast.PredicateSym{Symbol: "b", Arity: 1}, Args: []ast.BaseTerm{x}},
			ast.NegAtom{Atom: ast.Atom{Predicate: ast.PredicateSym{Symbol: "c", Arity: 1}, Args: []ast.BaseTerm{x}}},
			ast.Atom{
				Predicate: ast.PredicateSym{Symbol: ":lt", Arity: 2},
				Args:      []ast.BaseTerm{x, ast.Constant{Type: ast.NumberType, NumValue: 10}},
			},
		},
	}
	r, err := l.lowerClause(cl)
	if err != nil {
		t.Fatalf("lowerClause: %v", err)
	}
	if len(r.PosTail) != 1 || r.PosTail[0].Pred.Name != "b" {
		t.Fatalf("pos tail: got %v", r.PosTail)
	}
	if len(r.NegTail) != 1 || r.NegTail[0].Pred.Name != "c" {
		t.Fatalf("neg tail: got %v", r.NegTail)
	}
	if len(r.Interp) != 1 {
		t.Fatalf("interp: got %v", r.Interp)
	}
	app, ok := r.Interp[0].(*term.App)
	if !ok || app.Func.Name != "<" {
		t.Fatalf("interp term: got %v", r.Interp[0])
	}
	// X in the head, in b(X), !c(X) and the comparison must all be the
	// same deBruijn index: a single variable occurrence per clause.
	hv := r.Head.Args[0].(*term.Var)
	bv := r.PosTail[0].Args[0].(*term.Var)
	cv := r.NegTail[0].Args[0].(*term.Var)
	av := app.Args[0].(*term.Var)
	if hv.Index != bv.Index || bv.Index != cv.Index || cv.Index != av.Index {
		t.Fatalf("expected one shared variable index, got head=%d b=%d c=%d cmp=%d", hv.Index, bv.Index, cv.Index, av.Index)
	}
}

func TestLowerClauseEqualityPremise(t *testing.T) {
	l := newLowerer()
	x := ast.Variable{Symbol: "X"}
	cl := ast.Clause{
		Head: ast.Atom{Predicate: ast.PredicateSym{Symbol: "p", Arity: 1}, Args: []ast.BaseTerm{x}},
		Premises: []ast.Term{
			ast.Eq{Left: x, Right: ast.Constant{Type: ast.NumberType, NumValue: 2}},
		},
	}
	r, err := l.lowerClause(cl)
	if err != nil {
		t.Fatalf("lowerClause: %v", err)
	}
	if len(r.Interp) != 1 {
		t.Fatalf("expected one interpreted literal, got %d", len(r.Interp))
	}
	lhs, rhs, ok := term.AsEquality(r.Interp[0])
	if !ok {
		t.Fatalf("expected an equality term, got %v", r.Interp[0])
	}
	if _, isVar := lhs.(*term.Var); !isVar {
		t.Fatalf("expected lhs to be the variable, got %v", lhs)
	}
	if c, isConst := rhs.(*term.Const); !isConst || c.Value != term.IntValue(2) {
		t.Fatalf("expected rhs to be constant 2, got %v", rhs)
	}
}

func TestLowerClauseWildcardsGetDistinctIndices(t *testing.T) {
	l := newLowerer()
	wc := ast.Variable{Symbol: "_"}
	cl := ast.Clause{
		Head: ast.Atom{Predicate: ast.PredicateSym{Symbol: "p", Arity: 2}, Args: []ast.BaseTerm{wc, wc}},
	}
	r, err := l.lowerClause(cl)
	if err != nil {
		t.Fatalf("lowerClause: %v", err)
	}
	v0 := r.Head.Args[0].(*term.Var)
	v1 := r.Head.Args[1].(*term.Var)
	if v0.Index == v1.Index {
		t.Fatalf("two separate wildcards should get distinct indices, got %d and %d", v0.Index, v1.Index)
	}
}
