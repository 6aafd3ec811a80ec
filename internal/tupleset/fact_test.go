package tupleset_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"hornflow/internal/term"
	"hornflow/internal/tupleset"
)

// termComparer lets cmp.Diff compare a Fact's rows by value rather than by
// the pointer identity a hash-consed term.Term carries.
var termComparer = cmp.Comparer(func(a, b term.Term) bool {
	return term.Equal(a, b)
})

// TestFactJoinReconcilesColumnUniverses builds two Facts tracking different
// column subsets of the same arity-3 relation and checks that Join narrows
// both to their common columns before unioning rows, using cmp.Diff for a
// genuine structural comparison instead of a field-by-field hand check.
func TestFactJoinReconcilesColumnUniverses(t *testing.T) {
	fac := term.NewFactory()
	sortN := term.Sort{Name: "n"}
	one := fac.Const(term.IntValue(1), sortN)
	two := fac.Const(term.IntValue(2), sortN)
	three := fac.Const(term.IntValue(3), sortN)

	a := tupleset.NewFact(3)
	a.Cols = []int{0, 1}
	a.Rows = [][]term.Term{{one, two}}

	b := tupleset.NewFact(3)
	b.Cols = []int{0, 2}
	b.Rows = [][]term.Term{{one, three}}

	changed := a.Join(&tupleset.Ctx{}, b)
	if !changed {
		t.Fatalf("expected Join to report a change")
	}

	want := &tupleset.Fact{
		Cols: []int{0},
		Rows: [][]term.Term{{one}},
	}
	if diff := cmp.Diff(want, a, termComparer); diff != "" {
		t.Fatalf("unexpected fact after join (-want +got):\n%s", diff)
	}
}

// TestFactIntersectNarrowsToSharedRows checks the sort-merge column pairing
// Intersect uses (Open Question 2 in DESIGN.md): two facts sharing column 0
// but tracking different rows on it should intersect down to the common
// values only.
func TestFactIntersectNarrowsToSharedRows(t *testing.T) {
	fac := term.NewFactory()
	sortN := term.Sort{Name: "n"}
	one := fac.Const(term.IntValue(1), sortN)
	two := fac.Const(term.IntValue(2), sortN)

	a := tupleset.NewFact(1)
	a.Cols = []int{0}
	a.Rows = [][]term.Term{{one}, {two}}

	b := tupleset.NewFact(1)
	b.Cols = []int{0}
	b.Rows = [][]term.Term{{one}}

	a.Intersect(&tupleset.Ctx{}, b)

	want := [][]term.Term{{one}}
	if diff := cmp.Diff(want, a.Rows, termComparer); diff != "" {
		t.Fatalf("unexpected rows after intersect (-want +got):\n%s", diff)
	}
}
