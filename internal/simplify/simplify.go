// Package simplify provides the minimal constant-folding the rule
// exploder needs for its interpreted-tail rewrite: once a specialization's
// variable bindings are substituted into an interpreted literal, decide
// whether it folded to a ground true/false so the caller can drop it or
// reject the whole specialization. Deliberately narrow; it is not a
// general term rewriter.
package simplify

import (
	"hornflow/internal/term"
)

// Simplify folds t if it is a fully-ground interpreted application this
// package recognizes (equality, disequality, and the usual arithmetic
// comparisons over integer constants). Anything else, including an App
// with a still-unbound variable or an operator this package doesn't
// know, is returned unchanged.
func Simplify(t term.Term) term.Term {
	app, ok := t.(*term.App)
	if !ok || len(app.Args) != 2 {
		return t
	}
	lc, lok := app.Args[0].(*term.Const)
	rc, rok := app.Args[1].(*term.Const)
	if !lok || !rok {
		return t
	}
	switch app.Func.Name {
	case "=":
		return boolConst(term.Equal(lc, rc))
	case "!=", "<>":
		return boolConst(!term.Equal(lc, rc))
	}
	li, lIsInt := lc.Value.(term.IntValue)
	ri, rIsInt := rc.Value.(term.IntValue)
	if !lIsInt || !rIsInt {
		return t
	}
	switch app.Func.Name {
	case "<":
		return boolConst(li < ri)
	case "<=":
		return boolConst(li <= ri)
	case ">":
		return boolConst(li > ri)
	case ">=":
		return boolConst(li >= ri)
	default:
		return t
	}
}

func boolConst(b bool) term.Term {
	return &term.Const{Value: term.BoolValue(b)}
}

// AsBool reports whether t is a folded boolean constant, returning its
// value.
func AsBool(t term.Term) (bool, bool) {
	c, ok := t.(*term.Const)
	if !ok {
		return false, false
	}
	b, ok := c.Value.(term.BoolValue)
	return bool(b), ok
}
