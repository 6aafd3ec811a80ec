package mangleio

import (
	"fmt"

	"github.com/google/mangle/ast"

	"hornflow/internal/rule"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
)

// anySort is the sort assigned to every predicate argument position; bound
// declarations in the source are not read. Mangle's own type-bound inference
// (analysis.BoundsAnalyzer) is not consulted either: sorts are only needed for
// tupleset's column-full check and the model converter's fresh
// dropped-position variables, neither of which needs more than a name to
// key on, so unbound positions all share this one sort.
var anySort = term.Sort{Name: "any"}

// builtinComparisons maps Mangle's built-in comparison predicate names
// (":lt", ":le", ...) to the two-argument interpreted FuncSym this repo's
// domains recognize. Premises using one of these, despite being written as
// an ast.Atom, belong in Rule.Interp rather than Rule.PosTail: they are
// interpreted constraints, not uninterpreted relations over derived
// tuples.
var builtinComparisons = map[string]string{
	":lt":  "<",
	":le":  "<=",
	":gt":  ">",
	":ge":  ">=",
	":neq": "!=",
	":eq":  "=",
}

// lowerer carries the shared symbol/term tables across every clause in one
// source unit, plus (reset per clause) the variable-name-to-index map a
// single clause's deBruijn numbering needs.
type lowerer struct {
	syms  *symbol.Manager
	terms *term.Factory
	decls map[ast.PredicateSym]*ast.Decl

	varIdx map[string]int
}

func (l *lowerer) predSort(pred ast.PredicateSym) []term.Sort {
	sorts := make([]term.Sort, pred.Arity)
	for i := range sorts {
		sorts[i] = anySort
	}
	return sorts
}

func (l *lowerer) predSym(pred ast.PredicateSym) *symbol.Sym {
	return l.syms.Intern(pred.Symbol, l.predSort(pred))
}

// varIndex returns the deBruijn index assigned to a Mangle variable name
// within the clause currently being lowered, assigning the next index on
// first occurrence.
func (l *lowerer) varIndex(name string) int {
	if idx, ok := l.varIdx[name]; ok {
		return idx
	}
	idx := len(l.varIdx)
	l.varIdx[name] = idx
	return idx
}

func (l *lowerer) lowerBaseTerm(t ast.BaseTerm) (term.Term, error) {
	switch v := t.(type) {
	case ast.Variable:
		if v.Symbol == "_" {
			// A wildcard gets its own private, never-reused index so it
			// never accidentally unifies with another "_" elsewhere in the
			// same clause.
			idx := len(l.varIdx)
			l.varIdx[fmt.Sprintf("_#%d", idx)] = idx
			return l.terms.Var(idx, anySort), nil
		}
		return l.terms.Var(l.varIndex(v.Symbol), anySort), nil
	case ast.Constant:
		switch v.Type {
		case ast.NumberType:
			return l.terms.Const(term.IntValue(v.NumValue), term.Sort{Name: "number"}), nil
		case ast.StringType:
			return l.terms.Const(term.StringValue(v.Symbol), term.Sort{Name: "string"}), nil
		case ast.NameType:
			return l.terms.Const(term.StringValue(v.Symbol), term.Sort{Name: "name"}), nil
		default:
			return l.terms.Const(term.StringValue(v.Symbol), anySort), nil
		}
	case ast.ApplyFn:
		args := make([]term.Term, len(v.Args))
		for i, a := range v.Args {
			lowered, err := l.lowerBaseTerm(a)
			if err != nil {
				return nil, err
			}
			args[i] = lowered
		}
		return l.terms.App(term.FuncSym{Name: v.Function.Symbol, Arity: len(args)}, args), nil
	default:
		return nil, fmt.Errorf("mangleio: unsupported base term %T (%v)", t, t)
	}
}

func (l *lowerer) lowerAtomArgs(a ast.Atom) ([]term.Term, error) {
	args := make([]term.Term, len(a.Args))
	for i, raw := range a.Args {
		t, err := l.lowerBaseTerm(raw)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}
	return args, nil
}

// lowerFact lowers a body-less clause head (an InitialFacts entry) into a
// Rule with an empty tail.
func (l *lowerer) lowerFact(a ast.Atom) *rule.Rule {
	l.varIdx = make(map[string]int)
	args, err := l.lowerAtomArgs(a)
	if err != nil {
		// InitialFacts are ground by construction (no body to bind a
		// variable from); an unsupported term here means the source
		// violated that, a caller bug rather than a recoverable error.
		panic(fmt.Sprintf("mangleio: malformed fact %v: %v", a, err))
	}
	return &rule.Rule{Head: rule.Atom{Pred: l.predSym(a.Predicate), Args: args}}
}

// lowerClause lowers one rule-with-a-body into this repo's Rule, splitting
// Premises into PosTail/NegTail/Interp: an ast.Atom premise
// is positive-uninterpreted (unless its predicate is one of Mangle's
// built-in comparisons, which is interpreted despite the atom syntax),
// ast.NegAtom is negative-uninterpreted, and ast.Eq/ast.Ineq are
// interpreted.
func (l *lowerer) lowerClause(cl ast.Clause) (*rule.Rule, error) {
	l.varIdx = make(map[string]int)
	headArgs, err := l.lowerAtomArgs(cl.Head)
	if err != nil {
		return nil, fmt.Errorf("mangleio: clause head %v: %w", cl.Head, err)
	}
	r := &rule.Rule{Head: rule.Atom{Pred: l.predSym(cl.Head.Predicate), Args: headArgs}}

	for _, premise := range cl.Premises {
		switch p := premise.(type) {
		case ast.Eq:
			lhs, err := l.lowerBaseTerm(p.Left)
			if err != nil {
				return nil, fmt.Errorf("mangleio: equality premise: %w", err)
			}
			rhs, err := l.lowerBaseTerm(p.Right)
			if err != nil {
				return nil, fmt.Errorf("mangleio: equality premise: %w", err)
			}
			r.Interp = append(r.Interp, l.terms.App(term.FuncSym{Name: "=", Arity: 2}, []term.Term{lhs, rhs}))
		case ast.Ineq:
			lhs, err := l.lowerBaseTerm(p.Left)
			if err != nil {
				return nil, fmt.Errorf("mangleio: inequality premise: %w", err)
			}
			rhs, err := l.lowerBaseTerm(p.Right)
			if err != nil {
				return nil, fmt.Errorf("mangleio: inequality premise: %w", err)
			}
			r.Interp = append(r.Interp, l.terms.App(term.FuncSym{Name: "!=", Arity: 2}, []term.Term{lhs, rhs}))
		case ast.NegAtom:
			args, err := l.lowerAtomArgs(p.Atom)
			if err != nil {
				return nil, fmt.Errorf("mangleio: negated premise %v: %w", p.Atom, err)
			}
			r.NegTail = append(r.NegTail, rule.Atom{Pred: l.predSym(p.Atom.Predicate), Args: args})
		case ast.Atom:
			if op, ok := builtinComparisons[p.Predicate.Symbol]; ok && len(p.Args) == 2 {
				lhs, err := l.lowerBaseTerm(p.Args[0])
				if err != nil {
					return nil, fmt.Errorf("mangleio: builtin premise %v: %w", p, err)
				}
				rhs, err := l.lowerBaseTerm(p.Args[1])
				if err != nil {
					return nil, fmt.Errorf("mangleio: builtin premise %v: %w", p, err)
				}
				r.Interp = append(r.Interp, l.terms.App(term.FuncSym{Name: op, Arity: 2}, []term.Term{lhs, rhs}))
				continue
			}
			args, err := l.lowerAtomArgs(p)
			if err != nil {
				return nil, fmt.Errorf("mangleio: premise %v: %w", p, err)
			}
			r.PosTail = append(r.PosTail, rule.Atom{Pred: l.predSym(p.Predicate), Args: args})
		default:
			return nil, fmt.Errorf("mangleio: unsupported premise type %T (%v)", premise, premise)
		}
	}
	return r, nil
}
