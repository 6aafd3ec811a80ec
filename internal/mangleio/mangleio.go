// Package mangleio adapts github.com/google/mangle's parser and analyzer
// into this repo's own rule.RuleSet/term model. It owns the boundary:
// Mangle-syntax source goes through parse.Unit and
// analysis.AnalyzeOneUnit, and the resulting []ast.Clause is lowered into
// hornflow's own Rule/RuleSet types so the dataflow passes never import
// google/mangle's ast package directly.
package mangleio

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/parse"
	"go.uber.org/multierr"

	"hornflow/internal/rule"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
)

// Program is a parsed-and-lowered Mangle source: a RuleSet (not yet
// sealed, see Parse) plus the symbol and term tables it was built with,
// so a caller can keep minting symbols/terms consistent with the source
// (transformations take these three together).
type Program struct {
	Rules   *rule.RuleSet
	Symbols *symbol.Manager
	Terms   *term.Factory
}

// LoadFile reads and parses the Mangle source file at path and lowers it
// into a Program.
func LoadFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Parse(string(data))
}

// Parse parses src as a Mangle source unit and lowers it into a Program.
// Output predicates are not known from source syntax alone, so the
// returned RuleSet is left unsealed: callers mark outputs via
// Program.Rules.AddOutput and then Close it before handing it to a
// transform. ParseWithOutputs does both in one call.
func Parse(src string) (*Program, error) {
	unit, err := parse.Unit(bytes.NewReader([]byte(src)))
	if err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, make(map[ast.PredicateSym]ast.Decl))
	if err != nil {
		return nil, fmt.Errorf("analyze rules: %w", err)
	}

	syms := symbol.NewManager()
	terms := term.NewFactory()
	l := &lowerer{syms: syms, terms: terms, decls: info.Decls}

	rs := rule.NewRuleSet()
	for _, atom := range info.InitialFacts {
		rs.Add(l.lowerFact(atom))
	}
	// Lowering errors are collected across the whole unit so a caller sees
	// every offending clause at once, not just the first.
	var lowerErr error
	for _, cl := range info.Rules {
		r, err := l.lowerClause(cl)
		if err != nil {
			lowerErr = multierr.Append(lowerErr, err)
			continue
		}
		rs.Add(r)
	}
	if lowerErr != nil {
		return nil, lowerErr
	}
	return &Program{Rules: rs, Symbols: syms, Terms: terms}, nil
}

// ParseWithOutputs parses src and marks every predicate named in outputs
// as an output predicate before sealing the rule set, matching the CLI's
// "-outputs name,name,..." flag.
func ParseWithOutputs(src string, outputs []string) (*Program, error) {
	p, err := Parse(src)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(outputs))
	for _, o := range outputs {
		want[o] = true
	}
	for _, sym := range p.Rules.Predicates() {
		if want[sym.Name] {
			p.Rules.AddOutput(sym)
		}
	}
	p.Rules.Close()
	return p, nil
}

// sortedPredicates returns every predicate in rs in a stable, name-then-
// arity order, used by both dump formats so output is deterministic.
func sortedPredicates(rs *rule.RuleSet) []*symbol.Sym {
	preds := rs.Predicates()
	sort.Slice(preds, func(i, j int) bool {
		if preds[i].Name != preds[j].Name {
			return preds[i].Name < preds[j].Name
		}
		return preds[i].Arity < preds[j].Arity
	})
	return preds
}
