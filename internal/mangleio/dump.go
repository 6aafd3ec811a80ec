package mangleio

import (
	"bytes"
	"fmt"
	"io"

	"hornflow/internal/model"
	"hornflow/internal/rule"
	"hornflow/internal/term"
)

// WriteRuleSet writes rs back out as Mangle-syntax source: predicates in
// sorted order, each followed by its defining clauses. This is the
// "-dump mangle" CLI output format; it is a textual convenience, not a
// round-trippable re-parse target for every corner of Mangle's grammar.
func WriteRuleSet(w io.Writer, rs *rule.RuleSet) {
	for _, sym := range sortedPredicates(rs) {
		for _, r := range rs.RulesFor(sym) {
			writeRule(w, r)
		}
	}
}

func writeRule(w io.Writer, r *rule.Rule) {
	writeAtom(w, r.Head)
	if len(r.PosTail)+len(r.NegTail)+len(r.Interp) == 0 {
		io.WriteString(w, ".\n")
		return
	}
	io.WriteString(w, " :-\n")
	first := true
	sep := func() {
		if !first {
			io.WriteString(w, ",\n")
		}
		first = false
	}
	for _, a := range r.PosTail {
		sep()
		io.WriteString(w, "  ")
		writeAtom(w, a)
	}
	for _, a := range r.NegTail {
		sep()
		io.WriteString(w, "  !")
		writeAtom(w, a)
	}
	for _, t := range r.Interp {
		sep()
		fmt.Fprintf(w, "  %s", t.String())
	}
	io.WriteString(w, ".\n")
}

func writeAtom(w io.Writer, a rule.Atom) {
	fmt.Fprintf(w, "%s(", a.Pred)
	for i, arg := range a.Args {
		if i > 0 {
			io.WriteString(w, ", ")
		}
		io.WriteString(w, arg.String())
	}
	io.WriteString(w, ")")
}

// WriteRuleSetText writes rs in a plain debug form, one rule per line
// with explicit tail-region labels, rather than WriteRuleSet's
// Mangle-syntax rendering: the "-dump text" CLI format, meant for a human
// skimming a transform's output rather than feeding it back into a
// parser.
func WriteRuleSetText(w io.Writer, rs *rule.RuleSet) {
	for _, sym := range sortedPredicates(rs) {
		rules := rs.RulesFor(sym)
		fmt.Fprintf(w, "%s/%d", sym, sym.Arity)
		if rs.IsOutput(sym) {
			io.WriteString(w, " [output]")
		}
		fmt.Fprintf(w, ": %d rule(s)\n", len(rules))
		for _, r := range rules {
			io.WriteString(w, "  ")
			writeAtom(w, r.Head)
			if len(r.PosTail) > 0 {
				fmt.Fprintf(w, " <- pos%v", atomStrings(r.PosTail))
			}
			if len(r.NegTail) > 0 {
				fmt.Fprintf(w, " neg%v", atomStrings(r.NegTail))
			}
			if len(r.Interp) > 0 {
				fmt.Fprintf(w, " interp%v", termStrings(r.Interp))
			}
			io.WriteString(w, "\n")
		}
	}
}

func atomStrings(atoms []rule.Atom) []string {
	out := make([]string, len(atoms))
	for i, a := range atoms {
		var buf bytes.Buffer
		writeAtom(&buf, a)
		out[i] = buf.String()
	}
	return out
}

func termStrings(ts []term.Term) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

// WriteModel writes a Model back out as a flat list of Mangle facts, one
// per function-interpretation entry, used once a transformed rule set's
// solution has been lifted back to the original vocabulary by a
// model.Converter.
func WriteModel(w io.Writer, m *model.Model) {
	for sym, val := range m.Consts {
		fmt.Fprintf(w, "%s(%s).\n", sym, val.String())
	}
	for sym, fi := range m.Funcs {
		for _, e := range fi.Entries {
			writeAtom(w, rule.Atom{Pred: sym, Args: e.Args})
			io.WriteString(w, ".\n")
		}
	}
}
