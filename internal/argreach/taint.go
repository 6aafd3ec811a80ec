package argreach

import (
	"hornflow/internal/rule"
	"hornflow/internal/term"
)

// taintTracer is a dense, array-backed union-find over a rule's variable
// indices plus one distinguished "reachable" root. It ties together every
// variable that co-occurs inside the same interpreted subterm (an equality
// or arithmetic constraint makes their values mutually dependent), then
// lets the top-down pass ask "does this variable's value depend on a
// position we already know is reachable?" in O(1) amortized per query.
type taintTracer struct {
	parent []int
	root   int // the sentinel "reachable" class
}

// newTaintTracer builds a tracer sized for variable indices 0..maxVar
// (inclusive) appearing anywhere in r, processing every interpreted term
// in r.Interp so co-occurring variables start out unified.
func newTaintTracer(r *rule.Rule, maxVar int) *taintTracer {
	t := &taintTracer{parent: make([]int, maxVar+2)}
	t.root = maxVar + 1
	for i := range t.parent {
		t.parent[i] = i
	}
	for _, it := range r.Interp {
		t.processTerm(it, -1)
	}
	return t
}

// processTerm unions every variable it finds with firstVar (the first
// variable seen in the current term), so that all variables appearing
// together in one interpreted subterm land in the same class.
func (t *taintTracer) processTerm(tm term.Term, firstVar int) int {
	switch n := tm.(type) {
	case *term.Var:
		if firstVar == -1 {
			return n.Index
		}
		t.union(firstVar, n.Index)
		return firstVar
	case *term.App:
		for _, arg := range n.Args {
			firstVar = t.processTerm(arg, firstVar)
		}
		return firstVar
	default:
		return firstVar
	}
}

func (t *taintTracer) find(x int) int {
	for t.parent[x] != x {
		t.parent[x] = t.parent[t.parent[x]]
		x = t.parent[x]
	}
	return x
}

func (t *taintTracer) union(a, b int) {
	ra, rb := t.find(a), t.find(b)
	if ra != rb {
		t.parent[ra] = rb
	}
}

// setReachable ties variable v's equivalence class to the reachable
// sentinel.
func (t *taintTracer) setReachable(v int) {
	if v < 0 || v >= len(t.parent)-1 {
		return
	}
	t.union(v, t.root)
}

// isReachable reports whether v's class has been tied to the reachable
// sentinel, directly or through a chain of interpreted-term co-occurrence.
func (t *taintTracer) isReachable(v int) bool {
	if v < 0 || v >= len(t.parent)-1 {
		return false
	}
	return t.find(v) == t.find(t.root)
}
