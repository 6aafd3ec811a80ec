// Package dataflow provides a generic, monotone, two-bucket worklist
// fixpoint engine over a rule set, parameterized by an abstract domain's
// fact type and per-run context. The worklist is a current/next todo-set
// pair with an index swap instead of a single round-robin queue, and a
// body-to-rules reverse index is built once so a changed predicate's
// dependents can be found without rescanning every rule.
//
// A domain plugs in through three pieces: the per-predicate Fact[C]
// values, and the BottomUp[C]/TopDown[C] seeding-and-propagation
// interfaces supplied alongside a NewFactFunc[C] bottom constructor.
package dataflow

import (
	"io"

	"hornflow/internal/rule"
	"hornflow/internal/symbol"
)

// Fact is one abstract-domain value attached to a predicate symbol. Join
// and Intersect mutate the receiver in place and report whether it changed,
// which is how the engine decides whether to re-enqueue dependents.
type Fact[C any] interface {
	Join(ctx *C, other Fact[C]) bool
	Intersect(ctx *C, other Fact[C]) bool
	Dump(w io.Writer, sym *symbol.Sym)
}

// NewFactFunc mints the bottom (empty) fact for a predicate symbol.
type NewFactFunc[C any] func(ctx *C, sym *symbol.Sym) Fact[C]

// Reader lets a BottomUp implementation read the current fact of any
// predicate while deriving a rule head's delta.
type Reader[C any] interface {
	Fact(sym *symbol.Sym) Fact[C]
}

// Setter lets a TopDown implementation push a derived fact onto some other
// predicate; the engine merges it via Join and re-enqueues the predicate
// only if that changed anything.
type Setter[C any] interface {
	Set(sym *symbol.Sym, f Fact[C])
}

// BottomUp supplies the bottom-up half of a domain: seeding base-rule heads
// and deriving a rule's head delta from its tail's current facts.
type BottomUp[C any] interface {
	// InitUp seeds r's head fact before the worklist starts draining.
	// Called once per rule; a domain with nothing to seed from r (e.g. a
	// rule whose derivation needs tail facts first) returns nil.
	InitUp(ctx *C, r *rule.Rule) Fact[C]
	// PropagateUp derives the delta fact r's head should be joined with,
	// given the rule and a Reader for the current fact of every tail atom.
	PropagateUp(ctx *C, r *rule.Rule, reader Reader[C]) Fact[C]
}

// TopDown supplies the top-down half of a domain: seeding output
// predicates and pushing a rule's head fact backward onto its tail.
type TopDown[C any] interface {
	// InitDown seeds the fact for every output predicate in rs, writing
	// through setter so the engine's worklist picks them up.
	InitDown(ctx *C, rs *rule.RuleSet, setter Setter[C])
	// PropagateDown pushes head's fact backward across r's body, writing
	// any changed tail-atom facts through setter.
	PropagateDown(ctx *C, r *rule.Rule, head Fact[C], setter Setter[C])
}

// Engine runs a single abstract domain's fixpoint over a rule set. Build
// one per domain per direction; coifilter and the exploder each build a
// bottom-up and a top-down engine and intersect them.
type Engine[C any] struct {
	ctx     *C
	rs      *rule.RuleSet
	newFact NewFactFunc[C]
	bu      BottomUp[C]
	td      TopDown[C]

	facts      map[*symbol.Sym]Fact[C]
	body2rules map[*symbol.Sym][]*rule.Rule

	todo    [2]map[*symbol.Sym]bool
	todoIdx int

	// Cancel, when non-nil, is consulted at the top of each worklist
	// round; returning true stops the run between waves, leaving the
	// fact store in a sound (under-converged) intermediate state.
	Cancel func() bool
}

// New builds an engine over rs. bu and/or td may be nil if the caller only
// ever runs one direction; calling the other direction's Run method on a
// nil implementation panics.
func New[C any](ctx *C, rs *rule.RuleSet, newFact NewFactFunc[C], bu BottomUp[C], td TopDown[C]) *Engine[C] {
	e := &Engine[C]{
		ctx:        ctx,
		rs:         rs,
		newFact:    newFact,
		bu:         bu,
		td:         td,
		facts:      make(map[*symbol.Sym]Fact[C]),
		body2rules: make(map[*symbol.Sym][]*rule.Rule),
	}
	e.todo[0] = make(map[*symbol.Sym]bool)
	e.todo[1] = make(map[*symbol.Sym]bool)
	for _, r := range rs.Rules() {
		for _, a := range r.PosTail {
			e.body2rules[a.Pred] = append(e.body2rules[a.Pred], r)
		}
	}
	for _, sym := range rs.Predicates() {
		e.facts[sym] = newFact(ctx, sym)
	}
	return e
}

// Fact returns the current fact for sym (the zero/bottom fact if sym was
// never touched by a run).
func (e *Engine[C]) Fact(sym *symbol.Sym) Fact[C] { return e.facts[sym] }

func (e *Engine[C]) current() map[*symbol.Sym]bool { return e.todo[e.todoIdx] }
func (e *Engine[C]) next() map[*symbol.Sym]bool    { return e.todo[1-e.todoIdx] }

func (e *Engine[C]) enqueue(sym *symbol.Sym) { e.next()[sym] = true }

func (e *Engine[C]) swap() {
	e.todo[e.todoIdx] = make(map[*symbol.Sym]bool)
	e.todoIdx = 1 - e.todoIdx
}

type engineReader[C any] struct{ e *Engine[C] }

func (r engineReader[C]) Fact(sym *symbol.Sym) Fact[C] { return r.e.facts[sym] }

type engineSetter[C any] struct{ e *Engine[C] }

func (s engineSetter[C]) Set(sym *symbol.Sym, f Fact[C]) {
	cur, ok := s.e.facts[sym]
	if !ok {
		cur = s.e.newFact(s.e.ctx, sym)
		s.e.facts[sym] = cur
	}
	if cur.Join(s.e.ctx, f) {
		s.e.enqueue(sym)
	}
}

// RunBottomUp seeds every rule's head fact via InitUp (a domain returns
// nil for rules it has nothing to seed from), then iterates level by
// level: each round processes every predicate enqueued by the previous
// round, recomputing the head fact of every rule whose positive tail
// mentions it and joining the delta in, re-enqueuing any head that
// actually changed. It terminates when a round enqueues nothing, which
// monotone Join guarantees happens in finitely many rounds for a domain
// with finite height.
func (e *Engine[C]) RunBottomUp() {
	if e.bu == nil {
		panic("dataflow: RunBottomUp called with no BottomUp implementation")
	}
	reader := engineReader[C]{e}
	for _, r := range e.rs.Rules() {
		delta := e.bu.InitUp(e.ctx, r)
		if delta == nil {
			continue
		}
		cur := e.facts[r.Head.Pred]
		if cur == nil {
			cur = e.newFact(e.ctx, r.Head.Pred)
			e.facts[r.Head.Pred] = cur
		}
		if cur.Join(e.ctx, delta) {
			e.enqueue(r.Head.Pred)
		}
	}
	e.swap()
	for len(e.current()) > 0 {
		if e.Cancel != nil && e.Cancel() {
			return
		}
		for sym := range e.current() {
			for _, r := range e.body2rules[sym] {
				delta := e.bu.PropagateUp(e.ctx, r, reader)
				if delta == nil {
					continue
				}
				cur := e.facts[r.Head.Pred]
				if cur == nil {
					cur = e.newFact(e.ctx, r.Head.Pred)
					e.facts[r.Head.Pred] = cur
				}
				if cur.Join(e.ctx, delta) {
					e.enqueue(r.Head.Pred)
				}
			}
		}
		e.swap()
	}
}

// RunTopDown seeds every output predicate's fact via TopDown.InitDown, then
// iterates level by level: each round processes every predicate enqueued
// by the previous round, pushing the fact of every rule headed by it
// backward across that rule's body.
func (e *Engine[C]) RunTopDown() {
	if e.td == nil {
		panic("dataflow: RunTopDown called with no TopDown implementation")
	}
	setter := engineSetter[C]{e}
	e.td.InitDown(e.ctx, e.rs, setter)
	e.swap()
	for len(e.current()) > 0 {
		if e.Cancel != nil && e.Cancel() {
			return
		}
		for sym := range e.current() {
			head := e.facts[sym]
			if head == nil {
				continue
			}
			for _, r := range e.rs.RulesFor(sym) {
				e.td.PropagateDown(e.ctx, r, head, setter)
			}
		}
		e.swap()
	}
}

// Join widens every predicate's fact to the least upper bound of this
// engine's and other's current fact, mutating this engine in place.
// Predicates only present in other are copied in by joining onto a fresh
// bottom fact. Join is idempotent: joining the same engine twice leaves
// the fact store unchanged after the first call.
func (e *Engine[C]) Join(other *Engine[C]) {
	for sym, f := range other.facts {
		cur, ok := e.facts[sym]
		if !ok {
			cur = e.newFact(e.ctx, sym)
			e.facts[sym] = cur
		}
		cur.Join(e.ctx, f)
	}
}

// Intersect narrows every predicate's fact to the meet of this engine's and
// other's current fact, mutating this engine in place; predicates absent
// from other are removed entirely. Used by the cone-of-influence filter to
// combine a bottom-up and a top-down run into the set of positions both
// consider live.
func (e *Engine[C]) Intersect(other *Engine[C]) {
	for sym := range e.facts {
		if _, ok := other.facts[sym]; !ok {
			delete(e.facts, sym)
		}
	}
	for sym, f := range other.facts {
		cur, ok := e.facts[sym]
		if !ok {
			continue
		}
		cur.Intersect(e.ctx, f)
	}
}

// Dump writes every predicate's current fact to w, one predicate per
// section, in the given order. Callers that need a stable dump sort
// rs.Predicates() before passing it in; duplicate symbols in order are
// emitted once.
func (e *Engine[C]) Dump(w io.Writer, order []*symbol.Sym) {
	seen := make(map[*symbol.Sym]bool, len(order))
	for _, sym := range order {
		if seen[sym] {
			continue
		}
		seen[sym] = true
		f, ok := e.facts[sym]
		if !ok {
			continue
		}
		f.Dump(w, sym)
	}
}
