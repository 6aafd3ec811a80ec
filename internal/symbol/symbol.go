// Package symbol implements predicate symbols: name, arity, per-position
// sort, and a stable pointer identity, plus a Manager that owns every
// symbol (including the fresh ones minted by transformations) for the
// lifetime of a program.
package symbol

import (
	"fmt"

	"hornflow/internal/term"
)

// Sym is a predicate symbol. Two Syms are the same predicate iff they are
// the same pointer; Manager guarantees that every (name, arity, sorts)
// combination it is asked to intern maps to one Sym, and that every freshly
// minted symbol gets its own unique Sym regardless of name collisions.
type Sym struct {
	Name  string
	Arity int
	Sorts []term.Sort

	// DerivedFrom is non-nil when this symbol was minted by a
	// transformation rather than read from source; it names the symbol it
	// replaces or specializes. Debug output renders derived symbols as
	// "<name>!<tag>".
	DerivedFrom *Sym
	Tag         string
}

func (s *Sym) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.DerivedFrom != nil {
		return fmt.Sprintf("%s!%s", s.Name, s.Tag)
	}
	return s.Name
}

func (s *Sym) baseName() string {
	if s.DerivedFrom != nil {
		return s.DerivedFrom.baseName()
	}
	return s.Name
}

// Manager owns every Sym for the lifetime of an analysis/transform
// pipeline, interning source symbols by (name, arity) and disambiguating
// freshly minted ones.
type Manager struct {
	interned map[string]*Sym
	freshSeq map[string]int
}

// NewManager returns an empty symbol table.
func NewManager() *Manager {
	return &Manager{
		interned: make(map[string]*Sym),
		freshSeq: make(map[string]int),
	}
}

// Intern returns the canonical Sym for (name, sorts), creating it on first
// use. Subsequent calls with the same name and arity return the same
// pointer.
func (m *Manager) Intern(name string, sorts []term.Sort) *Sym {
	key := fmt.Sprintf("%s/%d", name, len(sorts))
	if s, ok := m.interned[key]; ok {
		return s
	}
	s := &Sym{Name: name, Arity: len(sorts), Sorts: append([]term.Sort(nil), sorts...)}
	m.interned[key] = s
	return s
}

// MkFresh mints a brand-new symbol derived from base, tagged with tag
// ("slice", "neg", "common", ...), with the given projected sorts. Every
// call returns a distinct Sym even if base/tag repeat; a counter
// disambiguates the debug name when the same base/tag pair is requested
// more than once.
func (m *Manager) MkFresh(base *Sym, tag string, sorts []term.Sort) *Sym {
	baseName := base.Name
	if base.DerivedFrom != nil {
		baseName = base.baseName()
	}
	key := baseName + "!" + tag
	n := m.freshSeq[key]
	m.freshSeq[key] = n + 1
	name := baseName
	if n > 0 {
		name = fmt.Sprintf("%s#%d", baseName, n)
	}
	return &Sym{
		Name:        name,
		Arity:       len(sorts),
		Sorts:       append([]term.Sort(nil), sorts...),
		DerivedFrom: base,
		Tag:         tag,
	}
}
