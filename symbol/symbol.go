// Package symbol provides the interning substrate used throughout the
// library: named symbols with identity semantics, arbitrary properties
// attached to a symbol, and ordered key/value lists (plists) used for
// configuration-style arguments and serialized property payloads.
package symbol

// Symbol is an interned name. Two symbols interned from the same Table with
// the same name are pointer-identical, so symbols compare with ==.
type Symbol struct {
	name  string
	props *Plist
}

// Name returns the name the symbol was interned under.
func (s *Symbol) Name() string {
	return s.name
}

// String implements fmt.Stringer.
func (s *Symbol) String() string {
	return s.name
}

// Get returns the property stored on the symbol under key.
func (s *Symbol) Get(key *Symbol) (any, bool) {
	if s.props == nil {
		return nil, false
	}
	return s.props.Get(key)
}

// Put stores a property on the symbol, replacing any existing value for key.
func (s *Symbol) Put(key *Symbol, value any) {
	if s.props == nil {
		s.props = NewPlist()
	}
	s.props.Put(key, value)
}

// Table interns symbols by name.
type Table struct {
	byName map[string]*Symbol
}

// NewTable creates an empty symbol table.
func NewTable() *Table {
	return &Table{byName: make(map[string]*Symbol)}
}

// Intern returns the symbol for name, creating it on first use.
func (t *Table) Intern(name string) *Symbol {
	if s, ok := t.byName[name]; ok {
		return s
	}
	s := &Symbol{name: name}
	t.byName[name] = s
	return s
}

// Lookup returns the symbol for name if it has been interned.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Len returns the number of interned symbols.
func (t *Table) Len() int {
	return len(t.byName)
}
