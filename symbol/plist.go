package symbol

// Plist is an ordered key/value list. Unlike a map, iteration order is the
// order entries were added, and the same key may appear more than once when
// entries are added with Push.
type Plist struct {
	entries []plistEntry
}

type plistEntry struct {
	key   *Symbol
	value any
}

// NewPlist creates an empty plist.
func NewPlist() *Plist {
	return &Plist{}
}

// Len returns the number of entries.
func (p *Plist) Len() int {
	return len(p.entries)
}

// Get returns the value of the first entry with the given key.
func (p *Plist) Get(key *Symbol) (any, bool) {
	for _, e := range p.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// Put replaces the value of the first entry with the given key, or appends a
// new entry if the key is not present.
func (p *Plist) Put(key *Symbol, value any) {
	for i, e := range p.entries {
		if e.key == key {
			p.entries[i].value = value
			return
		}
	}
	p.entries = append(p.entries, plistEntry{key: key, value: value})
}

// Push prepends an entry, shadowing any existing entry with the same key.
func (p *Plist) Push(key *Symbol, value any) {
	p.entries = append([]plistEntry{{key: key, value: value}}, p.entries...)
}

// Pop removes the first entry with the given key and returns its value.
func (p *Plist) Pop(key *Symbol) (any, bool) {
	for i, e := range p.entries {
		if e.key == key {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return e.value, true
		}
	}
	return nil, false
}

// Each calls fn for every entry in order. Iteration stops early if fn
// returns false.
func (p *Plist) Each(fn func(key *Symbol, value any) bool) {
	for _, e := range p.entries {
		if !fn(e.key, e.value) {
			return
		}
	}
}
