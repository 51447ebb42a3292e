// Package charprop maps per-character property keys to sparse code-point
// tables.
//
// A Registry owns the set of defined property keys. Each key is backed by a
// chartab.Table that is either created empty at definition time or resolved
// lazily from an external database the first time the property is read or
// written. The database is consumed through two narrow contracts, Resolver
// and Loader, so the registry never depends on a concrete storage format.
package charprop

import (
	"errors"
	"fmt"

	"github.com/textmesh/mtext/chartab"
	"github.com/textmesh/mtext/symbol"
)

// Errors returned by registry operations.
var (
	// ErrDatabase indicates the external database failed to resolve or load
	// a property table.
	ErrDatabase = errors.New("charprop: database error")

	// ErrUnknownKey indicates a property key that was never defined.
	ErrUnknownKey = errors.New("charprop: unknown property key")

	// ErrRedefined indicates a key defined twice with a different type.
	ErrRedefined = errors.New("charprop: property redefined with different type")
)

// Type tags the value type stored in a property table.
type Type int

const (
	TypeSymbol Type = iota
	TypeString
	TypeText
	TypeInteger
	TypePlist
)

// String returns the tag's name as used in database lookups.
func (t Type) String() string {
	switch t {
	case TypeSymbol:
		return "symbol"
	case TypeString:
		return "string"
	case TypeText:
		return "mtext"
	case TypeInteger:
		return "integer"
	case TypePlist:
		return "plist"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// UnsetInt is the default value of integer-typed tables; non-integer tables
// default to nil.
const UnsetInt = -1

// TableTag is the first database tag for character-property tables.
const TableTag = "char-table"

// Handle is an opaque database reference produced by a Resolver and consumed
// by the matching Loader.
type Handle any

// Resolver locates a database entry by its four tags. A false return means
// the entry does not exist, which is not an error.
type Resolver func(tag1, tag2, tag3, tag4 string) (Handle, bool)

// Loader materializes a resolved handle into a table. It is invoked at most
// once per property key.
type Loader func(Handle) (*chartab.Table, error)

// record is the per-key state.
type record struct {
	key    *symbol.Symbol
	typ    Type
	table  *chartab.Table
	handle Handle // pending database handle, nil once resolved
	loadErr error // sticky load failure
}

// Registry maps property keys to their tables.
type Registry struct {
	symbols  *symbol.Table
	records  map[*symbol.Symbol]*record
	resolver Resolver
	loader   Loader
}

// Option configures a Registry.
type Option func(*Registry)

// WithDatabase supplies the resolver/loader pair used to fault in property
// tables on first access.
func WithDatabase(r Resolver, l Loader) Option {
	return func(reg *Registry) {
		reg.resolver = r
		reg.loader = l
	}
}

// WithSymbols shares an existing symbol table instead of creating one.
func WithSymbols(t *symbol.Table) Option {
	return func(reg *Registry) {
		reg.symbols = t
	}
}

// Built-in property key names, defined on every new registry.
const (
	PropName           = "name"
	PropCategory       = "general-category"
	PropCombiningClass = "canonical-combining-class"
	PropBidiCategory   = "bidirectional-category"
	PropSimpleFold     = "simple-case-folding"
	PropFullFold       = "complicated-case-folding"
	PropScript         = "script"
)

// NewRegistry creates a registry with the built-in keys defined.
func NewRegistry(opts ...Option) *Registry {
	reg := &Registry{records: make(map[*symbol.Symbol]*record)}
	for _, opt := range opts {
		opt(reg)
	}
	if reg.symbols == nil {
		reg.symbols = symbol.NewTable()
	}

	builtins := []struct {
		name string
		typ  Type
	}{
		{PropName, TypeString},
		{PropCategory, TypeSymbol},
		{PropCombiningClass, TypeInteger},
		{PropBidiCategory, TypeSymbol},
		{PropSimpleFold, TypeInteger},
		{PropFullFold, TypeText},
		{PropScript, TypeSymbol},
	}
	for _, b := range builtins {
		// Built-in names cannot collide in a fresh registry.
		if _, err := reg.Define(b.name, b.typ); err != nil {
			panic(err)
		}
	}
	return reg
}

// Symbols returns the registry's symbol table.
func (reg *Registry) Symbols() *symbol.Table {
	return reg.symbols
}

// Define interns name as a property key of the given type. If the database
// has an entry tagged (char-table, type, name) the table is left unresolved
// until first use; otherwise an empty table is created whose default is
// UnsetInt for integer-typed properties and nil otherwise.
//
// Defining an existing key with the same type returns the existing key;
// a different type is an error.
func (reg *Registry) Define(name string, typ Type) (*symbol.Symbol, error) {
	key := reg.symbols.Intern(name)
	if rec, ok := reg.records[key]; ok {
		if rec.typ != typ {
			return nil, fmt.Errorf("%w: %s is %s, requested %s", ErrRedefined, name, rec.typ, typ)
		}
		return key, nil
	}

	rec := &record{key: key, typ: typ}
	if reg.resolver != nil {
		if h, ok := reg.resolver(TableTag, typ.String(), name, ""); ok {
			rec.handle = h
		}
	}
	if rec.handle == nil {
		rec.table = chartab.New(defaultFor(typ))
	}
	reg.records[key] = rec
	return key, nil
}

func defaultFor(typ Type) any {
	if typ == TypeInteger {
		return UnsetInt
	}
	return nil
}

// KeyType reports the value type a key was defined with.
func (reg *Registry) KeyType(key *symbol.Symbol) (Type, bool) {
	rec, ok := reg.records[key]
	if !ok {
		return 0, false
	}
	return rec.typ, true
}

// resolve materializes the record's table, loading from the database at most
// once. A load failure is sticky: every later access reports the same error.
func (reg *Registry) resolve(rec *record) error {
	if rec.table != nil {
		return nil
	}
	if rec.loadErr != nil {
		return rec.loadErr
	}
	if reg.loader == nil {
		rec.loadErr = fmt.Errorf("%w: no loader for %s", ErrDatabase, rec.key)
		return rec.loadErr
	}
	tbl, err := reg.loader(rec.handle)
	rec.handle = nil
	if err != nil {
		rec.loadErr = fmt.Errorf("%w: loading %s: %v", ErrDatabase, rec.key, err)
		return rec.loadErr
	}
	if tbl == nil {
		tbl = chartab.New(defaultFor(rec.typ))
	}
	rec.table = tbl
	return nil
}

// Get returns the property value of code point c under key. Unset positions
// report the table default (nil, or UnsetInt for integer-typed keys).
func (reg *Registry) Get(c rune, key *symbol.Symbol) (any, error) {
	rec, ok := reg.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := reg.resolve(rec); err != nil {
		return nil, err
	}
	return rec.table.Lookup(c), nil
}

// Put assigns the property value of code point c under key.
func (reg *Registry) Put(c rune, key *symbol.Symbol, value any) error {
	rec, ok := reg.records[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := reg.resolve(rec); err != nil {
		return err
	}
	return rec.table.Set(c, value)
}

// Table exposes the underlying table for bulk access, resolving it first if
// needed. Callers iterating large ranges (case conversion, folded search)
// use this instead of per-character Get calls.
func (reg *Registry) Table(key *symbol.Symbol) (*chartab.Table, error) {
	rec, ok := reg.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := reg.resolve(rec); err != nil {
		return nil, err
	}
	return rec.table, nil
}
