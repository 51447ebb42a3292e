// Package chardb supplies the external-database collaborator consumed by
// the character-property registry: a resolver that locates a table by its
// tags and a loader that materializes it into a sparse code-point table.
//
// A database is a directory holding table sources in JSON or TOML form,
// optionally alongside a compiled SQLite database (chartabs.db) produced by
// the mtextdb tool. File sources win over the compiled database, which
// makes local overrides cheap during data work.
package chardb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/textmesh/mtext"
	"github.com/textmesh/mtext/charprop"
	"github.com/textmesh/mtext/chartab"
	"github.com/textmesh/mtext/symbol"
)

var log = commonlog.GetLogger("mtext.chardb")

// CompiledName is the file name of the compiled SQLite database inside a
// database directory.
const CompiledName = "chartabs.db"

// Errors returned by database operations.
var (
	ErrBadSource = errors.New("chardb: malformed table source")
	ErrTypeClash = errors.New("chardb: table type does not match request")
)

// DB is an open character database directory.
type DB struct {
	dir     string
	symbols *symbol.Table
	sqldb   *sql.DB
}

// Option configures an opened database.
type Option func(*DB)

// WithSymbols shares the symbol table used to intern symbol-typed values.
func WithSymbols(t *symbol.Table) Option {
	return func(d *DB) { d.symbols = t }
}

// Open opens a database directory. The compiled database is attached when
// present; its absence is not an error.
func Open(dir string, opts ...Option) (*DB, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening database dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening database dir: %s is not a directory", dir)
	}

	d := &DB{dir: dir}
	for _, opt := range opts {
		opt(d)
	}
	if d.symbols == nil {
		d.symbols = symbol.NewTable()
	}

	compiled := filepath.Join(dir, CompiledName)
	if _, err := os.Stat(compiled); err == nil {
		sqldb, err := sql.Open("sqlite", compiled)
		if err != nil {
			return nil, fmt.Errorf("opening compiled database: %w", err)
		}
		d.sqldb = sqldb
		log.Infof("attached compiled database %s", compiled)
	}
	return d, nil
}

// Close releases the compiled database, if one is attached.
func (d *DB) Close() error {
	if d.sqldb != nil {
		return d.sqldb.Close()
	}
	return nil
}

// handle is the opaque value passed from Resolver to Loader.
type handle struct {
	key  string
	typ  charprop.Type
	path string // file source; empty when loading from the compiled db
}

// Resolver returns the tag-lookup function for a registry. Only the
// char-table tag kind is served; unknown tags report not-found, never an
// error.
func (d *DB) Resolver() charprop.Resolver {
	return func(tag1, tag2, tag3, tag4 string) (charprop.Handle, bool) {
		if tag1 != charprop.TableTag {
			return nil, false
		}
		typ, ok := typeByName(tag2)
		if !ok {
			return nil, false
		}
		for _, ext := range []string{".json", ".toml"} {
			path := filepath.Join(d.dir, tag3+ext)
			if _, err := os.Stat(path); err == nil {
				log.Debugf("resolved %s to %s", tag3, path)
				return handle{key: tag3, typ: typ, path: path}, true
			}
		}
		if d.sqldb != nil {
			var stored string
			err := d.sqldb.QueryRow(
				"SELECT type FROM char_tables WHERE key = ?", tag3).Scan(&stored)
			if err == nil && stored == tag2 {
				log.Debugf("resolved %s in compiled database", tag3)
				return handle{key: tag3, typ: typ}, true
			}
		}
		return nil, false
	}
}

// Loader returns the table-materialization function for a registry.
func (d *DB) Loader() charprop.Loader {
	return func(h charprop.Handle) (*chartab.Table, error) {
		hd, ok := h.(handle)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected handle %T", ErrBadSource, h)
		}
		var (
			src *Source
			err error
		)
		if hd.path != "" {
			src, err = ParseSourceFile(hd.path)
		} else {
			src, err = d.readCompiled(hd.key)
		}
		if err != nil {
			log.Errorf("loading %s: %s", hd.key, err.Error())
			return nil, err
		}
		if src.Type != hd.typ {
			return nil, fmt.Errorf("%w: %s is %s, requested %s", ErrTypeClash, hd.key, src.Type, hd.typ)
		}
		tbl, err := src.Table(d.symbols)
		if err != nil {
			return nil, err
		}
		log.Infof("loaded table %s: %d ranges", hd.key, len(src.Ranges))
		return tbl, nil
	}
}

// readCompiled loads a table source from the compiled database.
func (d *DB) readCompiled(key string) (*Source, error) {
	var (
		typName string
		def     sql.NullString
	)
	err := d.sqldb.QueryRow(
		"SELECT type, def FROM char_tables WHERE key = ?", key).Scan(&typName, &def)
	if err != nil {
		return nil, fmt.Errorf("reading table row: %w", err)
	}
	typ, ok := typeByName(typName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrBadSource, typName)
	}
	src := &Source{Key: key, Type: typ}
	if def.Valid {
		src.Default = def.String
	}

	rows, err := d.sqldb.Query(
		"SELECT lo, hi, value FROM char_ranges WHERE key = ? ORDER BY lo", key)
	if err != nil {
		return nil, fmt.Errorf("reading ranges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			lo, hi int64
			value  string
		)
		if err := rows.Scan(&lo, &hi, &value); err != nil {
			return nil, err
		}
		src.Ranges = append(src.Ranges, Span{Lo: rune(lo), Hi: rune(hi), Value: value})
	}
	return src, rows.Err()
}

// Source is a parsed table source: a key, a value type, an optional default
// and the value runs. Values are kept in their raw string form until the
// table is built, at which point they are converted per the table type.
type Source struct {
	Key     string
	Type    charprop.Type
	Default string
	Ranges  []Span
}

// Span is one value run of a table source, bounds inclusive.
type Span struct {
	Lo, Hi rune
	Value  string
}

// Table builds a sparse table from the source, interning symbol-typed
// values in symbols.
func (s *Source) Table(symbols *symbol.Table) (*chartab.Table, error) {
	def := any(nil)
	if s.Type == charprop.TypeInteger {
		def = charprop.UnsetInt
	}
	if s.Default != "" {
		v, err := s.convert(s.Default, symbols)
		if err != nil {
			return nil, fmt.Errorf("%w: default: %v", ErrBadSource, err)
		}
		def = v
	}
	tbl := chartab.New(def)
	for _, span := range s.Ranges {
		v, err := s.convert(span.Value, symbols)
		if err != nil {
			return nil, fmt.Errorf("%w: %#x..%#x: %v", ErrBadSource, span.Lo, span.Hi, err)
		}
		if err := tbl.SetRange(span.Lo, span.Hi, v); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// convert turns a raw value into the table's value type.
func (s *Source) convert(raw string, symbols *symbol.Table) (any, error) {
	switch s.Type {
	case charprop.TypeInteger:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q", raw)
		}
		return n, nil
	case charprop.TypeSymbol:
		return symbols.Intern(raw), nil
	case charprop.TypeString:
		return raw, nil
	case charprop.TypeText:
		mt, err := mtext.FromString(raw)
		if err != nil {
			return nil, err
		}
		return mt, nil
	default:
		return nil, fmt.Errorf("type %s not loadable from sources", s.Type)
	}
}

func typeByName(name string) (charprop.Type, bool) {
	for _, t := range []charprop.Type{
		charprop.TypeSymbol, charprop.TypeString, charprop.TypeText,
		charprop.TypeInteger, charprop.TypePlist,
	} {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

// parseCodePoint accepts "U+XXXX", hex with an 0x prefix, a plain decimal
// number, or a single literal character.
func parseCodePoint(s string) (rune, error) {
	switch {
	case strings.HasPrefix(s, "U+") || strings.HasPrefix(s, "u+"):
		n, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("bad code point %q", s)
		}
		return rune(n), nil
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		n, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("bad code point %q", s)
		}
		return rune(n), nil
	default:
		if n, err := strconv.ParseUint(s, 10, 32); err == nil {
			return rune(n), nil
		}
		if utf8.RuneCountInString(s) == 1 {
			r, _ := utf8.DecodeRuneInString(s)
			return r, nil
		}
		return 0, fmt.Errorf("bad code point %q", s)
	}
}
