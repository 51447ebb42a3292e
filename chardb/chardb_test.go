package chardb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/textmesh/mtext/charprop"
	"github.com/textmesh/mtext/symbol"
)

const categoryJSON = `{
	"key": "general-category",
	"type": "symbol",
	"default": "Cn",
	"ranges": [
		{"from": "U+0041", "to": "U+005A", "value": "Lu"},
		{"from": "U+0061", "to": "U+007A", "value": "Ll"},
		{"char": "U+00DF", "value": "Ll"}
	]
}`

const widthTOML = `key = "east-asian-width"
type = "integer"
default = 1

[[ranges]]
from = "U+1100"
to = "U+115F"
value = 2

[[ranges]]
char = "U+3000"
value = 2
`

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseCodePoint(t *testing.T) {
	tests := []struct {
		in   string
		want rune
		err  bool
	}{
		{in: "U+0041", want: 'A'},
		{in: "u+3b1", want: 'α'},
		{in: "0x10FFFF", want: 0x10FFFF},
		{in: "97", want: 'a'},
		{in: "ß", want: 'ß'},
		{in: "U+ZZZZ", err: true},
		{in: "abc", err: true},
	}
	for _, tt := range tests {
		got, err := parseCodePoint(tt.in)
		if tt.err {
			if err == nil {
				t.Errorf("parseCodePoint(%q): want error, got %#x", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCodePoint(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCodePoint(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestParseSourceFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "general-category.json", categoryJSON)

	src, err := ParseSourceFile(path)
	if err != nil {
		t.Fatalf("ParseSourceFile: %v", err)
	}
	if src.Key != "general-category" || src.Type != charprop.TypeSymbol {
		t.Fatalf("parsed key=%q type=%s", src.Key, src.Type)
	}
	if len(src.Ranges) != 3 {
		t.Fatalf("got %d ranges, want 3", len(src.Ranges))
	}
	if src.Ranges[2].Lo != 'ß' || src.Ranges[2].Hi != 'ß' {
		t.Errorf("char shorthand parsed as %#x..%#x", src.Ranges[2].Lo, src.Ranges[2].Hi)
	}

	syms := symbol.NewTable()
	tbl, err := src.Table(syms)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if got := tbl.Lookup('Q'); got != syms.Intern("Lu") {
		t.Errorf("Lookup('Q') = %v, want Lu", got)
	}
	if got := tbl.Lookup('ß'); got != syms.Intern("Ll") {
		t.Errorf("Lookup('ß') = %v, want Ll", got)
	}
	if got := tbl.Lookup(0x2FFF); got != syms.Intern("Cn") {
		t.Errorf("default Lookup = %v, want Cn", got)
	}
}

func TestParseSourceFileTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "east-asian-width.toml", widthTOML)

	src, err := ParseSourceFile(path)
	if err != nil {
		t.Fatalf("ParseSourceFile: %v", err)
	}
	if src.Type != charprop.TypeInteger || src.Default != "1" {
		t.Fatalf("parsed type=%s default=%q", src.Type, src.Default)
	}

	tbl, err := src.Table(symbol.NewTable())
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if got := tbl.Lookup(0x1100); got != 2 {
		t.Errorf("Lookup(0x1100) = %v, want 2", got)
	}
	if got := tbl.Lookup('x'); got != 1 {
		t.Errorf("default Lookup = %v, want 1", got)
	}
}

func TestParseSourceFileErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name, file, body string
	}{
		{"bad-json", "t.json", `{"key": "t", "type": "symbol"`},
		{"unknown-type", "u.json", `{"key": "u", "type": "widget"}`},
		{"missing-key", "m.toml", "type = \"string\"\n"},
		{"inverted-range", "i.json", `{"key": "i", "type": "integer",
			"ranges": [{"from": "U+0100", "to": "U+0041", "value": 1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSource(t, dir, tt.file, tt.body)
			if _, err := ParseSourceFile(path); !errors.Is(err, ErrBadSource) {
				t.Errorf("got %v, want ErrBadSource", err)
			}
		})
	}
}

func TestResolverAndLoader(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "general-category.json", categoryJSON)

	syms := symbol.NewTable()
	db, err := Open(dir, WithSymbols(syms))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	resolve := db.Resolver()
	h, ok := resolve(charprop.TableTag, "symbol", "general-category", "")
	if !ok {
		t.Fatal("resolver did not find general-category")
	}
	if _, ok := resolve(charprop.TableTag, "symbol", "no-such-table", ""); ok {
		t.Error("resolver found a table that does not exist")
	}
	if _, ok := resolve("font", "symbol", "general-category", ""); ok {
		t.Error("resolver served a non-table tag")
	}

	tbl, err := db.Loader()(h)
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}
	if got := tbl.Lookup('A'); got != syms.Intern("Lu") {
		t.Errorf("Lookup('A') = %v, want Lu", got)
	}
}

func TestLoaderTypeClash(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "general-category.json", categoryJSON)

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	// The resolver rejects mismatched types before a handle is made, so a
	// clash can only come from a handle built against a stale file.
	h := handle{
		key:  "general-category",
		typ:  charprop.TypeInteger,
		path: filepath.Join(dir, "general-category.json"),
	}
	if _, err := db.Loader()(h); !errors.Is(err, ErrTypeClash) {
		t.Errorf("got %v, want ErrTypeClash", err)
	}
}

func TestCompileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeSource(t, dir, "general-category.json", categoryJSON)
	src, err := ParseSourceFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}

	dbDir := t.TempDir()
	compiled := filepath.Join(dbDir, CompiledName)
	if err := Compile(compiled, []*Source{src}); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	back, err := ReadCompiled(compiled, "general-category")
	if err != nil {
		t.Fatalf("ReadCompiled: %v", err)
	}
	if back.Type != src.Type || back.Default != src.Default {
		t.Errorf("round trip changed header: type=%s default=%q", back.Type, back.Default)
	}
	if len(back.Ranges) != len(src.Ranges) {
		t.Fatalf("round trip has %d ranges, want %d", len(back.Ranges), len(src.Ranges))
	}
	for i, span := range back.Ranges {
		if span != src.Ranges[i] {
			t.Errorf("range %d = %+v, want %+v", i, span, src.Ranges[i])
		}
	}

	// The source directory holds only the compiled database; the resolver
	// must fall through to it.
	syms := symbol.NewTable()
	db, err := Open(dbDir, WithSymbols(syms))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	h, ok := db.Resolver()(charprop.TableTag, "symbol", "general-category", "")
	if !ok {
		t.Fatal("resolver did not find the compiled table")
	}
	tbl, err := db.Loader()(h)
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}
	if got := tbl.Lookup('z'); got != syms.Intern("Ll") {
		t.Errorf("Lookup('z') = %v, want Ll", got)
	}
}

func TestExportJSON(t *testing.T) {
	src := &Source{
		Key:     "simple-fold",
		Type:    charprop.TypeInteger,
		Default: "-1",
		Ranges: []Span{
			{Lo: 'A', Hi: 'Z', Value: "32"},
			{Lo: 0x130, Hi: 0x130, Value: "105"},
		},
	}
	out, err := ExportJSON(src)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	doc := gjson.ParseBytes(out)
	if doc.Get("key").String() != "simple-fold" || doc.Get("type").String() != "integer" {
		t.Fatalf("export header wrong: %s", out)
	}
	if doc.Get("ranges.0.from").String() != "U+0041" || doc.Get("ranges.0.to").String() != "U+005A" {
		t.Errorf("range 0 bounds wrong: %s", doc.Get("ranges.0").Raw)
	}
	if doc.Get("ranges.1.char").String() != "U+0130" {
		t.Errorf("single-char range not exported as char: %s", doc.Get("ranges.1").Raw)
	}

	// Exports must parse back as a valid source.
	dir := t.TempDir()
	path := writeSource(t, dir, "simple-fold.json", string(out))
	back, err := ParseSourceFile(path)
	if err != nil {
		t.Fatalf("re-parsing export: %v", err)
	}
	if len(back.Ranges) != 2 || back.Ranges[0] != src.Ranges[0] {
		t.Errorf("export round trip changed ranges: %+v", back.Ranges)
	}
}
