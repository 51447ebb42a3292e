package chardb

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
)

// ParseSourceFile parses a table source file, dispatching on extension.
// JSON and TOML sources carry the same shape:
//
//	{
//	  "key": "general-category",
//	  "type": "symbol",
//	  "default": "Cn",
//	  "ranges": [
//	    {"from": "U+0041", "to": "U+005A", "value": "Lu"},
//	    {"char": "U+00DF", "value": "Ll"}
//	  ]
//	}
func ParseSourceFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading table source: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSON(data)
	case ".toml":
		return parseTOML(data)
	default:
		return nil, fmt.Errorf("%w: unsupported source %s", ErrBadSource, path)
	}
}

func parseJSON(data []byte) (*Source, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrBadSource)
	}
	doc := gjson.ParseBytes(data)

	typName := doc.Get("type").String()
	typ, ok := typeByName(typName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrBadSource, typName)
	}
	src := &Source{
		Key:     doc.Get("key").String(),
		Type:    typ,
		Default: doc.Get("default").String(),
	}
	if src.Key == "" {
		return nil, fmt.Errorf("%w: missing key", ErrBadSource)
	}

	var rerr error
	doc.Get("ranges").ForEach(func(_, r gjson.Result) bool {
		span, err := spanFromFields(
			r.Get("from").String(), r.Get("to").String(),
			r.Get("char").String(), rawValue(r.Get("value")))
		if err != nil {
			rerr = err
			return false
		}
		src.Ranges = append(src.Ranges, span)
		return true
	})
	if rerr != nil {
		return nil, rerr
	}
	return src, nil
}

// rawValue keeps JSON numbers in their literal form so integer tables do
// not round-trip through float formatting.
func rawValue(v gjson.Result) string {
	if v.Type == gjson.Number {
		return v.Raw
	}
	return v.String()
}

type tomlSource struct {
	Key     string     `toml:"key"`
	Type    string     `toml:"type"`
	Default any        `toml:"default"`
	Ranges  []tomlSpan `toml:"ranges"`
}

type tomlSpan struct {
	From  string `toml:"from"`
	To    string `toml:"to"`
	Char  string `toml:"char"`
	Value any    `toml:"value"`
}

func parseTOML(data []byte) (*Source, error) {
	var ts tomlSource
	if err := toml.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSource, err)
	}
	typ, ok := typeByName(ts.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrBadSource, ts.Type)
	}
	if ts.Key == "" {
		return nil, fmt.Errorf("%w: missing key", ErrBadSource)
	}
	src := &Source{Key: ts.Key, Type: typ, Default: stringify(ts.Default)}
	for _, r := range ts.Ranges {
		span, err := spanFromFields(r.From, r.To, r.Char, stringify(r.Value))
		if err != nil {
			return nil, err
		}
		src.Ranges = append(src.Ranges, span)
	}
	return src, nil
}

// stringify renders a decoded TOML scalar in the raw form Source carries.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// spanFromFields builds a Span from the from/to pair or the single-char
// shorthand.
func spanFromFields(from, to, char, value string) (Span, error) {
	if char != "" {
		c, err := parseCodePoint(char)
		if err != nil {
			return Span{}, fmt.Errorf("%w: %v", ErrBadSource, err)
		}
		return Span{Lo: c, Hi: c, Value: value}, nil
	}
	lo, err := parseCodePoint(from)
	if err != nil {
		return Span{}, fmt.Errorf("%w: %v", ErrBadSource, err)
	}
	hi := lo
	if to != "" {
		hi, err = parseCodePoint(to)
		if err != nil {
			return Span{}, fmt.Errorf("%w: %v", ErrBadSource, err)
		}
	}
	if hi < lo {
		return Span{}, fmt.Errorf("%w: inverted range %#x..%#x", ErrBadSource, lo, hi)
	}
	return Span{Lo: lo, Hi: hi, Value: value}, nil
}
