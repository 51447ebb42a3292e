package mtext

import (
	"bytes"
	"unicode"

	"github.com/textmesh/mtext/charprop"
	"github.com/textmesh/mtext/chartab"
)

// Compare orders two texts character by character by code-point value.
// Byte comparison is used as a fast path only where it is provably
// equivalent: the ASCII and variable-width formats encode larger code
// points as larger byte sequences.
func (m *MText) Compare(other *MText) int {
	if m.format <= FormatUTF8 && other.format <= FormatUTF8 {
		return bytes.Compare(m.buf, other.buf)
	}
	bi, bj := 0, 0
	for bi < len(m.buf) && bj < len(other.buf) {
		ci, ni := decodeChar(m.format, m.buf[bi:])
		cj, nj := decodeChar(other.format, other.buf[bj:])
		if ci != cj {
			if ci < cj {
				return -1
			}
			return 1
		}
		bi += ni
		bj += nj
	}
	switch {
	case bi < len(m.buf):
		return 1
	case bj < len(other.buf):
		return -1
	default:
		return 0
	}
}

// Equal reports whether both texts hold the same character sequence.
func (m *MText) Equal(other *MText) bool {
	return m.nchars == other.nchars && m.Compare(other) == 0
}

// IndexChar returns the position of the first occurrence of c at or after
// from, or -1.
func (m *MText) IndexChar(c rune, from int) int {
	if from < 0 {
		from = 0
	}
	for pos := from; pos < m.nchars; pos++ {
		if m.charAt(pos) == c {
			return pos
		}
	}
	return -1
}

// LastIndexChar returns the position of the last occurrence of c strictly
// before limit, or -1.
func (m *MText) LastIndexChar(c rune, limit int) int {
	if limit > m.nchars {
		limit = m.nchars
	}
	for pos := limit - 1; pos >= 0; pos-- {
		if m.charAt(pos) == c {
			return pos
		}
	}
	return -1
}

// Index returns the character position of the first occurrence of sub at or
// after from, or -1. The empty text matches at from.
func (m *MText) Index(sub *MText, from int) int {
	if from < 0 {
		from = 0
	}
	if sub.nchars == 0 {
		if from > m.nchars {
			return -1
		}
		return from
	}
	if from+sub.nchars > m.nchars {
		return -1
	}

	// Same narrow format: search encoded bytes directly.
	if m.format <= FormatUTF8 && sub.format <= FormatUTF8 {
		start := m.byteIndex(from)
		off := bytes.Index(m.buf[start:], sub.buf)
		for off >= 0 {
			pos, err := m.ByteToChar(start + off)
			if err == nil {
				return pos
			}
			// Mid-character hit; resume after it.
			next := bytes.Index(m.buf[start+off+1:], sub.buf)
			if next < 0 {
				return -1
			}
			off += 1 + next
		}
		return -1
	}

	first := sub.charAt(0)
	for pos := from; pos+sub.nchars <= m.nchars; pos++ {
		if m.charAt(pos) != first {
			continue
		}
		match := true
		for i := 1; i < sub.nchars; i++ {
			if m.charAt(pos+i) != sub.charAt(i) {
				match = false
				break
			}
		}
		if match {
			return pos
		}
	}
	return -1
}

// LastIndex returns the character position of the last occurrence of sub
// starting strictly before limit, or -1.
func (m *MText) LastIndex(sub *MText, limit int) int {
	if limit > m.nchars-sub.nchars+1 {
		limit = m.nchars - sub.nchars + 1
	}
	for pos := limit - 1; pos >= 0; pos-- {
		match := true
		for i := 0; i < sub.nchars; i++ {
			if m.charAt(pos+i) != sub.charAt(i) {
				match = false
				break
			}
		}
		if match {
			return pos
		}
	}
	return -1
}

// Tokenize splits the text on any character in delims, dropping empty
// fields. Tokens are deep copies carrying their text properties.
func (m *MText) Tokenize(delims string) []*MText {
	delimSet := make(map[rune]bool, len(delims))
	for _, d := range delims {
		delimSet[d] = true
	}
	var tokens []*MText
	start := -1
	for pos := 0; pos <= m.nchars; pos++ {
		isDelim := pos == m.nchars || delimSet[m.charAt(pos)]
		switch {
		case isDelim && start >= 0:
			tok, _ := m.DupRange(start, pos)
			tokens = append(tokens, tok)
			start = -1
		case !isDelim && start < 0:
			start = pos
		}
	}
	return tokens
}

// folder expands characters to their case-folded forms using the registry's
// folding properties, falling back to built-in folds and simple lowercasing.
// A single code point may fold to several.
type folder struct {
	simple *chartab.Table
	full   *chartab.Table
}

func newFolder(reg *charprop.Registry) folder {
	var f folder
	if reg != nil {
		if key, ok := reg.Symbols().Lookup(charprop.PropSimpleFold); ok {
			f.simple, _ = reg.Table(key)
		}
		if key, ok := reg.Symbols().Lookup(charprop.PropFullFold); ok {
			f.full, _ = reg.Table(key)
		}
	}
	return f
}

// fold appends the folded form of c to dst.
func (f folder) fold(dst []rune, c rune) []rune {
	if f.full != nil {
		if v := f.full.Lookup(c); v != nil {
			switch seq := v.(type) {
			case string:
				return append(dst, []rune(seq)...)
			case []rune:
				return append(dst, seq...)
			case *MText:
				for i := 0; i < seq.Len(); i++ {
					dst = append(dst, seq.charAt(i))
				}
				return dst
			}
		}
	}
	if f.simple != nil {
		if v := f.simple.Lookup(c); v != nil && v != charprop.UnsetInt {
			if folded, ok := v.(int); ok {
				return append(dst, rune(folded))
			}
		}
	}
	if full, ok := builtinFullFolds[c]; ok {
		return append(dst, full...)
	}
	return append(dst, unicode.ToLower(c))
}

// foldText folds the whole text into a rune sequence.
func (f folder) foldText(m *MText) []rune {
	out := make([]rune, 0, m.nchars)
	for b := 0; b < len(m.buf); {
		c, n := decodeChar(m.format, m.buf[b:])
		out = f.fold(out, c)
		b += n
	}
	return out
}

// CaseCompare orders two texts after case folding, using the folding
// properties of reg. Folding iterates matched code points, never raw bytes:
// a single code point may fold to a multi-code-point sequence.
func (m *MText) CaseCompare(other *MText, reg *charprop.Registry) int {
	f := newFolder(reg)
	a := f.foldText(m)
	b := f.foldText(other)
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) > len(b):
		return 1
	case len(a) < len(b):
		return -1
	default:
		return 0
	}
}

// FoldIndex returns the position of the first case-insensitive occurrence
// of sub at or after from, or -1. Both needle and candidate windows are
// compared through their folded forms.
func (m *MText) FoldIndex(sub *MText, from int, reg *charprop.Registry) int {
	if from < 0 {
		from = 0
	}
	f := newFolder(reg)
	needle := f.foldText(sub)
	if len(needle) == 0 {
		if from > m.nchars {
			return -1
		}
		return from
	}
	var window []rune
	for pos := from; pos < m.nchars; pos++ {
		window = window[:0]
		for i := pos; i < m.nchars && len(window) < len(needle); i++ {
			window = f.fold(window, m.charAt(i))
		}
		if len(window) < len(needle) {
			return -1
		}
		if len(window) > len(needle) {
			// The last character folded past the needle boundary; no
			// substring starting here folds to exactly the needle.
			continue
		}
		match := true
		for i := range needle {
			if window[i] != needle[i] {
				match = false
				break
			}
		}
		if match {
			return pos
		}
	}
	return -1
}

// builtinFullFolds holds the multi-code-point case folds the engine needs
// when no folding database is loaded.
var builtinFullFolds = map[rune][]rune{
	0x00DF: {'s', 's'},                 // ß
	0x0130: {'i', 0x0307},              // İ
	0x0149: {0x02BC, 'n'},              // ŉ
	0x01F0: {'j', 0x030C},              // ǰ
	0x0390: {0x03B9, 0x0308, 0x0301},   // ΐ
	0x03B0: {0x03C5, 0x0308, 0x0301},   // ΰ
	0x0587: {0x0565, 0x0582},           // և
	0x1E96: {'h', 0x0331},              // ẖ
	0x1E97: {'t', 0x0308},              // ẗ
	0x1E98: {'w', 0x030A},              // ẘ
	0x1E99: {'y', 0x030A},              // ẙ
	0x1E9E: {'s', 's'},                 // ẞ
	0xFB00: {'f', 'f'},                 // ﬀ
	0xFB01: {'f', 'i'},                 // ﬁ
	0xFB02: {'f', 'l'},                 // ﬂ
	0xFB03: {'f', 'f', 'i'},            // ﬃ
	0xFB04: {'f', 'f', 'l'},            // ﬄ
	0xFB05: {'s', 't'},                 // ﬅ
	0xFB06: {'s', 't'},                 // ﬆ
	0xFB13: {0x0574, 0x0576},           // ﬓ
	0xFB14: {0x0574, 0x0565},           // ﬔ
	0xFB15: {0x0574, 0x056B},           // ﬕ
	0xFB16: {0x057E, 0x0576},           // ﬖ
	0xFB17: {0x0574, 0x056D},           // ﬗ
}
