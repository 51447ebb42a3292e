package mtext

import (
	"unicode"

	"github.com/rivo/uniseg"
	"golang.org/x/text/language"

	"github.com/textmesh/mtext/charprop"
	"github.com/textmesh/mtext/chartab"
	"github.com/textmesh/mtext/symbol"
)

// Property key names consumed by the case-conversion engine.
const (
	// PropLanguage is the text-property key carrying the language of a
	// range, as a language.Tag, a symbol, or a BCP 47 string.
	PropLanguage = "language"

	// PropCaseMapping is the character-property key whose table holds
	// *CaseMapping triples, usually loaded from the database.
	PropCaseMapping = "case-mapping"
)

// CaseMapping is a case-mapping table entry: the full lowercase, titlecase
// and uppercase forms of one code point. Each form may be longer than one
// character. A nil form falls back to the simple single-character mapping.
type CaseMapping struct {
	Lower []rune
	Title []rune
	Upper []rune
}

// Caser converts MText content between cases. It reads character properties
// through a registry and applies language-sensitive exceptions for ranges
// tagged with a language text property.
type Caser struct {
	reg     *charprop.Registry
	langKey *symbol.Symbol
	caseKey *symbol.Symbol
}

// NewCaser creates a case converter over reg. The case-mapping property is
// defined on the registry if the registry does not have it yet.
func NewCaser(reg *charprop.Registry) (*Caser, error) {
	caseKey, err := reg.Define(PropCaseMapping, charprop.TypePlist)
	if err != nil {
		return nil, err
	}
	return &Caser{
		reg:     reg,
		langKey: reg.Symbols().Intern(PropLanguage),
		caseKey: caseKey,
	}, nil
}

// LanguageKey returns the symbol to attach language text properties under.
func (cs *Caser) LanguageKey() *symbol.Symbol {
	return cs.langKey
}

type caseKind uint8

const (
	caseLower caseKind = iota
	caseTitle
	caseUpper
)

// Lower converts the whole text to lowercase and returns the new length.
func (cs *Caser) Lower(m *MText) (int, error) {
	return cs.convert(m, caseLower)
}

// Upper converts the whole text to uppercase and returns the new length.
func (cs *Caser) Upper(m *MText) (int, error) {
	return cs.convert(m, caseUpper)
}

// Title titlecases the first cased character of every word, lowercasing the
// rest, and returns the new length. Word boundaries follow UAX #29.
func (cs *Caser) Title(m *MText) (int, error) {
	return cs.convert(m, caseTitle)
}

// convert walks the text once, replacing each character with its mapped
// form. Context-sensitive rules (final sigma, the Lithuanian and
// Turkish/Azerbaijani exceptions) read their lookbehind and lookahead from
// a duplicate of the original text, so that earlier replacements cannot
// disturb later context checks. A cheap pre-scan skips the duplication when
// nothing in the text can trigger a context-sensitive rule.
func (cs *Caser) convert(m *MText, kind caseKind) (int, error) {
	if m.readOnly {
		return 0, ErrReadOnly
	}

	langSensitive := cs.hasLanguageTriggers(m, kind)
	hasSigma := kind != caseUpper && m.IndexChar(capitalSigma, 0) >= 0

	var orig *MText
	if langSensitive || hasSigma {
		orig = m.Dup()
		defer orig.Unref()
	}

	var wordStart []bool
	wordHadCased := false
	if kind == caseTitle {
		wordStart = cs.wordStarts(m)
	}

	caseTab := cs.caseTable()
	ctx := caseContext{caser: cs, text: orig}

	pos, origPos := 0, 0
	for pos < m.Len() {
		c := m.charAt(pos)

		effective := kind
		if kind == caseTitle {
			if wordStart[origPos] {
				wordHadCased = false
			}
			if !wordHadCased && cs.isCased(c) {
				wordHadCased = true
				effective = caseTitle
			} else {
				effective = caseLower
			}
		}

		var repl []rune
		handled := false
		if langSensitive {
			if lang := cs.langAt(m, pos); lang != "" {
				ctx.pos = origPos
				repl, handled = languageRule(lang, c, effective, &ctx)
			}
		}
		if !handled && effective == caseLower && c == capitalSigma && orig != nil {
			ctx.pos = origPos
			if ctx.finalSigma() {
				repl = []rune{finalSigmaChar}
			} else {
				repl = []rune{smallSigmaChar}
			}
			handled = true
		}
		if !handled {
			repl = mappingFor(caseTab, c, effective)
		}

		if len(repl) == 1 && repl[0] == c {
			pos++
			origPos++
			continue
		}
		m.spliceRunes(pos, pos+1, repl)
		pos += len(repl)
		origPos++
	}
	return m.Len(), nil
}

const (
	capitalSigma   = 0x03A3 // Σ
	smallSigmaChar = 0x03C3 // σ
	finalSigmaChar = 0x03C2 // ς
	dotAbove       = 0x0307 // combining dot above
)

// caseTable returns the registry's case-mapping table, nil when the
// database has none.
func (cs *Caser) caseTable() *chartab.Table {
	tbl, err := cs.reg.Table(cs.caseKey)
	if err != nil {
		return nil
	}
	return tbl
}

// mappingFor resolves the full mapping of c for one case kind: the
// registry's case-mapping table first, the built-in special casings next,
// and the simple one-to-one mapping last.
func mappingFor(caseTab *chartab.Table, c rune, kind caseKind) []rune {
	if caseTab != nil {
		if v := caseTab.Lookup(c); v != nil {
			if cm, ok := v.(*CaseMapping); ok {
				if seq := cm.form(kind); seq != nil {
					return seq
				}
			}
		}
	}
	if cm, ok := specialCasings[c]; ok {
		if seq := cm.form(kind); seq != nil {
			return seq
		}
	}
	switch kind {
	case caseLower:
		return []rune{unicode.ToLower(c)}
	case caseTitle:
		return []rune{unicode.ToTitle(c)}
	default:
		return []rune{unicode.ToUpper(c)}
	}
}

func (cm *CaseMapping) form(kind caseKind) []rune {
	switch kind {
	case caseLower:
		return cm.Lower
	case caseTitle:
		return cm.Title
	default:
		return cm.Upper
	}
}

// hasLanguageTriggers reports whether any character in the text could fire
// a language-sensitive rule, given that a language property is attached at
// all. This is the cheap pre-check run before paying for context tracking.
func (cs *Caser) hasLanguageTriggers(m *MText, kind caseKind) bool {
	if _, ok := m.props[cs.langKey]; !ok {
		return false
	}
	for pos := 0; pos < m.nchars; pos++ {
		c := m.charAt(pos)
		// Titlecasing lowercases the tail of each word, so both rule
		// sets stay in play.
		if kind != caseUpper && lowerTriggers[c] {
			return true
		}
		if kind != caseLower && upperTriggers[c] {
			return true
		}
	}
	return false
}

var lowerTriggers = map[rune]bool{
	'I': true, 'J': true,
	0x012E: true, // Į
	0x0130: true, // İ
	0x00CC: true, // Ì
	0x00CD: true, // Í
	0x0128: true, // Ĩ
	dotAbove: true,
}

var upperTriggers = map[rune]bool{
	'i': true,
	dotAbove: true,
}

// langAt returns the base language code ("tr", "az", "lt", ...) of the
// language property at pos, or "".
func (cs *Caser) langAt(m *MText, pos int) string {
	v, ok := m.GetProp(pos, cs.langKey)
	if !ok {
		return ""
	}
	return langCode(v)
}

func langCode(v any) string {
	var name string
	switch x := v.(type) {
	case language.Tag:
		b, _ := x.Base()
		return b.String()
	case *symbol.Symbol:
		name = x.Name()
	case string:
		name = x
	default:
		return ""
	}
	tag, err := language.Parse(name)
	if err != nil {
		return ""
	}
	b, _ := tag.Base()
	return b.String()
}

// caseContext provides lookbehind and lookahead over the pre-edit text for
// the context-sensitive rules.
type caseContext struct {
	caser *Caser
	text  *MText // duplicate of the original text; nil on the cheap path
	pos   int
}

// followedByDotAbove: the next character of combining class 0 or 230 is a
// combining dot above (Unicode condition Before_Dot).
func (ctx *caseContext) followedByDotAbove() bool {
	for i := ctx.pos + 1; i < ctx.text.Len(); i++ {
		c := ctx.text.charAt(i)
		cc := ctx.caser.combiningClass(c)
		if cc == 0 || cc == 230 {
			return c == dotAbove
		}
	}
	return false
}

// afterI: the closest preceding character of combining class 0 or 230 is an
// uppercase I (Unicode condition After_I).
func (ctx *caseContext) afterI() bool {
	for i := ctx.pos - 1; i >= 0; i-- {
		c := ctx.text.charAt(i)
		cc := ctx.caser.combiningClass(c)
		if cc == 0 || cc == 230 {
			return c == 'I'
		}
	}
	return false
}

// afterSoftDotted: the closest preceding character of combining class 0 or
// 230 is soft-dotted (Unicode condition After_Soft_Dotted).
func (ctx *caseContext) afterSoftDotted() bool {
	for i := ctx.pos - 1; i >= 0; i-- {
		c := ctx.text.charAt(i)
		cc := ctx.caser.combiningClass(c)
		if cc == 0 || cc == 230 {
			return unicode.Is(unicode.Soft_Dotted, c)
		}
	}
	return false
}

// moreAbove: a character of combining class 230 follows with no intervening
// character of class 0 or 230 (Unicode condition More_Above).
func (ctx *caseContext) moreAbove() bool {
	for i := ctx.pos + 1; i < ctx.text.Len(); i++ {
		c := ctx.text.charAt(i)
		switch ctx.caser.combiningClass(c) {
		case 230:
			return true
		case 0:
			return false
		}
	}
	return false
}

// finalSigma: a cased character precedes with only case-ignorable
// characters in between, and no cased character follows the same way
// (Unicode condition Final_Sigma).
func (ctx *caseContext) finalSigma() bool {
	before := false
	for i := ctx.pos - 1; i >= 0; i-- {
		c := ctx.text.charAt(i)
		if ctx.caser.isCaseIgnorable(c) {
			continue
		}
		before = ctx.caser.isCased(c)
		break
	}
	if !before {
		return false
	}
	for i := ctx.pos + 1; i < ctx.text.Len(); i++ {
		c := ctx.text.charAt(i)
		if ctx.caser.isCaseIgnorable(c) {
			continue
		}
		return !ctx.caser.isCased(c)
	}
	return true
}

// languageRule applies the language-sensitive exceptions. handled reports
// whether the rule fully determined the replacement; the caller falls back
// to the default mapping otherwise.
func languageRule(lang string, c rune, kind caseKind, ctx *caseContext) ([]rune, bool) {
	switch lang {
	case "tr", "az":
		if kind == caseLower {
			switch c {
			case 0x0130: // İ lowercases to plain dotted i
				return []rune{'i'}, true
			case 'I':
				if ctx.followedByDotAbove() {
					// The dot above is consumed by its own After_I rule.
					return []rune{'i'}, true
				}
				return []rune{0x0131}, true // ı
			case dotAbove:
				if ctx.afterI() {
					return nil, true // removed
				}
			}
		} else if c == 'i' {
			return []rune{0x0130}, true // İ
		}
	case "lt":
		if kind == caseLower {
			switch c {
			case 0x00CC:
				return []rune{'i', dotAbove, 0x0300}, true
			case 0x00CD:
				return []rune{'i', dotAbove, 0x0301}, true
			case 0x0128:
				return []rune{'i', dotAbove, 0x0303}, true
			case 'I':
				if ctx.moreAbove() {
					return []rune{'i', dotAbove}, true
				}
			case 'J':
				if ctx.moreAbove() {
					return []rune{'j', dotAbove}, true
				}
			case 0x012E: // Į
				if ctx.moreAbove() {
					return []rune{0x012F, dotAbove}, true
				}
			}
		} else if c == dotAbove && ctx.afterSoftDotted() {
			return nil, true // removed
		}
	}
	return nil, false
}

// isCased follows Unicode's Cased derivation: the three cased general
// categories plus the Other_Uppercase and Other_Lowercase property sets.
func (cs *Caser) isCased(c rune) bool {
	return unicode.IsUpper(c) || unicode.IsLower(c) || unicode.IsTitle(c) ||
		unicode.Is(unicode.Other_Uppercase, c) || unicode.Is(unicode.Other_Lowercase, c)
}

// isCaseIgnorable approximates Unicode's Case_Ignorable derivation: marks,
// format and modifier characters, plus the word-medial punctuation the
// derivation pulls in from word-break classes.
func (cs *Caser) isCaseIgnorable(c rune) bool {
	switch c {
	case '\'', '.', ':', 0x00B7, 0x00AD, 0x0387, 0x05F4, 0x2018, 0x2019, 0x2027, 0xFE52, 0xFE55, 0xFF07, 0xFF0E, 0xFF1A:
		return true
	}
	return unicode.In(c, unicode.Mn, unicode.Me, unicode.Cf, unicode.Lm, unicode.Sk)
}

// combiningClass returns the canonical combining class of c from the
// registry's table, falling back to a built-in classification of the common
// combining ranges.
func (cs *Caser) combiningClass(c rune) int {
	if key, ok := cs.reg.Symbols().Lookup(charprop.PropCombiningClass); ok {
		if tbl, err := cs.reg.Table(key); err == nil {
			if v, ok := tbl.Lookup(c).(int); ok && v != charprop.UnsetInt {
				return v
			}
		}
	}
	return builtinCombiningClass(c)
}

func builtinCombiningClass(c rune) int {
	if !unicode.In(c, unicode.Mn, unicode.Me) {
		return 0
	}
	switch {
	case c >= 0x0316 && c <= 0x0319,
		c >= 0x031C && c <= 0x0320,
		c >= 0x0323 && c <= 0x0326,
		c >= 0x0329 && c <= 0x0333,
		c >= 0x0339 && c <= 0x033C:
		return 220
	case c >= 0x0334 && c <= 0x0338:
		return 1
	case c == 0x0345: // ypogegrammeni
		return 240
	default:
		// The remaining marks the case rules care about all attach above.
		return 230
	}
}

// wordStarts marks the character positions where a UAX #29 word begins.
// Texts carrying code points outside the Unicode scalar range cannot pass
// through a Go string, so they fall back to letter/digit run boundaries.
func (cs *Caser) wordStarts(m *MText) []bool {
	starts := make([]bool, m.nchars+1)
	if m.nchars == 0 {
		return starts
	}
	if m.coverage <= CoverageUnicode {
		rest := m.String()
		state := -1
		pos := 0
		var word string
		for len(rest) > 0 {
			word, rest, state = uniseg.FirstWordInString(rest, state)
			starts[pos] = true
			pos += len([]rune(word))
		}
		return starts
	}

	prevWord := false
	for pos := 0; pos < m.nchars; pos++ {
		c := m.charAt(pos)
		isWord := unicode.IsLetter(c) || unicode.IsDigit(c)
		if !prevWord {
			starts[pos] = true
		}
		prevWord = isWord
	}
	return starts
}

// spliceRunes replaces characters [from, to) with the given sequence,
// running the shared property-adjustment hook.
func (m *MText) spliceRunes(from, to int, repl []rune) {
	cv := CoverageASCII
	for _, c := range repl {
		cv = maxCoverage(cv, coverageOf(c))
	}
	m.promoteFor(cv)

	bFrom := m.byteIndex(from)
	bTo := m.byteIndex(to)
	var enc []byte
	for _, c := range repl {
		enc = appendChar(enc, m.format, c)
	}
	m.splice(bFrom, bTo, enc)
	m.nchars += len(repl) - (to - from)
	m.coverage = maxCoverage(m.coverage, cv)
	m.cacheChar, m.cacheByte = from, bFrom
	m.rev++
	m.adjustForEdit(from, to-from, len(repl))
}

// specialCasings carries the unconditional full case mappings the engine
// needs when no case-mapping table is loaded from the database: the
// expansions from SpecialCasing.txt whose results are longer than one
// character. The compiled database supersedes this set.
var specialCasings = map[rune]CaseMapping{
	0x00DF: {Upper: []rune("SS"), Title: []rune("Ss")},                            // ß
	0x0130: {Lower: []rune{'i', dotAbove}},                                        // İ (non-Turkish)
	0x0149: {Upper: []rune{0x02BC, 'N'}, Title: []rune{0x02BC, 'N'}},              // ŉ
	0x01F0: {Upper: []rune{'J', 0x030C}, Title: []rune{'J', 0x030C}},              // ǰ
	0x0390: {Upper: []rune{0x0399, 0x0308, 0x0301}, Title: []rune{0x0399, 0x0308, 0x0301}}, // ΐ
	0x03B0: {Upper: []rune{0x03A5, 0x0308, 0x0301}, Title: []rune{0x03A5, 0x0308, 0x0301}}, // ΰ
	0x0587: {Upper: []rune{0x0535, 0x0552}, Title: []rune{0x0535, 0x0582}},        // և
	0x1E96: {Upper: []rune{'H', 0x0331}, Title: []rune{'H', 0x0331}},              // ẖ
	0x1E97: {Upper: []rune{'T', 0x0308}, Title: []rune{'T', 0x0308}},              // ẗ
	0x1E98: {Upper: []rune{'W', 0x030A}, Title: []rune{'W', 0x030A}},              // ẘ
	0x1E99: {Upper: []rune{'Y', 0x030A}, Title: []rune{'Y', 0x030A}},              // ẙ
	0x1E9A: {Upper: []rune{'A', 0x02BE}, Title: []rune{'A', 0x02BE}},              // ẚ
	0x1F50: {Upper: []rune{0x03A5, 0x0313}, Title: []rune{0x03A5, 0x0313}},        // ὐ
	0x1F52: {Upper: []rune{0x03A5, 0x0313, 0x0300}, Title: []rune{0x03A5, 0x0313, 0x0300}},
	0x1F54: {Upper: []rune{0x03A5, 0x0313, 0x0301}, Title: []rune{0x03A5, 0x0313, 0x0301}},
	0x1F56: {Upper: []rune{0x03A5, 0x0313, 0x0342}, Title: []rune{0x03A5, 0x0313, 0x0342}},
	0x1FB2: {Upper: []rune{0x1FBA, 0x0399}},                                       // ᾲ
	0x1FB3: {Upper: []rune{0x0391, 0x0399}, Title: []rune{0x1FBC}},                // ᾳ
	0x1FB4: {Upper: []rune{0x0386, 0x0399}},                                       // ᾴ
	0x1FB6: {Upper: []rune{0x0391, 0x0342}, Title: []rune{0x0391, 0x0342}},        // ᾶ
	0x1FB7: {Upper: []rune{0x0391, 0x0342, 0x0399}},                               // ᾷ
	0x1FBC: {Lower: []rune{0x1FB3}},                                               // ᾼ
	0x1FC2: {Upper: []rune{0x1FCA, 0x0399}},                                       // ῂ
	0x1FC3: {Upper: []rune{0x0397, 0x0399}, Title: []rune{0x1FCC}},                // ῃ
	0x1FC4: {Upper: []rune{0x0389, 0x0399}},                                       // ῄ
	0x1FC6: {Upper: []rune{0x0397, 0x0342}, Title: []rune{0x0397, 0x0342}},        // ῆ
	0x1FC7: {Upper: []rune{0x0397, 0x0342, 0x0399}},                               // ῇ
	0x1FCC: {Lower: []rune{0x1FC3}},                                               // ῌ
	0x1FD2: {Upper: []rune{0x0399, 0x0308, 0x0300}},                               // ῒ
	0x1FD3: {Upper: []rune{0x0399, 0x0308, 0x0301}},                               // ΐ
	0x1FD6: {Upper: []rune{0x0399, 0x0342}, Title: []rune{0x0399, 0x0342}},        // ῖ
	0x1FD7: {Upper: []rune{0x0399, 0x0308, 0x0342}},                               // ῗ
	0x1FE2: {Upper: []rune{0x03A5, 0x0308, 0x0300}},                               // ῢ
	0x1FE3: {Upper: []rune{0x03A5, 0x0308, 0x0301}},                               // ΰ
	0x1FE4: {Upper: []rune{0x03A1, 0x0313}},                                       // ῤ
	0x1FE6: {Upper: []rune{0x03A5, 0x0342}, Title: []rune{0x03A5, 0x0342}},        // ῦ
	0x1FE7: {Upper: []rune{0x03A5, 0x0308, 0x0342}},                               // ῧ
	0x1FF2: {Upper: []rune{0x1FFA, 0x0399}},                                       // ῲ
	0x1FF3: {Upper: []rune{0x03A9, 0x0399}, Title: []rune{0x1FFC}},                // ῳ
	0x1FF4: {Upper: []rune{0x038F, 0x0399}},                                       // ῴ
	0x1FF6: {Upper: []rune{0x03A9, 0x0342}, Title: []rune{0x03A9, 0x0342}},        // ῶ
	0x1FF7: {Upper: []rune{0x03A9, 0x0342, 0x0399}},                               // ῷ
	0x1FFC: {Lower: []rune{0x1FF3}},                                               // ῼ
	0xFB00: {Upper: []rune("FF"), Title: []rune("Ff")},                            // ﬀ
	0xFB01: {Upper: []rune("FI"), Title: []rune("Fi")},                            // ﬁ
	0xFB02: {Upper: []rune("FL"), Title: []rune("Fl")},                            // ﬂ
	0xFB03: {Upper: []rune("FFI"), Title: []rune("Ffi")},                          // ﬃ
	0xFB04: {Upper: []rune("FFL"), Title: []rune("Ffl")},                          // ﬄ
	0xFB05: {Upper: []rune("ST"), Title: []rune("St")},                            // ﬅ
	0xFB06: {Upper: []rune("ST"), Title: []rune("St")},                            // ﬆ
	0xFB13: {Upper: []rune{0x0544, 0x0546}, Title: []rune{0x0544, 0x0576}},        // ﬓ
	0xFB14: {Upper: []rune{0x0544, 0x0535}, Title: []rune{0x0544, 0x0565}},        // ﬔ
	0xFB15: {Upper: []rune{0x0544, 0x053B}, Title: []rune{0x0544, 0x056B}},        // ﬕ
	0xFB16: {Upper: []rune{0x054E, 0x0546}, Title: []rune{0x054E, 0x0576}},        // ﬖ
	0xFB17: {Upper: []rune{0x0544, 0x053D}, Title: []rune{0x0544, 0x056D}},        // ﬗ
}
