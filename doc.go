// Package mtext provides a multilingual text engine: a character-sequence
// container that switches internal encodings on demand and lets typed
// metadata be attached to character ranges.
//
// # M-Texts
//
// An MText owns its characters in one of a small set of formats (ASCII, a
// UTF-8-style variable-width form extended past the Unicode scalar range,
// UTF-16 and UTF-32 in both endiannesses). Texts start in ASCII and promote
// themselves to a wider format the first time a character outside the
// current coverage is written; promotion is one-way and content-preserving.
//
//	m := mtext.New()
//	m.InsertString(0, "grüße")  // promotes ASCII -> UTF-8
//	m.InsertChar(0, 0x1F600)    // astral characters stay in UTF-8
//	n := m.Len()                // character count, 6
//
// All public positions are character indexes. Conversion between character
// index and byte offset runs through a single-entry position cache, so
// sequential access is amortized constant per step.
//
// # Text properties
//
// A text property attaches a (key, value) pair to a half-open character
// range. Properties survive every mutation: intervals shift, shrink, split
// and merge as text is inserted and deleted, with stickiness flags deciding
// whether text inserted at a boundary inherits the property.
//
//	key := symbols.Intern("face")
//	m.PutProp(2, 5, key, "bold")
//	v, ok := m.GetProp(3, key)
//
// Stacked values on one key (PushProp/PopProp) support nested markup, and a
// Codec round-trips a text with its properties through a byte form.
//
// # Character properties and case conversion
//
// Per-code-point properties (general category, combining class, case
// folding, ...) live in a charprop.Registry backed by sparse chartab
// tables, optionally faulted in from an external database. The Caser built
// on top implements Unicode default case mapping plus the language-specific
// exceptions for Lithuanian, Turkish and Azerbaijani, and the Greek final
// sigma rule:
//
//	caser, _ := mtext.NewCaser(registry)
//	m.PutProp(0, m.Len(), caser.LanguageKey(), language.Turkish)
//	caser.Lower(m) // "İ" -> "i", not "i̇"
//
// # Concurrency
//
// The engine is single-threaded by design: reference counts are plain
// integers and no internal locking exists. Sharing an MText or a registry
// across goroutines requires external synchronization.
package mtext
