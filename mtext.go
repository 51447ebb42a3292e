package mtext

import (
	"fmt"

	"github.com/textmesh/mtext/managed"
	"github.com/textmesh/mtext/symbol"
)

// MText is a variable-encoding character sequence with typed metadata
// attachable to character ranges. Positions in the public API are character
// indexes, never byte offsets.
//
// An MText starts in the ASCII format and promotes itself to a wider format
// the first time a character outside the current coverage is written.
// Promotion is one-way: mutations never narrow the format back.
type MText struct {
	managed.RefCount

	format   Format
	coverage Coverage
	nchars   int
	buf      []byte
	readOnly bool

	// Single-entry position cache: the byte offset of character cacheChar.
	cacheChar int
	cacheByte int

	props map[*symbol.Symbol][]*TextProperty
	rev   uint64
}

// New creates an empty text in the ASCII format.
func New() *MText {
	m := &MText{format: FormatASCII, coverage: CoverageASCII}
	m.Init(m.finalize)
	return m
}

// FromString creates a text holding the characters of s. The string must be
// valid UTF-8.
func FromString(s string) (*MText, error) {
	nchars, cv, err := validate(FormatUTF8, []byte(s))
	if err != nil {
		return nil, err
	}
	m := New()
	m.nchars = nchars
	m.coverage = cv
	if cv == CoverageASCII {
		m.format = FormatASCII
	} else {
		m.format = FormatUTF8
	}
	m.buf = []byte(s)
	return m, nil
}

// MustFromString is FromString for string literals known to be valid.
func MustFromString(s string) *MText {
	m, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromExternal creates a read-only text over caller-owned data. The data is
// not copied: the caller keeps ownership and must not mutate it while the
// text is alive. Mutating operations return ErrReadOnly; Dup returns a
// writable copy.
func FromExternal(data []byte, f Format) (*MText, error) {
	nchars, cv, err := validate(f, data)
	if err != nil {
		return nil, err
	}
	m := New()
	m.format = f
	m.coverage = cv
	m.nchars = nchars
	m.buf = data
	m.readOnly = true
	return m, nil
}

// finalize releases the buffer and detaches all properties when the
// reference count reaches zero.
func (m *MText) finalize() {
	for _, props := range m.props {
		for _, tp := range props {
			tp.text = nil
			managed.UnrefValue(tp.value)
			tp.Unref()
		}
	}
	m.props = nil
	m.buf = nil
}

// Len returns the number of characters.
func (m *MText) Len() int {
	return m.nchars
}

// Format returns the current internal encoding.
func (m *MText) Format() Format {
	return m.format
}

// Coverage returns the coverage classification of the stored content.
func (m *MText) Coverage() Coverage {
	return m.coverage
}

// ReadOnly reports whether the text rejects mutation.
func (m *MText) ReadOnly() bool {
	return m.readOnly
}

// Bytes exposes the raw encoded buffer. The slice aliases internal storage
// and is invalidated by the next mutation.
func (m *MText) Bytes() []byte {
	return m.buf
}

// Revision returns a counter bumped by every mutation. Derived structures
// use it to notice that cached positions are stale.
func (m *MText) Revision() uint64 {
	return m.rev
}

// String renders the text as a Go string. Code points beyond the Unicode
// scalar range, which Go strings cannot carry, come out as U+FFFD.
func (m *MText) String() string {
	switch m.format {
	case FormatASCII:
		return string(m.buf)
	case FormatUTF8:
		if m.coverage <= CoverageUnicode {
			return string(m.buf)
		}
	}
	out := make([]rune, 0, m.nchars)
	for b := 0; b < len(m.buf); {
		c, n := decodeChar(m.format, m.buf[b:])
		if c > unicodeMax {
			c = 0xFFFD
		}
		out = append(out, c)
		b += n
	}
	return string(out)
}

// CharToByte converts a character index to its byte offset in the current
// format. pos may equal Len, addressing the end of the buffer.
func (m *MText) CharToByte(pos int) (int, error) {
	if pos < 0 || pos > m.nchars {
		return 0, fmt.Errorf("%w: char %d of %d", ErrRange, pos, m.nchars)
	}
	return m.byteIndex(pos), nil
}

// ByteToChar converts a byte offset at a character boundary back to its
// character index.
func (m *MText) ByteToChar(off int) (int, error) {
	if off < 0 || off > len(m.buf) {
		return 0, fmt.Errorf("%w: byte %d of %d", ErrRange, off, len(m.buf))
	}
	switch m.format {
	case FormatASCII:
		return off, nil
	case FormatUTF32LE, FormatUTF32BE:
		if off%4 != 0 {
			return 0, fmt.Errorf("%w: byte %d not a character boundary", ErrRange, off)
		}
		return off / 4, nil
	}

	// Walk from the cheaper of the cache position, start, or end.
	char, b := 0, 0
	switch {
	case abs(off-m.cacheByte) <= min(off, len(m.buf)-off):
		char, b = m.cacheChar, m.cacheByte
	case off <= len(m.buf)-off:
		// from start
	default:
		char, b = m.nchars, len(m.buf)
	}
	for b < off {
		b += charLen(m.format, m.buf[b:])
		char++
	}
	for b > off {
		n := charLenBefore(m.format, m.buf, b)
		b -= n
		char--
	}
	if b != off {
		return 0, fmt.Errorf("%w: byte %d not a character boundary", ErrRange, off)
	}
	m.cacheChar, m.cacheByte = char, b
	return char, nil
}

// byteIndex resolves a validated character index to its byte offset,
// updating the position cache. Sequential access in either direction is
// amortized constant per step.
func (m *MText) byteIndex(pos int) int {
	switch m.format {
	case FormatASCII:
		return pos
	case FormatUTF32LE, FormatUTF32BE:
		return pos * 4
	}

	char, b := 0, 0
	switch {
	case abs(pos-m.cacheChar) <= min(pos, m.nchars-pos):
		char, b = m.cacheChar, m.cacheByte
	case pos <= m.nchars-pos:
		// from start
	default:
		char, b = m.nchars, len(m.buf)
	}
	for char < pos {
		b += charLen(m.format, m.buf[b:])
		char++
	}
	for char > pos {
		b -= charLenBefore(m.format, m.buf, b)
		char--
	}
	m.cacheChar, m.cacheByte = char, b
	return b
}

// CharAt returns the character at pos.
func (m *MText) CharAt(pos int) (rune, error) {
	if pos < 0 || pos >= m.nchars {
		return 0, fmt.Errorf("%w: char %d of %d", ErrRange, pos, m.nchars)
	}
	c, _ := decodeChar(m.format, m.buf[m.byteIndex(pos):])
	return c, nil
}

// charAt is CharAt for positions the caller has already validated.
func (m *MText) charAt(pos int) rune {
	c, _ := decodeChar(m.format, m.buf[m.byteIndex(pos):])
	return c
}

// SetCharAt overwrites the character at pos with c, promoting the format
// first if c is outside the current coverage. Volatile properties covering
// pos are dropped, like for any other edit of the range's content.
func (m *MText) SetCharAt(pos int, c rune) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if pos < 0 || pos >= m.nchars {
		return fmt.Errorf("%w: char %d of %d", ErrRange, pos, m.nchars)
	}
	if err := checkChar(c); err != nil {
		return err
	}
	m.promoteFor(coverageOf(c))

	b := m.byteIndex(pos)
	oldN := charLen(m.format, m.buf[b:])
	enc := appendChar(nil, m.format, c)
	m.splice(b, b+oldN, enc)
	m.cacheChar, m.cacheByte = pos, b
	m.coverage = maxCoverage(m.coverage, coverageOf(c))
	m.rev++
	m.adjustForEdit(pos, 1, 1)
	return nil
}

// Insert inserts a copy of src at character position pos. Text properties of
// src are carried into m over the inserted range. The destination format is
// promoted first when src contains characters outside m's coverage.
func (m *MText) Insert(pos int, src *MText) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if pos < 0 || pos > m.nchars {
		return fmt.Errorf("%w: char %d of %d", ErrRange, pos, m.nchars)
	}
	if src.nchars == 0 {
		return nil
	}
	if src == m {
		src = m.Dup()
		defer src.Unref()
	}
	m.insertText(pos, src)
	m.adjustForEdit(pos, 0, src.nchars)
	m.copyPropsFrom(src, 0, src.nchars, pos)
	return nil
}

// InsertString inserts the characters of the UTF-8 string s at pos.
func (m *MText) InsertString(pos int, s string) error {
	src, err := FromString(s)
	if err != nil {
		return err
	}
	defer src.Unref()
	return m.Insert(pos, src)
}

// InsertChar inserts the single character c at pos.
func (m *MText) InsertChar(pos int, c rune) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if pos < 0 || pos > m.nchars {
		return fmt.Errorf("%w: char %d of %d", ErrRange, pos, m.nchars)
	}
	if err := checkChar(c); err != nil {
		return err
	}
	m.promoteFor(coverageOf(c))
	b := m.byteIndex(pos)
	m.splice(b, b, appendChar(nil, m.format, c))
	m.nchars++
	m.coverage = maxCoverage(m.coverage, coverageOf(c))
	m.cacheChar, m.cacheByte = pos, b
	m.rev++
	m.adjustForEdit(pos, 0, 1)
	return nil
}

// Delete removes characters in [from, to).
func (m *MText) Delete(from, to int) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if err := m.checkRange(from, to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	bFrom := m.byteIndex(from)
	bTo := m.byteIndex(to)
	m.splice(bFrom, bTo, nil)
	m.nchars -= to - from
	m.cacheChar, m.cacheByte = from, bFrom
	m.rev++
	m.adjustForEdit(from, to-from, 0)
	return nil
}

// Replace replaces characters in [from, to) with a copy of src.
func (m *MText) Replace(from, to int, src *MText) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if err := m.checkRange(from, to); err != nil {
		return err
	}
	if src == m {
		src = m.Dup()
		defer src.Unref()
	}
	bFrom := m.byteIndex(from)
	bTo := m.byteIndex(to)
	m.splice(bFrom, bTo, nil)
	m.nchars -= to - from
	m.cacheChar, m.cacheByte = from, bFrom
	if src.nchars > 0 {
		m.insertText(from, src)
	}
	m.rev++
	m.adjustForEdit(from, to-from, src.nchars)
	m.copyPropsFrom(src, 0, src.nchars, from)
	return nil
}

// Cat appends a copy of src.
func (m *MText) Cat(src *MText) error {
	return m.Insert(m.nchars, src)
}

// Dup returns a writable deep copy of the whole text, properties included.
func (m *MText) Dup() *MText {
	d, _ := m.DupRange(0, m.nchars)
	return d
}

// DupRange returns a writable deep copy of characters [from, to), carrying
// the text properties clipped to that range.
func (m *MText) DupRange(from, to int) (*MText, error) {
	if err := m.checkRange(from, to); err != nil {
		return nil, err
	}
	d := New()
	d.format = m.format
	d.coverage = m.coverage
	d.nchars = to - from
	bFrom := m.byteIndex(from)
	bTo := m.byteIndex(to)
	d.buf = append([]byte(nil), m.buf[bFrom:bTo]...)
	d.copyPropsFrom(m, from, to, 0)
	return d, nil
}

// insertText splices src's characters in at pos. Property bookkeeping is
// the caller's job.
func (m *MText) insertText(pos int, src *MText) {
	m.promoteFor(src.coverage)
	var enc []byte
	if src.format == m.format {
		enc = src.buf
	} else {
		enc = make([]byte, 0, len(src.buf))
		for b := 0; b < len(src.buf); {
			c, n := decodeChar(src.format, src.buf[b:])
			enc = appendChar(enc, m.format, c)
			b += n
		}
	}
	b := m.byteIndex(pos)
	m.splice(b, b, enc)
	m.nchars += src.nchars
	m.coverage = maxCoverage(m.coverage, src.coverage)
	m.cacheChar, m.cacheByte = pos, b
	m.rev++
}

// promoteFor re-encodes the buffer into the format required to hold cv.
// A format already covering cv is kept: widening is monotonic and minimal.
func (m *MText) promoteFor(cv Coverage) {
	next := promote(m.format, cv)
	if next == m.format {
		return
	}
	nb := make([]byte, 0, len(m.buf)*2)
	for b := 0; b < len(m.buf); {
		c, n := decodeChar(m.format, m.buf[b:])
		nb = appendChar(nb, next, c)
		b += n
	}
	m.format = next
	m.buf = nb
	m.cacheChar, m.cacheByte = 0, 0
	m.rev++
}

// splice replaces bytes [bFrom, bTo) with ins, moving the tail with a block
// copy. Growth at least doubles the capacity plus a constant to batch
// reallocations.
func (m *MText) splice(bFrom, bTo int, ins []byte) {
	oldLen := len(m.buf)
	newLen := oldLen - (bTo - bFrom) + len(ins)
	if newLen > cap(m.buf) {
		newCap := 2*cap(m.buf) + 32
		if newCap < newLen {
			newCap = newLen
		}
		nb := make([]byte, newLen, newCap)
		copy(nb, m.buf[:bFrom])
		copy(nb[bFrom:], ins)
		copy(nb[bFrom+len(ins):], m.buf[bTo:])
		m.buf = nb
		return
	}
	if newLen > oldLen {
		m.buf = m.buf[:newLen]
	}
	copy(m.buf[bFrom+len(ins):newLen], m.buf[bTo:oldLen])
	copy(m.buf[bFrom:], ins)
	if newLen < oldLen {
		m.buf = m.buf[:newLen]
	}
}

func (m *MText) checkRange(from, to int) error {
	if from < 0 || from > to || to > m.nchars {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrRange, from, to, m.nchars)
	}
	return nil
}

func checkChar(c rune) error {
	if c < 0 || c > MaxChar || (c >= 0xD800 && c < 0xE000) {
		return fmt.Errorf("%w: invalid code point %#x", ErrFormat, c)
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
