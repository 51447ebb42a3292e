package mtext

import "fmt"

// MaxChar is the largest code point an MText can hold. It extends beyond the
// Unicode scalar range; code points above 0x10FFFF are representable only in
// the variable-width and UTF-32 formats.
const MaxChar rune = 0x3FFFFF

// unicodeMax is the largest Unicode scalar value.
const unicodeMax rune = 0x10FFFF

// Format identifies the internal byte encoding of an MText.
//
// The variable-width format is UTF-8 extended with a five-byte form so that
// the full 0..MaxChar range stays representable; for Unicode scalar values
// it is byte-identical to UTF-8.
type Format uint8

const (
	FormatASCII Format = iota
	FormatUTF8
	FormatUTF16LE
	FormatUTF16BE
	FormatUTF32LE
	FormatUTF32BE
)

// String returns the format's conventional name.
func (f Format) String() string {
	switch f {
	case FormatASCII:
		return "us-ascii"
	case FormatUTF8:
		return "utf-8"
	case FormatUTF16LE:
		return "utf-16le"
	case FormatUTF16BE:
		return "utf-16be"
	case FormatUTF32LE:
		return "utf-32le"
	case FormatUTF32BE:
		return "utf-32be"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// Coverage classifies the code points a text contains.
type Coverage uint8

const (
	CoverageASCII   Coverage = iota // all characters below 0x80
	CoverageUnicode                 // all characters are Unicode scalar values
	CoverageFull                    // characters beyond 0x10FFFF present
)

// String returns the coverage class name.
func (cv Coverage) String() string {
	switch cv {
	case CoverageASCII:
		return "ascii"
	case CoverageUnicode:
		return "unicode"
	case CoverageFull:
		return "full"
	default:
		return fmt.Sprintf("Coverage(%d)", uint8(cv))
	}
}

// coverageOf classifies a single code point.
func coverageOf(c rune) Coverage {
	switch {
	case c < 0x80:
		return CoverageASCII
	case c <= unicodeMax:
		return CoverageUnicode
	default:
		return CoverageFull
	}
}

func maxCoverage(a, b Coverage) Coverage {
	if a > b {
		return a
	}
	return b
}

// covers reports whether the format can represent every code point of the
// coverage class.
func (f Format) covers(cv Coverage) bool {
	switch f {
	case FormatASCII:
		return cv == CoverageASCII
	case FormatUTF16LE, FormatUTF16BE:
		return cv <= CoverageUnicode
	default:
		// The variable-width and UTF-32 formats span the full range.
		return true
	}
}

// promote returns the format f widens to so it covers cv. Promotion is
// monotonic: the result never narrows, and a format already covering cv is
// returned unchanged, which keeps each text in the narrowest format its
// promotion history allows.
func promote(f Format, cv Coverage) Format {
	if f.covers(cv) {
		return f
	}
	switch f {
	case FormatASCII:
		return FormatUTF8
	case FormatUTF16LE:
		return FormatUTF32LE
	case FormatUTF16BE:
		return FormatUTF32BE
	default:
		return f
	}
}

// encodedLen returns the byte length of c in format f.
func encodedLen(f Format, c rune) int {
	switch f {
	case FormatASCII:
		return 1
	case FormatUTF8:
		switch {
		case c < 0x80:
			return 1
		case c < 0x800:
			return 2
		case c < 0x10000:
			return 3
		case c < 0x200000:
			return 4
		default:
			return 5
		}
	case FormatUTF16LE, FormatUTF16BE:
		if c >= 0x10000 {
			return 4
		}
		return 2
	default:
		return 4
	}
}

// appendChar appends c to dst in format f. The caller promotes the format
// first; appendChar assumes c is representable.
func appendChar(dst []byte, f Format, c rune) []byte {
	switch f {
	case FormatASCII:
		return append(dst, byte(c))
	case FormatUTF8:
		switch {
		case c < 0x80:
			return append(dst, byte(c))
		case c < 0x800:
			return append(dst, 0xC0|byte(c>>6), 0x80|byte(c)&0x3F)
		case c < 0x10000:
			return append(dst, 0xE0|byte(c>>12), 0x80|byte(c>>6)&0x3F, 0x80|byte(c)&0x3F)
		case c < 0x200000:
			return append(dst, 0xF0|byte(c>>18), 0x80|byte(c>>12)&0x3F, 0x80|byte(c>>6)&0x3F, 0x80|byte(c)&0x3F)
		default:
			return append(dst, 0xF8|byte(c>>24), 0x80|byte(c>>18)&0x3F, 0x80|byte(c>>12)&0x3F, 0x80|byte(c>>6)&0x3F, 0x80|byte(c)&0x3F)
		}
	case FormatUTF16LE, FormatUTF16BE:
		if c >= 0x10000 {
			c -= 0x10000
			hi := 0xD800 + (c >> 10)
			lo := 0xDC00 + (c & 0x3FF)
			return appendUnit16(appendUnit16(dst, f, uint16(hi)), f, uint16(lo))
		}
		return appendUnit16(dst, f, uint16(c))
	case FormatUTF32LE:
		return append(dst, byte(c), byte(c>>8), byte(c>>16), byte(c>>24))
	default: // FormatUTF32BE
		return append(dst, byte(c>>24), byte(c>>16), byte(c>>8), byte(c))
	}
}

func appendUnit16(dst []byte, f Format, u uint16) []byte {
	if f == FormatUTF16LE {
		return append(dst, byte(u), byte(u>>8))
	}
	return append(dst, byte(u>>8), byte(u))
}

func unit16(f Format, b []byte) uint16 {
	if f == FormatUTF16LE {
		return uint16(b[0]) | uint16(b[1])<<8
	}
	return uint16(b[0])<<8 | uint16(b[1])
}

// decodeChar decodes the character starting at b[0] and returns it with its
// byte length. It assumes b holds validated text in format f.
func decodeChar(f Format, b []byte) (rune, int) {
	switch f {
	case FormatASCII:
		return rune(b[0]), 1
	case FormatUTF8:
		lead := b[0]
		switch {
		case lead < 0x80:
			return rune(lead), 1
		case lead < 0xE0:
			return rune(lead&0x1F)<<6 | cont(b[1]), 2
		case lead < 0xF0:
			return rune(lead&0x0F)<<12 | cont(b[1])<<6 | cont(b[2]), 3
		case lead < 0xF8:
			return rune(lead&0x07)<<18 | cont(b[1])<<12 | cont(b[2])<<6 | cont(b[3]), 4
		default:
			return rune(lead&0x03)<<24 | cont(b[1])<<18 | cont(b[2])<<12 | cont(b[3])<<6 | cont(b[4]), 5
		}
	case FormatUTF16LE, FormatUTF16BE:
		u := unit16(f, b)
		if u >= 0xD800 && u < 0xDC00 {
			lo := unit16(f, b[2:])
			return 0x10000 + rune(u-0xD800)<<10 + rune(lo-0xDC00), 4
		}
		return rune(u), 2
	case FormatUTF32LE:
		return rune(b[0]) | rune(b[1])<<8 | rune(b[2])<<16 | rune(b[3])<<24, 4
	default: // FormatUTF32BE
		return rune(b[0])<<24 | rune(b[1])<<16 | rune(b[2])<<8 | rune(b[3]), 4
	}
}

func cont(b byte) rune {
	return rune(b & 0x3F)
}

// charLen returns the byte length of the character whose encoding starts at
// b[0], without decoding it.
func charLen(f Format, b []byte) int {
	switch f {
	case FormatASCII:
		return 1
	case FormatUTF8:
		lead := b[0]
		switch {
		case lead < 0x80:
			return 1
		case lead < 0xE0:
			return 2
		case lead < 0xF0:
			return 3
		case lead < 0xF8:
			return 4
		default:
			return 5
		}
	case FormatUTF16LE, FormatUTF16BE:
		u := unit16(f, b)
		if u >= 0xD800 && u < 0xDC00 {
			return 4
		}
		return 2
	default:
		return 4
	}
}

// charLenBefore returns the byte length of the character whose encoding ends
// just before offset end of b.
func charLenBefore(f Format, b []byte, end int) int {
	switch f {
	case FormatASCII:
		return 1
	case FormatUTF8:
		n := 1
		for b[end-n]&0xC0 == 0x80 {
			n++
		}
		return n
	case FormatUTF16LE, FormatUTF16BE:
		u := unit16(f, b[end-2:])
		if u >= 0xDC00 && u < 0xE000 {
			return 4
		}
		return 2
	default:
		return 4
	}
}

// validate scans data as format f, returning the character count and the
// widest coverage seen. Truncated sequences, lone surrogates, and values
// past MaxChar are format errors.
func validate(f Format, data []byte) (nchars int, cv Coverage, err error) {
	cv = CoverageASCII
	i := 0
	for i < len(data) {
		c, n, derr := decodeCharChecked(f, data[i:])
		if derr != nil {
			return 0, 0, fmt.Errorf("%w: byte %d: %v", ErrFormat, i, derr)
		}
		cv = maxCoverage(cv, coverageOf(c))
		i += n
		nchars++
	}
	if !f.covers(cv) {
		return 0, 0, fmt.Errorf("%w: %s content in %s data", ErrFormat, cv, f)
	}
	return nchars, cv, nil
}

// decodeCharChecked is decodeChar with full validation, used on untrusted
// external data.
func decodeCharChecked(f Format, b []byte) (rune, int, error) {
	switch f {
	case FormatASCII:
		if b[0] >= 0x80 {
			return 0, 0, fmt.Errorf("non-ASCII byte %#x", b[0])
		}
		return rune(b[0]), 1, nil
	case FormatUTF8:
		n := charLen(f, b)
		if b[0]&0xC0 == 0x80 {
			return 0, 0, fmt.Errorf("stray continuation byte %#x", b[0])
		}
		if len(b) < n {
			return 0, 0, fmt.Errorf("truncated %d-byte sequence", n)
		}
		for i := 1; i < n; i++ {
			if b[i]&0xC0 != 0x80 {
				return 0, 0, fmt.Errorf("bad continuation byte %#x", b[i])
			}
		}
		c, _ := decodeChar(f, b)
		if c > MaxChar {
			return 0, 0, fmt.Errorf("code point %#x past maximum", c)
		}
		if n > encodedLen(f, c) {
			return 0, 0, fmt.Errorf("overlong encoding of %#x", c)
		}
		if c >= 0xD800 && c < 0xE000 {
			return 0, 0, fmt.Errorf("encoded surrogate %#x", c)
		}
		return c, n, nil
	case FormatUTF16LE, FormatUTF16BE:
		if len(b) < 2 {
			return 0, 0, fmt.Errorf("truncated code unit")
		}
		u := unit16(f, b)
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if len(b) < 4 {
				return 0, 0, fmt.Errorf("truncated surrogate pair")
			}
			lo := unit16(f, b[2:])
			if lo < 0xDC00 || lo >= 0xE000 {
				return 0, 0, fmt.Errorf("unpaired high surrogate %#x", u)
			}
			return 0x10000 + rune(u-0xD800)<<10 + rune(lo-0xDC00), 4, nil
		case u >= 0xDC00 && u < 0xE000:
			return 0, 0, fmt.Errorf("unpaired low surrogate %#x", u)
		default:
			return rune(u), 2, nil
		}
	default:
		if len(b) < 4 {
			return 0, 0, fmt.Errorf("truncated code unit")
		}
		c, _ := decodeChar(f, b)
		if c < 0 || c > MaxChar {
			return 0, 0, fmt.Errorf("code point %#x out of range", c)
		}
		if c >= 0xD800 && c < 0xE000 {
			return 0, 0, fmt.Errorf("encoded surrogate %#x", c)
		}
		return c, 4, nil
	}
}
