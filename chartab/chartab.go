// Package chartab implements a sparse table from code point to value.
//
// The table is a total function over 0..MaxChar: Lookup always returns a
// value, falling back to a per-table default for unset positions. Storage is
// a two-level page trie keyed by the high and low bits of the code point, so
// memory use is proportional to the number of distinct pages touched, not to
// the size of the code-point space. Pages whose entries all share one value
// are kept in a compact uniform representation, which SetRange exploits for
// large runs.
//
// Values must be comparable with ==; the library stores symbols, strings,
// integers and pointers.
package chartab

import (
	"errors"
	"fmt"
)

// MaxChar is the largest code point a table can hold. It extends past the
// Unicode scalar range to cover the library's full extended range.
const MaxChar rune = 0x3FFFFF

const (
	pageBits  = 9
	pageSize  = 1 << pageBits   // 512 code points per page
	pageMask  = pageSize - 1
	pageCount = (int(MaxChar) + 1) >> pageBits // 8192 pages
)

// ErrRange indicates a code point outside 0..MaxChar.
var ErrRange = errors.New("chartab: code point out of range")

// page holds the values for one aligned block of pageSize code points.
// A uniform page stores a single shared value; a dense page stores one slot
// per code point. A nil page in the directory means the whole block holds
// the table default.
type page struct {
	uniform bool
	value   any   // shared value when uniform
	slots   []any // len pageSize when dense
}

// Table is a sparse code-point table.
type Table struct {
	def   any
	pages [pageCount]*page
}

// New creates a table whose every position holds def.
func New(def any) *Table {
	return &Table{def: def}
}

// Default returns the value reported for unset positions.
func (t *Table) Default() any {
	return t.def
}

// Lookup returns the value at c. Positions outside 0..MaxChar report the
// default, keeping the function total.
func (t *Table) Lookup(c rune) any {
	if c < 0 || c > MaxChar {
		return t.def
	}
	p := t.pages[c>>pageBits]
	if p == nil {
		return t.def
	}
	if p.uniform {
		return p.value
	}
	return p.slots[c&pageMask]
}

// Set assigns value at c.
func (t *Table) Set(c rune, value any) error {
	if c < 0 || c > MaxChar {
		return fmt.Errorf("%w: %#x", ErrRange, c)
	}
	pi := c >> pageBits
	p := t.pages[pi]
	switch {
	case p == nil:
		if value == t.def {
			return nil
		}
		p = &page{uniform: true, value: t.def}
		t.pages[pi] = p
		fallthrough
	case p.uniform:
		if value == p.value {
			return nil
		}
		p.spread()
	}
	p.slots[c&pageMask] = value
	return nil
}

// SetRange assigns value to every position in from..to inclusive.
func (t *Table) SetRange(from, to rune, value any) error {
	if from < 0 || to > MaxChar || from > to {
		return fmt.Errorf("%w: %#x..%#x", ErrRange, from, to)
	}
	for c := from; c <= to; {
		pageStart := c &^ rune(pageMask)
		pageEnd := pageStart + pageSize - 1
		if c == pageStart && to >= pageEnd {
			// Whole page: collapse to uniform.
			pi := c >> pageBits
			if value == t.def {
				t.pages[pi] = nil
			} else {
				t.pages[pi] = &page{uniform: true, value: value}
			}
			c = pageEnd + 1
			continue
		}
		end := pageEnd
		if to < end {
			end = to
		}
		for ; c <= end; c++ {
			if err := t.Set(c, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// spread converts a uniform page to its dense representation.
func (p *page) spread() {
	slots := make([]any, pageSize)
	for i := range slots {
		slots[i] = p.value
	}
	p.uniform = false
	p.value = nil
	p.slots = slots
}

// Map calls fn once per maximal run of consecutive positions sharing a
// non-default value, in ascending code-point order. fn receives the
// inclusive bounds of the run and its value; returning false stops the walk.
func (t *Table) Map(fn func(from, to rune, value any) bool) {
	var (
		runActive bool
		runFrom   rune
		runVal    any
	)
	flush := func(end rune) bool {
		if !runActive {
			return true
		}
		runActive = false
		return fn(runFrom, end, runVal)
	}

	for pi := 0; pi < pageCount; pi++ {
		p := t.pages[pi]
		base := rune(pi) << pageBits
		if p == nil || (p.uniform && p.value == t.def) {
			if !flush(base - 1) {
				return
			}
			continue
		}
		if p.uniform {
			if runActive && runVal != p.value {
				if !flush(base - 1) {
					return
				}
			}
			if !runActive {
				runActive = true
				runFrom = base
				runVal = p.value
			}
			continue
		}
		for i := 0; i < pageSize; i++ {
			c := base + rune(i)
			v := p.slots[i]
			if v == t.def {
				if !flush(c - 1) {
					return
				}
				continue
			}
			if runActive && v != runVal {
				if !flush(c - 1) {
					return
				}
			}
			if !runActive {
				runActive = true
				runFrom = c
				runVal = v
			}
		}
	}
	flush(MaxChar)
}

// Bounds returns the smallest and largest code points holding a non-default
// value. ok is false when the table is entirely default.
func (t *Table) Bounds() (lo, hi rune, ok bool) {
	t.Map(func(from, to rune, _ any) bool {
		if !ok {
			lo = from
			ok = true
		}
		hi = to
		return true
	})
	return lo, hi, ok
}
