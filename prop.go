package mtext

import (
	"fmt"
	"reflect"

	"github.com/textmesh/mtext/managed"
	"github.com/textmesh/mtext/symbol"
)

// PropFlags control how a text property behaves at interval boundaries and
// under edits.
type PropFlags uint8

const (
	// FrontSticky extends the interval over text inserted exactly at its
	// start boundary.
	FrontSticky PropFlags = 1 << iota

	// RearSticky extends the interval over text inserted exactly at its
	// end boundary.
	RearSticky

	// VolatileText drops the property when characters inside its range are
	// edited.
	VolatileText

	// VolatileAny additionally drops the property when another property
	// over any part of its range is attached or detached.
	VolatileAny

	// NoMerge prevents coalescing with adjacent properties holding the
	// same key and value.
	NoMerge
)

// TextProperty is a (key, value) pair attached to a half-open character
// range of an MText. Properties are managed objects: the owning text holds
// one reference while attached. The back-reference to the text is weak; a
// property does not keep its text alive.
type TextProperty struct {
	managed.RefCount

	key   *symbol.Symbol
	value any
	flags PropFlags

	start, end int
	text       *MText // nil while detached
}

// NewProperty creates a detached property with a reference count of one.
func NewProperty(key *symbol.Symbol, value any, flags PropFlags) *TextProperty {
	tp := &TextProperty{key: key, value: value, flags: flags}
	tp.Init(nil)
	return tp
}

// Key returns the property key.
func (tp *TextProperty) Key() *symbol.Symbol { return tp.key }

// Value returns the property value.
func (tp *TextProperty) Value() any { return tp.value }

// Flags returns the property's control bits.
func (tp *TextProperty) Flags() PropFlags { return tp.flags }

// Text returns the text the property is attached to, or nil.
func (tp *TextProperty) Text() *MText { return tp.text }

// Range returns the property's current character range.
func (tp *TextProperty) Range() (from, to int) { return tp.start, tp.end }

// covers reports whether pos lies inside the property's range.
func (tp *TextProperty) covers(pos int) bool {
	return tp.start <= pos && pos < tp.end
}

// AttachProperty attaches tp over characters [from, to). The text takes a
// reference on tp and on its value if the value is managed. Unless NoMerge
// is set, tp absorbs adjacent properties with the same key, value and flags.
func (m *MText) AttachProperty(tp *TextProperty, from, to int) error {
	if err := m.checkRange(from, to); err != nil {
		return err
	}
	if from == to {
		return fmt.Errorf("%w: empty range [%d, %d)", ErrRange, from, to)
	}
	if tp.text != nil {
		return fmt.Errorf("%w: property already attached", ErrDetached)
	}
	tp.start, tp.end = from, to
	tp.text = m
	tp.Ref()
	managed.RefValue(tp.value)
	if m.props == nil {
		m.props = make(map[*symbol.Symbol][]*TextProperty)
	}
	m.props[tp.key] = append(m.props[tp.key], tp)
	m.mergeAdjacent(tp)
	m.notifyVolatileAny(tp.start, tp.end, tp)
	return nil
}

// attachRaw attaches tp over a validated range without merging or volatile
// notification. Deserialization uses it to restore recorded intervals
// exactly as they were.
func (m *MText) attachRaw(tp *TextProperty, from, to int) {
	tp.start, tp.end = from, to
	tp.text = m
	tp.Ref()
	managed.RefValue(tp.value)
	if m.props == nil {
		m.props = make(map[*symbol.Symbol][]*TextProperty)
	}
	m.props[tp.key] = append(m.props[tp.key], tp)
}

// DetachProperty removes tp from the text, releasing the text's references.
func (m *MText) DetachProperty(tp *TextProperty) error {
	if tp.text != m {
		return ErrDetached
	}
	from, to := tp.start, tp.end
	m.detachQuiet(tp)
	m.notifyVolatileAny(from, to, nil)
	return nil
}

// detachQuiet removes tp without volatile notification; used both by
// DetachProperty and when dropping volatile properties, which must not
// cascade.
func (m *MText) detachQuiet(tp *TextProperty) {
	props := m.props[tp.key]
	for i, p := range props {
		if p == tp {
			m.props[tp.key] = append(props[:i], props[i+1:]...)
			break
		}
	}
	if len(m.props[tp.key]) == 0 {
		delete(m.props, tp.key)
	}
	tp.text = nil
	managed.UnrefValue(tp.value)
	tp.Unref()
}

// mergeAdjacent absorbs properties adjacent to tp that hold the same key,
// value and flags, unless either side carries NoMerge.
func (m *MText) mergeAdjacent(tp *TextProperty) {
	if tp.flags&NoMerge != 0 {
		return
	}
	for {
		var victim *TextProperty
		for _, p := range m.props[tp.key] {
			if p == tp || p.flags&NoMerge != 0 {
				continue
			}
			if !valuesEqual(p.value, tp.value) || p.flags != tp.flags {
				continue
			}
			if p.end == tp.start || p.start == tp.end {
				victim = p
				break
			}
		}
		if victim == nil {
			return
		}
		if victim.end == tp.start {
			tp.start = victim.start
		} else {
			tp.end = victim.end
		}
		m.detachQuiet(victim)
	}
}

// valuesEqual compares property values for merging. Values of uncomparable
// dynamic types (slices, maps, funcs) never compare equal, so intervals
// holding them simply do not coalesce.
func valuesEqual(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta != nil && !ta.Comparable() {
		return false
	}
	return a == b
}

// notifyVolatileAny drops VolatileAny properties overlapping [from, to),
// except the property whose change triggered the notification.
func (m *MText) notifyVolatileAny(from, to int, exclude *TextProperty) {
	var doomed []*TextProperty
	for _, props := range m.props {
		for _, p := range props {
			if p == exclude || p.flags&VolatileAny == 0 {
				continue
			}
			if p.start < to && from < p.end {
				doomed = append(doomed, p)
			}
		}
	}
	for _, p := range doomed {
		m.detachQuiet(p)
	}
}

// GetProp returns the topmost value of key covering pos. ok is false when no
// property of key covers pos, which is not an error.
func (m *MText) GetProp(pos int, key *symbol.Symbol) (any, bool) {
	props := m.props[key]
	for i := len(props) - 1; i >= 0; i-- {
		if props[i].covers(pos) {
			return props[i].value, true
		}
	}
	return nil, false
}

// GetPropValues returns every value of key covering pos, most recently
// pushed first.
func (m *MText) GetPropValues(pos int, key *symbol.Symbol) []any {
	props := m.props[key]
	var values []any
	for i := len(props) - 1; i >= 0; i-- {
		if props[i].covers(pos) {
			values = append(values, props[i].value)
		}
	}
	return values
}

// GetProperties returns the property objects of key covering pos, topmost
// first. The returned properties stay owned by the text.
func (m *MText) GetProperties(pos int, key *symbol.Symbol) []*TextProperty {
	props := m.props[key]
	var out []*TextProperty
	for i := len(props) - 1; i >= 0; i-- {
		if props[i].covers(pos) {
			out = append(out, props[i])
		}
	}
	return out
}

// PutProp sets value as the only value of key over [from, to), replacing
// whatever the range held. A nil value clears the range.
func (m *MText) PutProp(from, to int, key *symbol.Symbol, value any) error {
	if err := m.checkRange(from, to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	m.removeKeyRange(key, from, to)
	if value == nil {
		m.notifyVolatileAny(from, to, nil)
		return nil
	}
	tp := NewProperty(key, value, 0)
	defer tp.Unref() // the attach reference keeps it alive
	return m.AttachProperty(tp, from, to)
}

// PutPropValues replaces the value stack of key over [from, to) with the
// given values, bottom first.
func (m *MText) PutPropValues(from, to int, key *symbol.Symbol, values []any) error {
	if err := m.checkRange(from, to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	m.removeKeyRange(key, from, to)
	for _, v := range values {
		if err := m.PushProp(from, to, key, v); err != nil {
			return err
		}
	}
	m.notifyVolatileAny(from, to, nil)
	return nil
}

// PushProp pushes value on top of key's stack over [from, to). Pushed
// properties never auto-merge, preserving stack identity for a later pop.
func (m *MText) PushProp(from, to int, key *symbol.Symbol, value any) error {
	if err := m.checkRange(from, to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	tp := NewProperty(key, value, NoMerge)
	defer tp.Unref()
	return m.AttachProperty(tp, from, to)
}

// PopProp removes the topmost value of key from every position in
// [from, to). Properties partially covered by the range are split so that
// their parts outside the range survive.
func (m *MText) PopProp(from, to int, key *symbol.Symbol) error {
	if err := m.checkRange(from, to); err != nil {
		return err
	}
	pos := from
	for pos < to {
		props := m.props[key]
		var top *TextProperty
		for i := len(props) - 1; i >= 0; i-- {
			if props[i].covers(pos) {
				top = props[i]
				break
			}
		}
		if top == nil {
			// Skip to the next position any property of key starts at.
			next := to
			for _, p := range props {
				if p.start > pos && p.start < next {
					next = p.start
				}
			}
			pos = next
			continue
		}
		segEnd := to
		if top.end < segEnd {
			segEnd = top.end
		}
		m.removePropSpan(top, pos, segEnd)
		pos = segEnd
	}
	m.notifyVolatileAny(from, to, nil)
	return nil
}

// removePropSpan removes [from, to) from tp's range, detaching, shrinking
// or splitting as needed. from and to are known to lie within tp's range.
func (m *MText) removePropSpan(tp *TextProperty, from, to int) {
	switch {
	case tp.start == from && tp.end == to:
		m.detachQuiet(tp)
	case tp.start == from:
		tp.start = to
	case tp.end == to:
		tp.end = from
	default:
		// Split: the right remainder keeps the same stack depth.
		right := NewProperty(tp.key, tp.value, tp.flags)
		right.start, right.end = to, tp.end
		right.text = m
		managed.RefValue(right.value)
		tp.end = from
		m.insertAfter(tp, right)
	}
}

// insertAfter places np directly after tp in the stack order of their key.
func (m *MText) insertAfter(tp, np *TextProperty) {
	props := m.props[tp.key]
	for i, p := range props {
		if p == tp {
			props = append(props[:i+1], append([]*TextProperty{np}, props[i+1:]...)...)
			m.props[tp.key] = props
			return
		}
	}
}

// removeKeyRange clears every property of key from [from, to).
func (m *MText) removeKeyRange(key *symbol.Symbol, from, to int) {
	// Collect first: removal mutates the slice.
	var overlapping []*TextProperty
	for _, p := range m.props[key] {
		if p.start < to && from < p.end {
			overlapping = append(overlapping, p)
		}
	}
	for _, p := range overlapping {
		clipFrom, clipTo := from, to
		if p.start > clipFrom {
			clipFrom = p.start
		}
		if p.end < clipTo {
			clipTo = p.end
		}
		m.removePropSpan(p, clipFrom, clipTo)
	}
}

// PropRange extends pos to the interval governing it for key. With deep
// false the result is the range of the topmost property covering pos; with
// deep true it is the union of every stacked property of key connected to
// pos through overlap. ok is false when no property of key covers pos.
func (m *MText) PropRange(pos int, key *symbol.Symbol, deep bool) (from, to int, ok bool) {
	props := m.props[key]
	var top *TextProperty
	for i := len(props) - 1; i >= 0; i-- {
		if props[i].covers(pos) {
			top = props[i]
			break
		}
	}
	if top == nil {
		return 0, 0, false
	}
	from, to = top.start, top.end
	if !deep {
		return from, to, true
	}
	for changed := true; changed; {
		changed = false
		for _, p := range props {
			if p.start < to && from < p.end {
				if p.start < from {
					from = p.start
					changed = true
				}
				if p.end > to {
					to = p.end
					changed = true
				}
			}
		}
	}
	return from, to, true
}

// adjustForEdit is the single consistency hook run by every mutation
// primitive: del characters were removed at pos, then ins characters were
// inserted there. It shifts, shrinks, splits or drops intervals so that
// every property stays consistent with the edited text.
func (m *MText) adjustForEdit(pos, del, ins int) {
	if len(m.props) == 0 {
		return
	}
	delEnd := pos + del

	var doomed []*TextProperty
	for _, props := range m.props {
		for _, p := range props {
			// Volatility: the edit touches characters inside the range.
			if p.flags&(VolatileText|VolatileAny) != 0 {
				touched := del > 0 && pos < p.end && delEnd > p.start ||
					ins > 0 && pos > p.start && pos < p.end
				if touched {
					doomed = append(doomed, p)
					continue
				}
			}

			// A property that covered replaced characters stretches
			// over their replacement instead of being squeezed out.
			covered := del > 0 && ins > 0 && p.start < delEnd && p.end > pos

			if del > 0 {
				switch {
				case p.start >= delEnd:
					p.start -= del
				case p.start > pos:
					p.start = pos
				}
				switch {
				case p.end >= delEnd:
					p.end -= del
				case p.end > pos:
					p.end = pos
				}
				if p.start >= p.end && !covered {
					doomed = append(doomed, p)
					continue
				}
			}

			if ins > 0 {
				switch {
				case covered:
					// start <= pos <= end here; the insertion lands
					// inside the interval.
					p.end += ins
				case p.start > pos:
					p.start += ins
					p.end += ins
				case p.start == pos:
					if p.flags&FrontSticky != 0 {
						p.end += ins // absorb the new text
					} else {
						p.start += ins
						p.end += ins
					}
				case p.end > pos:
					p.end += ins // insertion strictly inside
				case p.end == pos:
					if p.flags&RearSticky != 0 {
						p.end += ins
					}
				}
			}
		}
	}
	for _, p := range doomed {
		m.detachQuiet(p)
	}

	// Deletion can leave two intervals of the same key flush against each
	// other; rejoin the ones that merging rules allow.
	if del > 0 {
		for _, props := range m.props {
			for _, p := range props {
				if p.text == m && (p.end == pos || p.start == pos) {
					m.mergeAdjacent(p)
				}
			}
		}
	}
}

// copyPropsFrom clones src's properties overlapping [from, to) onto m,
// shifted so that src character from lands at dstPos. Stack order within
// each key is preserved.
func (m *MText) copyPropsFrom(src *MText, from, to, dstPos int) {
	if src == nil || len(src.props) == 0 || from >= to {
		return
	}
	for key, props := range src.props {
		for _, p := range props {
			s, e := p.start, p.end
			if s < from {
				s = from
			}
			if e > to {
				e = to
			}
			if s >= e {
				continue
			}
			np := NewProperty(key, p.value, p.flags)
			_ = m.AttachProperty(np, s-from+dstPos, e-from+dstPos)
			np.Unref()
		}
	}
}
