package mtext

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/textmesh/mtext/symbol"
)

// Serialization errors.
var (
	ErrNoSerializer   = errors.New("mtext: no serializer registered for key")
	ErrNoDeserializer = errors.New("mtext: no deserializer registered for key")
)

// Serializer flattens one property value into bytes. Deserializer is its
// inverse. A pair is registered per property key; keys without a pair are
// skipped by Encode and rejected by Decode.
type (
	Serializer   func(value any) ([]byte, error)
	Deserializer func(data []byte) (any, error)
)

// Codec round-trips a text together with its property-tagged ranges through
// a byte representation. The wire format is a canonically encoded CBOR
// structure: the character content, then per key an ordered list of
// (range, flags, payload) records in stack order, bottom first.
type Codec struct {
	symbols       *symbol.Table
	serializers   map[*symbol.Symbol]Serializer
	deserializers map[*symbol.Symbol]Deserializer
}

// NewCodec creates a codec interning keys in symbols.
func NewCodec(symbols *symbol.Table) *Codec {
	return &Codec{
		symbols:       symbols,
		serializers:   make(map[*symbol.Symbol]Serializer),
		deserializers: make(map[*symbol.Symbol]Deserializer),
	}
}

// Register installs the serializer pair for a property key.
func (cd *Codec) Register(key *symbol.Symbol, ser Serializer, des Deserializer) {
	cd.serializers[key] = ser
	cd.deserializers[key] = des
}

// Canonical encoding keeps the wire form deterministic, so equal texts
// serialize to equal bytes.
var cborEnc cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborEnc = em
}

type wireText struct {
	Format   uint8          `cbor:"1,keyasint"`
	Chars    []byte         `cbor:"2,keyasint"`
	Props    []wireKeyProps `cbor:"3,keyasint,omitempty"`
}

type wireKeyProps struct {
	Key       string         `cbor:"1,keyasint"`
	Intervals []wireInterval `cbor:"2,keyasint"`
}

type wireInterval struct {
	Start   int    `cbor:"1,keyasint"`
	End     int    `cbor:"2,keyasint"`
	Flags   uint8  `cbor:"3,keyasint"`
	Payload []byte `cbor:"4,keyasint"`
}

// Encode serializes m and the properties under the given keys. Keys with no
// registered serializer are an error; pass only the keys to persist. With
// no keys given, every key that has a registered serializer is encoded.
func (cd *Codec) Encode(m *MText, keys ...*symbol.Symbol) ([]byte, error) {
	if len(keys) == 0 {
		for key := range m.props {
			if _, ok := cd.serializers[key]; ok {
				keys = append(keys, key)
			}
		}
		// Deterministic key order for the default set.
		for i := 1; i < len(keys); i++ {
			for j := i; j > 0 && keys[j-1].Name() > keys[j].Name(); j-- {
				keys[j-1], keys[j] = keys[j], keys[j-1]
			}
		}
	}

	wt := wireText{Format: uint8(m.format), Chars: append([]byte(nil), m.buf...)}
	for _, key := range keys {
		ser, ok := cd.serializers[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoSerializer, key)
		}
		props := m.props[key]
		if len(props) == 0 {
			continue
		}
		kp := wireKeyProps{Key: key.Name()}
		for _, p := range props { // bottom of the stack first
			payload, err := ser(p.value)
			if err != nil {
				return nil, fmt.Errorf("serializing %s at [%d, %d): %w", key, p.start, p.end, err)
			}
			kp.Intervals = append(kp.Intervals, wireInterval{
				Start:   p.start,
				End:     p.end,
				Flags:   uint8(p.flags),
				Payload: payload,
			})
		}
		wt.Props = append(wt.Props, kp)
	}
	return cborEnc.Marshal(wt)
}

// Decode reconstructs a text and its properties from Encode's output.
// Property stacks are rebuilt bottom-up, so stack order and ranges match
// the original exactly.
func (cd *Codec) Decode(data []byte) (*MText, error) {
	var wt wireText
	if err := cbor.Unmarshal(data, &wt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if wt.Format > uint8(FormatUTF32BE) {
		return nil, fmt.Errorf("%w: unknown format tag %d", ErrFormat, wt.Format)
	}
	ext, err := FromExternal(wt.Chars, Format(wt.Format))
	if err != nil {
		return nil, err
	}
	m := ext.Dup()
	ext.Unref()

	for _, kp := range wt.Props {
		key := cd.symbols.Intern(kp.Key)
		des, ok := cd.deserializers[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoDeserializer, key)
		}
		for _, iv := range kp.Intervals {
			value, err := des(iv.Payload)
			if err != nil {
				return nil, fmt.Errorf("deserializing %s at [%d, %d): %w", key, iv.Start, iv.End, err)
			}
			if iv.Start < 0 || iv.Start >= iv.End || iv.End > m.Len() {
				return nil, fmt.Errorf("%w: %s interval [%d, %d) of %d", ErrRange, key, iv.Start, iv.End, m.Len())
			}
			// Raw attachment: the recorded intervals are restored
			// verbatim, with no re-merging and no volatile
			// notification.
			tp := NewProperty(key, value, PropFlags(iv.Flags))
			m.attachRaw(tp, iv.Start, iv.End)
			tp.Unref()
		}
	}
	return m, nil
}
