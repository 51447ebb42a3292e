package charprop

import (
	"errors"
	"testing"

	"github.com/textmesh/mtext/chartab"
	"github.com/textmesh/mtext/symbol"
)

func TestBuiltinsDefined(t *testing.T) {
	reg := NewRegistry()

	for _, name := range []string{
		PropName, PropCategory, PropCombiningClass, PropBidiCategory,
		PropSimpleFold, PropFullFold, PropScript,
	} {
		key, ok := reg.Symbols().Lookup(name)
		if !ok {
			t.Fatalf("built-in key %q not interned", name)
		}
		if _, ok := reg.KeyType(key); !ok {
			t.Errorf("built-in key %q not defined", name)
		}
	}

	ccKey, _ := reg.Symbols().Lookup(PropCombiningClass)
	v, err := reg.Get('a', ccKey)
	if err != nil {
		t.Fatal(err)
	}
	if v != UnsetInt {
		t.Errorf("integer-typed default = %v, want UnsetInt", v)
	}

	nameKey, _ := reg.Symbols().Lookup(PropName)
	v, err = reg.Get('a', nameKey)
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("non-integer default = %v, want nil", v)
	}
}

func TestDefineGetPut(t *testing.T) {
	reg := NewRegistry()
	key, err := reg.Define("vowel-class", TypeInteger)
	if err != nil {
		t.Fatal(err)
	}

	if err := reg.Put('a', key, 1); err != nil {
		t.Fatal(err)
	}
	v, err := reg.Get('a', key)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("Get after Put = %v, want 1", v)
	}

	// Same type: idempotent; different type: rejected.
	again, err := reg.Define("vowel-class", TypeInteger)
	if err != nil || again != key {
		t.Errorf("redefining with same type should return the same key")
	}
	if _, err := reg.Define("vowel-class", TypeString); !errors.Is(err, ErrRedefined) {
		t.Errorf("redefining with different type = %v, want ErrRedefined", err)
	}
}

func TestUnknownKey(t *testing.T) {
	reg := NewRegistry()
	other := symbol.NewTable().Intern("stray")

	if _, err := reg.Get('a', other); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get with undefined key = %v, want ErrUnknownKey", err)
	}
	if err := reg.Put('a', other, 1); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Put with undefined key = %v, want ErrUnknownKey", err)
	}
}

func TestLazyResolution(t *testing.T) {
	loads := 0
	resolver := func(tag1, tag2, tag3, tag4 string) (Handle, bool) {
		if tag1 == TableTag && tag2 == "integer" && tag3 == "width" {
			return "width-handle", true
		}
		return nil, false
	}
	loader := func(h Handle) (*chartab.Table, error) {
		loads++
		if h != "width-handle" {
			t.Errorf("loader got handle %v, want width-handle", h)
		}
		tbl := chartab.New(UnsetInt)
		tbl.SetRange(0x1100, 0x115F, 2)
		return tbl, nil
	}

	reg := NewRegistry(WithDatabase(resolver, loader))
	key, err := reg.Define("width", TypeInteger)
	if err != nil {
		t.Fatal(err)
	}
	if loads != 0 {
		t.Fatal("loader ran eagerly at definition time")
	}

	v, err := reg.Get(0x1100, key)
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Errorf("Get from lazily loaded table = %v, want 2", v)
	}

	reg.Get(0x1101, key)
	reg.Table(key)
	if loads != 1 {
		t.Errorf("loader ran %d times, want exactly 1", loads)
	}
}

func TestLoaderFailureIsSticky(t *testing.T) {
	loads := 0
	reg := NewRegistry(WithDatabase(
		func(_, _, _, _ string) (Handle, bool) { return "h", true },
		func(Handle) (*chartab.Table, error) {
			loads++
			return nil, errors.New("disk gone")
		},
	))

	key, err := reg.Define("doomed", TypeSymbol)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := reg.Get('a', key); !errors.Is(err, ErrDatabase) {
		t.Errorf("Get after load failure = %v, want ErrDatabase", err)
	}
	if _, err := reg.Table(key); !errors.Is(err, ErrDatabase) {
		t.Errorf("Table after load failure = %v, want ErrDatabase", err)
	}
	if loads != 1 {
		t.Errorf("failed loader ran %d times, want exactly 1", loads)
	}
}

func TestNoDatabaseEntryCreatesEmptyTable(t *testing.T) {
	reg := NewRegistry(WithDatabase(
		func(_, _, _, _ string) (Handle, bool) { return nil, false },
		func(Handle) (*chartab.Table, error) {
			t.Fatal("loader must not run for keys without a database entry")
			return nil, nil
		},
	))

	key, err := reg.Define("fresh", TypeString)
	if err != nil {
		t.Fatal(err)
	}
	v, err := reg.Get('a', key)
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("fresh table lookup = %v, want nil default", v)
	}
}
