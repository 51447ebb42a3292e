package symbol

import "testing"

func TestInternIdentity(t *testing.T) {
	tbl := NewTable()

	a := tbl.Intern("language")
	b := tbl.Intern("language")
	if a != b {
		t.Error("interning the same name twice should return the same symbol")
	}
	if a.Name() != "language" {
		t.Errorf("Name() = %q, want %q", a.Name(), "language")
	}

	c := tbl.Intern("script")
	if a == c {
		t.Error("distinct names should intern to distinct symbols")
	}
	if tbl.Len() != 2 {
		t.Errorf("table has %d symbols, want 2", tbl.Len())
	}
}

func TestLookup(t *testing.T) {
	tbl := NewTable()
	if _, ok := tbl.Lookup("missing"); ok {
		t.Error("Lookup of never-interned name should fail")
	}

	s := tbl.Intern("name")
	got, ok := tbl.Lookup("name")
	if !ok || got != s {
		t.Error("Lookup should return the interned symbol")
	}
}

func TestSymbolProperties(t *testing.T) {
	tbl := NewTable()
	s := tbl.Intern("face")
	key := tbl.Intern("serializer")

	if _, ok := s.Get(key); ok {
		t.Error("unset property should not be found")
	}

	s.Put(key, 42)
	v, ok := s.Get(key)
	if !ok || v != 42 {
		t.Errorf("Get after Put = %v, %v; want 42, true", v, ok)
	}

	s.Put(key, "replaced")
	v, _ = s.Get(key)
	if v != "replaced" {
		t.Errorf("Put should replace, got %v", v)
	}
}

func TestPlistOrder(t *testing.T) {
	tbl := NewTable()
	k1 := tbl.Intern("one")
	k2 := tbl.Intern("two")
	k3 := tbl.Intern("three")

	p := NewPlist()
	p.Put(k1, 1)
	p.Put(k2, 2)
	p.Put(k3, 3)

	var order []*Symbol
	p.Each(func(key *Symbol, _ any) bool {
		order = append(order, key)
		return true
	})
	want := []*Symbol{k1, k2, k3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("iteration order %v, want insertion order", order)
		}
	}
}

func TestPlistPushPop(t *testing.T) {
	tbl := NewTable()
	k := tbl.Intern("key")

	p := NewPlist()
	p.Put(k, "bottom")
	p.Push(k, "top")

	if v, _ := p.Get(k); v != "top" {
		t.Errorf("Get after Push = %v, want shadowing entry", v)
	}

	v, ok := p.Pop(k)
	if !ok || v != "top" {
		t.Errorf("Pop = %v, %v; want top, true", v, ok)
	}
	if v, _ := p.Get(k); v != "bottom" {
		t.Errorf("Get after Pop = %v, want bottom", v)
	}

	p.Pop(k)
	if _, ok := p.Pop(k); ok {
		t.Error("Pop on empty key should fail")
	}
}
