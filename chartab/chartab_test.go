package chartab

import (
	"errors"
	"testing"
)

func TestLookupDefault(t *testing.T) {
	tbl := New("dflt")

	probes := []rune{0, 'a', 0x3042, 0x10FFFF, MaxChar}
	for _, c := range probes {
		if got := tbl.Lookup(c); got != "dflt" {
			t.Errorf("Lookup(%#x) on empty table = %v, want default", c, got)
		}
	}

	// Lookup stays total outside the range.
	if got := tbl.Lookup(-1); got != "dflt" {
		t.Errorf("Lookup(-1) = %v, want default", got)
	}
	if got := tbl.Lookup(MaxChar + 1); got != "dflt" {
		t.Errorf("Lookup(MaxChar+1) = %v, want default", got)
	}
}

func TestSetLookup(t *testing.T) {
	tbl := New(nil)

	points := []rune{0, 1, 'Z', 0x7F, 0x80, 0x3042, 0xFFFF, 0x10000, 0x1F600, MaxChar}
	for i, c := range points {
		if err := tbl.Set(c, i); err != nil {
			t.Fatalf("Set(%#x) failed: %v", c, err)
		}
	}
	for i, c := range points {
		if got := tbl.Lookup(c); got != i {
			t.Errorf("Lookup(%#x) = %v, want %d", c, got, i)
		}
	}

	// Neighbors keep the default.
	if got := tbl.Lookup(0x3043); got != nil {
		t.Errorf("Lookup(0x3043) = %v, want default nil", got)
	}
}

func TestSetOutOfRange(t *testing.T) {
	tbl := New(nil)
	if err := tbl.Set(MaxChar+1, 1); !errors.Is(err, ErrRange) {
		t.Errorf("Set past MaxChar = %v, want ErrRange", err)
	}
	if err := tbl.Set(-1, 1); !errors.Is(err, ErrRange) {
		t.Errorf("Set(-1) = %v, want ErrRange", err)
	}
	if err := tbl.SetRange(10, 5, 1); !errors.Is(err, ErrRange) {
		t.Errorf("SetRange with from > to = %v, want ErrRange", err)
	}
}

func TestSetRange(t *testing.T) {
	tbl := New(0)

	// Spans several whole pages plus partial pages on both ends.
	if err := tbl.SetRange(0x100, 0x2FFF, 7); err != nil {
		t.Fatal(err)
	}

	if got := tbl.Lookup(0xFF); got != 0 {
		t.Errorf("before range: got %v, want default", got)
	}
	for _, c := range []rune{0x100, 0x1FF, 0x200, 0x1000, 0x2FFF} {
		if got := tbl.Lookup(c); got != 7 {
			t.Errorf("Lookup(%#x) = %v, want 7", c, got)
		}
	}
	if got := tbl.Lookup(0x3000); got != 0 {
		t.Errorf("after range: got %v, want default", got)
	}
}

func TestSetRangeBackToDefault(t *testing.T) {
	tbl := New(0)
	if err := tbl.SetRange(0, 0xFFFF, 1); err != nil {
		t.Fatal(err)
	}
	if err := tbl.SetRange(0x100, 0x1FF, 0); err != nil {
		t.Fatal(err)
	}

	var runs [][3]any
	tbl.Map(func(from, to rune, v any) bool {
		runs = append(runs, [3]any{from, to, v})
		return true
	})

	want := [][3]any{
		{rune(0), rune(0xFF), 1},
		{rune(0x200), rune(0xFFFF), 1},
	}
	if len(runs) != len(want) {
		t.Fatalf("got %d runs %v, want %d", len(runs), runs, len(want))
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Errorf("run %d = %v, want %v", i, runs[i], want[i])
		}
	}
}

func TestMapMaximalRuns(t *testing.T) {
	tbl := New(nil)
	tbl.SetRange(0x41, 0x5A, "upper")
	tbl.SetRange(0x5B, 0x60, "punct")
	tbl.SetRange(0x61, 0x7A, "lower")
	tbl.Set(0x1F600, "emoji")

	var runs [][3]any
	tbl.Map(func(from, to rune, v any) bool {
		runs = append(runs, [3]any{from, to, v})
		return true
	})

	want := [][3]any{
		{rune(0x41), rune(0x5A), "upper"},
		{rune(0x5B), rune(0x60), "punct"},
		{rune(0x61), rune(0x7A), "lower"},
		{rune(0x1F600), rune(0x1F600), "emoji"},
	}
	if len(runs) != len(want) {
		t.Fatalf("got runs %v, want %v", runs, want)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Errorf("run %d = %v, want %v", i, runs[i], want[i])
		}
	}
}

func TestMapRunAcrossPageBoundary(t *testing.T) {
	tbl := New(nil)
	// One value spanning a dense page tail, several uniform pages, and a
	// dense page head must come back as a single run.
	tbl.SetRange(0x1F0, 0xA0F, "x")

	var runs int
	tbl.Map(func(from, to rune, v any) bool {
		runs++
		if from != 0x1F0 || to != 0xA0F || v != "x" {
			t.Errorf("run = [%#x, %#x] %v, want [0x1f0, 0xa0f] x", from, to, v)
		}
		return true
	})
	if runs != 1 {
		t.Errorf("got %d runs, want 1", runs)
	}
}

func TestMapEarlyStop(t *testing.T) {
	tbl := New(nil)
	tbl.Set(1, "a")
	tbl.Set(3, "b")
	tbl.Set(5, "c")

	var calls int
	tbl.Map(func(_, _ rune, _ any) bool {
		calls++
		return calls < 2
	})
	if calls != 2 {
		t.Errorf("Map made %d calls after early stop, want 2", calls)
	}
}

func TestBounds(t *testing.T) {
	tbl := New(nil)
	if _, _, ok := tbl.Bounds(); ok {
		t.Error("empty table should report no bounds")
	}

	tbl.Set(0x3042, 1)
	tbl.Set(0x10348, 2)
	tbl.Set(0x7F, 3)

	lo, hi, ok := tbl.Bounds()
	if !ok || lo != 0x7F || hi != 0x10348 {
		t.Errorf("Bounds = %#x, %#x, %v; want 0x7f, 0x10348, true", lo, hi, ok)
	}
}

func TestSetRoundTripProperty(t *testing.T) {
	// lookup(set(table, c, v), c) == v and lookup elsewhere == default.
	tbl := New("def")
	const c = 0x2460
	tbl.Set(c, "v")
	if got := tbl.Lookup(c); got != "v" {
		t.Errorf("Lookup(set(c)) = %v, want v", got)
	}
	for _, other := range []rune{c - 1, c + 1, 0, MaxChar} {
		if got := tbl.Lookup(other); got != "def" {
			t.Errorf("Lookup(%#x) = %v, want default", other, got)
		}
	}
}
