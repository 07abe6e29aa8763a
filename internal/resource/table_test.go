package resource

import "testing"

func TestAddGetRemove(t *testing.T) {
	tbl := New()

	h := tbl.Add(42)

	got, ok := Get[int](tbl, h)
	if !ok || got != 42 {
		t.Fatalf("Get() = %v, %v; want 42, true", got, ok)
	}

	if !tbl.Remove(h) {
		t.Fatalf("Remove() = false; want true")
	}

	if tbl.Has(h) {
		t.Fatalf("Has() = true after Remove")
	}
}

func TestTakeConsumesOnce(t *testing.T) {
	tbl := New()
	h := tbl.Add("hello")

	got, ok := Take[string](tbl, h)
	if !ok || got != "hello" {
		t.Fatalf("Take() = %v, %v; want hello, true", got, ok)
	}

	if _, ok := Take[string](tbl, h); ok {
		t.Fatalf("second Take() succeeded; handle should be consumed")
	}
}

func TestGetWrongTypeFails(t *testing.T) {
	tbl := New()
	h := tbl.Add(123)

	if _, ok := Get[string](tbl, h); ok {
		t.Fatalf("Get() with wrong type succeeded")
	}
}

func TestHandlesAreUnique(t *testing.T) {
	tbl := New()
	seen := make(map[Handle]bool)

	for i := 0; i < 1000; i++ {
		h := tbl.Add(i)
		if seen[h] {
			t.Fatalf("duplicate handle %v", h)
		}
		seen[h] = true
	}
}

func TestLen(t *testing.T) {
	tbl := New()
	if tbl.Len() != 0 {
		t.Fatalf("Len() = %d; want 0", tbl.Len())
	}
	tbl.Add(1)
	tbl.Add(2)
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", tbl.Len())
	}
}
