package reactor

import "testing"

func TestEventSetGetAndOrder(t *testing.T) {
	ev := NewEvent()
	ev.Set(3, "third")
	ev.Set(1, "first")
	ev.Set(3, "third-updated")

	v, ok := ev.Get(3)
	if !ok || v != "third-updated" {
		t.Errorf("Get(3) = (%v,%v)", v, ok)
	}
	if _, ok := ev.Get(99); ok {
		t.Error("expected Get on an unset term to report ok=false")
	}

	fields := ev.Fields()
	if len(fields) != 2 || fields[0] != 3 || fields[1] != 1 {
		t.Errorf("Fields() = %v, want insertion order [3 1]", fields)
	}
}

func TestEventRefCounting(t *testing.T) {
	ev := NewEvent()
	if ev.RefCount() != 1 {
		t.Fatalf("RefCount() = %d, want 1", ev.RefCount())
	}
	ev.Retain()
	if ev.RefCount() != 2 {
		t.Fatalf("RefCount() = %d, want 2", ev.RefCount())
	}
	if got := ev.Release(); got != 1 {
		t.Errorf("Release() = %d, want 1", got)
	}
	if got := ev.Release(); got != 0 {
		t.Errorf("Release() = %d, want 0", got)
	}
}

func TestEventFieldsIsACopy(t *testing.T) {
	ev := NewEvent()
	ev.Set(1, "a")
	fields := ev.Fields()
	fields[0] = 999
	if got := ev.Fields()[0]; got != 1 {
		t.Errorf("mutating the returned slice leaked into the event: got %d", got)
	}
}
