package vocabulary

import "testing"

func TestStaticDefineIsIdempotent(t *testing.T) {
	v := NewStatic()
	id1 := v.Define("urn:pion:status", TypeInt)
	id2 := v.Define("urn:pion:status", TypeInt)
	if id1 != id2 {
		t.Errorf("Define should return the same id on repeat calls: %d != %d", id1, id2)
	}
}

func TestStaticFindTerm(t *testing.T) {
	v := NewStatic()
	id := v.Define("urn:pion:method", TypeString)
	got, ok := v.FindTerm("urn:pion:method")
	if !ok || got != id {
		t.Errorf("FindTerm = (%d,%v), want (%d,true)", got, ok, id)
	}
	if _, ok := v.FindTerm("urn:pion:unknown"); ok {
		t.Error("expected ok=false for an undefined URI")
	}
}

func TestStaticTermType(t *testing.T) {
	v := NewStatic()
	id := v.Define("urn:pion:cached", TypeBool)
	if got := v.TermType(id); got != TypeBool {
		t.Errorf("TermType = %v, want TypeBool", got)
	}
	if got := v.TermType(999); got != TypeUnknown {
		t.Errorf("TermType for unknown id = %v, want TypeUnknown", got)
	}
}
