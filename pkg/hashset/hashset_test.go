package hashset

import "testing"

func TestSet(t *testing.T) {
	s := NewSet[string]()
	for _, v := range []string{"kalshi", "polymarket", "kalshi"} {
		s.Set(v)
	}
	if len(s) != 2 {
		t.Errorf("len = %d, want 2", len(s))
	}
	if !s.Has("kalshi") || s.Has("predictit") {
		t.Errorf("Has() = %v/%v, want true/false", s.Has("kalshi"), s.Has("predictit"))
	}
	s.Delete("kalshi")
	if s.Has("kalshi") {
		t.Error("Delete() left the value in the set")
	}
	s.Delete("absent")
}
