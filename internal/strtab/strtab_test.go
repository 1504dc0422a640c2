package strtab

import "testing"

func TestAddAndFind(t *testing.T) {
	tab := New()
	tab.Add("ABC.gco")
	tab.Add("part_two.gco")

	tests := []struct {
		query string
		want  int
	}{
		{"abc.gco", 0},
		{"ABC.GCO", 0},
		{"PART_TWO.GCO", 1},
		{"nope.gco", -1},
	}
	for _, tt := range tests {
		if got := tab.FindCaseInsensitive(tt.query); got != tt.want {
			t.Errorf("FindCaseInsensitive(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestFindCaseInsensitiveFirstMatchWins(t *testing.T) {
	tab := New()
	tab.Add("Dup.gco")
	tab.Add("DUP.GCO")

	if got := tab.FindCaseInsensitive("dup.gco"); got != 0 {
		t.Errorf("FindCaseInsensitive = %d, want 0 (first match)", got)
	}
}

func TestRemoveShiftsTail(t *testing.T) {
	tab := New()
	tab.Add("a")
	tab.Add("b")
	tab.Add("c")
	tab.Remove(1)

	if got := tab.All(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("All() after Remove(1) = %v, want [a c]", got)
	}
}

func TestGrowBeyondInitialChunk(t *testing.T) {
	tab := New()
	for i := 0; i < growChunk+3; i++ {
		tab.Add("x")
	}
	if got := tab.Len(); got != growChunk+3 {
		t.Errorf("Len() = %d, want %d", got, growChunk+3)
	}
}

func TestResetEmptiesWithoutPanicking(t *testing.T) {
	tab := New()
	tab.Add("one")
	tab.Reset()
	if tab.Len() != 0 {
		t.Errorf("Len() after Reset() = %d, want 0", tab.Len())
	}
	if got := tab.FindCaseInsensitive("one"); got != -1 {
		t.Errorf("FindCaseInsensitive after Reset() = %d, want -1", got)
	}
}
