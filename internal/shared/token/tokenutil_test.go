package tokenutil

import "testing"

func TestMain(m *testing.M) {
	DisableEncoding()
	m.Run()
}

func TestEstimateFast_Empty(t *testing.T) {
	if got := EstimateFast("   \n\t  "); got != 0 {
		t.Errorf("EstimateFast(whitespace) = %d, want 0", got)
	}
}

func TestEstimateFast_MinWordCount(t *testing.T) {
	// 4 words, 7 runes: runes/4=1 but word count wins.
	if got := EstimateFast("a b c d"); got != 4 {
		t.Errorf("EstimateFast(\"a b c d\") = %d, want 4", got)
	}
}

func TestEstimateFast_LongWord(t *testing.T) {
	if got := EstimateFast("abcdefghijklmnop"); got != 4 {
		t.Errorf("EstimateFast(16 runes) = %d, want 4", got)
	}
}

func TestEstimateDelta(t *testing.T) {
	if got := EstimateDelta(""); got != 0 {
		t.Errorf("EstimateDelta(\"\") = %d, want 0", got)
	}
	if got := EstimateDelta(" "); got != 1 {
		t.Errorf("EstimateDelta(space) = %d, want 1", got)
	}
	if got := EstimateDelta("hello there general"); got != 4 {
		t.Errorf("EstimateDelta(19 runes) = %d, want 4", got)
	}
}
