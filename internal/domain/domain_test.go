package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSessionKeyRoundTrip(t *testing.T) {
	cases := []SessionKey{
		CanonicalKey("s1", "exam-1"),
		LegacyKey("exam-1"),
	}
	for _, key := range cases {
		got := ParseSessionKey(key.String())
		if got != key {
			t.Fatalf("parse(%q) = %+v, want %+v", key.String(), got, key)
		}
	}
	if CanonicalKey("s1", "e1").String() == LegacyKey("e1").String() {
		t.Fatalf("canonical and legacy keys must not collide")
	}
}

func TestCodeUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("purchase exam-1: %w", ErrInsufficientBalance)
	if got := Code(err); got != CodeInsufficientBalance {
		t.Fatalf("expected %s, got %s", CodeInsufficientBalance, got)
	}
	if got := Code(errors.New("boom")); got != CodeInternal {
		t.Fatalf("expected INTERNAL, got %s", got)
	}
	if got := Code(nil); got != "" {
		t.Fatalf("expected empty code for nil, got %s", got)
	}
}

func TestDifficultyMultiplier(t *testing.T) {
	cases := map[Difficulty]float64{
		DifficultyEasy:   1.0,
		DifficultyMedium: 1.5,
		DifficultyHard:   2.0,
		"medium":         1.5,
		"HARD":           2.0,
		"":               1.0,
	}
	for d, want := range cases {
		if got := d.Multiplier(); got != want {
			t.Fatalf("%q multiplier = %v, want %v", d, got, want)
		}
	}
}

func TestContestDrawn(t *testing.T) {
	c := PrizeContest{Active: true}
	if c.Drawn() {
		t.Fatalf("active contest is not drawn")
	}
	c.Active = false
	c.WinnerID = "s1"
	if !c.Drawn() {
		t.Fatalf("inactive contest with winner is drawn")
	}
}
