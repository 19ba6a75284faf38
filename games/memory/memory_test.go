package memory

import (
	"errors"
	"math/rand/v2"
	"testing"
)

var fixedDeck = Deck{0, 1, 0, 1, 2, 3, 2, 3, 4, 5, 4, 5, 6, 7, 6, 7}

func newFixed(t *testing.T) *Game {
	t.Helper()

	g, err := NewFromDeck(fixedDeck)
	if err != nil {
		t.Fatalf("NewFromDeck: %v", err)
	}

	return g
}

func assertFresh(t *testing.T, g *Game) {
	t.Helper()

	if err := g.Deck().Validate(); err != nil {
		t.Errorf("deck invalid: %v", err)
	}
	if n := len(g.Flipped()); n != 0 {
		t.Errorf("expected no flipped cards, got %d", n)
	}
	if n := len(g.Matched()); n != 0 {
		t.Errorf("expected no matched cards, got %d", n)
	}
	if g.Attempts() != 0 || g.Matches() != 0 {
		t.Errorf("expected zero counters, got attempts=%d matches=%d", g.Attempts(), g.Matches())
	}
	if g.Over() {
		t.Error("fresh game reports over")
	}
}

// assertInvariants checks the properties that hold in every reachable state.
func assertInvariants(t *testing.T, g *Game) {
	t.Helper()

	flipped := g.Flipped()
	if len(flipped) > 2 {
		t.Fatalf("flipped set too large: %v", flipped)
	}
	for _, pos := range flipped {
		if g.IsMatched(pos) {
			t.Fatalf("position %d is both flipped and matched", pos)
		}
	}

	matched := g.Matched()
	if len(matched)%2 != 0 {
		t.Fatalf("matched set has odd size %d", len(matched))
	}
	if len(matched) != 2*g.Matches() {
		t.Fatalf("matched set size %d, want %d", len(matched), 2*g.Matches())
	}
	if g.Over() != (g.Matches() == Pairs) {
		t.Fatalf("Over()=%v with %d matches", g.Over(), g.Matches())
	}
}

func TestDeckValidate(t *testing.T) {
	tests := []struct {
		name  string
		deck  Deck
		valid bool
	}{
		{"ordered", Deck{0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7}, true},
		{"scenario", fixedDeck, true},
		{"all zero", Deck{}, false},
		{"out of range", Deck{0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 8}, false},
		{"negative", Deck{0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, -1}, false},
		{"triple", Deck{0, 0, 0, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.deck.Validate()
			if tt.valid && err != nil {
				t.Fatalf("expected valid deck, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidDeck) {
				t.Fatalf("expected ErrInvalidDeck, got %v", err)
			}
		})
	}
}

func TestNewFromDeckRejectsInvalid(t *testing.T) {
	if _, err := NewFromDeck(Deck{}); !errors.Is(err, ErrInvalidDeck) {
		t.Fatalf("expected ErrInvalidDeck, got %v", err)
	}
}

func TestNewGame(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		assertFresh(t, NewWithSource(rand.NewPCG(seed, seed+1)))
	}

	assertFresh(t, New())
}

func TestScenario(t *testing.T) {
	g := newFixed(t)

	if res := g.Flip(0); res.Outcome != Flipped {
		t.Fatalf("first flip: got %v, want flipped", res.Outcome)
	}

	res := g.Flip(2)
	if res.Outcome != Matched {
		t.Fatalf("second flip: got %v, want matched", res.Outcome)
	}
	if res.Pair != [2]int{0, 2} || res.Values != [2]int{0, 0} {
		t.Errorf("unexpected result %+v", res)
	}
	if g.Matches() != 1 || g.Attempts() != 1 {
		t.Fatalf("after match: matches=%d attempts=%d", g.Matches(), g.Attempts())
	}
	if m := g.Matched(); len(m) != 2 || m[0] != 0 || m[1] != 2 {
		t.Fatalf("matched set = %v, want [0 2]", m)
	}
	assertInvariants(t, g)

	g.Flip(1)
	res = g.Flip(4)
	if res.Outcome != Mismatched {
		t.Fatalf("got %v, want mismatched", res.Outcome)
	}
	if res.Values != [2]int{1, 2} {
		t.Errorf("mismatch values = %v, want [1 2]", res.Values)
	}
	if g.Attempts() != 2 || g.Matches() != 1 {
		t.Fatalf("after mismatch: attempts=%d matches=%d", g.Attempts(), g.Matches())
	}
	if n := len(g.Flipped()); n != 0 {
		t.Fatalf("flipped set should be empty, has %d", n)
	}
	assertInvariants(t, g)
}

func TestFlipIgnored(t *testing.T) {
	t.Run("matched", func(t *testing.T) {
		g := newFixed(t)
		g.Flip(0)
		g.Flip(2)

		before := g.Snapshot()
		if res := g.Flip(0); res.Outcome != Ignored {
			t.Fatalf("got %v, want ignored", res.Outcome)
		}
		after := g.Snapshot()

		if before.Attempts != after.Attempts || before.Matches != after.Matches {
			t.Fatal("flipping a matched card changed counters")
		}
		if len(g.Flipped()) != 0 {
			t.Fatal("flipping a matched card added it to the flipped set")
		}
	})

	t.Run("already flipped", func(t *testing.T) {
		g := newFixed(t)
		g.Flip(5)

		if res := g.Flip(5); res.Outcome != Ignored {
			t.Fatalf("got %v, want ignored", res.Outcome)
		}
		if f := g.Flipped(); len(f) != 1 || f[0] != 5 {
			t.Fatalf("flipped set = %v, want [5]", f)
		}
		if g.Attempts() != 0 {
			t.Fatalf("attempts = %d, want 0", g.Attempts())
		}
	})

	t.Run("off board", func(t *testing.T) {
		g := newFixed(t)

		for _, pos := range []int{-1, Size, 100} {
			if res := g.Flip(pos); res.Outcome != Ignored {
				t.Fatalf("Flip(%d) = %v, want ignored", pos, res.Outcome)
			}
		}
		assertFresh(t, g)
	})
}

func TestResolveNeedsTwo(t *testing.T) {
	g := newFixed(t)

	if _, ok := g.Resolve(); ok {
		t.Fatal("Resolve succeeded with no flipped cards")
	}

	g.Flip(3)
	if _, ok := g.Resolve(); ok {
		t.Fatal("Resolve succeeded with one flipped card")
	}
	if g.Attempts() != 0 {
		t.Fatalf("attempts = %d, want 0", g.Attempts())
	}
}

// TestFullGame plays every pair on randomly shuffled decks and checks the
// invariants after each flip.
func TestFullGame(t *testing.T) {
	for seed := uint64(1); seed <= 10; seed++ {
		g := NewWithSource(rand.NewPCG(seed, seed*7))

		positions := make(map[int][]int, Pairs)
		for pos, v := range g.Deck() {
			positions[v] = append(positions[v], pos)
		}

		// One deliberate mismatch first.
		a, b := positions[0][0], positions[1][0]
		if res := g.Flip(a); res.Outcome != Flipped {
			t.Fatalf("seed %d: got %v", seed, res.Outcome)
		}
		if res := g.Flip(b); res.Outcome != Mismatched {
			t.Fatalf("seed %d: got %v", seed, res.Outcome)
		}
		assertInvariants(t, g)

		for v := 0; v < Pairs; v++ {
			if g.Over() {
				t.Fatalf("seed %d: over after %d pairs", seed, v)
			}

			g.Flip(positions[v][0])
			assertInvariants(t, g)

			if res := g.Flip(positions[v][1]); res.Outcome != Matched {
				t.Fatalf("seed %d: pair %d got %v", seed, v, res.Outcome)
			}
			assertInvariants(t, g)
		}

		if !g.Over() {
			t.Fatalf("seed %d: game not over after all pairs", seed)
		}
		if g.Attempts() != Pairs+1 {
			t.Fatalf("seed %d: attempts = %d, want %d", seed, g.Attempts(), Pairs+1)
		}
		if n := len(g.Matched()); n != Size {
			t.Fatalf("seed %d: matched %d positions, want %d", seed, n, Size)
		}

		for pos := 0; pos < Size; pos++ {
			if res := g.Flip(pos); res.Outcome != Ignored {
				t.Fatalf("seed %d: flip after game over = %v", seed, res.Outcome)
			}
		}
	}
}

func TestReset(t *testing.T) {
	g := NewWithSource(rand.NewPCG(42, 43))
	first := g.Deck()

	g.Flip(0)
	g.Flip(1)
	g.Flip(2)

	changed := false
	for i := 0; i < 5; i++ {
		g.Reset()
		assertFresh(t, g)
		if g.Deck() != first {
			changed = true
		}
	}

	if !changed {
		t.Fatal("five resets never produced a different deck")
	}
}

func TestResetFromFixedDeck(t *testing.T) {
	g := newFixed(t)
	g.Flip(0)
	g.Flip(2)

	g.Reset()
	assertFresh(t, g)
}

func TestSnapshotHidesFaceDownValues(t *testing.T) {
	g := newFixed(t)
	g.Flip(0)
	g.Flip(2)
	g.Flip(7)

	snap := g.Snapshot()
	if len(snap.Cards) != Size {
		t.Fatalf("got %d cards, want %d", len(snap.Cards), Size)
	}

	for _, cv := range snap.Cards {
		switch cv.Position {
		case 0, 2:
			if cv.State != "matched" || cv.Value == nil || *cv.Value != 0 {
				t.Errorf("position %d: %+v", cv.Position, cv)
			}
		case 7:
			if cv.State != "flipped" || cv.Value == nil || *cv.Value != 3 {
				t.Errorf("position 7: %+v", cv)
			}
		default:
			if cv.State != "hidden" || cv.Value != nil {
				t.Errorf("position %d should be hidden: %+v", cv.Position, cv)
			}
		}
	}

	if snap.Attempts != 1 || snap.Matches != 1 || snap.Pairs != Pairs || snap.Over {
		t.Errorf("unexpected counters %+v", snap)
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{Ignored, "ignored"},
		{Flipped, "flipped"},
		{Matched, "matched"},
		{Mismatched, "mismatched"},
		{Outcome(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tt.outcome, got, tt.want)
		}
	}
}
