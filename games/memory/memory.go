/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package memory implements the rules of a single-player concentration game:
// sixteen face-down cards holding eight pairs, flipped two at a time until
// every pair has been found.
package memory

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	// Pairs is the number of distinct card values on the board.
	Pairs = 8
	// Size is the number of board positions.
	Size = Pairs * 2
)

var ErrInvalidDeck = errors.New("invalid deck")

// Deck holds the card value at each board position.
type Deck [Size]int

// Validate reports whether every value in [0, Pairs) appears exactly twice.
func (d Deck) Validate() error {
	var counts [Pairs]int

	for pos, v := range d {
		if v < 0 || v >= Pairs {
			return fmt.Errorf("%w: value %d at position %d out of range", ErrInvalidDeck, v, pos)
		}
		counts[v]++
	}

	for v, n := range counts {
		if n != 2 {
			return fmt.Errorf("%w: value %d appears %d times", ErrInvalidDeck, v, n)
		}
	}

	return nil
}

func newDeck(r *rand.Rand) Deck {
	var d Deck
	for i := range d {
		d[i] = i / 2
	}

	r.Shuffle(len(d), func(i, j int) {
		d[i], d[j] = d[j], d[i]
	})

	return d
}

// Outcome describes what a flip did to the board.
type Outcome int

const (
	Ignored Outcome = iota
	Flipped
	Matched
	Mismatched
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Flipped:
		return "flipped"
	case Matched:
		return "matched"
	case Mismatched:
		return "mismatched"
	default:
		return "unknown"
	}
}

// Result is returned by Flip and Resolve. Pair and Values are only
// meaningful when Outcome is Matched or Mismatched.
type Result struct {
	Outcome Outcome
	Pair    [2]int
	Values  [2]int
}

// Game is the state of one game session. It is not safe for concurrent
// use; callers serialize access.
type Game struct {
	rng *rand.Rand

	deck     Deck
	flipped  []int
	matched  [Size]bool
	attempts int
	matches  int
}

// New starts a game with a time-seeded shuffle.
func New() *Game {
	now := uint64(time.Now().UnixNano())
	return NewWithSource(rand.NewPCG(now, now>>1|1))
}

// NewWithSource starts a game whose shuffles are drawn from src.
func NewWithSource(src rand.Source) *Game {
	g := &Game{rng: rand.New(src)}
	g.Reset()

	return g
}

// NewFromDeck starts a game over a fixed deck. Later calls to Reset
// shuffle normally.
func NewFromDeck(d Deck) (*Game, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	now := uint64(time.Now().UnixNano())
	g := &Game{rng: rand.New(rand.NewPCG(now, now>>1|1))}
	g.start(d)

	return g, nil
}

// Reset discards all state and deals a freshly shuffled deck.
func (g *Game) Reset() {
	g.start(newDeck(g.rng))
}

func (g *Game) start(d Deck) {
	g.deck = d
	g.flipped = make([]int, 0, 2)
	g.matched = [Size]bool{}
	g.attempts = 0
	g.matches = 0
}

// Flip turns the card at pos face up. Flipping a matched card, a card that
// is already face up, a position off the board, or any card while two are
// already face up does nothing. A second card is resolved immediately.
func (g *Game) Flip(pos int) Result {
	if pos < 0 || pos >= Size || g.matched[pos] || g.IsFlipped(pos) || len(g.flipped) >= 2 {
		return Result{Outcome: Ignored}
	}

	g.flipped = append(g.flipped, pos)

	if res, ok := g.Resolve(); ok {
		return res
	}

	return Result{Outcome: Flipped}
}

// Resolve compares the two face-up cards, counts the attempt and either
// moves the pair into the matched set or turns both back over. It reports
// false without touching the game unless exactly two cards are face up.
func (g *Game) Resolve() (Result, bool) {
	if len(g.flipped) != 2 {
		return Result{Outcome: Ignored}, false
	}

	a, b := g.flipped[0], g.flipped[1]
	res := Result{
		Pair:   [2]int{a, b},
		Values: [2]int{g.deck[a], g.deck[b]},
	}

	g.attempts++
	g.flipped = g.flipped[:0]

	if g.deck[a] == g.deck[b] {
		g.matched[a] = true
		g.matched[b] = true
		g.matches++
		res.Outcome = Matched
	} else {
		res.Outcome = Mismatched
	}

	return res, true
}

func (g *Game) Deck() Deck {
	return g.deck
}

// Value returns the card value at pos, or -1 off the board.
func (g *Game) Value(pos int) int {
	if pos < 0 || pos >= Size {
		return -1
	}

	return g.deck[pos]
}

// Flipped returns the face-up, unresolved positions in flip order.
func (g *Game) Flipped() []int {
	out := make([]int, len(g.flipped))
	copy(out, g.flipped)

	return out
}

// Matched returns the matched positions in ascending order.
func (g *Game) Matched() []int {
	out := make([]int, 0, g.matches*2)
	for pos, ok := range g.matched {
		if ok {
			out = append(out, pos)
		}
	}

	return out
}

func (g *Game) IsFlipped(pos int) bool {
	for _, p := range g.flipped {
		if p == pos {
			return true
		}
	}

	return false
}

func (g *Game) IsMatched(pos int) bool {
	return pos >= 0 && pos < Size && g.matched[pos]
}

func (g *Game) Attempts() int {
	return g.attempts
}

func (g *Game) Matches() int {
	return g.matches
}

// Over reports whether every pair has been found.
func (g *Game) Over() bool {
	return g.matches == Pairs
}
