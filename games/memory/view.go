package memory

// CardView is the client-facing representation of one board position.
// Value is only set while the card is face up or matched.
type CardView struct {
	Position int    `json:"position"`
	Value    *int   `json:"value,omitempty"`
	State    string `json:"state"` // "hidden", "flipped" or "matched"
}

// Snapshot is the client-facing state of a whole game.
type Snapshot struct {
	Cards    []CardView `json:"cards"`
	Attempts int        `json:"attempts"`
	Matches  int        `json:"matches"`
	Pairs    int        `json:"pairs"`
	Over     bool       `json:"over"`
}

func (g *Game) Snapshot() Snapshot {
	cards := make([]CardView, Size)

	for pos := range cards {
		cv := CardView{
			Position: pos,
			State:    "hidden",
		}

		switch {
		case g.matched[pos]:
			cv.State = "matched"
		case g.IsFlipped(pos):
			cv.State = "flipped"
		}

		if cv.State != "hidden" {
			v := g.deck[pos]
			cv.Value = &v
		}

		cards[pos] = cv
	}

	return Snapshot{
		Cards:    cards,
		Attempts: g.attempts,
		Matches:  g.matches,
		Pairs:    Pairs,
		Over:     g.Over(),
	}
}
