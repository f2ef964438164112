package agent

import (
	"fmt"

	"blackjack-table/server/engine"
)

type CardView struct {
	Suit   string `json:"suit,omitempty"`
	Value  int    `json:"value,omitempty"`
	Face   string `json:"face,omitempty"`
	Label  string `json:"label"` // e.g. "Ks", "10h"; "??" when hidden
	Hidden bool   `json:"hidden,omitempty"`
}

type HandView struct {
	Cards  []CardView `json:"cards"`
	Score  *int       `json:"score"` // nil while the dealer hole card is hidden
	Soft   bool       `json:"soft"`
	Busted bool       `json:"busted"`
}

// Observation is what a client may see of a GameState: the deck order is
// never exposed and the dealer's second card stays face down until the
// player stands or busts.
type Observation struct {
	Status        string             `json:"status"`
	Winner        string             `json:"winner,omitempty"`
	Balance       int64              `json:"balance"`
	Bet           int64              `json:"bet"`
	Player        HandView           `json:"player"`
	Dealer        HandView           `json:"dealer"`
	DeckRemaining int                `json:"deck_remaining"`
	Legal         []string           `json:"legal_actions"`
	Settlement    *engine.Settlement `json:"settlement,omitempty"`
}

type ActionIn struct {
	Action string `json:"action"`           // bet|hit|stand|new-game
	Amount *int64 `json:"amount,omitempty"` // required if bet
}

// BuildObservation converts engine state into the JSON we send clients.
func BuildObservation(s engine.GameState) Observation {
	legal := []string{}
	for _, k := range engine.Legal(s) {
		legal = append(legal, string(k))
	}
	hideHole := s.Status == engine.StatusPlaying

	o := Observation{
		Status:        string(s.Status),
		Winner:        string(s.Winner),
		Balance:       s.Player.Balance,
		Bet:           s.Player.Bet,
		Player:        handView(s.Player, false),
		Dealer:        handView(s.Dealer, hideHole),
		DeckRemaining: len(s.Deck),
		Legal:         legal,
	}
	if st, ok := s.Settlement(); ok {
		o.Settlement = &st
	}
	return o
}

func handView(p engine.Participant, hideHole bool) HandView {
	hv := HandView{Cards: make([]CardView, len(p.Hand))}
	for i, c := range p.Hand {
		if hideHole && i == 1 {
			hv.Cards[i] = CardView{Label: "??", Hidden: true}
			continue
		}
		hv.Cards[i] = CardView{Suit: c.Suit.String(), Value: c.Value(), Face: c.Face(), Label: c.String()}
	}
	if hideHole && len(p.Hand) > 1 {
		return hv
	}
	sc := p.Score
	hv.Score = &sc
	hv.Soft = engine.IsSoft(p.Hand)
	hv.Busted = p.Busted
	return hv
}

// Validate checks an incoming action against the observation.
func Validate(o Observation, a ActionIn) error {
	ok := false
	for _, la := range o.Legal {
		if la == a.Action {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("illegal action %q (legals: %v)", a.Action, o.Legal)
	}
	if a.Action == string(engine.Bet) {
		if a.Amount == nil {
			return fmt.Errorf("bet requires amount")
		}
		if *a.Amount <= 0 || *a.Amount > o.Balance {
			return fmt.Errorf("bet amount %d out of bounds [1, %d]", *a.Amount, o.Balance)
		}
	}
	return nil
}
