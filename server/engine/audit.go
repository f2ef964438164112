package engine

import (
	"fmt"

	poker "github.com/paulhankin/poker"
)

// Convert our engine.Card -> library card, which serves as the canonical identity.
func toPH(c Card) (poker.Card, error) {
	var s poker.Suit
	switch c.Suit {
	case Clubs:
		s = poker.Club
	case Diamonds:
		s = poker.Diamond
	case Hearts:
		s = poker.Heart
	case Spades:
		s = poker.Spade
	default:
		var none poker.Card
		return none, fmt.Errorf("bad suit %d", c.Suit)
	}
	// Our ranks: 2..14 (Ace=14). Library: 1..13 (Ace=1).
	r := poker.Rank(c.Rank)
	if c.Rank == Ace {
		r = poker.Rank(1)
	}
	return poker.MakeCard(s, r)
}

// Audit checks that deck, player hand and dealer hand together hold each of
// the 52 cards exactly once.
func Audit(s GameState) error {
	seen := make(map[poker.Card]string, 52)
	check := func(where string, cards []Card) error {
		for _, c := range cards {
			pc, err := toPH(c)
			if err != nil {
				return fmt.Errorf("%s: %v: %w", where, c, err)
			}
			if prev, dup := seen[pc]; dup {
				return fmt.Errorf("duplicate %v in %s (already in %s)", c, where, prev)
			}
			seen[pc] = where
		}
		return nil
	}
	if err := check("deck", s.Deck); err != nil {
		return err
	}
	if err := check("player", s.Player.Hand); err != nil {
		return err
	}
	if err := check("dealer", s.Dealer.Hand); err != nil {
		return err
	}
	if len(seen) != 52 {
		return fmt.Errorf("card universe has %d cards, want 52", len(seen))
	}
	return nil
}
