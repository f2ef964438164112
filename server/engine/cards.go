package engine

import (
	"fmt"
	"math/rand"
	"time"
)

type Suit byte

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

var suitNames = [...]string{"hearts", "diamonds", "clubs", "spades"}

func (s Suit) String() string {
	if int(s) < len(suitNames) {
		return suitNames[s]
	}
	return "?"
}

// Rank 2..10 are number cards; Jack, Queen, King and Ace are their own variants.
type Rank int

const (
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func (c Card) IsAce() bool { return c.Rank == Ace }

// Value is the blackjack base value before ace adjustment.
func (c Card) Value() int {
	switch {
	case c.Rank == Ace:
		return 11
	case c.Rank >= Jack:
		return 10
	default:
		return int(c.Rank)
	}
}

// Face returns "J", "Q", "K" or "A", or "" for number cards.
func (c Card) Face() string {
	switch c.Rank {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	}
	return ""
}

func (c Card) String() string {
	r := c.Face()
	if r == "" {
		r = fmt.Sprint(int(c.Rank))
	}
	return fmt.Sprintf("%s%c", r, "hdcs"[c.Suit%4])
}

// NewCard builds a validated card.
func NewCard(r Rank, s Suit) (Card, error) {
	if r < 2 || r > Ace || s > Spades {
		return Card{}, fmt.Errorf("invalid card rank=%d suit=%d", r, s)
	}
	return Card{Rank: r, Suit: s}, nil
}

// FullDeck returns the 52 cards in suit/rank order, unshuffled.
func FullDeck() []Card {
	deck := make([]Card, 0, 52)
	for s := Hearts; s <= Spades; s++ {
		for r := Rank(2); r <= Ace; r++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// Shuffle is an in-place Fisher-Yates: i runs from the last index down to 1
// and swaps with intn(i+1).
func Shuffle(cards []Card, intn func(n int) int) {
	for i := len(cards) - 1; i > 0; i-- {
		j := intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

func NewDeck(intn func(n int) int) []Card {
	deck := FullDeck()
	Shuffle(deck, intn)
	return deck
}

// NewSeededDeck shuffles with a math/rand source; seed 0 uses the clock.
func NewSeededDeck(seed int64) []Card {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))
	return NewDeck(r.Intn)
}

// Draw removes the top (last) card. The returned deck shares storage with
// the input but is never written through.
func Draw(deck []Card) (Card, []Card, error) {
	n := len(deck)
	if n == 0 {
		return Card{}, deck, ErrEmptyDeck
	}
	return deck[n-1], deck[: n-1 : n-1], nil
}
