package engine

import (
	"fmt"
	"sync"
)

type Config struct {
	InitialBalance int64
	DealerMinScore int // dealer draws while below this score
}

func DefaultConfig() Config { return Config{InitialBalance: 1000, DealerMinScore: 17} }

func (c Config) Validate() error {
	if c.InitialBalance < 0 {
		return fmt.Errorf("initial balance must be >= 0, got %d", c.InitialBalance)
	}
	if c.DealerMinScore < 2 || c.DealerMinScore > blackjack {
		return fmt.Errorf("dealer min score must be in [2,21], got %d", c.DealerMinScore)
	}
	return nil
}

// Engine holds the table rules and the shuffle source. Transitions take a
// GameState and return a new one; callers own storage and must not invoke
// transitions on the same session concurrently.
type Engine struct {
	cfg Config

	mu   sync.Mutex // guards intn; sessions may shuffle from different goroutines
	intn func(n int) int
}

func New(cfg Config, intn func(n int) int) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if intn == nil {
		return nil, fmt.Errorf("nil random source")
	}
	return &Engine{cfg: cfg, intn: intn}, nil
}

// ShuffledDeck returns a fresh 52-card deck in uniformly random order.
func (e *Engine) ShuffledDeck() []Card {
	e.mu.Lock()
	defer e.mu.Unlock()
	return NewDeck(e.intn)
}

func (e *Engine) NewSession() GameState { return e.fresh(e.cfg.InitialBalance) }

// NewGame starts over with a fresh deck, carrying only the player balance.
// It is accepted from any status.
func (e *Engine) NewGame(s GameState) GameState { return e.fresh(s.Player.Balance) }

func (e *Engine) fresh(balance int64) GameState {
	return GameState{
		Deck:   e.ShuffledDeck(),
		Player: Participant{Balance: balance},
		Status: StatusBetting,
		Winner: WinnerNone,
	}
}

// PlaceBet moves the amount from balance into the bet and deals two cards to
// the player, then two to the dealer.
func (e *Engine) PlaceBet(s GameState, amount int64) (GameState, error) {
	if s.Status != StatusBetting {
		return s, fmt.Errorf("%w: bet while %s", ErrRejected, s.Status)
	}
	if amount <= 0 || amount > s.Player.Balance {
		return s, fmt.Errorf("%w: bet %d with balance %d", ErrRejected, amount, s.Player.Balance)
	}
	next := s
	next.Player.Balance -= amount
	next.Player.Bet = amount
	next.Player.Hand = nil
	next.Dealer.Hand = nil

	var err error
	for i := 0; i < 2; i++ {
		if next.Player, next.Deck, err = deal(next.Player, next.Deck); err != nil {
			return s, err
		}
	}
	for i := 0; i < 2; i++ {
		if next.Dealer, next.Deck, err = deal(next.Dealer, next.Deck); err != nil {
			return s, err
		}
	}
	next.Status = StatusPlaying
	next.Winner = WinnerNone
	return next, nil
}

// Hit deals one card to the player. A bust ends the round for the dealer.
func (e *Engine) Hit(s GameState) (GameState, error) {
	if s.Status != StatusPlaying {
		return s, fmt.Errorf("%w: hit while %s", ErrInvalidTransition, s.Status)
	}
	next := s
	var err error
	if next.Player, next.Deck, err = deal(next.Player, next.Deck); err != nil {
		return s, err
	}
	if next.Player.Busted {
		next.Status = StatusGameOver
		next.Winner = WinnerDealer
	}
	return next, nil
}

// Stand runs the dealer to completion and settles the round in one step.
func (e *Engine) Stand(s GameState) (GameState, error) {
	if s.Status != StatusPlaying {
		return s, fmt.Errorf("%w: stand while %s", ErrInvalidTransition, s.Status)
	}
	next := s
	next.Status = StatusDealerTurn
	next.Dealer = score(next.Dealer)

	var err error
	for next.Dealer.Score < e.cfg.DealerMinScore {
		if next.Dealer, next.Deck, err = deal(next.Dealer, next.Deck); err != nil {
			return s, err
		}
	}

	next.Winner = resolve(next.Player.Score, next.Dealer.Score, next.Dealer.Busted)
	next.Player.Balance += payout(next.Winner, next.Player.Bet)
	next.Status = StatusGameOver
	return next, nil
}

// Credit adds to the player's off-table balance. Allowed in every status.
func (e *Engine) Credit(s GameState, amount int64) (GameState, error) {
	if amount <= 0 {
		return s, fmt.Errorf("%w: credit %d", ErrRejected, amount)
	}
	next := s
	next.Player.Balance += amount
	return next, nil
}

// Debit removes from the balance between rounds only.
func (e *Engine) Debit(s GameState, amount int64) (GameState, error) {
	if s.Status != StatusBetting && s.Status != StatusGameOver {
		return s, fmt.Errorf("%w: debit while %s", ErrRejected, s.Status)
	}
	if amount <= 0 || amount > s.Player.Balance {
		return s, fmt.Errorf("%w: debit %d with balance %d", ErrRejected, amount, s.Player.Balance)
	}
	next := s
	next.Player.Balance -= amount
	return next, nil
}

// Legal lists the actions accepted in the current status.
func Legal(s GameState) []ActionKind {
	switch s.Status {
	case StatusBetting:
		if s.Player.Balance > 0 {
			return []ActionKind{Bet, NewGame}
		}
		return []ActionKind{NewGame}
	case StatusPlaying:
		return []ActionKind{Hit, Stand, NewGame}
	default:
		return []ActionKind{NewGame}
	}
}

// Settlement reports the outcome of a finished round.
func (s GameState) Settlement() (Settlement, bool) {
	if s.Status != StatusGameOver || s.Winner == WinnerNone {
		return Settlement{}, false
	}
	p := payout(s.Winner, s.Player.Bet)
	return Settlement{Winner: s.Winner, Bet: s.Player.Bet, Payout: p, Net: p - s.Player.Bet}, true
}

func resolve(playerScore, dealerScore int, dealerBusted bool) Winner {
	switch {
	case dealerBusted:
		return WinnerPlayer
	case dealerScore > playerScore:
		return WinnerDealer
	case dealerScore < playerScore:
		return WinnerPlayer
	default:
		return WinnerPush
	}
}

func payout(w Winner, bet int64) int64 {
	switch w {
	case WinnerPlayer:
		return 2 * bet
	case WinnerPush:
		return bet
	}
	return 0
}

// deal draws the top card into p's hand. The hand is copied so earlier
// snapshots never observe the append.
func deal(p Participant, deck []Card) (Participant, []Card, error) {
	c, rest, err := Draw(deck)
	if err != nil {
		return p, deck, err
	}
	hand := make([]Card, len(p.Hand), len(p.Hand)+1)
	copy(hand, p.Hand)
	p.Hand = append(hand, c)
	return score(p), rest, nil
}
