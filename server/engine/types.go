package engine

import "errors"

type Status string

const (
	StatusBetting    Status = "betting"
	StatusPlaying    Status = "playing"
	StatusDealerTurn Status = "dealerTurn"
	StatusGameOver   Status = "gameOver"
)

type Winner string

const (
	WinnerNone   Winner = ""
	WinnerPlayer Winner = "player"
	WinnerDealer Winner = "dealer"
	WinnerPush   Winner = "push"
)

type ActionKind string

const (
	Bet     ActionKind = "bet"
	Hit     ActionKind = "hit"
	Stand   ActionKind = "stand"
	NewGame ActionKind = "new-game"
)

var (
	// ErrRejected marks an action the engine ignored; the returned state is the input state.
	ErrRejected = errors.New("action rejected")
	// ErrInvalidTransition is returned by hit/stand outside the playing status.
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrEmptyDeck         = errors.New("deck is empty")
)

// Participant is one side of the table. Score and Busted are always derived
// from Hand; the dealer never carries a balance or bet.
type Participant struct {
	Hand    []Card `json:"hand"`
	Balance int64  `json:"balance"`
	Bet     int64  `json:"bet"`
	Score   int    `json:"score"`
	Busted  bool   `json:"busted"`
}

// GameState is an immutable snapshot; every transition returns a new one.
type GameState struct {
	Deck   []Card      `json:"-"`
	Player Participant `json:"player"`
	Dealer Participant `json:"dealer"`
	Status Status      `json:"status"`
	Winner Winner      `json:"winner"`
}

// Settlement is the resolved outcome of a finished round.
type Settlement struct {
	Winner Winner `json:"winner"`
	Bet    int64  `json:"bet"`
	Payout int64  `json:"payout"` // credited back to balance at settlement
	Net    int64  `json:"net"`    // relative to the pre-bet balance
}

// Suggested bet amounts per tier, in whole chips.
var BettingTiers = map[string][]int64{
	"micro":      {10, 50, 100},
	"standard":   {250, 500, 1000},
	"premium":    {2000, 5000, 10000},
	"highRoller": {25000, 50000, 100000},
}
