package judge

import (
	"context"
	"fmt"
	"math"

	"blackjack-table/server/engine"
)

// Advice compares the two options open to the player, in units of the bet.
// Hit is evaluated as "hit once, then stand".
type Advice struct {
	Trials   int     `json:"trials"`
	EVStand  float64 `json:"ev_stand"`
	EVHit    float64 `json:"ev_hit"`
	BustRisk float64 `json:"bust_risk"` // chance the next card busts the player
	Best     string  `json:"best"`
}

// Advise runs a Monte Carlo over the cards the player cannot see. The dealer
// hole card and the remaining deck are re-dealt from the same pool every
// trial, so the estimate never peeks at the real order.
func Advise(ctx context.Context, e *engine.Engine, s engine.GameState, trials int, intn func(int) int) (Advice, error) {
	if s.Status != engine.StatusPlaying {
		return Advice{}, fmt.Errorf("%w: advice while %s", engine.ErrInvalidTransition, s.Status)
	}
	if trials <= 0 {
		trials = 2000
	}
	if len(s.Dealer.Hand) < 2 {
		return Advice{}, fmt.Errorf("dealer has %d cards", len(s.Dealer.Hand))
	}

	unseen := make([]engine.Card, 0, len(s.Deck)+1)
	unseen = append(unseen, s.Deck...)
	unseen = append(unseen, s.Dealer.Hand[1])

	bet := float64(s.Player.Bet)
	if bet <= 0 {
		bet = 1
	}
	var sumStand, sumHit float64
	var busts int
	for i := 0; i < trials; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return Advice{}, err
			}
		}
		engine.Shuffle(unseen, intn)
		sim := s
		sim.Dealer.Hand = []engine.Card{s.Dealer.Hand[0], unseen[len(unseen)-1]}
		sim.Deck = append([]engine.Card(nil), unseen[:len(unseen)-1]...)
		sim.Dealer.Score = engine.HandValue(sim.Dealer.Hand)

		st, err := e.Stand(sim)
		if err != nil {
			return Advice{}, err
		}
		sumStand += net(st) / bet

		h, err := e.Hit(sim)
		if err != nil {
			return Advice{}, err
		}
		if h.Status == engine.StatusPlaying {
			if h, err = e.Stand(h); err != nil {
				return Advice{}, err
			}
		} else {
			busts++
		}
		sumHit += net(h) / bet
	}

	n := float64(trials)
	a := Advice{
		Trials:   trials,
		EVStand:  round4(sumStand / n),
		EVHit:    round4(sumHit / n),
		BustRisk: round4(float64(busts) / n),
		Best:     string(engine.Stand),
	}
	if a.EVHit > a.EVStand {
		a.Best = string(engine.Hit)
	}
	return a, nil
}

func net(s engine.GameState) float64 {
	st, ok := s.Settlement()
	if !ok {
		return 0
	}
	return float64(st.Net)
}

func round4(x float64) float64 { return math.Round(x*1e4) / 1e4 }
