package table

import (
	"math"
	"math/rand"
	"sort"

	"blackjack-table/server/engine"
)

// keep at most this many per-round nets for the bootstrap
const maxNets = 2000

type Stats struct {
	Hands     int   `json:"hands"`
	Wins      int   `json:"wins"`
	Losses    int   `json:"losses"`
	Pushes    int   `json:"pushes"`
	Busts     int   `json:"busts"`
	Abandoned int   `json:"abandoned"`
	Wagered   int64 `json:"wagered"`
	NetChips  int64 `json:"net_chips"`

	WinRateLow     float64 `json:"win_rate_low"`
	WinRateHigh    float64 `json:"win_rate_high"`
	NetPerHandLow  float64 `json:"net_per_hand_low"`
	NetPerHandHigh float64 `json:"net_per_hand_high"`

	nets []float64
}

func (s *Stats) addRound(st engine.Settlement, playerBusted bool) {
	s.Hands++
	s.Wagered += st.Bet
	s.NetChips += st.Net
	switch st.Winner {
	case engine.WinnerPlayer:
		s.Wins++
	case engine.WinnerDealer:
		s.Losses++
		if playerBusted {
			s.Busts++
		}
	case engine.WinnerPush:
		s.Pushes++
	}
	s.addNet(float64(st.Net))
}

// addAbandoned counts a bet forfeited by starting a new game mid-round.
func (s *Stats) addAbandoned(bet int64) {
	s.Abandoned++
	s.Wagered += bet
	s.NetChips -= bet
	s.addNet(float64(-bet))
}

func (s *Stats) addNet(v float64) {
	if len(s.nets) >= maxNets {
		s.nets = s.nets[1:]
	}
	s.nets = append(s.nets, v)
}

// snapshot fills in the confidence intervals and drops internal state.
func (s Stats) snapshot() Stats {
	s.WinRateLow, s.WinRateHigh = WilsonCI95(s.Wins, s.Pushes, s.Hands)
	s.NetPerHandLow, s.NetPerHandHigh = BootstrapCI95(s.nets, 500)
	s.nets = nil
	return s
}

// WilsonCI95 for the Bernoulli win rate, counting a push as half a win.
func WilsonCI95(wins, ties, total int) (low, hi float64) {
	if total <= 0 {
		return 0, 1
	}
	z := 1.96
	n := float64(total)
	p := (float64(wins) + 0.5*float64(ties)) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}

// BootstrapCI95 for the mean of vals.
func BootstrapCI95(vals []float64, B int) (low, hi float64) {
	n := len(vals)
	if n == 0 || B <= 1 {
		return 0, 0
	}
	res := make([]float64, B)
	for b := 0; b < B; b++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += vals[rand.Intn(n)]
		}
		res[b] = sum / float64(n)
	}
	sort.Float64s(res)
	l := int(0.025 * float64(B-1))
	h := int(0.975 * float64(B-1))
	return res[l], res[h]
}
