package engine

const blackjack = 21

// HandValue sums the non-ace cards, then adds each ace as 11 when the running
// total stays at or under 21, and as 1 otherwise. The non-aces are summed
// first, so card order does not change the result.
func HandValue(cards []Card) int {
	total, _ := resolveAces(cards)
	return total
}

// IsSoft reports whether some ace in the hand was counted as 11.
func IsSoft(cards []Card) bool {
	_, soft := resolveAces(cards)
	return soft
}

func IsBust(score int) bool { return score > blackjack }

func resolveAces(cards []Card) (total int, soft bool) {
	aces := 0
	for _, c := range cards {
		if c.IsAce() {
			aces++
			continue
		}
		total += c.Value()
	}
	for i := 0; i < aces; i++ {
		if total+11 <= blackjack {
			total += 11
			soft = true
		} else {
			total++
		}
	}
	return total, soft
}

// score returns p with Score and Busted recomputed from its hand.
func score(p Participant) Participant {
	p.Score = HandValue(p.Hand)
	p.Busted = IsBust(p.Score)
	return p
}
