package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"blackjack-table/server/engine"
)

type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWin      Kind = "win"
	KindLoss     Kind = "loss"
	KindWithdraw Kind = "withdraw"
)

// Entry is one balance-affecting event. Amount is always positive; Kind
// carries the direction.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	Reference string    `json:"reference,omitempty"` // transfer signature for deposits/withdrawals
	Signature string    `json:"signature,omitempty"` // house receipt, hex
}

// Sink stores entries. List returns newest first.
type Sink interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, sessionID string) ([]Entry, error)
}

func NewEntry(sessionID string, kind Kind, amount int64, ref string) (Entry, error) {
	switch kind {
	case KindDeposit, KindWin, KindLoss, KindWithdraw:
	default:
		return Entry{}, fmt.Errorf("unknown ledger kind %q", kind)
	}
	if amount <= 0 {
		return Entry{}, fmt.Errorf("ledger amount must be > 0, got %d", amount)
	}
	return Entry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		Amount:    amount,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		Reference: ref,
	}, nil
}

// FromSettlement maps a finished round to its ledger entry. A push moves no
// money and yields no entry.
func FromSettlement(sessionID string, st engine.Settlement) (Entry, bool) {
	var k Kind
	switch st.Winner {
	case engine.WinnerPlayer:
		k = KindWin
	case engine.WinnerDealer:
		k = KindLoss
	default:
		return Entry{}, false
	}
	if st.Bet <= 0 {
		return Entry{}, false
	}
	e, err := NewEntry(sessionID, k, st.Bet, "")
	if err != nil {
		return Entry{}, false
	}
	return e, true
}

// Net sums entries as seen by the player's balance.
func Net(entries []Entry) int64 {
	var n int64
	for _, e := range entries {
		switch e.Kind {
		case KindDeposit, KindWin:
			n += e.Amount
		case KindLoss, KindWithdraw:
			n -= e.Amount
		}
	}
	return n
}
