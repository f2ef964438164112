package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"blackjack-table/server/engine"
)

func TestFromSettlement(t *testing.T) {
	e, ok := FromSettlement("s1", engine.Settlement{Winner: engine.WinnerPlayer, Bet: 100, Payout: 200, Net: 100})
	require.True(t, ok)
	require.Equal(t, KindWin, e.Kind)
	require.EqualValues(t, 100, e.Amount)
	require.Equal(t, "s1", e.SessionID)
	require.NotEmpty(t, e.ID)

	e, ok = FromSettlement("s1", engine.Settlement{Winner: engine.WinnerDealer, Bet: 50})
	require.True(t, ok)
	require.Equal(t, KindLoss, e.Kind)
	require.EqualValues(t, 50, e.Amount)

	_, ok = FromSettlement("s1", engine.Settlement{Winner: engine.WinnerPush, Bet: 50, Payout: 50})
	require.False(t, ok)
}

func TestNewEntryValidates(t *testing.T) {
	_, err := NewEntry("s", KindDeposit, 0, "")
	require.Error(t, err)
	_, err = NewEntry("s", Kind("bonus"), 10, "")
	require.Error(t, err)
	e, err := NewEntry("s", KindDeposit, 10, "sig123")
	require.NoError(t, err)
	require.Equal(t, "sig123", e.Reference)
}

func TestMemoryNewestFirstPerSession(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 1; i <= 3; i++ {
		e, err := NewEntry("a", KindDeposit, int64(i), "")
		require.NoError(t, err)
		require.NoError(t, m.Append(ctx, e))
	}
	other, _ := NewEntry("b", KindWin, 7, "")
	require.NoError(t, m.Append(ctx, other))

	got, err := m.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.EqualValues(t, 3, got[0].Amount)
	require.EqualValues(t, 1, got[2].Amount)

	got, err = m.List(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, _ := NewEntry(fmt.Sprintf("s%d", i%5), KindWin, 1, "")
			_ = m.Append(ctx, e)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 50, m.Len())
}

func TestNet(t *testing.T) {
	es := []Entry{
		{Kind: KindDeposit, Amount: 500},
		{Kind: KindWin, Amount: 100},
		{Kind: KindLoss, Amount: 50},
		{Kind: KindWithdraw, Amount: 200},
	}
	require.EqualValues(t, 350, Net(es))
}

func TestReceiptRoundTrip(t *testing.T) {
	s := NewSigner("house-seed")
	e, err := NewEntry("s1", KindWin, 100, "")
	require.NoError(t, err)
	signed, err := s.Sign(e)
	require.NoError(t, err)
	require.NotEmpty(t, signed.Signature)
	require.NoError(t, Verify(s.PublicKey(), signed))

	tampered := signed
	tampered.Amount = 1000
	require.Error(t, Verify(s.PublicKey(), tampered))

	other := NewSigner("other-seed")
	require.Error(t, Verify(other.PublicKey(), signed))
}

func TestSignerSeedIsDeterministic(t *testing.T) {
	require.Equal(t, NewSigner("x").PublicKey(), NewSigner("x").PublicKey())
	require.NotEqual(t, NewSigner("x").PublicKey(), NewSigner("y").PublicKey())
}
