package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"blackjack-table/server/ledger"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(context.Background()) })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, Migrate(ctx, db))
	return db
}

func TestLedgerRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sid := uuid.NewString()

	first, err := ledger.NewEntry(sid, ledger.KindDeposit, 500, "txsig")
	require.NoError(t, err)
	require.NoError(t, db.Append(ctx, first))
	second, err := ledger.NewEntry(sid, ledger.KindLoss, 100, "")
	require.NoError(t, err)
	second.Timestamp = first.Timestamp.Add(time.Second)
	require.NoError(t, db.Append(ctx, second))

	got, err := db.List(ctx, sid)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, second.ID, got[0].ID)
	require.Equal(t, ledger.KindDeposit, got[1].Kind)
	require.Equal(t, "txsig", got[1].Reference)
	require.True(t, first.Timestamp.Equal(got[1].Timestamp))
}

func TestLedgerSameTimestampKeepsInsertOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sid := uuid.NewString()
	ts := time.Now().UTC().Truncate(time.Microsecond)

	var ids []string
	for i := 0; i < 6; i++ {
		e, err := ledger.NewEntry(sid, ledger.KindWin, int64(10+i), "")
		require.NoError(t, err)
		e.Timestamp = ts
		require.NoError(t, db.Append(ctx, e))
		ids = append(ids, e.ID)
	}

	got, err := db.List(ctx, sid)
	require.NoError(t, err)
	require.Len(t, got, len(ids))
	for i, e := range got {
		require.Equal(t, ids[len(ids)-1-i], e.ID)
	}
}

func TestSignedEntrySurvivesStorage(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := ledger.NewSigner("store-test")
	e, err := ledger.NewEntry(uuid.NewString(), ledger.KindWin, 40, "")
	require.NoError(t, err)
	e, err = s.Sign(e)
	require.NoError(t, err)
	require.NoError(t, db.Append(ctx, e))

	got, err := db.List(ctx, e.SessionID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, ledger.Verify(s.PublicKey(), got[0]))
}

func TestRoundsAndTotals(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sid := uuid.NewString()

	rounds := []Round{
		{SessionID: sid, Bet: 100, Payout: 200, Winner: "player", PlayerHand: []string{"Kh", "Qs"}, DealerHand: []string{"9c", "8d"}, PlayerScore: 20, DealerScore: 17, BalanceAfter: 1100},
		{SessionID: sid, Bet: 50, Payout: 0, Winner: "dealer", PlayerHand: []string{"Kh", "5s", "9d"}, DealerHand: []string{"9c", "8d"}, PlayerScore: 24, DealerScore: 17, BalanceAfter: 1050},
		{SessionID: sid, Bet: 10, Payout: 10, Winner: "push", PlayerHand: []string{"10h", "8s"}, DealerHand: []string{"9c", "9d"}, PlayerScore: 18, DealerScore: 18, BalanceAfter: 1050},
	}
	for _, r := range rounds {
		require.NoError(t, db.InsertRound(ctx, r))
	}
	tot, err := db.PlayerTotals(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, Totals{Rounds: 3, Wins: 1, Losses: 1, Pushes: 1, Net: 50}, tot)

	bal, ok, err := db.SessionBalance(ctx, sid)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1050, bal)

	_, ok, err = db.SessionBalance(ctx, uuid.NewString())
	require.NoError(t, err)
	require.False(t, ok)
}
