package store

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blackjack-table/server/ledger"
)

//go:embed schema.sql
var schema embed.FS

type DB struct{ *pgxpool.Pool }

func Open(dsn string) (*DB, error) {
	p, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context)      { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

/* -----------------------------
   Ledger sink
------------------------------*/

func (db *DB) Append(ctx context.Context, e ledger.Entry) error {
	_, err := db.Exec(ctx, `
        INSERT INTO ledger_entries(id, session_id, kind, amount, ts, reference, signature)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, e.ID, e.SessionID, string(e.Kind), e.Amount, e.Timestamp, e.Reference, e.Signature)
	return err
}

// List returns a session's entries, newest first. Entries sharing a
// timestamp come back in reverse insertion order.
func (db *DB) List(ctx context.Context, sessionID string) ([]ledger.Entry, error) {
	rows, err := db.Query(ctx, `
        SELECT id, session_id, kind, amount, ts, reference, signature
          FROM ledger_entries
         WHERE session_id = $1
         ORDER BY ts DESC, seq DESC
    `, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.Entry{}
	for rows.Next() {
		var e ledger.Entry
		var kind string
		if err := rows.Scan(&e.ID, &e.SessionID, &kind, &e.Amount, &e.Timestamp, &e.Reference, &e.Signature); err != nil {
			return nil, err
		}
		e.Kind = ledger.Kind(kind)
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

/* -----------------------------
   Rounds and sessions
------------------------------*/

type Round struct {
	SessionID    string
	Bet          int64
	Payout       int64
	Winner       string
	PlayerHand   []string
	DealerHand   []string
	PlayerScore  int
	DealerScore  int
	BalanceAfter int64
	FinishedAt   time.Time
}

// InsertRound stores a settled round and the session balance after it
// in one transaction.
func (db *DB) InsertRound(ctx context.Context, r Round) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	at := r.FinishedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO rounds(
            session_id, bet, payout, winner,
            player_hand, dealer_hand, player_score, dealer_score,
            balance_after, finished_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `, r.SessionID, r.Bet, r.Payout, r.Winner,
		r.PlayerHand, r.DealerHand, r.PlayerScore, r.DealerScore,
		r.BalanceAfter, at); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO sessions(id, balance) VALUES ($1,$2)
        ON CONFLICT (id) DO UPDATE
          SET balance = EXCLUDED.balance,
              updated_at = now()
    `, r.SessionID, r.BalanceAfter); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (db *DB) UpsertSession(ctx context.Context, id string, balance int64) error {
	_, err := db.Exec(ctx, `
        INSERT INTO sessions(id, balance) VALUES ($1,$2)
        ON CONFLICT (id) DO UPDATE
          SET balance = EXCLUDED.balance,
              updated_at = now()
    `, id, balance)
	return err
}

// SessionBalance returns the last persisted balance, ok=false if unknown.
func (db *DB) SessionBalance(ctx context.Context, id string) (balance int64, ok bool, err error) {
	err = db.QueryRow(ctx, `SELECT balance FROM sessions WHERE id = $1`, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return balance, true, nil
}

type Totals struct {
	Rounds int   `json:"rounds"`
	Wins   int   `json:"wins"`
	Losses int   `json:"losses"`
	Pushes int   `json:"pushes"`
	Net    int64 `json:"net"`
}

// PlayerTotals aggregates the rounds recorded for a session.
func (db *DB) PlayerTotals(ctx context.Context, sessionID string) (Totals, error) {
	var t Totals
	err := db.QueryRow(ctx, `
        SELECT COUNT(*)::int,
               COALESCE(SUM(CASE WHEN winner = 'player' THEN 1 ELSE 0 END), 0)::int,
               COALESCE(SUM(CASE WHEN winner = 'dealer' THEN 1 ELSE 0 END), 0)::int,
               COALESCE(SUM(CASE WHEN winner = 'push'   THEN 1 ELSE 0 END), 0)::int,
               COALESCE(SUM(payout - bet), 0)::bigint
          FROM rounds
         WHERE session_id = $1
    `, sessionID).Scan(&t.Rounds, &t.Wins, &t.Losses, &t.Pushes, &t.Net)
	return t, err
}
