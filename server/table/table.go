package table

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"blackjack-table/server/engine"
	"blackjack-table/server/judge"
	"blackjack-table/server/ledger"
	"blackjack-table/server/metrics"
	"blackjack-table/server/store"
	"blackjack-table/server/wallet"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrWalletDisabled = errors.New("wallet not configured")
	ErrPending        = errors.New("transfers pending")
)

// History persists settled rounds. *store.DB implements it.
type History interface {
	UpsertSession(ctx context.Context, id string, balance int64) error
	InsertRound(ctx context.Context, r store.Round) error
	PlayerTotals(ctx context.Context, sessionID string) (store.Totals, error)
	SessionBalance(ctx context.Context, id string) (int64, bool, error)
}

type Options struct {
	Engine  *engine.Engine
	Ledger  ledger.Sink    // defaults to ledger.NewMemory()
	Signer  *ledger.Signer // optional; entries are unsigned without it
	History History        // optional
	Wallet  *wallet.Queue  // optional; deposits/withdrawals fail with ErrWalletDisabled without it

	AdviceTrials int
	Intn         func(n int) int // advisor randomness
}

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferConfirmed TransferStatus = "confirmed"
	TransferFailed    TransferStatus = "failed"
)

type Transfer struct {
	ID        string         `json:"id"`
	Op        wallet.Op      `json:"op"`
	Amount    int64          `json:"amount"`
	Status    TransferStatus `json:"status"`
	Reference string         `json:"reference,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type session struct {
	mu        sync.Mutex
	id        string
	state     engine.GameState
	stats     Stats
	transfers []*Transfer // newest last
	lastUsed  time.Time
	closed    bool
}

// Table owns every live session. Operations on one session are serialized;
// different sessions proceed in parallel.
type Table struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*session

	randMu sync.Mutex
	now    func() time.Time
}

func New(opts Options) (*Table, error) {
	if opts.Engine == nil {
		return nil, errors.New("table: nil engine")
	}
	if opts.Ledger == nil {
		opts.Ledger = ledger.NewMemory()
	}
	if opts.AdviceTrials <= 0 {
		opts.AdviceTrials = 2000
	}
	if opts.Intn == nil {
		return nil, errors.New("table: nil random source")
	}
	return &Table{opts: opts, sessions: map[string]*session{}, now: time.Now}, nil
}

func (t *Table) Engine() *engine.Engine { return t.opts.Engine }

func (t *Table) PublicKey() string {
	if t.opts.Signer == nil {
		return ""
	}
	return t.opts.Signer.PublicKey()
}

func (t *Table) Create(ctx context.Context) (string, engine.GameState) {
	s := &session{id: uuid.NewString(), state: t.opts.Engine.NewSession(), lastUsed: t.now()}
	t.mu.Lock()
	t.sessions[s.id] = s
	n := len(t.sessions)
	t.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))

	t.persist(ctx, s)
	return s.id, s.state
}

// Resume brings back a session that was closed, evicted or lost on restart,
// starting a fresh game with its last persisted balance. A live session is
// returned unchanged.
func (t *Table) Resume(ctx context.Context, id string) (engine.GameState, error) {
	if gs, err := t.State(id); err == nil {
		return gs, nil
	}
	if t.opts.History == nil {
		return engine.GameState{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	balance, ok, err := t.opts.History.SessionBalance(ctx, id)
	if err != nil {
		return engine.GameState{}, fmt.Errorf("session %s: restore: %w", id, err)
	}
	if !ok {
		return engine.GameState{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	s := &session{
		id:       id,
		state:    t.opts.Engine.NewGame(engine.GameState{Player: engine.Participant{Balance: balance}}),
		lastUsed: t.now(),
	}
	t.mu.Lock()
	if _, live := t.sessions[id]; live {
		t.mu.Unlock()
		return t.State(id)
	}
	t.sessions[id] = s
	n := len(t.sessions)
	t.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	return s.state, nil
}

// Close forfeits any bet in play, persists the balance and drops the
// session. Sessions waiting on a wallet transfer cannot be closed.
func (t *Table) Close(ctx context.Context, id string) (engine.GameState, error) {
	s, err := t.acquire(id)
	if err != nil {
		return engine.GameState{}, err
	}
	defer s.mu.Unlock()
	if err := t.closeLocked(ctx, s); err != nil {
		return s.state, err
	}
	return s.state, nil
}

// EvictIdle closes every session untouched for longer than ttl and reports
// how many it closed.
func (t *Table) EvictIdle(ctx context.Context, ttl time.Duration) int {
	t.mu.RLock()
	live := make([]*session, 0, len(t.sessions))
	for _, s := range t.sessions {
		live = append(live, s)
	}
	t.mu.RUnlock()

	cutoff := t.now().Add(-ttl)
	evicted := 0
	for _, s := range live {
		s.mu.Lock()
		if !s.closed && s.lastUsed.Before(cutoff) && t.closeLocked(ctx, s) == nil {
			evicted++
		}
		s.mu.Unlock()
	}
	return evicted
}

// Janitor runs EvictIdle every interval until ctx is done.
func (t *Table) Janitor(ctx context.Context, ttl, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if n := t.EvictIdle(ctx, ttl); n > 0 {
				log.Printf("evicted %d idle sessions", n)
			}
		}
	}
}

// closeLocked needs s.mu held. It takes t.mu, never the other way round.
func (t *Table) closeLocked(ctx context.Context, s *session) error {
	for _, tr := range s.transfers {
		if tr.Status == TransferPending {
			return fmt.Errorf("%w: session %s", ErrPending, s.id)
		}
	}
	if s.state.Status == engine.StatusPlaying {
		prev := s.state
		s.state = t.opts.Engine.NewGame(prev)
		t.forfeit(ctx, s, prev)
	}
	s.closed = true
	t.persist(ctx, s)

	t.mu.Lock()
	delete(t.sessions, s.id)
	n := len(t.sessions)
	t.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	return nil
}

func (t *Table) persist(ctx context.Context, s *session) {
	if t.opts.History == nil {
		return
	}
	if err := t.opts.History.UpsertSession(ctx, s.id, s.state.Player.Balance); err != nil {
		log.Printf("session %s: persist: %v", s.id, err)
	}
}

func (t *Table) lookup(id string) (*session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// acquire returns the session with its lock held and marks it used.
func (t *Table) acquire(id string) (*session, error) {
	s, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.lastUsed = t.now()
	return s, nil
}

func (t *Table) State(id string) (engine.GameState, error) {
	s, err := t.acquire(id)
	if err != nil {
		return engine.GameState{}, err
	}
	defer s.mu.Unlock()
	return s.state, nil
}

func (t *Table) Bet(ctx context.Context, id string, amount int64) (engine.GameState, error) {
	return t.apply(ctx, id, func(e *engine.Engine, gs engine.GameState) (engine.GameState, error) {
		next, err := e.PlaceBet(gs, amount)
		if err == nil {
			metrics.WageredTotal.Add(float64(amount))
		}
		return next, err
	})
}

func (t *Table) Hit(ctx context.Context, id string) (engine.GameState, error) {
	return t.apply(ctx, id, (*engine.Engine).Hit)
}

func (t *Table) Stand(ctx context.Context, id string) (engine.GameState, error) {
	return t.apply(ctx, id, (*engine.Engine).Stand)
}

func (t *Table) NewGame(ctx context.Context, id string) (engine.GameState, error) {
	return t.apply(ctx, id, func(e *engine.Engine, gs engine.GameState) (engine.GameState, error) {
		return e.NewGame(gs), nil
	})
}

// apply runs one transition under the session lock and records any round
// it settles.
func (t *Table) apply(ctx context.Context, id string, op func(*engine.Engine, engine.GameState) (engine.GameState, error)) (engine.GameState, error) {
	s, err := t.acquire(id)
	if err != nil {
		return engine.GameState{}, err
	}
	defer s.mu.Unlock()

	prev := s.state
	next, err := op(t.opts.Engine, prev)
	if err != nil {
		return prev, err
	}
	if err := engine.Audit(next); err != nil {
		return prev, fmt.Errorf("session %s: %w", id, err)
	}
	s.state = next

	switch {
	case prev.Status == engine.StatusPlaying && next.Status == engine.StatusGameOver:
		t.settle(ctx, s, next)
	case prev.Status == engine.StatusPlaying && next.Status == engine.StatusBetting:
		t.forfeit(ctx, s, prev)
	}
	return next, nil
}

// forfeit books the bet of a round abandoned mid-play as a loss.
func (t *Table) forfeit(ctx context.Context, s *session, prev engine.GameState) {
	s.stats.addAbandoned(prev.Player.Bet)
	t.record(ctx, s.id, ledger.KindLoss, prev.Player.Bet, "")
}

func (t *Table) settle(ctx context.Context, s *session, gs engine.GameState) {
	st, ok := gs.Settlement()
	if !ok {
		return
	}
	s.stats.addRound(st, gs.Player.Busted)
	metrics.RoundsTotal.WithLabelValues(string(st.Winner)).Inc()

	if e, ok := ledger.FromSettlement(s.id, st); ok {
		t.appendEntry(ctx, e)
	}
	if t.opts.History != nil {
		r := store.Round{
			SessionID:    s.id,
			Bet:          st.Bet,
			Payout:       st.Payout,
			Winner:       string(st.Winner),
			PlayerHand:   labels(gs.Player.Hand),
			DealerHand:   labels(gs.Dealer.Hand),
			PlayerScore:  gs.Player.Score,
			DealerScore:  gs.Dealer.Score,
			BalanceAfter: gs.Player.Balance,
			FinishedAt:   time.Now().UTC(),
		}
		if err := t.opts.History.InsertRound(ctx, r); err != nil {
			log.Printf("session %s: insert round: %v", s.id, err)
		}
	}
}

func (t *Table) record(ctx context.Context, sessionID string, kind ledger.Kind, amount int64, ref string) {
	e, err := ledger.NewEntry(sessionID, kind, amount, ref)
	if err != nil {
		log.Printf("session %s: ledger entry: %v", sessionID, err)
		return
	}
	t.appendEntry(ctx, e)
}

func (t *Table) appendEntry(ctx context.Context, e ledger.Entry) {
	if t.opts.Signer != nil {
		signed, err := t.opts.Signer.Sign(e)
		if err != nil {
			log.Printf("session %s: %v", e.SessionID, err)
		} else {
			e = signed
		}
	}
	if err := t.opts.Ledger.Append(ctx, e); err != nil {
		log.Printf("session %s: ledger append: %v", e.SessionID, err)
	}
}

func labels(cards []engine.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

func (t *Table) Ledger(ctx context.Context, id string) ([]ledger.Entry, error) {
	s, err := t.acquire(id)
	if err != nil {
		return nil, err
	}
	s.mu.Unlock()
	return t.opts.Ledger.List(ctx, id)
}

// SessionStats is the in-memory tally plus persisted totals when a
// history store is configured.
type SessionStats struct {
	Stats
	History *store.Totals `json:"history,omitempty"`
}

func (t *Table) Stats(ctx context.Context, id string) (SessionStats, error) {
	s, err := t.acquire(id)
	if err != nil {
		return SessionStats{}, err
	}
	out := SessionStats{Stats: s.stats.snapshot()}
	s.mu.Unlock()

	if t.opts.History != nil {
		tot, err := t.opts.History.PlayerTotals(ctx, id)
		if err != nil {
			log.Printf("session %s: totals: %v", id, err)
		} else {
			out.History = &tot
		}
	}
	return out, nil
}

func (t *Table) Advice(ctx context.Context, id string) (judge.Advice, error) {
	gs, err := t.State(id)
	if err != nil {
		return judge.Advice{}, err
	}
	start := time.Now()
	t.randMu.Lock()
	defer t.randMu.Unlock()
	a, err := judge.Advise(ctx, t.opts.Engine, gs, t.opts.AdviceTrials, t.opts.Intn)
	metrics.AdviceSeconds.Observe(time.Since(start).Seconds())
	return a, err
}

func (t *Table) Transfers(id string) ([]Transfer, error) {
	s, err := t.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := make([]Transfer, 0, len(s.transfers))
	for i := len(s.transfers) - 1; i >= 0; i-- {
		out = append(out, *s.transfers[i])
	}
	return out, nil
}

// Deposit hands the transfer to the wallet queue. The balance changes only
// once Run sees the confirmation.
func (t *Table) Deposit(ctx context.Context, id string, amount int64) (Transfer, error) {
	if t.opts.Wallet == nil {
		return Transfer{}, ErrWalletDisabled
	}
	if amount <= 0 {
		return Transfer{}, fmt.Errorf("%w: deposit %d", engine.ErrRejected, amount)
	}
	s, err := t.acquire(id)
	if err != nil {
		return Transfer{}, err
	}
	defer s.mu.Unlock()
	jobID, err := t.opts.Wallet.Submit(id, wallet.OpDeposit, amount)
	if err != nil {
		return Transfer{}, err
	}
	tr := &Transfer{ID: jobID, Op: wallet.OpDeposit, Amount: amount, Status: TransferPending}
	s.transfers = append(s.transfers, tr)
	return *tr, nil
}

// Withdraw debits the balance right away and pays out asynchronously; a
// failed payout is credited back.
func (t *Table) Withdraw(ctx context.Context, id string, amount int64) (Transfer, engine.GameState, error) {
	if t.opts.Wallet == nil {
		return Transfer{}, engine.GameState{}, ErrWalletDisabled
	}
	s, err := t.acquire(id)
	if err != nil {
		return Transfer{}, engine.GameState{}, err
	}
	defer s.mu.Unlock()
	next, err := t.opts.Engine.Debit(s.state, amount)
	if err != nil {
		return Transfer{}, s.state, err
	}
	jobID, err := t.opts.Wallet.Submit(id, wallet.OpWithdraw, amount)
	if err != nil {
		return Transfer{}, s.state, err
	}
	s.state = next
	tr := &Transfer{ID: jobID, Op: wallet.OpWithdraw, Amount: amount, Status: TransferPending}
	s.transfers = append(s.transfers, tr)
	return *tr, next, nil
}

// Run applies wallet results until ctx is done or the queue closes.
func (t *Table) Run(ctx context.Context) {
	if t.opts.Wallet == nil {
		return
	}
	results := t.opts.Wallet.Results()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-results:
			if !ok {
				return
			}
			t.applyResult(ctx, r)
		}
	}
}

func (t *Table) applyResult(ctx context.Context, r wallet.Result) {
	outcome := "confirmed"
	if r.Err != nil {
		outcome = "failed"
	}
	metrics.WalletOpsTotal.WithLabelValues(string(r.Op), outcome).Inc()

	s, err := t.acquire(r.SessionID)
	if err != nil {
		log.Printf("wallet %s %s: %v", r.Op, r.ID, err)
		return
	}
	defer s.mu.Unlock()

	var tr *Transfer
	for _, x := range s.transfers {
		if x.ID == r.ID {
			tr = x
			break
		}
	}
	if tr == nil {
		tr = &Transfer{ID: r.ID, Op: r.Op, Amount: r.Amount}
		s.transfers = append(s.transfers, tr)
	}
	tr.Reference = r.Reference

	if r.Err != nil {
		tr.Status = TransferFailed
		tr.Error = r.Err.Error()
		log.Printf("session %s: %s of %d failed: %v", s.id, r.Op, r.Amount, r.Err)
		if r.Op == wallet.OpWithdraw {
			if next, err := t.opts.Engine.Credit(s.state, r.Amount); err == nil {
				s.state = next
			}
		}
		return
	}

	tr.Status = TransferConfirmed
	switch r.Op {
	case wallet.OpDeposit:
		next, err := t.opts.Engine.Credit(s.state, r.Amount)
		if err != nil {
			tr.Status = TransferFailed
			tr.Error = err.Error()
			return
		}
		s.state = next
		t.record(ctx, s.id, ledger.KindDeposit, r.Amount, r.Reference)
	case wallet.OpWithdraw:
		t.record(ctx, s.id, ledger.KindWithdraw, r.Amount, r.Reference)
	}
}
