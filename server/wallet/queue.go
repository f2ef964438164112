package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Op string

const (
	OpDeposit  Op = "deposit"
	OpWithdraw Op = "withdraw"
)

var ErrQueueFull = errors.New("wallet queue full")

type Job struct {
	ID        string
	SessionID string
	Op        Op
	Amount    int64
}

// Result reports a finished job. Err is nil only when the transfer confirmed.
type Result struct {
	Job
	Reference string
	Err       error
}

// Queue runs transfers off the request path. Results are delivered in
// completion order on Results().
type Queue struct {
	client  Client
	retries int
	delay   time.Duration

	jobs    chan Job
	results chan Result
	once    sync.Once
	wg      sync.WaitGroup
}

func NewQueue(c Client, retries int, delay time.Duration, depth int) *Queue {
	if depth <= 0 {
		depth = 64
	}
	return &Queue{
		client:  c,
		retries: retries,
		delay:   delay,
		jobs:    make(chan Job, depth),
		results: make(chan Result, depth),
	}
}

// Submit enqueues a transfer and returns its pending id without blocking.
func (q *Queue) Submit(sessionID string, op Op, amount int64) (string, error) {
	j := Job{ID: uuid.NewString(), SessionID: sessionID, Op: op, Amount: amount}
	select {
	case q.jobs <- j:
		return j.ID, nil
	default:
		return "", ErrQueueFull
	}
}

func (q *Queue) Results() <-chan Result { return q.results }

// Start launches the given number of workers. They exit when ctx is done;
// Results is closed once all have returned.
func (q *Queue) Start(ctx context.Context, workers int) {
	q.once.Do(func() {
		if workers <= 0 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			q.wg.Add(1)
			go q.worker(ctx)
		}
		go func() {
			q.wg.Wait()
			close(q.results)
		}()
	})
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.jobs:
			r := q.run(ctx, j)
			select {
			case q.results <- r:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (q *Queue) run(ctx context.Context, j Job) Result {
	r := Result{Job: j}
	switch j.Op {
	case OpDeposit:
		r.Reference, r.Err = q.client.Transfer(ctx, j.Amount)
	case OpWithdraw:
		w, ok := q.client.(Withdrawer)
		if !ok {
			r.Err = errors.New("wallet client does not support withdrawals")
			return r
		}
		r.Reference, r.Err = w.Payout(ctx, j.Amount)
	default:
		r.Err = errors.New("unknown wallet op " + string(j.Op))
		return r
	}
	if r.Err != nil {
		return r
	}
	r.Err = ConfirmWithRetry(ctx, q.client, r.Reference, q.retries, q.delay)
	return r
}
