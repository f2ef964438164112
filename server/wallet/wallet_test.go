package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	mu       sync.Mutex
	methods  []string
	auth     string
	pending  int // confirm calls answered false before true
	rejectTx bool
}

func (f *fakeRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     int64          `json:"id"`
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	f.auth = r.Header.Get("Authorization")
	pending := f.pending
	if req.Method == "confirmTransaction" && f.pending > 0 {
		f.pending--
	}
	f.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "transfer", "payout":
		if f.rejectTx {
			resp["error"] = map[string]any{"code": -32002, "message": "insufficient funds"}
		} else {
			resp["result"] = "sig-" + req.Method
		}
	case "confirmTransaction":
		resp["result"] = map[string]any{"confirmed": pending == 0}
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeRelay) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func testClient(t *testing.T, relay *fakeRelay) *RPCClient {
	t.Helper()
	srv := httptest.NewServer(relay)
	t.Cleanup(srv.Close)
	return NewRPCClient(Config{
		RPCURL:       srv.URL,
		APIKey:       "secret",
		HeaderName:   "Authorization",
		HeaderPrefix: "Bearer ",
		HouseAddress: DefaultHouseAddress,
		Timeout:      5 * time.Second,
	})
}

func TestRPCClientTransferAndConfirm(t *testing.T) {
	relay := &fakeRelay{}
	c := testClient(t, relay)
	ctx := context.Background()

	sig, err := c.Transfer(ctx, 500)
	require.NoError(t, err)
	require.Equal(t, "sig-transfer", sig)

	ok, err := c.Confirm(ctx, sig)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"transfer", "confirmTransaction"}, relay.calls())
	relay.mu.Lock()
	defer relay.mu.Unlock()
	require.Equal(t, "Bearer secret", relay.auth)
}

func TestRPCClientRejection(t *testing.T) {
	c := testClient(t, &fakeRelay{rejectTx: true})
	_, err := c.Transfer(context.Background(), 500)
	require.ErrorIs(t, err, ErrRejected)

	_, err = c.Transfer(context.Background(), 0)
	require.ErrorIs(t, err, ErrRejected)
}

func TestRPCClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewRPCClient(Config{RPCURL: srv.URL, Timeout: time.Second})
	_, err := c.Transfer(context.Background(), 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestConfirmWithRetryEventuallyConfirms(t *testing.T) {
	relay := &fakeRelay{pending: 2}
	c := testClient(t, relay)
	err := ConfirmWithRetry(context.Background(), c, "sig", 3, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, relay.calls(), 3)
}

func TestConfirmWithRetryGivesUp(t *testing.T) {
	relay := &fakeRelay{pending: 10}
	c := testClient(t, relay)
	err := ConfirmWithRetry(context.Background(), c, "sig", 3, time.Millisecond)
	require.ErrorIs(t, err, ErrNotConfirmed)
	require.Len(t, relay.calls(), 3)
}

type flakyClient struct {
	calls int
}

func (f *flakyClient) Transfer(context.Context, int64) (string, error) { return "x", nil }
func (f *flakyClient) Confirm(context.Context, string) (bool, error) {
	f.calls++
	return false, errors.New("connection reset")
}

func TestConfirmWithRetryReturnsLastTransportError(t *testing.T) {
	f := &flakyClient{}
	err := ConfirmWithRetry(context.Background(), f, "x", 2, time.Millisecond)
	require.EqualError(t, err, "connection reset")
	require.Equal(t, 2, f.calls)
}

func TestConfirmWithRetryHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ConfirmWithRetry(ctx, &flakyClient{}, "x", 3, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueueDepositAndWithdraw(t *testing.T) {
	c := testClient(t, &fakeRelay{})
	q := NewQueue(c, 3, time.Millisecond, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 1)

	depID, err := q.Submit("s1", OpDeposit, 100)
	require.NoError(t, err)
	wdID, err := q.Submit("s1", OpWithdraw, 40)
	require.NoError(t, err)

	got := map[string]Result{}
	for len(got) < 2 {
		select {
		case r := <-q.Results():
			got[r.ID] = r
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}
	require.NoError(t, got[depID].Err)
	require.Equal(t, "sig-transfer", got[depID].Reference)
	require.EqualValues(t, 100, got[depID].Amount)
	require.NoError(t, got[wdID].Err)
	require.Equal(t, "sig-payout", got[wdID].Reference)
}

func TestQueueReportsRejection(t *testing.T) {
	c := testClient(t, &fakeRelay{rejectTx: true})
	q := NewQueue(c, 1, time.Millisecond, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 1)

	id, err := q.Submit("s1", OpDeposit, 100)
	require.NoError(t, err)
	select {
	case r := <-q.Results():
		require.Equal(t, id, r.ID)
		require.ErrorIs(t, r.Err, ErrRejected)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(&flakyClient{}, 1, time.Millisecond, 1)
	_, err := q.Submit("s", OpDeposit, 1)
	require.NoError(t, err)
	_, err = q.Submit("s", OpDeposit, 1)
	require.ErrorIs(t, err, ErrQueueFull)
}
