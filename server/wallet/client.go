package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	// ErrRejected is a transfer the wallet or chain refused.
	ErrRejected = errors.New("wallet rejected transfer")
	// ErrNotConfirmed means the transfer never confirmed within the retry budget.
	ErrNotConfirmed = errors.New("transfer not confirmed")
)

// Client moves funds into the house wallet and reports confirmation.
type Client interface {
	Transfer(ctx context.Context, amount int64) (string, error)
	Confirm(ctx context.Context, ref string) (bool, error)
}

// Withdrawer pays funds out of the house wallet. Optional.
type Withdrawer interface {
	Payout(ctx context.Context, amount int64) (string, error)
}

// RPCClient speaks JSON-RPC 2.0 to a wallet relay.
type RPCClient struct {
	cfg  Config
	http *http.Client
	seq  atomic.Int64
}

func NewRPCClient(cfg Config) *RPCClient {
	return &RPCClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc %d: %s", e.Code, e.Message) }

func (c *RPCClient) Transfer(ctx context.Context, amount int64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount %d", ErrRejected, amount)
	}
	var sig string
	err := c.call(ctx, "transfer", map[string]any{"to": c.cfg.HouseAddress, "amount": amount}, &sig)
	return sig, err
}

func (c *RPCClient) Payout(ctx context.Context, amount int64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount %d", ErrRejected, amount)
	}
	var sig string
	err := c.call(ctx, "payout", map[string]any{"from": c.cfg.HouseAddress, "amount": amount}, &sig)
	return sig, err
}

func (c *RPCClient) Confirm(ctx context.Context, ref string) (bool, error) {
	var res struct {
		Confirmed bool   `json:"confirmed"`
		Err       string `json:"err,omitempty"`
	}
	if err := c.call(ctx, "confirmTransaction", map[string]any{"signature": ref, "commitment": "confirmed"}, &res); err != nil {
		return false, err
	}
	if res.Err != "" {
		return false, fmt.Errorf("%w: %s", ErrRejected, res.Err)
	}
	return res.Confirmed, nil
}

func (c *RPCClient) call(ctx context.Context, method string, params, out any) error {
	b, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.seq.Add(1), Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.HeaderName, c.cfg.HeaderPrefix+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	body := buf.Bytes()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("wallet http %d: %s", resp.StatusCode, truncate(string(body), 800))
	}

	var rr struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(body, &rr); err != nil {
		return err
	}
	if rr.Error != nil {
		return fmt.Errorf("%w: %s: %v", ErrRejected, method, rr.Error)
	}
	if len(rr.Result) == 0 {
		return fmt.Errorf("%s: empty result", method)
	}
	return json.Unmarshal(rr.Result, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
