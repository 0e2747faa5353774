package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"

	"chain-roulette/internal/account"
)

// RPCClient fetches accounts over JSON-RPC HTTP. Transient failures retry
// with a short backoff here so the reconciler never has to.
type RPCClient struct {
	url       string
	programID string
	http      *http.Client
	nextID    atomic.Int64
	retries   int
}

func NewRPCClient(url, programID string) *RPCClient {
	return &RPCClient{
		url:       url,
		programID: programID,
		http:      &http.Client{Timeout: 15 * time.Second},
		retries:   2,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *RPCClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		var decoded rpcResponse
		err = json.NewDecoder(resp.Body).Decode(&decoded)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if decoded.Error != nil {
			return nil, decoded.Error
		}
		return decoded.Result, nil
	}
	return nil, fmt.Errorf("rpc call %s failed: %w", method, lastErr)
}

type accountValue struct {
	Data [2]string `json:"data"` // [payload, encoding]
}

func (v accountValue) decode() ([]byte, error) {
	if v.Data[1] != "base64" {
		return nil, fmt.Errorf("unexpected account encoding %q", v.Data[1])
	}
	return base64.StdEncoding.DecodeString(v.Data[0])
}

// GetAccount returns the raw record at address. A missing account is not an
// error; a present account with the wrong discriminator is.
func (c *RPCClient) GetAccount(ctx context.Context, address string, schema account.Schema) ([]byte, bool, error) {
	result, err := c.call(ctx, "getAccountInfo", []any{address, map[string]any{"encoding": "base64"}})
	if err != nil {
		return nil, false, err
	}
	var payload struct {
		Value *accountValue `json:"value"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, false, err
	}
	if payload.Value == nil {
		return nil, false, nil
	}
	raw, err := payload.Value.decode()
	if err != nil {
		return nil, false, err
	}
	disc, err := account.Discriminator(schema)
	if err != nil {
		return nil, false, err
	}
	if !account.Match(raw, []account.Filter{{Offset: 0, Bytes: disc}}) {
		return nil, false, fmt.Errorf("%w: account %s is not a %s", account.ErrUnknownAccountType, address, schema)
	}
	return raw, true, nil
}

// GetAccountsByFilter lists program accounts of one schema. The schema's
// discriminator is always prepended as an offset-0 filter.
func (c *RPCClient) GetAccountsByFilter(ctx context.Context, schema account.Schema, filters []account.Filter) ([]Raw, error) {
	disc, err := account.Discriminator(schema)
	if err != nil {
		return nil, err
	}
	memcmps := make([]any, 0, len(filters)+1)
	memcmps = append(memcmps, memcmpFilter(0, disc))
	for _, f := range filters {
		memcmps = append(memcmps, memcmpFilter(f.Offset, f.Bytes))
	}
	result, err := c.call(ctx, "getProgramAccounts", []any{
		c.programID,
		map[string]any{"encoding": "base64", "filters": memcmps},
	})
	if err != nil {
		return nil, err
	}
	var entries []struct {
		Pubkey  string       `json:"pubkey"`
		Account accountValue `json:"account"`
	}
	if err := json.Unmarshal(result, &entries); err != nil {
		return nil, err
	}
	out := make([]Raw, 0, len(entries))
	for _, e := range entries {
		raw, err := e.Account.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, Raw{Address: e.Pubkey, Data: raw})
	}
	return out, nil
}

func memcmpFilter(offset int, b []byte) map[string]any {
	return map[string]any{
		"memcmp": map[string]any{
			"offset": offset,
			"bytes":  base58.Encode(b),
		},
	}
}
