package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

var ErrClientClosed = errors.New("ws_client_closed")

// wsSubscription implements Subscription over the shared websocket.
type wsSubscription struct {
	Handle  string
	address string
	ch      chan []byte
	client  *WSClient
}

func (s *wsSubscription) Updates() <-chan []byte { return s.ch }

func (s *wsSubscription) Address() string { return s.address }

func (s *wsSubscription) Unsubscribe() {
	s.client.unsubscribe(s)
}

// WSClient maintains one websocket to the RPC node and multiplexes account
// subscriptions over it. A dropped connection redials with backoff and
// re-subscribes every active watch; in-flight requests fail.
type WSClient struct {
	url    string
	dialer *websocket.Dialer

	mu          sync.Mutex
	conn        *websocket.Conn
	writeMu     sync.Mutex
	nextID      int64
	pending     map[int64]chan rpcResponse
	pendingSubs map[int64]string           // subscribe request id -> handle
	subs        map[string]*wsSubscription // by handle
	byServer    map[int64]string           // server subscription id -> handle
	entropy     *ulid.MonotonicEntropy
	closed      bool
	done        chan struct{}
}

func DialWS(ctx context.Context, url string) (*WSClient, error) {
	c := &WSClient{
		url:         url,
		dialer:      websocket.DefaultDialer,
		pending:     map[int64]chan rpcResponse{},
		pendingSubs: map[int64]string{},
		subs:        map[string]*wsSubscription{},
		byServer:    map[int64]string{},
		entropy:     ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		done:        make(chan struct{}),
	}
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	go c.readLoop()
	return c, nil
}

func (c *WSClient) Done() <-chan struct{} { return c.done }

func (c *WSClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	for _, sub := range c.subs {
		close(sub.ch)
	}
	c.subs = map[string]*wsSubscription{}
	c.byServer = map[int64]string{}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingSubs = map[int64]string{}
	close(c.done)
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Watch subscribes to account changes at address.
func (c *WSClient) Watch(ctx context.Context, address string) (Subscription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	sub := &wsSubscription{
		Handle:  ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String(),
		address: address,
		ch:      make(chan []byte, 64),
		client:  c,
	}
	c.subs[sub.Handle] = sub
	c.mu.Unlock()

	if err := c.subscribeRemote(ctx, address, sub.Handle); err != nil {
		c.mu.Lock()
		delete(c.subs, sub.Handle)
		c.mu.Unlock()
		return nil, err
	}
	return sub, nil
}

func (c *WSClient) unsubscribe(sub *wsSubscription) {
	c.mu.Lock()
	if _, ok := c.subs[sub.Handle]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.subs, sub.Handle)
	var serverID int64 = -1
	for id, handle := range c.byServer {
		if handle == sub.Handle {
			serverID = id
			delete(c.byServer, id)
			break
		}
	}
	// closing under the same lock the dispatcher takes guarantees no event
	// is delivered after Unsubscribe returns
	close(sub.ch)
	c.mu.Unlock()

	if serverID >= 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := c.request(ctx, "accountUnsubscribe", []any{serverID}, ""); err != nil {
			log.Warn().Err(err).Str("address", sub.address).Msg("accountUnsubscribe failed")
		}
	}
}

// subscribeRemote issues an accountSubscribe. The read pump records the
// server id -> handle mapping when it correlates the reply, under the lock
// it dispatches with, so a notification can never outrun the mapping.
func (c *WSClient) subscribeRemote(ctx context.Context, address, handle string) error {
	result, err := c.request(ctx, "accountSubscribe", []any{
		address,
		map[string]any{"encoding": "base64", "commitment": "confirmed"},
	}, handle)
	if err != nil {
		return err
	}
	var serverID int64
	if err := json.Unmarshal(result, &serverID); err != nil {
		return fmt.Errorf("bad accountSubscribe result: %w", err)
	}
	return nil
}

func (c *WSClient) request(ctx context.Context, method string, params []any, subHandle string) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan rpcResponse, 1)
	c.pending[id] = ch
	if subHandle != "" {
		c.pendingSubs[id] = subHandle
	}
	conn := c.conn
	c.mu.Unlock()

	drop := func() {
		c.mu.Lock()
		delete(c.pending, id)
		delete(c.pendingSubs, id)
		c.mu.Unlock()
	}

	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		drop()
		return nil, err
	}
	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		drop()
		return nil, err
	}

	select {
	case <-ctx.Done():
		drop()
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClientClosed
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

type wsMessage struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (c *WSClient) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		c.readPump(conn)
		if !c.redial() {
			return
		}
	}
}

// readPump drains one connection until it errors.
func (c *WSClient) readPump(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var parsed wsMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			log.Warn().Err(err).Msg("unparseable ws message")
			continue
		}
		switch {
		case parsed.ID != nil:
			c.mu.Lock()
			if handle, ok := c.pendingSubs[*parsed.ID]; ok {
				delete(c.pendingSubs, *parsed.ID)
				if parsed.Error == nil {
					var serverID int64
					if err := json.Unmarshal(parsed.Result, &serverID); err == nil {
						if _, still := c.subs[handle]; still {
							c.byServer[serverID] = handle
						}
					}
				}
			}
			if ch, ok := c.pending[*parsed.ID]; ok {
				delete(c.pending, *parsed.ID)
				ch <- rpcResponse{Result: parsed.Result, Error: parsed.Error}
			}
			c.mu.Unlock()
		case parsed.Method == "accountNotification":
			c.dispatch(parsed.Params)
		}
	}
}

func (c *WSClient) dispatch(params json.RawMessage) {
	var notif struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Value accountValue `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(params, &notif); err != nil {
		log.Warn().Err(err).Msg("unparseable account notification")
		return
	}
	raw, err := notif.Result.Value.decode()
	if err != nil {
		log.Warn().Err(err).Msg("undecodable account payload")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	handle, ok := c.byServer[notif.Subscription]
	if !ok {
		return
	}
	sub, ok := c.subs[handle]
	if !ok {
		return
	}
	select {
	case sub.ch <- raw:
	default:
		log.Warn().Str("address", sub.address).Msg("slow subscriber, dropping account update")
	}
}

// redial reconnects with backoff. Resubscription runs on its own goroutine:
// the read pump must be back on the new connection before subscribe replies
// can be correlated, so it cannot happen here. Returns false when the client
// was closed instead.
func (c *WSClient) redial() bool {
	backoff := 500 * time.Millisecond
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return false
		}
		// in-flight requests cannot complete on the dead connection
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingSubs = map[int64]string{}
		c.byServer = map[int64]string{}
		active := make([]*wsSubscription, 0, len(c.subs))
		for _, sub := range c.subs {
			active = append(active, sub)
		}
		c.mu.Unlock()

		log.Warn().Str("url", c.url).Dur("backoff", backoff).Msg("ws connection lost, redialing")
		time.Sleep(backoff)
		if backoff < 8*time.Second {
			backoff *= 2
		}

		conn, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			continue
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return false
		}
		c.conn = conn
		c.mu.Unlock()

		go c.resubscribe(conn, active)
		return true
	}
}

// resubscribe re-establishes every watch that was active when the connection
// dropped. A failure closes the connection, which sends the read pump back
// through redial with a fresh snapshot of active watches.
func (c *WSClient) resubscribe(conn *websocket.Conn, active []*wsSubscription) {
	for _, sub := range active {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.subscribeRemote(ctx, sub.address, sub.Handle)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("address", sub.address).Msg("resubscribe failed")
			_ = conn.Close()
			return
		}
	}
}
