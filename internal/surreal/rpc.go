package surreal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"murmur/internal/core"
)

const (
	defaultTimeout   = 10 * time.Second
	liveBufferSize   = 64
	closeWaitTimeout = time.Second
)

// RPC is the part of the database connection the rest of the code depends on.
type RPC interface {
	Use(ctx context.Context, namespace, database string) error
	Signin(ctx context.Context, creds Credentials) (string, error)
	Signup(ctx context.Context, creds Credentials) (string, error)
	Authenticate(ctx context.Context, token string) error
	Invalidate(ctx context.Context) error
	Query(ctx context.Context, sql string, vars map[string]any) ([]QueryResult, error)
	Relate(ctx context.Context, in, relation, out core.RecordID, data any) error
	Delete(ctx context.Context, thing core.RecordID) error
	Live(ctx context.Context, table string) (string, <-chan Notification, error)
	Kill(ctx context.Context, liveID string) error
	// Err returns a non-nil error once the connection is unusable.
	Err() error
	Close() error
}

// Credentials identify a record user of an access method.
type Credentials struct {
	Namespace string
	Database  string
	Access    string
	Vars      map[string]any
}

func (c Credentials) params() map[string]any {
	params := make(map[string]any, len(c.Vars)+3)
	for k, v := range c.Vars {
		params[k] = v
	}
	params["NS"] = c.Namespace
	params["DB"] = c.Database
	params["AC"] = c.Access
	return params
}

// QueryResult is the result of one statement of a query.
type QueryResult struct {
	Status string          `json:"status"`
	Time   string          `json:"time"`
	Result json.RawMessage `json:"result"`
}

// Notification is a change delivered to a live query.
type Notification struct {
	ID     string          `json:"id"`
	Action string          `json:"action"`
	Result json.RawMessage `json:"result"`
}

// Observer is called after every RPC call.
type Observer func(method string, duration time.Duration, err error)

type Option func(*Conn)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Conn) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Conn) {
		c.observer = observer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

type request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// waiter receives the reply of one request. live is set for live requests, the read loop registers it
// under the returned id before the reply is handed over.
type waiter struct {
	reply chan response
	live  chan Notification
}

// Conn is a websocket RPC connection to the database. It is safe for concurrent use, requests are
// multiplexed by id. Authentication state belongs to the connection.
type Conn struct {
	logger   *slog.Logger
	timeout  time.Duration
	observer Observer

	ws      *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*waiter
	lives   map[string]chan Notification
	err     error

	done chan struct{}
}

func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
		Subprotocols:     []string{"json"},
	}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Conn{
		logger:  slog.Default(),
		timeout: defaultTimeout,
		ws:      ws,
		pending: map[string]*waiter{},
		lives:   map[string]chan Notification{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "surreal.Conn")

	go c.readLoop()

	return c, nil
}

func (c *Conn) readLoop() {
	var err error
	defer func() {
		c.fail(err)
	}()

	for {
		var data []byte
		_, data, err = c.ws.ReadMessage()
		if err != nil {
			return
		}

		var res response
		if jsonErr := json.Unmarshal(data, &res); jsonErr != nil {
			c.logger.Warn("failed to decode message", "error", jsonErr)
			continue
		}

		if res.ID == "" {
			c.notify(res.Result)
			continue
		}

		c.mu.Lock()
		w, ok := c.pending[res.ID]
		delete(c.pending, res.ID)
		if ok && w.live != nil && res.Error == nil {
			var liveID string
			if json.Unmarshal(res.Result, &liveID) == nil {
				c.lives[liveID] = w.live
			}
		}
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("reply to an abandoned request", "id", res.ID)
			continue
		}
		w.reply <- res
	}
}

func (c *Conn) notify(raw json.RawMessage) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil || n.ID == "" {
		c.logger.Warn("failed to decode notification", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.lives[n.ID]
	if !ok {
		c.logger.Debug("notification for an unknown live query", "live_id", n.ID)
		return
	}

	select {
	case ch <- n:
	default:
		c.logger.Warn("live query consumer is too slow, dropping notification", "live_id", n.ID)
	}
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return
	}
	if err == nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		err = ErrClosed
	} else {
		err = fmt.Errorf("%w: %w", ErrClosed, err)
	}
	c.err = err

	for id := range c.pending {
		delete(c.pending, id)
	}
	for id, ch := range c.lives {
		close(ch)
		delete(c.lives, id)
	}
	close(c.done)
}

// Err returns the reason the connection stopped working, nil while it is alive.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return c.roundTrip(ctx, &waiter{reply: make(chan response, 1)}, method, params...)
}

func (c *Conn) roundTrip(ctx context.Context, w *waiter, method string, params ...any) (result json.RawMessage, err error) {
	if c.observer != nil {
		start := time.Now()
		defer func() {
			c.observer(method, time.Since(start), err)
		}()
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := request{
		ID:     ulid.Make().String(),
		Method: method,
		Params: params,
	}

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.pending[req.ID] = w
	c.mu.Unlock()

	c.writeMu.Lock()
	err = c.ws.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	select {
	case res := <-w.reply:
		if res.Error != nil {
			return nil, res.Error
		}
		return res.Result, nil
	case <-c.done:
		return nil, c.Err()
	case <-ctx.Done():
		c.forget(req.ID)
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (c *Conn) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) Use(ctx context.Context, namespace, database string) error {
	_, err := c.call(ctx, "use", namespace, database)
	return err
}

func (c *Conn) Signin(ctx context.Context, creds Credentials) (string, error) {
	res, err := c.call(ctx, "signin", creds.params())
	if err != nil {
		return "", err
	}
	return decodeToken(res)
}

func (c *Conn) Signup(ctx context.Context, creds Credentials) (string, error) {
	res, err := c.call(ctx, "signup", creds.params())
	if err != nil {
		return "", err
	}
	return decodeToken(res)
}

func (c *Conn) Authenticate(ctx context.Context, token string) error {
	_, err := c.call(ctx, "authenticate", token)
	return err
}

func (c *Conn) Invalidate(ctx context.Context) error {
	_, err := c.call(ctx, "invalidate")
	return err
}

// Query runs sql with vars bound as parameters. A statement that failed turns into an *Error, the
// results of all statements are returned either way.
func (c *Conn) Query(ctx context.Context, sql string, vars map[string]any) ([]QueryResult, error) {
	if vars == nil {
		vars = map[string]any{}
	}

	res, err := c.call(ctx, "query", sql, vars)
	if err != nil {
		return nil, err
	}

	var results []QueryResult
	if err := json.Unmarshal(res, &results); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
	}

	return results, statementError(results)
}

func (c *Conn) Relate(ctx context.Context, in, relation, out core.RecordID, data any) error {
	_, err := c.call(ctx, "relate", in.String(), relation.String(), out.String(), data)
	return err
}

func (c *Conn) Delete(ctx context.Context, thing core.RecordID) error {
	_, err := c.call(ctx, "delete", thing.String())
	return err
}

// Live starts a live query on table. The channel is closed by Kill or when the connection stops.
// Notifications sent right after the reply are not lost, the channel is registered before the reply is
// delivered.
func (c *Conn) Live(ctx context.Context, table string) (string, <-chan Notification, error) {
	ch := make(chan Notification, liveBufferSize)

	res, err := c.roundTrip(ctx, &waiter{reply: make(chan response, 1), live: ch}, "live", table)
	if err != nil {
		return "", nil, err
	}

	var id string
	if err := json.Unmarshal(res, &id); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
	}

	return id, ch, nil
}

func (c *Conn) Kill(ctx context.Context, liveID string) error {
	_, err := c.call(ctx, "kill", liveID)

	c.mu.Lock()
	if ch, ok := c.lives[liveID]; ok {
		close(ch)
		delete(c.lives, liveID)
	}
	c.mu.Unlock()

	return err
}

func (c *Conn) Close() error {
	c.writeMu.Lock()
	err := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWaitTimeout))
	c.writeMu.Unlock()

	select {
	case <-c.done:
	case <-time.After(closeWaitTimeout):
	}

	return errors.Join(err, c.ws.Close())
}

func statementError(results []QueryResult) error {
	for i, r := range results {
		if r.Status != "ERR" {
			continue
		}
		var msg string
		if err := json.Unmarshal(r.Result, &msg); err != nil {
			msg = string(r.Result)
		}
		return fmt.Errorf("statement %d: %w", i, &Error{Code: StatementErrorCode, Message: msg})
	}
	return nil
}

func decodeToken(res json.RawMessage) (string, error) {
	var token string
	if err := json.Unmarshal(res, &token); err == nil {
		return token, nil
	}

	// Newer servers reply with an object holding the token and an optional refresh token.
	var tokens struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(res, &tokens); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
	}
	return tokens.Token, nil
}

// Decode unmarshals the result of the i-th statement.
func Decode[T any](results []QueryResult, i int) (T, error) {
	var v T
	if i >= len(results) {
		return v, fmt.Errorf("%w: statement %d of %d", ErrNoResult, i, len(results))
	}
	if err := json.Unmarshal(results[i].Result, &v); err != nil {
		return v, fmt.Errorf("%w: statement %d: %w", ErrUnexpectedReply, i, err)
	}
	return v, nil
}

// DecodeFirst unmarshals the first row of the i-th statement. ok is false when it returned no rows.
func DecodeFirst[T any](results []QueryResult, i int) (v T, ok bool, err error) {
	rows, err := Decode[[]T](results, i)
	if err != nil || len(rows) == 0 {
		return v, false, err
	}
	return rows[0], true, nil
}
