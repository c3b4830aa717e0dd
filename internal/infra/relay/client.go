package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"fge-test-platform/internal/domain"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned once the relay connection is gone.
var ErrClosed = errors.New("relay connection closed")

// Client implements app.SignalStore against a signal relay websocket.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan domain.RelayMessage
	subs    map[int64]chan domain.SignalChange
	closed  chan struct{}
	err     error
}

// Dial connects to the relay at rawURL as the context identified by origin,
// authenticating with the bearer token when one is given.
func Dial(ctx context.Context, rawURL, origin, token string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("origin", origin)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial relay: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	c := &Client{
		conn:    conn,
		pending: make(map[int64]chan domain.RelayMessage),
		subs:    make(map[int64]chan domain.SignalChange),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := c.call(ctx, domain.RelayMessage{Type: domain.RelayGet, Key: key})
	if err != nil {
		return "", false, err
	}
	return resp.Value, resp.Found, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	_, err := c.call(ctx, domain.RelayMessage{Type: domain.RelaySet, Key: key, Value: value})
	return err
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.call(ctx, domain.RelayMessage{Type: domain.RelayDelete, Key: key})
	return err
}

// Subscribe streams changes of keys written by other relay contexts.
func (c *Client) Subscribe(ctx context.Context, keys ...string) (<-chan domain.SignalChange, func(), error) {
	id, respCh, err := c.register()
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan domain.SignalChange, 64)
	c.mu.Lock()
	c.subs[id] = ch
	c.mu.Unlock()

	if _, err := c.roundTrip(ctx, id, respCh, domain.RelayMessage{ID: id, Type: domain.RelaySubscribe, Keys: keys}); err != nil {
		c.dropSub(id)
		return nil, nil, err
	}

	stopped := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stopped)
			if c.dropSub(id) {
				// best-effort; the relay also cleans up when the connection ends
				_ = c.write(domain.RelayMessage{ID: id, Type: domain.RelayUnsubscribe})
			}
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stopped:
		case <-c.closed:
		}
	}()
	return ch, cancel, nil
}

// Close ends the connection; pending calls fail and subscriptions close.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, msg domain.RelayMessage) (domain.RelayMessage, error) {
	id, respCh, err := c.register()
	if err != nil {
		return domain.RelayMessage{}, err
	}
	msg.ID = id
	return c.roundTrip(ctx, id, respCh, msg)
}

func (c *Client) register() (int64, chan domain.RelayMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, nil, c.err
	}
	c.nextID++
	ch := make(chan domain.RelayMessage, 1)
	c.pending[c.nextID] = ch
	return c.nextID, ch, nil
}

func (c *Client) roundTrip(ctx context.Context, id int64, respCh chan domain.RelayMessage, msg domain.RelayMessage) (domain.RelayMessage, error) {
	if err := c.write(msg); err != nil {
		c.forget(id)
		return domain.RelayMessage{}, err
	}
	select {
	case resp, ok := <-respCh:
		if !ok {
			return domain.RelayMessage{}, ErrClosed
		}
		if resp.Error != "" {
			return resp, errors.New(resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		c.forget(id)
		return domain.RelayMessage{}, ctx.Err()
	}
}

func (c *Client) write(msg domain.RelayMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) dropSub(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.subs[id]
	if ok {
		delete(c.subs, id)
		close(ch)
	}
	return ok
}

func (c *Client) readLoop() {
	for {
		var msg domain.RelayMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.shutdown()
			return
		}
		c.mu.Lock()
		switch msg.Type {
		case domain.RelayResult:
			if ch, ok := c.pending[msg.ID]; ok {
				delete(c.pending, msg.ID)
				ch <- msg
			}
		case domain.RelayChange:
			if ch, ok := c.subs[msg.ID]; ok && msg.Change != nil {
				select {
				case ch <- *msg.Change:
				default:
					select {
					case <-ch:
					default:
					}
					ch <- *msg.Change
				}
			}
		}
		c.mu.Unlock()
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = ErrClosed
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	close(c.closed)
}
