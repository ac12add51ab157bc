package collab

import (
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle of a channel client. Reconnection is
// an explicit, observable state machine rather than hidden transport
// behavior.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Backoff is a bounded exponential backoff policy for reconnect attempts.
type Backoff struct {
	Min time.Duration
	Max time.Duration

	attempt int
}

// Next returns the delay before the next attempt, doubling up to Max.
func (b *Backoff) Next() time.Duration {
	d := b.Min << b.attempt
	if d >= b.Max || d < b.Min { // overflow guard
		d = b.Max
	} else {
		b.attempt++
	}
	return d
}

// Reset clears the attempt counter after a successful connect.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// ChannelEvents are the callbacks a session wires into its channel.
type ChannelEvents struct {
	OnContentChange   func(content, fromUserID string, seq uint64)
	OnPresenceSync    func(users []Presence)
	OnDocumentUpdated func(content string)
	OnSnapshot        func(content, title string, users []Presence)
	OnStateChange     func(state State)
}

// ChannelClient is a websocket client for one document channel. It
// joins exactly one channel per open document, tracks its own presence,
// and reconnects with bounded backoff when the transport drops.
type ChannelClient struct {
	baseURL     string // e.g. "ws://host:port"
	documentID  string
	userID      string
	displayName string
	events      ChannelEvents
	backoff     Backoff

	mu      sync.Mutex
	writeMu sync.Mutex // gorilla conns allow one concurrent writer
	conn    *websocket.Conn
	state   State
	closed  bool
	done    chan struct{}
}

// NewChannelClient builds a client for one document channel. Call
// Connect to start it.
func NewChannelClient(baseURL, documentID, userID, displayName string, events ChannelEvents) *ChannelClient {
	return &ChannelClient{
		baseURL:     baseURL,
		documentID:  documentID,
		userID:      userID,
		displayName: displayName,
		events:      events,
		backoff:     Backoff{Min: 250 * time.Millisecond, Max: 10 * time.Second},
		state:       StateDisconnected,
		done:        make(chan struct{}),
	}
}

// State returns the current connection state.
func (c *ChannelClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the connect/read/reconnect loop in the background.
func (c *ChannelClient) Connect() {
	go c.run()
}

func (c *ChannelClient) run() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.setState(StateConnecting)
		conn, err := c.dial()
		if err != nil {
			c.setState(StateDisconnected)
			delay := c.backoff.Next()
			log.Printf("channel %s: connect failed (%v), retrying in %s", c.documentID, err, delay)
			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.backoff.Reset()
		c.setState(StateConnected)

		// On subscribe, publish our own presence record.
		c.send(Envelope{Type: MsgInit, UserID: c.userID, DisplayName: c.displayName})

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		closed := c.closed
		c.mu.Unlock()

		c.setState(StateDisconnected)
		if closed {
			return
		}
	}
}

func (c *ChannelClient) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = "/ws/" + c.documentID
	q := u.Query()
	q.Set("userId", c.userID)
	q.Set("displayName", c.displayName)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	return conn, err
}

func (c *ChannelClient) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("channel %s: bad message: %v", c.documentID, err)
			continue
		}

		switch env.Type {
		case MsgSnapshot:
			if c.events.OnSnapshot != nil {
				c.events.OnSnapshot(env.Content, env.Title, env.Users)
			}
		case MsgContentChange:
			if env.UserID == c.userID {
				continue // never apply our own echo
			}
			if c.events.OnContentChange != nil {
				c.events.OnContentChange(env.Content, env.UserID, env.Seq)
			}
		case MsgPresenceSync:
			if c.events.OnPresenceSync != nil {
				c.events.OnPresenceSync(env.Users)
			}
		case MsgDocumentUpdated:
			if c.events.OnDocumentUpdated != nil {
				c.events.OnDocumentUpdated(env.Content)
			}
		case MsgPong:
			// keepalive, nothing to do
		}
	}
}

// BroadcastContentChange sends a sequence-tagged edit to the channel.
func (c *ChannelClient) BroadcastContentChange(content string, seq uint64) {
	c.send(Envelope{
		Type:      MsgEdit,
		Content:   content,
		UserID:    c.userID,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
	})
}

// UpdateCursor publishes the local caret position.
func (c *ChannelClient) UpdateCursor(line, col int) {
	c.send(Envelope{
		Type:   MsgCursor,
		UserID: c.userID,
		Cursor: &CursorPos{Line: line, Col: col},
	})
}

// Close detaches from the channel permanently.
func (c *ChannelClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		conn.Close()
	}
}

func (c *ChannelClient) send(env Envelope) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	data, _ := json.Marshal(env)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("channel %s: write failed: %v", c.documentID, err)
	}
}

func (c *ChannelClient) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed && c.events.OnStateChange != nil {
		c.events.OnStateChange(s)
	}
}
