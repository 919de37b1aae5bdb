// Package realtime is the client side of the dashboard push channel: one
// supervised WebSocket with bounded reconnection plus independent polling
// tasks, both fanned out to listeners registered by topic.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Priya8975/payment-notification-core/internal/domain"
)

// Topic keys the dispatch table.
type Topic string

const (
	TopicConnected       Topic = "connected"
	TopicDisconnected    Topic = "disconnected"
	TopicError           Topic = "error"
	TopicMessage         Topic = "message"
	TopicReconnectFailed Topic = "reconnect_failed"

	TopicPaymentCreated   = Topic(domain.PaymentCreated)
	TopicPaymentCompleted = Topic(domain.PaymentCompleted)
	TopicPaymentFailed    = Topic(domain.PaymentFailed)
	TopicPaymentExpired   = Topic(domain.PaymentExpired)
	TopicPaymentRefunded  = Topic(domain.PaymentRefunded)

	TopicWebhookDelivered Topic = "webhook.delivered"
	TopicWebhookFailed    Topic = "webhook.failed"
)

// PollTopic is the topic a polling task publishes its results on.
func PollTopic(id string) Topic {
	return Topic("poll_" + id)
}

// ErrNotConnected is returned by Send when there is no open socket.
var ErrNotConnected = errors.New("realtime channel not connected")

// State of the socket.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Message is what listeners receive. Data holds the raw JSON frame or poll
// body; Err is set on TopicError.
type Message struct {
	Topic Topic
	Data  json.RawMessage
	Err   error
}

type Listener func(Message)

// ListenerID identifies a registration for Off.
type ListenerID uint64

// PollFunc receives each successfully parsed poll result.
type PollFunc func(data json.RawMessage)

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = 3 * time.Second
	defaultPollInterval         = 5 * time.Second
)

// Config for New. Zero values take defaults; PollInterval applies to
// StartPolling calls that pass no interval.
type Config struct {
	URL                  string
	Header               http.Header
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	PollInterval         time.Duration
	Dialer               *websocket.Dialer
	HTTPClient           *http.Client
}

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// session is one Connect call's supervisor. Its context doubles as the
// generation token: once cancelled nothing it produces reaches a listener.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type pollTask struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Channel multiplexes a reconnecting WebSocket and polling tasks onto one
// pub/sub API. It is safe for concurrent use.
type Channel struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	session   *session
	conn      *websocket.Conn
	listeners map[Topic][]listenerEntry
	nextID    ListenerID
	polls     map[string]*pollTask

	writeMu sync.Mutex
}

func New(cfg Config, logger *slog.Logger) *Channel {
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Channel{
		cfg:       cfg,
		logger:    logger,
		listeners: make(map[Topic][]listenerEntry),
		polls:     make(map[string]*pollTask),
	}
}

// State returns the current socket state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers fn for topic. The same function may be registered more than once.
func (c *Channel) On(topic Topic, fn Listener) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners[topic] = append(c.listeners[topic], listenerEntry{id: id, fn: fn})
	return id
}

// Off removes a registration. Unknown ids are ignored.
func (c *Channel) Off(id ListenerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, entries := range c.listeners {
		i := slices.IndexFunc(entries, func(e listenerEntry) bool { return e.id == id })
		if i < 0 {
			continue
		}
		entries = slices.Delete(entries, i, i+1)
		if len(entries) == 0 {
			delete(c.listeners, topic)
		} else {
			c.listeners[topic] = entries
		}
		return
	}
}

// emit delivers msg to the topic's listeners in registration order. When src
// is non-nil and cancelled the message is dropped, including between listeners.
func (c *Channel) emit(src context.Context, msg Message) {
	c.mu.Lock()
	if src != nil && src.Err() != nil {
		c.mu.Unlock()
		return
	}
	entries := slices.Clone(c.listeners[msg.Topic])
	c.mu.Unlock()

	for _, e := range entries {
		if src != nil && src.Err() != nil {
			return
		}
		e.fn(msg)
	}
}

// Connect starts the supervising goroutine. It returns immediately; progress
// is reported on TopicConnected, TopicDisconnected, TopicError and
// TopicReconnectFailed. Calling Connect while a session is running is a no-op.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &session{ctx: sctx, cancel: cancel}
	c.session = s
	c.state = Connecting

	go c.supervise(s)
}

func (c *Channel) supervise(s *session) {
	defer c.end(s)

	attempts := 0
	for {
		c.setState(s, Connecting)
		conn, _, err := c.cfg.Dialer.DialContext(s.ctx, c.cfg.URL, c.cfg.Header)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			c.logger.Warn("realtime dial failed", "error", err, "url", c.cfg.URL)
			c.emit(s.ctx, Message{Topic: TopicError, Err: err})
		} else {
			attempts = 0
			if !c.attach(s, conn) {
				conn.Close()
				return
			}
			stop := context.AfterFunc(s.ctx, func() { conn.Close() })
			c.emit(s.ctx, Message{Topic: TopicConnected})

			err = c.readLoop(s, conn)
			stop()
			c.detach(s, conn)
			if s.ctx.Err() != nil {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("realtime connection lost", "error", err)
				c.emit(s.ctx, Message{Topic: TopicError, Err: err})
			}
		}

		c.setState(s, Disconnected)
		c.emit(s.ctx, Message{Topic: TopicDisconnected})

		if attempts >= c.cfg.MaxReconnectAttempts {
			c.logger.Error("realtime reconnect attempts exhausted", "attempts", attempts)
			c.emit(s.ctx, Message{Topic: TopicReconnectFailed})
			return
		}
		attempts++

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		c.logger.Info("realtime reconnecting", "attempt", attempts, "max", c.cfg.MaxReconnectAttempts)
	}
}

func (c *Channel) readLoop(s *session, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatchFrame(s.ctx, data)
	}
}

func (c *Channel) dispatchFrame(src context.Context, data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		c.logger.Error("dropping unparsable realtime frame", "error", err)
		return
	}
	topic := TopicMessage
	if head.Type != "" {
		topic = Topic(head.Type)
	}
	c.emit(src, Message{Topic: topic, Data: json.RawMessage(data)})
}

func (c *Channel) setState(s *session, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		c.state = state
	}
}

// attach publishes conn as the live socket unless the session was torn down.
func (c *Channel) attach(s *session, conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s || s.ctx.Err() != nil {
		return false
	}
	c.conn = conn
	c.state = Connected
	return true
}

func (c *Channel) detach(s *session, conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	if c.session == s {
		c.state = Disconnected
	}
}

func (c *Channel) end(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		c.session = nil
		c.state = Disconnected
	}
	s.cancel()
}

// Send writes v as a JSON text frame. It never panics: without an open
// socket it emits TopicError and returns ErrNotConnected.
func (c *Channel) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.emit(nil, Message{Topic: TopicError, Err: ErrNotConnected})
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		err = fmt.Errorf("encoding frame: %w", err)
		c.emit(nil, Message{Topic: TopicError, Err: err})
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		err = fmt.Errorf("writing frame: %w", err)
		c.emit(nil, Message{Topic: TopicError, Err: err})
		return err
	}
	return nil
}

// StartPolling GETs url immediately and then every interval, passing each
// parsed body to cb and emitting it on PollTopic(id). An interval <= 0 means
// Config.PollInterval. A task already running under id is stopped first.
// Failures emit TopicError and polling continues.
func (c *Channel) StartPolling(id, url string, interval time.Duration, cb PollFunc) {
	if interval <= 0 {
		interval = c.cfg.PollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	task := &pollTask{ctx: ctx, cancel: cancel}

	c.mu.Lock()
	if prev, ok := c.polls[id]; ok {
		prev.cancel()
	}
	c.polls[id] = task
	c.mu.Unlock()

	go c.poll(task, id, url, interval, cb)
}

// StopPolling cancels the task registered under id, if any.
func (c *Channel) StopPolling(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if task, ok := c.polls[id]; ok {
		task.cancel()
		delete(c.polls, id)
	}
}

func (c *Channel) poll(task *pollTask, id, url string, interval time.Duration, cb PollFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.pollOnce(task, id, url, cb)
		select {
		case <-task.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Channel) pollOnce(task *pollTask, id, url string, cb PollFunc) {
	data, err := c.fetch(task.ctx, url)
	if err != nil {
		if task.ctx.Err() != nil {
			return
		}
		c.logger.Warn("poll failed", "poll_id", id, "error", err)
		c.emit(task.ctx, Message{Topic: TopicError, Err: fmt.Errorf("poll %s: %w", id, err)})
		return
	}

	if cb != nil {
		if !c.live(task.ctx) {
			return
		}
		cb(data)
	}
	c.emit(task.ctx, Message{Topic: PollTopic(id), Data: data})
}

// live reports whether src has not been cancelled. StopPolling and Disconnect
// cancel under c.mu, so a true result means neither had returned yet.
func (c *Channel) live(src context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return src.Err() == nil
}

func (c *Channel) fetch(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	var data json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}
	return data, nil
}

// Disconnect closes the socket, stops every polling task and drops every
// listener. It is idempotent and nothing already in flight is delivered after it.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.cancel()
		c.session = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	for id, task := range c.polls {
		task.cancel()
		delete(c.polls, id)
	}
	clear(c.listeners)
	c.state = Disconnected
}
