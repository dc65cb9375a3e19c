/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

// Package channel implements the transaction channel: one bidirectional
// websocket message stream multiplexing concurrent request/response pairs by
// correlation id, with an outbound queue that buffers messages while the
// connection is down.
package channel

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/team-telnyx/react-native-voice-commons-sub001/voicesdk"
)

// Lifecycle event names emitted by the channel for the orchestrator to
// drive reconnection.
const (
	EventOpened = "opened"
	EventClosed = "closed"
	EventError  = "error"
)

// Config holds the configuration for the transaction channel.
type Config struct {
	HandshakeTimeout time.Duration // Timeout for the websocket handshake
	PingInterval     time.Duration // Interval between keep-alive pings
	PongTimeout      time.Duration // Timeout for receiving a pong response
	WriteTimeout     time.Duration // Per-frame write deadline
}

// DefaultConfig returns the default configuration for the channel.
func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// MessageHandler observes every inbound message, including replies that
// also resolved a pending transaction.
type MessageHandler func(msg *Message)

// Channel owns the websocket connection and the transaction map. It is safe
// for concurrent use; writes to the socket are serialized.
type Channel struct {
	config *Config
	logger voicesdk.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	// Pending request/reply transactions keyed by correlation id. Exactly
	// one transaction exists per outstanding id; each resolves at most once.
	transactions map[string]chan *Message

	// Outbound messages buffered while disconnected, flushed FIFO on open.
	queue []*Message

	// Inbound message observers, dispatched synchronously in order.
	handlerSeq int
	handlers   map[int]MessageHandler

	// Lifecycle events (opened, closed, error).
	Emitter *voicesdk.EventEmitter

	writeMu sync.Mutex
}

// New creates a channel. The channel starts disconnected; Send before
// Connect queues.
func New(config *Config, logger voicesdk.Logger) *Channel {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = voicesdk.DefaultConfig().GetLogger()
	}
	return &Channel{
		config:       config,
		logger:       logger,
		transactions: make(map[string]chan *Message),
		handlers:     make(map[int]MessageHandler),
		Emitter:      voicesdk.NewEventEmitter(),
	}
}

// Connect dials the gateway and starts the read pump. Queued outbound
// messages are flushed in insertion order before any new caller-issued send
// observes the connected state. Connect may be called again after a
// connection loss, but not after Close.
func (ch *Channel) Connect(ctx context.Context, gatewayURL string, requestHeader http.Header) error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return voicesdk.ErrConnectionClosed
	}
	if ch.connected {
		ch.mu.Unlock()
		return nil
	}
	ch.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: ch.config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, gatewayURL, requestHeader)
	if err != nil {
		return voicesdk.NewTransportError("connect", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Time{})
	})

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		_ = conn.Close()
		return voicesdk.ErrConnectionClosed
	}
	ch.conn = conn
	ch.connected = true
	pending := ch.queue
	ch.queue = nil
	ch.mu.Unlock()

	// Flush the outbound queue before new sends; write order is the
	// original enqueue order.
	for _, msg := range pending {
		ch.writeMessage(conn, msg)
	}

	go ch.readPump(conn)
	go ch.pingLoop(conn)

	ch.Emitter.Emit(EventOpened, nil)
	return nil
}

// Send transmits the message if connected, otherwise appends it to the
// outbound queue. It never fails for a disconnected state: queuing is the
// contract. Transport-level write errors are logged and re-queued
// rather than surfaced, so a best-effort send cannot crash the caller.
func (ch *Channel) Send(msg *Message) {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	if !ch.connected {
		ch.queue = append(ch.queue, msg)
		ch.mu.Unlock()
		return
	}
	conn := ch.conn
	ch.mu.Unlock()

	ch.writeMessage(conn, msg)
}

// SendAndWait sends a request and blocks the caller until a reply bearing
// the same id arrives, the context is done, or the channel is closed. It
// imposes no timeout of its own; callers needing one must bound ctx.
//
// While disconnected the request is queued, and the wait completes only
// after both reconnection and a matching reply, in that order.
func (ch *Channel) SendAndWait(ctx context.Context, msg *Message) (*Message, error) {
	if msg.ID == "" {
		return nil, voicesdk.NewProtocolError("send", 0, "request requires a correlation id")
	}

	replyCh := make(chan *Message, 1)

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil, voicesdk.ErrConnectionClosed
	}
	if _, exists := ch.transactions[msg.ID]; exists {
		// Duplicate ids violate the id-uniqueness contract; the newer
		// transaction takes over tracking, matching the wire semantics of
		// last-writer-wins correlation.
		ch.logger.Printf("channel: duplicate transaction id %s, replacing prior transaction", msg.ID)
	}
	ch.transactions[msg.ID] = replyCh
	ch.mu.Unlock()

	ch.Send(msg)

	select {
	case reply, ok := <-replyCh:
		if !ok {
			return nil, voicesdk.ErrConnectionClosed
		}
		return reply, nil
	case <-ctx.Done():
		ch.mu.Lock()
		delete(ch.transactions, msg.ID)
		ch.mu.Unlock()
		return nil, ctx.Err()
	}
}

// OnMessage registers an inbound message observer and returns its
// unsubscribe function. Observers run synchronously on the read pump, in
// registration order, so all engine state mutations funnel through one
// event-processing sequence.
func (ch *Channel) OnMessage(handler MessageHandler) (unsubscribe func()) {
	ch.mu.Lock()
	ch.handlerSeq++
	id := ch.handlerSeq
	ch.handlers[id] = handler
	ch.mu.Unlock()

	return func() {
		ch.mu.Lock()
		delete(ch.handlers, id)
		ch.mu.Unlock()
	}
}

// IsConnected reports whether the websocket is currently up.
func (ch *Channel) IsConnected() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.connected
}

// Disconnect drops the websocket without closing the channel: queued
// messages and pending transactions are kept for the next Connect. Used by
// the reconnection control loop, which must preserve in-flight state across
// a connectivity gap.
func (ch *Channel) Disconnect() {
	ch.mu.Lock()
	conn := ch.conn
	ch.conn = nil
	ch.connected = false
	ch.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "reconnecting"))
		_ = conn.Close()
	}
}

// Close transitions the channel to permanently disconnected: every pending
// transaction fails with ErrConnectionClosed, the outbound queue is cleared,
// and all subscriptions are released. Idempotent.
func (ch *Channel) Close() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	ch.connected = false
	conn := ch.conn
	ch.conn = nil
	transactions := ch.transactions
	ch.transactions = make(map[string]chan *Message)
	ch.queue = nil
	ch.handlers = make(map[int]MessageHandler)
	ch.mu.Unlock()

	for _, replyCh := range transactions {
		close(replyCh)
	}

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closed by client"))
		_ = conn.Close()
	}

	ch.Emitter.Emit(EventClosed, nil)
	ch.Emitter.RemoveAll()
}

// writeMessage serializes one frame. Failures are logged and the message is
// returned to the queue for the next connection.
func (ch *Channel) writeMessage(conn *websocket.Conn, msg *Message) {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(ch.config.WriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		ch.logger.Printf("channel: write failed for %s (id=%s): %v, re-queueing", msg.Method, msg.ID, err)
		ch.mu.Lock()
		if !ch.closed {
			ch.queue = append(ch.queue, msg)
		}
		ch.mu.Unlock()
	}
}

// readPump reads frames until the connection fails, resolving transactions
// and fanning each message out to observers.
func (ch *Channel) readPump(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			ch.handleConnectionError(conn, err)
			return
		}
		ch.dispatch(&msg)
	}
}

// dispatch resolves a pending transaction when the message is a reply to
// one, then re-emits the message to every observer so non-transactional
// listeners see it too. A transaction resolves exactly once; later frames
// reusing the id pass through as plain events.
func (ch *Channel) dispatch(msg *Message) {
	if msg.IsReply() && msg.ID != "" {
		ch.mu.Lock()
		replyCh, ok := ch.transactions[msg.ID]
		if ok {
			delete(ch.transactions, msg.ID)
		}
		ch.mu.Unlock()
		if ok {
			replyCh <- msg
		}
	}

	ch.mu.Lock()
	ids := make([]int, 0, len(ch.handlers))
	for id := range ch.handlers {
		ids = append(ids, id)
	}
	// Map iteration order is random; observers expect registration order.
	sort.Ints(ids)
	handlers := make([]MessageHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, ch.handlers[id])
	}
	ch.mu.Unlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					ch.logger.Printf("channel: message handler panic: %v", r)
				}
			}()
			handler(msg)
		}()
	}
}

// handleConnectionError marks the channel disconnected and notifies the
// orchestrator, unless the drop was a deliberate Disconnect or Close.
func (ch *Channel) handleConnectionError(conn *websocket.Conn, err error) {
	ch.mu.Lock()
	deliberate := ch.closed || ch.conn != conn
	wasConnected := ch.connected && ch.conn == conn
	if wasConnected {
		ch.connected = false
		ch.conn = nil
	}
	ch.mu.Unlock()

	if deliberate {
		return
	}

	_ = conn.Close()
	ch.logger.Printf("channel: connection lost: %v", err)
	ch.Emitter.Emit(EventError, err)
	ch.Emitter.Emit(EventClosed, err)
}

// pingLoop keeps the connection alive with websocket-level pings. A missed
// pong trips the read deadline, which surfaces through the read pump as a
// connection error.
func (ch *Channel) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(ch.config.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		ch.mu.Lock()
		current := ch.conn == conn && ch.connected
		ch.mu.Unlock()
		if !current {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(ch.config.PingInterval + ch.config.PongTimeout))
		ch.writeMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ch.config.WriteTimeout))
		ch.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}
