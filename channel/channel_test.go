/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/team-telnyx/react-native-voice-commons-sub001/voicesdk"
)

// testGateway is a websocket echo server with scriptable reply behavior.
type testGateway struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []*Message

	// writeMu serializes server-side writes; the reply loop and push can
	// run concurrently.
	writeMu sync.Mutex

	// onRequest, when set, builds the reply for each inbound request.
	onRequest func(msg *Message) *Message
}

func (g *testGateway) writeJSON(conn *websocket.Conn, v interface{}) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func newTestGateway(t *testing.T) *testGateway {
	g := &testGateway{t: t}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.conns = append(g.conns, conn)
		g.mu.Unlock()

		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			g.mu.Lock()
			g.received = append(g.received, &msg)
			handler := g.onRequest
			g.mu.Unlock()

			if handler != nil {
				if reply := handler(&msg); reply != nil {
					if err := g.writeJSON(conn, reply); err != nil {
						return
					}
				}
			}
		}
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *testGateway) url() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

func (g *testGateway) receivedMessages() []*Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Message, len(g.received))
	copy(out, g.received)
	return out
}

// push writes an unsolicited message on the most recent connection.
func (g *testGateway) push(msg *Message) error {
	g.mu.Lock()
	if len(g.conns) == 0 {
		g.mu.Unlock()
		return errors.New("no connection")
	}
	conn := g.conns[len(g.conns)-1]
	g.mu.Unlock()
	return g.writeJSON(conn, msg)
}

// dropConnections closes every server-side connection without a close
// handshake, simulating a network loss.
func (g *testGateway) dropConnections() {
	g.mu.Lock()
	conns := g.conns
	g.conns = nil
	g.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

// mustReply builds a success reply, panicking on marshal failure; test
// payloads are always marshalable.
func mustReply(id string, result interface{}) *Message {
	msg, err := NewReply(id, result)
	if err != nil {
		panic(err)
	}
	return msg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestSendAndWaitResolvesByCorrelationID(t *testing.T) {
	gateway := newTestGateway(t)
	gateway.onRequest = func(msg *Message) *Message {
		return mustReply(msg.ID, map[string]string{"echo": msg.Method})
	}

	ch := New(nil, nil)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	req, err := NewRequest("telnyx_rtc.ping", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	reply, err := ch.SendAndWait(ctx, req)
	if err != nil {
		t.Fatalf("SendAndWait failed: %v", err)
	}
	if reply.ID != req.ID {
		t.Errorf("Expected reply id %s, got %s", req.ID, reply.ID)
	}

	var result map[string]string
	if err := reply.UnmarshalResult(&result); err != nil {
		t.Fatalf("UnmarshalResult failed: %v", err)
	}
	if result["echo"] != "telnyx_rtc.ping" {
		t.Errorf("Expected echo telnyx_rtc.ping, got %s", result["echo"])
	}
}

func TestSendAndWaitConcurrentTransactions(t *testing.T) {
	gateway := newTestGateway(t)
	// Reply to the second request first so correlation, not arrival order,
	// resolves the waits.
	var pending []*Message
	var pendingMu sync.Mutex
	gateway.onRequest = func(msg *Message) *Message {
		pendingMu.Lock()
		defer pendingMu.Unlock()
		pending = append(pending, msg)
		if len(pending) < 2 {
			return nil
		}
		first := pending[0]
		pending = nil
		go func() {
			gateway.push(mustReply(first.ID, map[string]string{"order": "second"}))
		}()
		return mustReply(msg.ID, map[string]string{"order": "first"})
	}

	ch := New(nil, nil)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	reqA, _ := NewRequest("telnyx_rtc.invite", nil)
	reqB, _ := NewRequest("telnyx_rtc.modify", nil)

	var wg sync.WaitGroup
	results := make(map[string]string)
	var resultsMu sync.Mutex
	for _, req := range []*Message{reqA, reqB} {
		wg.Add(1)
		go func(req *Message) {
			defer wg.Done()
			reply, err := ch.SendAndWait(ctx, req)
			if err != nil {
				t.Errorf("SendAndWait %s failed: %v", req.Method, err)
				return
			}
			resultsMu.Lock()
			results[req.ID] = string(reply.Result)
			resultsMu.Unlock()
		}(req)
	}
	wg.Wait()

	if len(results) != 2 {
		t.Fatalf("Expected 2 resolved transactions, got %d", len(results))
	}
	if results[reqA.ID] == results[reqB.ID] {
		t.Error("Expected the two transactions to receive distinct replies")
	}
}

func TestSendQueuesWhileDisconnected(t *testing.T) {
	gateway := newTestGateway(t)

	ch := New(nil, nil)
	defer ch.Close()

	first, _ := NewRequest("first", nil)
	second, _ := NewRequest("second", nil)
	ch.Send(first)
	ch.Send(second)

	if ch.IsConnected() {
		t.Fatal("Expected channel to start disconnected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(gateway.receivedMessages()) == 2
	})

	msgs := gateway.receivedMessages()
	if msgs[0].Method != "first" || msgs[1].Method != "second" {
		t.Errorf("Expected queue flush in order first,second; got %s,%s",
			msgs[0].Method, msgs[1].Method)
	}
}

func TestSendAndWaitWhileDisconnectedCompletesAfterReconnect(t *testing.T) {
	gateway := newTestGateway(t)
	gateway.onRequest = func(msg *Message) *Message {
		return mustReply(msg.ID, map[string]bool{"ok": true})
	}

	ch := New(nil, nil)
	defer ch.Close()

	req, _ := NewRequest("telnyx_rtc.ping", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := ch.SendAndWait(ctx, req)
		done <- err
	}()

	// The wait must remain outstanding until the channel actually connects.
	select {
	case err := <-done:
		t.Fatalf("SendAndWait completed before connect: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SendAndWait failed after reconnect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendAndWait did not complete after reconnect")
	}
}

func TestSendAndWaitContextCancellation(t *testing.T) {
	gateway := newTestGateway(t)

	ch := New(nil, nil)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	req, _ := NewRequest("telnyx_rtc.ping", nil)
	waitCtx, waitCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer waitCancel()

	_, err := ch.SendAndWait(waitCtx, req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected DeadlineExceeded, got %v", err)
	}

	ch.mu.Lock()
	_, tracked := ch.transactions[req.ID]
	ch.mu.Unlock()
	if tracked {
		t.Error("Expected abandoned transaction to be removed from tracking")
	}
}

func TestCloseFailsPendingTransactions(t *testing.T) {
	gateway := newTestGateway(t)

	ch := New(nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	req, _ := NewRequest("telnyx_rtc.ping", nil)
	done := make(chan error, 1)
	go func() {
		_, err := ch.SendAndWait(ctx, req)
		done <- err
	}()

	waitFor(t, 2*time.Second, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return len(ch.transactions) == 1
	})

	ch.Close()

	select {
	case err := <-done:
		if !errors.Is(err, voicesdk.ErrConnectionClosed) {
			t.Fatalf("Expected ErrConnectionClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendAndWait did not fail after Close")
	}
}

func TestCloseIsIdempotentAndStopsSends(t *testing.T) {
	ch := New(nil, nil)
	ch.Close()
	ch.Close()

	req, _ := NewRequest("telnyx_rtc.ping", nil)
	ch.Send(req)

	ch.mu.Lock()
	queued := len(ch.queue)
	ch.mu.Unlock()
	if queued != 0 {
		t.Errorf("Expected no queued messages after Close, got %d", queued)
	}

	_, err := ch.SendAndWait(context.Background(), req)
	if !errors.Is(err, voicesdk.ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed from SendAndWait after Close, got %v", err)
	}

	if err := ch.Connect(context.Background(), "ws://127.0.0.1:1", nil); !errors.Is(err, voicesdk.ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed from Connect after Close, got %v", err)
	}
}

func TestDisconnectPreservesTransactionsAndQueue(t *testing.T) {
	gateway := newTestGateway(t)
	gateway.onRequest = func(msg *Message) *Message {
		if msg.Method == "telnyx_rtc.ping" {
			return mustReply(msg.ID, map[string]bool{"ok": true})
		}
		return nil
	}

	ch := New(nil, nil)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// A wait outstanding across the gap.
	req, _ := NewRequest("slow", nil)
	done := make(chan error, 1)
	go func() {
		_, err := ch.SendAndWait(ctx, req)
		done <- err
	}()
	waitFor(t, 2*time.Second, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return len(ch.transactions) == 1
	})

	ch.Disconnect()

	queued, _ := NewRequest("queued-during-gap", nil)
	ch.Send(queued)

	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}

	// Queued message flushes on the new connection.
	waitFor(t, 2*time.Second, func() bool {
		for _, m := range gateway.receivedMessages() {
			if m.Method == "queued-during-gap" {
				return true
			}
		}
		return false
	})

	// The late reply on the new connection resolves the original wait.
	if err := gateway.push(mustReply(req.ID, map[string]bool{"ok": true})); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SendAndWait failed across reconnect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendAndWait did not resolve after reconnect")
	}
}

func TestOnMessageObserversAndUnsubscribe(t *testing.T) {
	gateway := newTestGateway(t)

	ch := New(nil, nil)
	defer ch.Close()

	var mu sync.Mutex
	var firstSeen, secondSeen []string
	unsubFirst := ch.OnMessage(func(msg *Message) {
		mu.Lock()
		firstSeen = append(firstSeen, msg.Method)
		mu.Unlock()
	})
	ch.OnMessage(func(msg *Message) {
		mu.Lock()
		secondSeen = append(secondSeen, msg.Method)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	push := func(method string) {
		msg, _ := NewRequest(method, nil)
		if err := gateway.push(msg); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}

	push("telnyx_rtc.invite")
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(firstSeen) == 1 && len(secondSeen) == 1
	})

	unsubFirst()
	push("telnyx_rtc.bye")
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(secondSeen) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if len(firstSeen) != 1 {
		t.Errorf("Expected unsubscribed observer to see 1 message, saw %d", len(firstSeen))
	}
}

func TestReplyAlsoReachesObservers(t *testing.T) {
	gateway := newTestGateway(t)
	gateway.onRequest = func(msg *Message) *Message {
		return mustReply(msg.ID, map[string]bool{"ok": true})
	}

	ch := New(nil, nil)
	defer ch.Close()

	var mu sync.Mutex
	observed := 0
	ch.OnMessage(func(msg *Message) {
		mu.Lock()
		observed++
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	req, _ := NewRequest("telnyx_rtc.ping", nil)
	if _, err := ch.SendAndWait(ctx, req); err != nil {
		t.Fatalf("SendAndWait failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return observed == 1
	})
}

func TestConnectionLossEmitsError(t *testing.T) {
	gateway := newTestGateway(t)

	ch := New(nil, nil)
	defer ch.Close()

	errCh := make(chan interface{}, 1)
	ch.Emitter.On(EventError, func(data interface{}) {
		errCh <- data
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	gateway.dropConnections()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected error event after server dropped the connection")
	}

	if ch.IsConnected() {
		t.Error("Expected channel to report disconnected after loss")
	}
}

func TestDeliberateDisconnectEmitsNoError(t *testing.T) {
	gateway := newTestGateway(t)

	ch := New(nil, nil)
	defer ch.Close()

	errCh := make(chan interface{}, 1)
	ch.Emitter.On(EventError, func(data interface{}) {
		errCh <- data
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.Connect(ctx, gateway.url(), nil); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ch.Disconnect()

	select {
	case data := <-errCh:
		t.Fatalf("Unexpected error event after deliberate disconnect: %v", data)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMessageIsReply(t *testing.T) {
	t.Run("request is not a reply", func(t *testing.T) {
		req, _ := NewRequest("telnyx_rtc.invite", nil)
		if req.IsReply() {
			t.Error("Expected request not to be a reply")
		}
	})

	t.Run("result reply", func(t *testing.T) {
		reply := mustReply("id-1", map[string]bool{"ok": true})
		if !reply.IsReply() {
			t.Error("Expected result message to be a reply")
		}
	})

	t.Run("error reply", func(t *testing.T) {
		msg := &Message{
			JSONRPC: "2.0",
			ID:      "id-2",
			Error:   &RPCError{Code: -32000, Message: "CALL DOES NOT EXIST"},
		}
		if !msg.IsReply() {
			t.Error("Expected error message to be a reply")
		}
	})
}

func TestNewRequestAssignsUniqueIDs(t *testing.T) {
	a, err := NewRequest("telnyx_rtc.ping", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	b, _ := NewRequest("telnyx_rtc.ping", nil)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if a.JSONRPC != "2.0" {
		t.Errorf("Expected jsonrpc 2.0, got %s", a.JSONRPC)
	}
}

func TestMessageParamsRoundTrip(t *testing.T) {
	type params struct {
		CallID string `json:"callID"`
	}
	req, err := NewRequest("telnyx_rtc.bye", &params{CallID: "abc"})
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	var p params
	if err := decoded.UnmarshalParams(&p); err != nil {
		t.Fatalf("UnmarshalParams failed: %v", err)
	}
	if p.CallID != "abc" {
		t.Errorf("Expected callID abc, got %s", p.CallID)
	}
}
