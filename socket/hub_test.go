package socket

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/project-chip/certification-tool-backend-sub001/types"
)

func testLogger() log.Logger {
	return log.New()
}

type fakeFrame struct {
	frameType int
	data      []byte
}

type fakeConn struct {
	mu         sync.Mutex
	written    []fakeFrame
	closed     bool
	failWrites bool
	inbound    chan fakeFrame
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan fakeFrame, 16)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	frame, ok := <-f.inbound
	if !ok {
		return 0, nil, io.EOF
	}
	return frame.frameType, frame.data, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("write refused")
	}
	f.written = append(f.written, fakeFrame{frameType: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) frames() []fakeFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeFrame, len(f.written))
	copy(out, f.written)
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func decodeEnvelope(t *testing.T, frame fakeFrame) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(frame.data, &env))
	return env
}

func TestBroadcastFailureIsolation(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})

	broken := newFakeConn()
	broken.failWrites = true
	healthy := newFakeConn()

	_, err := hub.Connect(broken, RoleMain)
	require.NoError(t, err)
	_, err = hub.Connect(healthy, RoleMain)
	require.NoError(t, err)

	hub.Broadcast(MessageTestLogRecords, []TestLogRecord{{Level: "INFO", Message: "hello"}})

	frames := healthy.frames()
	require.Len(t, frames, 1)
	env := decodeEnvelope(t, frames[0])
	require.Equal(t, MessageTestLogRecords, env.Type)

	// The failed connection is dropped and does not block later sends.
	require.True(t, broken.isClosed())
	hub.mu.RLock()
	remaining := len(hub.mains)
	hub.mu.RUnlock()
	require.Equal(t, 1, remaining)
}

func TestBroadcastUpdatePushesStateTransition(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})
	main := newFakeConn()
	_, err := hub.Connect(main, RoleMain)
	require.NoError(t, err)

	run := types.NewTestRun(7, "nightly", "operator", nil)
	run.MarkExecuting()
	hub.BroadcastUpdate(run)

	frames := main.frames()
	require.Len(t, frames, 1)
	env := decodeEnvelope(t, frames[0])
	require.Equal(t, MessageTestUpdate, env.Type)

	var update TestUpdate
	require.NoError(t, json.Unmarshal(env.Payload, &update))
	require.Equal(t, "run", update.TestType)
	require.Equal(t, 7, update.Body.Index)
	require.Equal(t, types.StateExecuting, update.Body.State)
}

func TestSecondPeerIsRejected(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})

	first := newFakeConn()
	_, err := hub.Connect(first, RoleWebRTCPeer)
	require.NoError(t, err)

	second := newFakeConn()
	_, err = hub.Connect(second, RoleWebRTCPeer)
	require.ErrorIs(t, err, ErrPeerConnected)
	require.True(t, second.isClosed())

	frames := second.frames()
	require.Len(t, frames, 1)
	require.Equal(t, websocket.CloseMessage, frames[0].frameType)
	require.Contains(t, string(frames[0].data), "Peer already connected")

	// The original peer is untouched.
	require.False(t, first.isClosed())
}

func TestSecondControllerDisplacesFirst(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})

	first := newFakeConn()
	_, err := hub.Connect(first, RoleWebRTCController)
	require.NoError(t, err)

	second := newFakeConn()
	replacement, err := hub.Connect(second, RoleWebRTCController)
	require.NoError(t, err)

	require.True(t, first.isClosed())
	hub.mu.RLock()
	current := hub.controller
	hub.mu.RUnlock()
	require.Same(t, replacement, current)
}

func TestMalformedMessagesAnswerSenderOnly(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})

	sender := newFakeConn()
	bystander := newFakeConn()
	senderConn, err := hub.Connect(sender, RoleMain)
	require.NoError(t, err)
	_, err = hub.Connect(bystander, RoleMain)
	require.NoError(t, err)

	hub.HandleMessage(senderConn, []byte("{not json"))
	hub.HandleMessage(senderConn, []byte(`{"payload": {}}`))
	hub.HandleMessage(senderConn, []byte(`{"type": "unknown_thing", "payload": {}}`))

	frames := sender.frames()
	require.Len(t, frames, 3)
	reasons := []string{invalidJSONError, missingTypeError, noHandlerError}
	for i, frame := range frames {
		env := decodeEnvelope(t, frame)
		require.Equal(t, MessageInvalidMessage, env.Type)
		require.Contains(t, string(env.Payload), reasons[i])
	}
	require.Empty(t, bystander.frames())
}

func TestLastRegisteredHandlerWins(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})
	main := newFakeConn()
	conn, err := hub.Connect(main, RoleMain)
	require.NoError(t, err)

	called := ""
	hub.RegisterHandler(MessageMessageRequest, func(payload json.RawMessage, sender *Connection) {
		called = "first"
	})
	hub.RegisterHandler(MessageMessageRequest, func(payload json.RawMessage, sender *Connection) {
		called = "second"
	})

	hub.HandleMessage(conn, []byte(`{"type": "message_request", "payload": {}}`))
	require.Equal(t, "second", called)
}

func TestSignalRelayBetweenPeerAndController(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})

	peerSock := newFakeConn()
	controllerSock := newFakeConn()
	peer, err := hub.Connect(peerSock, RoleWebRTCPeer)
	require.NoError(t, err)
	controller, err := hub.Connect(controllerSock, RoleWebRTCController)
	require.NoError(t, err)

	offer := []byte(`{"sdp": "offer"}`)
	hub.relaySignal(peer, websocket.TextMessage, offer)
	frames := controllerSock.frames()
	require.Len(t, frames, 1)
	require.Equal(t, websocket.TextMessage, frames[0].frameType)
	require.Equal(t, offer, frames[0].data)

	answer := []byte(`{"sdp": "answer"}`)
	hub.relaySignal(controller, websocket.TextMessage, answer)
	require.Equal(t, answer, peerSock.frames()[0].data)
}

func TestSignalWithoutCounterpartReportsError(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})

	peerSock := newFakeConn()
	peer, err := hub.Connect(peerSock, RoleWebRTCPeer)
	require.NoError(t, err)

	hub.relaySignal(peer, websocket.TextMessage, []byte(`{"sdp": "offer"}`))

	frames := peerSock.frames()
	require.Len(t, frames, 1)
	var synth SignalingError
	require.NoError(t, json.Unmarshal(frames[0].data, &synth))
	require.Equal(t, "Controller not found", synth.Error)
}

func TestReadLoopDispatchesAndDisconnects(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})
	main := newFakeConn()
	conn, err := hub.Connect(main, RoleMain)
	require.NoError(t, err)

	got := make(chan string, 1)
	hub.RegisterHandler(MessageMessageRequest, func(payload json.RawMessage, sender *Connection) {
		got <- string(payload)
	})

	done := make(chan struct{})
	go func() {
		hub.ReadLoop(conn)
		close(done)
	}()

	main.inbound <- fakeFrame{frameType: websocket.TextMessage, data: []byte(`{"type": "message_request", "payload": "ping"}`)}
	require.Equal(t, `"ping"`, <-got)

	close(main.inbound)
	<-done
	require.True(t, main.isClosed())
	hub.mu.RLock()
	remaining := len(hub.mains)
	hub.mu.RUnlock()
	require.Equal(t, 0, remaining)
}
