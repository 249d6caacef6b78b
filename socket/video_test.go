package socket

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestRelayVideoForwardsDatagrams(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})
	sock := newFakeConn()
	conn, err := hub.Connect(sock, RoleVideo)
	require.NoError(t, err)

	src, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- hub.RelayVideo(ctx, conn, src)
	}()

	sender, err := net.Dial("udp", src.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	payload := []byte{0x00, 0x00, 0x00, 0x01, 0x67}
	require.Eventually(t, func() bool {
		sender.Write(payload)
		return len(sock.frames()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	frames := sock.frames()
	require.Equal(t, websocket.BinaryMessage, frames[0].frameType)
	require.Equal(t, payload, frames[0].data)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// The source socket is released and the client removed from the hub.
	require.True(t, sock.isClosed())
	hub.mu.RLock()
	remaining := len(hub.videos)
	hub.mu.RUnlock()
	require.Equal(t, 0, remaining)
}

func TestRelayVideoStopsWhenClientFails(t *testing.T) {
	hub := NewHub(HubConfig{Log: testLogger()})
	sock := newFakeConn()
	sock.failWrites = true
	conn, err := hub.Connect(sock, RoleVideo)
	require.NoError(t, err)

	src, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- hub.RelayVideo(context.Background(), conn, src)
	}()

	sender, err := net.Dial("udp", src.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	finished := false
	require.Eventually(t, func() bool {
		select {
		case err := <-done:
			require.Error(t, err)
			finished = true
		default:
			sender.Write([]byte{0x01})
		}
		return finished
	}, 2*time.Second, 10*time.Millisecond)
	require.True(t, sock.isClosed())
}
