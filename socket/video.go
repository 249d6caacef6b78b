package socket

import (
	"context"
	"errors"
	"net"
	"time"
)

const videoReadBufferSize = 64 * 1024

// RelayVideo forwards UDP datagrams from src to one video connection as
// binary frames. It runs until the context is cancelled, the source fails
// or the client goes away. The source socket is always closed and the
// connection removed from the hub on exit.
func (h *Hub) RelayVideo(ctx context.Context, c *Connection, src net.PacketConn) error {
	defer src.Close()
	defer h.Disconnect(c)

	buf := make([]byte, videoReadBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		src.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := src.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			h.config.Log.Warn("Video stream source failed", "id", c.ID, "error", err)
			return err
		}
		if n == 0 {
			continue
		}
		if err := c.SendBinary(buf[:n]); err != nil {
			h.config.Log.Warn("Video client write failed", "id", c.ID, "error", err)
			return err
		}
	}
}
