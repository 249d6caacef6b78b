package socket

// relaySignal forwards a WebRTC signaling frame verbatim to the opposite
// endpoint. When the counterpart is not connected, a SignalingError is
// synthesized back to the sender so the negotiation can abort cleanly.
func (h *Hub) relaySignal(from *Connection, frameType int, data []byte) {
	h.mu.RLock()
	var target *Connection
	var missing string
	switch from.Role {
	case RoleWebRTCPeer:
		target = h.controller
		missing = "Controller not found"
	case RoleWebRTCController:
		target = h.peer
		missing = "Peer not found"
	}
	h.mu.RUnlock()

	if target == nil {
		if err := from.Send(SignalingError{Error: missing, Data: string(data)}); err != nil {
			h.config.Log.Warn("Failed to report missing signaling counterpart", "id", from.ID, "error", err)
		}
		return
	}
	if err := target.SendRaw(frameType, data); err != nil {
		h.config.Log.Warn("Failed to relay signaling frame", "from", from.ID, "to", target.ID, "error", err)
		h.Disconnect(target)
	}
}
