package main

// Voice chat runs peer-to-peer; the server only relays the negotiation
// messages between two participants of the same room, without ever
// looking inside the payloads.

// handleSignal forwards an offer, answer, or ICE candidate to its named
// target. Both sides already share this hub, so the room check is
// implicit; signals to ids outside the room go nowhere.
func (h *Hub) handleSignal(c *Client, msg ClientMessage) {
	if h.room.player(c.playerID) == nil {
		return
	}

	target := h.clientFor(msg.ToID)
	if target == nil {
		return
	}

	h.trySend(target, SignalMessage{
		Type:      msg.Type,
		FromID:    c.playerID,
		Offer:     msg.Offer,
		Answer:    msg.Answer,
		Candidate: msg.Candidate,
	})
}

// handleVoicePresence tells the rest of the room that a player is ready
// to accept voice connections, or has hung up.
func (h *Hub) handleVoicePresence(c *Client, kind string) {
	if h.room.player(c.playerID) == nil {
		return
	}

	outType := "userReadyForVoice"
	if kind == "voiceStop" {
		outType = "userDisconnectedVoice"
	}

	h.broadcastExcept(c, VoicePresenceMessage{
		Type: outType,
		ID:   c.playerID,
	})
}
