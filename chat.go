package main

import (
	"time"
)

// handleChat appends to the room's bounded history and fans the message
// out to everyone, sender included.
func (h *Hub) handleChat(c *Client, text string) {
	if text == "" {
		return
	}

	senderName := "Unknown player"
	if p := h.room.player(c.playerID); p != nil {
		senderName = p.Name
	}

	msg := ChatMessage{
		SenderName: senderName,
		Text:       text,
		Timestamp:  time.Now(),
	}

	h.room.appendChat(msg)

	h.broadcast(ChatBroadcastMessage{
		Type:        "chatMessage",
		ChatMessage: msg,
	})
}
