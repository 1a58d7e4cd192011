package main

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"
)

// Room ids are case-insensitive on input so they can be typed from a
// phone keyboard without fighting autocapitalization.
func normalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// RoomRegistry owns the mapping of room id to hub. All creation, lookup,
// and destruction of rooms funnels through it.
type RoomRegistry struct {
	mu   sync.Mutex
	cfg  *Config
	hubs map[string]*Hub
}

func newRoomRegistry(cfg *Config) *RoomRegistry {
	registry := &RoomRegistry{
		cfg:  cfg,
		hubs: make(map[string]*Hub),
	}
	if cfg.sessionTimeout > 0 {
		go registry.reaperLoop()
	}
	return registry
}

// createRoom allocates a fresh room with the creator as sole player and
// host, and starts its hub. The creator's confirmation messages are sent
// before the hub goroutine takes ownership of the room state.
func (registry *RoomRegistry) createRoom(c *Client, name string) (*Hub, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if len(registry.hubs) >= registry.cfg.maxRooms {
		return nil, ErrServerFull
	}

	roomID := ""
	for {
		roomID = randomRoomID()
		if _, exists := registry.hubs[roomID]; !exists {
			break
		}
	}

	hub := newHub(registry.cfg, registry, roomID)
	hub.room.addPlayer(c.playerID, name)
	hub.clients[c] = true
	registry.hubs[roomID] = hub

	c.send <- RoomCreatedMessage{
		Type:     "roomCreated",
		RoomID:   roomID,
		Language: hub.room.language,
		IsHost:   true,
	}
	c.send <- PlayerListMessage{
		Type:    "playerListUpdate",
		Players: hub.playerList(),
	}

	go hub.run()

	return hub, nil
}

func (registry *RoomRegistry) lookup(roomID string) (*Hub, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	hub, ok := registry.hubs[normalizeRoomID(roomID)]
	return hub, ok
}

func (registry *RoomRegistry) remove(roomID string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	delete(registry.hubs, roomID)
}

// randomRoomID generates a short crypto-random room id. Collision checks
// against live rooms happen in createRoom, under the registry lock.
func randomRoomID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, 4)
	for i := range out {
		out[i] = letters[int(buf[i])%len(letters)]
	}

	return string(out)
}

// reaperLoop periodically tears down rooms that have been idle longer
// than the configured session timeout.
func (registry *RoomRegistry) reaperLoop() {
	ticker := time.NewTicker(registry.cfg.sessionTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-registry.cfg.sessionTimeout)

		registry.mu.Lock()
		for id, hub := range registry.hubs {
			if hub.idle().Before(cutoff) {
				delete(registry.hubs, id)
				hub.stop()
				logf(registry.cfg, "GAMES: Reaped idle room %s", id)
			}
		}
		registry.mu.Unlock()
	}
}
