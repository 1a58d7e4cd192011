package main

import (
	"time"
)

const (
	minPlayers     = 4
	maxPlayers     = 8
	maxRounds      = 10
	chatHistoryMax = 50

	defaultLanguage = "gu"
)

// Player holds the data we store server-side for one connection.
type Player struct {
	ID           string
	Name         string
	TotalScore   int
	CurrentRole  Role
	IsHost       bool
	RoundMessage string
}

type ChatMessage struct {
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// Room is the per-session game state. It is only ever touched from its
// hub's run goroutine, so none of these fields need locking.
type Room struct {
	id           string
	players      []*Player // join order
	hostID       string
	currentRound int
	gameStarted  bool
	roundActive  bool
	votes        map[string]string // voter id -> target id
	thiefID      string
	language     string
	chatHistory  []ChatMessage
}

func newRoom(id string) *Room {
	return &Room{
		id:       id,
		language: defaultLanguage,
		votes:    make(map[string]string),
	}
}

func (r *Room) player(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerIDs() []string {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.ID)
	}
	return ids
}

func (r *Room) addPlayer(id, name string) *Player {
	p := &Player{
		ID:     id,
		Name:   name,
		IsHost: len(r.players) == 0,
	}
	if p.IsHost {
		r.hostID = id
	}
	r.players = append(r.players, p)
	return p
}

// removePlayer drops the player and, if they were host, promotes the next
// remaining player by join order. Returns the promoted player, or nil.
func (r *Room) removePlayer(id string) *Player {
	dst := r.players[:0]
	removed := false
	for _, p := range r.players {
		if p.ID == id {
			removed = true
			continue
		}
		dst = append(dst, p)
	}
	r.players = dst
	delete(r.votes, id)

	if !removed || id != r.hostID {
		return nil
	}

	r.hostID = ""
	if len(r.players) == 0 {
		return nil
	}

	next := r.players[0]
	next.IsHost = true
	r.hostID = next.ID
	return next
}

// nonThiefCount is the number of players expected to vote this round.
func (r *Room) nonThiefCount() int {
	count := 0
	for _, p := range r.players {
		if p.CurrentRole != RoleNone && p.CurrentRole != RoleThief {
			count++
		}
	}
	return count
}

func (r *Room) clearRoles() {
	for _, p := range r.players {
		p.CurrentRole = RoleNone
	}
	r.thiefID = ""
}

func (r *Room) appendChat(msg ChatMessage) {
	r.chatHistory = append(r.chatHistory, msg)
	if len(r.chatHistory) > chatHistoryMax {
		r.chatHistory = r.chatHistory[1:]
	}
}
