package main

import (
	"encoding/json"
)

// Messages coming from clients
type ClientMessage struct {
	Type      string          `json:"type"`                // "createRoom", "joinRoom", "setLanguage", "startGame", "submitVote", "chatMessage", "voiceReady", "voiceStop", "offer", "answer", "iceCandidate"
	Name      string          `json:"name,omitempty"`      // createRoom / joinRoom
	RoomID    string          `json:"roomId,omitempty"`    // joinRoom
	Language  string          `json:"language,omitempty"`  // setLanguage
	TargetID  string          `json:"targetId,omitempty"`  // submitVote
	Text      string          `json:"text,omitempty"`      // chatMessage
	ToID      string          `json:"toId,omitempty"`      // offer / answer / iceCandidate
	Offer     json.RawMessage `json:"offer,omitempty"`     // offer
	Answer    json.RawMessage `json:"answer,omitempty"`    // answer
	Candidate json.RawMessage `json:"candidate,omitempty"` // iceCandidate
}

// PlayerInfo is the public view of a player, broadcast with every roster
// change. Roles are never included here; players learn only their own role.
type PlayerInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TotalScore   int    `json:"totalScore"`
	IsHost       bool   `json:"isHost"`
	RoundMessage string `json:"roundMessage"`
}

// RoundPlayer extends PlayerInfo with the role reveal, sent only once a
// round has resolved.
type RoundPlayer struct {
	PlayerInfo
	Role Role `json:"role"`
}

// SimpleMessage is for generic notifications ("error", "serverFull", etc.)
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RoomCreatedMessage is sent to the creator only.
type RoomCreatedMessage struct {
	Type     string `json:"type"` // "roomCreated"
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
	IsHost   bool   `json:"isHost"`
}

// RoomJoinedMessage is sent to the joining player only.
type RoomJoinedMessage struct {
	Type     string `json:"type"` // "roomJoined"
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
	IsHost   bool   `json:"isHost"`
}

type PlayerListMessage struct {
	Type    string       `json:"type"` // "playerListUpdate"
	Players []PlayerInfo `json:"players"`
}

// YourRoleMessage is private, per-player.
type YourRoleMessage struct {
	Type string `json:"type"` // "yourRole"
	Role Role   `json:"role"`
}

// SetHostMessage is sent privately to a player promoted to host.
type SetHostMessage struct {
	Type   string `json:"type"` // "setHost"
	IsHost bool   `json:"isHost"`
}

type NewRoundMessage struct {
	Type      string `json:"type"` // "newRound"
	Round     int    `json:"round"`
	MaxRounds int    `json:"maxRounds"`
	Language  string `json:"language"`
}

// VoteUpdateMessage broadcasts a running tally count, never identities.
type VoteUpdateMessage struct {
	Type          string `json:"type"` // "voteUpdate"
	Message       string `json:"message"`
	VotesCast     int    `json:"votesCast"`
	VotesExpected int    `json:"votesExpected"`
}

type RoundResultMessage struct {
	Type            string        `json:"type"` // "roundResult"
	Caught          bool          `json:"caught"`
	AccusedName     string        `json:"accusedName,omitempty"`
	ThiefName       string        `json:"thiefName"`
	ThiefPointsGain int           `json:"thiefPointsGain"`
	Players         []RoundPlayer `json:"players"`
	Language        string        `json:"language"`
}

type GameEndMessage struct {
	Type        string       `json:"type"` // "gameEnd"
	WinnerName  string       `json:"winnerName"`
	FinalScores []PlayerInfo `json:"finalScores"`
	Language    string       `json:"language"`
}

type ChatBroadcastMessage struct {
	Type string      `json:"type"` // "chatMessage"
	ChatMessage
}

// ChatHistoryMessage replays the room's capped history to a new joiner.
type ChatHistoryMessage struct {
	Type    string        `json:"type"` // "loadChatHistory"
	Entries []ChatMessage `json:"entries"`
}

type LanguageChangedMessage struct {
	Type     string `json:"type"` // "languageChanged"
	Language string `json:"language"`
}

// SignalMessage relays peer-connection negotiation payloads between two
// participants. The server never inspects the payload contents.
type SignalMessage struct {
	Type      string          `json:"type"` // "offer", "answer", "iceCandidate"
	FromID    string          `json:"fromId"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// VoicePresenceMessage announces a peer becoming ready for, or leaving,
// voice chat.
type VoicePresenceMessage struct {
	Type string `json:"type"` // "userReadyForVoice", "userDisconnectedVoice"
	ID   string `json:"id"`
}
