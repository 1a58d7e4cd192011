package main

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		maxRooms:    16,
		voteTimeout: time.Minute,
		roundDelay:  5 * time.Millisecond,
	}
}

// newTestClient builds a client without a real socket; tests read its
// outbound messages straight off the send channel.
func newTestClient(id string) *Client {
	return &Client{
		send:     make(chan any, 256),
		playerID: id,
	}
}

func recvMsg(t *testing.T, c *Client) any {
	t.Helper()

	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed while waiting for a message")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

// recvType discards messages until one of the wanted type arrives.
func recvType[T any](t *testing.T, c *Client) T {
	t.Helper()

	for {
		if msg, ok := recvMsg(t, c).(T); ok {
			return msg
		}
	}
}

// assertNoMessage fails if a message of the given type arrives within the
// wait window.
func assertNoMessage[T any](t *testing.T, c *Client, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if _, bad := msg.(T); bad {
				t.Fatalf("unexpected message: %#v", msg)
			}
		case <-deadline:
			return
		}
	}
}

func createTestRoom(t *testing.T, registry *RoomRegistry, name string) (*Hub, *Client) {
	t.Helper()

	c := newTestClient("conn-" + name)
	hub, err := registry.createRoom(c, name)
	require.NoError(t, err)
	c.hub = hub
	recvType[RoomCreatedMessage](t, c)

	return hub, c
}

func joinTestRoom(t *testing.T, hub *Hub, c *Client, name string) ChatHistoryMessage {
	t.Helper()

	req := joinRequest{client: c, name: name, errChan: make(chan error, 1)}
	hub.joins <- req
	require.NoError(t, <-req.errChan)
	c.hub = hub

	recvType[RoomJoinedMessage](t, c)
	return recvType[ChatHistoryMessage](t, c)
}

// fourPlayerRoom creates a room with host A and players B, C, D.
func fourPlayerRoom(t *testing.T, registry *RoomRegistry) (*Hub, []*Client) {
	t.Helper()

	hub, a := createTestRoom(t, registry, "A")
	clients := []*Client{a}
	for _, name := range []string{"B", "C", "D"} {
		c := newTestClient("conn-" + name)
		joinTestRoom(t, hub, c, name)
		clients = append(clients, c)
	}

	return hub, clients
}

// startTestRound starts a round and returns each client's private role.
func startTestRound(t *testing.T, hub *Hub, host *Client, clients []*Client) map[*Client]Role {
	t.Helper()

	hub.events <- eventEnvelope{client: host, msg: ClientMessage{Type: "startGame"}}

	roles := make(map[*Client]Role, len(clients))
	for _, c := range clients {
		roles[c] = recvType[YourRoleMessage](t, c).Role
	}

	return roles
}

func thiefOf(t *testing.T, roles map[*Client]Role) *Client {
	t.Helper()

	for c, role := range roles {
		if role == RoleThief {
			return c
		}
	}
	t.Fatal("no thief assigned")
	return nil
}

func vote(hub *Hub, voter *Client, targetID string) {
	hub.events <- eventEnvelope{client: voter, msg: ClientMessage{Type: "submitVote", TargetID: targetID}}
}

func TestCreateRoom(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	a := newTestClient("conn-a")

	hub, err := registry.createRoom(a, "A")
	require.NoError(t, err)

	created := recvType[RoomCreatedMessage](t, a)
	assert.Len(t, created.RoomID, 4)
	assert.True(t, created.IsHost)
	assert.Equal(t, defaultLanguage, created.Language)
	assert.Equal(t, hub.id, created.RoomID)

	list := recvType[PlayerListMessage](t, a)
	require.Len(t, list.Players, 1)
	assert.Equal(t, "A", list.Players[0].Name)
	assert.True(t, list.Players[0].IsHost)
}

func TestCreateRoomServerFull(t *testing.T) {
	cfg := testConfig()
	cfg.maxRooms = 1
	registry := newRoomRegistry(cfg)

	createTestRoom(t, registry, "A")

	_, err := registry.createRoom(newTestClient("conn-b"), "B")
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestLookupNormalizesRoomID(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, _ := createTestRoom(t, registry, "A")

	found, ok := registry.lookup(strings.ToLower(hub.id))
	require.True(t, ok)
	assert.Same(t, hub, found)

	_, ok = registry.lookup("nope")
	assert.False(t, ok)
}

func TestJoinRoomFull(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, _ := createTestRoom(t, registry, "A")

	for i := 1; i < maxPlayers; i++ {
		joinTestRoom(t, hub, newTestClient(fmt.Sprintf("conn-extra-%d", i)), "Extra")
	}

	req := joinRequest{client: newTestClient("conn-late"), name: "Late", errChan: make(chan error, 1)}
	hub.joins <- req
	assert.ErrorIs(t, <-req.errChan, ErrRoomFull)
}

func TestJoinDuringGameRejected(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, clients := fourPlayerRoom(t, registry)
	startTestRound(t, hub, clients[0], clients)

	req := joinRequest{client: newTestClient("conn-late"), name: "Late", errChan: make(chan error, 1)}
	hub.joins <- req
	assert.ErrorIs(t, <-req.errChan, ErrGameInProgress)
}

func TestJoinReplaysChatHistory(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, a := createTestRoom(t, registry, "A")

	hub.events <- eventEnvelope{client: a, msg: ClientMessage{Type: "chatMessage", Text: "hello"}}
	broadcast := recvType[ChatBroadcastMessage](t, a)
	assert.Equal(t, "A", broadcast.SenderName)
	assert.Equal(t, "hello", broadcast.Text)

	history := joinTestRoom(t, hub, newTestClient("conn-b"), "B")
	require.Len(t, history.Entries, 1)
	assert.Equal(t, "hello", history.Entries[0].Text)
}

func TestStartGameRequiresHost(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, clients := fourPlayerRoom(t, registry)

	hub.events <- eventEnvelope{client: clients[1], msg: ClientMessage{Type: "startGame"}}
	assertNoMessage[NewRoundMessage](t, clients[0], 50*time.Millisecond)
}

func TestStartGameRequiresMinimumPlayers(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, a := createTestRoom(t, registry, "A")
	joinTestRoom(t, hub, newTestClient("conn-b"), "B")

	hub.events <- eventEnvelope{client: a, msg: ClientMessage{Type: "startGame"}}

	notice := recvType[SimpleMessage](t, a)
	assert.Equal(t, "error", notice.Type)
	assert.Equal(t, errNotEnoughPlayers, notice.Message)
}

func TestFullRoundFlow(t *testing.T) {
	cfg := testConfig()
	cfg.roundDelay = time.Hour // hold after resolution so state can be inspected
	registry := newRoomRegistry(cfg)

	hub, clients := fourPlayerRoom(t, registry)
	a := clients[0]

	roles := startTestRound(t, hub, a, clients)
	for _, c := range clients {
		assert.Contains(t, []Role{RoleKing, RoleQueen, RoleMinister, RoleThief}, roles[c])

		round := recvType[NewRoundMessage](t, c)
		assert.Equal(t, 1, round.Round)
		assert.Equal(t, maxRounds, round.MaxRounds)
		assert.Equal(t, defaultLanguage, round.Language)
	}

	thief := thiefOf(t, roles)
	for _, c := range clients {
		if c != thief {
			vote(hub, c, thief.playerID)
		}
	}

	result := recvType[RoundResultMessage](t, a)
	assert.True(t, result.Caught)
	require.Len(t, result.Players, 4)

	wantScore := map[Role]int{
		RoleKing:     kingBonus,
		RoleQueen:    queenBonus,
		RoleMinister: ministerBonus,
		RoleThief:    0,
	}
	for _, p := range result.Players {
		assert.Equal(t, wantScore[p.Role], p.TotalScore, "score for %s", p.Role)
		assert.NotEmpty(t, p.RoundMessage)
	}

	// Exactly one result per round.
	assertNoMessage[RoundResultMessage](t, a, 50*time.Millisecond)

	// Votes are cleared as soon as the round resolves; the chat round-trip
	// orders this read after the hub's write.
	hub.events <- eventEnvelope{client: a, msg: ClientMessage{Type: "chatMessage", Text: "gg"}}
	recvType[ChatBroadcastMessage](t, a)
	assert.Empty(t, hub.room.votes)
}

func TestThiefVoteSilentlyDropped(t *testing.T) {
	cfg := testConfig()
	cfg.roundDelay = time.Hour
	registry := newRoomRegistry(cfg)

	hub, clients := fourPlayerRoom(t, registry)
	roles := startTestRound(t, hub, clients[0], clients)
	thief := thiefOf(t, roles)

	vote(hub, thief, clients[0].playerID)
	assertNoMessage[VoteUpdateMessage](t, clients[0], 50*time.Millisecond)

	for _, c := range clients {
		if c != thief {
			vote(hub, c, thief.playerID)
		}
	}

	result := recvType[RoundResultMessage](t, clients[0])
	assert.True(t, result.Caught, "the thief's own ballot must not sway the tally")
}

func TestRevoteLastWriteWins(t *testing.T) {
	cfg := testConfig()
	cfg.roundDelay = time.Hour
	registry := newRoomRegistry(cfg)

	hub, clients := fourPlayerRoom(t, registry)
	roles := startTestRound(t, hub, clients[0], clients)
	thief := thiefOf(t, roles)

	var voter *Client
	for _, c := range clients {
		if c != thief {
			voter = c
			break
		}
	}

	vote(hub, voter, clients[0].playerID)
	first := recvType[VoteUpdateMessage](t, voter)
	assert.Equal(t, 1, first.VotesCast)
	assert.Equal(t, 3, first.VotesExpected)

	vote(hub, voter, thief.playerID)
	second := recvType[VoteUpdateMessage](t, voter)
	assert.Equal(t, 1, second.VotesCast, "changing a vote must not count twice")
}

func TestSingleVoteNeverConvicts(t *testing.T) {
	cfg := testConfig()
	cfg.voteTimeout = 30 * time.Millisecond
	cfg.roundDelay = time.Hour
	registry := newRoomRegistry(cfg)

	hub, clients := fourPlayerRoom(t, registry)
	roles := startTestRound(t, hub, clients[0], clients)
	thief := thiefOf(t, roles)

	var voter *Client
	for _, c := range clients {
		if c != thief {
			voter = c
			break
		}
	}
	vote(hub, voter, thief.playerID)

	result := recvType[RoundResultMessage](t, clients[0])
	assert.False(t, result.Caught, "a single ballot on the thief is not a conviction")

	for _, p := range result.Players {
		if p.Role == RoleThief {
			assert.Equal(t, thiefBonus, p.TotalScore, "the thief escapes with the bonus")
		} else {
			assert.Zero(t, p.TotalScore)
		}
	}
}

func TestVoteTimeoutResolvesRound(t *testing.T) {
	cfg := testConfig()
	cfg.voteTimeout = 30 * time.Millisecond
	cfg.roundDelay = time.Hour
	registry := newRoomRegistry(cfg)

	hub, clients := fourPlayerRoom(t, registry)
	startTestRound(t, hub, clients[0], clients)

	result := recvType[RoundResultMessage](t, clients[0])
	assert.False(t, result.Caught, "an uncontested round cannot catch the thief")
}

func TestHostDisconnectPromotesNextPlayer(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, a := createTestRoom(t, registry, "A")
	b := newTestClient("conn-b")
	joinTestRoom(t, hub, b, "B")

	hub.unreg <- a

	promoted := recvType[SetHostMessage](t, b)
	assert.True(t, promoted.IsHost)

	list := recvType[PlayerListMessage](t, b)
	require.Len(t, list.Players, 1)
	assert.Equal(t, "B", list.Players[0].Name)
	assert.True(t, list.Players[0].IsHost)
}

func TestDisconnectBelowMinimumAbortsGame(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, clients := fourPlayerRoom(t, registry)
	a := clients[0]
	startTestRound(t, hub, a, clients)

	hub.unreg <- clients[1]

	voice := recvType[VoicePresenceMessage](t, a)
	assert.Equal(t, "userDisconnectedVoice", voice.Type)
	assert.Equal(t, clients[1].playerID, voice.ID)

	list := recvType[PlayerListMessage](t, a)
	assert.Len(t, list.Players, 3)

	notice := recvType[SimpleMessage](t, a)
	assert.Equal(t, errGameAborted, notice.Message)

	recvType[GameEndMessage](t, a)
	assertNoMessage[NewRoundMessage](t, a, 50*time.Millisecond)
}

func TestDisconnectOfLastOutstandingVoterResolvesRound(t *testing.T) {
	cfg := testConfig()
	cfg.roundDelay = time.Hour
	registry := newRoomRegistry(cfg)

	hub, a := createTestRoom(t, registry, "A")
	clients := []*Client{a}
	for _, name := range []string{"B", "C", "D", "E"} {
		c := newTestClient("conn-" + name)
		joinTestRoom(t, hub, c, name)
		clients = append(clients, c)
	}

	roles := startTestRound(t, hub, a, clients)
	thief := thiefOf(t, roles)

	// The last-joined non-thief abstains; everyone else votes.
	var straggler *Client
	for _, c := range clients {
		if c != thief {
			straggler = c
		}
	}
	for _, c := range clients {
		if c != thief && c != straggler {
			vote(hub, c, thief.playerID)
		}
	}
	assertNoMessage[RoundResultMessage](t, a, 50*time.Millisecond)

	hub.unreg <- straggler

	result := recvType[RoundResultMessage](t, a)
	assert.True(t, result.Caught, "the round resolves once no ballots are outstanding")
}

func TestGameEndsAfterMaxRounds(t *testing.T) {
	cfg := testConfig()
	cfg.roundDelay = 2 * time.Millisecond
	registry := newRoomRegistry(cfg)

	hub, clients := fourPlayerRoom(t, registry)
	a := clients[0]

	hub.events <- eventEnvelope{client: a, msg: ClientMessage{Type: "startGame"}}

	for round := 1; round <= maxRounds; round++ {
		roles := make(map[*Client]Role, len(clients))
		for _, c := range clients {
			roles[c] = recvType[YourRoleMessage](t, c).Role
			assert.Equal(t, round, recvType[NewRoundMessage](t, c).Round)
		}

		thief := thiefOf(t, roles)
		for _, c := range clients {
			if c != thief {
				vote(hub, c, thief.playerID)
			}
		}

		recvType[RoundResultMessage](t, a)
	}

	end := recvType[GameEndMessage](t, a)
	assert.NotEmpty(t, end.WinnerName)
	assert.Len(t, end.FinalScores, 4)

	assertNoMessage[NewRoundMessage](t, a, 50*time.Millisecond)
}

func TestSetLanguageHostOnly(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, a := createTestRoom(t, registry, "A")
	b := newTestClient("conn-b")
	joinTestRoom(t, hub, b, "B")

	hub.events <- eventEnvelope{client: b, msg: ClientMessage{Type: "setLanguage", Language: "hi"}}
	assertNoMessage[LanguageChangedMessage](t, a, 50*time.Millisecond)

	hub.events <- eventEnvelope{client: a, msg: ClientMessage{Type: "setLanguage", Language: "hi"}}
	changed := recvType[LanguageChangedMessage](t, b)
	assert.Equal(t, "hi", changed.Language)
}

func TestSignalRelay(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, a := createTestRoom(t, registry, "A")
	b := newTestClient("conn-b")
	joinTestRoom(t, hub, b, "B")

	offer := json.RawMessage(`{"sdp":"fake"}`)
	hub.events <- eventEnvelope{client: a, msg: ClientMessage{Type: "offer", ToID: b.playerID, Offer: offer}}

	relayed := recvType[SignalMessage](t, b)
	assert.Equal(t, "offer", relayed.Type)
	assert.Equal(t, a.playerID, relayed.FromID)
	assert.JSONEq(t, string(offer), string(relayed.Offer))

	// Signals to ids outside the room vanish.
	hub.events <- eventEnvelope{client: a, msg: ClientMessage{Type: "iceCandidate", ToID: "stranger", Candidate: offer}}
	assertNoMessage[SignalMessage](t, b, 50*time.Millisecond)
}

func TestVoicePresenceFanout(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, a := createTestRoom(t, registry, "A")
	b := newTestClient("conn-b")
	joinTestRoom(t, hub, b, "B")

	hub.events <- eventEnvelope{client: a, msg: ClientMessage{Type: "voiceReady"}}

	ready := recvType[VoicePresenceMessage](t, b)
	assert.Equal(t, "userReadyForVoice", ready.Type)
	assert.Equal(t, a.playerID, ready.ID)

	assertNoMessage[VoicePresenceMessage](t, a, 50*time.Millisecond)
}

func TestEmptyRoomIsDestroyed(t *testing.T) {
	registry := newRoomRegistry(testConfig())
	hub, a := createTestRoom(t, registry, "A")

	hub.unreg <- a

	require.Eventually(t, func() bool {
		_, ok := registry.lookup(hub.id)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestUnboundDisconnectReleasesWritePump(t *testing.T) {
	cfg := testConfig()
	registry := newRoomRegistry(cfg)

	mux := httprouter.New()
	mux.GET("/chor/ws", serveWS(cfg, registry))

	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chor/ws"

	before := runtime.NumGoroutine()

	// Connections dropped before their first createRoom/joinRoom must not
	// leave their write pumps behind.
	for i := 0; i < 20; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		require.NoError(t, conn.Close())
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+5
	}, 2*time.Second, 20*time.Millisecond)
}
