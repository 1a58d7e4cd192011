// Chor Sipahi
//
// A room-based social-deduction party game for 4-8 players. Each round,
// every player is secretly dealt a court role (king, queen, minister,
// thief, plus soldiers in larger rooms). Everyone except the thief votes
// on who they think the thief is; catching the thief pays out a bonus to
// the court, letting the thief escape pays the thief instead. Ten rounds,
// highest total wins.
//
// Features:
// - One websocket endpoint; the first message creates or joins a room
// - Random 4-char room IDs via crypto/rand, with server-side collision check
// - Host controls (start game, room language), host failover by join order
// - Per-room chat with replayed history for mid-game joiners
// - WebRTC signaling relay for direct voice chat between players
// - Rooms auto-reaped after a configurable idle timeout
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	_ "embed"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string

	// hub is set once the connection is bound to a room, and only ever
	// read or written from this client's readPump goroutine.
	hub *Hub
}

type joinRequest struct {
	client  *Client
	name    string
	errChan chan error
}

type eventEnvelope struct {
	client *Client
	msg    ClientMessage
}

type timerKind int

const (
	timerVote timerKind = iota
	timerNextRound
)

// timerEvent is posted back into the owning hub's queue when a scheduled
// timer fires. The generation stamp lets the hub drop fires for rounds
// that have already transitioned or been torn down.
type timerEvent struct {
	kind timerKind
	gen  int
}

// Hub owns one Room. All game state is mutated exclusively from the run
// goroutine, which serializes client events, timer fires, and disconnects.
type Hub struct {
	id       string
	cfg      *Config
	registry *RoomRegistry
	room     *Room
	clients  map[*Client]bool

	joins  chan joinRequest
	unreg  chan *Client
	events chan eventEnvelope
	timers chan timerEvent

	done     chan struct{}
	stopOnce sync.Once

	// gen counts state transitions; timer fires stamped with an older
	// generation are stale and ignored.
	gen int

	mu         sync.RWMutex
	lastActive time.Time
}

func newHub(cfg *Config, registry *RoomRegistry, roomID string) *Hub {
	return &Hub{
		id:         roomID,
		cfg:        cfg,
		registry:   registry,
		room:       newRoom(roomID),
		clients:    make(map[*Client]bool),
		joins:      make(chan joinRequest),
		unreg:      make(chan *Client),
		events:     make(chan eventEnvelope, 64),
		timers:     make(chan timerEvent, 8),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idle() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastActive
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				close(c.send)
				_ = c.conn.Close()
				delete(h.clients, c)
			}
			return

		case jr := <-h.joins:
			h.touch()
			h.handleJoin(jr)

		case c := <-h.unreg:
			h.touch()
			h.handleLeave(c)

		case ev := <-h.events:
			h.touch()
			h.handleEvent(ev)

		case te := <-h.timers:
			h.handleTimer(te)
		}
	}
}

func (h *Hub) handleJoin(jr joinRequest) {
	room := h.room

	switch {
	case len(room.players) >= maxPlayers:
		jr.errChan <- ErrRoomFull
		return
	case room.gameStarted:
		jr.errChan <- ErrGameInProgress
		return
	}

	room.addPlayer(jr.client.playerID, jr.name)
	h.clients[jr.client] = true
	jr.errChan <- nil

	h.trySend(jr.client, RoomJoinedMessage{
		Type:     "roomJoined",
		RoomID:   room.id,
		Language: room.language,
		IsHost:   false,
	})
	h.trySend(jr.client, ChatHistoryMessage{
		Type:    "loadChatHistory",
		Entries: append([]ChatMessage(nil), room.chatHistory...),
	})
	h.broadcastPlayerList()

	logf(h.cfg, "GAMES: Player %q joined room %s", jr.name, room.id)
}

func (h *Hub) handleLeave(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}

	room := h.room
	if room.player(c.playerID) == nil {
		return
	}

	// Peers holding a voice link to this player need to tear it down.
	h.broadcastExcept(c, VoicePresenceMessage{
		Type: "userDisconnectedVoice",
		ID:   c.playerID,
	})

	promoted := room.removePlayer(c.playerID)
	if promoted != nil {
		if pc := h.clientFor(promoted.ID); pc != nil {
			h.trySend(pc, SetHostMessage{Type: "setHost", IsHost: true})
		}
		logf(h.cfg, "GAMES: Host of room %s reassigned to %q", room.id, promoted.Name)
	}

	if len(room.players) == 0 {
		h.registry.remove(h.id)
		h.stop()
		logf(h.cfg, "GAMES: Room %s emptied and destroyed", room.id)
		return
	}

	h.broadcastPlayerList()

	if room.gameStarted && len(room.players) < minPlayers {
		h.broadcast(SimpleMessage{Type: "error", Message: errGameAborted})
		h.endGame()
		return
	}

	// The leaver may have been the only outstanding voter; without this
	// check the round would idle until the vote timer lapsed.
	if room.roundActive && len(room.votes) >= room.nonThiefCount() {
		h.resolveRound()
	}
}

func (h *Hub) handleEvent(ev eventEnvelope) {
	switch ev.msg.Type {
	case "setLanguage":
		h.handleSetLanguage(ev.client, ev.msg.Language)
	case "startGame":
		h.handleStartGame(ev.client)
	case "submitVote":
		h.handleVote(ev.client, ev.msg.TargetID)
	case "chatMessage":
		h.handleChat(ev.client, ev.msg.Text)
	case "voiceReady", "voiceStop":
		h.handleVoicePresence(ev.client, ev.msg.Type)
	case "offer", "answer", "iceCandidate":
		h.handleSignal(ev.client, ev.msg)
	}
}

func (h *Hub) handleTimer(te timerEvent) {
	if te.gen != h.gen {
		return
	}

	switch te.kind {
	case timerVote:
		if h.room.roundActive {
			h.resolveRound()
		}
	case timerNextRound:
		if h.room.gameStarted && !h.room.roundActive {
			h.startRound()
		}
	}
}

// armTimer schedules a timer fire as a message back into this hub's own
// queue, stamped with the current generation. The room may be destroyed
// before the fire; posting is abandoned once the hub is stopped.
func (h *Hub) armTimer(kind timerKind, d time.Duration) {
	te := timerEvent{kind: kind, gen: h.gen}
	time.AfterFunc(d, func() {
		select {
		case h.timers <- te:
		case <-h.done:
		}
	})
}

func (h *Hub) clientFor(playerID string) *Client {
	for c := range h.clients {
		if c.playerID == playerID {
			return c
		}
	}
	return nil
}

// trySend drops clients whose send buffer is full, matching the usual
// slow-consumer policy for websocket fanout.
func (h *Hub) trySend(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.trySend(c, msg)
	}
}

func (h *Hub) broadcastExcept(sender *Client, msg any) {
	for c := range h.clients {
		if c == sender {
			continue
		}
		h.trySend(c, msg)
	}
}

func (h *Hub) playerList() []PlayerInfo {
	players := make([]PlayerInfo, 0, len(h.room.players))
	for _, p := range h.room.players {
		players = append(players, PlayerInfo{
			ID:           p.ID,
			Name:         p.Name,
			TotalScore:   p.TotalScore,
			IsHost:       p.IsHost,
			RoundMessage: p.RoundMessage,
		})
	}
	return players
}

func (h *Hub) broadcastPlayerList() {
	h.broadcast(PlayerListMessage{
		Type:    "playerListUpdate",
		Players: h.playerList(),
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS upgrades the connection and hands it an ephemeral player id.
// The connection stays unbound until its first createRoom or joinRoom
// message.
func serveWS(cfg *Config, registry *RoomRegistry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade from %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: uuid.NewString(),
		}

		go client.writePump()
		client.readPump(cfg, registry)
	}
}

func (c *Client) readPump(cfg *Config, registry *RoomRegistry) {
	defer func() {
		if h := c.hub; h != nil {
			select {
			case h.unreg <- c:
			case <-h.done:
			}
		} else {
			// Never bound to a room, so no hub will ever close the send
			// channel; release the write pump here.
			close(c.send)
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if c.hub == nil {
			switch msg.Type {
			case "createRoom":
				c.createRoom(cfg, registry, msg.Name)
			case "joinRoom":
				c.joinRoom(registry, msg.RoomID, msg.Name)
			default:
				// ignore game events from unbound connections
			}
			continue
		}

		switch msg.Type {
		case "setLanguage", "startGame", "submitVote", "chatMessage",
			"voiceReady", "voiceStop", "offer", "answer", "iceCandidate":
			select {
			case c.hub.events <- eventEnvelope{client: c, msg: msg}:
			case <-c.hub.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) createRoom(cfg *Config, registry *RoomRegistry, name string) {
	if name == "" {
		name = "Player"
	}

	hub, err := registry.createRoom(c, name)
	if err != nil {
		c.send <- SimpleMessage{Type: "serverFull", Message: errServerFull}
		return
	}

	c.hub = hub
	logf(cfg, "GAMES: Room %s created by %q", hub.id, name)
}

func (c *Client) joinRoom(registry *RoomRegistry, roomID, name string) {
	if name == "" {
		name = "Player"
	}

	hub, ok := registry.lookup(roomID)
	if !ok {
		c.send <- SimpleMessage{Type: "error", Message: errRoomNotFound}
		return
	}

	req := joinRequest{client: c, name: name, errChan: make(chan error, 1)}

	var err error
	select {
	case hub.joins <- req:
		select {
		case err = <-req.errChan:
		case <-hub.done:
			err = ErrRoomNotFound
		}
	case <-hub.done:
		err = ErrRoomNotFound
	}

	switch err {
	case nil:
		c.hub = hub
	case ErrRoomFull:
		c.send <- SimpleMessage{Type: "error", Message: errRoomFull}
	case ErrGameInProgress:
		c.send <- SimpleMessage{Type: "error", Message: errGameInProgress}
	default:
		c.send <- SimpleMessage{Type: "error", Message: errRoomNotFound}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

//go:embed assets/chor/index.html
var indexHTML []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

// qrHandler generates a PNG QR code linking to the join page for a room.
func qrHandler(cfg *Config, path string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + path + "?room=" + roomID

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerChorGame sets up routes so that:
//   - $path             → HTML client
//   - $path/ws          → game websocket
//   - $path/qr/:roomid  → PNG QR code linking to a room's join page
func registerChorGame(cfg *Config, path string, mux *httprouter.Router, errs chan<- error) {
	registry := newRoomRegistry(cfg)

	mux.GET(cfg.prefix+path, getIndexHandler(cfg))

	mux.GET(cfg.prefix+"/assets/chor/app.css", serveAssets(cfg, errs))
	mux.GET(cfg.prefix+"/assets/chor/app.js", serveAssets(cfg, errs))

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, registry))

	mux.GET(cfg.prefix+path+"/qr/:roomid", qrHandler(cfg, path))
}
