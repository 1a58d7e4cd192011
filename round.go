package main

// Round lifecycle: the host's startGame kicks off role assignment, voting
// runs until every non-thief player has voted or the vote timer lapses,
// resolution applies scores and reveals the thief, and a short delay later
// the next round starts. After the tenth round (or an abort) the room
// drops back to the lobby with its totals intact.

func (h *Hub) handleStartGame(c *Client) {
	room := h.room

	if c.playerID != room.hostID || room.gameStarted {
		return
	}

	if len(room.players) < minPlayers {
		h.trySend(c, SimpleMessage{Type: "error", Message: errNotEnoughPlayers})
		return
	}

	h.startRound()
}

func (h *Hub) handleSetLanguage(c *Client, lang string) {
	room := h.room

	// Host-only; silently ignored for anyone else.
	if c.playerID != room.hostID || lang == "" {
		return
	}

	room.language = lang
	h.broadcast(LanguageChangedMessage{Type: "languageChanged", Language: lang})
}

func (h *Hub) startRound() {
	room := h.room

	if len(room.players) < minPlayers {
		room.gameStarted = false
		h.broadcast(SimpleMessage{Type: "error", Message: errNotEnoughToContinue})
		return
	}

	if room.currentRound >= maxRounds {
		h.endGame()
		return
	}

	roles := assignRoles(room.playerIDs())
	if roles == nil {
		return
	}

	h.gen++
	room.gameStarted = true
	room.currentRound++
	room.roundActive = true
	room.votes = make(map[string]string)
	room.thiefID = ""

	for _, p := range room.players {
		p.CurrentRole = roles[p.ID]
		if p.CurrentRole == RoleThief {
			room.thiefID = p.ID
		}
		if c := h.clientFor(p.ID); c != nil {
			h.trySend(c, YourRoleMessage{Type: "yourRole", Role: p.CurrentRole})
		}
	}

	h.broadcast(NewRoundMessage{
		Type:      "newRound",
		Round:     room.currentRound,
		MaxRounds: maxRounds,
		Language:  room.language,
	})

	h.armTimer(timerVote, h.cfg.voteTimeout)

	logf(h.cfg, "GAMES: Room %s started round %d/%d", room.id, room.currentRound, maxRounds)
}

func (h *Hub) handleVote(c *Client, targetID string) {
	room := h.room

	if !room.roundActive {
		return
	}

	voter := room.player(c.playerID)
	if voter == nil {
		return
	}

	// The thief does not vote; their ballots vanish without comment so
	// the vote count itself cannot unmask them.
	if voter.CurrentRole == RoleThief {
		return
	}

	if room.player(targetID) == nil {
		h.trySend(c, SimpleMessage{Type: "error", Message: errInvalidVoteTarget})
		return
	}

	room.votes[voter.ID] = targetID

	cast := len(room.votes)
	expected := room.nonThiefCount()

	h.broadcast(VoteUpdateMessage{
		Type:          "voteUpdate",
		Message:       voter.Name + " has voted.",
		VotesCast:     cast,
		VotesExpected: expected,
	})

	if cast >= expected {
		h.resolveRound()
	}
}

// resolveRound tallies the votes, applies scores, reveals the thief, and
// schedules the next transition. Players who never voted count as
// abstentions.
func (h *Hub) resolveRound() {
	room := h.room

	accusedID, accusedVotes := tallyVotes(room.players, room.votes)
	thief := room.player(room.thiefID)

	caught := thief != nil && accusedID == room.thiefID && accusedVotes >= catchQuorum

	applyScores(room.players, caught)

	thiefName := ""
	if thief != nil {
		thiefName = thief.Name
	}
	accusedName := ""
	if accused := room.player(accusedID); accused != nil {
		accusedName = accused.Name
	}

	players := make([]RoundPlayer, 0, len(room.players))
	for _, p := range room.players {
		players = append(players, RoundPlayer{
			PlayerInfo: PlayerInfo{
				ID:           p.ID,
				Name:         p.Name,
				TotalScore:   p.TotalScore,
				IsHost:       p.IsHost,
				RoundMessage: p.RoundMessage,
			},
			Role: p.CurrentRole,
		})
	}

	h.gen++
	room.roundActive = false
	room.votes = make(map[string]string)
	room.clearRoles()

	h.broadcast(RoundResultMessage{
		Type:            "roundResult",
		Caught:          caught,
		AccusedName:     accusedName,
		ThiefName:       thiefName,
		ThiefPointsGain: thiefBonus,
		Players:         players,
		Language:        room.language,
	})

	logf(h.cfg, "GAMES: Room %s round %d resolved (caught=%v)", room.id, room.currentRound, caught)

	h.armTimer(timerNextRound, h.cfg.roundDelay)
}

// endGame broadcasts final standings and returns the room to the lobby so
// it can be reused for a fresh game.
func (h *Hub) endGame() {
	room := h.room

	winnerName := ""
	if winner := pickWinner(room.players); winner != nil {
		winnerName = winner.Name
	}

	h.broadcast(GameEndMessage{
		Type:        "gameEnd",
		WinnerName:  winnerName,
		FinalScores: h.playerList(),
		Language:    room.language,
	})

	h.gen++
	room.gameStarted = false
	room.roundActive = false
	room.currentRound = 0
	room.votes = make(map[string]string)
	room.clearRoles()

	logf(h.cfg, "GAMES: Room %s game ended, winner %q", room.id, winnerName)
}
