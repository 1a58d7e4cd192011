package main

// Flat-bonus scoring: when the thief is caught every other role banks a
// fixed bonus, and when the thief escapes only the thief scores. Totals
// only ever increase.
const (
	kingBonus     = 100
	ministerBonus = 75
	queenBonus    = 50
	soldierBonus  = 25
	thiefBonus    = 100

	// A lone stray vote never convicts; the accused must hold at least
	// this many votes to count as a catch.
	catchQuorum = 2
)

func roleBonus(role Role, caught bool) int {
	if caught {
		switch role {
		case RoleKing:
			return kingBonus
		case RoleMinister:
			return ministerBonus
		case RoleQueen:
			return queenBonus
		case RoleSoldier:
			return soldierBonus
		}
		return 0
	}
	if role == RoleThief {
		return thiefBonus
	}
	return 0
}

// tallyVotes counts votes per target and returns the accused id and their
// vote count. The strictly highest count wins; ties go to the earliest
// joiner among the tied targets. Returns "" when no votes were cast.
func tallyVotes(players []*Player, votes map[string]string) (string, int) {
	counts := make(map[string]int, len(votes))
	for _, targetID := range votes {
		counts[targetID]++
	}

	accusedID := ""
	maxVotes := 0
	for _, p := range players {
		if counts[p.ID] > maxVotes {
			maxVotes = counts[p.ID]
			accusedID = p.ID
		}
	}

	return accusedID, maxVotes
}

// applyScores updates every player's total and overwrites their round
// message with a short explanation of the outcome.
func applyScores(players []*Player, caught bool) {
	for _, p := range players {
		p.TotalScore += roleBonus(p.CurrentRole, caught)

		switch p.CurrentRole {
		case RoleThief:
			if caught {
				p.RoundMessage = "The thief was caught"
			} else {
				p.RoundMessage = "The thief escaped"
			}
		case RoleKing:
			if caught {
				p.RoundMessage = "Helped catch the thief"
			} else {
				p.RoundMessage = "The thief escaped"
			}
		case RoleMinister:
			if caught {
				p.RoundMessage = "Made the right call"
			} else {
				p.RoundMessage = "Made the wrong call"
			}
		default:
			p.RoundMessage = "Voted"
		}
	}
}

// pickWinner returns the player with the highest total score, ties broken
// by join order. Returns nil for an empty room.
func pickWinner(players []*Player) *Player {
	var winner *Player
	maxScore := -1
	for _, p := range players {
		if p.TotalScore > maxScore {
			maxScore = p.TotalScore
			winner = p
		}
	}
	return winner
}
