package main

import (
	"math/rand"
)

type Role string

const (
	RoleNone     Role = ""
	RoleKing     Role = "king"
	RoleQueen    Role = "queen"
	RoleMinister Role = "minister"
	RoleThief    Role = "thief"
	RoleSoldier  Role = "soldier"
)

// assignRoles deals one each of king, queen, minister, and thief, padding
// with soldiers for rooms larger than four. The role list is shuffled with
// Fisher-Yates before being zipped with the player ids, so every
// permutation is equally likely. Returns nil for fewer than four players.
func assignRoles(playerIDs []string) map[string]Role {
	if len(playerIDs) < minPlayers {
		return nil
	}

	roles := []Role{RoleKing, RoleQueen, RoleMinister, RoleThief}
	for i := len(roles); i < len(playerIDs); i++ {
		roles = append(roles, RoleSoldier)
	}

	for i := len(roles) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		roles[i], roles[j] = roles[j], roles[i]
	}

	assigned := make(map[string]Role, len(playerIDs))
	for i, id := range playerIDs {
		assigned[id] = roles[i]
	}

	return assigned
}
