package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("player-%d", i)
	}
	return ids
}

func TestAssignRolesComposition(t *testing.T) {
	for n := minPlayers; n <= maxPlayers; n++ {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			ids := playerIDs(n)
			roles := assignRoles(ids)
			require.Len(t, roles, n)

			counts := make(map[Role]int)
			for _, id := range ids {
				role, ok := roles[id]
				require.True(t, ok, "player %s received no role", id)
				counts[role]++
			}

			assert.Equal(t, 1, counts[RoleKing])
			assert.Equal(t, 1, counts[RoleQueen])
			assert.Equal(t, 1, counts[RoleMinister])
			assert.Equal(t, 1, counts[RoleThief])
			assert.Equal(t, n-4, counts[RoleSoldier])
		})
	}
}

func TestAssignRolesTooFewPlayers(t *testing.T) {
	for n := 0; n < minPlayers; n++ {
		assert.Nil(t, assignRoles(playerIDs(n)), "expected no assignment for %d players", n)
	}
}

// The shuffle should spread the thief across every seat roughly evenly.
func TestAssignRolesUniformity(t *testing.T) {
	const trials = 20000

	ids := playerIDs(minPlayers)
	thiefSeat := make(map[string]int, len(ids))

	for i := 0; i < trials; i++ {
		roles := assignRoles(ids)
		for id, role := range roles {
			if role == RoleThief {
				thiefSeat[id]++
			}
		}
	}

	expected := trials / len(ids)
	for _, id := range ids {
		// Generous tolerance; flags only gross bias, not run-to-run noise.
		assert.InDelta(t, expected, thiefSeat[id], float64(expected)/4,
			"thief landed on %s a suspicious number of times", id)
	}
}
