package stats

import "math/rand"

// Fixed name pools the simulated snapshot draws from.
var (
	DefaultClientPool = []string{"Christine", "Adeline", "Annecy", "Youmin", "Elly", "Avery", "Mia", "Kate"}
	DefaultRoomPool   = []string{"General", "Programming", "Random", "CSCI270", "USC"}
)

// Bounds for the synthesized counts while the server is Online.
const (
	MaxActiveClients = 10
	MaxRooms         = 5

	// DefaultMessageChance is the per-tick probability of a new synthetic message.
	DefaultMessageChance = 0.3
)

// sampleNames picks n distinct names from pool. n is capped by len(pool).
func sampleNames(rng *rand.Rand, pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return []string{}
	}
	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}
