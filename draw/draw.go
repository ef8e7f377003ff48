package draw

import (
	"errors"
	"math/rand"
)

var (
	ErrNotEnoughParticipants = errors.New("at least two participants are needed for the draw")
	ErrDuplicateName         = errors.New("duplicate participant name")
)

// Assign shuffles names and chains them into a single cycle, so every giver
// maps to exactly one receiver and nobody draws themselves. The result maps
// giver to receiver.
func Assign(names []string, rng *rand.Rand) (map[string]string, error) {
	if len(names) < 2 {
		return nil, ErrNotEnoughParticipants
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return nil, ErrDuplicateName
		}
		seen[n] = struct{}{}
	}

	order := make([]string, len(names))
	copy(order, names)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	pairs := make(map[string]string, len(order))
	for i, giver := range order {
		pairs[giver] = order[(i+1)%len(order)]
	}
	return pairs, nil
}
