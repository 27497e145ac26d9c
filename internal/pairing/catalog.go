package pairing

import "math/rand"

// DefaultOutcomeCatalog is the fixed set of shared activity identifiers a
// resolution draws from
var DefaultOutcomeCatalog = []string{
	"cook-dinner-together",
	"sunset-walk",
	"movie-night",
	"stargazing",
	"board-game-duel",
	"breakfast-in-bed",
	"picnic-in-the-park",
	"dance-in-the-kitchen",
	"write-each-other-letters",
	"recreate-first-date",
	"massage-exchange",
	"karaoke-at-home",
	"plan-a-trip",
	"bake-something-new",
	"photo-walk",
	"question-jar-night",
}

// pickOutcome draws uniformly from catalog excluding the recent set. When
// the exclusion would leave nothing, the oldest history entries are ignored
// until at least one candidate exists.
func pickOutcome(catalog, recent []string, rnd *rand.Rand) string {
	excluded := make(map[string]bool, len(recent))
	for _, id := range recent {
		excluded[id] = true
	}

	for start := 0; ; start++ {
		var candidates []string
		for _, id := range catalog {
			if !excluded[id] {
				candidates = append(candidates, id)
			}
		}
		if len(candidates) > 0 {
			return candidates[rnd.Intn(len(candidates))]
		}
		if start >= len(recent) {
			// Catalog empty; nothing sensible to return
			return ""
		}
		delete(excluded, recent[start])
	}
}
