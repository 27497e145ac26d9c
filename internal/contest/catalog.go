package contest

import (
	"math/rand"

	"github.com/tandemlabs/tandem/internal/models"
)

// contestSize is the fixed number of items frozen into a contest at creation
const contestSize = 5

// itemCatalog maps category identifiers to their item pools. Items carry the
// correct option so scoring stays self-contained once frozen into a contest.
var itemCatalog = map[string][]models.ContestItem{
	"how-well-do-you-know-me": {
		{ID: "hwdykm-1", Prompt: "What would your partner pick for a last meal?", Options: []string{"Pizza", "Sushi", "Tacos", "Pasta"}, CorrectOption: 0},
		{ID: "hwdykm-2", Prompt: "Which season does your partner like most?", Options: []string{"Spring", "Summer", "Autumn", "Winter"}, CorrectOption: 1},
		{ID: "hwdykm-3", Prompt: "What is your partner's dream vacation?", Options: []string{"Beach", "Mountains", "City trip", "Road trip"}, CorrectOption: 0},
		{ID: "hwdykm-4", Prompt: "Which chore does your partner avoid?", Options: []string{"Dishes", "Laundry", "Vacuuming", "Cooking"}, CorrectOption: 2},
		{ID: "hwdykm-5", Prompt: "What is your partner's go-to coffee order?", Options: []string{"Espresso", "Latte", "Cold brew", "Tea instead"}, CorrectOption: 1},
		{ID: "hwdykm-6", Prompt: "Which movie genre does your partner rewatch?", Options: []string{"Comedy", "Horror", "Sci-fi", "Romance"}, CorrectOption: 0},
		{ID: "hwdykm-7", Prompt: "What superpower would your partner choose?", Options: []string{"Flight", "Invisibility", "Time travel", "Mind reading"}, CorrectOption: 2},
		{ID: "hwdykm-8", Prompt: "How does your partner recharge after a long day?", Options: []string{"Gym", "Nap", "Gaming", "Long shower"}, CorrectOption: 3},
	},
	"date-night-trivia": {
		{ID: "dnt-1", Prompt: "Where was your first date?", Options: []string{"Restaurant", "Cinema", "Park", "Coffee shop"}, CorrectOption: 3},
		{ID: "dnt-2", Prompt: "Who texted first?", Options: []string{"Me", "You", "Simultaneous", "A friend set it up"}, CorrectOption: 1},
		{ID: "dnt-3", Prompt: "What was the first trip you took together?", Options: []string{"Weekend city", "Camping", "Beach", "Visiting family"}, CorrectOption: 0},
		{ID: "dnt-4", Prompt: "What dish did you first cook together?", Options: []string{"Pasta", "Stir fry", "Pancakes", "Curry"}, CorrectOption: 2},
		{ID: "dnt-5", Prompt: "Which song counts as 'our song'?", Options: []string{"The slow one", "The road-trip one", "The wedding one", "We disagree"}, CorrectOption: 3},
		{ID: "dnt-6", Prompt: "Who said 'I love you' first?", Options: []string{"Me", "You", "Same moment", "Still pending"}, CorrectOption: 0},
		{ID: "dnt-7", Prompt: "What was your first gift exchange?", Options: []string{"Books", "Jewelry", "Something handmade", "Concert tickets"}, CorrectOption: 2},
	},
}

// Categories lists the available contest categories
func Categories() []string {
	cats := make([]string, 0, len(itemCatalog))
	for name := range itemCatalog {
		cats = append(cats, name)
	}
	return cats
}

// drawItems freezes a contest's ordered item list: a uniform sample of
// contestSize items from the category pool
func drawItems(category string, rnd *rand.Rand) ([]models.ContestItem, error) {
	pool, ok := itemCatalog[category]
	if !ok {
		return nil, ErrUnknownCategory
	}

	idx := rnd.Perm(len(pool))
	n := contestSize
	if n > len(pool) {
		n = len(pool)
	}

	items := make([]models.ContestItem, n)
	for i := 0; i < n; i++ {
		item := pool[idx[i]]
		item.Options = append([]string(nil), item.Options...)
		items[i] = item
	}
	return items, nil
}
