package engine

import (
	"sort"

	"pantrychef/internal/recipe"
)

// maxRecommendations caps every recommendation list.
const maxRecommendations = 6

// Recommend derives a personalized ranking from the user's favorites and
// ratings. With no signal at all it falls back to a popularity ranking of
// average rating weighted by rater count, so one lone 5-star rating does
// not outrank a well-established 4.5. All ties keep input order.
func Recommend(all []*recipe.Recipe, favoriteIDs []string, ratings map[string]int) []*recipe.Recipe {
	if len(favoriteIDs) == 0 && len(ratings) == 0 {
		return topByPopularity(all)
	}

	favorites := make(map[string]bool, len(favoriteIDs))
	for _, id := range favoriteIDs {
		favorites[id] = true
	}

	// A recipe that is both favorited and highly rated appears twice in the
	// preference list, doubling its weight in the tallies. Intentional bias
	// toward the strongest signals.
	var preferred []*recipe.Recipe
	for _, r := range all {
		if favorites[r.ID] {
			preferred = append(preferred, r)
		}
	}
	for _, r := range all {
		if ratings[r.ID] >= 4 {
			preferred = append(preferred, r)
		}
	}

	cuisineScores := make(map[string]int)
	difficultyScores := make(map[string]int)
	for _, r := range preferred {
		cuisineScores[r.Cuisine]++
		difficultyScores[r.Difficulty]++
	}

	// Favorited recipes are excluded, but already-rated ones stay eligible:
	// a 5-star recipe the user never favorited can resurface.
	type scored struct {
		r     *recipe.Recipe
		score float64
	}
	var candidates []scored
	for _, r := range all {
		if favorites[r.ID] {
			continue
		}
		score := r.AverageRating * 10
		score += float64(cuisineScores[r.Cuisine]) * 20
		score += float64(difficultyScores[r.Difficulty]) * 10
		candidates = append(candidates, scored{r: r, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	n := len(candidates)
	if n > maxRecommendations {
		n = maxRecommendations
	}
	out := make([]*recipe.Recipe, 0, n)
	for _, c := range candidates[:n] {
		out = append(out, c.r)
	}
	return out
}

func topByPopularity(all []*recipe.Recipe) []*recipe.Recipe {
	ranked := make([]*recipe.Recipe, len(all))
	copy(ranked, all)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AverageRating*float64(ranked[i].RatingCount) >
			ranked[j].AverageRating*float64(ranked[j].RatingCount)
	})
	if len(ranked) > maxRecommendations {
		ranked = ranked[:maxRecommendations]
	}
	return ranked
}
