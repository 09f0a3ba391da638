package engine

import (
	"context"
	"sort"
	"strings"

	"pantrychef/internal/recipe"
)

// Engine ties the pure discovery core to the record store for the
// operations that need catalog round-trips. It holds no state of its own.
type Engine struct {
	store recipe.Store
}

// New creates an Engine over the given store.
func New(store recipe.Store) *Engine {
	return &Engine{store: store}
}

// FindByIngredients retrieves recipes containing any of the pantry
// ingredients, ranked by descending count of distinct pantry hits. Pantry
// names resolve by exact normalized-name equality here; the fuzzier
// containment match only refines display percentages afterwards. No
// resolvable name means an empty result, never the full catalog.
func (e *Engine) FindByIngredients(ctx context.Context, pantry []string) ([]*recipe.Recipe, error) {
	if len(pantry) == 0 {
		return nil, nil
	}

	normalized := make([]string, 0, len(pantry))
	for _, name := range pantry {
		normalized = append(normalized, strings.TrimSpace(strings.ToLower(name)))
	}

	ingredients, err := e.store.IngredientsByExactNames(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if len(ingredients) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		ids = append(ids, ing.ID)
	}

	rows, err := e.store.RecipeIngredientRows(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	counts := make(map[string]int)
	var order []string
	for _, row := range rows {
		if counts[row.RecipeID] == 0 {
			order = append(order, row.RecipeID)
		}
		counts[row.RecipeID]++
	}

	// Ties keep first-occurrence order from the join rows.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	recipes, err := e.store.RecipesByIDs(ctx, order)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*recipe.Recipe, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
	}

	ranked := make([]*recipe.Recipe, 0, len(order))
	for _, id := range order {
		if r, ok := byID[id]; ok {
			ranked = append(ranked, r)
		}
	}
	return ranked, nil
}

// Recommendations fetches the user's favorites and ratings and returns the
// personalized ranking over the current catalog.
func (e *Engine) Recommendations(ctx context.Context, userID string) ([]*recipe.Recipe, error) {
	all, err := e.store.AllRecipes(ctx)
	if err != nil {
		return nil, err
	}
	favoriteIDs, err := e.store.FavoriteRecipeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	ratings, err := e.store.Ratings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Recommend(all, favoriteIDs, ratings), nil
}
