// Package engine implements the recipe discovery core: ingredient matching,
// compound filtering, ingredient-based retrieval and personalized
// recommendations. Every function here is a pure computation over its
// inputs; the catalog snapshot is supplied by the caller.
package engine

import (
	"math"
	"strings"

	"pantrychef/internal/recipe"
)

// Matches reports whether a pantry item covers a recipe ingredient name.
// Names match when, after lowercasing, either is a substring of the other.
// The bidirectional containment lets "tomato" cover "tomatoes" and vice
// versa, at the cost of false positives like "pea" covering "peanut" — a
// known trade of precision for recall, kept as observed behavior.
func Matches(pantryItem, ingredientName string) bool {
	p := strings.ToLower(pantryItem)
	n := strings.ToLower(ingredientName)
	return strings.Contains(n, p) || strings.Contains(p, n)
}

// MatchPercentage returns the share of the recipe's ingredients covered by
// the pantry, rounded to a whole percent. Rows whose ingredient reference
// is missing are skipped. Optional ingredients weigh the same as required
// ones.
func MatchPercentage(r *recipe.Recipe, pantry []string) int {
	if len(r.Ingredients) == 0 {
		return 0
	}

	var total, matched int
	for _, ri := range r.Ingredients {
		if ri.Ingredient == nil {
			continue
		}
		total++
		for _, item := range pantry {
			if Matches(item, ri.Ingredient.Name) {
				matched++
				break
			}
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(matched) / float64(total) * 100))
}

// MissingIngredients returns the ingredients the pantry does not cover, in
// the recipe's own ingredient order. Rows whose ingredient reference is
// missing are skipped.
func MissingIngredients(r *recipe.Recipe, pantry []string) []recipe.Ingredient {
	var missing []recipe.Ingredient
	for _, ri := range r.Ingredients {
		if ri.Ingredient == nil {
			continue
		}
		covered := false
		for _, item := range pantry {
			if Matches(item, ri.Ingredient.Name) {
				covered = true
				break
			}
		}
		if !covered {
			missing = append(missing, *ri.Ingredient)
		}
	}
	return missing
}
