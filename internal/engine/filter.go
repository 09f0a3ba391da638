package engine

import (
	"strings"

	"pantrychef/internal/recipe"
)

// Criteria is a compound recipe filter. Every field is optional; set fields
// combine with AND, while the values inside a set field combine with OR.
// The dietary flags only ever narrow: a false flag is no constraint.
type Criteria struct {
	Difficulty   []string `json:"difficulty,omitempty"`
	MinTime      int      `json:"min_time,omitempty"`
	MaxTime      int      `json:"max_time,omitempty"`
	IsVegetarian bool     `json:"is_vegetarian,omitempty"`
	IsVegan      bool     `json:"is_vegan,omitempty"`
	IsGlutenFree bool     `json:"is_gluten_free,omitempty"`
	IsDairyFree  bool     `json:"is_dairy_free,omitempty"`
	Cuisines     []string `json:"cuisines,omitempty"`
	SearchQuery  string   `json:"search_query,omitempty"`
}

// Filter returns the recipes satisfying the criteria, preserving input
// order. No criteria set returns the input as is.
func Filter(recipes []*recipe.Recipe, c Criteria) []*recipe.Recipe {
	filtered := make([]*recipe.Recipe, 0, len(recipes))
	for _, r := range recipes {
		if c.matches(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func (c Criteria) matches(r *recipe.Recipe) bool {
	if len(c.Difficulty) > 0 && !containsString(c.Difficulty, r.Difficulty) {
		return false
	}

	if c.MaxTime > 0 && r.TotalTime > c.MaxTime {
		return false
	}
	if c.MinTime > 0 && r.TotalTime < c.MinTime {
		return false
	}

	if c.IsVegetarian && !r.IsVegetarian {
		return false
	}
	if c.IsVegan && !r.IsVegan {
		return false
	}
	if c.IsGlutenFree && !r.IsGlutenFree {
		return false
	}
	if c.IsDairyFree && !r.IsDairyFree {
		return false
	}

	if len(c.Cuisines) > 0 && !containsString(c.Cuisines, r.Cuisine) {
		return false
	}

	if c.SearchQuery != "" {
		query := strings.ToLower(c.SearchQuery)
		nameMatch := strings.Contains(strings.ToLower(r.Name), query)
		descMatch := strings.Contains(strings.ToLower(r.Description), query)
		cuisineMatch := strings.Contains(strings.ToLower(r.Cuisine), query)
		if !nameMatch && !descMatch && !cuisineMatch {
			return false
		}
	}

	return true
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
