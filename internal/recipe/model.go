package recipe

import (
	"math"
	"time"
)

// Difficulty levels a recipe can declare.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// Ingredient is reference data describing a single pantry-level ingredient.
type Ingredient struct {
	ID                string   `json:"id" db:"id"`
	Name              string   `json:"name" db:"name"`
	Category          string   `json:"category" db:"category"`
	CommonSubstitutes []string `json:"common_substitutes" db:"common_substitutes"`
}

// RecipeIngredient links a recipe to one ingredient with an amount. The
// Ingredient reference may be nil when the referenced row is missing;
// consumers are expected to skip such rows rather than fail.
type RecipeIngredient struct {
	ID           string      `json:"id" db:"id"`
	RecipeID     string      `json:"recipe_id" db:"recipe_id"`
	IngredientID string      `json:"ingredient_id" db:"ingredient_id"`
	Quantity     float64     `json:"quantity" db:"quantity"`
	Unit         string      `json:"unit" db:"unit"`
	IsOptional   bool        `json:"is_optional" db:"is_optional"`
	Ingredient   *Ingredient `json:"ingredient,omitempty"`
}

// Recipe is a catalog entry with its nested ingredient rows.
type Recipe struct {
	ID            string             `json:"id" db:"id"`
	Name          string             `json:"name" db:"name"`
	Description   string             `json:"description" db:"description"`
	Cuisine       string             `json:"cuisine" db:"cuisine"`
	Difficulty    string             `json:"difficulty" db:"difficulty"`
	PrepTime      int                `json:"prep_time" db:"prep_time"`
	CookTime      int                `json:"cook_time" db:"cook_time"`
	TotalTime     int                `json:"total_time" db:"total_time"`
	Servings      int                `json:"servings" db:"servings"`
	ImageURL      string             `json:"image_url" db:"image_url"`
	Instructions  []string           `json:"instructions"`
	Calories      float64            `json:"calories" db:"calories"`
	Protein       float64            `json:"protein" db:"protein"`
	Carbs         float64            `json:"carbs" db:"carbs"`
	Fat           float64            `json:"fat" db:"fat"`
	Fiber         float64            `json:"fiber" db:"fiber"`
	IsVegetarian  bool               `json:"is_vegetarian" db:"is_vegetarian"`
	IsVegan       bool               `json:"is_vegan" db:"is_vegan"`
	IsGlutenFree  bool               `json:"is_gluten_free" db:"is_gluten_free"`
	IsDairyFree   bool               `json:"is_dairy_free" db:"is_dairy_free"`
	AverageRating float64            `json:"average_rating" db:"average_rating"`
	RatingCount   int                `json:"rating_count" db:"rating_count"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	Ingredients   []RecipeIngredient `json:"recipe_ingredients"`
}

// UserRating is one user's rating of one recipe. One row per (user, recipe)
// pair; writing again replaces the previous value.
type UserRating struct {
	ID       string `json:"id" db:"id"`
	RecipeID string `json:"recipe_id" db:"recipe_id"`
	UserID   string `json:"user_id" db:"user_id"`
	Rating   int    `json:"rating" db:"rating"`
	Review   string `json:"review" db:"review"`
}

// UserFavorite marks a recipe as favorited by a user. Presence of the row is
// the whole signal.
type UserFavorite struct {
	ID       string `json:"id" db:"id"`
	RecipeID string `json:"recipe_id" db:"recipe_id"`
	UserID   string `json:"user_id" db:"user_id"`
}

// UserPreference holds a user's standing dietary preferences, applied as
// default filters by the caller.
type UserPreference struct {
	ID                  string   `json:"id" db:"id"`
	UserID              string   `json:"user_id" db:"user_id"`
	IsVegetarian        bool     `json:"is_vegetarian" db:"is_vegetarian"`
	IsVegan             bool     `json:"is_vegan" db:"is_vegan"`
	IsGlutenFree        bool     `json:"is_gluten_free" db:"is_gluten_free"`
	IsDairyFree         bool     `json:"is_dairy_free" db:"is_dairy_free"`
	ExcludedIngredients []string `json:"excluded_ingredients" db:"excluded_ingredients"`
	FavoriteCuisines    []string `json:"favorite_cuisines" db:"favorite_cuisines"`
}

// ServingMultiplier returns the scaling factor for showing a recipe at a
// requested serving count. Returns 1 when either count is non-positive.
func (r *Recipe) ServingMultiplier(servings int) float64 {
	if servings <= 0 || r.Servings <= 0 {
		return 1
	}
	return float64(servings) / float64(r.Servings)
}

// Nutrition is a serving-scaled view of a recipe's nutrition facts. Derived
// on demand, never stored.
type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
}

// ScaledNutrition returns the recipe's nutrition facts scaled to the
// requested serving count. Calories round to a whole number, the gram
// figures to one decimal.
func (r *Recipe) ScaledNutrition(servings int) Nutrition {
	m := r.ServingMultiplier(servings)
	return Nutrition{
		Calories: math.Round(r.Calories * m),
		Protein:  roundTenth(r.Protein * m),
		Carbs:    roundTenth(r.Carbs * m),
		Fat:      roundTenth(r.Fat * m),
		Fiber:    roundTenth(r.Fiber * m),
	}
}

// ScaledQuantity returns the ingredient row's quantity scaled by the serving
// multiplier, rounded to one decimal.
func (ri *RecipeIngredient) ScaledQuantity(multiplier float64) float64 {
	return roundTenth(ri.Quantity * multiplier)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
