package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pantrychef/internal/engine"
	"pantrychef/internal/logging"
	"pantrychef/internal/recipe"
)

// Handler handles HTTP requests.
type Handler struct {
	Store  recipe.Store
	Engine *engine.Engine
}

// NewHandler creates a new Handler.
func NewHandler(store recipe.Store, eng *engine.Engine) *Handler {
	return &Handler{Store: store, Engine: eng}
}

// RecipeMatch is a recipe annotated with pantry match information.
type RecipeMatch struct {
	*recipe.Recipe
	MatchPercentage    int                 `json:"match_percentage"`
	MissingIngredients []recipe.Ingredient `json:"missing_ingredients"`
}

func annotateMatches(recipes []*recipe.Recipe, pantry []string) []RecipeMatch {
	annotated := make([]RecipeMatch, 0, len(recipes))
	for _, r := range recipes {
		annotated = append(annotated, RecipeMatch{
			Recipe:             r,
			MatchPercentage:    engine.MatchPercentage(r, pantry),
			MissingIngredients: engine.MissingIngredients(r, pantry),
		})
	}
	return annotated
}

// splitCSV splits a comma-separated query value, dropping empty entries.
func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func criteriaFromQuery(c *gin.Context) engine.Criteria {
	minTime, _ := strconv.Atoi(c.Query("min_time"))
	maxTime, _ := strconv.Atoi(c.Query("max_time"))
	return engine.Criteria{
		Difficulty:   splitCSV(c.Query("difficulty")),
		MinTime:      minTime,
		MaxTime:      maxTime,
		IsVegetarian: c.Query("vegetarian") == "true",
		IsVegan:      c.Query("vegan") == "true",
		IsGlutenFree: c.Query("gluten_free") == "true",
		IsDairyFree:  c.Query("dairy_free") == "true",
		Cuisines:     splitCSV(c.Query("cuisines")),
		SearchQuery:  c.Query("q"),
	}
}

// GetRecipes returns the catalog filtered by the query parameters. With a
// pantry parameter each hit carries its match percentage and missing
// ingredients.
func (h *Handler) GetRecipes(c *gin.Context) {
	recipes, err := h.Store.AllRecipes(c.Request.Context())
	if err != nil {
		logging.Error("failed to load recipes", zap.Error(err))
		c.String(http.StatusInternalServerError, "database error: %s", err.Error())
		return
	}

	filtered := engine.Filter(recipes, criteriaFromQuery(c))

	if pantry := splitCSV(c.Query("pantry")); len(pantry) > 0 {
		c.JSON(http.StatusOK, annotateMatches(filtered, pantry))
		return
	}
	c.JSON(http.StatusOK, filtered)
}

// recipeDetail is the single-recipe response, with optional pantry match
// info and serving-scaled figures.
type recipeDetail struct {
	*recipe.Recipe
	MatchPercentage    *int                `json:"match_percentage,omitempty"`
	MissingIngredients []recipe.Ingredient `json:"missing_ingredients,omitempty"`
	Scaled             *scaledView         `json:"scaled,omitempty"`
}

type scaledView struct {
	Servings    int                `json:"servings"`
	Nutrition   recipe.Nutrition   `json:"nutrition"`
	Ingredients []scaledIngredient `json:"ingredients"`
}

type scaledIngredient struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	IsOptional bool    `json:"is_optional"`
}

// GetRecipe returns one recipe by id. The pantry parameter adds match info;
// the servings parameter adds quantities and nutrition scaled to that count.
// Scaled values are computed on the fly and never stored.
func (h *Handler) GetRecipe(c *gin.Context) {
	r, err := h.Store.RecipeByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		logging.Error("failed to load recipe", zap.Error(err))
		c.String(http.StatusInternalServerError, "database error: %s", err.Error())
		return
	}
	if r == nil {
		c.String(http.StatusNotFound, "recipe not found")
		return
	}

	detail := recipeDetail{Recipe: r}

	if pantry := splitCSV(c.Query("pantry")); len(pantry) > 0 {
		pct := engine.MatchPercentage(r, pantry)
		detail.MatchPercentage = &pct
		detail.MissingIngredients = engine.MissingIngredients(r, pantry)
	}

	if servings, err := strconv.Atoi(c.Query("servings")); err == nil && servings > 0 {
		m := r.ServingMultiplier(servings)
		view := scaledView{
			Servings:    servings,
			Nutrition:   r.ScaledNutrition(servings),
			Ingredients: make([]scaledIngredient, 0, len(r.Ingredients)),
		}
		for i := range r.Ingredients {
			ri := &r.Ingredients[i]
			if ri.Ingredient == nil {
				continue
			}
			view.Ingredients = append(view.Ingredients, scaledIngredient{
				Name:       ri.Ingredient.Name,
				Quantity:   ri.ScaledQuantity(m),
				Unit:       ri.Unit,
				IsOptional: ri.IsOptional,
			})
		}
		detail.Scaled = &view
	}

	c.JSON(http.StatusOK, detail)
}

// FindByIngredients ranks recipes by how many of the posted pantry
// ingredients they contain, each annotated with match info.
func (h *Handler) FindByIngredients(c *gin.Context) {
	var req struct {
		Ingredients []string `json:"ingredients"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request body: %s", err.Error())
		return
	}

	recipes, err := h.Engine.FindByIngredients(c.Request.Context(), req.Ingredients)
	if err != nil {
		logging.Error("ingredient search failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "database error: %s", err.Error())
		return
	}

	c.JSON(http.StatusOK, annotateMatches(recipes, req.Ingredients))
}

// GetRecommendations returns up to six recipes ranked for the user.
func (h *Handler) GetRecommendations(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.String(http.StatusBadRequest, "user_id is required")
		return
	}

	recipes, err := h.Engine.Recommendations(c.Request.Context(), userID)
	if err != nil {
		logging.Error("recommendations failed", zap.Error(err), zap.String("user_id", userID))
		c.String(http.StatusInternalServerError, "database error: %s", err.Error())
		return
	}
	c.JSON(http.StatusOK, recipes)
}

// GetIngredients returns the full ingredient list for pantry pickers.
func (h *Handler) GetIngredients(c *gin.Context) {
	ingredients, err := h.Store.AllIngredients(c.Request.Context())
	if err != nil {
		logging.Error("failed to load ingredients", zap.Error(err))
		c.String(http.StatusInternalServerError, "database error: %s", err.Error())
		return
	}
	c.JSON(http.StatusOK, ingredients)
}

// GetFavorites returns the ids of the user's favorited recipes.
func (h *Handler) GetFavorites(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.String(http.StatusBadRequest, "user_id is required")
		return
	}

	ids, err := h.Store.FavoriteRecipeIDs(c.Request.Context(), userID)
	if err != nil {
		logging.Error("failed to load favorites", zap.Error(err), zap.String("user_id", userID))
		c.String(http.StatusInternalServerError, "database error: %s", err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"recipe_ids": ids})
}

// ToggleFavorite flips the favorite state for (user, recipe) and returns the
// resulting state. Toggling twice restores the original membership.
func (h *Handler) ToggleFavorite(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.String(http.StatusBadRequest, "user_id is required")
		return
	}

	favorited, err := h.Store.ToggleFavorite(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		logging.Error("failed to toggle favorite", zap.Error(err), zap.String("user_id", userID))
		c.String(http.StatusInternalServerError, "database error: %s", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorited": favorited})
}

// RateRecipe upserts the user's rating for a recipe. A second rating for the
// same pair replaces the first.
func (h *Handler) RateRecipe(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.String(http.StatusBadRequest, "user_id is required")
		return
	}

	var req struct {
		Rating int    `json:"rating"`
		Review string `json:"review"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request body: %s", err.Error())
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		c.String(http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	err := h.Store.UpsertRating(c.Request.Context(), c.Param("id"), userID, req.Rating, req.Review)
	if err != nil {
		logging.Error("failed to save rating", zap.Error(err), zap.String("user_id", userID))
		c.String(http.StatusInternalServerError, "database error: %s", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPreferences returns the user's stored dietary preferences, or an empty
// object when none are saved.
func (h *Handler) GetPreferences(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.String(http.StatusBadRequest, "user_id is required")
		return
	}

	pref, err := h.Store.Preferences(c.Request.Context(), userID)
	if err != nil {
		logging.Error("failed to load preferences", zap.Error(err), zap.String("user_id", userID))
		c.String(http.StatusInternalServerError, "database error: %s", err.Error())
		return
	}
	if pref == nil {
		pref = &recipe.UserPreference{UserID: userID}
	}
	c.JSON(http.StatusOK, pref)
}

// SavePreferences stores the user's dietary preferences, replacing any
// previous ones.
func (h *Handler) SavePreferences(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.String(http.StatusBadRequest, "user_id is required")
		return
	}

	var pref recipe.UserPreference
	if err := c.ShouldBindJSON(&pref); err != nil {
		c.String(http.StatusBadRequest, "invalid request body: %s", err.Error())
		return
	}
	pref.UserID = userID

	if err := h.Store.SavePreferences(c.Request.Context(), &pref); err != nil {
		logging.Error("failed to save preferences", zap.Error(err), zap.String("user_id", userID))
		c.String(http.StatusInternalServerError, "database error: %s", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
