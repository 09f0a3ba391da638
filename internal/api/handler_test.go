package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"pantrychef/internal/engine"
	"pantrychef/internal/recipe"
)

// mockStore is an in-memory Store for handler tests.
type mockStore struct {
	recipes     []*recipe.Recipe
	ingredients []recipe.Ingredient
	rows        []recipe.IngredientRow
	favorites   map[string][]string
	ratings     map[string]map[string]*recipe.UserRating
	preferences map[string]*recipe.UserPreference
	returnError error
}

func newMockStore() *mockStore {
	return &mockStore{
		favorites:   make(map[string][]string),
		ratings:     make(map[string]map[string]*recipe.UserRating),
		preferences: make(map[string]*recipe.UserPreference),
	}
}

func (m *mockStore) AllRecipes(ctx context.Context) ([]*recipe.Recipe, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	return m.recipes, nil
}

func (m *mockStore) RecipeByID(ctx context.Context, id string) (*recipe.Recipe, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	for _, r := range m.recipes {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockStore) RecipesByIDs(ctx context.Context, ids []string) ([]*recipe.Recipe, error) {
	var out []*recipe.Recipe
	for _, r := range m.recipes {
		for _, id := range ids {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (m *mockStore) AllIngredients(ctx context.Context) ([]recipe.Ingredient, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	return m.ingredients, nil
}

func (m *mockStore) IngredientsByExactNames(ctx context.Context, names []string) ([]recipe.Ingredient, error) {
	var out []recipe.Ingredient
	for _, ing := range m.ingredients {
		for _, name := range names {
			if ing.Name == name {
				out = append(out, ing)
			}
		}
	}
	return out, nil
}

func (m *mockStore) RecipeIngredientRows(ctx context.Context, ingredientIDs []string) ([]recipe.IngredientRow, error) {
	var out []recipe.IngredientRow
	for _, row := range m.rows {
		for _, id := range ingredientIDs {
			if row.IngredientID == id {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (m *mockStore) FavoriteRecipeIDs(ctx context.Context, userID string) ([]string, error) {
	return m.favorites[userID], nil
}

func (m *mockStore) ToggleFavorite(ctx context.Context, recipeID, userID string) (bool, error) {
	for i, id := range m.favorites[userID] {
		if id == recipeID {
			m.favorites[userID] = append(m.favorites[userID][:i], m.favorites[userID][i+1:]...)
			return false, nil
		}
	}
	m.favorites[userID] = append(m.favorites[userID], recipeID)
	return true, nil
}

func (m *mockStore) Ratings(ctx context.Context, userID string) (map[string]int, error) {
	out := make(map[string]int)
	for recipeID, r := range m.ratings[userID] {
		out[recipeID] = r.Rating
	}
	return out, nil
}

func (m *mockStore) UpsertRating(ctx context.Context, recipeID, userID string, rating int, review string) error {
	if m.ratings[userID] == nil {
		m.ratings[userID] = make(map[string]*recipe.UserRating)
	}
	m.ratings[userID][recipeID] = &recipe.UserRating{
		RecipeID: recipeID,
		UserID:   userID,
		Rating:   rating,
		Review:   review,
	}
	return nil
}

func (m *mockStore) Preferences(ctx context.Context, userID string) (*recipe.UserPreference, error) {
	return m.preferences[userID], nil
}

func (m *mockStore) SavePreferences(ctx context.Context, pref *recipe.UserPreference) error {
	m.preferences[pref.UserID] = pref
	return nil
}

func newTestRouter(store *mockStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(store, engine.New(store))

	r := gin.New()
	r.GET("/recipes", handler.GetRecipes)
	r.GET("/recipes/:id", handler.GetRecipe)
	r.POST("/recipes/by-ingredients", handler.FindByIngredients)
	r.POST("/recipes/:id/favorite", handler.ToggleFavorite)
	r.POST("/recipes/:id/rating", handler.RateRecipe)
	r.GET("/recommendations", handler.GetRecommendations)
	r.GET("/ingredients", handler.GetIngredients)
	r.GET("/favorites", handler.GetFavorites)
	r.GET("/preferences", handler.GetPreferences)
	r.PUT("/preferences", handler.SavePreferences)
	return r
}

func seedCatalog(store *mockStore) {
	chicken := &recipe.Ingredient{ID: "ing-chicken", Name: "chicken"}
	tomato := &recipe.Ingredient{ID: "ing-tomato", Name: "tomato"}

	store.ingredients = []recipe.Ingredient{*chicken, *tomato}
	store.recipes = []*recipe.Recipe{
		{
			ID: "r1", Name: "Chicken Parmesan", Description: "Breaded chicken with tomato sauce",
			Cuisine: "Italian", Difficulty: recipe.DifficultyMedium, TotalTime: 60, Servings: 4,
			AverageRating: 4.5, RatingCount: 12,
			Ingredients: []recipe.RecipeIngredient{
				{ID: "ri1", RecipeID: "r1", IngredientID: chicken.ID, Quantity: 2, Unit: "pieces", Ingredient: chicken},
				{ID: "ri2", RecipeID: "r1", IngredientID: tomato.ID, Quantity: 3, Unit: "whole", Ingredient: tomato},
			},
		},
		{
			ID: "r2", Name: "Tomato Soup", Description: "Simple soup",
			Cuisine: "American", Difficulty: recipe.DifficultyEasy, TotalTime: 25, Servings: 2,
			IsVegetarian: true, IsVegan: true,
			AverageRating: 4.0, RatingCount: 3,
			Ingredients: []recipe.RecipeIngredient{
				{ID: "ri3", RecipeID: "r2", IngredientID: tomato.ID, Quantity: 6, Unit: "whole", Ingredient: tomato},
			},
		},
	}
	store.rows = []recipe.IngredientRow{
		{RecipeID: "r1", IngredientID: chicken.ID},
		{RecipeID: "r1", IngredientID: tomato.ID},
		{RecipeID: "r2", IngredientID: tomato.ID},
	}
}

func TestGetRecipes(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/recipes", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var recipes []recipe.Recipe
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recipes))
	assert.Len(t, recipes, 2)
}

func TestGetRecipes_Filtered(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/recipes?vegetarian=true&max_time=30", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var recipes []recipe.Recipe
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recipes))
	assert.Len(t, recipes, 1)
	assert.Equal(t, "Tomato Soup", recipes[0].Name)
}

func TestGetRecipes_SearchQuery(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/recipes?q=parmesan", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var recipes []recipe.Recipe
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recipes))
	assert.Len(t, recipes, 1)
	assert.Equal(t, "r1", recipes[0].ID)
}

func TestGetRecipes_WithPantryAnnotations(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/recipes?pantry=tomato", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var annotated []RecipeMatch
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &annotated))
	assert.Len(t, annotated, 2)
	assert.Equal(t, 50, annotated[0].MatchPercentage)
	assert.Equal(t, 100, annotated[1].MatchPercentage)
	assert.Len(t, annotated[0].MissingIngredients, 1)
	assert.Equal(t, "chicken", annotated[0].MissingIngredients[0].Name)
}

func TestGetRecipes_StoreError(t *testing.T) {
	store := newMockStore()
	store.returnError = errors.New("connection refused")
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/recipes", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGetRecipe(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/recipes/r1", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var detail map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, "Chicken Parmesan", detail["name"])
	assert.Nil(t, detail["scaled"])
}

func TestGetRecipe_NotFound(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/recipes/none", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetRecipe_ScaledServings(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	// r1 serves 4; doubling scales every quantity by 2.
	req := httptest.NewRequest(http.MethodGet, "/recipes/r1?servings=8", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var detail struct {
		Scaled struct {
			Servings    int `json:"servings"`
			Ingredients []struct {
				Name     string  `json:"name"`
				Quantity float64 `json:"quantity"`
			} `json:"ingredients"`
		} `json:"scaled"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, 8, detail.Scaled.Servings)
	assert.Len(t, detail.Scaled.Ingredients, 2)
	assert.Equal(t, 4.0, detail.Scaled.Ingredients[0].Quantity)
	assert.Equal(t, 6.0, detail.Scaled.Ingredients[1].Quantity)
}

func TestGetRecipe_PantryMatchInfo(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/recipes/r1?pantry=chicken,tomato", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var detail struct {
		MatchPercentage *int `json:"match_percentage"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.NotNil(t, detail.MatchPercentage)
	assert.Equal(t, 100, *detail.MatchPercentage)
}

func TestFindByIngredients(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	body, _ := json.Marshal(map[string][]string{"ingredients": {"tomato"}})
	req := httptest.NewRequest(http.MethodPost, "/recipes/by-ingredients", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var annotated []RecipeMatch
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &annotated))
	assert.Len(t, annotated, 2)
}

func TestFindByIngredients_UnknownIngredient(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	body, _ := json.Marshal(map[string][]string{"ingredients": {"unicorn meat"}})
	req := httptest.NewRequest(http.MethodPost, "/recipes/by-ingredients", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var annotated []RecipeMatch
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &annotated))
	assert.Empty(t, annotated)
}

func TestToggleFavorite_Twice(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	toggle := func() bool {
		req := httptest.NewRequest(http.MethodPost, "/recipes/r1/favorite?user_id=u1", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		var resp map[string]bool
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return resp["favorited"]
	}

	assert.True(t, toggle())
	assert.False(t, toggle())
	assert.Empty(t, store.favorites["u1"])
}

func TestToggleFavorite_RequiresUserID(t *testing.T) {
	store := newMockStore()
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/recipes/r1/favorite", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateRecipe_UpsertReplaces(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	rate := func(rating int, review string) int {
		body, _ := json.Marshal(map[string]interface{}{"rating": rating, "review": review})
		req := httptest.NewRequest(http.MethodPost, "/recipes/r1/rating?user_id=u1", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, rate(3, "fine"))
	assert.Equal(t, http.StatusNoContent, rate(5, "changed my mind"))

	assert.Len(t, store.ratings["u1"], 1)
	assert.Equal(t, 5, store.ratings["u1"]["r1"].Rating)
	assert.Equal(t, "changed my mind", store.ratings["u1"]["r1"].Review)
}

func TestRateRecipe_RejectsOutOfRange(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	for _, rating := range []int{0, 6, -1} {
		body, _ := json.Marshal(map[string]int{"rating": rating})
		req := httptest.NewRequest(http.MethodPost, "/recipes/r1/rating?user_id=u1", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	}
}

func TestGetRecommendations_ColdStart(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/recommendations?user_id=new-user", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var recipes []recipe.Recipe
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recipes))
	// 4.5*12 beats 4.0*3.
	assert.Equal(t, "r1", recipes[0].ID)
}

func TestGetRecommendations_ExcludesFavorites(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	store.favorites["u1"] = []string{"r1"}
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/recommendations?user_id=u1", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var recipes []recipe.Recipe
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recipes))
	for _, rec := range recipes {
		assert.NotEqual(t, "r1", rec.ID)
	}
}

func TestGetIngredients(t *testing.T) {
	store := newMockStore()
	seedCatalog(store)
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/ingredients", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var ingredients []recipe.Ingredient
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ingredients))
	assert.Len(t, ingredients, 2)
}

func TestGetFavorites_EmptyIsNotAnError(t *testing.T) {
	store := newMockStore()
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/favorites?user_id=nobody", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string][]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp["recipe_ids"])
}

func TestPreferences_RoundTrip(t *testing.T) {
	store := newMockStore()
	r := newTestRouter(store)

	pref := recipe.UserPreference{
		IsVegetarian:        true,
		ExcludedIngredients: []string{"peanuts"},
		FavoriteCuisines:    []string{"Italian", "Thai"},
	}
	body, _ := json.Marshal(pref)
	req := httptest.NewRequest(http.MethodPut, "/preferences?user_id=u1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/preferences?user_id=u1", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var got recipe.UserPreference
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.IsVegetarian)
	assert.Equal(t, []string{"peanuts"}, got.ExcludedIngredients)
}

func TestPreferences_DefaultWhenUnset(t *testing.T) {
	store := newMockStore()
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/preferences?user_id=u2", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var got recipe.UserPreference
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "u2", got.UserID)
	assert.False(t, got.IsVegetarian)
}
