package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store defines the interface for catalog and user-signal data operations.
type Store interface {
	AllRecipes(ctx context.Context) ([]*Recipe, error)
	RecipeByID(ctx context.Context, id string) (*Recipe, error)
	RecipesByIDs(ctx context.Context, ids []string) ([]*Recipe, error)
	AllIngredients(ctx context.Context) ([]Ingredient, error)
	IngredientsByExactNames(ctx context.Context, names []string) ([]Ingredient, error)
	RecipeIngredientRows(ctx context.Context, ingredientIDs []string) ([]IngredientRow, error)
	FavoriteRecipeIDs(ctx context.Context, userID string) ([]string, error)
	ToggleFavorite(ctx context.Context, recipeID, userID string) (bool, error)
	Ratings(ctx context.Context, userID string) (map[string]int, error)
	UpsertRating(ctx context.Context, recipeID, userID string, rating int, review string) error
	Preferences(ctx context.Context, userID string) (*UserPreference, error)
	SavePreferences(ctx context.Context, pref *UserPreference) error
}

// IngredientRow is a bare recipe_ingredients join row, used by
// ingredient-based retrieval to tally hits per recipe.
type IngredientRow struct {
	RecipeID     string `db:"recipe_id"`
	IngredientID string `db:"ingredient_id"`
}

// PostgresStore implements the Store interface for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS ingredients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL DEFAULT '',
		common_substitutes TEXT[] NOT NULL DEFAULT '{}'
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create ingredients table: %w", err)
	}

	schema = `
	CREATE TABLE IF NOT EXISTS recipes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		cuisine TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT 'Easy',
		prep_time INTEGER NOT NULL DEFAULT 0,
		cook_time INTEGER NOT NULL DEFAULT 0,
		total_time INTEGER NOT NULL DEFAULT 0,
		servings INTEGER NOT NULL DEFAULT 1,
		image_url TEXT NOT NULL DEFAULT '',
		instructions JSONB NOT NULL DEFAULT '[]',
		calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		protein DOUBLE PRECISION NOT NULL DEFAULT 0,
		carbs DOUBLE PRECISION NOT NULL DEFAULT 0,
		fat DOUBLE PRECISION NOT NULL DEFAULT 0,
		fiber DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_vegetarian BOOLEAN NOT NULL DEFAULT FALSE,
		is_vegan BOOLEAN NOT NULL DEFAULT FALSE,
		is_gluten_free BOOLEAN NOT NULL DEFAULT FALSE,
		is_dairy_free BOOLEAN NOT NULL DEFAULT FALSE,
		average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		rating_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create recipes table: %w", err)
	}

	schema = `
	CREATE TABLE IF NOT EXISTS recipe_ingredients (
		id TEXT PRIMARY KEY,
		recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		ingredient_id TEXT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
		unit TEXT NOT NULL DEFAULT '',
		is_optional BOOLEAN NOT NULL DEFAULT FALSE
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create recipe_ingredients table: %w", err)
	}

	schema = `
	CREATE TABLE IF NOT EXISTS user_favorites (
		id TEXT PRIMARY KEY,
		recipe_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		UNIQUE (recipe_id, user_id)
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create user_favorites table: %w", err)
	}

	schema = `
	CREATE TABLE IF NOT EXISTS user_ratings (
		id TEXT PRIMARY KEY,
		recipe_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		review TEXT NOT NULL DEFAULT '',
		UNIQUE (recipe_id, user_id)
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create user_ratings table: %w", err)
	}

	schema = `
	CREATE TABLE IF NOT EXISTS user_preferences (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		is_vegetarian BOOLEAN NOT NULL DEFAULT FALSE,
		is_vegan BOOLEAN NOT NULL DEFAULT FALSE,
		is_gluten_free BOOLEAN NOT NULL DEFAULT FALSE,
		is_dairy_free BOOLEAN NOT NULL DEFAULT FALSE,
		excluded_ingredients TEXT[] NOT NULL DEFAULT '{}',
		favorite_cuisines TEXT[] NOT NULL DEFAULT '{}'
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create user_preferences table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

const recipeColumns = `id, name, description, cuisine, difficulty, prep_time, cook_time,
	total_time, servings, image_url, instructions, calories, protein, carbs, fat, fiber,
	is_vegetarian, is_vegan, is_gluten_free, is_dairy_free, average_rating, rating_count, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecipe(row rowScanner) (*Recipe, error) {
	var r Recipe
	var instructionsJSON []byte
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Description,
		&r.Cuisine,
		&r.Difficulty,
		&r.PrepTime,
		&r.CookTime,
		&r.TotalTime,
		&r.Servings,
		&r.ImageURL,
		&instructionsJSON,
		&r.Calories,
		&r.Protein,
		&r.Carbs,
		&r.Fat,
		&r.Fiber,
		&r.IsVegetarian,
		&r.IsVegan,
		&r.IsGlutenFree,
		&r.IsDairyFree,
		&r.AverageRating,
		&r.RatingCount,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(instructionsJSON, &r.Instructions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instructions: %w", err)
	}
	return &r, nil
}

// AllRecipes retrieves every recipe with its nested ingredient rows, ordered
// by name.
func (s *PostgresStore) AllRecipes(ctx context.Context) ([]*Recipe, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+recipeColumns+" FROM recipes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to get recipes: %w", err)
	}
	defer rows.Close()

	var recipes []*Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe row: %w", err)
		}
		recipes = append(recipes, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := s.attachIngredients(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// RecipeByID retrieves one recipe with its nested ingredient rows, or nil
// when no such recipe exists.
func (s *PostgresStore) RecipeByID(ctx context.Context, id string) (*Recipe, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recipeColumns+" FROM recipes WHERE id = $1", id)
	r, err := scanRecipe(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Recipe not found
		}
		return nil, fmt.Errorf("failed to get recipe by id: %w", err)
	}
	if err := s.attachIngredients(ctx, []*Recipe{r}); err != nil {
		return nil, err
	}
	return r, nil
}

// RecipesByIDs retrieves the recipes with the given ids, nested ingredient
// rows included. The result order is the database's; callers that care
// about ranking reorder by id themselves.
func (s *PostgresStore) RecipesByIDs(ctx context.Context, ids []string) ([]*Recipe, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+recipeColumns+" FROM recipes WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get recipes by ids: %w", err)
	}
	defer rows.Close()

	var recipes []*Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe row: %w", err)
		}
		recipes = append(recipes, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := s.attachIngredients(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// attachIngredients loads recipe_ingredients rows joined with their
// ingredient reference for the given recipes. Rows whose ingredient is gone
// keep a nil Ingredient.
func (s *PostgresStore) attachIngredients(ctx context.Context, recipes []*Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]string, 0, len(recipes))
	byID := make(map[string]*Recipe, len(recipes))
	for _, r := range recipes {
		ids = append(ids, r.ID)
		byID[r.ID] = r
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ri.id, ri.recipe_id, ri.ingredient_id, ri.quantity, ri.unit, ri.is_optional,
			i.id, i.name, i.category, i.common_substitutes
		FROM recipe_ingredients ri
		LEFT JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE ri.recipe_id = ANY($1)
		ORDER BY ri.id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to get recipe ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ri RecipeIngredient
		var ingID, ingName, ingCategory sql.NullString
		var substitutes pq.StringArray
		err := rows.Scan(
			&ri.ID,
			&ri.RecipeID,
			&ri.IngredientID,
			&ri.Quantity,
			&ri.Unit,
			&ri.IsOptional,
			&ingID,
			&ingName,
			&ingCategory,
			&substitutes,
		)
		if err != nil {
			return fmt.Errorf("failed to scan recipe ingredient row: %w", err)
		}
		if ingID.Valid {
			ri.Ingredient = &Ingredient{
				ID:                ingID.String,
				Name:              ingName.String,
				Category:          ingCategory.String,
				CommonSubstitutes: substitutes,
			}
		}
		if r, ok := byID[ri.RecipeID]; ok {
			r.Ingredients = append(r.Ingredients, ri)
		}
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

// AllIngredients retrieves every ingredient, ordered by name.
func (s *PostgresStore) AllIngredients(ctx context.Context) ([]Ingredient, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category, common_substitutes FROM ingredients ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredients: %w", err)
	}
	defer rows.Close()

	var ingredients []Ingredient
	for rows.Next() {
		var ing Ingredient
		var substitutes pq.StringArray
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Category, &substitutes); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient row: %w", err)
		}
		ing.CommonSubstitutes = substitutes
		ingredients = append(ingredients, ing)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ingredients, nil
}

// IngredientsByExactNames retrieves the ingredients whose name exactly
// matches one of the given names. Names with no match are simply absent
// from the result.
func (s *PostgresStore) IngredientsByExactNames(ctx context.Context, names []string) ([]Ingredient, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category, common_substitutes FROM ingredients WHERE name = ANY($1)",
		pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredients by names: %w", err)
	}
	defer rows.Close()

	var ingredients []Ingredient
	for rows.Next() {
		var ing Ingredient
		var substitutes pq.StringArray
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Category, &substitutes); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient row: %w", err)
		}
		ing.CommonSubstitutes = substitutes
		ingredients = append(ingredients, ing)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ingredients, nil
}

// RecipeIngredientRows retrieves the bare join rows referencing any of the
// given ingredient ids, in insertion order.
func (s *PostgresStore) RecipeIngredientRows(ctx context.Context, ingredientIDs []string) ([]IngredientRow, error) {
	if len(ingredientIDs) == 0 {
		return nil, nil
	}
	var joinRows []IngredientRow
	err := s.db.SelectContext(ctx, &joinRows,
		"SELECT recipe_id, ingredient_id FROM recipe_ingredients WHERE ingredient_id = ANY($1) ORDER BY id",
		pq.Array(ingredientIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe ingredient rows: %w", err)
	}
	return joinRows, nil
}

// FavoriteRecipeIDs retrieves the ids of every recipe the user has favorited.
func (s *PostgresStore) FavoriteRecipeIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT recipe_id FROM user_favorites WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get favorites: %w", err)
	}
	return ids, nil
}

// ToggleFavorite inserts the favorite row when absent and deletes it when
// present, returning the resulting membership state.
func (s *PostgresStore) ToggleFavorite(ctx context.Context, recipeID, userID string) (bool, error) {
	var existingID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM user_favorites WHERE recipe_id = $1 AND user_id = $2",
		recipeID, userID).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}

	if err == nil {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM user_favorites WHERE id = $1", existingID); err != nil {
			return false, fmt.Errorf("failed to delete favorite: %w", err)
		}
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO user_favorites (id, recipe_id, user_id) VALUES ($1, $2, $3)",
		uuid.NewString(), recipeID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to insert favorite: %w", err)
	}
	return true, nil
}

// Ratings retrieves the user's ratings keyed by recipe id.
func (s *PostgresStore) Ratings(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT recipe_id, rating FROM user_ratings WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ratings: %w", err)
	}
	defer rows.Close()

	ratings := make(map[string]int)
	for rows.Next() {
		var recipeID string
		var rating int
		if err := rows.Scan(&recipeID, &rating); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		ratings[recipeID] = rating
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ratings, nil
}

// UpsertRating writes the user's rating for a recipe, replacing any previous
// one, and refreshes the recipe's rating aggregates.
func (s *PostgresStore) UpsertRating(ctx context.Context, recipeID, userID string, rating int, review string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO user_ratings (id, recipe_id, user_id, rating, review) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (recipe_id, user_id) DO UPDATE SET rating = $4, review = $5",
		uuid.NewString(), recipeID, userID, rating, review)
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE recipes SET
			average_rating = (SELECT COALESCE(AVG(rating), 0) FROM user_ratings WHERE recipe_id = $1),
			rating_count = (SELECT COUNT(*) FROM user_ratings WHERE recipe_id = $1)
		WHERE id = $1`, recipeID)
	if err != nil {
		return fmt.Errorf("failed to update rating aggregates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rating: %w", err)
	}
	return nil
}

// Preferences retrieves the user's stored preferences, or nil when none
// have been saved.
func (s *PostgresStore) Preferences(ctx context.Context, userID string) (*UserPreference, error) {
	var p UserPreference
	var excluded, cuisines pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, is_vegetarian, is_vegan, is_gluten_free, is_dairy_free,
			excluded_ingredients, favorite_cuisines
		FROM user_preferences WHERE user_id = $1`, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.IsVegetarian,
		&p.IsVegan,
		&p.IsGlutenFree,
		&p.IsDairyFree,
		&excluded,
		&cuisines,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No preferences saved
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	p.ExcludedIngredients = excluded
	p.FavoriteCuisines = cuisines
	return &p, nil
}

// SavePreferences writes the user's preferences, replacing any previous row.
func (s *PostgresStore) SavePreferences(ctx context.Context, pref *UserPreference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (id, user_id, is_vegetarian, is_vegan, is_gluten_free, is_dairy_free, excluded_ingredients, favorite_cuisines)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			is_vegetarian = $3, is_vegan = $4, is_gluten_free = $5, is_dairy_free = $6,
			excluded_ingredients = $7, favorite_cuisines = $8`,
		uuid.NewString(),
		pref.UserID,
		pref.IsVegetarian,
		pref.IsVegan,
		pref.IsGlutenFree,
		pref.IsDairyFree,
		pq.Array(pref.ExcludedIngredients),
		pq.Array(pref.FavoriteCuisines),
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
