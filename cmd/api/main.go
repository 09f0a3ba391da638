package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pantrychef/internal/api"
	"pantrychef/internal/config"
	"pantrychef/internal/engine"
	"pantrychef/internal/logging"
	"pantrychef/internal/recipe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(cfg.App.LogLevel, cfg.App.Env == "production"); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	pgStore, err := recipe.NewPostgresStore(cfg.DB.URL)
	if err != nil {
		logging.Fatal("failed to create store", zap.Error(err))
	}

	var store recipe.Store = pgStore
	if cfg.Cache.Enabled {
		cached, err := recipe.NewCachedStore(pgStore, cfg.Cache.Addr, cfg.Cache.TTL)
		if err != nil {
			logging.Fatal("failed to create catalog cache", zap.Error(err))
		}
		defer cached.Close()
		store = cached
	}

	handler := api.NewHandler(store, engine.New(store))

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(api.RequestLogger(), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

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

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logging.Info("starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("forced shutdown", zap.Error(err))
	}
}
