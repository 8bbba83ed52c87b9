package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskforge/taskify/internal/api"
	"github.com/taskforge/taskify/internal/auth"
	"github.com/taskforge/taskify/internal/config"
	"github.com/taskforge/taskify/internal/middleware"
	"github.com/taskforge/taskify/internal/store"
	"github.com/taskforge/taskify/internal/tasks"
	"github.com/taskforge/taskify/internal/users"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer pgPool.Close()
	userStore := store.NewPostgresStore(pgPool)
	if err := userStore.Migrate(ctx); err != nil {
		log.Fatalf("postgres migrate: %v", err)
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer mongoClient.Disconnect(ctx)
	taskStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := taskStore.EnsureIndexes(ctx); err != nil {
		log.Fatalf("mongo indexes: %v", err)
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connect: %v", err)
	}
	defer rdb.Close()

	// ── MinIO ────────────────────────────────────────────────
	avatarStore, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatalf("minio connect: %v", err)
	}

	// ── Handlers ─────────────────────────────────────────────
	tokenService := auth.NewTokenService(cfg.JWTSecret)
	authHandler := auth.NewHandler(userStore, tokenService, cfg.Production())
	taskHandler := tasks.NewHandler(taskStore, cfg.Production())
	userHandler := users.NewHandler(userStore, taskStore, avatarStore, cfg.Production())

	requireAuth := middleware.RequireAuth(tokenService, userStore)
	optionalAuth := middleware.OptionalAuth(tokenService, userStore)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(rdb, cfg.RateLimitWindow, cfg.RateLimitMax))

		// Health check
		r.With(optionalAuth).Get("/health", func(w http.ResponseWriter, req *http.Request) {
			body := map[string]any{
				"message":     "Server is running!",
				"timestamp":   time.Now().UTC().Format(time.RFC3339),
				"environment": cfg.Env,
			}
			if user := auth.UserFrom(req.Context()); user != nil {
				body["user"] = user.Email
			}
			api.WriteJSON(w, http.StatusOK, body)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.With(requireAuth).Get("/profile", authHandler.Profile)
			r.With(requireAuth).Put("/profile", authHandler.UpdateProfile)
			r.With(requireAuth).Put("/change-password", authHandler.ChangePassword)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", taskHandler.List)
			r.Post("/", taskHandler.Create)
			r.Post("/bulk", taskHandler.BulkUpdate)
			r.Get("/{id}", taskHandler.Get)
			r.Put("/{id}", taskHandler.Update)
			r.Delete("/{id}", taskHandler.Delete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", userHandler.Me)
			r.Delete("/me", userHandler.DeleteAccount)
			r.Get("/stats", userHandler.Stats)
			r.Post("/me/avatar", userHandler.UploadAvatar)
			r.Get("/me/avatar", userHandler.GetAvatar)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireAdmin)
			r.Get("/users", userHandler.ListUsers)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		api.WriteJSON(w, http.StatusNotFound, map[string]string{
			"message": "Route not found",
		})
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
