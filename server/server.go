package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"muselib/cache"
	"muselib/config"
	"muselib/core/metadata"
	"muselib/core/player"
	"muselib/db"
	"muselib/logger"
	"muselib/repository"
	"muselib/storage"

	"github.com/gorilla/mux"
)

// Start initializes all backends and runs the HTTP server until a
// termination signal arrives.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	blobs, err := storage.NewMinioStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseDB()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		// Redis only feeds the now-playing fanout; the library works
		// without it.
		logger.Warn("Redis unavailable, now-playing events stay local", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
	}

	trackRepo := repository.NewTrackRepository(db.DB)
	extractor := metadata.NewExtractor()
	notifier := player.NewHub(cache.RedisClient)

	apiHandler := NewAPIHandler(trackRepo, blobs, extractor, notifier, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Auth
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// Stateless catalog reads
	router.HandleFunc("/api/tracks", apiHandler.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/search", apiHandler.SearchTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/artists", apiHandler.GetArtistsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/artists/{name}/tracks", apiHandler.GetArtistTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/favorites", apiHandler.GetFavoritesHandler).Methods(http.MethodGet)

	// Track mutations
	router.HandleFunc("/api/tracks/{id:[0-9]+}/favorite", apiHandler.ToggleFavoriteHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id:[0-9]+}", apiHandler.AuthMiddleware(apiHandler.DeleteTrackHandler)).Methods(http.MethodDelete)

	// Incremental browse sessions (infinite scroll)
	router.HandleFunc("/api/catalog", apiHandler.OpenCatalogHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/catalog/{sid}", apiHandler.GetCatalogHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/catalog/{sid}/more", apiHandler.LoadMoreHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/catalog/{sid}/search", apiHandler.SearchCatalogHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/catalog/{sid}/tracks/{id:[0-9]+}/favorite", apiHandler.SessionToggleFavoriteHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/catalog/{sid}", apiHandler.CloseCatalogHandler).Methods(http.MethodDelete)

	// Upload staging and commit
	router.HandleFunc("/api/uploads", apiHandler.AuthMiddleware(apiHandler.StageUploadHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/uploads/{id}/commit", apiHandler.AuthMiddleware(apiHandler.CommitUploadHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/uploads/{id}", apiHandler.AuthMiddleware(apiHandler.DiscardUploadHandler)).Methods(http.MethodDelete)

	// Now playing
	router.HandleFunc("/ws/nowplaying", apiHandler.NowPlayingSocketHandler)
	router.HandleFunc("/api/player/nowplaying", apiHandler.GetNowPlayingHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/player/nowplaying", apiHandler.SetNowPlayingHandler).Methods(http.MethodPut)
	router.HandleFunc("/api/player/nowplaying", apiHandler.ClearNowPlayingHandler).Methods(http.MethodDelete)

	// Blob passthrough
	router.PathPrefix("/static/").HandlerFunc(apiHandler.StaticBlobHandler).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
