package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"collabhub/internal"
	"collabhub/moderation"
	"collabhub/repositories"
	"collabhub/services"
)

//go:embed dictionaries
var dictionariesFS embed.FS

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages their lifecycle, and centralizes
// error reporting. This pattern is preferred over calling os.Exit or panic
// directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	mask, err := internal.CharacterRune(config.ModerationCharReplacement)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation filter from the embedded dictionaries
	words, languages, err := moderation.LoadWords(dictionariesFS, "dictionaries")
	if err != nil {
		return fmt.Errorf("loading moderation dictionaries failed: %w", err)
	}
	filter, err := moderation.NewFilter(words, mask)
	if err != nil {
		return fmt.Errorf("building moderation filter failed: %w", err)
	}
	log.Info("Moderation filter ready", "words", len(words), "languages", languages)

	// 4. Repositories & Services
	chatRepository := repositories.NewChatRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, config.PageLimit)
	markerRepository := repositories.NewMarkerRepository(db, log)
	postRepository := repositories.NewPostRepository(db, log, config.PageLimit)
	applicationRepository := repositories.NewApplicationRepository(db, log)

	chatService := services.NewChatService(
		log, chatRepository, messageRepository, markerRepository,
		postRepository, filter, config.MaxContentLength,
	)
	postService := services.NewPostService(log, postRepository)
	applicationService := services.NewApplicationService(log, postRepository, applicationRepository)

	// 5. Keyspace inspector & read-only debug API, localhost only
	mux := internal.InspectorMux(db)
	registerDebugAPI(mux, chatService, postService, applicationService)

	address := fmt.Sprintf("localhost:%d", config.InspectPort)
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting inspector", "url", fmt.Sprintf("http://%s/inspect", address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("inspector server error: %w", err)
		}
	}()

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	log.Info("Program stopped cleanly")

	return nil
}

// registerDebugAPI exposes a handful of read-only JSON endpoints next to the
// inspector. They answer the questions that come up while poking a local
// database: what does this user see on login, which posts does this user
// own, who applied to this post.
func registerDebugAPI(
	mux *http.ServeMux,
	chats services.IChatService,
	posts services.IPostService,
	applications services.IApplicationService,
) {
	mux.HandleFunc("/debug/counts", func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		if userID == "" {
			http.Error(w, "missing user parameter", http.StatusBadRequest)
			return
		}
		counts, err := chats.GetInitialCounts(userID)
		writeJSON(w, counts, err)
	})

	mux.HandleFunc("/debug/posts", func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		if userID == "" {
			http.Error(w, "missing user parameter", http.StatusBadRequest)
			return
		}
		result, err := posts.LoadPostsByUserID(userID)
		writeJSON(w, result, err)
	})

	mux.HandleFunc("/debug/applications", func(w http.ResponseWriter, r *http.Request) {
		postID := r.URL.Query().Get("post")
		actorID := r.URL.Query().Get("actor")
		if postID == "" || actorID == "" {
			http.Error(w, "missing post or actor parameter", http.StatusBadRequest)
			return
		}
		result, err := applications.ApplicationsForPost(postID, actorID)
		writeJSON(w, result, err)
	})
}

func writeJSON(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
