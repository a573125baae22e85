package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"

	"collabhub/moderation"
	"collabhub/repositories"
	"collabhub/services"
)

// Seeds a local database with a believable slice of platform activity so the
// inspector and the debug API have something to show. Point it at the same
// path as BADGER_FILEPATH, run it once, then start the main binary.
func main() {
	path := flag.String("path", "./collabhub_data", "badger database directory to seed")
	flag.Parse()

	if err := seed(*path); err != nil {
		fmt.Fprintf(os.Stderr, "Seeding failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Database seeded at", *path)
}

func seed(path string) error {
	log := logs.GetLoggerFromString("INFO")

	db, err := badger.Open(badger.DefaultOptions(path).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	filter, err := moderation.NewFilter([]string{"scam", "arnaque"}, '*')
	if err != nil {
		return err
	}

	chatRepository := repositories.NewChatRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, 10)
	markerRepository := repositories.NewMarkerRepository(db, log)
	postRepository := repositories.NewPostRepository(db, log, 10)
	applicationRepository := repositories.NewApplicationRepository(db, log)

	chats := services.NewChatService(
		log, chatRepository, messageRepository, markerRepository,
		postRepository, filter, 500,
	)
	posts := services.NewPostService(log, postRepository)
	applications := services.NewApplicationService(log, postRepository, applicationRepository)

	ctx := context.Background()

	alicePost, err := posts.CreatePost(services.PostInput{
		Title:           "Realtime whiteboard for pair design sessions",
		Description:     "Looking for a second pair of hands on the sync engine.",
		TechStack:       []string{"go", "webrtc", "svelte"},
		ProjectPhase:    "development",
		ProjectType:     "open_source",
		WorkMode:        "remote",
		ExperienceLevel: "intermediate",
	}, "alice")
	if err != nil {
		return err
	}

	bobPost, err := posts.CreatePost(services.PostInput{
		Title:        "Hackathon team for a transit data visualizer",
		Description:  "48h event next month, need a frontend person.",
		TechStack:    []string{"typescript", "d3"},
		ProjectPhase: "idea",
		ProjectType:  "hackathon",
		WorkMode:     "in_person",
	}, "bob")
	if err != nil {
		return err
	}

	// Some browsing traffic so the counters are not all zero.
	for i := 0; i < 7; i++ {
		if _, err := posts.IncrementPostView(alicePost.ID); err != nil {
			return err
		}
	}
	if _, err := posts.IncrementPostView(bobPost.ID); err != nil {
		return err
	}

	if _, err := applications.Apply(alicePost.ID, "carol", "I built the CRDT layer of a shared editor last year."); err != nil {
		return err
	}
	if _, err := applications.Apply(bobPost.ID, "alice", ""); err != nil {
		return err
	}

	chat, err := chats.CreateChat([]string{"alice", "carol"}, alicePost.ID)
	if err != nil {
		return err
	}
	lines := []struct{ sender, content string }{
		{"carol", "Hi! Saw your whiteboard post, the sync engine sounds fun."},
		{"alice", "Nice, which part of CRDTs did you work on?"},
		{"carol", "Mostly text sequences, but shapes should be simpler."},
		{"alice", "Agreed. Want to pair on the cursor presence first?"},
	}
	for _, line := range lines {
		if _, err := chats.SendMessage(ctx, chat.ID, line.sender, line.content); err != nil {
			return err
		}
	}
	// Alice caught up, carol has not.
	if _, err := chats.MarkMessagesAsRead(chat.ID, "alice"); err != nil {
		return err
	}

	return nil
}
