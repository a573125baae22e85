package services

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"collabhub/errors"
	"collabhub/moderation"
	"collabhub/repositories"
)

type fixture struct {
	chats        *ChatService
	posts        *PostService
	applications *ApplicationService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	log := slog.Default()
	filter, err := moderation.NewFilter([]string{"scam"}, '*')
	require.NoError(t, err)

	chatRepo := repositories.NewChatRepository(db)
	messageRepo := repositories.NewMessageRepository(db, log, 10)
	markerRepo := repositories.NewMarkerRepository(db, log)
	postRepo := repositories.NewPostRepository(db, log, 10)
	applicationRepo := repositories.NewApplicationRepository(db, log)

	return fixture{
		chats:        NewChatService(log, chatRepo, messageRepo, markerRepo, postRepo, filter, 500),
		posts:        NewPostService(log, postRepo),
		applications: NewApplicationService(log, postRepo, applicationRepo),
	}
}

func Test_Create_Chat_Needs_Two_Participants(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.chats.CreateChat([]string{"alice"}, "")
	req.ErrorIs(err, errors.ErrValidation)

	chat, err := f.chats.CreateChat([]string{"alice", "bob"}, "")
	req.NoError(err)
	req.True(chat.HasParticipant("alice"))
	req.True(chat.HasParticipant("bob"))
}

func Test_Send_Message_Validates_Content(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	chat, err := f.chats.CreateChat([]string{"alice", "bob"}, "")
	req.NoError(err)

	_, err = f.chats.SendMessage(ctx, chat.ID, "alice", "")
	req.ErrorIs(err, errors.ErrValidation)
	_, err = f.chats.SendMessage(ctx, chat.ID, "alice", "   ")
	req.ErrorIs(err, errors.ErrValidation)
	_, err = f.chats.SendMessage(ctx, chat.ID, "alice", strings.Repeat("x", 501))
	req.ErrorIs(err, errors.ErrValidation)
}

func Test_Send_Message_Requires_Participant(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	chat, err := f.chats.CreateChat([]string{"alice", "bob"}, "")
	req.NoError(err)

	_, err = f.chats.SendMessage(context.Background(), chat.ID, "mallory", "let me in")
	req.ErrorIs(err, errors.ErrNotParticipant)

	_, err = f.chats.SendMessage(context.Background(), uuid.NewString(), "alice", "hello?")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Send_Message_Censors_Content(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	chat, err := f.chats.CreateChat([]string{"alice", "bob"}, "")
	req.NoError(err)

	message, err := f.chats.SendMessage(context.Background(), chat.ID, "alice", "not a scam at all")
	req.NoError(err)
	req.Equal("not a **** at all", message.Content)

	page, err := f.chats.GetMessagesForChat(chat.ID, 1, 10)
	req.NoError(err)
	req.Equal("not a **** at all", page[0].Content)
}

func Test_Chat_Tied_To_Post_Closes_With_It(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	post, err := f.posts.CreatePost(PostInput{Title: "pair on a compiler"}, "alice")
	req.NoError(err)
	chat, err := f.chats.CreateChat([]string{"alice", "bob"}, post.ID)
	req.NoError(err)

	_, err = f.chats.SendMessage(ctx, chat.ID, "bob", "still open?")
	req.NoError(err)

	_, err = f.posts.ClosePost(post.ID, "alice")
	req.NoError(err)

	_, err = f.chats.SendMessage(ctx, chat.ID, "bob", "hello?")
	req.ErrorIs(err, errors.ErrChatClosed)

	// Reopening lets the conversation continue.
	_, err = f.posts.OpenPost(post.ID, "alice")
	req.NoError(err)
	_, err = f.chats.SendMessage(ctx, chat.ID, "bob", "there you are")
	req.NoError(err)
}

func Test_Unread_Scenario_Two_Participants(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	chat, err := f.chats.CreateChat([]string{"alice", "bob"}, "")
	req.NoError(err)

	for i := 0; i < 3; i++ {
		_, err = f.chats.SendMessage(ctx, chat.ID, "alice", "ping")
		req.NoError(err)
	}

	counts, err := f.chats.GetUnreadCountForChats("bob")
	req.NoError(err)
	req.EqualValues(3, counts[chat.ID])

	ok, err := f.chats.MarkMessagesAsRead(chat.ID, "bob")
	req.NoError(err)
	req.True(ok)

	counts, err = f.chats.GetUnreadCountForChats("bob")
	req.NoError(err)
	req.Zero(counts[chat.ID])

	_, err = f.chats.SendMessage(ctx, chat.ID, "alice", "one more")
	req.NoError(err)

	counts, err = f.chats.GetUnreadCountForChats("bob")
	req.NoError(err)
	req.EqualValues(1, counts[chat.ID])

	// The sender's own unread count never moved.
	aliceCounts, err := f.chats.GetUnreadCountForChats("alice")
	req.NoError(err)
	req.Zero(aliceCounts[chat.ID])
}

func Test_Initial_Counts_Are_One_Snapshot(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.chats.CreateChat([]string{"alice", "bob"}, "")
	req.NoError(err)
	second, err := f.chats.CreateChat([]string{"bob", "clara"}, "")
	req.NoError(err)

	_, err = f.chats.SendMessage(ctx, first.ID, "alice", "hi")
	req.NoError(err)
	_, err = f.chats.SendMessage(ctx, second.ID, "clara", "hey")
	req.NoError(err)
	_, err = f.chats.SendMessage(ctx, second.ID, "clara", "you there?")
	req.NoError(err)

	counts, err := f.chats.GetInitialCounts("bob")
	req.NoError(err)
	req.EqualValues(3, counts.TotalUnread)
	req.EqualValues(1, counts.PerChat[first.ID])
	req.EqualValues(2, counts.PerChat[second.ID])
}

func Test_Mark_Read_Requires_Membership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	chat, err := f.chats.CreateChat([]string{"alice", "bob"}, "")
	req.NoError(err)

	_, err = f.chats.MarkMessagesAsRead(chat.ID, "mallory")
	req.ErrorIs(err, errors.ErrNotParticipant)
}

func Test_Edit_Message_Censors_Too(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	chat, err := f.chats.CreateChat([]string{"alice", "bob"}, "")
	req.NoError(err)
	message, err := f.chats.SendMessage(context.Background(), chat.ID, "alice", "original")
	req.NoError(err)

	edited, err := f.chats.EditMessage(message.ID, "actually a scam", "alice")
	req.NoError(err)
	req.Equal("actually a ****", edited.Content)

	_, err = f.chats.EditMessage(message.ID, "", "alice")
	req.ErrorIs(err, errors.ErrValidation)
}
