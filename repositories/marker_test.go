package repositories

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"collabhub/errors"
)

func Test_Unread_Counts_Skip_The_Sender(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	messages := NewMessageRepository(db, slog.Default(), 10)
	markers := NewMarkerRepository(db, slog.Default())
	chatID := uuid.NewString()
	participants := []string{"alice", "bob"}

	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		msg := newMessage(chatID, "alice", "hello", at.Add(time.Duration(i)*time.Millisecond))
		req.NoError(messages.Append(msg, participants, ""))
	}

	bobUnread, err := markers.UnreadCountForChat(chatID, "bob")
	req.NoError(err)
	req.EqualValues(3, bobUnread)

	// A sender's own messages are never unread for them.
	aliceUnread, err := markers.UnreadCountForChat(chatID, "alice")
	req.NoError(err)
	req.Zero(aliceUnread)
}

func Test_Mark_Read_Resets_And_New_Messages_Count_Again(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	messages := NewMessageRepository(db, slog.Default(), 10)
	markers := NewMarkerRepository(db, slog.Default())
	chatID := uuid.NewString()
	participants := []string{"alice", "bob"}

	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		msg := newMessage(chatID, "alice", "hello", at.Add(time.Duration(i)*time.Millisecond))
		req.NoError(messages.Append(msg, participants, ""))
	}

	ok, err := markers.MarkRead(chatID, "bob")
	req.NoError(err)
	req.True(ok)

	unread, err := markers.UnreadCountForChat(chatID, "bob")
	req.NoError(err)
	req.Zero(unread)

	msg := newMessage(chatID, "alice", "one more", at.Add(time.Second))
	req.NoError(messages.Append(msg, participants, ""))

	unread, err = markers.UnreadCountForChat(chatID, "bob")
	req.NoError(err)
	req.EqualValues(1, unread)
}

func Test_Mark_Read_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	messages := NewMessageRepository(db, slog.Default(), 10)
	markers := NewMarkerRepository(db, slog.Default())
	chatID := uuid.NewString()

	msg := newMessage(chatID, "alice", "hello", time.Now().UTC())
	req.NoError(messages.Append(msg, []string{"alice", "bob"}, ""))

	for i := 0; i < 2; i++ {
		ok, err := markers.MarkRead(chatID, "bob")
		req.NoError(err)
		req.True(ok)

		unread, err := markers.UnreadCountForChat(chatID, "bob")
		req.NoError(err)
		req.Zero(unread)
	}

	marker, err := markers.MarkerFor(chatID, "bob")
	req.NoError(err)
	req.NotNil(marker)
	req.Equal(msg.ID, marker.ID)
}

func Test_Marker_For_Unread_Chat_Is_Nil(t *testing.T) {
	req := require.New(t)
	markers := NewMarkerRepository(testDB(t), slog.Default())

	marker, err := markers.MarkerFor(uuid.NewString(), "bob")
	req.NoError(err)
	req.Nil(marker)
}

func Test_Mark_Read_On_Empty_Chat(t *testing.T) {
	req := require.New(t)
	markers := NewMarkerRepository(testDB(t), slog.Default())
	chatID := uuid.NewString()

	ok, err := markers.MarkRead(chatID, "bob")
	req.NoError(err)
	req.True(ok)

	// No messages: no marker to set, count stays zero.
	marker, err := markers.MarkerFor(chatID, "bob")
	req.NoError(err)
	req.Nil(marker)

	unread, err := markers.UnreadCountForChat(chatID, "bob")
	req.NoError(err)
	req.Zero(unread)
}

func Test_Initial_Counts_Cover_Every_Chat(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	chats := NewChatRepository(db)
	messages := NewMessageRepository(db, slog.Default(), 10)
	markers := NewMarkerRepository(db, slog.Default())

	busy, err := chats.CreateChat([]string{"alice", "bob"}, "")
	req.NoError(err)
	quiet, err := chats.CreateChat([]string{"bob", "clara"}, "")
	req.NoError(err)

	at := time.Now().UTC()
	for i := 0; i < 2; i++ {
		msg := newMessage(busy.ID, "alice", "ping", at.Add(time.Duration(i)*time.Millisecond))
		req.NoError(messages.Append(msg, busy.Participants, ""))
	}

	counts, err := markers.InitialCounts("bob")
	req.NoError(err)
	req.EqualValues(2, counts.TotalUnread)
	req.Len(counts.PerChat, 2)
	req.EqualValues(2, counts.PerChat[busy.ID])
	req.Zero(counts.PerChat[quiet.ID])
}

func Test_Mark_Read_Racing_Appends_Never_Loses_Counts(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	messages := NewMessageRepository(db, slog.Default(), 10)
	markers := NewMarkerRepository(db, slog.Default())
	chatID := uuid.NewString()
	participants := []string{"alice", "bob"}

	// MarkRead runs in the middle of the append burst, not after it. Whatever
	// the interleaving, the served counter must equal a recount under the
	// final marker: a mark that zeroed the counter while missing an append
	// would come out one short here.
	const appends = 20
	var wg sync.WaitGroup
	wg.Add(appends + 1)
	for i := 0; i < appends; i++ {
		go func() {
			defer wg.Done()
			msg := newMessage(chatID, "alice", "burst", time.Now().UTC())
			req.NoError(messages.Append(msg, participants, ""))
		}()
	}
	go func() {
		defer wg.Done()
		ok, err := markers.MarkRead(chatID, "bob")
		req.NoError(err)
		req.True(ok)
	}()
	wg.Wait()

	marker, err := markers.MarkerFor(chatID, "bob")
	req.NoError(err)

	var recount int64
	for page := 1; ; page++ {
		batch, err := messages.GetMessages(chatID, page, 10)
		req.NoError(err)
		if len(batch) == 0 {
			break
		}
		for _, msg := range batch {
			if msg.SenderID == "bob" {
				continue
			}
			if marker == nil || msg.Key().After(*marker) {
				recount++
			}
		}
	}

	unread, err := markers.UnreadCountForChat(chatID, "bob")
	req.NoError(err)
	req.Equal(recount, unread)

	// With the race settled, a fresh mark drains everything.
	ok, err := markers.MarkRead(chatID, "bob")
	req.NoError(err)
	req.True(ok)

	unread, err = markers.UnreadCountForChat(chatID, "bob")
	req.NoError(err)
	req.Zero(unread)
}

func Test_Mark_Read_Conflicts_With_Append_Landing_Mid_Flight(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	messages := NewMessageRepository(db, slog.Default(), 10)
	chatID := uuid.NewString()
	participants := []string{"alice", "bob"}

	first := newMessage(chatID, "alice", "hello", time.Now().UTC())
	req.NoError(messages.Append(first, participants, ""))

	// One MarkRead attempt by hand, held open so an append can land between
	// its reads and its commit. The read set must include the counter key;
	// without that read the commit below would succeed and silently zero the
	// appended message out of the count.
	txn := db.NewTransaction(true)
	defer txn.Discard()

	latest, err := latestKey(txn, chatID)
	req.NoError(err)
	req.NotNil(latest)
	current, err := markerFor(txn, chatID, "bob")
	req.NoError(err)
	req.Nil(current)
	_, err = unreadCount(txn, "bob", chatID)
	req.NoError(err)
	req.NoError(txn.Set(markerKey(chatID, "bob"), []byte(latest.Encode())))
	req.NoError(txn.Set(unreadKey("bob", chatID), encodeCount(0)))

	second := newMessage(chatID, "alice", "landed mid-flight", time.Now().UTC().Add(time.Millisecond))
	req.NoError(messages.Append(second, participants, ""))

	// The append wrote the counter this attempt read; the stale zero must
	// not commit. runUpdate turns this into a retry against fresh state.
	req.ErrorIs(txn.Commit(), badger.ErrConflict)
}

func Test_Unavailable_Wrapping_Keeps_Domain_Errors(t *testing.T) {
	req := require.New(t)
	req.ErrorIs(storageErr(errors.ErrNotFound), errors.ErrNotFound)
	req.NotErrorIs(storageErr(errors.ErrNotFound), errors.ErrUnavailable)

	req.ErrorIs(storageErr(fmt.Errorf("disk on fire")), errors.ErrUnavailable)
	req.NoError(storageErr(nil))
}
