//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"collabhub/domain"
	"collabhub/errors"
	"collabhub/moderation"
	"collabhub/repositories"
)

type IChatService interface {
	CreateChat(participants []string, postID string) (domain.Chat, error)
	SendMessage(ctx context.Context, chatID, senderID, content string) (domain.Message, error)
	GetMessagesForChat(chatID string, page, limit int) ([]domain.Message, error)
	GetChatListForUser(userID string) ([]domain.Chat, error)
	GetChatIDsForUser(userID string) ([]string, error)
	GetUnreadCountForChats(userID string) (map[string]int64, error)
	GetInitialCounts(userID string) (repositories.InitialCounts, error)
	EditMessage(messageID uuid.UUID, content, requesterID string) (domain.Message, error)
	DeleteMessage(messageID uuid.UUID, requesterID string) (bool, error)
	MarkMessagesAsRead(chatID, userID string) (bool, error)
}

// ChatService enforces the conversation rules in front of the repositories:
// who may write to a chat, whether the chat still accepts messages, and
// what content is allowed through.
type ChatService struct {
	log        *slog.Logger
	chats      repositories.IChatRepository
	messages   repositories.IMessageRepository
	markers    repositories.IMarkerRepository
	posts      repositories.IPostRepository
	filter     *moderation.Filter
	maxContent int
}

func NewChatService(
	log *slog.Logger,
	chats repositories.IChatRepository,
	messages repositories.IMessageRepository,
	markers repositories.IMarkerRepository,
	posts repositories.IPostRepository,
	filter *moderation.Filter,
	maxContent int,
) *ChatService {
	return &ChatService{
		log:        log,
		chats:      chats,
		messages:   messages,
		markers:    markers,
		posts:      posts,
		filter:     filter,
		maxContent: maxContent,
	}
}

func (s *ChatService) CreateChat(participants []string, postID string) (domain.Chat, error) {
	if len(participants) < 2 {
		return domain.Chat{}, errors.ErrValidation
	}
	return s.chats.CreateChat(participants, postID)
}

// SendMessage validates, gates, censors, then appends. The unread counters
// of the other participants move inside the append transaction.
func (s *ChatService) SendMessage(ctx context.Context, chatID, senderID, content string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, errors.ErrValidation
	}
	if utf8.RuneCountInString(content) > s.maxContent {
		return domain.Message{}, errors.ErrValidation
	}

	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return domain.Message{}, err
	}
	if !chat.HasParticipant(senderID) {
		return domain.Message{}, errors.ErrNotParticipant
	}
	if err := s.gate(chat); err != nil {
		return domain.Message{}, err
	}

	censored, lang := s.filter.Apply(content)
	if censored != content {
		s.log.Info("message content censored",
			"chat_id", chatID,
			"sender_id", senderID,
			"lang", lang.Iso6391())
	}

	message := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   censored,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Append(message, chat.Participants, chat.PostID); err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// gate delegates to the linked post when there is one. A chat whose post is
// gone or no longer open takes no new messages.
func (s *ChatService) gate(chat domain.Chat) error {
	if chat.PostID == "" {
		return nil
	}
	post, err := s.posts.GetPost(chat.PostID)
	if errors.Is(err, errors.ErrNotFound) {
		return errors.ErrChatClosed
	}
	if err != nil {
		return err
	}
	if !post.Status.Accepting() {
		return errors.ErrChatClosed
	}
	return nil
}

func (s *ChatService) GetMessagesForChat(chatID string, page, limit int) ([]domain.Message, error) {
	return s.messages.GetMessages(chatID, page, limit)
}

func (s *ChatService) GetChatListForUser(userID string) ([]domain.Chat, error) {
	return s.chats.GetChatListForUser(userID)
}

func (s *ChatService) GetChatIDsForUser(userID string) ([]string, error) {
	return s.chats.GetChatIDsForUser(userID)
}

// GetUnreadCountForChats reports a count for every chat the user belongs
// to, zero included; a chat that never saw a message simply has no counter
// key yet.
func (s *ChatService) GetUnreadCountForChats(userID string) (map[string]int64, error) {
	chatIDs, err := s.chats.GetChatIDsForUser(userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.markers.UnreadCountsForUser(userID)
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(chatIDs))
	for _, chatID := range chatIDs {
		result[chatID] = counts[chatID]
	}
	return result, nil
}

func (s *ChatService) GetInitialCounts(userID string) (repositories.InitialCounts, error) {
	return s.markers.InitialCounts(userID)
}

func (s *ChatService) EditMessage(messageID uuid.UUID, content, requesterID string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, errors.ErrValidation
	}
	if utf8.RuneCountInString(content) > s.maxContent {
		return domain.Message{}, errors.ErrValidation
	}
	censored, _ := s.filter.Apply(content)
	return s.messages.EditMessage(messageID, censored, requesterID)
}

func (s *ChatService) DeleteMessage(messageID uuid.UUID, requesterID string) (bool, error) {
	return s.messages.DeleteMessage(messageID, requesterID)
}

func (s *ChatService) MarkMessagesAsRead(chatID, userID string) (bool, error) {
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return false, err
	}
	if !chat.HasParticipant(userID) {
		return false, errors.ErrNotParticipant
	}
	return s.markers.MarkRead(chatID, userID)
}
