package service

import (
	"context"

	"github.com/TharinduDesh/chatAPP/internal/db"
	"github.com/TharinduDesh/chatAPP/internal/model"
	"github.com/TharinduDesh/chatAPP/internal/repo"

	"go.uber.org/zap"
)

// ChatService backs the REST surface: history and conversation reads plus
// E2EE public key storage. The realtime pipeline does not go through here.
type ChatService interface {
	GetConversationHistory(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.MessageView], error)
	GetConversations(ctx context.Context, userID string) ([]model.ConversationView, error)
	UploadPublicKey(ctx context.Context, userID, publicKey string) error
	GetPublicKey(ctx context.Context, userID string) (string, error)
}

type chatService struct {
	messages      repo.MessageRepository
	conversations repo.ConversationRepository
	users         repo.UserRepository
	logger        *zap.Logger
}

func NewChatService(
	messages repo.MessageRepository,
	conversations repo.ConversationRepository,
	users repo.UserRepository,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		messages:      messages,
		conversations: conversations,
		users:         users,
		logger:        logger,
	}
}

// GetConversationHistory returns one chronological page of a conversation
// with sender display fields resolved.
func (s *chatService) GetConversationHistory(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.MessageView], error) {
	result, err := s.messages.ListByConversation(ctx, conversationID, page)
	if err != nil {
		return nil, err
	}

	senders := make(map[string]model.SenderInfo)
	views := make([]model.MessageView, 0, len(result.Data))
	for i := range result.Data {
		msg := result.Data[i]
		views = append(views, model.MessageView{
			Message: msg,
			Sender:  s.resolveSender(ctx, msg.SenderID, senders),
		})
	}

	return &db.PaginatedResult[model.MessageView]{
		Data:       views,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}, nil
}

// GetConversations returns userID's conversations, most recently updated
// first, each with participants and last message populated.
func (s *chatService) GetConversations(ctx context.Context, userID string) ([]model.ConversationView, error) {
	conversations, err := s.conversations.ListForParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	senders := make(map[string]model.SenderInfo)
	views := make([]model.ConversationView, 0, len(conversations))
	for i := range conversations {
		c := conversations[i]
		view := model.ConversationView{
			ID:           c.ID,
			Participants: make([]model.SenderInfo, 0, len(c.Participants)),
			IsGroupChat:  c.IsGroupChat,
			GroupName:    c.GroupName,
			UpdatedAt:    c.UpdatedAt,
		}
		for _, p := range c.Participants {
			view.Participants = append(view.Participants, s.resolveSender(ctx, p, senders))
		}

		if c.LastMessage != nil {
			if msg, err := s.messages.FindByID(ctx, c.LastMessage.Hex()); err == nil {
				last := model.MessageView{
					Message: *msg,
					Sender:  s.resolveSender(ctx, msg.SenderID, senders),
				}
				view.LastMessage = &last
			} else {
				s.logger.Debug("failed to resolve last message",
					zap.String("conversation_id", c.ID.Hex()),
					zap.Error(err),
				)
			}
		}

		views = append(views, view)
	}
	return views, nil
}

func (s *chatService) UploadPublicKey(ctx context.Context, userID, publicKey string) error {
	return s.users.SetPublicKey(ctx, userID, publicKey)
}

func (s *chatService) GetPublicKey(ctx context.Context, userID string) (string, error) {
	return s.users.GetPublicKey(ctx, userID)
}

// resolveSender caches lookups within one request; a miss degrades to a bare
// id rather than failing the read.
func (s *chatService) resolveSender(ctx context.Context, userID string, cache map[string]model.SenderInfo) model.SenderInfo {
	if info, ok := cache[userID]; ok {
		return info
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		info := model.SenderInfo{ID: userID}
		cache[userID] = info
		return info
	}
	info := user.SenderView()
	cache[userID] = info
	return info
}
