package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TharinduDesh/chatAPP/internal/db"
	"github.com/TharinduDesh/chatAPP/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

type ConversationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	SetLastMessage(ctx context.Context, conversationID string, messageID primitive.ObjectID) (*model.Conversation, error)
	ListForParticipant(ctx context.Context, userID string) ([]model.Conversation, error)
}

func NewConversationRepository(repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *conversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	if id == "" {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conversation, err := r.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConversationNotFound
		}
		r.logger.Error("failed to fetch conversation",
			zap.String("conversation_id", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch conversation failed: %w", err)
	}
	return conversation, nil
}

// SetLastMessage points the conversation at its newest message and bumps
// updated_at, which reorders it to the top of any client-side list. Returns
// the post-update conversation so callers see the participant set without a
// second read.
func (r *conversationRepository) SetLastMessage(ctx context.Context, conversationID string, messageID primitive.ObjectID) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("_id", conversationID).Build()
	update := bson.M{"$set": bson.M{
		"last_message": messageID,
		"updated_at":   time.Now().UTC(),
	}}

	conversation, err := r.mongoRepo.FindOneAndUpdate(ctx, filter, update)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConversationNotFound
		}
		r.logger.Error("failed to update conversation last message",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("update conversation failed: %w", err)
	}

	r.logger.Debug("conversation last message updated",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", messageID.Hex()),
	)
	return conversation, nil
}

// ListForParticipant returns userID's conversations, most recently updated
// first.
func (r *conversationRepository) ListForParticipant(ctx context.Context, userID string) ([]model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participants", userID).Build()
	opts := options.Find().SetSort(bson.M{"updated_at": -1})

	conversations, err := r.mongoRepo.FindAll(ctx, filter, opts)
	if err != nil {
		r.logger.Error("failed to list conversations",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return conversations, nil
}
