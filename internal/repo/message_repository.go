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
	"go.uber.org/zap"
)

var (
	ErrInvalidMessage        = errors.New("invalid message: message cannot be nil or empty")
	ErrInvalidConversationID = errors.New("invalid conversation ID: cannot be empty")
	ErrMessageNotFound       = errors.New("message not found")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrUserNotFound          = errors.New("user not found")
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	historyPageSize = 15
)

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (string, error)
	FindByID(ctx context.Context, id string) (*model.Message, error)
	MarkDelivered(ctx context.Context, id string) error
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)
	SetReactions(ctx context.Context, id string, reactions []model.Reaction) error
	ListByConversation(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error)
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// Insert
// -----------------------------------------------------------------------------

// Insert persists a new message and returns its hex id. Transient Mongo
// errors are retried with exponential backoff.
func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (string, error) {
	if msg == nil || !msg.HasContent() {
		return "", ErrInvalidMessage
	}
	if msg.ConversationID.IsZero() {
		return "", ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return "", err
			}
		}

		result, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			insertedID := ""
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				insertedID = oid.Hex()
				msg.ID = oid
			}

			m.logger.Info("message inserted",
				zap.String("inserted_id", insertedID),
				zap.String("conversation_id", msg.ConversationID.Hex()),
				zap.Int("attempt", attempt+1),
			)
			return insertedID, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)
	return "", fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (m *messageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("find message %s failed: %w", id, err)
	}
	return msg, nil
}

// ListByConversation returns one page of a conversation's history in
// chronological order.
func (m *messageRepository) ListByConversation(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("conversation_id", conversationID).Build()
	result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: historyPageSize,
		SortBy:   "created_at",
		SortDesc: false,
	})
	if err != nil {
		m.logger.Error("failed to list messages",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list messages failed: %w", err)
	}

	m.logger.Debug("messages listed",
		zap.String("conversation_id", conversationID),
		zap.Int("count", len(result.Data)),
		zap.Int64("total", result.Total),
	)
	return result, nil
}

// -----------------------------------------------------------------------------
// Status transitions
// -----------------------------------------------------------------------------

// MarkDelivered moves a message from sent to delivered. The filter pins the
// current status so the transition never regresses a read message.
func (m *messageRepository) MarkDelivered(ctx context.Context, id string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("_id", id).
		Eq("status", model.StatusSent).
		Build()
	update := bson.M{"$set": bson.M{"status": model.StatusDelivered, "updated_at": time.Now().UTC()}}

	if _, err := m.mongoRepo.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("mark delivered failed: %w", err)
	}
	return nil
}

// MarkConversationRead bulk-transitions every message in the conversation
// not sent by readerID and not yet read to status read, adding readerID to
// readBy. One UpdateMany, idempotent, safe to re-run. Returns the number of
// messages changed.
func (m *messageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	if conversationID == "" {
		return 0, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("conversation_id", conversationID).
		Ne("sender_id", readerID).
		Ne("status", model.StatusRead).
		Build()
	update := bson.M{
		"$set":      bson.M{"status": model.StatusRead, "updated_at": time.Now().UTC()},
		"$addToSet": bson.M{"read_by": readerID},
	}

	result, err := m.mongoRepo.UpdateMany(ctx, filter, update)
	if err != nil {
		m.logger.Error("failed to mark conversation read",
			zap.String("conversation_id", conversationID),
			zap.String("reader_id", readerID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("mark conversation read failed: %w", err)
	}

	m.logger.Debug("conversation marked read",
		zap.String("conversation_id", conversationID),
		zap.String("reader_id", readerID),
		zap.Int64("modified", result.ModifiedCount),
	)
	return result.ModifiedCount, nil
}

// SetReactions replaces a message's reaction list. Concurrent reactions on
// the same message resolve last-write-wins at the storage layer.
func (m *messageRepository) SetReactions(ctx context.Context, id string, reactions []model.Reaction) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if reactions == nil {
		reactions = []model.Reaction{}
	}
	if _, err := m.mongoRepo.UpdateByID(ctx, id, bson.M{"reactions": reactions, "updated_at": time.Now().UTC()}); err != nil {
		return fmt.Errorf("set reactions failed: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------------

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
