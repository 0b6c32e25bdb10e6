package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TharinduDesh/chatAPP/internal/db"
	"github.com/TharinduDesh/chatAPP/internal/model"
	"github.com/TharinduDesh/chatAPP/internal/registry"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var ErrPublicKeyNotFound = errors.New("public key not found for user")

type userRepository struct {
	users  *db.Repository[model.User]
	admins *db.Repository[model.Admin]
	logger *zap.Logger
}

// UserRepository reads user display fields and writes presence/last-seen and
// E2EE key material. It spans the users and admins collections because
// last-seen writes must land in the collection matching the identity's kind.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	TouchLastSeen(ctx context.Context, key registry.Key) error
	SetPublicKey(ctx context.Context, userID, publicKey string) error
	GetPublicKey(ctx context.Context, userID string) (string, error)
}

func NewUserRepository(users *db.Repository[model.User], admins *db.Repository[model.Admin], logger *zap.Logger) UserRepository {
	return &userRepository{
		users:  users,
		admins: admins,
		logger: logger,
	}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %s failed: %w", id, err)
	}
	return user, nil
}

// TouchLastSeen stamps the departing identity's last-seen time in the
// collection selected by the key's kind.
func (r *userRepository) TouchLastSeen(ctx context.Context, key registry.Key) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{"last_seen": time.Now().UTC()}

	var err error
	switch key.Kind {
	case registry.KindAdmin:
		_, err = r.admins.UpdateByID(ctx, key.ID, update)
	default:
		_, err = r.users.UpdateByID(ctx, key.ID, update)
	}
	if err != nil {
		return fmt.Errorf("touch last seen for %s failed: %w", key.String(), err)
	}
	return nil
}

func (r *userRepository) SetPublicKey(ctx context.Context, userID, publicKey string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.users.UpdateByID(ctx, userID, bson.M{"e2ee_public_key": publicKey})
	if err != nil {
		return fmt.Errorf("set public key failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	r.logger.Info("public key uploaded", zap.String("user_id", userID))
	return nil
}

func (r *userRepository) GetPublicKey(ctx context.Context, userID string) (string, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.E2EEPublicKey == "" {
		return "", ErrPublicKeyNotFound
	}
	return user.E2EEPublicKey, nil
}
