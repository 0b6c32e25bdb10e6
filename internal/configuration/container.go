package configuration

import (
	"context"
	"fmt"
	"time"

	"github.com/TharinduDesh/chatAPP/internal/db"
	"github.com/TharinduDesh/chatAPP/internal/handler"
	"github.com/TharinduDesh/chatAPP/internal/hub"
	"github.com/TharinduDesh/chatAPP/internal/model"
	"github.com/TharinduDesh/chatAPP/internal/registry"
	"github.com/TharinduDesh/chatAPP/internal/repo"
	"github.com/TharinduDesh/chatAPP/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Container wires every service once at process start; everything downstream
// receives its dependencies instead of reaching for globals. The connection
// registry in particular lives here so it stays an injectable instance with
// an explicit lifecycle.
type Container struct {
	ChatHandler handler.ChatHandler
	Hub         *hub.Hub
	Registry    *registry.Registry
	Config      Config
	Logger      *zap.Logger

	// private - for cleanup
	mongoDB *mongo.Database
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	con, err := db.OpenConnection(config.Mongo.URI, config.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	messageStore := db.NewRepository[model.Message](con, config.Mongo.MessagesCollection)
	conversationStore := db.NewRepository[model.Conversation](con, config.Mongo.ConversationsCollection)
	userStore := db.NewRepository[model.User](con, config.Mongo.UsersCollection)
	adminStore := db.NewRepository[model.Admin](con, config.Mongo.AdminsCollection)

	messageRepo := repo.NewMessageRepository(messageStore, logger)
	conversationRepo := repo.NewConversationRepository(conversationStore, logger)
	userRepo := repo.NewUserRepository(userStore, adminStore, logger)

	reg := registry.New()
	h := hub.NewHub()
	h.SetPresence(hub.NewPresenceTracker(reg, userRepo, h, logger))
	h.SetHandler(hub.NewChatHandler(h, reg, messageRepo, conversationRepo, userRepo, logger))

	chatService := service.NewChatService(messageRepo, conversationRepo, userRepo, logger)
	chatHandler := handler.NewChatHandler(chatService)

	return &Container{
		ChatHandler: chatHandler,
		Hub:         h,
		Registry:    reg,
		Config:      *config,
		Logger:      logger,
		mongoDB:     con,
	}, nil
}

// Close gracefully shuts down all connections.
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	if c.mongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoDB.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
