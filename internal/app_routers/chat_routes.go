package approuters

import (
	"github.com/TharinduDesh/chatAPP/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	messageRoute := router.Group("/api/messages")
	{
		messageRoute.GET("/:conversationId", container.ChatHandler.GetConversationMessages)
	}

	conversationRoute := router.Group("/api/conversations")
	{
		conversationRoute.GET("", container.ChatHandler.GetConversations)
	}

	keyRoute := router.Group("/api/keys")
	{
		keyRoute.POST("/upload", container.ChatHandler.UploadPublicKey)
		keyRoute.GET("/:userId/publicKey", container.ChatHandler.GetPublicKey)
	}
}
