package main

import (
	"log"
	"os"

	approuters "github.com/TharinduDesh/chatAPP/internal/app_routers"
	"github.com/TharinduDesh/chatAPP/internal/configuration"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	container, err := configuration.BuildContainer(configPath)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	approuters.StartServer(container)
}
