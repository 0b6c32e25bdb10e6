package configuration

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type MongoConfig struct {
	URI                     string `json:"uri"`
	Database                string `json:"database"`
	MessagesCollection      string `json:"messagesCollection"`
	ConversationsCollection string `json:"conversationsCollection"`
	UsersCollection         string `json:"usersCollection"`
	AdminsCollection        string `json:"adminsCollection"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port"`
	SocketPort     int      `json:"socket_port"`
	SocketRoute    string   `json:"socket_route"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type Config struct {
	Mongo  MongoConfig  `json:"mongo"`
	Server ServerConfig `json:"server"`
}

func defaultConfig() *Config {
	return &Config{
		Mongo: MongoConfig{
			URI:                     "mongodb://localhost:27017",
			Database:                "chatapp",
			MessagesCollection:      "messages",
			ConversationsCollection: "conversations",
			UsersCollection:         "users",
			AdminsCollection:        "admins",
		},
		Server: ServerConfig{
			AppPort:        5000,
			SocketPort:     5001,
			SocketRoute:    "socket",
			AllowedOrigins: []string{"*"},
		},
	}
}

// LoadConfig reads the JSON config file when present and then applies
// environment overrides. A missing file is not an error; a .env file in the
// working directory is picked up first so both sources behave the same in
// development.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := defaultConfig()

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err == nil {
			if err := json.Unmarshal(file, config); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		config.Mongo.URI = uri
	}
	if database := os.Getenv("MONGO_DB"); database != "" {
		config.Mongo.Database = database
	}
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Server.AppPort = n
		}
	}
	if port := os.Getenv("SOCKET_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Server.SocketPort = n
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		config.Server.AllowedOrigins = parts
	}
}
