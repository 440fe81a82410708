package app

import (
	"os"
	"strings"
)

type Config struct {
	HTTPAddr      string
	MongoURI      string
	MongoDatabase string
	LogLevel      string
	LogFormat     string
	// DataDir is the sandbox download root; torrents without an explicit
	// storage scope land here.
	DataDir string
	// PushEndpoint is the notification gateway base URL; empty disables
	// delivery.
	PushEndpoint string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DB", "itorrent"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DataDir:       getEnv("DATA_DIR", "data"),
		PushEndpoint:  getEnv("PUSH_ENDPOINT", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
