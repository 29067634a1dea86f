package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything the terminal needs to reach the server of record.
type Config struct {
	APIBaseURL string
	WSURL      string
	GateID     string
	LogFile    string
}

// Load reads an optional .env file and then the environment. It never fails:
// anything missing falls back to a local-development default.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	return Config{
		APIBaseURL: getEnv("PARKING_API_URL", "http://localhost:3000/api/v1"),
		WSURL:      getEnv("PARKING_WS_URL", "ws://localhost:3002"),
		GateID:     getEnv("PARKING_GATE_ID", ""),
		LogFile:    getEnv("PARKING_LOG_FILE", ""),
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
