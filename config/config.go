package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr       string
	DataPath         string
	LogLevel         string
	LogFormat        string
	ResultCacheSize  int
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ClientSendBuffer int
	MaxMessageSize   int64
}

func Load() *Config {
	_ = godotenv.Load()

	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return &Config{
		ServerAddr:       addr,
		DataPath:         strings.TrimSpace(os.Getenv("SANTA_DATA_PATH")),
		LogLevel:         getenv("SANTA_LOG_LEVEL", "info"),
		LogFormat:        getenv("SANTA_LOG_FORMAT", "json"),
		ResultCacheSize:  getenvInt("SANTA_RESULT_CACHE", 256),
		PingInterval:     54 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		ClientSendBuffer: 256,
		MaxMessageSize:   1 << 16,
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
