// Package config provides configuration management for ambientlog.
// All configuration is via environment variables — no config files with secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration.
type Config struct {
	// Server
	Port int    // AMBIENTLOG_PORT (default: 8080)
	Host string // AMBIENTLOG_HOST (default: 0.0.0.0)

	// Capture pipeline
	ChunkSeconds int    // AMBIENTLOG_CHUNK_SECONDS (default: 5 — duration of each recorded chunk)
	HistoryMax   int    // AMBIENTLOG_HISTORY_MAX (default: 40 entries / 20 exchanges)
	JournalPath  string // AMBIENTLOG_JOURNAL_PATH (default: conversation_log.txt)
	SystemPrompt string // AMBIENTLOG_SYSTEM_PROMPT (default: built-in annotation prompt)

	// OpenAI-compatible backends
	BaseURL      string // AMBIENTLOG_OPENAI_BASE_URL (default: https://api.openai.com)
	APIKey       string // OPENAI_API_KEY (absence is a per-call error, not a startup check)
	WhisperModel string // AMBIENTLOG_WHISPER_MODEL (default: whisper-1)
	ChatModel    string // AMBIENTLOG_CHAT_MODEL (default: gpt-4o-mini)

	// Drop-folder auto-transcription
	WatchDir string // AMBIENTLOG_WATCH_DIR (optional — if set, transcribes new audio files)

	// Process logging
	LogDir    string // AMBIENTLOG_LOG_DIR (optional — if set, tees slog output to a rotating file)
	LogFormat string // AMBIENTLOG_LOG_FORMAT (default: text — or json)
	AccessLog bool   // AMBIENTLOG_ACCESS_LOG (default: false)

	// Abuse protection
	RateLimit int    // AMBIENTLOG_RATE_LIMIT (requests/min per IP, 0 disables)
	RateAllow string // AMBIENTLOG_RATE_ALLOW (comma list of IPs/CIDRs that bypass limiting)

	// TLS
	EnableTLS bool // AMBIENTLOG_ENABLE_TLS (default: false — auto-generates self-signed cert)
}

// DefaultSystemPrompt is the instruction sent ahead of the conversation
// history on every annotation call.
const DefaultSystemPrompt = "You are a concise assistant listening to an ongoing " +
	"conversation captured in short audio chunks. For each new transcript, respond " +
	"with a brief, useful note or answer grounded in the conversation so far."

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:         envInt("AMBIENTLOG_PORT", 8080),
		Host:         envStr("AMBIENTLOG_HOST", "0.0.0.0"),
		ChunkSeconds: envInt("AMBIENTLOG_CHUNK_SECONDS", 5),
		HistoryMax:   envInt("AMBIENTLOG_HISTORY_MAX", 40),
		JournalPath:  envStr("AMBIENTLOG_JOURNAL_PATH", "conversation_log.txt"),
		SystemPrompt: envStr("AMBIENTLOG_SYSTEM_PROMPT", DefaultSystemPrompt),
		BaseURL:      envStr("AMBIENTLOG_OPENAI_BASE_URL", "https://api.openai.com"),
		APIKey:       envStr("OPENAI_API_KEY", ""),
		WhisperModel: envStr("AMBIENTLOG_WHISPER_MODEL", "whisper-1"),
		ChatModel:    envStr("AMBIENTLOG_CHAT_MODEL", "gpt-4o-mini"),
		WatchDir:     envStr("AMBIENTLOG_WATCH_DIR", ""),
		LogDir:       envStr("AMBIENTLOG_LOG_DIR", ""),
		LogFormat:    envStr("AMBIENTLOG_LOG_FORMAT", "text"),
		AccessLog:    envBool("AMBIENTLOG_ACCESS_LOG", false),
		RateLimit:    envInt("AMBIENTLOG_RATE_LIMIT", 0),
		RateAllow:    envStr("AMBIENTLOG_RATE_ALLOW", ""),
		EnableTLS:    envBool("AMBIENTLOG_ENABLE_TLS", false),
	}
}

// ListenAddr returns the formatted listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
