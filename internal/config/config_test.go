package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Ensure no env vars interfere
	for _, key := range []string{
		"AMBIENTLOG_PORT", "AMBIENTLOG_HOST", "AMBIENTLOG_CHUNK_SECONDS",
		"AMBIENTLOG_HISTORY_MAX", "AMBIENTLOG_JOURNAL_PATH", "AMBIENTLOG_SYSTEM_PROMPT",
		"AMBIENTLOG_OPENAI_BASE_URL", "OPENAI_API_KEY", "AMBIENTLOG_WHISPER_MODEL",
		"AMBIENTLOG_CHAT_MODEL", "AMBIENTLOG_WATCH_DIR", "AMBIENTLOG_LOG_DIR",
		"AMBIENTLOG_LOG_FORMAT", "AMBIENTLOG_RATE_LIMIT", "AMBIENTLOG_ENABLE_TLS",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want %q", cfg.Host, "0.0.0.0")
	}
	if cfg.ChunkSeconds != 5 {
		t.Errorf("ChunkSeconds = %d, want 5", cfg.ChunkSeconds)
	}
	if cfg.HistoryMax != 40 {
		t.Errorf("HistoryMax = %d, want 40", cfg.HistoryMax)
	}
	if cfg.JournalPath != "conversation_log.txt" {
		t.Errorf("JournalPath = %q, want default", cfg.JournalPath)
	}
	if cfg.BaseURL != "https://api.openai.com" {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
	if cfg.WhisperModel != "whisper-1" {
		t.Errorf("WhisperModel = %q, want whisper-1", cfg.WhisperModel)
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Errorf("ChatModel = %q, want gpt-4o-mini", cfg.ChatModel)
	}
	if cfg.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("SystemPrompt = %q, want built-in default", cfg.SystemPrompt)
	}
	if cfg.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.APIKey)
	}
	if cfg.WatchDir != "" {
		t.Errorf("WatchDir = %q, want empty", cfg.WatchDir)
	}
	if cfg.RateLimit != 0 {
		t.Errorf("RateLimit = %d, want 0", cfg.RateLimit)
	}
	if cfg.EnableTLS {
		t.Error("EnableTLS should be false by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AMBIENTLOG_PORT", "9999")
	t.Setenv("AMBIENTLOG_HOST", "127.0.0.1")
	t.Setenv("AMBIENTLOG_CHUNK_SECONDS", "10")
	t.Setenv("AMBIENTLOG_HISTORY_MAX", "12")
	t.Setenv("AMBIENTLOG_JOURNAL_PATH", "/tmp/journal.jsonl")
	t.Setenv("OPENAI_API_KEY", "sk-test123")
	t.Setenv("AMBIENTLOG_WATCH_DIR", "/tmp/inbox")
	t.Setenv("AMBIENTLOG_ENABLE_TLS", "true")

	cfg := Load()

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want 127.0.0.1", cfg.Host)
	}
	if cfg.ChunkSeconds != 10 {
		t.Errorf("ChunkSeconds = %d, want 10", cfg.ChunkSeconds)
	}
	if cfg.HistoryMax != 12 {
		t.Errorf("HistoryMax = %d, want 12", cfg.HistoryMax)
	}
	if cfg.JournalPath != "/tmp/journal.jsonl" {
		t.Errorf("JournalPath = %q, want /tmp/journal.jsonl", cfg.JournalPath)
	}
	if cfg.APIKey != "sk-test123" {
		t.Errorf("APIKey = %q, want sk-test123", cfg.APIKey)
	}
	if cfg.WatchDir != "/tmp/inbox" {
		t.Errorf("WatchDir = %q, want /tmp/inbox", cfg.WatchDir)
	}
	if !cfg.EnableTLS {
		t.Error("EnableTLS should be true")
	}
}

func TestInvalidIntFallsBack(t *testing.T) {
	t.Setenv("AMBIENTLOG_PORT", "not-a-number")
	t.Setenv("AMBIENTLOG_CHUNK_SECONDS", "")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want fallback 8080", cfg.Port)
	}
	if cfg.ChunkSeconds != 5 {
		t.Errorf("ChunkSeconds = %d, want fallback 5", cfg.ChunkSeconds)
	}
}

func TestListenAddr(t *testing.T) {
	cfg := &Config{Host: "0.0.0.0", Port: 8080}
	if got := cfg.ListenAddr(); got != "0.0.0.0:8080" {
		t.Errorf("ListenAddr() = %q, want 0.0.0.0:8080", got)
	}
}
