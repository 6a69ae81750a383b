// Package openai is a minimal client for the two OpenAI-compatible endpoints
// the pipeline depends on: audio transcription and chat completions. It works
// against api.openai.com or any local server speaking the same protocol
// (whisper-fastapi, Ollama, LM Studio) via the configurable base URL.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jwhitfield/ambientlog/internal/history"
)

// ErrMissingAPIKey is returned per call when no credential is configured.
// Credential absence is not a startup-time check — a key provisioned later
// (or a keyless local backend misconfiguration) surfaces here.
var ErrMissingAPIKey = errors.New("openai: no API key configured")

// Client calls an OpenAI-compatible backend.
type Client struct {
	baseURL      string
	apiKey       string
	whisperModel string
	chatModel    string
	logger       *slog.Logger

	transcribeClient *http.Client // transcription uploads are bounded by chunk size
	chatClient       *http.Client // chat completions can run long on big contexts
}

// New creates a Client for the given base URL and credential.
func New(baseURL, apiKey, whisperModel, chatModel string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		apiKey:           apiKey,
		whisperModel:     whisperModel,
		chatModel:        chatModel,
		logger:           logger,
		transcribeClient: &http.Client{Timeout: 60 * time.Second},
		chatClient:       &http.Client{Timeout: 120 * time.Second},
	}
}

// Transcribe uploads a WAV chunk to /v1/audio/transcriptions and returns the
// recognized text. An empty transcription with HTTP 200 is a valid result.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", c.whisperModel); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	fw, err := mw.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.transcribeClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("transcription backend returned %d: %s", resp.StatusCode, msg)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	c.logger.Info("chunk transcribed", "bytes", len(wav), "chars", len(text))
	return text, nil
}

// Chat sends the role-tagged context to /v1/chat/completions and returns the
// first choice's message content.
func (c *Client) Chat(ctx context.Context, messages []history.Message) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	payload := struct {
		Model    string            `json:"model"`
		Messages []history.Message `json:"messages"`
	}{
		Model:    c.chatModel,
		Messages: messages,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.chatClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat backend returned %d: %s", resp.StatusCode, msg)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat backend returned no choices")
	}

	reply := strings.TrimSpace(result.Choices[0].Message.Content)
	c.logger.Info("annotation received", "context_msgs", len(messages), "chars", len(reply))
	return reply, nil
}
