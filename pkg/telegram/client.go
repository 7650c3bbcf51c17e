// Package telegram is the delivery sink client.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vidrelay/vidrelay/internal/config"
	"github.com/vidrelay/vidrelay/internal/domain"
)

// Client sends media and text messages to the configured chat.
type Client interface {
	// SendPhoto sends an image attachment with a caption.
	SendPhoto(ctx context.Context, caption, photoURL string) error
	// SendVideo sends a video attachment with playback metadata.
	SendVideo(ctx context.Context, caption, videoURL string, meta VideoMeta) error
	// SendMessage sends plain text.
	SendMessage(ctx context.Context, text string) error
}

// VideoMeta carries optional playback hints for video attachments.
// Zero fields are omitted from the payload.
type VideoMeta struct {
	Width        int
	Height       int
	Duration     int
	ThumbnailURL string
}

// SendError is a non-success response from the sink, kept with its status
// and body for logging.
type SendError struct {
	Method string
	Status int
	Body   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Method, e.Status, e.Body)
}

func (e *SendError) Unwrap() error {
	return domain.ErrDeliveryRejected
}

// HTTPClient implements Client against the Bot API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	chatID     string
}

var _ Client = (*HTTPClient)(nil)

// NewClient creates a new delivery sink client.
func NewClient(cfg config.TelegramConfig) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
	}
}

// SendPhoto sends an image attachment with a caption.
func (c *HTTPClient) SendPhoto(ctx context.Context, caption, photoURL string) error {
	return c.call(ctx, "sendPhoto", map[string]any{
		"chat_id": c.chatID,
		"photo":   photoURL,
		"caption": caption,
	})
}

// SendVideo sends a video attachment with playback metadata.
func (c *HTTPClient) SendVideo(ctx context.Context, caption, videoURL string, meta VideoMeta) error {
	payload := map[string]any{
		"chat_id": c.chatID,
		"video":   videoURL,
		"caption": caption,
	}
	if meta.Width > 0 {
		payload["width"] = meta.Width
	}
	if meta.Height > 0 {
		payload["height"] = meta.Height
	}
	if meta.Duration > 0 {
		payload["duration"] = meta.Duration
	}
	if meta.ThumbnailURL != "" {
		payload["thumbnail"] = meta.ThumbnailURL
	}
	return c.call(ctx, "sendVideo", payload)
}

// SendMessage sends plain text.
func (c *HTTPClient) SendMessage(ctx context.Context, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id": c.chatID,
		"text":    text,
	})
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *HTTPClient) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var api apiResponse
	_ = json.Unmarshal(respBody, &api)

	if resp.StatusCode != http.StatusOK || !api.OK {
		return &SendError{
			Method: method,
			Status: resp.StatusCode,
			Body:   string(respBody),
		}
	}

	return nil
}
