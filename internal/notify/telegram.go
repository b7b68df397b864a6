package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gold-signal-bot/internal/interfaces"
	"gold-signal-bot/internal/logger"
)

const defaultAPIBase = "https://api.telegram.org"

// TelegramNotifier posts to a channel through the Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ interfaces.Notifier = (*TelegramNotifier)(nil)

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(t.apiBase, "/"), t.botToken, method)
}

func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("telegram: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(ctx, req, "sendMessage")
}

func (t *TelegramNotifier) SendPhoto(ctx context.Context, image []byte, caption string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", t.chatID); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("photo", "image.png")
	if err != nil {
		return err
	}
	if _, err := fw.Write(image); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendPhoto"), &buf)
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return t.do(ctx, req, "sendPhoto")
}

func (t *TelegramNotifier) do(ctx context.Context, req *http.Request, method string) error {
	resp, err := t.client.Do(req)
	if err != nil {
		// the bot token is part of the URL path
		var ue *url.Error
		if errors.As(err, &ue) {
			err = fmt.Errorf("%s: %w", ue.Op, ue.Err)
		}
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram: %s: unexpected status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	logger.Debug(ctx, "Telegram message delivered", "method", method)
	return nil
}

// LogNotifier writes messages to the structured log instead of delivering
// them. Used for dry runs.
type LogNotifier struct{}

var _ interfaces.Notifier = LogNotifier{}

func (LogNotifier) Send(ctx context.Context, text string) error {
	logger.Info(ctx, "Dry run message", "text", text)
	return nil
}

func (LogNotifier) SendPhoto(ctx context.Context, image []byte, caption string) error {
	logger.Info(ctx, "Dry run photo", "bytes", len(image), "caption", caption)
	return nil
}
