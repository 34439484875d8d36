package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// TelegramSource polls a bot's getUpdates feed for forwarded SMS
// messages carrying the login code.
type TelegramSource struct {
	client   *resty.Client
	chatID   int64
	wait     time.Duration
	interval time.Duration
}

type tgUpdatesResponse struct {
	OK     bool `json:"ok"`
	Result []struct {
		UpdateID int64 `json:"update_id"`
		Message  struct {
			Date int64  `json:"date"`
			Text string `json:"text"`
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"result"`
}

func NewTelegramSource(botToken string, chatID int64, wait time.Duration) *TelegramSource {
	client := resty.New().
		SetBaseURL("https://api.telegram.org/bot" + botToken).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &TelegramSource{
		client:   client,
		chatID:   chatID,
		wait:     wait,
		interval: 3 * time.Second,
	}
}

func (s *TelegramSource) Name() string { return "telegram" }

func (s *TelegramSource) WaitForCode(ctx context.Context, notBefore time.Time) (string, error) {
	deadline := time.Now().Add(s.wait)
	var offset int64

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var out tgUpdatesResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParam("offset", fmt.Sprintf("%d", offset)).
			SetQueryParam("timeout", "0").
			SetResult(&out).
			Get("/getUpdates")
		if err != nil {
			return "", fmt.Errorf("telegram getUpdates failed: %w", err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("telegram getUpdates returned %d", resp.StatusCode())
		}

		for _, upd := range out.Result {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			if s.chatID != 0 && upd.Message.Chat.ID != s.chatID {
				continue
			}
			if time.Unix(upd.Message.Date, 0).Before(notBefore) {
				continue
			}
			if code, ok := extractCode(upd.Message.Text); ok {
				return code, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.interval):
		}
	}
	return "", fmt.Errorf("telegram: no code within %s", s.wait)
}
