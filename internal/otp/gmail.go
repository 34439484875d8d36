package otp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// GmailSource searches a mailbox for forwarded SMS mail carrying the
// login code. Used as the fallback when the Telegram feed stays quiet.
type GmailSource struct {
	client *resty.Client
	sender string
	wait   time.Duration
}

type gmailListResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type gmailMessage struct {
	InternalDate string `json:"internalDate"`
	Snippet      string `json:"snippet"`
	Payload      struct {
		Body struct {
			Data string `json:"data"`
		} `json:"body"`
		Parts []struct {
			MimeType string `json:"mimeType"`
			Body     struct {
				Data string `json:"data"`
			} `json:"body"`
		} `json:"parts"`
	} `json:"payload"`
}

func NewGmailSource(accessToken, senderFilter string, wait time.Duration) *GmailSource {
	client := resty.New().
		SetBaseURL("https://gmail.googleapis.com/gmail/v1/users/me").
		SetAuthToken(accessToken).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &GmailSource{
		client: client,
		sender: senderFilter,
		wait:   wait,
	}
}

// pollInterval backs the mailbox polling off as the wait drags on.
func pollInterval(elapsed time.Duration) time.Duration {
	switch {
	case elapsed < time.Minute:
		return 3 * time.Second
	case elapsed < 5*time.Minute:
		return 10 * time.Second
	default:
		return 30 * time.Second
	}
}

func (s *GmailSource) Name() string { return "gmail" }

func (s *GmailSource) WaitForCode(ctx context.Context, notBefore time.Time) (string, error) {
	started := time.Now()
	deadline := started.Add(s.wait)
	query := fmt.Sprintf("from:%s after:%d", s.sender, notBefore.Unix())

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var list gmailListResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParam("q", query).
			SetQueryParam("maxResults", "5").
			SetResult(&list).
			Get("/messages")
		if err != nil {
			return "", fmt.Errorf("gmail list failed: %w", err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("gmail list returned %d", resp.StatusCode())
		}

		for _, m := range list.Messages {
			code, ok, err := s.checkMessage(ctx, m.ID, notBefore)
			if err != nil {
				return "", err
			}
			if ok {
				return code, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval(time.Since(started))):
		}
	}
	return "", fmt.Errorf("gmail: no code within %s", s.wait)
}

func (s *GmailSource) checkMessage(ctx context.Context, id string, notBefore time.Time) (string, bool, error) {
	var msg gmailMessage
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&msg).
		Get("/messages/" + id)
	if err != nil {
		return "", false, fmt.Errorf("gmail get message failed: %w", err)
	}
	if resp.IsError() {
		return "", false, fmt.Errorf("gmail get message returned %d", resp.StatusCode())
	}

	if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil {
		if time.UnixMilli(ms).Before(notBefore) {
			return "", false, nil
		}
	}

	for _, body := range messageBodies(msg) {
		if code, ok := extractCode(body); ok {
			return code, true, nil
		}
	}
	return "", false, nil
}

// messageBodies collects every text candidate in the message, the
// snippet first since it is already decoded.
func messageBodies(msg gmailMessage) []string {
	out := []string{msg.Snippet}
	if data := decodeBody(msg.Payload.Body.Data); data != "" {
		out = append(out, data)
	}
	for _, part := range msg.Payload.Parts {
		if data := decodeBody(part.Body.Data); data != "" {
			out = append(out, data)
		}
	}
	return out
}

func decodeBody(data string) string {
	if data == "" {
		return ""
	}
	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		return ""
	}
	return string(raw)
}
