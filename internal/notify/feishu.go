package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	maxReplySize          = 64 << 10
)

var (
	ErrWebhookStatus   = errors.New("webhook returned unexpected status")
	ErrWebhookRejected = errors.New("webhook rejected message")
)

// FeishuOptions configures a Feishu notifier.
type FeishuOptions struct {
	WebhookURL string
	Timeout    time.Duration
	// Locale is the key of the post content block, e.g. "zh_cn" or "en_us".
	Locale        string
	RatePerSecond float64
}

// Feishu posts rich text messages to a Feishu/Lark custom bot webhook.
type Feishu struct {
	url     string
	locale  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewFeishu builds a webhook notifier. Sends are paced to RatePerSecond.
func NewFeishu(opts FeishuOptions) *Feishu {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWebhookTimeout
	}
	if opts.Locale == "" {
		opts.Locale = "zh_cn"
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Feishu{
		url:     opts.WebhookURL,
		locale:  opts.Locale,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

type postMessage struct {
	MsgType string      `json:"msg_type"`
	Content postContent `json:"content"`
}

type postContent struct {
	Post map[string]postBody `json:"post"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type webhookReply struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
}

// Payload builds the webhook body for a message.
func (f *Feishu) Payload(title, body string) ([]byte, error) {
	msg := postMessage{
		MsgType: "post",
		Content: postContent{
			Post: map[string]postBody{
				f.locale: {
					Title:   title,
					Content: [][]postElement{{{Tag: "text", Text: body}}},
				},
			},
		},
	}
	return json.Marshal(msg)
}

// Notify implements Notifier.
func (f *Feishu) Notify(ctx context.Context, title, body string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	payload, err := f.Payload(title, body)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", ErrWebhookStatus, resp.Status, bytes.TrimSpace(reply))
	}

	var parsed webhookReply
	if err := json.Unmarshal(reply, &parsed); err == nil && parsed.Code != nil && *parsed.Code != 0 {
		return fmt.Errorf("%w: code %d: %s", ErrWebhookRejected, *parsed.Code, parsed.Msg)
	}
	return nil
}
