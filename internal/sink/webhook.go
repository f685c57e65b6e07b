package sink

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ct-watchtower/watchtower/internal/model"
)

const defaultWebhookTimeout = 5 * time.Second

// signatureHeader is the header name the original CT watchlist tooling
// signs requests with; kept for compatibility with existing receivers.
const signatureHeader = "X-CTScout-Signature"

// Webhook POSTs a JSON body to url, optionally HMAC-SHA256-signing the
// exact request bytes when secret is non-empty.
type Webhook struct {
	url    string
	secret string
	hc     *http.Client
}

// NewWebhook creates a Webhook sink. timeout <= 0 uses the 5s default.
func NewWebhook(url, secret string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	return &Webhook{
		url:    url,
		secret: secret,
		hc:     &http.Client{Timeout: timeout},
	}
}

func (wh *Webhook) Emit(ctx context.Context, rec model.MatchRecord) error {
	body, err := json.Marshal(toPayload(rec))
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if wh.secret != "" {
		mac := hmac.New(sha256.New, []byte(wh.secret))
		mac.Write(body)
		req.Header.Set(signatureHeader, hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := wh.hc.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}

	return nil
}

func (wh *Webhook) Flush(context.Context) error { return nil }
