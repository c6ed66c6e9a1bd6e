package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NotifyClient calls the notification collaborator. Delivery is best-effort:
// a failure is logged and returned, but callers never roll back settlement
// state because of it.
type NotifyClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewNotifyClient(baseURL string, log *zap.Logger) *NotifyClient {
	return &NotifyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (c *NotifyClient) GiftSent(ctx context.Context, recipientContact, giftID, claimURL string) error {
	return c.post(ctx, "gift_sent", map[string]any{
		"contact":   recipientContact,
		"gift_id":   giftID,
		"claim_url": claimURL,
	})
}

func (c *NotifyClient) GiftRefunded(ctx context.Context, senderContact, giftID, amount, symbol string) error {
	return c.post(ctx, "gift_refunded", map[string]any{
		"contact": senderContact,
		"gift_id": giftID,
		"amount":  amount,
		"symbol":  symbol,
	})
}

func (c *NotifyClient) post(ctx context.Context, kind string, payload map[string]any) error {
	body, _ := json.Marshal(map[string]any{
		"type":    kind,
		"payload": payload,
	})

	url := fmt.Sprintf("%s/internal/notify", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("failed to send notification", zap.String("type", kind), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("notification failed", zap.String("type", kind), zap.Int("status", resp.StatusCode))
	}
	return nil
}
