package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
)

// webhookPayload はチャットレイヤーへPOSTするイベントのJSON表現。
type webhookPayload struct {
	ItemID      string    `json:"item_id"`
	OwnerID     string    `json:"owner_id"`
	URL         string    `json:"url"`
	ProductName string    `json:"product_name"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	ObservedAt  time.Time `json:"observed_at"`
}

// WebhookNotifier はイベントJSONを設定済みURLへPOSTするNotifier実装。
// 配送先は外部のチャットレイヤーで、失敗しても再送はしない。
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier はWebhookNotifierを生成する。
func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify はイベントをJSONとしてwebhook URLへPOSTする。
// 2xx以外のレスポンスはエラーとして返す。
func (n *WebhookNotifier) Notify(ctx context.Context, event *model.TransitionEvent) error {
	payload := webhookPayload{
		ItemID:      event.ItemID,
		OwnerID:     event.OwnerID,
		URL:         event.URL,
		ProductName: event.ProductName,
		From:        string(event.From),
		To:          string(event.To),
		ObservedAt:  event.ObservedAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("通知ペイロードの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("通知リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("通知の送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("通知先がエラーを返しました: status=%d", resp.StatusCode)
	}

	n.logger.Info("在庫復活通知を送信しました",
		slog.String("item_id", event.ItemID),
		slog.String("owner_id", event.OwnerID),
	)
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
