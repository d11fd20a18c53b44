// Package notify はレコード作成を外部の通知基盤へ伝える機能を提供する。
// ドメインイベントバスへの発行と、リマインダーをスケジュールする
// 外部APIの呼び出しを含む。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// eventSource は発行するイベントのソース識別子。
	eventSource = "yourapp.tasks"
	// taskCreatedDetailType はタスク作成イベントの種別名。
	taskCreatedDetailType = "TaskCreated"
)

// TaskCreatedDetail はタスク作成イベントのペイロード。
type TaskCreatedDetail struct {
	TaskID     string `json:"task_id"`
	OwnerID    string `json:"owner_id"`
	OwnerEmail string `json:"owner_email"`
	OwnerName  string `json:"owner_name"`
	TaskTitle  string `json:"task_title"`
	DueAtIso   string `json:"dueAtIso"`
}

// EventBus はドメインイベントバスへの発行インターフェース。
type EventBus interface {
	// PutTaskCreated はタスク作成イベントをバスへ発行する。
	PutTaskCreated(ctx context.Context, detail TaskCreatedDetail) error
}

// busEntry はバスAPIのエントリ形式。Detailはシリアライズ済みJSON文字列。
type busEntry struct {
	Source       string `json:"Source"`
	DetailType   string `json:"DetailType"`
	Detail       string `json:"Detail"`
	EventBusName string `json:"EventBusName"`
}

type busRequest struct {
	Entries []busEntry `json:"Entries"`
}

// HTTPEventBus はHTTP経由でイベントバスAPIを呼び出すEventBusの実装。
type HTTPEventBus struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	busName    string
}

var _ EventBus = (*HTTPEventBus)(nil)

// NewHTTPEventBus はHTTPEventBusを生成する。
func NewHTTPEventBus(httpClient *http.Client, logger *slog.Logger, endpoint, busName string) *HTTPEventBus {
	return &HTTPEventBus{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		busName:    busName,
	}
}

// PutTaskCreated はタスク作成イベントを1件発行する。
func (b *HTTPEventBus) PutTaskCreated(ctx context.Context, detail TaskCreatedDetail) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal event detail: %w", err)
	}

	body, err := json.Marshal(busRequest{
		Entries: []busEntry{{
			Source:       eventSource,
			DetailType:   taskCreatedDetailType,
			Detail:       string(detailJSON),
			EventBusName: b.busName,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal bus request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create bus request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call event bus: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(resp.Body)
		b.logger.Error("event bus returned an error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("detail_type", taskCreatedDetailType),
		)
		return fmt.Errorf("event bus returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
