package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dunedivision/taskhub/internal/model"
)

// defaultSchedulerTimeout はスケジューラAPI呼び出しの既定タイムアウト。
const defaultSchedulerTimeout = 10 * time.Second

// ScheduleRequest はリマインダー予約APIへのリクエストボディ。
type ScheduleRequest struct {
	DueAtIso  string `json:"dueAtIso"`
	OwnerID   string `json:"ownerId"`
	UserEmail string `json:"userEmail"`
	Template  string `json:"template"`
	CtaURL    string `json:"ctaUrl"`
	UnsubURL  string `json:"unsubUrl"`
	Timezone  string `json:"timezone"`
}

// SchedulerClient はリマインダー予約APIのインターフェース。
type SchedulerClient interface {
	// ScheduleTask は指定タスクのリマインダー送信を予約する。
	// APIがエラーステータスを返した場合はmodel.SchedulerErrorを返す。
	ScheduleTask(ctx context.Context, taskID string, req ScheduleRequest) error
}

// Scheduler はHTTP経由でリマインダー予約APIを呼び出すSchedulerClientの実装。
type Scheduler struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ SchedulerClient = (*Scheduler)(nil)

// NewScheduler はSchedulerを生成する。timeoutが0の場合は既定値を使う。
func NewScheduler(baseURL, apiKey string, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = defaultSchedulerTimeout
	}
	return &Scheduler{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// ScheduleTask はPOST {base}/tasks/{id}/scheduleを呼び出す。
func (s *Scheduler) ScheduleTask(ctx context.Context, taskID string, scheduleReq ScheduleRequest) error {
	body, err := json.Marshal(scheduleReq)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/tasks/%s/schedule", s.baseURL, url.PathEscape(taskID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create schedule request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call scheduler API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(resp.Body)
		return &model.SchedulerError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return nil
}
