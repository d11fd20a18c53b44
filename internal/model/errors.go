package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, record, external, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeDuplicateUser   = "DUPLICATE_USER"
	ErrCodeInvalidLogin    = "INVALID_LOGIN"
	ErrCodeSchedulerFailed = "SCHEDULER_FAILED"
	ErrCodeGroupNotFound   = "GROUP_NOT_FOUND"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
)

// NewNotFoundError はレコード未検出エラーを生成する。
// ポリシーにより不可視のレコードも同一エラーで応答し、存在を漏らさない。
func NewNotFoundError(kind RecordKind, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定されたレコードが見つかりません: %s/%s", kind, id),
		Category: "record",
		Action:   "IDを確認してください。",
	}
}

// NewForbiddenError は認可拒否エラーを生成する。
// 可視だが操作権限のないレコードへの書き込みでのみ使用する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "レコードの所有者または管理者に依頼してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewValidationError は入力値エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewDuplicateUserError はユーザー名またはメールアドレスの重複エラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "このユーザー名またはメールアドレスは既に使用されています。",
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewInvalidLoginError はログイン失敗エラーを生成する。
// ユーザー名の存在有無を漏らさないため、原因は区別しない。
func NewInvalidLoginError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLogin,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewGroupNotFoundError はグループ未検出エラーを生成する。
func NewGroupNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeGroupNotFound,
		Message:  fmt.Sprintf("指定されたグループが見つかりません: %s", name),
		Category: "validation",
		Action:   "グループ名を確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// SchedulerError は外部スケジューラAPIの呼び出し失敗を表す。
// ステータスコードとレスポンスボディを保持し、呼び出し元まで伝播する
// （イベントバス送出の失敗と異なり、握りつぶさない）。
type SchedulerError struct {
	Status int
	Body   string
}

// Error はerrorインターフェースを実装する。
func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler API returned %d: %s", e.Status, e.Body)
}
