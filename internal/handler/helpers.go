// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dunedivision/taskhub/internal/middleware"
	"github.com/dunedivision/taskhub/internal/model"
)

// UserLoader は認証済みユーザーの読み込みに必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// currentUser はリクエストコンテキストのユーザーIDからユーザーを読み込む。
// セッションミドルウェアを通過したリクエストでのみ有効。
func currentUser(r *http.Request, loader UserLoader) (*model.User, error) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return nil, model.NewUnauthorizedError()
	}
	user, err := loader.FindByID(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}

// pageParam はクエリ文字列からページ番号（1始まり）を読み取る。
// 欠落・不正値は1ページ目として扱う。
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをJSONとして読み取る。
// 解析失敗時はfalseを返し、400レスポンスを書き込み済みにする。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// formatTime はRFC 3339のUTC文字列に整形する。
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatTimePtr はnil可の時刻をRFC 3339文字列のポインタに整形する。
func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
