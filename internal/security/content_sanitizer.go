// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー入力のHTMLをサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力のサニタイズ機能のインターフェースを定義する。
// タスク・習慣・ノート・予定の保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は本文フィールド（ノート内容、予定の説明など）をサニタイズする。
	// 基本的な整形タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em）
	// のみを通過させ、script等のタグとon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。冪等。
	Sanitize(raw string) string

	// SanitizeText はタイトルやタグなど単一行フィールド向けに
	// 全タグを除去し、前後の空白をトリムして返す。
	SanitizeText(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	body   *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 本文用ポリシーは基本整形タグのみ許可し、aタグにはtarget="_blank"と
// rel="noopener noreferrer"を強制付与する。単一行用ポリシーは全タグを除去する。
func NewContentSanitizer() *contentSanitizer {
	body := bluemonday.NewPolicy()

	// 許可リストに無いタグ（script, iframe, style等）と
	// on*イベント属性は自動的に除去される。
	body.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	body.AllowAttrs("href").OnElements("a")
	body.AllowStandardURLs()
	body.AddTargetBlankToFullyQualifiedLinks(true)
	body.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		body:   body,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize は本文フィールドをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.body.Sanitize(raw)
}

// SanitizeText は単一行フィールドから全タグを除去して返す。
func (s *contentSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.strict.Sanitize(raw))
}
