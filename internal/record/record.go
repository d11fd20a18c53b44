// Package record はタスク・習慣・メモ・予定のCRUDと可視性制御を提供する。
//
// 各サービスは操作の入口でpolicyパッケージの述語を評価する。
// 不可視レコードへの操作は種類を問わずNOT_FOUNDで応答し、
// レコードの存在自体を漏らさない。FORBIDDENは可視だが権限の無い
// 書き込み（共有グループのメンバーによる更新・削除）でのみ返す。
package record

import (
	"context"
	"fmt"
	"strings"

	"github.com/dunedivision/taskhub/internal/model"
	"github.com/dunedivision/taskhub/internal/repository"
)

// PageSize は一覧1ページあたりの件数。
const PageSize = 10

// Page は一覧操作の結果ページを表す。
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// newPage は件数からページ情報を組み立てる。
func newPage[T any](items []T, page, total int) Page[T] {
	totalPages := (total + PageSize - 1) / PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   PageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

// emptyPage は未認証ユーザー向けの空ページを返す。
func emptyPage[T any](page int) Page[T] {
	return newPage([]T{}, page, 0)
}

// pageOffset はページ番号（1始まり）をオフセットに変換する。
// 不正なページ番号は1ページ目に丸める。
func pageOffset(page int) (int, int) {
	if page < 1 {
		page = 1
	}
	return page, (page - 1) * PageSize
}

// normalizeGroupIDs は共有グループIDを重複排除し、全IDの存在を検証する。
// 存在しないIDが含まれる場合はVALIDATION_ERRORを返す。
func normalizeGroupIDs(ctx context.Context, groupRepo repository.GroupRepository, ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	if len(unique) == 0 {
		return unique, nil
	}

	groups, err := groupRepo.FindByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to validate group IDs: %w", err)
	}
	if len(groups) != len(unique) {
		return nil, model.NewValidationError("存在しない共有グループが指定されています")
	}
	return unique, nil
}
