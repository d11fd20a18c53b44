// Package policy はレコードへのアクセス可否を判定する純粋な述語を提供する。
// 各操作の入口でPolicyを明示的に評価し、And/Orで合成する。
// 判定はすべてメモリ上の値のみで行い、永続化層には触れない。
package policy

import "github.com/dunedivision/taskhub/internal/model"

// Input はポリシー判定の入力。
// Userはnilの場合がある（未認証）。ResourceOwnerIDとResourceGroupIDsは
// 種別を問わずレコードから取り出した所有者とその共有グループを表す。
type Input struct {
	User             *model.User
	ResourceOwnerID  string
	ResourceGroupIDs []string
}

// Policy はアクセス可否を判定する述語。
type Policy func(in Input) bool

// And はすべてのポリシーが許可した場合にのみ許可する合成ポリシーを返す。
func And(policies ...Policy) Policy {
	return func(in Input) bool {
		for _, p := range policies {
			if !p(in) {
				return false
			}
		}
		return true
	}
}

// Or はいずれかのポリシーが許可すれば許可する合成ポリシーを返す。
func Or(policies ...Policy) Policy {
	return func(in Input) bool {
		for _, p := range policies {
			if p(in) {
				return true
			}
		}
		return false
	}
}

// IsAuthenticated は認証済みユーザーを許可する。
func IsAuthenticated(in Input) bool {
	return in.User != nil
}

// IsOwner はレコードの所有者を許可する。
func IsOwner(in Input) bool {
	return in.User != nil && in.ResourceOwnerID != "" && in.User.ID == in.ResourceOwnerID
}

// IsSuperuser はスーパーユーザーを許可する。
func IsSuperuser(in Input) bool {
	return in.User != nil && in.User.IsSuperuser
}

// IsStaff はスタッフまたはスーパーユーザーを許可する。
func IsStaff(in Input) bool {
	return in.User != nil && (in.User.IsStaff || in.User.IsSuperuser)
}

// SharesGroup はユーザーの所属グループとレコードの共有グループに
// 共通集合がある場合に許可する。
func SharesGroup(in Input) bool {
	if in.User == nil {
		return false
	}
	for _, g := range in.User.Groups {
		for _, id := range in.ResourceGroupIDs {
			if g.ID == id {
				return true
			}
		}
	}
	return false
}

// InAnyRole は指定名のいずれかのグループに所属するユーザーを許可する。
// スーパーユーザーは常に許可される（認可上は全グループの一員）。
func InAnyRole(names ...string) Policy {
	return func(in Input) bool {
		if in.User == nil {
			return false
		}
		for _, name := range names {
			if in.User.InGroup(name) {
				return true
			}
		}
		return false
	}
}

// CanView は閲覧可否を判定する。
// 所有者、共有グループのメンバー、スーパーユーザーのみ許可。
var CanView = Or(IsOwner, SharesGroup, IsSuperuser)

// CanCreate は作成可否を判定する。認証済みなら誰でも作成できる。
// 作成されるレコードの所有者は常に操作ユーザーに強制される。
var CanCreate = IsAuthenticated

// CanModify はAPI経由の更新・削除可否を判定する。
// 所有者またはスーパーユーザーのみ。共有グループのメンバーは閲覧のみ。
var CanModify = Or(IsOwner, IsSuperuser)

// WebCanDelete はWeb画面経由の削除可否を判定するポリシーを返す。
// APIと異なり所有者かどうかは見ず、設定されたロール集合への所属で判定する。
// Web画面ではこのゲートをオブジェクト取得より先に評価する。
func WebCanDelete(roles []string) Policy {
	return Or(InAnyRole(roles...), IsSuperuser)
}
