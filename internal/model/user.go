// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはローカル登録ユーザーのみ保持する（OIDC経由ユーザーは空）。
type User struct {
	ID           string
	Username     string
	Email        string
	GivenName    string
	FamilyName   string
	PasswordHash string
	IsStaff      bool
	IsSuperuser  bool
	Groups       []Group
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName はユーザーの表示名を返す。
// 氏名が未設定の場合はusernameにフォールバックする。
func (u *User) DisplayName() string {
	if u.GivenName == "" && u.FamilyName == "" {
		return u.Username
	}
	if u.FamilyName == "" {
		return u.GivenName
	}
	return u.GivenName + " " + u.FamilyName
}

// InGroup は指定名のグループに所属しているかを返す。
// スーパーユーザーは認可判定上すべてのグループの一員として扱う
// （実メンバーシップ行は追加しない）。
func (u *User) InGroup(name string) bool {
	if u.IsSuperuser {
		return true
	}
	for _, g := range u.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// GroupIDs は所属グループのID一覧を返す。
func (u *User) GroupIDs() []string {
	ids := make([]string, 0, len(u.Groups))
	for _, g := range u.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}

// Group はレコード共有とロール判定に使う名前付きグループを表す。
// 名前で一意。初参照時に遅延作成され、自動削除はされない。
type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Claims は外部IDプロバイダから受け取る検証済みクレームを表す。
// ユーザーとグループの同期にのみ使用し、それ自体は永続化しない。
type Claims struct {
	Sub             string   `json:"sub"`
	Email           string   `json:"email"`
	GivenName       string   `json:"given_name"`
	FamilyName      string   `json:"family_name"`
	Name            string   `json:"name"`
	CognitoUsername string   `json:"cognito:username"`
	Groups          []string `json:"cognito:groups"`
}
