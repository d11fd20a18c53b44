package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2idのパラメータ。ハッシュ文字列のパラメータ部と一致させること。
const (
	passwordSaltLength  = 16
	passwordKeyLength   = 32
	passwordTimeCost    = 3
	passwordMemoryCost  = 64 * 1024
	passwordParallelism = 2
)

// HashPassword はパスワードをArgon2idでハッシュ化する。
// 形式: $argon2id$v=19$m=65536,t=3,p=2$salt$hash
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt,
		passwordTimeCost, passwordMemoryCost, passwordParallelism, passwordKeyLength)

	return "$argon2id$v=19$m=65536,t=3,p=2$" +
		base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(hash), nil
}

// VerifyPassword はパスワードをハッシュと照合する。
func VerifyPassword(password, hashedPassword string) (bool, error) {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("invalid password hash format")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt,
		passwordTimeCost, passwordMemoryCost, passwordParallelism, passwordKeyLength)

	return subtle.ConstantTimeCompare(computed, hash) == 1, nil
}
