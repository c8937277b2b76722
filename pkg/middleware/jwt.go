package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer はこのサービスが発行するJWTのiss。
const tokenIssuer = "item-service"

// tokenTTL は発行するトークンの有効期間。
const tokenTTL = 24 * time.Hour

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Role はユーザーのロール。認可判定に使用する。
	Role Role `json:"role"`
}

// GenerateJWT はユーザーIDとロールからHS256で署名したJWTトークンを生成する。
// 開発用トークン発行エンドポイントとシードツールが呼び出す。
func GenerateJWT(secret, userID string, role Role) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
		UserID: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTVerifier は共有シークレットでHS256トークンを検証するVerifier。
type JWTVerifier struct {
	// secret はHMAC署名の検証に使用する秘密鍵。
	secret []byte
}

// NewJWTVerifier は新しいJWTVerifierを生成する。
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify はトークンの署名・有効期限・ロールクレームを検証し、Principalを返す。
func (v *JWTVerifier) Verify(tokenString string) (Principal, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return Principal{}, errors.New("トークンが無効です")
	}
	if claims.Role == "" {
		return Principal{}, errors.New("roleクレームがありません")
	}

	return Principal{UserID: claims.UserID, Role: claims.Role}, nil
}
