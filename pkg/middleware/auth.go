package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// Role はユーザーのロールを表す。ロールの集合は閉じていない。
type Role string

const (
	// RoleAdmin はすべての操作が許可された管理者ロール。
	RoleAdmin Role = "admin"
	// RoleRegular は参照のみ許可された一般ロール。
	RoleRegular Role = "regular"
)

// Principal はトークンから解決された認証済みの主体。
type Principal struct {
	// UserID はユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Role はユーザーのロール。
	Role Role `json:"role"`
}

// Verifier はトークンを検証してPrincipalを解決する。
type Verifier interface {
	Verify(token string) (Principal, error)
}

var (
	// ErrUnauthenticated は資格情報が無い、または検証できないことを表す。
	ErrUnauthenticated = errors.New("認証されていません")
	// ErrForbidden は資格情報は有効だがロールが許可されていないことを表す。
	ErrForbidden = errors.New("この操作を行う権限がありません")
)

// principalKey はGinコンテキストにPrincipalを格納するためのキー。
const principalKey = "principal"

// contextKey はcontext.Contextのキーの型。
type contextKey struct{}

// Authorize はトークンを検証し、ロールがallowedに含まれる場合にPrincipalを返す。
// トークンが空または検証できない場合はErrUnauthenticated、ロールが許可されていない場合はErrForbiddenを返す。
func Authorize(v Verifier, token string, allowed ...Role) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}

	p, err := v.Verify(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if !slices.Contains(allowed, p.Role) {
		return p, fmt.Errorf("%w: role=%s", ErrForbidden, p.Role)
	}
	return p, nil
}

// RequireRoles はBearerトークンを検証し、指定ロールのいずれかを持つリクエストのみ通すGinミドルウェアを返す。
// 検証に成功した場合、PrincipalをGinコンテキストとリクエストのcontext.Contextに設定する。
func RequireRoles(v Verifier, allowed ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := cutBearer(authHeader)
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		p, err := Authorize(v, tokenString, allowed...)
		switch {
		case errors.Is(err, ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":         ErrForbidden.Error(),
				"role":          p.Role,
				"allowed_roles": allowed,
			})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Header(headerKeyUserID, p.UserID)
		c.Next()
	}
}

// GetPrincipal はGinコンテキストからPrincipalを取得する。
// RequireRolesミドルウェアが事前に適用されている必要がある。
func GetPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// WithPrincipal はcontext.ContextにPrincipalを設定する。
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext はcontext.ContextからPrincipalを取得する。
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// headerKeyUserID は認証済みユーザーIDを返すHTTPヘッダーキー。
const headerKeyUserID = "X-User-ID"

// cutBearer は "Bearer <token>" 形式のヘッダーからトークンを取り出す。スキーム名の大文字小文字は区別しない。
func cutBearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
