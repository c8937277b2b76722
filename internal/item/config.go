package item

import (
	"os"
	"strings"
	"time"
)

// Config はアイテムサービスの設定。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// DBPath はSQLiteデータベースファイルのパス。":memory:" も指定できる。
	DBPath string
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string
	// AllowedOrigins はCORSを許可するオリジン。空の場合はCORSミドルウェアを使用しない。
	AllowedOrigins []string
	// DevTokenEnabled は開発用トークン発行エンドポイントを有効にするかどうか。
	DevTokenEnabled bool
	// Location はdueDateの日付解釈に使うタイムゾーン。
	Location *time.Location
}

// LoadConfig は環境変数から設定を読み込む。未設定の項目にはデフォルト値を使用する。
func LoadConfig() Config {
	return Config{
		Port:            getEnvOr("PORT", "3000"),
		DBPath:          getEnvOr("DB_PATH", "items.db"),
		JWTSecret:       getEnvOr("JWT_SECRET", "dev-secret-key"),
		AllowedOrigins:  splitList(os.Getenv("ALLOWED_ORIGINS")),
		DevTokenEnabled: strings.EqualFold(os.Getenv("DEV_TOKEN_ENABLED"), "true"),
		Location:        time.Local,
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// splitList はカンマ区切りの文字列を分割する。空要素は除外する。
func splitList(s string) []string {
	var list []string
	for v := range strings.SplitSeq(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}
