// アイテムサービスのシードツール。
// 稼働中のサービスのアイテムをAPI経由ですべて削除し、初期データを投入する。
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/nao1215/item/internal/seed"
	"github.com/nao1215/item/pkg/httpclient"
	"github.com/nao1215/item/pkg/middleware"
)

func main() {
	baseURL := getEnvOr("ITEM_API_URL", "http://localhost:3000")
	secret := getEnvOr("JWT_SECRET", "dev-secret-key")

	token, err := middleware.GenerateJWT(secret, "seed", middleware.RoleAdmin)
	if err != nil {
		log.Fatalf("トークンの生成に失敗: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := seed.New(httpclient.New(baseURL).WithToken(token)).Run(ctx, seed.DefaultItems(time.Now()))
	if err != nil {
		log.Fatalf("シードに失敗: %v", err)
	}
	log.Printf("シードが完了しました: 削除=%d 作成=%d スキップ=%d", res.Deleted, res.Created, res.Skipped)
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
