// アイテムサービスのエントリポイント。
// 単一のアイテムコレクションに対するCRUD APIを、ロールベースの認証の背後で提供する。
package main

import (
	"log"

	"github.com/nao1215/item/internal/item"
)

func main() {
	cfg := item.LoadConfig()

	server, err := item.NewServer(cfg)
	if err != nil {
		log.Fatalf("アイテムサーバーの初期化に失敗: %v", err)
	}

	log.Printf("アイテムサービスを起動します: :%s (db=%s)", cfg.Port, cfg.DBPath)
	runErr := server.Run()

	// log.Fatalfはdeferを実行しないため、終了前に明示的に閉じる
	if err := server.Close(); err != nil {
		log.Printf("データベース接続のクローズに失敗: %v", err)
	}
	if runErr != nil {
		log.Fatalf("アイテムサービスの起動に失敗: %v", runErr)
	}
}
