// Package seed は稼働中のアイテムサービスのデータを、API経由で初期化・投入する。
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/item/internal/item"
	"github.com/nao1215/item/pkg/httpclient"
)

// Item は投入するアイテム。POST /items のリクエストボディになる。
type Item struct {
	// Name はアイテム名。空の場合は投入をスキップする。
	Name string `json:"name"`
	// DueDate は期日（RFC3339）。空の場合は送信しない。
	DueDate string `json:"dueDate,omitempty"`
	// Completed は完了状態。
	Completed bool `json:"completed"`
	// Priority は優先度。空の場合はサービス側のデフォルト（Low）になる。
	Priority string `json:"priority,omitempty"`
}

// DefaultItems はnowを基準にした投入用のアイテムを返す。期日はすべてnowより未来になる。
func DefaultItems(now time.Time) []Item {
	day := 24 * time.Hour
	return []Item{
		{Name: "change schema", DueDate: now.Add(day).Format(time.RFC3339), Priority: string(item.PriorityHigh)},
		{Name: "write migration", DueDate: now.Add(3 * day).Format(time.RFC3339), Priority: string(item.PriorityMedium)},
		{Name: "review pull request", Priority: string(item.PriorityLow)},
		{Name: "update docs", DueDate: now.Add(7 * day).Format(time.RFC3339), Priority: string(item.PriorityNone)},
	}
}

// Result はシード処理の結果。
type Result struct {
	// Deleted は削除したアイテム数。
	Deleted int
	// Created は作成したアイテム数。
	Created int
	// Skipped は名前が空のためスキップしたアイテム数。
	Skipped int
}

// Seeder はアイテムサービスのAPIを使ってデータを初期化する。
type Seeder struct {
	// client は管理者トークンを設定したHTTPクライアント。
	client *httpclient.Client
}

// New は新しいSeederを生成する。clientには管理者ロールのトークンを設定しておくこと。
func New(client *httpclient.Client) *Seeder {
	return &Seeder{client: client}
}

// Run は既存のアイテムをすべて削除してから、itemsを投入する。
func (s *Seeder) Run(ctx context.Context, items []Item) (Result, error) {
	var res Result

	log.Printf("[Seed] 既存のアイテムを削除します")
	deleted, err := s.Reset(ctx)
	res.Deleted = deleted
	if err != nil {
		return res, err
	}
	log.Printf("[Seed] %d件のアイテムを削除しました", deleted)

	log.Printf("[Seed] アイテムを投入します")
	for _, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			log.Printf("[Seed] 名前が空のアイテムをスキップします")
			res.Skipped++
			continue
		}

		var created item.Item
		if err := s.client.PostJSON(ctx, "/items", it, &created); err != nil {
			return res, fmt.Errorf("アイテム %q の作成に失敗: %w", it.Name, err)
		}
		log.Printf("[Seed] アイテムを追加しました: id=%d name=%s", created.ID, created.Name)
		res.Created++
	}
	return res, nil
}

// Reset は登録されているアイテムをすべて削除し、削除した件数を返す。
func (s *Seeder) Reset(ctx context.Context) (int, error) {
	var items []item.Item
	if err := s.client.GetJSON(ctx, "/items", &items); err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			// 一覧が404の場合は既に空
			return 0, nil
		}
		return 0, fmt.Errorf("アイテム一覧の取得に失敗: %w", err)
	}

	deleted := 0
	for _, it := range items {
		if err := s.client.Delete(ctx, fmt.Sprintf("/items/%d", it.ID)); err != nil {
			return deleted, fmt.Errorf("アイテム %d の削除に失敗: %w", it.ID, err)
		}
		deleted++
	}
	return deleted, nil
}
