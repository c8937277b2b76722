package item

import (
	"context"
	"fmt"

	"github.com/nao1215/item/pkg/event"
)

// Service はアイテムの一覧取得・参照・作成・更新・削除を行う。
// 認可とリクエストの検証は呼び出し側（HTTPハンドラ）で済んでいること。
type Service struct {
	// store はアイテムの永続化先。
	store Store
}

// NewService は新しいServiceを生成する。
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List はフィルタに一致するアイテムを返す。
// アイテムが1件も無い場合はErrEmpty、フィルタに一致するものが無い場合はErrNoMatchを返す。
func (s *Service) List(ctx context.Context, f Filter) ([]Item, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmpty
	}

	items, err := s.store.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoMatch
	}
	return items, nil
}

// Get は論理IDでアイテムを取得する。
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.store.FindOne(ctx, id)
}

// Create はアイテムを作成する。IDはストアが採番し、itのIDは無視する。
func (s *Service) Create(ctx context.Context, it Item, actor string) (Item, error) {
	if it.Priority == "" {
		it.Priority = PriorityLow
	}
	if !it.Priority.Valid() {
		return Item{}, fmt.Errorf("不正な優先度です: %q", it.Priority)
	}
	it.ID = 0
	return s.store.Insert(ctx, it, actor)
}

// Update はパッチをマージしてアイテムを更新し、更新後のアイテムを返す。
// パッチが空の場合は何も書き込まず、現在のアイテムを返す。
func (s *Service) Update(ctx context.Context, id int64, p Patch, actor string) (Item, error) {
	if p.Priority != nil && !p.Priority.Valid() {
		return Item{}, fmt.Errorf("不正な優先度です: %q", *p.Priority)
	}
	if p.Empty() {
		return s.store.FindOne(ctx, id)
	}
	return s.store.Update(ctx, id, p, actor)
}

// Delete はアイテムを削除する。
func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	return s.store.Delete(ctx, id, actor)
}

// Events はアイテムの変更履歴を返す。アイテムが削除済みでも履歴は取得できる。
// 履歴が1件も無い場合はErrNotFoundを返す。
func (s *Service) Events(ctx context.Context, id int64) ([]event.Event, error) {
	events, err := s.store.ListEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}
