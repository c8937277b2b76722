// Package event はアイテムの変更履歴として記録するイベントを定義する。
//
// イベントは不変（immutable）であり、追記のみで運用される。
// アイテムが削除された後もイベントは残る。
package event

import (
	"encoding/json"
	"time"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeItemCreated はアイテムが作成されたことを表す。
	TypeItemCreated Type = "ItemCreated"
	// TypeItemUpdated はアイテムが更新されたことを表す。
	TypeItemUpdated Type = "ItemUpdated"
	// TypeItemDeleted はアイテムが削除されたことを表す。
	TypeItemDeleted Type = "ItemDeleted"
)

// Event はアイテムに対する1回の変更を表す不変のレコード。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// ItemID は対象アイテムの論理ID。
	ItemID int64 `json:"item_id"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Actor は変更を行ったユーザーのID。
	Actor string `json:"actor"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// ItemSnapshot はイベント時点でのアイテムの状態。
type ItemSnapshot struct {
	Name      string     `json:"name"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	Completed bool       `json:"completed"`
	Priority  string     `json:"priority"`
}

// ItemCreatedData はItemCreatedイベントのデータ。
type ItemCreatedData struct {
	// Item は作成されたアイテム。
	Item ItemSnapshot `json:"item"`
}

// ItemUpdatedData はItemUpdatedイベントのデータ。
type ItemUpdatedData struct {
	// Before は更新前の状態。
	Before ItemSnapshot `json:"before"`
	// After は更新後の状態。
	After ItemSnapshot `json:"after"`
	// Fields は更新リクエストで指定されたフィールド名。
	Fields []string `json:"fields"`
}

// ItemDeletedData はItemDeletedイベントのデータ。
type ItemDeletedData struct {
	// Item は削除直前のアイテム。
	Item ItemSnapshot `json:"item"`
}
