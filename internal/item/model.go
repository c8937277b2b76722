package item

import (
	"slices"
	"time"

	"github.com/nao1215/item/pkg/event"
)

// Priority はアイテムの優先度。
type Priority string

const (
	// PriorityNone は優先度なし。
	PriorityNone Priority = "None"
	// PriorityLow は低優先度。作成時のデフォルト。
	PriorityLow Priority = "Low"
	// PriorityMedium は中優先度。
	PriorityMedium Priority = "Medium"
	// PriorityHigh は高優先度。
	PriorityHigh Priority = "High"
)

// priorities は有効な優先度の一覧。
var priorities = []Priority{PriorityNone, PriorityLow, PriorityMedium, PriorityHigh}

// Valid は優先度が定義済みの値かどうかを返す。
func (p Priority) Valid() bool {
	return slices.Contains(priorities, p)
}

// Item は永続化されるアイテム。
type Item struct {
	// ID はアプリケーションが採番する論理ID。ストレージ内部のキーとは別物。
	ID int64 `json:"id"`
	// Name はアイテム名。
	Name string `json:"name"`
	// DueDate は期日。未設定の場合はnil。
	DueDate *time.Time `json:"dueDate,omitempty"`
	// Completed は完了状態。
	Completed bool `json:"completed"`
	// Priority は優先度。
	Priority Priority `json:"priority"`
}

// snapshot はイベントに記録する形式へ変換する。
func (it Item) snapshot() event.ItemSnapshot {
	return event.ItemSnapshot{
		Name:      it.Name,
		DueDate:   it.DueDate,
		Completed: it.Completed,
		Priority:  string(it.Priority),
	}
}

// Patch はアイテム更新時にマージするフィールド。nilのフィールドは変更しない。
type Patch struct {
	Name      *string
	DueDate   *time.Time
	Completed *bool
	Priority  *Priority
}

// Empty は更新対象のフィールドが1つも無いかどうかを返す。
func (p Patch) Empty() bool {
	return p.Name == nil && p.DueDate == nil && p.Completed == nil && p.Priority == nil
}

// Fields は指定されたフィールドのJSON名を返す。
func (p Patch) Fields() []string {
	var fields []string
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.DueDate != nil {
		fields = append(fields, "dueDate")
	}
	if p.Completed != nil {
		fields = append(fields, "completed")
	}
	if p.Priority != nil {
		fields = append(fields, "priority")
	}
	return fields
}

// Apply はパッチをアイテムにマージした結果を返す。
func (p Patch) Apply(it Item) Item {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.DueDate != nil {
		d := *p.DueDate
		it.DueDate = &d
	}
	if p.Completed != nil {
		it.Completed = *p.Completed
	}
	if p.Priority != nil {
		it.Priority = *p.Priority
	}
	return it
}
