package item

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"
)

// 一覧取得で受け付けるクエリパラメータのキー。
const (
	queryKeyName      = "name"
	queryKeyPriority  = "priority"
	queryKeyCompleted = "completed"
	queryKeyDueDate   = "dueDate"
)

// RecognizedQueryKeys は一覧取得で受け付けるクエリパラメータのキー。
// 実際にフィルタとして実装されているキーと一致させている。
var RecognizedQueryKeys = []string{queryKeyName, queryKeyPriority, queryKeyCompleted, queryKeyDueDate}

// dateLayout はdueDateクエリの日付形式（YYYY-MM-DD）。
const dateLayout = "2006-01-02"

// Clause はフィルタを構成する1つの条件。NameContains, PriorityContains, CompletedIs, DueWithin のいずれか。
type Clause interface {
	// Match はアイテムが条件を満たすかどうかを返す。
	Match(it Item) bool
	clause()
}

// NameContains はnameに対する大文字小文字を区別しない部分一致条件。
type NameContains struct {
	Value string
}

// PriorityContains はpriorityに対する大文字小文字を区別しない部分一致条件。
type PriorityContains struct {
	Value string
}

// CompletedIs はcompletedの完全一致条件。
type CompletedIs struct {
	Value bool
}

// DueWithin はdueDateが [From, To] の範囲（両端を含む）にある条件。
type DueWithin struct {
	From time.Time
	To   time.Time
}

func (NameContains) clause()     {}
func (PriorityContains) clause() {}
func (CompletedIs) clause()      {}
func (DueWithin) clause()        {}

// Match はnameが部分文字列を含むかどうかを返す。
func (c NameContains) Match(it Item) bool {
	return containsFold(it.Name, c.Value)
}

// Match はpriorityが部分文字列を含むかどうかを返す。
func (c PriorityContains) Match(it Item) bool {
	return containsFold(string(it.Priority), c.Value)
}

// Match はcompletedが一致するかどうかを返す。
func (c CompletedIs) Match(it Item) bool {
	return it.Completed == c.Value
}

// Match はdueDateが範囲内にあるかどうかを返す。期日未設定のアイテムは一致しない。
func (c DueWithin) Match(it Item) bool {
	if it.DueDate == nil {
		return false
	}
	return !it.DueDate.Before(c.From) && !it.DueDate.After(c.To)
}

// containsFold は大文字小文字を区別せずにsubstrがsに含まれるかどうかを返す。
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Filter はアイテム一覧に適用する条件の集合。すべての条件を満たすアイテムが一致する。
// 条件が空の場合はすべてのアイテムに一致する。
type Filter struct {
	Clauses []Clause
}

// Match はアイテムがすべての条件を満たすかどうかを返す。
func (f Filter) Match(it Item) bool {
	for _, c := range f.Clauses {
		if !c.Match(it) {
			return false
		}
	}
	return true
}

// FieldError はクエリやリクエストボディの1つのフィールドに対するエラー。
type FieldError struct {
	// Field はフィールド名。
	Field string `json:"field"`
	// Value は受け取った値。
	Value string `json:"value,omitempty"`
	// Message はエラーの説明。
	Message string `json:"message"`
	// ValidValues は受け付ける値の一覧。
	ValidValues []string `json:"valid_values,omitempty"`
}

// QueryError は一覧取得のクエリパラメータが不正であることを表す。
// 未知のキーと不正な値をまとめて保持する。
type QueryError struct {
	// InvalidKeys は未知のクエリキー（ソート済み）。値のみが不正な場合は空のスライス。
	InvalidKeys []string
	// ValidKeys は受け付けるクエリキー。
	ValidKeys []string
	// Fields は値が不正なフィールド。
	Fields []FieldError
}

func (e *QueryError) Error() string {
	var parts []string
	if len(e.InvalidKeys) > 0 {
		parts = append(parts, fmt.Sprintf("未知のクエリパラメータ %v (有効: %v)", e.InvalidKeys, e.ValidKeys))
	}
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s=%q: %s", f.Field, f.Value, f.Message))
	}
	return "クエリパラメータが不正です: " + strings.Join(parts, "; ")
}

// ParseQuery はクエリパラメータをフィルタに変換する。
// 未知のキーや不正な値がある場合は、すべての問題をまとめた*QueryErrorを返す。
// 値が空文字列のキーは条件を追加しない。dueDateはlocのタイムゾーンでその日の0時から23:59:59.999までに一致する。
func ParseQuery(values url.Values, loc *time.Location) (Filter, error) {
	qe := &QueryError{InvalidKeys: []string{}, ValidKeys: slices.Clone(RecognizedQueryKeys)}
	for key := range values {
		if !slices.Contains(RecognizedQueryKeys, key) {
			qe.InvalidKeys = append(qe.InvalidKeys, key)
		}
	}
	sort.Strings(qe.InvalidKeys)

	var f Filter
	if v := values.Get(queryKeyName); v != "" {
		f.Clauses = append(f.Clauses, NameContains{Value: v})
	}
	if v := values.Get(queryKeyPriority); v != "" {
		f.Clauses = append(f.Clauses, PriorityContains{Value: v})
	}
	if v := values.Get(queryKeyCompleted); v != "" {
		c, err := parseCompleted(v)
		if err != nil {
			qe.Fields = append(qe.Fields, *err)
		} else {
			f.Clauses = append(f.Clauses, c)
		}
	}
	if v := values.Get(queryKeyDueDate); v != "" {
		c, err := parseDueDate(v, loc)
		if err != nil {
			qe.Fields = append(qe.Fields, *err)
		} else {
			f.Clauses = append(f.Clauses, c)
		}
	}

	if len(qe.InvalidKeys) > 0 || len(qe.Fields) > 0 {
		return Filter{}, qe
	}
	return f, nil
}

// parseCompleted は "true"/"false"（大文字小文字を区別しない）をCompletedIsに変換する。
func parseCompleted(v string) (Clause, *FieldError) {
	switch strings.ToLower(v) {
	case "true":
		return CompletedIs{Value: true}, nil
	case "false":
		return CompletedIs{Value: false}, nil
	}
	return nil, &FieldError{
		Field:       queryKeyCompleted,
		Value:       v,
		Message:     "completedの値が不正です",
		ValidValues: []string{"true", "false"},
	}
}

// parseDueDate はYYYY-MM-DDの日付を、locにおけるその日全体を覆うDueWithinに変換する。
func parseDueDate(v string, loc *time.Location) (Clause, *FieldError) {
	day, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil {
		return nil, &FieldError{
			Field:       queryKeyDueDate,
			Value:       v,
			Message:     "dueDateの日付形式が不正です",
			ValidValues: []string{"YYYY-MM-DD"},
		}
	}
	// 夏時間の切り替え日でも1日全体を覆うよう、翌日0時の1ミリ秒前を終端とする
	next := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	return DueWithin{From: day, To: next.Add(-time.Millisecond)}, nil
}
