package item

import "errors"

var (
	// ErrNotFound は指定されたIDのアイテム（またはイベント）が存在しないことを表す。
	ErrNotFound = errors.New("アイテムが見つかりません")
	// ErrEmpty はアイテムが1件も登録されていないことを表す。
	ErrEmpty = errors.New("アイテムがまだ登録されていません")
	// ErrNoMatch はクエリに一致するアイテムが無いことを表す。
	ErrNoMatch = errors.New("クエリに一致するアイテムがありません")
)
