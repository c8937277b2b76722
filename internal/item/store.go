package item

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nao1215/item/pkg/event"
	"github.com/nao1215/item/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// maxInsertAttempts はID採番が競合した場合に挿入を試行する最大回数。
const maxInsertAttempts = 5

// Store はアイテムの永続化を担うインターフェース。
// IDはすべてアプリケーションが採番する論理IDであり、ストレージ内部のキーではない。
type Store interface {
	// Count は登録されているアイテム数を返す。
	Count(ctx context.Context) (int, error)
	// Find はフィルタに一致するアイテムを格納順に返す。
	Find(ctx context.Context, f Filter) ([]Item, error)
	// FindOne は論理IDでアイテムを取得する。存在しない場合はErrNotFoundを返す。
	FindOne(ctx context.Context, id int64) (Item, error)
	// Insert は新しい論理IDを採番してアイテムを保存する。itのIDは無視される。
	Insert(ctx context.Context, it Item, actor string) (Item, error)
	// Update はパッチをマージして保存し、更新後のアイテムを返す。存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, id int64, p Patch, actor string) (Item, error)
	// Delete はアイテムを削除する。存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id int64, actor string) error
	// ListEvents はアイテムの変更履歴を古い順に返す。
	// IDが再利用された場合は、そのIDで最後に作成されたアイテムの履歴のみを返す。
	ListEvents(ctx context.Context, id int64) ([]event.Event, error)
}

// containsFoldFunc はSQLから呼び出すcontainsFoldの関数名。
const containsFoldFunc = "contains_fold"

// registerFunctions はSQLiteのユーザー定義関数を登録する。登録はプロセスで1度だけ行う。
var registerFunctions = sync.OnceValue(func() error {
	return sqlite.RegisterDeterministicScalarFunction(containsFoldFunc, 2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			s, ok1 := args[0].(string)
			substr, ok2 := args[1].(string)
			if !ok1 || !ok2 {
				return int64(0), nil
			}
			if containsFold(s, substr) {
				return int64(1), nil
			}
			return int64(0), nil
		})
})

// OpenDB はSQLiteデータベースを開き、マイグレーションを適用する。
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("SQL関数の登録に失敗: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == ":memory:" {
		// インメモリDBは接続ごとに別のデータベースになる
		db.SetMaxOpenConns(1)
	}

	if _, err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return db, nil
}

// SQLiteStore はSQLiteによるStoreの実装。
// アイテムの変更と変更履歴（item_events）は同じトランザクションで書き込む。
type SQLiteStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewSQLiteStore は新しいSQLiteStoreを生成する。dbはOpenDBでマイグレーション済みであること。
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const itemColumns = "id, name, due_date, completed, priority"

// storedColumns はストレージ内部のキーを含めて選択する列。
const storedColumns = "pk, " + itemColumns

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem は1行をItemに変換する。leadにはアイテムの列より前に選択した列の格納先を渡す。
func scanItem(row rowScanner, lead ...any) (Item, error) {
	var (
		it       Item
		due      sql.NullInt64
		priority string
	)
	dest := append(lead, &it.ID, &it.Name, &due, &it.Completed, &priority)
	if err := row.Scan(dest...); err != nil {
		return Item{}, err
	}
	if due.Valid {
		d := time.UnixMilli(due.Int64).UTC()
		it.DueDate = &d
	}
	it.Priority = Priority(priority)
	return it, nil
}

// dueDateValue はdueDateをDBに格納する値（UNIXミリ秒またはNULL）に変換する。
func dueDateValue(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.UnixMilli()
}

// Count は登録されているアイテム数を返す。
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		return 0, fmt.Errorf("アイテム数の取得に失敗: %w", err)
	}
	return n, nil
}

// Find はフィルタをWHERE句に変換してアイテムを検索する。
func (s *SQLiteStore) Find(ctx context.Context, f Filter) ([]Item, error) {
	where, args := whereClause(f)
	rows, err := s.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM items"+where+" ORDER BY pk", args...)
	if err != nil {
		return nil, fmt.Errorf("アイテムの検索に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("アイテムの読み込みに失敗: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アイテムの検索に失敗: %w", err)
	}
	return items, nil
}

// whereClause はフィルタの各条件をANDで結合したWHERE句と引数を返す。条件が無い場合は空文字列を返す。
func whereClause(f Filter) (string, []any) {
	if len(f.Clauses) == 0 {
		return "", nil
	}

	conds := make([]string, 0, len(f.Clauses))
	var args []any
	for _, c := range f.Clauses {
		switch c := c.(type) {
		case NameContains:
			conds = append(conds, containsFoldFunc+"(name, ?)")
			args = append(args, c.Value)
		case PriorityContains:
			conds = append(conds, containsFoldFunc+"(priority, ?)")
			args = append(args, c.Value)
		case CompletedIs:
			conds = append(conds, "completed = ?")
			args = append(args, c.Value)
		case DueWithin:
			conds = append(conds, "due_date BETWEEN ? AND ?")
			args = append(args, c.From.UnixMilli(), c.To.UnixMilli())
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindOne は論理IDでアイテムを取得する。
func (s *SQLiteStore) FindOne(ctx context.Context, id int64) (Item, error) {
	_, it, err := findOne(ctx, s.db, id)
	return it, err
}

// querier は*sql.DBと*sql.Txの共通インターフェース。
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// findOne は論理IDでアイテムとそのストレージ内部のキーを取得する。
func findOne(ctx context.Context, q querier, id int64) (int64, Item, error) {
	var pk int64
	it, err := scanItem(q.QueryRowContext(ctx, "SELECT "+storedColumns+" FROM items WHERE id = ?", id), &pk)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, Item{}, ErrNotFound
	}
	if err != nil {
		return 0, Item{}, fmt.Errorf("アイテムの取得に失敗: %w", err)
	}
	return pk, it, nil
}

// Insert は現在の最大ID+1を論理IDとしてアイテムを保存する。
// 採番と挿入は1つの文で行い、UNIQUE制約違反やロック競合の場合は再試行する。
func (s *SQLiteStore) Insert(ctx context.Context, it Item, actor string) (Item, error) {
	var lastErr error
	for range maxInsertAttempts {
		created, err := s.insertOnce(ctx, it, actor)
		if err == nil {
			return created, nil
		}
		if !isRetryable(err) {
			return Item{}, err
		}
		lastErr = err
	}
	return Item{}, fmt.Errorf("ID採番が%d回競合しました: %w", maxInsertAttempts, lastErr)
}

func (s *SQLiteStore) insertOnce(ctx context.Context, it Item, actor string) (Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var pk int64
	created, err := scanItem(tx.QueryRowContext(ctx, `
		INSERT INTO items (id, name, due_date, completed, priority)
		SELECT COALESCE(MAX(id), 0) + 1, ?, ?, ?, ? FROM items
		RETURNING `+storedColumns,
		it.Name, dueDateValue(it.DueDate), it.Completed, string(it.Priority),
	), &pk)
	if err != nil {
		return Item{}, fmt.Errorf("アイテムの作成に失敗: %w", err)
	}

	if err := appendEvent(ctx, tx, created.ID, pk, event.TypeItemCreated, actor, event.ItemCreatedData{
		Item: created.snapshot(),
	}); err != nil {
		return Item{}, err
	}

	if err := tx.Commit(); err != nil {
		return Item{}, fmt.Errorf("コミットに失敗: %w", err)
	}
	return created, nil
}

// isRetryable はID採番の競合やロック待ちのタイムアウトによるエラーかどうかを返す。
func isRetryable(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_BUSY:
		return true
	}
	return false
}

// Update はパッチをマージしてアイテムを更新する。
func (s *SQLiteStore) Update(ctx context.Context, id int64, p Patch, actor string) (Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pk, before, err := findOne(ctx, tx, id)
	if err != nil {
		return Item{}, err
	}

	merged := p.Apply(before)
	after, err := scanItem(tx.QueryRowContext(ctx, `
		UPDATE items SET name = ?, due_date = ?, completed = ?, priority = ?
		WHERE id = ?
		RETURNING `+itemColumns,
		merged.Name, dueDateValue(merged.DueDate), merged.Completed, string(merged.Priority), id,
	))
	if err != nil {
		return Item{}, fmt.Errorf("アイテムの更新に失敗: %w", err)
	}

	if err := appendEvent(ctx, tx, id, pk, event.TypeItemUpdated, actor, event.ItemUpdatedData{
		Before: before.snapshot(),
		After:  after.snapshot(),
		Fields: p.Fields(),
	}); err != nil {
		return Item{}, err
	}

	if err := tx.Commit(); err != nil {
		return Item{}, fmt.Errorf("コミットに失敗: %w", err)
	}
	return after, nil
}

// Delete はアイテムを削除する。変更履歴は残す。
func (s *SQLiteStore) Delete(ctx context.Context, id int64, actor string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pk, deleted, err := findOne(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id); err != nil {
		return fmt.Errorf("アイテムの削除に失敗: %w", err)
	}

	if err := appendEvent(ctx, tx, id, pk, event.TypeItemDeleted, actor, event.ItemDeletedData{
		Item: deleted.snapshot(),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// appendEvent は変更履歴を1件追記する。itemPKは論理IDが再利用されてもアイテムを区別するために記録する。
func appendEvent(ctx context.Context, tx *sql.Tx, itemID, itemPK int64, eventType event.Type, actor string, data any) error {
	e, err := event.New(itemID, eventType, actor, data)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO item_events (id, item_id, item_pk, event_type, actor, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.ItemID, itemPK, string(e.EventType), e.Actor, string(e.Data), e.CreatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("イベントの記録に失敗: %w", err)
	}
	return nil
}

// ListEvents はアイテムの変更履歴を古い順に返す。
// 論理IDが再利用されている場合は、最後に作成されたアイテム（item_pkが最大）の履歴に絞り込む。
func (s *SQLiteStore) ListEvents(ctx context.Context, id int64) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, event_type, actor, data, created_at
		FROM item_events
		WHERE item_id = ?1
		  AND item_pk = (SELECT MAX(item_pk) FROM item_events WHERE item_id = ?1)
		ORDER BY created_at, rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []event.Event{}
	for rows.Next() {
		var (
			e         event.Event
			eventType string
			data      string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.ItemID, &eventType, &e.Actor, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("イベントの読み込みに失敗: %w", err)
		}
		e.EventType = event.Type(eventType)
		e.Data = []byte(data)
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	return events, nil
}
