package item

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/item/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testJWTSecret はテスト用のJWTシークレット。
const testJWTSecret = "item-test-secret"

// setupTestServer はテスト用のアイテムサーバーをインメモリSQLiteで構築する。
func setupTestServer(t *testing.T) http.Handler {
	t.Helper()
	return setupTestServerWithDB(t, ":memory:")
}

// setupTestServerWithDB は指定したパスのSQLiteでテスト用のアイテムサーバーを構築する。
func setupTestServerWithDB(t *testing.T, path string) http.Handler {
	t.Helper()

	db, err := OpenDB(t.Context(), path)
	if err != nil {
		t.Fatalf("DBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(NewSQLiteStore(db), Config{
		JWTSecret:       testJWTSecret,
		DevTokenEnabled: true,
		Location:        time.UTC,
	})
	if err != nil {
		t.Fatalf("サーバーの作成に失敗: %v", err)
	}
	return s.Handler()
}

// tokenFor は指定したロールのテスト用トークンを生成するヘルパー関数。
func tokenFor(t *testing.T, userID string, role middleware.Role) string {
	t.Helper()
	token, err := middleware.GenerateJWT(testJWTSecret, userID, role)
	if err != nil {
		t.Fatalf("トークンの生成に失敗: %v", err)
	}
	return token
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
// bodyがstringの場合はそのまま送信し、それ以外はJSONにシリアライズする。
func doRequest(router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewReader(nil)
	case string:
		reqBody = bytes.NewReader([]byte(b))
	default:
		jsonBytes, _ := json.Marshal(b)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをmapにデコードするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// parseItem はレスポンスボディをItemにデコードするヘルパー関数。
func parseItem(t *testing.T, w *httptest.ResponseRecorder) Item {
	t.Helper()
	var it Item
	if err := json.Unmarshal(w.Body.Bytes(), &it); err != nil {
		t.Fatalf("アイテムのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return it
}

// parseItems はレスポンスボディをItemのスライスにデコードするヘルパー関数。
func parseItems(t *testing.T, w *httptest.ResponseRecorder) []Item {
	t.Helper()
	var items []Item
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("アイテム一覧のデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return items
}

// createTestItem はAPI経由でアイテムを作成するヘルパー関数。
func createTestItem(t *testing.T, router http.Handler, admin string, body map[string]any) Item {
	t.Helper()
	w := doRequest(router, http.MethodPost, "/items", admin, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("アイテムの作成に失敗: status=%d, body=%s", w.Code, w.Body.String())
	}
	return parseItem(t, w)
}

// TestAuthorizationGate はロールごとのアクセス制御を検証する。
func TestAuthorizationGate(t *testing.T) {
	t.Parallel()

	router := setupTestServer(t)
	admin := tokenFor(t, "admin-1", middleware.RoleAdmin)
	regular := tokenFor(t, "user-1", middleware.RoleRegular)
	guest := tokenFor(t, "guest-1", middleware.Role("guest"))
	createTestItem(t, router, admin, map[string]any{"name": "gated item"})

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       any
		wantStatus int
	}{
		{name: "資格情報が無い一覧取得は401", method: http.MethodGet, path: "/items", wantStatus: http.StatusUnauthorized},
		{name: "不正なトークンの詳細取得は401", method: http.MethodGet, path: "/items/1", token: "not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "資格情報が無い作成は401", method: http.MethodPost, path: "/items", body: map[string]any{"name": "abc"}, wantStatus: http.StatusUnauthorized},
		{name: "regularの一覧取得は200", method: http.MethodGet, path: "/items", token: regular, wantStatus: http.StatusOK},
		{name: "regularの詳細取得は200", method: http.MethodGet, path: "/items/1", token: regular, wantStatus: http.StatusOK},
		{name: "regularの作成は403", method: http.MethodPost, path: "/items", token: regular, body: map[string]any{"name": "abc"}, wantStatus: http.StatusForbidden},
		{name: "regularの更新は403", method: http.MethodPut, path: "/items/1", token: regular, body: map[string]any{"name": "abc"}, wantStatus: http.StatusForbidden},
		{name: "regularの削除は403", method: http.MethodDelete, path: "/items/1", token: regular, wantStatus: http.StatusForbidden},
		{name: "未知のロールの一覧取得は403", method: http.MethodGet, path: "/items", token: guest, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(router, tt.method, tt.path, tt.token, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("ステータスコード = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

// TestHandleList は一覧取得とクエリによる絞り込みを検証する。
func TestHandleList(t *testing.T) {
	t.Parallel()

	t.Run("アイテムが無い場合は404でqueryを含まないこと", func(t *testing.T) {
		t.Parallel()

		router := setupTestServer(t)
		w := doRequest(router, http.MethodGet, "/items?name=milk", tokenFor(t, "u", middleware.RoleRegular), nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
		body := parseJSON(t, w)
		if body["error"] != ErrEmpty.Error() {
			t.Errorf("error = %v, want %q", body["error"], ErrEmpty.Error())
		}
		if _, ok := body["query"]; ok {
			t.Error("空のストアのレスポンスにqueryが含まれている")
		}
	})

	router := setupTestServer(t)
	admin := tokenFor(t, "admin-1", middleware.RoleAdmin)
	regular := tokenFor(t, "user-1", middleware.RoleRegular)
	createTestItem(t, router, admin, map[string]any{"name": "Buy milk", "priority": "High", "dueDate": "2099-05-10T12:00:00Z"})
	createTestItem(t, router, admin, map[string]any{"name": "buy bread", "completed": true, "dueDate": "2099-05-10T23:59:59.999Z"})
	createTestItem(t, router, admin, map[string]any{"name": "Walk dog", "priority": "Medium", "dueDate": "2099-05-11T00:00:00Z"})

	listed := []struct {
		name    string
		query   string
		wantIDs []int64
	}{
		{name: "クエリが無い場合は全件を返すこと", query: "", wantIDs: []int64{1, 2, 3}},
		{name: "nameは大文字小文字を区別しない部分一致であること", query: "?name=BUY", wantIDs: []int64{1, 2}},
		{name: "priorityは部分一致であること", query: "?priority=med", wantIDs: []int64{3}},
		{name: "completed=trueで絞り込めること", query: "?completed=true", wantIDs: []int64{2}},
		{name: "completed=TRUEはcompleted=trueと同じ結果になること", query: "?completed=TRUE", wantIDs: []int64{2}},
		{name: "dueDateはその日全体に一致し翌日0時は含まないこと", query: "?dueDate=2099-05-10", wantIDs: []int64{1, 2}},
		{name: "複数の条件はすべて満たす必要があること", query: "?name=buy&completed=false", wantIDs: []int64{1}},
		{name: "値が空のキーは無視されること", query: "?name=&priority=", wantIDs: []int64{1, 2, 3}},
	}
	for _, tt := range listed {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(router, http.MethodGet, "/items"+tt.query, regular, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
			}
			var gotIDs []int64
			for _, it := range parseItems(t, w) {
				gotIDs = append(gotIDs, it.ID)
			}
			if diff := cmp.Diff(tt.wantIDs, gotIDs); diff != "" {
				t.Errorf("IDs mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("一致するアイテムが無い場合は404でqueryを含むこと", func(t *testing.T) {
		t.Parallel()

		w := doRequest(router, http.MethodGet, "/items?name=zzz", regular, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
		body := parseJSON(t, w)
		if body["error"] != ErrNoMatch.Error() {
			t.Errorf("error = %v, want %q", body["error"], ErrNoMatch.Error())
		}
		if diff := cmp.Diff(map[string]any{"name": "zzz"}, body["query"]); diff != "" {
			t.Errorf("query mismatch (-want +got):\n%s", diff)
		}
	})

	rejected := []struct {
		name            string
		query           string
		wantInvalidKeys []any
		wantFields      bool
	}{
		{name: "未知のキーは400で受け付けるキーを示すこと", query: "?bogus=1", wantInvalidKeys: []any{"bogus"}},
		{name: "brandは受け付けないこと", query: "?brand=acme", wantInvalidKeys: []any{"brand"}},
		{name: "completedがtrue/false以外の場合は400", query: "?completed=banana", wantInvalidKeys: []any{}, wantFields: true},
		{name: "dueDateの形式が不正な場合は400", query: "?dueDate=05/10/2099", wantInvalidKeys: []any{}, wantFields: true},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(router, http.MethodGet, "/items"+tt.query, regular, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
			}
			body := parseJSON(t, w)

			invalid, ok := body["invalid_keys"].([]any)
			if !ok {
				t.Fatalf("invalid_keysが配列ではない: %v", body["invalid_keys"])
			}
			if diff := cmp.Diff(tt.wantInvalidKeys, invalid); diff != "" {
				t.Errorf("invalid_keys mismatch (-want +got):\n%s", diff)
			}
			wantValid := []any{"name", "priority", "completed", "dueDate"}
			if diff := cmp.Diff(wantValid, body["valid_keys"]); diff != "" {
				t.Errorf("valid_keys mismatch (-want +got):\n%s", diff)
			}
			if _, ok := body["fields"]; ok != tt.wantFields {
				t.Errorf("fieldsの有無 = %v, want %v", ok, tt.wantFields)
			}
		})
	}
}

// TestHandleCreate はアイテム作成を検証する。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("IDが採番されデフォルト値が設定されること", func(t *testing.T) {
		t.Parallel()

		router := setupTestServer(t)
		admin := tokenFor(t, "admin-1", middleware.RoleAdmin)

		w := doRequest(router, http.MethodPost, "/items", admin, map[string]any{"id": 500, "name": "first item"})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
		want := Item{ID: 1, Name: "first item", Completed: false, Priority: PriorityLow}
		if diff := cmp.Diff(want, parseItem(t, w)); diff != "" {
			t.Errorf("作成されたアイテム mismatch (-want +got):\n%s", diff)
		}

		second := createTestItem(t, router, admin, map[string]any{"name": "second item"})
		if second.ID != 2 {
			t.Errorf("2件目のID = %d, want 2", second.ID)
		}
	})

	invalid := []struct {
		name       string
		body       any
		wantFields []any
	}{
		{name: "nameが3文字未満", body: map[string]any{"name": "ab"}, wantFields: []any{"name"}},
		{name: "nameが無い", body: map[string]any{"priority": "High"}, wantFields: []any{"name"}},
		{name: "dueDateが過去", body: map[string]any{"name": "abc", "dueDate": "2000-01-01"}, wantFields: []any{"dueDate"}},
		{name: "priorityが列挙値以外", body: map[string]any{"name": "abc", "priority": "Urgent"}, wantFields: []any{"priority"}},
		{name: "空のオブジェクト", body: map[string]any{}, wantFields: []any{"body", "name"}},
		{name: "型の不正と他の検証エラーが混在する", body: map[string]any{"name": "ab", "completed": "yes"}, wantFields: []any{"name", "completed"}},
		{name: "nameが文字列でない", body: map[string]any{"name": 12345, "priority": true}, wantFields: []any{"name", "priority"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name+"の場合は400になること", func(t *testing.T) {
			t.Parallel()

			router := setupTestServer(t)
			w := doRequest(router, http.MethodPost, "/items", tokenFor(t, "a", middleware.RoleAdmin), tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
			}

			var got []any
			for _, f := range parseJSON(t, w)["fields"].([]any) {
				got = append(got, f.(map[string]any)["field"])
			}
			if diff := cmp.Diff(tt.wantFields, got); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("completedは文字列のtrue/falseも受け付けること", func(t *testing.T) {
		t.Parallel()

		router := setupTestServer(t)
		admin := tokenFor(t, "admin-1", middleware.RoleAdmin)
		got := createTestItem(t, router, admin, map[string]any{"name": "string flag", "completed": "true"})
		if !got.Completed {
			t.Errorf("Completed = false, want true")
		}
	})

	t.Run("JSONとして不正なボディは400になること", func(t *testing.T) {
		t.Parallel()

		router := setupTestServer(t)
		w := doRequest(router, http.MethodPost, "/items", tokenFor(t, "a", middleware.RoleAdmin), `{"name": `)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestConcurrentCreate は同時に作成されたアイテムのIDが重複しないことを検証する。
func TestConcurrentCreate(t *testing.T) {
	t.Parallel()

	router := setupTestServerWithDB(t, filepath.Join(t.TempDir(), "items.db"))
	admin := tokenFor(t, "admin-1", middleware.RoleAdmin)

	const n = 10
	var (
		mu  sync.Mutex
		ids = make(map[int64]struct{})
	)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			w := doRequest(router, http.MethodPost, "/items", admin, map[string]any{"name": fmt.Sprintf("parallel-%d", i)})
			if w.Code != http.StatusCreated {
				return fmt.Errorf("status=%d body=%s", w.Code, w.Body.String())
			}
			var it Item
			if err := json.Unmarshal(w.Body.Bytes(), &it); err != nil {
				return err
			}
			mu.Lock()
			ids[it.ID] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("同時作成でエラーが発生: %v", err)
	}
	if len(ids) != n {
		t.Errorf("一意なIDの数 = %d, want %d", len(ids), n)
	}
}

// TestHandleGetUpdateDelete は詳細取得・更新・削除を検証する。
func TestHandleGetUpdateDelete(t *testing.T) {
	t.Parallel()

	t.Run("存在しないIDと不正なIDを区別すること", func(t *testing.T) {
		t.Parallel()

		router := setupTestServer(t)
		admin := tokenFor(t, "admin-1", middleware.RoleAdmin)

		if w := doRequest(router, http.MethodGet, "/items/99", admin, nil); w.Code != http.StatusNotFound {
			t.Errorf("存在しないID: ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
		if w := doRequest(router, http.MethodGet, "/items/abc", admin, nil); w.Code != http.StatusBadRequest {
			t.Errorf("不正なID: ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if w := doRequest(router, http.MethodDelete, "/items/99", admin, nil); w.Code != http.StatusNotFound {
			t.Errorf("存在しないIDの削除: ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
		if w := doRequest(router, http.MethodPut, "/items/99", admin, map[string]any{"name": "ghost"}); w.Code != http.StatusNotFound {
			t.Errorf("存在しないIDの更新: ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("更新は指定したフィールドのみをマージすること", func(t *testing.T) {
		t.Parallel()

		router := setupTestServer(t)
		admin := tokenFor(t, "admin-1", middleware.RoleAdmin)
		created := createTestItem(t, router, admin, map[string]any{"name": "original", "priority": "High", "dueDate": "2099-01-01T00:00:00Z"})

		w := doRequest(router, http.MethodPut, fmt.Sprintf("/items/%d", created.ID), admin, map[string]any{"name": "renamed", "completed": true})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		got := parseItem(t, w)
		due := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
		want := Item{ID: created.ID, Name: "renamed", DueDate: &due, Completed: true, Priority: PriorityHigh}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("更新後のアイテム mismatch (-want +got):\n%s", diff)
		}

		w = doRequest(router, http.MethodGet, fmt.Sprintf("/items/%d", created.ID), admin, nil)
		if diff := cmp.Diff(want, parseItem(t, w)); diff != "" {
			t.Errorf("取得したアイテム mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("空のボディでの更新は400になること", func(t *testing.T) {
		t.Parallel()

		router := setupTestServer(t)
		admin := tokenFor(t, "admin-1", middleware.RoleAdmin)
		for i := range 3 {
			createTestItem(t, router, admin, map[string]any{"name": fmt.Sprintf("item-%d", i)})
		}

		w := doRequest(router, http.MethodPut, "/items/3", admin, map[string]any{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
		}
	})

	t.Run("削除は204を返し以降の取得は404になること", func(t *testing.T) {
		t.Parallel()

		router := setupTestServer(t)
		admin := tokenFor(t, "admin-1", middleware.RoleAdmin)
		created := createTestItem(t, router, admin, map[string]any{"name": "to delete"})
		path := fmt.Sprintf("/items/%d", created.ID)

		w := doRequest(router, http.MethodDelete, path, admin, nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if w.Body.Len() != 0 {
			t.Errorf("204のレスポンスにボディが含まれている: %q", w.Body.String())
		}
		if w := doRequest(router, http.MethodGet, path, admin, nil); w.Code != http.StatusNotFound {
			t.Errorf("削除後のステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestHandleListEvents は変更履歴の取得を検証する。
func TestHandleListEvents(t *testing.T) {
	t.Parallel()

	router := setupTestServer(t)
	admin := tokenFor(t, "admin-1", middleware.RoleAdmin)
	regular := tokenFor(t, "user-1", middleware.RoleRegular)
	created := createTestItem(t, router, admin, map[string]any{"name": "tracked"})
	path := fmt.Sprintf("/items/%d", created.ID)

	doRequest(router, http.MethodPut, path, admin, map[string]any{"name": "tracked", "priority": "High"})
	doRequest(router, http.MethodDelete, path, admin, nil)

	w := doRequest(router, http.MethodGet, path+"/events", regular, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	var events []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &events); err != nil {
		t.Fatalf("JSON配列のデコードに失敗: %v", err)
	}
	var types []any
	for _, e := range events {
		types = append(types, e["event_type"])
		if e["actor"] != "admin-1" {
			t.Errorf("actor = %v, want admin-1", e["actor"])
		}
	}
	if diff := cmp.Diff([]any{"ItemCreated", "ItemUpdated", "ItemDeleted"}, types); diff != "" {
		t.Errorf("event_type mismatch (-want +got):\n%s", diff)
	}

	if w := doRequest(router, http.MethodGet, "/items/999/events", regular, nil); w.Code != http.StatusNotFound {
		t.Errorf("履歴の無いID: ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
	}

	t.Run("再利用されたIDの履歴には削除済みのアイテムの履歴が含まれないこと", func(t *testing.T) {
		t.Parallel()

		router := setupTestServer(t)
		first := createTestItem(t, router, admin, map[string]any{"name": "first item"})
		doRequest(router, http.MethodDelete, fmt.Sprintf("/items/%d", first.ID), admin, nil)
		second := createTestItem(t, router, admin, map[string]any{"name": "second item"})
		if second.ID != first.ID {
			t.Fatalf("ID = %d, want %d", second.ID, first.ID)
		}

		w := doRequest(router, http.MethodGet, fmt.Sprintf("/items/%d/events", second.ID), regular, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		var events []map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &events); err != nil {
			t.Fatalf("JSON配列のデコードに失敗: %v", err)
		}
		if len(events) != 1 || events[0]["event_type"] != "ItemCreated" {
			t.Fatalf("events = %v, want [ItemCreated]", events)
		}
		data, _ := events[0]["data"].(map[string]any)
		snapshot, _ := data["item"].(map[string]any)
		if snapshot["name"] != "second item" {
			t.Errorf("ItemCreatedのname = %v, want second item", snapshot["name"])
		}
	})
}

// TestMiscRoutes はルート・ヘルスチェック・未定義ルート・開発用トークンを検証する。
func TestMiscRoutes(t *testing.T) {
	t.Parallel()

	router := setupTestServer(t)

	t.Run("ルートは挨拶文を返すこと", func(t *testing.T) {
		t.Parallel()

		w := doRequest(router, http.MethodGet, "/", "", nil)
		if w.Code != http.StatusOK || w.Body.String() != "Welcome to the Database." {
			t.Errorf("GET / = %d %q", w.Code, w.Body.String())
		}
	})

	t.Run("ヘルスチェックはstatus=okを返すこと", func(t *testing.T) {
		t.Parallel()

		w := doRequest(router, http.MethodGet, "/health", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if diff := cmp.Diff(map[string]any{"status": "ok", "service": "item"}, parseJSON(t, w)); diff != "" {
			t.Errorf("health mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("未定義のルートはプレーンテキストの404を返すこと", func(t *testing.T) {
		t.Parallel()

		w := doRequest(router, http.MethodGet, "/nope", "", nil)
		if w.Code != http.StatusNotFound || w.Body.String() != "Route not found." {
			t.Errorf("GET /nope = %d %q", w.Code, w.Body.String())
		}
	})

	t.Run("開発用トークンでAPIを呼び出せること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(router, http.MethodPost, "/auth/dev-token", "", map[string]any{"user_id": "dev", "role": "admin"})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		token, _ := parseJSON(t, w)["token"].(string)

		w = doRequest(router, http.MethodPost, "/items", token, map[string]any{"name": "via dev token"})
		if w.Code != http.StatusCreated {
			t.Errorf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
	})

	t.Run("開発用トークンに不正なロールを指定すると400になること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(router, http.MethodPost, "/auth/dev-token", "", map[string]any{"user_id": "dev", "role": "root"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("DEV_TOKEN_ENABLEDが無効の場合は開発用トークンを発行しないこと", func(t *testing.T) {
		t.Parallel()

		s, err := New(newMemoryStore(), Config{JWTSecret: testJWTSecret})
		if err != nil {
			t.Fatalf("サーバーの作成に失敗: %v", err)
		}
		w := doRequest(s.Handler(), http.MethodPost, "/auth/dev-token", "", map[string]any{"user_id": "dev", "role": "admin"})
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
