package item

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// itemRequest はアイテム作成・更新リクエストのJSON構造。
// idはサーバーが採番するため受け付けない（指定されても無視する）。
type itemRequest struct {
	// Name はアイテム名。必須で3文字以上。
	Name *string `json:"name" validate:"required,min=3"`
	// DueDate は期日。RFC3339またはYYYY-MM-DDで、送信時点より未来であること。
	DueDate *string `json:"dueDate" validate:"omitnil,dueformat,future"`
	// Completed は完了状態。
	Completed *bool `json:"completed"`
	// Priority は優先度。
	Priority *string `json:"priority" validate:"omitnil,oneof=None Low Medium High"`

	// typeErrors はデコード時に型が合わなかったフィールド。
	typeErrors []FieldError
}

// itemRequestFields はレスポンスでフィールドエラーを並べる順序。
var itemRequestFields = []string{"body", "name", "dueDate", "completed", "priority"}

// empty はフィールドが1つも指定されていないかどうかを返す。
func (r itemRequest) empty() bool {
	return r.Name == nil && r.DueDate == nil && r.Completed == nil && r.Priority == nil && len(r.typeErrors) == 0
}

// decodeItemRequest はJSONオブジェクトをフィールドごとにデコードする。
// 型が合わないフィールドはエラーにせずtypeErrorsに記録し、Validateで他のエラーとまとめて報告する。
// completedは真偽値のほか "true"/"false" の文字列（大文字小文字を区別しない）も受け付ける。
// ボディがJSONオブジェクトでない場合のみエラーを返す。
func decodeItemRequest(body []byte) (itemRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return itemRequest{}, err
	}
	if raw == nil {
		return itemRequest{}, errors.New("JSONオブジェクトを指定してください")
	}

	var req itemRequest
	req.Name = decodeStringField(raw, "name", &req.typeErrors)
	req.DueDate = decodeStringField(raw, "dueDate", &req.typeErrors)
	req.Priority = decodeStringField(raw, "priority", &req.typeErrors)

	if v, ok := raw["completed"]; ok && !isJSONNull(v) {
		var b bool
		var s string
		switch {
		case json.Unmarshal(v, &b) == nil:
			req.Completed = &b
		case json.Unmarshal(v, &s) == nil && strings.EqualFold(s, "true"):
			req.Completed = ptr(true)
		case json.Unmarshal(v, &s) == nil && strings.EqualFold(s, "false"):
			req.Completed = ptr(false)
		default:
			req.typeErrors = append(req.typeErrors, FieldError{
				Field:       "completed",
				Value:       rawValue(v),
				Message:     "completedは真偽値で指定してください",
				ValidValues: []string{"true", "false"},
			})
		}
	}
	return req, nil
}

// decodeStringField は文字列のフィールドをデコードする。nullや未指定の場合はnilを返す。
func decodeStringField(raw map[string]json.RawMessage, key string, typeErrors *[]FieldError) *string {
	v, ok := raw[key]
	if !ok || isJSONNull(v) {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		*typeErrors = append(*typeErrors, FieldError{
			Field:   key,
			Value:   rawValue(v),
			Message: fmt.Sprintf("%sは文字列で指定してください", key),
		})
		return nil
	}
	return &s
}

func isJSONNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// rawValue はエラーに含める値を返す。JSON文字列の場合は引用符を外す。
func rawValue(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(v))
}

func ptr[T any](v T) *T {
	return &v
}

// toItem は作成するアイテムに変換する。未指定のフィールドにはデフォルト値を設定する。
// validateを通過したリクエストであること。
func (r itemRequest) toItem(loc *time.Location) Item {
	it := Item{Priority: PriorityLow}
	return r.toPatch(loc).Apply(it)
}

// toPatch は更新用のパッチに変換する。validateを通過したリクエストであること。
func (r itemRequest) toPatch(loc *time.Location) Patch {
	p := Patch{Name: r.Name, Completed: r.Completed}
	if r.DueDate != nil {
		if d, err := parseDueDateInput(*r.DueDate, loc); err == nil {
			p.DueDate = &d
		}
	}
	if r.Priority != nil {
		pr := Priority(*r.Priority)
		p.Priority = &pr
	}
	return p
}

// dueDateInputLayouts はリクエストボディのdueDateとして受け付ける形式。
var dueDateInputLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", dateLayout}

// parseDueDateInput はリクエストボディのdueDateを解析する。タイムゾーンの無い形式はlocで解釈する。
func parseDueDateInput(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range dueDateInputLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("dueDateの形式が不正です: %q", s)
}

// ValidationError はリクエストボディの検証エラー。すべてのフィールドエラーを保持する。
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "リクエストボディが不正です: " + strings.Join(msgs, "; ")
}

// requestValidator はアイテムリクエストの検証を行う。
type requestValidator struct {
	validate *validator.Validate
	loc      *time.Location
}

// newRequestValidator は新しいrequestValidatorを生成する。
// nowは期日が未来かどうかの判定に使用する。
func newRequestValidator(now func() time.Time, loc *time.Location) (*requestValidator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("dueformat", func(fl validator.FieldLevel) bool {
		_, err := parseDueDateInput(fl.Field().String(), loc)
		return err == nil
	}); err != nil {
		return nil, fmt.Errorf("dueformatバリデーションの登録に失敗: %w", err)
	}
	if err := v.RegisterValidation("future", func(fl validator.FieldLevel) bool {
		d, err := parseDueDateInput(fl.Field().String(), loc)
		return err == nil && d.After(now())
	}); err != nil {
		return nil, fmt.Errorf("futureバリデーションの登録に失敗: %w", err)
	}

	return &requestValidator{validate: v, loc: loc}, nil
}

// Validate はリクエストを検証し、問題があればすべてのフィールドエラーを含む*ValidationErrorを返す。
// デコード時の型エラーも含め、フィールドエラーはitemRequestFieldsの順に並べる。
func (rv *requestValidator) Validate(req itemRequest) error {
	byField := make(map[string]FieldError)
	if req.empty() {
		byField["body"] = FieldError{Field: "body", Message: "少なくとも1つのフィールドを指定してください"}
	}

	err := rv.validate.Struct(req)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			byField[fe.Field()] = toFieldError(fe)
		}
	} else if err != nil {
		return fmt.Errorf("リクエストの検証に失敗: %w", err)
	}
	// 型エラーのフィールドは値がnilになるため、requiredより型エラーを優先する
	for _, te := range req.typeErrors {
		byField[te.Field] = te
	}

	if len(byField) == 0 {
		return nil
	}
	fields := make([]FieldError, 0, len(byField))
	for _, name := range itemRequestFields {
		if f, ok := byField[name]; ok {
			fields = append(fields, f)
		}
	}
	return &ValidationError{Fields: fields}
}

// toFieldError はvalidatorのエラーをレスポンス用のFieldErrorに変換する。
func toFieldError(fe validator.FieldError) FieldError {
	f := FieldError{Field: fe.Field()}
	switch v := fe.Value().(type) {
	case string:
		f.Value = v
	case *string:
		if v != nil {
			f.Value = *v
		}
	}

	switch fe.Tag() {
	case "required":
		f.Message = fmt.Sprintf("%sは必須です", fe.Field())
	case "min":
		f.Message = fmt.Sprintf("%sは%s文字以上で指定してください", fe.Field(), fe.Param())
	case "oneof":
		f.Message = fmt.Sprintf("%sの値が不正です", fe.Field())
		f.ValidValues = strings.Fields(fe.Param())
	case "dueformat":
		f.Message = fmt.Sprintf("%sの日付形式が不正です", fe.Field())
		f.ValidValues = []string{"RFC3339", "YYYY-MM-DD"}
	case "future":
		f.Message = fmt.Sprintf("%sは未来の日時を指定してください", fe.Field())
	default:
		f.Message = fmt.Sprintf("%sが不正です（%s）", fe.Field(), fe.Tag())
	}
	return f
}
