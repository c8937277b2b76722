// Package middleware はアイテムサービスのHTTP APIで使用する共通ミドルウェアを提供する。
//
// ロールベースの認証ゲート（JWT検証とロール判定）、リクエストIDの付与、
// パニックリカバリ、CORS設定を含む。
package middleware
