// Package httpclient はアイテムサービスのAPIを呼び出すJSONクライアントを提供する。
//
// シードツールが稼働中のサービスに対してアイテムの削除・投入を行う際に使用する。
// Bearerトークンの付与とリクエストIDの伝播を共通化する。
package httpclient
