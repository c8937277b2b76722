// Package item はアイテムサービスの内部実装を提供する。
//
// 単一のアイテムコレクションに対するCRUD APIを、ロールベースの認証ゲートの背後で提供する。
// 一覧取得では既知のクエリパラメータのみをフィルタ条件（Clauseのタグ付き共用体）に変換し、
// 未知のキーや不正な値はまとめて400として報告する。
//
// 論理IDは作成時にサーバー側で採番する（既存の最大値 + 1）。採番は単一のINSERT文と
// UNIQUE制約で行うため、同時に作成されても重複しない。
package item
