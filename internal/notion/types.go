// Package notion はNotion REST APIのクライアントを提供する。
// ページの作成・取得・更新とデータベースのクエリ・取得のみを扱う。
package notion

import (
	"strings"
	"time"

	"github.com/hitoshi/notionauth/internal/property"
)

// Page はNotionのページ（データベースの1レコード）を表す。
type Page struct {
	Object         string       `json:"object"`
	ID             string       `json:"id"`
	CreatedTime    time.Time    `json:"created_time"`
	LastEditedTime time.Time    `json:"last_edited_time"`
	Archived       bool         `json:"archived"`
	Parent         Parent       `json:"parent"`
	Properties     property.Map `json:"properties"`
	URL            string       `json:"url,omitempty"`
}

// Parent はページの親を表す。本アダプタではデータベースのみを扱う。
type Parent struct {
	Type       string `json:"type,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
}

// DatabaseParent はデータベースを親とするParentを返す。
func DatabaseParent(databaseID string) Parent {
	return Parent{Type: "database_id", DatabaseID: databaseID}
}

// Database はNotionのデータベースを表す。
type Database struct {
	Object     string                      `json:"object"`
	ID         string                      `json:"id"`
	Title      []property.RichTextItem     `json:"title"`
	Archived   bool                        `json:"archived"`
	Properties map[string]DatabaseProperty `json:"properties"`
}

// DatabaseProperty はデータベーススキーマの1列を表す。
type DatabaseProperty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// CreatePageRequest はPOST /pagesのリクエストボディ。
type CreatePageRequest struct {
	Parent     Parent       `json:"parent"`
	Properties property.Map `json:"properties"`
}

// UpdatePageRequest はPATCH /pages/{id}のリクエストボディ。
type UpdatePageRequest struct {
	Properties property.Map `json:"properties,omitempty"`
	Archived   *bool        `json:"archived,omitempty"`
}

// ArchiveRequest はページをアーカイブ（論理削除）するリクエストを返す。
func ArchiveRequest() UpdatePageRequest {
	archived := true
	return UpdatePageRequest{Archived: &archived}
}

// QueryRequest はPOST /databases/{id}/queryのリクエストボディ。
type QueryRequest struct {
	Filter      *Filter `json:"filter,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
}

// QueryResponse はデータベースクエリの結果。
type QueryResponse struct {
	Object     string  `json:"object"`
	Results    []Page  `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// NormalizeID はページID・データベースIDからハイフンを取り除く。
// ハイフン付き・なしのどちらの形式も同じIDとして扱うため、API呼び出し前に必ず適用する。
func NormalizeID(id string) string {
	return strings.ReplaceAll(id, "-", "")
}
