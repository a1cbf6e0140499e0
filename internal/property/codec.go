package property

import (
	"strings"
	"time"
)

// Get はkeyのプロパティを型Tとして取得する。
// キーが存在しない場合や種別が一致しない場合はfalseを返す。パニックはしない。
func Get[T Value](props Map, key string) (T, bool) {
	var zero T
	if props == nil {
		return zero, false
	}
	p, ok := props[key]
	if !ok || p.Value == nil {
		return zero, false
	}
	v, ok := p.Value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// PlainText はセグメントのplain_textを順に連結する。
// セグメントが0件の場合は値なしとしてfalseを返す（空文字とは区別する）。
func PlainText(items []RichTextItem) (string, bool) {
	if len(items) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString(item.PlainText)
	}
	return b.String(), true
}

// FileRef は外部ホスト・Notionホストを区別しないファイル参照。
type FileRef struct {
	URL  string
	Name string
}

// FileRefs はfilesエントリを {URL, Name} に正規化する。
// 順序は保持し、解釈できない種別のエントリは読み飛ばす。
func FileRefs(files []FileItem) []FileRef {
	refs := make([]FileRef, 0, len(files))
	for _, f := range files {
		switch {
		case f.Type == "external" && f.External != nil:
			refs = append(refs, FileRef{URL: f.External.URL, Name: f.Name})
		case f.Type == "file" && f.File != nil:
			refs = append(refs, FileRef{URL: f.File.URL, Name: f.Name})
		}
	}
	return refs
}

// Timestamp はkeyのnumberプロパティをエポックミリ秒の時刻として読み取る。
// 0とnullは未設定扱い。書き込み・期限切れ削除のフィルタと同じくnumber列のみを対象とする。
func Timestamp(props Map, key string) (time.Time, bool) {
	n, ok := Get[Number](props, key)
	if !ok {
		return time.Time{}, false
	}
	ms, ok := n.Float()
	if !ok || ms == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

// --- リクエスト用ビルダー ---

// textItems は1セグメントのテキスト配列を生成する。空文字の場合は空配列。
func textItems(s string) []RichTextItem {
	if s == "" {
		return []RichTextItem{}
	}
	return []RichTextItem{{Type: "text", Text: &TextContent{Content: s}}}
}

// NewTitle はtitleプロパティを生成する。
func NewTitle(s string) Property {
	return Property{Value: Title(textItems(s))}
}

// NewRichText はrich_textプロパティを生成する。
func NewRichText(s string) Property {
	return Property{Value: RichText(textItems(s))}
}

// NewNumber はnumberプロパティを生成する。
func NewNumber(f float64) Property {
	return Property{Value: Number{value: &f}}
}

// NewEpochMillis は時刻をエポックミリ秒のnumberプロパティとして生成する。
func NewEpochMillis(t time.Time) Property {
	return NewNumber(float64(t.UnixMilli()))
}

// NewSelect はselectプロパティを生成する。
func NewSelect(name string) Property {
	return Property{Value: Select{Name: name}}
}

// NewRelation はrelationプロパティを生成する。
func NewRelation(ids ...string) Property {
	refs := make(Relation, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, RelationRef{ID: id})
	}
	return Property{Value: refs}
}

// NewEmail はemailプロパティを生成する。
func NewEmail(s string) Property {
	return Property{Value: Email(s)}
}

// NewFiles はfilesプロパティを生成する。
func NewFiles(items ...FileItem) Property {
	files := make(Files, 0, len(items))
	files = append(files, items...)
	return Property{Value: files}
}

// External は外部ホストのファイルエントリを生成する。
func External(name, url string) FileItem {
	return FileItem{Name: name, Type: "external", External: &ExternalFile{URL: url}}
}

// Hosted はNotionホストのファイルエントリを生成する。
func Hosted(name, url string) FileItem {
	return FileItem{Name: name, Type: "file", File: &HostedFile{URL: url}}
}
