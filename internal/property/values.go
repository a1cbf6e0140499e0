package property

import "encoding/json"

// RichTextItem はタイトル・リッチテキストを構成するセグメント。
type RichTextItem struct {
	Type      string          `json:"type,omitempty"`
	Text      *TextContent    `json:"text,omitempty"`
	Mention   json.RawMessage `json:"mention,omitempty"`
	PlainText string          `json:"plain_text,omitempty"`
	Href      *string         `json:"href,omitempty"`
}

// TextContent はtext種別セグメントの本文。
type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// Link はテキストに付与されたリンク。
type Link struct {
	URL string `json:"url"`
}

// Title はtitleプロパティ。
type Title []RichTextItem

// RichText はrich_textプロパティ。
type RichText []RichTextItem

// Number はnumberプロパティ。値が未設定（null）の場合がある。
type Number struct {
	value *float64
}

// Float は数値を返す。未設定の場合はfalseを返す。
func (n Number) Float() (float64, bool) {
	if n.value == nil {
		return 0, false
	}
	return *n.value, true
}

// Select はselectプロパティ。未選択の場合はゼロ値。
type Select struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// RelationRef はリレーション先ページへの参照。
type RelationRef struct {
	ID string `json:"id"`
}

// Relation はrelationプロパティ。
type Relation []RelationRef

// IDs は参照先ページIDを順に返す。
func (r Relation) IDs() []string {
	ids := make([]string, 0, len(r))
	for _, ref := range r {
		ids = append(ids, ref.ID)
	}
	return ids
}

// FileItem はfilesプロパティの1エントリ。
// Typeが "external" の場合はExternal、"file" の場合はFileが設定される。
type FileItem struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	External *ExternalFile `json:"external,omitempty"`
	File     *HostedFile   `json:"file,omitempty"`
}

// ExternalFile は外部ホストされたファイル。
type ExternalFile struct {
	URL string `json:"url"`
}

// HostedFile はNotionにホストされたファイル。
type HostedFile struct {
	URL        string `json:"url"`
	ExpiryTime string `json:"expiry_time,omitempty"`
}

// Files はfilesプロパティ。
type Files []FileItem

// Email はemailプロパティ。未設定の場合は空文字。
type Email string

// Date はdateプロパティ。Startが空の場合は未設定。
// 読み取ったページを書き戻せるよう値をそのまま保持する。時刻としては解釈しない。
type Date struct {
	Start    string  `json:"start"`
	End      *string `json:"end,omitempty"`
	TimeZone *string `json:"time_zone,omitempty"`
}

// Unsupported は本パッケージが解釈しない種別の値。生のJSONを保持する。
type Unsupported struct {
	Type string
	Raw  json.RawMessage
}

func (Title) Kind() Kind       { return KindTitle }
func (RichText) Kind() Kind    { return KindRichText }
func (Number) Kind() Kind      { return KindNumber }
func (Select) Kind() Kind      { return KindSelect }
func (Relation) Kind() Kind    { return KindRelation }
func (Files) Kind() Kind       { return KindFiles }
func (Email) Kind() Kind       { return KindEmail }
func (Date) Kind() Kind        { return KindDate }
func (Unsupported) Kind() Kind { return KindUnsupported }

func (Title) sealed()       {}
func (RichText) sealed()    {}
func (Number) sealed()      {}
func (Select) sealed()      {}
func (Relation) sealed()    {}
func (Files) sealed()       {}
func (Email) sealed()       {}
func (Date) sealed()        {}
func (Unsupported) sealed() {}

// APIは空配列を期待するため、nilスライスは空配列として出力する。
func (v Title) payload() (any, error) {
	if v == nil {
		return []RichTextItem{}, nil
	}
	return []RichTextItem(v), nil
}

func (v RichText) payload() (any, error) {
	if v == nil {
		return []RichTextItem{}, nil
	}
	return []RichTextItem(v), nil
}

func (v Number) payload() (any, error) {
	if v.value == nil {
		return nil, nil
	}
	return *v.value, nil
}

func (v Select) payload() (any, error) {
	if v.Name == "" && v.ID == "" {
		return nil, nil
	}
	return v, nil
}

func (v Relation) payload() (any, error) {
	if v == nil {
		return []RelationRef{}, nil
	}
	return []RelationRef(v), nil
}

func (v Files) payload() (any, error) {
	if v == nil {
		return []FileItem{}, nil
	}
	return []FileItem(v), nil
}

func (v Email) payload() (any, error) {
	if v == "" {
		return nil, nil
	}
	return string(v), nil
}

func (v Date) payload() (any, error) {
	if v.Start == "" {
		return nil, nil
	}
	return v, nil
}
