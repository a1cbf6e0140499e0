package notion

// Filter はデータベースクエリのフィルタ式。
// 複合AND条件またはプロパティ条件のいずれかを設定する。
type Filter struct {
	And []Filter `json:"and,omitempty"`

	Property string             `json:"property,omitempty"`
	Title    *TextCondition     `json:"title,omitempty"`
	RichText *TextCondition     `json:"rich_text,omitempty"`
	Email    *TextCondition     `json:"email,omitempty"`
	Number   *NumberCondition   `json:"number,omitempty"`
	Relation *RelationCondition `json:"relation,omitempty"`
}

// TextCondition はtitle・rich_text・emailの条件。
type TextCondition struct {
	Equals string `json:"equals,omitempty"`
}

// NumberCondition はnumberの条件。
type NumberCondition struct {
	LessThan *float64 `json:"less_than,omitempty"`
}

// RelationCondition はrelationの条件。
type RelationCondition struct {
	Contains string `json:"contains,omitempty"`
}

// And は複合AND条件を生成する。
func And(filters ...Filter) *Filter {
	return &Filter{And: filters}
}

// TitleEquals はtitleの完全一致条件。
func TitleEquals(prop, value string) Filter {
	return Filter{Property: prop, Title: &TextCondition{Equals: value}}
}

// RichTextEquals はrich_textの完全一致条件。
func RichTextEquals(prop, value string) Filter {
	return Filter{Property: prop, RichText: &TextCondition{Equals: value}}
}

// EmailEquals はemailの完全一致条件。
func EmailEquals(prop, value string) Filter {
	return Filter{Property: prop, Email: &TextCondition{Equals: value}}
}

// NumberLessThan はnumberの未満条件。
func NumberLessThan(prop string, value float64) Filter {
	return Filter{Property: prop, Number: &NumberCondition{LessThan: &value}}
}

// RelationContains はrelationに指定ページを含む条件。IDは正規化して渡す。
func RelationContains(prop, pageID string) Filter {
	return Filter{Property: prop, Relation: &RelationCondition{Contains: NormalizeID(pageID)}}
}
