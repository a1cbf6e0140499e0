// Package property はNotionページプロパティの型付き表現とJSONコーデックを提供する。
// プロパティは "type" 判別子を持つタグ付きユニオンであり、
// 本パッケージは扱う種別を閉じた集合として定義する。
package property

import (
	"encoding/json"
	"fmt"
)

// Kind はプロパティの種別を表す。
type Kind int

const (
	// KindUnsupported は本パッケージが解釈しない種別。
	KindUnsupported Kind = iota
	KindTitle
	KindRichText
	KindNumber
	KindSelect
	KindRelation
	KindFiles
	KindEmail
	KindDate
)

// String はNotion API上の種別名を返す。
func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindRichText:
		return "rich_text"
	case KindNumber:
		return "number"
	case KindSelect:
		return "select"
	case KindRelation:
		return "relation"
	case KindFiles:
		return "files"
	case KindEmail:
		return "email"
	case KindDate:
		return "date"
	case KindUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// kindFromWire はAPI上の種別名をKindに変換する。
func kindFromWire(s string) Kind {
	switch s {
	case "title":
		return KindTitle
	case "rich_text":
		return KindRichText
	case "number":
		return KindNumber
	case "select":
		return KindSelect
	case "relation":
		return KindRelation
	case "files":
		return KindFiles
	case "email":
		return KindEmail
	case "date":
		return KindDate
	default:
		return KindUnsupported
	}
}

// Value はプロパティ値のバリアント。
// 外部パッケージから実装を追加できないよう、未公開メソッドで封じている。
type Value interface {
	Kind() Kind
	sealed()
}

// Property はページの1プロパティを表す。
type Property struct {
	ID    string
	Value Value
}

// Map はプロパティ名からプロパティへのマップ。ページのpropertiesに対応する。
type Map map[string]Property

// MarshalJSON は {"type": "...", "<type>": <payload>} 形式で出力する。
// IDはレスポンス由来の場合のみ出力する。
func (p Property) MarshalJSON() ([]byte, error) {
	if p.Value == nil {
		return nil, fmt.Errorf("property %q has no value", p.ID)
	}

	out := make(map[string]any, 3)
	if p.ID != "" {
		out["id"] = p.ID
	}

	switch v := p.Value.(type) {
	case Unsupported:
		out["type"] = v.Type
		if len(v.Raw) > 0 {
			out[v.Type] = v.Raw
		}
		return json.Marshal(out)
	default:
		wire := v.Kind().String()
		payload, err := v.(payloader).payload()
		if err != nil {
			return nil, err
		}
		out["type"] = wire
		out[wire] = payload
		return json.Marshal(out)
	}
}

// UnmarshalJSON は "type" 判別子に従ってバリアントをデコードする。
// "type" が無いリクエスト形式の場合は値キーから種別を推定する。
func (p *Property) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode property: %w", err)
	}

	var id, typ string
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &id); err != nil {
			return fmt.Errorf("failed to decode property id: %w", err)
		}
	}
	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &typ); err != nil {
			return fmt.Errorf("failed to decode property type: %w", err)
		}
	}
	if typ == "" {
		for k := range raw {
			if k != "id" && k != "type" {
				typ = k
				break
			}
		}
	}

	value, err := decode(typ, raw[typ])
	if err != nil {
		return fmt.Errorf("failed to decode %s property: %w", typ, err)
	}

	p.ID = id
	p.Value = value
	return nil
}

// payloader は各バリアントの値部分を出力する。
type payloader interface {
	payload() (any, error)
}

// decode は種別ごとにペイロードをデコードする。
// nullは各バリアントのゼロ値として扱う。
func decode(typ string, payload json.RawMessage) (Value, error) {
	isNull := len(payload) == 0 || string(payload) == "null"

	switch kindFromWire(typ) {
	case KindTitle:
		var v Title
		if !isNull {
			if err := json.Unmarshal(payload, &v); err != nil {
				return nil, err
			}
		}
		return v, nil
	case KindRichText:
		var v RichText
		if !isNull {
			if err := json.Unmarshal(payload, &v); err != nil {
				return nil, err
			}
		}
		return v, nil
	case KindNumber:
		if isNull {
			return Number{}, nil
		}
		var f float64
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, err
		}
		return Number{value: &f}, nil
	case KindSelect:
		var v Select
		if !isNull {
			if err := json.Unmarshal(payload, &v); err != nil {
				return nil, err
			}
		}
		return v, nil
	case KindRelation:
		var v Relation
		if !isNull {
			if err := json.Unmarshal(payload, &v); err != nil {
				return nil, err
			}
		}
		return v, nil
	case KindFiles:
		var v Files
		if !isNull {
			if err := json.Unmarshal(payload, &v); err != nil {
				return nil, err
			}
		}
		return v, nil
	case KindEmail:
		var v string
		if !isNull {
			if err := json.Unmarshal(payload, &v); err != nil {
				return nil, err
			}
		}
		return Email(v), nil
	case KindDate:
		var v Date
		if !isNull {
			if err := json.Unmarshal(payload, &v); err != nil {
				return nil, err
			}
		}
		return v, nil
	case KindUnsupported:
		raw := make(json.RawMessage, len(payload))
		copy(raw, payload)
		return Unsupported{Type: typ, Raw: raw}, nil
	default:
		return nil, fmt.Errorf("unknown property kind %q", typ)
	}
}
