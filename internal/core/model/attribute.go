package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type AttributeKind int

const (
	AttributeString AttributeKind = iota
	AttributeNumber
	AttributeList
)

// AttributeValue holds a string, a number, or a list of strings. Extraction
// attribute schemas vary per class, so values are decoded leniently: booleans
// become strings, nested objects are kept as their compact JSON text.
type AttributeValue struct {
	kind AttributeKind
	str  string
	num  float64
	list []string
}

func StringAttr(s string) AttributeValue { return AttributeValue{kind: AttributeString, str: s} }

func NumberAttr(n float64) AttributeValue { return AttributeValue{kind: AttributeNumber, num: n} }

func ListAttr(items ...string) AttributeValue {
	return AttributeValue{kind: AttributeList, list: append([]string(nil), items...)}
}

func (v AttributeValue) Kind() AttributeKind { return v.kind }

// String renders the value as text. Lists are joined with ", ".
func (v AttributeValue) String() string {
	switch v.kind {
	case AttributeNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case AttributeList:
		return strings.Join(v.list, ", ")
	default:
		return v.str
	}
}

func (v AttributeValue) Number() (float64, bool) {
	return v.num, v.kind == AttributeNumber
}

func (v AttributeValue) List() ([]string, bool) {
	return v.list, v.kind == AttributeList
}

// Any returns the value as a plain Go value suitable for a store property.
func (v AttributeValue) Any() any {
	switch v.kind {
	case AttributeNumber:
		return v.num
	case AttributeList:
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	default:
		return v.str
	}
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty attribute value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringAttr(s)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			var item AttributeValue
			if err := item.UnmarshalJSON(r); err != nil {
				return err
			}
			if item.kind == AttributeList {
				items = append(items, item.list...)
				continue
			}
			items = append(items, item.String())
		}
		*v = ListAttr(items...)
	case '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*v = StringAttr(buf.String())
	case 'n':
		*v = StringAttr("")
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = StringAttr(strconv.FormatBool(b))
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported attribute value %s: %w", data, err)
		}
		*v = NumberAttr(n)
	}
	return nil
}

// AttributesToMap flattens attributes into plain Go values.
func AttributesToMap(attrs map[string]AttributeValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v.Any()
	}
	return out
}
