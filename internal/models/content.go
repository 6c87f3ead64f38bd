package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Content is either PlainText or PerPlatform.
type Content interface {
	isContent()
}

// PlainText is published unchanged on every platform.
type PlainText string

func (PlainText) isContent() {}

// PlatformContent is one entry of a per-platform payload. Value holds the
// string content, or the compact JSON when the entry is an object.
type PlatformContent struct {
	Key      string
	Value    string
	IsObject bool
}

// PerPlatform keeps the insertion order of the stored JSON object.
type PerPlatform []PlatformContent

func (PerPlatform) isContent() {}

func (p PerPlatform) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if entry.IsObject {
			buf.WriteString(entry.Value)
			continue
		}
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseContent decodes the stored content column. Object key order is preserved,
// which is why the column must be json and not jsonb.
func ParseContent(raw []byte) (Content, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return PlainText(""), nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode content string: %w", err)
		}
		return PlainText(s), nil
	case '{':
		return parsePerPlatform(raw)
	default:
		// Anything else came from a legacy writer; publish it verbatim.
		return PlainText(raw), nil
	}
}

func parsePerPlatform(raw []byte) (PerPlatform, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode content object: %w", err)
	}

	content := PerPlatform{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode content key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("decode content key: not a string")
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode content value for %q: %w", key, err)
		}

		entry := PlatformContent{Key: key}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			entry.Value = s
		} else {
			var compact bytes.Buffer
			if err := json.Compact(&compact, value); err != nil {
				return nil, fmt.Errorf("compact content value for %q: %w", key, err)
			}
			entry.Value = compact.String()
			entry.IsObject = true
		}
		content = append(content, entry)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode content object end: %w", err)
	}
	return content, nil
}

// EncodeContent is the inverse of ParseContent.
func EncodeContent(c Content) ([]byte, error) {
	switch v := c.(type) {
	case nil:
		return []byte(`""`), nil
	case PlainText:
		return json.Marshal(string(v))
	case PerPlatform:
		return v.MarshalJSON()
	default:
		return nil, fmt.Errorf("unsupported content type %T", c)
	}
}
