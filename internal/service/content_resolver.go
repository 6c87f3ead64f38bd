package service

import (
	"encoding/json"

	"github.com/maheshrc27/socialpilot/internal/models"
)

// objectTextFields are checked in order when a per-platform value is an object.
var objectTextFields = []string{"text", "content", "caption"}

// ResolveContent picks the text to publish on platform. Plain text is used
// everywhere. Per-platform content is looked up by the lower-case platform
// name, falling back to the first entry in stored order.
func ResolveContent(content models.Content, platform models.Platform) string {
	switch c := content.(type) {
	case models.PlainText:
		return string(c)
	case models.PerPlatform:
		if len(c) == 0 {
			return ""
		}
		key := platform.Key()
		for _, entry := range c {
			if entry.Key == key {
				return entryText(entry)
			}
		}
		return entryText(c[0])
	default:
		return ""
	}
}

func entryText(entry models.PlatformContent) string {
	if !entry.IsObject {
		return entry.Value
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(entry.Value), &fields); err != nil {
		return entry.Value
	}
	for _, name := range objectTextFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return entry.Value
}
