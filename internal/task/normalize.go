package task

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// legacyChatKeys are the pre-normalization locations a chat id may
// appear under on old records.
var legacyChatKeys = []string{"metadata.chatId", "metadata.chat_id"}

// NormalizeRaw rewrites a raw task payload into canonical form before
// strict decoding. Applied exactly once per load, it:
//
//   - maps the legacy status "todo" to "pending"
//   - hoists metadata.chatId / metadata.chat_id into chatId
//   - normalizes tab ids ("tab_" prefix to "tab") across
//     technicalSpecTabs, stageMeta and metadata.stageMeta
//
// The rewrite is idempotent: normalizing an already-normalized payload
// is a no-op.
func NormalizeRaw(data []byte) ([]byte, error) {
	out := data
	var err error

	if gjson.GetBytes(out, "status").String() == string(StatusTodo) {
		out, err = sjson.SetBytes(out, "status", string(StatusPending))
		if err != nil {
			return nil, fmt.Errorf("normalize status: %w", err)
		}
	}

	if gjson.GetBytes(out, "chatId").String() == "" {
		for _, key := range legacyChatKeys {
			if v := gjson.GetBytes(out, key); v.String() != "" {
				out, err = sjson.SetBytes(out, "chatId", v.String())
				if err != nil {
					return nil, fmt.Errorf("hoist %s: %w", key, err)
				}
				break
			}
		}
	}
	for _, key := range legacyChatKeys {
		if gjson.GetBytes(out, key).Exists() {
			out, err = sjson.DeleteBytes(out, key)
			if err != nil {
				return nil, fmt.Errorf("drop %s: %w", key, err)
			}
		}
	}

	tabs := gjson.GetBytes(out, "technicalSpecTabs")
	for i, tab := range tabs.Array() {
		id := tab.Get("id").String()
		if norm := NormalizeTabID(id); norm != id {
			out, err = sjson.SetBytes(out, fmt.Sprintf("technicalSpecTabs.%d.id", i), norm)
			if err != nil {
				return nil, fmt.Errorf("normalize tab id %s: %w", id, err)
			}
		}
	}

	for _, path := range []string{"stageMeta", "metadata.stageMeta"} {
		out, err = normalizeStageKeys(out, path)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// normalizeStageKeys rewrites a stage-keyed object in place when any of
// its keys carry the legacy prefix. Untouched payloads are returned
// as-is to keep the rewrite cheap for the common case.
func normalizeStageKeys(data []byte, path string) ([]byte, error) {
	obj := gjson.GetBytes(data, path)
	if !obj.IsObject() {
		return data, nil
	}

	dirty := false
	obj.ForEach(func(key, _ gjson.Result) bool {
		if NormalizeTabID(key.String()) != key.String() {
			dirty = true
			return false
		}
		return true
	})
	if !dirty {
		return data, nil
	}

	next := make(map[string]json.RawMessage)
	obj.ForEach(func(key, value gjson.Result) bool {
		next[NormalizeTabID(key.String())] = json.RawMessage(value.Raw)
		return true
	})

	out, err := sjson.SetBytes(data, path, next)
	if err != nil {
		return nil, fmt.Errorf("normalize %s keys: %w", path, err)
	}
	return out, nil
}

// Decode normalizes and parses a raw backend payload into a Task.
func Decode(data []byte) (*Task, error) {
	norm, err := NormalizeRaw(data)
	if err != nil {
		return nil, err
	}
	var t Task
	if err := json.Unmarshal(norm, &t); err != nil {
		return nil, fmt.Errorf("parse task: %w", err)
	}
	return &t, nil
}
