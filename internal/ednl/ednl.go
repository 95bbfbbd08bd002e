// Package ednl implements the line-oriented EDN codec for task records.
//
// Each record is one EDN map on one line. Keys are emitted as keywords in a
// fixed declaration order so that rewrites of the same logical record produce
// identical bytes (diff-friendly storage). On decode, keys are accepted as
// keywords, symbols, or strings and normalized to one canonical name; enum
// values are accepted as keywords or strings.
package ednl

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"olympos.io/encoding/edn"

	"github.com/steveyegge/mcp-tasks/internal/types"
)

// EncodeTask serializes a task as a single-line EDN map.
// Optional fields that hold their zero value are omitted.
func EncodeTask(t *types.Task) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot encode nil task")
	}
	var b bytes.Buffer
	b.WriteByte('{')

	writeKeyInt(&b, "id", t.ID)
	if t.ParentID != nil {
		b.WriteByte(' ')
		writeKeyInt(&b, "parent-id", *t.ParentID)
	}
	b.WriteByte(' ')
	writeKeyKeyword(&b, "status", string(t.Status))
	b.WriteByte(' ')
	if err := writeKeyString(&b, "title", t.Title); err != nil {
		return nil, err
	}
	if t.Description != "" {
		b.WriteByte(' ')
		if err := writeKeyString(&b, "description", t.Description); err != nil {
			return nil, err
		}
	}
	if t.Design != "" {
		b.WriteByte(' ')
		if err := writeKeyString(&b, "design", t.Design); err != nil {
			return nil, err
		}
	}
	if t.Category != "" {
		b.WriteByte(' ')
		if err := writeKeyString(&b, "category", t.Category); err != nil {
			return nil, err
		}
	}
	b.WriteByte(' ')
	writeKeyKeyword(&b, "type", string(t.Type))
	if len(t.Meta) > 0 {
		b.WriteByte(' ')
		writeKeyword(&b, "meta")
		b.WriteByte(' ')
		if err := writeMeta(&b, t.Meta); err != nil {
			return nil, err
		}
	}
	if len(t.Relations) > 0 {
		b.WriteByte(' ')
		writeKeyword(&b, "relations")
		b.WriteByte(' ')
		writeRelations(&b, t.Relations)
	}
	if len(t.SharedContext) > 0 {
		b.WriteByte(' ')
		writeKeyword(&b, "shared-context")
		b.WriteByte(' ')
		if err := writeStringVector(&b, t.SharedContext); err != nil {
			return nil, err
		}
	}
	if len(t.SessionEvents) > 0 {
		b.WriteByte(' ')
		writeKeyword(&b, "session-events")
		b.WriteByte(' ')
		if err := writeEvents(&b, t.SessionEvents); err != nil {
			return nil, err
		}
	}
	if t.CodeReviewed != "" {
		b.WriteByte(' ')
		if err := writeKeyString(&b, "code-reviewed", t.CodeReviewed); err != nil {
			return nil, err
		}
	}
	if t.PRNum != nil {
		b.WriteByte(' ')
		writeKeyInt(&b, "pr-num", *t.PRNum)
	}

	b.WriteByte('}')
	return b.Bytes(), nil
}

// DecodeTask parses one EDN line into a task. Keys may be keywords, symbols,
// or strings; unrecognized keys are ignored.
func DecodeTask(line []byte) (*types.Task, error) {
	m, err := ParseMap(line)
	if err != nil {
		return nil, err
	}

	t := &types.Task{}
	if t.ID, err = requireInt(m, "id"); err != nil {
		return nil, err
	}
	if v, ok := m["parent-id"]; ok && v != nil {
		n, err := AsInt(v)
		if err != nil {
			return nil, fmt.Errorf("parent-id: %w", err)
		}
		t.ParentID = &n
	}
	if v, ok := m["status"]; ok {
		s, err := AsName(v)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		t.Status = types.Status(s)
	}
	if t.Title, err = optString(m, "title"); err != nil {
		return nil, err
	}
	if t.Description, err = optString(m, "description"); err != nil {
		return nil, err
	}
	if t.Design, err = optString(m, "design"); err != nil {
		return nil, err
	}
	if t.Category, err = optString(m, "category"); err != nil {
		return nil, err
	}
	if v, ok := m["type"]; ok {
		s, err := AsName(v)
		if err != nil {
			return nil, fmt.Errorf("type: %w", err)
		}
		t.Type = types.TaskType(s)
	}
	if v, ok := m["meta"]; ok && v != nil {
		if t.Meta, err = asMeta(v); err != nil {
			return nil, err
		}
	}
	if v, ok := m["relations"]; ok && v != nil {
		if t.Relations, err = asRelations(v); err != nil {
			return nil, err
		}
	}
	if v, ok := m["shared-context"]; ok && v != nil {
		if t.SharedContext, err = asStringSlice(v, "shared-context"); err != nil {
			return nil, err
		}
	}
	if v, ok := m["session-events"]; ok && v != nil {
		if t.SessionEvents, err = asEvents(v); err != nil {
			return nil, err
		}
	}
	if t.CodeReviewed, err = optString(m, "code-reviewed"); err != nil {
		return nil, err
	}
	if v, ok := m["pr-num"]; ok && v != nil {
		n, err := AsInt(v)
		if err != nil {
			return nil, fmt.Errorf("pr-num: %w", err)
		}
		t.PRNum = &n
	}

	t.SetDefaults()
	return t, nil
}

// ParseMap parses an EDN map and normalizes its keys to plain strings.
// Keyword, symbol, and string keys all map to the same canonical name.
func ParseMap(data []byte) (map[string]interface{}, error) {
	var raw interface{}
	if err := edn.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed EDN: %w", err)
	}
	rm, ok := raw.(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("expected an EDN map, got %T", raw)
	}
	m := make(map[string]interface{}, len(rm))
	for k, v := range rm {
		name, err := AsName(k)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		m[name] = v
	}
	return m, nil
}

// AsName normalizes a keyword, symbol, or string to its bare name.
func AsName(v interface{}) (string, error) {
	switch x := v.(type) {
	case edn.Keyword:
		return strings.TrimPrefix(string(x), ":"), nil
	case edn.Symbol:
		return string(x), nil
	case string:
		return x, nil
	default:
		return "", fmt.Errorf("expected keyword, symbol, or string, got %T", v)
	}
}

// AsInt coerces an EDN numeric value to int.
func AsInt(v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		n := int(x)
		if float64(n) != x {
			return 0, fmt.Errorf("expected integer, got %v", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// AsString coerces an EDN string value to string.
func AsString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

// AsBool coerces an EDN boolean value to bool.
func AsBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
	return b, nil
}

// EncodeString returns the EDN representation of a string with all control
// characters escaped, guaranteed to contain no raw newline bytes.
func EncodeString(s string) ([]byte, error) {
	out, err := edn.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding string: %w", err)
	}
	return escapeNewlines(out), nil
}

// SharedContextSize returns the serialized byte size of a shared-context
// vector, used to enforce the append-list cap.
func SharedContextSize(entries []string) (int, error) {
	var b bytes.Buffer
	if err := writeStringVector(&b, entries); err != nil {
		return 0, err
	}
	return b.Len(), nil
}

// SessionEventsSize returns the serialized byte size of a session-events
// vector, used to enforce the append-list cap.
func SessionEventsSize(events []types.SessionEvent) (int, error) {
	var b bytes.Buffer
	if err := writeEvents(&b, events); err != nil {
		return 0, err
	}
	return b.Len(), nil
}

func requireInt(m map[string]interface{}, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing required key %s", key)
	}
	n, err := AsInt(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func optString(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, err := AsString(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}

func asMeta(v interface{}) (map[string]string, error) {
	rm, ok := v.(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("meta: expected map, got %T", v)
	}
	m := make(map[string]string, len(rm))
	for k, val := range rm {
		name, err := AsName(k)
		if err != nil {
			return nil, fmt.Errorf("meta key: %w", err)
		}
		s, err := AsString(val)
		if err != nil {
			return nil, fmt.Errorf("meta value for %s: %w", name, err)
		}
		m[name] = s
	}
	return m, nil
}

func asRelations(v interface{}) ([]types.Relation, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("relations: expected vector, got %T", v)
	}
	rels := make([]types.Relation, 0, len(items))
	for i, item := range items {
		rm, ok := item.(map[interface{}]interface{})
		if !ok {
			return nil, fmt.Errorf("relations[%d]: expected map, got %T", i, item)
		}
		m := make(map[string]interface{}, len(rm))
		for k, val := range rm {
			name, err := AsName(k)
			if err != nil {
				return nil, fmt.Errorf("relations[%d] key: %w", i, err)
			}
			m[name] = val
		}
		var r types.Relation
		var err error
		if r.ID, err = requireInt(m, "id"); err != nil {
			return nil, fmt.Errorf("relations[%d]: %w", i, err)
		}
		if r.RelatesTo, err = requireInt(m, "relates-to"); err != nil {
			return nil, fmt.Errorf("relations[%d]: %w", i, err)
		}
		typ, ok := m["as-type"]
		if !ok {
			return nil, fmt.Errorf("relations[%d]: missing required key as-type", i)
		}
		name, err := AsName(typ)
		if err != nil {
			return nil, fmt.Errorf("relations[%d] as-type: %w", i, err)
		}
		r.AsType = types.RelationType(name)
		rels = append(rels, r)
	}
	return rels, nil
}

func asEvents(v interface{}) ([]types.SessionEvent, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("session-events: expected vector, got %T", v)
	}
	events := make([]types.SessionEvent, 0, len(items))
	for i, item := range items {
		rm, ok := item.(map[interface{}]interface{})
		if !ok {
			return nil, fmt.Errorf("session-events[%d]: expected map, got %T", i, item)
		}
		m := make(map[string]interface{}, len(rm))
		for k, val := range rm {
			name, err := AsName(k)
			if err != nil {
				return nil, fmt.Errorf("session-events[%d] key: %w", i, err)
			}
			m[name] = val
		}
		var e types.SessionEvent
		typ, ok := m["event-type"]
		if !ok {
			return nil, fmt.Errorf("session-events[%d]: missing required key event-type", i)
		}
		name, err := AsName(typ)
		if err != nil {
			return nil, fmt.Errorf("session-events[%d] event-type: %w", i, err)
		}
		e.EventType = types.EventType(name)
		if e.Timestamp, err = optString(m, "timestamp"); err != nil {
			return nil, fmt.Errorf("session-events[%d]: %w", i, err)
		}
		if e.Content, err = optString(m, "content"); err != nil {
			return nil, fmt.Errorf("session-events[%d]: %w", i, err)
		}
		if e.Trigger, err = optString(m, "trigger"); err != nil {
			return nil, fmt.Errorf("session-events[%d]: %w", i, err)
		}
		if e.SessionID, err = optString(m, "session-id"); err != nil {
			return nil, fmt.Errorf("session-events[%d]: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func asStringSlice(v interface{}, field string) ([]string, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected vector, got %T", field, v)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, err := AsString(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func writeKeyword(b *bytes.Buffer, name string) {
	b.WriteByte(':')
	b.WriteString(name)
}

func writeKeyInt(b *bytes.Buffer, key string, v int) {
	writeKeyword(b, key)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(v))
}

func writeKeyKeyword(b *bytes.Buffer, key, value string) {
	writeKeyword(b, key)
	b.WriteByte(' ')
	writeKeyword(b, value)
}

func writeKeyString(b *bytes.Buffer, key, value string) error {
	writeKeyword(b, key)
	b.WriteByte(' ')
	enc, err := EncodeString(value)
	if err != nil {
		return err
	}
	b.Write(enc)
	return nil
}

func writeMeta(b *bytes.Buffer, meta map[string]string) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		ek, err := EncodeString(k)
		if err != nil {
			return err
		}
		b.Write(ek)
		b.WriteByte(' ')
		ev, err := EncodeString(meta[k])
		if err != nil {
			return err
		}
		b.Write(ev)
	}
	b.WriteByte('}')
	return nil
}

func writeRelations(b *bytes.Buffer, rels []types.Relation) {
	b.WriteByte('[')
	for i, r := range rels {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('{')
		writeKeyInt(b, "id", r.ID)
		b.WriteByte(' ')
		writeKeyInt(b, "relates-to", r.RelatesTo)
		b.WriteByte(' ')
		writeKeyKeyword(b, "as-type", string(r.AsType))
		b.WriteByte('}')
	}
	b.WriteByte(']')
}

func writeEvents(b *bytes.Buffer, events []types.SessionEvent) error {
	b.WriteByte('[')
	for i, e := range events {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('{')
		writeKeyKeyword(b, "event-type", string(e.EventType))
		if e.Timestamp != "" {
			b.WriteByte(' ')
			if err := writeKeyString(b, "timestamp", e.Timestamp); err != nil {
				return err
			}
		}
		if e.Content != "" {
			b.WriteByte(' ')
			if err := writeKeyString(b, "content", e.Content); err != nil {
				return err
			}
		}
		if e.Trigger != "" {
			b.WriteByte(' ')
			if err := writeKeyString(b, "trigger", e.Trigger); err != nil {
				return err
			}
		}
		if e.SessionID != "" {
			b.WriteByte(' ')
			if err := writeKeyString(b, "session-id", e.SessionID); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return nil
}

func writeStringVector(b *bytes.Buffer, entries []string) error {
	b.WriteByte('[')
	for i, s := range entries {
		if i > 0 {
			b.WriteByte(' ')
		}
		enc, err := EncodeString(s)
		if err != nil {
			return err
		}
		b.Write(enc)
	}
	b.WriteByte(']')
	return nil
}

// escapeNewlines rewrites raw newline and carriage-return bytes inside an
// encoded string literal to their escape sequences. Records must stay one
// line regardless of how the marshaler prints control characters.
func escapeNewlines(enc []byte) []byte {
	if !bytes.ContainsAny(enc, "\n\r") {
		return enc
	}
	var out bytes.Buffer
	out.Grow(len(enc) + 8)
	for _, c := range enc {
		switch c {
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		default:
			out.WriteByte(c)
		}
	}
	return out.Bytes()
}
