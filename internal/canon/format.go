package canon

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/divyang-garg/astra-guardrails/internal/pointer"
)

var moduleKeyOrder = []string{"module", "version", "imports", "externs", "functions", "tests", "properties", "metadata"}

var functionKeyOrder = []string{"name", "doc", "type_params", "params", "param_types", "returns", "effects", "requires", "ensures", "body", "tests", "properties"}

var testKeyOrder = []string{"name", "fn", "args", "expect"}

var propertyKeyOrder = []string{"name", "fn", "strategy", "expect"}

var ifKeyOrder = []string{"cond", "then", "else"}
var letKeyOrder = []string{"name", "expr"}
var assertKeyOrder = []string{"expr", "message"}
var callKeyOrder = []string{"fn", "args"}

func orderedKeys(obj map[string]any, preferred []string) []string {
	seen := make(map[string]bool, len(preferred))
	out := make([]string, 0, len(obj))
	for _, k := range preferred {
		if _, ok := obj[k]; ok {
			out = append(out, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range obj {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func hasAllKeys(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}

// orderedMap preserves insertion order for canonical JSON encoding.
type orderedMap struct {
	keys   []string
	values map[string]any
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: map[string]any{}}
}

func (m *orderedMap) set(k string, v any) {
	if _, exists := m.values[k]; !exists {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// MarshalJSON emits keys in insertion order, indenting is applied by the
// caller via json.MarshalIndent equivalent logic in Dumps.
func (m *orderedMap) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Canonicalize rewrites node's key order per the shape heuristics documented
// in SPEC_FULL.md §4.C, dropping nil-valued optional fields the same way the
// original's canonicalizer filters `v is not None`.
func Canonicalize(node pointer.Json) pointer.Json {
	switch t := node.(type) {
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = Canonicalize(v)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}

		if _, hasModule := t["module"]; hasModule {
			if _, hasFns := t["functions"]; hasFns {
				return buildOrdered(t, orderedKeys(t, moduleKeyOrder), false)
			}
		}

		if hasAllKeys(t, "name", "params", "effects", "body") {
			return buildOrdered(t, orderedKeys(t, functionKeyOrder), true)
		}

		if hasAllKeys(t, "fn", "args", "expect") {
			if _, hasStrategy := t["strategy"]; !hasStrategy {
				return buildOrdered(t, orderedKeys(t, testKeyOrder), true)
			}
		}

		if hasAllKeys(t, "fn", "strategy", "expect") {
			return buildOrdered(t, orderedKeys(t, propertyKeyOrder), true)
		}

		if len(keys) == 1 {
			switch keys[0] {
			case "if":
				if inner, ok := t["if"].(map[string]any); ok {
					return map[string]any{"if": buildOrdered(inner, orderedKeys(inner, ifKeyOrder), true)}
				}
			case "let":
				if inner, ok := t["let"].(map[string]any); ok {
					return map[string]any{"let": buildOrdered(inner, orderedKeys(inner, letKeyOrder), true)}
				}
			case "assert":
				if inner, ok := t["assert"].(map[string]any); ok {
					return map[string]any{"assert": buildOrdered(inner, orderedKeys(inner, assertKeyOrder), true)}
				}
			case "return", "expr":
				return map[string]any{keys[0]: Canonicalize(t[keys[0]])}
			case "call":
				if inner, ok := t["call"].(map[string]any); ok {
					return map[string]any{"call": buildOrdered(inner, orderedKeys(inner, callKeyOrder), true)}
				}
			case "var", "list":
				return map[string]any{keys[0]: Canonicalize(t[keys[0]])}
			case "obj":
				if inner, ok := t["obj"].(map[string]any); ok {
					innerKeys := make([]string, 0, len(inner))
					for k := range inner {
						innerKeys = append(innerKeys, k)
					}
					sort.Strings(innerKeys)
					om := newOrderedMap()
					for _, k := range innerKeys {
						om.set(k, Canonicalize(inner[k]))
					}
					return map[string]any{"obj": om}
				}
			}
		}

		sort.Strings(keys)
		om := newOrderedMap()
		for _, k := range keys {
			om.set(k, Canonicalize(t[k]))
		}
		return om
	default:
		return node
	}
}

// buildOrdered emits obj's keys in the given order. When dropNil is set,
// keys whose value is JSON null are omitted entirely, matching the
// original's `if v is not None` filter for function/test/property/statement
// and expression wrapper nodes (module nodes never filter nulls).
func buildOrdered(obj map[string]any, keys []string, dropNil bool) *orderedMap {
	om := newOrderedMap()
	for _, k := range keys {
		v := obj[k]
		if dropNil && v == nil {
			continue
		}
		om.set(k, Canonicalize(v))
	}
	return om
}

// Dumps serialises ast in canonical form: two-space indent, Unicode
// preserved (no ASCII escaping), trailing newline.
func Dumps(ast pointer.Json) (string, error) {
	canon := Canonicalize(ast)
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(canon); err != nil {
		return "", err
	}
	// json.Encoder.Encode already appends a trailing newline.
	return buf.String(), nil
}
