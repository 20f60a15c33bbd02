// Package pointer implements RFC6901 JSON Pointer algebra and the RFC6902
// add/replace/remove patch subset used to target and repair Astra AST nodes.
package pointer

import (
	"strconv"
	"strings"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
)

// Json mirrors the generic JSON value shape produced by the positional parser:
// nil, bool, float64/int64, string, []any, or map[string]any.
type Json = any

// EscapeSegment applies RFC6901 escaping: '~' -> '~0', '/' -> '~1'.
func EscapeSegment(seg string) string {
	seg = strings.ReplaceAll(seg, "~", "~0")
	seg = strings.ReplaceAll(seg, "/", "~1")
	return seg
}

// UnescapeSegment reverses EscapeSegment; order matters ('~1' before '~0').
func UnescapeSegment(seg string) string {
	seg = strings.ReplaceAll(seg, "~1", "/")
	seg = strings.ReplaceAll(seg, "~0", "~")
	return seg
}

// Split decomposes a pointer into unescaped segments. "" and "/" both denote
// the document root and split to an empty slice.
func Split(p string) ([]string, error) {
	if p == "" || p == "/" {
		return nil, nil
	}
	if !strings.HasPrefix(p, "/") {
		return nil, apperr.NewStructural("InvalidPointer", "", "invalid JSON pointer (must start with '/'): "+p)
	}
	raw := strings.Split(strings.TrimPrefix(p, "/"), "/")
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = UnescapeSegment(s)
	}
	return out, nil
}

// Join composes pointer segments (strings or ints) back into a pointer string.
func Join(segments []any) string {
	if len(segments) == 0 {
		return ""
	}
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = EscapeSegment(toString(s))
	}
	return "/" + strings.Join(parts, "/")
}

// JoinStrings is a convenience Join for already-string segments.
func JoinStrings(segments []string) string {
	any2 := make([]any, len(segments))
	for i, s := range segments {
		any2[i] = s
	}
	return Join(any2)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	default:
		return strconv.Itoa(0)
	}
}

// coerceIndex interprets seg as a list index only when cur is a slice.
func coerceIndex(seg string, cur any) any {
	if _, isList := cur.([]any); isList && seg != "-" && isDigits(seg) {
		n, err := strconv.Atoi(seg)
		if err == nil {
			return n
		}
	}
	return seg
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Resolve walks doc along pointer p and returns the referenced node.
func Resolve(doc Json, p string) (Json, error) {
	segs, err := Split(p)
	if err != nil {
		return nil, err
	}
	cur := doc
	for _, raw := range segs {
		seg := coerceIndex(raw, cur)
		switch c := cur.(type) {
		case []any:
			idx, ok := seg.(int)
			if raw == "-" || !ok {
				return nil, apperr.NewStructural("InvalidPointer", p, "expected list index, got "+raw)
			}
			if idx < 0 || idx >= len(c) {
				return nil, apperr.NewStructural("InvalidPointer", p, "list index out of range: "+raw)
			}
			cur = c[idx]
		case map[string]any:
			key, ok := seg.(string)
			if !ok {
				return nil, apperr.NewStructural("InvalidPointer", p, "expected object key")
			}
			v, present := c[key]
			if !present {
				return nil, apperr.NewStructural("InvalidPointer", p, "no such key: "+key)
			}
			cur = v
		default:
			return nil, apperr.NewStructural("InvalidPointer", p, "cannot traverse into non-container at segment "+raw)
		}
	}
	return cur, nil
}

func resolveParent(doc Json, p string) (any, any, error) {
	segs, err := Split(p)
	if err != nil {
		return nil, nil, err
	}
	if len(segs) == 0 {
		return nil, nil, apperr.NewStructural("InvalidPointer", p, "pointer refers to document root; no parent")
	}
	parentPtr := JoinStrings(segs[:len(segs)-1])
	parent, err := Resolve(doc, parentPtr)
	if err != nil {
		return nil, nil, err
	}
	last := coerceIndex(segs[len(segs)-1], parent)
	return parent, last, nil
}

// Op is a single RFC6902 operation (add/replace/remove subset).
type Op struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	HasV  bool   `json:"-"`
}

// DeepCopy produces an independent copy of a generic JSON value tree, for
// callers of ApplyPatch that need to preserve their input (the patch engine
// mutates in place).
func DeepCopy(v Json) Json {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	default:
		return v
	}
}

// ApplyPatch applies a left-to-right sequence of add/replace/remove
// operations to doc, mutating its containers in place, and returns the new
// document root (which differs from doc only on root replacement).
func ApplyPatch(doc Json, patch []Op) (Json, error) {
	for _, op := range patch {
		switch op.Op {
		case "add", "replace", "remove":
		default:
			return nil, apperr.NewDriver("unsupported patch op: " + op.Op)
		}

		if op.Op == "remove" {
			parent, key, err := resolveParent(doc, op.Path)
			if err != nil {
				return nil, apperr.NewDriver(err.Error())
			}
			switch p := parent.(type) {
			case []any:
				idx, ok := key.(int)
				if !ok {
					return nil, apperr.NewDriver("invalid list index for remove")
				}
				if idx < 0 || idx >= len(p) {
					return nil, apperr.NewDriver("list index out of range for remove")
				}
				// Mutate via pointer resolution: find and replace the parent slice
				// at its own location, since Go slices aren't mutated via the
				// []any header held elsewhere.
				if err := spliceList(doc, op.Path, idx); err != nil {
					return nil, err
				}
			case map[string]any:
				k, ok := key.(string)
				if !ok {
					return nil, apperr.NewDriver("invalid object key for remove")
				}
				delete(p, k)
			default:
				return nil, apperr.NewDriver("parent is not a container")
			}
			continue
		}

		if !op.HasV {
			return nil, apperr.NewDriver("patch op '" + op.Op + "' missing value")
		}
		value := op.Value

		if op.Path == "" || op.Path == "/" {
			doc = value
			continue
		}

		parent, key, err := resolveParent(doc, op.Path)
		if err != nil {
			return nil, apperr.NewDriver(err.Error())
		}
		switch p := parent.(type) {
		case []any:
			if key == "-" {
				if err := appendList(doc, parentPointerOf(op.Path), value); err != nil {
					return nil, err
				}
			} else {
				idx, ok := key.(int)
				if !ok {
					return nil, apperr.NewDriver("invalid list index")
				}
				if op.Op == "add" {
					if err := insertList(doc, parentPointerOf(op.Path), idx, value); err != nil {
						return nil, err
					}
				} else {
					if idx < 0 || idx >= len(p) {
						return nil, apperr.NewDriver("list index out of range")
					}
					p[idx] = value
				}
			}
		case map[string]any:
			k, ok := key.(string)
			if !ok {
				return nil, apperr.NewDriver("invalid object key")
			}
			p[k] = value
		default:
			return nil, apperr.NewDriver("parent is not a container")
		}
	}
	return doc, nil
}

// Go slices are value headers: appending/removing from a []any obtained via
// Resolve does not mutate the container the parent map/slice holds unless we
// write the new header back. The three helpers below re-resolve the parent's
// own parent and write the mutated slice back into its slot.

func parentPointerOf(p string) string {
	segs, _ := Split(p)
	if len(segs) == 0 {
		return ""
	}
	return JoinStrings(segs[:len(segs)-1])
}

func spliceList(doc Json, elemPath string, idx int) error {
	listPtr := parentPointerOf(elemPath)
	return mutateListAt(doc, listPtr, func(l []any) []any {
		return append(l[:idx], l[idx+1:]...)
	})
}

func appendList(doc Json, listPtr string, value any) error {
	return mutateListAt(doc, listPtr, func(l []any) []any {
		return append(l, value)
	})
}

func insertList(doc Json, listPtr string, idx int, value any) error {
	return mutateListAt(doc, listPtr, func(l []any) []any {
		if idx < 0 || idx > len(l) {
			idx = len(l)
		}
		out := make([]any, 0, len(l)+1)
		out = append(out, l[:idx]...)
		out = append(out, value)
		out = append(out, l[idx:]...)
		return out
	})
}

// mutateListAt resolves listPtr's *own* parent and replaces the slice value
// with the result of fn, so the mutation is visible from the document root.
func mutateListAt(doc Json, listPtr string, fn func([]any) []any) error {
	if listPtr == "" {
		return apperr.NewDriver("cannot mutate root list in place")
	}
	segs, err := Split(listPtr)
	if err != nil {
		return apperr.NewDriver(err.Error())
	}
	grandParentPtr := JoinStrings(segs[:len(segs)-1])
	lastSeg := segs[len(segs)-1]
	grandParent, err := Resolve(doc, grandParentPtr)
	if err != nil {
		return apperr.NewDriver(err.Error())
	}
	switch gp := grandParent.(type) {
	case map[string]any:
		cur, ok := gp[lastSeg].([]any)
		if !ok {
			return apperr.NewDriver("expected list at " + listPtr)
		}
		gp[lastSeg] = fn(cur)
		return nil
	case []any:
		idx, convErr := strconv.Atoi(lastSeg)
		if convErr != nil || idx < 0 || idx >= len(gp) {
			return apperr.NewDriver("invalid list index in path " + listPtr)
		}
		cur, ok := gp[idx].([]any)
		if !ok {
			return apperr.NewDriver("expected list at " + listPtr)
		}
		gp[idx] = fn(cur)
		return nil
	default:
		return apperr.NewDriver("cannot locate list container at " + listPtr)
	}
}
