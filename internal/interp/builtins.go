package interp

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
)

// Dispatch invokes a user-defined or builtin function by name with
// positional arguments, used by the higher-order list builtins. The host
// supplies this via RunContext.Dispatch rather than a package-level global,
// so concurrent runs never share effect state.
type Dispatch func(fnName string, args []any) (any, error)

// RunContext carries the per-run effect allow-list and function dispatcher
// explicitly, replacing the upstream implementation's process-global
// equivalents so concurrent interpreter runs (e.g. parallel property-test
// shrinking) never interfere with each other.
type RunContext struct {
	Allowed  map[string]bool
	Dispatch Dispatch
	// HTTPClient is used by http_get; defaults to a client with a bounded
	// timeout when nil, since the interpreter must not hang a request.
	HTTPClient *http.Client
}

// NewRunContext builds a RunContext with the given allowed effects (falling
// back to {"pure"} when empty, matching the original's set_allowed_effects).
func NewRunContext(allowedEffects []string) *RunContext {
	allowed := map[string]bool{}
	for _, e := range allowedEffects {
		allowed[e] = true
	}
	if len(allowed) == 0 {
		allowed["pure"] = true
	}
	return &RunContext{Allowed: allowed, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func (rc *RunContext) require(effect string) error {
	if !rc.Allowed[effect] {
		keys := make([]string, 0, len(rc.Allowed))
		for k := range rc.Allowed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return apperr.NewRuntimeFault("EffectNotAllowed", fmt.Sprintf("Effect '%s' is not allowed (allowed=%v)", effect, keys))
	}
	return nil
}

func (rc *RunContext) needDispatch() (Dispatch, error) {
	if rc.Dispatch == nil {
		return nil, apperr.NewRuntimeFault("NoDispatcher", "Higher-order builtin requires a dispatcher; the run context was not wired with one")
	}
	return rc.Dispatch, nil
}

func asNumber(v any) (float64, bool, error) {
	switch n := v.(type) {
	case int64:
		return float64(n), true, nil
	case float64:
		return n, false, nil
	default:
		return 0, false, apperr.NewRuntimeFault("TypeError", fmt.Sprintf("expected a number, got %T", v))
	}
}

func numericAdd(a, b any) (any, error) {
	af, aInt, err := asNumber(a)
	if err != nil {
		return nil, err
	}
	bf, bInt, err := asNumber(b)
	if err != nil {
		return nil, err
	}
	if aInt && bInt {
		return a.(int64) + b.(int64), nil
	}
	return af + bf, nil
}

func numericSub(a, b any) (any, error) {
	af, aInt, err := asNumber(a)
	if err != nil {
		return nil, err
	}
	bf, bInt, err := asNumber(b)
	if err != nil {
		return nil, err
	}
	if aInt && bInt {
		return a.(int64) - b.(int64), nil
	}
	return af - bf, nil
}

func numericMul(a, b any) (any, error) {
	af, aInt, err := asNumber(a)
	if err != nil {
		return nil, err
	}
	bf, bInt, err := asNumber(b)
	if err != nil {
		return nil, err
	}
	if aInt && bInt {
		return a.(int64) * b.(int64), nil
	}
	return af * bf, nil
}

// numericDiv always returns a Float, per Astra's div signature (Int,Int)->Float.
// Division by zero is a Runtime fault, never a panic, per the decided
// language semantics for this port.
func numericDiv(a, b any) (any, error) {
	af, _, err := asNumber(a)
	if err != nil {
		return nil, err
	}
	bf, _, err := asNumber(b)
	if err != nil {
		return nil, err
	}
	if bf == 0 {
		return nil, apperr.NewRuntimeFault("DivisionByZero", "div: division by zero")
	}
	return af / bf, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) != 0
	case map[string]any:
		return len(x) != 0
	default:
		return true
	}
}

func valuesEqual(a, b any) bool {
	af, aIsNum, aErr := asNumber(a)
	bf, bIsNum, bErr := asNumber(b)
	if aErr == nil && bErr == nil && (isNumber(a) && isNumber(b)) {
		_ = aIsNum
		_ = bIsNum
		return af == bf
	}
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, has := bv[k]
			if !has || !valuesEqual(v, bvv) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	default:
		return false
	}
}

func compareNumbers(a, b any, op string) (bool, error) {
	af, _, err := asNumber(a)
	if err != nil {
		return false, err
	}
	bf, _, err := asNumber(b)
	if err != nil {
		return false, err
	}
	switch op {
	case "lt":
		return af < bf, nil
	case "lte":
		return af <= bf, nil
	case "gt":
		return af > bf, nil
	case "gte":
		return af >= bf, nil
	}
	return false, apperr.NewRuntimeFault("InternalError", "unknown comparison op "+op)
}

func asList(v any, builtin string, argName string) ([]any, error) {
	l, ok := v.([]any)
	if !ok {
		return nil, apperr.NewRuntimeFault("TypeError", fmt.Sprintf("%s: %s must be a list, got %T", builtin, argName, v))
	}
	return l, nil
}

func asIndex(v any, builtin string) (int, error) {
	n, isInt, err := asNumber(v)
	if err != nil {
		return 0, err
	}
	_ = isInt
	return int(n), nil
}

func asString(v any, builtin, argName string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", apperr.NewRuntimeFault("TypeError", fmt.Sprintf("%s: %s must be a string, got %T", builtin, argName, v))
	}
	return s, nil
}

func asObj(v any, builtin, argName string) (map[string]any, error) {
	o, ok := v.(map[string]any)
	if !ok {
		return nil, apperr.NewRuntimeFault("TypeError", fmt.Sprintf("%s: %s must be an object, got %T", builtin, argName, v))
	}
	return o, nil
}

// BuiltinEffectOf maps each effectful builtin to the effect tag it requires;
// builtins not listed are pure. CallBuiltin does not consult it.
var BuiltinEffectOf = map[string]string{
	"print":    "io.print",
	"http_get": "net.http",
}

// CallBuiltin evaluates a single builtin given already-evaluated args.
func (rc *RunContext) CallBuiltin(name string, args []any) (any, error) {
	switch name {
	case "add":
		return numericAdd(args[0], args[1])
	case "sub":
		return numericSub(args[0], args[1])
	case "mul":
		return numericMul(args[0], args[1])
	case "div":
		return numericDiv(args[0], args[1])
	case "eq":
		return valuesEqual(args[0], args[1]), nil
	case "neq":
		return !valuesEqual(args[0], args[1]), nil
	case "lt":
		return compareNumbers(args[0], args[1], "lt")
	case "lte":
		return compareNumbers(args[0], args[1], "lte")
	case "gt":
		return compareNumbers(args[0], args[1], "gt")
	case "gte":
		return compareNumbers(args[0], args[1], "gte")
	case "and":
		return truthy(args[0]) && truthy(args[1]), nil
	case "or":
		return truthy(args[0]) || truthy(args[1]), nil
	case "not":
		return !truthy(args[0]), nil

	case "str_len":
		s, err := asString(args[0], "str_len", "s")
		if err != nil {
			return nil, err
		}
		return int64(len([]rune(s))), nil
	case "str_concat":
		a, err := asString(args[0], "str_concat", "a")
		if err != nil {
			return nil, err
		}
		b, err := asString(args[1], "str_concat", "b")
		if err != nil {
			return nil, err
		}
		return a + b, nil
	case "str_contains":
		s, err := asString(args[0], "str_contains", "s")
		if err != nil {
			return nil, err
		}
		sub, err := asString(args[1], "str_contains", "sub")
		if err != nil {
			return nil, err
		}
		return containsString(s, sub), nil

	case "len":
		xs, err := asList(args[0], "len", "xs")
		if err != nil {
			return nil, err
		}
		return int64(len(xs)), nil
	case "list_get":
		xs, err := asList(args[0], "list_get", "xs")
		if err != nil {
			return nil, err
		}
		i, err := asIndex(args[1], "list_get")
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= len(xs) {
			return nil, apperr.NewRuntimeFault("IndexError", fmt.Sprintf("list_get: index %d out of range for list of length %d", i, len(xs)))
		}
		return xs[i], nil
	case "list_set":
		xs, err := asList(args[0], "list_set", "xs")
		if err != nil {
			return nil, err
		}
		i, err := asIndex(args[1], "list_set")
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= len(xs) {
			return nil, apperr.NewRuntimeFault("IndexError", fmt.Sprintf("list_set: index %d out of range for list of length %d", i, len(xs)))
		}
		ys := append([]any{}, xs...)
		ys[i] = args[2]
		return ys, nil
	case "list_append":
		xs, err := asList(args[0], "list_append", "xs")
		if err != nil {
			return nil, err
		}
		return append(append([]any{}, xs...), args[1]), nil
	case "list_concat":
		xs, err := asList(args[0], "list_concat", "a")
		if err != nil {
			return nil, err
		}
		ys, err := asList(args[1], "list_concat", "b")
		if err != nil {
			return nil, err
		}
		return append(append([]any{}, xs...), ys...), nil
	case "list_slice":
		xs, err := asList(args[0], "list_slice", "xs")
		if err != nil {
			return nil, err
		}
		start, end := 0, len(xs)
		if args[1] != nil {
			s, err := asIndex(args[1], "list_slice")
			if err != nil {
				return nil, err
			}
			start = clampIndex(s, len(xs))
		}
		if args[2] != nil {
			e, err := asIndex(args[2], "list_slice")
			if err != nil {
				return nil, err
			}
			end = clampIndex(e, len(xs))
		}
		if start > end {
			start = end
		}
		return append([]any{}, xs[start:end]...), nil
	case "list_range":
		n, err := asIndex(args[0], "list_range")
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, int64(i))
		}
		return out, nil
	case "list_sum":
		xs, err := asList(args[0], "list_sum", "xs")
		if err != nil {
			return nil, err
		}
		return listSum(xs)
	case "list_mean":
		xs, err := asList(args[0], "list_mean", "xs")
		if err != nil {
			return nil, err
		}
		if len(xs) == 0 {
			return nil, apperr.NewRuntimeFault("EmptyList", "list_mean: empty list")
		}
		sum, err := listSum(xs)
		if err != nil {
			return nil, err
		}
		sf, _, _ := asNumber(sum)
		return sf / float64(len(xs)), nil
	case "list_map":
		fn, err := asString(args[0], "list_map", "fn")
		if err != nil {
			return nil, err
		}
		xs, err := asList(args[1], "list_map", "xs")
		if err != nil {
			return nil, err
		}
		disp, err := rc.needDispatch()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(xs))
		for _, x := range xs {
			v, err := disp(fn, []any{x})
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case "list_filter":
		fn, err := asString(args[0], "list_filter", "fn")
		if err != nil {
			return nil, err
		}
		xs, err := asList(args[1], "list_filter", "xs")
		if err != nil {
			return nil, err
		}
		disp, err := rc.needDispatch()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(xs))
		for _, x := range xs {
			v, err := disp(fn, []any{x})
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				out = append(out, x)
			}
		}
		return out, nil
	case "list_reduce":
		fn, err := asString(args[0], "list_reduce", "fn")
		if err != nil {
			return nil, err
		}
		xs, err := asList(args[2], "list_reduce", "xs")
		if err != nil {
			return nil, err
		}
		disp, err := rc.needDispatch()
		if err != nil {
			return nil, err
		}
		acc := args[1]
		for _, x := range xs {
			v, err := disp(fn, []any{acc, x})
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil

	case "obj_get":
		o, err := asObj(args[0], "obj_get", "o")
		if err != nil {
			return nil, err
		}
		key, err := asString(args[1], "obj_get", "key")
		if err != nil {
			return nil, err
		}
		v, has := o[key]
		if !has {
			return nil, apperr.NewRuntimeFault("KeyError", fmt.Sprintf("obj_get: no such key '%s'", key))
		}
		return v, nil
	case "obj_get_or":
		o, err := asObj(args[0], "obj_get_or", "o")
		if err != nil {
			return nil, err
		}
		key, err := asString(args[1], "obj_get_or", "key")
		if err != nil {
			return nil, err
		}
		if v, has := o[key]; has {
			return v, nil
		}
		return args[2], nil
	case "obj_has":
		o, err := asObj(args[0], "obj_has", "o")
		if err != nil {
			return nil, err
		}
		key, err := asString(args[1], "obj_has", "key")
		if err != nil {
			return nil, err
		}
		_, has := o[key]
		return has, nil
	case "obj_set":
		o, err := asObj(args[0], "obj_set", "o")
		if err != nil {
			return nil, err
		}
		key, err := asString(args[1], "obj_set", "key")
		if err != nil {
			return nil, err
		}
		out := copyObj(o)
		out[key] = args[2]
		return out, nil
	case "obj_del":
		o, err := asObj(args[0], "obj_del", "o")
		if err != nil {
			return nil, err
		}
		key, err := asString(args[1], "obj_del", "key")
		if err != nil {
			return nil, err
		}
		out := copyObj(o)
		delete(out, key)
		return out, nil
	case "obj_keys":
		o, err := asObj(args[0], "obj_keys", "o")
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(o))
		for k := range o {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	case "obj_merge":
		a, err := asObj(args[0], "obj_merge", "a")
		if err != nil {
			return nil, err
		}
		b, err := asObj(args[1], "obj_merge", "b")
		if err != nil {
			return nil, err
		}
		out := copyObj(a)
		for k, v := range b {
			out[k] = v
		}
		return out, nil

	case "print":
		if err := rc.require("io.print"); err != nil {
			return nil, err
		}
		fmt.Println(formatPrint(args[0]))
		return nil, nil
	case "http_get":
		if err := rc.require("net.http"); err != nil {
			return nil, err
		}
		url, err := asString(args[0], "http_get", "url")
		if err != nil {
			return nil, err
		}
		return rc.httpGet(url)
	}

	return nil, apperr.NewRuntimeFault("UnknownBuiltin", fmt.Sprintf("Unknown builtin: %s", name))
}

func listSum(xs []any) (any, error) {
	allInt := true
	var fsum float64
	var isum int64
	for _, x := range xs {
		f, isInt, err := asNumber(x)
		if err != nil {
			return nil, err
		}
		fsum += f
		if isInt {
			isum += x.(int64)
		} else {
			allInt = false
		}
	}
	if allInt {
		return isum, nil
	}
	return fsum, nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		i = n + i
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func copyObj(o map[string]any) map[string]any {
	out := make(map[string]any, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

func containsString(s, sub string) bool {
	return len(sub) == 0 || indexOfString(s, sub) >= 0
}

func indexOfString(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func formatPrint(v any) string {
	return fmt.Sprintf("%v", v)
}

func (rc *RunContext) httpGet(url string) (string, error) {
	client := rc.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(url)
	if err != nil {
		return "", apperr.NewRuntimeFault("HTTPError", err.Error())
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.NewRuntimeFault("HTTPError", err.Error())
	}
	return string(data), nil
}

// IsBuiltin reports whether name is a recognised builtin.
func IsBuiltin(name string) bool {
	_, ok := builtinNames[name]
	return ok
}

var builtinNames = map[string]bool{
	"add": true, "sub": true, "mul": true, "div": true,
	"eq": true, "neq": true, "lt": true, "lte": true, "gt": true, "gte": true,
	"and": true, "or": true, "not": true,
	"str_len": true, "str_concat": true, "str_contains": true,
	"len": true, "list_get": true, "list_set": true, "list_append": true,
	"list_concat": true, "list_slice": true, "list_range": true,
	"list_sum": true, "list_mean": true, "list_map": true, "list_filter": true, "list_reduce": true,
	"obj_get": true, "obj_get_or": true, "obj_has": true, "obj_set": true, "obj_del": true,
	"obj_keys": true, "obj_merge": true,
	"print": true, "http_get": true,
}
