package push

import (
	"encoding/json"
	"maps"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// StatusCodeKey is the field the transport adds to the decoded response body
// to carry the HTTP status code.
const StatusCodeKey = "_status_code"

// Result is the read-only view of one OneSignal create-notification response.
type Result struct {
	raw        map[string]any
	statusCode int
}

// NewResult wraps a raw response body and its HTTP status code.
func NewResult(raw map[string]any, statusCode int) *Result {
	r := maps.Clone(raw)
	if r == nil {
		r = map[string]any{}
	}
	return &Result{raw: r, statusCode: statusCode}
}

// IsSuccessful reports a 200 response without errors. OneSignal may answer
// 200 with a partial error list (e.g. an unknown segment); that is a failure too.
func (r *Result) IsSuccessful() bool {
	return r.statusCode == http.StatusOK && isEmpty(r.raw["errors"])
}

// NotificationID returns the OneSignal notification id, or "" when absent.
func (r *Result) NotificationID() string {
	switch v := r.raw["id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return toString(v)
	}
}

// Recipients returns the recipient count, 0 when absent or not numeric.
func (r *Result) Recipients() int {
	n, _ := toInt(r.raw["recipients"])
	return n
}

// Errors returns the provider error list; empty when there are none.
// An object-shaped errors field is returned as a single entry.
func (r *Result) Errors() []any {
	return normalizeErrors(r.raw["errors"])
}

// RawResponse returns a copy of the decoded response.
func (r *Result) RawResponse() map[string]any {
	return maps.Clone(r.raw)
}

func (r *Result) StatusCode() int {
	return r.statusCode
}

func normalizeErrors(v any) []any {
	switch e := v.(type) {
	case nil:
		return []any{}
	case []any:
		return append([]any{}, e...)
	case []string:
		out := make([]any, 0, len(e))
		for _, s := range e {
			out = append(out, s)
		}
		return out
	case string:
		if e == "" {
			return []any{}
		}
		return []any{e}
	case map[string]any:
		if len(e) == 0 {
			return []any{}
		}
		return []any{maps.Clone(e)}
	default:
		if isEmpty(v) {
			return []any{}
		}
		return []any{v}
	}
}

// isEmpty mirrors the loose emptiness a JSON consumer expects: nil, false,
// zero, "" and empty collections.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return rv.IsZero()
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case float32:
		return toInt(float64(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return toInt(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	}
	return ""
}
