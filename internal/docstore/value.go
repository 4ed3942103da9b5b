package docstore

import (
	"encoding/json"
	"strconv"
	"time"
)

// String returns v as a string, or "" when it is not one.
func String(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case *string:
		if t != nil {
			return *t
		}
	}
	return ""
}

// OptString returns nil for absent, null or empty values.
func OptString(v interface{}) *string {
	s := String(v)
	if s == "" {
		return nil
	}
	return &s
}

func Bool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

// Float decodes the numeric representations produced by the backends.
func Float(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func Int(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		f, err := t.Float64()
		return int(f), err == nil
	case string:
		i, err := strconv.Atoi(t)
		return i, err == nil
	}
	return 0, false
}

// Time decodes time.Time values and RFC 3339 strings.
func Time(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

// OptTime returns nil for absent, null or unparsable values.
func OptTime(v interface{}) *time.Time {
	t, ok := Time(v)
	if !ok {
		return nil
	}
	return &t
}

// Slice returns v as a []interface{} when it is one.
func Slice(v interface{}) []interface{} {
	switch t := v.(type) {
	case []interface{}:
		return t
	case []string:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	}
	return nil
}

func Map(v interface{}) Data {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}

// compare orders a and b when both are numbers, strings, times or bools.
func compare(a, b interface{}) (int, bool) {
	if fa, ok := Float(a); ok {
		if _, isStr := a.(string); !isStr {
			fb, ok := Float(b)
			if _, bStr := b.(string); !ok || bStr {
				return 0, false
			}
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	switch ta := a.(type) {
	case string:
		tb, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case ta < tb:
			return -1, true
		case ta > tb:
			return 1, true
		}
		return 0, true
	case time.Time:
		tb, ok := Time(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	case bool:
		tb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if ta == tb {
			return 0, true
		}
		if !ta {
			return -1, true
		}
		return 1, true
	case nil:
		if b == nil {
			return 0, true
		}
	}
	return 0, false
}

// Match evaluates f against a document's fields. It is used by stores that
// filter in process.
func Match(data Data, f Filter) bool {
	v, present := data[f.Field]
	switch f.Op {
	case OpEq:
		c, ok := compare(v, f.Value)
		return present && ok && c == 0
	case OpNe:
		c, ok := compare(v, f.Value)
		return present && (!ok || c != 0)
	case OpLt, OpLte, OpGt, OpGte:
		c, ok := compare(v, f.Value)
		if !present || !ok {
			return false
		}
		switch f.Op {
		case OpLt:
			return c < 0
		case OpLte:
			return c <= 0
		case OpGt:
			return c > 0
		}
		return c >= 0
	case OpIn:
		for _, candidate := range Slice(f.Value) {
			if c, ok := compare(v, candidate); present && ok && c == 0 {
				return true
			}
		}
		return false
	case OpArrayContains:
		for _, el := range Slice(v) {
			if c, ok := compare(el, f.Value); ok && c == 0 {
				return true
			}
		}
		return false
	}
	return false
}
