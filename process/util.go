package process

import (
	"fmt"
	"time"
)

// asTime decodes a value pulled out of an eventstore.Document back into a
// time.Time. Memory and Mongo backends round-trip time.Time values as-is;
// the SQL backend's JSON column round-trips through RFC 3339 strings.
func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	default:
		return time.Time{}, fmt.Errorf("unsupported occurred_at representation %T", v)
	}
}

// asInt64 decodes a numeric value from an eventstore.Document, tolerating
// the several shapes JSON and driver-native decoding produce.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
