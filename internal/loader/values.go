package loader

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// textValue renders v in PostgreSQL input syntax for a column of dataType.
// ok is false when v is SQL NULL.
func textValue(v any, dataType string) (s string, ok bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case *string:
		if x == nil {
			return "", false
		}
		return *x, true
	case []byte:
		if x == nil {
			return "", false
		}
		if dataType == "bytea" {
			return `\x` + hex.EncodeToString(x), true
		}
		return string(x), true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case time.Time:
		return x.Format(time.RFC3339Nano), true
	case *time.Time:
		if x == nil {
			return "", false
		}
		return x.Format(time.RFC3339Nano), true
	case time.Duration:
		// interval accepts Go's duration syntax only partially; seconds are unambiguous.
		return strconv.FormatFloat(x.Seconds(), 'f', -1, 64) + " seconds", true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}
