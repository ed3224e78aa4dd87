package mirror

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Key identifies a row by its primary key values. It always holds an ordered
// sequence, so single-column and composite keys behave identically as map
// keys. Equality is defined by a canonical, collision-safe encoding: each
// value is length-prefixed and NULLs carry their own marker, so ("a|b", "c")
// and ("a", "b|c") never collide the way naive joining would.
type Key struct {
	encoded string
}

// NewKey builds a Key from primary key values in primary-key column order.
func NewKey(values []any) Key {
	var b strings.Builder
	for _, v := range values {
		s, isNull := normalizeValue(v)
		if isNull {
			b.WriteString("n;")
		} else {
			fmt.Fprintf(&b, "v%d:%s;", len(s), s)
		}
	}
	return Key{encoded: b.String()}
}

func (k Key) String() string {
	return k.encoded
}

// Less orders keys by their encoding, giving diff results a stable order.
func (k Key) Less(other Key) bool {
	return k.encoded < other.encoded
}

// normalizeValue renders a scanned database value in a driver-independent
// canonical form, and reports whether the value is NULL. []byte and string
// render identically, and times are normalized to UTC, so the same row
// scanned on either side of the mirror encodes to the same bytes.
func normalizeValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case []byte:
		return string(t), false
	case sql.RawBytes:
		return string(t), false
	case string:
		return t, false
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), false
	default:
		return fmt.Sprintf("%v", t), false
	}
}

// valuesEqual compares two business values with NULL-aware semantics:
// NULL equals NULL for diff purposes, unlike SQL's three-valued logic.
func valuesEqual(a, b any) bool {
	as, aNull := normalizeValue(a)
	bs, bNull := normalizeValue(b)
	if aNull || bNull {
		return aNull == bNull
	}
	return as == bs
}
