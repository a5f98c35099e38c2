// Package sqlcommon holds the Go helpers shared verbatim between the
// sqlitestore and pgstore backends: JSON column (de)serialization, the
// working-state patch merge, and the tag/entity overlap filter. Each backend
// writes its own SQL text, column lists and ORDER BY clauses included.
package sqlcommon

import "encoding/json"

// MarshalJSON encodes v as a JSON column value. A nil slice/map encodes to
// "null" rather than an empty array/object, matching encoding/json's default
// so round trips are exact.
func MarshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes a JSON column value into dst. A NULL or empty column
// leaves dst at its zero value.
func UnmarshalJSON(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
