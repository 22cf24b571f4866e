package shared

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is a 64-bit entity identifier. It crosses the JSON boundary as a
// string so that values beyond 2^53 survive the trip through JavaScript
// clients intact. Incoming payloads may carry either form.
type ID int64

// MarshalJSON encodes the identifier as a quoted decimal string.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(id), 10))), nil
}

// UnmarshalJSON accepts both "123" and 123.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("shared: parse id %q: %w", s, err)
	}
	*id = ID(v)
	return nil
}

// Int64 returns the native value.
func (id ID) Int64() int64 { return int64(id) }
