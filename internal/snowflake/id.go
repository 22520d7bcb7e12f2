// Package snowflake provides time ordered identifiers.
package snowflake

import (
	"math/rand"
	"strconv"
	"time"
)

// ID is a 64 bit identifier whose high bits are a millisecond timestamp.
// IDs created later sort after IDs created earlier.
type ID uint64

// Now returns a new ID for the current time.
func Now() ID {
	return TimeToID(time.Now())
}

// TimeToID converts a time.Time to a Snowflake ID.
func TimeToID(ts time.Time) ID {
	// 48 bits for time in milliseconds.
	// 16 bits for random.
	return ID(uint64(ts.UnixNano()/int64(time.Millisecond))<<16 | uint64(rand.Intn(1<<16)))
}

// ToTime converts a Snowflake ID to a time.Time.
func (id ID) ToTime() time.Time {
	return time.UnixMilli(int64(id >> 16))
}

// String returns the decimal form of the ID, as used in locators.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Parse is the inverse of String.
func Parse(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return ID(v), err
}
