// Package ttl converts durations into the whole-second expirations some
// backends require.
package ttl

import "time"

// memcached treats expirations above 30 days as absolute unix timestamps.
const memcacheRelativeMax = 30 * 24 * time.Hour

// Seconds rounds d up to whole seconds. d <= 0 => 0 (no expiry).
func Seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	s := int64(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}

// Memcache returns the Item.Expiration value for d relative to now.
func Memcache(d time.Duration, now time.Time) int32 {
	if d <= 0 {
		return 0
	}
	if d > memcacheRelativeMax {
		return int32(now.Add(d).Unix())
	}
	return int32(Seconds(d))
}
