package ttl

import (
	"testing"
	"time"
)

func TestSecondsRoundsUp(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want int64
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
	}
	for _, tc := range cases {
		if got := Seconds(tc.in); got != tc.want {
			t.Fatalf("Seconds(%v)=%d want %d", tc.in, got, tc.want)
		}
	}
}

func TestMemcacheAbsoluteBeyondThirtyDays(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	if got := Memcache(time.Minute, now); got != 60 {
		t.Fatalf("relative: got %d", got)
	}
	d := 31 * 24 * time.Hour
	if got := Memcache(d, now); got != int32(now.Add(d).Unix()) {
		t.Fatalf("absolute: got %d", got)
	}
}
