package hostclock

import "testing"

func TestMonotonicNs(t *testing.T) {
	prev := MonotonicNs()
	for i := 0; i < 100; i++ {
		now := Monotonic()
		if now < prev {
			t.Fatalf("clock went backwards: %d < %d", now, prev)
		}
		prev = now
	}
}

func TestGranularityNs(t *testing.T) {
	if g := GranularityNs(); g < 0 || g >= 1e9 {
		t.Errorf("granularity = %d", g)
	}
}
