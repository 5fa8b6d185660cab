//go:build !linux

package hostclock

import "time"

var start = time.Now()

// MonotonicNs — время от запуска процесса по монотонной части time.Now
func MonotonicNs() uint64 {
	return uint64(time.Since(start))
}

// GranularityNs — заглушка на не-Linux.
func GranularityNs() int64 {
	return 0
}
