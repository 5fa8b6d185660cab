//go:build linux

package hostclock

import (
	"time"

	"golang.org/x/sys/unix"
)

var start = time.Now()

// MonotonicNs читает CLOCK_MONOTONIC. Если вызов не удался, считает от
// момента запуска процесса по монотонной части time.Now.
func MonotonicNs() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return uint64(time.Since(start))
	}
	return uint64(ts.Sec)*1e9 + uint64(ts.Nsec)
}

// GranularityNs выполняет простое измерение гранулярности часов (разрешение clock_gettime).
// Делает несколько вызовов clock_gettime и возвращает минимальный ненулевой интервал в наносекундах.
func GranularityNs() int64 {
	const rounds = 20
	var minDt int64 = 1e9
	for i := 0; i < rounds; i++ {
		var t1, t2 unix.Timespec
		_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &t1)
		_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &t2)
		dt := int64(t2.Sec-t1.Sec)*1e9 + int64(t2.Nsec-t1.Nsec)
		if dt > 0 && dt < minDt {
			minDt = dt
		}
	}
	if minDt == 1e9 {
		return 0
	}
	return minDt
}
