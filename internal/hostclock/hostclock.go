// Package hostclock — монотонные часы хоста в наносекундах; ими источники
// без собственного времени (i2c) помечают отсчёты.
package hostclock

// Clock возвращает монотонное время в наносекундах
type Clock func() uint64

// Monotonic — часы по умолчанию
var Monotonic Clock = MonotonicNs
