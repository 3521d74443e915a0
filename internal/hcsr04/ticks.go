package hcsr04

// TickDiff returns the number of ticks elapsed from a to b on the wrapping
// 32-bit microsecond counter. Unsigned subtraction gives the correct result
// even when the counter has wrapped past zero between the two samples, so
// long as the true elapsed time is under 2^32 microseconds (~72 minutes).
func TickDiff(a, b uint32) uint32 {
	return b - a
}
