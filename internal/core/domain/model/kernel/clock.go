package kernel

import "time"

// Clock abstracts time.Now for code that reasons about deadlines.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns UTC wall-clock time.
func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}
