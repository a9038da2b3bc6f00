package session

import "time"

// Clock abstracts wall-clock reads so the controller can be tested with a
// fixed clock. The countdown itself is driven by Tick, not by the clock; the
// clock only stamps the attempt record.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
