package clock

import "time"

// Clock abstracts wall time so services can be tested with a fixed instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At.UTC() }
