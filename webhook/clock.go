package webhook

import "time"

// Clock abstracts time so envelope timestamps and backoff delays are
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock uses the system time in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
