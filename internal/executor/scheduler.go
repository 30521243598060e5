package executor

import "time"

// Scheduler defers a function by a delay. Injected so retry timing is
// testable without real timers.
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
}

// TimerScheduler schedules on real timers.
type TimerScheduler struct{}

// Schedule runs fn after delay.
func (TimerScheduler) Schedule(delay time.Duration, fn func()) {
	time.AfterFunc(delay, fn)
}

// ImmediateScheduler runs the function synchronously, for tests.
type ImmediateScheduler struct {
	Delays []time.Duration
}

// Schedule records the requested delay and runs fn at once.
func (s *ImmediateScheduler) Schedule(delay time.Duration, fn func()) {
	s.Delays = append(s.Delays, delay)
	fn()
}
