// SPDX-License-Identifier: GPL-3.0-or-later

package memshard

import "time"

// Clock abstracts the scheduling facilities used by this package.
//
// By making retry scheduling and command deadlines depend on an abstract
// clock we allow tests to drive time manually. The [Timer] interface
// matches the timers of [github.com/gotd/neo], so the tests use its fake
// time through a thin adapter that only converts the Timer return type.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Timer creates a new [Timer] that fires after d.
	Timer(d time.Duration) Timer
}

// Timer abstracts a single delayed event.
//
// The [*time.Timer] behavior applies: Stop does not close the channel and
// does not drain a value that already fired.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration)
}

// SystemClock is the [Clock] backed by the runtime clock. This is the
// default used by [NewConfig].
var SystemClock Clock = systemClock{}

// systemClock implements [Clock] using the time package.
type systemClock struct{}

// Now implements [Clock].
func (systemClock) Now() time.Time {
	return time.Now()
}

// Timer implements [Clock].
func (systemClock) Timer(d time.Duration) Timer {
	return systemTimer{t: time.NewTimer(d)}
}

// systemTimer adapts [*time.Timer] to the [Timer] interface.
type systemTimer struct {
	t *time.Timer
}

// C implements [Timer].
func (st systemTimer) C() <-chan time.Time {
	return st.t.C
}

// Stop implements [Timer].
func (st systemTimer) Stop() bool {
	return st.t.Stop()
}

// Reset implements [Timer].
func (st systemTimer) Reset(d time.Duration) {
	st.t.Reset(d)
}
