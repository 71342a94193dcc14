// Package assert holds development-time invariant checks.
//
// Checks are compiled in only with the tilefxdebug build tag. Release builds
// never panic from here; callers always have a returned error or result as
// their failure channel.
package assert

import "github.com/cockroachdb/errors"

// That panics with an assertion failure when cond is false and checks are enabled.
func That(cond bool, format string, args ...any) {
	if enabled && !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}

// Enabled reports whether checks are compiled in.
func Enabled() bool { return enabled }
