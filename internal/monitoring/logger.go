package monitoring

import "log"

// Logger is a printf-style diagnostic sink. Components take one as an explicit
// dependency rather than reaching for a shared logger.
type Logger func(format string, v ...interface{})

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf Logger = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f Logger) {
	if f == nil {
		Logf = Discard
		return
	}
	Logf = f
}

// Discard drops every message.
func Discard(string, ...interface{}) {}

// OrDefault returns l, or a Logger that forwards to the current package Logf
// when l is nil. Forwarding means a later SetLogger still takes effect.
func OrDefault(l Logger) Logger {
	if l != nil {
		return l
	}
	return func(format string, v ...interface{}) {
		Logf(format, v...)
	}
}

// Prefixed returns a Logger that prepends prefix to every message.
func (l Logger) Prefixed(prefix string) Logger {
	base := OrDefault(l)
	return func(format string, v ...interface{}) {
		base(prefix+format, v...)
	}
}

// Debug returns l when enabled is true and a no-op Logger otherwise.
func Debug(l Logger, enabled bool) Logger {
	if !enabled {
		return Discard
	}
	return OrDefault(l)
}
