package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}

func TestOrDefaultFollowsSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	l := OrDefault(nil)

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	l("hello %d", 7)
	if got != "hello 7" {
		t.Errorf("got %q, want %q", got, "hello 7")
	}

	explicit := Logger(func(string, ...interface{}) { got = "explicit" })
	OrDefault(explicit)("ignored")
	if got != "explicit" {
		t.Errorf("explicit logger not used, got %q", got)
	}
}

func TestPrefixed(t *testing.T) {
	var got string
	l := Logger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})

	l.Prefixed("[cyton] ")("rate=%d", 250)
	if got != "[cyton] rate=250" {
		t.Errorf("got %q", got)
	}
}

func TestDebug(t *testing.T) {
	calls := 0
	l := Logger(func(string, ...interface{}) { calls++ })

	Debug(l, false)("muted")
	Debug(l, true)("shown")
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
