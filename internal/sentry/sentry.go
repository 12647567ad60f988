// Package sentry wraps crash reporting. Every function is a safe no-op until
// Init succeeds with a DSN, so the daemon can call these unconditionally.
package sentry

import (
	"runtime"
	"time"

	gosentry "github.com/getsentry/sentry-go"
)

// enabled tracks whether sentry was successfully initialized.
var enabled bool

// Init initializes the Sentry SDK. An empty dsn disables reporting.
func Init(dsn, version string) error {
	if dsn == "" {
		enabled = false
		return nil
	}

	err := gosentry.Init(gosentry.ClientOptions{
		Dsn:              dsn,
		Release:          "inkd@" + version,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return err
	}

	gosentry.ConfigureScope(func(scope *gosentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("go_version", runtime.Version())
		scope.SetTag("version", version)
	})

	enabled = true
	return nil
}

// IsEnabled returns whether sentry is active.
func IsEnabled() bool {
	return enabled
}

// Flush waits up to 2 seconds for buffered events to be sent.
func Flush() {
	if !enabled {
		return
	}
	gosentry.Flush(2 * time.Second)
}

// CaptureError reports err without interrupting the caller.
func CaptureError(err error) {
	if !enabled || err == nil {
		return
	}
	gosentry.CaptureException(err)
}

// RecoverPanic captures a panic to Sentry, flushes, then re-panics.
// Usage: defer sentry.RecoverPanic()
func RecoverPanic() {
	if !enabled {
		return
	}
	if err := recover(); err != nil {
		gosentry.CurrentHub().Recover(err)
		gosentry.Flush(2 * time.Second)
		panic(err)
	}
}

// SetDevice tags subsequent events with the device backend in use.
func SetDevice(backend string) {
	if !enabled {
		return
	}
	gosentry.ConfigureScope(func(scope *gosentry.Scope) {
		scope.SetTag("device", backend)
	})
}
