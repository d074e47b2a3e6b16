// Package safego launches background goroutines that cannot take the server
// down with them.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn in a new goroutine. A panic in fn is recovered and logged with
// its stack. Use it for fire-and-forget work such as audit delivery and
// background jobs.
func Go(fn func()) {
	go func() {
		defer Recover("background goroutine")
		fn()
	}()
}

// Recover logs a recovered panic. It must be called directly by defer.
func Recover(where string) {
	if r := recover(); r != nil {
		slog.Error("recovered panic", "where", where, "panic", r, "stack", string(debug.Stack()))
	}
}
