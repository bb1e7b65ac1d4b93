//go:build !go1.22

package main

import "log/slog"

// slog.SetLogLoggerLevel was added in Go 1.22; before that the log-to-slog
// bridge level is fixed at Info and cannot be changed.
func setLogLoggerLevel(slog.Level) {}
