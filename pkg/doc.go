// Package pkg provides shared utilities for the SoftIO transport core.
//
// This package contains common functionality used across the fifo, softio,
// link, and stream packages, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for SoftIO protocol errors
//   - Component identifiers for log filtering
//
// The package is designed to have zero external dependencies, relying
// only on the Go standard library.
//
// # Logging
//
// The logging subsystem wraps [log/slog] with SoftIO-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentSoftIO, "session opened", "pid", pid)
//
// # Errors
//
// Common SoftIO errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrChecksum) {
//	    // link is corrupted, poison the session
//	}
package pkg
