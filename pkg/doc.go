// Package pkg provides shared utilities for the sdspi driver.
//
// This package contains common functionality used by the link, driver,
// simulator, and disk glue packages, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error classes for the block-device error taxonomy
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with driver-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentCard, "card ready", "class", "SDHC")
//
// # Errors
//
// Each error class has a sentinel value, and detailed failures wrap their
// class so either can be matched:
//
//	if errors.Is(err, pkg.ErrTransfer) {
//	    // any command, token, or data-response failure
//	}
//	if errors.Is(err, pkg.ErrTokenTimeout) {
//	    // specifically a missing start token
//	}
package pkg
