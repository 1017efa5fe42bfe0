//go:build !linux && !darwin
// +build !linux,!darwin

package socket

// applyPlatformOptions is a no-op on platforms without a tuned path.
func applyPlatformOptions(fd int, cfg *Config) {}

// applyListenerOptions is a no-op on platforms without a tuned path.
func applyListenerOptions(fd int, cfg *Config) error { return nil }
