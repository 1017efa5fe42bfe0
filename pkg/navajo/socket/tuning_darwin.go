//go:build darwin
// +build darwin

package socket

import "syscall"

// Darwin-specific socket option constants; syscall does not export
// these by name on darwin builds.
const (
	soNoSigPipe  = 0x1022
	tcpKeepAlive = 0x10
)

// applyPlatformOptions applies Darwin-specific socket options.
func applyPlatformOptions(fd int, cfg *Config) {
	_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, soNoSigPipe, 1)
	if cfg.KeepAlive {
		_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpKeepAlive, 60)
	}
}

// applyListenerOptions is a no-op on Darwin: there is no
// TCP_DEFER_ACCEPT equivalent available pre-listen.
func applyListenerOptions(fd int, cfg *Config) error {
	return nil
}
