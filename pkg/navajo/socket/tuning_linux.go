//go:build linux
// +build linux

package socket

import "syscall"

// Linux-specific TCP socket options not exposed by the standard
// library's syscall package on every architecture.
const (
	// tcpDeferAccept delays waking the server until data has actually
	// arrived on an accepted connection, instead of on the bare SYN/ACK.
	// For a request/response protocol this means the server never wakes
	// for a connection that never sends a request.
	tcpDeferAccept = 9

	// tcpUserTimeout bounds how long the kernel retries unacknowledged
	// data before reporting the connection as dead, in milliseconds.
	tcpUserTimeout = 18

	tcpKeepIdle  = 4
	tcpKeepIntvl = 5
	tcpKeepCnt   = 6
)

// applyPlatformOptions applies Linux-specific socket options to an
// accepted connection.
func applyPlatformOptions(fd int, cfg *Config) {
	_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpUserTimeout, 10000)
	if cfg.KeepAlive {
		_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpKeepIdle, 60)
		_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpKeepIntvl, 10)
		_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpKeepCnt, 3)
	}
}

// applyListenerOptions applies Linux-specific listener options, set
// before Accept is ever called.
func applyListenerOptions(fd int, cfg *Config) error {
	return syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpDeferAccept, 5)
}
