// Package socket applies cross-platform socket tuning to the listener
// and accepted connections the server boundary owns, covering the
// options that matter for a short-request-response HTTP/1.1 workload.
package socket

import (
	"net"
	"syscall"
)

// Config represents socket tuning configuration. Zero values mean "use
// system defaults".
type Config struct {
	// NoDelay disables Nagle's algorithm (TCP_NODELAY). HTTP/1.1
	// request/response cycles are latency- not throughput-bound, so
	// this defaults to true.
	NoDelay bool

	// KeepAlive enables SO_KEEPALIVE at the TCP level, independent of
	// the HTTP-level keep-alive the Connection Protocol implements.
	KeepAlive bool

	// RecvBuffer and SendBuffer set SO_RCVBUF/SO_SNDBUF in bytes. Zero
	// leaves the system default in place.
	RecvBuffer int
	SendBuffer int
}

// DefaultConfig returns the recommended configuration for a short-lived,
// many-connection HTTP/1.1 workload.
func DefaultConfig() *Config {
	return &Config{
		NoDelay:   true,
		KeepAlive: true,
	}
}

// Apply tunes an accepted connection. Non-critical options that fail
// (platform-specific ones in particular) are ignored rather than
// surfaced; TCP_NODELAY failing is the one case treated as critical,
// since it indicates conn is not a raw TCP socket as assumed.
func Apply(conn net.Conn, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var criticalErr error
	err = rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if e := syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); e != nil {
				criticalErr = e
				return
			}
		}
		if cfg.RecvBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, cfg.RecvBuffer)
		}
		if cfg.SendBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, cfg.SendBuffer)
		}
		if cfg.KeepAlive {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
		}
		applyPlatformOptions(int(fd), cfg)
	})
	if err != nil {
		return err
	}
	return criticalErr
}

// ApplyListener tunes an already listening socket before Accept is ever
// called, applying options (such as TCP_DEFER_ACCEPT) that belong to the
// listener rather than to each accepted connection.
func ApplyListener(listener net.Listener, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return nil
	}
	file, err := tcpListener.File()
	if err != nil {
		return err
	}
	defer file.Close()
	return applyListenerOptions(int(file.Fd()), cfg)
}
