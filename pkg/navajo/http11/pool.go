package http11

import "github.com/valyala/bytebufferpool"

// bufPool reuses the byte buffers RequestBuffer accumulates bytes into.
// bytebufferpool tracks and discards oversized buffers by calibrated size
// class, instead of pinning a connection's peak memory into the pool
// forever the way a raw sync.Pool of []byte would.
var bufPool bytebufferpool.Pool

// AcquireRequestBuffer returns a RequestBuffer whose backing byte store
// comes from the shared pool. The Connection Protocol uses this instead
// of NewRequestBuffer for every buffer on the hot accept path, since a
// busy server installs a fresh buffer on every completed request.
func AcquireRequestBuffer() *RequestBuffer {
	bb := bufPool.Get()
	return &RequestBuffer{
		buf:           bb.B[:0],
		state:         StateReceivingHeaders,
		contentLength: -1,
		headersEnd:    -1,
		pooled:        bb,
	}
}

// Release returns b's backing store to the shared pool. The caller must
// not touch b again afterward, and must only call this once it is certain
// nothing (in particular, an in-flight application task) still reads
// from b's Body/LastChunks. Buffers created by NewRequestBuffer (as unit
// tests do) have no pooled backing and Release is a no-op for them.
func (b *RequestBuffer) Release() {
	if b.pooled == nil {
		return
	}
	b.pooled.B = b.buf
	bufPool.Put(b.pooled)
	b.pooled = nil
}
