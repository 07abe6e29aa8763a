// Package bufpool recycles the bufio.Reader/Writer pairs wireengine.Conn
// allocates per connection, the same sync.Pool-per-size-class idea the
// teacher's core/pools.BytePool used for raw byte slices, adapted here to
// pool the buffered-I/O objects wireengine actually allocates.
package bufpool

import (
	"bufio"
	"io"
	"sync"
)

const bufSize = 4096

var readerPool = sync.Pool{
	New: func() any { return bufio.NewReaderSize(nil, bufSize) },
}

var writerPool = sync.Pool{
	New: func() any { return bufio.NewWriterSize(nil, bufSize) },
}

// GetReader returns a *bufio.Reader reset onto r, reused from the pool
// when possible.
func GetReader(r io.Reader) *bufio.Reader {
	br := readerPool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// PutReader returns br to the pool. Callers must not use br afterward.
func PutReader(br *bufio.Reader) {
	br.Reset(nil)
	readerPool.Put(br)
}

// GetWriter returns a *bufio.Writer reset onto w, reused from the pool
// when possible.
func GetWriter(w io.Writer) *bufio.Writer {
	bw := writerPool.Get().(*bufio.Writer)
	bw.Reset(w)
	return bw
}

// PutWriter returns bw to the pool. Callers must not use bw afterward.
func PutWriter(bw *bufio.Writer) {
	bw.Reset(nil)
	writerPool.Put(bw)
}
