package core

import "io"

// Pipe is the abstract byte channel spec section 6 describes: a reliable,
// ordered, byte-stream channel with blocking read and write and a fixed
// atomic buffer capacity.
//
// The original source bakes its pipe handle down to raw file descriptor
// numbers starting at 20 (an artifact of how mimpirun.c assigns them with
// dup2); spec section 9 explicitly flags that as not worth carrying over.
// This interface is the fix: the real launcher (cmd/mimpirun) backs it with
// *os.File inherited through os/exec's ExtraFiles, and the in-process test
// harness (pkg/mimpi/mimpitest) backs it with *os.File from os.Pipe() too —
// both satisfy io.ReadWriteCloser, so the messaging engine never
// distinguishes them.
type Pipe interface {
	io.ReadWriteCloser
}

// ChannelBufferSize is the compile-time chunk size send/recv bound their
// per-call reads and writes by, matching the MIMPI_CHANNEL_BUF constant of
// the original source. It does not claim the underlying transport actually
// has this buffer capacity; it only bounds how large a single read/write
// syscall-equivalent this engine issues at a time.
const ChannelBufferSize = 512
