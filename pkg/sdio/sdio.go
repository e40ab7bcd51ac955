// Package sdio implements the raw block transport used to talk to
// Signaloid C0-microSD devices. The device presents itself to the host as
// an unformatted block device; all communication happens through reads and
// writes at fixed byte offsets inside that block address space.
package sdio

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// ReadWriterAt is the byte-addressed transfer contract the device packages
// build on. Implementations must guarantee that a write is durable before
// the call returns, so that a subsequent read observes it.
type ReadWriterAt interface {
	ReadAt(offset int64, length int) ([]byte, error)
	WriteAt(offset int64, data []byte) (int, error)
}

// Transport performs synchronous byte-addressed transfers against one
// device path. Every call opens the device, seeks, transfers, and closes;
// holding the device open across transfers would let the kernel cache
// writes on platforms without reliable O_SYNC propagation, and the device
// firmware depends on observing each transaction as it happens.
//
// Transport is not safe for concurrent use against the same device: the
// higher-level unlock/write/verify/lock sequences have no mutual exclusion
// and callers must serialize access externally.
type Transport struct {
	path string
	fs   afero.Fs
	log  logr.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithFs overrides the filesystem the transport opens the device through.
// Tests use afero.NewMemMapFs to stand in for real hardware.
func WithFs(fs afero.Fs) Option {
	return func(t *Transport) {
		t.fs = fs
	}
}

// WithLogger sets the logger used for per-transfer debug output.
func WithLogger(log logr.Logger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

// New returns a Transport bound to the given device path.
func New(path string, opts ...Option) *Transport {
	t := &Transport{
		path: path,
		fs:   afero.NewOsFs(),
		log:  logr.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Path returns the device path the transport is bound to.
func (t *Transport) Path() string {
	return t.path
}

// ReadAt reads exactly length bytes starting at offset. A short read is an
// error: the protocol has no notion of a partial register or image read.
func (t *Transport) ReadAt(offset int64, length int) ([]byte, error) {
	f, err := t.fs.OpenFile(t.path, os.O_RDONLY|unix.O_SYNC|unix.O_DSYNC, 0)
	if err != nil {
		return nil, &OpError{Op: "open", Path: t.path, Offset: offset, Err: err}
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, &OpError{Op: "seek", Path: t.path, Offset: offset, Err: err}
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, &OpError{Op: "read", Path: t.path, Offset: offset, Err: err}
	}

	t.log.V(1).Info("read", "offset", offset, "bytes", length)
	return buf, nil
}

// WriteAt writes data starting at offset and returns the number of bytes
// written. The device is opened with O_SYNC|O_DSYNC and closed before
// returning, so the data has reached the medium when the call completes.
func (t *Transport) WriteAt(offset int64, data []byte) (int, error) {
	f, err := t.fs.OpenFile(t.path, os.O_WRONLY|unix.O_SYNC|unix.O_DSYNC, 0)
	if err != nil {
		return 0, &OpError{Op: "open", Path: t.path, Offset: offset, Err: err}
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return 0, &OpError{Op: "seek", Path: t.path, Offset: offset, Err: err}
	}

	n, err := f.Write(data)
	if err != nil {
		f.Close()
		return n, &OpError{Op: "write", Path: t.path, Offset: offset, Err: err}
	}
	if n != len(data) {
		f.Close()
		return n, &OpError{Op: "write", Path: t.path, Offset: offset, Err: ErrShortTransfer}
	}

	if err := f.Close(); err != nil {
		return n, &OpError{Op: "close", Path: t.path, Offset: offset, Err: err}
	}

	t.log.V(1).Info("write", "offset", offset, "bytes", n)
	return n, nil
}
