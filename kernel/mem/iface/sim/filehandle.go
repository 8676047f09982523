package sim

import (
	"sync"

	kerrors "github.com/gopheros/vmpager/kernel/errors"
	"github.com/gopheros/vmpager/kernel/mem/iface"
)

// fileData is the data shared by every handle opened against the same
// simulated file, so that writes through one handle are visible through a
// Reopen'd sibling, matching the POSIX semantics spec §4.9's mmap contract
// relies on.
type fileData struct {
	mu    sync.Mutex
	bytes []byte
}

// FileHandle is an in-memory iface.FileHandle backed by a byte slice; used
// in place of a real file in tests and the demo harness.
type FileHandle struct {
	data *fileData
	// closed is per handle and guarded by data.mu.
	closed bool
}

// NewFileHandle wraps contents (copied) as a simulated file.
func NewFileHandle(contents []byte) *FileHandle {
	buf := make([]byte, len(contents))
	copy(buf, contents)
	return &FileHandle{data: &fileData{bytes: buf}}
}

// Length implements iface.FileHandle.
func (f *FileHandle) Length() int64 {
	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	return int64(len(f.data.bytes))
}

// ReadAt implements iface.FileHandle.
func (f *FileHandle) ReadAt(buf []byte, nbytes int, offset int64) (int, error) {
	f.data.mu.Lock()
	defer f.data.mu.Unlock()

	if f.closed {
		return 0, kerrors.New("sim", kerrors.LazyLoadFailed, "file handle closed")
	}
	if offset >= int64(len(f.data.bytes)) || nbytes <= 0 {
		return 0, nil
	}
	end := offset + int64(nbytes)
	if end > int64(len(f.data.bytes)) {
		end = int64(len(f.data.bytes))
	}
	n := copy(buf, f.data.bytes[offset:end])
	return n, nil
}

// WriteAt implements iface.FileHandle. The backing buffer grows to fit.
func (f *FileHandle) WriteAt(buf []byte, nbytes int, offset int64) (int, error) {
	f.data.mu.Lock()
	defer f.data.mu.Unlock()

	if f.closed {
		return 0, kerrors.New("sim", kerrors.LazyLoadFailed, "file handle closed")
	}
	if nbytes > len(buf) {
		nbytes = len(buf)
	}
	need := offset + int64(nbytes)
	if need > int64(len(f.data.bytes)) {
		grown := make([]byte, need)
		copy(grown, f.data.bytes)
		f.data.bytes = grown
	}
	n := copy(f.data.bytes[offset:need], buf[:nbytes])
	return n, nil
}

// Reopen implements iface.FileHandle: it returns a new handle sharing this
// one's backing data but with an independent lifetime, per spec §4.9.
func (f *FileHandle) Reopen() (iface.FileHandle, error) {
	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	if f.closed {
		return nil, kerrors.New("sim", kerrors.LazyLoadFailed, "file handle closed")
	}
	return &FileHandle{data: f.data}, nil
}

// Close implements iface.FileHandle. It closes only this handle: the shared
// fileData stays readable and writable through any other handle, including
// one obtained via Reopen.
func (f *FileHandle) Close() error {
	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	f.closed = true
	return nil
}
