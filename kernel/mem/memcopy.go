package mem

import (
	"reflect"
	"unsafe"
)

// Memcopy copies size bytes from src to dst. Both addresses are raw
// addresses obtained from a PhysicalAllocator frame or a temporarily mapped
// page; the core never passes overlapping regions so a plain copy() over
// overlaid slices is sufficient.
func Memcopy(dst, src uintptr, size Size) {
	if size == 0 {
		return
	}

	dstSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: dst,
	}))
	srcSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: src,
	}))

	copy(dstSlice, srcSlice)
}
