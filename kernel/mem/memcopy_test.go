package mem

import (
	"testing"
	"unsafe"
)

func TestMemcopy(t *testing.T) {
	Memcopy(uintptr(0), uintptr(0), 0)

	src := make([]byte, PageSize)
	dst := make([]byte, PageSize)
	for i := range src {
		src[i] = byte(i)
	}

	Memcopy(
		uintptr(unsafe.Pointer(&dst[0])),
		uintptr(unsafe.Pointer(&src[0])),
		Size(len(src)),
	)

	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("byte %d: expected %d; got %d", i, src[i], dst[i])
		}
	}
}
