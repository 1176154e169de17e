package mmregion

import (
	"sync/atomic"
	"unsafe"
)

// LoadUint64Atomic and LoadInt64Atomic back the sequence-lock handshake in
// package txview. Go has no free-standing load/store fence, so the
// load-fence the source protocol relies on is approximated with an atomic
// load on the mapped word: on every platform Go supports, an atomic load
// lowers to an instruction that also acts as an acquire fence, which is
// the property the handshake actually needs.
func (r *Region) LoadUint64Atomic(offset int64) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&r.data[offset])))
}

func (r *Region) LoadInt64Atomic(offset int64) int64 {
	return int64(atomic.LoadUint64((*uint64)(unsafe.Pointer(&r.data[offset]))))
}
