package wire

import "sync"

var bufPool = sync.Pool{New: func() any {
	b := make([]byte, 0, 256)
	return &b
}}

// GetBuffer returns an empty scratch buffer from the pool.
func GetBuffer() *[]byte {
	b := bufPool.Get().(*[]byte)
	*b = (*b)[:0]
	return b
}

// PutBuffer returns b to the pool. Very large buffers are dropped so one
// oversized message doesn't pin memory.
func PutBuffer(b *[]byte) {
	if b == nil || cap(*b) > 1<<20 {
		return
	}
	bufPool.Put(b)
}
