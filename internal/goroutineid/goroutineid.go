// Package goroutineid reads the current goroutine's id from its stack
// header. It exists so code running on an event loop can tell whether it is
// already on the loop goroutine.
package goroutineid

import (
	"bytes"
	"runtime"
	"sync"
)

var header = []byte("goroutine ")

var bufs = sync.Pool{
	New: func() any {
		b := make([]byte, 64)
		return &b
	},
}

// Get returns the id of the calling goroutine, or 0 if it cannot be read.
func Get() int64 {
	bp := bufs.Get().(*[]byte)
	defer bufs.Put(bp)
	// only the first line is needed; a short buffer truncates the rest
	n := runtime.Stack(*bp, false)
	return parse((*bp)[:n])
}

// parse reads the decimal id from a "goroutine N [state]:" header without
// allocating.
func parse(stack []byte) int64 {
	rest, ok := bytes.CutPrefix(stack, header)
	if !ok {
		return 0
	}
	var id int64
	for _, c := range rest {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
