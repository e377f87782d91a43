package goroutineid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in   string
		want int64
	}{
		{"goroutine 123 [running]:\nmain.main()", 123},
		{"goroutine 1 [running]:", 1},
		{"goroutine 98765", 98765},
		{"goroutine x [running]:", 0},
		{"something else\n", 0},
		{"", 0},
	} {
		assert.Equal(t, tc.want, parse([]byte(tc.in)), tc.in)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	id := Get()
	require.Positive(t, id)
	assert.Equal(t, id, Get(), "stable within a goroutine")

	other := make(chan int64)
	go func() { other <- Get() }()
	assert.NotEqual(t, id, <-other)
}
