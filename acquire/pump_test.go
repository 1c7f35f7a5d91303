package acquire

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// byteRecorder is a ByteSink capturing everything it is fed; safe to poll
// while a manager goroutine is still pumping.
type byteRecorder struct {
	mu    sync.Mutex
	bytes []byte
	calls int
}

func (r *byteRecorder) PumpByte(b byte) {
	r.mu.Lock()
	r.bytes = append(r.bytes, b)
	r.calls++
	r.mu.Unlock()
}

func (r *byteRecorder) snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.bytes...)
}

func (r *byteRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestPumpPreservesOrder(t *testing.T) {
	rec := &byteRecorder{}
	p := NewPump(rec)

	p.ProcessBlock([]byte{1, 2, 3})
	p.ProcessBlock([]byte{4})
	p.ProcessBlock([]byte{5, 6})

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, rec.snapshot())
	assert.Equal(t, 6, rec.count())
}

func TestPumpEmptyBlockIsNoop(t *testing.T) {
	rec := &byteRecorder{}
	p := NewPump(rec)

	p.ProcessBlock(nil)
	p.ProcessBlock([]byte{})

	assert.Equal(t, 0, rec.count())
}

func TestPumpDuplicateValues(t *testing.T) {
	rec := &byteRecorder{}
	p := NewPump(rec)

	p.ProcessBlock([]byte{7, 7, 7})
	assert.Equal(t, []byte{7, 7, 7}, rec.snapshot())
}
