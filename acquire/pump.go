// Package acquire owns the resilient stream-acquisition loop: it opens the
// configured source, reads with a bounded readiness wait, reconnects on
// loss, and pushes every received byte into the decoder in order.
package acquire

import (
	slog "github.com/vearne/simplelog"
)

// ByteSink is the decoder's single-byte ingestion entry point.
type ByteSink interface {
	PumpByte(b byte)
}

// Pump hands a received buffer to the sink byte-by-byte, exactly once per
// byte and in buffer order. An empty buffer is a no-op.
type Pump struct {
	sink ByteSink
}

func NewPump(sink ByteSink) *Pump {
	return &Pump{sink: sink}
}

// ProcessBlock forwards buf to the sink.
func (p *Pump) ProcessBlock(buf []byte) {
	slog.Debug("RXED packet of %d bytes", len(buf))
	for _, b := range buf {
		p.sink.PumpByte(b)
	}
}
