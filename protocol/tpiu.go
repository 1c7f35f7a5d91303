package protocol

import (
	slog "github.com/vearne/simplelog"
)

const tpiuFrameSize = 16

// tpiu full-word synchronisation packet, may appear between frames
var tpiuSync = [4]byte{0xff, 0xff, 0xff, 0x7f}

// StreamHandler receives unwrapped bytes tagged with their TPIU stream ID.
type StreamHandler func(stream uint8, b byte)

// TPIUDecoder unwraps the CoreSight formatter: 16-byte frames carrying
// interleaved streams, ID changes flagged in the low bit of even bytes and
// resolved through the auxiliary byte.
type TPIUDecoder struct {
	frame  [tpiuFrameSize]byte
	got    int
	stream uint8
}

func NewTPIUDecoder() *TPIUDecoder {
	return &TPIUDecoder{}
}

// Pump consumes one byte of formatted input.
func (d *TPIUDecoder) Pump(b byte, h StreamHandler) {
	d.frame[d.got] = b
	d.got++

	// a sync packet aligned at frame start is not frame data
	if d.got == len(tpiuSync) && d.frame[0] == tpiuSync[0] &&
		d.frame[1] == tpiuSync[1] && d.frame[2] == tpiuSync[2] && d.frame[3] == tpiuSync[3] {
		d.got = 0
		slog.Debug("TPIU sync")
		return
	}

	if d.got == tpiuFrameSize {
		d.got = 0
		d.decodeFrame(h)
	}
}

func (d *TPIUDecoder) decodeFrame(h StreamHandler) {
	aux := d.frame[15]

	for k := 0; k < 8; k++ {
		e := d.frame[2*k]
		auxBit := (aux >> uint(k)) & 1

		if e&1 == 1 {
			next := e >> 1
			if k == 7 {
				// final halfword has no data byte; change applies onward
				d.stream = next
				continue
			}
			o := d.frame[2*k+1]
			if auxBit == 1 {
				// data byte belongs to the outgoing stream
				h(d.stream, o)
				d.stream = next
			} else {
				d.stream = next
				h(d.stream, o)
			}
			continue
		}

		// even byte is data; its true LSB lives in the aux byte
		h(d.stream, (e&0xfe)|auxBit)
		if k < 7 {
			h(d.stream, d.frame[2*k+1])
		}
	}
}
