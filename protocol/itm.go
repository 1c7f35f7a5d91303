// Package protocol decodes the framed trace protocol: an optional TPIU
// outer layer and the ITM packet stream inside it. Bytes go in one at a
// time; decoded stimulus writes come out per channel.
package protocol

import (
	slog "github.com/vearne/simplelog"
)

// MsgType discriminates the packet source.
type MsgType int

const (
	// MsgSoftware is a stimulus port write.
	MsgSoftware MsgType = iota
	// MsgHardware is a DWT/hardware source packet.
	MsgHardware
)

// Message is one decoded source packet.
type Message struct {
	Type    MsgType
	Channel uint8  // stimulus port, or hardware discriminator
	Value   uint32 // little-endian payload value
	Len     int    // payload length in bytes: 1, 2 or 4
}

// Bytes returns the payload exactly as the target wrote it,
// little-endian, Len bytes.
func (m Message) Bytes() []byte {
	raw := make([]byte, m.Len)
	for i := 0; i < m.Len; i++ {
		raw[i] = byte(m.Value >> (8 * i))
	}
	return raw
}

// Handler receives decoded messages in stream order.
type Handler func(Message)

const syncZeroRun = 5

type itmState int

const (
	itmUnsynced itmState = iota
	itmIdle
	itmPayload
	itmTimestamp
	itmExtension
)

// ITMDecoder is the inner byte-at-a-time packet state machine. With
// forceSync set it discards everything until a synchronisation packet
// (five zero bytes then 0x80) has been seen.
type ITMDecoder struct {
	state     itmState
	zeroCount int

	header    byte
	target    int
	got       int
	value     uint32
	overflows uint64
	syncs     uint64
}

// NewITMDecoder returns a decoder; forceSync gates decode on first sync.
func NewITMDecoder(forceSync bool) *ITMDecoder {
	d := &ITMDecoder{}
	if forceSync {
		d.state = itmUnsynced
	} else {
		d.state = itmIdle
	}
	return d
}

// Synced reports whether a synchronisation packet has been consumed.
func (d *ITMDecoder) Synced() bool {
	return d.syncs > 0
}

// Pump consumes one byte and invokes h for every completed packet.
func (d *ITMDecoder) Pump(b byte, h Handler) {
	// sync detection runs in every state; a sync packet resets the decoder
	if b == 0 {
		d.zeroCount++
	} else {
		if b == 0x80 && d.zeroCount >= syncZeroRun {
			d.syncs++
			d.zeroCount = 0
			d.state = itmIdle
			slog.Debug("ITM in sync (total %d)", d.syncs)
			return
		}
		d.zeroCount = 0
	}

	switch d.state {
	case itmUnsynced:
		// discard until sync
	case itmIdle:
		d.decodeHeader(b)
	case itmPayload:
		d.value |= uint32(b) << (8 * d.got)
		d.got++
		if d.got == d.target {
			d.emit(h)
			d.state = itmIdle
		}
	case itmTimestamp, itmExtension:
		if b&0x80 == 0 {
			d.state = itmIdle
		}
	}
}

func (d *ITMDecoder) emit(h Handler) {
	msg := Message{
		Channel: d.header >> 3,
		Value:   d.value,
		Len:     d.target,
	}
	if d.header&0x04 != 0 {
		msg.Type = MsgHardware
	} else {
		msg.Type = MsgSoftware
	}
	h(msg)
}

func (d *ITMDecoder) decodeHeader(b byte) {
	if b == 0 {
		// leading zero of a possible sync, nothing to decode
		return
	}

	switch {
	case b == 0x70:
		d.overflows++
		slog.Debug("ITM overflow (total %d)", d.overflows)

	case b&0x03 != 0:
		// source packet, software or hardware
		d.header = b
		d.target = payloadLen(b)
		d.got = 0
		d.value = 0
		d.state = itmPayload

	case b&0x0f == 0x00:
		// local timestamp; continuation bytes may follow
		if b&0x80 != 0 {
			d.state = itmTimestamp
		}

	case b&0x0b == 0x08:
		// extension packet
		if b&0x80 != 0 {
			d.state = itmExtension
		}

	default:
		slog.Debug("unhandled ITM header 0x%02x", b)
	}
}

func payloadLen(header byte) int {
	switch header & 0x03 {
	case 1:
		return 1
	case 2:
		return 2
	default:
		return 4
	}
}
