package protocol

import (
	slog "github.com/vearne/simplelog"
)

// Demux is the decoder front door: one byte in, decoded messages out. With
// TPIU enabled only the configured ITM stream reaches the inner decoder;
// other streams are dropped. Stream 0 is the formatter's null stream.
type Demux struct {
	itm     *ITMDecoder
	tpiu    *TPIUDecoder
	useTPIU bool
	stream  uint8
	handler Handler
}

// NewDemux builds the decode pipeline. itmStream is only consulted when
// useTPIU is set.
func NewDemux(forceSync, useTPIU bool, itmStream int, h Handler) *Demux {
	return &Demux{
		itm:     NewITMDecoder(forceSync),
		tpiu:    NewTPIUDecoder(),
		useTPIU: useTPIU,
		stream:  uint8(itmStream),
		handler: h,
	}
}

// PumpByte is the single-byte ingestion entry point.
func (d *Demux) PumpByte(b byte) {
	if !d.useTPIU {
		d.itm.Pump(b, d.handler)
		return
	}

	d.tpiu.Pump(b, func(stream uint8, v byte) {
		switch stream {
		case 0:
			// null stream padding
		case d.stream:
			d.itm.Pump(v, d.handler)
		default:
			slog.Debug("dropping byte for unrouted TPIU stream %d", stream)
		}
	})
}
