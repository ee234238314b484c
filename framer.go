// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import "fmt"

// defaultMaxBuffer caps framer buffer growth. The largest legal serial
// frame is 513 characters (ASCII); anything beyond the cap is line noise
// and resets the frame.
const defaultMaxBuffer = 1024

// Framer detects message boundaries in a byte stream and converts between
// PDUs and wire packets. A framer owns a receive buffer which never
// contains an already delivered frame.
type Framer interface {
	// AddToFrame appends received bytes to the frame buffer.
	AddToFrame(data []byte)
	// FrameReady reports whether enough bytes are buffered to attempt
	// frame detection.
	FrameReady() bool
	// CheckFrame validates the frame at the head of the buffer.
	CheckFrame() bool
	// Frame returns the framed message, function code first, without
	// transport headers and checksums.
	Frame() []byte
	// FrameSize returns the total wire size of the current frame as far
	// as the framer can know it.
	FrameSize() int
	// AdvanceFrame skips over the current frame.
	AdvanceFrame()
	// ResetFrame drops buffered state after an unrecoverable framing
	// error.
	ResetFrame()
	// HeaderSize returns the fixed number of bytes the framer needs
	// before it can size a frame.
	HeaderSize() int
	// Buffered returns the number of bytes in the frame buffer.
	Buffered() int
	// PopulateResult copies the transport header fields of the current
	// frame into the PDU.
	PopulateResult(pdu PDU)
	// BuildPacket frames a PDU into a ready to send packet.
	BuildPacket(pdu PDU) ([]byte, error)
	// ProcessIncomingPacket buffers data and delivers every complete,
	// valid frame to the callback as a decoded PDU.
	ProcessIncomingPacket(data []byte, callback func(PDU)) error
}

// processIncoming is the framing loop shared by all framers: buffer the
// data, then deliver decoded PDUs while complete frames are available. A
// frame that decodes badly is an I/O error; the caller decides whether to
// reset.
func processIncoming(f Framer, decoder Decoder, data []byte, callback func(PDU)) error {
	if len(data) > 0 {
		f.AddToFrame(data)
	}
	for f.FrameReady() {
		if !f.CheckFrame() {
			break
		}
		pdu, err := decoder.Decode(f.Frame())
		if err != nil {
			return fmt.Errorf("modbus: unable to decode frame: %w", err)
		}
		f.PopulateResult(pdu)
		f.AdvanceFrame()
		callback(pdu)
	}
	return nil
}

// frameBuffer is the receive buffer shared by the framers, bounded by a
// configurable cap.
type frameBuffer struct {
	buf       []byte
	maxBuffer int
}

func (b *frameBuffer) add(data []byte) bool {
	b.buf = append(b.buf, data...)
	max := b.maxBuffer
	if max <= 0 {
		max = defaultMaxBuffer
	}
	if len(b.buf) > max {
		b.buf = b.buf[:0]
		return false
	}
	return true
}

// drop removes n bytes from the head of the buffer.
func (b *frameBuffer) drop(n int) {
	if n > len(b.buf) {
		n = len(b.buf)
	}
	b.buf = b.buf[n:]
}
