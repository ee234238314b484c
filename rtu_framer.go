// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import "fmt"

const (
	rtuMinSize = 4
	rtuMaxSize = 256
)

// RTUFramer frames PDUs for the serial RTU transmission mode:
//
//	[ Address ] [ Function Code ] [ Data ] [ CRC ]
//	    1b            1b             Nb      2b
//
// The frame has no length field; the total size follows from the function
// code through the per-PDU size rule, asked of the decoder before the CRC
// can be checked. The CRC travels low byte first.
type RTUFramer struct {
	frameBuffer
	decoder Decoder

	uid    byte
	length int
}

// NewRTUFramer returns an RTU framer decoding frames with decoder.
func NewRTUFramer(decoder Decoder) *RTUFramer {
	return &RTUFramer{decoder: decoder}
}

// HeaderSize returns the RTU header size (the station address).
func (f *RTUFramer) HeaderSize() int { return 1 }

// Buffered returns the number of buffered bytes.
func (f *RTUFramer) Buffered() int { return len(f.buf) }

// AddToFrame appends data to the frame buffer.
func (f *RTUFramer) AddToFrame(data []byte) {
	if !f.add(data) {
		f.ResetFrame()
	}
}

// FrameReady reports whether bytes beyond the address are buffered.
func (f *RTUFramer) FrameReady() bool { return len(f.buf) > 1 }

// populateHeader sizes the frame from the buffered function code.
func (f *RTUFramer) populateHeader() error {
	if len(f.buf) < 2 {
		return errShortFrame
	}
	f.uid = f.buf[0]
	sizer, ok := f.decoder.New(f.buf[1]).(rtuSizer)
	if !ok {
		return fmt.Errorf("modbus: no RTU size rule for function code '%v'", f.buf[1])
	}
	size, err := sizer.RTUFrameSize(f.buf)
	if err != nil {
		return err
	}
	f.length = size
	return nil
}

// CheckFrame sizes the frame and verifies its CRC.
func (f *RTUFramer) CheckFrame() bool {
	if err := f.populateHeader(); err != nil {
		return false
	}
	if f.length < rtuMinSize || len(f.buf) < f.length {
		return false
	}
	wire := uint16(f.buf[f.length-2]) | uint16(f.buf[f.length-1])<<8
	return checkCRC(f.buf[:f.length-2], wire)
}

// FrameSize returns the computed frame size. While the size is still
// unknown it reports one byte more than is buffered, so callers keep
// reading.
func (f *RTUFramer) FrameSize() int {
	if f.length != 0 {
		return f.length
	}
	return len(f.buf) + 1
}

// Frame returns function code and data of the current frame. A frame
// whose computed end is non-positive, or that is not yet fully buffered,
// reads as empty without advancing.
func (f *RTUFramer) Frame() []byte {
	end := f.length - 2
	if end <= 1 || f.length > len(f.buf) {
		return nil
	}
	return f.buf[1:end]
}

// AdvanceFrame skips over the current frame.
func (f *RTUFramer) AdvanceFrame() {
	f.drop(f.length)
	f.uid, f.length = 0, 0
}

// ResetFrame drops the buffer. Without a start marker the stream cannot
// be resynchronized after an integrity failure.
func (f *RTUFramer) ResetFrame() {
	f.buf = nil
	f.uid, f.length = 0, 0
}

// PopulateResult copies the station address into the PDU.
func (f *RTUFramer) PopulateResult(pdu PDU) {
	pdu.Head().UnitID = f.uid
}

// BuildPacket appends address, function code and CRC around the encoded
// PDU.
func (f *RTUFramer) BuildPacket(pdu PDU) ([]byte, error) {
	data := pdu.Encode()
	length := len(data) + 4
	if length > rtuMaxSize {
		return nil, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, rtuMaxSize)
	}
	packet := make([]byte, length)
	packet[0] = pdu.Head().UnitID
	packet[1] = pdu.FunctionCode()
	copy(packet[2:], data)

	var crc crc
	checksum := crc.reset().push(packet[:length-2]...).value()
	packet[length-2] = byte(checksum)
	packet[length-1] = byte(checksum >> 8)
	return packet, nil
}

// ProcessIncomingPacket buffers data and delivers complete frames.
func (f *RTUFramer) ProcessIncomingPacket(data []byte, callback func(PDU)) error {
	return processIncoming(f, f.decoder, data, callback)
}
