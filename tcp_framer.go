// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
)

const (
	tcpProtocolIdentifier uint16 = 0x0000

	// Modbus Application Protocol
	tcpHeaderSize = 7
	tcpMaxLength  = 260
)

// TCPFramer frames PDUs with the MBAP header used on TCP:
//
//	[         MBAP Header         ] [ Function Code ] [ Data ]
//	[ tid ][ pid ][ length ][ uid ]
//	  2b     2b      2b       1b          1b             Nb
//
// where length counts the unit id, function code and data bytes.
type TCPFramer struct {
	frameBuffer
	decoder Decoder

	tid    uint16
	pid    uint16
	length uint16
	uid    byte
}

// NewTCPFramer returns an MBAP framer decoding frames with decoder.
func NewTCPFramer(decoder Decoder) *TCPFramer {
	return &TCPFramer{decoder: decoder}
}

// HeaderSize returns the MBAP header size.
func (f *TCPFramer) HeaderSize() int { return tcpHeaderSize }

// Buffered returns the number of buffered bytes.
func (f *TCPFramer) Buffered() int { return len(f.buf) }

// AddToFrame appends data to the frame buffer.
func (f *TCPFramer) AddToFrame(data []byte) {
	if !f.add(data) {
		f.ResetFrame()
	}
}

// FrameReady reports whether bytes beyond the header are buffered.
func (f *TCPFramer) FrameReady() bool { return len(f.buf) > tcpHeaderSize }

// CheckFrame decodes the MBAP header and reports whether a complete frame
// is buffered. A header length below 2 cannot hold a function code; the
// suspect frame is skipped.
func (f *TCPFramer) CheckFrame() bool {
	if len(f.buf) >= tcpHeaderSize {
		f.tid = binary.BigEndian.Uint16(f.buf)
		f.pid = binary.BigEndian.Uint16(f.buf[2:])
		f.length = binary.BigEndian.Uint16(f.buf[4:])
		f.uid = f.buf[6]

		if f.length < 2 {
			f.AdvanceFrame()
		} else if len(f.buf)-tcpHeaderSize+1 >= int(f.length) {
			return true
		}
	}
	return false
}

// FrameSize returns the total frame size including the header.
func (f *TCPFramer) FrameSize() int {
	if f.length > 0 {
		return tcpHeaderSize + int(f.length) - 1
	}
	return tcpHeaderSize
}

// Frame returns function code and data of the current frame.
func (f *TCPFramer) Frame() []byte {
	size := f.FrameSize()
	if size > len(f.buf) {
		size = len(f.buf)
	}
	return f.buf[tcpHeaderSize:size]
}

// AdvanceFrame skips over the current frame.
func (f *TCPFramer) AdvanceFrame() {
	f.drop(f.FrameSize())
	f.tid, f.pid, f.length, f.uid = 0, 0, 0, 0
}

// ResetFrame skips the current frame; without a start marker on the
// stream there is nothing better to resynchronize on.
func (f *TCPFramer) ResetFrame() { f.AdvanceFrame() }

// PopulateResult copies the MBAP header fields into the PDU.
func (f *TCPFramer) PopulateResult(pdu PDU) {
	head := pdu.Head()
	head.TransactionID = f.tid
	head.ProtocolID = f.pid
	head.UnitID = f.uid
}

// BuildPacket prepends the MBAP header to the encoded PDU.
func (f *TCPFramer) BuildPacket(pdu PDU) ([]byte, error) {
	data := pdu.Encode()
	if tcpHeaderSize+1+len(data) > tcpMaxLength {
		return nil, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", len(data), tcpMaxLength-tcpHeaderSize-1)
	}
	head := pdu.Head()
	packet := make([]byte, tcpHeaderSize+1+len(data))
	binary.BigEndian.PutUint16(packet, head.TransactionID)
	binary.BigEndian.PutUint16(packet[2:], head.ProtocolID)
	binary.BigEndian.PutUint16(packet[4:], uint16(len(data)+2))
	packet[6] = head.UnitID
	packet[7] = pdu.FunctionCode()
	copy(packet[8:], data)
	return packet, nil
}

// ProcessIncomingPacket buffers data and delivers complete frames.
func (f *TCPFramer) ProcessIncomingPacket(data []byte, callback func(PDU)) error {
	return processIncoming(f, f.decoder, data, callback)
}
