// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

const (
	asciiStart   = ':'
	asciiEnd     = "\r\n"
	asciiMinSize = 3
	asciiMaxSize = 513

	hexTable = "0123456789ABCDEF"
)

// ASCIIFramer frames PDUs for the serial ASCII transmission mode:
//
//	[ Start ] [ Address ] [ Function ] [ Data ] [ LRC ] [ End ]
//	   1c         2c          2c          Nc       2c      2c
//
// Start is ':' and end is CR/LF; everything between travels as uppercase
// hexadecimal text. The LRC covers the binary form of address, function
// and data.
type ASCIIFramer struct {
	frameBuffer
	decoder Decoder

	uid    byte
	length int
}

// NewASCIIFramer returns an ASCII framer decoding frames with decoder.
func NewASCIIFramer(decoder Decoder) *ASCIIFramer {
	return &ASCIIFramer{decoder: decoder}
}

// HeaderSize returns the ASCII header size (start character and the first
// address digit).
func (f *ASCIIFramer) HeaderSize() int { return 2 }

// Buffered returns the number of buffered bytes.
func (f *ASCIIFramer) Buffered() int { return len(f.buf) }

// AddToFrame appends data to the frame buffer.
func (f *ASCIIFramer) AddToFrame(data []byte) {
	if !f.add(data) {
		f.ResetFrame()
	}
}

// FrameReady reports whether bytes beyond the header are buffered.
func (f *ASCIIFramer) FrameReady() bool { return len(f.buf) > 2 }

// CheckFrame locates the frame delimiters, dropping leading garbage
// before the start character, and verifies the LRC.
func (f *ASCIIFramer) CheckFrame() bool {
	start := bytes.IndexByte(f.buf, asciiStart)
	if start == -1 {
		return false
	}
	if start > 0 {
		// skip old bad data
		f.drop(start)
	}
	end := bytes.Index(f.buf, []byte(asciiEnd))
	if end == -1 {
		return false
	}
	f.length = end
	// minimum is address, function and LRC, two digits each
	if end < 7 || (end-1)%2 != 0 {
		return false
	}
	uid, err := readHex(f.buf[1:])
	if err != nil {
		return false
	}
	f.uid = uid
	expected, err := readHex(f.buf[end-2:])
	if err != nil {
		return false
	}
	body := make([]byte, hex.DecodedLen(end-3))
	if _, err := hex.Decode(body, f.buf[1:end-2]); err != nil {
		return false
	}
	return checkLRC(body, expected)
}

// FrameSize returns the index of the end delimiter. While the end is not
// yet buffered it reports one byte more than is buffered, so callers keep
// reading.
func (f *ASCIIFramer) FrameSize() int {
	if f.length != 0 {
		return f.length
	}
	return len(f.buf) + 1
}

// Frame returns the hex decoded function code and data of the current
// frame, excluding address and LRC.
func (f *ASCIIFramer) Frame() []byte {
	end := f.length - 2
	if end <= 3 {
		return nil
	}
	frame := make([]byte, hex.DecodedLen(end-3))
	if _, err := hex.Decode(frame, f.buf[3:end]); err != nil {
		return nil
	}
	return frame
}

// AdvanceFrame skips over the current frame including the end delimiter.
func (f *ASCIIFramer) AdvanceFrame() {
	f.drop(f.length + len(asciiEnd))
	f.uid, f.length = 0, 0
}

// ResetFrame drops the buffer.
func (f *ASCIIFramer) ResetFrame() {
	f.buf = nil
	f.uid, f.length = 0, 0
}

// PopulateResult copies the station address into the PDU.
func (f *ASCIIFramer) PopulateResult(pdu PDU) {
	pdu.Head().UnitID = f.uid
}

// BuildPacket hex encodes the PDU between the frame delimiters.
func (f *ASCIIFramer) BuildPacket(pdu PDU) ([]byte, error) {
	data := pdu.Encode()
	if 9+2*len(data) > asciiMaxSize {
		return nil, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", len(data), (asciiMaxSize-9)/2)
	}
	head := pdu.Head()

	var buf bytes.Buffer
	buf.WriteByte(asciiStart)
	writeHex(&buf, []byte{head.UnitID, pdu.FunctionCode()})
	writeHex(&buf, data)

	// Exclude the beginning colon and terminating CRLF pair characters
	var lrc lrc
	lrc.push(head.UnitID).push(pdu.FunctionCode()).push(data...)
	writeHex(&buf, []byte{lrc.value()})
	buf.WriteString(asciiEnd)
	return buf.Bytes(), nil
}

// ProcessIncomingPacket buffers data and delivers complete frames.
func (f *ASCIIFramer) ProcessIncomingPacket(data []byte, callback func(PDU)) error {
	return processIncoming(f, f.decoder, data, callback)
}

// writeHex encodes byte to string in hexadecimal, e.g. 0xA5 => "A5"
// (encoding/hex only supports lowercase string).
func writeHex(buf *bytes.Buffer, value []byte) {
	var str [2]byte
	for _, v := range value {
		str[0] = hexTable[v>>4]
		str[1] = hexTable[v&0x0F]
		buf.Write(str[:])
	}
}

// readHex decodes hex string to byte, e.g. "8C" => 0x8C.
func readHex(data []byte) (value byte, err error) {
	var dst [1]byte
	if _, err = hex.Decode(dst[:], data[0:2]); err != nil {
		return
	}
	value = dst[0]
	return
}
