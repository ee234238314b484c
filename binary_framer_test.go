// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"bytes"
	"testing"
)

func TestBinaryFramerFrame(t *testing.T) {
	framer := NewBinaryFramer(NewServerDecoder())
	framer.AddToFrame([]byte{0x7B, 0x01, 0x03, 0x00, 0x00, 0x00, 0x05, 0x85, 0xC9, 0x7D})

	if !framer.CheckFrame() {
		t.Fatalf("frame expected to check")
	}
	expected := []byte{0x03, 0x00, 0x00, 0x00, 0x05}
	if !bytes.Equal(framer.Frame(), expected) {
		t.Fatalf("frame expected % x, actual % x", expected, framer.Frame())
	}

	var pdus []PDU
	if err := framer.ProcessIncomingPacket(nil, func(p PDU) { pdus = append(pdus, p) }); err != nil {
		t.Fatal(err)
	}
	if len(pdus) != 1 {
		t.Fatalf("pdu count expected %v, actual %v", 1, len(pdus))
	}
	request, ok := pdus[0].(*ReadHoldingRegistersRequest)
	if !ok {
		t.Fatalf("unexpected pdu type %T", pdus[0])
	}
	if request.Address != 0 || request.Count != 5 {
		t.Fatalf("decoded request (%v, %v) does not match (0, 5)", request.Address, request.Count)
	}
	if request.UnitID != 1 {
		t.Fatalf("populated unit id expected %v, actual %v", 1, request.UnitID)
	}
	if framer.Buffered() != 0 {
		t.Fatalf("committed frame must leave the buffer, %v bytes left", framer.Buffered())
	}
}

func TestBinaryFramerEscaping(t *testing.T) {
	// a data byte hitting the start delimiter is doubled on the wire
	framer := NewBinaryFramer(NewServerDecoder())
	request := NewWriteSingleRegisterRequest(0x007B, 0x0001)
	request.UnitID = 2

	packet, err := framer.BuildPacket(request)
	if err != nil {
		t.Fatal(err)
	}
	// one byte longer than the unescaped frame
	if len(packet) != 11 {
		t.Fatalf("escaped packet length expected %v, actual %v", 11, len(packet))
	}
	if !bytes.Equal(packet[3:6], []byte{0x00, 0x7B, 0x7B}) {
		t.Fatalf("delimiter byte expected to be doubled, packet % x", packet)
	}

	read := NewBinaryFramer(NewServerDecoder())
	var pdus []PDU
	if err := read.ProcessIncomingPacket(packet, func(p PDU) { pdus = append(pdus, p) }); err != nil {
		t.Fatal(err)
	}
	if len(pdus) != 1 {
		t.Fatalf("pdu count expected %v, actual %v", 1, len(pdus))
	}
	decoded := pdus[0].(*WriteSingleRegisterRequest)
	if decoded.Address != 0x007B || decoded.Value != 0x0001 {
		t.Fatalf("decoded request (%#04x, %#04x) does not match", decoded.Address, decoded.Value)
	}
}

func TestBinaryFramerLeadingGarbage(t *testing.T) {
	framer := NewBinaryFramer(NewServerDecoder())
	framer.AddToFrame([]byte{0xDE, 0xAD, 0x7B, 0x01, 0x03, 0x00, 0x00, 0x00, 0x05, 0x85, 0xC9, 0x7D})

	if !framer.CheckFrame() {
		t.Fatalf("frame with leading garbage expected to check")
	}
}

func TestBinaryFramerCorruptCRC(t *testing.T) {
	framer := NewBinaryFramer(NewServerDecoder())
	framer.AddToFrame([]byte{0x7B, 0x01, 0x03, 0x00, 0x00, 0x00, 0x05, 0x85, 0xCA, 0x7D})

	if framer.CheckFrame() {
		t.Fatalf("corrupted frame expected to fail the check")
	}
}

func TestBinaryFramerRoundTrip(t *testing.T) {
	framer := NewBinaryFramer(NewServerDecoder())
	request := NewReadHoldingRegistersRequest(0, 5)
	request.UnitID = 1

	packet, err := framer.BuildPacket(request)
	if err != nil {
		t.Fatal(err)
	}
	expected := []byte{0x7B, 0x01, 0x03, 0x00, 0x00, 0x00, 0x05, 0x85, 0xC9, 0x7D}
	if !bytes.Equal(packet, expected) {
		t.Fatalf("packet expected % x, actual % x", expected, packet)
	}

	read := NewBinaryFramer(NewServerDecoder())
	var pdus []PDU
	for _, b := range packet {
		if err := read.ProcessIncomingPacket([]byte{b}, func(p PDU) { pdus = append(pdus, p) }); err != nil {
			t.Fatal(err)
		}
	}
	if len(pdus) != 1 {
		t.Fatalf("pdu count expected %v, actual %v", 1, len(pdus))
	}
	decoded := pdus[0].(*ReadHoldingRegistersRequest)
	if decoded.Address != 0 || decoded.Count != 5 || decoded.UnitID != 1 {
		t.Fatalf("decoded request (%v, %v, %v) does not match", decoded.Address, decoded.Count, decoded.UnitID)
	}
}
