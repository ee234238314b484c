// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"bytes"
	"testing"
)

func TestASCIIFramerFrame(t *testing.T) {
	framer := NewASCIIFramer(NewServerDecoder())
	framer.AddToFrame([]byte(":F7031389000A60\r\n"))

	if !framer.CheckFrame() {
		t.Fatalf("frame expected to check")
	}
	expected := []byte{0x03, 0x13, 0x89, 0x00, 0x0A}
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
	if request.Address != 0x1389 || request.Count != 0x000A {
		t.Fatalf("decoded request (%v, %v) does not match (%v, %v)", request.Address, request.Count, 0x1389, 0x000A)
	}
	if request.UnitID != 0xF7 {
		t.Fatalf("populated unit id expected %v, actual %v", 0xF7, request.UnitID)
	}
}

func TestASCIIFramerLeadingGarbage(t *testing.T) {
	framer := NewASCIIFramer(NewServerDecoder())
	framer.AddToFrame([]byte("\x00\x01garbage:F7031389000A60\r\n"))

	if !framer.CheckFrame() {
		t.Fatalf("frame with leading garbage expected to check")
	}
}

func TestASCIIFramerCorruption(t *testing.T) {
	packet := []byte(":F7031389000A60\r\n")

	// flipping any payload character must fail the integrity check
	for i := 1; i < len(packet)-2; i++ {
		corrupted := append([]byte(nil), packet...)
		if corrupted[i] == '0' {
			corrupted[i] = '1'
		} else {
			corrupted[i] = '0'
		}

		framer := NewASCIIFramer(NewServerDecoder())
		framer.AddToFrame(corrupted)
		if framer.CheckFrame() {
			t.Fatalf("corrupted frame at char %v expected to fail the check", i)
		}
	}
}

func TestASCIIFramerBuildPacket(t *testing.T) {
	framer := NewASCIIFramer(NewClientDecoder())

	request := NewReadHoldingRegistersRequest(0x006B, 0x0003)
	request.UnitID = 17
	packet, err := framer.BuildPacket(request)
	if err != nil {
		t.Fatal(err)
	}
	expected := []byte(":1103006B00037E\r\n")
	if !bytes.Equal(packet, expected) {
		t.Fatalf("packet expected %q, actual %q", expected, packet)
	}
}

func TestASCIIFramerIncrementalFeed(t *testing.T) {
	framer := NewASCIIFramer(NewServerDecoder())
	packet := []byte(":F7031389000A60\r\n")

	var pdus []PDU
	for _, b := range packet {
		if err := framer.ProcessIncomingPacket([]byte{b}, func(p PDU) { pdus = append(pdus, p) }); err != nil {
			t.Fatal(err)
		}
	}
	if len(pdus) != 1 {
		t.Fatalf("pdu count expected %v, actual %v", 1, len(pdus))
	}
	if framer.Buffered() != 0 {
		t.Fatalf("committed frame must leave the buffer, %v bytes left", framer.Buffered())
	}
}
