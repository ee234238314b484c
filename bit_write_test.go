// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"bytes"
	"testing"
)

func TestWriteSingleCoilEncode(t *testing.T) {
	request := NewWriteSingleCoilRequest(0x0102, true)

	expected := []byte{0x01, 0x02, 0xFF, 0x00}
	if !bytes.Equal(request.Encode(), expected) {
		t.Fatalf("encoded request expected % x, actual % x", expected, request.Encode())
	}
}

func TestWriteSingleCoilExecute(t *testing.T) {
	slave := NewSlaveContext()

	request := NewWriteSingleCoilRequest(7, true)
	response, err := request.Execute(slave)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := response.(*WriteSingleCoilResponse); !ok {
		t.Fatalf("unexpected response type %T", response)
	}
	bits, err := slave.Bits(FuncCodeReadCoils, 7, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !bits[0] {
		t.Fatalf("coil 7 expected to be set")
	}
}

func TestWriteSingleCoilExecuteIllegalValue(t *testing.T) {
	slave := NewSlaveContext()

	// anything but 0x0000 and 0xFF00 is an illegal data value
	request := &WriteSingleCoilRequest{Address: 1, Value: 0x1234}
	response, err := request.Execute(slave)
	if err != nil {
		t.Fatal(err)
	}
	resp, ok := response.(*ExceptionResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", response)
	}
	if resp.ExceptionCode != ExceptionCodeIllegalDataValue {
		t.Fatalf("exception code expected %v, actual %v", ExceptionCodeIllegalDataValue, resp.ExceptionCode)
	}
}

func TestWriteMultipleCoilsEncodeDecode(t *testing.T) {
	request := NewWriteMultipleCoilsRequest(0x0013, []bool{
		true, false, true, true, false, false, true, true, true, false,
	})

	expected := []byte{0x00, 0x13, 0x00, 0x0A, 0x02, 0xCD, 0x01}
	if !bytes.Equal(request.Encode(), expected) {
		t.Fatalf("encoded request expected % x, actual % x", expected, request.Encode())
	}

	decoded := &WriteMultipleCoilsRequest{}
	if err := decoded.Decode(expected); err != nil {
		t.Fatal(err)
	}
	if decoded.Address != 0x0013 || len(decoded.Values) != 10 {
		t.Fatalf("decoded request (%v, %v) does not match (%v, %v)", decoded.Address, len(decoded.Values), 0x0013, 10)
	}
	for i, bit := range request.Values {
		if decoded.Values[i] != bit {
			t.Fatalf("decoded bit %v expected %v", i, bit)
		}
	}
}

func TestWriteMultipleCoilsExecute(t *testing.T) {
	slave := NewSlaveContext()

	request := NewWriteMultipleCoilsRequest(4, []bool{true, false, true})
	response, err := request.Execute(slave)
	if err != nil {
		t.Fatal(err)
	}
	resp, ok := response.(*WriteMultipleCoilsResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", response)
	}
	if resp.Address != 4 || resp.Count != 3 {
		t.Fatalf("response window (%v, %v) does not match (4, 3)", resp.Address, resp.Count)
	}
	bits, err := slave.Bits(FuncCodeReadCoils, 4, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !bits[0] || bits[1] || !bits[2] {
		t.Fatalf("unexpected coil status %v", bits)
	}
}

func TestWriteMultipleCoilsExecuteEmpty(t *testing.T) {
	slave := NewSlaveContext()

	request := NewWriteMultipleCoilsRequest(0, nil)
	response, err := request.Execute(slave)
	if err != nil {
		t.Fatal(err)
	}
	resp, ok := response.(*ExceptionResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", response)
	}
	if resp.ExceptionCode != ExceptionCodeIllegalDataValue {
		t.Fatalf("exception code expected %v, actual %v", ExceptionCodeIllegalDataValue, resp.ExceptionCode)
	}
}
