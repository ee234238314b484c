// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

func TestReadCoilsRequestEncodeDecode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		request := NewReadCoilsRequest(
			rapid.Uint16().Draw(t, "address"),
			rapid.Uint16().Draw(t, "count"),
		)

		decoded := &ReadCoilsRequest{}
		if err := decoded.Decode(request.Encode()); err != nil {
			t.Fatalf("error while decoding: %+v", err)
		}
		if decoded.Address != request.Address || decoded.Count != request.Count {
			t.Fatalf("decoded request (%v, %v) does not match (%v, %v)",
				decoded.Address, decoded.Count, request.Address, request.Count)
		}
	})
}

func TestReadCoilsResponseEncodeDecode(t *testing.T) {
	response := &ReadCoilsResponse{}
	response.Bits = []bool{true, false, true, true, false, false, false, false, true}

	encoded := response.Encode()
	expected := []byte{0x02, 0x0D, 0x01}
	if !bytes.Equal(encoded, expected) {
		t.Fatalf("encoded response expected % x, actual % x", expected, encoded)
	}

	decoded := &ReadCoilsResponse{}
	if err := decoded.Decode(encoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Bits) != 16 {
		t.Fatalf("decoded bit count expected %v, actual %v", 16, len(decoded.Bits))
	}
	for i, bit := range response.Bits {
		if decoded.Bits[i] != bit {
			t.Fatalf("decoded bit %v expected %v", i, bit)
		}
	}
}

func TestReadCoilsExecute(t *testing.T) {
	slave := NewSlaveContext()
	slave.Coils.SetValues(2, []bool{true, true})

	request := NewReadCoilsRequest(2, 3)
	response, err := request.Execute(slave)
	if err != nil {
		t.Fatal(err)
	}
	resp, ok := response.(*ReadCoilsResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", response)
	}
	if !resp.Bits[0] || !resp.Bits[1] || resp.Bits[2] {
		t.Fatalf("unexpected coil status %v", resp.Bits)
	}
}

func TestReadCoilsExecuteIllegalValue(t *testing.T) {
	slave := NewSlaveContext()

	// count above 0x7D0 is an illegal data value
	request := NewReadCoilsRequest(0, 0x801)
	response, err := request.Execute(slave)
	if err != nil {
		t.Fatal(err)
	}
	resp, ok := response.(*ExceptionResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", response)
	}
	if resp.FunctionCode() != 0x81 {
		t.Fatalf("exception function code expected %v, actual %v", 0x81, resp.FunctionCode())
	}
	if resp.ExceptionCode != ExceptionCodeIllegalDataValue {
		t.Fatalf("exception code expected %v, actual %v", ExceptionCodeIllegalDataValue, resp.ExceptionCode)
	}
}

func TestReadDiscreteInputsExecuteIllegalAddress(t *testing.T) {
	slave := &SlaveContext{
		Discretes: NewSequentialDataBlock(0, make([]bool, 8)),
		Control:   NewControlBlock(),
		Identity:  &DeviceIdentification{},
	}

	request := NewReadDiscreteInputsRequest(4, 8)
	response, err := request.Execute(slave)
	if err != nil {
		t.Fatal(err)
	}
	resp, ok := response.(*ExceptionResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", response)
	}
	if resp.ExceptionCode != ExceptionCodeIllegalDataAddress {
		t.Fatalf("exception code expected %v, actual %v", ExceptionCodeIllegalDataAddress, resp.ExceptionCode)
	}
}
