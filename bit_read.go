// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
)

// readBitsRequest is the shared shape of the coil and discrete input read
// requests:
//
//	Starting address      : 2 bytes
//	Quantity of bits      : 2 bytes
type readBitsRequest struct {
	Header
	Address uint16
	Count   uint16
}

func (r *readBitsRequest) Encode() []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], r.Count)
	return data
}

func (r *readBitsRequest) Decode(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("modbus: read bits request length '%v' does not meet minimum '%v'", len(data), 4)
	}
	r.Address = binary.BigEndian.Uint16(data)
	r.Count = binary.BigEndian.Uint16(data[2:])
	return nil
}

func (r *readBitsRequest) RTUFrameSize([]byte) (int, error) { return 8, nil }

// readBitsResponse is the shared shape of the coil and discrete input read
// responses: a byte count followed by the bits packed LSB first. Bits kept
// beyond the requested quantity are trailing pad.
type readBitsResponse struct {
	Header
	Bits []bool
}

func (r *readBitsResponse) Encode() []byte {
	packed := packBits(r.Bits)
	return append([]byte{byte(len(packed))}, packed...)
}

func (r *readBitsResponse) Decode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("modbus: read bits response payload is empty")
	}
	count := int(data[0])
	if len(data)-1 < count {
		return fmt.Errorf("modbus: read bits response data size '%v' does not match count '%v'", len(data)-1, count)
	}
	r.Bits = unpackBits(data[1 : count+1])
	return nil
}

func (r *readBitsResponse) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 2)
}

// ReadCoilsRequest reads from 1 to 2000 (0x7D0) contiguous coils in a
// remote device.
type ReadCoilsRequest struct {
	readBitsRequest
}

// NewReadCoilsRequest builds a read coils request for the given window.
func NewReadCoilsRequest(address, count uint16) *ReadCoilsRequest {
	r := &ReadCoilsRequest{}
	r.Address = address
	r.Count = count
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a read coils request.
func (r *ReadCoilsRequest) FunctionCode() byte { return FuncCodeReadCoils }

// Execute runs the request against the coil space of the slave.
func (r *ReadCoilsRequest) Execute(slave *SlaveContext) (PDU, error) {
	if r.Count < 1 || r.Count > 0x7D0 {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	if !slave.Validate(FuncCodeReadCoils, r.Address, r.Count) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	bits, err := slave.Bits(FuncCodeReadCoils, r.Address, r.Count)
	if err != nil {
		return nil, err
	}
	resp := &ReadCoilsResponse{}
	resp.Header = r.Header
	resp.Bits = bits
	return resp, nil
}

// ReadCoilsResponse carries the coil status, one coil per bit, 1 = ON.
type ReadCoilsResponse struct {
	readBitsResponse
}

// FunctionCode returns the function code of a read coils response.
func (r *ReadCoilsResponse) FunctionCode() byte { return FuncCodeReadCoils }

// ReadDiscreteInputsRequest reads from 1 to 2000 (0x7D0) contiguous
// discrete inputs in a remote device.
type ReadDiscreteInputsRequest struct {
	readBitsRequest
}

// NewReadDiscreteInputsRequest builds a read discrete inputs request for
// the given window.
func NewReadDiscreteInputsRequest(address, count uint16) *ReadDiscreteInputsRequest {
	r := &ReadDiscreteInputsRequest{}
	r.Address = address
	r.Count = count
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a read discrete inputs request.
func (r *ReadDiscreteInputsRequest) FunctionCode() byte { return FuncCodeReadDiscreteInputs }

// Execute runs the request against the discrete input space of the slave.
func (r *ReadDiscreteInputsRequest) Execute(slave *SlaveContext) (PDU, error) {
	if r.Count < 1 || r.Count > 0x7D0 {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	if !slave.Validate(FuncCodeReadDiscreteInputs, r.Address, r.Count) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	bits, err := slave.Bits(FuncCodeReadDiscreteInputs, r.Address, r.Count)
	if err != nil {
		return nil, err
	}
	resp := &ReadDiscreteInputsResponse{}
	resp.Header = r.Header
	resp.Bits = bits
	return resp, nil
}

// ReadDiscreteInputsResponse carries the input status, one input per bit,
// 1 = ON.
type ReadDiscreteInputsResponse struct {
	readBitsResponse
}

// FunctionCode returns the function code of a read discrete inputs response.
func (r *ReadDiscreteInputsResponse) FunctionCode() byte { return FuncCodeReadDiscreteInputs }
