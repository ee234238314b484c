// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
)

const (
	// CoilOn is the wire representation of an enabled coil.
	CoilOn uint16 = 0xFF00
	// CoilOff is the wire representation of a disabled coil.
	CoilOff uint16 = 0x0000
)

// WriteSingleCoilRequest forces a single coil to either ON or OFF:
//
//	Output address        : 2 bytes
//	Output value          : 2 bytes (0xFF00 or 0x0000)
type WriteSingleCoilRequest struct {
	Header
	Address uint16
	Value   uint16
}

// NewWriteSingleCoilRequest builds a write single coil request. An enabled
// coil is encoded as 0xFF00 per the modbus convention.
func NewWriteSingleCoilRequest(address uint16, value bool) *WriteSingleCoilRequest {
	r := &WriteSingleCoilRequest{Address: address, Value: CoilOff}
	if value {
		r.Value = CoilOn
	}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a write single coil request.
func (r *WriteSingleCoilRequest) FunctionCode() byte { return FuncCodeWriteSingleCoil }

// Encode encodes the request payload.
func (r *WriteSingleCoilRequest) Encode() []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], r.Value)
	return data
}

// Decode decodes the request payload.
func (r *WriteSingleCoilRequest) Decode(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("modbus: write single coil request length '%v' does not meet minimum '%v'", len(data), 4)
	}
	r.Address = binary.BigEndian.Uint16(data)
	r.Value = binary.BigEndian.Uint16(data[2:])
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *WriteSingleCoilRequest) RTUFrameSize([]byte) (int, error) { return 8, nil }

// Execute writes the coil. Any value other than 0xFF00 or 0x0000 is an
// illegal data value.
func (r *WriteSingleCoilRequest) Execute(slave *SlaveContext) (PDU, error) {
	if r.Value != CoilOn && r.Value != CoilOff {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	if !slave.Validate(FuncCodeWriteSingleCoil, r.Address, 1) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	if err := slave.SetBits(FuncCodeWriteSingleCoil, r.Address, []bool{r.Value == CoilOn}); err != nil {
		return nil, err
	}
	resp := &WriteSingleCoilResponse{Address: r.Address, Value: r.Value}
	resp.Header = r.Header
	return resp, nil
}

// WriteSingleCoilResponse echoes the written address and value.
type WriteSingleCoilResponse struct {
	Header
	Address uint16
	Value   uint16
}

// FunctionCode returns the function code of a write single coil response.
func (r *WriteSingleCoilResponse) FunctionCode() byte { return FuncCodeWriteSingleCoil }

// Encode encodes the response payload.
func (r *WriteSingleCoilResponse) Encode() []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], r.Value)
	return data
}

// Decode decodes the response payload.
func (r *WriteSingleCoilResponse) Decode(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("modbus: write single coil response length '%v' does not meet minimum '%v'", len(data), 4)
	}
	r.Address = binary.BigEndian.Uint16(data)
	r.Value = binary.BigEndian.Uint16(data[2:])
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *WriteSingleCoilResponse) RTUFrameSize([]byte) (int, error) { return 8, nil }

// WriteMultipleCoilsRequest forces each coil in a sequence to ON or OFF:
//
//	Starting address      : 2 bytes
//	Quantity of outputs   : 2 bytes
//	Byte count            : 1 byte
//	Output values         : N bytes, bits packed LSB first
type WriteMultipleCoilsRequest struct {
	Header
	Address uint16
	Values  []bool
}

// NewWriteMultipleCoilsRequest builds a write multiple coils request.
func NewWriteMultipleCoilsRequest(address uint16, values []bool) *WriteMultipleCoilsRequest {
	r := &WriteMultipleCoilsRequest{Address: address, Values: values}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a write multiple coils request.
func (r *WriteMultipleCoilsRequest) FunctionCode() byte { return FuncCodeWriteMultipleCoils }

// Encode encodes the request payload.
func (r *WriteMultipleCoilsRequest) Encode() []byte {
	packed := packBits(r.Values)
	data := make([]byte, 5, 5+len(packed))
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], uint16(len(r.Values)))
	data[4] = byte(len(packed))
	return append(data, packed...)
}

// Decode decodes the request payload.
func (r *WriteMultipleCoilsRequest) Decode(data []byte) error {
	if len(data) < 5 {
		return fmt.Errorf("modbus: write multiple coils request length '%v' does not meet minimum '%v'", len(data), 5)
	}
	r.Address = binary.BigEndian.Uint16(data)
	count := binary.BigEndian.Uint16(data[2:])
	byteCount := int(data[4])
	if len(data)-5 < byteCount {
		return fmt.Errorf("modbus: write multiple coils request data size '%v' does not match byte count '%v'", len(data)-5, byteCount)
	}
	bits := unpackBits(data[5 : 5+byteCount])
	if int(count) > len(bits) {
		return fmt.Errorf("modbus: write multiple coils request quantity '%v' exceeds packed bits '%v'", count, len(bits))
	}
	r.Values = bits[:count]
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *WriteMultipleCoilsRequest) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 6)
}

// Execute writes the coil sequence.
func (r *WriteMultipleCoilsRequest) Execute(slave *SlaveContext) (PDU, error) {
	count := len(r.Values)
	if count < 1 || count > 0x7B0 {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	if !slave.Validate(FuncCodeWriteMultipleCoils, r.Address, uint16(count)) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	if err := slave.SetBits(FuncCodeWriteMultipleCoils, r.Address, r.Values); err != nil {
		return nil, err
	}
	resp := &WriteMultipleCoilsResponse{Address: r.Address, Count: uint16(count)}
	resp.Header = r.Header
	return resp, nil
}

// WriteMultipleCoilsResponse echoes the starting address and the quantity
// of written outputs.
type WriteMultipleCoilsResponse struct {
	Header
	Address uint16
	Count   uint16
}

// FunctionCode returns the function code of a write multiple coils response.
func (r *WriteMultipleCoilsResponse) FunctionCode() byte { return FuncCodeWriteMultipleCoils }

// Encode encodes the response payload.
func (r *WriteMultipleCoilsResponse) Encode() []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], r.Count)
	return data
}

// Decode decodes the response payload.
func (r *WriteMultipleCoilsResponse) Decode(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("modbus: write multiple coils response length '%v' does not meet minimum '%v'", len(data), 4)
	}
	r.Address = binary.BigEndian.Uint16(data)
	r.Count = binary.BigEndian.Uint16(data[2:])
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *WriteMultipleCoilsResponse) RTUFrameSize([]byte) (int, error) { return 8, nil }
