// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
)

// WriteSingleRegisterRequest writes a single holding register:
//
//	Register address      : 2 bytes
//	Register value        : 2 bytes
type WriteSingleRegisterRequest struct {
	Header
	Address uint16
	Value   uint16
}

// NewWriteSingleRegisterRequest builds a write single register request.
func NewWriteSingleRegisterRequest(address, value uint16) *WriteSingleRegisterRequest {
	r := &WriteSingleRegisterRequest{Address: address, Value: value}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a write single register request.
func (r *WriteSingleRegisterRequest) FunctionCode() byte { return FuncCodeWriteSingleRegister }

// Encode encodes the request payload.
func (r *WriteSingleRegisterRequest) Encode() []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], r.Value)
	return data
}

// Decode decodes the request payload.
func (r *WriteSingleRegisterRequest) Decode(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("modbus: write single register request length '%v' does not meet minimum '%v'", len(data), 4)
	}
	r.Address = binary.BigEndian.Uint16(data)
	r.Value = binary.BigEndian.Uint16(data[2:])
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *WriteSingleRegisterRequest) RTUFrameSize([]byte) (int, error) { return 8, nil }

// Execute writes the register and echoes address and value.
func (r *WriteSingleRegisterRequest) Execute(slave *SlaveContext) (PDU, error) {
	if !slave.Validate(FuncCodeWriteSingleRegister, r.Address, 1) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	if err := slave.SetRegisters(FuncCodeWriteSingleRegister, r.Address, []uint16{r.Value}); err != nil {
		return nil, err
	}
	resp := &WriteSingleRegisterResponse{Address: r.Address, Value: r.Value}
	resp.Header = r.Header
	return resp, nil
}

// WriteSingleRegisterResponse echoes the written address and value.
type WriteSingleRegisterResponse struct {
	Header
	Address uint16
	Value   uint16
}

// FunctionCode returns the function code of a write single register response.
func (r *WriteSingleRegisterResponse) FunctionCode() byte { return FuncCodeWriteSingleRegister }

// Encode encodes the response payload.
func (r *WriteSingleRegisterResponse) Encode() []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], r.Value)
	return data
}

// Decode decodes the response payload.
func (r *WriteSingleRegisterResponse) Decode(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("modbus: write single register response length '%v' does not meet minimum '%v'", len(data), 4)
	}
	r.Address = binary.BigEndian.Uint16(data)
	r.Value = binary.BigEndian.Uint16(data[2:])
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *WriteSingleRegisterResponse) RTUFrameSize([]byte) (int, error) { return 8, nil }

// WriteMultipleRegistersRequest writes a block of 1 to 123 (0x7B)
// contiguous holding registers:
//
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
//	Byte count            : 1 byte
//	Register values       : Nx2 bytes
type WriteMultipleRegistersRequest struct {
	Header
	Address uint16
	Values  []uint16
}

// NewWriteMultipleRegistersRequest builds a write multiple registers
// request.
func NewWriteMultipleRegistersRequest(address uint16, values []uint16) *WriteMultipleRegistersRequest {
	r := &WriteMultipleRegistersRequest{Address: address, Values: values}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a write multiple registers request.
func (r *WriteMultipleRegistersRequest) FunctionCode() byte { return FuncCodeWriteMultipleRegisters }

// Encode encodes the request payload.
func (r *WriteMultipleRegistersRequest) Encode() []byte {
	data := make([]byte, 5, 5+2*len(r.Values))
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], uint16(len(r.Values)))
	data[4] = byte(2 * len(r.Values))
	return putRegisters(data, r.Values)
}

// Decode decodes the request payload.
func (r *WriteMultipleRegistersRequest) Decode(data []byte) error {
	if len(data) < 5 {
		return fmt.Errorf("modbus: write multiple registers request length '%v' does not meet minimum '%v'", len(data), 5)
	}
	r.Address = binary.BigEndian.Uint16(data)
	count := binary.BigEndian.Uint16(data[2:])
	byteCount := int(data[4])
	if byteCount != 2*int(count) || len(data)-5 < byteCount {
		return fmt.Errorf("modbus: write multiple registers request byte count '%v' does not match quantity '%v'", byteCount, count)
	}
	r.Values = getRegisters(data[5:], int(count))
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *WriteMultipleRegistersRequest) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 6)
}

// Execute writes the register block.
func (r *WriteMultipleRegistersRequest) Execute(slave *SlaveContext) (PDU, error) {
	count := len(r.Values)
	if count < 1 || count > 0x7B {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	if !slave.Validate(FuncCodeWriteMultipleRegisters, r.Address, uint16(count)) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	if err := slave.SetRegisters(FuncCodeWriteMultipleRegisters, r.Address, r.Values); err != nil {
		return nil, err
	}
	resp := &WriteMultipleRegistersResponse{Address: r.Address, Count: uint16(count)}
	resp.Header = r.Header
	return resp, nil
}

// WriteMultipleRegistersResponse echoes the starting address and the
// quantity of written registers.
type WriteMultipleRegistersResponse struct {
	Header
	Address uint16
	Count   uint16
}

// FunctionCode returns the function code of a write multiple registers response.
func (r *WriteMultipleRegistersResponse) FunctionCode() byte { return FuncCodeWriteMultipleRegisters }

// Encode encodes the response payload.
func (r *WriteMultipleRegistersResponse) Encode() []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], r.Count)
	return data
}

// Decode decodes the response payload.
func (r *WriteMultipleRegistersResponse) Decode(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("modbus: write multiple registers response length '%v' does not meet minimum '%v'", len(data), 4)
	}
	r.Address = binary.BigEndian.Uint16(data)
	r.Count = binary.BigEndian.Uint16(data[2:])
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *WriteMultipleRegistersResponse) RTUFrameSize([]byte) (int, error) { return 8, nil }

// MaskWriteRegisterRequest modifies a holding register using an AND mask
// and an OR mask:
//
//	result = (current AND and_mask) OR (or_mask AND NOT and_mask)
type MaskWriteRegisterRequest struct {
	Header
	Address uint16
	AndMask uint16
	OrMask  uint16
}

// NewMaskWriteRegisterRequest builds a mask write register request.
func NewMaskWriteRegisterRequest(address, andMask, orMask uint16) *MaskWriteRegisterRequest {
	r := &MaskWriteRegisterRequest{Address: address, AndMask: andMask, OrMask: orMask}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a mask write register request.
func (r *MaskWriteRegisterRequest) FunctionCode() byte { return FuncCodeMaskWriteRegister }

// Encode encodes the request payload.
func (r *MaskWriteRegisterRequest) Encode() []byte {
	data := make([]byte, 6)
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], r.AndMask)
	binary.BigEndian.PutUint16(data[4:], r.OrMask)
	return data
}

// Decode decodes the request payload.
func (r *MaskWriteRegisterRequest) Decode(data []byte) error {
	if len(data) < 6 {
		return fmt.Errorf("modbus: mask write register request length '%v' does not meet minimum '%v'", len(data), 6)
	}
	r.Address = binary.BigEndian.Uint16(data)
	r.AndMask = binary.BigEndian.Uint16(data[2:])
	r.OrMask = binary.BigEndian.Uint16(data[4:])
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *MaskWriteRegisterRequest) RTUFrameSize([]byte) (int, error) { return 10, nil }

// Execute applies the masks to the addressed holding register.
func (r *MaskWriteRegisterRequest) Execute(slave *SlaveContext) (PDU, error) {
	if !slave.Validate(FuncCodeMaskWriteRegister, r.Address, 1) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	current, err := slave.Registers(FuncCodeMaskWriteRegister, r.Address, 1)
	if err != nil {
		return nil, err
	}
	value := (current[0] & r.AndMask) | (r.OrMask &^ r.AndMask)
	if err := slave.SetRegisters(FuncCodeMaskWriteRegister, r.Address, []uint16{value}); err != nil {
		return nil, err
	}
	resp := &MaskWriteRegisterResponse{Address: r.Address, AndMask: r.AndMask, OrMask: r.OrMask}
	resp.Header = r.Header
	return resp, nil
}

// MaskWriteRegisterResponse echoes the address and the two masks.
type MaskWriteRegisterResponse struct {
	Header
	Address uint16
	AndMask uint16
	OrMask  uint16
}

// FunctionCode returns the function code of a mask write register response.
func (r *MaskWriteRegisterResponse) FunctionCode() byte { return FuncCodeMaskWriteRegister }

// Encode encodes the response payload.
func (r *MaskWriteRegisterResponse) Encode() []byte {
	data := make([]byte, 6)
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], r.AndMask)
	binary.BigEndian.PutUint16(data[4:], r.OrMask)
	return data
}

// Decode decodes the response payload.
func (r *MaskWriteRegisterResponse) Decode(data []byte) error {
	if len(data) < 6 {
		return fmt.Errorf("modbus: mask write register response length '%v' does not meet minimum '%v'", len(data), 6)
	}
	r.Address = binary.BigEndian.Uint16(data)
	r.AndMask = binary.BigEndian.Uint16(data[2:])
	r.OrMask = binary.BigEndian.Uint16(data[4:])
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *MaskWriteRegisterResponse) RTUFrameSize([]byte) (int, error) { return 10, nil }
