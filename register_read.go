// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
)

// putRegisters appends the register values big endian to data.
func putRegisters(data []byte, values []uint16) []byte {
	for _, v := range values {
		data = append(data, byte(v>>8), byte(v))
	}
	return data
}

// getRegisters decodes count big endian registers from data.
func getRegisters(data []byte, count int) []uint16 {
	values := make([]uint16, count)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return values
}

// readRegistersRequest is the shared shape of the holding and input
// register read requests:
//
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
type readRegistersRequest struct {
	Header
	Address uint16
	Count   uint16
}

func (r *readRegistersRequest) Encode() []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data, r.Address)
	binary.BigEndian.PutUint16(data[2:], r.Count)
	return data
}

func (r *readRegistersRequest) Decode(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("modbus: read registers request length '%v' does not meet minimum '%v'", len(data), 4)
	}
	r.Address = binary.BigEndian.Uint16(data)
	r.Count = binary.BigEndian.Uint16(data[2:])
	return nil
}

func (r *readRegistersRequest) RTUFrameSize([]byte) (int, error) { return 8, nil }

// readRegistersResponse is the shared shape of the holding and input
// register read responses: a byte count followed by Nx2 register bytes.
type readRegistersResponse struct {
	Header
	Values []uint16
}

func (r *readRegistersResponse) Encode() []byte {
	data := make([]byte, 1, 1+2*len(r.Values))
	data[0] = byte(2 * len(r.Values))
	return putRegisters(data, r.Values)
}

func (r *readRegistersResponse) Decode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("modbus: read registers response payload is empty")
	}
	count := int(data[0])
	if count%2 != 0 || len(data)-1 < count {
		return fmt.Errorf("modbus: read registers response data size '%v' does not match byte count '%v'", len(data)-1, count)
	}
	r.Values = getRegisters(data[1:], count/2)
	return nil
}

func (r *readRegistersResponse) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 2)
}

// ReadHoldingRegistersRequest reads a contiguous block of 1 to 125 (0x7D)
// holding registers in a remote device.
type ReadHoldingRegistersRequest struct {
	readRegistersRequest
}

// NewReadHoldingRegistersRequest builds a read holding registers request.
func NewReadHoldingRegistersRequest(address, count uint16) *ReadHoldingRegistersRequest {
	r := &ReadHoldingRegistersRequest{}
	r.Address = address
	r.Count = count
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a read holding registers request.
func (r *ReadHoldingRegistersRequest) FunctionCode() byte { return FuncCodeReadHoldingRegisters }

// Execute runs the request against the holding register space of the slave.
func (r *ReadHoldingRegistersRequest) Execute(slave *SlaveContext) (PDU, error) {
	if r.Count < 1 || r.Count > 0x7D {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	if !slave.Validate(FuncCodeReadHoldingRegisters, r.Address, r.Count) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	values, err := slave.Registers(FuncCodeReadHoldingRegisters, r.Address, r.Count)
	if err != nil {
		return nil, err
	}
	resp := &ReadHoldingRegistersResponse{}
	resp.Header = r.Header
	resp.Values = values
	return resp, nil
}

// ReadHoldingRegistersResponse carries the register values big endian.
type ReadHoldingRegistersResponse struct {
	readRegistersResponse
}

// FunctionCode returns the function code of a read holding registers response.
func (r *ReadHoldingRegistersResponse) FunctionCode() byte { return FuncCodeReadHoldingRegisters }

// ReadInputRegistersRequest reads from 1 to 125 (0x7D) contiguous input
// registers in a remote device.
type ReadInputRegistersRequest struct {
	readRegistersRequest
}

// NewReadInputRegistersRequest builds a read input registers request.
func NewReadInputRegistersRequest(address, count uint16) *ReadInputRegistersRequest {
	r := &ReadInputRegistersRequest{}
	r.Address = address
	r.Count = count
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a read input registers request.
func (r *ReadInputRegistersRequest) FunctionCode() byte { return FuncCodeReadInputRegisters }

// Execute runs the request against the input register space of the slave.
func (r *ReadInputRegistersRequest) Execute(slave *SlaveContext) (PDU, error) {
	if r.Count < 1 || r.Count > 0x7D {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	if !slave.Validate(FuncCodeReadInputRegisters, r.Address, r.Count) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	values, err := slave.Registers(FuncCodeReadInputRegisters, r.Address, r.Count)
	if err != nil {
		return nil, err
	}
	resp := &ReadInputRegistersResponse{}
	resp.Header = r.Header
	resp.Values = values
	return resp, nil
}

// ReadInputRegistersResponse carries the register values big endian.
type ReadInputRegistersResponse struct {
	readRegistersResponse
}

// FunctionCode returns the function code of a read input registers response.
func (r *ReadInputRegistersResponse) FunctionCode() byte { return FuncCodeReadInputRegisters }

// ReadWriteMultipleRegistersRequest performs one read and one write in a
// single atomic operation; the write runs before the read:
//
//	Read starting address  : 2 bytes
//	Quantity to read       : 2 bytes
//	Write starting address : 2 bytes
//	Quantity to write      : 2 bytes
//	Write byte count       : 1 byte
//	Write registers        : Nx2 bytes
type ReadWriteMultipleRegistersRequest struct {
	Header
	ReadAddress  uint16
	ReadCount    uint16
	WriteAddress uint16
	WriteValues  []uint16
}

// NewReadWriteMultipleRegistersRequest builds a combined read/write request.
func NewReadWriteMultipleRegistersRequest(readAddress, readCount, writeAddress uint16, writeValues []uint16) *ReadWriteMultipleRegistersRequest {
	r := &ReadWriteMultipleRegistersRequest{
		ReadAddress:  readAddress,
		ReadCount:    readCount,
		WriteAddress: writeAddress,
		WriteValues:  writeValues,
	}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a read/write multiple registers request.
func (r *ReadWriteMultipleRegistersRequest) FunctionCode() byte {
	return FuncCodeReadWriteMultipleRegisters
}

// Encode encodes the request payload.
func (r *ReadWriteMultipleRegistersRequest) Encode() []byte {
	data := make([]byte, 9, 9+2*len(r.WriteValues))
	binary.BigEndian.PutUint16(data, r.ReadAddress)
	binary.BigEndian.PutUint16(data[2:], r.ReadCount)
	binary.BigEndian.PutUint16(data[4:], r.WriteAddress)
	binary.BigEndian.PutUint16(data[6:], uint16(len(r.WriteValues)))
	data[8] = byte(2 * len(r.WriteValues))
	return putRegisters(data, r.WriteValues)
}

// Decode decodes the request payload.
func (r *ReadWriteMultipleRegistersRequest) Decode(data []byte) error {
	if len(data) < 9 {
		return fmt.Errorf("modbus: read/write registers request length '%v' does not meet minimum '%v'", len(data), 9)
	}
	r.ReadAddress = binary.BigEndian.Uint16(data)
	r.ReadCount = binary.BigEndian.Uint16(data[2:])
	r.WriteAddress = binary.BigEndian.Uint16(data[4:])
	writeCount := binary.BigEndian.Uint16(data[6:])
	byteCount := int(data[8])
	if byteCount != 2*int(writeCount) || len(data)-9 < byteCount {
		return fmt.Errorf("modbus: read/write registers request byte count '%v' does not match write quantity '%v'", byteCount, writeCount)
	}
	r.WriteValues = getRegisters(data[9:], int(writeCount))
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *ReadWriteMultipleRegistersRequest) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 10)
}

// Execute writes the write window and then reads the read window.
func (r *ReadWriteMultipleRegistersRequest) Execute(slave *SlaveContext) (PDU, error) {
	writeCount := len(r.WriteValues)
	if r.ReadCount < 1 || r.ReadCount > 0x7D || writeCount < 1 || writeCount > 0x79 {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	if !slave.Validate(FuncCodeReadWriteMultipleRegisters, r.WriteAddress, uint16(writeCount)) ||
		!slave.Validate(FuncCodeReadWriteMultipleRegisters, r.ReadAddress, r.ReadCount) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	if err := slave.SetRegisters(FuncCodeReadWriteMultipleRegisters, r.WriteAddress, r.WriteValues); err != nil {
		return nil, err
	}
	values, err := slave.Registers(FuncCodeReadWriteMultipleRegisters, r.ReadAddress, r.ReadCount)
	if err != nil {
		return nil, err
	}
	resp := &ReadWriteMultipleRegistersResponse{}
	resp.Header = r.Header
	resp.Values = values
	return resp, nil
}

// ReadWriteMultipleRegistersResponse carries the registers of the read
// window.
type ReadWriteMultipleRegistersResponse struct {
	readRegistersResponse
}

// FunctionCode returns the function code of a read/write multiple registers response.
func (r *ReadWriteMultipleRegistersResponse) FunctionCode() byte {
	return FuncCodeReadWriteMultipleRegisters
}

// ReadFIFOQueueRequest reads the contents of a first-in-first-out queue of
// registers. The register at the pointer address holds the queue count,
// the queued values follow it.
type ReadFIFOQueueRequest struct {
	Header
	Address uint16
}

// NewReadFIFOQueueRequest builds a read FIFO queue request for the given
// pointer address.
func NewReadFIFOQueueRequest(address uint16) *ReadFIFOQueueRequest {
	r := &ReadFIFOQueueRequest{Address: address}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a read FIFO queue request.
func (r *ReadFIFOQueueRequest) FunctionCode() byte { return FuncCodeReadFIFOQueue }

// Encode encodes the request payload.
func (r *ReadFIFOQueueRequest) Encode() []byte {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, r.Address)
	return data
}

// Decode decodes the request payload.
func (r *ReadFIFOQueueRequest) Decode(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("modbus: read FIFO queue request length '%v' does not meet minimum '%v'", len(data), 2)
	}
	r.Address = binary.BigEndian.Uint16(data)
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *ReadFIFOQueueRequest) RTUFrameSize([]byte) (int, error) { return 6, nil }

// Execute reads the queue count register and the queued values following
// it from the holding register space.
func (r *ReadFIFOQueueRequest) Execute(slave *SlaveContext) (PDU, error) {
	if !slave.Validate(FuncCodeReadFIFOQueue, r.Address, 1) {
		return exception(r, ExceptionCodeIllegalDataAddress), nil
	}
	head, err := slave.Registers(FuncCodeReadFIFOQueue, r.Address, 1)
	if err != nil {
		return nil, err
	}
	count := head[0]
	if count > 31 {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	var values []uint16
	if count > 0 {
		if !slave.Validate(FuncCodeReadFIFOQueue, r.Address+1, count) {
			return exception(r, ExceptionCodeIllegalDataAddress), nil
		}
		if values, err = slave.Registers(FuncCodeReadFIFOQueue, r.Address+1, count); err != nil {
			return nil, err
		}
	}
	resp := &ReadFIFOQueueResponse{Values: values}
	resp.Header = r.Header
	return resp, nil
}

// ReadFIFOQueueResponse carries the queued register values in queue order:
//
//	Byte count            : 2 bytes (FIFO count field plus values)
//	FIFO count            : 2 bytes
//	FIFO values           : Nx2 bytes
type ReadFIFOQueueResponse struct {
	Header
	Values []uint16
}

// FunctionCode returns the function code of a read FIFO queue response.
func (r *ReadFIFOQueueResponse) FunctionCode() byte { return FuncCodeReadFIFOQueue }

// Encode encodes the response payload.
func (r *ReadFIFOQueueResponse) Encode() []byte {
	data := make([]byte, 4, 4+2*len(r.Values))
	binary.BigEndian.PutUint16(data, uint16(2*len(r.Values)+2))
	binary.BigEndian.PutUint16(data[2:], uint16(len(r.Values)))
	return putRegisters(data, r.Values)
}

// Decode decodes the response payload.
func (r *ReadFIFOQueueResponse) Decode(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("modbus: read FIFO queue response length '%v' does not meet minimum '%v'", len(data), 4)
	}
	count := int(binary.BigEndian.Uint16(data[2:]))
	if count > 31 || len(data)-4 < 2*count {
		return fmt.Errorf("modbus: read FIFO queue response count '%v' does not match data size '%v'", count, len(data)-4)
	}
	r.Values = getRegisters(data[4:], count)
	return nil
}

// RTUFrameSize implements rtuSizer. The leading two byte count field sizes
// the remainder of the frame.
func (r *ReadFIFOQueueResponse) RTUFrameSize(adu []byte) (int, error) {
	if len(adu) < 4 {
		return 0, errShortFrame
	}
	return int(binary.BigEndian.Uint16(adu[2:])) + 6, nil
}
