// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"context"
	"fmt"
)

// Client runs typed modbus operations through a transaction manager. An
// in-band exception response surfaces as *Error; transport failures as
// the underlying error.
type Client struct {
	tm     *TransactionManager
	unitID byte
}

// NewClient creates a client on an assembled transaction manager.
func NewClient(tm *TransactionManager) *Client {
	return &Client{tm: tm, unitID: 1}
}

// NewTCPClient creates a client speaking MBAP over TCP with a keyed
// transaction manager, addressing unit 0xFF as customary on TCP.
func NewTCPClient(address string) *Client {
	framer := NewTCPFramer(NewClientDecoder())
	c := NewClient(NewKeyedTransactionManager(NewTCPTransport(address, framer)))
	c.unitID = 0xFF
	return c
}

// NewRTUClient creates a client speaking RTU over a serial line with a
// FIFO transaction manager.
func NewRTUClient(device string) *Client {
	framer := NewRTUFramer(NewClientDecoder())
	return NewClient(NewFIFOTransactionManager(NewSerialTransport(device, framer)))
}

// NewASCIIClient creates a client speaking ASCII over a serial line with
// a FIFO transaction manager.
func NewASCIIClient(device string) *Client {
	framer := NewASCIIFramer(NewClientDecoder())
	return NewClient(NewFIFOTransactionManager(NewSerialTransport(device, framer)))
}

// NewBinaryClient creates a client speaking the binary framing over a
// serial line with a FIFO transaction manager.
func NewBinaryClient(device string) *Client {
	framer := NewBinaryFramer(NewClientDecoder())
	return NewClient(NewFIFOTransactionManager(NewSerialTransport(device, framer)))
}

// NewRTUOverTCPClient creates a client speaking RTU framing over a TCP
// connection.
func NewRTUOverTCPClient(address string) *Client {
	framer := NewRTUFramer(NewClientDecoder())
	return NewClient(NewFIFOTransactionManager(NewTCPTransport(address, framer)))
}

// NewASCIIOverTCPClient creates a client speaking ASCII framing over a
// TCP connection.
func NewASCIIOverTCPClient(address string) *Client {
	framer := NewASCIIFramer(NewClientDecoder())
	return NewClient(NewFIFOTransactionManager(NewTCPTransport(address, framer)))
}

// SetUnitID sets the modbus unit id for the next client operations.
func (c *Client) SetUnitID(unitID byte) { c.unitID = unitID }

// Close closes the underlying transport.
func (c *Client) Close() error { return c.tm.transport.Close() }

// execute runs the request through the transaction manager and unwraps
// in-band exceptions.
func (c *Client) execute(ctx context.Context, request PDU) (PDU, error) {
	request.Head().UnitID = c.unitID
	response, err := c.tm.Execute(ctx, request)
	if err != nil {
		return nil, err
	}
	if e, ok := response.(*ExceptionResponse); ok {
		return nil, &Error{FunctionCode: e.Function, ExceptionCode: e.ExceptionCode}
	}
	if response.FunctionCode() != request.FunctionCode() {
		return nil, fmt.Errorf("modbus: response function code '%v' does not match request '%v'",
			response.FunctionCode(), request.FunctionCode())
	}
	return response, nil
}

// Request:
//
//	Function code         : 1 byte (0x01)
//	Starting address      : 2 bytes
//	Quantity of coils     : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x01)
//	Byte count            : 1 byte
//	Coil status           : N* bytes
func (c *Client) ReadCoils(ctx context.Context, address, quantity uint16) ([]bool, error) {
	response, err := c.execute(ctx, NewReadCoilsRequest(address, quantity))
	if err != nil {
		return nil, err
	}
	resp, ok := response.(*ReadCoilsResponse)
	if !ok {
		return nil, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	if len(resp.Bits) < int(quantity) {
		return nil, fmt.Errorf("modbus: response bit count '%v' does not match request quantity '%v'", len(resp.Bits), quantity)
	}
	return resp.Bits[:quantity], nil
}

// Request:
//
//	Function code         : 1 byte (0x02)
//	Starting address      : 2 bytes
//	Quantity of inputs    : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x02)
//	Byte count            : 1 byte
//	Input status          : N* bytes
func (c *Client) ReadDiscreteInputs(ctx context.Context, address, quantity uint16) ([]bool, error) {
	response, err := c.execute(ctx, NewReadDiscreteInputsRequest(address, quantity))
	if err != nil {
		return nil, err
	}
	resp, ok := response.(*ReadDiscreteInputsResponse)
	if !ok {
		return nil, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	if len(resp.Bits) < int(quantity) {
		return nil, fmt.Errorf("modbus: response bit count '%v' does not match request quantity '%v'", len(resp.Bits), quantity)
	}
	return resp.Bits[:quantity], nil
}

// Request:
//
//	Function code         : 1 byte (0x03)
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x03)
//	Byte count            : 1 byte
//	Register value        : Nx2 bytes
func (c *Client) ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	response, err := c.execute(ctx, NewReadHoldingRegistersRequest(address, quantity))
	if err != nil {
		return nil, err
	}
	resp, ok := response.(*ReadHoldingRegistersResponse)
	if !ok {
		return nil, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	if len(resp.Values) != int(quantity) {
		return nil, fmt.Errorf("modbus: response register count '%v' does not match request quantity '%v'", len(resp.Values), quantity)
	}
	return resp.Values, nil
}

// Request:
//
//	Function code         : 1 byte (0x04)
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x04)
//	Byte count            : 1 byte
//	Input registers       : Nx2 bytes
func (c *Client) ReadInputRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	response, err := c.execute(ctx, NewReadInputRegistersRequest(address, quantity))
	if err != nil {
		return nil, err
	}
	resp, ok := response.(*ReadInputRegistersResponse)
	if !ok {
		return nil, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	if len(resp.Values) != int(quantity) {
		return nil, fmt.Errorf("modbus: response register count '%v' does not match request quantity '%v'", len(resp.Values), quantity)
	}
	return resp.Values, nil
}

// Request:
//
//	Function code         : 1 byte (0x05)
//	Output address        : 2 bytes
//	Output value          : 2 bytes (0xFF00 or 0x0000)
//
// The response echoes the request.
func (c *Client) WriteSingleCoil(ctx context.Context, address uint16, value bool) error {
	_, err := c.execute(ctx, NewWriteSingleCoilRequest(address, value))
	return err
}

// Request:
//
//	Function code         : 1 byte (0x06)
//	Register address      : 2 bytes
//	Register value        : 2 bytes
//
// The response echoes the request.
func (c *Client) WriteSingleRegister(ctx context.Context, address, value uint16) error {
	_, err := c.execute(ctx, NewWriteSingleRegisterRequest(address, value))
	return err
}

// Request:
//
//	Function code         : 1 byte (0x0F)
//	Starting address      : 2 bytes
//	Quantity of outputs   : 2 bytes
//	Byte count            : 1 byte
//	Output values         : N bytes
//
// The response carries starting address and quantity.
func (c *Client) WriteMultipleCoils(ctx context.Context, address uint16, values []bool) error {
	_, err := c.execute(ctx, NewWriteMultipleCoilsRequest(address, values))
	return err
}

// Request:
//
//	Function code         : 1 byte (0x10)
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
//	Byte count            : 1 byte
//	Register values       : Nx2 bytes
//
// The response carries starting address and quantity.
func (c *Client) WriteMultipleRegisters(ctx context.Context, address uint16, values []uint16) error {
	_, err := c.execute(ctx, NewWriteMultipleRegistersRequest(address, values))
	return err
}

// Request:
//
//	Function code         : 1 byte (0x16)
//	Reference address     : 2 bytes
//	AND mask              : 2 bytes
//	OR mask               : 2 bytes
//
// The response echoes the request.
func (c *Client) MaskWriteRegister(ctx context.Context, address, andMask, orMask uint16) error {
	_, err := c.execute(ctx, NewMaskWriteRegisterRequest(address, andMask, orMask))
	return err
}

// Request:
//
//	Function code          : 1 byte (0x17)
//	Read starting address  : 2 bytes
//	Quantity to read       : 2 bytes
//	Write starting address : 2 bytes
//	Quantity to write      : 2 bytes
//	Write byte count       : 1 byte
//	Write registers        : Nx2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x17)
//	Byte count            : 1 byte
//	Read registers        : Nx2 bytes
func (c *Client) ReadWriteMultipleRegisters(ctx context.Context, readAddress, readQuantity, writeAddress uint16, writeValues []uint16) ([]uint16, error) {
	response, err := c.execute(ctx, NewReadWriteMultipleRegistersRequest(readAddress, readQuantity, writeAddress, writeValues))
	if err != nil {
		return nil, err
	}
	resp, ok := response.(*ReadWriteMultipleRegistersResponse)
	if !ok {
		return nil, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	if len(resp.Values) != int(readQuantity) {
		return nil, fmt.Errorf("modbus: response register count '%v' does not match request quantity '%v'", len(resp.Values), readQuantity)
	}
	return resp.Values, nil
}

// Request:
//
//	Function code         : 1 byte (0x18)
//	FIFO pointer address  : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x18)
//	Byte count            : 2 bytes
//	FIFO count            : 2 bytes
//	FIFO value register   : Nx2 bytes
func (c *Client) ReadFIFOQueue(ctx context.Context, address uint16) ([]uint16, error) {
	response, err := c.execute(ctx, NewReadFIFOQueueRequest(address))
	if err != nil {
		return nil, err
	}
	resp, ok := response.(*ReadFIFOQueueResponse)
	if !ok {
		return nil, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	return resp.Values, nil
}

// ReadExceptionStatus reads the eight device status bits (function 0x07).
func (c *Client) ReadExceptionStatus(ctx context.Context) (byte, error) {
	response, err := c.execute(ctx, NewReadExceptionStatusRequest())
	if err != nil {
		return 0, err
	}
	resp, ok := response.(*ReadExceptionStatusResponse)
	if !ok {
		return 0, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	return resp.Status, nil
}

// Diagnostics runs a raw diagnostic sub-function (function 0x08) and
// returns the response data words.
func (c *Client) Diagnostics(ctx context.Context, sub uint16, data ...uint16) ([]uint16, error) {
	request := &DiagnosticRequest{}
	request.Sub = sub
	request.Data = data
	request.ShouldRespond = true
	response, err := c.execute(ctx, request)
	if err != nil {
		return nil, err
	}
	resp, ok := response.(*DiagnosticResponse)
	if !ok {
		return nil, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	if resp.Sub != sub {
		return nil, fmt.Errorf("modbus: response sub-function '%v' does not match request '%v'", resp.Sub, sub)
	}
	return resp.Data, nil
}

// GetCommEventCounter reads the communication event counter (function
// 0x0B).
func (c *Client) GetCommEventCounter(ctx context.Context) (uint16, error) {
	response, err := c.execute(ctx, NewGetCommEventCounterRequest())
	if err != nil {
		return 0, err
	}
	resp, ok := response.(*GetCommEventCounterResponse)
	if !ok {
		return 0, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	return resp.Count, nil
}

// GetCommEventLog reads the communication event log (function 0x0C).
func (c *Client) GetCommEventLog(ctx context.Context) (*GetCommEventLogResponse, error) {
	response, err := c.execute(ctx, NewGetCommEventLogRequest())
	if err != nil {
		return nil, err
	}
	resp, ok := response.(*GetCommEventLogResponse)
	if !ok {
		return nil, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	return resp, nil
}

// ReportSlaveID reads the slave identifier and run status (function
// 0x11).
func (c *Client) ReportSlaveID(ctx context.Context) ([]byte, bool, error) {
	response, err := c.execute(ctx, NewReportSlaveIDRequest())
	if err != nil {
		return nil, false, err
	}
	resp, ok := response.(*ReportSlaveIDResponse)
	if !ok {
		return nil, false, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	return resp.Identifier, resp.Run, nil
}

// ReadFileRecord reads the given file record windows (function 0x14).
func (c *Client) ReadFileRecord(ctx context.Context, records ...FileRecord) ([]FileRecord, error) {
	response, err := c.execute(ctx, NewReadFileRecordRequest(records...))
	if err != nil {
		return nil, err
	}
	resp, ok := response.(*ReadFileRecordResponse)
	if !ok {
		return nil, fmt.Errorf("modbus: unexpected response type %T", response)
	}
	return resp.Records, nil
}

// WriteFileRecord writes the given file record windows (function 0x15).
func (c *Client) WriteFileRecord(ctx context.Context, records ...FileRecord) error {
	_, err := c.execute(ctx, NewWriteFileRecordRequest(records...))
	return err
}

// ReadDeviceInformation reads the device identification objects using
// function 0x2B (MEI type 0x0E), following the more follows continuation
// until all objects of the category are received.
func (c *Client) ReadDeviceInformation(ctx context.Context, readCode ReadDeviceIDCode) (map[byte][]byte, error) {
	results := make(map[byte][]byte)
	objectID := byte(0)
	for {
		response, err := c.execute(ctx, NewReadDeviceInformationRequest(readCode, objectID))
		if err != nil {
			return nil, err
		}
		resp, ok := response.(*ReadDeviceInformationResponse)
		if !ok {
			return nil, fmt.Errorf("modbus: unexpected response type %T", response)
		}
		for _, object := range resp.Objects {
			results[object.ID] = object.Value
		}
		if !resp.MoreFollows {
			return results, nil
		}
		objectID = resp.NextObjectID
	}
}
