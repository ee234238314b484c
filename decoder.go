// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import "fmt"

// Decoder turns a framed message (function code plus payload) into a PDU.
// New returns a fresh PDU of the class registered for the function code so
// framers can apply its RTU size rule before the frame is complete.
type Decoder interface {
	Decode(data []byte) (PDU, error)
	New(functionCode byte) PDU
}

type newPDUFunc func() PDU

// decoderTables are the pre-computed lookup tables shared by both decoder
// factories: function code to constructor, and function code to
// sub-function constructors for the tagged variants.
type decoderTables struct {
	lookup    map[byte]newPDUFunc
	subLookup map[byte]map[uint16]newPDUFunc
}

func (d *decoderTables) register(fc byte, f newPDUFunc) {
	d.lookup[fc] = f
}

func (d *decoderTables) registerSub(fc byte, sub uint16, f newPDUFunc) {
	if d.subLookup[fc] == nil {
		d.subLookup[fc] = make(map[uint16]newPDUFunc)
	}
	d.subLookup[fc][sub] = f
}

// New returns a fresh PDU for the function code. Unknown codes map to the
// exception response class, whose fixed RTU size rule covers them.
func (d *decoderTables) New(functionCode byte) PDU {
	if f, ok := d.lookup[functionCode]; ok {
		return f()
	}
	return &ExceptionResponse{Function: functionCode & 0x7F}
}

// rewrap re-decodes the PDU into the concrete sub-variant when its
// function and sub-function codes name one.
func (d *decoderTables) rewrap(pdu PDU, payload []byte) (PDU, error) {
	sub, ok := pdu.(subFunctioner)
	if !ok {
		return pdu, nil
	}
	f, ok := d.subLookup[pdu.FunctionCode()][sub.SubFunctionCode()]
	if !ok {
		return pdu, nil
	}
	concrete := f()
	if err := concrete.Decode(payload); err != nil {
		return nil, err
	}
	concrete.Head().ShouldRespond = true
	return concrete, nil
}

// ServerDecoder decodes request frames on the server side. Unknown
// function codes decode to an IllegalFunctionRequest so the peer receives
// an illegal function exception instead of silence.
type ServerDecoder struct {
	decoderTables
}

// NewServerDecoder builds the request lookup tables.
func NewServerDecoder() *ServerDecoder {
	d := &ServerDecoder{decoderTables{
		lookup:    make(map[byte]newPDUFunc),
		subLookup: make(map[byte]map[uint16]newPDUFunc),
	}}

	d.register(FuncCodeReadCoils, func() PDU { return &ReadCoilsRequest{} })
	d.register(FuncCodeReadDiscreteInputs, func() PDU { return &ReadDiscreteInputsRequest{} })
	d.register(FuncCodeReadHoldingRegisters, func() PDU { return &ReadHoldingRegistersRequest{} })
	d.register(FuncCodeReadInputRegisters, func() PDU { return &ReadInputRegistersRequest{} })
	d.register(FuncCodeWriteSingleCoil, func() PDU { return &WriteSingleCoilRequest{} })
	d.register(FuncCodeWriteSingleRegister, func() PDU { return &WriteSingleRegisterRequest{} })
	d.register(FuncCodeReadExceptionStatus, func() PDU { return &ReadExceptionStatusRequest{} })
	d.register(FuncCodeDiagnostics, func() PDU { return &DiagnosticRequest{} })
	d.register(FuncCodeGetCommEventCounter, func() PDU { return &GetCommEventCounterRequest{} })
	d.register(FuncCodeGetCommEventLog, func() PDU { return &GetCommEventLogRequest{} })
	d.register(FuncCodeWriteMultipleCoils, func() PDU { return &WriteMultipleCoilsRequest{} })
	d.register(FuncCodeWriteMultipleRegisters, func() PDU { return &WriteMultipleRegistersRequest{} })
	d.register(FuncCodeReportSlaveID, func() PDU { return &ReportSlaveIDRequest{} })
	d.register(FuncCodeReadFileRecord, func() PDU { return &ReadFileRecordRequest{} })
	d.register(FuncCodeWriteFileRecord, func() PDU { return &WriteFileRecordRequest{} })
	d.register(FuncCodeMaskWriteRegister, func() PDU { return &MaskWriteRegisterRequest{} })
	d.register(FuncCodeReadWriteMultipleRegisters, func() PDU { return &ReadWriteMultipleRegistersRequest{} })
	d.register(FuncCodeReadFIFOQueue, func() PDU { return &ReadFIFOQueueRequest{} })
	d.register(FuncCodeReadDeviceIdentification, func() PDU { return &ReadDeviceInformationRequest{} })

	d.registerSub(FuncCodeDiagnostics, DiagReturnQueryData, func() PDU { return &ReturnQueryDataRequest{} })
	d.registerSub(FuncCodeDiagnostics, DiagRestartCommunicationsOption, func() PDU { return &RestartCommunicationsOptionRequest{} })
	d.registerSub(FuncCodeDiagnostics, DiagReturnDiagnosticRegister, func() PDU { return &ReturnDiagnosticRegisterRequest{} })
	d.registerSub(FuncCodeDiagnostics, DiagChangeASCIIInputDelimiter, func() PDU { return &ChangeASCIIInputDelimiterRequest{} })
	d.registerSub(FuncCodeDiagnostics, DiagForceListenOnlyMode, func() PDU { return &ForceListenOnlyModeRequest{} })
	d.registerSub(FuncCodeDiagnostics, DiagClearCounters, func() PDU { return &ClearCountersRequest{} })
	for sub := DiagReturnBusMessageCount; sub <= DiagReturnIopOverrunCount; sub++ {
		d.registerSub(FuncCodeDiagnostics, sub, func() PDU { return &ReturnCounterRequest{} })
	}
	d.registerSub(FuncCodeDiagnostics, DiagClearOverrunCount, func() PDU { return &ClearOverrunCountRequest{} })
	d.registerSub(FuncCodeReadDeviceIdentification, uint16(meiTypeReadDeviceIdentification),
		func() PDU { return &ReadDeviceInformationRequest{} })

	return d
}

// Decode decodes a request frame into the concrete request PDU.
func (d *ServerDecoder) Decode(data []byte) (PDU, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("modbus: request frame is empty")
	}
	var pdu PDU
	if f, ok := d.lookup[data[0]]; ok {
		pdu = f()
	} else {
		pdu = &IllegalFunctionRequest{Function: data[0]}
	}
	if err := pdu.Decode(data[1:]); err != nil {
		return nil, err
	}
	pdu.Head().ShouldRespond = true
	return d.rewrap(pdu, data[1:])
}

// ClientDecoder decodes response frames on the client side. A function
// code with the error bit set decodes to an ExceptionResponse; unknown
// codes are a decode error.
type ClientDecoder struct {
	decoderTables
}

// NewClientDecoder builds the response lookup tables.
func NewClientDecoder() *ClientDecoder {
	d := &ClientDecoder{decoderTables{
		lookup:    make(map[byte]newPDUFunc),
		subLookup: make(map[byte]map[uint16]newPDUFunc),
	}}

	d.register(FuncCodeReadCoils, func() PDU { return &ReadCoilsResponse{} })
	d.register(FuncCodeReadDiscreteInputs, func() PDU { return &ReadDiscreteInputsResponse{} })
	d.register(FuncCodeReadHoldingRegisters, func() PDU { return &ReadHoldingRegistersResponse{} })
	d.register(FuncCodeReadInputRegisters, func() PDU { return &ReadInputRegistersResponse{} })
	d.register(FuncCodeWriteSingleCoil, func() PDU { return &WriteSingleCoilResponse{} })
	d.register(FuncCodeWriteSingleRegister, func() PDU { return &WriteSingleRegisterResponse{} })
	d.register(FuncCodeReadExceptionStatus, func() PDU { return &ReadExceptionStatusResponse{} })
	d.register(FuncCodeDiagnostics, func() PDU { return &DiagnosticResponse{} })
	d.register(FuncCodeGetCommEventCounter, func() PDU { return &GetCommEventCounterResponse{} })
	d.register(FuncCodeGetCommEventLog, func() PDU { return &GetCommEventLogResponse{} })
	d.register(FuncCodeWriteMultipleCoils, func() PDU { return &WriteMultipleCoilsResponse{} })
	d.register(FuncCodeWriteMultipleRegisters, func() PDU { return &WriteMultipleRegistersResponse{} })
	d.register(FuncCodeReportSlaveID, func() PDU { return &ReportSlaveIDResponse{} })
	d.register(FuncCodeReadFileRecord, func() PDU { return &ReadFileRecordResponse{} })
	d.register(FuncCodeWriteFileRecord, func() PDU { return &WriteFileRecordResponse{} })
	d.register(FuncCodeMaskWriteRegister, func() PDU { return &MaskWriteRegisterResponse{} })
	d.register(FuncCodeReadWriteMultipleRegisters, func() PDU { return &ReadWriteMultipleRegistersResponse{} })
	d.register(FuncCodeReadFIFOQueue, func() PDU { return &ReadFIFOQueueResponse{} })
	d.register(FuncCodeReadDeviceIdentification, func() PDU { return &ReadDeviceInformationResponse{} })

	d.registerSub(FuncCodeReadDeviceIdentification, uint16(meiTypeReadDeviceIdentification),
		func() PDU { return &ReadDeviceInformationResponse{} })

	return d
}

// Decode decodes a response frame into the concrete response PDU.
func (d *ClientDecoder) Decode(data []byte) (PDU, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("modbus: response frame is empty")
	}
	if data[0]&0x80 != 0 {
		pdu := &ExceptionResponse{Function: data[0] & 0x7F}
		if err := pdu.Decode(data[1:]); err != nil {
			return nil, err
		}
		return pdu, nil
	}
	f, ok := d.lookup[data[0]]
	if !ok {
		return nil, fmt.Errorf("modbus: unknown response function code '%v'", data[0])
	}
	pdu := f()
	if err := pdu.Decode(data[1:]); err != nil {
		return nil, err
	}
	pdu.Head().ShouldRespond = true
	return d.rewrap(pdu, data[1:])
}
