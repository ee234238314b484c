// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
)

// ReadExceptionStatusRequest reads the eight device status bits. The
// content of the status byte is device specific; this stack reports a
// summary of the non-zero diagnostic counters.
type ReadExceptionStatusRequest struct {
	Header
}

// NewReadExceptionStatusRequest builds a read exception status request.
func NewReadExceptionStatusRequest() *ReadExceptionStatusRequest {
	r := &ReadExceptionStatusRequest{}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a read exception status request.
func (r *ReadExceptionStatusRequest) FunctionCode() byte { return FuncCodeReadExceptionStatus }

// Encode returns no payload.
func (r *ReadExceptionStatusRequest) Encode() []byte { return nil }

// Decode expects no payload.
func (r *ReadExceptionStatusRequest) Decode([]byte) error { return nil }

// RTUFrameSize implements rtuSizer.
func (r *ReadExceptionStatusRequest) RTUFrameSize([]byte) (int, error) { return 4, nil }

// Execute reads the status byte from the control block of the slave.
func (r *ReadExceptionStatusRequest) Execute(slave *SlaveContext) (PDU, error) {
	resp := &ReadExceptionStatusResponse{Status: slave.Control.CounterSummary()}
	resp.Header = r.Header
	return resp, nil
}

// ReadExceptionStatusResponse carries the eight device status bits.
type ReadExceptionStatusResponse struct {
	Header
	Status byte
}

// FunctionCode returns the function code of a read exception status response.
func (r *ReadExceptionStatusResponse) FunctionCode() byte { return FuncCodeReadExceptionStatus }

// Encode encodes the status byte.
func (r *ReadExceptionStatusResponse) Encode() []byte { return []byte{r.Status} }

// Decode decodes the status byte.
func (r *ReadExceptionStatusResponse) Decode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("modbus: read exception status response payload is empty")
	}
	r.Status = data[0]
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *ReadExceptionStatusResponse) RTUFrameSize([]byte) (int, error) { return 5, nil }

// GetCommEventCounterRequest reads the communication event counter, which
// counts successfully completed message cycles since the last restart or
// counter clear.
type GetCommEventCounterRequest struct {
	Header
}

// NewGetCommEventCounterRequest builds a get comm event counter request.
func NewGetCommEventCounterRequest() *GetCommEventCounterRequest {
	r := &GetCommEventCounterRequest{}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a get comm event counter request.
func (r *GetCommEventCounterRequest) FunctionCode() byte { return FuncCodeGetCommEventCounter }

// Encode returns no payload.
func (r *GetCommEventCounterRequest) Encode() []byte { return nil }

// Decode expects no payload.
func (r *GetCommEventCounterRequest) Decode([]byte) error { return nil }

// RTUFrameSize implements rtuSizer.
func (r *GetCommEventCounterRequest) RTUFrameSize([]byte) (int, error) { return 4, nil }

// Execute reads the event counter from the control block of the slave.
func (r *GetCommEventCounterRequest) Execute(slave *SlaveContext) (PDU, error) {
	resp := &GetCommEventCounterResponse{Count: slave.Control.Counters().Event}
	resp.Header = r.Header
	return resp, nil
}

// GetCommEventCounterResponse carries the busy status word and the event
// count. Status is 0xFFFF while a long running program command is in
// progress, 0x0000 otherwise.
type GetCommEventCounterResponse struct {
	Header
	Busy  bool
	Count uint16
}

// FunctionCode returns the function code of a get comm event counter response.
func (r *GetCommEventCounterResponse) FunctionCode() byte { return FuncCodeGetCommEventCounter }

// Encode encodes the response payload.
func (r *GetCommEventCounterResponse) Encode() []byte {
	data := make([]byte, 4)
	if r.Busy {
		binary.BigEndian.PutUint16(data, 0xFFFF)
	}
	binary.BigEndian.PutUint16(data[2:], r.Count)
	return data
}

// Decode decodes the response payload.
func (r *GetCommEventCounterResponse) Decode(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("modbus: get comm event counter response length '%v' does not meet minimum '%v'", len(data), 4)
	}
	r.Busy = binary.BigEndian.Uint16(data) == 0xFFFF
	r.Count = binary.BigEndian.Uint16(data[2:])
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *GetCommEventCounterResponse) RTUFrameSize([]byte) (int, error) { return 8, nil }

// GetCommEventLogRequest reads the status word, event and message
// counters, and the communication event log of the slave.
type GetCommEventLogRequest struct {
	Header
}

// NewGetCommEventLogRequest builds a get comm event log request.
func NewGetCommEventLogRequest() *GetCommEventLogRequest {
	r := &GetCommEventLogRequest{}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a get comm event log request.
func (r *GetCommEventLogRequest) FunctionCode() byte { return FuncCodeGetCommEventLog }

// Encode returns no payload.
func (r *GetCommEventLogRequest) Encode() []byte { return nil }

// Decode expects no payload.
func (r *GetCommEventLogRequest) Decode([]byte) error { return nil }

// RTUFrameSize implements rtuSizer.
func (r *GetCommEventLogRequest) RTUFrameSize([]byte) (int, error) { return 4, nil }

// Execute reads the event log from the control block of the slave.
func (r *GetCommEventLogRequest) Execute(slave *SlaveContext) (PDU, error) {
	counters := slave.Control.Counters()
	resp := &GetCommEventLogResponse{
		EventCount:   counters.Event,
		MessageCount: counters.BusMessage,
		Events:       slave.Control.Events(),
	}
	resp.Header = r.Header
	return resp, nil
}

// GetCommEventLogResponse carries the status word, the event and message
// counters and up to 64 events, most recent first:
//
//	Byte count            : 1 byte (status + counters + events)
//	Status                : 2 bytes
//	Event count           : 2 bytes
//	Message count         : 2 bytes
//	Events                : 0 up to 64 bytes
type GetCommEventLogResponse struct {
	Header
	Busy         bool
	EventCount   uint16
	MessageCount uint16
	Events       []byte
}

// FunctionCode returns the function code of a get comm event log response.
func (r *GetCommEventLogResponse) FunctionCode() byte { return FuncCodeGetCommEventLog }

// Encode encodes the response payload.
func (r *GetCommEventLogResponse) Encode() []byte {
	data := make([]byte, 7, 7+len(r.Events))
	data[0] = byte(6 + len(r.Events))
	if r.Busy {
		binary.BigEndian.PutUint16(data[1:], 0xFFFF)
	}
	binary.BigEndian.PutUint16(data[3:], r.EventCount)
	binary.BigEndian.PutUint16(data[5:], r.MessageCount)
	return append(data, r.Events...)
}

// Decode decodes the response payload.
func (r *GetCommEventLogResponse) Decode(data []byte) error {
	if len(data) < 7 {
		return fmt.Errorf("modbus: get comm event log response length '%v' does not meet minimum '%v'", len(data), 7)
	}
	count := int(data[0])
	if count < 6 || len(data)-1 < count {
		return fmt.Errorf("modbus: get comm event log response byte count '%v' does not match data size '%v'", count, len(data)-1)
	}
	r.Busy = binary.BigEndian.Uint16(data[1:]) == 0xFFFF
	r.EventCount = binary.BigEndian.Uint16(data[3:])
	r.MessageCount = binary.BigEndian.Uint16(data[5:])
	r.Events = append([]byte(nil), data[7:count+1]...)
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *GetCommEventLogResponse) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 2)
}

// ReportSlaveIDRequest reads the identifier and run status of the slave.
type ReportSlaveIDRequest struct {
	Header
}

// NewReportSlaveIDRequest builds a report slave id request.
func NewReportSlaveIDRequest() *ReportSlaveIDRequest {
	r := &ReportSlaveIDRequest{}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a report slave id request.
func (r *ReportSlaveIDRequest) FunctionCode() byte { return FuncCodeReportSlaveID }

// Encode returns no payload.
func (r *ReportSlaveIDRequest) Encode() []byte { return nil }

// Decode expects no payload.
func (r *ReportSlaveIDRequest) Decode([]byte) error { return nil }

// RTUFrameSize implements rtuSizer.
func (r *ReportSlaveIDRequest) RTUFrameSize([]byte) (int, error) { return 4, nil }

// Execute reads the identifier from the device identification of the slave.
func (r *ReportSlaveIDRequest) Execute(slave *SlaveContext) (PDU, error) {
	resp := &ReportSlaveIDResponse{Identifier: slave.Identity.slaveID(), Run: true}
	resp.Header = r.Header
	return resp, nil
}

// ReportSlaveIDResponse carries the device specific identifier and the run
// indicator status (0xFF running, 0x00 stopped).
type ReportSlaveIDResponse struct {
	Header
	Identifier []byte
	Run        bool
}

// FunctionCode returns the function code of a report slave id response.
func (r *ReportSlaveIDResponse) FunctionCode() byte { return FuncCodeReportSlaveID }

// Encode encodes the response payload.
func (r *ReportSlaveIDResponse) Encode() []byte {
	data := make([]byte, 1, 2+len(r.Identifier))
	data[0] = byte(len(r.Identifier) + 1)
	data = append(data, r.Identifier...)
	if r.Run {
		return append(data, 0xFF)
	}
	return append(data, 0x00)
}

// Decode decodes the response payload.
func (r *ReportSlaveIDResponse) Decode(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("modbus: report slave id response length '%v' does not meet minimum '%v'", len(data), 2)
	}
	count := int(data[0])
	if count < 1 || len(data)-1 < count {
		return fmt.Errorf("modbus: report slave id response byte count '%v' does not match data size '%v'", count, len(data)-1)
	}
	r.Identifier = append([]byte(nil), data[1:count]...)
	r.Run = data[count] == 0xFF
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *ReportSlaveIDResponse) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 2)
}
