// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
)

// Diagnostic sub-function codes (function 8). The get/clear modbus plus
// statistics sub-function is proprietary and not supported.
const (
	DiagReturnQueryData                     uint16 = 0
	DiagRestartCommunicationsOption         uint16 = 1
	DiagReturnDiagnosticRegister            uint16 = 2
	DiagChangeASCIIInputDelimiter           uint16 = 3
	DiagForceListenOnlyMode                 uint16 = 4
	DiagClearCounters                       uint16 = 10
	DiagReturnBusMessageCount               uint16 = 11
	DiagReturnBusCommunicationErrorCount    uint16 = 12
	DiagReturnBusExceptionErrorCount        uint16 = 13
	DiagReturnSlaveMessageCount             uint16 = 14
	DiagReturnSlaveNoResponseCount          uint16 = 15
	DiagReturnSlaveNAKCount                 uint16 = 16
	DiagReturnSlaveBusyCount                uint16 = 17
	DiagReturnSlaveBusCharacterOverrunCount uint16 = 18
	DiagReturnIopOverrunCount               uint16 = 19
	DiagClearOverrunCount                   uint16 = 20
)

// diagnostic is the shared shape of the diagnostic family:
//
//	Sub-function          : 2 bytes
//	Data                  : Nx2 bytes
type diagnostic struct {
	Header
	Sub  uint16
	Data []uint16
}

// SubFunctionCode implements subFunctioner.
func (d *diagnostic) SubFunctionCode() uint16 { return d.Sub }

func (d *diagnostic) Encode() []byte {
	data := make([]byte, 2, 2+2*len(d.Data))
	binary.BigEndian.PutUint16(data, d.Sub)
	return putRegisters(data, d.Data)
}

func (d *diagnostic) Decode(data []byte) error {
	if len(data) < 2 || len(data)%2 != 0 {
		return fmt.Errorf("modbus: diagnostic payload length '%v' must be an even number of at least '%v'", len(data), 2)
	}
	d.Sub = binary.BigEndian.Uint16(data)
	d.Data = getRegisters(data[2:], (len(data)-2)/2)
	return nil
}

// Most diagnostic requests and responses carry the sub-function and one
// data word.
func (d *diagnostic) RTUFrameSize([]byte) (int, error) { return 8, nil }

// word returns the first data word, or zero when none was sent.
func (d *diagnostic) word() uint16 {
	if len(d.Data) == 0 {
		return 0
	}
	return d.Data[0]
}

// DiagnosticRequest is the generic diagnostic request. The decoder factory
// re-wraps it into the concrete sub-variant; a sub-function without a
// variant is answered with an illegal function exception.
type DiagnosticRequest struct {
	diagnostic
}

// FunctionCode returns the diagnostic function code.
func (r *DiagnosticRequest) FunctionCode() byte { return FuncCodeDiagnostics }

// Execute rejects the unsupported sub-function.
func (r *DiagnosticRequest) Execute(*SlaveContext) (PDU, error) {
	return exception(r, ExceptionCodeIllegalFunction), nil
}

// respond builds a diagnostic response mirroring the request sub-function.
func (r *DiagnosticRequest) respond(data ...uint16) *DiagnosticResponse {
	resp := &DiagnosticResponse{}
	resp.Header = r.Header
	resp.Sub = r.Sub
	resp.Data = data
	return resp
}

// DiagnosticResponse mirrors the sub-function and data of the request it
// answers. The Sub field tags the concrete variant.
type DiagnosticResponse struct {
	diagnostic
}

// FunctionCode returns the diagnostic function code.
func (r *DiagnosticResponse) FunctionCode() byte { return FuncCodeDiagnostics }

// ReturnQueryDataRequest echoes the request data back to the caller,
// sub-function 0.
type ReturnQueryDataRequest struct {
	DiagnosticRequest
}

// NewReturnQueryDataRequest builds a loopback request with the given data.
func NewReturnQueryDataRequest(data ...uint16) *ReturnQueryDataRequest {
	r := &ReturnQueryDataRequest{}
	r.Sub = DiagReturnQueryData
	r.Data = data
	r.ShouldRespond = true
	return r
}

// Execute echoes the data words.
func (r *ReturnQueryDataRequest) Execute(*SlaveContext) (PDU, error) {
	return r.respond(r.Data...), nil
}

// RestartCommunicationsOptionRequest restarts the communication option,
// sub-function 1. A data word of 0xFF00 also clears the event log.
type RestartCommunicationsOptionRequest struct {
	DiagnosticRequest
}

// NewRestartCommunicationsOptionRequest builds a restart request.
func NewRestartCommunicationsOptionRequest(clearLog bool) *RestartCommunicationsOptionRequest {
	r := &RestartCommunicationsOptionRequest{}
	r.Sub = DiagRestartCommunicationsOption
	r.Data = []uint16{0x0000}
	if clearLog {
		r.Data[0] = 0xFF00
	}
	r.ShouldRespond = true
	return r
}

// Execute restarts the slave communication state.
func (r *RestartCommunicationsOptionRequest) Execute(slave *SlaveContext) (PDU, error) {
	toggle := r.word()
	if toggle != 0x0000 && toggle != 0xFF00 {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	slave.Control.Restart(toggle == 0xFF00)
	return r.respond(toggle), nil
}

// ReturnDiagnosticRegisterRequest reads the diagnostic register,
// sub-function 2.
type ReturnDiagnosticRegisterRequest struct {
	DiagnosticRequest
}

// NewReturnDiagnosticRegisterRequest builds a diagnostic register request.
func NewReturnDiagnosticRegisterRequest() *ReturnDiagnosticRegisterRequest {
	r := &ReturnDiagnosticRegisterRequest{}
	r.Sub = DiagReturnDiagnosticRegister
	r.Data = []uint16{0x0000}
	r.ShouldRespond = true
	return r
}

// Execute reads the diagnostic register.
func (r *ReturnDiagnosticRegisterRequest) Execute(slave *SlaveContext) (PDU, error) {
	return r.respond(slave.Control.DiagnosticRegister()), nil
}

// ChangeASCIIInputDelimiterRequest changes the ASCII input delimiter,
// sub-function 3. The new delimiter is the high byte of the data word.
type ChangeASCIIInputDelimiterRequest struct {
	DiagnosticRequest
}

// NewChangeASCIIInputDelimiterRequest builds a change delimiter request.
func NewChangeASCIIInputDelimiterRequest(delimiter byte) *ChangeASCIIInputDelimiterRequest {
	r := &ChangeASCIIInputDelimiterRequest{}
	r.Sub = DiagChangeASCIIInputDelimiter
	r.Data = []uint16{uint16(delimiter) << 8}
	r.ShouldRespond = true
	return r
}

// Execute records the new delimiter in the control block.
func (r *ChangeASCIIInputDelimiterRequest) Execute(slave *SlaveContext) (PDU, error) {
	slave.Control.SetDelimiter(byte(r.word() >> 8))
	return r.respond(r.word()), nil
}

// ForceListenOnlyModeRequest forces the slave into listen only mode,
// sub-function 4. The request is not answered.
type ForceListenOnlyModeRequest struct {
	DiagnosticRequest
}

// NewForceListenOnlyModeRequest builds a force listen only mode request.
func NewForceListenOnlyModeRequest() *ForceListenOnlyModeRequest {
	r := &ForceListenOnlyModeRequest{}
	r.Sub = DiagForceListenOnlyMode
	r.ShouldRespond = true
	return r
}

// Execute switches the slave into listen only mode. The response carries
// no data and must not be sent.
func (r *ForceListenOnlyModeRequest) Execute(slave *SlaveContext) (PDU, error) {
	slave.Control.SetListenOnly(true)
	resp := r.respond()
	resp.ShouldRespond = false
	return resp, nil
}

// ClearCountersRequest clears the diagnostic counters and the event log,
// sub-function 10.
type ClearCountersRequest struct {
	DiagnosticRequest
}

// NewClearCountersRequest builds a clear counters request.
func NewClearCountersRequest() *ClearCountersRequest {
	r := &ClearCountersRequest{}
	r.Sub = DiagClearCounters
	r.Data = []uint16{0x0000}
	r.ShouldRespond = true
	return r
}

// Execute clears the counters.
func (r *ClearCountersRequest) Execute(slave *SlaveContext) (PDU, error) {
	slave.Control.ResetCounters()
	return r.respond(r.word()), nil
}

// ReturnCounterRequest is the shared shape of the counter reading sub-functions
// 11 through 19.
type ReturnCounterRequest struct {
	DiagnosticRequest
}

// Execute reads the counter selected by the sub-function.
func (r *ReturnCounterRequest) Execute(slave *SlaveContext) (PDU, error) {
	counters := slave.Control.Counters()
	var value uint16
	switch r.Sub {
	case DiagReturnBusMessageCount:
		value = counters.BusMessage
	case DiagReturnBusCommunicationErrorCount:
		value = counters.BusCommunicationError
	case DiagReturnBusExceptionErrorCount:
		value = counters.BusExceptionError
	case DiagReturnSlaveMessageCount:
		value = counters.SlaveMessage
	case DiagReturnSlaveNoResponseCount:
		value = counters.SlaveNoResponse
	case DiagReturnSlaveNAKCount:
		value = counters.SlaveNAK
	case DiagReturnSlaveBusyCount:
		value = counters.SlaveBusy
	case DiagReturnSlaveBusCharacterOverrunCount:
		value = counters.BusCharacterOverrun
	case DiagReturnIopOverrunCount:
		value = counters.IopOverrun
	default:
		return exception(r, ExceptionCodeIllegalFunction), nil
	}
	return r.respond(value), nil
}

// newCounterRequest builds a counter reading request for the given
// sub-function.
func newCounterRequest(sub uint16) *ReturnCounterRequest {
	r := &ReturnCounterRequest{}
	r.Sub = sub
	r.Data = []uint16{0x0000}
	r.ShouldRespond = true
	return r
}

// NewReturnBusMessageCountRequest reads the bus message counter.
func NewReturnBusMessageCountRequest() *ReturnCounterRequest {
	return newCounterRequest(DiagReturnBusMessageCount)
}

// NewReturnBusCommunicationErrorCountRequest reads the bus communication
// error counter.
func NewReturnBusCommunicationErrorCountRequest() *ReturnCounterRequest {
	return newCounterRequest(DiagReturnBusCommunicationErrorCount)
}

// NewReturnBusExceptionErrorCountRequest reads the bus exception error
// counter.
func NewReturnBusExceptionErrorCountRequest() *ReturnCounterRequest {
	return newCounterRequest(DiagReturnBusExceptionErrorCount)
}

// NewReturnSlaveMessageCountRequest reads the slave message counter.
func NewReturnSlaveMessageCountRequest() *ReturnCounterRequest {
	return newCounterRequest(DiagReturnSlaveMessageCount)
}

// NewReturnSlaveNoResponseCountRequest reads the slave no response counter.
func NewReturnSlaveNoResponseCountRequest() *ReturnCounterRequest {
	return newCounterRequest(DiagReturnSlaveNoResponseCount)
}

// NewReturnSlaveNAKCountRequest reads the slave NAK counter.
func NewReturnSlaveNAKCountRequest() *ReturnCounterRequest {
	return newCounterRequest(DiagReturnSlaveNAKCount)
}

// NewReturnSlaveBusyCountRequest reads the slave busy counter.
func NewReturnSlaveBusyCountRequest() *ReturnCounterRequest {
	return newCounterRequest(DiagReturnSlaveBusyCount)
}

// NewReturnSlaveBusCharacterOverrunCountRequest reads the character
// overrun counter.
func NewReturnSlaveBusCharacterOverrunCountRequest() *ReturnCounterRequest {
	return newCounterRequest(DiagReturnSlaveBusCharacterOverrunCount)
}

// NewReturnIopOverrunCountRequest reads the IOP overrun counter.
func NewReturnIopOverrunCountRequest() *ReturnCounterRequest {
	return newCounterRequest(DiagReturnIopOverrunCount)
}

// ClearOverrunCountRequest clears the character overrun counter,
// sub-function 20.
type ClearOverrunCountRequest struct {
	DiagnosticRequest
}

// NewClearOverrunCountRequest builds a clear overrun count request.
func NewClearOverrunCountRequest() *ClearOverrunCountRequest {
	r := &ClearOverrunCountRequest{}
	r.Sub = DiagClearOverrunCount
	r.Data = []uint16{0x0000}
	r.ShouldRespond = true
	return r
}

// Execute clears the overrun counter.
func (r *ClearOverrunCountRequest) Execute(slave *SlaveContext) (PDU, error) {
	slave.Control.ClearOverrunCount()
	return r.respond(r.word()), nil
}
