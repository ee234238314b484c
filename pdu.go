// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"errors"
	"fmt"
)

// errShortFrame signals that a buffer does not yet hold enough bytes to
// size or decode a frame. Framers treat it as "wait for more data".
var errShortFrame = errors.New("modbus: short frame")

// Header carries the transport level fields shared by every PDU. The
// transaction and protocol identifiers are only meaningful on TCP; the
// unit identifier addresses a slave on a shared bus. ShouldRespond is
// cleared by requests that must not be answered (e.g. force listen only).
type Header struct {
	TransactionID uint16
	ProtocolID    uint16
	UnitID        byte
	ShouldRespond bool
}

// Head exposes the embedded header so framers and transaction managers can
// reach it through the PDU interface.
func (h *Header) Head() *Header { return h }

// PDU is a single protocol data unit: a function code plus its payload,
// independent of the underlying communication layer. Encode returns the
// payload only, excluding the function code; Decode is its inverse.
type PDU interface {
	FunctionCode() byte
	Encode() []byte
	Decode(data []byte) error
	Head() *Header
}

// Request is a PDU the server can run against a slave. Execute returns the
// typed response, an *ExceptionResponse for in-band protocol errors, or an
// error for failures the server reports as a server device failure.
type Request interface {
	PDU
	Execute(slave *SlaveContext) (PDU, error)
}

// rtuSizer computes the total RTU frame size (unit id through CRC) from a
// partially buffered ADU. Implementations return errShortFrame while the
// buffer does not yet hold the bytes the size rule needs.
type rtuSizer interface {
	RTUFrameSize(adu []byte) (int, error)
}

// subFunctioner is implemented by PDUs carrying a sub-function code
// (diagnostic family and MEI transport). The decoder factories use it to
// re-wrap a decoded PDU into the concrete sub-variant.
type subFunctioner interface {
	SubFunctionCode() uint16
}

// byteCountFrameSize implements the byte-count sizing policy: the byte at
// pos counts the remaining payload, so the frame ends pos + 1 + count + 2
// (the count byte itself plus two CRC bytes) into the ADU.
func byteCountFrameSize(adu []byte, pos int) (int, error) {
	if len(adu) <= pos {
		return 0, errShortFrame
	}
	return int(adu[pos]) + pos + 3, nil
}

// ExceptionResponse reports an in-band modbus exception. Function holds the
// function code of the offending request without the error bit.
type ExceptionResponse struct {
	Header
	Function      byte
	ExceptionCode byte
}

// FunctionCode returns the original function code with the error bit set.
func (r *ExceptionResponse) FunctionCode() byte { return r.Function | 0x80 }

// Encode encodes the single byte exception code.
func (r *ExceptionResponse) Encode() []byte { return []byte{r.ExceptionCode} }

// Decode decodes the exception code from the payload.
func (r *ExceptionResponse) Decode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("modbus: exception response payload is empty")
	}
	r.ExceptionCode = data[0]
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *ExceptionResponse) RTUFrameSize([]byte) (int, error) { return 5, nil }

func (r *ExceptionResponse) Error() string {
	e := Error{FunctionCode: r.Function, ExceptionCode: r.ExceptionCode}
	return e.Error()
}

// exception builds an exception response answering req with the given code.
func exception(req PDU, code byte) *ExceptionResponse {
	resp := &ExceptionResponse{Function: req.FunctionCode() & 0x7F, ExceptionCode: code}
	resp.Header = *req.Head()
	return resp
}

// IllegalFunctionRequest stands in for a request whose function code the
// server decoder does not know. Executing it yields an illegal function
// exception, so unknown codes surface to the peer instead of being dropped.
type IllegalFunctionRequest struct {
	Header
	Function byte
}

// FunctionCode returns the unsupported function code as received.
func (r *IllegalFunctionRequest) FunctionCode() byte { return r.Function }

// Encode returns no payload.
func (r *IllegalFunctionRequest) Encode() []byte { return nil }

// Decode swallows the payload; the bytes carry no meaning for an
// unsupported function.
func (r *IllegalFunctionRequest) Decode([]byte) error { return nil }

// Execute answers with an illegal function exception.
func (r *IllegalFunctionRequest) Execute(*SlaveContext) (PDU, error) {
	return exception(r, ExceptionCodeIllegalFunction), nil
}
