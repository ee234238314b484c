// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerDecoderTable(t *testing.T) {
	decoder := NewServerDecoder()

	tests := []struct {
		frame []byte
		want  PDU
	}{
		{[]byte{0x01, 0x00, 0x01, 0x00, 0x01}, &ReadCoilsRequest{}},
		{[]byte{0x02, 0x00, 0x01, 0x00, 0x01}, &ReadDiscreteInputsRequest{}},
		{[]byte{0x03, 0x00, 0x01, 0x00, 0x01}, &ReadHoldingRegistersRequest{}},
		{[]byte{0x04, 0x00, 0x01, 0x00, 0x01}, &ReadInputRegistersRequest{}},
		{[]byte{0x05, 0x00, 0x01, 0xFF, 0x00}, &WriteSingleCoilRequest{}},
		{[]byte{0x06, 0x00, 0x01, 0x00, 0x2A}, &WriteSingleRegisterRequest{}},
		{[]byte{0x07}, &ReadExceptionStatusRequest{}},
		{[]byte{0x0B}, &GetCommEventCounterRequest{}},
		{[]byte{0x0C}, &GetCommEventLogRequest{}},
		{[]byte{0x0F, 0x00, 0x01, 0x00, 0x01, 0x01, 0x01}, &WriteMultipleCoilsRequest{}},
		{[]byte{0x10, 0x00, 0x01, 0x00, 0x01, 0x02, 0x00, 0x2A}, &WriteMultipleRegistersRequest{}},
		{[]byte{0x11}, &ReportSlaveIDRequest{}},
		{[]byte{0x14, 0x07, 0x06, 0x00, 0x01, 0x00, 0x01, 0x00, 0x01}, &ReadFileRecordRequest{}},
		{[]byte{0x15, 0x09, 0x06, 0x00, 0x01, 0x00, 0x01, 0x00, 0x01, 0x12, 0x34}, &WriteFileRecordRequest{}},
		{[]byte{0x16, 0x00, 0x01, 0x00, 0xFF, 0xFF, 0x00}, &MaskWriteRegisterRequest{}},
		{[]byte{0x17, 0x00, 0x01, 0x00, 0x01, 0x00, 0x02, 0x00, 0x01, 0x02, 0x00, 0x2A}, &ReadWriteMultipleRegistersRequest{}},
		{[]byte{0x18, 0x00, 0x01}, &ReadFIFOQueueRequest{}},
		{[]byte{0x2B, 0x0E, 0x01, 0x00}, &ReadDeviceInformationRequest{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("fc_%#02x", tt.frame[0]), func(t *testing.T) {
			pdu, err := decoder.Decode(tt.frame)
			require.NoError(t, err)
			assert.IsType(t, tt.want, pdu)
			assert.Equal(t, tt.frame[0], pdu.FunctionCode())
			assert.True(t, pdu.Head().ShouldRespond)
			_, ok := pdu.(Request)
			assert.True(t, ok, "server side pdu must be executable")
		})
	}
}

func TestServerDecoderSubFunctions(t *testing.T) {
	decoder := NewServerDecoder()

	tests := []struct {
		sub  uint16
		want PDU
	}{
		{DiagReturnQueryData, &ReturnQueryDataRequest{}},
		{DiagRestartCommunicationsOption, &RestartCommunicationsOptionRequest{}},
		{DiagReturnDiagnosticRegister, &ReturnDiagnosticRegisterRequest{}},
		{DiagChangeASCIIInputDelimiter, &ChangeASCIIInputDelimiterRequest{}},
		{DiagForceListenOnlyMode, &ForceListenOnlyModeRequest{}},
		{DiagClearCounters, &ClearCountersRequest{}},
		{DiagReturnBusMessageCount, &ReturnCounterRequest{}},
		{DiagReturnIopOverrunCount, &ReturnCounterRequest{}},
		{DiagClearOverrunCount, &ClearOverrunCountRequest{}},
	}
	for _, tt := range tests {
		frame := []byte{0x08, byte(tt.sub >> 8), byte(tt.sub), 0x00, 0x00}
		pdu, err := decoder.Decode(frame)
		require.NoError(t, err)
		assert.IsType(t, tt.want, pdu, "sub-function %v", tt.sub)
	}

	// an unregistered sub-function stays generic
	pdu, err := decoder.Decode([]byte{0x08, 0x00, 0x55, 0x00, 0x00})
	require.NoError(t, err)
	assert.IsType(t, &DiagnosticRequest{}, pdu)
}

func TestServerDecoderUnknownFunction(t *testing.T) {
	decoder := NewServerDecoder()

	pdu, err := decoder.Decode([]byte{0x63, 0x01, 0x02})
	require.NoError(t, err)
	request, ok := pdu.(*IllegalFunctionRequest)
	require.True(t, ok, "unexpected pdu type %T", pdu)

	response, err := request.Execute(NewSlaveContext())
	require.NoError(t, err)
	resp, ok := response.(*ExceptionResponse)
	require.True(t, ok, "unexpected response type %T", response)
	assert.Equal(t, byte(0xE3), resp.FunctionCode())
	assert.Equal(t, byte(ExceptionCodeIllegalFunction), resp.ExceptionCode)
}

func TestClientDecoderExceptionResponse(t *testing.T) {
	decoder := NewClientDecoder()

	pdu, err := decoder.Decode([]byte{0x81, 0x03})
	require.NoError(t, err)
	resp, ok := pdu.(*ExceptionResponse)
	require.True(t, ok, "unexpected pdu type %T", pdu)
	assert.Equal(t, byte(0x01), resp.Function)
	assert.Equal(t, byte(ExceptionCodeIllegalDataValue), resp.ExceptionCode)
	assert.Equal(t, byte(0x81), resp.FunctionCode())
}

func TestClientDecoderUnknownFunction(t *testing.T) {
	decoder := NewClientDecoder()

	_, err := decoder.Decode([]byte{0x63, 0x01, 0x02})
	require.Error(t, err)
}

func TestClientDecoderResponses(t *testing.T) {
	decoder := NewClientDecoder()

	pdu, err := decoder.Decode([]byte{0x01, 0x01, 0x0D})
	require.NoError(t, err)
	assert.IsType(t, &ReadCoilsResponse{}, pdu)

	pdu, err = decoder.Decode([]byte{0x08, 0x00, 0x00, 0xA5, 0x37})
	require.NoError(t, err)
	assert.IsType(t, &DiagnosticResponse{}, pdu)

	pdu, err = decoder.Decode([]byte{0x2B, 0x0E, 0x01, 0x83, 0x00, 0x00, 0x01, 0x00, 0x04, 'a', 'c', 'm', 'e'})
	require.NoError(t, err)
	assert.IsType(t, &ReadDeviceInformationResponse{}, pdu)
}

func TestDecoderNewFallsBackToException(t *testing.T) {
	decoder := NewServerDecoder()

	pdu := decoder.New(0x63)
	sizer, ok := pdu.(rtuSizer)
	require.True(t, ok)
	size, err := sizer.RTUFrameSize(nil)
	require.NoError(t, err)
	assert.Equal(t, 5, size)
}
