// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReturnQueryDataExecute(t *testing.T) {
	slave := NewSlaveContext()

	request := NewReturnQueryDataRequest(0xA537)
	response, err := request.Execute(slave)
	require.NoError(t, err)
	resp, ok := response.(*DiagnosticResponse)
	require.True(t, ok, "unexpected response type %T", response)
	require.Equal(t, DiagReturnQueryData, resp.Sub)
	require.Equal(t, []uint16{0xA537}, resp.Data)
}

func TestDiagnosticEncodeDecode(t *testing.T) {
	request := NewReturnQueryDataRequest(0xA537)

	encoded := request.Encode()
	require.Equal(t, []byte{0x00, 0x00, 0xA5, 0x37}, encoded)

	decoded := &DiagnosticRequest{}
	require.NoError(t, decoded.Decode(encoded))
	require.Equal(t, DiagReturnQueryData, decoded.Sub)
	require.Equal(t, []uint16{0xA537}, decoded.Data)
}

func TestForceListenOnlyModeExecute(t *testing.T) {
	slave := NewSlaveContext()

	response, err := NewForceListenOnlyModeRequest().Execute(slave)
	require.NoError(t, err)
	require.True(t, slave.Control.ListenOnly())
	require.False(t, response.Head().ShouldRespond)
}

func TestRestartCommunicationsOptionExecute(t *testing.T) {
	slave := NewSlaveContext()
	slave.Control.SetListenOnly(true)
	slave.Control.countBusMessage()
	slave.Control.AddEvent(0x01)

	response, err := NewRestartCommunicationsOptionRequest(true).Execute(slave)
	require.NoError(t, err)
	resp := response.(*DiagnosticResponse)
	require.Equal(t, []uint16{0xFF00}, resp.Data)

	require.False(t, slave.Control.ListenOnly())
	require.Equal(t, uint16(0), slave.Control.Counters().BusMessage)
	require.Empty(t, slave.Control.Events())
}

func TestRestartCommunicationsOptionIllegalToggle(t *testing.T) {
	slave := NewSlaveContext()

	request := &RestartCommunicationsOptionRequest{}
	request.Sub = DiagRestartCommunicationsOption
	request.Data = []uint16{0x1234}
	response, err := request.Execute(slave)
	require.NoError(t, err)
	resp, ok := response.(*ExceptionResponse)
	require.True(t, ok, "unexpected response type %T", response)
	require.Equal(t, byte(ExceptionCodeIllegalDataValue), resp.ExceptionCode)
}

func TestChangeASCIIInputDelimiterExecute(t *testing.T) {
	slave := NewSlaveContext()

	_, err := NewChangeASCIIInputDelimiterRequest('\n').Execute(slave)
	require.NoError(t, err)
	require.Equal(t, byte('\n'), slave.Control.Delimiter())
}

func TestCounterRequestsExecute(t *testing.T) {
	slave := NewSlaveContext()
	slave.Control.countBusMessage()
	slave.Control.countBusMessage()
	slave.Control.countException()

	response, err := NewReturnBusMessageCountRequest().Execute(slave)
	require.NoError(t, err)
	require.Equal(t, []uint16{2}, response.(*DiagnosticResponse).Data)

	response, err = NewReturnBusExceptionErrorCountRequest().Execute(slave)
	require.NoError(t, err)
	require.Equal(t, []uint16{1}, response.(*DiagnosticResponse).Data)

	response, err = NewReturnSlaveBusyCountRequest().Execute(slave)
	require.NoError(t, err)
	require.Equal(t, []uint16{0}, response.(*DiagnosticResponse).Data)
}

func TestClearCountersExecute(t *testing.T) {
	slave := NewSlaveContext()
	slave.Control.countBusMessage()

	_, err := NewClearCountersRequest().Execute(slave)
	require.NoError(t, err)
	require.Equal(t, CommCounters{}, slave.Control.Counters())
}

func TestUnknownSubFunctionExecute(t *testing.T) {
	slave := NewSlaveContext()

	request := &DiagnosticRequest{}
	request.Sub = 0x55
	response, err := request.Execute(slave)
	require.NoError(t, err)
	resp, ok := response.(*ExceptionResponse)
	require.True(t, ok, "unexpected response type %T", response)
	require.Equal(t, byte(ExceptionCodeIllegalFunction), resp.ExceptionCode)
}
