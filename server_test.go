// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, ctx *ServerContext) (*Server, string) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewServer(ctx)
	go server.Serve(listener)
	t.Cleanup(func() { server.Close() })
	return server, listener.Addr().String()
}

func TestServerReadWriteRoundTrip(t *testing.T) {
	slave := NewSlaveContext()
	_, address := startServer(t, NewSingleServerContext(slave))

	client := NewTCPClient(address)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.WriteSingleRegister(ctx, 2, 0x0102))
	values, err := client.ReadHoldingRegisters(ctx, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 0, 0x0102, 0}, values)

	require.NoError(t, client.WriteSingleCoil(ctx, 1, true))
	bits, err := client.ReadCoils(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false}, bits)
}

func TestServerExceptionRoundTrip(t *testing.T) {
	slave := NewSlaveContext()
	_, address := startServer(t, NewSingleServerContext(slave))

	client := NewTCPClient(address)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.ReadCoils(ctx, 1, 0x801)
	var mbErr *Error
	require.ErrorAs(t, err, &mbErr)
	assert.Equal(t, byte(FuncCodeReadCoils), mbErr.FunctionCode)
	assert.Equal(t, byte(ExceptionCodeIllegalDataValue), mbErr.ExceptionCode)
}

func TestServerAuxiliaryFunctions(t *testing.T) {
	slave := NewSlaveContext()
	slave.Identity.VendorName = "acme"
	slave.Identity.ProductCode = "AC-42"
	slave.Identity.MajorMinorRevision = "1.0"
	slave.Identity.ProductName = "acme unit"
	_, address := startServer(t, NewSingleServerContext(slave))

	client := NewTCPClient(address)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, run, err := client.ReportSlaveID(ctx)
	require.NoError(t, err)
	assert.True(t, run)
	assert.Equal(t, []byte("acme unit"), id)

	objects, err := client.ReadDeviceInformation(ctx, ReadDeviceIDCodeBasic)
	require.NoError(t, err)
	assert.Equal(t, []byte("acme"), objects[DeviceObjectVendorName])

	data, err := client.Diagnostics(ctx, DiagReturnQueryData, 0xBEEF)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xBEEF}, data)

	// the exchanges above completed, the event counter moved
	count, err := client.GetCommEventCounter(ctx)
	require.NoError(t, err)
	assert.NotZero(t, count)
}

func TestServerRespondUnknownUnit(t *testing.T) {
	server := NewServer(NewServerContext(map[byte]*SlaveContext{1: NewSlaveContext()}))

	request := NewReadCoilsRequest(0, 1)
	request.UnitID = 9
	response := server.respond(request)

	resp, ok := response.(*ExceptionResponse)
	require.True(t, ok, "unexpected response type %T", response)
	assert.Equal(t, byte(ExceptionCodeGatewayTargetDeviceFailedToRespond), resp.ExceptionCode)
}

func TestServerRespondListenOnly(t *testing.T) {
	slave := NewSlaveContext()
	server := NewServer(NewSingleServerContext(slave))

	request := NewForceListenOnlyModeRequest()
	request.UnitID = 1
	response := server.respond(request)
	require.NotNil(t, response)
	assert.False(t, response.Head().ShouldRespond)
	assert.True(t, slave.Control.ListenOnly())

	// a listen only slave stays silent for everything but a restart
	read := NewReadCoilsRequest(0, 1)
	read.UnitID = 1
	assert.Nil(t, server.respond(read))

	restart := NewRestartCommunicationsOptionRequest(false)
	restart.UnitID = 1
	response = server.respond(restart)
	require.NotNil(t, response)
	assert.False(t, slave.Control.ListenOnly())
}

func TestServerRespondCountsExceptions(t *testing.T) {
	slave := NewSlaveContext()
	server := NewServer(NewSingleServerContext(slave))

	request := NewReadCoilsRequest(0, 0x801)
	request.UnitID = 1
	response := server.respond(request)
	require.IsType(t, &ExceptionResponse{}, response)

	counters := slave.Control.Counters()
	assert.Equal(t, uint16(1), counters.BusMessage)
	assert.Equal(t, uint16(1), counters.BusExceptionError)
	assert.Equal(t, uint16(0), counters.Event)
}

type panicRequest struct {
	ReadCoilsRequest
}

func (r *panicRequest) Execute(*SlaveContext) (PDU, error) { panic("boom") }

func TestServerRecoversHandlerPanic(t *testing.T) {
	slave := NewSlaveContext()
	server := NewServer(NewSingleServerContext(slave))

	request := &panicRequest{}
	request.UnitID = 1
	response := server.respond(request)

	resp, ok := response.(*ExceptionResponse)
	require.True(t, ok, "unexpected response type %T", response)
	assert.Equal(t, byte(ExceptionCodeServerDeviceFailure), resp.ExceptionCode)
}
