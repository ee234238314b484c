// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncClientResolvesCall(t *testing.T) {
	var wire bytes.Buffer
	client := NewAsyncClient(NewTCPFramer(NewClientDecoder()), &wire)
	client.ConnectionMade()

	call := client.Go(NewReadCoilsRequest(0, 1), nil)
	require.NoError(t, call.Error)
	require.Equal(t, 1, client.Pending())

	// answer with the frame a server would send back
	framer := NewTCPFramer(NewClientDecoder())
	response := &ReadCoilsResponse{}
	response.Bits = []bool{true}
	response.TransactionID = call.Request.Head().TransactionID
	packet, err := framer.BuildPacket(response)
	require.NoError(t, err)
	require.NoError(t, client.DataReceived(packet))

	done := <-call.Done
	require.NoError(t, done.Error)
	resp, ok := done.Response.(*ReadCoilsResponse)
	require.True(t, ok, "unexpected response type %T", done.Response)
	assert.True(t, resp.Bits[0])
	assert.Equal(t, 0, client.Pending())
}

func TestAsyncClientNotConnected(t *testing.T) {
	var wire bytes.Buffer
	client := NewAsyncClient(NewTCPFramer(NewClientDecoder()), &wire)

	call := <-client.Go(NewReadCoilsRequest(0, 1), nil).Done
	require.Error(t, call.Error)
	assert.Zero(t, wire.Len())
}

func TestAsyncClientConnectionLostFailsPending(t *testing.T) {
	var wire bytes.Buffer
	client := NewAsyncClient(NewTCPFramer(NewClientDecoder()), &wire)
	client.ConnectionMade()

	first := client.Go(NewReadCoilsRequest(0, 1), nil)
	second := client.Go(NewReadHoldingRegistersRequest(0, 1), nil)
	require.Equal(t, 2, client.Pending())

	client.ConnectionLost(assert.AnError)

	// each pending handle is failed exactly once
	for _, call := range []*Call{first, second} {
		done := <-call.Done
		require.ErrorIs(t, done.Error, assert.AnError)
	}
	assert.Equal(t, 0, client.Pending())

	// a call after the disconnect fails immediately
	call := <-client.Go(NewReadCoilsRequest(0, 1), nil).Done
	require.Error(t, call.Error)
}

func TestAsyncClientUnrequestedResponse(t *testing.T) {
	var wire bytes.Buffer
	client := NewAsyncClient(NewTCPFramer(NewClientDecoder()), &wire)
	client.ConnectionMade()

	framer := NewTCPFramer(NewClientDecoder())
	response := &ReadCoilsResponse{}
	response.Bits = []bool{true}
	response.TransactionID = 0x4242
	packet, err := framer.BuildPacket(response)
	require.NoError(t, err)

	// an unrequested message is dropped without effect
	require.NoError(t, client.DataReceived(packet))
	assert.Equal(t, 0, client.Pending())
}

func TestAsyncClientFIFOCorrelation(t *testing.T) {
	var wire bytes.Buffer
	client := NewAsyncClient(NewRTUFramer(NewClientDecoder()), &wire)
	client.ConnectionMade()

	call := client.Go(NewReadCoilsRequest(0, 1), nil)
	require.NoError(t, call.Error)

	// serial responses carry no transaction id; delivery is in order
	framer := NewRTUFramer(NewClientDecoder())
	response := &ReadCoilsResponse{}
	response.Bits = []bool{true}
	packet, err := framer.BuildPacket(response)
	require.NoError(t, err)
	require.NoError(t, client.DataReceived(packet))

	done := <-call.Done
	require.NoError(t, done.Error)
	require.IsType(t, &ReadCoilsResponse{}, done.Response)
}
