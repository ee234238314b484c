// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newIdentifiedSlave() *SlaveContext {
	slave := NewSlaveContext()
	slave.Identity.VendorName = "acme"
	slave.Identity.ProductCode = "AC-42"
	slave.Identity.MajorMinorRevision = "1.2"
	slave.Identity.ProductName = "acme unit"
	return slave
}

func TestReadDeviceInformationEncodeDecode(t *testing.T) {
	request := NewReadDeviceInformationRequest(ReadDeviceIDCodeBasic, 0)
	require.Equal(t, []byte{0x0E, 0x01, 0x00}, request.Encode())

	decoded := &ReadDeviceInformationRequest{}
	require.NoError(t, decoded.Decode([]byte{0x0E, 0x02, 0x03}))
	require.Equal(t, ReadDeviceIDCodeRegular, decoded.ReadCode)
	require.Equal(t, byte(3), decoded.ObjectID)

	require.Error(t, decoded.Decode([]byte{0x0D, 0x02, 0x03}))
}

func TestReadDeviceInformationExecuteBasic(t *testing.T) {
	slave := newIdentifiedSlave()

	response, err := NewReadDeviceInformationRequest(ReadDeviceIDCodeBasic, 0).Execute(slave)
	require.NoError(t, err)
	resp, ok := response.(*ReadDeviceInformationResponse)
	require.True(t, ok, "unexpected response type %T", response)
	require.False(t, resp.MoreFollows)
	require.Len(t, resp.Objects, 3)
	require.Equal(t, []byte("acme"), resp.Objects[0].Value)
}

func TestReadDeviceInformationExecuteSpecificMissing(t *testing.T) {
	slave := newIdentifiedSlave()

	response, err := NewReadDeviceInformationRequest(ReadDeviceIDCodeSpecific, DeviceObjectModelName).Execute(slave)
	require.NoError(t, err)
	resp, ok := response.(*ExceptionResponse)
	require.True(t, ok, "unexpected response type %T", response)
	require.Equal(t, byte(ExceptionCodeIllegalDataAddress), resp.ExceptionCode)
}

func TestReadDeviceInformationResponseRoundTrip(t *testing.T) {
	response := &ReadDeviceInformationResponse{
		ReadCode:   ReadDeviceIDCodeBasic,
		Conformity: deviceInfoConformity,
		Objects: []DeviceObject{
			{ID: 0, Value: []byte("acme")},
			{ID: 1, Value: []byte("AC-42")},
		},
	}

	decoded := &ReadDeviceInformationResponse{}
	require.NoError(t, decoded.Decode(response.Encode()))
	require.Equal(t, response.Objects, decoded.Objects)
	require.Equal(t, response.Conformity, decoded.Conformity)
}

func TestReadDeviceInformationExtendedObjects(t *testing.T) {
	slave := newIdentifiedSlave()
	require.Error(t, slave.Identity.SetExtended(0x10, []byte("nope")))
	require.NoError(t, slave.Identity.SetExtended(0x83, []byte("extra")))

	response, err := NewReadDeviceInformationRequest(ReadDeviceIDCodeExtended, 0).Execute(slave)
	require.NoError(t, err)
	resp := response.(*ReadDeviceInformationResponse)
	last := resp.Objects[len(resp.Objects)-1]
	require.Equal(t, byte(0x83), last.ID)
	require.Equal(t, []byte("extra"), last.Value)
}
