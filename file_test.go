// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadFileRecordEncodeDecode(t *testing.T) {
	request := NewReadFileRecordRequest(
		FileRecord{ReferenceType: 6, FileNumber: 4, RecordNumber: 1, RecordLength: 2},
		FileRecord{ReferenceType: 6, FileNumber: 3, RecordNumber: 9, RecordLength: 2},
	)

	expected := []byte{
		0x0E,
		0x06, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02,
		0x06, 0x00, 0x03, 0x00, 0x09, 0x00, 0x02,
	}
	if !bytes.Equal(request.Encode(), expected) {
		t.Fatalf("encoded request expected % x, actual % x", expected, request.Encode())
	}

	decoded := &ReadFileRecordRequest{}
	require.NoError(t, decoded.Decode(expected))
	require.Len(t, decoded.Records, 2)
	require.Equal(t, uint16(4), decoded.Records[0].FileNumber)
	require.Equal(t, uint16(9), decoded.Records[1].RecordNumber)
}

func TestReadFileRecordExecute(t *testing.T) {
	slave := NewSlaveContext()

	request := NewReadFileRecordRequest(
		FileRecord{ReferenceType: 6, FileNumber: 1, RecordNumber: 0, RecordLength: 3},
	)
	response, err := request.Execute(slave)
	require.NoError(t, err)
	resp, ok := response.(*ReadFileRecordResponse)
	require.True(t, ok, "unexpected response type %T", response)
	require.Len(t, resp.Records, 1)
	require.Len(t, resp.Records[0].RecordData, 6)
}

func TestReadFileRecordExecuteBadReference(t *testing.T) {
	slave := NewSlaveContext()

	request := NewReadFileRecordRequest(
		FileRecord{ReferenceType: 5, FileNumber: 1, RecordNumber: 0, RecordLength: 1},
	)
	response, err := request.Execute(slave)
	require.NoError(t, err)
	resp, ok := response.(*ExceptionResponse)
	require.True(t, ok, "unexpected response type %T", response)
	require.Equal(t, byte(ExceptionCodeIllegalDataAddress), resp.ExceptionCode)
}

func TestWriteFileRecordRoundTrip(t *testing.T) {
	request := NewWriteFileRecordRequest(
		FileRecord{
			ReferenceType: 6, FileNumber: 4, RecordNumber: 7, RecordLength: 3,
			RecordData: []byte{0x06, 0xAF, 0x04, 0xBE, 0x10, 0x0D},
		},
	)

	encoded := request.Encode()
	expected := []byte{
		0x0D,
		0x06, 0x00, 0x04, 0x00, 0x07, 0x00, 0x03,
		0x06, 0xAF, 0x04, 0xBE, 0x10, 0x0D,
	}
	if !bytes.Equal(encoded, expected) {
		t.Fatalf("encoded request expected % x, actual % x", expected, encoded)
	}

	decoded := &WriteFileRecordRequest{}
	require.NoError(t, decoded.Decode(encoded))
	require.Len(t, decoded.Records, 1)
	require.Equal(t, request.Records[0].RecordData, decoded.Records[0].RecordData)
}

func TestWriteFileRecordExecuteEchoes(t *testing.T) {
	slave := NewSlaveContext()

	request := NewWriteFileRecordRequest(
		FileRecord{
			ReferenceType: 6, FileNumber: 4, RecordNumber: 7, RecordLength: 1,
			RecordData: []byte{0x12, 0x34},
		},
	)
	response, err := request.Execute(slave)
	require.NoError(t, err)
	resp, ok := response.(*WriteFileRecordResponse)
	require.True(t, ok, "unexpected response type %T", response)
	require.Equal(t, request.Records, resp.Records)
}
