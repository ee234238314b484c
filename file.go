// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
)

// fileReferenceType is the only reference type the file record functions
// define.
const fileReferenceType byte = 6

// FileRecord addresses one record of an extended memory file. RecordData
// is empty on read requests; on writes it carries RecordLength registers.
type FileRecord struct {
	ReferenceType byte
	FileNumber    uint16
	RecordNumber  uint16
	RecordLength  uint16
	RecordData    []byte
}

// valid reports whether the record addresses a legal file window.
func (f *FileRecord) valid() bool {
	return f.ReferenceType == fileReferenceType && f.RecordNumber <= 0x270F
}

// ReadFileRecordRequest reads one or more file record windows:
//
//	Byte count            : 1 byte
//	Sub-request           : 7 bytes each
//	  Reference type      : 1 byte (always 6)
//	  File number         : 2 bytes
//	  Record number       : 2 bytes
//	  Record length       : 2 bytes
type ReadFileRecordRequest struct {
	Header
	Records []FileRecord
}

// NewReadFileRecordRequest builds a read file record request.
func NewReadFileRecordRequest(records ...FileRecord) *ReadFileRecordRequest {
	r := &ReadFileRecordRequest{Records: records}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a read file record request.
func (r *ReadFileRecordRequest) FunctionCode() byte { return FuncCodeReadFileRecord }

// Encode encodes the request payload.
func (r *ReadFileRecordRequest) Encode() []byte {
	data := make([]byte, 1, 1+7*len(r.Records))
	data[0] = byte(7 * len(r.Records))
	for _, record := range r.Records {
		sub := make([]byte, 7)
		sub[0] = record.ReferenceType
		binary.BigEndian.PutUint16(sub[1:], record.FileNumber)
		binary.BigEndian.PutUint16(sub[3:], record.RecordNumber)
		binary.BigEndian.PutUint16(sub[5:], record.RecordLength)
		data = append(data, sub...)
	}
	return data
}

// Decode decodes the request payload.
func (r *ReadFileRecordRequest) Decode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("modbus: read file record request payload is empty")
	}
	count := int(data[0])
	if count%7 != 0 || len(data)-1 < count {
		return fmt.Errorf("modbus: read file record request byte count '%v' does not match data size '%v'", count, len(data)-1)
	}
	r.Records = r.Records[:0]
	for offset := 1; offset < count+1; offset += 7 {
		r.Records = append(r.Records, FileRecord{
			ReferenceType: data[offset],
			FileNumber:    binary.BigEndian.Uint16(data[offset+1:]),
			RecordNumber:  binary.BigEndian.Uint16(data[offset+3:]),
			RecordLength:  binary.BigEndian.Uint16(data[offset+5:]),
		})
	}
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *ReadFileRecordRequest) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 2)
}

// Execute validates the addressed records and returns their data. The
// stack holds no file store, so records read as zero filled.
func (r *ReadFileRecordRequest) Execute(slave *SlaveContext) (PDU, error) {
	if len(r.Records) < 1 {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	records := make([]FileRecord, len(r.Records))
	for i, record := range r.Records {
		if record.RecordLength > 0x7A {
			return exception(r, ExceptionCodeIllegalDataValue), nil
		}
		if !record.valid() {
			return exception(r, ExceptionCodeIllegalDataAddress), nil
		}
		records[i] = record
		records[i].RecordData = make([]byte, 2*record.RecordLength)
	}
	resp := &ReadFileRecordResponse{Records: records}
	resp.Header = r.Header
	return resp, nil
}

// ReadFileRecordResponse carries the record data of each sub-request:
//
//	Byte count            : 1 byte
//	Sub-response          : 2+N bytes each
//	  Response length     : 1 byte (reference type + data)
//	  Reference type      : 1 byte (always 6)
//	  Record data         : N bytes
type ReadFileRecordResponse struct {
	Header
	Records []FileRecord
}

// FunctionCode returns the function code of a read file record response.
func (r *ReadFileRecordResponse) FunctionCode() byte { return FuncCodeReadFileRecord }

// Encode encodes the response payload.
func (r *ReadFileRecordResponse) Encode() []byte {
	data := []byte{0}
	for _, record := range r.Records {
		data = append(data, byte(len(record.RecordData)+1), record.ReferenceType)
		data = append(data, record.RecordData...)
	}
	data[0] = byte(len(data) - 1)
	return data
}

// Decode decodes the response payload.
func (r *ReadFileRecordResponse) Decode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("modbus: read file record response payload is empty")
	}
	count := int(data[0])
	if len(data)-1 < count {
		return fmt.Errorf("modbus: read file record response byte count '%v' does not match data size '%v'", count, len(data)-1)
	}
	r.Records = r.Records[:0]
	for offset := 1; offset < count+1; {
		length := int(data[offset])
		if length < 1 || offset+1+length > count+1 {
			return fmt.Errorf("modbus: read file record response length '%v' overruns the payload", length)
		}
		record := FileRecord{
			ReferenceType: data[offset+1],
			RecordData:    append([]byte(nil), data[offset+2:offset+1+length]...),
		}
		record.RecordLength = uint16(len(record.RecordData) / 2)
		r.Records = append(r.Records, record)
		offset += 1 + length
	}
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *ReadFileRecordResponse) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 2)
}

// WriteFileRecordRequest writes one or more file record windows:
//
//	Byte count            : 1 byte
//	Sub-request           : 7+N bytes each
//	  Reference type      : 1 byte (always 6)
//	  File number         : 2 bytes
//	  Record number       : 2 bytes
//	  Record length       : 2 bytes
//	  Record data         : 2xlength bytes
type WriteFileRecordRequest struct {
	Header
	Records []FileRecord
}

// NewWriteFileRecordRequest builds a write file record request.
func NewWriteFileRecordRequest(records ...FileRecord) *WriteFileRecordRequest {
	r := &WriteFileRecordRequest{Records: records}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a write file record request.
func (r *WriteFileRecordRequest) FunctionCode() byte { return FuncCodeWriteFileRecord }

// Encode encodes the request payload.
func (r *WriteFileRecordRequest) Encode() []byte {
	data := []byte{0}
	for _, record := range r.Records {
		sub := make([]byte, 7)
		sub[0] = record.ReferenceType
		binary.BigEndian.PutUint16(sub[1:], record.FileNumber)
		binary.BigEndian.PutUint16(sub[3:], record.RecordNumber)
		binary.BigEndian.PutUint16(sub[5:], uint16(len(record.RecordData)/2))
		data = append(data, sub...)
		data = append(data, record.RecordData...)
	}
	data[0] = byte(len(data) - 1)
	return data
}

// Decode decodes the request payload.
func (r *WriteFileRecordRequest) Decode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("modbus: write file record request payload is empty")
	}
	count := int(data[0])
	if len(data)-1 < count {
		return fmt.Errorf("modbus: write file record request byte count '%v' does not match data size '%v'", count, len(data)-1)
	}
	r.Records = r.Records[:0]
	for offset := 1; offset < count+1; {
		if offset+7 > count+1 {
			return fmt.Errorf("modbus: write file record request sub-request at '%v' overruns the payload", offset)
		}
		record := FileRecord{
			ReferenceType: data[offset],
			FileNumber:    binary.BigEndian.Uint16(data[offset+1:]),
			RecordNumber:  binary.BigEndian.Uint16(data[offset+3:]),
			RecordLength:  binary.BigEndian.Uint16(data[offset+5:]),
		}
		length := 2 * int(record.RecordLength)
		if offset+7+length > count+1 {
			return fmt.Errorf("modbus: write file record request record length '%v' overruns the payload", record.RecordLength)
		}
		record.RecordData = append([]byte(nil), data[offset+7:offset+7+length]...)
		r.Records = append(r.Records, record)
		offset += 7 + length
	}
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *WriteFileRecordRequest) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 2)
}

// Execute validates the records and echoes them. The stack holds no file
// store; accepted writes are acknowledged by mirroring the request.
func (r *WriteFileRecordRequest) Execute(slave *SlaveContext) (PDU, error) {
	if len(r.Records) < 1 {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	for _, record := range r.Records {
		if record.RecordLength > 0x7A {
			return exception(r, ExceptionCodeIllegalDataValue), nil
		}
		if !record.valid() {
			return exception(r, ExceptionCodeIllegalDataAddress), nil
		}
	}
	resp := &WriteFileRecordResponse{Records: r.Records}
	resp.Header = r.Header
	return resp, nil
}

// WriteFileRecordResponse mirrors the request.
type WriteFileRecordResponse struct {
	Header
	Records []FileRecord
}

// FunctionCode returns the function code of a write file record response.
func (r *WriteFileRecordResponse) FunctionCode() byte { return FuncCodeWriteFileRecord }

// Encode encodes the response payload.
func (r *WriteFileRecordResponse) Encode() []byte {
	req := WriteFileRecordRequest{Records: r.Records}
	return req.Encode()
}

// Decode decodes the response payload.
func (r *WriteFileRecordResponse) Decode(data []byte) error {
	req := WriteFileRecordRequest{}
	if err := req.Decode(data); err != nil {
		return err
	}
	r.Records = req.Records
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *WriteFileRecordResponse) RTUFrameSize(adu []byte) (int, error) {
	return byteCountFrameSize(adu, 2)
}
