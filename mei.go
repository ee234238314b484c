// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import "fmt"

// deviceInfoConformity reports stream plus individual access for all
// categories.
const deviceInfoConformity byte = 0x83

// maxDeviceInfoBytes bounds the object bytes of one response so the PDU
// stays below the 253 byte application limit; further objects are
// delivered through the more follows continuation.
const maxDeviceInfoBytes = 240

// ReadDeviceInformationRequest reads the identification objects of a
// device (function 43, MEI type 14):
//
//	MEI type              : 1 byte (0x0E)
//	Read device id code   : 1 byte
//	Object id             : 1 byte
type ReadDeviceInformationRequest struct {
	Header
	ReadCode ReadDeviceIDCode
	ObjectID byte
}

// NewReadDeviceInformationRequest builds a read device identification
// request starting at the given object.
func NewReadDeviceInformationRequest(readCode ReadDeviceIDCode, objectID byte) *ReadDeviceInformationRequest {
	r := &ReadDeviceInformationRequest{ReadCode: readCode, ObjectID: objectID}
	r.ShouldRespond = true
	return r
}

// FunctionCode returns the function code of a read device information request.
func (r *ReadDeviceInformationRequest) FunctionCode() byte { return FuncCodeReadDeviceIdentification }

// SubFunctionCode implements subFunctioner; the MEI type tags the variant.
func (r *ReadDeviceInformationRequest) SubFunctionCode() uint16 {
	return uint16(meiTypeReadDeviceIdentification)
}

// Encode encodes the request payload.
func (r *ReadDeviceInformationRequest) Encode() []byte {
	return []byte{byte(meiTypeReadDeviceIdentification), byte(r.ReadCode), r.ObjectID}
}

// Decode decodes the request payload.
func (r *ReadDeviceInformationRequest) Decode(data []byte) error {
	if len(data) < 3 {
		return fmt.Errorf("modbus: read device information request length '%v' does not meet minimum '%v'", len(data), 3)
	}
	if meiType(data[0]) != meiTypeReadDeviceIdentification {
		return fmt.Errorf("modbus: unsupported MEI type '%v'", data[0])
	}
	r.ReadCode = ReadDeviceIDCode(data[1])
	r.ObjectID = data[2]
	return nil
}

// RTUFrameSize implements rtuSizer.
func (r *ReadDeviceInformationRequest) RTUFrameSize([]byte) (int, error) { return 7, nil }

// objectRange returns the object ids of the requested category.
func (r *ReadDeviceInformationRequest) objectRange(identity *DeviceIdentification) []byte {
	switch r.ReadCode {
	case ReadDeviceIDCodeBasic:
		return []byte{DeviceObjectVendorName, DeviceObjectProductCode, DeviceObjectMajorMinorRevision}
	case ReadDeviceIDCodeRegular:
		return []byte{
			DeviceObjectVendorName, DeviceObjectProductCode, DeviceObjectMajorMinorRevision,
			DeviceObjectVendorURL, DeviceObjectProductName, DeviceObjectModelName,
			DeviceObjectUserApplicationName,
		}
	case ReadDeviceIDCodeExtended:
		ids := []byte{
			DeviceObjectVendorName, DeviceObjectProductCode, DeviceObjectMajorMinorRevision,
			DeviceObjectVendorURL, DeviceObjectProductName, DeviceObjectModelName,
			DeviceObjectUserApplicationName,
		}
		return append(ids, identity.extendedIDs()...)
	case ReadDeviceIDCodeSpecific:
		return []byte{r.ObjectID}
	}
	return nil
}

// Execute gathers the requested objects from the device identification of
// the slave, continuing at ObjectID and flagging more follows when the
// response budget is exhausted.
func (r *ReadDeviceInformationRequest) Execute(slave *SlaveContext) (PDU, error) {
	ids := r.objectRange(slave.Identity)
	if ids == nil {
		return exception(r, ExceptionCodeIllegalDataValue), nil
	}
	resp := &ReadDeviceInformationResponse{
		ReadCode:   r.ReadCode,
		Conformity: deviceInfoConformity,
	}
	resp.Header = r.Header
	size := 0
	for _, id := range ids {
		if r.ReadCode != ReadDeviceIDCodeSpecific && id < r.ObjectID {
			continue
		}
		value, ok := slave.Identity.object(id)
		if !ok {
			if r.ReadCode == ReadDeviceIDCodeSpecific {
				return exception(r, ExceptionCodeIllegalDataAddress), nil
			}
			continue
		}
		if size+2+len(value) > maxDeviceInfoBytes {
			resp.MoreFollows = true
			resp.NextObjectID = id
			break
		}
		resp.Objects = append(resp.Objects, DeviceObject{ID: id, Value: value})
		size += 2 + len(value)
	}
	return resp, nil
}

// DeviceObject is one identification object of a read device information
// response.
type DeviceObject struct {
	ID    byte
	Value []byte
}

// ReadDeviceInformationResponse carries the identification objects in
// ascending object id order:
//
//	MEI type              : 1 byte (0x0E)
//	Read device id code   : 1 byte
//	Conformity level      : 1 byte
//	More follows          : 1 byte (0x00 or 0xFF)
//	Next object id        : 1 byte
//	Number of objects     : 1 byte
//	Object                : 2+N bytes each (id, length, value)
type ReadDeviceInformationResponse struct {
	Header
	ReadCode     ReadDeviceIDCode
	Conformity   byte
	MoreFollows  bool
	NextObjectID byte
	Objects      []DeviceObject
}

// FunctionCode returns the function code of a read device information response.
func (r *ReadDeviceInformationResponse) FunctionCode() byte { return FuncCodeReadDeviceIdentification }

// SubFunctionCode implements subFunctioner; the MEI type tags the variant.
func (r *ReadDeviceInformationResponse) SubFunctionCode() uint16 {
	return uint16(meiTypeReadDeviceIdentification)
}

// Encode encodes the response payload.
func (r *ReadDeviceInformationResponse) Encode() []byte {
	data := make([]byte, 6)
	data[0] = byte(meiTypeReadDeviceIdentification)
	data[1] = byte(r.ReadCode)
	data[2] = r.Conformity
	if r.MoreFollows {
		data[3] = 0xFF
	}
	data[4] = r.NextObjectID
	data[5] = byte(len(r.Objects))
	for _, object := range r.Objects {
		data = append(data, object.ID, byte(len(object.Value)))
		data = append(data, object.Value...)
	}
	return data
}

// Decode decodes the response payload.
func (r *ReadDeviceInformationResponse) Decode(data []byte) error {
	if len(data) < 6 {
		return fmt.Errorf("modbus: read device information response length '%v' does not meet minimum '%v'", len(data), 6)
	}
	if meiType(data[0]) != meiTypeReadDeviceIdentification {
		return fmt.Errorf("modbus: unsupported MEI type '%v'", data[0])
	}
	r.ReadCode = ReadDeviceIDCode(data[1])
	r.Conformity = data[2]
	r.MoreFollows = data[3] == 0xFF
	r.NextObjectID = data[4]
	count := int(data[5])
	r.Objects = r.Objects[:0]
	offset := 6
	for i := 0; i < count; i++ {
		if offset+2 > len(data) {
			return fmt.Errorf("modbus: read device information response object '%v' overruns the payload", i)
		}
		length := int(data[offset+1])
		if offset+2+length > len(data) {
			return fmt.Errorf("modbus: read device information response object '%v' length '%v' overruns the payload", i, length)
		}
		r.Objects = append(r.Objects, DeviceObject{
			ID:    data[offset],
			Value: append([]byte(nil), data[offset+2:offset+2+length]...),
		})
		offset += 2 + length
	}
	return nil
}

// RTUFrameSize implements rtuSizer. The frame is sized by walking the
// object list, so the rule needs the buffered bytes up to the last object.
func (r *ReadDeviceInformationResponse) RTUFrameSize(adu []byte) (int, error) {
	// uid fc mei code conformity more next count
	if len(adu) < 8 {
		return 0, errShortFrame
	}
	count := int(adu[7])
	offset := 8
	for i := 0; i < count; i++ {
		if len(adu) < offset+2 {
			return 0, errShortFrame
		}
		offset += 2 + int(adu[offset+1])
	}
	return offset + 2, nil
}
