// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"fmt"
	"sync"
)

// Device identification object ids for the read device identification
// request (function 43, MEI type 14).
const (
	DeviceObjectVendorName byte = iota
	DeviceObjectProductCode
	DeviceObjectMajorMinorRevision
	DeviceObjectVendorURL
	DeviceObjectProductName
	DeviceObjectModelName
	DeviceObjectUserApplicationName
)

// maxCommEvents bounds the communication event log as required by the
// get comm event log function (the standard caps the log at 64 events).
const maxCommEvents = 64

// DeviceIdentification holds the identification objects a slave reports
// through function 43. Objects 0x80 and above are vendor specific.
type DeviceIdentification struct {
	VendorName          string
	ProductCode         string
	MajorMinorRevision  string
	VendorURL           string
	ProductName         string
	ModelName           string
	UserApplicationName string

	mu       sync.Mutex
	extended map[byte][]byte
}

// SetExtended registers a vendor specific object. Object ids below 0x80
// are reserved for the standard objects.
func (d *DeviceIdentification) SetExtended(id byte, value []byte) error {
	if id < 0x80 {
		return fmt.Errorf("modbus: extended object id '%v' must not be below '%v'", id, 0x80)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.extended == nil {
		d.extended = make(map[byte][]byte)
	}
	d.extended[id] = value
	return nil
}

// object returns the identification object with the given id.
func (d *DeviceIdentification) object(id byte) ([]byte, bool) {
	var s string
	switch id {
	case DeviceObjectVendorName:
		s = d.VendorName
	case DeviceObjectProductCode:
		s = d.ProductCode
	case DeviceObjectMajorMinorRevision:
		s = d.MajorMinorRevision
	case DeviceObjectVendorURL:
		s = d.VendorURL
	case DeviceObjectProductName:
		s = d.ProductName
	case DeviceObjectModelName:
		s = d.ModelName
	case DeviceObjectUserApplicationName:
		s = d.UserApplicationName
	default:
		d.mu.Lock()
		defer d.mu.Unlock()
		v, ok := d.extended[id]
		return v, ok
	}
	if s == "" {
		return nil, false
	}
	return []byte(s), true
}

// extendedIDs returns the registered vendor specific object ids in
// ascending order.
func (d *DeviceIdentification) extendedIDs() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]byte, 0, len(d.extended))
	for id := range d.extended {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// slaveID returns the identifier reported by the report slave id function.
func (d *DeviceIdentification) slaveID() []byte {
	if d.ProductName != "" {
		return []byte(d.ProductName)
	}
	return []byte("gomodbus")
}

// CommCounters are the serial line diagnostic counters. The zero value is
// a cleared counter set.
type CommCounters struct {
	BusMessage            uint16
	BusCommunicationError uint16
	BusExceptionError     uint16
	SlaveMessage          uint16
	SlaveNoResponse       uint16
	SlaveNAK              uint16
	SlaveBusy             uint16
	BusCharacterOverrun   uint16
	IopOverrun            uint16
	Event                 uint16
}

// ControlBlock is the per-slave communication state consulted by the
// diagnostic and event functions: counters, the diagnostic register, the
// communication event log, the ASCII input delimiter and the listen only
// flag. One instance is owned by each slave context.
type ControlBlock struct {
	mu                 sync.Mutex
	counters           CommCounters
	diagnosticRegister uint16
	delimiter          byte
	listenOnly         bool
	events             []byte
}

// NewControlBlock returns a control block with the default '\r' ASCII
// input delimiter.
func NewControlBlock() *ControlBlock {
	return &ControlBlock{delimiter: '\r'}
}

// Counters returns a snapshot of the diagnostic counters.
func (c *ControlBlock) Counters() CommCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// ResetCounters clears the diagnostic counters and the event log.
func (c *ControlBlock) ResetCounters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = CommCounters{}
	c.events = nil
}

// ClearOverrunCount clears the character overrun counter.
func (c *ControlBlock) ClearOverrunCount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.BusCharacterOverrun = 0
}

// countBusMessage records a message observed on the bus.
func (c *ControlBlock) countBusMessage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.BusMessage++
}

// countSlaveMessage records a message addressed to this slave.
func (c *ControlBlock) countSlaveMessage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.SlaveMessage++
}

// countException records an exception response returned by this slave.
func (c *ControlBlock) countException() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.BusExceptionError++
}

// countEvent records a successfully completed message cycle.
func (c *ControlBlock) countEvent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.Event++
}

// CounterSummary packs one bit per non-zero counter into the exception
// status byte, lowest counter in the lowest bit.
func (c *ControlBlock) CounterSummary() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	counters := []uint16{
		c.counters.BusMessage,
		c.counters.BusCommunicationError,
		c.counters.BusExceptionError,
		c.counters.SlaveMessage,
		c.counters.SlaveNoResponse,
		c.counters.SlaveNAK,
		c.counters.SlaveBusy,
		c.counters.BusCharacterOverrun,
	}
	var summary byte
	for i, v := range counters {
		if v != 0 {
			summary |= 1 << uint(i)
		}
	}
	return summary
}

// DiagnosticRegister returns the 16-bit diagnostic register.
func (c *ControlBlock) DiagnosticRegister() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.diagnosticRegister
}

// SetDiagnosticRegister sets the 16-bit diagnostic register.
func (c *ControlBlock) SetDiagnosticRegister(value uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diagnosticRegister = value
}

// Delimiter returns the ASCII input delimiter.
func (c *ControlBlock) Delimiter() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delimiter
}

// SetDelimiter changes the ASCII input delimiter. Framing keeps using
// CR/LF until a framer is explicitly reconfigured.
func (c *ControlBlock) SetDelimiter(delimiter byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delimiter = delimiter
}

// ListenOnly reports whether the slave is in listen only mode.
func (c *ControlBlock) ListenOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listenOnly
}

// SetListenOnly switches listen only mode. A slave in listen only mode
// monitors the bus without responding.
func (c *ControlBlock) SetListenOnly(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listenOnly = enabled
}

// AddEvent prepends an event to the communication event log, trimming the
// log to the most recent 64 entries.
func (c *ControlBlock) AddEvent(event byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append([]byte{event}, c.events...)
	if len(c.events) > maxCommEvents {
		c.events = c.events[:maxCommEvents]
	}
}

// Events returns a snapshot of the event log, most recent first.
func (c *ControlBlock) Events() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]byte, len(c.events))
	copy(events, c.events)
	return events
}

// Restart leaves listen only mode and clears the counters and the
// diagnostic register; the event log is cleared on request.
func (c *ControlBlock) Restart(clearLog bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = CommCounters{}
	c.diagnosticRegister = 0
	c.listenOnly = false
	if clearLog {
		c.events = nil
	}
}
