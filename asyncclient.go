// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"fmt"
	"io"
	"sync"
)

// Call is one in-flight asynchronous exchange. Done receives the call
// exactly once, when the response arrived or the exchange failed.
type Call struct {
	Request  PDU
	Response PDU
	Error    error
	Done     chan *Call
}

func (c *Call) done() {
	select {
	case c.Done <- c:
	default:
		// the user provided an unbuffered channel and is not listening
	}
}

// AsyncClient is the event driven endpoint: outbound requests return a
// Call handle and the owner of the transport feeds received bytes through
// DataReceived, which resolves the pending handles. Nothing blocks; the
// framing loop runs to completion on each feed.
//
// A keyed pending table is used with the MBAP framer, which multiplexes
// concurrent requests on one transport; other framers correlate in FIFO
// order.
type AsyncClient struct {
	mu        sync.Mutex
	tid       uint16
	connected bool

	framer  Framer
	writer  io.Writer
	pending transactionTable[*Call]
	logger  Logger
}

// AsyncOption configures an asynchronous client.
type AsyncOption func(*AsyncClient)

// WithAsyncLogger sets the transmission logger.
func WithAsyncLogger(logger Logger) AsyncOption {
	return func(c *AsyncClient) { c.logger = logger }
}

// NewAsyncClient creates an asynchronous client writing framed requests
// to writer.
func NewAsyncClient(framer Framer, writer io.Writer, opts ...AsyncOption) *AsyncClient {
	c := &AsyncClient{
		framer: framer,
		writer: writer,
	}
	if _, ok := framer.(*TCPFramer); ok {
		c.pending = newKeyedTable[*Call]()
	} else {
		c.pending = newFIFOTable[*Call]()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AsyncClient) logf(format string, v ...any) {
	if c.logger != nil {
		c.logger.Printf(format, v...)
	}
}

// ConnectionMade marks the transport as connected.
func (c *AsyncClient) ConnectionMade() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.logf("modbus: client connected to modbus server")
}

// ConnectionLost marks the transport as disconnected and fails every
// pending call exactly once with the given reason.
func (c *AsyncClient) ConnectionLost(reason error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.logf("modbus: client disconnected from modbus server: %v", reason)

	if reason == nil {
		reason = fmt.Errorf("modbus: connection lost during request")
	}
	for _, call := range c.pending.drain() {
		call.Error = reason
		call.done()
	}
}

// Pending returns the number of in-flight calls.
func (c *AsyncClient) Pending() int { return c.pending.size() }

// nextTID returns the next transaction identifier, wrapping at 0xFFFF.
func (c *AsyncClient) nextTID() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tid++
	return c.tid
}

// Go dispatches the request and returns its call handle. The done channel
// may be nil, in which case a buffered channel is allocated.
func (c *AsyncClient) Go(request PDU, done chan *Call) *Call {
	if done == nil {
		done = make(chan *Call, 1)
	}
	call := &Call{Request: request, Done: done}

	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		call.Error = fmt.Errorf("modbus: client is not connected")
		call.done()
		return call
	}

	tid := c.nextTID()
	request.Head().TransactionID = tid
	packet, err := c.framer.BuildPacket(request)
	if err != nil {
		call.Error = err
		call.done()
		return call
	}
	c.pending.add(tid, call)
	if _, err := c.writer.Write(packet); err != nil {
		if pending, ok := c.pending.get(tid); ok {
			pending.Error = err
			pending.done()
		}
		return call
	}
	c.logf("modbus: send % x", packet)
	return call
}

// Execute dispatches the request and blocks until its call completed.
func (c *AsyncClient) Execute(request PDU) (PDU, error) {
	call := <-c.Go(request, make(chan *Call, 1)).Done
	return call.Response, call.Error
}

// DataReceived feeds received bytes into the framer and resolves the
// pending calls of every complete frame.
func (c *AsyncClient) DataReceived(data []byte) error {
	return c.framer.ProcessIncomingPacket(data, c.handleResponse)
}

// handleResponse links the decoded response to its pending call.
func (c *AsyncClient) handleResponse(response PDU) {
	tid := response.Head().TransactionID
	call, ok := c.pending.get(tid)
	if !ok {
		c.logf("modbus: unrequested message with transaction '%v'", tid)
		return
	}
	call.Response = response
	call.done()
}
