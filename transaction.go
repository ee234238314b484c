// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"context"
	"fmt"
	"sync"
)

// Default transaction manager settings.
const (
	defaultRetries = 3
)

// Transport is the synchronous byte channel driven by the transaction
// manager. Receive may return an empty result when the underlying read
// times out; the manager's retry-on-empty policy decides what happens
// next. The transport owns its framer.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Send(ctx context.Context, data []byte) (int, error)
	Receive(ctx context.Context, size int) ([]byte, error)
	Framer() Framer
}

// transactionTable correlates transaction ids with in-flight values. Two
// policies exist: keyed lookup for multiplexing transports and FIFO order
// for transports that answer strictly in request order.
type transactionTable[T any] interface {
	add(tid uint16, value T)
	// get retrieves and removes the value for tid, so a response is
	// delivered exactly once.
	get(tid uint16) (T, bool)
	del(tid uint16)
	// drain removes and returns every pending value.
	drain() []T
	size() int
}

// keyedTable matches responses by exact transaction id.
type keyedTable[T any] struct {
	mu      sync.Mutex
	entries map[uint16]T
}

func newKeyedTable[T any]() *keyedTable[T] {
	return &keyedTable[T]{entries: make(map[uint16]T)}
}

func (t *keyedTable[T]) add(tid uint16, value T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[tid] = value
}

func (t *keyedTable[T]) get(tid uint16) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.entries[tid]
	if ok {
		delete(t.entries, tid)
	}
	return value, ok
}

func (t *keyedTable[T]) del(tid uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, tid)
}

func (t *keyedTable[T]) drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	values := make([]T, 0, len(t.entries))
	for _, value := range t.entries {
		values = append(values, value)
	}
	t.entries = make(map[uint16]T)
	return values
}

func (t *keyedTable[T]) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// fifoTable assumes in-order responses: get pops the oldest entry
// regardless of the supplied transaction id.
type fifoTable[T any] struct {
	mu      sync.Mutex
	entries []T
}

func newFIFOTable[T any]() *fifoTable[T] {
	return &fifoTable[T]{}
}

func (t *fifoTable[T]) add(_ uint16, value T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, value)
}

func (t *fifoTable[T]) get(uint16) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	if len(t.entries) == 0 {
		return zero, false
	}
	value := t.entries[0]
	t.entries = t.entries[1:]
	return value, true
}

func (t *fifoTable[T]) del(uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) > 0 {
		t.entries = t.entries[1:]
	}
}

func (t *fifoTable[T]) drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	values := t.entries
	t.entries = nil
	return values
}

func (t *fifoTable[T]) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// framerState drives the blocking read loop of the synchronous
// transaction manager.
type framerState int

const (
	stateInitializing framerState = iota
	stateReadingHeader
	stateReadingContent
	stateCompleteFrame
	stateErrorInFrame
)

// TransactionManager runs one synchronous request/response exchange at a
// time over a transport: it allocates the transaction id, frames and
// sends the request, drives the framing state machine over the blocking
// receive calls, and correlates the decoded response through its table.
type TransactionManager struct {
	mu           sync.Mutex
	tid          uint16
	retries      int
	retryOnEmpty bool
	transport    Transport
	table        transactionTable[PDU]
	logger       Logger
}

// TransactionOption configures a transaction manager.
type TransactionOption func(*TransactionManager)

// WithRetries sets how often a failed exchange is retried.
func WithRetries(retries int) TransactionOption {
	return func(t *TransactionManager) { t.retries = retries }
}

// WithRetryOnEmpty makes empty reads consume a retry instead of failing
// the frame.
func WithRetryOnEmpty() TransactionOption {
	return func(t *TransactionManager) { t.retryOnEmpty = true }
}

// WithTransactionLogger sets the transmission logger.
func WithTransactionLogger(logger Logger) TransactionOption {
	return func(t *TransactionManager) { t.logger = logger }
}

// NewKeyedTransactionManager returns a manager correlating responses by
// exact transaction id, as required when the transport multiplexes.
func NewKeyedTransactionManager(transport Transport, opts ...TransactionOption) *TransactionManager {
	return newTransactionManager(transport, newKeyedTable[PDU](), opts)
}

// NewFIFOTransactionManager returns a manager assuming strictly in-order
// responses, as on serial lines.
func NewFIFOTransactionManager(transport Transport, opts ...TransactionOption) *TransactionManager {
	return newTransactionManager(transport, newFIFOTable[PDU](), opts)
}

func newTransactionManager(transport Transport, table transactionTable[PDU], opts []TransactionOption) *TransactionManager {
	t := &TransactionManager{
		retries:   defaultRetries,
		transport: transport,
		table:     table,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NextTID returns the next transaction identifier, wrapping at 0xFFFF.
func (t *TransactionManager) NextTID() uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tid++
	return t.tid
}

// Reset restores the initial transaction identifier and empties the
// table.
func (t *TransactionManager) Reset() {
	t.mu.Lock()
	t.tid = 0
	t.mu.Unlock()
	t.table.drain()
}

// Pending returns the number of undelivered responses.
func (t *TransactionManager) Pending() int { return t.table.size() }

func (t *TransactionManager) logf(format string, v ...any) {
	if t.logger != nil {
		t.logger.Printf(format, v...)
	}
}

// Execute sends the request and blocks until the matching response
// arrived or the retries are exhausted. Connection errors close the
// transport and consume a retry; an undecodable response fails the
// exchange immediately.
func (t *TransactionManager) Execute(ctx context.Context, request PDU) (PDU, error) {
	request.Head().TransactionID = t.NextTID()
	t.logf("modbus: running transaction %v", request.Head().TransactionID)

	framer := t.transport.Framer()
	var lastErr error
	for retries := t.retries; retries > 0; retries-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		packet, err := framer.BuildPacket(request)
		if err != nil {
			return nil, err
		}
		if lastErr = t.attempt(ctx, packet); lastErr == nil {
			break
		}
		if _, ok := lastErr.(*frameError); ok {
			return nil, lastErr
		}
		t.logf("modbus: transaction failed: %v", lastErr)
		t.transport.Close()
	}
	if lastErr != nil {
		return nil, lastErr
	}
	response, ok := t.table.get(request.Head().TransactionID)
	if !ok {
		return nil, fmt.Errorf("modbus: no response for transaction '%v'", request.Head().TransactionID)
	}
	return response, nil
}

// frameError marks an exchange that failed in the framing layer rather
// than on the wire; retrying with the same connection will not help.
type frameError struct {
	err error
}

func (e *frameError) Error() string { return e.err.Error() }
func (e *frameError) Unwrap() error { return e.err }

// attempt runs one connect, send and receive cycle.
func (t *TransactionManager) attempt(ctx context.Context, packet []byte) error {
	if err := t.transport.Connect(ctx); err != nil {
		return err
	}
	t.logf("modbus: send % x", packet)
	if _, err := t.transport.Send(ctx, packet); err != nil {
		return err
	}
	return t.handleFraming(ctx)
}

// handleFraming drives the framing state machine over the blocking
// receive calls until a complete frame was committed to the table or the
// frame is beyond repair.
func (t *TransactionManager) handleFraming(ctx context.Context) error {
	framer := t.transport.Framer()
	state := stateInitializing

	for retries := t.retries; retries > 0; {
		switch state {
		case stateInitializing:
			// put the framer into a consistent state before reading
			framer.AdvanceFrame()
			state = stateReadingHeader

		case stateReadingHeader:
			size := framer.HeaderSize() - framer.Buffered()
			if size > 0 {
				data, err := t.transport.Receive(ctx, size)
				if err != nil {
					return err
				}
				if len(data) == 0 {
					if t.retryOnEmpty {
						retries--
					} else {
						state = stateErrorInFrame
						continue
					}
				}
				framer.AddToFrame(data)
				size -= len(data)
			}
			if size <= 0 {
				framer.CheckFrame() // decode header
				state = stateReadingContent
			}

		case stateReadingContent:
			if size := framer.FrameSize() - framer.Buffered(); size > 0 {
				data, err := t.transport.Receive(ctx, size)
				if err != nil {
					return err
				}
				if len(data) == 0 {
					if t.retryOnEmpty {
						retries--
					} else {
						state = stateErrorInFrame
						continue
					}
				}
				framer.AddToFrame(data)
				// serial framers learn the frame size on the way
				framer.CheckFrame()
			}
			if framer.FrameSize()-framer.Buffered() <= 0 {
				state = stateCompleteFrame
			}

		case stateCompleteFrame:
			err := framer.ProcessIncomingPacket(nil, t.addResponse)
			if err != nil {
				return &frameError{err: err}
			}
			return nil

		case stateErrorInFrame:
			framer.ResetFrame()
			return &frameError{err: fmt.Errorf("modbus: server responded with bad frame")}
		}
	}
	framer.ResetFrame()
	return &frameError{err: fmt.Errorf("modbus: retries exhausted while reading frame")}
}

// addResponse commits a decoded response to the transaction table.
func (t *TransactionManager) addResponse(pdu PDU) {
	t.logf("modbus: adding transaction %v", pdu.Head().TransactionID)
	t.table.add(pdu.Head().TransactionID, pdu)
}
