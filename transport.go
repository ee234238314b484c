// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTCPPort is the registered modbus TCP port.
	DefaultTCPPort = 502

	// Default TCP timeouts
	tcpTimeout     = 10 * time.Second
	tcpIdleTimeout = 60 * time.Second
)

// TCPTransport is a Transport over a TCP connection. The connection is
// established lazily, kept across exchanges and closed when idle.
type TCPTransport struct {
	// Connect string
	Address string
	// Connect & Read timeout
	Timeout time.Duration
	// Idle timeout to close the connection
	IdleTimeout time.Duration
	// Silent period after successful connection
	ConnectDelay time.Duration
	// Transmission logger
	Logger Logger

	framer Framer

	mu           sync.Mutex
	conn         net.Conn
	closeTimer   *time.Timer
	lastActivity time.Time
}

// NewTCPTransport returns a TCP transport for address framing messages
// with framer.
func NewTCPTransport(address string, framer Framer) *TCPTransport {
	return &TCPTransport{
		Address:     address,
		Timeout:     tcpTimeout,
		IdleTimeout: tcpIdleTimeout,
		framer:      framer,
	}
}

// Framer returns the owned framer.
func (t *TCPTransport) Framer() Framer { return t.framer }

// Connect establishes the connection if it is not established yet.
func (t *TCPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connect(ctx)
}

func (t *TCPTransport) connect(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return err
	}
	t.conn = conn

	// silent period
	time.Sleep(t.ConnectDelay)
	return nil
}

// Close closes the current connection.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.close()
}

func (t *TCPTransport) close() (err error) {
	if t.conn != nil {
		err = t.conn.Close()
		t.conn = nil
	}
	return
}

// Send writes the packet to the connection.
func (t *TCPTransport) Send(ctx context.Context, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.connect(ctx); err != nil {
		return 0, err
	}
	t.lastActivity = time.Now()
	t.startCloseTimer()
	if err := t.conn.SetWriteDeadline(t.deadline(ctx)); err != nil {
		return 0, err
	}
	return t.conn.Write(data)
}

// Receive reads up to size bytes from the connection. A read timeout
// returns an empty result so the transaction manager can apply its
// retry-on-empty policy.
func (t *TCPTransport) Receive(ctx context.Context, size int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, fmt.Errorf("modbus: not connected to '%v'", t.Address)
	}
	if size <= 0 || size > tcpMaxLength {
		size = tcpMaxLength
	}
	t.lastActivity = time.Now()
	t.startCloseTimer()
	if err := t.conn.SetReadDeadline(t.deadline(ctx)); err != nil {
		return nil, err
	}
	data := make([]byte, size)
	n, err := t.conn.Read(data)
	if err != nil {
		if n == 0 && isTimeout(err) {
			return nil, nil
		}
		if n == 0 {
			return nil, err
		}
	}
	return data[:n], nil
}

// deadline combines the configured timeout with the context deadline,
// whichever expires first.
func (t *TCPTransport) deadline(ctx context.Context) time.Time {
	var deadline time.Time
	if t.Timeout > 0 {
		deadline = time.Now().Add(t.Timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

func (t *TCPTransport) startCloseTimer() {
	if t.IdleTimeout <= 0 {
		return
	}
	if t.closeTimer == nil {
		t.closeTimer = time.AfterFunc(t.IdleTimeout, t.closeIdle)
	} else {
		t.closeTimer.Reset(t.IdleTimeout)
	}
}

// closeIdle closes the connection if last activity is passed behind IdleTimeout.
func (t *TCPTransport) closeIdle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.IdleTimeout <= 0 {
		return
	}
	if idle := time.Since(t.lastActivity); idle >= t.IdleTimeout {
		t.logf("modbus: closing connection due to idle timeout: %v", idle)
		t.close()
	}
}

func (t *TCPTransport) logf(format string, v ...any) {
	if t.Logger != nil {
		t.Logger.Printf(format, v...)
	}
}

// SerialTransport is a Transport over a serial line.
type SerialTransport struct {
	serialPort
	framer Framer
}

// NewSerialTransport returns a serial transport for the device at address
// with the default 19200 8N1 line settings, framing messages with framer.
func NewSerialTransport(address string, framer Framer) *SerialTransport {
	return &SerialTransport{
		serialPort: defaultSerialPort(address),
		framer:     framer,
	}
}

// Framer returns the owned framer.
func (t *SerialTransport) Framer() Framer { return t.framer }

// Connect opens the serial port if it is not open yet.
func (t *SerialTransport) Connect(context.Context) error {
	return t.serialPort.Connect()
}

// Send writes the packet to the serial port.
func (t *SerialTransport) Send(_ context.Context, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.connect(); err != nil {
		return 0, err
	}
	t.lastActivity = time.Now()
	t.startCloseTimer()
	return t.port.Write(data)
}

// Receive reads up to size bytes from the serial port. A read timeout
// returns an empty result so the transaction manager can apply its
// retry-on-empty policy.
func (t *SerialTransport) Receive(_ context.Context, size int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, fmt.Errorf("modbus: not connected to '%v'", t.Config.Address)
	}
	if size <= 0 || size > asciiMaxSize {
		size = asciiMaxSize
	}
	t.lastActivity = time.Now()
	t.startCloseTimer()
	data := make([]byte, size)
	n, err := t.port.Read(data)
	if err != nil && n == 0 {
		if isTimeout(err) {
			return nil, nil
		}
		return nil, err
	}
	return data[:n], nil
}

// isTimeout reports whether the error is a read timeout rather than a
// broken channel.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if os.IsTimeout(err) {
		return true
	}
	return strings.Contains(err.Error(), "timeout")
}
