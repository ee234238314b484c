// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"fmt"
	"net"
	"sync"
)

// Server accepts TCP connections and serves decoded requests from a
// server context. Each connection owns its framer, so interleaved partial
// frames on different connections do not disturb each other.
type Server struct {
	// Transmission logger
	Logger Logger

	context   *ServerContext
	decoder   *ServerDecoder
	newFramer func(Decoder) Framer

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// ServerOption configures a server.
type ServerOption func(*Server)

// WithServerFramer makes the server frame messages with the given
// constructor instead of the MBAP framer, for RTU or ASCII over TCP
// deployments.
func WithServerFramer(newFramer func(Decoder) Framer) ServerOption {
	return func(s *Server) { s.newFramer = newFramer }
}

// WithServerLogger sets the transmission logger.
func WithServerLogger(logger Logger) ServerOption {
	return func(s *Server) { s.Logger = logger }
}

// NewServer creates a server executing requests against context.
func NewServer(context *ServerContext, opts ...ServerOption) *Server {
	s := &Server{
		context:   context,
		decoder:   NewServerDecoder(),
		newFramer: func(d Decoder) Framer { return NewTCPFramer(d) },
		conns:     make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) logf(format string, v ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, v...)
	}
}

// ListenTCP starts listening on address and serves until Close.
func (s *Server) ListenTCP(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on the listener until Close.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.wg.Wait()
			return err
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handle(conn)
	}
}

// Addr returns the listener address, once listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops the listener and closes every open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
		s.listener = nil
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

// handle runs the receive loop of one connection.
func (s *Server) handle(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
		s.wg.Done()
	}()

	framer := s.newFramer(s.decoder)
	buffer := make([]byte, 512)
	for {
		n, err := conn.Read(buffer)
		if err != nil {
			return
		}
		err = framer.ProcessIncomingPacket(buffer[:n], func(pdu PDU) {
			s.serve(conn, framer, pdu)
		})
		if err != nil {
			s.logf("modbus: dropping frame: %v", err)
			framer.ResetFrame()
		}
	}
}

// serve executes one decoded request and writes the framed response.
func (s *Server) serve(conn net.Conn, framer Framer, pdu PDU) {
	request, ok := pdu.(Request)
	if !ok {
		s.logf("modbus: ignoring response pdu %T on server side", pdu)
		return
	}

	response := s.respond(request)
	if response == nil {
		return
	}
	head := response.Head()
	head.TransactionID = request.Head().TransactionID
	head.ProtocolID = request.Head().ProtocolID
	head.UnitID = request.Head().UnitID

	// broadcasts and suppressed responses are executed but not answered
	if request.Head().UnitID == 0 || !head.ShouldRespond {
		return
	}
	packet, err := framer.BuildPacket(response)
	if err != nil {
		s.logf("modbus: unable to frame response: %v", err)
		return
	}
	if _, err := conn.Write(packet); err != nil {
		s.logf("modbus: unable to send response: %v", err)
	}
}

// respond runs the request against the addressed slave. A missing slave
// answers with a gateway exception, a failing handler with a server
// device failure. Returns nil when no response must be sent.
func (s *Server) respond(request Request) PDU {
	slave, err := s.context.Slave(request.Head().UnitID)
	if err != nil {
		return exception(request, ExceptionCodeGatewayTargetDeviceFailedToRespond)
	}
	slave.Control.countBusMessage()

	// a slave in listen only mode processes only the restart request
	if slave.Control.ListenOnly() {
		if _, ok := request.(*RestartCommunicationsOptionRequest); !ok {
			return nil
		}
	}
	slave.Control.countSlaveMessage()

	response, err := s.execute(request, slave)
	if err != nil {
		s.logf("modbus: request failed: %v", err)
		slave.Control.countException()
		return exception(request, ExceptionCodeServerDeviceFailure)
	}
	if e, ok := response.(*ExceptionResponse); ok {
		slave.Control.countException()
		return e
	}
	slave.Control.countEvent()
	return response
}

// execute shields the datastore call; a panicking handler is reported as
// a server device failure instead of tearing down the connection.
func (s *Server) execute(request Request, slave *SlaveContext) (response PDU, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("modbus: handler panic: %v", r)
		}
	}()
	return request.Execute(slave)
}
