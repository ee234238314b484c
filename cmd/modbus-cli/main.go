package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gregorschatz/gomodbus"
	"github.com/grid-x/serial"
)

type option struct {
	address string
	unitID  int
	timeout time.Duration
	listen  bool

	rtu struct {
		baudrate int
		dataBits int
		parity   string
		stopBits int
		rs485    struct {
			enabled            bool
			delayRtsBeforeSend time.Duration
			delayRtsAfterSend  time.Duration
			rtsHighDuringSend  bool
			rtsHighAfterSend   bool
			rxDuringTx         bool
		}
	}

	logger modbus.Logger
}

func main() {
	var opt option
	// general
	flag.StringVar(&opt.address, "address", "tcp://127.0.0.1:502", "Example: tcp://127.0.0.1:502, rtu:///dev/ttyUSB0, ascii:///dev/ttyUSB0, binary:///dev/ttyUSB0")
	flag.IntVar(&opt.unitID, "unitID", 1, "Is used for intra-system routing purpose, typically for serial connections")
	flag.DurationVar(&opt.timeout, "timeout", 20*time.Second, "Modbus connection timeout")
	flag.BoolVar(&opt.listen, "listen", false, "Run a server with a zeroed datastore instead of a client operation")
	// rtu
	flag.IntVar(&opt.rtu.baudrate, "rtu-baudrate", 19200, "Symbol rate, e.g.: 300, 600, 1200, 2400, 4800, 9600, 19200, 38400")
	flag.IntVar(&opt.rtu.dataBits, "rtu-databits", 8, "5, 6, 7 or 8")
	flag.StringVar(&opt.rtu.parity, "rtu-parity", "N", "Parity: N - None, E - Even, O - Odd")
	flag.IntVar(&opt.rtu.stopBits, "rtu-stopbits", 1, "1 or 2")
	// rs485
	flag.BoolVar(&opt.rtu.rs485.enabled, "rs485-enable", false, "enables rs485 cfg")
	flag.DurationVar(&opt.rtu.rs485.delayRtsBeforeSend, "rs485-delayRtsBeforeSend", 0, "Delay rts before send")
	flag.DurationVar(&opt.rtu.rs485.delayRtsAfterSend, "rs485-delayRtsAfterSend", 0, "Delay rts after send")
	flag.BoolVar(&opt.rtu.rs485.rtsHighDuringSend, "rs485-rtsHighDuringSend", false, "Allow rts high during send")
	flag.BoolVar(&opt.rtu.rs485.rtsHighAfterSend, "rs485-rtsHighAfterSend", false, "Allow rts high after send")
	flag.BoolVar(&opt.rtu.rs485.rxDuringTx, "rs485-rxDuringTx", false, "Allow bidirectional rx during tx")

	var (
		register   = flag.Int("register", 0, "")
		fnCode     = flag.Int("fn-code", 0x03, "fn")
		quantity   = flag.Int("quantity", 2, "register quantity")
		writeValue = flag.Int("write-value", 0, "")
		logframe   = flag.Bool("log-frame", false, "prints received and send modbus frame to stdout")
	)

	flag.Parse()

	if len(os.Args) == 1 {
		flag.PrintDefaults()
		return
	}

	logger := log.New(os.Stdout, "", 0)
	if *register > math.MaxUint16 || *register < 0 {
		logger.Fatalf("invalid register value: %d", *register)
	}

	if *logframe {
		opt.logger = &debugAdapter{slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	}

	if opt.listen {
		if err := serve(opt); err != nil {
			logger.Fatal(err)
		}
		return
	}

	client, err := newClient(opt)
	if err != nil {
		logger.Fatal(err)
	}
	defer client.Close()
	client.SetUnitID(byte(opt.unitID))

	ctx, cancel := context.WithTimeout(context.Background(), opt.timeout)
	defer cancel()

	result, err := exec(ctx, client, *fnCode, uint16(*register), uint16(*quantity), uint16(*writeValue))
	if err != nil {
		logger.Fatal(err)
	}
	logger.Println(result)
}

func exec(ctx context.Context, client *modbus.Client, fnCode int, register, quantity, writeValue uint16) (string, error) {
	switch fnCode {
	case 0x01:
		bits, err := client.ReadCoils(ctx, register, quantity)
		return fmt.Sprintf("%v", bits), err
	case 0x02:
		bits, err := client.ReadDiscreteInputs(ctx, register, quantity)
		return fmt.Sprintf("%v", bits), err
	case 0x03:
		values, err := client.ReadHoldingRegisters(ctx, register, quantity)
		return registersToString(register, values), err
	case 0x04:
		values, err := client.ReadInputRegisters(ctx, register, quantity)
		return registersToString(register, values), err
	case 0x05:
		return "ok", client.WriteSingleCoil(ctx, register, writeValue > 0)
	case 0x06:
		return "ok", client.WriteSingleRegister(ctx, register, writeValue)
	case 0x10:
		return "ok", client.WriteMultipleRegisters(ctx, register, []uint16{writeValue})
	case 0x11:
		id, run, err := client.ReportSlaveID(ctx)
		return fmt.Sprintf("%q running=%v", id, run), err
	case 0x2B:
		objects, err := client.ReadDeviceInformation(ctx, modbus.ReadDeviceIDCodeBasic)
		if err != nil {
			return "", err
		}
		var lines []string
		for id, value := range objects {
			lines = append(lines, fmt.Sprintf("0x%02X: %q", id, value))
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", fmt.Errorf("function code %d is unsupported", fnCode)
}

func registersToString(startReg uint16, values []uint16) string {
	var res strings.Builder
	for i, v := range values {
		fmt.Fprintf(&res, "%d\t%d\t0x%04X\n", int(startReg)+i, v, v)
	}
	return res.String()
}

// newFramer returns the framer constructor for the address scheme.
func newFramer(scheme string) (func(modbus.Decoder) modbus.Framer, error) {
	switch scheme {
	case "tcp":
		return func(d modbus.Decoder) modbus.Framer { return modbus.NewTCPFramer(d) }, nil
	case "rtu":
		return func(d modbus.Decoder) modbus.Framer { return modbus.NewRTUFramer(d) }, nil
	case "ascii":
		return func(d modbus.Decoder) modbus.Framer { return modbus.NewASCIIFramer(d) }, nil
	case "binary":
		return func(d modbus.Decoder) modbus.Framer { return modbus.NewBinaryFramer(d) }, nil
	}
	return nil, fmt.Errorf("unsupported scheme: %s", scheme)
}

func newClient(o option) (*modbus.Client, error) {
	u, err := url.Parse(o.address)
	if err != nil {
		return nil, err
	}
	framers, err := newFramer(u.Scheme)
	if err != nil {
		return nil, err
	}
	framer := framers(modbus.NewClientDecoder())

	if u.Scheme == "tcp" {
		transport := modbus.NewTCPTransport(u.Host, framer)
		transport.Timeout = o.timeout
		transport.Logger = o.logger
		return modbus.NewClient(modbus.NewKeyedTransactionManager(transport)), nil
	}

	transport := modbus.NewSerialTransport(u.Path, framer)
	transport.BaudRate = o.rtu.baudrate
	transport.DataBits = o.rtu.dataBits
	transport.Parity = o.rtu.parity
	transport.StopBits = o.rtu.stopBits
	transport.Timeout = o.timeout
	transport.RS485 = serial.RS485Config{
		Enabled:            o.rtu.rs485.enabled,
		DelayRtsBeforeSend: o.rtu.rs485.delayRtsBeforeSend,
		DelayRtsAfterSend:  o.rtu.rs485.delayRtsAfterSend,
		RtsHighDuringSend:  o.rtu.rs485.rtsHighDuringSend,
		RtsHighAfterSend:   o.rtu.rs485.rtsHighAfterSend,
		RxDuringTx:         o.rtu.rs485.rxDuringTx,
	}
	return modbus.NewClient(modbus.NewFIFOTransactionManager(transport)), nil
}

// serve runs a single slave server with a zeroed full range datastore.
func serve(o option) error {
	u, err := url.Parse(o.address)
	if err != nil {
		return err
	}
	framers, err := newFramer(u.Scheme)
	if err != nil {
		return err
	}

	slave := modbus.NewSlaveContext()
	slave.Identity.VendorName = "gomodbus"
	slave.Identity.ProductCode = "modbus-cli"
	slave.Identity.ProductName = "gomodbus server"
	slave.Identity.MajorMinorRevision = "1.0"

	server := modbus.NewServer(modbus.NewSingleServerContext(slave),
		modbus.WithServerFramer(framers),
		modbus.WithServerLogger(o.logger),
	)
	return server.ListenTCP(u.Host)
}
