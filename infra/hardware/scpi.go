package hardware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// SCPIConfig describes a programmable instrument reached over a serial line,
// such as a Keithley 2308 battery simulator. Commands use SI units; the
// adapter converts from and to mA and mV. MeasureCmd must answer with the
// load current in amps. LoadCmd and VoltageCmd are format strings taking
// amps and volts; an empty one disables the matching setter.
type SCPIConfig struct {
	Port          string   `json:"port"`
	Baud          int      `json:"baud"`
	ReadTimeoutMS int      `json:"read_timeout_ms"`
	MeasureCmd    string   `json:"measure_cmd"`
	LoadCmd       string   `json:"load_cmd"`
	VoltageCmd    string   `json:"voltage_cmd"`
	InitCmds      []string `json:"init_cmds"`
}

func (c *SCPIConfig) setDefaults() {
	if c.Baud == 0 {
		c.Baud = 9600
	}
	if c.ReadTimeoutMS == 0 {
		c.ReadTimeoutMS = 500
	}
	if c.MeasureCmd == "" {
		c.MeasureCmd = "MEAS:CURR?"
	}
}

// maxDrainReads bounds how long a chatty port can keep a resync going.
const maxDrainReads = 64

// SCPI drives an instrument with newline terminated SCPI commands.
type SCPI struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
	r    *bufio.Reader
	cfg  SCPIConfig
	// resync is set after a failed read; the rest of that reply may still
	// arrive and must not be taken as the answer to the next query.
	resync bool
}

// NewSCPI opens the serial port and sends the init commands.
func NewSCPI(cfg SCPIConfig) (*SCPI, error) {
	cfg.setDefaults()
	if cfg.Port == "" {
		return nil, errors.New("scpi: port is required")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	s := newSCPI(port, cfg)
	for _, cmd := range cfg.InitCmds {
		if err := s.send(cmd); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("init %q: %w", cmd, err)
		}
	}
	return s, nil
}

func newSCPI(rw io.ReadWriteCloser, cfg SCPIConfig) *SCPI {
	cfg.setDefaults()
	return &SCPI{port: rw, r: bufio.NewReader(rw), cfg: cfg}
}

// MeasureCurrent queries the instrument and returns mA.
func (s *SCPI) MeasureCurrent(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	resp, err := s.query(s.cfg.MeasureCmd)
	if err != nil {
		return 0, err
	}
	amps, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", resp, err)
	}
	return amps * 1000, nil
}

// SetLoad programs the load current.
func (s *SCPI) SetLoad(ctx context.Context, currentMA float64) error {
	if s.cfg.LoadCmd == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(fmt.Sprintf(s.cfg.LoadCmd, currentMA/1000))
}

// SetOutputVoltage programs the emulated terminal voltage.
func (s *SCPI) SetOutputVoltage(ctx context.Context, voltageMV float64) error {
	if s.cfg.VoltageCmd == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(fmt.Sprintf(s.cfg.VoltageCmd, voltageMV/1000))
}

func (s *SCPI) send(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(cmd)
}

func (s *SCPI) write(cmd string) error {
	_, err := io.WriteString(s.port, cmd+"\n")
	return err
}

func (s *SCPI) query(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resync {
		s.drain()
	}
	if err := s.write(cmd); err != nil {
		return "", err
	}
	line, err := s.r.ReadString('\n')
	if err != nil {
		s.resync = true
		return "", fmt.Errorf("read response to %q: %w", cmd, err)
	}
	return strings.TrimSpace(line), nil
}

// drain drops buffered input and reads the port until it goes quiet.
func (s *SCPI) drain() {
	s.r.Reset(s.port)
	buf := make([]byte, 256)
	for i := 0; i < maxDrainReads; i++ {
		n, err := s.port.Read(buf)
		if n == 0 || err != nil {
			break
		}
	}
	s.resync = false
}

// Close closes the serial port.
func (s *SCPI) Close() error { return s.port.Close() }
