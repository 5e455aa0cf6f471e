package hardware

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	ina219DefaultAddr = 0x40
	ina219RegShunt    = 0x01
	ina219ShuntLSBuV  = 10 // shunt voltage register LSB
)

// INA219Config selects the I2C bus and the shunt fitted to the board.
type INA219Config struct {
	Bus       string  `json:"bus"`
	Address   uint16  `json:"address"`
	ShuntMOhm float64 `json:"shunt_mohm"`
}

type txer interface {
	Tx(w, r []byte) error
}

// INA219 measures load current with a TI INA219 shunt monitor. It cannot
// drive a load or an output so SetLoad and SetOutputVoltage do nothing.
type INA219 struct {
	dev    txer
	shunt  float64
	closer io.Closer
}

// NewINA219 initialises the host drivers and opens the bus.
func NewINA219(cfg INA219Config) (*INA219, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Bus, err)
	}
	if cfg.Address == 0 {
		cfg.Address = ina219DefaultAddr
	}
	s, err := newINA219(&i2c.Dev{Bus: bus, Addr: cfg.Address}, cfg.ShuntMOhm)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	s.closer = bus
	return s, nil
}

func newINA219(dev txer, shuntMOhm float64) (*INA219, error) {
	if shuntMOhm == 0 {
		shuntMOhm = 100
	}
	if shuntMOhm < 0 {
		return nil, errors.New("ina219: shunt_mohm must be positive")
	}
	return &INA219{dev: dev, shunt: shuntMOhm}, nil
}

// MeasureCurrent reads the shunt voltage register and returns mA.
func (s *INA219) MeasureCurrent(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	buf := make([]byte, 2)
	if err := s.dev.Tx([]byte{ina219RegShunt}, buf); err != nil {
		return 0, err
	}
	raw := int16(binary.BigEndian.Uint16(buf))
	// µV / mΩ = mA
	return float64(raw) * ina219ShuntLSBuV / s.shunt, nil
}

func (s *INA219) SetLoad(context.Context, float64) error { return nil }

func (s *INA219) SetOutputVoltage(context.Context, float64) error { return nil }

// Close releases the bus.
func (s *INA219) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
