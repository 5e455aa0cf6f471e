// Package hardware contains adapters for bench instruments.
package hardware

import (
	"github.com/kilianp07/batsim/core/factory"
	corehw "github.com/kilianp07/batsim/core/hardware"
)

func init() {
	_ = corehw.RegisterAdapter("scpi", func(conf map[string]any) (corehw.Adapter, error) {
		var c SCPIConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSCPI(c)
	})
	_ = corehw.RegisterAdapter("ina219", func(conf map[string]any) (corehw.Adapter, error) {
		var c INA219Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewINA219(c)
	})
}
